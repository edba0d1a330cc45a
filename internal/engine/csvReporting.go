package engine

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"cryptobacktest/types"
)

// WriteTradesCSVFile writes the trade ledger to a CSV file at the given path.
func WriteTradesCSVFile(path string, trades []types.TradeRecord) error {
	return writeCSVFile(path, func(w io.Writer) error {
		return WriteTradesCSV(w, trades)
	})
}

// WriteEquityCSVFile writes the equity curve to a CSV file at the given path.
func WriteEquityCSVFile(path string, equity []types.EquityPoint) error {
	return writeCSVFile(path, func(w io.Writer) error {
		return WriteEquityCSV(w, equity)
	})
}

func writeCSVFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteTradesCSV writes trades to any io.Writer as CSV.
func WriteTradesCSV(w io.Writer, trades []types.TradeRecord) error {
	cw := csv.NewWriter(w)

	header := []string{
		"trade_id",
		"timestamp", // RFC3339
		"side",
		"price",
		"quantity",
		"cash_after",
		"reason",
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, t := range trades {
		record := []string{
			strconv.Itoa(i),
			t.Timestamp.Format(time.RFC3339),
			string(t.Side),
			t.Price.String(),
			t.Quantity.String(),
			t.CashAfter.String(),
			t.Reason,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteEquityCSV writes one row per equity point. phase is empty for strategies without one.
func WriteEquityCSV(w io.Writer, equity []types.EquityPoint) error {
	cw := csv.NewWriter(w)

	header := []string{"timestamp", "close", "cash", "position", "equity", "phase"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, p := range equity {
		phase := ""
		if p.HasPhase {
			phase = p.Phase.String()
		}
		record := []string{
			p.Timestamp.Format(time.RFC3339),
			p.Close.String(),
			p.Cash.String(),
			p.Position.String(),
			p.Equity.String(),
			phase,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
