package types

import (
	"time"
)

type AssetType string

// AssetTypeCrypto is the only asset class the assets table holds for this tool.
const AssetTypeCrypto AssetType = "CRYPTO"

// Asset is a tradable pair row, e.g. BTC/USDT.
type Asset struct {
	Id         int       `json:"id"`
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Type       AssetType `json:"type"`
	CreatedAt  time.Time `json:"createdAt"`
	ModifiedAt time.Time `json:"modifiedAt"`
}
