package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceStats is one aggregated price bucket for a SKU. RegionID is nil for
// the national (all-regions) row. Rows with Count == 0 must not exist.
type PriceStats struct {
	SKUID    int64           `json:"sku_id"`
	RegionID *int64          `json:"region_id,omitempty"`
	BucketTS time.Time       `json:"bucket_ts"`
	Count    int64           `json:"count"`
	Sum      int64           `json:"sum"`
	Avg      decimal.Decimal `json:"avg"`
	Min      int64           `json:"min"`
	Max      int64           `json:"max"`
}
