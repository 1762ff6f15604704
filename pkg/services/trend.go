package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/siselab/sise-engine/pkg/repositories"
)

// TrendPoint is one bucket of a trend series, oldest to newest. ChangeRate is
// the fractional change against the previous bucket's average, nil when there
// is no previous bucket or its average is zero.
type TrendPoint struct {
	BucketTS   time.Time       `json:"bucket_ts"`
	Avg        decimal.Decimal `json:"avg"`
	Count      int64           `json:"count"`
	ChangeRate *float64        `json:"change_rate,omitempty"`
}

// TrendReport is the price trend of one SKU in one region (nil region =
// national), as consumed by the query layer's trend charts.
type TrendReport struct {
	SKUID     int64        `json:"sku_id"`
	RegionID  *int64       `json:"region_id,omitempty"`
	Points    []TrendPoint `json:"points"`
	ChangePct *float64     `json:"change_pct,omitempty"` // overall first-to-last, in percent
}

// TrendService derives change-rate series from stored price statistics.
type TrendService interface {
	Report(ctx context.Context, skuID int64, regionID *int64, window int) (*TrendReport, error)
}

type trendService struct {
	skus  repositories.SKURepository
	stats repositories.StatsRepository
}

// NewTrendService creates a new TrendService.
func NewTrendService(skus repositories.SKURepository, stats repositories.StatsRepository) TrendService {
	return &trendService{skus: skus, stats: stats}
}

var _ TrendService = (*trendService)(nil)

func (s *trendService) Report(ctx context.Context, skuID int64, regionID *int64, window int) (*TrendReport, error) {
	// An unknown SKU fails loudly; an empty report is reserved for SKUs
	// that exist but have no stats in the window.
	if _, err := s.skus.GetByID(ctx, skuID); err != nil {
		return nil, err
	}

	series, err := s.stats.Series(ctx, skuID, regionID, window)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{SKUID: skuID, RegionID: regionID}
	if len(series) == 0 {
		return report, nil
	}

	// Series arrives newest-first; charts read oldest-first.
	report.Points = make([]TrendPoint, len(series))
	for i, ps := range series {
		report.Points[len(series)-1-i] = TrendPoint{
			BucketTS: ps.BucketTS,
			Avg:      ps.Avg,
			Count:    ps.Count,
		}
	}

	for i := 1; i < len(report.Points); i++ {
		prev := report.Points[i-1].Avg
		if prev.IsZero() {
			continue
		}
		rate, _ := report.Points[i].Avg.Sub(prev).Div(prev).Float64()
		report.Points[i].ChangeRate = &rate
	}

	first := report.Points[0].Avg
	last := report.Points[len(report.Points)-1].Avg
	if len(report.Points) >= 2 && !first.IsZero() {
		pct, _ := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		report.ChangePct = &pct
	}
	return report, nil
}
