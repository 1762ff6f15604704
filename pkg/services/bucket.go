package services

import (
	"fmt"
	"time"
)

// Granularity is the time-bucket width for price aggregation.
type Granularity string

const (
	GranularityDay  Granularity = "day"
	GranularityWeek Granularity = "week"
)

// Bucketer floors item timestamps to bucket boundaries. One Bucketer is used
// for a whole run so the boundary policy is applied consistently.
type Bucketer struct {
	gran Granularity
	loc  *time.Location
}

// NewBucketer builds a Bucketer for the configured granularity and timezone.
func NewBucketer(granularity string, loc *time.Location) (Bucketer, error) {
	g := Granularity(granularity)
	if g != GranularityDay && g != GranularityWeek {
		return Bucketer{}, fmt.Errorf("unsupported bucket granularity %q", granularity)
	}
	return Bucketer{gran: g, loc: loc}, nil
}

// Granularity returns the configured bucket width.
func (b Bucketer) Granularity() string {
	return string(b.gran)
}

// Timezone returns the IANA name of the boundary timezone.
func (b Bucketer) Timezone() string {
	return b.loc.String()
}

// Floor returns the bucket boundary containing t: local midnight for daily
// buckets, local Monday midnight for weekly buckets.
func (b Bucketer) Floor(t time.Time) time.Time {
	t = t.In(b.loc)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, b.loc)
	if b.gran == GranularityDay {
		return day
	}
	monday := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -monday)
}

// Next returns the boundary of the bucket after the one starting at bucketTS.
func (b Bucketer) Next(bucketTS time.Time) time.Time {
	if b.gran == GranularityDay {
		return bucketTS.AddDate(0, 0, 1)
	}
	return bucketTS.AddDate(0, 0, 7)
}
