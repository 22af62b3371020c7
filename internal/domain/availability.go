package domain

import "time"

// Availability outcome of resolving a view against its sources.
type Availability string

const (
	// AvailabilityOK data came from a working source.
	AvailabilityOK Availability = "ok"
	// AvailabilitySourceUnavailable the authoritative fetch failed, data comes from a fallback.
	AvailabilitySourceUnavailable Availability = "source_unavailable"
	// AvailabilityMalformedSource a response parsed but lacked expected fields.
	AvailabilityMalformedSource Availability = "malformed_source"
	// AvailabilityNoData every source was exhausted without usable data.
	AvailabilityNoData Availability = "no_data_available"
)

// DefaultStaleAfter freshness threshold of cached snapshots.
const DefaultStaleAfter = 90 * time.Second

// StalenessInfo age of the data behind a view.
type StalenessInfo struct {
	LastUpdatedAt *time.Time `json:"last_updated_at"`
	IsStale       bool       `json:"is_stale"`
	StaleSeconds  *int64     `json:"stale_seconds"`
}

// NewStalenessInfo computes staleness of data last updated at lastUpdated.
// A zero lastUpdated means the age is unknown and only the forced flag applies.
func NewStalenessInfo(lastUpdated time.Time, now time.Time, threshold time.Duration, forced bool) StalenessInfo {
	info := StalenessInfo{IsStale: forced}
	if lastUpdated.IsZero() {
		return info
	}

	ts := lastUpdated.UTC()
	age := now.Sub(lastUpdated)
	seconds := int64(age / time.Second)
	info.LastUpdatedAt = &ts
	info.StaleSeconds = &seconds
	info.IsStale = forced || age > threshold

	return info
}

// FreshStaleness staleness of data fetched live at now.
func FreshStaleness(now time.Time) StalenessInfo {
	ts := now.UTC()
	var zero int64
	return StalenessInfo{LastUpdatedAt: &ts, StaleSeconds: &zero}
}
