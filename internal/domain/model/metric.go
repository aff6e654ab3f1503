package model

import "time"

// Metric is one fire-and-forget usage event kept for offline analysis.
// Emission must never fail a business operation.
type Metric struct {
	ID        int64
	Event     string
	Value     float64
	Meta      map[string]string // serialized as JSONB
	CreatedAt time.Time
}
