package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of a listener.
type Metrics struct {
	// Received is the number of deliveries processed since start
	Received int64 `json:"received"`

	// HistoryLength is the number of webhooks currently in the history
	HistoryLength int64 `json:"history_length"`

	// StatusCode is the status currently returned to senders
	StatusCode int64 `json:"status_code"`

	// Verdicts maps verdict name to the number of deliveries with that verdict
	Verdicts map[string]int64 `json:"verdicts"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// Collector defines the interface for collecting metrics from a listener.
type Collector interface {
	// Collect gathers current metrics
	Collect(ctx context.Context) (Metrics, error)

	// GetHistoryLength returns the number of webhooks in the history
	GetHistoryLength(ctx context.Context) (int64, error)

	// GetVerdictCounts returns the count of deliveries by verdict
	GetVerdictCounts(ctx context.Context) (map[string]int64, error)

	// GetStatusCode returns the status currently returned to senders
	GetStatusCode(ctx context.Context) (int64, error)
}
