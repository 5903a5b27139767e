package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/marcelsud/webhook-receiver/webhook"
)

// HistoryLen is the part of the history the collector needs
type HistoryLen interface {
	Len() int
}

// ReceiverCollector implements the Collector interface for an in-process listener
type ReceiverCollector struct {
	history HistoryLen
	status  func() int

	mu       sync.Mutex
	verdicts map[string]int64
}

// NewReceiverCollector creates a collector over the listener history and status source
func NewReceiverCollector(history HistoryLen, status func() int) *ReceiverCollector {
	return &ReceiverCollector{
		history:  history,
		status:   status,
		verdicts: newVerdictCounts(),
	}
}

func newVerdictCounts() map[string]int64 {
	return map[string]int64{
		webhook.NotChecked.String():       0,
		webhook.MatchedPrimary.String():   0,
		webhook.MatchedSecondary.String(): 0,
		webhook.NoMatch.String():          0,
	}
}

// Observe counts one processed delivery
func (c *ReceiverCollector) Observe(verdict webhook.Verdict) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verdicts[verdict.String()]++
}

// Collect gathers all listener metrics
func (c *ReceiverCollector) Collect(ctx context.Context) (Metrics, error) {
	historyLength, _ := c.GetHistoryLength(ctx)
	verdicts, _ := c.GetVerdictCounts(ctx)
	status, _ := c.GetStatusCode(ctx)

	var received int64
	for _, count := range verdicts {
		received += count
	}

	return Metrics{
		Received:      received,
		HistoryLength: historyLength,
		StatusCode:    status,
		Verdicts:      verdicts,
		Timestamp:     time.Now(),
	}, nil
}

// GetHistoryLength returns the number of webhooks in the history
func (c *ReceiverCollector) GetHistoryLength(ctx context.Context) (int64, error) {
	if c.history == nil {
		return 0, nil
	}
	return int64(c.history.Len()), nil
}

// GetVerdictCounts returns a copy of the per-verdict counters
func (c *ReceiverCollector) GetVerdictCounts(ctx context.Context) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int64, len(c.verdicts))
	for verdict, count := range c.verdicts {
		out[verdict] = count
	}
	return out, nil
}

// GetStatusCode returns the status currently returned to senders
func (c *ReceiverCollector) GetStatusCode(ctx context.Context) (int64, error) {
	if c.status == nil {
		return 0, nil
	}
	return int64(c.status()), nil
}
