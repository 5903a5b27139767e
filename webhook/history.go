package webhook

import "sync"

/* History is the ordered, in-memory list of received webhooks
 * Safe for concurrent use; append is the only mutation besides Clear
 */
type History struct {
	mu       sync.Mutex
	webhooks []ReceivedWebhook
}

// NewHistory creates an empty history
func NewHistory() *History {
	return &History{}
}

// Append adds a webhook at the end of the history
func (h *History) Append(wh ReceivedWebhook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.webhooks = append(h.webhooks, wh)
}

// Clear drops every recorded webhook
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.webhooks = nil
}

// Snapshot returns a copy of the history in insertion order
func (h *History) Snapshot() []ReceivedWebhook {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ReceivedWebhook, len(h.webhooks))
	copy(out, h.webhooks)
	return out
}

// Len returns the number of recorded webhooks
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.webhooks)
}
