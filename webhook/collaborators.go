package webhook

import "context"

/* Small, focused interfaces for the receive pipeline
 * Each step of the pipeline is injected so it can be replaced in tests
 */

// Verifier computes the signature verdict for a delivery
type Verifier interface {
	/* Verify returns NotChecked with a nil error when no secret is configured
	 * An error means a secret exists but could not be applied
	 */
	Verify(wh ReceivedWebhook) (Verdict, error)
}

// Recorder writes a human-readable record of a delivery
type Recorder interface {
	Record(wh ReceivedWebhook, verdict Verdict) error
}

// Relay forwards a delivery to the supervising process
type Relay interface {
	/* Relay carries no acknowledgment; a returned error is informational only
	 */
	Relay(ctx context.Context, wh ReceivedWebhook, verdict Verdict) error
}
