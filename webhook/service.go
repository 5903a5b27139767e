package webhook

import (
	"context"

	"github.com/rs/zerolog"
)

/* Service is the receive pipeline run after the HTTP response was sent
 * Uses pointer semantics as it's an API, not data
 */

// UseCase defines the business operations for a received webhook
type UseCase interface {
	Receive(ctx context.Context, wh ReceivedWebhook) Verdict
}

type Service struct {
	History  *History
	Verifier Verifier
	Recorder Recorder
	Relay    Relay
	Logger   zerolog.Logger
}

// NewService creates a new receive pipeline with dependency injection
func NewService(history *History, verifier Verifier, recorder Recorder, relay Relay, logger zerolog.Logger) *Service {
	return &Service{
		History:  history,
		Verifier: verifier,
		Recorder: recorder,
		Relay:    relay,
		Logger:   logger,
	}
}

// Receive records, verifies, writes and relays one delivery, in that order
func (s *Service) Receive(ctx context.Context, wh ReceivedWebhook) Verdict {
	s.History.Append(wh)

	verdict := NotChecked
	if s.Verifier != nil {
		v, err := s.Verifier.Verify(wh)
		if err != nil {
			s.Logger.Warn().Err(err).Msg("skipping signature check")
		} else {
			verdict = v
		}
	}

	if s.Recorder != nil {
		if err := s.Recorder.Record(wh, verdict); err != nil {
			s.Logger.Error().Err(err).Msg("writing webhook record")
		}
	}

	if s.Relay != nil {
		if err := s.Relay.Relay(ctx, wh, verdict); err != nil {
			s.Logger.Debug().Err(err).Msg("relay dropped")
		}
	}

	return verdict
}
