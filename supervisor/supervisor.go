package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/marcelsud/webhook-receiver/config"
	"github.com/marcelsud/webhook-receiver/ipc"
	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/rs/zerolog"
)

/* Supervisor starts listeners and exposes the received webhooks to test code
 * Every listener event feeds one history; control messages go to the newest listener
 */

var (
	ErrNotStarted = errors.New("receiver has not been set up")
	ErrStopped    = errors.New("receiver has stopped")
)

// DefaultWaitTimeout applies when WaitForNewWebhooks gets a timeout <= 0
const DefaultWaitTimeout = 120 * time.Second

const sendTimeout = 5 * time.Second

// Option configures a Supervisor
type Option func(*Supervisor)

// WithLauncher sets how listeners are started; the default re-executes the current binary
func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) {
		s.launcher = l
	}
}

// WithLogger replaces the logger chosen from the console flag
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Supervisor) {
		s.logger = logger
		s.customLogger = true
	}
}

// WithExitFunc replaces os.Exit for Stop
func WithExitFunc(exit func(code int)) Option {
	return func(s *Supervisor) {
		s.exit = exit
	}
}

// WithConfig sets the base configuration Setup starts from
func WithConfig(cfg config.Config) Option {
	return func(s *Supervisor) {
		s.base = cfg
	}
}

type Supervisor struct {
	launcher     Launcher
	base         config.Config
	logger       zerolog.Logger
	customLogger bool
	exit         func(code int)
	history      *webhook.History
	done         chan struct{}

	mu         sync.Mutex
	handles    []Handle
	verdicts   []webhook.Verdict
	console    bool
	port       int
	stopped    bool
	waiters    map[uint64]chan webhook.ReceivedWebhook
	nextWaiter uint64
}

// New creates a supervisor; nothing runs until Setup
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		base:    config.Default(),
		logger:  zerolog.Nop(),
		exit:    os.Exit,
		history: webhook.NewHistory(),
		done:    make(chan struct{}),
		waiters: make(map[uint64]chan webhook.ReceivedWebhook),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.launcher == nil {
		s.launcher = SelfLauncher()
	}
	return s
}

/* Setup launches a listener and waits until its socket is bound
 * Calling it again starts another listener; all of them feed the same history
 */
func (s *Supervisor) Setup(ctx context.Context, port, statusCode int, consoleOutput, fileOutput bool) error {
	cfg := s.base
	cfg.Port = port
	cfg.StatusCode = statusCode
	cfg.ConsoleOutput = consoleOutput
	cfg.FileOutput = fileOutput
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.console = consoleOutput
	if consoleOutput && !s.customLogger {
		s.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	s.mu.Unlock()

	h, err := s.launcher.Launch(ctx, cfg)
	if err != nil {
		return fmt.Errorf("launching listener: %w", err)
	}

	ready := make(chan int, 1)
	go s.pump(h, ready)

	select {
	case bound := <-ready:
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.stopped {
			h.Kill()
			return ErrStopped
		}
		s.handles = append(s.handles, h)
		s.port = bound
		s.logger.Debug().Int("port", bound).Msg("listener ready")
		return nil
	case <-h.Done():
		if cerr := h.Link().Close(); cerr != nil {
			logger := s.log()
			logger.Debug().Err(cerr).Msg("closing link of exited listener")
		}
		if err := h.Err(); err != nil {
			return fmt.Errorf("listener exited before it was ready: %w", err)
		}
		return errors.New("listener exited before it was ready")
	case <-ctx.Done():
		h.Kill()
		return ctx.Err()
	}
}

// pump feeds listener events into the history until the link closes
func (s *Supervisor) pump(h Handle, ready chan<- int) {
	for msg := range h.Link().Messages() {
		switch {
		case msg.Ready != nil:
			select {
			case ready <- msg.Ready.Port:
			default:
			}
		case msg.Webhook != nil:
			s.deliver(*msg.Webhook, webhook.NewVerdict(msg.Verdict))
		}
	}
}

// deliver appends wh and resolves every waiter pending right now
func (s *Supervisor) deliver(wh webhook.ReceivedWebhook, verdict webhook.Verdict) {
	s.mu.Lock()
	s.history.Append(wh)
	s.verdicts = append(s.verdicts, verdict)
	waiters := s.waiters
	s.waiters = make(map[uint64]chan webhook.ReceivedWebhook)
	logger := s.logger
	s.mu.Unlock()

	logger.Debug().Stringer("verdict", verdict).Int("waiters", len(waiters)).Msg("webhook received")
	for _, ch := range waiters {
		ch <- wh
	}
}

// ClearReceivedWebhooks empties both the local history and the listener's
func (s *Supervisor) ClearReceivedWebhooks() error {
	link, err := s.current()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.history.Clear()
	s.verdicts = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := link.Send(ctx, ipc.ClearHooksMessage()); err != nil {
		return fmt.Errorf("sending clear hooks: %w", err)
	}
	return nil
}

// ChangeStatusCode asks the listener to answer later deliveries with status
func (s *Supervisor) ChangeStatusCode(status int) error {
	if status < 100 || status > 999 {
		return fmt.Errorf("status code must be between 100 and 999 (got %d)", status)
	}
	link, err := s.current()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	if err := link.Send(ctx, ipc.ChangeStatusMessage(status)); err != nil {
		return fmt.Errorf("sending change status: %w", err)
	}
	return nil
}

// WaitForNewWebhooks waits for the next webhook; false means timeout, cancellation or stop
func (s *Supervisor) WaitForNewWebhooks(ctx context.Context, timeout time.Duration) (webhook.ReceivedWebhook, bool) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	id, ch, ok := s.register()
	if !ok {
		return webhook.ReceivedWebhook{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case wh := <-ch:
		return wh, true
	case <-timer.C:
	case <-ctx.Done():
	case <-s.done:
	}
	s.unregister(id)
	return webhook.ReceivedWebhook{}, false
}

// WaitUntilNewWebhooks waits for the next webhook without a timeout
func (s *Supervisor) WaitUntilNewWebhooks(ctx context.Context) (webhook.ReceivedWebhook, error) {
	id, ch, ok := s.register()
	if !ok {
		return webhook.ReceivedWebhook{}, ErrStopped
	}

	select {
	case wh := <-ch:
		return wh, nil
	case <-ctx.Done():
		s.unregister(id)
		return webhook.ReceivedWebhook{}, ctx.Err()
	case <-s.done:
		return webhook.ReceivedWebhook{}, ErrStopped
	}
}

// ReceivedWebhooks returns a snapshot of every webhook received so far
func (s *Supervisor) ReceivedWebhooks() []webhook.ReceivedWebhook {
	return s.history.Snapshot()
}

// ReceivedVerdicts returns the signature verdict of each received webhook, in history order
func (s *Supervisor) ReceivedVerdicts() []webhook.Verdict {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]webhook.Verdict, len(s.verdicts))
	copy(out, s.verdicts)
	return out
}

// Port returns the port bound by the newest listener
func (s *Supervisor) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// StopSafe kills every listener; later calls do nothing
func (s *Supervisor) StopSafe() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	handles := s.handles
	s.handles = nil
	s.waiters = make(map[uint64]chan webhook.ReceivedWebhook)
	close(s.done)
	console := s.console
	logger := s.logger
	s.mu.Unlock()

	for _, h := range handles {
		if err := h.Kill(); err != nil {
			logger.Debug().Err(err).Msg("killing listener")
		}
	}
	if console {
		logger.Info().Msg("Server has stopped")
	}
}

// Stop tears everything down like StopSafe, then exits the process
func (s *Supervisor) Stop() {
	s.StopSafe()
	s.exit(0)
}

func (s *Supervisor) log() zerolog.Logger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logger
}

func (s *Supervisor) current() (ipc.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	if len(s.handles) == 0 {
		return nil, ErrNotStarted
	}
	return s.handles[len(s.handles)-1].Link(), nil
}

func (s *Supervisor) register() (uint64, chan webhook.ReceivedWebhook, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, nil, false
	}
	s.nextWaiter++
	ch := make(chan webhook.ReceivedWebhook, 1)
	s.waiters[s.nextWaiter] = ch
	return s.nextWaiter, ch, true
}

func (s *Supervisor) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiters, id)
}
