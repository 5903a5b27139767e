package listener

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marcelsud/webhook-receiver/config"
	"github.com/marcelsud/webhook-receiver/internal/http/chi"
	"github.com/marcelsud/webhook-receiver/ipc"
	"github.com/marcelsud/webhook-receiver/metrics"
	"github.com/marcelsud/webhook-receiver/record"
	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/marcelsud/webhook-receiver/webhook/signature"
	"github.com/rs/zerolog"
)

/* Server owns the HTTPS endpoint and the receive pipeline of one listener
 * It answers every delivery right away and runs the pipeline afterwards,
 * relaying each webhook to the supervisor over the link
 */

// ChildCommand is the first argument that makes a binary run as a listener child
const ChildCommand = "__listen"

const (
	TIMEOUT      = 30 * time.Second
	relayTimeout = 5 * time.Second
)

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger used by the pipeline and the control loop
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

type Server struct {
	cfg       config.Config
	link      ipc.Link
	logger    zerolog.Logger
	status    atomic.Int64
	port      atomic.Int64
	history   *webhook.History
	recorder  *record.Recorder
	collector *metrics.ReceiverCollector
	service   webhook.UseCase
	inflight  sync.WaitGroup
}

// New creates a listener; the record file, when enabled, is truncated here
func New(cfg config.Config, link ipc.Link, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		link:    link,
		logger:  zerolog.Nop(),
		history: webhook.NewHistory(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.status.Store(int64(cfg.StatusCode))

	recordFile := ""
	if cfg.FileOutput {
		recordFile = cfg.RecordFile
	}
	recorder, err := record.Open(cfg.ConsoleOutput, recordFile, record.NewFormat(cfg.RecordFormat))
	if err != nil {
		return nil, err
	}
	s.recorder = recorder

	s.collector = metrics.NewReceiverCollector(s.history, s.StatusCode)
	s.service = webhook.NewService(
		s.history,
		signature.NewFileVerifier(cfg.SharedSecretFile),
		recorder,
		linkRelay{link: link},
		s.logger,
	)
	return s, nil
}

// StatusCode returns the status answered to deliveries
func (s *Server) StatusCode() int {
	return int(s.status.Load())
}

// Port returns the bound port, or 0 before Run has bound the socket
func (s *Server) Port() int {
	return int(s.port.Load())
}

// History returns the listener's own history
func (s *Server) History() *webhook.History {
	return s.history
}

// Accept runs the receive pipeline for wh on its own goroutine
func (s *Server) Accept(wh webhook.ReceivedWebhook) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		verdict := s.service.Receive(context.Background(), wh)
		s.collector.Observe(verdict)
	}()
}

// Summary reports the deliveries processed so far, per verdict
func (s *Server) Summary(ctx context.Context) (metrics.Metrics, error) {
	return s.collector.Collect(ctx)
}

/* Run serves HTTPS until ctx is done or the link closes
 * The ready event carries the bound port, so port 0 picks a free one
 */
func (s *Server) Run(ctx context.Context) error {
	defer s.recorder.Close()

	cert, err := tls.LoadX509KeyPair(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		return fmt.Errorf("loading TLS material: %w", err)
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", s.cfg.Port, err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	s.port.Store(int64(port))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logLevel := "warn"
	if s.cfg.ConsoleOutput {
		logLevel = "info"
	}
	srv := &http.Server{
		ReadTimeout:  TIMEOUT,
		WriteTimeout: TIMEOUT,
		Handler:      chi.WebhookHandlers(runCtx, s, chi.Options{Path: s.cfg.Path, LogLevel: logLevel}),
		TLSConfig:    &tls.Config{Certificates: []tls.Certificate{cert}},
	}

	metricsSrv, err := s.startMetrics()
	if err != nil {
		ln.Close()
		return err
	}

	go s.control(runCtx, cancel)

	if err := s.link.Send(runCtx, ipc.ReadyMessage(port)); err != nil {
		ln.Close()
		s.stopMetrics(metricsSrv)
		return fmt.Errorf("announcing readiness: %w", err)
	}
	if s.cfg.ConsoleOutput {
		fmt.Printf("Listening at https://localhost/ on port %d\n", port)
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, runCtx, errShutdown)

	err = srv.ServeTLS(ln, "", "")
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-errShutdown
		s.stopMetrics(metricsSrv)
		return fmt.Errorf("serving: %w", err)
	}
	err = <-errShutdown

	s.inflight.Wait()
	s.stopMetrics(metricsSrv)
	s.logSummary()
	return err
}

func (s *Server) logSummary() {
	summary, err := s.Summary(context.Background())
	if err != nil {
		s.logger.Warn().Err(err).Msg("collecting listener summary")
		return
	}
	event := s.logger.Info().
		Int64("received", summary.Received).
		Int64("history_length", summary.HistoryLength).
		Int64("status_code", summary.StatusCode)
	for verdict, count := range summary.Verdicts {
		event = event.Int64(verdict, count)
	}
	event.Msg("listener stopped")
}

// control applies supervisor messages until the link closes
func (s *Server) control(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.link.Messages():
			if !ok {
				s.logger.Debug().Msg("control link closed")
				return
			}
			s.apply(msg)
		}
	}
}

func (s *Server) apply(msg ipc.Message) {
	if msg.ClearHooks {
		s.history.Clear()
	}
	if msg.ChangeStatus != 0 {
		if msg.ChangeStatus < 100 || msg.ChangeStatus > 999 {
			s.logger.Warn().Int("status", msg.ChangeStatus).Msg("ignoring invalid status code")
			return
		}
		s.status.Store(int64(msg.ChangeStatus))
	}
}

func (s *Server) startMetrics() (*metricsServer, error) {
	if s.cfg.MetricsPort == 0 {
		return nil, nil
	}

	exporter, err := metrics.NewOTelExporter(s.collector)
	if err != nil {
		return nil, fmt.Errorf("creating metrics exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter.ServeHTTP())
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.MetricsPort),
		ReadTimeout:  TIMEOUT,
		WriteTimeout: TIMEOUT,
		Handler:      mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return &metricsServer{srv: srv, exporter: exporter}, nil
}

func (s *Server) stopMetrics(m *metricsServer) {
	if m == nil {
		return
	}
	ctx, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()
	m.srv.Shutdown(ctx)
	m.exporter.Shutdown(ctx)
}

type metricsServer struct {
	srv      *http.Server
	exporter *metrics.OTelExporter
}

func shutdown(server *http.Server, ctxShutdown context.Context, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), TIMEOUT)
	defer stop()

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing closing the server")
	default:
		errShutdown <- fmt.Errorf("forcing closing the server: %w", err)
	}
}

// linkRelay sends each processed webhook to the supervisor as an event
type linkRelay struct {
	link ipc.Link
}

func (l linkRelay) Relay(ctx context.Context, wh webhook.ReceivedWebhook, verdict webhook.Verdict) error {
	ctx, cancel := context.WithTimeout(ctx, relayTimeout)
	defer cancel()
	return l.link.Send(ctx, ipc.WebhookMessage(wh, verdict))
}
