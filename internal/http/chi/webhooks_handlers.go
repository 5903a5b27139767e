package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/webhook-receiver/webhook"
)

// Receiver is the listener state the HTTP layer reads and feeds
type Receiver interface {
	// StatusCode returns the status to answer deliveries with
	StatusCode() int
	// Accept hands a captured delivery to the receive pipeline; it must not block
	Accept(wh webhook.ReceivedWebhook)
}

// Options configures the receiver router
type Options struct {
	Path     string
	LogLevel string
}

// WebhookHandlers sets up the receiver routes
func WebhookHandlers(ctx context.Context, receiver Receiver, opts Options) *chi.Mux {
	if opts.Path == "" {
		opts.Path = "/"
	}
	if opts.LogLevel == "" {
		opts.LogLevel = "warn"
	}

	logger := httplog.NewLogger("webhook-receiver", httplog.Options{
		JSON:     true,
		LogLevel: opts.LogLevel,
	})

	r := chi.NewRouter()
	r.Use(httplog.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	r.Post(opts.Path, postWebhook(receiver).ServeHTTP)

	return r
}
