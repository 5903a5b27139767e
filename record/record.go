package record

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/marcelsud/webhook-receiver/webhook/payload"
)

/* Recorder writes a timestamped, pretty-printed record of every delivery
 * to the console and/or an append-only file
 */

// DefaultFile is the record file used when file output is enabled
const DefaultFile = "receivedWebhooks.txt"

// Format selects how the webhook is rendered in a record
type Format string

const (
	JSON Format = "json"
	YAML Format = "yaml"
)

// NewFormat creates a Format from a string, defaulting to JSON
func NewFormat(s string) Format {
	if s == string(YAML) {
		return YAML
	}
	return JSON
}

type Recorder struct {
	mu      sync.Mutex
	writers []io.Writer
	file    *os.File
	format  Format
	now     func() time.Time
}

// Option configures a Recorder
type Option func(*Recorder)

// WithWriter adds a destination for records
func WithWriter(w io.Writer) Option {
	return func(r *Recorder) {
		r.writers = append(r.writers, w)
	}
}

// WithFormat selects the body rendering
func WithFormat(f Format) Option {
	return func(r *Recorder) {
		r.format = f
	}
}

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// New creates a recorder writing to the given destinations
func New(opts ...Option) *Recorder {
	r := &Recorder{
		format: JSON,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Open creates a recorder for the console and/or the file at path, truncating the file
func Open(console bool, filePath string, format Format) (*Recorder, error) {
	opts := []Option{WithFormat(format)}
	if console {
		opts = append(opts, WithWriter(os.Stdout))
	}

	var file *os.File
	if filePath != "" {
		f, err := os.OpenFile(filePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening record file: %w", err)
		}
		file = f
		opts = append(opts, WithWriter(f))
	}

	r := New(opts...)
	r.file = file
	return r, nil
}

// Enabled reports whether the recorder has any destination
func (r *Recorder) Enabled() bool {
	return len(r.writers) > 0
}

// Record implements webhook.Recorder
func (r *Recorder) Record(wh webhook.ReceivedWebhook, verdict webhook.Verdict) error {
	if !r.Enabled() {
		return nil
	}

	entry, err := r.render(wh, verdict)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, w := range r.writers {
		if _, err := w.Write(entry); err != nil {
			return fmt.Errorf("writing record: %w", err)
		}
	}
	return nil
}

func (r *Recorder) render(wh webhook.ReceivedWebhook, verdict webhook.Verdict) ([]byte, error) {
	var (
		body []byte
		err  error
	)
	switch r.format {
	case YAML:
		body, err = payload.YAML(wh)
	default:
		body, err = payload.Indent(wh)
		body = append(body, '\n')
	}
	if err != nil {
		return nil, fmt.Errorf("rendering webhook: %w", err)
	}

	timestamp := r.now().UTC().Format("2006-01-02T15:04:05.000Z")
	entry := fmt.Sprintf("Webhook received at %s:\n%s", timestamp, body)
	if verdict.Checked() {
		entry += verdict.Message() + "\n"
	}
	entry += "\n"
	return []byte(entry), nil
}

// Close closes the record file, if any
func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}
