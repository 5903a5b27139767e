package chi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReceiver struct {
	mu       sync.Mutex
	status   int
	accepted []webhook.ReceivedWebhook
}

func (f *fakeReceiver) StatusCode() int {
	return f.status
}

func (f *fakeReceiver) Accept(wh webhook.ReceivedWebhook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accepted = append(f.accepted, wh)
}

func TestPostWebhook(t *testing.T) {
	ctx := context.Background()

	t.Run("responds with the configured status and accepts the webhook", func(t *testing.T) {
		receiver := &fakeReceiver{status: http.StatusAccepted}
		h := WebhookHandlers(ctx, receiver, Options{})

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a": 1}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Halm-Webhook-Id", "1")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Empty(t, w.Body.String())
		require.Len(t, receiver.accepted, 1)
		assert.JSONEq(t, `{"a":1}`, string(receiver.accepted[0].Body))
		assert.Equal(t, "1", receiver.accepted[0].Headers.Get("x-halm-webhook-id"))
		assert.Equal(t, "example.com", receiver.accepted[0].Headers.Get("host"))
	})

	t.Run("captures an empty body as an empty object", func(t *testing.T) {
		receiver := &fakeReceiver{status: http.StatusOK}
		h := WebhookHandlers(ctx, receiver, Options{})

		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, receiver.accepted, 1)
		assert.Equal(t, "{}", string(receiver.accepted[0].Body))
	})

	t.Run("rejects malformed json without accepting", func(t *testing.T) {
		receiver := &fakeReceiver{status: http.StatusOK}
		h := WebhookHandlers(ctx, receiver, Options{})

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"a":`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, receiver.accepted)
	})

	t.Run("rejects a json scalar without accepting", func(t *testing.T) {
		receiver := &fakeReceiver{status: http.StatusOK}
		h := WebhookHandlers(ctx, receiver, Options{})

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`42`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, receiver.accepted)
	})

	t.Run("captures bodies of other content types as an empty object", func(t *testing.T) {
		for _, contentType := range []string{"", "text/plain", "application/x-www-form-urlencoded", "application/jsonx"} {
			receiver := &fakeReceiver{status: http.StatusOK}
			h := WebhookHandlers(ctx, receiver, Options{})

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json at all`))
			if contentType != "" {
				req.Header.Set("Content-Type", contentType)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code, contentType)
			require.Len(t, receiver.accepted, 1, contentType)
			assert.Equal(t, "{}", string(receiver.accepted[0].Body), contentType)
		}
	})

	t.Run("serves a custom path", func(t *testing.T) {
		receiver := &fakeReceiver{status: http.StatusNotFound}
		h := WebhookHandlers(ctx, receiver, Options{Path: "/hooks"})

		req := httptest.NewRequest(http.MethodPost, "/hooks", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Len(t, receiver.accepted, 1)
	})
}

func TestWebhookHandlers_MethodNotAllowed(t *testing.T) {
	receiver := &fakeReceiver{status: http.StatusOK}
	h := WebhookHandlers(context.Background(), receiver, Options{})

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(method, "/", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
	}
	assert.Empty(t, receiver.accepted)
}

func TestHealth(t *testing.T) {
	h := WebhookHandlers(context.Background(), &fakeReceiver{status: http.StatusOK}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}
