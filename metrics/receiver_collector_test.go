package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReceiverCollector_NewReceiverCollector(t *testing.T) {
	t.Run("creates collector with zeroed verdicts", func(t *testing.T) {
		collector := NewReceiverCollector(webhook.NewHistory(), func() int { return 200 })

		assert.NotNil(t, collector)
		verdicts, err := collector.GetVerdictCounts(context.Background())
		require.NoError(t, err)
		assert.Len(t, verdicts, 4)
		for _, count := range verdicts {
			assert.Zero(t, count)
		}
	})
}

func TestReceiverCollector_Collect(t *testing.T) {
	ctx := context.Background()
	history := webhook.NewHistory()
	history.Append(webhook.ReceivedWebhook{Body: []byte(`{}`)})
	history.Append(webhook.ReceivedWebhook{Body: []byte(`{}`)})

	collector := NewReceiverCollector(history, func() int { return 404 })
	collector.Observe(webhook.MatchedPrimary)
	collector.Observe(webhook.MatchedPrimary)
	collector.Observe(webhook.NoMatch)

	m, err := collector.Collect(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), m.Received)
	assert.Equal(t, int64(2), m.HistoryLength)
	assert.Equal(t, int64(404), m.StatusCode)
	assert.Equal(t, int64(2), m.Verdicts["matched_primary"])
	assert.Equal(t, int64(1), m.Verdicts["no_match"])
	assert.Equal(t, int64(0), m.Verdicts["not_checked"])
	assert.False(t, m.Timestamp.IsZero())
}

func TestReceiverCollector_NilSources(t *testing.T) {
	collector := NewReceiverCollector(nil, nil)

	length, err := collector.GetHistoryLength(context.Background())
	require.NoError(t, err)
	assert.Zero(t, length)

	status, err := collector.GetStatusCode(context.Background())
	require.NoError(t, err)
	assert.Zero(t, status)
}

func TestReceiverCollector_GetVerdictCountsReturnsCopy(t *testing.T) {
	collector := NewReceiverCollector(nil, nil)
	verdicts, _ := collector.GetVerdictCounts(context.Background())
	verdicts["no_match"] = 42

	again, _ := collector.GetVerdictCounts(context.Background())
	assert.Zero(t, again["no_match"])
}

func TestOTelExporter_ServeHTTP(t *testing.T) {
	history := webhook.NewHistory()
	history.Append(webhook.ReceivedWebhook{Body: []byte(`{}`)})
	collector := NewReceiverCollector(history, func() int { return 202 })
	collector.Observe(webhook.MatchedSecondary)

	exporter, err := NewOTelExporter(collector)
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	srv := httptest.NewServer(exporter.ServeHTTP())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "webhook_history_length")
	assert.Contains(t, string(body), "webhook_verdict_count")
	assert.Contains(t, string(body), `webhook_verdict="matched_secondary"`)
	assert.Contains(t, string(body), "webhook_response_status")
}

func TestOTelExporter_SeparateRegistries(t *testing.T) {
	first, err := NewOTelExporter(NewReceiverCollector(nil, nil))
	require.NoError(t, err)
	second, err := NewOTelExporter(NewReceiverCollector(nil, nil))
	require.NoError(t, err)

	assert.NoError(t, first.Shutdown(context.Background()))
	assert.NoError(t, second.Shutdown(context.Background()))
}
