package ipc

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePair returns two connected streams, like a parent and its child
func pipePair(t *testing.T) (*Stream, *Stream) {
	t.Helper()
	downR, downW := io.Pipe()
	upR, upW := io.Pipe()

	parent := NewStream(upR, downW)
	child := NewStream(downR, upW)
	t.Cleanup(func() {
		parent.Close()
		child.Close()
	})
	return parent, child
}

func receive(t *testing.T, link Link) Message {
	t.Helper()
	select {
	case msg, ok := <-link.Messages():
		require.True(t, ok, "link closed")
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestStream(t *testing.T) {
	ctx := context.Background()

	t.Run("control messages flow to the child", func(t *testing.T) {
		parent, child := pipePair(t)

		require.NoError(t, parent.Send(ctx, ClearHooksMessage()))
		require.NoError(t, parent.Send(ctx, ChangeStatusMessage(404)))

		assert.True(t, receive(t, child).ClearHooks)
		assert.Equal(t, 404, receive(t, child).ChangeStatus)
	})

	t.Run("events flow to the parent in order", func(t *testing.T) {
		parent, child := pipePair(t)

		wh := webhook.ReceivedWebhook{
			Headers: webhook.Headers{"x-halm-webhook-id": {"42"}},
			Body:    json.RawMessage(`{"a":1}`),
		}
		go func() {
			child.Send(ctx, ReadyMessage(3000))
			child.Send(ctx, WebhookMessage(wh, webhook.MatchedSecondary))
		}()

		ready := receive(t, parent)
		require.NotNil(t, ready.Ready)
		assert.Equal(t, 3000, ready.Ready.Port)

		event := receive(t, parent)
		require.NotNil(t, event.Webhook)
		assert.Equal(t, wh, *event.Webhook)
		assert.Equal(t, "matched_secondary", event.Verdict)
	})

	t.Run("messages channel closes when the peer closes", func(t *testing.T) {
		parent, child := pipePair(t)
		require.NoError(t, child.Close())

		select {
		case _, ok := <-parent.Messages():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("messages channel not closed")
		}
	})

	t.Run("send fails after close", func(t *testing.T) {
		parent, _ := pipePair(t)
		require.NoError(t, parent.Close())

		err := parent.Send(ctx, ClearHooksMessage())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "writing message")
	})

	t.Run("send honours a cancelled context", func(t *testing.T) {
		parent, _ := pipePair(t)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		assert.ErrorIs(t, parent.Send(cancelled, ClearHooksMessage()), context.Canceled)
	})
}

func TestMessageJSON(t *testing.T) {
	data, err := json.Marshal(ClearHooksMessage())
	require.NoError(t, err)
	assert.JSONEq(t, `{"clearHooks":true}`, string(data))

	data, err = json.Marshal(ChangeStatusMessage(404))
	require.NoError(t, err)
	assert.JSONEq(t, `{"changeStatus":404}`, string(data))
}
