package ipc

import (
	"context"

	"github.com/marcelsud/webhook-receiver/webhook"
)

/* Message is the single envelope exchanged between supervisor and listener
 * Control messages flow down (ClearHooks, ChangeStatus), events flow up (Ready, Webhook)
 */
type Message struct {
	ClearHooks   bool                     `json:"clearHooks,omitempty"`
	ChangeStatus int                      `json:"changeStatus,omitempty"`
	Ready        *Ready                   `json:"ready,omitempty"`
	Webhook      *webhook.ReceivedWebhook `json:"webhook,omitempty"`
	Verdict      string                   `json:"verdict,omitempty"`
}

// Ready announces that the listener socket is bound
type Ready struct {
	Port int `json:"port"`
}

// ClearHooksMessage asks the listener to empty its history
func ClearHooksMessage() Message {
	return Message{ClearHooks: true}
}

// ChangeStatusMessage asks the listener to answer later deliveries with status
func ChangeStatusMessage(status int) Message {
	return Message{ChangeStatus: status}
}

// WebhookMessage relays a delivery and its verdict
func WebhookMessage(wh webhook.ReceivedWebhook, verdict webhook.Verdict) Message {
	return Message{Webhook: &wh, Verdict: verdict.String()}
}

// ReadyMessage announces the bound port
func ReadyMessage(port int) Message {
	return Message{Ready: &Ready{Port: port}}
}

/* Link is one end of the duplex channel between supervisor and listener
 * Messages is closed when the other end goes away
 */
type Link interface {
	Send(ctx context.Context, msg Message) error
	Messages() <-chan Message
	Close() error
}
