package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-receiver/ipc"
	"github.com/redis/go-redis/v9"
)

/* Redis Pub/Sub implementation of ipc.Link
 * Lets the supervisor and the listener run on different hosts
 * Channel naming: webhook-receiver:{session}:control and webhook-receiver:{session}:events
 */

const (
	channelPrefix  = "webhook-receiver"
	controlChannel = "control"
	eventsChannel  = "events"
	messageBuffer  = 64
)

// Role selects which end of the link this process is
type Role int

const (
	Supervisor Role = iota + 1
	Listener
)

// String returns the string representation of the role
func (r Role) String() string {
	switch r {
	case Supervisor:
		return "supervisor"
	case Listener:
		return "listener"
	default:
		return "unknown"
	}
}

// Options configures a Link
type Options struct {
	Addr     string
	Password string
	DB       int
	Session  string
	Role     Role

	// HeartbeatInterval defaults to DefaultHeartbeatInterval
	HeartbeatInterval time.Duration
}

type Link struct {
	client   *redis.Client
	pubsub   *redis.PubSub
	publish  string
	session  string
	role     Role
	interval time.Duration
	messages chan ipc.Message
	stop     chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
	subOnce  sync.Once
}

// NewSession returns a fresh session id shared by both ends of a link
func NewSession() string {
	return uuid.New().String()
}

// ChannelName returns the pub/sub channel for a session and direction
func ChannelName(session, direction string) string {
	return fmt.Sprintf("%s:%s:%s", channelPrefix, session, direction)
}

// NewLink connects to Redis and subscribes to the inbound channel of the given role
func NewLink(ctx context.Context, opts Options) (*Link, error) {
	if opts.Session == "" {
		return nil, fmt.Errorf("session is required")
	}

	var subscribe, publish string
	switch opts.Role {
	case Supervisor:
		subscribe, publish = eventsChannel, controlChannel
	case Listener:
		subscribe, publish = controlChannel, eventsChannel
	default:
		return nil, fmt.Errorf("invalid role: %d", opts.Role)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	pubsub := client.Subscribe(ctx, ChannelName(opts.Session, subscribe))
	// Wait for the subscription so nothing published afterwards is missed
	if _, err := pubsub.Receive(pingCtx); err != nil {
		pubsub.Close()
		client.Close()
		return nil, fmt.Errorf("subscribing to %s channel: %w", subscribe, err)
	}

	interval := opts.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}

	l := &Link{
		client:   client,
		pubsub:   pubsub,
		publish:  ChannelName(opts.Session, publish),
		session:  opts.Session,
		role:     opts.Role,
		interval: interval,
		messages: make(chan ipc.Message, messageBuffer),
		stop:     make(chan struct{}),
	}

	if opts.Role == Supervisor {
		if err := l.setHeartbeat(pingCtx); err != nil {
			pubsub.Close()
			client.Close()
			return nil, err
		}
	}

	go l.readLoop(pubsub.Channel())
	l.wg.Add(1)
	go l.heartbeatLoop()
	return l, nil
}

// Send publishes one message to the peer
func (l *Link) Send(ctx context.Context, msg ipc.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	if err := l.client.Publish(ctx, l.publish, data).Err(); err != nil {
		return fmt.Errorf("publishing message: %w", err)
	}
	return nil
}

// Messages returns the messages received from the peer
func (l *Link) Messages() <-chan ipc.Message {
	return l.messages
}

// Close stops the heartbeat, unsubscribes and closes the Redis connection
func (l *Link) Close() error {
	var err error
	l.once.Do(func() {
		close(l.stop)
		l.wg.Wait()

		if l.role == Supervisor {
			ctx, cancel := context.WithTimeout(context.Background(), l.interval)
			l.client.Del(ctx, HeartbeatKey(l.session))
			cancel()
		}

		if perr := l.unsubscribe(); perr != nil {
			err = fmt.Errorf("closing subscription: %w", perr)
		}
		if cerr := l.client.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing client: %w", cerr)
		}
	})
	return err
}

func (l *Link) readLoop(ch <-chan *redis.Message) {
	defer close(l.messages)

	for m := range ch {
		var msg ipc.Message
		if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
			// Not one of ours
			continue
		}
		l.messages <- msg
	}
}

// unsubscribe ends the subscription once, from Close or from the heartbeat watcher
func (l *Link) unsubscribe() error {
	var err error
	l.subOnce.Do(func() {
		err = l.pubsub.Close()
	})
	return err
}
