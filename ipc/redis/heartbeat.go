package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultHeartbeatInterval is how often the supervisor refreshes its heartbeat
const DefaultHeartbeatInterval = 10 * time.Second

// Heartbeat is the liveness record the supervisor keeps in Redis
type Heartbeat struct {
	Session       string    `json:"session"`
	Role          string    `json:"role"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// HeartbeatKey returns the key holding the supervisor heartbeat of a session
func HeartbeatKey(session string) string {
	return fmt.Sprintf("%s:%s:heartbeat", channelPrefix, session)
}

// setHeartbeat stores or refreshes the supervisor heartbeat
// The key expires after three intervals, so a dead supervisor disappears on its own
func (l *Link) setHeartbeat(ctx context.Context) error {
	data, err := json.Marshal(Heartbeat{
		Session:       l.session,
		Role:          l.role.String(),
		LastHeartbeat: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := l.client.Set(ctx, HeartbeatKey(l.session), data, 3*l.interval).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}
	return nil
}

// supervisorAlive reports whether the supervisor heartbeat is still present
func (l *Link) supervisorAlive(ctx context.Context) (bool, error) {
	_, err := l.client.Get(ctx, HeartbeatKey(l.session)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("getting heartbeat: %w", err)
	}
	return true, nil
}

// heartbeatLoop refreshes (supervisor) or watches (listener) the heartbeat until the link closes
func (l *Link) heartbeatLoop() {
	defer l.wg.Done()

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), l.interval)
		if l.role == Supervisor {
			l.setHeartbeat(ctx)
			cancel()
			continue
		}

		alive, err := l.supervisorAlive(ctx)
		cancel()
		if err == nil && !alive {
			// Ending the subscription closes Messages, which stops the listener
			l.unsubscribe()
			return
		}
	}
}
