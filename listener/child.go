package listener

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/marcelsud/webhook-receiver/config"
	"github.com/marcelsud/webhook-receiver/ipc"
	redislink "github.com/marcelsud/webhook-receiver/ipc/redis"
	"github.com/rs/zerolog"
)

// Pipe descriptors inherited from the supervisor
const (
	controlFD = 3
	eventsFD  = 4
)

/* ServeChild runs the listener inside a child process
 * args are the positional startup arguments; the rest of the configuration
 * comes from the environment prepared by the supervisor
 */
func ServeChild(ctx context.Context, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}
	if err := cfg.ApplyArgs(args); err != nil {
		return err
	}

	level := zerolog.WarnLevel
	if cfg.ConsoleOutput {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Str("component", "listener").Logger()

	link, err := openLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer link.Close()

	srv, err := New(*cfg, link, WithLogger(logger))
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

func openLink(ctx context.Context, cfg *config.Config) (ipc.Link, error) {
	if cfg.UsesRedis() {
		link, err := redislink.NewLink(ctx, redislink.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Session:  cfg.Session,
			Role:     redislink.Listener,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis link: %w", err)
		}
		return link, nil
	}

	control := os.NewFile(controlFD, "control")
	events := os.NewFile(eventsFD, "events")
	if control == nil || events == nil {
		return nil, errors.New("control and event pipes are not available")
	}
	return ipc.NewStream(control, events), nil
}
