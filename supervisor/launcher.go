package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/marcelsud/webhook-receiver/config"
	"github.com/marcelsud/webhook-receiver/ipc"
	redislink "github.com/marcelsud/webhook-receiver/ipc/redis"
	"github.com/marcelsud/webhook-receiver/listener"
	"github.com/rs/zerolog"
)

// Launcher starts one listener for the given configuration
type Launcher interface {
	Launch(ctx context.Context, cfg config.Config) (Handle, error)
}

// Handle controls a running listener
type Handle interface {
	// Link is the supervisor end of the duplex link
	Link() ipc.Link
	// Kill stops the listener without waiting for in-flight work
	Kill() error
	// Done is closed once the listener has exited
	Done() <-chan struct{}
	// Err returns the exit error once Done is closed
	Err() error
}

/* ProcessLauncher runs the listener as a child process
 * The link uses two pipes inherited as fds 3 (control) and 4 (events),
 * or Redis pub/sub when the configuration names a Redis address
 */
type ProcessLauncher struct {
	Path   string
	Args   []string
	Env    []string
	Stdout io.Writer
	Stderr io.Writer
}

// SelfLauncher re-executes the current binary as a listener child
func SelfLauncher() *ProcessLauncher {
	path, err := os.Executable()
	if err != nil {
		path = os.Args[0]
	}
	return &ProcessLauncher{
		Path:   path,
		Args:   []string{listener.ChildCommand},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Launch starts the child; it does not wait for it to be ready
func (p *ProcessLauncher) Launch(ctx context.Context, cfg config.Config) (Handle, error) {
	cmd := exec.Command(p.Path, append(append([]string{}, p.Args...), cfg.Args()...)...)
	cmd.Stdout = p.Stdout
	cmd.Stderr = p.Stderr

	h := &processHandle{cmd: cmd, done: make(chan struct{})}

	if cfg.UsesRedis() {
		cfg.Session = redislink.NewSession()
		// Subscribe before the child starts so its ready event is not missed
		link, err := redislink.NewLink(ctx, redislink.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Session:  cfg.Session,
			Role:     redislink.Supervisor,
		})
		if err != nil {
			return nil, fmt.Errorf("opening redis link: %w", err)
		}
		h.link = link
		h.closeOnExit = true
	} else {
		controlR, controlW, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("creating control pipe: %w", err)
		}
		eventsR, eventsW, err := os.Pipe()
		if err != nil {
			controlR.Close()
			controlW.Close()
			return nil, fmt.Errorf("creating events pipe: %w", err)
		}
		cmd.ExtraFiles = []*os.File{controlR, eventsW}
		h.link = ipc.NewStream(eventsR, controlW)
		h.childFiles = []*os.File{controlR, eventsW}
	}

	cmd.Env = append(append(os.Environ(), cfg.Environ()...), p.Env...)

	if err := cmd.Start(); err != nil {
		h.closeChildFiles()
		h.link.Close()
		return nil, fmt.Errorf("starting listener process: %w", err)
	}
	// The child holds its own copies now
	h.closeChildFiles()

	go h.wait()
	return h, nil
}

type processHandle struct {
	cmd         *exec.Cmd
	link        ipc.Link
	childFiles  []*os.File
	closeOnExit bool
	done        chan struct{}
	err         error
}

func (h *processHandle) Link() ipc.Link {
	return h.link
}

// Kill sends SIGKILL and closes the link
func (h *processHandle) Kill() error {
	err := h.cmd.Process.Kill()
	h.link.Close()
	if err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing listener process: %w", err)
	}
	return nil
}

func (h *processHandle) Done() <-chan struct{} {
	return h.done
}

func (h *processHandle) Err() error {
	<-h.done
	return h.err
}

func (h *processHandle) wait() {
	h.err = h.cmd.Wait()
	if h.closeOnExit {
		// Redis subscriptions never end on their own
		h.link.Close()
	}
	close(h.done)
}

func (h *processHandle) closeChildFiles() {
	for _, f := range h.childFiles {
		f.Close()
	}
	h.childFiles = nil
}

/* InProcessLauncher runs the listener on a goroutine of the current process
 * The link is a pair of in-memory pipes; Kill cancels the listener
 */
type InProcessLauncher struct {
	Logger zerolog.Logger
}

// Launch starts the listener goroutine
func (l InProcessLauncher) Launch(ctx context.Context, cfg config.Config) (Handle, error) {
	downR, downW := io.Pipe()
	upR, upW := io.Pipe()
	parent := ipc.NewStream(upR, downW)
	child := ipc.NewStream(downR, upW)

	srv, err := listener.New(cfg, child, listener.WithLogger(l.Logger))
	if err != nil {
		parent.Close()
		child.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &inProcessHandle{link: parent, cancel: cancel, done: make(chan struct{})}
	go func() {
		h.err = srv.Run(runCtx)
		child.Close()
		close(h.done)
	}()
	return h, nil
}

type inProcessHandle struct {
	link   ipc.Link
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	once   sync.Once
}

func (h *inProcessHandle) Link() ipc.Link {
	return h.link
}

func (h *inProcessHandle) Kill() error {
	h.once.Do(func() {
		h.cancel()
		h.link.Close()
	})
	return nil
}

func (h *inProcessHandle) Done() <-chan struct{} {
	return h.done
}

func (h *inProcessHandle) Err() error {
	<-h.done
	return h.err
}
