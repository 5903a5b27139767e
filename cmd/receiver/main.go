package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marcelsud/webhook-receiver/config"
	"github.com/marcelsud/webhook-receiver/listener"
	"github.com/marcelsud/webhook-receiver/supervisor"
)

/* receiver - starts a webhook listener and keeps it running until interrupted
 * Usage: receiver [port] [status] [console] [file]
 * Defaults: 3000 200 true true
 */

func main() {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	// The supervisor re-executes this binary to run the listener
	if len(os.Args) > 1 && os.Args[1] == listener.ChildCommand {
		if err := listener.ServeChild(ctx, os.Args[2:]); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	cfg.ConsoleOutput = true
	cfg.FileOutput = true
	if err := cfg.ApplyArgs(os.Args[1:]); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	s := supervisor.New(supervisor.WithConfig(*cfg))
	if err := s.Setup(ctx, cfg.Port, cfg.StatusCode, cfg.ConsoleOutput, cfg.FileOutput); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	<-ctx.Done()
	s.StopSafe()
}
