package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/casestar/casestar-client/internal/bootstrap"
	"github.com/casestar/casestar-client/internal/config"
)

const version = "0.1.0"

func main() {
	config.LoadDotEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &command{
		stdout: os.Stdout,
		stderr: os.Stderr,
		cfg:    config.Load(),
		newApp: bootstrap.New,
	}
	os.Exit(cmd.run(ctx, os.Args[1:]))
}
