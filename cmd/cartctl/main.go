package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/example/catering-cart/internal/cli"
	"github.com/example/catering-cart/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "cartctl: failed to load .env: %v\n", err)
		os.Exit(1)
	}

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "cartctl: %v\n", err)
		os.Exit(1)
	}
}
