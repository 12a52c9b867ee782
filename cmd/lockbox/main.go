package main

//go:generate swag init -g internal/auth/http/router.go -d ../../ -o ../../api/lockbox --packageName lockbox

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/lockbox/internal/auth/app"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lockbox:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := app.LoadConfig()
	if err != nil {
		return err
	}

	lockbox, err := app.New(cfg)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return lockbox.Run(ctx)
}
