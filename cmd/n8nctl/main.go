// cmd/n8nctl/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/Comunsoft/n8ncisneros/internal/app"
	"github.com/Comunsoft/n8ncisneros/internal/config"
	"github.com/Comunsoft/n8ncisneros/internal/infrastructure/lock"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v\n", err)
	}
}

func run() error {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	allowBackupFailure := flag.Bool("allow-backup-failure", false, "proceed with update even when the pre-update backup fails")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		return fmt.Errorf("missing command, expected one of %v", app.Commands())
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *allowBackupFailure {
		cfg.Update.AllowBackupFailure = true
	}

	// status is read-only and may run alongside another invocation.
	if command != "status" {
		runLock, err := lock.Acquire(cfg.App.LockFile)
		if err != nil {
			return err
		}
		defer runLock.Release()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	return application.Execute(ctx, command)
}
