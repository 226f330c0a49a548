package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/yungbote/huddle-backend/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to init app: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Start(); err != nil {
		a.Log.Error("start failed", "error", err)
		_ = a.Close(context.Background())
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(":" + a.Cfg.Port) }()

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			a.Log.Error("server exited", "error", err)
			exitCode = 1
		}
	case <-ctx.Done():
		a.Log.Info("Shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := a.Close(shutdownCtx); err != nil {
		fmt.Printf("shutdown: %v\n", err)
	}
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
