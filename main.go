package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"

	"github.com/spf13/viper"
)

func main() {
	cfg, err := config.Load(viper.New())
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sf, err := buildStorefront(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storefront: %v", err)
	}

	consumerDone := sf.startFulfillmentConsumer(ctx)
	go sweepSessions(ctx, sf.deps.Sessions, time.Minute)

	app := newApp(sf.deps)
	go func() {
		log.Printf("Starting server on port %s", cfg.AppPort)
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Printf("Server stopped: %v", err)
			stop()
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	if consumerDone != nil {
		<-consumerDone
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sf.close(closeCtx)

	log.Println("Server gracefully stopped")
}
