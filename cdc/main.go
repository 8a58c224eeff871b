package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/imkonsowa/restaurant-qa/config"
	"github.com/imkonsowa/restaurant-qa/events"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	cfg := config.LoadConfig()
	cfg.Log.Setup()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	errChan := make(chan error, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := events.Connect(&cfg.Nats)
	if err != nil {
		log.Fatal(err)
	}
	defer nc.Close()

	listener := NewListener(cfg, nc)
	defer listener.Close(context.Background())

	go func() {
		errChan <- listener.Run(ctx)
	}()

	select {
	case err := <-errChan:
		log.Fatalln("Error:", err)
	case <-shutdown:
		slog.Info("Shutting down...")
		cancel()

		// wait until listener.Run returns
		<-errChan
	}

	flushCtx, cancelFlush := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelFlush()
	if err := nc.Flush(flushCtx); err != nil {
		slog.Warn("unpublished catalog events", "err", err)
	}
}
