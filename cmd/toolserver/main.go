// Package main is the entry point for the stock tool server, an HTTP
// gateway the reasoning engine calls tools through.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cognigate/cognigate/internal/observability"
	"github.com/cognigate/cognigate/internal/tools"
)

func main() {
	port := flag.Int("port", 8601, "port to listen on")
	timeout := flag.Duration("timeout", 300*time.Second, "per-invocation timeout")
	flag.Parse()

	logger := observability.NewLogger(observability.LoggerConfig{
		Output:     os.Stdout,
		JSONFormat: true,
	}, observability.NewRedactor())

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry)

	srv := tools.NewServer(registry, *timeout, logger.Logger)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", *port),
		Handler:     srv.Routes(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("tool server listening", "port", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("tool server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("tool server shutdown error", "error", err)
	}
	logger.Info("tool server stopped")
}
