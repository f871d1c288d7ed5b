package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/s3kfm/lezhure-maps/api"
	"github.com/s3kfm/lezhure-maps/mapsvc"
)

func main() {
	addr := flag.String("addr", ":8000", "HTTP listen address")
	runnerAddr := flag.String("runner", "localhost:50051", "gRPC address of the map runner")
	flag.Parse()

	// Connect to map runner
	conn, err := mapsvc.Dial(*runnerAddr)
	if err != nil {
		fmt.Printf("Failed to connect to map runner: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	client := mapsvc.NewClient(conn)
	if resp, err := client.ListSessions(context.Background(), &mapsvc.ListSessionsRequest{}); err == nil {
		fmt.Printf("Runner has %d sessions and %d snapshots\n", len(resp.Sessions), len(resp.Snapshots))
	} else {
		fmt.Printf("Runner not reachable yet: %v\n", err)
	}

	srv := &http.Server{
		Addr:    *addr,
		Handler: api.NewServer(client).Router(gin.Logger()),
	}

	// Create a channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		fmt.Printf("Starting server on %s...\n", *addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Server error: %v\n", err)
		}
	}()

	// Wait for interrupt signal
	<-quit
	fmt.Println("\nShutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		fmt.Printf("Forced shutdown: %v\n", err)
	}
}
