package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/s3kfm/lezhure-maps/catalog"
	"github.com/s3kfm/lezhure-maps/internal/config"
	"github.com/s3kfm/lezhure-maps/mapsvc"
	"github.com/s3kfm/lezhure-maps/runner"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 50051, "The gRPC server port")
	maxSessions := flag.Int("max-sessions", 0, "Maximum number of map sessions to keep in memory (0 uses the config value)")
	eventsPath := flag.String("events", "", "Default event source (.json, .zst, .db)")
	dataDir := flag.String("data", "data/events", "Directory for event snapshots")
	configPath := flag.String("config", "", "Visual config JSON file")
	flag.Parse()

	cfg := &config.VisualConfig{}
	if *configPath != "" {
		var err error
		cfg, err = config.LoadVisualConfig(*configPath)
		if err != nil {
			fmt.Printf("Failed to load config: %v\n", err)
			os.Exit(1)
		}
	}

	var events *catalog.Catalog
	if *eventsPath != "" {
		var err error
		events, err = catalog.Open(context.Background(), *eventsPath)
		if err != nil {
			fmt.Printf("Failed to load events: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Loaded %d events from %s\n", events.Len(), *eventsPath)
	}

	// Create listener
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *port))
	if err != nil {
		fmt.Printf("Failed to listen: %v\n", err)
		os.Exit(1)
	}

	// Create gRPC server
	s := grpc.NewServer()
	mapRunner := runner.NewMapRunner(runner.Options{
		MaxSessions: *maxSessions,
		Catalog:     events,
		DataDir:     *dataDir,
		Config:      cfg,
	})
	defer mapRunner.Close()
	mapsvc.RegisterMapServiceServer(s, mapRunner)

	// Enable reflection for debugging
	reflection.Register(s)

	// Handle shutdown gracefully
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		fmt.Println("\nShutting down gRPC server...")
		s.GracefulStop()
	}()

	// Start server
	fmt.Printf("Starting gRPC server on port %d...\n", *port)
	if err := s.Serve(lis); err != nil {
		fmt.Printf("Failed to serve: %v\n", err)
		os.Exit(1)
	}
}
