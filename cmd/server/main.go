//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/VisualDNA/pkg/logger"
	"github.com/himanishpuri/VisualDNA/pkg/visualdna"
)

var (
	configPath     string
	port           int
	dbPath         string
	tempDir        string
	allowedOrigins string
)

func init() {
	flag.StringVar(&configPath, "config", "visualdna.toml", "Configuration file path")
	flag.IntVar(&port, "port", 0, "HTTP server port (default from config, 8080)")
	flag.StringVar(&dbPath, "db", "", "Path to SQLite database (env: VISUALDNA_DB_PATH)")
	flag.StringVar(&tempDir, "temp", "", "Temporary directory (env: VISUALDNA_TEMP_DIR)")
	flag.StringVar(&allowedOrigins, "origins", "", "Comma-separated list of allowed CORS origins (use * for all)")
}

// loadConfig layers the command line over the config file and environment.
func loadConfig() (*visualdna.Config, error) {
	cfg, err := visualdna.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dbPath != "" {
		cfg.Storage.DBPath = dbPath
	}
	if tempDir != "" {
		cfg.Storage.TempDir = tempDir
	}
	if allowedOrigins != "" {
		origins := strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.Server.AllowedOrigins = origins
	}
	return cfg, cfg.Validate()
}

func main() {
	flag.Parse()
	log := logger.GetLogger()
	defer log.Sync()

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log.SetFormat(cfg.Log.Format)
	log.SetLevel(level)

	service, err := visualdna.NewService(visualdna.WithConfig(*cfg))
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := NewServer(service, cfg)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := server.Start(ctx, srv); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
