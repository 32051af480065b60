// CrewDesk API server binary. It owns the admin HTTP surface; background job
// execution lives in cmd/crewdesk-worker.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crewdeskhq/crewdesk/internal/api"
	"github.com/crewdeskhq/crewdesk/internal/config"
	"github.com/crewdeskhq/crewdesk/internal/store"
	"github.com/crewdeskhq/crewdesk/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for CrewDesk state data
	DefaultStateDir = "/var/lib/crewdesk"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "crewdesk.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	cfg := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(cfg)

	// Ensure required directories exist
	if err := ensureStateDirExists(*flags.dbDSN); err != nil {
		slog.Error("Failed to create state directory", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(*flags.dbDSN)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	srv := api.NewServer(st, api.WithAddr(*flags.apiAddr))

	// Shut down cleanly on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		slog.Info("Shutdown signal received", "signal", s.String())
		cancel()
	}()

	slog.Info("Bootstrapping CrewDesk API server", "addr", *flags.apiAddr, "dsn_set", *flags.dbDSN != "")
	if err := srv.Run(ctx); err != nil {
		slog.Error("CrewDesk API server failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("CrewDesk API server exited successfully")
}

// Flags holds command line flag values
type Flags struct {
	dbDSN   *string
	apiAddr *string
}

// initializeLogger sets up structured logging. CREWDESK_DEBUG=true enables
// debug-level output.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("CREWDESK_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() *config.Server {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if cfg.DBDSN == "" {
		cfg.DBDSN = filepath.Join(DefaultStateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", cfg.DBDSN)
	}

	slog.Debug("environment variables loaded",
		"CREWDESK_API_ADDR", cfg.Addr,
		"CREWDESK_DB_DSN_SET", cfg.DBDSN != "")

	return cfg
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(cfg *config.Server) Flags {
	flags := Flags{
		dbDSN:   flag.String("db-dsn", cfg.DBDSN, "database DSN (overrides $CREWDESK_DB_DSN or $DATABASE_URL)"),
		apiAddr: flag.String("api-addr", cfg.Addr, "API server address (overrides $CREWDESK_API_ADDR)"),
	}

	flag.Parse()

	slog.Debug("flags parsed", "dbDSN_set", *flags.dbDSN != "", "apiAddr", *flags.apiAddr)

	return flags
}

// ensureStateDirExists creates the parent directory for file-based databases.
func ensureStateDirExists(dsn string) error {
	if store.DetectDSNType(dsn) != store.DSNTypeSQLite {
		return nil
	}
	stateDir := filepath.Dir(dsn)
	slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
	return os.MkdirAll(stateDir, 0755)
}
