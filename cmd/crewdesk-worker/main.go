// CrewDesk worker binary. It claims queued jobs, runs the ledger sync and
// notification processors, and sweeps unsynced customers on a schedule.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/crewdeskhq/crewdesk/internal/config"
	"github.com/crewdeskhq/crewdesk/internal/ledger"
	"github.com/crewdeskhq/crewdesk/internal/lockfile"
	"github.com/crewdeskhq/crewdesk/internal/notify"
	"github.com/crewdeskhq/crewdesk/internal/scheduler"
	"github.com/crewdeskhq/crewdesk/internal/store"
	"github.com/crewdeskhq/crewdesk/internal/util"
	"github.com/crewdeskhq/crewdesk/internal/vault"
	"github.com/crewdeskhq/crewdesk/internal/worker"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	cfg := loadEnvironmentConfig()

	// A SQLite worker must be the only writer against its database file; take
	// the state-dir lock before touching it.
	if store.DetectDSNType(cfg.DBDSN) == store.DSNTypeSQLite {
		stateDir := filepath.Dir(cfg.DBDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			os.Exit(1)
		}
		lock, err := lockfile.AcquireLock(stateDir)
		if err != nil {
			slog.Error("Failed to acquire worker lock", "error", err)
			os.Exit(1)
		}
		defer lock.Release()
	}

	st, err := store.Open(cfg.DBDSN, store.WithMaxAttempts(cfg.MaxAttempts))
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	checkVaultSecret(st, cfg)

	registry := worker.NewRegistry()
	wireLedger(st, cfg, registry)
	wireNotify(st, cfg, registry)

	sched := startSweep(st, cfg)
	if sched != nil {
		defer sched.Stop()
	}

	loop := worker.NewLoop(st, registry,
		worker.WithWorkerID(cfg.WorkerID),
		worker.WithPollInterval(cfg.PollInterval),
		worker.WithBatchSize(cfg.BatchSize),
		worker.WithLeaseTTL(cfg.LeaseTTL),
		worker.WithConcurrency(cfg.Concurrency),
		worker.WithDrainTimeout(cfg.DrainTimeout),
	)

	// Shut down cleanly on SIGINT/SIGTERM; Run drains in-flight jobs first
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		s := <-sig
		slog.Info("Shutdown signal received", "signal", s.String())
		cancel()
	}()

	slog.Info("Bootstrapping CrewDesk worker", "worker_id", cfg.WorkerID, "job_types", registry.Types())
	loop.Run(ctx)
	slog.Info("CrewDesk worker exited successfully")
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

// loadEnvironmentConfig loads worker configuration from environment variables and .env file
func loadEnvironmentConfig() *config.Worker {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Debug("environment variables loaded",
		"CREWDESK_DB_DSN_SET", cfg.DBDSN != "",
		"CREWDESK_WORKER_ID", cfg.WorkerID,
		"CREWDESK_POLL_INTERVAL", cfg.PollInterval,
		"CREWDESK_BATCH_SIZE", cfg.BatchSize,
		"CREWDESK_LEASE_TTL", cfg.LeaseTTL,
		"CREWDESK_WORKER_CONCURRENCY", cfg.Concurrency,
		"ledger_configured", cfg.LedgerConfigured(),
		"twilio_configured", cfg.TwilioConfigured(),
		"CREWDESK_SYNC_SWEEP_SCHEDULE", cfg.SyncSweepSchedule)

	return cfg
}

// checkVaultSecret verifies the configured secret can open the stored ledger
// credential, so a rotated CREWDESK_VAULT_SECRET surfaces at startup instead
// of as a string of failed sync jobs.
func checkVaultSecret(st store.Store, cfg *config.Worker) {
	if !cfg.LedgerConfigured() || cfg.LedgerRealmID == "" {
		return
	}
	cred, err := st.GetLedgerCredential(cfg.LedgerRealmID)
	if err != nil {
		slog.Error("Failed to load ledger credential", "realm_id", cfg.LedgerRealmID, "error", err)
		os.Exit(1)
	}
	if cred == nil {
		slog.Warn("No ledger credential stored for realm; sync jobs will fail until one is provisioned", "realm_id", cfg.LedgerRealmID)
		return
	}
	if _, err := vault.Decrypt(cred.RefreshTokenEnc, cfg.VaultSecret); err != nil {
		slog.Error("Vault secret cannot decrypt the stored ledger credential", "realm_id", cfg.LedgerRealmID, "error", err)
		os.Exit(1)
	}
}

// wireLedger registers the three sync processors when the ledger client is
// configured. Without configuration those job types fail permanently rather
// than retrying forever.
func wireLedger(st store.Store, cfg *config.Worker, registry *worker.Registry) {
	if !cfg.LedgerConfigured() {
		slog.Warn("Ledger credentials not configured; sync jobs will fail permanently")
		return
	}
	client := ledger.NewClient(
		ledger.WithBaseURL(cfg.LedgerBaseURL),
		ledger.WithTokenURL(cfg.LedgerTokenURL),
		ledger.WithClientCredentials(cfg.LedgerClientID, cfg.LedgerClientSecret),
	)
	tokens := ledger.NewTokenManager(st, client, cfg.VaultSecret)
	ledger.NewProcessor(st, tokens, client, cfg.LedgerRealmID).Register(registry)
}

// wireNotify registers the notification processor. Twilio settings are
// optional; without them the processor gets a sender that fails permanently.
func wireNotify(st store.Store, cfg *config.Worker, registry *worker.Registry) {
	var sender notify.SMSSender
	if cfg.TwilioConfigured() {
		client, err := notify.NewTwilioClient(
			notify.WithAccountSID(cfg.TwilioAccountSID),
			notify.WithAuthToken(cfg.TwilioAuthToken),
			notify.WithFromNumber(cfg.TwilioFromNumber),
		)
		if err != nil {
			slog.Error("Failed to build Twilio client", "error", err)
			os.Exit(1)
		}
		sender = client
	} else {
		slog.Warn("Twilio not configured; notification jobs will fail permanently")
		sender = notify.NewDisabledClient()
	}
	notify.NewProcessor(st, sender).Register(registry)
}

// startSweep schedules the unsynced-customer sweep when a cron expression is
// configured. Enqueue dedup keeps overlapping sweeps from double-queueing.
func startSweep(st store.Store, cfg *config.Worker) *scheduler.Scheduler {
	if cfg.SyncSweepSchedule == "" {
		return nil
	}
	if !cfg.LedgerConfigured() {
		slog.Warn("Sync sweep schedule set but ledger is not configured; skipping sweep")
		return nil
	}
	sched := scheduler.NewScheduler()
	err := sched.AddJob(cfg.SyncSweepSchedule, func() {
		if _, err := ledger.EnqueueUnsyncedCustomers(st, st, store.MaxListLimit); err != nil {
			slog.Error("Unsynced customer sweep failed", "error", err)
		}
	})
	if err != nil {
		slog.Error("Invalid sync sweep schedule", "schedule", cfg.SyncSweepSchedule, "error", err)
		os.Exit(1)
	}
	slog.Info("Scheduled unsynced-customer sweep", "schedule", cfg.SyncSweepSchedule)
	return sched
}
