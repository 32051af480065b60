// Package config loads CrewDesk configuration from the environment.
//
// cmd/crewdesk additionally accepts flags that override these values;
// cmd/crewdesk-worker is configured entirely through the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
)

// Worker holds configuration for the background worker process.
type Worker struct {
	DBDSN       string `env:"CREWDESK_DB_DSN"`
	DatabaseURL string `env:"DATABASE_URL"`

	WorkerID     string        `env:"CREWDESK_WORKER_ID"`
	PollInterval time.Duration `env:"CREWDESK_POLL_INTERVAL" envDefault:"5s"`
	BatchSize    int           `env:"CREWDESK_BATCH_SIZE" envDefault:"10"`
	LeaseTTL     time.Duration `env:"CREWDESK_LEASE_TTL" envDefault:"5m"`
	Concurrency  int           `env:"CREWDESK_WORKER_CONCURRENCY" envDefault:"4"`
	DrainTimeout time.Duration `env:"CREWDESK_DRAIN_TIMEOUT" envDefault:"30s"`
	MaxAttempts  int           `env:"CREWDESK_MAX_ATTEMPTS" envDefault:"3"`

	VaultSecret string `env:"CREWDESK_VAULT_SECRET,notEmpty"`

	LedgerBaseURL      string `env:"CREWDESK_LEDGER_BASE_URL"`
	LedgerTokenURL     string `env:"CREWDESK_LEDGER_TOKEN_URL"`
	LedgerClientID     string `env:"CREWDESK_LEDGER_CLIENT_ID"`
	LedgerClientSecret string `env:"CREWDESK_LEDGER_CLIENT_SECRET"`
	LedgerRealmID      string `env:"CREWDESK_LEDGER_REALM_ID"`

	TwilioAccountSID string `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string `env:"TWILIO_AUTH_TOKEN"`
	TwilioFromNumber string `env:"TWILIO_FROM_NUMBER"`

	SyncSweepSchedule string `env:"CREWDESK_SYNC_SWEEP_SCHEDULE"`
}

// Server holds configuration for the API server process.
type Server struct {
	Addr        string `env:"CREWDESK_API_ADDR" envDefault:":8080"`
	DBDSN       string `env:"CREWDESK_DB_DSN"`
	DatabaseURL string `env:"DATABASE_URL"`
}

// LoadWorker parses worker configuration from the environment.
func LoadWorker() (*Worker, error) {
	var c Worker
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse worker config: %w", err)
	}
	if c.DBDSN == "" {
		c.DBDSN = c.DatabaseURL
	}
	if c.DBDSN == "" {
		return nil, fmt.Errorf("CREWDESK_DB_DSN or DATABASE_URL must be set")
	}
	if c.WorkerID == "" {
		c.WorkerID = "worker-" + uuid.NewString()
	}
	return &c, nil
}

// LoadServer parses API server configuration from the environment. An empty
// DSN is allowed here; cmd/crewdesk falls back to a SQLite file in its state
// directory.
func LoadServer() (*Server, error) {
	var c Server
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	if c.DBDSN == "" {
		c.DBDSN = c.DatabaseURL
	}
	return &c, nil
}

// TwilioConfigured reports whether all Twilio settings are present.
func (c *Worker) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// LedgerConfigured reports whether the ledger client settings are present.
func (c *Worker) LedgerConfigured() bool {
	return c.LedgerBaseURL != "" && c.LedgerTokenURL != "" && c.LedgerClientID != "" && c.LedgerClientSecret != ""
}
