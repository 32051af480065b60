// Package store provides the repositories for back-office entities and their ledger mappings.
package store

import (
	"errors"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/models"
)

// ErrEntityNotFound is returned when an update targets a record that does not exist.
var ErrEntityNotFound = errors.New("store: entity not found")

// CustomerRepo defines the interface for customer persistence.
type CustomerRepo interface {
	// SaveCustomer inserts a new customer. A missing ID or timestamps are filled in.
	SaveCustomer(c *models.Customer) error

	// GetCustomer retrieves a customer by ID, or (nil, nil) if it does not exist.
	GetCustomer(id string) (*models.Customer, error)

	// ListCustomers returns customers, newest first.
	ListCustomers(limit, offset int) ([]models.Customer, error)

	// ListUnsyncedCustomers returns customers with no ledger record yet, oldest first.
	ListUnsyncedCustomers(limit int) ([]models.Customer, error)

	// SetCustomerLedgerRef records the remote ledger identity of a customer.
	SetCustomerLedgerRef(id, ledgerID, syncToken string) error
}

// ProjectRepo defines the interface for project persistence.
type ProjectRepo interface {
	// SaveProject inserts a new project. A missing ID or timestamps are filled in.
	SaveProject(p *models.Project) error

	// GetProject retrieves a project by ID, or (nil, nil) if it does not exist.
	GetProject(id string) (*models.Project, error)

	// SetProjectLedgerRef records the remote ledger identity of a project.
	SetProjectLedgerRef(id, ledgerID, syncToken string) error
}

// TimeEntryRepo defines the interface for time entry persistence.
type TimeEntryRepo interface {
	// SaveTimeEntry inserts a new time entry. A missing ID or timestamps are filled in.
	SaveTimeEntry(e *models.TimeEntry) error

	// GetTimeEntry retrieves a time entry by ID, or (nil, nil) if it does not exist.
	GetTimeEntry(id string) (*models.TimeEntry, error)

	// SetTimeEntryLedgerCostID records the remote cost record posted for a time entry.
	SetTimeEntryLedgerCostID(id, ledgerCostID string) error
}

// EntityMapRow links a local record to its remote ledger counterpart.
type EntityMapRow struct {
	EntityType      string    `json:"entity_type"`
	LocalID         string    `json:"local_id"`
	LedgerID        string    `json:"ledger_id"`
	LedgerSyncToken string    `json:"ledger_sync_token"`
	SyncedAt        time.Time `json:"synced_at"`
}

// EntityMapRepo tracks which local records already exist in the ledger.
type EntityMapRepo interface {
	// UpsertEntityMap records or refreshes the ledger identity of a local record.
	UpsertEntityMap(entityType, localID, ledgerID, syncToken string) error

	// GetEntityMap retrieves a mapping, or (nil, nil) if the record was never synced.
	GetEntityMap(entityType, localID string) (*EntityMapRow, error)
}
