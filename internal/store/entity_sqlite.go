package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/crewdeskhq/crewdesk/internal/util"
)

// Compile-time checks that SQLiteStore implements the entity repositories.
var (
	_ CustomerRepo  = (*SQLiteStore)(nil)
	_ ProjectRepo   = (*SQLiteStore)(nil)
	_ TimeEntryRepo = (*SQLiteStore)(nil)
	_ EntityMapRepo = (*SQLiteStore)(nil)
)

// SaveCustomer inserts a new customer record.
func (s *SQLiteStore) SaveCustomer(c *models.Customer) error {
	if c.ID == "" {
		c.ID = util.GenerateRandomID("cus_", 32)
	}
	if c.CreatedAt.IsZero() {
		now := time.Now()
		c.CreatedAt = now
		c.UpdatedAt = now
	}

	query := `
		INSERT INTO customers (id, name, email, phone, ledger_id, ledger_sync_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, c.ID, c.Name, c.Email, c.Phone, c.LedgerID, c.LedgerSyncToken, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveCustomer failed", "error", err, "id", c.ID)
		return fmt.Errorf("save customer failed: %w", err)
	}
	slog.Debug("SQLiteStore.SaveCustomer succeeded", "id", c.ID, "name", c.Name)
	return nil
}

// GetCustomer retrieves a customer by ID.
func (s *SQLiteStore) GetCustomer(id string) (*models.Customer, error) {
	query := `SELECT id, name, email, phone, ledger_id, ledger_sync_token, created_at, updated_at
		  FROM customers WHERE id = ?`

	var c models.Customer
	err := s.db.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Email, &c.Phone, &c.LedgerID, &c.LedgerSyncToken, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetCustomer not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetCustomer failed", "error", err, "id", id)
		return nil, fmt.Errorf("get customer failed: %w", err)
	}
	return &c, nil
}

// ListCustomers retrieves customers, newest first.
func (s *SQLiteStore) ListCustomers(limit, offset int) ([]models.Customer, error) {
	limit = clampListLimit(limit)
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, name, email, phone, ledger_id, ledger_sync_token, created_at, updated_at
		  FROM customers ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := s.db.Query(query, limit, offset)
	if err != nil {
		slog.Error("SQLiteStore.ListCustomers failed", "error", err)
		return nil, fmt.Errorf("list customers failed: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.LedgerID, &c.LedgerSyncToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
			slog.Error("SQLiteStore.ListCustomers scan failed", "error", err)
			return nil, fmt.Errorf("scan customer row failed: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore.ListCustomers rows error", "error", err)
		return nil, fmt.Errorf("iterate customer rows failed: %w", err)
	}
	return customers, nil
}

// ListUnsyncedCustomers retrieves customers with no ledger record yet, oldest first.
func (s *SQLiteStore) ListUnsyncedCustomers(limit int) ([]models.Customer, error) {
	limit = clampListLimit(limit)

	query := `SELECT id, name, email, phone, ledger_id, ledger_sync_token, created_at, updated_at
		  FROM customers WHERE ledger_id = '' ORDER BY created_at ASC LIMIT ?`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		slog.Error("SQLiteStore.ListUnsyncedCustomers failed", "error", err)
		return nil, fmt.Errorf("list unsynced customers failed: %w", err)
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.LedgerID, &c.LedgerSyncToken, &c.CreatedAt, &c.UpdatedAt); err != nil {
			slog.Error("SQLiteStore.ListUnsyncedCustomers scan failed", "error", err)
			return nil, fmt.Errorf("scan customer row failed: %w", err)
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore.ListUnsyncedCustomers rows error", "error", err)
		return nil, fmt.Errorf("iterate customer rows failed: %w", err)
	}
	return customers, nil
}

// SetCustomerLedgerRef records the remote ledger identity of a customer.
func (s *SQLiteStore) SetCustomerLedgerRef(id, ledgerID, syncToken string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE customers SET ledger_id = ?, ledger_sync_token = ?, updated_at = ? WHERE id = ?`,
		ledgerID, syncToken, now, id,
	)
	if err != nil {
		slog.Error("SQLiteStore.SetCustomerLedgerRef failed", "error", err, "id", id)
		return fmt.Errorf("set customer ledger ref failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("set customer ledger ref %s: %w", id, ErrEntityNotFound)
	}
	slog.Debug("SQLiteStore.SetCustomerLedgerRef succeeded", "id", id, "ledgerID", ledgerID)
	return nil
}

// SaveProject inserts a new project record.
func (s *SQLiteStore) SaveProject(p *models.Project) error {
	if p.ID == "" {
		p.ID = util.GenerateRandomID("prj_", 32)
	}
	if p.CreatedAt.IsZero() {
		now := time.Now()
		p.CreatedAt = now
		p.UpdatedAt = now
	}

	query := `
		INSERT INTO projects (id, customer_id, name, ledger_id, ledger_sync_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, p.ID, p.CustomerID, p.Name, p.LedgerID, p.LedgerSyncToken, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveProject failed", "error", err, "id", p.ID)
		return fmt.Errorf("save project failed: %w", err)
	}
	slog.Debug("SQLiteStore.SaveProject succeeded", "id", p.ID, "customerID", p.CustomerID)
	return nil
}

// GetProject retrieves a project by ID.
func (s *SQLiteStore) GetProject(id string) (*models.Project, error) {
	query := `SELECT id, customer_id, name, ledger_id, ledger_sync_token, created_at, updated_at
		  FROM projects WHERE id = ?`

	var p models.Project
	err := s.db.QueryRow(query, id).Scan(
		&p.ID, &p.CustomerID, &p.Name, &p.LedgerID, &p.LedgerSyncToken, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetProject not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetProject failed", "error", err, "id", id)
		return nil, fmt.Errorf("get project failed: %w", err)
	}
	return &p, nil
}

// SetProjectLedgerRef records the remote ledger identity of a project.
func (s *SQLiteStore) SetProjectLedgerRef(id, ledgerID, syncToken string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE projects SET ledger_id = ?, ledger_sync_token = ?, updated_at = ? WHERE id = ?`,
		ledgerID, syncToken, now, id,
	)
	if err != nil {
		slog.Error("SQLiteStore.SetProjectLedgerRef failed", "error", err, "id", id)
		return fmt.Errorf("set project ledger ref failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("set project ledger ref %s: %w", id, ErrEntityNotFound)
	}
	slog.Debug("SQLiteStore.SetProjectLedgerRef succeeded", "id", id, "ledgerID", ledgerID)
	return nil
}

// SaveTimeEntry inserts a new time entry record.
func (s *SQLiteStore) SaveTimeEntry(e *models.TimeEntry) error {
	if e.ID == "" {
		e.ID = util.GenerateRandomID("ts_", 32)
	}
	if e.CreatedAt.IsZero() {
		now := time.Now()
		e.CreatedAt = now
		e.UpdatedAt = now
	}

	query := `
		INSERT INTO time_entries (id, project_id, minutes, hourly_cost_cents, work_date, ledger_cost_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.Exec(query, e.ID, e.ProjectID, e.Minutes, e.HourlyCostCents, e.WorkDate, e.LedgerCostID, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore.SaveTimeEntry failed", "error", err, "id", e.ID)
		return fmt.Errorf("save time entry failed: %w", err)
	}
	slog.Debug("SQLiteStore.SaveTimeEntry succeeded", "id", e.ID, "projectID", e.ProjectID)
	return nil
}

// GetTimeEntry retrieves a time entry by ID.
func (s *SQLiteStore) GetTimeEntry(id string) (*models.TimeEntry, error) {
	query := `SELECT id, project_id, minutes, hourly_cost_cents, work_date, ledger_cost_id, created_at, updated_at
		  FROM time_entries WHERE id = ?`

	var e models.TimeEntry
	err := s.db.QueryRow(query, id).Scan(
		&e.ID, &e.ProjectID, &e.Minutes, &e.HourlyCostCents, &e.WorkDate, &e.LedgerCostID, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetTimeEntry not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetTimeEntry failed", "error", err, "id", id)
		return nil, fmt.Errorf("get time entry failed: %w", err)
	}
	return &e, nil
}

// SetTimeEntryLedgerCostID records the remote cost record posted for a time entry.
func (s *SQLiteStore) SetTimeEntryLedgerCostID(id, ledgerCostID string) error {
	now := time.Now()
	result, err := s.db.Exec(
		`UPDATE time_entries SET ledger_cost_id = ?, updated_at = ? WHERE id = ?`,
		ledgerCostID, now, id,
	)
	if err != nil {
		slog.Error("SQLiteStore.SetTimeEntryLedgerCostID failed", "error", err, "id", id)
		return fmt.Errorf("set time entry ledger cost id failed: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("set time entry ledger cost id %s: %w", id, ErrEntityNotFound)
	}
	slog.Debug("SQLiteStore.SetTimeEntryLedgerCostID succeeded", "id", id, "ledgerCostID", ledgerCostID)
	return nil
}

// UpsertEntityMap records or refreshes the ledger identity of a local record.
func (s *SQLiteStore) UpsertEntityMap(entityType, localID, ledgerID, syncToken string) error {
	now := time.Now()

	query := `
		INSERT INTO entity_map (entity_type, local_id, ledger_id, ledger_sync_token, synced_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, local_id)
		DO UPDATE SET
			ledger_id = EXCLUDED.ledger_id,
			ledger_sync_token = EXCLUDED.ledger_sync_token,
			synced_at = EXCLUDED.synced_at`

	_, err := s.db.Exec(query, entityType, localID, ledgerID, syncToken, now)
	if err != nil {
		slog.Error("SQLiteStore.UpsertEntityMap failed", "error", err, "entityType", entityType, "localID", localID)
		return fmt.Errorf("upsert entity map failed: %w", err)
	}
	slog.Debug("SQLiteStore.UpsertEntityMap succeeded", "entityType", entityType, "localID", localID, "ledgerID", ledgerID)
	return nil
}

// GetEntityMap retrieves a mapping by entity type and local ID.
func (s *SQLiteStore) GetEntityMap(entityType, localID string) (*EntityMapRow, error) {
	query := `SELECT entity_type, local_id, ledger_id, ledger_sync_token, synced_at
		  FROM entity_map WHERE entity_type = ? AND local_id = ?`

	var row EntityMapRow
	err := s.db.QueryRow(query, entityType, localID).Scan(
		&row.EntityType, &row.LocalID, &row.LedgerID, &row.LedgerSyncToken, &row.SyncedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetEntityMap failed", "error", err, "entityType", entityType, "localID", localID)
		return nil, fmt.Errorf("get entity map failed: %w", err)
	}
	return &row, nil
}
