package store

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/models"
)

func TestSQLiteStore_Customers_SaveAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)

	c := &models.Customer{Name: "Acme Plumbing", Email: "office@acme.test", Phone: "+15550100"}
	if err := s.SaveCustomer(c); err != nil {
		t.Fatalf("SaveCustomer failed: %v", err)
	}
	if !strings.HasPrefix(c.ID, "cus_") {
		t.Errorf("Expected customer ID with 'cus_' prefix, got %q", c.ID)
	}
	if c.CreatedAt.IsZero() {
		t.Error("Expected created_at to be set")
	}

	got, err := s.GetCustomer(c.ID)
	if err != nil {
		t.Fatalf("GetCustomer failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetCustomer returned nil")
	}
	if got.Name != "Acme Plumbing" || got.Email != "office@acme.test" {
		t.Errorf("Customer not stored correctly: %+v", got)
	}
	if got.LedgerID != "" {
		t.Errorf("Expected empty ledger ID on a new customer, got %q", got.LedgerID)
	}

	missing, err := s.GetCustomer("cus_nope")
	if err != nil {
		t.Fatalf("GetCustomer missing failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing customer, got %+v", missing)
	}
}

func TestSQLiteStore_Customers_ListOrderAndPaging(t *testing.T) {
	s := newTestSQLiteStore(t)

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 3; i++ {
		c := &models.Customer{
			Name:      fmt.Sprintf("Customer %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.SaveCustomer(c); err != nil {
			t.Fatalf("SaveCustomer %d failed: %v", i, err)
		}
		ids = append(ids, c.ID)
	}

	all, err := s.ListCustomers(10, 0)
	if err != nil {
		t.Fatalf("ListCustomers failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 customers, got %d", len(all))
	}
	if all[0].ID != ids[2] {
		t.Errorf("Expected newest customer first, got %q", all[0].ID)
	}

	page, err := s.ListCustomers(1, 1)
	if err != nil {
		t.Fatalf("ListCustomers paged failed: %v", err)
	}
	if len(page) != 1 || page[0].ID != ids[1] {
		t.Errorf("Expected middle customer on page 2, got %+v", page)
	}
}

func TestSQLiteStore_Customers_UnsyncedAndLedgerRef(t *testing.T) {
	s := newTestSQLiteStore(t)

	base := time.Now().Add(-time.Hour)
	older := &models.Customer{Name: "Older", CreatedAt: base, UpdatedAt: base}
	newer := &models.Customer{Name: "Newer", CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)}
	synced := &models.Customer{Name: "Synced", CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)}
	for _, c := range []*models.Customer{older, newer, synced} {
		if err := s.SaveCustomer(c); err != nil {
			t.Fatalf("SaveCustomer failed: %v", err)
		}
	}

	if err := s.SetCustomerLedgerRef(synced.ID, "77", "0"); err != nil {
		t.Fatalf("SetCustomerLedgerRef failed: %v", err)
	}

	unsynced, err := s.ListUnsyncedCustomers(10)
	if err != nil {
		t.Fatalf("ListUnsyncedCustomers failed: %v", err)
	}
	if len(unsynced) != 2 {
		t.Fatalf("Expected 2 unsynced customers, got %d", len(unsynced))
	}
	if unsynced[0].ID != older.ID {
		t.Errorf("Expected oldest unsynced customer first, got %q", unsynced[0].ID)
	}

	got, _ := s.GetCustomer(synced.ID)
	if got.LedgerID != "77" || got.LedgerSyncToken != "0" {
		t.Errorf("Ledger ref not recorded: %+v", got)
	}

	if err := s.SetCustomerLedgerRef("cus_nope", "1", "0"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Expected ErrEntityNotFound, got %v", err)
	}
}

func TestSQLiteStore_Projects_SaveGetAndLedgerRef(t *testing.T) {
	s := newTestSQLiteStore(t)

	p := &models.Project{CustomerID: "cus_1", Name: "Kitchen remodel"}
	if err := s.SaveProject(p); err != nil {
		t.Fatalf("SaveProject failed: %v", err)
	}
	if !strings.HasPrefix(p.ID, "prj_") {
		t.Errorf("Expected project ID with 'prj_' prefix, got %q", p.ID)
	}

	got, err := s.GetProject(p.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got == nil || got.Name != "Kitchen remodel" || got.CustomerID != "cus_1" {
		t.Errorf("Project not stored correctly: %+v", got)
	}

	if err := s.SetProjectLedgerRef(p.ID, "301", "2"); err != nil {
		t.Fatalf("SetProjectLedgerRef failed: %v", err)
	}
	got, _ = s.GetProject(p.ID)
	if got.LedgerID != "301" || got.LedgerSyncToken != "2" {
		t.Errorf("Ledger ref not recorded: %+v", got)
	}

	if err := s.SetProjectLedgerRef("prj_nope", "1", "0"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Expected ErrEntityNotFound, got %v", err)
	}

	missing, err := s.GetProject("prj_nope")
	if err != nil {
		t.Fatalf("GetProject missing failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing project, got %+v", missing)
	}
}

func TestSQLiteStore_TimeEntries_SaveGetAndCostID(t *testing.T) {
	s := newTestSQLiteStore(t)

	e := &models.TimeEntry{ProjectID: "prj_1", Minutes: 90, HourlyCostCents: 4500, WorkDate: "2026-08-12"}
	if err := s.SaveTimeEntry(e); err != nil {
		t.Fatalf("SaveTimeEntry failed: %v", err)
	}
	if !strings.HasPrefix(e.ID, "ts_") {
		t.Errorf("Expected time entry ID with 'ts_' prefix, got %q", e.ID)
	}

	got, err := s.GetTimeEntry(e.ID)
	if err != nil {
		t.Fatalf("GetTimeEntry failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetTimeEntry returned nil")
	}
	if got.Minutes != 90 || got.HourlyCostCents != 4500 || got.WorkDate != "2026-08-12" {
		t.Errorf("Time entry not stored correctly: %+v", got)
	}
	if got.LedgerCostID != "" {
		t.Errorf("Expected empty ledger cost ID, got %q", got.LedgerCostID)
	}

	if err := s.SetTimeEntryLedgerCostID(e.ID, "cost_42"); err != nil {
		t.Fatalf("SetTimeEntryLedgerCostID failed: %v", err)
	}
	got, _ = s.GetTimeEntry(e.ID)
	if got.LedgerCostID != "cost_42" {
		t.Errorf("Expected ledger cost ID 'cost_42', got %q", got.LedgerCostID)
	}

	if err := s.SetTimeEntryLedgerCostID("ts_nope", "cost_1"); !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("Expected ErrEntityNotFound, got %v", err)
	}
}

func TestSQLiteStore_EntityMap_UpsertAndGet(t *testing.T) {
	s := newTestSQLiteStore(t)

	missing, err := s.GetEntityMap("customer", "cus_1")
	if err != nil {
		t.Fatalf("GetEntityMap missing failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unmapped entity, got %+v", missing)
	}

	if err := s.UpsertEntityMap("customer", "cus_1", "77", "0"); err != nil {
		t.Fatalf("UpsertEntityMap failed: %v", err)
	}
	row, err := s.GetEntityMap("customer", "cus_1")
	if err != nil {
		t.Fatalf("GetEntityMap failed: %v", err)
	}
	if row == nil {
		t.Fatal("GetEntityMap returned nil")
	}
	if row.LedgerID != "77" || row.LedgerSyncToken != "0" {
		t.Errorf("Mapping not stored correctly: %+v", row)
	}
	if row.SyncedAt.IsZero() {
		t.Error("Expected synced_at to be set")
	}

	// Re-sync refreshes the mapping in place.
	if err := s.UpsertEntityMap("customer", "cus_1", "77", "3"); err != nil {
		t.Fatalf("UpsertEntityMap (refresh) failed: %v", err)
	}
	row, _ = s.GetEntityMap("customer", "cus_1")
	if row.LedgerSyncToken != "3" {
		t.Errorf("Expected refreshed sync token '3', got %q", row.LedgerSyncToken)
	}

	// The same local ID under a different entity type is a separate mapping.
	if err := s.UpsertEntityMap("project", "cus_1", "301", "0"); err != nil {
		t.Fatalf("UpsertEntityMap (project) failed: %v", err)
	}
	row, _ = s.GetEntityMap("customer", "cus_1")
	if row.LedgerID != "77" {
		t.Errorf("Customer mapping clobbered by project upsert: %+v", row)
	}
}
