package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/crewdeskhq/crewdesk/internal/store"
	"github.com/crewdeskhq/crewdesk/internal/worker"
)

// Job types handled by the sync processor.
const (
	JobTypeSyncCustomer      = "sync_customer"
	JobTypeSyncProject       = "sync_project"
	JobTypePostTimeEntryCost = "post_time_entry_cost"
)

// Entity map type names.
const (
	EntityTypeCustomer      = "customer"
	EntityTypeProject       = "project"
	EntityTypeTimeEntryCost = "time_entry_cost"
)

// syncStore is the slice of the store the processors need.
type syncStore interface {
	store.CustomerRepo
	store.ProjectRepo
	store.TimeEntryRepo
	store.EntityMapRepo
}

type syncCustomerPayload struct {
	CustomerID string `json:"customer_id"`
	RealmID    string `json:"realm_id"`
}

type syncProjectPayload struct {
	ProjectID string `json:"project_id"`
	RealmID   string `json:"realm_id"`
}

type postCostPayload struct {
	TimeEntryID string `json:"time_entry_id"`
	RealmID     string `json:"realm_id"`
}

// Processor executes the ledger sync job types. Handlers are idempotent:
// an entity that already carries a ledger reference is skipped, so retries
// and duplicate jobs never create duplicate remote records.
type Processor struct {
	store   syncStore
	tokens  *TokenManager
	client  *Client
	realmID string
}

// NewProcessor creates the sync processor. realmID is the default realm used
// when a job payload does not name one.
func NewProcessor(st syncStore, tokens *TokenManager, client *Client, realmID string) *Processor {
	return &Processor{store: st, tokens: tokens, client: client, realmID: realmID}
}

// Register installs the sync handlers on the registry.
func (p *Processor) Register(r *worker.Registry) {
	r.Register(JobTypeSyncCustomer, p.HandleSyncCustomer)
	r.Register(JobTypeSyncProject, p.HandleSyncProject)
	r.Register(JobTypePostTimeEntryCost, p.HandlePostTimeEntryCost)
}

func (p *Processor) realm(override string) string {
	if override != "" {
		return override
	}
	return p.realmID
}

// HandleSyncCustomer creates the remote counterpart of a local customer.
func (p *Processor) HandleSyncCustomer(ctx context.Context, payload string) error {
	var body syncCustomerPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return worker.NonRetryable(fmt.Errorf("sync_customer payload: %w", err))
	}
	if body.CustomerID == "" {
		return worker.NonRetryable(errors.New("sync_customer payload missing customer_id"))
	}
	_, err := p.ensureCustomerSynced(ctx, p.realm(body.RealmID), body.CustomerID)
	return err
}

// HandleSyncProject creates the remote counterpart of a local project,
// syncing its customer first when needed.
func (p *Processor) HandleSyncProject(ctx context.Context, payload string) error {
	var body syncProjectPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return worker.NonRetryable(fmt.Errorf("sync_project payload: %w", err))
	}
	if body.ProjectID == "" {
		return worker.NonRetryable(errors.New("sync_project payload missing project_id"))
	}
	_, err := p.ensureProjectSynced(ctx, p.realm(body.RealmID), body.ProjectID)
	return err
}

// HandlePostTimeEntryCost posts a time entry's labor cost to the ledger,
// syncing the project (and transitively the customer) first when needed.
func (p *Processor) HandlePostTimeEntryCost(ctx context.Context, payload string) error {
	var body postCostPayload
	if err := json.Unmarshal([]byte(payload), &body); err != nil {
		return worker.NonRetryable(fmt.Errorf("post_time_entry_cost payload: %w", err))
	}
	if body.TimeEntryID == "" {
		return worker.NonRetryable(errors.New("post_time_entry_cost payload missing time_entry_id"))
	}
	realmID := p.realm(body.RealmID)

	entry, err := p.store.GetTimeEntry(body.TimeEntryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return worker.NonRetryable(fmt.Errorf("time entry %s not found", body.TimeEntryID))
	}
	if entry.LedgerCostID != "" {
		slog.Debug("Processor.HandlePostTimeEntryCost: already posted", "timeEntryID", entry.ID, "ledgerCostID", entry.LedgerCostID)
		return nil
	}

	remoteProject, err := p.ensureProjectSynced(ctx, realmID, entry.ProjectID)
	if err != nil {
		return err
	}

	accessToken, err := p.tokens.AccessToken(ctx, realmID)
	if err != nil {
		return err
	}
	remote, err := p.client.PostCost(ctx, accessToken, realmID, CostCreate{
		ProjectID:   remoteProject.ID,
		AmountCents: entry.CostCents(),
		WorkDate:    entry.WorkDate,
		Description: fmt.Sprintf("%d minutes on %s", entry.Minutes, entry.WorkDate),
	})
	if err != nil {
		return classify(err)
	}

	if err := p.store.SetTimeEntryLedgerCostID(entry.ID, remote.ID); err != nil {
		return err
	}
	if err := p.store.UpsertEntityMap(EntityTypeTimeEntryCost, entry.ID, remote.ID, remote.SyncToken); err != nil {
		return err
	}
	slog.Info("Processor: cost posted", "timeEntryID", entry.ID, "ledgerCostID", remote.ID, "amountCents", entry.CostCents())
	return nil
}

// ensureCustomerSynced returns the remote identity of a customer, creating
// the remote record if it does not exist yet.
func (p *Processor) ensureCustomerSynced(ctx context.Context, realmID, customerID string) (*RemoteEntity, error) {
	customer, err := p.store.GetCustomer(customerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, worker.NonRetryable(fmt.Errorf("customer %s not found", customerID))
	}
	if customer.LedgerID != "" {
		slog.Debug("Processor.ensureCustomerSynced: already synced", "customerID", customer.ID, "ledgerID", customer.LedgerID)
		return &RemoteEntity{ID: customer.LedgerID, SyncToken: customer.LedgerSyncToken}, nil
	}

	accessToken, err := p.tokens.AccessToken(ctx, realmID)
	if err != nil {
		return nil, err
	}
	remote, err := p.client.CreateCustomer(ctx, accessToken, realmID, CustomerCreate{
		Name:  customer.Name,
		Email: customer.Email,
		Phone: customer.Phone,
	})
	if err != nil {
		return nil, classify(err)
	}

	if err := p.store.SetCustomerLedgerRef(customer.ID, remote.ID, remote.SyncToken); err != nil {
		return nil, err
	}
	if err := p.store.UpsertEntityMap(EntityTypeCustomer, customer.ID, remote.ID, remote.SyncToken); err != nil {
		return nil, err
	}
	slog.Info("Processor: customer synced", "customerID", customer.ID, "ledgerID", remote.ID)
	return remote, nil
}

// ensureProjectSynced returns the remote identity of a project, creating the
// remote record (and the customer's, when needed) if it does not exist yet.
func (p *Processor) ensureProjectSynced(ctx context.Context, realmID, projectID string) (*RemoteEntity, error) {
	project, err := p.store.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, worker.NonRetryable(fmt.Errorf("project %s not found", projectID))
	}
	if project.LedgerID != "" {
		slog.Debug("Processor.ensureProjectSynced: already synced", "projectID", project.ID, "ledgerID", project.LedgerID)
		return &RemoteEntity{ID: project.LedgerID, SyncToken: project.LedgerSyncToken}, nil
	}

	parent, err := p.ensureCustomerSynced(ctx, realmID, project.CustomerID)
	if err != nil {
		return nil, err
	}

	accessToken, err := p.tokens.AccessToken(ctx, realmID)
	if err != nil {
		return nil, err
	}
	remote, err := p.client.CreateProject(ctx, accessToken, realmID, ProjectCreate{
		Name:     project.Name,
		ParentID: parent.ID,
	})
	if err != nil {
		return nil, classify(err)
	}

	if err := p.store.SetProjectLedgerRef(project.ID, remote.ID, remote.SyncToken); err != nil {
		return nil, err
	}
	if err := p.store.UpsertEntityMap(EntityTypeProject, project.ID, remote.ID, remote.SyncToken); err != nil {
		return nil, err
	}
	slog.Info("Processor: project synced", "projectID", project.ID, "ledgerID", remote.ID)
	return remote, nil
}

// classify maps ledger API failures onto the worker's retry semantics.
// Client errors will not succeed on retry; server errors, rate limits and
// transport failures might.
func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Temporary() {
		return worker.NonRetryable(err)
	}
	return err
}

// EnqueueUnsyncedCustomers enqueues a sync job for every customer that has no
// ledger record yet. Pending-window dedup makes overlapping sweeps safe.
func EnqueueUnsyncedCustomers(jobs store.JobRepo, customers store.CustomerRepo, limit int) (int, error) {
	unsynced, err := customers.ListUnsyncedCustomers(limit)
	if err != nil {
		return 0, fmt.Errorf("list unsynced customers: %w", err)
	}

	enqueued := 0
	for _, c := range unsynced {
		job, err := jobs.EnqueueJob(JobTypeSyncCustomer, map[string]any{"customer_id": c.ID})
		if err != nil {
			return enqueued, fmt.Errorf("enqueue sync for customer %s: %w", c.ID, err)
		}
		if job != nil {
			enqueued++
		}
	}
	if enqueued > 0 {
		slog.Info("EnqueueUnsyncedCustomers: enqueued sync jobs", "count", enqueued)
	}
	return enqueued, nil
}
