// Package api provides HTTP handlers for CrewDesk endpoints.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crewdeskhq/crewdesk/internal/ledger"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/crewdeskhq/crewdesk/internal/store"
)

// customerCreateResult is the response body for POST /v1/customers.
// SyncJobID is null when an identical sync job was already pending.
type customerCreateResult struct {
	Customer  *models.Customer `json:"customer"`
	SyncJobID *string          `json:"sync_job_id"`
}

// timeEntryCreateResult is the response body for POST /v1/time-entries.
type timeEntryCreateResult struct {
	TimeEntry *models.TimeEntry `json:"time_entry"`
	CostJobID *string           `json:"cost_job_id"`
}

func (s *Server) listJobsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listJobsHandler: processing list request", "query", r.URL.RawQuery)

	var filter store.JobFilter
	q := r.URL.Query()
	if status := q.Get("status"); status != "" {
		filter.Status = store.JobStatus(status)
		if !store.IsValidJobStatus(filter.Status) {
			slog.Warn("Server.listJobsHandler: unknown status", "status", status)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown status: "+status))
			return
		}
	}
	filter.JobType = q.Get("job_type")
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit"))
			return
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid offset"))
			return
		}
		filter.Offset = offset
	}

	jobs, err := s.st.ListJobs(filter)
	if err != nil {
		slog.Error("Server.listJobsHandler: failed to list jobs", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list jobs"))
		return
	}
	slog.Debug("Server.listJobsHandler: jobs fetched", "count", len(jobs))
	writeJSONResponse(w, http.StatusOK, models.Success(jobs))
}

func (s *Server) getJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	slog.Debug("Server.getJobHandler: processing get request", "jobID", jobID)

	job, err := s.st.GetJob(jobID)
	if err != nil {
		slog.Error("Server.getJobHandler: failed to get job", "error", err, "jobID", jobID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to get job"))
		return
	}
	if job == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Job not found"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(job))
}

func (s *Server) retryJobHandler(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	slog.Debug("Server.retryJobHandler: processing retry request", "jobID", jobID)

	err := s.st.ForceRetryJob(jobID)
	switch {
	case errors.Is(err, store.ErrJobNotFound):
		slog.Warn("Server.retryJobHandler: job not found", "jobID", jobID)
		writeJSONResponse(w, http.StatusNotFound, models.Error("Job not found"))
		return
	case errors.Is(err, store.ErrJobNotFailed):
		slog.Warn("Server.retryJobHandler: job not in FAILED state", "jobID", jobID)
		writeJSONResponse(w, http.StatusConflict, models.Error("Job is not in FAILED state"))
		return
	case err != nil:
		slog.Error("Server.retryJobHandler: failed to force retry", "error", err, "jobID", jobID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to retry job"))
		return
	}

	slog.Info("Server.retryJobHandler: job queued for retry", "jobID", jobID)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Job queued for retry", nil))
}

func (s *Server) createCustomerHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createCustomerHandler: processing create request")

	var req models.CustomerCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createCustomerHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createCustomerHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	customer := &models.Customer{
		Name:  req.Name,
		Email: req.Email,
		Phone: req.Phone,
	}
	if err := s.st.SaveCustomer(customer); err != nil {
		slog.Error("Server.createCustomerHandler: failed to save customer", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save customer"))
		return
	}

	job, err := s.st.EnqueueJob(ledger.JobTypeSyncCustomer, map[string]any{"customer_id": customer.ID})
	if err != nil {
		slog.Error("Server.createCustomerHandler: failed to enqueue sync job", "error", err, "customerID", customer.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Customer saved but sync enqueue failed"))
		return
	}

	result := customerCreateResult{Customer: customer}
	if job != nil {
		result.SyncJobID = &job.ID
	}
	slog.Info("Server.createCustomerHandler: customer created", "customerID", customer.ID, "deduped", job == nil)
	writeJSONResponse(w, http.StatusCreated, models.Queued(result))
}

func (s *Server) listCustomersHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.listCustomersHandler: processing list request", "query", r.URL.RawQuery)

	limit, offset := 0, 0
	q := r.URL.Query()
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit"))
			return
		}
		limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid offset"))
			return
		}
		offset = n
	}

	customers, err := s.st.ListCustomers(limit, offset)
	if err != nil {
		slog.Error("Server.listCustomersHandler: failed to list customers", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list customers"))
		return
	}
	slog.Debug("Server.listCustomersHandler: customers fetched", "count", len(customers))
	writeJSONResponse(w, http.StatusOK, models.Success(customers))
}

func (s *Server) createProjectHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createProjectHandler: processing create request")

	var req models.ProjectCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createProjectHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createProjectHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	customer, err := s.st.GetCustomer(req.CustomerID)
	if err != nil {
		slog.Error("Server.createProjectHandler: failed to look up customer", "error", err, "customerID", req.CustomerID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up customer"))
		return
	}
	if customer == nil {
		slog.Warn("Server.createProjectHandler: customer not found", "customerID", req.CustomerID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Customer not found"))
		return
	}

	project := &models.Project{
		CustomerID: req.CustomerID,
		Name:       req.Name,
	}
	if err := s.st.SaveProject(project); err != nil {
		slog.Error("Server.createProjectHandler: failed to save project", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save project"))
		return
	}

	slog.Info("Server.createProjectHandler: project created", "projectID", project.ID, "customerID", project.CustomerID)
	writeJSONResponse(w, http.StatusCreated, models.Success(project))
}

func (s *Server) createTimeEntryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	slog.Debug("Server.createTimeEntryHandler: processing create request")

	var req models.TimeEntryCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.createTimeEntryHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := req.Validate(); err != nil {
		slog.Warn("Server.createTimeEntryHandler: validation failed", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	project, err := s.st.GetProject(req.ProjectID)
	if err != nil {
		slog.Error("Server.createTimeEntryHandler: failed to look up project", "error", err, "projectID", req.ProjectID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to look up project"))
		return
	}
	if project == nil {
		slog.Warn("Server.createTimeEntryHandler: project not found", "projectID", req.ProjectID)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Project not found"))
		return
	}

	entry := &models.TimeEntry{
		ProjectID:       req.ProjectID,
		Minutes:         req.Minutes,
		HourlyCostCents: req.HourlyCostCents,
		WorkDate:        req.WorkDate,
	}
	if err := s.st.SaveTimeEntry(entry); err != nil {
		slog.Error("Server.createTimeEntryHandler: failed to save time entry", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to save time entry"))
		return
	}

	job, err := s.st.EnqueueJob(ledger.JobTypePostTimeEntryCost, map[string]any{"time_entry_id": entry.ID})
	if err != nil {
		slog.Error("Server.createTimeEntryHandler: failed to enqueue cost job", "error", err, "timeEntryID", entry.ID)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Time entry saved but cost enqueue failed"))
		return
	}

	result := timeEntryCreateResult{TimeEntry: entry}
	if job != nil {
		result.CostJobID = &job.ID
	}
	slog.Info("Server.createTimeEntryHandler: time entry recorded", "timeEntryID", entry.ID, "minutes", entry.Minutes)
	writeJSONResponse(w, http.StatusCreated, models.Queued(result))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	// A cheap read doubles as a storage connectivity check.
	if _, err := s.st.ListJobs(store.JobFilter{Limit: 1}); err != nil {
		slog.Warn("Health check: storage probe failed", "error", err)
		healthData["status"] = "degraded"
		healthData["error"] = "Failed to reach job storage"
	}

	statusCode := http.StatusOK
	if healthData["status"] == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, healthData)
}
