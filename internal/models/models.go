// Package models defines the core data structures for CrewDesk.
//
// It includes types for customers, projects, and time entries, which are shared across modules.
package models

import (
	"errors"
	"strings"
	"time"
)

// Validation constants for input validation
const (
	// MaxCustomerNameLength defines the maximum allowed length for customer names
	MaxCustomerNameLength = 200
	// MaxProjectNameLength defines the maximum allowed length for project names
	MaxProjectNameLength = 200
	// MaxNotificationBodyLength defines the maximum allowed length for SMS notification bodies
	MaxNotificationBodyLength = 1600
	// MaxMinutesPerEntry defines the maximum minutes a single time entry may record
	MaxMinutesPerEntry = 24 * 60
	// WorkDateLayout is the expected format for time entry work dates
	WorkDateLayout = "2006-01-02"
)

// Error variables for better error handling and testability
var (
	ErrEmptyCustomerName   = errors.New("customer name cannot be empty")
	ErrCustomerNameTooLong = errors.New("customer name exceeds maximum length")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrEmptyCustomerID     = errors.New("customer_id is required")
	ErrEmptyProjectName    = errors.New("project name cannot be empty")
	ErrProjectNameTooLong  = errors.New("project name exceeds maximum length")
	ErrEmptyProjectID      = errors.New("project_id is required")
	ErrInvalidMinutes      = errors.New("minutes must be between 1 and 1440")
	ErrInvalidHourlyCost   = errors.New("hourly_cost_cents cannot be negative")
	ErrInvalidWorkDate     = errors.New("work_date must be in YYYY-MM-DD format")
)

// Customer represents a billable customer of the business.
type Customer struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	LedgerID        string    `json:"ledger_id,omitempty"`         // remote accounting record, empty until synced
	LedgerSyncToken string    `json:"ledger_sync_token,omitempty"` // remote revision token
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Project represents a job site or engagement for a customer.
type Project struct {
	ID              string    `json:"id"`
	CustomerID      string    `json:"customer_id"`
	Name            string    `json:"name"`
	LedgerID        string    `json:"ledger_id,omitempty"`
	LedgerSyncToken string    `json:"ledger_sync_token,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TimeEntry represents labor recorded against a project.
type TimeEntry struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	Minutes         int       `json:"minutes"`
	HourlyCostCents int       `json:"hourly_cost_cents"`
	WorkDate        string    `json:"work_date"`                // YYYY-MM-DD
	LedgerCostID    string    `json:"ledger_cost_id,omitempty"` // remote cost record, empty until posted
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CostCents returns the total labor cost of the entry in cents.
func (e *TimeEntry) CostCents() int64 {
	return int64(e.Minutes) * int64(e.HourlyCostCents) / 60
}

// CustomerCreateRequest represents the payload for creating a customer.
type CustomerCreateRequest struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Validate validates a CustomerCreateRequest.
func (r *CustomerCreateRequest) Validate() error {
	if r.Name == "" {
		return ErrEmptyCustomerName
	}
	if len(r.Name) > MaxCustomerNameLength {
		return ErrCustomerNameTooLong
	}
	if r.Email != "" && !strings.Contains(r.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}

// ProjectCreateRequest represents the payload for creating a project.
type ProjectCreateRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Name       string `json:"name" validate:"required"`
}

// Validate validates a ProjectCreateRequest.
func (r *ProjectCreateRequest) Validate() error {
	if r.CustomerID == "" {
		return ErrEmptyCustomerID
	}
	if r.Name == "" {
		return ErrEmptyProjectName
	}
	if len(r.Name) > MaxProjectNameLength {
		return ErrProjectNameTooLong
	}
	return nil
}

// TimeEntryCreateRequest represents the payload for recording a time entry.
type TimeEntryCreateRequest struct {
	ProjectID       string `json:"project_id" validate:"required"`
	Minutes         int    `json:"minutes" validate:"required"`
	HourlyCostCents int    `json:"hourly_cost_cents"`
	WorkDate        string `json:"work_date" validate:"required"`
}

// Validate validates a TimeEntryCreateRequest.
func (r *TimeEntryCreateRequest) Validate() error {
	if r.ProjectID == "" {
		return ErrEmptyProjectID
	}
	if r.Minutes <= 0 || r.Minutes > MaxMinutesPerEntry {
		return ErrInvalidMinutes
	}
	if r.HourlyCostCents < 0 {
		return ErrInvalidHourlyCost
	}
	if _, err := time.Parse(WorkDateLayout, r.WorkDate); err != nil {
		return ErrInvalidWorkDate
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusQueued indicates an API request resulted in enqueued background work.
	APIStatusQueued APIStatus = "queued"
)

// API Response types for consistent JSON responses

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{
		response: APIResponse{},
	}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Convenience functions for common response patterns

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and optional result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Queued creates a queued API response with optional result data.
func Queued(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusQueued).
		WithResult(result).
		Build()
}

// QueuedWithMessage creates a queued API response with a message and optional result data.
func QueuedWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusQueued).
		WithMessage(message).
		WithResult(result).
		Build()
}
