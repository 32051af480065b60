package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestCustomerCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CustomerCreateRequest
		wantErr error
	}{
		{
			name:    "valid customer",
			req:     CustomerCreateRequest{Name: "Maple Ridge Plumbing", Email: "office@mapleridge.example", Phone: "+15550001111"},
			wantErr: nil,
		},
		{
			name:    "name only",
			req:     CustomerCreateRequest{Name: "Harbor Electric"},
			wantErr: nil,
		},
		{
			name:    "empty name",
			req:     CustomerCreateRequest{Email: "a@b.example"},
			wantErr: ErrEmptyCustomerName,
		},
		{
			name:    "name too long",
			req:     CustomerCreateRequest{Name: strings.Repeat("x", MaxCustomerNameLength+1)},
			wantErr: ErrCustomerNameTooLong,
		},
		{
			name:    "malformed email",
			req:     CustomerCreateRequest{Name: "Harbor Electric", Email: "not-an-email"},
			wantErr: ErrInvalidEmail,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestProjectCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ProjectCreateRequest
		wantErr error
	}{
		{
			name:    "valid project",
			req:     ProjectCreateRequest{CustomerID: "cus_abc", Name: "Kitchen remodel"},
			wantErr: nil,
		},
		{
			name:    "missing customer",
			req:     ProjectCreateRequest{Name: "Kitchen remodel"},
			wantErr: ErrEmptyCustomerID,
		},
		{
			name:    "empty name",
			req:     ProjectCreateRequest{CustomerID: "cus_abc"},
			wantErr: ErrEmptyProjectName,
		},
		{
			name:    "name too long",
			req:     ProjectCreateRequest{CustomerID: "cus_abc", Name: strings.Repeat("x", MaxProjectNameLength+1)},
			wantErr: ErrProjectNameTooLong,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeEntryCreateRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     TimeEntryCreateRequest
		wantErr error
	}{
		{
			name:    "valid entry",
			req:     TimeEntryCreateRequest{ProjectID: "prj_abc", Minutes: 90, HourlyCostCents: 8500, WorkDate: "2026-08-20"},
			wantErr: nil,
		},
		{
			name:    "missing project",
			req:     TimeEntryCreateRequest{Minutes: 90, WorkDate: "2026-08-20"},
			wantErr: ErrEmptyProjectID,
		},
		{
			name:    "zero minutes",
			req:     TimeEntryCreateRequest{ProjectID: "prj_abc", Minutes: 0, WorkDate: "2026-08-20"},
			wantErr: ErrInvalidMinutes,
		},
		{
			name:    "too many minutes",
			req:     TimeEntryCreateRequest{ProjectID: "prj_abc", Minutes: MaxMinutesPerEntry + 1, WorkDate: "2026-08-20"},
			wantErr: ErrInvalidMinutes,
		},
		{
			name:    "negative cost",
			req:     TimeEntryCreateRequest{ProjectID: "prj_abc", Minutes: 60, HourlyCostCents: -1, WorkDate: "2026-08-20"},
			wantErr: ErrInvalidHourlyCost,
		},
		{
			name:    "bad work date",
			req:     TimeEntryCreateRequest{ProjectID: "prj_abc", Minutes: 60, WorkDate: "08/20/2026"},
			wantErr: ErrInvalidWorkDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTimeEntryCostCents(t *testing.T) {
	tests := []struct {
		name  string
		entry TimeEntry
		want  int64
	}{
		{"whole hour", TimeEntry{Minutes: 60, HourlyCostCents: 8500}, 8500},
		{"half hour", TimeEntry{Minutes: 30, HourlyCostCents: 8500}, 4250},
		{"ninety minutes", TimeEntry{Minutes: 90, HourlyCostCents: 10000}, 15000},
		{"zero cost rate", TimeEntry{Minutes: 120, HourlyCostCents: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.CostCents(); got != tt.want {
				t.Errorf("CostCents() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	resp := Success(map[string]string{"id": "cus_123"})
	if resp.Status != string(APIStatusOK) {
		t.Errorf("Success() status = %q, want %q", resp.Status, APIStatusOK)
	}

	resp = Error("something broke")
	if resp.Status != string(APIStatusError) || resp.Message != "something broke" {
		t.Errorf("Error() = %+v, want error status with message", resp)
	}

	resp = QueuedWithMessage("sync scheduled", map[string]string{"job_id": "job_123"})
	if resp.Status != string(APIStatusQueued) || resp.Message != "sync scheduled" {
		t.Errorf("QueuedWithMessage() = %+v", resp)
	}

	// Envelope must omit empty fields on the wire.
	data, err := json.Marshal(Success(nil))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"status":"ok"}` {
		t.Errorf("Success(nil) marshaled to %s, want {\"status\":\"ok\"}", data)
	}
}
