package ledger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/crewdeskhq/crewdesk/internal/worker"
)

func TestClientRefreshToken(t *testing.T) {
	f := newFakeLedger(t)
	client := f.client()

	resp, err := client.RefreshToken(context.Background(), "refresh-token-1")
	if err != nil {
		t.Fatalf("RefreshToken failed: %v", err)
	}
	if resp.AccessToken != "access-token-2" {
		t.Errorf("Expected access token access-token-2, got %s", resp.AccessToken)
	}
	if resp.RefreshToken != "refresh-token-2" {
		t.Errorf("Expected refresh token refresh-token-2, got %s", resp.RefreshToken)
	}
	if resp.ExpiresIn != 3600 {
		t.Errorf("Expected expires_in 3600, got %d", resp.ExpiresIn)
	}

	grant, basicID := f.sentGrant()
	if got := grant.Get("grant_type"); got != "refresh_token" {
		t.Errorf("Expected grant_type refresh_token, got %s", got)
	}
	if got := grant.Get("refresh_token"); got != "refresh-token-1" {
		t.Errorf("Expected refresh_token refresh-token-1, got %s", got)
	}
	if basicID != "client-id" {
		t.Errorf("Expected basic auth client-id, got %s", basicID)
	}
}

func TestClientRefreshTokenRejected(t *testing.T) {
	f := newFakeLedger(t)
	f.setRefreshStatus(400)
	client := f.client()

	_, err := client.RefreshToken(context.Background(), "refresh-token-1")
	if err == nil {
		t.Fatal("Expected error from rejected refresh")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 400 {
		t.Errorf("Expected status 400, got %d", apiErr.StatusCode)
	}
	if apiErr.Temporary() {
		t.Error("Expected 400 to be permanent")
	}
}

func TestClientCreateCustomer(t *testing.T) {
	f := newFakeLedger(t)
	client := f.client()

	remote, err := client.CreateCustomer(context.Background(), "tok-abc", "realm-1", CustomerCreate{
		Name:  "Acme Corp",
		Email: "billing@acme.test",
	})
	if err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	if remote.ID != "lc_cus_1" {
		t.Errorf("Expected remote ID lc_cus_1, got %s", remote.ID)
	}
	if remote.SyncToken != "0" {
		t.Errorf("Expected sync token 0, got %s", remote.SyncToken)
	}

	auth, path := f.sentRequest()
	if auth != "Bearer tok-abc" {
		t.Errorf("Expected Authorization Bearer tok-abc, got %s", auth)
	}
	if path != "/v1/companies/realm-1/customers" {
		t.Errorf("Unexpected request path %s", path)
	}
	sent := f.sentCustomer()
	if sent.Name != "Acme Corp" || sent.Email != "billing@acme.test" {
		t.Errorf("Unexpected customer body: %+v", sent)
	}
}

func TestClientCreateCustomerError(t *testing.T) {
	f := newFakeLedger(t)
	client := f.client()

	tests := []struct {
		status    int
		temporary bool
	}{
		{400, false},
		{401, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range tests {
		f.setCustomerStatus(tc.status)
		_, err := client.CreateCustomer(context.Background(), "tok", "realm-1", CustomerCreate{Name: "X"})
		if err == nil {
			t.Fatalf("Expected error for status %d", tc.status)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("Expected *APIError for status %d, got %T: %v", tc.status, err, err)
		}
		if apiErr.StatusCode != tc.status {
			t.Errorf("Expected status %d, got %d", tc.status, apiErr.StatusCode)
		}
		if apiErr.Temporary() != tc.temporary {
			t.Errorf("Expected Temporary()=%v for status %d", tc.temporary, tc.status)
		}
	}
}

func TestClientMissingRemoteID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()
	client := NewClient(
		WithBaseURL(srv.URL),
		WithTokenURL(srv.URL+"/oauth/token"),
		WithClientCredentials("client-id", "client-secret"),
	)

	_, err := client.CreateCustomer(context.Background(), "tok", "realm-1", CustomerCreate{Name: "X"})
	if err == nil {
		t.Fatal("Expected error for response without id")
	}
	if !worker.IsNonRetryable(err) {
		t.Errorf("Expected non-retryable error, got %v", err)
	}
}
