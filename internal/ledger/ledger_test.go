package ledger

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/store"
	"github.com/crewdeskhq/crewdesk/internal/testutil"
	"github.com/crewdeskhq/crewdesk/internal/vault"
)

const testSecret = "ledger-test-secret"

// fakeLedger is an in-process stand-in for the accounting ledger API.
type fakeLedger struct {
	srv *httptest.Server

	mu           sync.Mutex
	refreshes    int
	customers    int
	projects     int
	costs        int
	lastBasicID  string
	lastGrant    url.Values
	lastAuth     string
	lastPath     string
	lastCustomer CustomerCreate
	lastProject  ProjectCreate
	lastCost     CostCreate

	refreshStatus  int
	customerStatus int
	accessToken    string
	onRefresh      func()
}

func newFakeLedger(t *testing.T) *fakeLedger {
	t.Helper()
	f := &fakeLedger{accessToken: "access-token-2"}
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", f.handleToken)
	mux.HandleFunc("/v1/companies/", f.handleEntity)
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLedger) client() *Client {
	return NewClient(
		WithBaseURL(f.srv.URL),
		WithTokenURL(f.srv.URL+"/oauth/token"),
		WithClientCredentials("client-id", "client-secret"),
	)
}

func (f *fakeLedger) handleToken(w http.ResponseWriter, r *http.Request) {
	r.ParseForm()
	f.mu.Lock()
	f.refreshes++
	f.lastGrant = r.PostForm
	f.lastBasicID, _, _ = r.BasicAuth()
	status := f.refreshStatus
	token := f.accessToken
	hook := f.onRefresh
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	if status != 0 {
		http.Error(w, `{"error":"invalid_grant"}`, status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"refresh_token":"refresh-token-2","expires_in":3600,"token_type":"bearer"}`, token)
}

func (f *fakeLedger) handleEntity(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAuth = r.Header.Get("Authorization")
	f.lastPath = r.URL.Path

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/customers"):
		if f.customerStatus != 0 {
			http.Error(w, `{"error":"rejected"}`, f.customerStatus)
			return
		}
		json.NewDecoder(r.Body).Decode(&f.lastCustomer)
		f.customers++
		fmt.Fprintf(w, `{"id":"lc_cus_%d","sync_token":"0"}`, f.customers)
	case strings.HasSuffix(r.URL.Path, "/projects"):
		json.NewDecoder(r.Body).Decode(&f.lastProject)
		f.projects++
		fmt.Fprintf(w, `{"id":"lc_prj_%d","sync_token":"0"}`, f.projects)
	case strings.HasSuffix(r.URL.Path, "/costs"):
		json.NewDecoder(r.Body).Decode(&f.lastCost)
		f.costs++
		fmt.Fprintf(w, `{"id":"lc_cost_%d","sync_token":"0"}`, f.costs)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeLedger) counts() (refreshes, customers, projects, costs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes, f.customers, f.projects, f.costs
}

func (f *fakeLedger) sentGrant() (url.Values, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastGrant, f.lastBasicID
}

func (f *fakeLedger) sentRequest() (auth, path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth, f.lastPath
}

func (f *fakeLedger) sentCustomer() CustomerCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCustomer
}

func (f *fakeLedger) sentProject() ProjectCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastProject
}

func (f *fakeLedger) sentCost() CostCreate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastCost
}

func (f *fakeLedger) setRefreshStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshStatus = code
}

func (f *fakeLedger) setCustomerStatus(code int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customerStatus = code
}

func (f *fakeLedger) setOnRefresh(hook func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onRefresh = hook
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	return testutil.NewSQLiteStore(t)
}

func seedCredential(t *testing.T, s *store.SQLiteStore, expiresAt time.Time) {
	t.Helper()
	accessEnc, err := vault.Encrypt("access-token-1", testSecret)
	if err != nil {
		t.Fatalf("Encrypt access token failed: %v", err)
	}
	refreshEnc, err := vault.Encrypt("refresh-token-1", testSecret)
	if err != nil {
		t.Fatalf("Encrypt refresh token failed: %v", err)
	}
	err = s.SaveLedgerCredential(&store.LedgerCredential{
		RealmID:         "realm-1",
		AccessTokenEnc:  accessEnc,
		RefreshTokenEnc: refreshEnc,
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		t.Fatalf("SaveLedgerCredential failed: %v", err)
	}
}

func newTestProcessor(t *testing.T) (*Processor, *store.SQLiteStore, *fakeLedger) {
	t.Helper()
	s := newTestStore(t)
	f := newFakeLedger(t)
	client := f.client()
	tokens := NewTokenManager(s, client, testSecret)
	return NewProcessor(s, tokens, client, "realm-1"), s, f
}
