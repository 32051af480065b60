// Package ledger syncs CrewDesk records into the external accounting ledger
// and manages the OAuth credentials that authorize the calls.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/worker"
)

// DefaultTimeout bounds every ledger API call.
const DefaultTimeout = 30 * time.Second

// APIError carries the status and body of a failed ledger call.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger: api error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the call may succeed if retried. Server errors,
// rate limits and request timeouts are temporary; other client errors are not.
func (e *APIError) Temporary() bool {
	return e.StatusCode >= 500 ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode == http.StatusRequestTimeout
}

// TokenResponse is the ledger's answer to a refresh grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// RemoteEntity is the ledger's record of a synced object.
type RemoteEntity struct {
	ID        string `json:"id"`
	SyncToken string `json:"sync_token"`
}

// CustomerCreate is the body for creating a remote customer.
type CustomerCreate struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ProjectCreate is the body for creating a remote project under a customer.
type ProjectCreate struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id"`
}

// CostCreate is the body for posting a labor cost against a remote project.
type CostCreate struct {
	ProjectID   string `json:"project_id"`
	AmountCents int64  `json:"amount_cents"`
	WorkDate    string `json:"work_date"`
	Description string `json:"description,omitempty"`
}

// Opts holds ledger client configuration.
type Opts struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
}

// Option configures the ledger client.
type Option func(*Opts)

// WithBaseURL sets the ledger API base URL.
func WithBaseURL(u string) Option {
	return func(o *Opts) { o.BaseURL = u }
}

// WithTokenURL sets the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(o *Opts) { o.TokenURL = u }
}

// WithClientCredentials sets the OAuth client id and secret used on refresh.
func WithClientCredentials(id, secret string) Option {
	return func(o *Opts) {
		o.ClientID = id
		o.ClientSecret = secret
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) {
		if c != nil {
			o.HTTPClient = c
		}
	}
}

// Client talks to the external accounting ledger.
type Client struct {
	baseURL      string
	tokenURL     string
	clientID     string
	clientSecret string
	http         *http.Client
}

// NewClient creates a ledger client.
func NewClient(opts ...Option) *Client {
	cfg := Opts{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{
		baseURL:      strings.TrimSuffix(cfg.BaseURL, "/"),
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		http:         cfg.HTTPClient,
	}
}

// RefreshToken exchanges a refresh token for fresh tokens using the OAuth
// refresh grant.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.clientID, c.clientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh token request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Client.RefreshToken failed", "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var tok TokenResponse
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode refresh response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, worker.NonRetryable(fmt.Errorf("ledger: refresh response missing access_token"))
	}
	slog.Debug("Client.RefreshToken succeeded", "expiresIn", tok.ExpiresIn)
	return &tok, nil
}

// CreateCustomer creates a customer record in the ledger.
func (c *Client) CreateCustomer(ctx context.Context, accessToken, realmID string, body CustomerCreate) (*RemoteEntity, error) {
	return c.postEntity(ctx, accessToken, realmID, "customers", body)
}

// CreateProject creates a project under an existing remote customer.
func (c *Client) CreateProject(ctx context.Context, accessToken, realmID string, body ProjectCreate) (*RemoteEntity, error) {
	return c.postEntity(ctx, accessToken, realmID, "projects", body)
}

// PostCost posts a labor cost against an existing remote project.
func (c *Client) PostCost(ctx context.Context, accessToken, realmID string, body CostCreate) (*RemoteEntity, error) {
	return c.postEntity(ctx, accessToken, realmID, "costs", body)
}

func (c *Client) postEntity(ctx context.Context, accessToken, realmID, resource string, body any) (*RemoteEntity, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", resource, err)
	}

	endpoint := fmt.Sprintf("%s/v1/companies/%s/%s", c.baseURL, url.PathEscape(realmID), resource)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", resource, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", resource, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", resource, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Error("Client.postEntity failed", "resource", resource, "realmID", realmID, "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var entity RemoteEntity
	if err := json.Unmarshal(data, &entity); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", resource, err)
	}
	if entity.ID == "" {
		return nil, worker.NonRetryable(fmt.Errorf("ledger: %s response missing id", resource))
	}
	slog.Debug("Client.postEntity succeeded", "resource", resource, "realmID", realmID, "remoteID", entity.ID)
	return &entity, nil
}
