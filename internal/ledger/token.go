package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crewdeskhq/crewdesk/internal/store"
	"github.com/crewdeskhq/crewdesk/internal/vault"
	"github.com/crewdeskhq/crewdesk/internal/worker"
)

// DefaultRefreshBuffer is how long before expiry a token is refreshed.
const DefaultRefreshBuffer = 2 * time.Minute

// ErrNoCredential is returned when no credential is stored for a realm.
var ErrNoCredential = errors.New("ledger: no credential stored for realm")

// TokenManager hands out valid access tokens, refreshing and re-sealing them
// as needed. Multiple workers may share one credential row; the conditional
// update in the store decides which refresh wins.
type TokenManager struct {
	creds         store.CredentialRepo
	client        *Client
	secret        string
	refreshBuffer time.Duration
}

// NewTokenManager creates a token manager over the credential store.
// secret is the vault secret the stored tokens are sealed with.
func NewTokenManager(creds store.CredentialRepo, client *Client, secret string) *TokenManager {
	return &TokenManager{
		creds:         creds,
		client:        client,
		secret:        secret,
		refreshBuffer: DefaultRefreshBuffer,
	}
}

// AccessToken returns a plaintext access token for the realm, refreshing it
// first when it is expired or about to expire. Missing or undecryptable
// credentials are permanent failures.
func (m *TokenManager) AccessToken(ctx context.Context, realmID string) (string, error) {
	cred, err := m.creds.GetLedgerCredential(realmID)
	if err != nil {
		return "", fmt.Errorf("load ledger credential: %w", err)
	}
	if cred == nil {
		return "", worker.NonRetryable(fmt.Errorf("%w: %s", ErrNoCredential, realmID))
	}

	if time.Until(cred.ExpiresAt) > m.refreshBuffer {
		token, err := vault.Decrypt(cred.AccessTokenEnc, m.secret)
		if err != nil {
			return "", worker.NonRetryable(fmt.Errorf("decrypt access token for %s: %w", realmID, err))
		}
		return token, nil
	}

	return m.refresh(ctx, cred)
}

func (m *TokenManager) refresh(ctx context.Context, cred *store.LedgerCredential) (string, error) {
	refreshToken, err := vault.Decrypt(cred.RefreshTokenEnc, m.secret)
	if err != nil {
		return "", worker.NonRetryable(fmt.Errorf("decrypt refresh token for %s: %w", cred.RealmID, err))
	}

	tok, err := m.client.RefreshToken(ctx, refreshToken)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return "", worker.NonRetryable(fmt.Errorf("refresh rejected for %s: %w", cred.RealmID, err))
		}
		return "", fmt.Errorf("refresh token for %s: %w", cred.RealmID, err)
	}

	accessEnc, err := vault.Encrypt(tok.AccessToken, m.secret)
	if err != nil {
		return "", fmt.Errorf("encrypt access token: %w", err)
	}
	// The ledger may or may not rotate the refresh token.
	newRefresh := tok.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}
	refreshEnc, err := vault.Encrypt(newRefresh, m.secret)
	if err != nil {
		return "", fmt.Errorf("encrypt refresh token: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	won, err := m.creds.UpdateLedgerCredentialTokens(cred.RealmID, accessEnc, refreshEnc, expiresAt, cred.ExpiresAt)
	if err != nil {
		return "", fmt.Errorf("store refreshed tokens: %w", err)
	}
	if !won {
		slog.Debug("TokenManager.refresh: lost refresh race, using winner's tokens", "realmID", cred.RealmID)
		latest, err := m.creds.GetLedgerCredential(cred.RealmID)
		if err != nil {
			return "", fmt.Errorf("reload ledger credential: %w", err)
		}
		if latest == nil {
			return "", worker.NonRetryable(fmt.Errorf("%w: %s", ErrNoCredential, cred.RealmID))
		}
		token, err := vault.Decrypt(latest.AccessTokenEnc, m.secret)
		if err != nil {
			return "", worker.NonRetryable(fmt.Errorf("decrypt access token for %s: %w", cred.RealmID, err))
		}
		return token, nil
	}

	slog.Info("TokenManager.refresh: refreshed ledger tokens", "realmID", cred.RealmID, "expiresAt", expiresAt)
	return tok.AccessToken, nil
}
