package store

import "time"

// LedgerCredential holds the encrypted OAuth tokens for one ledger realm.
// Token columns carry vault blobs, never plaintext.
type LedgerCredential struct {
	RealmID         string    `json:"realm_id"`
	AccessTokenEnc  string    `json:"-"`
	RefreshTokenEnc string    `json:"-"`
	ExpiresAt       time.Time `json:"expires_at"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// CredentialRepo defines operations for ledger credential persistence.
type CredentialRepo interface {
	// GetLedgerCredential retrieves the credential for a realm.
	// Returns nil without error when no credential is stored.
	GetLedgerCredential(realmID string) (*LedgerCredential, error)

	// SaveLedgerCredential inserts or replaces the credential for a realm.
	SaveLedgerCredential(cred *LedgerCredential) error

	// UpdateLedgerCredentialTokens swaps in freshly refreshed tokens, but only
	// if the stored expiry still matches prevExpiresAt. Returns false when
	// another worker refreshed first; the caller should reload and use the
	// stored tokens instead.
	UpdateLedgerCredentialTokens(realmID, accessTokenEnc, refreshTokenEnc string, expiresAt, prevExpiresAt time.Time) (bool, error)
}
