package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

var _ CredentialRepo = (*SQLiteStore)(nil)

// GetLedgerCredential retrieves the credential for a realm.
func (s *SQLiteStore) GetLedgerCredential(realmID string) (*LedgerCredential, error) {
	query := `SELECT realm_id, access_token_enc, refresh_token_enc, expires_at, created_at, updated_at
		  FROM ledger_credentials WHERE realm_id = ?`

	var cred LedgerCredential
	err := s.db.QueryRow(query, realmID).Scan(
		&cred.RealmID, &cred.AccessTokenEnc, &cred.RefreshTokenEnc, &cred.ExpiresAt, &cred.CreatedAt, &cred.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore.GetLedgerCredential not found", "realmID", realmID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore.GetLedgerCredential failed", "error", err, "realmID", realmID)
		return nil, fmt.Errorf("get ledger credential failed: %w", err)
	}
	return &cred, nil
}

// SaveLedgerCredential inserts or replaces the credential for a realm.
// Times are stored in UTC so a scanned expiry can later serve as an
// equality key in UpdateLedgerCredentialTokens.
func (s *SQLiteStore) SaveLedgerCredential(cred *LedgerCredential) error {
	if cred.CreatedAt.IsZero() {
		now := time.Now()
		cred.CreatedAt = now
		cred.UpdatedAt = now
	}

	query := `
		INSERT INTO ledger_credentials (realm_id, access_token_enc, refresh_token_enc, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (realm_id)
		DO UPDATE SET
			access_token_enc = EXCLUDED.access_token_enc,
			refresh_token_enc = EXCLUDED.refresh_token_enc,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, cred.RealmID, cred.AccessTokenEnc, cred.RefreshTokenEnc,
		cred.ExpiresAt.UTC(), cred.CreatedAt.UTC(), cred.UpdatedAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore.SaveLedgerCredential failed", "error", err, "realmID", cred.RealmID)
		return fmt.Errorf("save ledger credential failed: %w", err)
	}
	slog.Debug("SQLiteStore.SaveLedgerCredential succeeded", "realmID", cred.RealmID)
	return nil
}

// UpdateLedgerCredentialTokens swaps in refreshed tokens if the stored expiry
// still matches prevExpiresAt.
func (s *SQLiteStore) UpdateLedgerCredentialTokens(realmID, accessTokenEnc, refreshTokenEnc string, expiresAt, prevExpiresAt time.Time) (bool, error) {
	query := `
		UPDATE ledger_credentials
		SET access_token_enc = ?, refresh_token_enc = ?, expires_at = ?, updated_at = ?
		WHERE realm_id = ? AND expires_at = ?`

	result, err := s.db.Exec(query, accessTokenEnc, refreshTokenEnc,
		expiresAt.UTC(), time.Now().UTC(), realmID, prevExpiresAt.UTC())
	if err != nil {
		slog.Error("SQLiteStore.UpdateLedgerCredentialTokens failed", "error", err, "realmID", realmID)
		return false, fmt.Errorf("update ledger credential tokens failed: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update ledger credential tokens rows affected failed: %w", err)
	}
	if n == 0 {
		slog.Debug("SQLiteStore.UpdateLedgerCredentialTokens lost refresh race", "realmID", realmID)
		return false, nil
	}
	slog.Debug("SQLiteStore.UpdateLedgerCredentialTokens succeeded", "realmID", realmID, "expiresAt", expiresAt)
	return true, nil
}
