package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// canonicalizePayload renders a payload as deterministic JSON. encoding/json
// writes map keys in sorted order, so normalizing through a map yields the
// same bytes for any two structurally equal payloads.
func canonicalizePayload(payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload failed: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return "", fmt.Errorf("normalize payload failed: %w", err)
	}
	canonical, err := json.Marshal(normalized)
	if err != nil {
		return "", fmt.Errorf("marshal canonical payload failed: %w", err)
	}
	return string(canonical), nil
}

// jobFingerprint identifies a unit of work: the same job type with a
// structurally equal payload always hashes to the same fingerprint.
func jobFingerprint(jobType, canonicalPayload string) string {
	sum := sha256.Sum256([]byte(jobType + "\n" + canonicalPayload))
	return hex.EncodeToString(sum[:])
}
