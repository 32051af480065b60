package store

import "testing"

func TestCanonicalizePayload(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    string
	}{
		{
			name:    "nil payload",
			payload: nil,
			want:    "{}",
		},
		{
			name:    "empty payload",
			payload: map[string]any{},
			want:    "{}",
		},
		{
			name:    "keys sorted",
			payload: map[string]any{"zeta": 2, "alpha": 1},
			want:    `{"alpha":1,"zeta":2}`,
		},
		{
			name:    "nested keys sorted",
			payload: map[string]any{"outer": map[string]any{"z": true, "a": "x"}},
			want:    `{"outer":{"a":"x","z":true}}`,
		},
		{
			name:    "mixed value types",
			payload: map[string]any{"n": 42, "s": "hi", "b": false, "list": []any{1, "two"}},
			want:    `{"b":false,"list":[1,"two"],"n":42,"s":"hi"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalizePayload(tt.payload)
			if err != nil {
				t.Fatalf("canonicalizePayload failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestJobFingerprint(t *testing.T) {
	a, err := canonicalizePayload(map[string]any{"customer_id": "cus_1", "retries": 3})
	if err != nil {
		t.Fatalf("canonicalizePayload failed: %v", err)
	}
	b, err := canonicalizePayload(map[string]any{"retries": 3, "customer_id": "cus_1"})
	if err != nil {
		t.Fatalf("canonicalizePayload failed: %v", err)
	}

	if jobFingerprint("sync_customer", a) != jobFingerprint("sync_customer", b) {
		t.Error("Expected identical fingerprints for equivalent payloads")
	}
	if jobFingerprint("sync_customer", a) == jobFingerprint("sync_project", a) {
		t.Error("Expected job type to contribute to the fingerprint")
	}

	c, err := canonicalizePayload(map[string]any{"customer_id": "cus_2", "retries": 3})
	if err != nil {
		t.Fatalf("canonicalizePayload failed: %v", err)
	}
	if jobFingerprint("sync_customer", a) == jobFingerprint("sync_customer", c) {
		t.Error("Expected different payloads to produce different fingerprints")
	}
}

func TestJobFingerprintNumericForms(t *testing.T) {
	// JSON does not distinguish 1 from 1.0, so neither should the fingerprint.
	a, err := canonicalizePayload(map[string]any{"minutes": 90})
	if err != nil {
		t.Fatalf("canonicalizePayload failed: %v", err)
	}
	b, err := canonicalizePayload(map[string]any{"minutes": float64(90)})
	if err != nil {
		t.Fatalf("canonicalizePayload failed: %v", err)
	}
	if jobFingerprint("post_time_entry_cost", a) != jobFingerprint("post_time_entry_cost", b) {
		t.Error("Expected int and float forms of the same number to fingerprint equally")
	}
}
