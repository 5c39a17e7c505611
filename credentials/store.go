package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

var (
	ErrNotFound = errors.New("credentials: not found")
	ErrCorrupt  = errors.New("credentials: corrupt")
	ErrIOFailure = errors.New("credentials: io failure")
)

// onDisk is the union of the three token schemas a deployment's credential
// file may use. Exactly one of the three expiry representations is populated
// in any given file; normalizeExpiry resolves them to a single epoch-ms value.
type onDisk struct {
	// Canonical snake_case (OAuth-standard) and legacy camelCase variants.
	AccessToken  string `json:"access_token,omitempty"`
	AccessTokenC string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	RefreshTokenC string `json:"refreshToken,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	TokenTypeC   string `json:"tokenType,omitempty"`
	Scope        string `json:"scope,omitempty"`

	// Expiry variants: epoch-ms (both cases), and an ISO-8601 "expired" variant.
	ExpiryDate  *int64 `json:"expiry_date,omitempty"`
	ExpiryDateC *int64 `json:"expiryDate,omitempty"`
	Expired     string `json:"expired,omitempty"`

	// API-key-only credential, or the co-located override sibling for OAuth instances.
	APIKey string `json:"apiKey,omitempty"`
}

// Load reads a credential file and normalizes it into a Handle. providerKind
// selects KindAPIKey vs KindOAuth when the file content alone is ambiguous
// (e.g. an API-key-only file has no OAuth fields to distinguish on).
func Load(providerKind Kind, path string) (*Handle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	var raw onDisk
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	access := firstNonEmpty(raw.AccessToken, raw.AccessTokenC)
	refresh := firstNonEmpty(raw.RefreshToken, raw.RefreshTokenC)
	tokenType := firstNonEmpty(raw.TokenType, raw.TokenTypeC)

	if providerKind == KindAPIKey {
		if raw.APIKey == "" {
			return nil, fmt.Errorf("%w: missing apiKey field", ErrCorrupt)
		}
		return &Handle{Kind: KindAPIKey, APIKey: raw.APIKey}, nil
	}

	if access == "" && refresh == "" {
		if raw.APIKey != "" {
			return &Handle{Kind: KindAPIKey, APIKey: raw.APIKey}, nil
		}
		return nil, fmt.Errorf("%w: missing access_token/refresh_token", ErrCorrupt)
	}

	expiryMs, err := normalizeExpiry(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	return &Handle{
		Kind:           KindOAuth,
		AccessToken:    access,
		RefreshToken:   refresh,
		ExpiryEpochMs:  expiryMs,
		TokenType:      tokenType,
		Scope:          raw.Scope,
		APIKeyOverride: raw.APIKey,
	}, nil
}

func normalizeExpiry(raw onDisk) (int64, error) {
	switch {
	case raw.ExpiryDate != nil:
		return *raw.ExpiryDate, nil
	case raw.ExpiryDateC != nil:
		return *raw.ExpiryDateC, nil
	case raw.Expired != "":
		t, err := time.Parse(time.RFC3339, raw.Expired)
		if err != nil {
			return 0, fmt.Errorf("parse expired timestamp: %w", err)
		}
		return t.UnixMilli(), nil
	default:
		// No expiry present at all: treat as already expired rather than
		// silently granting an unbounded lifetime.
		return 0, nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Save persists h to path in the canonical snake_case form, atomically
// (write to a temp file in the same directory, then rename). The apiKey
// sibling key is preserved verbatim when present (§9 decided Open Question).
func Save(h *Handle, path string) error {
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrIOFailure)
	}

	out := onDisk{APIKey: h.APIKeyOverride}
	if h.Kind == KindAPIKey {
		out.APIKey = h.APIKey
	} else {
		out.AccessToken = h.AccessToken
		out.RefreshToken = h.RefreshToken
		expiry := h.ExpiryEpochMs
		out.ExpiryDate = &expiry
		out.TokenType = h.TokenType
		out.Scope = h.Scope
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	tmp, err := os.CreateTemp(dir, ".cred-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}
