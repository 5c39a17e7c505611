package credentials

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ThreeSchemas(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		body string
	}{
		{
			name: "legacy_camelCase",
			body: `{"accessToken":"a1","refreshToken":"r1","expiryDate":1999999999000,"tokenType":"Bearer","scope":"chat"}`,
		},
		{
			name: "standard_snake_case",
			body: `{"access_token":"a2","refresh_token":"r2","expiry_date":1999999999000,"token_type":"Bearer","scope":"chat"}`,
		},
		{
			name: "expired_iso",
			body: `{"access_token":"a3","refresh_token":"r3","expired":"2033-05-18T03:33:19Z","token_type":"Bearer","scope":"chat"}`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name+".json")
			require.NoError(t, os.WriteFile(path, []byte(tc.body), 0o600))

			h, err := Load(KindOAuth, path)
			require.NoError(t, err)
			assert.Equal(t, KindOAuth, h.Kind)
			assert.NotEmpty(t, h.AccessToken)
			assert.NotEmpty(t, h.RefreshToken)
			assert.Greater(t, h.ExpiryEpochMs, int64(0))
		})
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(KindOAuth, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

	_, err := Load(KindOAuth, path)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSave_CanonicalFormAndAtomicity(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "creds.json")

	h := &Handle{
		Kind:           KindOAuth,
		AccessToken:    "access",
		RefreshToken:   "refresh",
		ExpiryEpochMs:  1999999999000,
		TokenType:      "Bearer",
		Scope:          "chat",
		APIKeyOverride: "sk-override",
	}
	require.NoError(t, Save(h, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "access", raw["access_token"])
	assert.Equal(t, "refresh", raw["refresh_token"])
	assert.Equal(t, "sk-override", raw["apiKey"])
	assert.NotContains(t, raw, "accessToken")
	assert.NotContains(t, raw, "expired")

	// No leftover temp files.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	loaded, err := Load(KindOAuth, path)
	require.NoError(t, err)
	assert.Equal(t, h.AccessToken, loaded.AccessToken)
	assert.Equal(t, h.APIKeyOverride, loaded.APIKeyOverride)
}

func TestHandle_IsValid(t *testing.T) {
	now := time.Now()

	apiKey := &Handle{Kind: KindAPIKey, APIKey: "sk-1"}
	assert.True(t, apiKey.IsValid(now, DefaultSafetyMargin))

	emptyKey := &Handle{Kind: KindAPIKey}
	assert.False(t, emptyKey.IsValid(now, DefaultSafetyMargin))

	fresh := &Handle{Kind: KindOAuth, AccessToken: "a", ExpiryEpochMs: now.Add(time.Hour).UnixMilli()}
	assert.True(t, fresh.IsValid(now, DefaultSafetyMargin))

	expiringSoon := &Handle{Kind: KindOAuth, AccessToken: "a", ExpiryEpochMs: now.Add(5 * time.Second).UnixMilli()}
	assert.False(t, expiringSoon.IsValid(now, DefaultSafetyMargin))

	expired := &Handle{Kind: KindOAuth, AccessToken: "a", ExpiryEpochMs: now.Add(-time.Hour).UnixMilli()}
	assert.False(t, expired.IsValid(now, DefaultSafetyMargin))
}

func TestHandle_WipeOnInvalidGrant(t *testing.T) {
	h := &Handle{Kind: KindOAuth, AccessToken: "a", RefreshToken: "r", ExpiryEpochMs: 123, Scope: "chat"}
	h.Wipe()
	assert.True(t, h.Empty())
}
