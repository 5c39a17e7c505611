// Package credentials implements the Credential Store: loading, persisting,
// and validity-checking of per-provider-instance credential handles.
//
// The store never refreshes a token itself — that is the Auth Handler's job
// (see the auth package). The store only knows how to read the handful of
// on-disk JSON shapes real deployments have used over time, and how to write
// the one canonical shape back out.
package credentials

import (
	"context"
	"encoding/json"
	"time"
)

// Kind distinguishes the two CredentialHandle variants.
type Kind string

const (
	KindAPIKey Kind = "api_key"
	KindOAuth  Kind = "oauth"
	KindNone   Kind = "none"
)

// DefaultSafetyMargin is how far ahead of expiry a token is still considered valid,
// giving the Auth Handler room to refresh before a request actually hits a 401.
const DefaultSafetyMargin = 30 * time.Second

// Handle is the CredentialHandle data model (spec §3). It is a tagged variant:
// Kind selects which of the fields below are meaningful.
type Handle struct {
	Kind Kind

	// APIKey variant.
	APIKey string

	// OAuth variant.
	AccessToken   string
	RefreshToken  string
	ExpiryEpochMs int64
	TokenType     string
	Scope         string

	// APIKeyOverride is the co-located API key some OAuth-mode providers (iFlow)
	// carry alongside their OAuth tokens; §4.3 prefers it over the access token
	// for tool-calling compatibility. Preserved verbatim across rewrites.
	APIKeyOverride string
}

// Empty reports whether the handle carries no usable credential at all —
// the state a handle transitions to after an invalid_grant wipe.
func (h *Handle) Empty() bool {
	if h == nil {
		return true
	}
	switch h.Kind {
	case KindAPIKey:
		return h.APIKey == ""
	case KindOAuth:
		return h.AccessToken == "" && h.RefreshToken == ""
	default:
		return true
	}
}

// IsValid implements §4.1's IsValid(h, now): true iff h is a non-empty APIKey,
// or OAuthTokens whose expiry is more than safetyMargin away.
func (h *Handle) IsValid(now time.Time, safetyMargin time.Duration) bool {
	if h == nil {
		return false
	}
	switch h.Kind {
	case KindAPIKey:
		return h.APIKey != ""
	case KindOAuth:
		if h.AccessToken == "" {
			return false
		}
		remaining := time.Duration(h.ExpiryEpochMs-now.UnixMilli()) * time.Millisecond
		return remaining > safetyMargin
	case KindNone:
		return true
	default:
		return false
	}
}

// Wipe transitions the handle to Empty in place, as required on invalid_grant.
func (h *Handle) Wipe() {
	h.AccessToken = ""
	h.RefreshToken = ""
	h.ExpiryEpochMs = 0
	h.Scope = ""
}

// Clone returns a deep-enough copy for safe concurrent handoff.
func (h *Handle) Clone() *Handle {
	if h == nil {
		return nil
	}
	cp := *h
	return &cp
}

type overrideKey struct{}

// Override lets a single request carry a credential override (e.g. a caller-supplied
// API key) without ever being deserialized from client JSON directly.
type Override struct {
	APIKey    string
	SecretKey string
}

func (o Override) String() string {
	if o.APIKey == "" && o.SecretKey == "" {
		return "Override{}"
	}
	return "Override{APIKey:***, SecretKey:***}"
}

func (o Override) MarshalJSON() ([]byte, error) {
	type masked struct {
		APIKey    string `json:"api_key,omitempty"`
		SecretKey string `json:"secret_key,omitempty"`
	}
	out := masked{}
	if o.APIKey != "" {
		out.APIKey = "***"
	}
	if o.SecretKey != "" {
		out.SecretKey = "***"
	}
	return json.Marshal(out)
}

// WithOverride attaches a per-request credential override to ctx. A zero-value
// Override leaves ctx unchanged.
func WithOverride(ctx context.Context, o Override) context.Context {
	if o.APIKey == "" && o.SecretKey == "" {
		return ctx
	}
	return context.WithValue(ctx, overrideKey{}, o)
}

// OverrideFromContext reads back an Override set by WithOverride.
func OverrideFromContext(ctx context.Context) (Override, bool) {
	v := ctx.Value(overrideKey{})
	if v == nil {
		return Override{}, false
	}
	o, ok := v.(Override)
	return o, ok
}
