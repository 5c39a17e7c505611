// Package auth implements the Auth Handler: OAuth 2.0 device-code enrollment,
// proactive token refresh, and reactive 401-recovery, built on
// golang.org/x/oauth2's device-authorization support.
package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/relayforge/relayforge/credentials"
)

// DeviceFlowConfig names the endpoints and client identity used for one
// provider's device-code enrollment (§4.2, §6).
type DeviceFlowConfig struct {
	ClientID      string
	Scopes        []string
	DeviceCodeURL string
	TokenURL      string
	// OpenBrowser, when set, is called with verification_uri_complete so a
	// CLI caller can launch the user's browser. Nil means "print only".
	OpenBrowser func(uri string) error
}

// DeviceEnrollmentPrompt is surfaced to the caller so it can show the user
// code and verification URL while polling continues in the background.
type DeviceEnrollmentPrompt struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
}

var ErrDeviceAuthorizationTimeout = errors.New("auth: device authorization timeout")

// newPKCEVerifier generates a 32-byte base64url verifier and its S256 challenge,
// per §4.2. crypto/rand+crypto/sha256 are stdlib because no package in the
// reference stack implements PKCE verifier generation specifically — see DESIGN.md.
func newPKCEVerifier() (verifier, challenge string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("generate pkce verifier: %w", err)
	}
	verifier = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(verifier))
	challenge = base64.RawURLEncoding.EncodeToString(sum[:])
	return verifier, challenge, nil
}

// oauthConfig builds the golang.org/x/oauth2 Config used for both the device
// flow and subsequent refreshes for one provider.
func oauthConfig(cfg DeviceFlowConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID: cfg.ClientID,
		Scopes:   cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			DeviceAuthURL: cfg.DeviceCodeURL,
			TokenURL:      cfg.TokenURL,
		},
	}
}

// DeviceFlow runs the full device-code enrollment described in §4.2/§6:
// PKCE-challenged device-code request, optional browser launch, then polling
// the token endpoint until success, denial, or expires_in elapses.
//
// onPrompt is invoked once with the user-facing code/URL as soon as the
// device-code response arrives, before polling begins.
func DeviceFlow(ctx context.Context, cfg DeviceFlowConfig, logger *zap.Logger, onPrompt func(DeviceEnrollmentPrompt)) (*credentials.Handle, error) {
	verifier, challenge, err := newPKCEVerifier()
	if err != nil {
		return nil, err
	}

	oc := oauthConfig(cfg)

	authParams := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}

	resp, err := oc.DeviceAuth(ctx, authParams...)
	if err != nil {
		return nil, fmt.Errorf("device authorization request: %w", err)
	}

	prompt := DeviceEnrollmentPrompt{
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
	}
	if onPrompt != nil {
		onPrompt(prompt)
	}
	if cfg.OpenBrowser != nil && resp.VerificationURIComplete != "" {
		if err := cfg.OpenBrowser(resp.VerificationURIComplete); err != nil {
			logger.Warn("failed to open browser for device enrollment", zap.Error(err))
		}
	}

	token, err := oc.DeviceAccessToken(ctx, resp, oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrDeviceAuthorizationTimeout
		}
		return nil, fmt.Errorf("device access token exchange: %w", err)
	}

	return tokenToHandle(token), nil
}

// tokenToHandle lifts an oauth2.Token into the canonical CredentialHandle shape.
func tokenToHandle(token *oauth2.Token) *credentials.Handle {
	return &credentials.Handle{
		Kind:          credentials.KindOAuth,
		AccessToken:   token.AccessToken,
		RefreshToken:  token.RefreshToken,
		ExpiryEpochMs: token.Expiry.UnixMilli(),
		TokenType:     token.TokenType,
	}
}

// Refresh exchanges h's refresh token for a new access token (§4.2 Refresh).
// On 400/invalid_grant it wipes h and returns ErrUnrecoverable; the caller
// must then route the request through re-enrollment.
func Refresh(ctx context.Context, cfg DeviceFlowConfig, h *credentials.Handle) (*credentials.Handle, error) {
	if h == nil || h.RefreshToken == "" {
		return nil, ErrUnrecoverable
	}

	oc := oauthConfig(cfg)
	src := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: h.RefreshToken})

	token, err := src.Token()
	if err != nil {
		if isInvalidGrant(err) {
			h.Wipe()
			return h, ErrUnrecoverable
		}
		return nil, fmt.Errorf("refresh token exchange: %w", err)
	}

	next := tokenToHandle(token)
	if next.RefreshToken == "" {
		// Upstream did not rotate the refresh token; keep the existing one (§3 invariant).
		next.RefreshToken = h.RefreshToken
	}
	next.APIKeyOverride = h.APIKeyOverride
	return next, nil
}

func isInvalidGrant(err error) bool {
	var rErr *oauth2.RetrieveError
	if !errors.As(err, &rErr) {
		return false
	}
	if rErr.Response != nil && rErr.Response.StatusCode != 400 {
		return false
	}
	var payload struct {
		Error string `json:"error"`
	}
	if jsonErr := json.Unmarshal(rErr.Body, &payload); jsonErr == nil && payload.Error == "invalid_grant" {
		return true
	}
	return bytes.Contains(rErr.Body, []byte("invalid_grant"))
}
