package orchestrator

import (
	"context"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// newIssuer starts a TLS test server acting as both discovery and token
// endpoint and returns an account pointed at it plus a trusting client.
// tokenHandler answers every POST to /token; discovery is served statically.
func newIssuer(t *testing.T, tokenHandler func(form url.Values) (int, map[string]any)) (*account.Account, *httpclient.Client) {
	t.Helper()

	mux := http.NewServeMux()
	srv := httptest.NewUnstartedServer(mux)
	srv.StartTLS()
	t.Cleanup(srv.Close)

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/auth",
			"token_endpoint":         srv.URL + "/token",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		status, body := tokenHandler(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	})

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, pemBytes, 0o600))

	client, err := httpclient.NewBuilder().WithCABundle(caPath).Build()
	require.NoError(t, err)

	acct := account.New("work", srv.URL, "client1")
	return acct, client
}

// Scenario 1: cache hit — no HTTP call made.
func TestScenarioCacheHit(t *testing.T) {
	t.Parallel()

	acct, client := newIssuer(t, func(url.Values) (int, map[string]any) {
		t.Fatal("cache hit must not make an HTTP call")
		return 0, nil
	})
	now := time.Now()
	acct.ApplyTokenResponse(now, "AT1", intPtr(600), "", "", nil)

	token, err := GetAccessToken(context.Background(), client, acct, Request{MinValidPeriod: 60 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "AT1", token)
}

// Scenario 2: refresh success.
func TestScenarioRefreshSuccess(t *testing.T) {
	t.Parallel()

	acct, client := newIssuer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, "refresh_token", form.Get("grant_type"))
		return http.StatusOK, map[string]any{
			"access_token":  "AT2",
			"expires_in":    3600,
			"refresh_token": "RT2",
		}
	})
	now := time.Now()
	acct.ApplyTokenResponse(now.Add(-time.Hour), "AT1", intPtr(1), "RT1", "", nil)

	token, err := GetAccessToken(context.Background(), client, acct, Request{MinValidPeriod: 60 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, "AT2", token)
	assert.Equal(t, "RT2", acct.RefreshTokenValue())
}

// Scenario 3: refresh revoked, fallback blocked even though password is
// next in the default order.
func TestScenarioRefreshRevokedBlocksFallback(t *testing.T) {
	t.Parallel()

	passwordFlowCalled := false
	acct, client := newIssuer(t, func(form url.Values) (int, map[string]any) {
		if form.Get("grant_type") == "password" {
			passwordFlowCalled = true
		}
		return http.StatusBadRequest, map[string]any{"error": "invalid_grant"}
	})
	acct.ApplyTokenResponse(time.Now(), "", nil, "RT1", "", nil)
	acct.Username.Set("alice")
	acct.SetPassword(time.Now(), "s3cret", 0)

	_, err := GetAccessToken(context.Background(), client, acct, Request{MinValidPeriod: 60 * time.Second})
	require.Error(t, err)
	assert.Equal(t, oidcerr.Revoked, err.(*oidcerr.Error).Kind)
	assert.False(t, acct.HasRefreshToken())
	assert.False(t, passwordFlowCalled, "password flow must not run after a hard failure")
}

// Scenario 4: no refresh token, no credentials, but a device_code is
// supplied — refresh and password skip, code skips (no code), device
// succeeds.
func TestScenarioFallsThroughToDevice(t *testing.T) {
	t.Parallel()

	acct, client := newIssuer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, "urn:ietf:params:oauth:grant-type:device_code", form.Get("grant_type"))
		assert.Equal(t, "DC1", form.Get("device_code"))
		return http.StatusOK, map[string]any{"access_token": "AT1", "expires_in": 600}
	})

	token, err := GetAccessToken(context.Background(), client, acct, Request{
		MinValidPeriod: 60 * time.Second,
		DeviceCode:     "DC1",
	})
	require.NoError(t, err)
	assert.Equal(t, "AT1", token)
}

// Scenario 5: discovery issuer mismatch stops everything before any flow runs.
func TestScenarioDiscoveryIssuerMismatch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	srv := httptest.NewUnstartedServer(mux)
	srv.StartTLS()
	t.Cleanup(srv.Close)
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 "https://other.example",
			"authorization_endpoint": "https://other.example/auth",
			"token_endpoint":         "https://other.example/token",
		})
	})

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, pemBytes, 0o600))
	client, err := httpclient.NewBuilder().WithCABundle(caPath).Build()
	require.NoError(t, err)

	acct := account.New("work", srv.URL, "client1")
	_, err = GetAccessToken(context.Background(), client, acct, Request{MinValidPeriod: 60 * time.Second})
	require.Error(t, err)
	assert.Equal(t, oidcerr.IssuerMismatch, err.(*oidcerr.Error).Kind)
	assert.False(t, acct.MetadataSnapshot().Populated)
}

// Scenario 6: password lifetime — once pw_death has passed, the password
// flow fails with MissingCredentials without a network call.
func TestScenarioPasswordLifetimeExpires(t *testing.T) {
	t.Parallel()

	acct, client := newIssuer(t, func(url.Values) (int, map[string]any) {
		t.Fatal("password flow must not run once the password has expired")
		return 0, nil
	})
	acct.Username.Set("alice")
	acct.SetPassword(time.Now().Add(-3*time.Second), "s3cret", 2*time.Second)
	acct.FlowOrder = account.FlowOrder{account.FlowPassword}

	_, err := GetAccessToken(context.Background(), client, acct, Request{MinValidPeriod: 60 * time.Second})
	require.Error(t, err)
	assert.Equal(t, oidcerr.MissingCredentials, err.(*oidcerr.Error).Kind)
}

func TestAllFlowsSkippedReturnsMostSpecific(t *testing.T) {
	t.Parallel()

	acct, client := newIssuer(t, func(url.Values) (int, map[string]any) {
		t.Fatal("every flow should skip locally")
		return 0, nil
	})

	_, err := GetAccessToken(context.Background(), client, acct, Request{MinValidPeriod: 60 * time.Second})
	require.Error(t, err)
	// refresh skips NoRefreshToken, password skips MissingCredentials (more
	// specific), code/device skip without a supplied grant.
	assert.Equal(t, oidcerr.MissingCredentials, err.(*oidcerr.Error).Kind)
}

func TestScopeOverrideBypassesCache(t *testing.T) {
	t.Parallel()

	called := false
	acct, client := newIssuer(t, func(form url.Values) (int, map[string]any) {
		called = true
		assert.Equal(t, "admin", form.Get("scope"))
		return http.StatusOK, map[string]any{"access_token": "AT2", "expires_in": 600}
	})
	acct.ApplyTokenResponse(time.Now(), "AT1", intPtr(600), "RT1", "", nil)

	token, err := GetAccessToken(context.Background(), client, acct, Request{
		MinValidPeriod: 60 * time.Second,
		ScopeOverride:  []string{"admin"},
	})
	require.NoError(t, err)
	assert.True(t, called, "a scope override must bypass the cache")
	assert.Equal(t, "AT2", token)
}

func intPtr(v int) *int { return &v }
