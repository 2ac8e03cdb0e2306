package flows

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

func TestDeviceSuccess(t *testing.T) {
	t.Parallel()

	acct, client := newTokenServer(t, func(form url.Values) (int, map[string]any) {
		assert.Equal(t, deviceGrantType, form.Get("grant_type"))
		assert.Equal(t, "DC1", form.Get("device_code"))
		return http.StatusOK, map[string]any{"access_token": "AT1", "expires_in": 600}
	})

	token, err := Device(context.Background(), client, acct, "DC1")
	require.NoError(t, err)
	assert.Equal(t, "AT1", token)
}

func TestDeviceAuthorizationPendingReportedVerbatim(t *testing.T) {
	t.Parallel()

	acct, client := newTokenServer(t, func(url.Values) (int, map[string]any) {
		return http.StatusBadRequest, map[string]any{"error": "authorization_pending"}
	})

	_, err := Device(context.Background(), client, acct, "DC1")
	require.Error(t, err)
	oerr := err.(*oidcerr.Error)
	assert.Equal(t, oidcerr.OIDC, oerr.Kind)
	assert.Contains(t, oerr.Message, "authorization_pending")
}
