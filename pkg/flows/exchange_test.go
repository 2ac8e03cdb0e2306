package flows

import (
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
)

// newTokenServer starts a TLS test server that replays responses from
// handler and returns an account whose issuer metadata already points at it
// (discovery is not exercised here; pkg/oidc's tests cover that), plus a
// *httpclient.Client trusting the server's certificate.
func newTokenServer(t *testing.T, handler func(form url.Values) (int, map[string]any)) (*account.Account, *httpclient.Client) {
	t.Helper()

	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		status, body := handler(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)

	caPath := filepath.Join(t.TempDir(), "ca.pem")
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: srv.Certificate().Raw})
	require.NoError(t, os.WriteFile(caPath, pemBytes, 0o600))

	client, err := httpclient.NewBuilder().WithCABundle(caPath).Build()
	require.NoError(t, err)

	acct := account.New("work", srv.URL, "client1")
	acct.SetMetadata(account.IssuerMetadata{
		Issuer:                srv.URL,
		AuthorizationEndpoint: srv.URL + "/auth",
		TokenEndpoint:         srv.URL + "/token",
	})
	return acct, client
}
