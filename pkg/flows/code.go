package flows

import (
	"context"
	"net/url"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
)

// Code drives the authorization_code grant (spec.md §4.4). The code and the
// exact redirect_uri used to obtain it are supplied by an external
// collaborator — this package never opens a browser or runs a redirect
// server — along with an optional PKCE code_verifier.
func Code(ctx context.Context, client *httpclient.Client, acct *account.Account, code, redirectURI, codeVerifier string) (string, error) {
	logger.Get().Debug("trying authorization code flow", "account", acct.Name)

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	if codeVerifier != "" {
		form.Set("code_verifier", codeVerifier)
	}

	return exchange(ctx, client, acct, form)
}
