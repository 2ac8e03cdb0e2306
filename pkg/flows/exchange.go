package flows

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
	"github.com/ddavila0/oidc-agent/pkg/oidc"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// exchange POSTs form to acct's discovered token endpoint, authenticating
// with client_secret_basic when the account has a client secret and with no
// client authentication (public client) otherwise, then hands the response
// to the token parser. It returns the new access token on success.
//
// On success or on a structured OAuth error the account's cached state has
// already been updated (or deliberately left alone) by ParseTokenResponse;
// exchange adds no mutation of its own.
func exchange(ctx context.Context, client *httpclient.Client, acct *account.Account, form url.Values) (string, error) {
	meta := acct.MetadataSnapshot()
	if !meta.Populated || meta.TokenEndpoint == "" {
		return "", oidcerr.New(oidcerr.Internal, "account %s has no discovered token endpoint", acct.Name)
	}

	basicUser, basicPass := "", ""
	if secret := acct.ClientSecret.Get(); secret != "" {
		basicUser, basicPass = acct.ClientID, secret
	} else {
		form.Set("client_id", acct.ClientID)
	}

	body, err := client.PostForm(ctx, meta.TokenEndpoint, form, basicUser, basicPass)
	if err != nil {
		if _, ok := httpclient.AsTransportError(err); !ok {
			return "", oidcerr.Wrap(oidcerr.TLS, err, "contacting token endpoint for %s", acct.Name)
		}
		// A *TransportError still carries the issuer's response body, which
		// may be a structured OAuth error; fall through and let the parser
		// extract it instead of treating every non-2xx as an opaque failure.
	}

	now := time.Now()
	if parseErr := oidc.ParseTokenResponse(now, acct, body); parseErr != nil {
		logger.Get().Debug("token exchange failed", "account", acct.Name, "error", parseErr)
		return "", parseErr
	}
	return acct.SnapshotAccessToken(), nil
}

func scopeParam(acct *account.Account, scopeOverride []string) string {
	return strings.Join(acct.EffectiveScopes(scopeOverride), " ")
}
