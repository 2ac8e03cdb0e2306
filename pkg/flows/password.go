package flows

import (
	"context"
	"net/url"
	"time"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// Password drives the password grant (spec.md §4.4). If username or password
// is absent — including when the credential lifetime policy has expired the
// password — it fails with oidcerr.MissingCredentials without making any
// network call, mirroring original_source's tryPasswordFlow, which checks
// strValid on both fields before ever calling passwordFlow.
func Password(ctx context.Context, client *httpclient.Client, acct *account.Account, scopeOverride []string) (string, error) {
	username, password, ok := acct.Credentials(time.Now())
	if !ok {
		return "", oidcerr.New(oidcerr.MissingCredentials, "account %s has no username/password", acct.Name)
	}

	logger.Get().Debug("trying password flow", "account", acct.Name)

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", username)
	form.Set("password", password)
	if scope := scopeParam(acct, scopeOverride); scope != "" {
		form.Set("scope", scope)
	}

	return exchange(ctx, client, acct, form)
}
