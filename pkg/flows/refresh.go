package flows

import (
	"context"
	"net/url"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// Refresh drives the refresh_token grant (spec.md §4.4). Its precondition —
// a non-empty refresh token — is checked here, not by the orchestrator:
// without one, Refresh returns oidcerr.NoRefreshToken without any network
// call, and the orchestrator treats that as a skip.
//
// On an issuer-reported invalid_grant, the refresh token is revoked: Refresh
// clears it from the account in addition to returning oidcerr.Revoked, so a
// later retry against this account skips the refresh flow instead of
// repeating a doomed request.
func Refresh(ctx context.Context, client *httpclient.Client, acct *account.Account, scopeOverride []string) (string, error) {
	refreshToken := acct.RefreshTokenValue()
	if refreshToken == "" {
		return "", oidcerr.New(oidcerr.NoRefreshToken, "account %s has no refresh token", acct.Name)
	}

	logger.Get().Debug("trying refresh flow", "account", acct.Name)

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	if scope := scopeParam(acct, scopeOverride); scope != "" {
		form.Set("scope", scope)
	}

	token, err := exchange(ctx, client, acct, form)
	if err != nil {
		if oerr, ok := err.(*oidcerr.Error); ok && oerr.Kind == oidcerr.Revoked {
			acct.ClearRefreshToken()
		}
		return "", err
	}
	return token, nil
}
