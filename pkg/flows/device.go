package flows

import (
	"context"
	"net/url"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
)

// deviceGrantType is the urn the device-code grant uses in the
// application/x-www-form-urlencoded grant_type field (RFC 8628 §3.4).
const deviceGrantType = "urn:ietf:params:oauth:grant-type:device_code"

// Device drives the device-code grant (spec.md §4.4). A single call performs
// exactly one token-endpoint exchange; polling the issuer while the user
// completes the flow on another device is the caller's responsibility.
// authorization_pending, slow_down, access_denied, and expired_token are
// reported verbatim through the returned error's message, letting the
// caller decide whether to retry.
func Device(ctx context.Context, client *httpclient.Client, acct *account.Account, deviceCode string) (string, error) {
	logger.Get().Debug("trying device code flow", "account", acct.Name)

	form := url.Values{}
	form.Set("grant_type", deviceGrantType)
	form.Set("device_code", deviceCode)

	return exchange(ctx, client, acct, form)
}
