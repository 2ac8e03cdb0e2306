package oidc

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// tokenResponse mirrors the fields spec.md §4.3 recognizes in an issuer's
// token-endpoint response, success or error.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    *int   `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
	IDToken      string `json:"id_token"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorURI         string `json:"error_uri"`
}

// errorKindFor maps an OAuth error code to the taxonomy in spec.md §7.
// invalid_grant is special-cased by the refresh driver (which clears the
// refresh token on top of returning Revoked); every other code collapses to
// the generic OIDC kind so the issuer's error_description still reaches the
// caller verbatim via Error.Description.
func errorKindFor(code string) oidcerr.Kind {
	switch code {
	case "invalid_grant":
		return oidcerr.Revoked
	default:
		return oidcerr.OIDC
	}
}

// ParseTokenResponse decodes body as a token-endpoint JSON response and
// applies it to acct. On a structured OAuth error it returns a typed error
// and leaves acct's cached tokens untouched. On malformed JSON it returns
// oidcerr.Format. now is the instant expires_in is measured from, passed in
// rather than read from time.Now so callers and tests agree on the clock.
func ParseTokenResponse(now time.Time, acct *account.Account, body []byte) error {
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return oidcerr.Wrap(oidcerr.Format, err, "parsing token response")
	}

	if resp.Error != "" {
		err := oidcerr.New(errorKindFor(resp.Error), "issuer returned %s", resp.Error)
		if resp.ErrorDescription != "" {
			err = err.WithDescription(resp.ErrorDescription)
		}
		return err
	}

	if resp.AccessToken == "" {
		return oidcerr.New(oidcerr.Format, "token response has neither access_token nor error")
	}

	var scope []string
	if resp.Scope != "" {
		scope = strings.Fields(resp.Scope)
	}

	acct.ApplyTokenResponse(now, resp.AccessToken, resp.ExpiresIn, resp.RefreshToken, resp.IDToken, scope)
	return nil
}
