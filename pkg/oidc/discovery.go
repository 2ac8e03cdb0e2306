package oidc

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// WellKnownPath is appended to an issuer URL to build its discovery document location.
const WellKnownPath = "/.well-known/openid-configuration"

// document mirrors the subset of RFC 8414 / OIDC Discovery 1.0 fields the
// agent relies on. Fields the agent never reads are dropped rather than
// carried through unused.
type document struct {
	Issuer                      string   `json:"issuer"`
	AuthorizationEndpoint       string   `json:"authorization_endpoint"`
	TokenEndpoint               string   `json:"token_endpoint"`
	DeviceAuthorizationEndpoint string   `json:"device_authorization_endpoint"`
	RegistrationEndpoint        string   `json:"registration_endpoint"`
	RevocationEndpoint          string   `json:"revocation_endpoint"`
	GrantTypesSupported         []string `json:"grant_types_supported"`
	ScopesSupported             []string `json:"scopes_supported"`
	ResponseTypesSupported      []string `json:"response_types_supported"`
}

// Discover fetches and validates the issuer's discovery document and records
// it on the account. It is idempotent: calling it again re-fetches and
// replaces the stored metadata wholesale rather than merging into it, so a
// stale partial document can never linger (spec.md §3: "fully populated or
// empty; partial population is forbidden").
func Discover(ctx context.Context, client *httpclient.Client, acct *account.Account) error {
	wellKnown, err := wellKnownURL(acct.IssuerURL)
	if err != nil {
		return oidcerr.Wrap(oidcerr.Format, err, "building discovery URL for %s", acct.IssuerURL)
	}

	logger.Get().Debug("fetching discovery document", "account", acct.Name, "url", wellKnown)

	body, err := client.Get(ctx, wellKnown)
	if err != nil {
		return oidcerr.Wrap(oidcerr.TLS, err, "fetching discovery document for %s", acct.Name)
	}

	var doc document
	if jsonErr := json.Unmarshal(body, &doc); jsonErr != nil {
		return oidcerr.Wrap(oidcerr.Format, jsonErr, "parsing discovery document for %s", acct.Name)
	}

	if err := validate(&doc, acct.IssuerURL); err != nil {
		return err
	}

	acct.SetMetadata(account.IssuerMetadata{
		Issuer:                      doc.Issuer,
		AuthorizationEndpoint:       doc.AuthorizationEndpoint,
		TokenEndpoint:               doc.TokenEndpoint,
		DeviceAuthorizationEndpoint: doc.DeviceAuthorizationEndpoint,
		RegistrationEndpoint:        doc.RegistrationEndpoint,
		RevocationEndpoint:          doc.RevocationEndpoint,
		GrantTypesSupported:         doc.GrantTypesSupported,
		ScopesSupported:             doc.ScopesSupported,
		ResponseTypesSupported:      doc.ResponseTypesSupported,
	})
	return nil
}

// ScopesSupportedFor runs discovery against issuerURL into a throwaway
// account record and returns its scopes_supported list, one scope per
// element, or nil if discovery fails. The ephemeral record's sensitive buffers are wiped before
// return even though it never held anything sensitive, matching
// original_source's getScopesSupportedFor, which frees the stack account
// unconditionally before handing the scopes back to the caller.
func ScopesSupportedFor(ctx context.Context, client *httpclient.Client, issuerURL string) []string {
	ephemeral := account.New("", issuerURL, "")
	defer ephemeral.WipeAll()

	if err := Discover(ctx, client, ephemeral); err != nil {
		return nil
	}
	return ephemeral.MetadataSnapshot().ScopesSupported
}

func wellKnownURL(issuer string) (string, error) {
	u, err := url.Parse(issuer)
	if err != nil {
		return "", err
	}
	if u.Scheme != "https" {
		return "", &url.Error{Op: "parse", URL: issuer, Err: errNotHTTPS}
	}
	u.Path = path.Join(u.Path, WellKnownPath)
	return u.String(), nil
}

var errNotHTTPS = errors.New("issuer must use https")

// validate enforces the required-field and issuer-match invariants of
// spec.md §4.2: issuer, authorization_endpoint, and token_endpoint are all
// required; a missing one is OIDC_EFMT, a mismatched issuer is OIDC_EISSUER.
func validate(doc *document, configuredIssuer string) error {
	switch {
	case doc.Issuer == "":
		return oidcerr.New(oidcerr.Format, "discovery document missing issuer")
	case doc.AuthorizationEndpoint == "":
		return oidcerr.New(oidcerr.Format, "discovery document missing authorization_endpoint")
	case doc.TokenEndpoint == "":
		return oidcerr.New(oidcerr.Format, "discovery document missing token_endpoint")
	}
	if !issuerMatches(doc.Issuer, configuredIssuer) {
		return oidcerr.New(oidcerr.IssuerMismatch, "configured issuer %q does not match discovered issuer %q", configuredIssuer, doc.Issuer)
	}
	return nil
}

func issuerMatches(discovered, configured string) bool {
	return strings.TrimSuffix(discovered, "/") == strings.TrimSuffix(configured, "/")
}
