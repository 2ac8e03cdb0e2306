// Package orchestrator implements the flow-selection algorithm of spec.md
// §4.5: given an account, a freshness requirement, and a flow order, decide
// whether to return a cached token or run flows from pkg/flows in order
// until one succeeds, a hard failure stops the chain, or every flow has
// been skipped.
package orchestrator

import (
	"context"
	"time"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/flows"
	"github.com/ddavila0/oidc-agent/pkg/httpclient"
	"github.com/ddavila0/oidc-agent/pkg/logger"
	"github.com/ddavila0/oidc-agent/pkg/oidc"
	"github.com/ddavila0/oidc-agent/pkg/oidcerr"
)

// ForceNewToken is the MinValidPeriod sentinel that unconditionally disables
// the cache short-circuit (spec.md §3's FORCE_NEW_TOKEN).
const ForceNewToken time.Duration = -1

// Request is the caller-supplied freshness request (spec.md §3), plus
// whatever externally-obtained grant material this call can hand to the
// code or device flow. A zero Request runs the account's default flow
// order with no cache bypass and no external grant material, so code and
// device are always skipped.
type Request struct {
	MinValidPeriod time.Duration
	ScopeOverride  []string
	FlowOrder      account.FlowOrder

	// Code, RedirectURI, and CodeVerifier are supplied by an external
	// collaborator that obtained them via a browser redirect; the
	// orchestrator never produces these itself.
	Code         string
	RedirectURI  string
	CodeVerifier string

	// DeviceCode is supplied by an external collaborator that obtained it
	// from the issuer's device-authorization endpoint and is polling on the
	// caller's behalf; a single GetAccessToken call performs one exchange.
	DeviceCode string
}

// GetAccessToken is the central entry point of the token-acquisition
// engine (spec.md §4.5).
func GetAccessToken(ctx context.Context, client *httpclient.Client, acct *account.Account, req Request) (string, error) {
	now := time.Now()

	if len(req.ScopeOverride) == 0 && req.MinValidPeriod != ForceNewToken && acct.ValidForSeconds(now, req.MinValidPeriod) {
		token := acct.SnapshotAccessToken()
		logger.Get().Debug("cache hit", "account", acct.Name)
		return token, nil
	}

	if !acct.MetadataSnapshot().Populated {
		if err := oidc.Discover(ctx, client, acct); err != nil {
			return "", err
		}
	}

	order := req.FlowOrder
	if len(order) == 0 {
		order = acct.ConfiguredOrDefaultFlowOrder()
	}

	var skip *oidcerr.Error
	for _, flow := range order {
		token, err := attempt(ctx, client, acct, flow, req)
		if err == nil {
			return token, nil
		}

		oerr, ok := err.(*oidcerr.Error)
		if !ok || !isSkip(oerr.Kind) {
			logger.Get().Warn("flow failed, stopping fallback chain", "account", acct.Name, "flow", flow, "error", err)
			return "", err
		}

		logger.Get().Debug("flow skipped", "account", acct.Name, "flow", flow, "reason", oerr.Kind)
		skip = mostSpecificSkip(skip, oerr)
	}

	if skip != nil {
		return "", skip
	}
	return "", oidcerr.New(oidcerr.NoFlow, "no flow configured for account %s", acct.Name)
}

// attempt runs one flow. The code and device flows cannot spontaneously
// produce their grant material; when the order names one but the request
// carries none, that is a skip, not a hard failure (spec.md §4.5 step 3).
func attempt(ctx context.Context, client *httpclient.Client, acct *account.Account, flow account.Flow, req Request) (string, error) {
	switch flow {
	case account.FlowRefresh:
		return flows.Refresh(ctx, client, acct, req.ScopeOverride)
	case account.FlowPassword:
		return flows.Password(ctx, client, acct, req.ScopeOverride)
	case account.FlowCode:
		if req.Code == "" {
			return "", oidcerr.New(oidcerr.NoCode, "no authorization code supplied for account %s", acct.Name)
		}
		return flows.Code(ctx, client, acct, req.Code, req.RedirectURI, req.CodeVerifier)
	case account.FlowDevice:
		if req.DeviceCode == "" {
			return "", oidcerr.New(oidcerr.NoDeviceCode, "no device code supplied for account %s", acct.Name)
		}
		return flows.Device(ctx, client, acct, req.DeviceCode)
	default:
		return "", oidcerr.New(oidcerr.Internal, "unknown flow %q", flow)
	}
}

func isSkip(k oidcerr.Kind) bool {
	switch k {
	case oidcerr.NoRefreshToken, oidcerr.MissingCredentials, oidcerr.NoCode, oidcerr.NoDeviceCode:
		return true
	default:
		return false
	}
}

// mostSpecificSkip keeps the currently held skip unless next is strictly
// more specific, so that a tie between two skips of equal specificity
// preserves the first one reported (spec.md §4.5's tie-break rule).
func mostSpecificSkip(current, next *oidcerr.Error) *oidcerr.Error {
	if current == nil {
		return next
	}
	if oidcerr.MoreSpecificSkip(current.Kind, next.Kind) == next.Kind && next.Kind != current.Kind {
		return next
	}
	return current
}
