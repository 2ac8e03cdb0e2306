// Package flows implements the four OAuth grant types the orchestrator can
// drive against an account's issuer: refresh, password, authorization-code,
// and device-code (spec.md §4.4). Each driver shares the same shape — build
// a form body, POST it to the account's discovered token endpoint, hand the
// response body to pkg/oidc's parser, and return the new access token — and
// leaves the account's cached state untouched on any failure, except that
// the refresh driver clears a refresh token the issuer reports as revoked.
//
// Drivers assume discovery has already populated the account's issuer
// metadata; pkg/orchestrator is responsible for running discovery lazily
// before attempting any flow.
package flows
