// Package oidc turns an issuer URL into validated endpoint metadata and
// turns token-endpoint responses into the fields pkg/account knows how to
// store. It is the only package that understands the wire shape of OIDC
// discovery documents and token-endpoint responses; pkg/flows calls it after
// every POST, and pkg/orchestrator calls Discover lazily before running a
// flow against an account whose metadata is not yet populated.
package oidc
