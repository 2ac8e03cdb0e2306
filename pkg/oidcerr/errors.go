// Package oidcerr defines the stable error taxonomy returned by the token-acquisition
// engine. Every fallible operation in the agent's core returns one of these kinds
// instead of relying on a process-wide error variable.
package oidcerr

import "fmt"

// Kind identifies a stable error category understood by callers across the IPC
// boundary. Values are intentionally explicit integers so the numeric oidc_errno
// sent back to clients is stable across releases.
type Kind int

const (
	// Success is not itself an error; it is the zero Kind, naming the
	// OIDC_SUCCESS identifier of the taxonomy.
	Success Kind = iota
	// NoRefreshToken means the account has no refresh token to attempt the refresh flow with.
	NoRefreshToken
	// MissingCredentials means username/password are not both present for the password flow.
	MissingCredentials
	// Revoked means the issuer rejected a refresh token with invalid_grant.
	Revoked
	// OIDC means the issuer returned a structured OAuth error not otherwise classified.
	OIDC
	// Format means malformed JSON or a missing required field in an issuer response.
	Format
	// IssuerMismatch means OIDC discovery returned a document whose issuer does not match.
	IssuerMismatch
	// TLS means a transport or certificate-verification failure talking to the issuer.
	TLS
	// NoFlow means every flow in the configured order was skipped.
	NoFlow
	// NoCode means the orchestrator reached the code flow without an externally supplied code.
	NoCode
	// NoDeviceCode means the orchestrator reached the device flow without an externally supplied device_code.
	NoDeviceCode
	// Expired means the account (or the credential being read) has passed its configured lifetime.
	Expired
	// Internal covers failures that should not normally be reachable, e.g. a nil account.
	Internal
)

// names mirrors the Kind ordering; keep in sync with the const block above.
var names = [...]string{
	"OIDC_SUCCESS",
	"OIDC_ENOREFRSH",
	"OIDC_ECRED",
	"OIDC_EREVOKED",
	"OIDC_EOIDC",
	"OIDC_EFMT",
	"OIDC_EISSUER",
	"OIDC_ESSL",
	"OIDC_ENOFLOW",
	"OIDC_ENOCODE",
	"OIDC_ENODEVICECODE",
	"OIDC_EEXPIRED",
	"OIDC_EINTERNAL",
}

// String renders the stable identifier, e.g. "OIDC_EREVOKED".
func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(names) {
		return "OIDC_EUNKNOWN"
	}
	return names[k]
}

// Error is the concrete error type returned by the core. It carries the stable
// Kind plus a human-readable message, and optionally the issuer's verbatim
// error_description so callers can surface it unmodified.
type Error struct {
	Kind        Kind
	Message     string
	Description string // issuer-supplied error_description, verbatim, if any
	Cause       error
}

// New creates an *Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error that keeps the original error as Cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithDescription attaches an issuer-supplied error_description, returning the receiver.
func (e *Error) WithDescription(desc string) *Error {
	e.Description = desc
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Description != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Description)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap allows errors.Is/errors.As to see through to the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether the target is an *Error with the same Kind, so callers can
// write errors.Is(err, oidcerr.New(oidcerr.Revoked, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from an error produced by this package, returning
// Internal for any error that did not originate here.
func KindOf(err error) Kind {
	var oe *Error
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	_ = oe
	return Internal
}

// skipPrecedence ranks skip reasons so the orchestrator can keep the most
// specific one when multiple flows are skipped in a row. Lower index wins.
var skipPrecedence = []Kind{MissingCredentials, NoRefreshToken, NoCode, NoDeviceCode, NoFlow}

// MoreSpecificSkip returns whichever of a, b ranks higher in skipPrecedence.
// A nil kind (rank not found) is treated as least specific.
func MoreSpecificSkip(a, b Kind) Kind {
	ra, rb := rank(a), rank(b)
	if ra <= rb {
		return a
	}
	return b
}

func rank(k Kind) int {
	for i, s := range skipPrecedence {
		if s == k {
			return i
		}
	}
	return len(skipPrecedence)
}
