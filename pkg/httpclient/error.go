// Package httpclient is the sole network boundary of the agent: every byte
// sent to or received from an issuer passes through here. Discovery GETs and
// token-endpoint POSTs both go through a Client built by Builder.
package httpclient

import "fmt"

// TransportError is returned whenever an issuer responds with a non-2xx
// status. It carries enough of the response for callers (notably pkg/oidc's
// parser) to distinguish an OAuth error body from an opaque gateway failure.
type TransportError struct {
	StatusCode int
	Body       []byte
	URL        string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}

// AsTransportError reports whether err is a *TransportError, returning it if so.
func AsTransportError(err error) (*TransportError, bool) {
	te, ok := err.(*TransportError)
	return te, ok
}
