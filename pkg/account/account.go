// Package account defines the Account record that is the central entity of the
// token-acquisition engine: one per loaded configuration, holding the issuer's
// identity, its discovered metadata, the currently cached tokens, and whatever
// credentials the agent is allowed to hold in memory.
//
// Account records are created by an external loader after decryption, mutated
// by flow drivers and the credential lifetime controller, and destroyed by the
// lifetime controller or an explicit unload. Nothing in this package talks to
// the network; see pkg/oidc and pkg/flows for that.
package account

import (
	"sync"
	"time"
)

// IssuerMetadata is the result of OIDC discovery against an account's issuer.
// It is either fully populated (discovery has succeeded at least once) or the
// zero value; partial population is forbidden, so callers only ever check
// Populated rather than individual fields.
type IssuerMetadata struct {
	Issuer                      string
	AuthorizationEndpoint       string
	TokenEndpoint               string
	DeviceAuthorizationEndpoint string
	RegistrationEndpoint        string
	RevocationEndpoint          string
	GrantTypesSupported         []string
	ScopesSupported             []string
	ResponseTypesSupported      []string
	Populated                   bool
}

// Account is one configured identity at one issuer, plus its cached tokens,
// credentials, and lifetime policy. The zero value is not useful; construct
// with New.
type Account struct {
	mu sync.Mutex

	// Identity
	Name         string
	IssuerURL    string
	ClientID     string
	ClientSecret *Sensitive
	RedirectURIs []string
	Scopes       []string
	Audience     string
	CAPath       string // TLS trust-anchor file; empty means system default

	// Issuer metadata, populated by discovery.
	Metadata IssuerMetadata

	// Cached tokens
	AccessToken  string
	ExpiresAt    time.Time // zero means "no expiry known"
	RefreshToken *Sensitive
	IDToken      string
	GrantedScope []string

	// Credentials
	Username *Sensitive
	Password *Sensitive

	// Lifetime policy
	Death   time.Time // zero = forever; account auto-unloads once passed
	PWDeath time.Time // zero = forever; password is wiped once passed

	// FlowOrder is this account's configured fallback order, or nil to defer
	// to the orchestrator's default.
	FlowOrder FlowOrder
}

// New creates an Account for the given name and issuer. Secrets start absent;
// callers set them with SetPassword/SetRefreshToken etc.
func New(name, issuerURL, clientID string) *Account {
	return &Account{
		Name:         name,
		IssuerURL:    issuerURL,
		ClientID:     clientID,
		ClientSecret: &Sensitive{},
		RefreshToken: &Sensitive{},
		Username:     &Sensitive{},
		Password:     &Sensitive{},
	}
}

// HasAccessToken reports whether a cached access token is present: non-empty
// and not yet expired. A present token may still fail a caller's freshness
// requirement; that check is the orchestrator's job, not this one's.
func (a *Account) HasAccessToken(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hasAccessTokenLocked(now)
}

func (a *Account) hasAccessTokenLocked(now time.Time) bool {
	return a.AccessToken != "" && !a.ExpiresAt.IsZero() && a.ExpiresAt.After(now)
}

// ValidForSeconds reports whether the cached access token is present and will
// remain valid for at least minValidPeriod beyond now.
func (a *Account) ValidForSeconds(now time.Time, minValidPeriod time.Duration) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.hasAccessTokenLocked(now) {
		return false
	}
	return a.ExpiresAt.Sub(now) > minValidPeriod
}

// SnapshotAccessToken returns the currently cached access token, or "".
func (a *Account) SnapshotAccessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.AccessToken
}

// ExpiresAtSnapshot returns the currently cached expiry.
func (a *Account) ExpiresAtSnapshot() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ExpiresAt
}

// ApplyTokenResponse is the single mutation point flow drivers and the parser
// use to update cached token state. accessToken == "" leaves the cached access
// token and its expiry untouched (used when an issuer response carried no new
// access token); a non-empty refreshToken or idToken and a non-nil scope are
// still applied.
func (a *Account) ApplyTokenResponse(now time.Time, accessToken string, expiresIn *int, refreshToken, idToken string, scope []string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if accessToken != "" {
		a.AccessToken = accessToken
		if expiresIn != nil && *expiresIn > 0 {
			a.ExpiresAt = now.Add(time.Duration(*expiresIn) * time.Second)
		} else {
			a.ExpiresAt = time.Time{}
		}
	}
	if refreshToken != "" {
		a.RefreshToken.Set(refreshToken)
	}
	if idToken != "" {
		a.IDToken = idToken
	}
	if scope != nil {
		a.GrantedScope = scope
	}
}

// ClearRefreshToken wipes the stored refresh token, used when an issuer reports invalid_grant.
func (a *Account) ClearRefreshToken() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.RefreshToken.Wipe()
}

// RefreshTokenValue returns the current refresh token, or "" if absent.
func (a *Account) RefreshTokenValue() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.RefreshToken.Get()
}

// HasRefreshToken reports whether a refresh token is currently held.
func (a *Account) HasRefreshToken() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.RefreshToken.Present()
}

// Credentials returns the username and password currently held, honoring the
// password lifetime policy: if PWDeath has passed the password reads as absent
// even if the bytes have not yet been physically wiped by the lifetime
// controller's next sweep.
func (a *Account) Credentials(now time.Time) (username, password string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	username = a.Username.Get()
	if !a.PWDeath.IsZero() && !a.PWDeath.After(now) {
		return username, "", false
	}
	password = a.Password.Get()
	return username, password, username != "" && password != ""
}

// SetPassword stores a freshly supplied password and, if ttl > 0, sets PWDeath
// to now+ttl. ttl <= 0 means the password is held until explicitly cleared.
func (a *Account) SetPassword(now time.Time, password string, ttl time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Password.Set(password)
	if ttl > 0 {
		a.PWDeath = now.Add(ttl)
	} else {
		a.PWDeath = time.Time{}
	}
}

// ClearPassword wipes the stored password immediately, used for explicit logout.
func (a *Account) ClearPassword() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Password.Wipe()
	a.PWDeath = time.Time{}
}

// ExpirePasswordIfDue wipes the password if PWDeath has passed. Returns true if it wiped anything.
func (a *Account) ExpirePasswordIfDue(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.PWDeath.IsZero() || a.PWDeath.After(now) {
		return false
	}
	wiped := a.Password.Present()
	a.Password.Wipe()
	return wiped
}

// Dead reports whether the account's own lifetime has passed.
func (a *Account) Dead(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.Death.IsZero() && !a.Death.After(now)
}

// WipeAll overwrites every sensitive buffer on the account. Called by the
// lifetime controller immediately before an account is removed from the
// loaded set.
func (a *Account) WipeAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ClientSecret.Wipe()
	a.RefreshToken.Wipe()
	a.Username.Wipe()
	a.Password.Wipe()
	a.AccessToken = ""
	a.IDToken = ""
}

// SetMetadata populates issuer metadata atomically; Populated is set true,
// enforcing the "fully populated or empty" invariant.
func (a *Account) SetMetadata(m IssuerMetadata) {
	m.Populated = true
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Metadata = m
}

// MetadataSnapshot returns a copy of the current issuer metadata.
func (a *Account) MetadataSnapshot() IssuerMetadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Metadata
}

// ConfiguredOrDefaultFlowOrder resolves the order to use when none is supplied
// by the caller for this call: the account's configured order, else the package default.
func (a *Account) ConfiguredOrDefaultFlowOrder() FlowOrder {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.FlowOrder) > 0 {
		return a.FlowOrder
	}
	return DefaultFlowOrder
}

// EffectiveScopes returns scopeOverride if non-empty, else the account's configured scopes.
func (a *Account) EffectiveScopes(scopeOverride []string) []string {
	if len(scopeOverride) > 0 {
		return scopeOverride
	}
	return a.Scopes
}
