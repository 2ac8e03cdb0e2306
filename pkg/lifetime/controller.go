// Package lifetime implements the credential lifetime controller of
// spec.md §4.6: a ticker-driven sweep that unloads accounts whose Death has
// passed and wipes passwords whose PWDeath has passed, plus the
// TouchPassword/ClearPassword entry points a password prompt uses when a
// freshly supplied password should (or should not) be retained.
package lifetime

import (
	"sync"
	"time"

	"github.com/ddavila0/oidc-agent/pkg/account"
	"github.com/ddavila0/oidc-agent/pkg/logger"
)

// Controller holds the set of currently loaded accounts the core is allowed
// to unload on its own, and sweeps it on a timer. It does not own account
// creation: the external loader adds accounts via Track and the controller
// only ever removes them again, via Sweep, once Death has passed.
type Controller struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account

	interval time.Duration
	stopCh   chan struct{}
	stopped  bool
}

// NewController returns a Controller that sweeps every interval once
// started. interval should be shorter than the shortest PWDeath/Death any
// tracked account is expected to configure, the same way
// pkg/transport/session's Manager ties its cleanup cadence to its TTL.
func NewController(interval time.Duration) *Controller {
	return &Controller{
		accounts: make(map[string]*account.Account),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Track registers acct so the background sweep can unload it once its
// lifetime passes. Tracking an already-tracked name replaces the entry.
func (c *Controller) Track(acct *account.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accounts[acct.Name] = acct
}

// Untrack removes name from the loaded set without wiping it, for explicit
// unload requests that have already handled cleanup themselves.
func (c *Controller) Untrack(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.accounts, name)
}

// Get returns the tracked account by name, if any.
func (c *Controller) Get(name string) (*account.Account, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.accounts[name]
	return a, ok
}

// Start launches the background sweep goroutine. Start does not guard
// against repeated calls: each call launches another sweep goroutine, and a
// call after Stop launches one that exits at once because the stop channel
// stays closed.
func (c *Controller) Start() {
	go c.loop()
}

func (c *Controller) loop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep(time.Now())
		case <-c.stopCh:
			return
		}
	}
}

// Stop ends the background sweep. It is safe to call Sweep directly after
// Stop, e.g. from a test that wants deterministic control over timing.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	close(c.stopCh)
}

// Sweep scans every tracked account once: accounts whose Death has passed
// are wiped and untracked; accounts whose PWDeath has passed (but whose
// Death has not) have only their password wiped and remain loaded. It
// returns the names of accounts that were unloaded, for a caller (the
// external loader) that mirrors its own account set against this one.
func (c *Controller) Sweep(now time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var unloaded []string
	for name, acct := range c.accounts {
		if acct.Dead(now) {
			logger.Get().Debug("unloading account, lifetime passed", "account", name)
			acct.WipeAll()
			delete(c.accounts, name)
			unloaded = append(unloaded, name)
			continue
		}
		if acct.ExpirePasswordIfDue(now) {
			logger.Get().Debug("wiped password, pw_death passed", "account", name)
		}
	}
	return unloaded
}

// TouchPassword resets acct's PWDeath to now+ttl, keeping whatever password
// value is currently held. ttl <= 0 means the password is retained
// indefinitely (spec.md §4.6).
func TouchPassword(acct *account.Account, ttl time.Duration) {
	pw := acct.Password.Get()
	if pw == "" {
		return
	}
	acct.SetPassword(time.Now(), pw, ttl)
}

// ClearPassword wipes acct's stored password immediately, for explicit logout.
func ClearPassword(acct *account.Account) {
	acct.ClearPassword()
}
