// Package registry tracks the live connection state of every Master/Slave
// EA that has ever sent a heartbeat. Unlike store, it is pure in-memory
// state: a relay restart loses it, and every connected EA is expected to
// re-register within one heartbeat interval.
package registry

import (
	"sync"
	"time"

	"github.com/tradecopy/relayd/internal/wire"
)

// LivenessStatus distinguishes *why* a connection is not currently online,
// which a plain bool collapses: a Slave that cleanly unregistered is not
// the same condition as one whose heartbeat simply stopped arriving.
type LivenessStatus string

const (
	StatusOnline  LivenessStatus = "online"
	StatusOffline LivenessStatus = "offline"
	StatusTimeout LivenessStatus = "timeout"
)

// Connection is the live-tracked state of one account.
type Connection struct {
	AccountID      string
	Role           wire.Role
	Platform       string
	NumericAccount uint64
	Broker         string
	Server         string
	Balance        float64
	Equity         float64
	Currency       string
	Leverage       float64
	TradeAllowed   bool
	Online         bool
	Status         LivenessStatus
	LastHeartbeat  time.Time
}

// Snapshot is an immutable copy of a Connection safe to hand to callers
// outside the registry's lock.
type Snapshot = Connection

// Registry is the concurrency-safe table of live connections, keyed by
// account id.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Connection
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// HeartbeatFacts is the subset of a heartbeat frame the registry cares
// about; kept separate from wire.Heartbeat so registry does not need to
// track wire-encoding concerns.
type HeartbeatFacts struct {
	Role           wire.Role
	Platform       string
	NumericAccount uint64
	Broker         string
	Server         string
	Balance        float64
	Equity         float64
	Currency       string
	Leverage       float64
	TradeAllowed   bool
}

// UpsertHeartbeat records a heartbeat, creating the connection on first
// sight. Returns the updated snapshot and whether this is the first
// heartbeat ever seen for this account (bootstrap) and whether
// TradeAllowed flipped relative to the prior beat — both trigger a status
// re-evaluation upstream.
func (r *Registry) UpsertHeartbeat(accountID string, facts HeartbeatFacts, now time.Time) (snap Snapshot, firstSeen bool, tradeAllowedChanged bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[accountID]
	if !ok {
		c = &Connection{AccountID: accountID}
		r.conns[accountID] = c
		firstSeen = true
	} else {
		tradeAllowedChanged = c.TradeAllowed != facts.TradeAllowed
	}

	c.Role = facts.Role
	c.Platform = facts.Platform
	c.NumericAccount = facts.NumericAccount
	c.Broker = facts.Broker
	c.Server = facts.Server
	c.Balance = facts.Balance
	c.Equity = facts.Equity
	c.Currency = facts.Currency
	c.Leverage = facts.Leverage
	c.TradeAllowed = facts.TradeAllowed
	c.Online = true
	c.Status = StatusOnline
	c.LastHeartbeat = now

	return *c, firstSeen, tradeAllowedChanged
}

// MarkUnregistered flips a known account offline without forgetting it,
// so its last reported facts remain visible to the UI.
func (r *Registry) MarkUnregistered(accountID string) (Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[accountID]
	if !ok {
		return Snapshot{}, false
	}
	c.Online = false
	c.Status = StatusOffline
	return *c, true
}

// Snapshot returns a copy of the named connection's state.
func (r *Registry) Snapshot(accountID string) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[accountID]
	if !ok {
		return Snapshot{}, false
	}
	return *c, true
}

// All returns a snapshot of every known connection.
func (r *Registry) All() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Snapshot, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, *c)
	}
	return out
}

// Sweep returns the account ids that are currently marked online but
// whose last heartbeat is older than timeout as of now, and marks them
// offline. The comparison is a strict "<" against the deadline: an
// account whose last heartbeat lands exactly on the timeout boundary is
// NOT yet considered timed out.
func (r *Registry) Sweep(now time.Time, timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var timedOut []string
	for id, c := range r.conns {
		if !c.Online {
			continue
		}
		deadline := c.LastHeartbeat.Add(timeout)
		if deadline.Before(now) {
			c.Online = false
			c.Status = StatusTimeout
			timedOut = append(timedOut, id)
		}
	}
	return timedOut
}
