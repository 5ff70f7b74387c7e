// Package sweeper periodically expires terminals that have stopped
// sending heartbeats and drives the corresponding status re-evaluation.
package sweeper

import (
	"context"
	"time"

	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/updater"
	"github.com/tradecopy/relayd/internal/wire"
	"github.com/tradecopy/relayd/pkg/logging"
)

// Config controls the sweep cadence and the heartbeat timeout threshold.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns a tick interval well under the timeout, so no
// account can drift past the threshold unnoticed for more than a tick.
func DefaultConfig(timeout time.Duration) Config {
	return Config{Interval: timeout / 5, Timeout: timeout}
}

// Sweeper marks stale registry connections timed out and re-runs the
// updater for whatever trade groups/members they affect.
type Sweeper struct {
	registry *registry.Registry
	store    *store.Store
	updater  *updater.Updater
	cfg      Config
	log      *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New returns a Sweeper ready to Start.
func New(reg *registry.Registry, st *store.Store, u *updater.Updater, cfg Config) *Sweeper {
	ctx, cancel := context.WithCancel(context.Background())
	return &Sweeper{
		registry: reg,
		store:    st,
		updater:  u,
		cfg:      cfg,
		log:      logging.GetDefault().Component("sweeper"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the periodic sweep in a background goroutine.
func (s *Sweeper) Start() {
	go s.run()
	s.log.Info("sweeper started", "interval", s.cfg.Interval, "timeout", s.cfg.Timeout)
}

// Stop ends the sweep loop.
func (s *Sweeper) Stop() {
	s.cancel()
}

func (s *Sweeper) run() {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce(time.Now())
		}
	}
}

// sweepOnce marks timed out every account whose last heartbeat crossed the
// timeout and re-evaluates the groups/members it touches. A single
// account's failure never stops the rest of the sweep.
func (s *Sweeper) sweepOnce(now time.Time) {
	expired := s.registry.Sweep(now, s.cfg.Timeout)
	if len(expired) == 0 {
		return
	}
	s.log.Debug("sweeping expired connections", "count", len(expired))

	for _, accountID := range expired {
		snap, ok := s.registry.Snapshot(accountID)
		role := wire.RoleSlave
		if ok {
			role = snap.Role
		}
		var err error
		if role == wire.RoleMaster {
			if _, getErr := s.store.GetTradeGroupByMaster(accountID); getErr == nil {
				err = s.updater.ReevaluateMaster(accountID, now)
			}
		} else {
			err = s.updater.ReevaluateSlave(accountID, now)
		}
		if err != nil {
			s.log.Warn("sweep reevaluation failed", "account", accountID, "err", err)
		}
	}
}
