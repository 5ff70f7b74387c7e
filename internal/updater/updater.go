// Package updater orchestrates the registry, store, statusengine and
// publisher into the relay's single change-propagation algorithm: read
// current facts, re-run the pure status rules, persist only if something
// actually changed, and fan the change out to exactly the subscribers it
// affects.
package updater

import (
	"time"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/publisher"
	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/statusengine"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/pkg/logging"
)

// Notifier delivers compact change notifications to the WebSocket hub.
// Defined here rather than depending on httpapi directly, so updater
// never needs to know about HTTP or WebSocket framing.
type Notifier interface {
	Notify(eventType string, data any)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, any) {}

// Updater wires together the components needed to re-evaluate and
// re-publish runtime status on any triggering event.
type Updater struct {
	registry  *registry.Registry
	store     *store.Store
	publisher *publisher.Publisher
	notifier  Notifier
	metrics   *metrics.Counters
	log       *logging.Logger
}

// New returns an Updater. Pass nil for notifier to run without a WS hub
// wired (e.g. in tests).
func New(reg *registry.Registry, st *store.Store, pub *publisher.Publisher, notifier Notifier, m *metrics.Counters) *Updater {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Updater{
		registry:  reg,
		store:     st,
		publisher: pub,
		notifier:  notifier,
		metrics:   m,
		log:       logging.GetDefault().Component("updater"),
	}
}

func (u *Updater) evaluateMaster(group *store.TradeGroup) statusengine.MasterResult {
	masterSnap, _ := u.registry.Snapshot(group.MasterAccountID)
	u.metrics.Evaluation()
	return statusengine.EvaluateMaster(statusengine.MasterSnapshot{
		Intent:             group.EnabledFlag,
		Online:             masterSnap.Online,
		AutoTradingAllowed: masterSnap.TradeAllowed,
	})
}

// ReevaluateMaster re-runs the Master's own status plus every one of its
// members (a Master status change can flip every member's effective
// status, since members inherit MasterClusterDegraded from it).
func (u *Updater) ReevaluateMaster(masterAccountID string, now time.Time) error {
	group, err := u.store.GetTradeGroupByMaster(masterAccountID)
	if err != nil {
		return err
	}

	masterResult := u.evaluateMaster(group)
	changed, err := u.store.UpdateTradeGroupRuntime(group.ID, uint8(masterResult.Status), masterResult.WarningCodes, now.Unix())
	if err != nil {
		return err
	}
	if changed {
		group.RuntimeStatus = uint8(masterResult.Status)
		group.WarningCodes = masterResult.WarningCodes
		if err := u.publisher.PublishMaster(group, masterResult, now); err != nil {
			u.log.Warn("publish master failed", "master", masterAccountID, "err", err)
		}
		u.notifier.Notify("trade_group_updated", map[string]any{
			"group_id":      group.ID,
			"master":        masterAccountID,
			"status":        masterResult.Status,
			"warning_codes": masterResult.WarningCodes,
		})
	}

	members, err := u.store.ListMembers(group.ID)
	if err != nil {
		return err
	}
	masterSnap, _ := u.registry.Snapshot(masterAccountID)
	var masterEquity *float64
	if masterSnap.Online {
		eq := masterSnap.Equity
		masterEquity = &eq
	}
	for _, m := range members {
		if err := u.applyMember(m, masterResult, masterEquity, now); err != nil {
			u.log.Warn("reevaluate member failed", "member", m.ID, "err", err)
		}
	}

	u.metrics.UpdaterEvent()
	return nil
}

// ReevaluateMember re-runs a single member's status against its Master's
// current evaluated status, without forcing a re-evaluation of sibling
// members (used when only this edge's own intent/settings changed).
func (u *Updater) ReevaluateMember(memberID string, now time.Time) error {
	member, err := u.store.GetMember(memberID)
	if err != nil {
		return err
	}
	group, err := u.store.GetTradeGroup(member.GroupID)
	if err != nil {
		return err
	}
	masterResult := u.evaluateMaster(group)

	masterSnap, _ := u.registry.Snapshot(group.MasterAccountID)
	var masterEquity *float64
	if masterSnap.Online {
		eq := masterSnap.Equity
		masterEquity = &eq
	}

	if err := u.applyMember(member, masterResult, masterEquity, now); err != nil {
		return err
	}
	u.metrics.UpdaterEvent()
	return nil
}

// ReevaluateSlave re-runs every group membership a Slave account belongs
// to; used when that Slave's own heartbeat/liveness changes, since a
// Slave can copy from more than one Master.
func (u *Updater) ReevaluateSlave(slaveAccountID string, now time.Time) error {
	memberships, err := u.store.ListMembersBySlave(slaveAccountID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if err := u.ReevaluateMember(m.ID, now); err != nil {
			u.log.Warn("reevaluate slave membership failed", "member", m.ID, "err", err)
		}
	}
	return nil
}

// ForcePublishMaster re-emits a Master's config frame unconditionally,
// bypassing the changed-only gate. Used to answer an explicit
// RequestConfig from that Master, independent of whatever triggered the
// last change-driven emission.
func (u *Updater) ForcePublishMaster(masterAccountID string, now time.Time) error {
	group, err := u.store.GetTradeGroupByMaster(masterAccountID)
	if err != nil {
		return err
	}
	result := u.evaluateMaster(group)
	return u.publisher.PublishMaster(group, result, now)
}

// ForcePublishMember re-emits a single member's config frame
// unconditionally, for an explicit RequestConfig from that Slave.
func (u *Updater) ForcePublishMember(memberID string, now time.Time) error {
	member, err := u.store.GetMember(memberID)
	if err != nil {
		return err
	}
	group, err := u.store.GetTradeGroup(member.GroupID)
	if err != nil {
		return err
	}
	masterResult := u.evaluateMaster(group)

	masterSnap, _ := u.registry.Snapshot(group.MasterAccountID)
	var masterEquity *float64
	if masterSnap.Online {
		eq := masterSnap.Equity
		masterEquity = &eq
	}

	slaveSnap, _ := u.registry.Snapshot(member.SlaveAccountID)
	result := statusengine.EvaluateMember(statusengine.MemberSnapshot{
		Intent:             member.EnabledFlag,
		SlaveOnline:        slaveSnap.Online,
		AutoTradingAllowed: slaveSnap.TradeAllowed,
		Master:             masterResult,
	})
	return u.publisher.PublishSlave(member, result, masterEquity, now)
}

func (u *Updater) applyMember(member *store.TradeGroupMember, masterResult statusengine.MasterResult, masterEquity *float64, now time.Time) error {
	slaveSnap, _ := u.registry.Snapshot(member.SlaveAccountID)
	u.metrics.Evaluation()
	result := statusengine.EvaluateMember(statusengine.MemberSnapshot{
		Intent:             member.EnabledFlag,
		SlaveOnline:        slaveSnap.Online,
		AutoTradingAllowed: slaveSnap.TradeAllowed,
		Master:             masterResult,
	})

	changed, err := u.store.UpdateMemberRuntime(member.ID, uint8(result.Status), result.WarningCodes, result.AllowNewOrders, now.Unix())
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if err := u.publisher.PublishSlave(member, result, masterEquity, now); err != nil {
		u.log.Warn("publish slave failed", "slave", member.SlaveAccountID, "err", err)
	}
	u.notifier.Notify("member_runtime_update", map[string]any{
		"member_id":        member.ID,
		"group_id":         member.GroupID,
		"slave":            member.SlaveAccountID,
		"status":           result.Status,
		"warning_codes":    result.WarningCodes,
		"allow_new_orders": result.AllowNewOrders,
	})
	return nil
}
