// Package handler dispatches decoded wire frames from the ingest loop to
// the component that owns each message kind, the same tag-keyed dispatch
// shape as a JSON-RPC method table but keyed on wire.MessageKind instead
// of a method name string.
package handler

import (
	"errors"
	"time"

	"github.com/tradecopy/relayd/internal/copyengine"
	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/registry"
	"github.com/tradecopy/relayd/internal/statusengine"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/internal/updater"
	"github.com/tradecopy/relayd/internal/wire"
	"github.com/tradecopy/relayd/pkg/logging"
)

// Handler owns the single-threaded reaction to every inbound EA message.
// It is intended to be driven by exactly one ingest worker per spec:
// nothing here is internally synchronized, because its callers already
// provide mutual exclusion by construction.
type Handler struct {
	registry *registry.Registry
	store    *store.Store
	updater  *updater.Updater
	engine   *copyengine.Engine
	pub      *transport.PubServer
	metrics  *metrics.Counters
	notifier updater.Notifier
	log      *logging.Logger
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, any) {}

// New returns a Handler wired to its collaborators. Pass nil for notifier
// to run without a WS hub wired (e.g. in tests), same convention as
// updater.New.
func New(reg *registry.Registry, st *store.Store, u *updater.Updater, engine *copyengine.Engine, pub *transport.PubServer, notifier updater.Notifier, m *metrics.Counters) *Handler {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Handler{
		registry: reg,
		store:    st,
		updater:  u,
		engine:   engine,
		pub:      pub,
		metrics:  m,
		notifier: notifier,
		log:      logging.GetDefault().Component("handler"),
	}
}

// Handle routes one inbound frame by its message kind. A body decode
// error is logged and swallowed; the sending connection stays open (the
// transport layer closes a connection only on a malformed frame).
func (h *Handler) Handle(frame transport.InboundFrame) {
	var err error
	switch frame.Kind {
	case wire.KindRegister:
		err = h.handleRegister(frame.Body)
	case wire.KindUnregister:
		err = h.handleUnregister(frame.Body)
	case wire.KindHeartbeat:
		err = h.handleHeartbeat(frame.Body)
	case wire.KindTradeSignal:
		err = h.handleTradeSignal(frame.Body)
	case wire.KindRequestConfig:
		err = h.handleRequestConfig(frame.Body)
	default:
		h.log.Warn("unhandled message kind", "kind", frame.Kind, "remote", frame.RemoteAddr)
		return
	}
	if err != nil {
		h.log.Warn("handler error", "kind", frame.Kind, "remote", frame.RemoteAddr, "err", err)
	}
}

func (h *Handler) handleRegister(body []byte) error {
	msg, err := wire.DecodeRegister(body)
	if err != nil {
		return err
	}
	now := time.Now()
	h.registry.UpsertHeartbeat(msg.AccountID, registry.HeartbeatFacts{Role: msg.Role}, now)
	return h.reevaluateForRole(msg.AccountID, msg.Role, now)
}

func (h *Handler) handleUnregister(body []byte) error {
	msg, err := wire.DecodeUnregister(body)
	if err != nil {
		return err
	}
	snap, ok := h.registry.MarkUnregistered(msg.AccountID)
	if !ok {
		return nil
	}
	h.notifier.Notify("ea_disconnected", map[string]any{
		"account_id": msg.AccountID,
		"role":       snap.Role,
		"status":     snap.Status,
	})
	return h.reevaluateForRole(msg.AccountID, snap.Role, time.Now())
}

func (h *Handler) handleHeartbeat(body []byte) error {
	hb, err := wire.DecodeHeartbeat(body)
	if err != nil {
		return err
	}
	now := time.Now()
	facts := registry.HeartbeatFacts{
		Role:           hb.Role,
		Platform:       hb.Platform,
		NumericAccount: hb.NumericAccount,
		Broker:         hb.Broker,
		Server:         hb.Server,
		Balance:        hb.Balance,
		Equity:         hb.Equity,
		Currency:       hb.Currency,
		Leverage:       hb.Leverage,
		TradeAllowed:   hb.TradeAllowed,
	}
	snap, firstSeen, tradeAllowedChanged := h.registry.UpsertHeartbeat(hb.AccountID, facts, now)
	h.notifier.Notify("ea_heartbeat", map[string]any{
		"account_id": hb.AccountID,
		"role":       hb.Role,
		"balance":    snap.Balance,
		"equity":     snap.Equity,
	})
	if !firstSeen && !tradeAllowedChanged {
		return nil
	}
	return h.reevaluateForRole(hb.AccountID, hb.Role, now)
}

func (h *Handler) reevaluateForRole(accountID string, role wire.Role, now time.Time) error {
	if role == wire.RoleMaster {
		if _, err := h.store.GetTradeGroupByMaster(accountID); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			// A Master's first heartbeat auto-materializes its trade group;
			// member edges are still provisioned explicitly over HTTP.
			if _, err := h.store.CreateTradeGroup(accountID, now.Unix()); err != nil && !errors.Is(err, store.ErrConflict) {
				return err
			}
		}
		return h.updater.ReevaluateMaster(accountID, now)
	}
	return h.updater.ReevaluateSlave(accountID, now)
}

func (h *Handler) handleRequestConfig(body []byte) error {
	msg, err := wire.DecodeRequestConfig(body)
	if err != nil {
		return err
	}
	now := time.Now()

	if _, err := h.store.GetTradeGroupByMaster(msg.AccountID); err == nil {
		return h.updater.ForcePublishMaster(msg.AccountID, now)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	memberships, err := h.store.ListMembersBySlave(msg.AccountID)
	if err != nil {
		return err
	}
	for _, m := range memberships {
		if err := h.updater.ForcePublishMember(m.ID, now); err != nil {
			h.log.Warn("force publish member failed", "member", m.ID, "err", err)
		}
	}
	return nil
}

func (h *Handler) handleTradeSignal(body []byte) error {
	sig, err := wire.DecodeTradeSignal(body)
	if err != nil {
		return err
	}

	group, err := h.store.GetTradeGroupByMaster(sig.SourceAccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil // no copy group for this source account
		}
		return err
	}

	h.notifier.Notify("trade_received", map[string]any{
		"group_id": group.ID,
		"master":   sig.SourceAccountID,
		"symbol":   sig.Symbol,
		"action":   sig.Action,
		"ticket":   sig.Ticket,
	})

	members, err := h.store.ListMembers(group.ID)
	if err != nil {
		return err
	}

	for _, m := range members {
		if statusengine.RuntimeStatus(m.RuntimeStatus) != statusengine.StatusConnected {
			continue
		}
		ok, reason := h.engine.Filter(*sig, m, m.RuntimeStatus)
		if !ok {
			h.log.Debug("trade signal filtered", "member", m.ID, "reason", reason)
			continue
		}
		copied := h.engine.Transform(*sig, group, m)
		// Published on the Master's own topic, not the Slave's: pub.go does
		// no server-side filtering, so Slaves subscribe to their Master's
		// account id to receive copied signals.
		h.publishCopiedSignal(group.MasterAccountID, copied)
		h.notifier.Notify("trade_copied", map[string]any{
			"group_id": group.ID,
			"master":   group.MasterAccountID,
			"member":   m.ID,
			"slave":    m.SlaveAccountID,
			"symbol":   copied.Symbol,
			"ticket":   copied.Ticket,
		})
	}
	return nil
}

func (h *Handler) publishCopiedSignal(topic string, sig wire.TradeSignal) {
	framed := wire.EncodeTopicFrame(topic, sig.Encode())
	if h.pub.Publish(framed) {
		h.metrics.EmissionSucceeded()
	} else {
		h.metrics.EmissionFailed()
	}
}
