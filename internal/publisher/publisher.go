// Package publisher builds the wire config frames for Master and Slave
// accounts and emits them on the PUB transport. Every emission bumps the
// target's config_version in the store first, so a frame is never sent
// under a version number that has already been used — invariant 5 holds
// even if two emissions race, since the store's increment is atomic under
// its own lock.
package publisher

import (
	"time"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/statusengine"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/transport"
	"github.com/tradecopy/relayd/internal/wire"
	"github.com/tradecopy/relayd/pkg/logging"
)

// Publisher builds and emits config frames. It holds no state of its own
// beyond its collaborators; every call is self-contained.
type Publisher struct {
	store   *store.Store
	pub     *transport.PubServer
	metrics *metrics.Counters
	log     *logging.Logger
}

// New returns a Publisher wired to the given store and PUB transport.
func New(st *store.Store, pub *transport.PubServer, m *metrics.Counters) *Publisher {
	return &Publisher{
		store:   st,
		pub:     pub,
		metrics: m,
		log:     logging.GetDefault().Component("publisher"),
	}
}

// PublishMaster bumps the Master's config_version and emits its config
// frame on a topic equal to its own account id.
func (p *Publisher) PublishMaster(group *store.TradeGroup, result statusengine.MasterResult, now time.Time) error {
	version, err := p.store.BumpTradeGroupConfigVersion(group.ID, now.Unix())
	if err != nil {
		return err
	}

	frame := wire.MasterConfig{
		AccountID:     group.MasterAccountID,
		Status:        uint8(result.Status),
		WarningCodes:  result.WarningCodes,
		ConfigVersion: version,
		Enabled:       group.EnabledFlag,
		SymbolPrefix:  group.SymbolPrefix,
		SymbolSuffix:  group.SymbolSuffix,
		Timestamp:     now,
	}
	p.emit(group.MasterAccountID, frame.Encode())
	return nil
}

// PublishSlave bumps the member's config_version and emits its config
// frame on a topic equal to its own account id.
func (p *Publisher) PublishSlave(member *store.TradeGroupMember, result statusengine.MemberResult, masterEquity *float64, now time.Time) error {
	version, err := p.store.BumpMemberConfigVersion(member.ID, now.Unix())
	if err != nil {
		return err
	}

	frame := wire.SlaveConfig{
		AccountID:         member.SlaveAccountID,
		Status:            uint8(result.Status),
		WarningCodes:      result.WarningCodes,
		AllowNewOrders:    result.AllowNewOrders,
		MasterEquity:      masterEquity,
		ConfigVersion:     version,
		LotMode:           member.LotMode,
		Multiplier:        member.Multiplier,
		ReverseTrade:      member.ReverseTrade,
		SymbolPrefix:      member.SymbolPrefix,
		SymbolSuffix:      member.SymbolSuffix,
		SymbolMappings:    member.SymbolMappings,
		CopyPendingOrders: member.CopyPendingOrders,
		SourceLotMin:      member.SourceLotMin,
		SourceLotMax:      member.SourceLotMax,
		AllowedSymbols:    member.AllowedSymbols,
		BlockedSymbols:    member.BlockedSymbols,
		AllowedMagic:      member.AllowedMagic,
		BlockedMagic:      member.BlockedMagic,
		SyncPolicy:        member.SyncPolicy,
		MaxSlippagePoints: member.MaxSlippagePoints,
		Timestamp:         now,
	}
	p.emit(member.SlaveAccountID, frame.Encode())
	return nil
}

// emit publishes a frame topic-framed by account id and counts the
// outcome. There is no retry on failure (an emission failure only counts
// and logs): the requester can always force a fresh emission via
// RequestConfig, which is cheaper and simpler than tracking per-frame
// retry state for a transport that is, by construction, best-effort.
func (p *Publisher) emit(topic string, body []byte) {
	framed := wire.EncodeTopicFrame(topic, body)
	if p.pub.Publish(framed) {
		p.metrics.EmissionSucceeded()
	} else {
		p.metrics.EmissionFailed()
		p.log.Warn("emission dropped", "topic", topic)
	}
}
