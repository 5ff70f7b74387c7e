// Package copyengine decides, for one Master trade signal and one
// candidate Slave member, whether the trade should be copied (Filter) and
// what it should look like once copied (Transform). Neither function
// performs any I/O; both are driven entirely by their arguments so the
// fail-fast filter order and the symbol rewrite pipeline can be tested as
// plain data-in/data-out cases.
package copyengine

import (
	"strings"

	"github.com/tradecopy/relayd/internal/metrics"
	"github.com/tradecopy/relayd/internal/statusengine"
	"github.com/tradecopy/relayd/internal/store"
	"github.com/tradecopy/relayd/internal/wire"
)

// FilterReason names why a signal was not copied to a member. Empty means
// the signal passed every gate.
type FilterReason string

const (
	ReasonOK                    FilterReason = ""
	ReasonNotConnected          FilterReason = "filter.not_connected"
	ReasonPendingOrderDisallowed FilterReason = "filter.pending_order_disallowed"
	ReasonLotWindow             FilterReason = "filter.lot_window"
	ReasonSymbolNotAllowed      FilterReason = "filter.symbol_not_allowed"
	ReasonSymbolBlocked         FilterReason = "filter.symbol_blocked"
	ReasonMagicNotAllowed       FilterReason = "filter.magic_not_allowed"
	ReasonMagicBlocked          FilterReason = "filter.magic_blocked"
)

// Engine holds nothing but a counters handle; every method call is
// independent and safe to call concurrently from many goroutines.
type Engine struct {
	metrics *metrics.Counters
}

// New returns a copy engine reporting filter-drop reasons on m.
func New(m *metrics.Counters) *Engine {
	return &Engine{metrics: m}
}

// isPendingOrder reports whether an order type is a pending (not market)
// order, per the EA-side order-type vocabulary.
func isPendingOrder(orderType string) bool {
	switch strings.ToLower(orderType) {
	case "buy", "sell", "":
		return false
	default:
		return true
	}
}

// Filter runs the fixed, fail-fast gate pipeline in order:
//  1. member must be CONNECTED (Master up, Slave up, Slave ready)
//  2. pending orders require copy_pending_orders
//  3. lot size must fall within [source_lot_min, source_lot_max], each
//     bound optional (a nil bound does not constrain that side)
//  4. symbol allow-list: empty list allows everything, otherwise symbol
//     must appear in it
//  5. symbol block-list: empty list blocks nothing
//  6. magic-number allow-list, then block-list, same empty-list semantics
//
// The first failing gate decides the outcome; later gates are never
// evaluated (so a blocked symbol and a blocked magic number on the same
// signal always reports the symbol failure).
func (e *Engine) Filter(signal wire.TradeSignal, member *store.TradeGroupMember, runtimeStatus uint8) (bool, FilterReason) {
	if statusengine.RuntimeStatus(runtimeStatus) != statusengine.StatusConnected {
		return e.reject(ReasonNotConnected)
	}
	if isPendingOrder(signal.OrderType) && !member.CopyPendingOrders {
		return e.reject(ReasonPendingOrderDisallowed)
	}
	if member.SourceLotMin != nil && signal.Lots < *member.SourceLotMin {
		return e.reject(ReasonLotWindow)
	}
	if member.SourceLotMax != nil && signal.Lots > *member.SourceLotMax {
		return e.reject(ReasonLotWindow)
	}
	if len(member.AllowedSymbols) > 0 && !containsStr(member.AllowedSymbols, signal.Symbol) {
		return e.reject(ReasonSymbolNotAllowed)
	}
	if len(member.BlockedSymbols) > 0 && containsStr(member.BlockedSymbols, signal.Symbol) {
		return e.reject(ReasonSymbolBlocked)
	}
	if len(member.AllowedMagic) > 0 && (signal.MagicNumber == nil || !containsInt64(member.AllowedMagic, *signal.MagicNumber)) {
		return e.reject(ReasonMagicNotAllowed)
	}
	if len(member.BlockedMagic) > 0 && signal.MagicNumber != nil && containsInt64(member.BlockedMagic, *signal.MagicNumber) {
		return e.reject(ReasonMagicBlocked)
	}
	return true, ReasonOK
}

func (e *Engine) reject(reason FilterReason) (bool, FilterReason) {
	e.metrics.IncReason(string(reason))
	return false, reason
}

// Transform rewrites a signal's symbol for delivery to a Slave: strip the
// Master's prefix/suffix, apply the member's first-match symbol mapping,
// then apply the Slave's own prefix/suffix. Lot sizing, order-type
// reversal and slippage handling are NOT done here — those stay entirely
// on the EA side, driven by the settings already carried in the member's
// published SlaveConfig frame.
func (e *Engine) Transform(signal wire.TradeSignal, group *store.TradeGroup, member *store.TradeGroupMember) wire.TradeSignal {
	out := signal

	symbol := strings.TrimSuffix(strings.TrimPrefix(signal.Symbol, group.SymbolPrefix), group.SymbolSuffix)
	for _, mapping := range member.SymbolMappings {
		if mapping.From == symbol {
			symbol = mapping.To
			break
		}
	}
	out.Symbol = member.SymbolPrefix + symbol + member.SymbolSuffix
	return out
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsInt64(list []int64, v int64) bool {
	for _, n := range list {
		if n == v {
			return true
		}
	}
	return false
}
