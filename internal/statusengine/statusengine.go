// Package statusengine computes the runtime status and warning codes for
// Master and Slave accounts. It is pure: no I/O, no locking, no awareness
// of registry, store, or the wire format — every input arrives as a plain
// value and every output is a plain value, which is what makes the
// four-invariant rule table here exhaustively testable.
package statusengine

// RuntimeStatus is the effective status published to an EA.
type RuntimeStatus uint8

const (
	StatusDisabled  RuntimeStatus = 0
	StatusEnabled   RuntimeStatus = 1
	StatusConnected RuntimeStatus = 2
)

// WarningCode carries a total priority ordering: Slave-side causes sort
// before Master-side causes, which sort before composite causes, so a
// caller that wants "the one warning that matters most" can just take the
// minimum code.
type WarningCode int

const (
	SlaveWebUiDisabled       WarningCode = 10
	SlaveOffline             WarningCode = 20
	SlaveAutoTradingDisabled WarningCode = 30
	MasterWebUiDisabled      WarningCode = 40
	MasterOffline            WarningCode = 50
	MasterAutoTradingDisabled WarningCode = 60
	MasterClusterDegraded    WarningCode = 70
)

// Less orders warning codes by ascending severity priority (Slave causes
// first, then Master causes, then composite causes).
func (w WarningCode) Less(other WarningCode) bool {
	return w < other
}

// MasterSnapshot is every fact the engine needs about a Master account.
type MasterSnapshot struct {
	Intent           bool // web UI enabled flag
	Online           bool
	AutoTradingAllowed bool
}

// MasterResult is the evaluated Master status.
type MasterResult struct {
	Status       RuntimeStatus
	WarningCodes []int
}

// EvaluateMaster applies the Master-side rule table, first match wins:
//  1. intent false          -> DISABLED + MasterWebUiDisabled
//  2. not online             -> ENABLED + MasterOffline
//  3. auto-trading disallowed -> ENABLED + MasterAutoTradingDisabled
//  4. otherwise               -> CONNECTED, no warnings
func EvaluateMaster(s MasterSnapshot) MasterResult {
	if !s.Intent {
		return MasterResult{Status: StatusDisabled, WarningCodes: []int{int(MasterWebUiDisabled)}}
	}
	if !s.Online {
		return MasterResult{Status: StatusEnabled, WarningCodes: []int{int(MasterOffline)}}
	}
	if !s.AutoTradingAllowed {
		return MasterResult{Status: StatusEnabled, WarningCodes: []int{int(MasterAutoTradingDisabled)}}
	}
	return MasterResult{Status: StatusConnected, WarningCodes: nil}
}

// MemberSnapshot is every fact the engine needs about one Master->Slave
// edge to evaluate the member's status.
type MemberSnapshot struct {
	Intent             bool // Slave-side web UI enabled flag
	SlaveOnline        bool
	AutoTradingAllowed bool
	Master             MasterResult
}

// MemberResult is the evaluated member status plus the Slave-side
// readiness flag.
type MemberResult struct {
	Status         RuntimeStatus
	WarningCodes   []int
	AllowNewOrders bool
}

// EvaluateMember applies the Slave-side rule table, first match wins:
//  1. intent false            -> DISABLED + SlaveWebUiDisabled
//  2. slave offline             -> DISABLED + SlaveOffline
//  3. slave auto-trading off     -> DISABLED + SlaveAutoTradingDisabled
//  4. master connected            -> CONNECTED, no warnings
//  5. otherwise (master degraded)  -> ENABLED + MasterClusterDegraded,
//     carrying the Master's own warning codes so the UI can explain why.
//
// allow_new_orders reflects only the Slave's own readiness (rules 1-3) and
// is never gated on the Master's connectivity: a Slave that is itself
// ready to trade stays ready even if its Master is offline, so it keeps
// accepting orders placed directly on the Slave terminal. This fail-open
// behavior is deliberate, not an oversight.
func EvaluateMember(s MemberSnapshot) MemberResult {
	slaveReady := s.Intent && s.SlaveOnline && s.AutoTradingAllowed

	if !s.Intent {
		return MemberResult{Status: StatusDisabled, WarningCodes: []int{int(SlaveWebUiDisabled)}, AllowNewOrders: slaveReady}
	}
	if !s.SlaveOnline {
		return MemberResult{Status: StatusDisabled, WarningCodes: []int{int(SlaveOffline)}, AllowNewOrders: slaveReady}
	}
	if !s.AutoTradingAllowed {
		return MemberResult{Status: StatusDisabled, WarningCodes: []int{int(SlaveAutoTradingDisabled)}, AllowNewOrders: slaveReady}
	}
	if s.Master.Status == StatusConnected {
		return MemberResult{Status: StatusConnected, WarningCodes: nil, AllowNewOrders: slaveReady}
	}

	warnings := append([]int{int(MasterClusterDegraded)}, s.Master.WarningCodes...)
	return MemberResult{Status: StatusEnabled, WarningCodes: warnings, AllowNewOrders: slaveReady}
}
