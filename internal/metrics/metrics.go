// Package metrics holds the relay's lock-free counters. There is no
// external metrics backend wired in, so counters are rendered as plain
// text by the HTTP surface's /api/metrics route instead.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Counters is the process-wide set of named counters. All increments are
// single atomic adds; no lock is ever held across more than one counter.
type Counters struct {
	emissionsOK     atomic.Int64
	emissionsFailed atomic.Int64
	evaluations     atomic.Int64
	updaterEvents   atomic.Int64

	mu       sync.Mutex
	reasons  map[string]*atomic.Int64
}

// Default is the process-wide counter set.
var Default = New()

// New returns an empty counter set.
func New() *Counters {
	return &Counters{reasons: make(map[string]*atomic.Int64)}
}

func (c *Counters) EmissionSucceeded() { c.emissionsOK.Add(1) }
func (c *Counters) EmissionFailed()    { c.emissionsFailed.Add(1) }
func (c *Counters) Evaluation()        { c.evaluations.Add(1) }
func (c *Counters) UpdaterEvent()      { c.updaterEvents.Add(1) }

// IncReason bumps a free-form named counter, used for filter-drop reasons
// such as "filter.magic_blocked" or "filter.lot_window".
func (c *Counters) IncReason(name string) {
	c.mu.Lock()
	ctr, ok := c.reasons[name]
	if !ok {
		ctr = &atomic.Int64{}
		c.reasons[name] = ctr
	}
	c.mu.Unlock()
	ctr.Add(1)
}

// Render produces a plain-text snapshot, one "name value" pair per line:
// the four fixed counters in a fixed order, then the reason counters
// sorted by name, for a stable diff between scrapes.
func (c *Counters) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "emissions_ok %d\n", c.emissionsOK.Load())
	fmt.Fprintf(&b, "emissions_failed %d\n", c.emissionsFailed.Load())
	fmt.Fprintf(&b, "evaluations %d\n", c.evaluations.Load())
	fmt.Fprintf(&b, "updater_events %d\n", c.updaterEvents.Load())

	c.mu.Lock()
	names := make([]string, 0, len(c.reasons))
	for name := range c.reasons {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "%s %d\n", name, c.reasons[name].Load())
	}
	c.mu.Unlock()

	return b.String()
}
