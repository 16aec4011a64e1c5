// Package clock implements the logical test clock: advanced stepwise by
// the driver, firing user-scheduled named timers whose fire time falls
// within the advanced interval in deterministic (fire_ns, timer_name)
// order.
package clock

import "sort"

// TimeEventHandler is one timer firing, returned by AdvanceTime in the
// order the driver must dispatch it.
type TimeEventHandler struct {
	Name   string
	FireNs int64
}

type timer struct {
	name       string
	intervalNs int64
	nextFireNs int64
	stopNs     int64
	hasStop    bool
}

// Clock is the logical test clock. It is never backed by wall time; every
// advance is explicit and driven by the next replay item's timestamp.
type Clock struct {
	nowNs  int64
	timers map[string]*timer
}

// New constructs a clock with no timers, time unset (zero).
func New() *Clock {
	return &Clock{timers: make(map[string]*timer)}
}

// Now returns the clock's current logical time.
func (c *Clock) Now() int64 { return c.nowNs }

// SetTime jumps the clock directly to ns without firing any timers; used
// only at setup, before the replay loop starts.
func (c *Clock) SetTime(ns int64) { c.nowNs = ns }

// SetTimer registers (or replaces) a named timer firing every intervalNs,
// starting at its first unfired multiple at or after startNs, optionally
// stopping after stopNs. A timer created during event handling (startNs ==
// c.Now()) starts firing at its next scheduled fire time >= now.
func (c *Clock) SetTimer(name string, intervalNs, startNs int64, stopNs int64, hasStop bool) {
	c.timers[name] = &timer{
		name:       name,
		intervalNs: intervalNs,
		nextFireNs: firstUnfiredMultiple(startNs, c.nowNs, intervalNs),
		stopNs:     stopNs,
		hasStop:    hasStop,
	}
}

// CancelTimer removes a named timer; it is a no-op if unknown.
func (c *Clock) CancelTimer(name string) { delete(c.timers, name) }

// firstUnfiredMultiple finds the first fire time on the startNs, startNs +
// interval, startNs + 2*interval, ... schedule that is >= now.
func firstUnfiredMultiple(startNs, now, intervalNs int64) int64 {
	if startNs >= now || intervalNs <= 0 {
		return startNs
	}
	elapsed := now - startNs
	periods := elapsed / intervalNs
	if elapsed%intervalNs != 0 {
		periods++
	}
	return startNs + periods*intervalNs
}

// AdvanceTime returns every TimeEventHandler whose next_fire_ns falls in
// (prev_ns, to_ns], in strictly ascending (fire_ns, timer_name) order;
// each fired timer's next_fire_ns
// advances to the first unfired multiple of interval_ns, and timers past
// their stop_ns are removed. Clock time is then set to to_ns.
func (c *Clock) AdvanceTime(toNs int64) []TimeEventHandler {
	prev := c.nowNs
	var events []TimeEventHandler

	for _, t := range c.timers {
		// A recurring timer anchored at or before prev (e.g. registered with
		// start == now) catches up to its first multiple after prev; the
		// window below is exclusive on the left, so it would otherwise stall.
		if t.intervalNs > 0 && t.nextFireNs <= prev {
			t.nextFireNs = firstUnfiredMultiple(t.nextFireNs, prev+1, t.intervalNs)
		}
		for t.nextFireNs > prev && t.nextFireNs <= toNs {
			events = append(events, TimeEventHandler{Name: t.name, FireNs: t.nextFireNs})
			fired := t.nextFireNs
			t.nextFireNs = fired + t.intervalNs
			if t.intervalNs <= 0 {
				break // one-shot: non-positive interval never recurs
			}
			if t.hasStop && t.nextFireNs > t.stopNs {
				break
			}
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].FireNs != events[j].FireNs {
			return events[i].FireNs < events[j].FireNs
		}
		return events[i].Name < events[j].Name
	})

	for name, t := range c.timers {
		if t.hasStop && t.nextFireNs > t.stopNs {
			delete(c.timers, name)
		}
	}

	c.nowNs = toNs
	return events
}
