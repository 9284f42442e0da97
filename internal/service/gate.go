package service

import "github.com/kjstillabower/weather-refresh/internal/observability"

// fetchGate admits one fetch cycle at a time. Triggers arriving while a cycle
// is in flight are dropped and counted; callers waiting on a dropped trigger
// are released when the in-flight cycle ends. Owned by the event loop, so it
// needs no locking.
type fetchGate struct {
	inFlight bool
	trigger  Trigger
	dropped  uint64
	waiters  []chan struct{}
}

// acquire starts a cycle for trigger. It returns false when one is running.
func (g *fetchGate) acquire(trigger Trigger, done chan struct{}) bool {
	if done != nil {
		g.waiters = append(g.waiters, done)
	}
	if g.inFlight {
		g.dropped++
		observability.FetchTriggersDroppedTotal.WithLabelValues(string(trigger)).Inc()
		return false
	}
	g.inFlight = true
	g.trigger = trigger
	return true
}

// wait registers done to be closed when the in-flight cycle ends, without
// counting a trigger.
func (g *fetchGate) wait(done chan struct{}) {
	g.waiters = append(g.waiters, done)
}

// release ends the in-flight cycle and wakes every waiter.
func (g *fetchGate) release() {
	g.inFlight = false
	g.trigger = ""
	for _, ch := range g.waiters {
		close(ch)
	}
	g.waiters = nil
}
