package grpclb

import (
	"sync"
)

// pendingGate is the Go re-expression of spec §4.2's pending pick/ping
// queues. grpc-go's own Picker contract already gives every blocked
// pick a place to wait: the RPC runtime retries Pick whenever
// ClientConn.UpdateState fires again after a Picker returns
// ErrNoSubConnAvailable, so a Picker must never block inside Pick
// itself. pendingGate does not hold callers at all; it only counts how
// many Pick calls have returned ErrNoSubConnAvailable since the last
// broadcast or close, so handover and shutdown can log how many picks
// they are about to unblock (spec §8 scenario 5), mirroring the
// teacher's background ticker tracking outstanding fallback attempts
// in fallback_balancer.go.
type pendingGate struct {
	mu      sync.Mutex
	done    bool
	waiting int
}

func newPendingGate() *pendingGate {
	return &pendingGate{}
}

// markBlocked records that Pick just returned ErrNoSubConnAvailable for
// one caller. It never blocks the caller itself; grpc-go's own picker
// wrapper does that, re-invoking Pick once cc.UpdateState installs a
// fresh Picker.
func (g *pendingGate) markBlocked() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.waiting++
}

// drainCount reports how many Pick calls are currently counted as
// blocked, used for the "N pending picks are drained" observability
// the handover and shutdown paths log (spec §8 scenario 5).
func (g *pendingGate) drainCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.waiting
}

// broadcast resets the blocked count to zero. It wakes no one itself:
// the Picker installed by the cc.UpdateState call that precedes it is
// what wakes every waiting caller, by making grpc-go retry Pick
// against it.
func (g *pendingGate) broadcast() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.waiting = 0
}

// close marks the gate permanently done; used by shutdown, after which
// markBlocked becomes a no-op (every further pick fails immediately
// via errShuttingDown rather than ever being counted as blocked).
func (g *pendingGate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.done = true
	g.waiting = 0
}
