package grpclb

import (
	"sync"

	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/balancer/roundrobin"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/resolver"
)

// subConnInfo maps each SubConn the child has created back to the LB
// token and backend address its serverlist entry carried (spec
// §4.4/§4.6): round_robin's own PickResult only names a SubConn, so
// this is how Pick recovers both the token to stamp onto outgoing
// request metadata and the label to attribute the pick to in metrics.
type subConnInfo struct {
	token string
	addr  string
}

// childEntry is one generation of the round_robin child the policy has
// handed addresses to. Exactly one childEntry is "current" at a time;
// childConn (below) silently drops any UpdateState call arriving from
// a childEntry that handover has already superseded, which is how a
// stale child's notifications are kept from corrupting the
// now-current connectivity picture (spec §5, "no pick can race onto a
// half-installed picker").
type childEntry struct {
	bal    balancer.Balancer
	state  connectivity.State
	picker balancer.Picker

	mu    sync.Mutex
	conns map[balancer.SubConn]subConnInfo
}

func (e *childEntry) setSubConn(sc balancer.SubConn, info subConnInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conns == nil {
		e.conns = make(map[balancer.SubConn]subConnInfo)
	}
	e.conns[sc] = info
}

func (e *childEntry) infoFor(sc balancer.SubConn) subConnInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conns[sc]
}

// childConn is the Go analogue of logging_balancer.go's
// wrappedClientConn: it embeds the policy's real balancer.ClientConn
// so RemoveSubConn/UpdateAddresses/Target pass straight through to the
// real channel (the round_robin child's subconns must live on the real
// outer channel to be dialable). NewSubConn also creates the subconn
// on the real channel but is intercepted to record its token (below),
// and UpdateState is intercepted so every connectivity report from the
// child is folded through composeState before the policy republishes it upward. This
// single interception point plays the role spec §4.4 splits into
// "sample the new picker's state" (step 3) and "register a
// connectivity watcher" (step 5): here, each UpdateState call *is*
// both the sample and the watcher firing.
type childConn struct {
	balancer.ClientConn
	b     *Balancer
	entry *childEntry
}

func (w *childConn) UpdateState(s balancer.State) {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	if w.b.child != w.entry {
		// Stale generation: this child has already been superseded or
		// closed by a later handover. Drop the notification.
		return
	}
	w.entry.state = s.ConnectivityState
	w.entry.picker = s.Picker
	w.b.applyChildStateLocked(s)
}

// NewSubConn intercepts round_robin's subconn creation so the token
// carried on the originating resolver.Address (stamped by
// entryToAddress/withLBToken, spec §4.4) survives past round_robin,
// which only threads the bare address through to the transport.
func (w *childConn) NewSubConn(addrs []resolver.Address, opts balancer.NewSubConnOptions) (balancer.SubConn, error) {
	sc, err := w.ClientConn.NewSubConn(addrs, opts)
	if err != nil {
		return nil, err
	}
	info := subConnInfo{token: emptyLBToken}
	if len(addrs) > 0 {
		info.token = lbTokenOf(addrs[0])
		info.addr = addrs[0].Addr
	}
	w.entry.setSubConn(sc, info)
	return sc, nil
}

// handover implements spec §4.4's rr_handover: build a fresh
// round_robin child from the processed addresses and atomically swap
// it in, unless its synchronously-observed state says the old child
// should be kept instead.
//
// round_robin's balancer/base implementation calls cc.UpdateState
// synchronously, from inside UpdateClientConnState, with the child's
// first real sample of connectivity state and picker. That callback
// lands in childConn.UpdateState, whose staleness guard compares
// w.b.child against w.entry under b.mu. entry must therefore already be
// installed as b.child *before* UpdateClientConnState is called, or
// every handover's first sample is dropped as stale and entry.state
// never leaves its connectivity.Connecting placeholder. b.mu is taken
// and released in bursts around that call rather than held across it,
// since the same goroutine would otherwise deadlock re-entering
// childConn.UpdateState's Lock.
func (b *Balancer) handover(sl *serverList) {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return
	}
	old := b.child
	b.mu.Unlock()

	addrs := processServerList(sl)

	entry := &childEntry{state: connectivity.Connecting}
	cc := &childConn{ClientConn: b.cc, b: b, entry: entry}
	bal := balancer.Get(roundrobin.Name).Build(cc, b.opts)
	entry.bal = bal

	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		bal.Close()
		return
	}
	b.child = entry
	b.mu.Unlock()

	err := bal.UpdateClientConnState(balancer.ClientConnState{
		ResolverState: resolver.State{Addresses: addrs},
	})

	b.mu.Lock()
	if b.shuttingDown {
		// Close already tore down whatever b.child pointed to; just
		// discard the generation we were building.
		b.mu.Unlock()
		bal.Close()
		return
	}
	if err != nil {
		logger.Infof("grpclb: failed to update round_robin child with new serverlist: %v", err)
		b.revertLocked(old)
		b.mu.Unlock()
		bal.Close()
		return
	}
	if !replaceOnHandover(entry.state) {
		logger.Infof("grpclb: keeping existing child picker; new one reported %v", entry.state)
		b.revertLocked(old)
		b.mu.Unlock()
		bal.Close()
		return
	}

	b.list = sl
	drained := b.pending.drainCount()
	b.mu.Unlock()

	if old != nil {
		old.bal.Close()
	}
	if drained > 0 {
		logger.Infof("grpclb: handover drained %d pending pick(s) onto the new child", drained)
	}
	b.pending.broadcast()
}

// revertLocked restores old as the current child after a handover
// attempt that failed or was rejected by replaceOnHandover, and
// republishes a picker bound to it. Without the republish, any pick
// that raced into ErrNoSubConnAvailable against the short-lived
// rejected generation would stay blocked until an unrelated state
// change happened to wake it. Must be called with b.mu held; entry has
// not yet been closed by the caller.
func (b *Balancer) revertLocked(old *childEntry) {
	b.child = old
	b.cc.UpdateState(balancer.State{ConnectivityState: b.state, Picker: &picker{b: b}})
}
