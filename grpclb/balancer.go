package grpclb

import (
	"context"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"
	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/resolver"
)

// Balancer is the grpclb policy facade (spec §4.1). It implements
// balancer.Balancer directly rather than building on balancer/base,
// because the state this policy owns — pending-pick bookkeeping,
// balancer sessions, handover — has no relationship to base's
// ready-subconn-set model.
type Balancer struct {
	cc   balancer.ClientConn
	opts balancer.BuildOptions

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	serverName     string
	shuttingDown   bool
	startedPicking bool
	state          connectivity.State // G, the last state published to cc
	child          *childEntry        // nullable; current round_robin generation
	list           *serverList        // nullable; last applied server list
	innerConn      *grpc.ClientConn
	innerResolver  *innerResolverBuilder
	session        *balancerSession
	backoff        *backoff.ExponentialBackOff

	pending *pendingGate
	metrics *policyMetrics
}

func newBalancer(cc balancer.ClientConn, opts balancer.BuildOptions) *Balancer {
	ctx, cancel := context.WithCancel(context.Background())
	serverName := ""
	if opts.Target.URL.Opaque != "" || opts.Target.URL.Path != "" {
		serverName = opts.Target.Endpoint()
	}
	b := &Balancer{
		cc:         cc,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		serverName: serverName,
		state:      connectivity.Idle,
		pending:    newPendingGate(),
		metrics:    newPolicyMetrics(serverName),
	}
	b.publishLocked(nil)
	return b
}

// publishLocked pushes the current composed state and a picker bound
// to the current child up to the real ClientConn. Must be called with
// b.mu held.
func (b *Balancer) publishLocked(pickErr error) {
	b.cc.UpdateState(balancer.State{
		ConnectivityState: b.state,
		Picker:            &picker{b: b, err: pickErr},
	})
}

// applyChildStateLocked runs the connectivity-composition rule (spec
// §4.5) for a newly observed child state and republishes upward if it
// changed. Must be called with b.mu held.
func (b *Balancer) applyChildStateLocked(s balancer.State) {
	next := composeState(b.state, s.ConnectivityState)
	changed := next != b.state
	b.state = next
	if changed {
		tracef("grpclb: composed state now %v (child reported %v)", next, s.ConnectivityState)
	}
	b.metrics.setState(next)
	// Always republish: even when the composed state is unchanged, the
	// child may have a fresh picker (e.g. a different subconn set at the
	// same READY state) that callers blocked on ErrNoSubConnAvailable
	// need to retry against.
	b.cc.UpdateState(balancer.State{
		ConnectivityState: b.state,
		Picker:            &picker{b: b},
	})
	b.pending.broadcast()
}

// UpdateClientConnState implements balancer.Balancer.
func (b *Balancer) UpdateClientConnState(s balancer.ClientConnState) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shuttingDown {
		return nil
	}

	var balancerAddrs []resolver.Address
	for _, a := range s.ResolverState.Addresses {
		if isBalancerAddress(a) {
			balancerAddrs = append(balancerAddrs, a)
		}
	}
	if len(balancerAddrs) == 0 {
		return errNoBalancerAddr
	}

	if b.innerConn == nil {
		if err := b.dialInnerLocked(balancerAddrs); err != nil {
			return err
		}
	} else {
		b.innerResolver.updateAddrs(balancerAddrs)
	}

	return nil
}

func (b *Balancer) dialInnerLocked(balancerAddrs []resolver.Address) error {
	ir := newInnerResolverBuilder(balancerAddrs)
	b.innerResolver = ir

	target := ir.scheme + ":///balancer"
	conn, err := grpc.NewClient(target,
		grpc.WithResolvers(ir),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"pick_first"}`),
	)
	if err != nil {
		return err
	}
	b.innerConn = conn
	return nil
}

// ResolverError implements balancer.Balancer.
func (b *Balancer) ResolverError(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shuttingDown {
		return
	}
	logger.Infof("grpclb: resolver error: %v", err)
	next := composeState(b.state, connectivity.TransientFailure)
	b.state = next
	b.publishLocked(err)
}

// UpdateSubConnState implements balancer.Balancer. grpclb never creates
// a SubConn itself (the round_robin child does, against the real
// ClientConn), so in the modern StateListener-based API this is never
// invoked; it remains only to satisfy the interface.
func (b *Balancer) UpdateSubConnState(balancer.SubConn, balancer.SubConnState) {}

// ExitIdle implements the balancer.ExitIdler extension interface
// (spec §4.1 "exit_idle").
func (b *Balancer) ExitIdle() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.shuttingDown || b.startedPicking {
		return
	}
	b.startPickingLocked()
}

// startPickingLocked begins the active phase: reset backoff and spin
// up a balancer session. started_picking is sticky per spec §3.
func (b *Balancer) startPickingLocked() {
	b.startedPicking = true
	b.backoff = newBackoff()
	b.session = newBalancerSession(b, b.ctx)
	go b.session.run()
}

// onServerList implements the bulk of spec §4.3's on_response and
// §4.4's process_serverlist/rr_handover dispatch.
func (b *Balancer) onServerList(sl *serverList) {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return
	}
	b.backoff.Reset()

	if len(sl.entries) == 0 {
		// Empty list: not an error, picks remain pending, no handover.
		b.list = sl
		b.mu.Unlock()
		return
	}
	if b.list.equal(sl) {
		// Identical update: suppressed, no handover, no transition.
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	// handover takes b.mu itself, in short bursts rather than for its
	// whole body: the round_robin child it builds calls back into
	// childConn.UpdateState synchronously from inside
	// UpdateClientConnState, and that callback also needs b.mu.
	b.handover(sl)
}

// Close implements balancer.Balancer (spec §4.1 "shutdown").
func (b *Balancer) Close() {
	b.mu.Lock()
	if b.shuttingDown {
		b.mu.Unlock()
		return
	}
	b.shuttingDown = true
	b.state = connectivity.Shutdown
	drained := b.pending.drainCount()
	child := b.child
	inner := b.innerConn
	b.mu.Unlock()

	if drained > 0 {
		logger.Infof("grpclb: shutdown draining %d pending pick(s) with cancellation", drained)
	}
	b.pending.close()
	b.cancel() // cancels the active session's context outside the lock.

	if child != nil {
		child.bal.Close()
	}
	if inner != nil {
		inner.Close()
	}
}
