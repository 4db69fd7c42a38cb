package grpclb

import (
	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/metadata"
)

// picker is handed to the real ClientConn via cc.UpdateState every
// time the composed connectivity state or the active child changes.
// It is a thin, immutable snapshot: it closes over the Balancer only
// to reach the current child under lock, never mutating policy state
// itself beyond triggering the first startPickingLocked and counting
// parked picks in pendingGate.
type picker struct {
	b   *Balancer
	err error // non-nil forces every Pick to fail with this error (shutdown, resolver error)
}

// Pick implements spec §4.6's pick_from_internal_rr, folded into
// grpc-go's Picker contract: returning balancer.ErrNoSubConnAvailable
// is how a pending pick is "enqueued" (spec §4.2) — the RPC runtime
// blocks the caller and retries Pick the next time cc.UpdateState
// installs a new Picker, which is exactly when handover or a
// connectivity change would have drained the spec's literal queue.
//
// cancel_pick (spec §4.1) has no literal closure to cancel in this
// model: the caller's own RPC context is what spec's
// "per-pick context the caller's blocking retry loop watches" refers
// to, and grpc-go's picker wrapper already abandons a blocked pick the
// moment that context is done. The explicit check below covers the
// case the context is already done by the time Pick runs at all, so a
// cancelled caller never even reaches the child picker or counts
// against pendingGate. cancel_picks_by_flags has no per-flag registry
// to sweep in this model either: every parked pick is released at once
// rather than selectively by flag, on handover by the fresh picker
// published through cc.UpdateState, and after shutdown by every Pick
// failing with errShuttingDown. pendingGate.broadcast()/close() only
// reset the count of parked picks.
func (p *picker) Pick(info balancer.PickInfo) (balancer.PickResult, error) {
	if info.Ctx != nil {
		if err := info.Ctx.Err(); err != nil {
			return balancer.PickResult{}, err
		}
	}

	p.b.mu.Lock()

	if p.err != nil {
		err := p.err
		p.b.mu.Unlock()
		return balancer.PickResult{}, err
	}
	if p.b.shuttingDown {
		p.b.mu.Unlock()
		return balancer.PickResult{}, errShuttingDown
	}
	if !p.b.startedPicking {
		p.b.startPickingLocked()
	}

	entry := p.b.child
	if entry == nil || entry.picker == nil {
		p.b.pending.markBlocked()
		p.b.mu.Unlock()
		return balancer.PickResult{}, balancer.ErrNoSubConnAvailable
	}
	childPicker := entry.picker
	p.b.mu.Unlock()

	result, err := childPicker.Pick(info)
	if err != nil {
		return balancer.PickResult{}, err
	}

	sci := entry.infoFor(result.SubConn)
	p.b.metrics.observePick(sci.addr)
	return attachToken(result, sci.token), nil
}

// attachToken stamps the chosen backend's LB token (spec §4.4/§4.6)
// onto the pick's outgoing metadata under the well-known "lb-token"
// key, looked up from the child's SubConn info table populated in
// childConn.NewSubConn. A backend that never carried a token still
// gets the designated empty token attached, per spec.md §8 invariant
// 3 and the original's unconditional GRPC_MDELEM_LB_TOKEN_EMPTY
// fallback: the metadata element is never simply omitted.
func attachToken(result balancer.PickResult, token string) balancer.PickResult {
	if result.Metadata == nil {
		result.Metadata = metadata.MD{}
	}
	result.Metadata.Set(lbTokenMetadataKey, token)
	return result
}
