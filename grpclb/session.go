package grpclb

import (
	"context"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"google.golang.org/grpc"

	"github.com/drand/grpclb/grpclb/lbproto"
)

// Backoff schedule parameters from spec §4.3.
const (
	backoffMultiplier = 1.6
	backoffJitter     = 0.2
	backoffMin        = 10 * time.Second
	backoffMax        = 60 * time.Second
)

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffMin
	b.MaxInterval = backoffMax
	b.Multiplier = backoffMultiplier
	b.RandomizationFactor = backoffJitter
	b.MaxElapsedTime = 0 // retry forever; the policy, not the backoff, decides when to stop.
	b.Reset()
	return b
}

// balancerSession is one streaming RPC to the balancer and the retry
// loop around it (spec §4.3). A policy starts exactly one session:
// started_picking is sticky, so startPickingLocked runs once. The
// session's ctx is derived from the policy's own context, which Close
// cancels; that cancellation is how a shut-down session's in-flight
// Recv stops mutating policy state, in place of the original's
// strong/weak refcounted call record.
type balancerSession struct {
	b      *Balancer
	ctx    context.Context
	cancel context.CancelFunc
}

func newBalancerSession(b *Balancer, parent context.Context) *balancerSession {
	ctx, cancel := context.WithCancel(parent)
	return &balancerSession{b: b, ctx: ctx, cancel: cancel}
}

// run drives the retry loop until the session's context is cancelled
// (by Close, through the policy's parent context).
func (s *balancerSession) run() {
	for s.ctx.Err() == nil {
		err := s.runOnce()

		s.b.mu.Lock()
		shuttingDown := s.b.shuttingDown
		s.b.mu.Unlock()
		if shuttingDown || s.ctx.Err() != nil {
			return
		}

		wait := s.b.backoff.NextBackOff()
		logger.Infof("grpclb: balancer stream ended (%v), retrying in %s", err, wait)

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-s.ctx.Done():
			timer.Stop()
			return
		}
	}
}

// runOnce opens a single streaming call and consumes server lists from
// it until the stream ends, exactly one RECV_MESSAGE outstanding at a
// time (spec §5 "Ordering guarantees").
func (s *balancerSession) runOnce() error {
	s.b.mu.Lock()
	inner := s.b.innerConn
	name := s.b.serverName
	s.b.mu.Unlock()
	if inner == nil {
		return errNoInnerChannel
	}

	stream, err := inner.NewStream(
		s.ctx,
		&grpc.StreamDesc{StreamName: "BalanceLoad", ClientStreams: true, ServerStreams: true},
		lbproto.FullMethod,
		grpc.CallContentSubtype(lbproto.Codec()),
		grpc.WaitForReady(true),
	)
	if err != nil {
		return err
	}

	req := &lbproto.RawFrame{B: lbproto.EncodeRequest(name)}
	if err := stream.SendMsg(req); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	for {
		var frame lbproto.RawFrame
		if err := stream.RecvMsg(&frame); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if len(frame.B) == 0 {
			// An empty payload on a live stream signals the call was
			// cancelled out from under us; stop without re-arming.
			return nil
		}
		decoded, err := lbproto.DecodeResponse(frame.B)
		if err != nil {
			logger.Infof("grpclb: dropping malformed serverlist message: %v", err)
			continue
		}
		if decoded == nil {
			// Ack-only initial_response; nothing to apply yet.
			continue
		}
		s.b.onServerList(&serverList{entries: decoded.Servers})
	}
}
