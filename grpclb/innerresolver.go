package grpclb

import (
	"fmt"
	"sync/atomic"

	"google.golang.org/grpc/resolver"
)

// innerResolverBuilder is fallback_resolver.go's FallbackResolver
// narrowed to a single use: publish a fixed set of balancer addresses
// (already resolved by the enclosing channel's own resolver, per spec
// §3's "Address" invariant) onto the inner channel the policy dials to
// reach the balancer, using pick_first semantics over whichever of
// them answers first. Each Balancer registers its own instance under a
// unique scheme so concurrent policy instances never collide.
type innerResolverBuilder struct {
	scheme string
	addrs  []resolver.Address
	cc     resolver.ClientConn
}

var innerResolverSeq int64

func newInnerResolverBuilder(addrs []resolver.Address) *innerResolverBuilder {
	n := atomic.AddInt64(&innerResolverSeq, 1)
	return &innerResolverBuilder{
		scheme: fmt.Sprintf("grpclb-inner-%d", n),
		addrs:  addrs,
	}
}

func (b *innerResolverBuilder) Build(_ resolver.Target, cc resolver.ClientConn, _ resolver.BuildOptions) (resolver.Resolver, error) {
	b.cc = cc
	if err := cc.UpdateState(resolver.State{Addresses: b.addrs}); err != nil {
		return nil, err
	}
	return innerResolver{}, nil
}

func (b *innerResolverBuilder) Scheme() string { return b.scheme }

// updateAddrs republishes a new set of balancer addresses onto the
// already-dialed inner channel, used when a later UpdateClientConnState
// reports a changed balancer address set.
func (b *innerResolverBuilder) updateAddrs(addrs []resolver.Address) {
	b.addrs = addrs
	if b.cc != nil {
		b.cc.UpdateState(resolver.State{Addresses: addrs})
	}
}

type innerResolver struct{}

func (innerResolver) ResolveNow(resolver.ResolveNowOptions) {}
func (innerResolver) Close()                                {}
