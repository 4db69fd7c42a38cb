// Package grpclb implements the client-side external load-balancing
// policy described by the grpc.lb.v1 protocol: it streams server-list
// updates from a balancer, hands them to a round_robin child over
// atomic handover, and attaches each backend's LB token to the RPCs
// routed to it.
//
// Register the policy's builder once (its init function already calls
// balancer.Register) and select it the way any other policy is
// selected, e.g. via the service config's loadBalancingPolicy field or
// grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"grpclb"}`).
package grpclb

import (
	"encoding/json"
	"sync/atomic"

	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/grpclog"
	"google.golang.org/grpc/serviceconfig"
)

// Name is the policy name registered with balancer.Register, following
// the same registration idiom as the teacher's logging/fallback
// balancers and the round_robin reference package.
const Name = "grpclb"

var logger = grpclog.Component("grpclb")

// verbose is the process-wide tracer flag spec §6 calls "glb": a
// single boolean gating the chattier Info-level log lines, the Go
// equivalent of the original's grpc_tracer_set_enabled("glb", ...).
var verbose atomic.Bool

// SetVerbose toggles the "glb" tracer. Disabled by default.
func SetVerbose(v bool) { verbose.Store(v) }

func tracef(format string, args ...interface{}) {
	if verbose.Load() {
		logger.Infof(format, args...)
	}
}

func init() {
	balancer.Register(builder{})
}

// LBConfig is the (currently empty) service-config shape for the
// grpclb policy, following the LBConfig-as-marker-struct pattern of
// fallback_balancer.go's LBConfig.
type LBConfig struct {
	serviceconfig.LoadBalancingConfig `json:"-"`
}

type builder struct{}

func (builder) Name() string { return Name }

func (builder) Build(cc balancer.ClientConn, opts balancer.BuildOptions) balancer.Balancer {
	b := newBalancer(cc, opts)
	return b
}

func (builder) ParseConfig(js json.RawMessage) (serviceconfig.LoadBalancingConfig, error) {
	var cfg LBConfig
	if len(js) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(js, &cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
