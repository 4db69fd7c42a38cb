package grpclb

import (
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc/connectivity"
)

// policyMetrics tracks, per Balancer instance, the same facts the
// teacher's RegisterMetrics/grpcServerCurrentState pairing exposes for
// a single channel: current composed connectivity state and a running
// count of picks routed to each backend, labeled by the serverName the
// instance was built against so multiple grpclb channels in one
// process stay distinguishable in /metrics output.
type policyMetrics struct {
	serverName string

	state prometheus.Gauge
	picks *prometheus.CounterVec
}

var (
	grpclbCurrentState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "grpclb_policy_current_state",
		Help: "Composed connectivity state grpclb last published upward (connectivity.State ordinal).",
	}, []string{"server_name"})

	grpclbPicksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "grpclb_picks_total",
		Help: "Total picks routed through a grpclb round_robin child, by backend address.",
	}, []string{"server_name", "backend"})
)

// RegisterMetrics registers grpclb's collectors with r, mirroring the
// teacher's metrics.RegisterMetrics(r) call site convention so a
// process embedding grpclb alongside other gRPC metrics registers both
// the same way.
func RegisterMetrics(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{grpclbCurrentState, grpclbPicksTotal} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func newPolicyMetrics(serverName string) *policyMetrics {
	return &policyMetrics{
		serverName: serverName,
		state:      grpclbCurrentState.WithLabelValues(serverName),
		picks:      grpclbPicksTotal.MustCurryWith(prometheus.Labels{"server_name": serverName}),
	}
}

func (m *policyMetrics) setState(s connectivity.State) {
	m.state.Set(float64(stateOrdinal(s)))
}

func (m *policyMetrics) observePick(backend string) {
	m.picks.WithLabelValues(backend).Inc()
}

func stateOrdinal(s connectivity.State) int {
	switch s {
	case connectivity.Idle:
		return 0
	case connectivity.Connecting:
		return 1
	case connectivity.Ready:
		return 2
	case connectivity.TransientFailure:
		return 3
	case connectivity.Shutdown:
		return 4
	default:
		return -1
	}
}
