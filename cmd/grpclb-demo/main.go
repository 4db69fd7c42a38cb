// Command grpclb-demo dials a target through the grpclb policy and
// exercises the same observability surface the teacher wires onto its
// own client: Prometheus RPC metrics, an OpenTelemetry stats handler,
// and a channelz service for live introspection of the balancer's
// subconns.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	grpcprom "github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/channelz/service"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/drand/grpclb/grpclb"
)

func main() {
	var (
		target       = flag.String("target", "", "address of a node that resolves to is_balancer=true addresses, e.g. dns:///lb.example.com:443")
		metricsAddr  = flag.String("metrics-addr", "127.0.0.1:9090", "address to serve /metrics on")
		channelzAddr = flag.String("channelz-addr", "127.0.0.1:5555", "address to serve the channelz service on")
		verbose      = flag.Bool("verbose", false, "enable the grpclb tracer")
	)
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *target == "" {
		log.Error("-target is required")
		os.Exit(1)
	}
	grpclb.SetVerbose(*verbose)

	reg := prometheus.NewRegistry()
	if err := grpclb.RegisterMetrics(reg); err != nil {
		log.Error("registering grpclb metrics", "err", err)
		os.Exit(1)
	}
	clMetrics := grpcprom.NewClientMetrics(
		grpcprom.WithClientHandlingTimeHistogram(
			grpcprom.WithHistogramBuckets([]float64{0.001, 0.01, 0.1, 0.3, 0.6, 1, 2, 3, 6, 20, 30}),
		),
	)
	if err := reg.Register(clMetrics); err != nil {
		log.Error("registering grpc client metrics", "err", err)
		os.Exit(1)
	}

	go serveChannelz(log, *channelzAddr)
	go serveMetrics(log, *metricsAddr, reg)

	conn, err := grpc.NewClient(*target,
		grpc.WithDefaultServiceConfig(`{"loadBalancingPolicy":"grpclb"}`),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(clMetrics.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(clMetrics.StreamClientInterceptor()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	if err != nil {
		log.Error("dialing target", "target", *target, "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health := grpc_health_v1.NewHealthClient(conn)
	resp, err := health.Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		log.Error("health check", "err", err)
		os.Exit(1)
	}
	log.Info("health check complete", "status", resp.GetStatus().String())
}

func serveChannelz(log *slog.Logger, addr string) {
	s := grpc.NewServer()
	service.RegisterChannelzServiceToServer(s)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("listening for channelz", "addr", addr, "err", err)
		return
	}
	if err := s.Serve(lis); err != nil {
		log.Error("serving channelz", "err", err)
	}
}

func serveMetrics(log *slog.Logger, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error("serving metrics", "err", err)
	}
}
