package grpclb

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Sentinel errors mirroring spec §7's named error dispositions.
var (
	errNoInnerChannel = status.Error(codes.Unavailable, "grpclb: no inner channel to balancer yet")
	errShuttingDown   = status.Error(codes.Unavailable, "grpclb: Channel Shutdown")
	errNoBalancerAddr = status.Error(codes.Unavailable, "grpclb: resolver produced no is_balancer=true address")
)
