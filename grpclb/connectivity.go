package grpclb

import (
	"fmt"

	"google.golang.org/grpc/connectivity"
)

// composeState applies the connectivity-composition table from spec
// §4.5: old is the policy's current published state (G), child is the
// newly observed state of the active round_robin picker (R). The
// caller must never invoke this with old == connectivity.Shutdown.
func composeState(old, child connectivity.State) connectivity.State {
	if old == connectivity.Shutdown {
		panic("grpclb: composeState called with old=Shutdown")
	}
	switch child {
	case connectivity.Idle, connectivity.Connecting, connectivity.Ready:
		return child
	case connectivity.TransientFailure, connectivity.Shutdown:
		return old
	default:
		panic(fmt.Sprintf("grpclb: composeState: unknown child state %v", child))
	}
}

// replaceOnHandover reports whether rr_handover (spec §4.4 step 3)
// should install the freshly built child picker given its observed
// connectivity state, or keep the existing one and drop the new one.
func replaceOnHandover(childState connectivity.State) bool {
	return childState != connectivity.TransientFailure && childState != connectivity.Shutdown
}
