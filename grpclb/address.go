package grpclb

import (
	"fmt"
	"net"

	"google.golang.org/grpc/resolver"
)

// Attribute keys stashed on resolver.Address, following the same
// Attributes.Value(key) convention the fallback balancer uses for its
// "order" attribute.
const (
	attrIsBalancer = "grpclb.is_balancer"
	attrLBToken    = "grpclb.lb_token"
)

// emptyLBToken is substituted for any server entry that didn't carry a
// load_balance_token.
const emptyLBToken = ""

// lbTokenMetadataKey is the well-known metadata key the chosen token is
// attached under on every outgoing RPC.
const lbTokenMetadataKey = "lb-token"

// markBalancerAddress tags addr as a balancer endpoint so it is never
// mistaken for a backend produced by a server-list update. Only
// isBalancerAddress has a production caller in this package: tagging a
// real address happens in whatever resolver the dialer registers ahead
// of this policy (DNS, xDS, a static list), outside grpclb's scope.
// markBalancerAddress stays here, exercised from tests, as the
// reference implementation that resolver is expected to match.
func markBalancerAddress(addr resolver.Address) resolver.Address {
	addr.Attributes = addr.Attributes.WithValue(attrIsBalancer, true)
	return addr
}

// isBalancerAddress reports whether addr was marked by the resolver as
// a balancer endpoint.
func isBalancerAddress(addr resolver.Address) bool {
	v, _ := addr.Attributes.Value(attrIsBalancer).(bool)
	return v
}

// withLBToken stamps the backend address with the token the balancer
// assigned it, to be picked up again at Pick time.
func withLBToken(addr resolver.Address, token string) resolver.Address {
	addr.Attributes = addr.Attributes.WithValue(attrLBToken, token)
	return addr
}

// lbTokenOf reads back the token stamped by withLBToken, defaulting to
// the empty token for addresses that never carried one.
func lbTokenOf(addr resolver.Address) string {
	v, _ := addr.Attributes.Value(attrLBToken).(string)
	return v
}

// entryToAddress converts one validated lbproto.Server into a
// resolver.Address suitable for the round_robin child, with
// is_balancer forced false so the child can never recursively select
// this same policy.
func entryToAddress(ip []byte, port int32, token string) (resolver.Address, error) {
	hostport, err := formatHostPort(ip, port)
	if err != nil {
		return resolver.Address{}, err
	}
	addr := resolver.Address{Addr: hostport}
	addr = withLBToken(addr, token)
	return addr, nil
}

func formatHostPort(ip []byte, port int32) (string, error) {
	switch len(ip) {
	case 4, 16:
	default:
		return "", fmt.Errorf("grpclb: invalid ip length %d, want 4 or 16", len(ip))
	}
	if port < 0 || port > 65535 {
		return "", fmt.Errorf("grpclb: invalid port %d", port)
	}
	return net.JoinHostPort(net.IP(ip).String(), fmt.Sprintf("%d", port)), nil
}
