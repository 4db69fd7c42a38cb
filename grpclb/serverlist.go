package grpclb

import (
	"google.golang.org/grpc/resolver"

	"github.com/drand/grpclb/grpclb/lbproto"
)

// serverList is the decoded, order-sensitive payload of a single
// LoadBalanceResponse carrying backends. Equality between two
// serverLists is pointwise and order-sensitive, used to suppress
// identical updates (spec §3, "Server list").
type serverList struct {
	entries []lbproto.Server
}

func (sl *serverList) equal(other *serverList) bool {
	if sl == nil || other == nil {
		return sl == other
	}
	if len(sl.entries) != len(other.entries) {
		return false
	}
	for i, e := range sl.entries {
		o := other.entries[i]
		if e.Port != o.Port || e.Token != o.Token || e.Drop != o.Drop {
			return false
		}
		if string(e.IP) != string(o.IP) {
			return false
		}
	}
	return true
}

// isServerValid reports whether a raw server entry has a well-formed
// port and IP length, logging (and letting the caller skip) anything
// else while keeping its siblings.
func isServerValid(s lbproto.Server, index int) bool {
	if s.Port < 0 || s.Port > 65535 {
		logger.Infof("grpclb: ignoring server at index %d: invalid port %d", index, s.Port)
		return false
	}
	switch len(s.IP) {
	case 4, 16:
	default:
		logger.Infof("grpclb: ignoring server at index %d: invalid ip length %d", index, len(s.IP))
		return false
	}
	return true
}

// processServerList is the two-pass conversion described in spec §4.4:
// count valid entries, allocate exactly that many addresses, then
// populate them, each carrying its (possibly empty) LB token and with
// is_balancer forced false.
func processServerList(sl *serverList) []resolver.Address {
	if sl == nil {
		return nil
	}
	numValid := 0
	for i, e := range sl.entries {
		if isServerValid(e, i) {
			numValid++
		}
	}
	addrs := make([]resolver.Address, 0, numValid)
	for i, e := range sl.entries {
		if !isServerValid(e, i) {
			continue
		}
		token := e.Token
		if token == "" {
			token = emptyLBToken
		}
		addr, err := entryToAddress(e.IP, e.Port, token)
		if err != nil {
			// isServerValid already screened length/port; this should be
			// unreachable, but keep siblings on the defensive path too.
			logger.Infof("grpclb: dropping server at index %d: %v", i, err)
			continue
		}
		addrs = append(addrs, addr)
	}
	return addrs
}
