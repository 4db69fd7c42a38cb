// Package lbproto implements the minimal wire codec for the
// /grpc.lb.v1.LoadBalancer/BalanceLoad protocol: encoding the single
// outbound InitialLoadBalanceRequest and decoding incoming
// LoadBalanceResponse.server_list messages.
//
// There is no published Go package for grpc.lb.v1 in this module's
// dependency set, so the handful of messages the balancer session
// needs are hand-encoded here directly against the wire using
// google.golang.org/protobuf/encoding/protowire rather than through
// generated code. Message shapes and field numbers match the historical
// grpc.lb.v1 proto (LoadBalanceRequest.initial_request=1,
// InitialLoadBalanceRequest.name=1, LoadBalanceResponse.server_list=2,
// ServerList.servers=1, Server.ip_address=1/port=2/load_balance_token=3).
package lbproto

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// FullMethod is the single streaming RPC the balancer session drives.
const FullMethod = "/grpc.lb.v1.LoadBalancer/BalanceLoad"

const (
	fieldRequestInitial = 1

	fieldInitialRequestName = 1

	fieldResponseServerList = 2

	fieldServerListServers = 1

	fieldServerIP    = 1
	fieldServerPort  = 2
	fieldServerToken = 3
	fieldServerDrop  = 4
)

// Server is one entry of a decoded ServerList: a 4- or 16-byte IP, a
// port, and an optional opaque load-balance token.
type Server struct {
	IP    []byte
	Port  int32
	Token string
	Drop  bool
}

// ServerList is the decoded payload of a LoadBalanceResponse carrying
// backends rather than an initial ack.
type ServerList struct {
	Servers []Server
}

// EncodeRequest marshals the single InitialLoadBalanceRequest{name}
// wrapped in its LoadBalanceRequest oneof.
func EncodeRequest(serverName string) []byte {
	var initial []byte
	if serverName != "" {
		initial = protowire.AppendTag(initial, fieldInitialRequestName, protowire.BytesType)
		initial = protowire.AppendString(initial, serverName)
	}
	var out []byte
	out = protowire.AppendTag(out, fieldRequestInitial, protowire.BytesType)
	out = protowire.AppendBytes(out, initial)
	return out
}

// DecodeResponse parses a LoadBalanceResponse. Only the server_list
// variant is meaningful to the policy; an initial_response (ack) decodes
// to a nil ServerList and no error.
func DecodeResponse(b []byte) (*ServerList, error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("lbproto: invalid response tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldResponseServerList:
			if typ != protowire.BytesType {
				return nil, fmt.Errorf("lbproto: server_list field has wrong wire type %v", typ)
			}
			payload, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("lbproto: invalid server_list bytes: %w", protowire.ParseError(m))
			}
			b = b[m:]
			sl, err := decodeServerList(payload)
			if err != nil {
				return nil, err
			}
			return sl, nil
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("lbproto: invalid response field: %w", protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	// No server_list field present: this was an initial_response ack.
	return nil, nil
}

func decodeServerList(b []byte) (*ServerList, error) {
	sl := &ServerList{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("lbproto: invalid server_list tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldServerListServers:
			if typ != protowire.BytesType {
				return nil, fmt.Errorf("lbproto: servers field has wrong wire type %v", typ)
			}
			payload, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, fmt.Errorf("lbproto: invalid server bytes: %w", protowire.ParseError(m))
			}
			b = b[m:]
			srv, err := decodeServer(payload)
			if err != nil {
				return nil, err
			}
			sl.Servers = append(sl.Servers, srv)
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, fmt.Errorf("lbproto: invalid server_list field: %w", protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return sl, nil
}

func decodeServer(b []byte) (Server, error) {
	var s Server
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return s, fmt.Errorf("lbproto: invalid server tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch num {
		case fieldServerIP:
			ip, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return s, fmt.Errorf("lbproto: invalid ip_address: %w", protowire.ParseError(m))
			}
			s.IP = append([]byte(nil), ip...)
			b = b[m:]
		case fieldServerPort:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("lbproto: invalid port: %w", protowire.ParseError(m))
			}
			s.Port = int32(v)
			b = b[m:]
		case fieldServerToken:
			tok, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return s, fmt.Errorf("lbproto: invalid load_balance_token: %w", protowire.ParseError(m))
			}
			s.Token = string(tok)
			b = b[m:]
		case fieldServerDrop:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return s, fmt.Errorf("lbproto: invalid drop: %w", protowire.ParseError(m))
			}
			s.Drop = v != 0
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return s, fmt.Errorf("lbproto: invalid server field: %w", protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return s, nil
}
