package lbproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestEncodeRequest(t *testing.T) {
	b := EncodeRequest("myservice")

	num, typ, n := protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.EqualValues(t, fieldRequestInitial, num)
	assert.Equal(t, protowire.BytesType, typ)

	inner, m := protowire.ConsumeBytes(b[n:])
	require.Greater(t, m, 0)

	num2, typ2, n2 := protowire.ConsumeTag(inner)
	require.Greater(t, n2, 0)
	assert.EqualValues(t, fieldInitialRequestName, num2)
	assert.Equal(t, protowire.BytesType, typ2)

	name, m2 := protowire.ConsumeString(inner[n2:])
	require.Greater(t, m2, 0)
	assert.Equal(t, "myservice", name)
}

func TestEncodeRequestEmptyName(t *testing.T) {
	b := EncodeRequest("")
	_, typ, n := protowire.ConsumeTag(b)
	require.Greater(t, n, 0)
	assert.Equal(t, protowire.BytesType, typ)
	inner, m := protowire.ConsumeBytes(b[n:])
	require.Greater(t, m, 0)
	assert.Empty(t, inner)
}

func appendServer(b []byte, s Server) []byte {
	var srv []byte
	srv = protowire.AppendTag(srv, fieldServerIP, protowire.BytesType)
	srv = protowire.AppendBytes(srv, s.IP)
	srv = protowire.AppendTag(srv, fieldServerPort, protowire.VarintType)
	srv = protowire.AppendVarint(srv, uint64(s.Port))
	if s.Token != "" {
		srv = protowire.AppendTag(srv, fieldServerToken, protowire.BytesType)
		srv = protowire.AppendString(srv, s.Token)
	}
	if s.Drop {
		srv = protowire.AppendTag(srv, fieldServerDrop, protowire.VarintType)
		srv = protowire.AppendVarint(srv, 1)
	}

	var list []byte
	list = protowire.AppendTag(list, fieldServerListServers, protowire.BytesType)
	list = protowire.AppendBytes(list, srv)

	b = protowire.AppendTag(b, fieldResponseServerList, protowire.BytesType)
	b = protowire.AppendBytes(b, list)
	return b
}

func TestDecodeResponseServerList(t *testing.T) {
	want := Server{IP: []byte{10, 0, 0, 1}, Port: 443, Token: "tok-1"}
	b := appendServer(nil, want)

	sl, err := DecodeResponse(b)
	require.NoError(t, err)
	require.NotNil(t, sl)
	require.Len(t, sl.Servers, 1)
	assert.Equal(t, want.IP, sl.Servers[0].IP)
	assert.Equal(t, want.Port, sl.Servers[0].Port)
	assert.Equal(t, want.Token, sl.Servers[0].Token)
	assert.False(t, sl.Servers[0].Drop)
}

func TestDecodeResponseAckIsNil(t *testing.T) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendBytes(b, nil)

	sl, err := DecodeResponse(b)
	require.NoError(t, err)
	assert.Nil(t, sl)
}

func TestDecodeResponseInvalid(t *testing.T) {
	_, err := DecodeResponse([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	assert.Error(t, err)
}

func TestDecodeServerDrop(t *testing.T) {
	b := appendServer(nil, Server{Drop: true})
	sl, err := DecodeResponse(b)
	require.NoError(t, err)
	require.Len(t, sl.Servers, 1)
	assert.True(t, sl.Servers[0].Drop)
}
