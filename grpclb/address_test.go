package grpclb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/resolver"
)

func TestFormatHostPortIPv4(t *testing.T) {
	hp, err := formatHostPort([]byte{192, 168, 1, 1}, 8080)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1:8080", hp)
}

func TestFormatHostPortIPv6(t *testing.T) {
	ip := []byte{0x20, 0x01, 0x0d, 0xb8, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	hp, err := formatHostPort(ip, 443)
	require.NoError(t, err)
	assert.Equal(t, "[2001:db8::1]:443", hp)
}

func TestFormatHostPortRejectsBadIPLength(t *testing.T) {
	_, err := formatHostPort([]byte{1, 2, 3}, 80)
	assert.Error(t, err)
}

func TestFormatHostPortRejectsBadPort(t *testing.T) {
	_, err := formatHostPort([]byte{1, 2, 3, 4}, 70000)
	assert.Error(t, err)
}

func TestMarkAndIsBalancerAddress(t *testing.T) {
	addr := markBalancerAddress(resolver.Address{Addr: "10.0.0.1:1"})
	assert.True(t, isBalancerAddress(addr))

	plain, err := entryToAddress([]byte{1, 2, 3, 4}, 1, "")
	require.NoError(t, err)
	assert.False(t, isBalancerAddress(plain))
}

func TestWithLBTokenRoundTrip(t *testing.T) {
	addr, err := entryToAddress([]byte{1, 2, 3, 4}, 1, "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", lbTokenOf(addr))
}
