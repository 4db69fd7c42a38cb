package grpclb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/connectivity"
)

func TestComposeState(t *testing.T) {
	cases := []struct {
		name  string
		old   connectivity.State
		child connectivity.State
		want  connectivity.State
	}{
		{"child idle propagates", connectivity.Ready, connectivity.Idle, connectivity.Idle},
		{"child connecting propagates", connectivity.Idle, connectivity.Connecting, connectivity.Connecting},
		{"child ready propagates", connectivity.Connecting, connectivity.Ready, connectivity.Ready},
		{"child transient keeps old", connectivity.Ready, connectivity.TransientFailure, connectivity.Ready},
		{"child shutdown keeps old", connectivity.Ready, connectivity.Shutdown, connectivity.Ready},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, composeState(tc.old, tc.child))
		})
	}
}

func TestComposeStatePanicsOnShutdownOld(t *testing.T) {
	assert.Panics(t, func() {
		composeState(connectivity.Shutdown, connectivity.Ready)
	})
}

func TestReplaceOnHandover(t *testing.T) {
	assert.True(t, replaceOnHandover(connectivity.Ready))
	assert.True(t, replaceOnHandover(connectivity.Connecting))
	assert.True(t, replaceOnHandover(connectivity.Idle))
	assert.False(t, replaceOnHandover(connectivity.TransientFailure))
	assert.False(t, replaceOnHandover(connectivity.Shutdown))
}
