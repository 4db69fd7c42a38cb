package grpclb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingGateMarkBlockedIncrements(t *testing.T) {
	g := newPendingGate()
	g.markBlocked()
	g.markBlocked()
	assert.Equal(t, 2, g.drainCount())
}

func TestPendingGateBroadcastResetsCount(t *testing.T) {
	g := newPendingGate()
	g.markBlocked()
	require.Equal(t, 1, g.drainCount())

	g.broadcast()
	assert.Equal(t, 0, g.drainCount())
}

func TestPendingGateCloseIsStickyAndIdempotent(t *testing.T) {
	g := newPendingGate()
	g.markBlocked()

	g.close()
	assert.Equal(t, 0, g.drainCount())

	// markBlocked after close is a no-op: no further pick is ever
	// counted as blocked once the gate is permanently done.
	g.markBlocked()
	assert.Equal(t, 0, g.drainCount())

	assert.NotPanics(t, func() { g.close() })
	assert.NotPanics(t, func() { g.broadcast() })
}
