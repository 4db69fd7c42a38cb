package grpclb

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/connectivity"
)

func TestStateOrdinal(t *testing.T) {
	assert.Equal(t, 0, stateOrdinal(connectivity.Idle))
	assert.Equal(t, 2, stateOrdinal(connectivity.Ready))
	assert.Equal(t, 4, stateOrdinal(connectivity.Shutdown))
}

func TestPolicyMetricsSetStateAndObservePick(t *testing.T) {
	m := newPolicyMetrics("test-target")
	assert.NotPanics(t, func() {
		m.setState(connectivity.Ready)
		m.observePick("10.0.0.1:443")
	})
}

func TestRegisterMetricsRegistryRejectsDuplicate(t *testing.T) {
	r := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(r))
	assert.Error(t, RegisterMetrics(r))
}
