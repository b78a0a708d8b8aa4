package telemetry_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/openradius/authstorm/internal/metrics"
	"github.com/openradius/authstorm/internal/radclient"
	"github.com/openradius/authstorm/internal/scenario"
	"github.com/openradius/authstorm/internal/telemetry"
)

func TestCollectorLabelsByPhase(t *testing.T) {
	c := telemetry.NewCollector()
	steady := scenario.Phase{Name: "STEADY STATE", Kind: metrics.PhaseSteady}

	c.OnPhaseStart(steady, nil)
	c.Record(metrics.Result{Outcome: metrics.OutcomeAccept, Latency: time.Millisecond})
	c.Record(metrics.Result{Outcome: metrics.OutcomeAccept, Latency: 2 * time.Millisecond})
	c.Record(metrics.Result{Outcome: metrics.OutcomeError, Latency: time.Second, Err: context.DeadlineExceeded})
	c.OnPhaseEnd(steady, metrics.PhaseSummary{})

	c.OnPhaseStart(scenario.Phase{Kind: metrics.PhasePeak}, nil)
	c.Record(metrics.Result{Outcome: metrics.OutcomeReject, Latency: time.Millisecond})

	expected := `
# HELP authstorm_attempts_total Authentication attempts by phase and outcome
# TYPE authstorm_attempts_total counter
authstorm_attempts_total{outcome="accept",phase="steady"} 2
authstorm_attempts_total{outcome="error",phase="steady"} 1
authstorm_attempts_total{outcome="reject",phase="peak"} 1
# HELP authstorm_errors_total Failed attempts by phase and error class
# TYPE authstorm_errors_total counter
authstorm_errors_total{class="timeout",phase="steady"} 1
# HELP authstorm_phase_active 1 while the labelled phase is running
# TYPE authstorm_phase_active gauge
authstorm_phase_active{phase="peak"} 1
authstorm_phase_active{phase="steady"} 0
`
	require.NoError(t, testutil.GatherAndCompare(c.Registry(), strings.NewReader(expected),
		"authstorm_attempts_total", "authstorm_errors_total", "authstorm_phase_active"))
}

func TestRegisterPacketCounters(t *testing.T) {
	c := telemetry.NewCollector()
	c.RegisterPacketCounters(nil)
	c.RegisterPacketCounters(radclient.NewCounters())

	n, err := testutil.GatherAndCount(c.Registry(), "authstorm_packets_sent_total", "authstorm_timeouts_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestServerExposesMetrics(t *testing.T) {
	c := telemetry.NewCollector()
	c.Record(metrics.Result{Outcome: metrics.OutcomeAccept, Latency: time.Millisecond})

	srv, err := telemetry.Listen("127.0.0.1:0", c.Registry(), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `authstorm_attempts_total{outcome="accept"`)
}

func TestListenBadAddress(t *testing.T) {
	_, err := telemetry.Listen("256.0.0.1:bad", telemetry.NewCollector().Registry(), nil)
	assert.Error(t, err)
}
