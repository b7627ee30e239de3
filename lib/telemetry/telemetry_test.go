package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDisabledTelemetry(t *testing.T) {
	var tel Telemetry
	require.False(t, tel.Enabled())
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestSamplePerfStats(t *testing.T) {
	stats := SamplePerfStats(10 * time.Millisecond)
	require.Greater(t, stats.Goroutines, int64(0))
	require.GreaterOrEqual(t, stats.CPUPercent, 0.0)
}

func TestConnConfigPrefersGrpc(t *testing.T) {
	require.True(t, OtlpConnConfig{GrpcEndpoint: "http://localhost:4317", HttpEndpoint: "http://localhost:4318"}.useGrpc())
	require.False(t, OtlpConnConfig{HttpEndpoint: "http://localhost:4318"}.useGrpc())
}
