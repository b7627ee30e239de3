package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("carparams.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var rssGauge, _ = meter.Int64Gauge("rss_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

// PerfStats is a point in time sample of the process.
type PerfStats struct {
	CPUPercent  float64
	AllocatedMB int64
	RSSMB       int64
	Goroutines  int64
}

// SamplePerfStats reads the current process statistics, cpu usage is
// measured over `window`.
func SamplePerfStats(window time.Duration) PerfStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := PerfStats{
		AllocatedMB: int64(memStats.Alloc / 1_000_000),
		Goroutines:  int64(runtime.NumGoroutine()),
	}

	cpuUsage, err := cpu.Percent(window, false)
	if err == nil && len(cpuUsage) > 0 {
		stats.CPUPercent = cpuUsage[0]
	} else if err != nil {
		slog.Debug("failed to read cpu usage", "err", err)
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		mem, err := proc.MemoryInfo()
		if err == nil {
			stats.RSSMB = int64(mem.RSS / 1_000_000)
		}
	}
	return stats
}

// InstrumentPerfStats records process gauges every `interval` until ctx is done.
func InstrumentPerfStats(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				stats := SamplePerfStats(time.Second)
				cpuGauge.Record(ctx, stats.CPUPercent)
				memoryGauge.Record(ctx, stats.AllocatedMB)
				rssGauge.Record(ctx, stats.RSSMB)
				goroutineGauge.Record(ctx, stats.Goroutines)
			case <-ctx.Done():
				return
			}
		}
	}()
}
