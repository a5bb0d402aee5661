package metrics

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// Usage is a point-in-time resource sample of one OS process.
type Usage struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// Sample reads CPU and memory usage of pid.
func Sample(ctx context.Context, pid int) (Usage, error) {
	if pid <= 0 {
		return Usage{}, fmt.Errorf("invalid pid %d", pid)
	}
	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get process %d: %w", pid, err)
	}

	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get CPU percent for %d: %w", pid, err)
	}

	memInfo, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to get memory info for %d: %w", pid, err)
	}

	u := Usage{
		PID:        int32(pid),
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		MemoryVMS:  memInfo.VMS,
		Timestamp:  time.Now(),
	}
	if n, err := proc.NumThreadsWithContext(ctx); err == nil {
		u.NumThreads = n
	}
	if runtime.GOOS != "windows" {
		if n, err := proc.NumFDsWithContext(ctx); err == nil {
			u.NumFDs = n
		}
	}
	return u, nil
}

// Target names one running process to sample at scrape time.
type Target struct {
	Name string
	PID  int
}

// UsageCollector samples the current targets whenever Prometheus scrapes.
type UsageCollector struct {
	targets func() []Target

	cpu     *prometheus.Desc
	rss     *prometheus.Desc
	threads *prometheus.Desc
}

func NewUsageCollector(targets func() []Target) *UsageCollector {
	labels := []string{"name", "pid"}
	return &UsageCollector{
		targets: targets,
		cpu: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "process", "cpu_percent"),
			"CPU usage percentage for managed processes.", labels, nil),
		rss: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "process", "memory_rss_bytes"),
			"Resident memory of managed processes.", labels, nil),
		threads: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "process", "num_threads"),
			"Number of threads for managed processes.", labels, nil),
	}
}

func (c *UsageCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cpu
	ch <- c.rss
	ch <- c.threads
}

func (c *UsageCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, t := range c.targets() {
		u, err := Sample(ctx, t.PID)
		if err != nil {
			continue
		}
		pid := fmt.Sprint(t.PID)
		ch <- prometheus.MustNewConstMetric(c.cpu, prometheus.GaugeValue, u.CPUPercent, t.Name, pid)
		ch <- prometheus.MustNewConstMetric(c.rss, prometheus.GaugeValue, float64(u.MemoryRSS), t.Name, pid)
		ch <- prometheus.MustNewConstMetric(c.threads, prometheus.GaugeValue, float64(u.NumThreads), t.Name, pid)
	}
}
