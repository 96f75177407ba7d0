package metrics

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// SystemMetrics holds one snapshot of host and process usage
type SystemMetrics struct {
	CPUPercent        float64 // system-wide, 0-100
	ProcessCPUPercent float64 // per core, can exceed 100 on multi-core hosts
	ProcessRSS        uint64
	MemoryUsed        uint64
	MemoryTotal       uint64
	MemoryPercent     float64
	DiskReadBps       float64
	DiskWriteBps      float64
	Timestamp         time.Time
}

// Collector periodically samples system metrics and logs them.
// During a pass the referential index grows with the input, so process
// RSS is the number to watch.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	lastDisk     map[string]disk.IOCountersStat
	lastDiskTime time.Time

	mu   sync.RWMutex
	last *SystemMetrics
}

// NewCollector creates a new metrics collector
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start samples until ctx is cancelled
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// first sample initialises the disk baseline
	c.collect()

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.collect()
		}
	}
}

// Last returns the most recent snapshot, or nil before the first sample
func (c *Collector) Last() *SystemMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

func (c *Collector) collect() {
	m := c.sample()

	c.mu.Lock()
	c.last = m
	c.mu.Unlock()

	ProcessMemoryBytes.Set(float64(m.ProcessRSS))

	c.logger.Info("System metrics",
		zap.Float64("sys_cpu", m.CPUPercent),
		zap.Float64("proc_cpu", m.ProcessCPUPercent),
		zap.String("proc_rss", humanize.IBytes(m.ProcessRSS)),
		zap.Float64("mem_pct", m.MemoryPercent),
		zap.String("mem_used", humanize.IBytes(m.MemoryUsed)),
		zap.String("disk_r", humanize.IBytes(uint64(m.DiskReadBps))+"/s"),
		zap.String("disk_w", humanize.IBytes(uint64(m.DiskWriteBps))+"/s"),
	)
}

func (c *Collector) sample() *SystemMetrics {
	m := &SystemMetrics{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		m.CPUPercent = pct[0]
	}

	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			m.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			m.ProcessRSS = info.RSS
		}
	}

	if vmem, err := mem.VirtualMemory(); err == nil {
		m.MemoryUsed = vmem.Used
		m.MemoryTotal = vmem.Total
		m.MemoryPercent = vmem.UsedPercent
	}

	m.DiskReadBps, m.DiskWriteBps = c.diskRates(m.Timestamp)
	return m
}

// diskRates returns read/write bytes per second since the previous call
func (c *Collector) diskRates(now time.Time) (readBps, writeBps float64) {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0, 0
	}

	prev, prevTime := c.lastDisk, c.lastDiskTime
	c.lastDisk, c.lastDiskTime = counters, now
	if prev == nil {
		return 0, 0
	}

	elapsed := now.Sub(prevTime).Seconds()
	if elapsed < 0.1 {
		return 0, 0
	}

	var readDelta, writeDelta uint64
	for name, cur := range counters {
		last, ok := prev[name]
		if !ok {
			continue
		}
		// counters can wrap
		if cur.ReadBytes >= last.ReadBytes {
			readDelta += cur.ReadBytes - last.ReadBytes
		}
		if cur.WriteBytes >= last.WriteBytes {
			writeDelta += cur.WriteBytes - last.WriteBytes
		}
	}

	return float64(readDelta) / elapsed, float64(writeDelta) / elapsed
}
