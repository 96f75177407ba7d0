package importer

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
)

// ProgressTracker estimates completion of a pass from the bytes consumed
type ProgressTracker struct {
	totalBytes int64
	startTime  time.Time
}

// NewProgressTracker creates a tracker for an input of totalBytes
func NewProgressTracker(totalBytes int64, start time.Time) *ProgressTracker {
	return &ProgressTracker{totalBytes: totalBytes, startTime: start}
}

// Progress holds current progress information
type Progress struct {
	Elements   int64
	Bytes      int64
	Total      int64
	Percentage float64
	Elapsed    time.Duration
	ETA        time.Duration
	Throughput float64 // elements per second
}

// Calculate returns progress metrics for the given element count and bytes read
func (p *ProgressTracker) Calculate(now time.Time, elements, bytesRead int64) Progress {
	elapsed := now.Sub(p.startTime)

	var percentage float64
	var eta time.Duration

	if p.totalBytes > 0 && bytesRead > 0 {
		percentage = min(float64(bytesRead)/float64(p.totalBytes)*100, 100)
		if percentage < 100 && elapsed > 0 {
			bytesPerSecond := float64(bytesRead) / elapsed.Seconds()
			remaining := p.totalBytes - bytesRead
			eta = time.Duration(float64(remaining) / bytesPerSecond * float64(time.Second))
		}
	}

	var throughput float64
	if elapsed > 0 {
		throughput = float64(elements) / elapsed.Seconds()
	}

	return Progress{
		Elements:   elements,
		Bytes:      bytesRead,
		Total:      p.totalBytes,
		Percentage: percentage,
		Elapsed:    elapsed.Round(time.Second),
		ETA:        eta.Round(time.Second),
		Throughput: throughput,
	}
}

// FormatETA formats the ETA duration in a human-readable format
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "calculating..."
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatThroughput formats elements per second, e.g. "1.2 M/s"
func FormatThroughput(perSec float64) string {
	return humanize.SIWithDigits(perSec, 1, "/s")
}

// FormatBytes formats a byte count, e.g. "1.2 GB"
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}

// tick calls fn every interval until ctx is done
func tick(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}
