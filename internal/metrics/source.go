// Package metrics serves process statistics of the running agent over HTTP.
package metrics

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is one sample of the agent process.
type Snapshot struct {
	Time          time.Time `json:"time"`
	PID           int32     `json:"pid"`
	CPUPercent    float64   `json:"cpu_percent"`
	RSSBytes      uint64    `json:"rss_bytes"`
	VMSBytes      uint64    `json:"vms_bytes"`
	NumThreads    int32     `json:"num_threads"`
	NumGoroutines int       `json:"num_goroutines"`
	UptimeSeconds float64   `json:"uptime_seconds"`
}

// Source produces snapshots.
type Source interface {
	Sample(ctx context.Context) (Snapshot, error)
}

// ProcessSource samples the current process with gopsutil.
type ProcessSource struct {
	proc  *process.Process
	clock clock.Clock
}

// NewProcessSource opens the current process.
func NewProcessSource(clk clock.Clock) (*ProcessSource, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &ProcessSource{proc: proc, clock: clk}, nil
}

// Sample reads CPU, memory and thread counts. Individual counters that the
// platform does not support are left zero.
func (s *ProcessSource) Sample(ctx context.Context) (Snapshot, error) {
	now := s.clock.Now()
	snap := Snapshot{
		Time:          now.UTC(),
		PID:           s.proc.Pid,
		NumGoroutines: runtime.NumGoroutine(),
	}

	cpu, err := s.proc.CPUPercentWithContext(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap.CPUPercent = cpu

	if mem, err := s.proc.MemoryInfoWithContext(ctx); err == nil && mem != nil {
		snap.RSSBytes = mem.RSS
		snap.VMSBytes = mem.VMS
	}
	if n, err := s.proc.NumThreadsWithContext(ctx); err == nil {
		snap.NumThreads = n
	}
	if created, err := s.proc.CreateTimeWithContext(ctx); err == nil {
		snap.UptimeSeconds = now.Sub(time.UnixMilli(created)).Seconds()
	}
	return snap, nil
}
