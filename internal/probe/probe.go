// Package probe implements the memory monitor: periodic system-wide
// CPU/RAM/disk/network sampling and top-N process snapshots, feeding the
// scheduler's capacity_score. Built on gopsutil/v3.
package probe

import (
	"context"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Snapshot is one sampling pass, appended to an append-only JSONL log by
// the caller (internal/artifact).
type Snapshot struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPct        float64   `json:"cpu_pct"`
	RAMPct        float64   `json:"ram_pct"`
	DiskPct       float64   `json:"disk_pct"`
	NetBytesSent  uint64    `json:"net_bytes_sent"`
	NetBytesRecv  uint64    `json:"net_bytes_recv"`
	CapacityScore float64   `json:"capacity_score"`
}

// ProcessRecord is one top-N process entry for operator diagnosis.
type ProcessRecord struct {
	PID     int32   `json:"pid"`
	Name    string  `json:"name"`
	CPUPct  float64 `json:"cpu_pct"`
	RAMPct  float32 `json:"ram_pct"`
}

// Sample collects one Snapshot. diskPath is the mount point to report
// usage for (e.g. "/").
func Sample(ctx context.Context, diskPath string) (Snapshot, error) {
	cpuPcts, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return Snapshot{}, err
	}
	cpuPct := 0.0
	if len(cpuPcts) > 0 {
		cpuPct = cpuPcts[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	var diskPct float64
	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		diskPct = du.UsedPercent
	}

	var sent, recv uint64
	if counters, err := net.IOCountersWithContext(ctx, false); err == nil && len(counters) > 0 {
		sent = counters[0].BytesSent
		recv = counters[0].BytesRecv
	}

	snap := Snapshot{
		Timestamp:    time.Now().UTC(),
		CPUPct:       cpuPct,
		RAMPct:       vm.UsedPercent,
		DiskPct:      diskPct,
		NetBytesSent: sent,
		NetBytesRecv: recv,
	}
	snap.CapacityScore = capacityScore(cpuPct, vm.UsedPercent)
	return snap, nil
}

func capacityScore(cpuPct, ramPct float64) float64 {
	s := 0.5*(1-cpuPct/100) + 0.5*(1-ramPct/100)
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// TopProcesses returns the n processes consuming the most CPU, for
// read-only operator diagnosis.
func TopProcesses(ctx context.Context, n int) ([]ProcessRecord, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]ProcessRecord, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		ramPct, _ := p.MemoryPercentWithContext(ctx)
		records = append(records, ProcessRecord{PID: p.Pid, Name: name, CPUPct: cpuPct, RAMPct: ramPct})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].CPUPct > records[j].CPUPct })
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}
