package server

import (
	"os"

	"github.com/AmoghxAnubis/Agora/internal/room"
	"github.com/shirou/gopsutil/process"
)

// Stats is the live view of the relay served on /api/stats.
type Stats struct {
	Connections int            `json:"connections"`
	Rooms       []room.Summary `json:"rooms"`
	Process     *ProcessStats  `json:"process,omitempty"`
}

// ProcessStats describes the resource usage of the server process.
type ProcessStats struct {
	PID        int32   `json:"pid"`
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
}

// Snapshot collects the current stats. Process metrics are best effort and
// left out when the platform cannot provide them.
func (h *Hub) Snapshot() Stats {
	stats := Stats{
		Connections: h.ClientCount(),
		Rooms:       h.rooms.Rooms(),
	}

	proc, err := selfStats()
	if err != nil {
		h.log.Debug("Process stats unavailable", "error", err)
		return stats
	}
	stats.Process = proc
	return stats
}

func selfStats() (*ProcessStats, error) {
	pid := int32(os.Getpid())
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}

	memInfo, err := p.MemoryInfo()
	if err != nil {
		return nil, err
	}

	cpu, err := p.CPUPercent()
	if err != nil {
		return nil, err
	}

	return &ProcessStats{PID: pid, RSSBytes: memInfo.RSS, CPUPercent: cpu}, nil
}
