package monitoring

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/disk"
)

// DiskStatus is a snapshot of the recording volume.
type DiskStatus struct {
	TotalGB     float64 `json:"totalGb"`
	FreeGB      float64 `json:"freeGb"`
	UsedPercent float64 `json:"usedPercent"`
	Low         bool    `json:"low"`
}

// DiskMonitor checks free space on the volume holding the local recording
// root.
type DiskMonitor struct {
	path      string
	minFreeGB float64
}

// NewDiskMonitor creates a disk monitor for the given path.
func NewDiskMonitor(path string, minFreeGB float64) *DiskMonitor {
	return &DiskMonitor{path: path, minFreeGB: minFreeGB}
}

// Check returns the current disk status, flagging it low when free space
// drops under the configured threshold.
func (m *DiskMonitor) Check() (DiskStatus, error) {
	usage, err := disk.Usage(m.path)
	if err != nil {
		return DiskStatus{}, fmt.Errorf("failed to get disk usage for %s: %v", m.path, err)
	}

	const gb = 1024 * 1024 * 1024
	status := DiskStatus{
		TotalGB:     float64(usage.Total) / gb,
		FreeGB:      float64(usage.Free) / gb,
		UsedPercent: usage.UsedPercent,
	}
	status.Low = status.FreeGB < m.minFreeGB
	return status, nil
}
