// Package metrics collects host resource usage for the agent's status
// endpoint. Backup snapshots are never pruned automatically, so disk
// headroom on the backup root is the number operators watch.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostMetrics is a point-in-time snapshot of the deploy host.
type HostMetrics struct {
	CPU     CPUMetrics    `json:"cpu"`
	Memory  MemoryMetrics `json:"memory"`
	Disks   []DiskMetrics `json:"disks"`
	Uptime  int64         `json:"uptime"`   // seconds
	LoadAvg []float64     `json:"load_avg"` // 1, 5, 15 min
}

// CPUMetrics represents CPU usage information.
type CPUMetrics struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
}

// MemoryMetrics represents memory usage information.
type MemoryMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// DiskMetrics represents usage of a mounted filesystem.
type DiskMetrics struct {
	Device      string  `json:"device"`
	MountPoint  string  `json:"mount_point"`
	Filesystem  string  `json:"filesystem"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// PathUsage is disk usage of the filesystem holding a specific path,
// used to report headroom under the backup and config roots.
type PathUsage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
}

// GetHostMetrics collects current host metrics. The collectors run in
// parallel because the CPU sample blocks for its sampling interval.
func GetHostMetrics(ctx context.Context) (*HostMetrics, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	metrics := &HostMetrics{}
	var wg sync.WaitGroup
	var mu sync.Mutex

	wg.Add(1)
	go func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		cpuPercent, err := cpu.Percent(200*time.Millisecond, false)
		if err == nil && len(cpuPercent) > 0 {
			mu.Lock()
			metrics.CPU.UsagePercent = cpuPercent[0]
			mu.Unlock()
		}

		cpuCount, err := cpu.Counts(true)
		if err == nil {
			mu.Lock()
			metrics.CPU.Cores = cpuCount
			mu.Unlock()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		vmem, err := mem.VirtualMemory()
		if err == nil {
			mu.Lock()
			metrics.Memory = MemoryMetrics{
				Total:       vmem.Total,
				Used:        vmem.Used,
				Available:   vmem.Available,
				UsedPercent: vmem.UsedPercent,
			}
			mu.Unlock()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		partitions, err := disk.Partitions(false)
		if err != nil {
			return
		}

		var disks []DiskMetrics
		for _, p := range partitions {
			if ctx.Err() != nil {
				return
			}
			if isVirtualFilesystem(p.Fstype) {
				continue
			}

			usage, err := disk.Usage(p.Mountpoint)
			if err != nil {
				continue
			}

			disks = append(disks, DiskMetrics{
				Device:      p.Device,
				MountPoint:  p.Mountpoint,
				Filesystem:  p.Fstype,
				Total:       usage.Total,
				Used:        usage.Used,
				Available:   usage.Free,
				UsedPercent: usage.UsedPercent,
			})
		}

		mu.Lock()
		metrics.Disks = disks
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if ctx.Err() != nil {
			return
		}
		hostInfo, err := host.Info()
		if err == nil {
			mu.Lock()
			metrics.Uptime = int64(hostInfo.Uptime)
			mu.Unlock()
		}

		loadAvg, err := load.Avg()
		if err == nil {
			mu.Lock()
			metrics.LoadAvg = []float64{loadAvg.Load1, loadAvg.Load5, loadAvg.Load15}
			mu.Unlock()
		}
	}()

	wg.Wait()

	return metrics, nil
}

// GetPathUsage reports disk usage of the filesystem containing path.
func GetPathUsage(path string) (*PathUsage, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return nil, err
	}
	return &PathUsage{
		Path:        path,
		Total:       usage.Total,
		Available:   usage.Free,
		UsedPercent: usage.UsedPercent,
	}, nil
}

// isVirtualFilesystem returns true if the filesystem type is virtual.
func isVirtualFilesystem(fstype string) bool {
	virtualFS := []string{
		"sysfs", "proc", "devfs", "devpts", "tmpfs", "debugfs",
		"securityfs", "cgroup", "cgroup2", "pstore", "bpf",
		"autofs", "mqueue", "hugetlbfs", "fusectl", "configfs",
		"devtmpfs", "overlay", "squashfs", "nsfs", "ramfs",
	}

	for _, vfs := range virtualFS {
		if fstype == vfs {
			return true
		}
	}
	return false
}
