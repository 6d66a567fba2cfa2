package system

import (
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// Version is set at build time with -ldflags.
var Version = "develop"

type Information struct {
	Version string `json:"version"`
	System  System `json:"system"`
}

type System struct {
	Architecture  string `json:"architecture"`
	CPUThreads    int    `json:"cpu_threads"`
	MemoryBytes   int64  `json:"memory_bytes"`
	KernelVersion string `json:"kernel_version"`
	OS            string `json:"os"`
	OSType        string `json:"os_type"`
}

type DiskInfo struct {
	Device     string   `json:"device"`
	Mountpoint string   `json:"mountpoint"`
	TotalSpace uint64   `json:"total_space"`
	UsedSpace  uint64   `json:"used_space"`
	Tags       []string `json:"tags"`
}

type Utilization struct {
	MemoryTotal uint64     `json:"memory_total"`
	MemoryUsed  uint64     `json:"memory_used"`
	SwapTotal   uint64     `json:"swap_total"`
	SwapUsed    uint64     `json:"swap_used"`
	LoadAvg1    float64    `json:"load_average1"`
	LoadAvg5    float64    `json:"load_average5"`
	LoadAvg15   float64    `json:"load_average15"`
	CpuPercent  float64    `json:"cpu_percent"`
	DiskDetails []DiskInfo `json:"disk_details"`
}

func GetSystemInformation() (*Information, error) {
	kernel, err := host.KernelVersion()
	if err != nil {
		kernel = "unknown"
	}
	m, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}

	return &Information{
		Version: Version,
		System: System{
			Architecture:  runtime.GOARCH,
			CPUThreads:    runtime.NumCPU(),
			MemoryBytes:   int64(m.Total),
			KernelVersion: kernel,
			OS:            getOperatingSystemName(),
			OSType:        runtime.GOOS,
		},
	}, nil
}

// GetSystemUtilization reports resource usage. paths maps a tag (for example
// "Modules") to a directory; every disk holding one of them is reported with
// the matching tags.
func GetSystemUtilization(paths map[string]string) (*Utilization, error) {
	c, err := cpu.Percent(0, false)
	if err != nil {
		return nil, err
	}
	m, err := mem.VirtualMemory()
	if err != nil {
		return nil, err
	}
	s, err := mem.SwapMemory()
	if err != nil {
		return nil, err
	}
	l, err := load.Avg()
	if err != nil {
		return nil, err
	}
	partitions, err := disk.Partitions(false)
	if err != nil {
		return nil, err
	}

	disks := make(map[string]*DiskInfo)
	for tag, p := range paths {
		part, ok := partitionFor(p, partitions)
		if !ok {
			continue
		}
		d, ok := disks[part.Mountpoint]
		if !ok {
			usage, err := disk.Usage(part.Mountpoint)
			if err != nil {
				continue
			}
			d = &DiskInfo{Device: part.Device, Mountpoint: part.Mountpoint, TotalSpace: usage.Total, UsedSpace: usage.Used}
			disks[part.Mountpoint] = d
		}
		d.Tags = append(d.Tags, tag)
	}

	details := make([]DiskInfo, 0, len(disks))
	for _, d := range disks {
		sort.Strings(d.Tags)
		details = append(details, *d)
	}
	sort.Slice(details, func(i, j int) bool { return details[i].Mountpoint < details[j].Mountpoint })

	var cpuPercent float64
	if len(c) > 0 {
		cpuPercent = c[0]
	}
	return &Utilization{
		MemoryTotal: m.Total,
		MemoryUsed:  m.Used,
		SwapTotal:   s.Total,
		SwapUsed:    s.Used,
		CpuPercent:  cpuPercent,
		LoadAvg1:    l.Load1,
		LoadAvg5:    l.Load5,
		LoadAvg15:   l.Load15,
		DiskDetails: details,
	}, nil
}

// partitionFor returns the partition with the longest mountpoint containing
// path.
func partitionFor(path string, partitions []disk.PartitionStat) (disk.PartitionStat, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return disk.PartitionStat{}, false
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}

	var best disk.PartitionStat
	found := false
	for _, part := range partitions {
		mp := part.Mountpoint
		if !strings.HasPrefix(abs, mp) {
			continue
		}
		if len(abs) > len(mp) && mp != string(filepath.Separator) && !strings.HasSuffix(mp, string(filepath.Separator)) && abs[len(mp)] != filepath.Separator {
			continue
		}
		if !found || len(mp) > len(best.Mountpoint) {
			best, found = part, true
		}
	}
	return best, found
}
