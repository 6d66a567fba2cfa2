package system

import (
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
)

func TestPartitionForPicksLongestMount(t *testing.T) {
	root := string(filepath.Separator)
	data := filepath.Join(root, "srv")
	dataLong := filepath.Join(root, "srv-long")
	parts := []disk.PartitionStat{
		{Device: "root", Mountpoint: root},
		{Device: "data", Mountpoint: data},
	}

	p, ok := partitionFor(filepath.Join(data, "sgo", "modules"), parts)
	if !ok || p.Device != "data" {
		t.Fatalf("expected data partition, got %#v", p)
	}

	p, ok = partitionFor(filepath.Join(dataLong, "x"), parts)
	if !ok || p.Device != "root" {
		t.Fatalf("expected sibling directory to fall back to root, got %#v", p)
	}
}
