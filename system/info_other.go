//go:build !linux

package system

import (
	"github.com/shirou/gopsutil/v3/host"
)

func getOperatingSystemName() string {
	platform, _, version, err := host.PlatformInformation()
	if err != nil || platform == "" {
		return "unknown"
	}
	return platform + " " + version
}
