package metrics

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

type HostFacts struct {
	OS        string `json:"osname"`
	OSVersion string `json:"osversion"`
	Arch      string `json:"osarch"`
	Cores     int    `json:"cores"`
	MemoryMB  uint64 `json:"memoryMb,omitempty"`
}

// CollectHost gathers static host facts. Lookups that fail leave their field
// at the runtime default or zero.
func CollectHost(ctx context.Context) HostFacts {
	facts := HostFacts{
		OS:    runtime.GOOS,
		Arch:  runtime.GOARCH,
		Cores: runtime.NumCPU(),
	}

	if info, err := host.InfoWithContext(ctx); err == nil {
		if info.Platform != "" {
			facts.OS = info.Platform
		}
		facts.OSVersion = info.PlatformVersion
		if facts.OSVersion == "" {
			facts.OSVersion = info.KernelVersion
		}
	} else {
		log.Debug("host info unavailable", "error", err)
	}

	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		facts.Cores = n
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		facts.MemoryMB = vm.Total / 1024 / 1024
	}

	return facts
}
