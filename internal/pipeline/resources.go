package pipeline

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// resourceMonitor samples the resource usage of the running process.
type resourceMonitor struct {
	process      *process.Process
	startCPUTime float64
	startTime    time.Time
}

// resourceUsage is one sample.
type resourceUsage struct {
	CPUPercent          float64
	MemoryRSS           uint64
	HeapAlloc           uint64
	SystemMemoryPercent float64
}

func newResourceMonitor() *resourceMonitor {
	rm := &resourceMonitor{startTime: time.Now()}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return rm
	}
	rm.process = proc
	if cpuTime, err := proc.Times(); err == nil {
		rm.startCPUTime = cpuTime.Total()
	}
	return rm
}

// sample returns current usage. Fields that cannot be read are left zero.
func (rm *resourceMonitor) sample() resourceUsage {
	var usage resourceUsage

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	usage.HeapAlloc = memStats.HeapAlloc

	if rm.process != nil {
		if cpuTime, err := rm.process.Times(); err == nil {
			if elapsed := time.Since(rm.startTime).Seconds(); elapsed > 0 {
				usage.CPUPercent = ((cpuTime.Total() - rm.startCPUTime) / elapsed) * 100
			}
		}
		if memInfo, err := rm.process.MemoryInfo(); err == nil {
			usage.MemoryRSS = memInfo.RSS
		}
	}

	if vmStat, err := mem.VirtualMemory(); err == nil {
		usage.SystemMemoryPercent = vmStat.UsedPercent
	}
	return usage
}
