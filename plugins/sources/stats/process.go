package stats

import (
	"os"

	gm "github.com/rcrowley/go-metrics"
	"github.com/shirou/gopsutil/process"
	log "github.com/sirupsen/logrus"
)

// processStats keeps gauges for the resource usage of the running process.
type processStats struct {
	proc *process.Process

	cpuPercent gm.GaugeFloat64
	rss        gm.Gauge
	vms        gm.Gauge
	threads    gm.Gauge
	fds        gm.Gauge
}

func newProcessStats(pid int32, registry gm.Registry) (*processStats, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, err
	}
	return &processStats{
		proc:       proc,
		cpuPercent: gm.GetOrRegisterGaugeFloat64("process.cpu.percent", registry),
		rss:        gm.GetOrRegisterGauge("process.memory.rss", registry),
		vms:        gm.GetOrRegisterGauge("process.memory.vms", registry),
		threads:    gm.GetOrRegisterGauge("process.threads", registry),
		fds:        gm.GetOrRegisterGauge("process.fds", registry),
	}, nil
}

func newSelfProcessStats(registry gm.Registry) *processStats {
	stats, err := newProcessStats(int32(os.Getpid()), registry)
	if err != nil {
		log.Warnf("process stats unavailable: %v", err)
		return nil
	}
	return stats
}

// capture refreshes the gauges. Values the platform cannot provide keep their last reading.
func (ps *processStats) capture() {
	if cpu, err := ps.proc.CPUPercent(); err == nil {
		ps.cpuPercent.Update(cpu)
	}
	if mem, err := ps.proc.MemoryInfo(); err == nil {
		ps.rss.Update(int64(mem.RSS))
		ps.vms.Update(int64(mem.VMS))
	}
	if threads, err := ps.proc.NumThreads(); err == nil {
		ps.threads.Update(int64(threads))
	}
	if fds, err := ps.proc.NumFDs(); err == nil {
		ps.fds.Update(int64(fds))
	}
}
