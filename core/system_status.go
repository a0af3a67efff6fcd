package core

import (
	"bufio"
	"context"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// HealthProbe reports whether a backing service answers.
type HealthProbe func(ctx context.Context) error

const healthProbeTimeout = 2 * time.Second

// SystemStatus is the payload of /healthz.
type SystemStatus struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
	Memory struct {
		UsedBytes  uint64 `json:"used_bytes"`
		TotalBytes uint64 `json:"total_bytes"`
	} `json:"memory"`
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// Healthy is true when every probe passed.
func (s SystemStatus) Healthy() bool {
	return s.Status == "ok"
}

// CollectSystemStatus runs every probe and aggregates the results.
func CollectSystemStatus(ctx context.Context, probes map[string]HealthProbe, startedAt time.Time) SystemStatus {
	st := SystemStatus{Status: "ok", Checks: make(map[string]string, len(probes))}

	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		pctx, cancel := context.WithTimeout(ctx, healthProbeTimeout)
		err := probes[name](pctx)
		cancel()
		if err != nil {
			st.Checks[name] = err.Error()
			st.Status = "degraded"
			continue
		}
		st.Checks[name] = "ok"
	}

	// best-effort from /proc/meminfo
	used, total := readMemInfo()
	st.Memory.UsedBytes = used
	st.Memory.TotalBytes = total

	if !startedAt.IsZero() {
		st.UptimeSeconds = int64(time.Since(startedAt).Seconds())
	}
	return st
}

// readMemInfo returns used and total bytes using /proc/meminfo.
// If unavailable, returns zeros.
func readMemInfo() (used, total uint64) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, 0
	}
	defer f.Close()
	var memTotal, memAvailable uint64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "MemTotal:") {
			memTotal = parseKiBLine(line)
		} else if strings.HasPrefix(line, "MemAvailable:") {
			memAvailable = parseKiBLine(line)
		}
	}
	if memTotal > 0 {
		total = memTotal * 1024
		if memAvailable <= memTotal {
			used = (memTotal - memAvailable) * 1024
		}
	}
	return used, total
}

func parseKiBLine(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
