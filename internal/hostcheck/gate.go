// internal/hostcheck/gate.go
package hostcheck

import (
	"fmt"

	"github.com/docker/go-units"
)

// Status is the outcome of a single requirement check.
type Status int

const (
	Pass Status = iota
	Warn
	Fail
)

func (s Status) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	default:
		return "fail"
	}
}

// Check is one evaluated requirement with a human message.
type Check struct {
	Name    string
	Status  Status
	Message string
}

// Verdict aggregates all requirement checks in display order. Any check
// with Fail status forces the caller to stop before touching the engine.
type Verdict struct {
	Checks []Check
}

// Errors returns the failed checks in display order.
func (v Verdict) Errors() []Check { return v.filter(Fail) }

// Warnings returns the warning checks in display order.
func (v Verdict) Warnings() []Check { return v.filter(Warn) }

func (v Verdict) HasErrors() bool   { return len(v.Errors()) > 0 }
func (v Verdict) HasWarnings() bool { return len(v.Warnings()) > 0 }

func (v Verdict) filter(s Status) []Check {
	var out []Check
	for _, c := range v.Checks {
		if c.Status == s {
			out = append(out, c)
		}
	}
	return out
}

// Thresholds are the resource floors the gate enforces. Below Min is a
// hard failure; between Min and Rec is a warning.
type Thresholds struct {
	MinCPUThreads    int
	RecCPUThreads    int
	MinMemBytes      int64
	RecMemBytes      int64
	MinDiskFreeBytes int64
}

// DefaultThresholds returns the worker's published minimums.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCPUThreads:    2,
		RecCPUThreads:    4,
		MinMemBytes:      2 * units.GiB,
		RecMemBytes:      4 * units.GiB,
		MinDiskFreeBytes: 20 * units.GiB,
	}
}

var supportedArchs = map[string]bool{
	"amd64": true,
	"arm64": true,
}

// Evaluate applies the thresholds to a host profile. It is a pure function
// of its inputs: collection of host facts happens separately in Collect.
// Checks are independent; the order below is the fixed display order.
func Evaluate(p HostProfile, t Thresholds) Verdict {
	var v Verdict
	add := func(name string, status Status, format string, a ...any) {
		v.Checks = append(v.Checks, Check{Name: name, Status: status, Message: fmt.Sprintf(format, a...)})
	}

	// Platform
	switch {
	case !supportedArchs[p.Arch]:
		add("platform", Fail, "unsupported architecture %s", p.Arch)
	case p.Emulated:
		add("platform", Warn, "%s/%s is supported only through an emulation layer", p.OS, p.Arch)
	default:
		add("platform", Pass, "%s/%s", p.OS, p.Arch)
	}

	// CPU
	switch {
	case p.CPUThreads < t.MinCPUThreads:
		add("cpu", Fail, "%d threads available, %d required", p.CPUThreads, t.MinCPUThreads)
	case p.CPUThreads < t.RecCPUThreads:
		add("cpu", Warn, "%d threads available, %d or more recommended", p.CPUThreads, t.RecCPUThreads)
	default:
		add("cpu", Pass, "%d threads", p.CPUThreads)
	}

	// Memory
	switch {
	case p.MemBytes < t.MinMemBytes:
		add("memory", Fail, "%s available, %s required",
			units.BytesSize(float64(p.MemBytes)), units.BytesSize(float64(t.MinMemBytes)))
	case p.MemBytes < t.RecMemBytes:
		add("memory", Warn, "%s available, %s or more recommended",
			units.BytesSize(float64(p.MemBytes)), units.BytesSize(float64(t.RecMemBytes)))
	default:
		add("memory", Pass, "%s", units.BytesSize(float64(p.MemBytes)))
	}

	// Disk (binary: no warning band)
	if p.DiskFreeBytes < t.MinDiskFreeBytes {
		add("disk", Fail, "%s free, %s required",
			units.BytesSize(float64(p.DiskFreeBytes)), units.BytesSize(float64(t.MinDiskFreeBytes)))
	} else {
		add("disk", Pass, "%s free", units.BytesSize(float64(p.DiskFreeBytes)))
	}

	// Container runtime
	switch {
	case p.HasDocker:
		add("runtime", Pass, "docker detected")
	case p.HasPodman:
		add("runtime", Pass, "podman detected")
	default:
		add("runtime", Fail, "no container engine found; %s", InstallSuggestion(p.OS))
	}

	// Privilege (only meaningful when an engine exists)
	if p.HasDocker || p.HasPodman {
		if p.EngineAccess {
			add("privilege", Pass, "engine reachable without elevation")
		} else {
			add("privilege", Warn, "engine commands will require sudo (no direct engine access)")
		}
	}

	// Connectivity
	if p.Online {
		add("connectivity", Pass, "internet reachable")
	} else {
		add("connectivity", Fail, "internet unreachable")
	}

	// NAT reachability
	switch {
	case p.LocalIP == "" || p.PublicIP == "":
		add("nat", Warn, "could not determine local/public address pair")
	case p.LocalIP != p.PublicIP:
		add("nat", Warn, "host appears to be behind NAT (local %s, public %s)", p.LocalIP, p.PublicIP)
	default:
		add("nat", Pass, "directly reachable at %s", p.PublicIP)
	}

	return v
}
