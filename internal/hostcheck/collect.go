// internal/hostcheck/collect.go
package hostcheck

import (
	"bufio"
	"context"
	"net"
	"os"
	"os/exec"
	"os/user"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Paths consumed during collection; variables so tests can redirect them.
var (
	osReleasePath = "/etc/os-release"
	subuidPath    = "/etc/subuid"
	diskProbePath = "/var/lib"
)

// Collect gathers host facts into a profile. This is the impure step;
// Evaluate stays a pure function of the result. Individual probes fail
// soft: a fact that cannot be determined keeps its zero value and the
// gate turns it into the appropriate failure or warning.
func Collect(ctx context.Context, logger *logrus.Logger) HostProfile {
	p := HostProfile{
		OS:         detectOsKind(),
		Arch:       runtime.GOARCH,
		Emulated:   emulated(),
		CPUThreads: runtime.NumCPU(),
	}

	if mem, err := memTotalBytes(); err != nil {
		logger.Debugf("failed to read total memory: %v", err)
	} else {
		p.MemBytes = mem
	}

	if free, err := diskFreeBytes(diskProbePath); err != nil {
		logger.Debugf("failed to stat %s: %v", diskProbePath, err)
	} else {
		p.DiskFreeBytes = free
	}

	p.HasDocker = BinaryPresent("docker")
	p.HasPodman = BinaryPresent("podman")
	p.EngineAccess = engineAccessible(p)

	p.Online = probeOnline(ctx, connectivityProbeURL)
	p.LocalIP = localIP()
	if p.Online {
		if ip, err := publicIP(ctx, ipEchoURL); err != nil {
			logger.Debugf("failed to determine public IP: %v", err)
		} else {
			p.PublicIP = ip
		}
	}

	return p
}

// DetectOS resolves the host OS family without building a full profile.
func DetectOS() OsKind {
	return detectOsKind()
}

// detectOsKind resolves the OS family from GOOS and the os-release file.
func detectOsKind() OsKind {
	if runtime.GOOS == "darwin" {
		return OsMacOS
	}

	f, err := os.Open(osReleasePath)
	if err != nil {
		return OsUnknown
	}
	defer f.Close()

	ids := make([]string, 0, 2)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		for _, key := range []string{"ID=", "ID_LIKE="} {
			if strings.HasPrefix(line, key) {
				value := strings.Trim(strings.TrimPrefix(line, key), `"`)
				ids = append(ids, strings.Fields(value)...)
			}
		}
	}

	for _, id := range ids {
		switch id {
		case "debian", "ubuntu", "raspbian":
			return OsDebian
		case "fedora", "rhel", "centos":
			return OsFedora
		case "arch", "archlinux", "manjaro":
			return OsArch
		case "opensuse", "suse", "opensuse-leap", "opensuse-tumbleweed":
			return OsOpenSUSE
		}
	}
	return OsUnknown
}

// BinaryPresent reports whether an executable is on PATH.
func BinaryPresent(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

// engineAccessible reports whether the current user can reach an engine
// without elevation: the docker control socket answers, or podman has a
// subordinate-ID mapping for rootless operation.
func engineAccessible(p HostProfile) bool {
	if p.HasDocker && socketDialable(dockerSocketPath()) {
		return true
	}
	if p.HasPodman && HasSubuidMapping() {
		return true
	}
	return false
}

func dockerSocketPath() string {
	if host := os.Getenv("DOCKER_HOST"); strings.HasPrefix(host, "unix://") {
		return strings.TrimPrefix(host, "unix://")
	}
	return "/var/run/docker.sock"
}

func socketDialable(path string) bool {
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// HasSubuidMapping checks the subordinate-ID mapping file for the current
// user, the precondition for rootless podman.
func HasSubuidMapping() bool {
	u, err := user.Current()
	if err != nil {
		return false
	}

	f, err := os.Open(subuidPath)
	if err != nil {
		return false
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.SplitN(scanner.Text(), ":", 2)
		if len(fields) > 0 && (fields[0] == u.Username || fields[0] == u.Uid) {
			return true
		}
	}
	return false
}

func diskFreeBytes(path string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return int64(uint64(st.Bavail) * uint64(st.Bsize)), nil
}
