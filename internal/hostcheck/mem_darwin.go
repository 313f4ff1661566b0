// internal/hostcheck/mem_darwin.go
//go:build darwin

package hostcheck

import "golang.org/x/sys/unix"

func memTotalBytes() (int64, error) {
	mem, err := unix.SysctlUint64("hw.memsize")
	if err != nil {
		return 0, err
	}
	return int64(mem), nil
}

// emulated reports whether the process runs x86 code under Rosetta
// translation on Apple silicon.
func emulated() bool {
	translated, err := unix.SysctlUint32("sysctl.proc_translated")
	return err == nil && translated == 1
}
