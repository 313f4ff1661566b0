// internal/hostcheck/mem_linux.go
//go:build linux

package hostcheck

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

var meminfoPath = "/proc/meminfo"

// memTotalBytes reads MemTotal from /proc/meminfo (reported in kB).
func memTotalBytes() (int64, error) {
	f, err := os.Open(meminfoPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("parsing MemTotal: %w", err)
			}
			return kb * 1024, nil
		}
	}
	return 0, fmt.Errorf("MemTotal not found in %s", meminfoPath)
}

func emulated() bool { return false }
