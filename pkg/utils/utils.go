// pkg/utils/utils.go
package utils

import (
	"fmt"
	"strings"
	"time"
)

// Container name helpers
// ---------------------

// CleanContainerName strips the leading "/" the engine prepends to names.
func CleanContainerName(name string) string {
	return strings.TrimPrefix(name, "/")
}

// ShortenID shortens an engine ID to its short form (12 characters).
func ShortenID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// Time helpers
// -----------

// ParseTime tries a handful of common layouts.
func ParseTime(timeStr string) (time.Time, error) {
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, timeStr); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse time: %q", timeStr)
}
