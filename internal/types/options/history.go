// internal/types/options/history.go
package options

import "time"

type HistoryOptions struct {
	Container string    // filter on container name; empty means all
	Limit     int       // maximum entries; 0 means no limit
	Since     time.Time // only entries at or after this instant
	JSON      bool      // machine-readable output
}
