// internal/types/result.go
package types

// InstallResult reports the outcome of a first-run install.
type InstallResult struct {
	ContainerName string
	Handle        string
	Image         string
	Cancelled     bool // operator cancelled the interactive setup; not an error
	Success       bool
	Error         error
}

// UpdateResult reports the outcome of a rollover. Stage names the last
// stage that ran when the rollover aborted.
type UpdateResult struct {
	ContainerName string
	Stage         string
	OldImage      string
	NewImage      string
	OldKept       bool // operator declined removal of the -old container
	Success       bool
	Error         error
}
