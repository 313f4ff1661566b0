// internal/hostcheck/profile.go
package hostcheck

// OsKind identifies the host OS family, resolved once during collection.
type OsKind string

const (
	OsDebian   OsKind = "debian"
	OsFedora   OsKind = "fedora"
	OsArch     OsKind = "arch"
	OsOpenSUSE OsKind = "opensuse"
	OsMacOS    OsKind = "macos"
	OsUnknown  OsKind = "unknown"
)

// HostProfile is an immutable snapshot of the host facts the requirement
// gate evaluates. It is built once per run by Collect and never mutated.
type HostProfile struct {
	OS       OsKind
	Arch     string
	Emulated bool // supported architecture reached through an emulation layer

	CPUThreads    int
	MemBytes      int64
	DiskFreeBytes int64

	HasDocker    bool
	HasPodman    bool
	EngineAccess bool // engine reachable without elevation

	Online   bool
	LocalIP  string
	PublicIP string
}

// InstallSuggestion returns a package-manager hint for installing a
// container engine on the given OS family.
func InstallSuggestion(os OsKind) string {
	switch os {
	case OsDebian:
		return "install one with: sudo apt-get install docker.io (or podman)"
	case OsFedora:
		return "install one with: sudo dnf install podman (or moby-engine)"
	case OsArch:
		return "install one with: sudo pacman -S docker (or podman)"
	case OsOpenSUSE:
		return "install one with: sudo zypper install docker (or podman)"
	case OsMacOS:
		return "install Docker Desktop or: brew install podman"
	default:
		return "install Docker or Podman using your distribution's package manager"
	}
}
