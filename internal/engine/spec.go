// internal/engine/spec.go
package engine

import (
	"sort"
	"strings"
)

// PortBinding publishes one container port on the host. Proto defaults to
// tcp; HostIP may be empty to bind all addresses.
type PortBinding struct {
	Proto         string
	HostIP        string
	HostPort      string
	ContainerPort string
}

func (p PortBinding) proto() string {
	if p.Proto == "" {
		return "tcp"
	}
	return p.Proto
}

// String renders the binding in engine CLI syntax.
func (p PortBinding) String() string {
	var b strings.Builder
	if p.HostIP != "" {
		b.WriteString(p.HostIP)
		b.WriteByte(':')
	}
	b.WriteString(p.HostPort)
	b.WriteByte(':')
	b.WriteString(p.ContainerPort)
	b.WriteByte('/')
	b.WriteString(p.proto())
	return b.String()
}

// VolumeMount mounts a named volume at a container path.
type VolumeMount struct {
	Volume string
	Target string
}

// ContainerSpec describes a container to create. It is immutable once
// constructed; the engines compose it into API structs or argv themselves,
// so no user-influenced value is ever concatenated into a shell line.
type ContainerSpec struct {
	Name          string
	Image         string
	Ports         []PortBinding
	Mounts        []VolumeMount
	Env           map[string]string
	RestartPolicy string // engine restart policy, e.g. "unless-stopped"

	// ExtraArgs are operator-supplied engine flags appended verbatim.
	// Only CLI engines honor them; the SDK engine logs and ignores them.
	ExtraArgs []string
}

// createArgs composes the argv for `<engine> create`.
func (s ContainerSpec) createArgs(cloneFrom string) []string {
	args := []string{"create"}
	if s.Name != "" {
		args = append(args, "--name", s.Name)
	}
	args = append(args, s.commonArgs(cloneFrom)...)
	return append(args, s.Image)
}

// foregroundArgs composes the argv for a one-shot interactive run.
func (s ContainerSpec) foregroundArgs(tty bool) []string {
	args := []string{"run", "--rm", "-i"}
	if tty {
		args = append(args, "-t")
	}
	args = append(args, s.commonArgs("")...)
	return append(args, s.Image)
}

func (s ContainerSpec) commonArgs(cloneFrom string) []string {
	var args []string
	for _, p := range s.Ports {
		args = append(args, "-p", p.String())
	}
	for _, m := range s.Mounts {
		args = append(args, "-v", m.Volume+":"+m.Target)
	}
	for _, k := range sortedKeys(s.Env) {
		args = append(args, "-e", k+"="+s.Env[k])
	}
	if cloneFrom != "" {
		args = append(args, "--volumes-from", cloneFrom)
	}
	if s.RestartPolicy != "" {
		args = append(args, "--restart", s.RestartPolicy)
	}
	return append(args, s.ExtraArgs...)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
