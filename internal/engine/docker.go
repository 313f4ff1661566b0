// internal/engine/docker.go
package engine

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/moby/term"
	"github.com/sirupsen/logrus"
)

// DockerEngine talks to the docker daemon over its control socket using
// the official SDK. It is selected when the current user can reach the
// socket directly, so no elevation wrapper is needed.
type DockerEngine struct {
	cli         *client.Client
	stopTimeout int // seconds
	logger      *logrus.Logger
}

var _ Engine = (*DockerEngine)(nil)

// NewDockerEngine connects to the daemon and verifies it answers.
func NewDockerEngine(ctx context.Context, stopTimeout int, logger *logrus.Logger) (*DockerEngine, error) {
	logger.Debug("creating docker client...")

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to connect to docker daemon: %w", err)
	}

	logger.Debug("connected to docker daemon")

	return &DockerEngine{
		cli:         cli,
		stopTimeout: stopTimeout,
		logger:      logger,
	}, nil
}

func (e *DockerEngine) Name() string { return "docker" }

func (e *DockerEngine) Close() error { return e.cli.Close() }

func (e *DockerEngine) Pull(ctx context.Context, ref string) error {
	e.logger.Debugf("pulling image: %s", ref)

	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return e.wrap("pull", err)
	}
	defer reader.Close()

	if _, err := io.Copy(io.Discard, reader); err != nil {
		return e.wrap("pull", err)
	}

	e.logger.Debugf("pull completed: %s", ref)
	return nil
}

func (e *DockerEngine) Create(ctx context.Context, spec ContainerSpec, cloneFrom string) (string, error) {
	if len(spec.ExtraArgs) > 0 {
		e.logger.Warnf("extra engine args are ignored when talking to the docker socket: %v", spec.ExtraArgs)
	}

	cfg, hostCfg, err := sdkConfigs(spec, cloneFrom)
	if err != nil {
		return "", e.wrap("create", err)
	}

	resp, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return "", e.wrap("create", err)
	}
	return resp.ID, nil
}

func (e *DockerEngine) Start(ctx context.Context, handle string) error {
	return e.wrap("start", e.cli.ContainerStart(ctx, handle, container.StartOptions{}))
}

func (e *DockerEngine) Stop(ctx context.Context, handle string) error {
	timeout := e.stopTimeout
	return e.wrap("stop", e.cli.ContainerStop(ctx, handle, container.StopOptions{
		Timeout: &timeout,
	}))
}

func (e *DockerEngine) Rename(ctx context.Context, handle, newName string) error {
	return e.wrap("rename", e.cli.ContainerRename(ctx, handle, newName))
}

func (e *DockerEngine) Remove(ctx context.Context, handle string) error {
	return e.wrap("rm", e.cli.ContainerRemove(ctx, handle, container.RemoveOptions{}))
}

func (e *DockerEngine) Inspect(ctx context.Context, name string) (ContainerState, error) {
	ctn, err := e.cli.ContainerInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return ContainerState{}, nil
		}
		return ContainerState{}, e.wrap("inspect", err)
	}
	state := ContainerState{
		Exists:  true,
		Running: ctn.State != nil && ctn.State.Running,
		ID:      ctn.ID,
	}
	if ctn.Config != nil {
		state.Image = ctn.Config.Image
	}
	return state, nil
}

// RunForeground attaches the spec to the caller's terminal, waits for the
// container to exit, and removes it. The exit code is returned as data.
func (e *DockerEngine) RunForeground(ctx context.Context, spec ContainerSpec) (int, error) {
	inFd, isTerm := term.GetFdInfo(os.Stdin)

	cfg, hostCfg, err := sdkConfigs(spec, "")
	if err != nil {
		return -1, e.wrap("create", err)
	}
	cfg.AttachStdin = true
	cfg.AttachStdout = true
	cfg.AttachStderr = true
	cfg.OpenStdin = true
	cfg.StdinOnce = true
	cfg.Tty = isTerm

	resp, err := e.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, spec.Name)
	if err != nil {
		return -1, e.wrap("create", err)
	}
	defer func() {
		// Background context: removal must still happen after a cancelled run.
		if err := e.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true}); err != nil {
			e.logger.Debugf("failed to remove setup container: %v", err)
		}
	}()

	attach, err := e.cli.ContainerAttach(ctx, resp.ID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
		Stdout: true,
		Stderr: true,
	})
	if err != nil {
		return -1, e.wrap("attach", err)
	}
	defer attach.Close()

	if isTerm {
		if state, err := term.SetRawTerminal(inFd); err == nil {
			defer term.RestoreTerminal(inFd, state)
		}
	}

	waitCh, errCh := e.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNextExit)

	if err := e.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return -1, e.wrap("start", err)
	}

	sessionDone := make(chan struct{})
	defer close(sessionDone)

	go streamStdin(attach.Conn, attach.CloseWrite, os.Stdin, sessionDone)
	go func() {
		if isTerm {
			io.Copy(os.Stdout, attach.Reader)
		} else {
			stdcopy.StdCopy(os.Stdout, os.Stderr, attach.Reader)
		}
	}()

	select {
	case status := <-waitCh:
		if status.Error != nil {
			return -1, &EngineError{Op: "docker wait", ExitStatus: -1, Stderr: status.Error.Message}
		}
		return int(status.StatusCode), nil
	case err := <-errCh:
		return -1, e.wrap("wait", err)
	}
}

// streamStdin forwards src into the attach connection, half-closing the
// write side when src ends. Once done is closed the forwarder stops: input
// completing a read after the session ended is dropped rather than written
// to the dead connection, and a failed write ends the forwarder instead of
// letting it spin.
func streamStdin(conn io.Writer, closeWrite func() error, src io.Reader, done <-chan struct{}) {
	buf := make([]byte, 32*1024)
	for {
		n, rerr := src.Read(buf)

		select {
		case <-done:
			return
		default:
		}

		if n > 0 {
			if _, err := conn.Write(buf[:n]); err != nil {
				return
			}
		}
		if rerr != nil {
			closeWrite()
			return
		}
	}
}

func (e *DockerEngine) wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Op: "docker " + op, ExitStatus: -1, Err: err}
}

// sdkConfigs converts a ContainerSpec into the SDK's config pair.
func sdkConfigs(spec ContainerSpec, cloneFrom string) (*container.Config, *container.HostConfig, error) {
	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, p := range spec.Ports {
		port, err := nat.NewPort(p.proto(), p.ContainerPort)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid port spec %s: %w", p, err)
		}
		exposed[port] = struct{}{}
		bindings[port] = append(bindings[port], nat.PortBinding{
			HostIP:   p.HostIP,
			HostPort: p.HostPort,
		})
	}

	env := make([]string, 0, len(spec.Env))
	for _, k := range sortedKeys(spec.Env) {
		env = append(env, k+"="+spec.Env[k])
	}

	cfg := &container.Config{
		Image:        spec.Image,
		Env:          env,
		ExposedPorts: exposed,
	}

	hostCfg := &container.HostConfig{PortBindings: bindings}
	for _, m := range spec.Mounts {
		hostCfg.Binds = append(hostCfg.Binds, m.Volume+":"+m.Target)
	}
	if cloneFrom != "" {
		hostCfg.VolumesFrom = []string{cloneFrom}
	}
	if spec.RestartPolicy != "" {
		hostCfg.RestartPolicy = container.RestartPolicy{
			Name: container.RestartPolicyMode(spec.RestartPolicy),
		}
	}

	return cfg, hostCfg, nil
}
