// internal/engine/cli.go
package engine

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/moby/term"
	"github.com/sirupsen/logrus"
)

// CLIEngine drives an engine through its command-line binary. It serves
// podman, and docker when the control socket needs elevation: with sudo
// set, every invocation is prefixed with a non-interactive sudo. The
// elevation decision is made once by Detect and baked in here.
type CLIEngine struct {
	binary      string
	sudo        bool
	stopTimeout int // seconds
	logger      *logrus.Logger
}

var _ Engine = (*CLIEngine)(nil)

func NewCLIEngine(binary string, sudo bool, stopTimeout int, logger *logrus.Logger) *CLIEngine {
	return &CLIEngine{
		binary:      binary,
		sudo:        sudo,
		stopTimeout: stopTimeout,
		logger:      logger,
	}
}

func (e *CLIEngine) Name() string { return e.binary }

func (e *CLIEngine) Close() error { return nil }

func (e *CLIEngine) command(ctx context.Context, args []string) *exec.Cmd {
	if e.sudo {
		return exec.CommandContext(ctx, "sudo", append([]string{"-n", e.binary}, args...)...)
	}
	return exec.CommandContext(ctx, e.binary, args...)
}

// run executes one engine command, capturing output. Non-zero exit becomes
// an EngineError carrying the exit status and trimmed stderr.
func (e *CLIEngine) run(ctx context.Context, op string, args ...string) (string, error) {
	cmd := e.command(ctx, args)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	e.logger.Debugf("exec: %s %s", e.binary, strings.Join(args, " "))

	if err := cmd.Run(); err != nil {
		exit := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exit = exitErr.ExitCode()
		}
		return "", &EngineError{
			Op:         e.binary + " " + op,
			ExitStatus: exit,
			Stderr:     strings.TrimSpace(stderr.String()),
			Err:        err,
		}
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (e *CLIEngine) Pull(ctx context.Context, image string) error {
	_, err := e.run(ctx, "pull", "pull", image)
	return err
}

func (e *CLIEngine) Create(ctx context.Context, spec ContainerSpec, cloneFrom string) (string, error) {
	out, err := e.run(ctx, "create", spec.createArgs(cloneFrom)...)
	if err != nil {
		return "", err
	}
	// `create` prints the new container's ID on stdout.
	if out == "" {
		return spec.Name, nil
	}
	return out, nil
}

func (e *CLIEngine) Start(ctx context.Context, handle string) error {
	_, err := e.run(ctx, "start", "start", handle)
	return err
}

func (e *CLIEngine) Stop(ctx context.Context, handle string) error {
	_, err := e.run(ctx, "stop", "stop", "-t", strconv.Itoa(e.stopTimeout), handle)
	return err
}

func (e *CLIEngine) Rename(ctx context.Context, handle, newName string) error {
	_, err := e.run(ctx, "rename", "rename", handle, newName)
	return err
}

func (e *CLIEngine) Remove(ctx context.Context, handle string) error {
	_, err := e.run(ctx, "rm", "rm", handle)
	return err
}

func (e *CLIEngine) Inspect(ctx context.Context, name string) (ContainerState, error) {
	out, err := e.run(ctx, "inspect",
		"container", "inspect", "--format", "{{.Id}} {{.State.Running}} {{.Config.Image}}", name)
	if err != nil {
		var engErr *EngineError
		if errors.As(err, &engErr) && strings.Contains(strings.ToLower(engErr.Stderr), "no such container") {
			return ContainerState{}, nil
		}
		return ContainerState{}, err
	}

	fields := strings.Fields(out)
	state := ContainerState{Exists: true}
	if len(fields) > 0 {
		state.ID = fields[0]
	}
	if len(fields) > 1 {
		state.Running = fields[1] == "true"
	}
	if len(fields) > 2 {
		state.Image = fields[2]
	}
	return state, nil
}

// RunForeground hands the caller's terminal to the container and returns
// its exit code. The exit status of the subprocess is data here: the
// caller interprets specific codes (user-cancelled setup in particular).
func (e *CLIEngine) RunForeground(ctx context.Context, spec ContainerSpec) (int, error) {
	_, isTerm := term.GetFdInfo(os.Stdin)

	cmd := e.command(ctx, spec.foregroundArgs(isTerm))
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	e.logger.Debugf("exec (foreground): %s %s", e.binary, strings.Join(cmd.Args[1:], " "))

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode(), nil
		}
		return -1, &EngineError{Op: e.binary + " run", ExitStatus: -1, Err: err}
	}
	return 0, nil
}
