// internal/manager/install.go
package manager

import (
	"context"
	"fmt"

	"deckhand/internal/engine"
	"deckhand/internal/journal"
	"deckhand/internal/types"
	"deckhand/internal/types/options"
	"deckhand/pkg/utils"
)

// SetupCancelledExitCode is the exit status the worker's interactive setup
// returns when the operator backs out. Overloading a process exit code to
// carry user intent is a wart of the worker's contract, but it is the only
// signaling channel the subprocess has; it maps to a clean, non-error abort.
const SetupCancelledExitCode = 130

// authMountPath is where the worker expects its credential state; the
// durable volume is mounted there by both the setup run and the
// long-running container.
const authMountPath = "/var/lib/worker"

// Install performs the first-run flow: run the image once in the
// foreground for credential provisioning, then create and start the
// long-running detached container.
func (m *Manager) Install(ctx context.Context, opts options.InstallOptions) (*types.InstallResult, error) {
	name := utils.CleanContainerName(m.cfg.ContainerName)
	image := m.cfg.EffectiveImage(opts.ImageTag)
	result := &types.InstallResult{ContainerName: name, Image: image}

	if opts.DryRun {
		m.logger.Infof("dry run: would install %s from %s", name, image)
		return result, nil
	}

	if err := m.ensureEngine(ctx); err != nil {
		return nil, err
	}

	st, err := m.engine.Inspect(ctx, name)
	if err != nil {
		result.Error = fmt.Errorf("failed to inspect container: %w", err)
		return result, nil
	}
	if st.Exists {
		result.Error = fmt.Errorf("container %s already exists; use update instead", name)
		return result, nil
	}

	m.logger.Infof("pulling %s", image)
	if err := m.engine.Pull(ctx, image); err != nil {
		result.Error = fmt.Errorf("failed to pull image: %w", err)
		return result, nil
	}

	// Setup mounts only the durable volume: whatever credentials the
	// operator provisions land there and survive the one-shot container.
	m.logger.Info("starting interactive worker setup")
	code, err := m.engine.RunForeground(ctx, engine.ContainerSpec{
		Image:  image,
		Mounts: []engine.VolumeMount{{Volume: m.cfg.VolumeName, Target: authMountPath}},
		Env:    map[string]string{"WORKER_SETUP": "1"},
	})
	if err != nil {
		result.Error = fmt.Errorf("worker setup failed: %w", err)
		return result, nil
	}

	if code == SetupCancelledExitCode {
		m.logger.Info("setup cancelled by operator")
		result.Cancelled = true
		m.record(&journal.Entry{
			Container: name,
			Operation: "install",
			ToImage:   image,
			Status:    journal.StatusCancelled,
		})
		return result, nil
	}
	if code != 0 {
		result.Error = fmt.Errorf("worker setup exited with status %d", code)
		m.record(&journal.Entry{
			Container: name,
			Operation: "install",
			ToImage:   image,
			Status:    journal.StatusAborted,
			Message:   result.Error.Error(),
		})
		return result, nil
	}

	handle, err := m.engine.Create(ctx, m.workerSpec(name, image), "")
	if err != nil {
		result.Error = fmt.Errorf("failed to create worker container: %w", err)
		m.record(&journal.Entry{
			Container: name,
			Operation: "install",
			ToImage:   image,
			Status:    journal.StatusAborted,
			Message:   result.Error.Error(),
		})
		return result, nil
	}

	if err := m.engine.Start(ctx, handle); err != nil {
		result.Error = fmt.Errorf("failed to start worker container: %w", err)
		m.record(&journal.Entry{
			Container: name,
			Operation: "install",
			ToImage:   image,
			Status:    journal.StatusAborted,
			Message:   result.Error.Error(),
		})
		return result, nil
	}

	m.record(&journal.Entry{
		Container: name,
		Operation: "install",
		ToImage:   image,
		Status:    journal.StatusCompleted,
	})

	m.logger.Infof("worker %s installed and running (image %s, id %s)",
		name, image, utils.ShortenID(handle))

	result.Handle = handle
	result.Success = true
	return result, nil
}

// workerSpec builds the long-running container spec shared by install and
// rollover.
func (m *Manager) workerSpec(name, image string) engine.ContainerSpec {
	return engine.ContainerSpec{
		Name:          name,
		Image:         image,
		Mounts:        []engine.VolumeMount{{Volume: m.cfg.VolumeName, Target: authMountPath}},
		RestartPolicy: "unless-stopped",
	}
}
