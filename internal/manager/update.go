// internal/manager/update.go
package manager

import (
	"context"
	"errors"
	"fmt"

	"deckhand/internal/journal"
	"deckhand/internal/types"
	"deckhand/internal/types/options"
	"deckhand/internal/ui"
	"deckhand/pkg/utils"
)

// Rollover stages, in execution order. Each mutating stage is recorded in
// the result so an aborted run names exactly where it stopped.
const (
	StagePreflight = "preflight"
	StagePull      = "pull"
	StageCreateNew = "create-new"
	StageStopOld   = "stop-old"
	StageStartNew  = "start-new"
	StageRenameOld = "rename-old"
	StageRenameNew = "rename-new"
	StageCleanup   = "cleanup"
)

// RolloverConflictError reports leftover containers from a previous
// interrupted rollover. No mutation has happened when it is returned; the
// operator resolves the leftovers by hand before retrying.
type RolloverConflictError struct {
	Leftover []string
}

func (e *RolloverConflictError) Error() string {
	return fmt.Sprintf("previous rollover left containers behind: %v (resolve manually, see %s)",
		e.Leftover, TroubleshootingURL)
}

// Update replaces the running worker with a freshly pulled image using a
// stop-then-swap rollover. There is no automatic rollback: on failure the
// machine stops where it is, records the stage, and leaves the engine
// state for the operator. The old and new container are never running at
// the same time.
func (m *Manager) Update(ctx context.Context, opts options.UpdateOptions) (*types.UpdateResult, error) {
	name := utils.CleanContainerName(m.cfg.ContainerName)
	image := m.cfg.EffectiveImage(opts.ImageTag)

	result := &types.UpdateResult{
		ContainerName: name,
		Stage:         StagePreflight,
		NewImage:      image,
	}

	if err := m.ensureEngine(ctx); err != nil {
		return nil, err
	}

	oldName := name + "-old"
	newName := name + "-new"

	// Preflight: refuse to touch anything if a previous rollover left
	// debris behind. Checked before any mutation so a conflicted run is
	// always safe to retry after manual cleanup.
	var leftover []string
	for _, n := range []string{oldName, newName} {
		st, err := m.engine.Inspect(ctx, n)
		if err != nil {
			result.Error = fmt.Errorf("failed to inspect %s: %w", n, err)
			return result, nil
		}
		if st.Exists {
			leftover = append(leftover, n)
		}
	}
	if len(leftover) > 0 {
		conflict := &RolloverConflictError{Leftover: leftover}
		m.record(&journal.Entry{
			Container: name,
			Operation: "update",
			Stage:     StagePreflight,
			ToImage:   image,
			Status:    journal.StatusConflict,
			Message:   conflict.Error(),
		})
		result.Error = conflict
		return result, nil
	}

	oldState, err := m.engine.Inspect(ctx, name)
	if err != nil {
		result.Error = fmt.Errorf("failed to inspect container: %w", err)
		return result, nil
	}
	if !oldState.Exists {
		result.Error = fmt.Errorf("container %s is not installed; run install first", name)
		return result, nil
	}
	result.OldImage = oldState.Image

	if opts.DryRun {
		m.logger.Infof("dry run: would update %s from %s to %s", name, oldState.Image, image)
		result.Success = true
		return result, nil
	}

	result.Stage = StagePull
	m.logger.Infof("pulling %s", image)
	if err := m.engine.Pull(ctx, image); err != nil {
		return m.abort(result, fmt.Errorf("failed to pull image: %w", err)), nil
	}

	// Create the replacement unstarted under the scratch name. Nothing
	// user-visible has changed yet if this fails.
	result.Stage = StageCreateNew
	spec := m.workerSpec(newName, image)
	cloneFrom := ""
	if opts.CloneVolumes {
		cloneFrom = oldState.ID
	}
	newHandle, err := m.engine.Create(ctx, spec, cloneFrom)
	if err != nil {
		return m.abort(result, fmt.Errorf("failed to create replacement container: %w", err)), nil
	}

	result.Stage = StageStopOld
	if oldState.Running {
		m.logger.Infof("stopping %s", name)
		if err := m.engine.Stop(ctx, oldState.ID); err != nil {
			return m.abort(result, fmt.Errorf("failed to stop old container: %w", err)), nil
		}
	}

	result.Stage = StageStartNew
	m.logger.Infof("starting replacement (image %s, id %s)", image, utils.ShortenID(newHandle))
	if err := m.engine.Start(ctx, newHandle); err != nil {
		return m.abort(result, fmt.Errorf("failed to start replacement container: %w", err)), nil
	}

	// Swap names, old first so the canonical name is free before the
	// replacement claims it.
	result.Stage = StageRenameOld
	if err := m.engine.Rename(ctx, oldState.ID, oldName); err != nil {
		return m.abort(result, fmt.Errorf("failed to rename old container: %w", err)), nil
	}

	result.Stage = StageRenameNew
	if err := m.engine.Rename(ctx, newHandle, name); err != nil {
		return m.abort(result, fmt.Errorf("failed to rename replacement container: %w", err)), nil
	}

	result.Stage = StageCleanup
	keep, err := m.cleanupOld(ctx, oldName, oldState.ID)
	if err != nil {
		// The rollover itself succeeded; a failed removal only leaves the
		// stopped -old container around.
		m.logger.Warnf("failed to remove %s: %v", oldName, err)
		keep = true
	}
	result.OldKept = keep

	m.record(&journal.Entry{
		Container: name,
		Operation: "update",
		Stage:     StageCleanup,
		FromImage: oldState.Image,
		ToImage:   image,
		Status:    journal.StatusCompleted,
	})
	m.notifyUpdated(name, oldState.Image, image)

	m.logger.Infof("worker %s updated: %s -> %s", name, oldState.Image, image)

	result.Success = true
	return result, nil
}

// cleanupOld asks whether to delete the stopped previous container,
// default yes. Headless runs take the default.
func (m *Manager) cleanupOld(ctx context.Context, oldName, oldID string) (kept bool, err error) {
	remove := true
	if !m.cfg.Yes {
		ok, err := m.prompter.Confirm(fmt.Sprintf("remove previous container %s?", oldName), true)
		switch {
		case errors.Is(err, ui.ErrNonInteractive):
			// take the default
		case err != nil:
			return true, err
		default:
			remove = ok
		}
	}

	if !remove {
		m.logger.Infof("keeping %s; it consumes disk until removed with `%s rm %s`",
			oldName, m.engine.Name(), oldName)
		return true, nil
	}
	return false, m.engine.Remove(ctx, oldID)
}

// abort records the failed stage and fills the result. The engine state is
// deliberately left as is.
func (m *Manager) abort(result *types.UpdateResult, cause error) *types.UpdateResult {
	m.logger.Errorf("rollover aborted at %s: %v", result.Stage, cause)
	m.record(&journal.Entry{
		Container: result.ContainerName,
		Operation: "update",
		Stage:     result.Stage,
		FromImage: result.OldImage,
		ToImage:   result.NewImage,
		Status:    journal.StatusAborted,
		Message:   cause.Error(),
	})
	m.notifyUpdateFailed(result.ContainerName, result.Stage, cause)
	result.Error = cause
	return result
}
