// internal/manager/manager_test.go
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"testing"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckhand/internal/config"
	"deckhand/internal/engine"
	"deckhand/internal/hostcheck"
	"deckhand/internal/journal"
	"deckhand/internal/types/options"
	"deckhand/internal/ui"
)

// fakeEngine implements engine.Engine in memory. It records every call in
// order, tracks how many containers run at once, and fails on demand so
// tests can abort a rollover at any stage.
type fakeEngine struct {
	calls      []string
	byID       map[string]*fakeContainer
	failOn     map[string]error
	fgExit     int
	fgErr      error
	nextID     int
	running    int
	maxRunning int

	lastCreate    engine.ContainerSpec
	lastCloneFrom string
}

type fakeContainer struct {
	id      string
	name    string
	image   string
	running bool
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		byID:   make(map[string]*fakeContainer),
		failOn: make(map[string]error),
	}
}

func (f *fakeEngine) seed(name, image string, running bool) string {
	f.nextID++
	id := fmt.Sprintf("c%04d", f.nextID)
	f.byID[id] = &fakeContainer{id: id, name: name, image: image, running: running}
	if running {
		f.running++
		if f.running > f.maxRunning {
			f.maxRunning = f.running
		}
	}
	return id
}

func (f *fakeEngine) byName(name string) *fakeContainer {
	for _, c := range f.byID {
		if c.name == name {
			return c
		}
	}
	return nil
}

func (f *fakeEngine) step(call string) error {
	f.calls = append(f.calls, call)
	return f.failOn[call]
}

// mutations filters out inspects, leaving only state-changing calls.
func (f *fakeEngine) mutations() []string {
	var out []string
	for _, c := range f.calls {
		if len(c) < 7 || c[:7] != "inspect" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeEngine) Name() string { return "docker" }
func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) Pull(ctx context.Context, image string) error {
	return f.step("pull " + image)
}

func (f *fakeEngine) Create(ctx context.Context, spec engine.ContainerSpec, cloneFrom string) (string, error) {
	if err := f.step("create " + spec.Name); err != nil {
		return "", err
	}
	f.lastCreate = spec
	f.lastCloneFrom = cloneFrom
	return f.seed(spec.Name, spec.Image, false), nil
}

func (f *fakeEngine) Start(ctx context.Context, handle string) error {
	c := f.byID[handle]
	if err := f.step("start " + c.name); err != nil {
		return err
	}
	c.running = true
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	return nil
}

func (f *fakeEngine) Stop(ctx context.Context, handle string) error {
	c := f.byID[handle]
	if err := f.step("stop " + c.name); err != nil {
		return err
	}
	if c.running {
		c.running = false
		f.running--
	}
	return nil
}

func (f *fakeEngine) Rename(ctx context.Context, handle, newName string) error {
	c := f.byID[handle]
	if err := f.step("rename " + c.name + " " + newName); err != nil {
		return err
	}
	c.name = newName
	return nil
}

func (f *fakeEngine) Remove(ctx context.Context, handle string) error {
	c := f.byID[handle]
	if err := f.step("rm " + c.name); err != nil {
		return err
	}
	delete(f.byID, handle)
	return nil
}

func (f *fakeEngine) Inspect(ctx context.Context, name string) (engine.ContainerState, error) {
	if err := f.step("inspect " + name); err != nil {
		return engine.ContainerState{}, err
	}
	c := f.byName(name)
	if c == nil {
		return engine.ContainerState{}, nil
	}
	return engine.ContainerState{Exists: true, Running: c.running, ID: c.id, Image: c.image}, nil
}

func (f *fakeEngine) RunForeground(ctx context.Context, spec engine.ContainerSpec) (int, error) {
	if err := f.step("run-foreground"); err != nil {
		return -1, err
	}
	return f.fgExit, f.fgErr
}

// scriptedPrompter answers every question the same way and records what was
// asked.
type scriptedPrompter struct {
	answer bool
	err    error
	asked  []string
	defs   []bool
}

func (p *scriptedPrompter) Confirm(question string, def bool) (bool, error) {
	p.asked = append(p.asked, question)
	p.defs = append(p.defs, def)
	if p.err != nil {
		return false, p.err
	}
	return p.answer, nil
}

func newTestManager(t *testing.T, eng engine.Engine, p ui.Prompter) *Manager {
	t.Helper()

	cfg := config.NewConfig()
	cfg.DbPath = filepath.Join(t.TempDir(), "journal.db")

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg.Logger = logger

	m, err := New(cfg)
	require.NoError(t, err)
	m.engine = eng
	if p != nil {
		m.prompter = p
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestUpdateHappyPath(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	p := &scriptedPrompter{answer: true}
	m := newTestManager(t, eng, p)

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Equal(t, "ghcr.io/deckhand/worker:1.0", res.OldImage)
	assert.Equal(t, config.DefaultImage, res.NewImage)
	assert.False(t, res.OldKept)

	assert.Equal(t, []string{
		"pull " + config.DefaultImage,
		"create deckhand-worker-new",
		"stop deckhand-worker",
		"start deckhand-worker-new",
		"rename deckhand-worker deckhand-worker-old",
		"rename deckhand-worker-new deckhand-worker",
		"rm deckhand-worker-old",
	}, eng.mutations())

	// The old and new worker must never run at the same time.
	assert.Equal(t, 1, eng.maxRunning)

	worker := eng.byName("deckhand-worker")
	require.NotNil(t, worker)
	assert.True(t, worker.running)
	assert.Equal(t, config.DefaultImage, worker.image)
	assert.Nil(t, eng.byName("deckhand-worker-old"))

	entries, err := m.History(options.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StatusCompleted, entries[0].Status)
	assert.Equal(t, "ghcr.io/deckhand/worker:1.0", entries[0].FromImage)
	assert.Equal(t, config.DefaultImage, entries[0].ToImage)
}

func TestUpdatePreflightConflict(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)
	leftoverID := eng.seed("deckhand-worker-old", "ghcr.io/deckhand/worker:0.9", false)

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)

	var conflict *RolloverConflictError
	require.ErrorAs(t, res.Error, &conflict)
	assert.Equal(t, []string{"deckhand-worker-old"}, conflict.Leftover)
	assert.Equal(t, StagePreflight, res.Stage)

	// Nothing may have been mutated.
	assert.Empty(t, eng.mutations())
	assert.True(t, eng.byName("deckhand-worker").running)

	entries, err := m.History(options.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StatusConflict, entries[0].Status)

	// After manual cleanup the same update goes through.
	delete(eng.byID, leftoverID)
	res, err = m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
}

func TestUpdateStopFailureLeavesStateForOperator(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)
	eng.failOn["stop deckhand-worker"] = errors.New("stop timed out")

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Equal(t, StageStopOld, res.Stage)
	assert.False(t, res.Success)

	// The unstarted replacement stays behind; no rename or removal ran.
	require.NotNil(t, eng.byName("deckhand-worker-new"))
	assert.False(t, eng.byName("deckhand-worker-new").running)
	assert.True(t, eng.byName("deckhand-worker").running)
	for _, c := range eng.mutations() {
		assert.NotContains(t, c, "rename")
		assert.NotContains(t, c, "rm ")
	}

	entries, err := m.History(options.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StatusAborted, entries[0].Status)
	assert.Equal(t, StageStopOld, entries[0].Stage)
}

func TestUpdateStartFailureDoesNotRename(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)
	eng.failOn["start deckhand-worker-new"] = errors.New("start failed")

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Equal(t, StageStartNew, res.Stage)

	// The old container keeps its canonical name.
	require.NotNil(t, eng.byName("deckhand-worker"))
	for _, c := range eng.mutations() {
		assert.NotContains(t, c, "rename")
	}
}

func TestUpdateRenameOldFailureAbortsBeforeSecondRename(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)
	eng.failOn["rename deckhand-worker deckhand-worker-old"] = errors.New("rename failed")

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Equal(t, StageRenameOld, res.Stage)

	assert.NotContains(t, eng.mutations(), "rename deckhand-worker-new deckhand-worker")
	require.NotNil(t, eng.byName("deckhand-worker-new"))
}

func TestUpdateCleanupDeclinedKeepsOld(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	p := &scriptedPrompter{answer: false}
	m := newTestManager(t, eng, p)

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.True(t, res.OldKept)

	// Removal defaults to yes; the operator explicitly said no.
	require.Len(t, p.defs, 1)
	assert.True(t, p.defs[0])

	old := eng.byName("deckhand-worker-old")
	require.NotNil(t, old)
	assert.False(t, old.running)
}

func TestUpdateCleanupHeadlessTakesDefault(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	m := newTestManager(t, eng, &scriptedPrompter{err: ui.ErrNonInteractive})

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.False(t, res.OldKept)
	assert.Nil(t, eng.byName("deckhand-worker-old"))
}

func TestUpdateYesSkipsCleanupPrompt(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	p := &scriptedPrompter{answer: false}
	m := newTestManager(t, eng, p)
	m.cfg.Yes = true

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.OldKept)
	assert.Empty(t, p.asked)
}

func TestUpdateNotInstalled(t *testing.T) {
	eng := newFakeEngine()
	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "not installed")
	assert.Empty(t, eng.mutations())
}

func TestUpdateDryRun(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.NewUpdateOptions(options.WithUpdateDryRun(true)))
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.Empty(t, eng.mutations())
}

func TestUpdateImageTagOverride(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.NewUpdateOptions(options.WithUpdateImageTag("v2")))
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.Equal(t, "ghcr.io/deckhand/worker:v2", res.NewImage)
	assert.Contains(t, eng.mutations(), "pull ghcr.io/deckhand/worker:v2")
	assert.Equal(t, "ghcr.io/deckhand/worker:v2", eng.byName("deckhand-worker").image)
}

func TestUpdateCloneVolumes(t *testing.T) {
	eng := newFakeEngine()
	oldID := eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Update(context.Background(), options.NewUpdateOptions(options.WithUpdateCloneVolumes(true)))
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.Equal(t, oldID, eng.lastCloneFrom)
}

func TestInstallHappyPath(t *testing.T) {
	eng := newFakeEngine()
	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Install(context.Background(), options.InstallOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Success)
	assert.False(t, res.Cancelled)
	assert.NotEmpty(t, res.Handle)

	assert.Equal(t, []string{
		"pull " + config.DefaultImage,
		"run-foreground",
		"create deckhand-worker",
		"start deckhand-worker",
	}, eng.mutations())

	assert.Equal(t, "unless-stopped", eng.lastCreate.RestartPolicy)
	require.Len(t, eng.lastCreate.Mounts, 1)
	assert.Equal(t, config.DefaultVolume, eng.lastCreate.Mounts[0].Volume)
	assert.Equal(t, authMountPath, eng.lastCreate.Mounts[0].Target)

	worker := eng.byName("deckhand-worker")
	require.NotNil(t, worker)
	assert.True(t, worker.running)

	entries, err := m.History(options.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StatusCompleted, entries[0].Status)
	assert.Equal(t, "install", entries[0].Operation)
}

func TestInstallSetupCancelled(t *testing.T) {
	eng := newFakeEngine()
	eng.fgExit = SetupCancelledExitCode

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Install(context.Background(), options.InstallOptions{})
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.True(t, res.Cancelled)
	assert.False(t, res.Success)
	assert.Nil(t, eng.byName("deckhand-worker"))

	entries, err := m.History(options.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StatusCancelled, entries[0].Status)
}

func TestInstallSetupFailed(t *testing.T) {
	eng := newFakeEngine()
	eng.fgExit = 3

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Install(context.Background(), options.InstallOptions{})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "status 3")
	assert.Nil(t, eng.byName("deckhand-worker"))

	entries, err := m.History(options.HistoryOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.StatusAborted, entries[0].Status)
}

func TestInstallAlreadyExists(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Install(context.Background(), options.InstallOptions{})
	require.NoError(t, err)
	require.Error(t, res.Error)
	assert.Contains(t, res.Error.Error(), "already exists")
	assert.Empty(t, eng.mutations())
}

func TestInstallDryRun(t *testing.T) {
	eng := newFakeEngine()
	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	res, err := m.Install(context.Background(), options.NewInstallOptions(options.WithInstallDryRun(true)))
	require.NoError(t, err)
	require.NoError(t, res.Error)
	assert.Empty(t, eng.calls)
}

func TestUpdatePreflightConflictIsIdempotent(t *testing.T) {
	eng := newFakeEngine()
	eng.seed("deckhand-worker", "ghcr.io/deckhand/worker:1.0", true)
	eng.seed("deckhand-worker-new", "ghcr.io/deckhand/worker:1.1", false)

	m := newTestManager(t, eng, &scriptedPrompter{answer: true})

	// Two runs against unchanged engine state must reach the same verdict
	// and still mutate nothing.
	var first, second *RolloverConflictError

	res, err := m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.ErrorAs(t, res.Error, &first)

	res, err = m.Update(context.Background(), options.UpdateOptions{})
	require.NoError(t, err)
	require.ErrorAs(t, res.Error, &second)

	assert.Equal(t, first.Leftover, second.Leftover)
	assert.Equal(t, []string{"deckhand-worker-new"}, second.Leftover)
	assert.Empty(t, eng.mutations())
	assert.True(t, eng.byName("deckhand-worker").running)
}

func hostProfile(diskGiB int64, online bool) hostcheck.HostProfile {
	return hostcheck.HostProfile{
		OS:            hostcheck.OsDebian,
		Arch:          "amd64",
		CPUThreads:    8,
		MemBytes:      16 * units.GiB,
		DiskFreeBytes: diskGiB * units.GiB,
		HasDocker:     true,
		EngineAccess:  true,
		Online:        online,
		LocalIP:       "203.0.113.7",
		PublicIP:      "203.0.113.7",
	}
}

func TestEnforceRequirementsBlocksFailingHost(t *testing.T) {
	eng := newFakeEngine()
	p := &scriptedPrompter{answer: true}
	m := newTestManager(t, eng, p)
	m.collect = func(ctx context.Context, logger *logrus.Logger) hostcheck.HostProfile {
		return hostProfile(5, false) // disk-starved and offline
	}

	err := m.EnforceRequirements(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requirement")
	assert.Contains(t, err.Error(), TroubleshootingURL)

	// The gate refuses before anything touches the engine, and failures
	// never prompt.
	assert.Empty(t, eng.calls)
	assert.Empty(t, p.asked)
}

func TestEnforceRequirementsPassesHealthyHost(t *testing.T) {
	p := &scriptedPrompter{}
	m := newTestManager(t, newFakeEngine(), p)
	m.collect = func(ctx context.Context, logger *logrus.Logger) hostcheck.HostProfile {
		return hostProfile(100, true)
	}

	require.NoError(t, m.EnforceRequirements(context.Background()))
	assert.Empty(t, p.asked)
}

func verdictOf(statuses ...hostcheck.Status) hostcheck.Verdict {
	var v hostcheck.Verdict
	for i, s := range statuses {
		v.Checks = append(v.Checks, hostcheck.Check{
			Name:    fmt.Sprintf("check-%d", i),
			Status:  s,
			Message: "synthetic",
		})
	}
	return v
}

func TestEnforceVerdict(t *testing.T) {
	tests := []struct {
		name           string
		verdict        hostcheck.Verdict
		ignoreWarnings bool
		yes            bool
		prompt         *scriptedPrompter
		wantErr        error
		wantAsked      int
	}{
		{
			name:    "all pass proceeds silently",
			verdict: verdictOf(hostcheck.Pass, hostcheck.Pass),
			prompt:  &scriptedPrompter{},
		},
		{
			name:    "any failure refuses without prompting",
			verdict: verdictOf(hostcheck.Pass, hostcheck.Fail, hostcheck.Warn),
			prompt:  &scriptedPrompter{answer: true},
			wantErr: errors.New("host requirement"),
		},
		{
			name:      "warnings prompt and proceed on yes",
			verdict:   verdictOf(hostcheck.Pass, hostcheck.Warn),
			prompt:    &scriptedPrompter{answer: true},
			wantAsked: 1,
		},
		{
			name:      "warnings prompt and decline maps to ErrDeclined",
			verdict:   verdictOf(hostcheck.Warn),
			prompt:    &scriptedPrompter{answer: false},
			wantErr:   ErrDeclined,
			wantAsked: 1,
		},
		{
			name:           "ignore-warnings skips the prompt",
			verdict:        verdictOf(hostcheck.Warn, hostcheck.Warn),
			ignoreWarnings: true,
			prompt:         &scriptedPrompter{},
		},
		{
			name:    "yes skips the prompt",
			verdict: verdictOf(hostcheck.Warn),
			yes:     true,
			prompt:  &scriptedPrompter{},
		},
		{
			name:      "headless warning without bypass is an error",
			verdict:   verdictOf(hostcheck.Warn),
			prompt:    &scriptedPrompter{err: ui.ErrNonInteractive},
			wantErr:   ui.ErrNonInteractive,
			wantAsked: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(t, newFakeEngine(), tt.prompt)
			m.cfg.IgnoreWarnings = tt.ignoreWarnings
			m.cfg.Yes = tt.yes

			err := m.enforceVerdict(tt.verdict)
			switch {
			case tt.wantErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.wantErr, ErrDeclined) || errors.Is(tt.wantErr, ui.ErrNonInteractive):
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr.Error())
			}
			assert.Len(t, tt.prompt.asked, tt.wantAsked)
		})
	}
}
