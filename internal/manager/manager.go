// internal/manager/manager.go
package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"deckhand/internal/config"
	"deckhand/internal/engine"
	"deckhand/internal/hostcheck"
	"deckhand/internal/journal"
	"deckhand/internal/notify"
	"deckhand/internal/types/options"
	"deckhand/internal/ui"
)

// TroubleshootingURL is printed alongside every fatal condition.
const TroubleshootingURL = "https://github.com/deckhand/deckhand/wiki/Troubleshooting"

// ErrDeclined marks a benign termination: the operator answered no. It
// maps to exit code 0, not to a failure.
var ErrDeclined = errors.New("declined by operator")

// Manager coordinates the install and rollover flows against the selected
// container engine.
type Manager struct {
	engine   engine.Engine
	journal  *journal.Journal
	notifier *notify.AppriseClient
	prompter ui.Prompter
	collect  func(ctx context.Context, logger *logrus.Logger) hostcheck.HostProfile
	cfg      *config.Config
	logger   *logrus.Logger
}

// New builds a manager. Engine and journal are resolved lazily so the
// requirement checks can run and report before either can fail.
func New(cfg *config.Config) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.InfoLevel)
	}

	var notifier *notify.AppriseClient
	if cfg.AppriseURL != "" {
		var err error
		notifier, err = notify.NewAppriseClient(cfg.AppriseURL, logger)
		if err != nil {
			logger.Warnf("failed to initialize Apprise notifications: %v", err)
		}
	}

	return &Manager{
		notifier: notifier,
		prompter: ui.TerminalPrompter{},
		collect:  hostcheck.Collect,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Close releases whatever got resolved during the run.
func (m *Manager) Close() error {
	var errs []error

	if m.engine != nil {
		if err := m.engine.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close engine: %w", err))
		}
	}
	if m.journal != nil {
		if err := m.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing manager: %v", errs)
	}
	return nil
}

func (m *Manager) ensureEngine(ctx context.Context) error {
	if m.engine != nil {
		return nil
	}
	eng, err := engine.Detect(ctx, m.cfg.StopTimeout, m.logger)
	if err != nil {
		if errors.Is(err, engine.ErrNoRuntime) {
			return fmt.Errorf("%w; %s", err, hostcheck.InstallSuggestion(hostcheck.DetectOS()))
		}
		return err
	}
	m.logger.Debugf("selected container engine: %s", eng.Name())
	m.engine = eng
	return nil
}

func (m *Manager) ensureJournal() error {
	if m.journal != nil {
		return nil
	}
	j, err := journal.Open(m.cfg.DbPath, m.logger)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	m.journal = j
	return nil
}

// record appends a journal entry, best effort: a broken journal must
// never abort an engine operation already in flight.
func (m *Manager) record(e *journal.Entry) {
	if err := m.ensureJournal(); err != nil {
		m.logger.Warnf("journal unavailable, not recording: %v", err)
		return
	}
	if err := m.journal.Record(e); err != nil {
		m.logger.Warnf("failed to record journal entry: %v", err)
	}
}

// History returns recorded install/update attempts.
func (m *Manager) History(opts options.HistoryOptions) ([]journal.Entry, error) {
	if err := m.ensureJournal(); err != nil {
		return nil, err
	}
	return m.journal.History(opts)
}

func (m *Manager) notifyUpdated(container, fromImage, toImage string) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyUpdated(container, fromImage, toImage); err != nil {
		m.logger.Warnf("failed to send notification: %v", err)
	}
}

func (m *Manager) notifyUpdateFailed(container, stage string, cause error) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyUpdateFailed(container, stage, cause); err != nil {
		m.logger.Warnf("failed to send notification: %v", err)
	}
}
