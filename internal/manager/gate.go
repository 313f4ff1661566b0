// internal/manager/gate.go
package manager

import (
	"context"
	"fmt"
	"os"

	"deckhand/internal/hostcheck"
	"deckhand/internal/ui"
)

// CheckHost collects host facts, evaluates them against the default
// thresholds, and prints the report.
func (m *Manager) CheckHost(ctx context.Context) hostcheck.Verdict {
	profile := m.collect(ctx, m.logger)
	verdict := hostcheck.Evaluate(profile, hostcheck.DefaultThresholds())
	reportVerdict(verdict)
	return verdict
}

// EnforceRequirements runs the requirement gate and applies the decision
// rule: any failure refuses to proceed with no prompt; warnings require
// confirmation unless suppressed up front with --ignore-warnings/--yes.
func (m *Manager) EnforceRequirements(ctx context.Context) error {
	return m.enforceVerdict(m.CheckHost(ctx))
}

func (m *Manager) enforceVerdict(verdict hostcheck.Verdict) error {
	if errs := verdict.Errors(); len(errs) > 0 {
		return fmt.Errorf("%d host requirement(s) not met (see %s)", len(errs), TroubleshootingURL)
	}

	warnings := verdict.Warnings()
	if len(warnings) == 0 {
		return nil
	}

	if m.cfg.IgnoreWarnings || m.cfg.Yes {
		m.logger.Debugf("proceeding past %d requirement warning(s)", len(warnings))
		return nil
	}

	ok, err := m.prompter.Confirm(
		fmt.Sprintf("%d requirement warning(s) reported; continue anyway?", len(warnings)), false)
	if err != nil {
		// Includes the no-terminal case: a headless run without
		// --ignore-warnings is a configuration error, not a pass.
		return err
	}
	if !ok {
		return ErrDeclined
	}
	return nil
}

func reportVerdict(verdict hostcheck.Verdict) {
	for _, c := range verdict.Checks {
		var line string
		switch c.Status {
		case hostcheck.Pass:
			line = ui.PassMsg("%-12s %s", c.Name, c.Message)
		case hostcheck.Warn:
			line = ui.WarnMsg("%-12s %s", c.Name, c.Message)
		default:
			line = ui.FailMsg("%-12s %s", c.Name, c.Message)
		}
		fmt.Fprintln(os.Stdout, line)
	}
}
