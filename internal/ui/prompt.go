// internal/ui/prompt.go
package ui

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNonInteractive is returned when a confirmation is required but no
// terminal is attached and no bypass flag was given.
var ErrNonInteractive = errors.New("confirmation required but no terminal is attached (use --yes or --ignore-warnings)")

// Prompter asks the operator yes/no questions. Orchestration code takes a
// Prompter so it can be driven by a scripted implementation in tests.
type Prompter interface {
	Confirm(question string, def bool) (bool, error)
}

// TerminalPrompter reads answers from the controlling terminal, not from
// redirected stdin, so piped input cannot answer prompts by accident.
type TerminalPrompter struct{}

func (TerminalPrompter) Confirm(question string, def bool) (bool, error) {
	if !Interactive() {
		return false, ErrNonInteractive
	}

	tty, err := os.Open("/dev/tty")
	if err != nil {
		return false, fmt.Errorf("cannot open controlling terminal: %w", err)
	}
	defer tty.Close()

	hint := "[y/N]"
	if def {
		hint = "[Y/n]"
	}

	reader := bufio.NewReader(tty)
	for {
		fmt.Fprintf(os.Stderr, "%s %s %s ", WarnStyle.Render("?"), question, Muted(hint))

		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("reading answer: %w", err)
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
		fmt.Fprintln(os.Stderr, Muted("please answer y or n"))
	}
}
