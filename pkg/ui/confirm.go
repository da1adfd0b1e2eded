// Package ui holds the terminal implementation of the confirmation
// port. Business logic only ever sees types.Confirmer; swapping in a
// scripted confirmer makes conflict decisions deterministic under test.
package ui

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pterm/pterm"

	"github.com/myokoym/cc-tools-manager-sub001/pkg/logging"
)

// TerminalConfirmer asks yes/no questions interactively via pterm.
type TerminalConfirmer struct{}

// NewTerminalConfirmer creates the interactive confirmer.
func NewTerminalConfirmer() *TerminalConfirmer {
	return &TerminalConfirmer{}
}

// Confirm prompts the user and returns the answer. Enter defaults to no
// so an accidental keypress never overwrites anything.
func (c *TerminalConfirmer) Confirm(message string) bool {
	ok, err := pterm.DefaultInteractiveConfirm.
		WithDefaultValue(false).
		Show(message)
	if err != nil {
		logger := logging.GetLogger("ui")
		logger.Warn().Err(err).Msg("confirmation prompt failed, answering no")
		return false
	}
	return ok
}

// IsInteractive reports whether stdin and stdout are attached to a
// terminal, i.e. whether a prompt could actually be answered.
func IsInteractive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) &&
		(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))
}
