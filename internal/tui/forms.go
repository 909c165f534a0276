package tui

import (
	"errors"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/term"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a terminal.
var ErrNotInteractive = errors.New("not an interactive terminal")

// IsInteractive reports whether stdin and stdout are both terminals.
func IsInteractive() bool {
	return term.IsTerminal(os.Stdin.Fd()) && term.IsTerminal(os.Stdout.Fd())
}

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// CredentialPrompt holds the values collected by PromptCredentials.
type CredentialPrompt struct {
	VendorID     string
	VendorSecret string
}

// PromptCredentials asks for a vendor id and secret. The secret is masked.
// defaults pre-fills the vendor id when one is already known.
func PromptCredentials(origin string, defaults CredentialPrompt) (CredentialPrompt, error) {
	if !IsInteractive() {
		return CredentialPrompt{}, ErrNotInteractive
	}

	result := defaults
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Vendor ID").
				Placeholder("vendor-123").
				Value(&result.VendorID).
				Validate(required),
			huh.NewInput().
				Title("Vendor secret").
				EchoMode(huh.EchoModePassword).
				Value(&result.VendorSecret).
				Validate(required),
		).Title("SavageTech credentials for " + origin),
	)

	if err := form.Run(); err != nil {
		return CredentialPrompt{}, err
	}

	result.VendorID = strings.TrimSpace(result.VendorID)
	result.VendorSecret = strings.TrimSpace(result.VendorSecret)
	return result, nil
}

func required(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("this field is required")
	}
	return nil
}
