// Package wizard implements the first-run interactive provider onboarding
// flow, a huh-form port of original_source/src/interactive.rs's
// prompt-per-field, "add another?" loop.
package wizard

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/mintya/auto-proxy/internal/provider"
)

// Run walks the operator through entering one or more providers
// interactively and returns the resulting list. It returns an error only if
// the underlying form is aborted (e.g. Ctrl-C).
func Run() ([]provider.Provider, error) {
	var providers []provider.Provider

	for {
		p, err := runOne()
		if err != nil {
			return nil, fmt.Errorf("wizard: %w", err)
		}
		providers = append(providers, p)

		var again bool
		confirm := huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Add another provider?").
					Value(&again),
			),
		)
		if err := confirm.Run(); err != nil {
			return nil, fmt.Errorf("wizard: %w", err)
		}
		if !again {
			break
		}
	}

	return providers, nil
}

// runOne prompts for the four fields of a single Provider and validates
// them inline via huh's field-level Validate hooks, so a malformed entry
// never reaches provider.Validate.
func runOne() (provider.Provider, error) {
	var p provider.Provider
	var keyType string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Provider name").
				Validate(notEmpty).
				Value(&p.Name),
			huh.NewInput().
				Title("API token").
				EchoMode(huh.EchoModePassword).
				Validate(notEmpty).
				Value(&p.Token),
			huh.NewInput().
				Title("Base URL").
				Placeholder("https://api.example.com").
				Validate(notEmpty).
				Value(&p.BaseURL),
			huh.NewSelect[string]().
				Title("Key type").
				Options(
					huh.NewOption("AUTH_TOKEN", "AUTH_TOKEN"),
					huh.NewOption("API_KEY", "API_KEY"),
				).
				Value(&keyType),
		),
	)

	if err := form.Run(); err != nil {
		return provider.Provider{}, err
	}
	p.KeyType = provider.KeyType(keyType)

	if err := p.Validate(); err != nil {
		return provider.Provider{}, err
	}
	return p, nil
}

func notEmpty(s string) error {
	if s == "" {
		return fmt.Errorf("this field is required")
	}
	return nil
}
