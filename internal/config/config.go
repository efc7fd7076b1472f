// Package config loads, validates, and (optionally) writes back the
// provider configuration file: a JSON array at
// ~/.claude-proxy-manager/providers.json or an operator-supplied path.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mintya/auto-proxy/internal/provider"
)

// DefaultDirName and DefaultFileName compose the default config path
// ~/.claude-proxy-manager/providers.json.
const (
	DefaultDirName  = ".claude-proxy-manager"
	DefaultFileName = "providers.json"
)

// ErrTemplateWritten is returned by Load when no config existed at the
// default path and a template was written in its place. Callers must treat
// this as a clean exit (spec.md §6: "exit 0 with a message"), not a
// failure.
var ErrTemplateWritten = errors.New("config: template written, edit it and restart")

// ErrEmpty is returned when the config file parses but contains no
// providers.
var ErrEmpty = errors.New("config: no providers configured")

const template = `[
  {
    "name": "your_name",
    "token": "sk-your_sk",
    "base_url": "https://your_base_url",
    "key_type": "AUTH_TOKEN"
  }
]
`

// DefaultPath returns ~/.claude-proxy-manager/providers.json, falling back
// to the current directory if the home directory can't be resolved.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, DefaultDirName, DefaultFileName)
}

// Load reads and validates the provider list at path. If path is empty, the
// default path is used; when the default path doesn't exist, Load creates
// its parent directory, writes the one-provider template, and returns
// ErrTemplateWritten. An explicitly supplied custom path that doesn't exist
// is always a fatal error, never templated.
func Load(path string) ([]provider.Provider, string, error) {
	isCustom := path != ""
	if !isCustom {
		path = DefaultPath()
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return nil, path, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if isCustom {
			return nil, path, fmt.Errorf("config: specified config file does not exist: %s", path)
		}
		if err := writeTemplate(path); err != nil {
			return nil, path, err
		}
		return nil, path, ErrTemplateWritten
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var providers []provider.Provider
	if err := json.Unmarshal(raw, &providers); err != nil {
		return nil, path, fmt.Errorf("config: %s: invalid JSON: %w", path, err)
	}

	if len(providers) == 0 {
		return nil, path, ErrEmpty
	}

	if err := provider.ValidateAll(providers); err != nil {
		return nil, path, fmt.Errorf("config: %s: %w", path, err)
	}

	return providers, path, nil
}

// Save marshals providers as indented JSON and writes them to path,
// creating the parent directory if needed. Used by the setup wizard to
// persist a freshly collected provider list.
func Save(path string, providers []provider.Provider) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: creating %s: %w", dir, err)
	}
	raw, err := json.MarshalIndent(providers, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshaling providers: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("config: writing %s: %w", path, err)
	}
	return nil
}

func writeTemplate(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("config: creating %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(template), 0o600); err != nil {
		return fmt.Errorf("config: writing template to %s: %w", path, err)
	}
	return nil
}

// PromotePreferred rewrites the config file at path, marking provider name
// as Preferred and clearing the flag from every other entry, then saves.
// Gated behind --promote-preferred per SPEC_FULL.md §9; callers run this in
// a detached goroutine so a successful client response is never delayed by
// disk I/O (spec.md §5).
func PromotePreferred(logger *slog.Logger, path string, providers []provider.Provider, name string) {
	updated := make([]provider.Provider, len(providers))
	copy(updated, providers)
	for i := range updated {
		updated[i].Preferred = updated[i].Name == name
	}

	raw, err := json.MarshalIndent(updated, "", "  ")
	if err != nil {
		logger.Warn("preferred-provider write-back failed to marshal", "error", err)
		return
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		logger.Warn("preferred-provider write-back failed to save", "path", path, "error", err)
		return
	}
	logger.Info("promoted preferred provider", "provider", name, "path", path)
}
