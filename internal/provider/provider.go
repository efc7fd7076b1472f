// Package provider defines the immutable configuration record for a single
// upstream LLM API endpoint and small helpers shared across the dispatch
// engine.
package provider

import (
	"errors"
	"fmt"
	"net/url"
)

// KeyType tags how a provider expects its credential to be presented.
// The proxy always sends it as a bearer token (spec-mandated rewrite);
// the tag is carried through for observability and future provider-specific
// auth schemes.
type KeyType string

// Provider is an immutable configuration record for one upstream. Name is
// the identity used for every per-upstream map key in internal/state.
type Provider struct {
	Name      string  `json:"name"`
	Token     string  `json:"token"`
	BaseURL   string  `json:"base_url"`
	KeyType   KeyType `json:"key_type"`
	Preferred bool    `json:"preferred,omitempty"`
}

// ErrInvalidProvider is returned by Validate for a structurally bad record.
var ErrInvalidProvider = errors.New("invalid provider")

// Validate checks that the record has the fields the dispatch engine
// requires: a non-empty name and token, and an absolute base URL.
func (p Provider) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidProvider)
	}
	if p.Token == "" {
		return fmt.Errorf("%w: %s: empty token", ErrInvalidProvider, p.Name)
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s: base_url must be absolute (scheme+host): %q", ErrInvalidProvider, p.Name, p.BaseURL)
	}
	return nil
}

// MaskedToken returns a token with only its first and last four characters
// visible, safe to print in logs and the TUI. Short tokens are fully masked.
func (p Provider) MaskedToken() string {
	if len(p.Token) <= 8 {
		return "****"
	}
	return fmt.Sprintf("%s****%s", p.Token[:4], p.Token[len(p.Token)-4:])
}

// ValidateAll validates every provider and additionally rejects duplicate
// names, since Name is the identity key for all per-provider state.
func ValidateAll(providers []Provider) error {
	seen := make(map[string]struct{}, len(providers))
	for _, p := range providers {
		if err := p.Validate(); err != nil {
			return err
		}
		if _, ok := seen[p.Name]; ok {
			return fmt.Errorf("%w: duplicate provider name %q", ErrInvalidProvider, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}
