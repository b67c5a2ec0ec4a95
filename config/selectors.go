package config

import (
	"errors"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/andybalholm/cascadia"
)

// Selectors holds the ordered pop-up selector candidates.
//
// A selectors file looks like:
//
//	consent = ["button#accept-cookies", "#onetrust-accept-btn-handler"]
//	sign_in = ["button#sign-in-close"]
type Selectors struct {
	// Consent selectors are clicked to dismiss cookie/consent dialogs.
	Consent []string `toml:"consent"`

	// SignIn selectors indicate a sign-in wall; finding one aborts the attempt.
	SignIn []string `toml:"sign_in"`
}

// DefaultSelectors returns the built-in selector lists.
func DefaultSelectors() Selectors {
	return Selectors{
		Consent: []string{
			"button#accept-cookies",
			"button.cookie-accept",
			"button[aria-label='Accept Cookies']",
		},
		SignIn: []string{
			"button#sign-in-close",
			"button.signin-close",
			"button[aria-label='Close Sign In']",
		},
	}
}

// LoadSelectors decodes a TOML selectors file. Lists missing from the file
// keep their defaults.
func LoadSelectors(path string) (Selectors, error) {
	sel := DefaultSelectors()
	var file Selectors
	md, err := toml.DecodeFile(path, &file)
	if err != nil {
		return Selectors{}, fmt.Errorf("config: read selectors file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Selectors{}, fmt.Errorf("config: selectors file %s: unknown keys %v", path, undecoded)
	}
	if md.IsDefined("consent") {
		sel.Consent = file.Consent
	}
	if md.IsDefined("sign_in") {
		sel.SignIn = file.SignIn
	}
	return sel, nil
}

// Validate checks that every selector compiles as CSS.
func (s Selectors) Validate() error {
	var errs []error
	for _, list := range [][]string{s.Consent, s.SignIn} {
		for _, sel := range list {
			if err := validateSelector(sel); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func validateSelector(sel string) error {
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return fmt.Errorf("config: invalid selector %q: %w", sel, err)
	}
	return nil
}
