// bank_resolver.go - locating instrument banks by name.

package main

import (
	"os"
	"path/filepath"
)

type BankFormat int

const (
	BANK_FORMAT_WOPL BankFormat = iota
	BANK_FORMAT_WOPN
	BANK_FORMAT_SF2
)

func (f BankFormat) Ext() string {
	switch f {
	case BANK_FORMAT_WOPL:
		return ".wopl"
	case BANK_FORMAT_WOPN:
		return ".wopn"
	case BANK_FORMAT_SF2:
		return ".sf2"
	}
	return ""
}

func (f BankFormat) String() string {
	switch f {
	case BANK_FORMAT_WOPL:
		return "wopl"
	case BANK_FORMAT_WOPN:
		return "wopn"
	case BANK_FORMAT_SF2:
		return "sf2"
	}
	return "unknown"
}

// BankResolver maps a bank name to a loadable path. Embedding hosts
// install their own resolver; ok is false when the name cannot be
// resolved to a readable file.
type BankResolver func(name string, kind BankFormat) (path string, ok bool)

// DefaultBankResolver tries the name as a path, then $VIREO_BANK_DIR,
// then the per-user config directory, with and without the format's
// extension appended.
func DefaultBankResolver(name string, kind BankFormat) (string, bool) {
	if name == "" {
		return "", false
	}
	candidates := []string{name}
	if dir := os.Getenv("VIREO_BANK_DIR"); dir != "" {
		candidates = append(candidates,
			filepath.Join(dir, name),
			filepath.Join(dir, name+kind.Ext()))
	}
	if cfg, err := os.UserConfigDir(); err == nil {
		base := filepath.Join(cfg, "vireo", "banks")
		candidates = append(candidates,
			filepath.Join(base, name),
			filepath.Join(base, name+kind.Ext()))
	}
	for _, c := range candidates {
		if st, err := os.Stat(c); err == nil && !st.IsDir() {
			return c, true
		}
	}
	return "", false
}

// resolveBank applies the configured resolver, falling back to the
// default lookup when the config carries none.
func resolveBank(r BankResolver, name string, kind BankFormat) (string, bool) {
	if name == "" {
		return "", false
	}
	if r == nil {
		r = DefaultBankResolver
	}
	return r(name, kind)
}
