// ABOUTME: Immutable credential and tool snapshot used to decide which attempts are runnable.
// ABOUTME: Supplied once per run by the config layer; nothing here reads the environment.

package summary

import (
	"slices"
	"strings"

	"github.com/2389-research/summarize/llm"
)

// Snapshot is the credential/config view for one run. It is read-only once
// built and may be shared between goroutines.
type Snapshot struct {
	// Credentials maps credential variable names to their values.
	Credentials map[string]string
	// LocalTools maps tool names to resolved executable paths.
	LocalTools map[string]string
	// Enabled, when non-empty, is the only set of providers allowed.
	Enabled []string
	// Disabled providers are never used.
	Disabled []string
}

// Credential returns the non-empty value of the named credential.
func (s Snapshot) Credential(name string) (string, bool) {
	v := strings.TrimSpace(s.Credentials[name])
	return v, v != ""
}

// ToolPath returns the resolved path of a local tool.
func (s Snapshot) ToolPath(name string) (string, bool) {
	p := s.LocalTools[name]
	return p, p != ""
}

// ProviderAllowed applies the enable/disable lists.
func (s Snapshot) ProviderAllowed(provider string) bool {
	if slices.Contains(s.Disabled, provider) {
		return false
	}
	return len(s.Enabled) == 0 || slices.Contains(s.Enabled, provider)
}

// Available reports whether the attempt's credential or tool is present.
func (s Snapshot) Available(a Attempt) bool {
	if a.Transport == llm.TransportLocalTool {
		_, ok := s.ToolPath(a.Tool)
		return ok
	}
	if a.RequiredEnv == "" {
		return true
	}
	_, ok := s.Credential(a.RequiredEnv)
	return ok
}
