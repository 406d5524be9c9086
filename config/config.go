// ABOUTME: YAML configuration with an environment overlay for the summarize CLI and daemon.
// ABOUTME: Produces the credential snapshot, registry options and timeouts used by a summary run.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389-research/summarize/llm"
	"github.com/2389-research/summarize/summary"
)

var (
	ErrRemoteWithoutToken = errors.New(
		"daemon.allow_remote is true but no daemon token is set; refusing to start without authentication",
	)
	ErrNonLoopbackBind = errors.New(
		"daemon.addr is a non-loopback address but daemon.allow_remote is not true",
	)
)

// Env looks up an environment variable.
type Env func(key string) (string, bool)

// lookPath resolves local tool executables. Replaced in tests.
var lookPath = exec.LookPath

// Duration is a time.Duration written as "30s" in YAML.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Config is the full configuration.
type Config struct {
	// Model is "auto" or a catalog id, alias or provider/model to pin.
	Model      string   `yaml:"model"`
	Preference []string `yaml:"preference,omitempty"`
	Length     string   `yaml:"length,omitempty"`
	Language   string   `yaml:"language,omitempty"`
	Streaming  *bool    `yaml:"streaming,omitempty"`

	MaxOutputTokens int `yaml:"max_output_tokens,omitempty"`

	Providers  ProvidersConfig       `yaml:"providers"`
	OpenAI     OpenAIConfig          `yaml:"openai"`
	Gateway    GatewayConfig         `yaml:"gateway"`
	Timeouts   TimeoutsConfig        `yaml:"timeouts"`
	Daemon     DaemonConfig          `yaml:"daemon"`
	LocalTools map[string]ToolConfig `yaml:"local_tools,omitempty"`

	env Env
}

// ProvidersConfig holds the enable/disable lists.
type ProvidersConfig struct {
	Enabled  []string `yaml:"enabled,omitempty"`
	Disabled []string `yaml:"disabled,omitempty"`
}

// OpenAIConfig points OpenAI attempts at an OpenAI-compatible endpoint.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url,omitempty"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
}

// GatewayConfig restricts gateway routing.
type GatewayConfig struct {
	// Only lists the upstream providers the gateway may route to.
	Only []string `yaml:"only,omitempty"`
	// Exclusive drops direct attempts from the auto chain.
	Exclusive bool `yaml:"exclusive,omitempty"`
}

// TimeoutsConfig bounds each attempt.
type TimeoutsConfig struct {
	Connect   Duration `yaml:"connect,omitempty"`
	Request   Duration `yaml:"request,omitempty"`
	FirstByte Duration `yaml:"first_byte,omitempty"`
}

// DaemonConfig configures the long-running service.
type DaemonConfig struct {
	Addr        string `yaml:"addr"`
	Token       string `yaml:"token,omitempty"`
	DataDir     string `yaml:"data_dir,omitempty"`
	AllowRemote bool   `yaml:"allow_remote,omitempty"`
}

// ToolConfig overrides where a local tool is found.
type ToolConfig struct {
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	t := llm.DefaultAdapterTimeout()
	return &Config{
		Model:  summary.AutoModel,
		Length: string(summary.LengthMedium),
		Timeouts: TimeoutsConfig{
			Connect:   Duration(t.Connect),
			Request:   Duration(t.Request),
			FirstByte: Duration(t.FirstByte),
		},
		Daemon: DaemonConfig{Addr: "127.0.0.1:8787"},
		env:    os.LookupEnv,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/summarize/config.yaml, falling back to
// ~/.config/summarize/config.yaml.
func DefaultPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/tmp"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "summarize", "config.yaml")
}

// Load reads path (a missing file is not an error), applies the process
// environment and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults, applies env and validates.
func Parse(data []byte, env Env) (*Config, error) {
	cfg := Default()
	cfg.env = env
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) lookup(key string) string {
	if c.env == nil {
		return ""
	}
	v, _ := c.env(key)
	return strings.TrimSpace(v)
}

// applyEnv overlays SUMMARIZE_* and related variables on the file values.
func (c *Config) applyEnv() {
	if v := c.lookup("SUMMARIZE_MODEL"); v != "" {
		c.Model = v
	}
	if v := c.lookup("SUMMARIZE_DAEMON_ADDR"); v != "" {
		c.Daemon.Addr = v
	}
	if v := c.lookup("SUMMARIZE_DAEMON_TOKEN"); v != "" {
		c.Daemon.Token = v
	}
	if v := c.lookup("SUMMARIZE_HOME"); v != "" {
		c.Daemon.DataDir = v
	}
	if v := c.lookup("SUMMARIZE_ALLOW_REMOTE"); v == "true" || v == "1" || v == "yes" {
		c.Daemon.AllowRemote = true
	}
	if v := c.lookup("OPENAI_BASE_URL"); v != "" && c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = v
	}
	if c.Daemon.DataDir == "" {
		c.Daemon.DataDir = defaultDataDir(c.lookup("XDG_DATA_HOME"))
	}
}

// defaultDataDir is $XDG_DATA_HOME/summarize or ~/.local/share/summarize.
func defaultDataDir(xdg string) string {
	if xdg != "" {
		return filepath.Join(xdg, "summarize")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/tmp"
	}
	return filepath.Join(home, ".local", "share", "summarize")
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := summary.ParseLength(c.Length); err != nil {
		return err
	}
	if c.MaxOutputTokens < 0 {
		return fmt.Errorf("max_output_tokens must not be negative")
	}
	if c.Timeouts.Connect < 0 || c.Timeouts.Request < 0 || c.Timeouts.FirstByte < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}

	if c.Daemon.AllowRemote && c.Daemon.Token == "" {
		return ErrRemoteWithoutToken
	}
	// Only 127.0.0.0/8, ::1 and "localhost" are safe without allow_remote.
	if !c.Daemon.AllowRemote {
		if host, _, err := net.SplitHostPort(c.Daemon.Addr); err == nil && host != "" {
			ip := net.ParseIP(host)
			switch {
			case ip != nil && ip.IsLoopback():
			case ip == nil && host == "localhost":
			default:
				return fmt.Errorf("%w: %s", ErrNonLoopbackBind, c.Daemon.Addr)
			}
		}
	}
	return nil
}

// StreamingEnabled reports whether streamed calls are allowed. Default true.
func (c *Config) StreamingEnabled() bool {
	return c.Streaming == nil || *c.Streaming
}

// AdapterTimeout converts the configured timeouts.
func (c *Config) AdapterTimeout() llm.AdapterTimeout {
	return llm.AdapterTimeout{
		Connect:   time.Duration(c.Timeouts.Connect),
		Request:   time.Duration(c.Timeouts.Request),
		FirstByte: time.Duration(c.Timeouts.FirstByte),
	}
}

// RegistryOptions turns preference, gateway and OpenAI settings into
// registry options.
func (c *Config) RegistryOptions() []summary.RegistryOption {
	var opts []summary.RegistryOption
	if len(c.Preference) > 0 {
		opts = append(opts, summary.WithPreference(c.Preference))
	}
	if len(c.Gateway.Only) > 0 {
		opts = append(opts, summary.WithGatewayHints(c.Gateway.Only))
	}
	if c.Gateway.Exclusive {
		opts = append(opts, summary.WithGatewayOnly(true))
	}
	if c.OpenAI.BaseURL != "" {
		opts = append(opts, summary.WithOpenAIOverride(c.OpenAI.BaseURL, c.OpenAI.APIKeyEnv))
	}
	return opts
}

// Registry builds the capability registry for this configuration.
func (c *Config) Registry() *summary.Registry {
	return summary.NewRegistry(llm.DefaultCatalog(), c.RegistryOptions()...)
}

// Snapshot captures every credential the catalog can ask for and resolves
// local tools. The result is immutable and safe to share.
func (c *Config) Snapshot(catalog *llm.Catalog) summary.Snapshot {
	if catalog == nil {
		catalog = llm.DefaultCatalog()
	}
	snap := summary.Snapshot{
		Credentials: make(map[string]string),
		LocalTools:  make(map[string]string),
		Enabled:     append([]string(nil), c.Providers.Enabled...),
		Disabled:    append([]string(nil), c.Providers.Disabled...),
	}

	envs := []string{}
	if c.OpenAI.APIKeyEnv != "" {
		envs = append(envs, c.OpenAI.APIKeyEnv)
	}
	for _, m := range catalog.ListModels("") {
		if m.CredentialEnv != "" {
			envs = append(envs, m.CredentialEnv)
		}
		if m.Transport == llm.TransportLocalTool && m.Tool != "" {
			if path := c.resolveTool(m.Tool); path != "" {
				snap.LocalTools[m.Tool] = path
			}
		}
	}
	for _, name := range envs {
		if v := c.lookup(name); v != "" {
			snap.Credentials[name] = v
		}
	}
	return snap
}

func (c *Config) resolveTool(tool string) string {
	tc := c.LocalTools[tool]
	if tc.Disabled {
		return ""
	}
	if tc.Path != "" {
		if _, err := os.Stat(tc.Path); err == nil {
			return tc.Path
		}
		return ""
	}
	path, err := lookPath(tool)
	if err != nil {
		return ""
	}
	return path
}
