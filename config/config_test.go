// ABOUTME: Tests for YAML parsing, the environment overlay, validation and snapshot construction.
// ABOUTME: Environment lookups and tool discovery are stubbed, nothing reads the real process env.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/2389-research/summarize/llm"
)

func envMap(m map[string]string) Env {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil, envMap(map[string]string{"XDG_DATA_HOME": "/data"}))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Model != "auto" || cfg.Length != "medium" || !cfg.StreamingEnabled() {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Daemon.Addr != "127.0.0.1:8787" {
		t.Errorf("Addr = %q", cfg.Daemon.Addr)
	}
	if cfg.Daemon.DataDir != "/data/summarize" {
		t.Errorf("DataDir = %q", cfg.Daemon.DataDir)
	}
	if cfg.AdapterTimeout() != llm.DefaultAdapterTimeout() {
		t.Errorf("timeouts = %+v", cfg.AdapterTimeout())
	}
}

func TestParseYAML(t *testing.T) {
	data := []byte(`
model: anthropic/claude-haiku-4-5
preference: [gpt5-mini, haiku]
length: short
streaming: false
max_output_tokens: 800
providers:
  disabled: [xai]
gateway:
  only: [groq, cerebras]
  exclusive: true
timeouts:
  first_byte: 5s
daemon:
  addr: localhost:9000
  token: secret
`)
	cfg, err := Parse(data, envMap(nil))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Model != "anthropic/claude-haiku-4-5" || cfg.Length != "short" || cfg.StreamingEnabled() {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.AdapterTimeout().FirstByte != 5*time.Second {
		t.Errorf("FirstByte = %v", cfg.AdapterTimeout().FirstByte)
	}
	if cfg.AdapterTimeout().Request != llm.DefaultAdapterTimeout().Request {
		t.Error("unset timeouts keep their defaults")
	}
	if len(cfg.RegistryOptions()) != 3 {
		t.Errorf("RegistryOptions = %d, want preference, hints and exclusive", len(cfg.RegistryOptions()))
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("modle: auto\n"), envMap(nil)); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cfg, err := Parse([]byte("model: gpt-5.2\n"), envMap(map[string]string{
		"SUMMARIZE_MODEL":        "sonnet",
		"SUMMARIZE_DAEMON_TOKEN": "tok",
		"OPENAI_BASE_URL":        "http://localhost:11434/v1",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model != "sonnet" || cfg.Daemon.Token != "tok" || cfg.OpenAI.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestValidateBindRules(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"loopback", "daemon: {addr: '127.0.0.1:8787'}", nil},
		{"localhost", "daemon: {addr: 'localhost:8787'}", nil},
		{"public without remote", "daemon: {addr: '0.0.0.0:8787'}", ErrNonLoopbackBind},
		{"hostname without remote", "daemon: {addr: 'box.lan:8787'}", ErrNonLoopbackBind},
		{"remote without token", "daemon: {addr: '0.0.0.0:8787', allow_remote: true}", ErrRemoteWithoutToken},
		{"remote with token", "daemon: {addr: '0.0.0.0:8787', allow_remote: true, token: t}", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), envMap(nil))
			if tt.want == nil && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateLength(t *testing.T) {
	if _, err := Parse([]byte("length: epic\n"), envMap(nil)); err == nil {
		t.Error("expected an error for an unknown length")
	}
}

func TestSnapshot(t *testing.T) {
	orig := lookPath
	t.Cleanup(func() { lookPath = orig })
	lookPath = func(name string) (string, error) {
		if name == "claude" {
			return "/usr/local/bin/claude", nil
		}
		return "", errors.New("not found")
	}

	cfg, err := Parse([]byte(`
providers:
  enabled: [anthropic, claude-cli]
openai:
  base_url: http://localhost:8000/v1
  api_key_env: LOCAL_KEY
`), envMap(map[string]string{
		"ANTHROPIC_API_KEY": "sk-ant",
		"LOCAL_KEY":         "local",
		"GEMINI_API_KEY":    "   ",
	}))
	if err != nil {
		t.Fatal(err)
	}
	snap := cfg.Snapshot(nil)

	if v, ok := snap.Credential("ANTHROPIC_API_KEY"); !ok || v != "sk-ant" {
		t.Errorf("ANTHROPIC_API_KEY = %q, %v", v, ok)
	}
	if _, ok := snap.Credential("LOCAL_KEY"); !ok {
		t.Error("override key env should be captured")
	}
	if _, ok := snap.Credential("GEMINI_API_KEY"); ok {
		t.Error("blank credentials are absent")
	}
	if p, ok := snap.ToolPath("claude"); !ok || p != "/usr/local/bin/claude" {
		t.Errorf("claude tool = %q, %v", p, ok)
	}
	if _, ok := snap.ToolPath("codex"); ok {
		t.Error("codex should not resolve")
	}
	if !snap.ProviderAllowed("anthropic") || snap.ProviderAllowed("openai") {
		t.Error("enable list not applied")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nSUMMARIZE_TEST_A=one\nexport SUMMARIZE_TEST_B=\"two=2\"\nSUMMARIZE_TEST_C='three'\nbroken line\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SUMMARIZE_TEST_C", "kept")
	for _, k := range []string{"SUMMARIZE_TEST_A", "SUMMARIZE_TEST_B"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if os.Getenv("SUMMARIZE_TEST_A") != "one" || os.Getenv("SUMMARIZE_TEST_B") != "two=2" {
		t.Errorf("A=%q B=%q", os.Getenv("SUMMARIZE_TEST_A"), os.Getenv("SUMMARIZE_TEST_B"))
	}
	if os.Getenv("SUMMARIZE_TEST_C") != "kept" {
		t.Error("existing variables must not be overridden")
	}
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Errorf("missing file: %v", err)
	}
}
