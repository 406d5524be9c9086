// ABOUTME: Tests for the local command-line tool adapter and its output parsing.
// ABOUTME: Runs a throwaway shell script in place of a real tool.

package summary

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/2389-research/summarize/llm"
)

func TestParseToolOutput(t *testing.T) {
	tests := []struct {
		name      string
		out       string
		wantText  string
		wantIn    int
		wantOut   int
		wantModel string
		wantErr   bool
	}{
		{name: "plain text", out: "  just text\n", wantText: "just text"},
		{
			name:     "claude json",
			out:      `{"type":"result","result":"A summary.","is_error":false,"total_cost_usd":0.0021,"usage":{"input_tokens":100,"output_tokens":20}}`,
			wantText: "A summary.", wantIn: 100, wantOut: 20,
		},
		{
			name:     "gemini json",
			out:      `{"response":"Gemini summary.","model":"gemini-3-pro-preview"}`,
			wantText: "Gemini summary.", wantModel: "gemini-3-pro-preview",
		},
		{
			name: "codex jsonl",
			out: strings.Join([]string{
				`{"type":"thread.started"}`,
				`{"type":"item.completed","item":{"type":"reasoning","text":"thinking"}}`,
				`{"type":"item.completed","item":{"type":"agent_message","text":"Codex summary."}}`,
				`{"type":"turn.completed","usage":{"input_tokens":50,"output_tokens":10}}`,
			}, "\n"),
			wantText: "Codex summary.", wantIn: 50, wantOut: 10,
		},
		{name: "tool error", out: `{"type":"result","is_error":true,"result":"quota exceeded"}`, wantErr: true},
		{name: "empty", out: "", wantText: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := parseToolOutput([]byte(tt.out))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseToolOutput: %v", err)
			}
			if resp.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", resp.Text, tt.wantText)
			}
			if resp.Usage.InputTokens != tt.wantIn || resp.Usage.OutputTokens != tt.wantOut {
				t.Errorf("Usage = %+v", resp.Usage)
			}
			if resp.Model != tt.wantModel {
				t.Errorf("Model = %q, want %q", resp.Model, tt.wantModel)
			}
		})
	}
}

func TestParseToolOutputCost(t *testing.T) {
	resp, err := parseToolOutput([]byte(`{"result":"x","total_cost_usd":0.5}`))
	if err != nil {
		t.Fatal(err)
	}
	if resp.Usage.CostUSD == nil || *resp.Usage.CostUSD != 0.5 {
		t.Errorf("CostUSD = %v", resp.Usage.CostUSD)
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "tool.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocalToolAdapterCompleteReadsStdin(t *testing.T) {
	// Echo the prompt back as the claude JSON shape.
	path := writeScript(t, `input=$(cat)
printf '{"type":"result","result":"got: %s"}' "$input"
`)
	ad := NewLocalToolAdapter("claude", path)

	resp, err := ad.Complete(context.Background(), llm.Request{
		Model:    "cli/claude",
		Messages: []llm.Message{llm.UserMessage("hello tool")},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != "got: hello tool" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "cli/claude" {
		t.Errorf("Model = %q", resp.Model)
	}
}

func TestLocalToolAdapterNonZeroExit(t *testing.T) {
	path := writeScript(t, "echo 'not logged in' >&2\nexit 3\n")
	ad := NewLocalToolAdapter("codex", path)

	_, err := ad.Complete(context.Background(), llm.Request{Messages: []llm.Message{llm.UserMessage("x")}})
	if err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("err = %v, want stderr in the message", err)
	}
}

func TestLocalToolAdapterStreamUnsupported(t *testing.T) {
	ad := NewLocalToolAdapter("gemini", "/bin/true")
	_, err := ad.Stream(context.Background(), llm.Request{})
	if !llm.IsStreamingUnsupported(err) {
		t.Errorf("err = %v, want streaming unsupported", err)
	}
}
