// ABOUTME: LocalToolAdapter runs a summarization prompt through an installed CLI (claude, codex, gemini).
// ABOUTME: Runs to completion and parses the tool's JSON or JSONL output for text, usage and cost.

package summary

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/2389-research/summarize/llm"
)

// LocalToolAdapter implements llm.ProviderAdapter by shelling out to a CLI.
// It has no incremental streaming; Stream always reports
// StreamingUnsupportedError so the runner uses Complete.
type LocalToolAdapter struct {
	tool string
	path string
}

// NewLocalToolAdapter creates an adapter for the named tool at path.
func NewLocalToolAdapter(tool, path string) *LocalToolAdapter {
	return &LocalToolAdapter{tool: tool, path: path}
}

// Name returns the tool name.
func (t *LocalToolAdapter) Name() string {
	return t.tool
}

// Close is a no-op; each call owns its own process.
func (t *LocalToolAdapter) Close() error {
	return nil
}

// Stream is not supported by local tools.
func (t *LocalToolAdapter) Stream(context.Context, llm.Request) (<-chan llm.StreamEvent, error) {
	return nil, &llm.StreamingUnsupportedError{SDKError: llm.SDKError{
		Message: t.tool + " does not support streaming",
	}}
}

// Complete runs the tool with the flattened prompt on stdin and waits for it
// to exit.
func (t *LocalToolAdapter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, t.path, toolArgs(t.tool)...)

	// Run in its own process group so cancellation also stops children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		killProcessGroup(cmd)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = 3 * time.Second
	cmd.Env = os.Environ()
	cmd.Stdin = strings.NewReader(llm.FlattenMessages(req.Messages))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	resp, parseErr := parseToolOutput(stdout.Bytes())
	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && resp != nil {
			msg = resp.Text
		}
		return nil, &llm.ProviderError{
			SDKError: llm.SDKError{
				Message: fmt.Sprintf("%s exited with code %d: %s", t.tool, exitCode(runErr), msg),
				Cause:   runErr,
			},
			Provider: t.tool,
		}
	}
	if parseErr != nil {
		return nil, &llm.ProviderError{
			SDKError: llm.SDKError{Message: t.tool + " produced unreadable output", Cause: parseErr},
			Provider: t.tool,
		}
	}
	resp.Provider = t.tool
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

// toolArgs returns the non-interactive invocation for each known tool. The
// prompt is always supplied on stdin.
func toolArgs(tool string) []string {
	switch tool {
	case "claude":
		return []string{"--print", "--output-format", "json", "--no-session-persistence"}
	case "codex":
		return []string{"exec", "--json", "--skip-git-repo-check", "-"}
	case "gemini":
		return []string{"--output-format", "json"}
	default:
		return nil
	}
}

// toolResult is the union of fields the supported tools put in their
// structured output.
type toolResult struct {
	Type     string   `json:"type"`
	Result   string   `json:"result"`
	Response string   `json:"response"`
	Text     string   `json:"text"`
	IsError  bool     `json:"is_error"`
	Model    string   `json:"model"`
	CostUSD  *float64 `json:"total_cost_usd"`
	Usage    *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Item *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"item"`
}

func (r *toolResult) text() string {
	switch {
	case r.Result != "":
		return r.Result
	case r.Response != "":
		return r.Response
	case r.Item != nil && r.Item.Type == "agent_message":
		return r.Item.Text
	default:
		return r.Text
	}
}

// parseToolOutput accepts a single JSON object, JSONL events (the last
// event carrying text wins, usage accumulates), or plain text.
func parseToolOutput(out []byte) (*llm.Response, error) {
	trimmed := bytes.TrimSpace(out)
	if len(trimmed) == 0 {
		return &llm.Response{}, nil
	}
	if trimmed[0] != '{' {
		return &llm.Response{Text: string(trimmed), FinishReason: llm.FinishStop}, nil
	}

	var single toolResult
	if err := json.Unmarshal(trimmed, &single); err == nil {
		return single.response()
	}

	resp := &llm.Response{FinishReason: llm.FinishStop}
	scanner := bufio.NewScanner(bytes.NewReader(trimmed))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	parsed := 0
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var evt toolResult
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		parsed++
		r, err := evt.response()
		if err != nil {
			return nil, err
		}
		if r.Text != "" {
			resp.Text = r.Text
		}
		if r.Model != "" {
			resp.Model = r.Model
		}
		resp.Usage = resp.Usage.Add(r.Usage)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if parsed == 0 {
		return nil, errors.New("no JSON events in tool output")
	}
	return resp, nil
}

func (r *toolResult) response() (*llm.Response, error) {
	if r.IsError {
		return nil, fmt.Errorf("tool reported an error: %s", r.text())
	}
	resp := &llm.Response{Text: r.text(), Model: r.Model, FinishReason: llm.FinishStop}
	if r.Usage != nil {
		resp.Usage.InputTokens = r.Usage.InputTokens
		resp.Usage.OutputTokens = r.Usage.OutputTokens
		resp.Usage.TotalTokens = r.Usage.InputTokens + r.Usage.OutputTokens
	}
	if r.CostUSD != nil {
		cost := *r.CostUSD
		resp.Usage.CostUSD = &cost
	}
	return resp, nil
}

// killProcessGroup sends SIGKILL to the command's whole process group.
func killProcessGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if pgid, err := syscall.Getpgid(cmd.Process.Pid); err == nil {
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

var _ llm.ProviderAdapter = (*LocalToolAdapter)(nil)
