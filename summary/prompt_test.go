// ABOUTME: Tests for prompt construction, input summaries and the metrics line.
// ABOUTME: Also covers length parsing and thousands grouping.

package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/2389-research/summarize/llm"
)

func TestBuildPrompt(t *testing.T) {
	msgs := BuildPrompt("The body.", PromptOptions{Task: TaskWebsite, Length: LengthShort, Source: "https://example.com", Language: "German"})
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Errorf("roles = %s, %s", msgs[0].Role, msgs[1].Role)
	}
	sys := msgs[0].TextContent()
	if !strings.Contains(sys, "three sentences") || !strings.Contains(sys, "German") {
		t.Errorf("system = %q", sys)
	}
	user := msgs[1].TextContent()
	if !strings.Contains(user, "web page") || !strings.Contains(user, "https://example.com") || !strings.HasSuffix(user, "The body.") {
		t.Errorf("user = %q", user)
	}
}

func TestBuildPromptDefaultsLength(t *testing.T) {
	msgs := BuildPrompt("x", PromptOptions{Length: "enormous"})
	if !strings.Contains(msgs[0].TextContent(), "paragraphs") {
		t.Errorf("unknown length should fall back to medium: %q", msgs[0].TextContent())
	}
}

func TestInputSummary(t *testing.T) {
	tests := []struct {
		content string
		task    TaskKind
		want    string
	}{
		{"one", "", "1 word · text"},
		{"two words", TaskWebsite, "2 words · website"},
		{strings.Repeat("w ", 1234), TaskVideoTranscript, "1,234 words · video-transcript-based"},
	}
	for _, tt := range tests {
		if got := InputSummary(tt.content, tt.task); got != tt.want {
			t.Errorf("InputSummary = %q, want %q", got, tt.want)
		}
	}
}

func TestGroupThousands(t *testing.T) {
	for n, want := range map[int]string{0: "0", 999: "999", 1000: "1,000", 123456: "123,456", 1234567: "1,234,567"} {
		if got := groupThousands(n); got != want {
			t.Errorf("groupThousands(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestMetricsLine(t *testing.T) {
	cost := 0.0031
	got := MetricsLine("gpt-5.2-mini", llm.Usage{InputTokens: 1200, OutputTokens: 150, CostUSD: &cost}, 2400*time.Millisecond)
	want := "gpt-5.2-mini · 1,200→150 tokens · 2.4s · $0.0031"
	if got != want {
		t.Errorf("MetricsLine = %q, want %q", got, want)
	}
	if got := MetricsLine("m", llm.Usage{}, 0); got != "m" {
		t.Errorf("MetricsLine without usage = %q", got)
	}
}

func TestParseLength(t *testing.T) {
	for in, want := range map[string]Length{"short": LengthShort, " Long ": LengthLong, "medium": LengthMedium} {
		got, err := ParseLength(in)
		if err != nil || got != want {
			t.Errorf("ParseLength(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "epic"} {
		if _, err := ParseLength(in); err == nil {
			t.Errorf("ParseLength(%q) should fail", in)
		}
	}
}
