// ABOUTME: Formats the one-line usage summary shown after a run.
// ABOUTME: Model, token counts, elapsed time and cost when a tool reported it.

package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/2389-research/summarize/llm"
)

// MetricsLine renders "model · 1,200→150 tokens · 2.4s · $0.0031".
// Parts that are unknown are left out.
func MetricsLine(model string, usage llm.Usage, elapsed time.Duration) string {
	var parts []string
	if model != "" {
		parts = append(parts, model)
	}
	if usage.InputTokens > 0 || usage.OutputTokens > 0 {
		parts = append(parts, fmt.Sprintf("%s→%s tokens", groupThousands(usage.InputTokens), groupThousands(usage.OutputTokens)))
	}
	if elapsed > 0 {
		parts = append(parts, elapsed.Round(100*time.Millisecond).String())
	}
	if usage.CostUSD != nil {
		parts = append(parts, fmt.Sprintf("$%.4f", *usage.CostUSD))
	}
	return strings.Join(parts, " · ")
}
