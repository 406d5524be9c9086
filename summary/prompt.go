// ABOUTME: Prompt construction and input descriptions for summary requests.
// ABOUTME: Builds the system/user messages and the short "N words · kind" input summary.

package summary

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/2389-research/summarize/llm"
)

// Length is the requested summary length.
type Length string

const (
	LengthShort  Length = "short"
	LengthMedium Length = "medium"
	LengthLong   Length = "long"
)

var lengthGuidance = map[Length]string{
	LengthShort:  "Write at most three sentences.",
	LengthMedium: "Write two or three short paragraphs.",
	LengthLong:   "Write a thorough summary with a short bulleted list of key points.",
}

// ParseLength validates a length name.
func ParseLength(s string) (Length, error) {
	l := Length(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := lengthGuidance[l]; !ok {
		return "", fmt.Errorf("length must be short, medium or long, got %q", s)
	}
	return l, nil
}

// PromptOptions shapes the summary prompt.
type PromptOptions struct {
	Task   TaskKind
	Length Length
	// Source is an optional description of where the content came from,
	// such as a URL.
	Source string
	// Language, when set, asks for the summary in that language.
	Language string
}

// BuildPrompt returns the messages for summarizing content.
func BuildPrompt(content string, opts PromptOptions) []llm.Message {
	length := opts.Length
	if _, ok := lengthGuidance[length]; !ok {
		length = LengthMedium
	}

	var sys strings.Builder
	sys.WriteString("You summarize content for a busy reader. Be accurate and concrete; do not invent facts. ")
	sys.WriteString("Answer in Markdown without a preamble. ")
	sys.WriteString(lengthGuidance[length])
	if opts.Language != "" {
		fmt.Fprintf(&sys, " Write the summary in %s.", opts.Language)
	}

	var user strings.Builder
	switch opts.Task {
	case TaskWebsite:
		user.WriteString("Summarize this web page.")
	case TaskVideoTranscript:
		user.WriteString("Summarize this video from its transcript.")
	default:
		user.WriteString("Summarize the following content.")
	}
	if opts.Source != "" {
		fmt.Fprintf(&user, "\nSource: %s", opts.Source)
	}
	user.WriteString("\n\n")
	user.WriteString(content)

	return []llm.Message{
		llm.SystemMessage(sys.String()),
		llm.UserMessage(user.String()),
	}
}

// InputSummary describes the input as "1,234 words · website".
func InputSummary(content string, task TaskKind) string {
	if task == "" {
		task = TaskText
	}
	n := len(strings.Fields(content))
	unit := "words"
	if n == 1 {
		unit = "word"
	}
	return fmt.Sprintf("%s %s · %s", groupThousands(n), unit, task)
}

func groupThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
	}
	for i := pre; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
