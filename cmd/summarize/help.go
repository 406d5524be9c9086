// ABOUTME: Help display for the summarize CLI with grouped flags, examples, and credential status.
// ABOUTME: Provides printHelp for usage output and envStatus for API key detection.
package main

import (
	"fmt"
	"io"
	"os"
)

// printHelp writes a formatted help message to w, including usage patterns,
// grouped flags, examples and which provider credentials are present.
func printHelp(w io.Writer, ver string) {
	fmt.Fprintf(w, "summarize %s — streaming summaries with provider fallback\n", ver)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  summarize [flags] <file>            Summarize a file")
	fmt.Fprintln(w, "  summarize [flags] < input.txt       Summarize stdin")
	fmt.Fprintln(w, "  summarize -daemon                   Run the HTTP daemon")
	fmt.Fprintln(w, "  summarize -remote <file>            Summarize through the daemon")
	fmt.Fprintln(w, "  summarize -watch <run-id>           Attach to a daemon run")
	fmt.Fprintln(w, "  summarize -mcp                      Serve the summarize tool over MCP stdio")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Summary Flags:")
	fmt.Fprintln(w, "  -model <id>           Model id, alias or provider/model (default: auto)")
	fmt.Fprintln(w, "  -task <kind>          text, image, website, video-understanding, video-transcript-based")
	fmt.Fprintln(w, "  -length <len>         short, medium, long (default: medium)")
	fmt.Fprintln(w, "  -language <lang>      Write the summary in this language")
	fmt.Fprintln(w, "  -url <url>            Source URL; marked seen once the summary starts")
	fmt.Fprintln(w, "  -cache                Reuse the last completed summary for -url")
	fmt.Fprintln(w, "  -no-stream            Wait for the full response instead of streaming")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Other:")
	fmt.Fprintln(w, "  -config <path>        Config file (default: $XDG_CONFIG_HOME/summarize/config.yaml)")
	fmt.Fprintln(w, "  -gen-token            Print a new random daemon token")
	fmt.Fprintln(w, "  -plain                Plain output even on a terminal")
	fmt.Fprintln(w, "  -verbose              Verbose output")
	fmt.Fprintln(w, "  -version              Print version and exit")
	fmt.Fprintln(w, "  -help                 Show this help")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  summarize article.txt")
	fmt.Fprintln(w, "  curl -s https://example.com/post | summarize -task website -url https://example.com/post")
	fmt.Fprintln(w, "  summarize -model sonnet -length short notes.md")
	fmt.Fprintln(w, "  SUMMARIZE_DAEMON_TOKEN=$(summarize -gen-token) summarize -daemon")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment:")
	for _, key := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "XAI_API_KEY", "OPENROUTER_API_KEY"} {
		fmt.Fprintf(w, "  %-21s %s\n", key, envStatus(key))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  Installed claude, codex or gemini command-line tools are used when no key is set.")
}

// envStatus returns "[set]" if the named environment variable is non-empty,
// or "[not set]" otherwise.
func envStatus(key string) string {
	if os.Getenv(key) != "" {
		return "[set]"
	}
	return "[not set]"
}
