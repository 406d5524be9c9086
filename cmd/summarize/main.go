// ABOUTME: CLI entrypoint for summarize with one-shot, daemon, remote, watch and MCP server modes.
// ABOUTME: Loads .env and YAML config, builds the summarizer and dispatches on flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/2389-research/summarize/config"
	"github.com/2389-research/summarize/history"
	"github.com/2389-research/summarize/summary"
)

var version = "dev"

// options holds all CLI configuration parsed from flags and positional arguments.
type options struct {
	configPath string
	model      string
	task       string
	length     string
	language   string
	url        string
	noStream   bool
	useCache   bool

	serveDaemon bool
	remote      bool
	watch       string
	mcpMode     bool
	printToken  bool

	plain       bool
	verbose     bool
	showVersion bool

	args []string
}

func main() {
	config.LoadDotEnvAuto()

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("summarize %s\n", version)
		os.Exit(0)
	}

	os.Exit(run(opts, os.Stdin, os.Stdout, os.Stderr))
}

// parseFlags parses command-line flags and returns the populated options.
func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/summarize/config.yaml)")
	fs.StringVar(&opts.model, "model", "", "Model id, alias or provider/model; \"auto\" for the fallback chain")
	fs.StringVar(&opts.task, "task", "", "Input kind: text, image, website, video-understanding, video-transcript-based")
	fs.StringVar(&opts.length, "length", "", "Summary length: short, medium, long")
	fs.StringVar(&opts.language, "language", "", "Write the summary in this language")
	fs.StringVar(&opts.url, "url", "", "Source URL of the content")
	fs.BoolVar(&opts.noStream, "no-stream", false, "Disable streamed responses")
	fs.BoolVar(&opts.useCache, "cache", false, "Reuse the last completed summary for -url")
	fs.BoolVar(&opts.serveDaemon, "daemon", false, "Run the HTTP daemon")
	fs.BoolVar(&opts.remote, "remote", false, "Submit to the running daemon instead of summarizing in-process")
	fs.StringVar(&opts.watch, "watch", "", "Attach to a daemon run by id")
	fs.BoolVar(&opts.mcpMode, "mcp", false, "Serve the summarize tool over MCP stdio")
	fs.BoolVar(&opts.printToken, "gen-token", false, "Print a new random daemon token and exit")
	fs.BoolVar(&opts.plain, "plain", false, "Plain output even on a terminal")
	fs.BoolVar(&opts.verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&opts.showVersion, "version", false, "Print version and exit")

	fs.Usage = func() {
		printHelp(stderr, version)
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.args = fs.Args()

	modes := 0
	for _, on := range []bool{opts.serveDaemon, opts.remote, opts.watch != "", opts.mcpMode} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		err := errors.New("-daemon, -remote, -watch and -mcp are mutually exclusive")
		fmt.Fprintf(stderr, "error: %v\n", err)
		return opts, err
	}
	return opts, nil
}

// run dispatches to the appropriate mode. Returns the process exit code.
func run(opts options, stdin io.Reader, stdout, stderr io.Writer) int {
	if opts.printToken {
		fmt.Fprintln(stdout, uuid.NewString())
		return 0
	}

	path := opts.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	switch {
	case opts.serveDaemon:
		return runDaemon(ctx, cfg, stderr)
	case opts.mcpMode:
		return runMCP(ctx, cfg, newSummarizer(cfg), stderr)
	case opts.watch != "":
		quietLogs(opts, stderr)
		return runWatch(ctx, cfg, opts, stdout, stderr)
	}

	content, err := readInput(opts.args, stdin)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if strings.TrimSpace(content) == "" {
		printHelp(stderr, version)
		return 2
	}

	quietLogs(opts, stderr)
	if opts.remote {
		return runRemote(ctx, cfg, opts, content, stdout, stderr)
	}
	return runLocal(ctx, cfg, newSummarizer(cfg), opts, content, stdout, stderr)
}

// quietLogs keeps component logs off the terminal unless -verbose is set.
func quietLogs(opts options, stderr io.Writer) {
	if opts.verbose {
		log.SetOutput(stderr)
		return
	}
	log.SetOutput(io.Discard)
}

// readInput returns the content to summarize: stdin for no arguments or
// "-", the file named by a single argument, or the arguments as text.
func readInput(args []string, stdin io.Reader) (string, error) {
	if len(args) == 0 || (len(args) == 1 && args[0] == "-") {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && !info.IsDir() {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return "", fmt.Errorf("read %s: %w", args[0], err)
			}
			return string(data), nil
		}
	}
	return strings.Join(args, " "), nil
}

// newSummarizer builds the summarizer for cfg with a fresh credential snapshot.
func newSummarizer(cfg *config.Config, opts ...summary.SummarizerOption) *summary.Summarizer {
	reg := cfg.Registry()
	snap := cfg.Snapshot(nil)
	opts = append([]summary.SummarizerOption{
		summary.WithRunnerOptions(summary.WithTimeouts(cfg.AdapterTimeout())),
	}, opts...)
	return summary.NewSummarizer(reg, snap, opts...)
}

// openHistory opens the run history in the data directory.
func openHistory(cfg *config.Config) (*history.Store, error) {
	dir := cfg.Daemon.DataDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return history.Open(filepath.Join(dir, "history.db"))
}
