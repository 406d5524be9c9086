// ABOUTME: MCP stdio server mode exposing the summarize pipeline as a single tool.
// ABOUTME: Each tool call runs the fallback chain in-process and returns the summary and metrics.
package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/summarize/config"
	"github.com/2389-research/summarize/summary"
)

type summarizeInput struct {
	Content  string `json:"content" jsonschema:"the text to summarize"`
	Task     string `json:"task,omitempty" jsonschema:"input kind: text, image, website, video-understanding or video-transcript-based"`
	Model    string `json:"model,omitempty" jsonschema:"model id, alias or provider/model; auto for the fallback chain"`
	Length   string `json:"length,omitempty" jsonschema:"short, medium or long"`
	Language string `json:"language,omitempty" jsonschema:"language to write the summary in"`
	URL      string `json:"url,omitempty" jsonschema:"where the content came from"`
}

type summarizeOutput struct {
	Summary string `json:"summary"`
	Model   string `json:"model"`
	Metrics string `json:"metrics"`
}

// newMCPServer registers the summarize tool backed by sum.
func newMCPServer(cfg *config.Config, sum *summary.Summarizer) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "summarize", Version: version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "summarize",
		Description: "Summarize text with the configured model or the automatic fallback chain.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in summarizeInput) (*mcp.CallToolResult, summarizeOutput, error) {
		if in.Content == "" {
			return nil, summarizeOutput{}, fmt.Errorf("content is required")
		}
		j, err := resolveJob(cfg, options{
			task:     in.Task,
			model:    in.Model,
			length:   in.Length,
			language: in.Language,
			url:      in.URL,
		}, in.Content)
		if err != nil {
			return nil, summarizeOutput{}, err
		}

		out, err := sum.Summarize(ctx, j.request, nil)
		if err != nil {
			log.Printf("component=mcp action=summarize_failed err=%q", err.Error())
			return nil, summarizeOutput{}, err
		}
		res := out.Result
		result := summarizeOutput{
			Summary: res.Text,
			Model:   res.Model,
			Metrics: summary.MetricsLine(res.Model, res.Usage, res.Elapsed),
		}
		log.Printf("component=mcp action=summarized model=%s elapsed=%s", res.Model, res.Elapsed)
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: res.Text}},
		}, result, nil
	})
	return server
}

func runMCP(ctx context.Context, cfg *config.Config, sum *summary.Summarizer, stderr io.Writer) int {
	// stdout carries the protocol.
	log.SetOutput(stderr)
	server := newMCPServer(cfg, sum)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
