package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/samestrin/llm-tools/cmd/llm-mcp-client/config"
	"github.com/samestrin/llm-tools/pkg/mcpclient"
	"github.com/samestrin/llm-tools/pkg/output"
	"github.com/spf13/cobra"
)

var (
	configPath string
	callTool   string
	toolArgs   string
	jsonOutput bool
	version    = "1.0.0"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "llm-mcp-client",
		Short:   "Connects to configured Model Context Protocol servers and bridges their tools",
		Long: `llm-mcp-client reads an MCP server roster from a YAML config file, connects to
every enabled server over stdio or HTTP/SSE, discovers each server's tools and
resources, and either lists the bridged tools or invokes one by its qualified
name (mcp__<server>__<op>).`,
		Version: version,
		RunE:    run,
	}

	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML file containing an 'mcp:' section (required)")
	rootCmd.Flags().StringVar(&callTool, "call", "", "Qualified tool name to invoke instead of listing tools")
	rootCmd.Flags().StringVar(&toolArgs, "tool-args", "{}", "JSON object of arguments for --call")
	rootCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = rootCmd.MarkFlagRequired("config")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := context.Background()

	manager, tools := mcpclient.CreateTools(ctx, cfg, logger)
	defer manager.Shutdown(ctx)

	formatter := output.New(jsonOutput, false, os.Stdout)

	if callTool == "" {
		return listTools(formatter, tools)
	}
	return invokeTool(ctx, formatter, tools, callTool, toolArgs)
}

type toolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"schema"`
}

func listTools(formatter *output.Formatter, tools []mcpclient.Tool) error {
	descriptors := make([]toolDescriptor, 0, len(tools))
	for _, tool := range tools {
		descriptors = append(descriptors, toolDescriptor{
			Name:        tool.Name(),
			Description: tool.Description(),
			Schema:      tool.ParametersSchema(),
		})
	}

	return formatter.Print(descriptors, func(w io.Writer, data interface{}) {
		list := data.([]toolDescriptor)
		if len(list) == 0 {
			fmt.Fprintln(w, "No MCP tools discovered.")
			return
		}
		for _, d := range list {
			fmt.Fprintf(w, "%s\n  %s\n", d.Name, d.Description)
		}
	})
}

func invokeTool(ctx context.Context, formatter *output.Formatter, tools []mcpclient.Tool, name, rawArgs string) error {
	var target mcpclient.Tool
	for _, tool := range tools {
		if tool.Name() == name {
			target = tool
			break
		}
	}
	if target == nil {
		return fmt.Errorf("no such tool: %s", name)
	}

	result := target.Execute(ctx, json.RawMessage(rawArgs))
	return formatter.Print(result, func(w io.Writer, data interface{}) {
		r := data.(mcpclient.ToolResult)
		if r.Success {
			fmt.Fprintln(w, r.Output)
			return
		}
		fmt.Fprintln(os.Stderr, r.Error)
	})
}
