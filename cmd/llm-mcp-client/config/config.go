// Package config provides configuration file support for llm-mcp-client.
// It enables YAML-based configuration of the MCP server roster.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/samestrin/llm-tools/pkg/mcpclient"
)

// configWrapper is used to parse the "mcp:" section from a YAML file.
type configWrapper struct {
	Mcp mcpclient.McpConfig `yaml:"mcp"`
}

// Load reads MCP server configuration from a YAML file. It reads the
// "mcp:" section and ignores other top-level keys, so the same file can
// carry unrelated configuration for other commands.
func Load(path string) (mcpclient.McpConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mcpclient.McpConfig{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var wrapper configWrapper
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return mcpclient.McpConfig{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	return wrapper.Mcp, nil
}
