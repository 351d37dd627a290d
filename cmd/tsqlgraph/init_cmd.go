package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/tsqlgraph/pkg/config"
)

func initCmd() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Write a default tsqlgraph.toml",
		ArgsUsage: "[path]",
		Description: `Creates a configuration file with the default limits and settings.

Examples:
  tsqlgraph init                              # Creates tsqlgraph.toml
  tsqlgraph init .tsqlgraph/tsqlgraph.toml    # Creates config in .tsqlgraph
  tsqlgraph init --force                      # Overwrite an existing file`,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite existing config file"},
		},
		Action: runInit,
	}
}

func runInit(c *cli.Context) error {
	outputPath := "tsqlgraph.toml"
	if c.Args().Len() > 0 {
		outputPath = c.Args().First()
	}

	if _, err := os.Stat(outputPath); err == nil && !c.Bool("force") {
		return fmt.Errorf("config file %q already exists (use --force to overwrite)", outputPath)
	}

	if dir := filepath.Dir(outputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %q: %w", dir, err)
		}
	}

	content, err := generateDefaultConfig()
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	color.New(color.FgGreen).Fprintf(c.App.Writer, "Created %s\n", outputPath)
	return nil
}

func generateDefaultConfig() (string, error) {
	content, err := toml.Marshal(config.DefaultConfig())
	if err != nil {
		return "", fmt.Errorf("failed to marshal config to TOML: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("# tsqlgraph configuration\n")
	buf.WriteString("# Limits cap every list and graph; analysis metrics always cover the whole unit.\n\n")
	buf.Write(content)
	return buf.String(), nil
}
