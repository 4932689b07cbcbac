// Package main is the entry point for the letsearch CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	letsearch "github.com/altaidevorg/letsearch"
	"github.com/altaidevorg/letsearch/internal/config"
)

var version = letsearch.Version

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "letsearch",
		Short:   "Index and search documents with local or hub-hosted embedding models",
		Version: version,
	}

	cmd.AddCommand(indexCmd())
	cmd.AddCommand(serveCmd())
	cmd.AddCommand(listModelsCmd())

	return cmd
}

func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
