package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altaidevorg/letsearch/internal/modelhub"
)

func listModelsCmd() *cobra.Command {
	var (
		envFile string
		hfToken string
	)

	cmd := &cobra.Command{
		Use:   "list-models",
		Short: "List models already resolved to the local model cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListModels(envFile, hfToken)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Model hub credential (overrides HF_TOKEN)")

	return cmd
}

func runListModels(envFile, hfToken string) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}

	token := hfToken
	if token == "" {
		token = cfg.HFToken()
	}

	hub := modelhub.New(cfg.ModelsDir(), token)
	models, err := hub.ListCached()
	if err != nil {
		return fmt.Errorf("list cached models: %w", err)
	}

	if len(models) == 0 {
		fmt.Println("no models cached yet")
		return nil
	}

	for _, m := range models {
		fmt.Printf("%s\t%s\n", m.Ref, strings.Join(m.Variants, ","))
	}
	return nil
}
