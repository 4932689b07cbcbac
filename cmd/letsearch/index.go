package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/altaidevorg/letsearch/internal/collection"
	"github.com/altaidevorg/letsearch/internal/collectionmgr"
	"github.com/altaidevorg/letsearch/internal/config"
	"github.com/altaidevorg/letsearch/internal/log"
	"github.com/altaidevorg/letsearch/internal/modelhub"
	"github.com/altaidevorg/letsearch/internal/modelmgr"
)

func indexCmd() *cobra.Command {
	var (
		envFile      string
		collName     string
		model        string
		variant      string
		hfToken      string
		batchSize    int
		indexColumns []string
		overwrite    bool
	)

	cmd := &cobra.Command{
		Use:   "index <files>...",
		Short: "Create a collection, import files into it, and embed its index columns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(envFile, args, collName, model, variant, hfToken, batchSize, indexColumns, overwrite)
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")
	cmd.Flags().StringVarP(&collName, "collection-name", "c", "", "Name of the collection to create")
	cmd.Flags().StringVarP(&model, "model", "m", collection.DefaultModelName, "Model to create embeddings (hub org/repo)")
	cmd.Flags().StringVarP(&variant, "variant", "v", collection.DefaultModelVariant, "Model variant (f32|f16|i8)")
	cmd.Flags().StringVar(&hfToken, "hf-token", "", "Model hub credential (overrides HF_TOKEN)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", config.DefaultBatchSize, "Batch size when embedding texts")
	cmd.Flags().StringSliceVarP(&indexColumns, "index-columns", "i", nil, "Columns to embed and index for vector search")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Remove and re-create the collection directory if it exists")
	_ = cmd.MarkFlagRequired("collection-name")

	return cmd
}

func runIndex(envFile string, files []string, collName, model, variant, hfToken string, batchSize int, indexColumns []string, overwrite bool) error {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return err
	}
	if err := cfg.EnsureHome(); err != nil {
		return fmt.Errorf("create home directory: %w", err)
	}

	logger := log.NewLogger(cfg)
	ctx := log.WithCorrelationID(context.Background(), uuid.NewString())
	slogger := logger.WithContext(ctx).Slog()

	token := hfToken
	if token == "" {
		token = cfg.HFToken()
	}

	hub := modelhub.New(cfg.ModelsDir(), token)
	models := modelmgr.New()
	mgr := collectionmgr.New(cfg.Home(), hub, models)
	defer func() {
		if err := mgr.Close(); err != nil {
			slogger.Error("close collection manager", "error", err)
		}
	}()

	collCfg := collection.NewConfig(collName)
	collCfg.ModelName = model
	collCfg.ModelVariant = variant
	if len(indexColumns) > 0 {
		collCfg.IndexColumns = indexColumns
	}

	if _, err := mgr.CreateCollection(collCfg, overwrite); err != nil {
		return fmt.Errorf("create collection %s: %w", collName, err)
	}
	slogger.Info("collection created", "name", collName)

	for _, file := range files {
		if err := importFile(mgr, collName, file); err != nil {
			return fmt.Errorf("import %s: %w", file, err)
		}
		slogger.Info("imported file", "collection", collName, "file", file)
	}

	for _, column := range collCfg.IndexColumns {
		if err := mgr.EmbedColumn(ctx, collName, column, batchSize); err != nil {
			return fmt.Errorf("embed column %s: %w", column, err)
		}
		slogger.Info("embedded column", "collection", collName, "column", column)
	}

	return nil
}

// importFile dispatches to JSONL or Parquet import by file extension.
func importFile(mgr *collectionmgr.Manager, collName, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		return mgr.ImportParquet(collName, path)
	default:
		return mgr.ImportJSONL(collName, path)
	}
}
