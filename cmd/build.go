package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/taxonomy"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"
)

var errAborted = errors.New("aborted by user")

var buildIndexCmd = &cobra.Command{
	Use:   "build-index",
	Short: "Embed a taxonomy source file and write the index artifact",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()
		if err := buildIndex(cmd, config, logger); err != nil {
			if errors.Is(err, errAborted) {
				logger.Info("exiting", zap.String("reason", err.Error()))
				return
			}
			logger.Fatal("building the index", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(buildIndexCmd)

	buildIndexCmd.Flags().StringP("source", "s", "", "taxonomy source file (ESCO .csv or converted .json)")
	buildIndexCmd.Flags().String("version", "", "taxonomy release name, e.g. esco-1.2")
	buildIndexCmd.Flags().StringP("out", "o", "index.json.gz", "output path; .gz compresses the artifact")
	buildIndexCmd.Flags().String("publish", "", "upload the artifact to s3://bucket/key after writing it")
	buildIndexCmd.Flags().Int("concurrency", taxonomy.DefaultConcurrency, "embedding batches in flight")
	buildIndexCmd.Flags().BoolP("auto-aprove", "y", false, "overwrite an existing output without asking")

	buildIndexCmd.MarkFlagRequired("source")
	buildIndexCmd.MarkFlagRequired("version")
}

func buildIndex(cmd *cobra.Command, config *Config, logger *zap.Logger) error {
	ctx := context.Background()

	sourcePath, _ := cmd.Flags().GetString("source")
	release, _ := cmd.Flags().GetString("version")
	out, _ := cmd.Flags().GetString("out")
	publish, _ := cmd.Flags().GetString("publish")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	autoApprove, _ := cmd.Flags().GetBool("auto-aprove")

	if _, err := os.Stat(out); err == nil && !autoApprove {
		if err := confirm(fmt.Sprintf("%s already exists. Overwrite?", out)); err != nil {
			return err
		}
	}

	var location taxonomy.Location
	if publish != "" {
		loc, remote, err := taxonomy.ParseLocation(publish)
		if err != nil {
			return err
		}
		if !remote {
			return fmt.Errorf("--publish expects s3://bucket/key, got %q", publish)
		}
		location = loc
	}

	entries, err := taxonomy.ReadSource(sourcePath)
	if err != nil {
		return err
	}
	logger.Info("taxonomy source loaded", zap.String("source", sourcePath), zap.Int("entries", len(entries)))

	provider, err := newEmbeddingProvider(ctx, config.Embedding, logger)
	if err != nil {
		return err
	}
	if provider == nil {
		return errors.New("an embedding provider is required to build an index")
	}

	index, err := taxonomy.Build(ctx, entries, provider, taxonomy.BuildOptions{
		Version:     release,
		BatchSize:   config.BatchSize,
		Concurrency: concurrency,
	}, logger)
	if err != nil {
		return err
	}

	if err := index.Save(out); err != nil {
		return err
	}
	logger.Info("index written",
		zap.String("path", out),
		zap.String("taxonomy_version", index.Version().String()),
		zap.Int("entries", index.Len()),
	)

	if publish == "" {
		return nil
	}

	s3Store, err := newS3Store(ctx, config, publish)
	if err != nil {
		return err
	}
	if err := s3Store.Publish(ctx, index, location); err != nil {
		return err
	}
	logger.Info("index published", zap.String("location", location.String()))

	return nil
}

func confirm(label string) error {
	prompt := promptui.Select{
		Label: label,
		Items: []string{PromptYes, PromptNo},
	}

	_, answer, err := prompt.Run()
	if err != nil {
		return err
	}
	if answer != PromptYes {
		return errAborted
	}
	return nil
}
