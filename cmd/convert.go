package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/taxonomy"
)

var convertCmd = &cobra.Command{
	Use:   "convert-taxonomy",
	Short: "Convert an ESCO skills CSV into the JSON source format",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, _ := setup()

		in, _ := cmd.Flags().GetString("source")
		out, _ := cmd.Flags().GetString("out")

		count, err := convertTaxonomy(in, out)
		if err != nil {
			logger.Fatal("converting the taxonomy", zap.Error(err))
		}
		logger.Info("taxonomy converted", zap.String("source", in), zap.String("out", out), zap.Int("entries", count))
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringP("source", "s", "", "ESCO skills CSV")
	convertCmd.Flags().StringP("out", "o", "skills.json", "output JSON file")

	convertCmd.MarkFlagRequired("source")
}

func convertTaxonomy(in, out string) (int, error) {
	entries, err := taxonomy.ReadSource(in)
	if err != nil {
		return 0, err
	}

	file, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	if err := taxonomy.WriteJSON(file, entries); err != nil {
		return 0, fmt.Errorf("write %s: %w", out, err)
	}
	return len(entries), file.Close()
}
