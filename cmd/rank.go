package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/store"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank stored candidate skill sets against a stored job skill set",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()
		if err := runRank(cmd, config, logger); err != nil {
			logger.Fatal("ranking candidates", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().String("job", "", "owner of the stored job skill set")
	rankCmd.Flags().IntP("top", "n", 10, "number of candidates to print, 0 prints all")
	rankCmd.Flags().Bool("save", false, "store every match result")

	rankCmd.MarkFlagRequired("job")
}

func runRank(cmd *cobra.Command, config *Config, logger *zap.Logger) error {
	ctx := context.Background()

	job, _ := cmd.Flags().GetString("job")
	top, _ := cmd.Flags().GetInt("top")
	save, _ := cmd.Flags().GetBool("save")

	db, err := openStore(ctx, config)
	if err != nil {
		return err
	}
	defer db.Close()

	// Stored sets are already standardized, the provider is not needed.
	svc, err := newService(ctx, config, db, false, logger)
	if err != nil {
		return err
	}

	jobSet, err := db.LatestSkillSet(ctx, job)
	if err != nil {
		return err
	}
	if jobSet.Site != store.SiteJob {
		return fmt.Errorf("skill set of %s was stored as %s, not as a job", job, jobSet.Site)
	}

	records, err := db.ListSkillSets(ctx, store.SiteCV)
	if err != nil {
		return err
	}

	candidates := make([]matching.Candidate, 0, len(records))
	for _, record := range records {
		candidates = append(candidates, matching.Candidate{Owner: record.Owner, Skills: record.Skills})
	}

	ranked, err := svc.Matcher().Rank(jobSet.Skills, candidates, svc.Profiles().Match)
	if err != nil {
		return err
	}

	if save {
		for _, r := range ranked {
			if err := svc.SaveMatch(ctx, job, r.Owner, r.Result); err != nil {
				return err
			}
		}
	}

	logger.Info("candidates ranked", zap.String("job", job), zap.Int("candidates", len(ranked)))

	return printJSON(cmd, matching.Top(ranked, top))
}
