package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/service"
	"github.com/spigell/skillmatch/internal/standardize"
	"github.com/spigell/skillmatch/internal/store"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match job requirements against candidate skills",
	Run: func(cmd *cobra.Command, _ []string) {
		logger, config := setup()
		if err := runMatch(cmd, config, logger); err != nil {
			logger.Fatal("matching skills", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringSliceP("requirements", "r", nil, "required skill phrases")
	matchCmd.Flags().StringSliceP("candidates", "c", nil, "candidate skill phrases")
	matchCmd.Flags().String("requirements-file", "", "file with requirement phrases or a standardized skill set")
	matchCmd.Flags().String("candidates-file", "", "file with candidate phrases or a standardized skill set")
	matchCmd.Flags().String("vacancy", "", "hh.ru vacancy id used as requirements")
	matchCmd.Flags().String("resume", "", "hh.ru resume id used as candidate skills (requires a token)")
	matchCmd.Flags().Bool("extract", false, "extract phrases from free text with Gemini")
	matchCmd.Flags().Bool("save", false, "store the match result in the database")
	matchCmd.Flags().String("job-owner", "", "job owner to store the result under")
	matchCmd.Flags().String("candidate-owner", "", "candidate owner to store the result under")
}

func runMatch(cmd *cobra.Command, config *Config, logger *zap.Logger) error {
	ctx := context.Background()
	flags := cmd.Flags()

	requirements, _ := flags.GetStringSlice("requirements")
	candidates, _ := flags.GetStringSlice("candidates")
	requirementsFile, _ := flags.GetString("requirements-file")
	candidatesFile, _ := flags.GetString("candidates-file")
	vacancy, _ := flags.GetString("vacancy")
	resume, _ := flags.GetString("resume")
	extract, _ := flags.GetBool("extract")
	save, _ := flags.GetBool("save")
	jobOwner, _ := flags.GetString("job-owner")
	candidateOwner, _ := flags.GetString("candidate-owner")

	reqIn := input{site: service.SiteJob, phrases: requirements, file: requirementsFile, vacancy: vacancy, extract: extract}
	candIn := input{site: service.SiteCV, phrases: candidates, file: candidatesFile, resume: resume, extract: extract}
	if reqIn.empty() {
		return errors.New("requirements are required: pass --requirements, --requirements-file or --vacancy")
	}
	if save && (jobOwner == "" || candidateOwner == "") {
		return errors.New("--job-owner and --candidate-owner are required with --save")
	}

	var db *store.DB
	if save {
		var err error
		if db, err = openStore(ctx, config); err != nil {
			return err
		}
		defer db.Close()
	}

	svc, err := newService(ctx, config, db, true, logger)
	if err != nil {
		return err
	}

	l := &loader{config: config, logger: logger}
	reqSet, err := standardizeInput(ctx, svc, l, reqIn)
	if err != nil {
		return err
	}
	candSet, err := standardizeInput(ctx, svc, l, candIn)
	if err != nil {
		return err
	}

	result, err := svc.MatchSets(reqSet, candSet)
	if err != nil {
		return err
	}

	logger.Info("match summary",
		zap.Float64("match_score", result.Score),
		zap.Int("exact", result.CountByMethod(standardize.MethodExact)),
		zap.Int("embedding", result.CountByMethod(standardize.MethodEmbedding)),
		zap.Int("fuzzy", result.CountByMethod(standardize.MethodFuzzy)),
		zap.Strings("missing", result.MissingLabels()),
		zap.Strings("extra", result.ExtraLabels()),
	)

	if err := svc.SaveMatch(ctx, jobOwner, candidateOwner, result); err != nil {
		return err
	}

	return printJSON(cmd, result)
}

func standardizeInput(ctx context.Context, svc *service.Service, l *loader, in input) (*standardize.SkillSet, error) {
	doc, err := l.load(ctx, in)
	if err != nil {
		return nil, err
	}
	if doc.set != nil {
		return doc.set, nil
	}

	out, err := svc.Standardize(ctx, in.site, doc.phrases)
	if err != nil {
		return nil, err
	}
	return out.Skills, nil
}
