package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/service"
	"github.com/spigell/skillmatch/internal/store"
)

var standardizeCmd = &cobra.Command{
	Use:   "standardize [phrases...]",
	Short: "Resolve skill phrases to canonical taxonomy skills",
	Run: func(cmd *cobra.Command, args []string) {
		logger, config := setup()
		if err := runStandardize(cmd, args, config, logger); err != nil {
			logger.Fatal("standardizing skills", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(standardizeCmd)

	standardizeCmd.Flags().String("site", service.SiteJob, "call site thresholds to use: job or cv")
	standardizeCmd.Flags().StringP("text-file", "f", "", "file with a phrase list, a JSON array of phrases or free text")
	standardizeCmd.Flags().String("vacancy", "", "hh.ru vacancy id to take key skills from")
	standardizeCmd.Flags().String("resume", "", "hh.ru resume id to take skills from (requires a token)")
	standardizeCmd.Flags().Bool("extract", false, "extract phrases from free text with Gemini")
	standardizeCmd.Flags().Bool("save", false, "store the skill set in the database")
	standardizeCmd.Flags().String("owner", "", "owner to store the skill set under")
}

func runStandardize(cmd *cobra.Command, args []string, config *Config, logger *zap.Logger) error {
	ctx := context.Background()

	site, _ := cmd.Flags().GetString("site")
	file, _ := cmd.Flags().GetString("text-file")
	vacancy, _ := cmd.Flags().GetString("vacancy")
	resume, _ := cmd.Flags().GetString("resume")
	extract, _ := cmd.Flags().GetBool("extract")
	save, _ := cmd.Flags().GetBool("save")
	owner, _ := cmd.Flags().GetString("owner")

	in := input{site: site, phrases: args, file: file, vacancy: vacancy, resume: resume, extract: extract}
	if in.empty() {
		return errors.New("nothing to standardize: pass phrases, --text-file, --vacancy or --resume")
	}
	if save && owner == "" {
		return errors.New("--owner is required with --save")
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
	doc, err := l.load(ctx, in)
	if err != nil {
		return err
	}
	if doc.set != nil {
		return fmt.Errorf("%s is already standardized", file)
	}

	out, err := svc.Standardize(ctx, site, doc.phrases)
	if err != nil {
		return err
	}

	logger.Info("skills standardized",
		zap.String("site", site),
		zap.Int("phrases", len(doc.phrases)),
		zap.Int("skills", out.Skills.Len()),
		zap.Int("unresolved", len(out.Report.Unresolved)),
		zap.Bool("degraded", out.Report.Degraded),
	)

	if err := svc.SaveStandardization(ctx, owner, site, out); err != nil {
		return err
	}

	return printJSON(cmd, out)
}
