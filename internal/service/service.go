// Package service ties standardization, matching and persistence together for
// the command line and the queue worker.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/standardize"
)

const (
	SiteJob = "job"
	SiteCV  = "cv"
)

// ErrUnknownSite is returned for a site other than job or cv.
var ErrUnknownSite = errors.New("unknown site")

// Profiles holds the thresholds of every call site.
type Profiles struct {
	Job   standardize.Thresholds `mapstructure:"job"`
	CV    standardize.Thresholds `mapstructure:"cv"`
	Match standardize.Thresholds `mapstructure:"match"`
}

// DefaultProfiles returns the thresholds used when nothing is configured.
func DefaultProfiles() Profiles {
	return Profiles{
		Job:   standardize.Thresholds{Similarity: 0.6, Fuzzy: 90},
		CV:    standardize.Thresholds{Similarity: 0.4, Fuzzy: 90},
		Match: standardize.Thresholds{Similarity: 0.3, Fuzzy: 80},
	}
}

func (p Profiles) Validate() error {
	for name, th := range map[string]standardize.Thresholds{"job": p.Job, "cv": p.CV, "match": p.Match} {
		if err := th.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// For returns the standardization thresholds of site.
func (p Profiles) For(site string) (standardize.Thresholds, error) {
	switch site {
	case SiteJob:
		return p.Job, nil
	case SiteCV:
		return p.CV, nil
	default:
		return standardize.Thresholds{}, fmt.Errorf("%w %q", ErrUnknownSite, site)
	}
}

// Store persists skill sets and match results.
type Store interface {
	SaveSkillSet(ctx context.Context, owner, site string, set *standardize.SkillSet, raw []string) (uuid.UUID, error)
	SaveMatch(ctx context.Context, jobOwner, candidateOwner string, result *matching.Result) error
}

// Service standardizes and matches raw phrases with per site thresholds.
type Service struct {
	standardizer *standardize.Standardizer
	matcher      *matching.Matcher
	profiles     Profiles
	options      standardize.Options
	store        Store
	logger       *zap.Logger
}

// New returns a Service. options carries batch size, unresolved policy,
// timeout and concurrency; its thresholds are replaced per call. store may be
// nil, in which case nothing is persisted.
func New(standardizer *standardize.Standardizer, profiles Profiles, options standardize.Options, store Store, logger *zap.Logger) (*Service, error) {
	if standardizer == nil {
		return nil, errors.New("standardizer is required")
	}
	if err := profiles.Validate(); err != nil {
		return nil, err
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		standardizer: standardizer,
		matcher:      matching.NewMatcher(standardizer.Index(), logger),
		profiles:     profiles,
		options:      options,
		store:        store,
		logger:       logger.Named("service"),
	}, nil
}

func (s *Service) Matcher() *matching.Matcher {
	return s.matcher
}

func (s *Service) Profiles() Profiles {
	return s.profiles
}

// Standardization is the outcome of standardizing one document.
type Standardization struct {
	Skills *standardize.SkillSet `json:"standardized"`
	Raw    []string              `json:"raw"`
	Report standardize.Report    `json:"report"`
}

// Standardize resolves phrases with the thresholds of site.
func (s *Service) Standardize(ctx context.Context, site string, phrases []string) (*Standardization, error) {
	thresholds, err := s.profiles.For(site)
	if err != nil {
		return nil, err
	}

	opts := s.options
	opts.Thresholds = thresholds

	set, report, err := s.standardizer.StandardizeAll(ctx, phrases, opts)
	if err != nil {
		return nil, fmt.Errorf("standardize %s phrases: %w", site, err)
	}

	if report.Degraded {
		s.logger.Warn("standardization degraded to fuzzy matching",
			zap.String("site", site),
			zap.Error(report.ProviderError),
		)
	}

	raw := phrases
	if raw == nil {
		raw = []string{}
	}
	return &Standardization{Skills: set, Raw: raw, Report: report}, nil
}

// Match standardizes both phrase lists and matches them with the match
// thresholds.
func (s *Service) Match(ctx context.Context, requirements, candidates []string) (*matching.Result, error) {
	req, err := s.Standardize(ctx, SiteJob, requirements)
	if err != nil {
		return nil, err
	}
	cand, err := s.Standardize(ctx, SiteCV, candidates)
	if err != nil {
		return nil, err
	}
	return s.MatchSets(req.Skills, cand.Skills)
}

// MatchSets matches two already standardized sets.
func (s *Service) MatchSets(requirements, candidates *standardize.SkillSet) (*matching.Result, error) {
	return s.matcher.Match(requirements, candidates, s.profiles.Match)
}

// SaveStandardization stores a standardized set under owner. It is a no-op
// without a store or owner.
func (s *Service) SaveStandardization(ctx context.Context, owner, site string, std *Standardization) error {
	if s.store == nil || owner == "" {
		return nil
	}

	id, err := s.store.SaveSkillSet(ctx, owner, site, std.Skills, std.Raw)
	if err != nil {
		return err
	}

	s.logger.Info("skill set saved",
		zap.String("owner", owner),
		zap.String("site", site),
		zap.String("id", id.String()),
		zap.Int("skills", std.Skills.Len()),
	)
	return nil
}

// SaveMatch stores result. It is a no-op without a store or owners.
func (s *Service) SaveMatch(ctx context.Context, jobOwner, candidateOwner string, result *matching.Result) error {
	if s.store == nil || jobOwner == "" || candidateOwner == "" {
		return nil
	}

	if err := s.store.SaveMatch(ctx, jobOwner, candidateOwner, result); err != nil {
		return err
	}

	s.logger.Info("match saved",
		zap.String("job_owner", jobOwner),
		zap.String("candidate_owner", candidateOwner),
		zap.String("id", result.ID.String()),
		zap.Float64("match_score", result.Score),
	)
	return nil
}
