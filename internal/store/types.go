package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/standardize"
)

const (
	SiteJob = "job"
	SiteCV  = "cv"

	defaultTopLimit = 10
)

// SkillSetRecord is a stored skill set with its origin.
type SkillSetRecord struct {
	ID        uuid.UUID             `json:"id"`
	Owner     string                `json:"owner"`
	Site      string                `json:"site"`
	Skills    *standardize.SkillSet `json:"skills"`
	Raw       []string              `json:"raw"`
	CreatedAt time.Time             `json:"created_at"`
}

// MatchRecord is a stored match result between two owners.
type MatchRecord struct {
	JobOwner       string           `json:"job_owner"`
	CandidateOwner string           `json:"candidate_owner"`
	Result         *matching.Result `json:"result"`
}

func validateOwnerSite(owner, site string) error {
	if strings.TrimSpace(owner) == "" {
		return fmt.Errorf("owner is required")
	}
	switch site {
	case SiteJob, SiteCV:
		return nil
	default:
		return fmt.Errorf("unknown site %q", site)
	}
}

func encodeSkills(set *standardize.SkillSet) ([]byte, error) {
	skills := set.Skills()
	if skills == nil {
		skills = []standardize.Skill{}
	}
	data, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal skills: %w", err)
	}
	return data, nil
}

func decodeSkills(version string, data []byte) (*standardize.SkillSet, error) {
	var skills []standardize.Skill
	if len(data) > 0 {
		if err := json.Unmarshal(data, &skills); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skills: %w", err)
		}
	}
	return standardize.NewSkillSet(version, skills...), nil
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return data, nil
}

func decodeJSON(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %T: %w", target, err)
	}
	return nil
}

func topLimit(limit int) int {
	if limit <= 0 {
		return defaultTopLimit
	}
	return limit
}

func nonNilStrings(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
