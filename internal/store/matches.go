package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/spigell/skillmatch/internal/matching"
)

// SaveMatch stores result under its own ID.
func (db *DB) SaveMatch(ctx context.Context, jobOwner, candidateOwner string, result *matching.Result) error {
	if result == nil {
		return errors.New("match result is nil")
	}
	if jobOwner == "" || candidateOwner == "" {
		return errors.New("job and candidate owners are required")
	}

	matched, err := encodeJSON(result.Matched)
	if err != nil {
		return err
	}
	missing, err := encodeJSON(result.Missing)
	if err != nil {
		return err
	}
	extra, err := encodeJSON(result.Extra)
	if err != nil {
		return err
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO skill_matches (id, job_owner, candidate_owner, match_score,
		   matched_skills, missing_skills, extra_skills,
		   similarity_threshold, fuzzy_threshold, taxonomy_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		result.ID, jobOwner, candidateOwner, result.Score,
		matched, missing, extra,
		result.SimilarityThreshold, result.FuzzyThreshold, result.TaxonomyVersion, result.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", result.ID, err)
	}
	return nil
}

// TopMatches returns the best stored matches for jobOwner, highest score
// first. A non-positive limit falls back to ten.
func (db *DB) TopMatches(ctx context.Context, jobOwner string, limit int) ([]MatchRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, job_owner, candidate_owner, match_score,
		   matched_skills, missing_skills, extra_skills,
		   similarity_threshold, fuzzy_threshold, taxonomy_version, created_at
		 FROM skill_matches WHERE job_owner = $1
		 ORDER BY match_score DESC, created_at ASC
		 LIMIT $2`,
		jobOwner, topLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()

	var records []MatchRecord
	for rows.Next() {
		record, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	return records, nil
}

func scanMatch(row pgx.Row) (*MatchRecord, error) {
	var (
		record                  MatchRecord
		result                  matching.Result
		matched, missing, extra []byte
	)
	if err := row.Scan(&result.ID, &record.JobOwner, &record.CandidateOwner, &result.Score,
		&matched, &missing, &extra,
		&result.SimilarityThreshold, &result.FuzzyThreshold, &result.TaxonomyVersion, &result.CreatedAt,
	); err != nil {
		return nil, err
	}

	if err := decodeJSON(matched, &result.Matched); err != nil {
		return nil, err
	}
	if err := decodeJSON(missing, &result.Missing); err != nil {
		return nil, err
	}
	if err := decodeJSON(extra, &result.Extra); err != nil {
		return nil, err
	}

	record.Result = &result
	return &record, nil
}
