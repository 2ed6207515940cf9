package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spigell/skillmatch/internal/standardize"
)

// SaveSkillSet stores set under owner and returns the new record ID.
func (db *DB) SaveSkillSet(ctx context.Context, owner, site string, set *standardize.SkillSet, raw []string) (uuid.UUID, error) {
	if err := validateOwnerSite(owner, site); err != nil {
		return uuid.Nil, err
	}

	skills, err := encodeSkills(set)
	if err != nil {
		return uuid.Nil, err
	}
	rawJSON, err := encodeJSON(nonNilStrings(raw))
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	_, err = db.pool.Exec(ctx,
		`INSERT INTO skill_sets (id, owner, site, taxonomy_version, skills, raw)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, owner, site, set.TaxonomyVersion(), skills, rawJSON,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to save skill set for %s: %w", owner, err)
	}
	return id, nil
}

// LatestSkillSet returns the most recent skill set stored for owner.
func (db *DB) LatestSkillSet(ctx context.Context, owner string) (*SkillSetRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, owner, site, taxonomy_version, skills, raw, created_at
		 FROM skill_sets WHERE owner = $1
		 ORDER BY created_at DESC LIMIT 1`,
		owner,
	)

	record, err := scanSkillSet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("skill set for %s: %w", owner, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get skill set for %s: %w", owner, err)
	}
	return record, nil
}

// ListSkillSets returns the latest skill set of every owner on site, ordered
// by owner.
func (db *DB) ListSkillSets(ctx context.Context, site string) ([]SkillSetRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT DISTINCT ON (owner) id, owner, site, taxonomy_version, skills, raw, created_at
		 FROM skill_sets WHERE site = $1
		 ORDER BY owner, created_at DESC`,
		site,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list skill sets: %w", err)
	}
	defer rows.Close()

	var records []SkillSetRecord
	for rows.Next() {
		record, err := scanSkillSet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan skill set: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list skill sets: %w", err)
	}
	return records, nil
}

func scanSkillSet(row pgx.Row) (*SkillSetRecord, error) {
	var (
		record  SkillSetRecord
		version string
		skills  []byte
		raw     []byte
	)
	if err := row.Scan(&record.ID, &record.Owner, &record.Site, &version, &skills, &raw, &record.CreatedAt); err != nil {
		return nil, err
	}

	set, err := decodeSkills(version, skills)
	if err != nil {
		return nil, err
	}
	record.Skills = set

	if err := decodeJSON(raw, &record.Raw); err != nil {
		return nil, err
	}
	return &record, nil
}
