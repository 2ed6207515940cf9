package standardize

import (
	"encoding/json"

	"github.com/spigell/skillmatch/internal/taxonomy"
)

// Method records how a phrase was resolved.
type Method string

const (
	MethodExact      Method = "exact"
	MethodEmbedding  Method = "embedding"
	MethodFuzzy      Method = "fuzzy"
	MethodUnresolved Method = "unresolved"
)

const unresolvedKeyPrefix = "raw:"

// Skill is a standardized phrase. Resolved skills carry the canonical ID and
// label of a taxonomy entry; unresolved ones keep the raw phrase as label and
// have no ID. Confidence is always on the [0,1] scale.
type Skill struct {
	ID         string  `json:"id,omitempty"`
	Label      string  `json:"label"`
	Raw        string  `json:"raw,omitempty"`
	Method     Method  `json:"method"`
	Confidence float64 `json:"confidence"`
}

// Resolved reports whether the skill references a taxonomy entry.
func (s Skill) Resolved() bool {
	return s.ID != ""
}

// Key identifies the skill inside a SkillSet: the canonical ID, or
// "raw:<normalized label>" for unresolved skills.
func (s Skill) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return unresolvedKeyPrefix + taxonomy.Normalize(s.Label)
}

func unresolvedSkill(raw string) Skill {
	return Skill{
		Label:  collapseSpaces(raw),
		Raw:    raw,
		Method: MethodUnresolved,
	}
}

// SkillSet is an immutable set of skills, unique by key. Iteration order is
// the order in which keys were first added.
type SkillSet struct {
	version string
	skills  []Skill
	byKey   map[string]int
}

// NewSkillSet builds a set tagged with the taxonomy version it was resolved
// against. Skills sharing a key collapse into the one with the highest
// confidence, which takes the position of the first occurrence.
func NewSkillSet(version string, skills ...Skill) *SkillSet {
	set := &SkillSet{
		version: version,
		skills:  make([]Skill, 0, len(skills)),
		byKey:   make(map[string]int, len(skills)),
	}

	for _, skill := range skills {
		key := skill.Key()
		if key == unresolvedKeyPrefix {
			continue
		}
		if i, ok := set.byKey[key]; ok {
			if skill.Confidence > set.skills[i].Confidence {
				set.skills[i] = skill
			}
			continue
		}
		set.byKey[key] = len(set.skills)
		set.skills = append(set.skills, skill)
	}

	return set
}

// TaxonomyVersion returns the version tag of the index the set was built with.
func (s *SkillSet) TaxonomyVersion() string {
	if s == nil {
		return ""
	}
	return s.version
}

func (s *SkillSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.skills)
}

// Skills returns a copy of the skills in set order.
func (s *SkillSet) Skills() []Skill {
	if s == nil {
		return nil
	}
	out := make([]Skill, len(s.skills))
	copy(out, s.skills)
	return out
}

// At returns the skill at position i.
func (s *SkillSet) At(i int) Skill {
	return s.skills[i]
}

// Get returns the skill stored under key.
func (s *SkillSet) Get(key string) (Skill, bool) {
	if s == nil {
		return Skill{}, false
	}
	i, ok := s.byKey[key]
	if !ok {
		return Skill{}, false
	}
	return s.skills[i], true
}

// Contains reports whether key is part of the set.
func (s *SkillSet) Contains(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Labels returns the skill labels in set order.
func (s *SkillSet) Labels() []string {
	labels := make([]string, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		labels = append(labels, s.skills[i].Label)
	}
	return labels
}

type skillSetJSON struct {
	TaxonomyVersion string  `json:"taxonomy_version"`
	Skills          []Skill `json:"skills"`
}

func (s *SkillSet) MarshalJSON() ([]byte, error) {
	skills := s.Skills()
	if skills == nil {
		skills = []Skill{}
	}
	return json.Marshal(skillSetJSON{TaxonomyVersion: s.TaxonomyVersion(), Skills: skills})
}

func (s *SkillSet) UnmarshalJSON(data []byte) error {
	var raw skillSetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = *NewSkillSet(raw.TaxonomyVersion, raw.Skills...)
	return nil
}
