package headhunter

import (
	"fmt"
	"strings"
)

type Resume struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title,omitempty"`
	// SkillSet holds the tags the applicant picked.
	SkillSet []string `json:"skill_set,omitempty"`
	// Skills is the free text "about my skills" section.
	Skills string `json:"skills,omitempty"`
}

// GetResume fetches a resume. Reading resumes requires a token.
func (c *Client) GetResume(id string) (*Resume, error) {
	if id == "" {
		return nil, fmt.Errorf("resume id is required")
	}
	if c.token == "" {
		return nil, fmt.Errorf("token is required to read resume %s", id)
	}

	var resume Resume
	if err := c.getJSON(fmt.Sprintf("%s/resumes/%s", c.APIURL, id), nil, &resume); err != nil {
		return nil, fmt.Errorf("get resume %s: %w", id, err)
	}

	return &resume, nil
}

// SkillNames returns the resume skill tags, blanks dropped.
func (r *Resume) SkillNames() []string {
	names := make([]string, 0, len(r.SkillSet))
	for _, name := range r.SkillSet {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}
