package headhunter

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

const (
	blockElements = "p, li, div, h1, h2, h3, h4, h5, h6, tr"
	// Marks structural line breaks so newlines inside text nodes stay
	// insignificant.
	lineBreak = "\uE000"
)

type Vacancy struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Employer struct {
		ID   string `json:"id,omitempty"`
		Name string `json:"name,omitempty"`
	} `json:"employer,omitempty"`
	AlternateURL string `json:"alternate_url,omitempty"`
	Description  string `json:"description,omitempty"`
	KeySkills    []struct {
		Name string `json:"name,omitempty"`
	} `json:"key_skills,omitempty"`
	Archived bool `json:"archived,omitempty"`
}

// GetVacancy fetches a single vacancy with its full description and key skills.
func (c *Client) GetVacancy(id string) (*Vacancy, error) {
	if id == "" {
		return nil, fmt.Errorf("vacancy id is required")
	}

	var vacancy Vacancy
	if err := c.getJSON(fmt.Sprintf("%s/vacancies/%s", c.APIURL, id), nil, &vacancy); err != nil {
		return nil, fmt.Errorf("get vacancy %s: %w", id, err)
	}

	c.logger.Debug("got vacancy from HH.ru",
		zap.String("vacancy_id", vacancy.ID),
		zap.Int("key_skills", len(vacancy.KeySkills)),
		zap.Bool("archived", vacancy.Archived),
	)

	return &vacancy, nil
}

// KeySkillNames returns the employer provided key skills, blanks dropped.
func (va *Vacancy) KeySkillNames() []string {
	names := make([]string, 0, len(va.KeySkills))
	for _, skill := range va.KeySkills {
		if name := strings.TrimSpace(skill.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// DescriptionText converts the HTML description into plain text with one
// block element per line.
func (va *Vacancy) DescriptionText() (string, error) {
	return htmlToText(va.Description)
}

func htmlToText(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse description: %w", err)
	}

	doc.Find("script, style").Remove()
	doc.Find("br").ReplaceWithHtml(lineBreak)
	doc.Find(blockElements).Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml(lineBreak)
	})

	var lines []string
	for _, line := range strings.Split(doc.Text(), lineBreak) {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}

	return strings.Join(lines, "\n"), nil
}
