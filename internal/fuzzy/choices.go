package fuzzy

// Choice is the result of a best-match lookup.
type Choice struct {
	Index int
	Label string
	Score float64
}

type choice struct {
	label string
	full  string
	head  string
}

// Choices holds preprocessed labels so repeated lookups against the same
// label list do not re-normalize them. A Choices value is read-only after
// construction and safe for concurrent use.
type Choices struct {
	items []choice
}

// NewChoices preprocesses labels, keeping their order.
func NewChoices(labels []string) *Choices {
	items := make([]choice, 0, len(labels))
	for _, label := range labels {
		items = append(items, newChoice(label))
	}
	return &Choices{items: items}
}

func newChoice(label string) choice {
	c := choice{label: label, full: Process(label)}
	if h := Process(head(label)); h != c.full {
		c.head = h
	}
	return c
}

// Len returns the number of labels.
func (c *Choices) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Best returns the label scoring highest against query. Ties are resolved in
// favour of the label that comes first. The boolean is false when there are
// no labels or the query is empty after processing.
func (c *Choices) Best(query string) (Choice, bool) {
	p := Process(query)
	if p == "" || c.Len() == 0 {
		return Choice{}, false
	}

	best := Choice{Index: -1, Score: -1}
	for i, item := range c.items {
		score := scoreProcessed(p, item)
		if score > best.Score {
			best = Choice{Index: i, Label: item.label, Score: score}
			if score == perfectScore {
				break
			}
		}
	}

	return best, true
}

// BestMatch returns the label with the highest Score against phrase.
func BestMatch(phrase string, labels []string) (Choice, bool) {
	return NewChoices(labels).Best(phrase)
}

func scoreProcessed(query string, c choice) float64 {
	score := weightedRatio(query, c.full)
	if c.head != "" && score < perfectScore {
		score = max(score, weightedRatio(query, c.head))
	}
	return score
}
