package transcript

import (
	"regexp"
	"strings"
)

// Category is an advisory classification of a statement
type Category string

const (
	CategoryActionItem Category = "action_item"
	CategoryDecision   Category = "decision"
	CategoryQuestion   Category = "question"
)

// Classifier decides whether a statement belongs to its category
type Classifier interface {
	Category() Category
	Match(statement string) bool
}

// PatternClassifier matches when any of its patterns matches
type PatternClassifier struct {
	category Category
	patterns []*regexp.Regexp
}

// NewPatternClassifier compiles case-insensitive patterns for a category
func NewPatternClassifier(category Category, patterns ...string) *PatternClassifier {
	c := &PatternClassifier{category: category}
	for _, p := range patterns {
		c.patterns = append(c.patterns, regexp.MustCompile(`(?i)`+p))
	}
	return c
}

func (c *PatternClassifier) Category() Category { return c.category }

func (c *PatternClassifier) Match(statement string) bool {
	for _, p := range c.patterns {
		if p.MatchString(statement) {
			return true
		}
	}
	return false
}

// SubstringClassifier matches when the statement contains a marker
type SubstringClassifier struct {
	category Category
	marker   string
}

// NewSubstringClassifier returns a classifier for a literal marker
func NewSubstringClassifier(category Category, marker string) *SubstringClassifier {
	return &SubstringClassifier{category: category, marker: marker}
}

func (c *SubstringClassifier) Category() Category { return c.category }

func (c *SubstringClassifier) Match(statement string) bool {
	return strings.Contains(statement, c.marker)
}

// ActionItemClassifier detects modal verbs, requests and explicit markers
func ActionItemClassifier() Classifier {
	return NewPatternClassifier(CategoryActionItem,
		`\b(will|shall|should|need to|have to|must)\s+\w+`,
		`\b(action item|to-?do|task)\s*:`,
		`\b(please|can you|could you)\s+\w+`,
		`\b(follow up|reach out|send|email|call)\b`,
		`\bI'll\s+\w+`,
	)
}

// DecisionClassifier detects agreement and consensus phrasing
func DecisionClassifier() Classifier {
	return NewPatternClassifier(CategoryDecision,
		`\b(decided|agreed|decided to|let's go with)\b`,
		`\b(final decision|consensus)\b`,
	)
}

// QuestionClassifier detects statements containing a question mark
func QuestionClassifier() Classifier {
	return NewSubstringClassifier(CategoryQuestion, "?")
}

// DefaultClassifiers returns the action item, decision and question families
func DefaultClassifiers() []Classifier {
	return []Classifier{ActionItemClassifier(), DecisionClassifier(), QuestionClassifier()}
}
