package extraction

import (
	"encoding/json"
	"math"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/models"
)

// locateArray returns the first top-level JSON array in text. Brackets inside
// JSON strings are ignored; an unterminated array counts as absent.
func locateArray(text string) (string, bool) {
	start := strings.IndexByte(text, '[')
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// wireCandidate is the shape the generation service is asked to produce
type wireCandidate struct {
	Title            string                   `json:"title"`
	Description      string                   `json:"description"`
	DueDate          string                   `json:"dueDate"`
	Priority         string                   `json:"priority"`
	Confidence       float64                  `json:"confidence"`
	ExtractedContext *models.CandidateContext `json:"extractedContext"`
	Context          *models.CandidateContext `json:"context"`
}

func decodeCandidates(raw string) ([]models.ExtractedTaskCandidate, error) {
	var wire []wireCandidate
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, err
	}

	out := make([]models.ExtractedTaskCandidate, 0, len(wire))
	for _, w := range wire {
		title := strings.TrimSpace(w.Title)
		if title == "" {
			continue
		}
		ctx := w.ExtractedContext
		if ctx == nil {
			ctx = w.Context
		}
		out = append(out, models.ExtractedTaskCandidate{
			Title:       title,
			Description: strings.TrimSpace(w.Description),
			DueDate:     strings.TrimSpace(w.DueDate),
			Priority:    models.ParsePriority(strings.ToLower(strings.TrimSpace(w.Priority))),
			Confidence:  clampConfidence(w.Confidence),
			Context:     ctx,
		})
	}
	return out, nil
}

func clampConfidence(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	c := int(math.Round(v))
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
