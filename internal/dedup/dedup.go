// Package dedup drops extracted candidates whose titles are near-duplicates
// of tasks that already exist.
//
// Every candidate is compared with every existing title, so the cost is
// O(candidates x existing x len^2). Both sides are small: one extraction
// batch against the visible task set.
package dedup

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
)

// DefaultThreshold is the similarity percentage at or above which two titles are duplicates
const DefaultThreshold = 85.0

// Similarity returns the edit-distance similarity of a and b as a percentage.
// Titles are compared case-insensitively; two empty titles are identical.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 100
	}

	distance := levenshtein.ComputeDistance(a, b)
	return (1 - float64(distance)/float64(longest)) * 100
}

// Duplicate describes a dropped candidate and the task it matched
type Duplicate struct {
	Candidate  models.ExtractedTaskCandidate
	ExistingID uuid.UUID
	Existing   string
	Similarity float64
}

// Deduplicator filters candidates against existing tasks
type Deduplicator struct {
	threshold float64
}

// New returns a deduplicator. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Deduplicator {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Deduplicator{threshold: threshold}
}

// Threshold returns the configured similarity cutoff
func (d *Deduplicator) Threshold() float64 {
	return d.threshold
}

// Dedupe keeps candidates that are not similar to any existing task.
// The first existing task over the threshold decides the drop.
func (d *Deduplicator) Dedupe(candidates []models.ExtractedTaskCandidate, existing []*models.Task) ([]models.ExtractedTaskCandidate, []Duplicate) {
	kept := make([]models.ExtractedTaskCandidate, 0, len(candidates))
	var dropped []Duplicate

	for _, c := range candidates {
		if dup, ok := d.match(c, existing); ok {
			dropped = append(dropped, dup)
			continue
		}
		kept = append(kept, c)
	}

	return kept, dropped
}

func (d *Deduplicator) match(c models.ExtractedTaskCandidate, existing []*models.Task) (Duplicate, bool) {
	for _, task := range existing {
		if task == nil {
			continue
		}
		if s := Similarity(c.Title, task.Title); s >= d.threshold {
			return Duplicate{Candidate: c, ExistingID: task.ID, Existing: task.Title, Similarity: s}, true
		}
	}
	return Duplicate{}, false
}
