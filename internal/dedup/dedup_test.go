package dedup

import (
	"math"
	"testing"

	"github.com/benvon/smart-todo-capture/internal/models"
	"github.com/google/uuid"
)

func TestSimilarity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Send deck", "Send deck", 100},
		{"case insensitive", "SEND DECK", "send deck", 100},
		{"both empty", "", "", 100},
		{"one empty", "abc", "", 0},
		{"one substitution", "abcd", "abce", 75},
		{"symmetric insert", "abc", "abcd", 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Similarity(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Similarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got, rev := Similarity(tt.a, tt.b), Similarity(tt.b, tt.a); got != rev {
				t.Errorf("Similarity is not symmetric: %v vs %v", got, rev)
			}
		})
	}
}

func TestDeduplicator_Dedupe(t *testing.T) {
	t.Parallel()

	existing := []*models.Task{
		{ID: uuid.New(), Title: "Follow up with Jennifer on renewal"},
	}
	candidates := []models.ExtractedTaskCandidate{
		{Title: "Follow up with Jennifer re: renewal", Confidence: 85},
		{Title: "Schedule kickoff with Marcus", Confidence: 75},
	}

	kept, dropped := New(DefaultThreshold).Dedupe(candidates, existing)

	if len(kept) != 1 || kept[0].Title != "Schedule kickoff with Marcus" {
		t.Fatalf("kept = %+v, want only the Marcus candidate", kept)
	}
	if len(dropped) != 1 {
		t.Fatalf("dropped = %d, want 1", len(dropped))
	}
	if dropped[0].ExistingID != existing[0].ID {
		t.Errorf("dropped matched %s, want %s", dropped[0].ExistingID, existing[0].ID)
	}
	if dropped[0].Similarity < DefaultThreshold {
		t.Errorf("dropped similarity %v below threshold", dropped[0].Similarity)
	}
}

func TestDeduplicator_Dedupe_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	// 4 chars, one substitution: 75%
	existing := []*models.Task{{ID: uuid.New(), Title: "abcd"}}
	candidates := []models.ExtractedTaskCandidate{{Title: "abce"}}

	if kept, _ := New(75).Dedupe(candidates, existing); len(kept) != 0 {
		t.Error("candidate at the threshold should be dropped")
	}
	if kept, _ := New(76).Dedupe(candidates, existing); len(kept) != 1 {
		t.Error("candidate below the threshold should survive")
	}
}

func TestDeduplicator_Dedupe_EmptyExisting(t *testing.T) {
	t.Parallel()

	candidates := []models.ExtractedTaskCandidate{{Title: "Send deck"}, {Title: "Book venue"}}
	kept, dropped := New(0).Dedupe(candidates, nil)
	if len(kept) != 2 || len(dropped) != 0 {
		t.Errorf("kept=%d dropped=%d, want 2 and 0", len(kept), len(dropped))
	}
}
