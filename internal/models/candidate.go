package models

// ExtractedTaskCandidate is a machine-proposed task awaiting deduplication.
// It is never persisted directly.
type ExtractedTaskCandidate struct {
	Title       string            `json:"title"`
	Description string            `json:"description"`
	DueDate     string            `json:"dueDate,omitempty"`
	Priority    TaskPriority      `json:"priority"`
	Confidence  int               `json:"confidence"`
	Context     *CandidateContext `json:"extractedContext,omitempty"`
}

// CandidateContext is optional context reported alongside a candidate
type CandidateContext struct {
	Participants []string `json:"participants,omitempty"`
	Project      string   `json:"project,omitempty"`
	Deadline     string   `json:"deadline,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}
