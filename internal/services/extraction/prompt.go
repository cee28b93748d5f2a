package extraction

import (
	"fmt"
	"strings"

	"github.com/benvon/smart-todo-capture/internal/models"
)

// Metadata describes where content came from
type Metadata struct {
	From         string
	Subject      string
	Date         string
	Participants []string
	URL          string
}

// Source is the input to a single extraction
type Source struct {
	Content  string
	Type     models.TaskSource
	Metadata Metadata
}

const promptInstructions = `You are an AI assistant that extracts actionable tasks from business communications.

Analyze the following content and extract every actionable task. For each task provide:
- title: short, actionable (max 80 characters)
- description: detailed context
- dueDate: ISO 8601 date (YYYY-MM-DD) if mentioned or inferable, otherwise omit
- priority: "low", "medium" or "high"
- confidence: integer 0-100
- extractedContext: participants, project, deadline and tags when present

Guidelines:
- Ignore pleasantries, greetings and small talk
- Extract commitments made by either party, not only the author
- Explicit commitments ("I will send the proposal by Friday") get confidence 80 or higher
- Implied commitments get confidence 60-79
- Speculative or tentative items get confidence 40-59
- Do not return any task with confidence below 40
- Return an empty array if there are no tasks`

// BuildPrompt renders the single instruction sent to the generation service
func BuildPrompt(src Source) string {
	var b strings.Builder
	b.WriteString(promptInstructions)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Communication type: %s\n", communicationType(src.Type))
	if src.Metadata.From != "" {
		fmt.Fprintf(&b, "From: %s\n", src.Metadata.From)
	}
	if src.Metadata.Subject != "" {
		fmt.Fprintf(&b, "Subject: %s\n", src.Metadata.Subject)
	}
	if src.Metadata.Date != "" {
		fmt.Fprintf(&b, "Date: %s\n", src.Metadata.Date)
	}
	if len(src.Metadata.Participants) > 0 {
		fmt.Fprintf(&b, "Participants: %s\n", strings.Join(src.Metadata.Participants, ", "))
	}
	if src.Metadata.URL != "" {
		fmt.Fprintf(&b, "URL: %s\n", src.Metadata.URL)
	}

	b.WriteString("\nContent:\n")
	b.WriteString(src.Content)
	b.WriteString("\n\nExtract tasks as a JSON array:")
	return b.String()
}

func communicationType(s models.TaskSource) string {
	switch {
	case s == models.TaskSourceGmail:
		return "email"
	case s.IsMeeting():
		return "meeting transcript"
	case s == models.TaskSourceSlack, s == models.TaskSourceLinkedIn:
		return "chat thread"
	case s == "":
		return "text"
	default:
		return string(s)
	}
}
