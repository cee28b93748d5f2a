package transcript

import (
	"fmt"
	"strings"
)

// Summary renders a short human-readable digest of the transcript
func (p *ParsedTranscript) Summary() string {
	var b strings.Builder

	if participants := p.Participants(); len(participants) > 0 {
		fmt.Fprintf(&b, "Participants: %s\n", strings.Join(participants, ", "))
	}
	writeSection(&b, "Action Items", p.ActionItems)
	writeSection(&b, "Decisions", p.Decisions)
	writeSection(&b, "Questions", p.Questions)

	return strings.TrimRight(b.String(), "\n")
}

func writeSection(b *strings.Builder, title string, statements []Statement) {
	if len(statements) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, s := range statements {
		fmt.Fprintf(b, "- %s: %s\n", s.Speaker, s.Text)
	}
}
