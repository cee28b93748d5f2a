package transcript

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// UnknownSpeaker collects statements seen before any attributed line
const UnknownSpeaker = "Unknown"

const maxSpeakerLength = 60

var speakerLine = regexp.MustCompile(`^([^:]+):\s*(.+)$`)

// Statement is one classified line of a transcript
type Statement struct {
	Speaker    string
	Text       string
	Categories []Category
}

// Has reports whether the statement was classified into c
func (s Statement) Has(c Category) bool {
	for _, got := range s.Categories {
		if got == c {
			return true
		}
	}
	return false
}

// ParsedTranscript holds speaker-attributed statements in first-seen order
type ParsedTranscript struct {
	Speakers    []string
	Statements  map[string][]string
	ActionItems []Statement
	Decisions   []Statement
	Questions   []Statement
}

// Participants returns attributed speakers, excluding UnknownSpeaker
func (p *ParsedTranscript) Participants() []string {
	out := make([]string, 0, len(p.Speakers))
	for _, s := range p.Speakers {
		if s != UnknownSpeaker {
			out = append(out, s)
		}
	}
	return out
}

// Parser splits text into statements and classifies them
type Parser struct {
	classifiers []Classifier
}

// NewParser returns a parser using the given classifiers, or the defaults when none are given
func NewParser(classifiers ...Classifier) *Parser {
	if len(classifiers) == 0 {
		classifiers = DefaultClassifiers()
	}
	return &Parser{classifiers: classifiers}
}

// Parse attributes each line to a speaker. Unattributed lines are kept under
// UnknownSpeaker only until the first attributed speaker has been seen.
func (p *Parser) Parse(text string) *ParsedTranscript {
	out := &ParsedTranscript{Statements: make(map[string][]string)}
	seenSpeaker := false

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		speaker, statement, ok := splitSpeaker(line)
		if ok {
			seenSpeaker = true
		} else {
			if seenSpeaker {
				continue
			}
			speaker, statement = UnknownSpeaker, line
		}

		if _, exists := out.Statements[speaker]; !exists {
			out.Speakers = append(out.Speakers, speaker)
		}
		out.Statements[speaker] = append(out.Statements[speaker], statement)
		p.classify(out, speaker, statement)
	}

	return out
}

func (p *Parser) classify(out *ParsedTranscript, speaker, statement string) {
	st := Statement{Speaker: speaker, Text: statement}
	for _, c := range p.classifiers {
		if c.Match(statement) {
			st.Categories = append(st.Categories, c.Category())
		}
	}
	for _, c := range st.Categories {
		switch c {
		case CategoryActionItem:
			out.ActionItems = append(out.ActionItems, st)
		case CategoryDecision:
			out.Decisions = append(out.Decisions, st)
		case CategoryQuestion:
			out.Questions = append(out.Questions, st)
		}
	}
}

func splitSpeaker(line string) (string, string, bool) {
	m := speakerLine.FindStringSubmatch(line)
	if m == nil {
		return "", "", false
	}
	speaker := strings.TrimSpace(m[1])
	statement := strings.TrimSpace(m[2])
	if speaker == "" || statement == "" || utf8.RuneCountInString(speaker) > maxSpeakerLength {
		return "", "", false
	}
	// "https://..." and similar are not speakers
	if strings.HasPrefix(statement, "//") {
		return "", "", false
	}
	return speaker, statement, true
}
