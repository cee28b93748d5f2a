package models

// MailMessage is a mailbox message reduced to what extraction needs
type MailMessage struct {
	ID       string
	ThreadID string
	Subject  string
	From     string
	Date     string
	Body     string
	Snippet  string
	URL      string
}

// Content renders the message as the text handed to extraction
func (m *MailMessage) Content() string {
	body := m.Body
	if body == "" {
		body = m.Snippet
	}
	return "Subject: " + m.Subject + "\nFrom: " + m.From + "\nDate: " + m.Date + "\n\n" + body
}
