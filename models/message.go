package models

// Message is a Slack chat message with optional attachments.
// The zero Message means "no notification".
type Message struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Attachment is a legacy Slack message attachment.
type Attachment struct {
	Fallback  string `json:"fallback,omitempty"`
	Color     string `json:"color,omitempty"`
	Title     string `json:"title,omitempty"`
	TitleLink string `json:"title_link,omitempty"`
	Text      string `json:"text"`
}

// IsEmpty reports whether m carries nothing to send.
func (m Message) IsEmpty() bool {
	return m.Text == "" && len(m.Attachments) == 0
}

// Clone returns a copy of m that does not share its attachment slice.
func (m Message) Clone() Message {
	out := Message{Text: m.Text}
	if len(m.Attachments) > 0 {
		out.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	return out
}
