package domain

import "time"

// ChatFilters are explicit client-side constraints; they win over anything
// the parser detects in the message.
type ChatFilters struct {
	Granth  string `json:"granth,omitempty"`
	Prakran string `json:"prakran,omitempty"`
}

type ChatRequest struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	StyleMode string       `json:"style_mode,omitempty"`
	TopK      int          `json:"top_k,omitempty"`
	Filters   *ChatFilters `json:"filters,omitempty"`
}

type ChatResponse struct {
	Answer           string         `json:"answer"`
	AnswerStyle      string         `json:"answer_style"`
	NotFound         bool           `json:"not_found"`
	Ambiguous        bool           `json:"ambiguous"`
	FollowUpQuestion string         `json:"follow_up_question,omitempty"`
	Citations        []Citation     `json:"citations"`
	Debug            map[string]any `json:"debug,omitempty"`
}

// MessageRecord is one persisted transcript entry.
type MessageRecord struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	StyleTag  string    `json:"style_tag"`
	Citations []Citation `json:"citations,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionRecord summarizes one conversation for session listings.
type SessionRecord struct {
	SessionID     string    `json:"session_id"`
	TitleText     string    `json:"title_text"`
	PreviewText   string    `json:"preview_text"`
	MessageCount  int       `json:"message_count"`
	LastMessageAt time.Time `json:"last_message_at"`
}
