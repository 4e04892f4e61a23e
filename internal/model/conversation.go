package model

import (
	"time"
)

// PauseState is the bot pause flag embedded in a conversation. ExpiresAt set
// implies Paused; the sweep clears reason and expiry together with the flag.
type PauseState struct {
	Paused    bool       `json:"is_paused"`
	Reason    string     `json:"pause_reason,omitempty"`
	ExpiresAt *time.Time `json:"pause_expires_at,omitempty"`
}

// Active reports whether the automated agent may respond.
func (p PauseState) Active() bool {
	return !p.Paused
}

// Conversation is the ordered message history with one remote contact,
// plus its pause state. Created implicitly by the first row for a remotejid;
// never explicitly deleted by this service.
type Conversation struct {
	RemoteJID    string     `json:"remotejid"`
	Name         string     `json:"name"`
	LastActivity time.Time  `json:"last_activity"`
	LastMessage  string     `json:"last_message"`
	Messages     []Message  `json:"messages"`
	Pause        PauseState `json:"pause"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ListConversationsResponse is the response for listing conversations.
type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
	Total         int            `json:"total"`
	Realtime      string         `json:"realtime"`
}

// PauseRequest is the request to pause a conversation's bot.
type PauseRequest struct {
	Reason   string `json:"reason"`
	Duration int64  `json:"duration,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// PauseResponse reports the committed pause state. Warning is set when the
// local write succeeded but the remote bot control call did not.
type PauseResponse struct {
	RemoteJID string     `json:"remotejid"`
	Pause     PauseState `json:"pause"`
	Warning   string     `json:"warning,omitempty"`
}

// SendMessageRequest is the request to send an operator message through the
// automation layer. PauseDuration is in seconds; nil sends without pausing.
type SendMessageRequest struct {
	Message       string `json:"message"`
	PauseDuration *int64 `json:"pause_duration"`
}

// SendMessageResponse acknowledges a delivered operator message.
type SendMessageResponse struct {
	RemoteJID string `json:"remotejid"`
	Sent      bool   `json:"sent"`
}
