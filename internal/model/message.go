package model

import (
	"time"
)

// Role represents the sender of a message.
type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
)

// PlaceholderText is substituted for payloads that cannot be parsed.
const PlaceholderText = "no message"

// Message is one canonical message inside a conversation. TimeValid marks
// whether Timestamp was parseable; messages with invalid timestamps keep
// their original relative order.
type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	TimeValid bool      `json:"-"`
}

// LeadRow is a raw row from a tenant's leads table. Payload is polymorphic:
// a plain string, a JSON envelope {type, content}, or a structured object
// with a messages array. Unknown columns are ignored; missing pause columns
// default to not paused.
type LeadRow struct {
	ID        int64
	RemoteJID string
	Name      string
	Payload   []byte
	Timestamp *time.Time
	Pause     PauseState
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Lead is the row shape exposed by the leads listing.
type Lead struct {
	ID        int64      `json:"id"`
	RemoteJID string     `json:"remotejid"`
	Name      string     `json:"name,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ListLeadsResponse is the response for listing leads.
type ListLeadsResponse struct {
	Leads []Lead `json:"leads"`
	Total int    `json:"total"`
}
