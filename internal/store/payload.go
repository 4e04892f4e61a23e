package store

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
)

// The message column carries one of three shapes: a raw string, a JSON
// envelope {type, content}, or a structured object with a messages array.
// Everything is funneled through one tagged variant so normalization lives
// in a single place.

type payloadVariant interface {
	isPayload()
}

type plainText string

type envelope struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type structured struct {
	Messages []structuredItem `json:"messages"`
}

type structuredItem struct {
	Role      string `json:"role"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func (plainText) isPayload()  {}
func (envelope) isPayload()   {}
func (structured) isPayload() {}

// decodePayload classifies a raw payload. ok is false when the payload looks
// like JSON but cannot be parsed; callers substitute the placeholder.
func decodePayload(raw []byte) (payloadVariant, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return plainText(""), true
	}

	if !looksLikeJSON(trimmed) {
		return plainText(trimmed), true
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &probe); err != nil {
		// A bare JSON string is still a plain text payload.
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return plainText(s), true
		}
		return nil, false
	}

	if _, hasMessages := probe["messages"]; hasMessages {
		var st structured
		if err := json.Unmarshal([]byte(trimmed), &st); err != nil {
			return nil, false
		}
		return st, true
	}

	var env envelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil || env.Content == "" {
		return nil, false
	}
	return env, true
}

func looksLikeJSON(s string) bool {
	switch s[0] {
	case '{', '[', '"':
		return true
	}
	return false
}

// normalizeMessages converts one row's payload into zero-or-more canonical
// messages. warning is true when the payload was unparseable and a
// placeholder was substituted; a malformed row never fails the batch.
func normalizeMessages(row model.LeadRow) ([]model.Message, bool) {
	rowTime, rowTimeValid := rowTimestamp(row)

	variant, ok := decodePayload(row.Payload)
	if !ok {
		return []model.Message{{
			Role:      model.RoleClient,
			Text:      model.PlaceholderText,
			Timestamp: rowTime,
			TimeValid: rowTimeValid,
		}}, true
	}

	switch v := variant.(type) {
	case plainText:
		if v == "" {
			return nil, false
		}
		return []model.Message{{
			Role:      model.RoleClient,
			Text:      string(v),
			Timestamp: rowTime,
			TimeValid: rowTimeValid,
		}}, false

	case envelope:
		return []model.Message{{
			Role:      roleFor(v.Type),
			Text:      v.Content,
			Timestamp: rowTime,
			TimeValid: rowTimeValid,
		}}, false

	case structured:
		msgs := make([]model.Message, 0, len(v.Messages))
		for _, item := range v.Messages {
			text := item.Content
			if text == "" {
				text = model.PlaceholderText
			}
			ts, valid := parseMessageTime(item.Timestamp)
			if !valid {
				ts, valid = rowTime, rowTimeValid
			}
			role := item.Role
			if role == "" {
				role = item.Type
			}
			msgs = append(msgs, model.Message{
				Role:      roleFor(role),
				Text:      text,
				Timestamp: ts,
				TimeValid: valid,
			})
		}
		sortMessages(msgs)
		return msgs, false
	}

	return nil, false
}

// roleFor maps remote role labels onto the two canonical roles. The
// automation layer labels agent turns "ai"/"assistant"; everything else is
// treated as the client speaking.
func roleFor(remote string) model.Role {
	switch strings.ToLower(remote) {
	case "ai", "assistant", "agent", "bot":
		return model.RoleAgent
	default:
		return model.RoleClient
	}
}

// sortMessages orders by timestamp ascending. Messages with invalid
// timestamps, or equal timestamps, keep their original relative order.
func sortMessages(msgs []model.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].TimeValid || !msgs[j].TimeValid {
			return false
		}
		return msgs[i].Timestamp.Before(msgs[j].Timestamp)
	})
}

var messageTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseMessageTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range messageTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// sortConversations orders by last activity descending, stable for ties.
func sortConversations(convs []model.Conversation) {
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].LastActivity.After(convs[j].LastActivity)
	})
}

func sortLeadsByCreated(leads []model.Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		return leads[i].CreatedAt.After(leads[j].CreatedAt)
	})
}

func rowTimestamp(row model.LeadRow) (time.Time, bool) {
	if row.Timestamp != nil && !row.Timestamp.IsZero() {
		return *row.Timestamp, true
	}
	if !row.UpdatedAt.IsZero() {
		return row.UpdatedAt, true
	}
	if !row.CreatedAt.IsZero() {
		return row.CreatedAt, true
	}
	return time.Time{}, false
}
