package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
)

func rowWithPayload(payload string) model.LeadRow {
	ts := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return model.LeadRow{
		RemoteJID: "5511999999999@s.whatsapp.net",
		Payload:   []byte(payload),
		Timestamp: &ts,
	}
}

func TestNormalizeMessagesPlainText(t *testing.T) {
	msgs, warned := normalizeMessages(rowWithPayload("quero saber o preço"))

	assert.False(t, warned)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleClient, msgs[0].Role)
	assert.Equal(t, "quero saber o preço", msgs[0].Text)
	assert.True(t, msgs[0].TimeValid)
}

func TestNormalizeMessagesEnvelope(t *testing.T) {
	msgs, warned := normalizeMessages(rowWithPayload(`{"type":"ai","content":"Olá! Como posso ajudar?"}`))

	assert.False(t, warned)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleAgent, msgs[0].Role)
	assert.Equal(t, "Olá! Como posso ajudar?", msgs[0].Text)
}

func TestNormalizeMessagesHumanEnvelope(t *testing.T) {
	msgs, warned := normalizeMessages(rowWithPayload(`{"type":"human","content":"bom dia"}`))

	assert.False(t, warned)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.RoleClient, msgs[0].Role)
}

func TestNormalizeMessagesBrokenJSON(t *testing.T) {
	msgs, warned := normalizeMessages(rowWithPayload(`{"type":"ai","content":`))

	assert.True(t, warned)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.PlaceholderText, msgs[0].Text)
	assert.Equal(t, model.RoleClient, msgs[0].Role)
}

func TestNormalizeMessagesBareJSONString(t *testing.T) {
	msgs, warned := normalizeMessages(rowWithPayload(`"mensagem simples"`))

	assert.False(t, warned)
	require.Len(t, msgs, 1)
	assert.Equal(t, "mensagem simples", msgs[0].Text)
}

func TestNormalizeMessagesEmptyPayload(t *testing.T) {
	msgs, warned := normalizeMessages(rowWithPayload("  "))

	assert.False(t, warned)
	assert.Empty(t, msgs)
}

func TestNormalizeMessagesStructuredOrdering(t *testing.T) {
	payload := `{"messages":[
		{"role":"ai","content":"segunda","timestamp":"2026-03-10T12:05:00Z"},
		{"role":"human","content":"primeira","timestamp":"2026-03-10T12:00:00Z"},
		{"role":"human","content":"terceira","timestamp":"2026-03-10T12:10:00Z"}
	]}`
	msgs, warned := normalizeMessages(rowWithPayload(payload))

	assert.False(t, warned)
	require.Len(t, msgs, 3)
	assert.Equal(t, "primeira", msgs[0].Text)
	assert.Equal(t, "segunda", msgs[1].Text)
	assert.Equal(t, "terceira", msgs[2].Text)
	assert.Equal(t, model.RoleAgent, msgs[1].Role)
}

func TestNormalizeMessagesStructuredMissingContent(t *testing.T) {
	payload := `{"messages":[{"role":"human","timestamp":"2026-03-10T12:00:00Z"}]}`
	msgs, warned := normalizeMessages(rowWithPayload(payload))

	assert.False(t, warned)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.PlaceholderText, msgs[0].Text)
}

func TestNormalizeMessagesInvalidTimestampFallsBackToRow(t *testing.T) {
	payload := `{"messages":[{"role":"human","content":"oi","timestamp":"not-a-time"}]}`
	row := rowWithPayload(payload)
	msgs, warned := normalizeMessages(row)

	assert.False(t, warned)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].TimeValid)
	assert.Equal(t, *row.Timestamp, msgs[0].Timestamp)
}

func TestSortMessagesStableOnInvalidTimestamps(t *testing.T) {
	msgs := []model.Message{
		{Text: "a"},
		{Text: "b"},
		{Text: "c"},
	}
	sortMessages(msgs)

	assert.Equal(t, "a", msgs[0].Text)
	assert.Equal(t, "b", msgs[1].Text)
	assert.Equal(t, "c", msgs[2].Text)
}

func TestSortMessagesMixedValidity(t *testing.T) {
	t1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)
	msgs := []model.Message{
		{Text: "later", Timestamp: t2, TimeValid: true},
		{Text: "no-time"},
		{Text: "earlier", Timestamp: t1, TimeValid: true},
	}
	sortMessages(msgs)

	assert.Equal(t, "earlier", msgs[0].Text)
}

func TestParseMessageTimeLayouts(t *testing.T) {
	for _, in := range []string{
		"2026-03-10T12:00:00Z",
		"2026-03-10T12:00:00.123Z",
		"2026-03-10 12:00:00",
		"2026-03-10T12:00:00",
	} {
		_, ok := parseMessageTime(in)
		assert.True(t, ok, in)
	}

	_, ok := parseMessageTime("yesterday")
	assert.False(t, ok)
}

func TestSortConversationsByActivity(t *testing.T) {
	now := time.Now()
	convs := []model.Conversation{
		{RemoteJID: "old", LastActivity: now.Add(-time.Hour)},
		{RemoteJID: "new", LastActivity: now},
	}
	sortConversations(convs)

	assert.Equal(t, "new", convs[0].RemoteJID)
	assert.Equal(t, "old", convs[1].RemoteJID)
}
