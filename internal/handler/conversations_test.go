package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/internal/realtime"
	"github.com/afiliado-ai/agent-dashboard/internal/session"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

type stubProfiles struct {
	profile model.TenantProfile
}

func (s *stubProfiles) Get(_ context.Context, tenantID string) (*model.TenantProfile, error) {
	if tenantID != s.profile.ID {
		return nil, fmt.Errorf("profile %s not found", tenantID)
	}
	p := s.profile
	return &p, nil
}

func (s *stubProfiles) ListResolvedTables(_ context.Context) ([]string, error) {
	return []string{s.profile.LeadsTable}, nil
}

type stubLeads struct {
	conversations []model.Conversation
}

func (s *stubLeads) Conversations(_ context.Context, _ string) ([]model.Conversation, error) {
	return s.conversations, nil
}

func (s *stubLeads) SetPause(_ context.Context, _, _ string, _ model.PauseState) (int64, error) {
	return 1, nil
}

func (s *stubLeads) ClearPause(_ context.Context, _, _ string) (int64, error) {
	return 1, nil
}

func (s *stubLeads) ListExpired(_ context.Context, _ string, _ time.Time) ([]string, error) {
	return nil, nil
}

type stubBot struct {
	sendErr error

	sentPhone    string
	sentMessage  string
	sentOperator string
	sentPause    *int64
}

func (b *stubBot) PauseBot(context.Context, string, int64, string) error { return nil }
func (b *stubBot) ResumeBot(context.Context, string) error               { return nil }

func (b *stubBot) SendMessage(_ context.Context, phone, message, operatorID string, pauseSeconds *int64) error {
	b.sentPhone = phone
	b.sentMessage = message
	b.sentOperator = operatorID
	b.sentPause = pauseSeconds
	return b.sendErr
}

const testJID = "5511999999999@s.whatsapp.net"

func newMessageTestHandler(t *testing.T, bot *stubBot) *ConversationHandler {
	t.Helper()
	log, err := logger.NewDevelopment()
	require.NoError(t, err)

	profiles := &stubProfiles{profile: model.TenantProfile{
		ID:           "alfa",
		Name:         "Loja Alfa",
		Email:        "alfa@exemplo.com",
		LeadsTable:   "loja_alfa_base_leads",
		BucketName:   "user-alfa",
		InstanceName: "alfa",
	}}
	leads := &stubLeads{conversations: []model.Conversation{{
		RemoteJID: testJID,
		Name:      "Cliente",
	}}}

	sessions := session.NewManager(
		tenant.NewResolver(nil, log),
		profiles,
		leads,
		realtime.NewFeed(nil, log),
		bot,
		10*time.Millisecond,
		log,
	)
	t.Cleanup(sessions.Close)

	return NewConversationHandler(sessions, bot, log)
}

func sendMessageRequest(jid string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations/"+jid+"/messages", bytes.NewReader(data))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("remotejid", jid)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	ctx = context.WithValue(ctx, middleware.TenantIDKey, "alfa")
	return req.WithContext(ctx)
}

func TestSendMessageDeliversWithPause(t *testing.T) {
	bot := &stubBot{}
	h := newMessageTestHandler(t, bot)

	pause := int64(900)
	rec := httptest.NewRecorder()
	h.SendMessage(rec, sendMessageRequest(testJID, model.SendMessageRequest{
		Message:       "já estou verificando seu pedido",
		PauseDuration: &pause,
	}))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.SendMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Sent)
	assert.Equal(t, testJID, resp.RemoteJID)

	assert.Equal(t, testJID, bot.sentPhone)
	assert.Equal(t, "já estou verificando seu pedido", bot.sentMessage)
	assert.Equal(t, "alfa", bot.sentOperator)
	require.NotNil(t, bot.sentPause)
	assert.Equal(t, int64(900), *bot.sentPause)
}

func TestSendMessageRequiresText(t *testing.T) {
	bot := &stubBot{}
	h := newMessageTestHandler(t, bot)

	rec := httptest.NewRecorder()
	h.SendMessage(rec, sendMessageRequest(testJID, model.SendMessageRequest{Message: "   "}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, bot.sentMessage)
}

func TestSendMessageUnknownConversation(t *testing.T) {
	bot := &stubBot{}
	h := newMessageTestHandler(t, bot)

	rec := httptest.NewRecorder()
	h.SendMessage(rec, sendMessageRequest("5511000000000@s.whatsapp.net", model.SendMessageRequest{Message: "olá"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, bot.sentMessage)
}

func TestSendMessageDeliveryFailure(t *testing.T) {
	bot := &stubBot{sendErr: fmt.Errorf("send_message webhook returned status 500")}
	h := newMessageTestHandler(t, bot)

	rec := httptest.NewRecorder()
	h.SendMessage(rec, sendMessageRequest(testJID, model.SendMessageRequest{Message: "olá"}))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
