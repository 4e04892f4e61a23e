package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/botctl"
	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/internal/pause"
	"github.com/afiliado-ai/agent-dashboard/internal/session"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

// ConversationHandler serves the conversation list, the SSE push stream,
// the pause/resume control endpoints and operator message delivery.
type ConversationHandler struct {
	sessions *session.Manager
	sender   botctl.Sender
	logger   *logger.Logger
}

// NewConversationHandler creates a conversation handler.
func NewConversationHandler(sessions *session.Manager, sender botctl.Sender, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		sessions: sessions,
		sender:   sender,
		logger:   log,
	}
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		if isResolutionError(err) {
			// No derivable resources: neutral empty state, not a failure.
			writeJSON(w, http.StatusOK, model.ListConversationsResponse{
				Conversations: []model.Conversation{},
				Realtime:      "unconfigured",
			})
			return
		}
		h.logger.Error("failed to open tenant session", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load conversations")
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		if err := sess.View.Refresh(ctx, "manual"); err != nil {
			writeError(w, http.StatusServiceUnavailable, "could not refresh conversations; please retry")
			return
		}
	}

	convs, _ := sess.View.Snapshot()
	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Conversations: convs,
		Total:         len(convs),
		Realtime:      sess.RealtimeStatus(),
	})
}

// Get handles GET /api/v1/conversations/{remotejid}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	remotejid := chi.URLParam(r, "remotejid")

	if err := middleware.ValidateRemoteJID(remotejid); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	conv, ok := sess.View.Get(remotejid)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

// Pause handles POST /api/v1/conversations/{remotejid}/pause
func (h *ConversationHandler) Pause(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	remotejid := chi.URLParam(r, "remotejid")

	if err := middleware.ValidateRemoteJID(remotejid); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateReason(req.Reason); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	state, err := sess.Controller.Pause(ctx, remotejid, req.Reason, req.Duration, req.Unit)
	if err != nil {
		var remoteErr *pause.RemoteControlError
		if errors.As(err, &remoteErr) {
			// Paused locally; the bot call is best-effort automation.
			writeJSON(w, http.StatusOK, model.PauseResponse{
				RemoteJID: remotejid,
				Pause:     state,
				Warning:   "paused locally, but the bot could not be notified",
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.PauseResponse{
		RemoteJID: remotejid,
		Pause:     state,
	})
}

// Resume handles POST /api/v1/conversations/{remotejid}/resume
func (h *ConversationHandler) Resume(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	remotejid := chi.URLParam(r, "remotejid")

	if err := middleware.ValidateRemoteJID(remotejid); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	_, err = sess.Controller.Resume(ctx, remotejid)
	if err != nil {
		var remoteErr *pause.RemoteControlError
		if errors.As(err, &remoteErr) {
			writeJSON(w, http.StatusOK, model.PauseResponse{
				RemoteJID: remotejid,
				Pause:     model.PauseState{},
				Warning:   "resumed locally, but the bot could not be notified",
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, model.PauseResponse{
		RemoteJID: remotejid,
		Pause:     model.PauseState{},
	})
}

// SendMessage handles POST /api/v1/conversations/{remotejid}/messages
// The automation layer delivers the text and, when a pause duration is
// given, records the pause itself; the change feed reconciles the view.
func (h *ConversationHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)
	remotejid := chi.URLParam(r, "remotejid")

	if err := middleware.ValidateRemoteJID(remotejid); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if req.PauseDuration != nil && *req.PauseDuration < 0 {
		writeError(w, http.StatusBadRequest, "pause_duration must be positive")
		return
	}

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if _, ok := sess.View.Get(remotejid); !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	if err := h.sender.SendMessage(ctx, remotejid, req.Message, tenantID, req.PauseDuration); err != nil {
		h.logger.Error("operator message delivery failed",
			zap.String("tenant_id", tenantID),
			zap.String("remotejid", remotejid),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "message could not be delivered; please retry")
		return
	}

	writeJSON(w, http.StatusOK, model.SendMessageResponse{RemoteJID: remotejid, Sent: true})
}

// Stream handles GET /api/v1/conversations/stream
// Pushes a full conversation snapshot whenever the view changes, with
// heartbeats to keep intermediaries from closing the connection.
func (h *ConversationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var after uint64
	if v := r.URL.Query().Get("after_version"); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			after = parsed
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]string{
		"realtime": sess.RealtimeStatus(),
	})

	const heartbeatInterval = 25 * time.Second

	for {
		waitCtx, cancel := context.WithTimeout(ctx, heartbeatInterval)
		convs, version, err := sess.View.Wait(waitCtx, after)
		cancel()

		if err == nil {
			after = version
			sendSSEEvent(w, flusher, "snapshot", model.ListConversationsResponse{
				Conversations: convs,
				Total:         len(convs),
				Realtime:      sess.RealtimeStatus(),
			})
			continue
		}
		if ctx.Err() != nil {
			return
		}

		// No change within the interval; keep the connection warm.
		sendSSEEvent(w, flusher, "heartbeat", map[string]string{
			"realtime": sess.RealtimeStatus(),
		})
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
