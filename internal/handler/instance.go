package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/instance"
	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	"github.com/afiliado-ai/agent-dashboard/internal/store"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

// InstanceHandler drives provisioning of the tenant's messaging instance:
// create with a scannable connection code, poll for confirmation, refresh
// the code, and tear the instance down.
type InstanceHandler struct {
	client   *instance.Client
	profiles *store.ProfileStore
	resolver *tenant.Resolver
	logger   *logger.Logger
}

// NewInstanceHandler creates an instance handler.
func NewInstanceHandler(client *instance.Client, profiles *store.ProfileStore, resolver *tenant.Resolver, log *logger.Logger) *InstanceHandler {
	return &InstanceHandler{
		client:   client,
		profiles: profiles,
		resolver: resolver,
		logger:   log,
	}
}

func (h *InstanceHandler) resources(w http.ResponseWriter, r *http.Request) (string, *instanceContext, bool) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	profile, err := h.profiles.Get(ctx, tenantID)
	if err != nil {
		writeDomainError(w, err)
		return "", nil, false
	}
	res, err := h.resolver.Resources(ctx, profile)
	if err != nil {
		writeDomainError(w, err)
		return "", nil, false
	}
	return tenantID, &instanceContext{email: profile.Email, name: res.InstanceName, stored: profile.InstanceName}, true
}

type instanceContext struct {
	email  string
	name   string
	stored string
}

// Create handles POST /api/v1/instance
// Provisions the instance and streams back the connection code image.
func (h *InstanceHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ic, ok := h.resources(w, r)
	if !ok {
		return
	}

	if err := middleware.ValidateInstanceName(ic.name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	code, err := h.client.Create(r.Context(), ic.name, tenantID, ic.email)
	if err != nil {
		h.logger.Error("instance creation failed",
			zap.String("tenant_id", tenantID),
			zap.String("instance", ic.name),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "instance creation failed")
		return
	}

	if err := h.profiles.SetInstanceName(r.Context(), tenantID, ic.name); err != nil {
		h.logger.Warn("failed to record instance name",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}

	writeConnectionCode(w, code)
}

// Confirm handles POST /api/v1/instance/confirm
func (h *InstanceHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	tenantID, ic, ok := h.resources(w, r)
	if !ok {
		return
	}

	status, err := h.client.Confirm(r.Context(), ic.name)
	if err != nil {
		h.logger.Warn("instance confirmation failed",
			zap.String("tenant_id", tenantID),
			zap.String("instance", ic.name),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "confirmation check failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"instance_name": ic.name,
		"status":        string(status),
	})
}

// RefreshCode handles POST /api/v1/instance/code
func (h *InstanceHandler) RefreshCode(w http.ResponseWriter, r *http.Request) {
	tenantID, ic, ok := h.resources(w, r)
	if !ok {
		return
	}

	code, err := h.client.RefreshCode(r.Context(), ic.name)
	if err != nil {
		h.logger.Error("connection code refresh failed",
			zap.String("tenant_id", tenantID),
			zap.String("instance", ic.name),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "could not refresh connection code")
		return
	}

	writeConnectionCode(w, code)
}

// Delete handles DELETE /api/v1/instance
func (h *InstanceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID, ic, ok := h.resources(w, r)
	if !ok {
		return
	}

	if ic.stored == "" {
		writeError(w, http.StatusNotFound, "no instance provisioned")
		return
	}

	if err := h.client.Remove(r.Context(), ic.stored); err != nil {
		h.logger.Error("instance removal failed",
			zap.String("tenant_id", tenantID),
			zap.String("instance", ic.stored),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "instance removal failed")
		return
	}

	if err := h.profiles.ClearInstanceName(r.Context(), tenantID); err != nil {
		h.logger.Warn("failed to clear instance name",
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeConnectionCode(w http.ResponseWriter, code *instance.ConnectionCode) {
	contentType := code.ContentType
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(code.Data)
}
