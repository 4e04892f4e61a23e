package handler

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/internal/store"
	"github.com/afiliado-ai/agent-dashboard/internal/tenant"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

// ProfileHandler serves the tenant profile and its resolved resources.
type ProfileHandler struct {
	profiles *store.ProfileStore
	resolver *tenant.Resolver
	logger   *logger.Logger
}

// NewProfileHandler creates a profile handler.
func NewProfileHandler(profiles *store.ProfileStore, resolver *tenant.Resolver, log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{
		profiles: profiles,
		resolver: resolver,
		logger:   log,
	}
}

// Get handles GET /api/v1/profile
func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	profile, err := h.profiles.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrProfileNotFound) {
			writeError(w, http.StatusNotFound, "profile not found")
			return
		}
		h.logger.Error("failed to load profile", zap.String("tenant_id", tenantID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load profile")
		return
	}

	resp := model.ProfileResponse{Profile: *profile}

	res, err := h.resolver.Resources(ctx, profile)
	if err != nil {
		if !errors.Is(err, tenant.ErrConfigurationMissing) {
			h.logger.Warn("failed to resolve tenant resources",
				zap.String("tenant_id", tenantID),
				zap.Error(err),
			)
		}
		// Profile without derivable resources still renders; the
		// dashboard shows the configuration prompt instead.
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Resources = &res
	writeJSON(w, http.StatusOK, resp)
}
