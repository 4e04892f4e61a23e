package handler

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/middleware"
	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/internal/session"
	"github.com/afiliado-ai/agent-dashboard/internal/store"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

const (
	defaultLeadLimit  = 50
	maxLeadLimit      = 500
	growthMonthWindow = 6
	recentLeadCount   = 5
)

// LeadHandler serves the raw lead listing and the dashboard metrics summary.
type LeadHandler struct {
	sessions *session.Manager
	leads    *store.LeadStore
	logger   *logger.Logger
	now      func() time.Time
}

// NewLeadHandler creates a lead handler.
func NewLeadHandler(sessions *session.Manager, leads *store.LeadStore, log *logger.Logger) *LeadHandler {
	return &LeadHandler{
		sessions: sessions,
		leads:    leads,
		logger:   log,
		now:      time.Now,
	}
}

// List handles GET /api/v1/leads
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		if isResolutionError(err) {
			writeJSON(w, http.StatusOK, model.ListLeadsResponse{Leads: []model.Lead{}})
			return
		}
		writeDomainError(w, err)
		return
	}

	limit := defaultLeadLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxLeadLimit {
		limit = maxLeadLimit
	}

	leads, err := h.leads.RecentLeads(ctx, sess.Resources.TableName, limit)
	if err != nil {
		h.logger.Error("failed to list leads",
			zap.String("tenant_id", tenantID),
			zap.String("table", sess.Resources.TableName),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "failed to list leads")
		return
	}
	if leads == nil {
		leads = []model.Lead{}
	}

	writeJSON(w, http.StatusOK, model.ListLeadsResponse{
		Leads: leads,
		Total: len(leads),
	})
}

// MetricsSummary handles GET /api/v1/metrics/summary
func (h *LeadHandler) MetricsSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := middleware.GetTenantID(ctx)

	sess, err := h.sessions.Session(ctx, tenantID)
	if err != nil {
		if isResolutionError(err) {
			writeJSON(w, http.StatusOK, model.MetricsSummary{
				MonthlyGrowth: []model.MonthlyCount{},
				RecentLeads:   []model.Lead{},
			})
			return
		}
		writeDomainError(w, err)
		return
	}

	table := sess.Resources.TableName
	now := h.now()

	total, err := h.leads.CountBetween(ctx, table, time.Time{}, time.Time{})
	if err != nil {
		h.logger.Error("failed to count leads", zap.String("table", table), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}

	summary := model.MetricsSummary{
		TotalLeads:    total,
		MonthlyGrowth: make([]model.MonthlyCount, 0, growthMonthWindow),
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	for i := growthMonthWindow - 1; i >= 0; i-- {
		from := monthStart.AddDate(0, -i, 0)
		to := from.AddDate(0, 1, 0)
		count, err := h.leads.CountBetween(ctx, table, from, to)
		if err != nil {
			h.logger.Error("failed to count monthly leads", zap.String("table", table), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "failed to compute metrics")
			return
		}
		summary.MonthlyGrowth = append(summary.MonthlyGrowth, model.MonthlyCount{
			Month: from.Format("Jan 2006"),
			Count: count,
		})
		if i == 0 {
			summary.NewThisMonth = count
		}
	}

	recent, err := h.leads.RecentLeads(ctx, table, recentLeadCount)
	if err != nil {
		h.logger.Error("failed to list recent leads", zap.String("table", table), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to compute metrics")
		return
	}
	if recent == nil {
		recent = []model.Lead{}
	}
	summary.RecentLeads = recent

	writeJSON(w, http.StatusOK, summary)
}
