package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

// LeadStore reads and updates rows in a tenant's resolved leads table.
// The table name comes from the resolver and is sanitized before use; the
// column set is treated as an evolving contract: unknown columns are
// ignored and missing pause columns default to not paused.
type LeadStore struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewLeadStore creates a lead store.
func NewLeadStore(pool *pgxpool.Pool, log *logger.Logger) *LeadStore {
	return &LeadStore{pool: pool, logger: log}
}

// ListRows fetches all rows from a tenant table, most recently updated
// first. A table that does not exist yet yields an empty result.
func (s *LeadStore) ListRows(ctx context.Context, table string) ([]model.LeadRow, error) {
	q := fmt.Sprintf(`SELECT * FROM %s ORDER BY updated_at DESC`, pgx.Identifier{table}.Sanitize())

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []model.LeadRow
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from %s: %w", table, err)
		}
		out = append(out, scanLeadRow(fields, values))
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return out, nil
}

// Conversations groups the table's rows by remotejid, normalizes each
// payload, and returns conversations ordered by most recent activity.
// Per-row normalization failures degrade to a placeholder message and are
// counted, never propagated.
func (s *LeadStore) Conversations(ctx context.Context, table string) ([]model.Conversation, error) {
	rowList, err := s.ListRows(ctx, table)
	if err != nil {
		return nil, err
	}

	grouped := make(map[string]*model.Conversation)
	order := make([]string, 0, len(rowList))

	for _, row := range rowList {
		if row.RemoteJID == "" {
			continue
		}
		msgs, warned := normalizeMessages(row)
		if warned {
			metrics.NormalizationWarnings.WithLabelValues(table).Inc()
			s.logger.Warn("unparseable message payload",
				zap.String("table", table),
				zap.String("remotejid", row.RemoteJID),
			)
		}

		conv, ok := grouped[row.RemoteJID]
		if !ok {
			conv = &model.Conversation{
				RemoteJID: row.RemoteJID,
				Name:      row.Name,
				Pause:     row.Pause,
				CreatedAt: row.CreatedAt,
				UpdatedAt: row.UpdatedAt,
			}
			grouped[row.RemoteJID] = conv
			order = append(order, row.RemoteJID)
		}
		if conv.Name == "" {
			conv.Name = row.Name
		}
		if row.Pause.Paused {
			conv.Pause = row.Pause
		}
		if row.UpdatedAt.After(conv.UpdatedAt) {
			conv.UpdatedAt = row.UpdatedAt
		}
		conv.Messages = append(conv.Messages, msgs...)
	}

	conversations := make([]model.Conversation, 0, len(order))
	for _, jid := range order {
		conv := grouped[jid]
		sortMessages(conv.Messages)
		if n := len(conv.Messages); n > 0 {
			last := conv.Messages[n-1]
			conv.LastMessage = last.Text
			if last.TimeValid {
				conv.LastActivity = last.Timestamp
			}
		}
		if conv.LastActivity.IsZero() {
			conv.LastActivity = conv.UpdatedAt
		}
		conversations = append(conversations, *conv)
	}

	// Rows arrive ordered by updated_at desc, so grouping preserved most
	// recent activity first; re-sort on the computed activity to be exact.
	sortConversations(conversations)
	return conversations, nil
}

// SetPause overwrites a conversation's pause state. Used both for the
// Active -> Paused transition and for updating an existing pause.
func (s *LeadStore) SetPause(ctx context.Context, table, remotejid string, state model.PauseState) (int64, error) {
	q := fmt.Sprintf(`
		UPDATE %s
		SET is_paused = $1, pause_reason = $2, pause_expires_at = $3, updated_at = now()
		WHERE remotejid = $4`,
		pgx.Identifier{table}.Sanitize())

	var reason any
	if state.Reason != "" {
		reason = state.Reason
	}
	tag, err := s.pool.Exec(ctx, q, state.Paused, reason, state.ExpiresAt, remotejid)
	if err != nil {
		return 0, fmt.Errorf("failed to update pause state in %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// ClearPause resumes a conversation, clearing reason and expiry together
// with the flag. Only rows currently paused are touched, which makes
// resume idempotent: zero rows affected means it was already active.
func (s *LeadStore) ClearPause(ctx context.Context, table, remotejid string) (int64, error) {
	q := fmt.Sprintf(`
		UPDATE %s
		SET is_paused = false, pause_reason = NULL, pause_expires_at = NULL, updated_at = now()
		WHERE remotejid = $1 AND is_paused = true`,
		pgx.Identifier{table}.Sanitize())

	tag, err := s.pool.Exec(ctx, q, remotejid)
	if err != nil {
		return 0, fmt.Errorf("failed to clear pause state in %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// ListExpired returns the remotejids of conversations whose pause has
// expired as of now.
func (s *LeadStore) ListExpired(ctx context.Context, table string, now time.Time) ([]string, error) {
	q := fmt.Sprintf(`
		SELECT remotejid FROM %s
		WHERE is_paused = true AND pause_expires_at IS NOT NULL AND pause_expires_at <= $1`,
		pgx.Identifier{table}.Sanitize())

	rows, err := s.pool.Query(ctx, q, now)
	if err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query expired pauses in %s: %w", table, err)
	}
	defer rows.Close()

	var jids []string
	for rows.Next() {
		var jid string
		if err := rows.Scan(&jid); err != nil {
			return nil, fmt.Errorf("failed to scan expired pause row: %w", err)
		}
		jids = append(jids, jid)
	}
	if err := rows.Err(); err != nil {
		if isUndefinedTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to iterate expired pauses: %w", err)
	}
	return jids, nil
}

// CountBetween counts rows created within [from, to). Zero-value bounds are
// open on that side.
func (s *LeadStore) CountBetween(ctx context.Context, table string, from, to time.Time) (int, error) {
	q := fmt.Sprintf(`
		SELECT count(*) FROM %s
		WHERE ($1::timestamptz IS NULL OR created_at >= $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2)`,
		pgx.Identifier{table}.Sanitize())

	var fromArg, toArg any
	if !from.IsZero() {
		fromArg = from
	}
	if !to.IsZero() {
		toArg = to
	}

	var count int
	if err := s.pool.QueryRow(ctx, q, fromArg, toArg).Scan(&count); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// RecentLeads returns the most recently created leads.
func (s *LeadStore) RecentLeads(ctx context.Context, table string, limit int) ([]model.Lead, error) {
	rowList, err := s.ListRows(ctx, table)
	if err != nil {
		return nil, err
	}

	leads := make([]model.Lead, 0, len(rowList))
	for _, row := range rowList {
		leads = append(leads, model.Lead{
			ID:        row.ID,
			RemoteJID: row.RemoteJID,
			Name:      row.Name,
			Timestamp: row.Timestamp,
			CreatedAt: row.CreatedAt,
			UpdatedAt: row.UpdatedAt,
		})
	}
	sortLeadsByCreated(leads)
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}
	return leads, nil
}

// scanLeadRow maps a dynamic column set onto a LeadRow. Only the columns
// the dashboard knows about are read; anything else is ignored.
func scanLeadRow(fields []pgconn.FieldDescription, values []any) model.LeadRow {
	var row model.LeadRow
	for i, fd := range fields {
		if i >= len(values) || values[i] == nil {
			continue
		}
		switch fd.Name {
		case "id":
			row.ID = coerceInt64(values[i])
		case "remotejid":
			row.RemoteJID = coerceString(values[i])
		case "nome", "name":
			row.Name = coerceString(values[i])
		case "message", "conversation_history":
			row.Payload = coerceBytes(values[i])
		case "timestamp":
			if t, ok := coerceTime(values[i]); ok {
				row.Timestamp = &t
			}
		case "is_paused":
			if b, ok := values[i].(bool); ok {
				row.Pause.Paused = b
			}
		case "pause_reason":
			row.Pause.Reason = coerceString(values[i])
		case "pause_expires_at":
			if t, ok := coerceTime(values[i]); ok {
				row.Pause.ExpiresAt = &t
			}
		case "created_at":
			if t, ok := coerceTime(values[i]); ok {
				row.CreatedAt = t
			}
		case "updated_at":
			if t, ok := coerceTime(values[i]); ok {
				row.UpdatedAt = t
			}
		}
	}
	return row
}

func coerceInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int:
		return int64(n)
	}
	return 0
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return ""
}

func coerceBytes(v any) []byte {
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	default:
		// jsonb columns decode to maps/slices; round-trip back to raw JSON.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return raw
	}
}

func coerceTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		return parseMessageTime(t)
	}
	return time.Time{}, false
}
