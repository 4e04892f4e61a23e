// Package realtime wires the per-tenant change feed: row-change events for
// a leads table are published on NATS subjects and drive a debounced
// refetch of the conversation snapshot.
package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	natsclient "github.com/afiliado-ai/agent-dashboard/internal/nats"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
	"github.com/afiliado-ai/agent-dashboard/pkg/metrics"
)

const subjectPrefix = "leads"

// ErrDisconnected is returned when no messaging connection is available.
// The dashboard keeps working through manual refetches.
var ErrDisconnected = errors.New("change feed disconnected")

// Feed publishes and subscribes to row-change events.
type Feed struct {
	client *natsclient.Client
	logger *logger.Logger
}

// NewFeed creates a change feed over an established NATS connection.
func NewFeed(client *natsclient.Client, log *logger.Logger) *Feed {
	return &Feed{client: client, logger: log}
}

// subjectToken folds a table name into a single subject token. Table names
// derived from an email local part may contain dots, which NATS would treat
// as token separators.
func subjectToken(table string) string {
	return strings.ReplaceAll(table, ".", "_")
}

// Subject returns the subject for one event type on one table.
func Subject(table string, t model.ChangeType) string {
	return fmt.Sprintf("%s.%s.%s", subjectPrefix, subjectToken(table), t)
}

// TableFilter returns the wildcard subject matching all events on a table.
func TableFilter(table string) string {
	return fmt.Sprintf("%s.%s.*", subjectPrefix, subjectToken(table))
}

// PublishChange emits a change event so other sessions reconcile. Used
// after local pause writes; the deployed change-data bridge publishes the
// same subjects for writes made by the automation layer.
func (f *Feed) PublishChange(ev model.ChangeEvent) error {
	if f.client == nil {
		return ErrDisconnected
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := f.client.Conn().Publish(Subject(ev.Table, ev.Type), data); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}
	return nil
}

// Subscribe delivers every change event for a table to handler. The payload
// is not inspected deeply; a malformed event still counts as a change.
func (f *Feed) Subscribe(table string, handler func(model.ChangeEvent)) (*nats.Subscription, error) {
	if f.client == nil {
		return nil, ErrDisconnected
	}
	sub, err := f.client.Conn().Subscribe(TableFilter(table), func(msg *nats.Msg) {
		ev := model.ChangeEvent{Table: table}
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			f.logger.Debug("malformed change event", zap.String("subject", msg.Subject), zap.Error(err))
		}
		metrics.RealtimeEvents.WithLabelValues(table, string(ev.Type)).Inc()
		handler(ev)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", TableFilter(table), err)
	}
	return sub, nil
}

// Connected reports whether the feed currently has a live connection.
// When false the dashboard shows a disconnected indicator and relies on
// manual refetches.
func (f *Feed) Connected() bool {
	return f.client != nil && f.client.IsConnected()
}
