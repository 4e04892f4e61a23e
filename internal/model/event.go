package model

import (
	"time"
)

// ChangeType represents the type of row-change notification.
type ChangeType string

const (
	ChangeInsert ChangeType = "insert"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// ChangeEvent is a row-change notification for a tenant's leads table.
// The listener does not inspect it deeply; any event triggers a debounced
// refetch of the whole table.
type ChangeEvent struct {
	Table     string     `json:"table"`
	Type      ChangeType `json:"type"`
	RemoteJID string     `json:"remotejid,omitempty"`
	At        time.Time  `json:"at"`
}

// MetricsSummary aggregates lead counts for the dashboard.
type MetricsSummary struct {
	TotalLeads    int            `json:"total_leads"`
	NewThisMonth  int            `json:"new_this_month"`
	MonthlyGrowth []MonthlyCount `json:"monthly_growth"`
	RecentLeads   []Lead         `json:"recent_leads"`
}

// MonthlyCount is one month's lead count in the growth series.
type MonthlyCount struct {
	Month string `json:"month"`
	Count int    `json:"count"`
}
