// Package model defines data structures for the agent dashboard.
package model

import (
	"time"
)

// TenantProfile identifies one business account and carries the derived
// resource names once they have been computed and cached.
type TenantProfile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	LeadsTable   string    `json:"leads_table,omitempty"`
	BucketName   string    `json:"bucket_name,omitempty"`
	InstanceName string    `json:"instance_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TenantResources holds the tenant-scoped resource names resolved from a
// profile. Resolved once per session and passed down; never re-derived ad hoc.
type TenantResources struct {
	TableName    string `json:"table_name"`
	BucketName   string `json:"bucket_name"`
	InstanceName string `json:"instance_name"`
}

// ProfileResponse is returned by GET /api/v1/profile.
type ProfileResponse struct {
	Profile   TenantProfile    `json:"profile"`
	Resources *TenantResources `json:"resources,omitempty"`
}
