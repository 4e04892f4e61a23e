package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
)

// ErrProfileNotFound is returned when no profile exists for a tenant id.
var ErrProfileNotFound = errors.New("tenant profile not found")

// ProfileStore reads and updates tenant profiles.
type ProfileStore struct {
	pool *pgxpool.Pool
}

// NewProfileStore creates a profile store.
func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Get looks up a tenant profile by id.
func (s *ProfileStore) Get(ctx context.Context, tenantID string) (*model.TenantProfile, error) {
	const q = `
		SELECT id, name, email,
		       COALESCE(leads_table, ''), COALESCE(bucket_name, ''), COALESCE(instance_name, ''),
		       created_at, updated_at
		FROM tenant_profiles
		WHERE id = $1`

	var p model.TenantProfile
	err := s.pool.QueryRow(ctx, q, tenantID).Scan(
		&p.ID, &p.Name, &p.Email,
		&p.LeadsTable, &p.BucketName, &p.InstanceName,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tenant profile: %w", err)
	}
	return &p, nil
}

// CacheResources writes derived resource names back to the profile.
// Existing values are kept so names stay stable after first derivation.
func (s *ProfileStore) CacheResources(ctx context.Context, tenantID string, res model.TenantResources) error {
	const q = `
		UPDATE tenant_profiles
		SET leads_table   = COALESCE(NULLIF(leads_table, ''), $2),
		    bucket_name   = COALESCE(NULLIF(bucket_name, ''), $3),
		    instance_name = COALESCE(NULLIF(instance_name, ''), $4),
		    updated_at    = now()
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, q, tenantID, res.TableName, res.BucketName, res.InstanceName); err != nil {
		return fmt.Errorf("failed to cache tenant resources: %w", err)
	}
	return nil
}

// ListResolvedTables returns the leads table of every tenant that has one,
// for the process-wide expiry sweep.
func (s *ProfileStore) ListResolvedTables(ctx context.Context) ([]string, error) {
	const q = `SELECT DISTINCT leads_table FROM tenant_profiles WHERE leads_table IS NOT NULL AND leads_table <> ''`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan resolved table: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolved tables: %w", err)
	}
	return tables, nil
}

// SetInstanceName records the provisioned messaging-instance name.
func (s *ProfileStore) SetInstanceName(ctx context.Context, tenantID, name string) error {
	const q = `UPDATE tenant_profiles SET instance_name = $2, updated_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, tenantID, name); err != nil {
		return fmt.Errorf("failed to set instance name: %w", err)
	}
	return nil
}

// ClearInstanceName removes the messaging-instance name after deletion.
func (s *ProfileStore) ClearInstanceName(ctx context.Context, tenantID string) error {
	const q = `UPDATE tenant_profiles SET instance_name = NULL, updated_at = now() WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, tenantID); err != nil {
		return fmt.Errorf("failed to clear instance name: %w", err)
	}
	return nil
}
