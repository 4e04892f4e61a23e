// Package tenant resolves the per-tenant resource names (leads table,
// storage bucket, messaging instance) from a tenant profile.
package tenant

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/afiliado-ai/agent-dashboard/internal/model"
	"github.com/afiliado-ai/agent-dashboard/pkg/logger"
)

const (
	tableSuffix  = "_base_leads"
	bucketPrefix = "user-"
)

// ErrConfigurationMissing is returned when a profile has neither a name nor
// an email to derive resource names from. Callers render an empty state.
var ErrConfigurationMissing = errors.New("tenant profile has no name or email")

// ProfileCache persists derived resource names back onto the profile.
// The write is best-effort; resolution never fails because of it.
type ProfileCache interface {
	CacheResources(ctx context.Context, tenantID string, res model.TenantResources) error
}

// Resolver derives tenant resource names. Derivation is pure and idempotent;
// once cached on the profile the stored names win even if the source name
// later changes.
type Resolver struct {
	cache  ProfileCache
	logger *logger.Logger
}

// NewResolver creates a resolver. cache may be nil in tests.
func NewResolver(cache ProfileCache, log *logger.Logger) *Resolver {
	return &Resolver{cache: cache, logger: log}
}

// Resources returns the resource names for a profile, preferring names
// already cached on the profile and writing back freshly derived ones.
func (r *Resolver) Resources(ctx context.Context, profile *model.TenantProfile) (model.TenantResources, error) {
	res := model.TenantResources{
		TableName:    profile.LeadsTable,
		BucketName:   profile.BucketName,
		InstanceName: profile.InstanceName,
	}

	derived := false
	if res.TableName == "" {
		name, err := TableName(profile)
		if err != nil {
			return model.TenantResources{}, err
		}
		res.TableName = name
		derived = true
	}
	if res.BucketName == "" {
		name, err := BucketName(profile)
		if err != nil {
			return model.TenantResources{}, err
		}
		res.BucketName = name
		derived = true
	}
	if res.InstanceName == "" {
		name, err := InstanceName(profile)
		if err != nil {
			return model.TenantResources{}, err
		}
		res.InstanceName = name
		derived = true
	}

	if derived && r.cache != nil {
		if err := r.cache.CacheResources(ctx, profile.ID, res); err != nil {
			r.logger.Warn("failed to cache tenant resources",
				zap.String("tenant_id", profile.ID),
				zap.Error(err),
			)
		}
	}

	return res, nil
}

// TableName derives the leads table name: normalized display name plus the
// fixed suffix, falling back to the email local part when no name is set.
func TableName(profile *model.TenantProfile) (string, error) {
	if name := strings.TrimSpace(profile.Name); name != "" {
		return normalizeIdentifier(name) + tableSuffix, nil
	}
	if local := emailLocalPart(profile.Email); local != "" {
		return strings.ToLower(local) + tableSuffix, nil
	}
	return "", ErrConfigurationMissing
}

// BucketName derives the storage bucket name from the tenant's email:
// lower-cased, @ and . replaced with hyphens, anything outside [a-z0-9-]
// stripped, with the fixed prefix prepended.
func BucketName(profile *model.TenantProfile) (string, error) {
	email := strings.TrimSpace(profile.Email)
	if email == "" {
		return "", ErrConfigurationMissing
	}
	sanitized := strings.ToLower(email)
	sanitized = strings.NewReplacer("@", "-", ".", "-").Replace(sanitized)
	var b strings.Builder
	for _, c := range sanitized {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "", ErrConfigurationMissing
	}
	return bucketPrefix + b.String(), nil
}

// InstanceName derives the messaging-instance name from the email local part.
// The provisioning API only accepts [a-z0-9_-], so anything else (dots in
// corporate email local parts, most commonly) maps to underscores.
func InstanceName(profile *model.TenantProfile) (string, error) {
	if local := emailLocalPart(profile.Email); local != "" {
		return instanceIdentifier(local), nil
	}
	if name := strings.TrimSpace(profile.Name); name != "" {
		return instanceIdentifier(name), nil
	}
	return "", ErrConfigurationMissing
}

func instanceIdentifier(s string) string {
	s = normalizeIdentifier(s)
	var b strings.Builder
	for _, c := range s {
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' || c == '-' {
			b.WriteRune(c)
			continue
		}
		b.WriteRune('_')
	}
	return b.String()
}

// normalizeIdentifier lower-cases, strips diacritics, and collapses
// whitespace runs to single underscores.
func normalizeIdentifier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	return strings.Join(strings.Fields(s), "_")
}

func emailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return ""
}
