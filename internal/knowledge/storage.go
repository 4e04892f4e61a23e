// Package knowledge manages the tenant's knowledge-base files in the
// resolved storage bucket. Bucket provisioning is handled elsewhere; this
// adapter only lists, uploads and removes objects.
package knowledge

import (
	"context"
	"io"
	"time"
)

// File describes one stored knowledge-base object.
type File struct {
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

// Provider abstracts the object storage backend for one bucket namespace.
type Provider interface {
	// List returns the objects in a bucket.
	List(ctx context.Context, bucket string) ([]File, error)
	// Put writes an object into a bucket.
	Put(ctx context.Context, bucket, name string, contentType string, reader io.Reader) error
	// Delete removes an object from a bucket.
	Delete(ctx context.Context, bucket, name string) error
	// AccessPath returns a consumer-accessible reference for an object.
	AccessPath(bucket, name string) string
}
