package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPProvider talks to the hosted storage HTTP API (Supabase-compatible
// object routes).
type HTTPProvider struct {
	base   string
	apiKey string
	http   *http.Client
}

// NewHTTPProvider creates a storage provider against the hosted API.
func NewHTTPProvider(base, apiKey string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		base:   base,
		apiKey: apiKey,
		http:   &http.Client{Timeout: timeout},
	}
}

type listRequest struct {
	Prefix string `json:"prefix"`
	Limit  int    `json:"limit"`
}

type listedObject struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Metadata  struct {
		Size     int64  `json:"size"`
		MimeType string `json:"mimetype"`
	} `json:"metadata"`
}

// List returns the objects in a bucket.
func (p *HTTPProvider) List(ctx context.Context, bucket string) ([]File, error) {
	body, err := json.Marshal(listRequest{Prefix: "", Limit: 1000})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/storage/v1/object/list/"+url.PathEscape(bucket), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list bucket %s: %w", bucket, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Bucket not provisioned yet reads as empty, same policy as the
		// leads table.
		return nil, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("bucket list returned status %d", resp.StatusCode)
	}

	var objects []listedObject
	if err := json.NewDecoder(resp.Body).Decode(&objects); err != nil {
		return nil, fmt.Errorf("failed to decode bucket listing: %w", err)
	}

	files := make([]File, 0, len(objects))
	for _, obj := range objects {
		files = append(files, File{
			Name:        obj.Name,
			Size:        obj.Metadata.Size,
			ContentType: obj.Metadata.MimeType,
			URL:         p.AccessPath(bucket, obj.Name),
			CreatedAt:   obj.CreatedAt,
		})
	}
	return files, nil
}

// Put writes an object into a bucket.
func (p *HTTPProvider) Put(ctx context.Context, bucket, name, contentType string, reader io.Reader) error {
	req, err := p.newRequest(ctx, http.MethodPost, "/storage/v1/object/"+url.PathEscape(bucket)+"/"+url.PathEscape(name), reader)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("upload returned status %d", resp.StatusCode)
	}
	return nil
}

// Delete removes an object from a bucket.
func (p *HTTPProvider) Delete(ctx context.Context, bucket, name string) error {
	req, err := p.newRequest(ctx, http.MethodDelete, "/storage/v1/object/"+url.PathEscape(bucket)+"/"+url.PathEscape(name), nil)
	if err != nil {
		return err
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("delete returned status %d", resp.StatusCode)
	}
	return nil
}

// AccessPath returns the public URL for an object.
func (p *HTTPProvider) AccessPath(bucket, name string) string {
	return p.base + "/storage/v1/object/public/" + url.PathEscape(bucket) + "/" + url.PathEscape(name)
}

func (p *HTTPProvider) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build storage request: %w", err)
	}
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
		req.Header.Set("apikey", p.apiKey)
	}
	return req, nil
}
