package knowledge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListMapsObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/storage/v1/object/list/user-vendas-exemplo-com", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "key", r.Header.Get("apikey"))

		json.NewEncoder(w).Encode([]map[string]any{
			{
				"name":       "catalogo.pdf",
				"created_at": "2026-03-10T12:00:00Z",
				"metadata":   map[string]any{"size": 2048, "mimetype": "application/pdf"},
			},
		})
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "key", time.Second)
	files, err := p.List(context.Background(), "user-vendas-exemplo-com")
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "catalogo.pdf", files[0].Name)
	assert.Equal(t, int64(2048), files[0].Size)
	assert.Equal(t, "application/pdf", files[0].ContentType)
	assert.Contains(t, files[0].URL, "/storage/v1/object/public/user-vendas-exemplo-com/catalogo.pdf")
}

func TestListUnprovisionedBucketReadsAsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "key", time.Second)
	files, err := p.List(context.Background(), "user-missing")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestPutSendsBodyAndContentType(t *testing.T) {
	var gotBody string
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/storage/v1/object/bucket/nota.txt", r.URL.Path)
		gotType = r.Header.Get("Content-Type")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second)
	err := p.Put(context.Background(), "bucket", "nota.txt", "text/plain", strings.NewReader("conteúdo"))
	require.NoError(t, err)

	assert.Equal(t, "conteúdo", gotBody)
	assert.Equal(t, "text/plain", gotType)
}

func TestDeleteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewHTTPProvider(srv.URL, "", time.Second)
	err := p.Delete(context.Background(), "bucket", "nota.txt")
	assert.ErrorContains(t, err, "status 500")
}
