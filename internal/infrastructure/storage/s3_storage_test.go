package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/erp/migrator/internal/domain/migration"
	"github.com/erp/migrator/internal/infrastructure/config"
)

func TestNewS3MediaStore_Validation(t *testing.T) {
	t.Run("nil config returns error", func(t *testing.T) {
		_, err := NewS3MediaStore(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration is required")
	})

	t.Run("missing bucket returns error", func(t *testing.T) {
		_, err := NewS3MediaStore(&config.StorageConfig{AccessKey: "k", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket is required")
	})

	t.Run("missing access key returns error", func(t *testing.T) {
		_, err := NewS3MediaStore(&config.StorageConfig{Bucket: "media", SecretKey: "s"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "access key is required")
	})

	t.Run("missing secret key returns error", func(t *testing.T) {
		_, err := NewS3MediaStore(&config.StorageConfig{Bucket: "media", AccessKey: "k"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "secret key is required")
	})
}

func TestS3MediaStore_PublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
		want string
	}{
		{
			name: "public base url wins",
			cfg:  config.StorageConfig{Endpoint: "localhost:9000", PublicBaseURL: "https://cdn.example.com/", UsePathStyle: true},
			want: "https://cdn.example.com/products/1/a.jpg",
		},
		{
			name: "path style",
			cfg:  config.StorageConfig{Endpoint: "localhost:9000", UsePathStyle: true},
			want: "http://localhost:9000/media/products/1/a.jpg",
		},
		{
			name: "virtual host style",
			cfg:  config.StorageConfig{Endpoint: "s3.example.com", UseSSL: true},
			want: "https://media.s3.example.com/products/1/a.jpg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.Bucket = "media"
			cfg.AccessKey = "k"
			cfg.SecretKey = "s"
			store, err := NewS3MediaStore(&cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, store.PublicURL("products/1/a.jpg"))
		})
	}
}

// fakeS3 answers HEAD and PUT for path-style object URLs
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]string // path -> content type
	puts    int
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodHead:
		if _, ok := f.objects[r.URL.Path]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodPut:
		_, _ = io.Copy(io.Discard, r.Body)
		f.objects[r.URL.Path] = r.Header.Get("Content-Type")
		f.puts++
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestMediaStore(t *testing.T) (*S3MediaStore, *fakeS3, *httptest.Server) {
	t.Helper()

	s3 := &fakeS3{objects: map[string]string{}}
	s3Server := httptest.NewServer(s3)
	t.Cleanup(s3Server.Close)

	cdn := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "missing.jpg") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("\xff\xd8\xff image bytes"))
	}))
	t.Cleanup(cdn.Close)

	store, err := NewS3MediaStore(&config.StorageConfig{
		Endpoint:     s3Server.URL,
		Bucket:       "media",
		AccessKey:    "k",
		SecretKey:    "s",
		UsePathStyle: true,
	}, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return store, s3, cdn
}

func TestS3MediaStore_Sideload(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads once and reuses the object", func(t *testing.T) {
		store, s3, cdn := newTestMediaStore(t)

		got, err := store.Sideload(ctx, cdn.URL+"/files/a.jpg", "products/1/a.jpg")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(got, "/media/products/1/a.jpg"))
		assert.Equal(t, "image/jpeg", s3.objects["/media/products/1/a.jpg"])

		again, err := store.Sideload(ctx, cdn.URL+"/files/a.jpg", "products/1/a.jpg")
		require.NoError(t, err)
		assert.Equal(t, got, again)
		assert.Equal(t, 1, s3.puts, "existing objects are not uploaded again")
	})

	t.Run("source not found", func(t *testing.T) {
		store, s3, cdn := newTestMediaStore(t)

		_, err := store.Sideload(ctx, cdn.URL+"/files/missing.jpg", "products/1/missing.jpg")
		assert.ErrorIs(t, err, migration.ErrRemoteRequestFailed)
		assert.Zero(t, s3.puts)
	})

	t.Run("empty key", func(t *testing.T) {
		store, _, cdn := newTestMediaStore(t)

		_, err := store.Sideload(ctx, cdn.URL+"/files/a.jpg", "")
		require.Error(t, err)
	})
}

func TestPassthroughMediaStore(t *testing.T) {
	got, err := NewPassthroughMediaStore().Sideload(context.Background(), "https://cdn.shopify.com/a.jpg", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.shopify.com/a.jpg", got)
}
