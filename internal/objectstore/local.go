package objectstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/movaia/movaia/internal/apperr"
)

// LocalStore keeps objects on the local filesystem for development, with
// "presigned" URLs that point at the /media handler of the same server.
// It is not meant for production use.
type LocalStore struct {
	basePath string
	baseURL  string
}

func NewLocalStore(basePath, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (ls *LocalStore) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return ls.mediaURL(key), nil
}

func (ls *LocalStore) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := os.Stat(ls.fullPath(key)); err != nil {
		return "", fmt.Errorf("object %s: %w", key, apperr.ErrArtifactUnavailable)
	}
	return ls.mediaURL(key), nil
}

func (ls *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(ls.fullPath(key))
	if err != nil {
		return nil, fmt.Errorf("object %s: %w", key, apperr.ErrArtifactUnavailable)
	}
	return data, nil
}

// ServeHTTP accepts PUT uploads and serves GET downloads under /media/{key},
// standing in for the bucket during local development.
func (ls *LocalStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/media/")
	if key == "" || strings.Contains(filepath.Clean(key), "..") {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		fullPath := ls.fullPath(key)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		dst, err := os.Create(fullPath)
		if err != nil {
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		defer dst.Close()
		if _, err := io.Copy(dst, r.Body); err != nil {
			os.Remove(fullPath)
			http.Error(w, "storage error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		http.ServeFile(w, r, ls.fullPath(key))
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (ls *LocalStore) fullPath(key string) string {
	return filepath.Join(ls.basePath, filepath.Clean(key))
}

func (ls *LocalStore) mediaURL(key string) string {
	escaped := (&url.URL{Path: "/media/" + key}).EscapedPath()
	return ls.baseURL + escaped
}
