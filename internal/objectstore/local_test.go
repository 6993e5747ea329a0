package objectstore

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/movaia/movaia/internal/apperr"
)

func TestLocalStore_RoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()
	key := "videos/runner-1/a-1/normal/clip.mp4"

	uploadURL, err := store.PresignUpload(ctx, key, "video/mp4", time.Minute)
	if err != nil {
		t.Fatalf("PresignUpload failed: %v", err)
	}
	if uploadURL != "http://localhost:8080/media/"+key {
		t.Errorf("Unexpected upload URL: %s", uploadURL)
	}

	// Upload through the media handler like a client following the URL.
	req := httptest.NewRequest(http.MethodPut, "/media/"+key, bytes.NewReader([]byte("frames")))
	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT status = %d", rec.Code)
	}

	data, err := store.Download(ctx, key)
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if string(data) != "frames" {
		t.Errorf("Downloaded %q", data)
	}

	if _, err := store.PresignDownload(ctx, key, time.Minute); err != nil {
		t.Errorf("PresignDownload failed for stored object: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/media/"+key, nil)
	rec = httptest.NewRecorder()
	store.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "frames" {
		t.Errorf("GET status = %d body = %q", rec.Code, rec.Body.String())
	}
}

func TestLocalStore_MissingObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	ctx := context.Background()

	if _, err := store.PresignDownload(ctx, "videos/none.mp4", time.Minute); !errors.Is(err, apperr.ErrArtifactUnavailable) {
		t.Errorf("Expected artifact-unavailable, got %v", err)
	}
	if _, err := store.Download(ctx, "videos/none.mp4"); !errors.Is(err, apperr.ErrArtifactUnavailable) {
		t.Errorf("Expected artifact-unavailable, got %v", err)
	}
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://localhost:8080")
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/media/../../etc/passwd", nil)
	rec := httptest.NewRecorder()
	store.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}
