// Package objectstore issues time-limited presigned URLs for video and
// result artifacts and defines the bucket key conventions.
package objectstore

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/movaia/movaia/internal/models"
)

// ObjectStore is the narrow contract the core depends on. Presign failures
// for individual artifacts are reported as errors wrapping
// apperr.ErrArtifactUnavailable so callers can degrade the field to null.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// ThumbnailFilename is the fixed name of the per-angle thumbnail artifact.
const ThumbnailFilename = "thumbnail.png"

// VideoKey builds the storage key for an uploaded video segment:
// videos/{ownerId}/{analysisId}/{angle}/{uuid}.{ext}
func VideoKey(ownerID, analysisID string, angle models.Angle, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".mp4"
	}
	return fmt.Sprintf("videos/%s/%s/%s/%s%s", ownerID, analysisID, angle, uuid.New().String(), ext)
}

// ResultKey builds the storage key for a result artifact:
// analysis_result/{ownerId}/{analysisId}/{angle}/{filename}
func ResultKey(ownerID, analysisID string, angle models.Angle, filename string) string {
	return fmt.Sprintf("analysis_result/%s/%s/%s/%s", ownerID, analysisID, angle, filename)
}

// ThumbnailKey is the canonical thumbnail reference for a completed
// analysis, derived from the normal angle's fixed thumbnail filename.
func ThumbnailKey(ownerID, analysisID string) string {
	return ResultKey(ownerID, analysisID, models.AngleNormal, ThumbnailFilename)
}
