// Package upload accepts video segments one at a time, hands out presigned
// upload targets, and decides when an analysis is ready to submit.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/models"
	"github.com/movaia/movaia/internal/objectstore"
)

// allowedContentTypes is the video MIME allow-list for upload targets.
var allowedContentTypes = map[string]bool{
	"video/mp4":        true,
	"video/quicktime":  true,
	"video/webm":       true,
	"video/x-msvideo":  true,
	"video/x-matroska": true,
	"video/3gpp":       true,
}

// Triggerer kicks off the external analysis job for an analysis id.
type Triggerer interface {
	Trigger(ctx context.Context, analysisID string) error
}

// Coordinator implements the upload workflow: issue a presigned target,
// confirm the segment into the analysis record, and finalize by invoking
// the trigger.
type Coordinator struct {
	analyses  *database.AnalysisRepository
	usage     *database.UsageRepository
	activity  *database.ActivityLogRepository
	store     objectstore.ObjectStore
	trigger   Triggerer
	uploadTTL time.Duration
}

func NewCoordinator(
	analyses *database.AnalysisRepository,
	usage *database.UsageRepository,
	activity *database.ActivityLogRepository,
	store objectstore.ObjectStore,
	trigger Triggerer,
	uploadTTL time.Duration,
) *Coordinator {
	if uploadTTL == 0 {
		uploadTTL = 15 * time.Minute
	}
	return &Coordinator{
		analyses:  analyses,
		usage:     usage,
		activity:  activity,
		store:     store,
		trigger:   trigger,
		uploadTTL: uploadTTL,
	}
}

// UploadTarget is a presigned destination for one video segment. Nothing
// is persisted until the client confirms the upload.
type UploadTarget struct {
	UploadURL  string    `json:"uploadUrl"`
	StorageKey string    `json:"storageKey"`
	AnalysisID string    `json:"analysisId"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// IssueUploadTarget validates the angle and content type and presigns a
// write URL under the owner's key space. A missing analysisID starts a new
// analysis id without creating the record.
func (c *Coordinator) IssueUploadTarget(ctx context.Context, actor Actor, angle models.Angle, contentType, fileName, analysisID string) (*UploadTarget, error) {
	if !models.ValidAngle(angle) {
		return nil, fmt.Errorf("unknown angle %q: %w", angle, apperr.ErrValidation)
	}
	if !allowedContentTypes[contentType] {
		return nil, fmt.Errorf("unsupported content type %q: %w", contentType, apperr.ErrValidation)
	}
	if analysisID == "" {
		analysisID = uuid.New().String()
	}

	key := objectstore.VideoKey(actor.OwnerID, analysisID, angle, fileName)

	url, err := c.store.PresignUpload(ctx, key, contentType, c.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("presigning upload: %w", err)
	}

	log.Debug().
		Str("analysisId", analysisID).
		Str("angle", string(angle)).
		Str("key", key).
		Msg("Issued upload target")

	return &UploadTarget{
		UploadURL:  url,
		StorageKey: key,
		AnalysisID: analysisID,
		ExpiresAt:  time.Now().UTC().Add(c.uploadTTL),
	}, nil
}

// ConfirmSegment records a completed segment upload. On the first
// confirmation the analysis record is created in DRAFT. With isFinal the
// normal segment is required; the record moves to PENDING, the trigger is
// invoked synchronously, and the owner's monthly usage counter is bumped.
//
// A confirmation with an empty storageKey and isFinal is trigger-only: it
// re-validates and re-invokes the trigger without touching segment fields.
func (c *Coordinator) ConfirmSegment(ctx context.Context, actor Actor, analysisID string, angle models.Angle, storageKey string, isFinal bool) (*models.Analysis, error) {
	if analysisID == "" {
		return nil, fmt.Errorf("analysisId is required: %w", apperr.ErrValidation)
	}
	if storageKey == "" && !isFinal {
		return nil, fmt.Errorf("storageKey is required: %w", apperr.ErrValidation)
	}
	if storageKey != "" && !models.ValidAngle(angle) {
		return nil, fmt.Errorf("unknown angle %q: %w", angle, apperr.ErrValidation)
	}

	a, err := c.analyses.GetByID(ctx, analysisID)
	if err != nil {
		if !isNotFound(err) || storageKey == "" {
			return nil, err
		}
		a = models.NewAnalysis(analysisID, actor.OwnerID)
		a.UploadedByCoachID = actor.CoachID
		a.SetSegment(angle, storageKey)
		if err := c.analyses.Create(ctx, a); err != nil {
			return nil, err
		}
	} else {
		if a.OwnerID != actor.OwnerID {
			return nil, fmt.Errorf("analysis %s: %w", analysisID, apperr.ErrNotFound)
		}
		if storageKey != "" {
			if err := c.analyses.SetSegment(ctx, analysisID, angle, storageKey); err != nil {
				return nil, err
			}
			a.SetSegment(angle, storageKey)
		}
	}

	c.audit(ctx, actor, analysisID, angle, storageKey, isFinal)

	if !isFinal {
		return a, nil
	}

	if !a.Normal.Uploaded {
		return a, fmt.Errorf("analysis %s: %w", analysisID, apperr.ErrMissingRequiredSegment)
	}

	if err := c.analyses.MarkPending(ctx, analysisID); err != nil {
		return a, err
	}

	if err := c.trigger.Trigger(ctx, analysisID); err != nil {
		// The trigger has already forced the record to FAILED; the caller
		// surfaces the failure to the end user.
		return a, err
	}

	if err := c.usage.IncrementMonthly(ctx, actor.OwnerID, models.MonthOf(time.Now())); err != nil {
		log.Warn().Err(err).Str("ownerId", actor.OwnerID).Msg("Failed to increment usage counter")
	}

	return c.analyses.GetByID(ctx, analysisID)
}

func (c *Coordinator) audit(ctx context.Context, actor Actor, analysisID string, angle models.Angle, storageKey string, isFinal bool) {
	action := "segment_confirmed"
	detail := string(angle)
	if storageKey == "" {
		action = "analysis_triggered"
		detail = ""
	} else if isFinal {
		action = "upload_finalized"
	}

	event := models.NewActivityEvent(actor.ActingUserID(), analysisID, action, detail)
	if err := c.activity.Append(ctx, event); err != nil {
		log.Warn().Err(err).Str("analysisId", analysisID).Msg("Failed to append activity event")
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
