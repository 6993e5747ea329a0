package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/models"
	"github.com/movaia/movaia/internal/objectstore"

	"github.com/movaia/movaia/internal/apperr"
)

// Trigger assembles presigned input URLs for the uploaded segments and
// submits the job to the external worker.
//
// Input URLs are presigned at trigger time, not upload time: presigned
// URLs expire, and the worker may not start within the upload-time window.
type Trigger struct {
	analyses    *database.AnalysisRepository
	store       objectstore.ObjectStore
	worker      JobSubmitter
	webhookURL  string
	downloadTTL time.Duration
}

func NewTrigger(
	analyses *database.AnalysisRepository,
	store objectstore.ObjectStore,
	worker JobSubmitter,
	webhookURL string,
	downloadTTL time.Duration,
) *Trigger {
	if downloadTTL == 0 {
		downloadTTL = time.Hour
	}
	return &Trigger{
		analyses:    analyses,
		store:       store,
		worker:      worker,
		webhookURL:  webhookURL,
		downloadTTL: downloadTTL,
	}
}

// Trigger submits the analysis to the worker. The claim to PROCESSING is a
// conditional update, so a concurrent trigger for the same id quietly
// no-ops instead of double-submitting. A failed submission forces the
// record to FAILED and surfaces ErrExternalSubmission to the caller.
func (t *Trigger) Trigger(ctx context.Context, analysisID string) error {
	a, err := t.analyses.GetByID(ctx, analysisID)
	if err != nil {
		return err
	}

	if !a.Normal.Uploaded {
		return fmt.Errorf("analysis %s: %w", analysisID, apperr.ErrMissingRequiredSegment)
	}

	claimed, err := t.analyses.ClaimProcessing(ctx, analysisID)
	if err != nil {
		return err
	}
	if !claimed {
		log.Info().Str("analysisId", analysisID).Msg("Submission already in flight, skipping trigger")
		return nil
	}

	videos, err := t.presignInputs(ctx, a)
	if err != nil {
		return t.fail(ctx, analysisID, err)
	}

	job := Job{
		AnalysisID: a.ID,
		UserID:     a.OwnerID,
		Videos:     videos,
		WebhookURL: t.webhookURL,
	}

	if err := t.worker.Submit(ctx, job); err != nil {
		return t.fail(ctx, analysisID, err)
	}

	log.Info().Str("analysisId", analysisID).Msg("Analysis job submitted")
	return nil
}

func (t *Trigger) presignInputs(ctx context.Context, a *models.Analysis) (JobVideos, error) {
	var videos JobVideos
	targets := []struct {
		segment models.Segment
		dest    **string
	}{
		{a.Normal, &videos.Normal},
		{a.LeftToRight, &videos.LeftToRight},
		{a.RightToLeft, &videos.RightToLeft},
		{a.RearView, &videos.RearView},
	}

	for _, target := range targets {
		if !target.segment.Uploaded || target.segment.Key == nil {
			continue
		}
		url, err := t.store.PresignDownload(ctx, *target.segment.Key, t.downloadTTL)
		if err != nil {
			return JobVideos{}, fmt.Errorf("presigning %s: %w", *target.segment.Key, err)
		}
		*target.dest = &url
	}

	return videos, nil
}

func (t *Trigger) fail(ctx context.Context, analysisID string, cause error) error {
	if _, err := t.analyses.MarkFailed(ctx, analysisID); err != nil {
		log.Error().Err(err).Str("analysisId", analysisID).Msg("Failed to mark analysis failed")
	}
	log.Warn().Err(cause).Str("analysisId", analysisID).Msg("Analysis job submission failed")
	return fmt.Errorf("%w: %v", apperr.ErrExternalSubmission, cause)
}
