package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/objectstore"
)

const (
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
)

// CompletionPayload is the webhook body the worker posts back when a job
// finishes. Metrics are optional; workers that compute them inline send
// them here and they are persisted on completion.
type CompletionPayload struct {
	AnalysisID string             `json:"analysisId"`
	UserID     string             `json:"userId"`
	Status     string             `json:"status"`
	Error      string             `json:"error,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// Notifier delivers a user-facing notification. Best-effort from the
// receiver's perspective.
type Notifier interface {
	Notify(ctx context.Context, userID, ntype, title, message string, metadata map[string]string) error
}

// Receiver reconciles worker callbacks into the analysis record.
type Receiver struct {
	analyses *database.AnalysisRepository
	notifier Notifier
}

func NewReceiver(analyses *database.AnalysisRepository, notifier Notifier) *Receiver {
	return &Receiver{analyses: analyses, notifier: notifier}
}

// Complete applies a job outcome. Re-delivered webhooks for an analysis
// already in a terminal state are logged and dropped, so duplicate
// deliveries never double-apply side effects.
func (r *Receiver) Complete(ctx context.Context, payload CompletionPayload) error {
	if payload.AnalysisID == "" {
		return fmt.Errorf("analysisId is required: %w", apperr.ErrValidation)
	}
	if payload.Status != outcomeCompleted && payload.Status != outcomeFailed {
		return fmt.Errorf("unknown status %q: %w", payload.Status, apperr.ErrValidation)
	}

	a, err := r.analyses.GetByID(ctx, payload.AnalysisID)
	if err != nil {
		return err
	}

	if a.Status.Terminal() {
		log.Warn().
			Str("analysisId", a.ID).
			Str("status", string(a.Status)).
			Msg("Duplicate completion webhook ignored")
		return nil
	}

	if payload.Status == outcomeFailed {
		if _, err := r.analyses.MarkFailed(ctx, a.ID); err != nil {
			return err
		}
		log.Info().
			Str("analysisId", a.ID).
			Str("error", payload.Error).
			Msg("Worker reported analysis failure")
		return nil
	}

	thumbnailKey := objectstore.ThumbnailKey(a.OwnerID, a.ID)
	applied, err := r.analyses.MarkCompleted(ctx, a.ID, thumbnailKey, payload.Metrics)
	if err != nil {
		return err
	}
	if !applied {
		log.Warn().Str("analysisId", a.ID).Msg("Completion raced with another terminal transition, skipping")
		return nil
	}

	// Notification delivery must never revert the completion.
	if err := r.notifier.Notify(ctx, a.OwnerID,
		"analysis_complete",
		"Analysis Complete",
		"Your running analysis is ready.",
		map[string]string{"analysisId": a.ID},
	); err != nil {
		log.Warn().Err(err).Str("analysisId", a.ID).Msg("Failed to create completion notification")
	}

	log.Info().Str("analysisId", a.ID).Msg("Analysis completed")
	return nil
}
