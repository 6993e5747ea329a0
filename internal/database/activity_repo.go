package database

import (
	"context"
	"fmt"

	"github.com/movaia/movaia/internal/models"
)

// ActivityLogRepository is the append-only audit sink for actor-visible
// actions on analyses.
type ActivityLogRepository struct {
	db *DB
}

func NewActivityLogRepository(db *DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

func (r *ActivityLogRepository) Append(ctx context.Context, e *models.ActivityEvent) error {
	query := `
		INSERT INTO activity_events (id, actor_id, analysis_id, action, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.conn.ExecContext(ctx, query,
		e.ID, e.ActorID, e.AnalysisID, e.Action, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append activity event: %w", err)
	}
	return nil
}

func (r *ActivityLogRepository) RecentForAnalysis(ctx context.Context, analysisID string, limit int) ([]*models.ActivityEvent, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}

	query := `
		SELECT id, actor_id, analysis_id, action, detail, created_at
		FROM activity_events
		WHERE analysis_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.conn.QueryContext(ctx, query, analysisID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity events: %w", err)
	}
	defer rows.Close()

	var events []*models.ActivityEvent
	for rows.Next() {
		e := &models.ActivityEvent{}
		if err := rows.Scan(&e.ID, &e.ActorID, &e.AnalysisID, &e.Action, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
