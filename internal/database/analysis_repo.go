package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/models"
)

// AnalysisRepository persists the Analysis entity. All mutations are
// single-statement updates keyed by id; the status transitions that must
// not race (claiming PROCESSING, terminal completion) are conditional
// updates that report whether they applied.
type AnalysisRepository struct {
	db *DB
}

func NewAnalysisRepository(db *DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const analysisColumns = `id, owner_id, uploaded_by_coach_id,
	normal_key, normal_uploaded,
	left_to_right_key, left_to_right_uploaded,
	right_to_left_key, right_to_left_uploaded,
	rear_view_key, rear_view_uploaded,
	status, thumbnail_key, notes, tags, metrics, created_at, updated_at`

func (r *AnalysisRepository) Create(ctx context.Context, a *models.Analysis) error {
	tagsJSON, err := json.Marshal(a.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	var metricsJSON *string
	if a.Metrics != nil {
		b, err := json.Marshal(a.Metrics)
		if err != nil {
			return fmt.Errorf("failed to marshal metrics: %w", err)
		}
		s := string(b)
		metricsJSON = &s
	}

	query := `
		INSERT INTO analyses (` + analysisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.db.conn.ExecContext(ctx, query,
		a.ID, a.OwnerID, a.UploadedByCoachID,
		a.Normal.Key, a.Normal.Uploaded,
		a.LeftToRight.Key, a.LeftToRight.Uploaded,
		a.RightToLeft.Key, a.RightToLeft.Uploaded,
		a.RearView.Key, a.RearView.Uploaded,
		a.Status, a.ThumbnailKey, a.Notes, string(tagsJSON), metricsJSON,
		a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*models.Analysis, error) {
	query := `SELECT ` + analysisColumns + ` FROM analyses WHERE id = $1`

	row := r.db.conn.QueryRowContext(ctx, query, id)
	a, err := scanAnalysis(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("analysis %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return a, nil
}

// SetSegment records the storage key for one angle and flips its uploaded
// flag, keeping the two in sync in a single statement.
func (r *AnalysisRepository) SetSegment(ctx context.Context, id string, angle models.Angle, key string) error {
	keyCol, flagCol, err := angleColumns(angle)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`UPDATE analyses SET %s = $1, %s = $2, updated_at = $3 WHERE id = $4`,
		keyCol, flagCol)

	res, err := r.db.conn.ExecContext(ctx, query, key, true, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set segment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("analysis %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// MarkPending moves a draft (or previously failed) analysis to PENDING
// ahead of triggering. Already pending or in-flight records are left alone.
func (r *AnalysisRepository) MarkPending(ctx context.Context, id string) error {
	query := `UPDATE analyses SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)`

	_, err := r.db.conn.ExecContext(ctx, query,
		models.StatusPending, time.Now().UTC(), id,
		models.StatusDraft, models.StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark pending: %w", err)
	}
	return nil
}

// ClaimProcessing atomically claims the transition to PROCESSING. It
// returns false when another submission already holds the claim (or the
// record is gone), so concurrent triggers collapse to one job submission.
func (r *AnalysisRepository) ClaimProcessing(ctx context.Context, id string) (bool, error) {
	query := `UPDATE analyses SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5, $6)`

	res, err := r.db.conn.ExecContext(ctx, query,
		models.StatusProcessing, time.Now().UTC(), id,
		models.StatusDraft, models.StatusPending, models.StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to claim processing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// MarkFailed forces the analysis to FAILED. A completed analysis is never
// demoted; the returned bool reports whether the update applied.
func (r *AnalysisRepository) MarkFailed(ctx context.Context, id string) (bool, error) {
	query := `UPDATE analyses SET status = $1, updated_at = $2
		WHERE id = $3 AND status <> $4`

	res, err := r.db.conn.ExecContext(ctx, query,
		models.StatusFailed, time.Now().UTC(), id, models.StatusCompleted)
	if err != nil {
		return false, fmt.Errorf("failed to mark failed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

// MarkCompleted records the terminal COMPLETED state with the thumbnail
// reference and, when supplied, the computed metrics. The condition on
// non-terminal status makes duplicate webhook deliveries a no-op.
func (r *AnalysisRepository) MarkCompleted(ctx context.Context, id, thumbnailKey string, metrics map[string]float64) (bool, error) {
	var metricsJSON *string
	if metrics != nil {
		b, err := json.Marshal(metrics)
		if err != nil {
			return false, fmt.Errorf("failed to marshal metrics: %w", err)
		}
		s := string(b)
		metricsJSON = &s
	}

	query := `UPDATE analyses SET status = $1, thumbnail_key = $2, metrics = $3, updated_at = $4
		WHERE id = $5 AND status NOT IN ($6, $7)`

	res, err := r.db.conn.ExecContext(ctx, query,
		models.StatusCompleted, thumbnailKey, metricsJSON, time.Now().UTC(), id,
		models.StatusCompleted, models.StatusFailed)
	if err != nil {
		return false, fmt.Errorf("failed to mark completed: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *AnalysisRepository) UpdateNotes(ctx context.Context, id, notes string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`UPDATE analyses SET notes = $1, updated_at = $2 WHERE id = $3`,
		notes, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update notes: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) UpdateTags(ctx context.Context, id string, tags []string) error {
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}
	_, err = r.db.conn.ExecContext(ctx,
		`UPDATE analyses SET tags = $1, updated_at = $2 WHERE id = $3`,
		string(tagsJSON), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update tags: %w", err)
	}
	return nil
}

// List returns the analyses visible to userID (as owner or as the
// uploading coach), newest first, with an optional status filter.
func (r *AnalysisRepository) List(ctx context.Context, userID string, status *models.Status, page, pageSize int) ([]*models.Analysis, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	where := `(owner_id = $1 OR uploaded_by_coach_id = $1)`
	args := []interface{}{userID}
	if status != nil {
		where += ` AND status = $2`
		args = append(args, *status)
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM analyses WHERE ` + where
	if err := r.db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count analyses: %w", err)
	}

	query := fmt.Sprintf(`SELECT `+analysisColumns+` FROM analyses WHERE `+where+`
		ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var analyses []*models.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate analyses: %w", err)
	}

	return analyses, total, nil
}

func angleColumns(angle models.Angle) (keyCol, flagCol string, err error) {
	switch angle {
	case models.AngleNormal:
		return "normal_key", "normal_uploaded", nil
	case models.AngleLeftToRight:
		return "left_to_right_key", "left_to_right_uploaded", nil
	case models.AngleRightToLeft:
		return "right_to_left_key", "right_to_left_uploaded", nil
	case models.AngleRearView:
		return "rear_view_key", "rear_view_uploaded", nil
	default:
		return "", "", fmt.Errorf("unknown angle %q: %w", angle, apperr.ErrValidation)
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAnalysis(row rowScanner) (*models.Analysis, error) {
	a := &models.Analysis{}
	var (
		coachID      sql.NullString
		normalKey    sql.NullString
		ltrKey       sql.NullString
		rtlKey       sql.NullString
		rearKey      sql.NullString
		thumbnailKey sql.NullString
		tagsJSON     string
		metricsJSON  sql.NullString
	)

	err := row.Scan(
		&a.ID, &a.OwnerID, &coachID,
		&normalKey, &a.Normal.Uploaded,
		&ltrKey, &a.LeftToRight.Uploaded,
		&rtlKey, &a.RightToLeft.Uploaded,
		&rearKey, &a.RearView.Uploaded,
		&a.Status, &thumbnailKey, &a.Notes, &tagsJSON, &metricsJSON,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.UploadedByCoachID = nullableString(coachID)
	a.Normal.Key = nullableString(normalKey)
	a.LeftToRight.Key = nullableString(ltrKey)
	a.RightToLeft.Key = nullableString(rtlKey)
	a.RearView.Key = nullableString(rearKey)
	a.ThumbnailKey = nullableString(thumbnailKey)

	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &a.Tags); err != nil {
			a.Tags = []string{}
		}
	}
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if metricsJSON.Valid && metricsJSON.String != "" {
		if err := json.Unmarshal([]byte(metricsJSON.String), &a.Metrics); err != nil {
			a.Metrics = nil
		}
	}

	return a, nil
}

func nullableString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
