package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/movaia/movaia/internal/models"
)

// UsageRepository tracks finalized uploads per user per calendar month.
type UsageRepository struct {
	db *DB
}

func NewUsageRepository(db *DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// IncrementMonthly bumps the user's counter for the given month, creating
// the row if absent. The upsert-increment is a single statement so
// concurrent finalizations by the same user never lose updates.
func (r *UsageRepository) IncrementMonthly(ctx context.Context, userID, month string) error {
	query := `
		INSERT INTO usage_records (user_id, month, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, month)
		DO UPDATE SET count = usage_records.count + 1`

	_, err := r.db.conn.ExecContext(ctx, query, userID, month)
	if err != nil {
		return fmt.Errorf("failed to increment usage: %w", err)
	}
	return nil
}

// UsageForMonth returns the user's counter for the month, zero if no
// uploads were finalized.
func (r *UsageRepository) UsageForMonth(ctx context.Context, userID, month string) (*models.UsageRecord, error) {
	record := &models.UsageRecord{UserID: userID, Month: month}

	err := r.db.conn.QueryRowContext(ctx,
		`SELECT count FROM usage_records WHERE user_id = $1 AND month = $2`,
		userID, month).Scan(&record.Count)
	if err == sql.ErrNoRows {
		return record, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}
	return record, nil
}
