package database

import (
	"context"
	"database/sql"
	"fmt"
)

// AthleteRepository answers the coach-to-athlete management relationship
// question the upload coordinator needs. Account CRUD lives in the
// credential service, outside this repo.
type AthleteRepository struct {
	db *DB
}

func NewAthleteRepository(db *DB) *AthleteRepository {
	return &AthleteRepository{db: db}
}

// Manages reports whether coachID administers athleteID.
func (r *AthleteRepository) Manages(ctx context.Context, coachID, athleteID string) (bool, error) {
	var one int
	err := r.db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM coach_athletes WHERE coach_id = $1 AND athlete_id = $2`,
		coachID, athleteID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query coach relationship: %w", err)
	}
	return true, nil
}

// Link records a management relationship. Used by provisioning and tests.
func (r *AthleteRepository) Link(ctx context.Context, coachID, athleteID string) error {
	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO coach_athletes (coach_id, athlete_id) VALUES ($1, $2)
		 ON CONFLICT (coach_id, athlete_id) DO NOTHING`,
		coachID, athleteID)
	if err != nil {
		return fmt.Errorf("failed to link athlete: %w", err)
	}
	return nil
}
