package upload

import (
	"context"
	"fmt"

	"github.com/movaia/movaia/internal/apperr"
)

// Actor captures who an upload is for and who performed it. A coach
// uploading for a managed athlete produces an analysis owned by the
// athlete but attributed to the coach; resolving this once at the boundary
// keeps role checks out of the coordinator itself.
type Actor struct {
	OwnerID string
	CoachID *string
}

// OwnerActor is a user uploading for themselves.
func OwnerActor(userID string) Actor {
	return Actor{OwnerID: userID}
}

// CoachActor is a coach uploading on a managed athlete's behalf.
func CoachActor(coachID, athleteID string) Actor {
	return Actor{OwnerID: athleteID, CoachID: &coachID}
}

// ActingUserID is the user who performed the action.
func (a Actor) ActingUserID() string {
	if a.CoachID != nil {
		return *a.CoachID
	}
	return a.OwnerID
}

// RelationshipChecker answers whether a coach manages an athlete.
type RelationshipChecker interface {
	Manages(ctx context.Context, coachID, athleteID string) (bool, error)
}

// ResolveActor turns the acting user plus an optional target athlete into
// an Actor. A coach without a management relationship to the athlete gets
// not-found, never forbidden, so existence is not leaked.
func ResolveActor(ctx context.Context, athletes RelationshipChecker, actingUserID, athleteID string) (Actor, error) {
	if actingUserID == "" {
		return Actor{}, fmt.Errorf("acting user is required: %w", apperr.ErrValidation)
	}
	if athleteID == "" || athleteID == actingUserID {
		return OwnerActor(actingUserID), nil
	}

	manages, err := athletes.Manages(ctx, actingUserID, athleteID)
	if err != nil {
		return Actor{}, fmt.Errorf("checking coach relationship: %w", err)
	}
	if !manages {
		return Actor{}, fmt.Errorf("athlete %s: %w", athleteID, apperr.ErrNotFound)
	}
	return CoachActor(actingUserID, athleteID), nil
}
