package models

import (
	"time"

	"github.com/google/uuid"
)

// Angle identifies one of the camera perspectives of a running video.
type Angle string

const (
	AngleNormal      Angle = "normal"
	AngleLeftToRight Angle = "left_to_right"
	AngleRightToLeft Angle = "right_to_left"
	AngleRearView    Angle = "rear_view"
)

// Angles lists every supported angle in canonical order.
var Angles = []Angle{AngleNormal, AngleLeftToRight, AngleRightToLeft, AngleRearView}

func ValidAngle(a Angle) bool {
	switch a {
	case AngleNormal, AngleLeftToRight, AngleRightToLeft, AngleRearView:
		return true
	}
	return false
}

// Status is the lifecycle state of an analysis.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func ValidStatus(s Status) bool {
	switch s {
	case StatusDraft, StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Segment is one camera angle's upload slot on an analysis.
// Invariant: Uploaded is true iff Key is non-nil.
type Segment struct {
	Key      *string `json:"key"`
	Uploaded bool    `json:"uploaded"`
}

// Analysis tracks one runner's submitted video(s) through upload,
// processing, and result stages.
type Analysis struct {
	ID string `json:"id"`

	// OwnerID is the athlete the analysis is for. UploadedByCoachID is set
	// when a coach performed the upload on the athlete's behalf; in that
	// case the coach must manage the athlete.
	OwnerID           string  `json:"ownerId"`
	UploadedByCoachID *string `json:"uploadedByCoachId,omitempty"`

	Normal      Segment `json:"normal"`
	LeftToRight Segment `json:"leftToRight"`
	RightToLeft Segment `json:"rightToLeft"`
	RearView    Segment `json:"rearView"`

	Status Status `json:"status"`

	ThumbnailKey *string            `json:"thumbnailKey,omitempty"`
	Notes        string             `json:"notes"`
	Tags         []string           `json:"tags"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewAnalysis returns a DRAFT analysis owned by ownerID. If id is empty a
// fresh one is generated.
func NewAnalysis(id, ownerID string) *Analysis {
	if id == "" {
		id = uuid.New().String()
	}
	now := time.Now().UTC()
	return &Analysis{
		ID:        id,
		OwnerID:   ownerID,
		Status:    StatusDraft,
		Tags:      []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Segment returns the slot for the given angle.
func (a *Analysis) Segment(angle Angle) Segment {
	switch angle {
	case AngleLeftToRight:
		return a.LeftToRight
	case AngleRightToLeft:
		return a.RightToLeft
	case AngleRearView:
		return a.RearView
	default:
		return a.Normal
	}
}

// SetSegment records an uploaded storage key for the given angle, keeping
// the uploaded flag in sync with the key.
func (a *Analysis) SetSegment(angle Angle, key string) {
	seg := Segment{Key: &key, Uploaded: true}
	switch angle {
	case AngleLeftToRight:
		a.LeftToRight = seg
	case AngleRightToLeft:
		a.RightToLeft = seg
	case AngleRearView:
		a.RearView = seg
	default:
		a.Normal = seg
	}
}
