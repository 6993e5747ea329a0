package analysis

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/models"
)

type fakeStore struct {
	failKeys map[string]bool
}

func (f *fakeStore) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://store.test/upload/" + key, nil
}

func (f *fakeStore) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if f.failKeys[key] {
		return "", fmt.Errorf("head %s: %w", key, apperr.ErrArtifactUnavailable)
	}
	return "https://store.test/" + key, nil
}

func (f *fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("get %s: %w", key, apperr.ErrArtifactUnavailable)
}

type fakeSubmitter struct {
	jobs []Job
	err  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, job Job) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

func newAnalysisRepo(t *testing.T) *database.AnalysisRepository {
	t.Helper()
	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "analysis_test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return database.NewAnalysisRepository(db)
}

func createDraft(t *testing.T, repo *database.AnalysisRepository, ownerID string, angles ...models.Angle) *models.Analysis {
	t.Helper()
	a := models.NewAnalysis("", ownerID)
	for _, angle := range angles {
		a.SetSegment(angle, "videos/"+ownerID+"/"+a.ID+"/"+string(angle)+"/clip.mp4")
	}
	if err := repo.Create(context.Background(), a); err != nil {
		t.Fatalf("Failed to create analysis: %v", err)
	}
	return a
}

func TestTrigger_Submit(t *testing.T) {
	repo := newAnalysisRepo(t)
	submitter := &fakeSubmitter{}
	trigger := NewTrigger(repo, &fakeStore{}, submitter, "https://api.test/webhook", time.Hour)
	ctx := context.Background()

	a := createDraft(t, repo, "runner-1", models.AngleNormal, models.AngleRearView)

	if err := trigger.Trigger(ctx, a.ID); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}

	if len(submitter.jobs) != 1 {
		t.Fatalf("Expected one submitted job, got %d", len(submitter.jobs))
	}
	job := submitter.jobs[0]
	if job.AnalysisID != a.ID || job.UserID != "runner-1" {
		t.Errorf("Unexpected job identity: %+v", job)
	}
	if job.WebhookURL != "https://api.test/webhook" {
		t.Errorf("Unexpected webhook URL: %s", job.WebhookURL)
	}
	if job.Videos.Normal == nil || job.Videos.RearView == nil {
		t.Error("Expected presigned URLs for uploaded segments")
	}
	if job.Videos.LeftToRight != nil || job.Videos.RightToLeft != nil {
		t.Error("Segments never uploaded must stay null in the job")
	}

	reloaded, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if reloaded.Status != models.StatusProcessing {
		t.Errorf("Expected PROCESSING after submission, got %s", reloaded.Status)
	}
}

func TestTrigger_MissingNormalSegment(t *testing.T) {
	repo := newAnalysisRepo(t)
	submitter := &fakeSubmitter{}
	trigger := NewTrigger(repo, &fakeStore{}, submitter, "https://api.test/webhook", time.Hour)
	ctx := context.Background()

	a := createDraft(t, repo, "runner-1", models.AngleLeftToRight)

	err := trigger.Trigger(ctx, a.ID)
	if !errors.Is(err, apperr.ErrMissingRequiredSegment) {
		t.Fatalf("Expected missing-segment error, got %v", err)
	}
	if len(submitter.jobs) != 0 {
		t.Error("No job may be submitted without the normal segment")
	}

	reloaded, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if reloaded.Status != models.StatusDraft {
		t.Errorf("Status must be unchanged on gate failure, got %s", reloaded.Status)
	}
}

func TestTrigger_SubmissionFailureMarksFailed(t *testing.T) {
	repo := newAnalysisRepo(t)
	submitter := &fakeSubmitter{err: errors.New("connection refused")}
	trigger := NewTrigger(repo, &fakeStore{}, submitter, "https://api.test/webhook", time.Hour)
	ctx := context.Background()

	a := createDraft(t, repo, "runner-1", models.AngleNormal)

	err := trigger.Trigger(ctx, a.ID)
	if !errors.Is(err, apperr.ErrExternalSubmission) {
		t.Fatalf("Expected submission error, got %v", err)
	}

	reloaded, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if reloaded.Status != models.StatusFailed {
		t.Errorf("Expected FAILED after submission failure, got %s", reloaded.Status)
	}
}

func TestTrigger_PresignFailureMarksFailed(t *testing.T) {
	repo := newAnalysisRepo(t)
	store := &fakeStore{failKeys: make(map[string]bool)}
	submitter := &fakeSubmitter{}
	trigger := NewTrigger(repo, store, submitter, "https://api.test/webhook", time.Hour)
	ctx := context.Background()

	a := createDraft(t, repo, "runner-1", models.AngleNormal)
	store.failKeys[*a.Normal.Key] = true

	err := trigger.Trigger(ctx, a.ID)
	if !errors.Is(err, apperr.ErrExternalSubmission) {
		t.Fatalf("Expected submission error on presign failure, got %v", err)
	}
	if len(submitter.jobs) != 0 {
		t.Error("No job may be submitted when inputs cannot be presigned")
	}
}

func TestTrigger_AlreadyProcessingNoOps(t *testing.T) {
	repo := newAnalysisRepo(t)
	submitter := &fakeSubmitter{}
	trigger := NewTrigger(repo, &fakeStore{}, submitter, "https://api.test/webhook", time.Hour)
	ctx := context.Background()

	a := createDraft(t, repo, "runner-1", models.AngleNormal)

	if err := trigger.Trigger(ctx, a.ID); err != nil {
		t.Fatalf("First trigger failed: %v", err)
	}
	if err := trigger.Trigger(ctx, a.ID); err != nil {
		t.Fatalf("Second trigger should quietly no-op: %v", err)
	}

	if len(submitter.jobs) != 1 {
		t.Errorf("Expected exactly one submission, got %d", len(submitter.jobs))
	}
}

func TestTrigger_RetryAfterFailure(t *testing.T) {
	repo := newAnalysisRepo(t)
	submitter := &fakeSubmitter{err: errors.New("connection refused")}
	trigger := NewTrigger(repo, &fakeStore{}, submitter, "https://api.test/webhook", time.Hour)
	ctx := context.Background()

	a := createDraft(t, repo, "runner-1", models.AngleNormal)

	if err := trigger.Trigger(ctx, a.ID); !errors.Is(err, apperr.ErrExternalSubmission) {
		t.Fatalf("Expected submission error, got %v", err)
	}

	// The worker recovers; a failed analysis can be re-triggered.
	submitter.err = nil
	if err := trigger.Trigger(ctx, a.ID); err != nil {
		t.Fatalf("Retry after failure should succeed: %v", err)
	}

	reloaded, err := repo.GetByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("Failed to reload: %v", err)
	}
	if reloaded.Status != models.StatusProcessing {
		t.Errorf("Expected PROCESSING after retry, got %s", reloaded.Status)
	}
}

func TestTrigger_UnknownAnalysis(t *testing.T) {
	repo := newAnalysisRepo(t)
	trigger := NewTrigger(repo, &fakeStore{}, &fakeSubmitter{}, "https://api.test/webhook", time.Hour)

	err := trigger.Trigger(context.Background(), "missing")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Expected not-found, got %v", err)
	}
}
