package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/movaia/movaia/internal/analysis"
	"github.com/movaia/movaia/internal/apperr"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/models"
	"github.com/movaia/movaia/internal/results"
	"github.com/movaia/movaia/internal/upload"
)

type fakeStore struct{}

func (fakeStore) PresignUpload(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	return "https://store.test/upload/" + key, nil
}

func (fakeStore) PresignDownload(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://store.test/" + key, nil
}

func (fakeStore) Download(ctx context.Context, key string) ([]byte, error) {
	return nil, fmt.Errorf("get %s: %w", key, apperr.ErrArtifactUnavailable)
}

type fakeSubmitter struct {
	jobs []analysis.Job
	err  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, job analysis.Job) error {
	f.jobs = append(f.jobs, job)
	return f.err
}

const testWebhookSecret = "test-secret"

func newTestServer(t *testing.T) (*httptest.Server, *fakeSubmitter) {
	t.Helper()

	db, err := database.NewDB(database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "api_test.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	analysisRepo := database.NewAnalysisRepository(db)
	usageRepo := database.NewUsageRepository(db)
	activityRepo := database.NewActivityLogRepository(db)
	notificationRepo := database.NewNotificationRepository(db)
	athleteRepo := database.NewAthleteRepository(db)

	store := fakeStore{}
	submitter := &fakeSubmitter{}
	trigger := analysis.NewTrigger(analysisRepo, store, submitter, "https://api.test/webhook", time.Hour)
	receiver := analysis.NewReceiver(analysisRepo, notificationRepo)
	coordinator := upload.NewCoordinator(analysisRepo, usageRepo, activityRepo, store, trigger, 15*time.Minute)
	assembler := results.NewAssembler(analysisRepo, store, results.ScreeningRules, time.Hour)

	app := &App{
		Coordinator:   coordinator,
		Trigger:       trigger,
		Receiver:      receiver,
		Assembler:     assembler,
		Athletes:      athleteRepo,
		Notifications: notificationRepo,
		WebhookSecret: testWebhookSecret,
	}

	server := httptest.NewServer(NewRouter(app))
	t.Cleanup(server.Close)
	return server, submitter
}

func doJSON(t *testing.T, method, url, userID string, body interface{}, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, dest interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func TestUploadToCompletionFlow(t *testing.T) {
	server, submitter := newTestServer(t)

	// 1. Request an upload target.
	resp := doJSON(t, http.MethodPost, server.URL+"/api/analyses/upload-url", "runner-1", map[string]string{
		"angle":       "normal",
		"contentType": "video/mp4",
		"fileName":    "morning-run.mp4",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload-url status = %d", resp.StatusCode)
	}
	var target struct {
		UploadURL  string `json:"uploadUrl"`
		StorageKey string `json:"storageKey"`
		AnalysisID string `json:"analysisId"`
	}
	decode(t, resp, &target)
	if target.UploadURL == "" || target.StorageKey == "" || target.AnalysisID == "" {
		t.Fatalf("Incomplete upload target: %+v", target)
	}

	// 2. Confirm the segment as final; this submits the job.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/analyses/confirm-upload", "runner-1", map[string]interface{}{
		"analysisId": target.AnalysisID,
		"angle":      "normal",
		"storageKey": target.StorageKey,
		"isFinal":    true,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm-upload status = %d", resp.StatusCode)
	}
	var confirmed struct {
		Status string `json:"status"`
	}
	decode(t, resp, &confirmed)
	if confirmed.Status != string(models.StatusProcessing) {
		t.Errorf("Status after final confirm = %s, want PROCESSING", confirmed.Status)
	}
	if len(submitter.jobs) != 1 {
		t.Fatalf("Expected one submitted job, got %d", len(submitter.jobs))
	}

	// 3. The worker calls back with a completion.
	resp = doJSON(t, http.MethodPost, server.URL+"/api/analyses/webhook", "", analysis.CompletionPayload{
		AnalysisID: target.AnalysisID,
		UserID:     "runner-1",
		Status:     "completed",
		Metrics:    map[string]float64{"step_rate": 172},
	}, map[string]string{webhookSecretHeader: testWebhookSecret})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("webhook status = %d", resp.StatusCode)
	}

	// 4. The owner reads the completed analysis.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/analyses/"+target.AnalysisID, "runner-1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get analysis status = %d", resp.StatusCode)
	}
	var view struct {
		Status       string  `json:"status"`
		ThumbnailURL *string `json:"thumbnailUrl"`
	}
	decode(t, resp, &view)
	if view.Status != string(models.StatusCompleted) {
		t.Errorf("Final status = %s, want COMPLETED", view.Status)
	}
	if view.ThumbnailURL == nil {
		t.Error("Expected a presigned thumbnail URL on the completed analysis")
	}

	// 5. Completion produced a notification.
	resp = doJSON(t, http.MethodGet, server.URL+"/api/notifications", "runner-1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications status = %d", resp.StatusCode)
	}
	var notifications []struct {
		Type string `json:"type"`
	}
	decode(t, resp, &notifications)
	if len(notifications) != 1 || notifications[0].Type != "analysis_complete" {
		t.Errorf("Unexpected notifications: %+v", notifications)
	}
}

func TestWebhook_RejectsBadSecret(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/analyses/webhook", "", analysis.CompletionPayload{
		AnalysisID: "a-1",
		Status:     "completed",
	}, map[string]string{webhookSecretHeader: "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.StatusCode)
	}
}

func TestHandlers_RequireUserIdentity(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, server.URL+"/api/analyses/", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Status = %d, want 401", resp.StatusCode)
	}
}

func TestConfirmUpload_FinalWithoutNormalConflicts(t *testing.T) {
	server, submitter := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/analyses/confirm-upload", "runner-1", map[string]interface{}{
		"analysisId": "analysis-1",
		"angle":      "left_to_right",
		"storageKey": "videos/runner-1/analysis-1/left_to_right/x.mp4",
		"isFinal":    true,
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Status = %d, want 409", resp.StatusCode)
	}
	if len(submitter.jobs) != 0 {
		t.Error("No job may be submitted without the normal segment")
	}
}

func TestGetAnalysis_StrangerGetsNotFound(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/analyses/confirm-upload", "runner-1", map[string]interface{}{
		"analysisId": "analysis-1",
		"angle":      "normal",
		"storageKey": "videos/runner-1/analysis-1/normal/x.mp4",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm-upload status = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodGet, server.URL+"/api/analyses/analysis-1", "stranger", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", resp.StatusCode)
	}
}

func TestTrigger_WorkerDownReturnsBadGateway(t *testing.T) {
	server, submitter := newTestServer(t)
	submitter.err = fmt.Errorf("connection refused")

	resp := doJSON(t, http.MethodPost, server.URL+"/api/analyses/confirm-upload", "runner-1", map[string]interface{}{
		"analysisId": "analysis-1",
		"angle":      "normal",
		"storageKey": "videos/runner-1/analysis-1/normal/x.mp4",
		"isFinal":    true,
	}, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("Status = %d, want 502", resp.StatusCode)
	}
}

func TestUploadURL_RejectsBadAngle(t *testing.T) {
	server, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, server.URL+"/api/analyses/upload-url", "runner-1", map[string]string{
		"angle":       "sideways",
		"contentType": "video/mp4",
		"fileName":    "run.mp4",
	}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Status = %d, want 200", resp.StatusCode)
	}
}
