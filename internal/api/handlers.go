package api

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/movaia/movaia/internal/analysis"
	"github.com/movaia/movaia/internal/database"
	"github.com/movaia/movaia/internal/models"
	"github.com/movaia/movaia/internal/results"
	"github.com/movaia/movaia/internal/upload"
)

// userIDHeader carries the authenticated caller's id, injected by the
// session service in front of this process.
const userIDHeader = "X-User-ID"

const webhookSecretHeader = "X-Webhook-Secret"

type App struct {
	Coordinator   *upload.Coordinator
	Trigger       *analysis.Trigger
	Receiver      *analysis.Receiver
	Assembler     *results.Assembler
	Athletes      *database.AthleteRepository
	Notifications *database.NotificationRepository

	// WebhookSecret guards the worker callback endpoint; empty disables
	// the check (local development).
	WebhookSecret string
}

func (app *App) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(userIDHeader)
	if userID == "" {
		httpError(w, http.StatusUnauthorized, "missing user identity")
		return "", false
	}
	return userID, true
}

type uploadURLRequest struct {
	AnalysisID  string `json:"analysisId"`
	AthleteID   string `json:"athleteId"`
	Angle       string `json:"angle"`
	ContentType string `json:"contentType"`
	FileName    string `json:"fileName"`
}

// POST /api/analyses/upload-url
func (app *App) UploadURLHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	var req uploadURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	actor, err := upload.ResolveActor(r.Context(), app.Athletes, userID, req.AthleteID)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	target, err := app.Coordinator.IssueUploadTarget(r.Context(), actor,
		models.Angle(req.Angle), req.ContentType, req.FileName, req.AnalysisID)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, target)
}

type confirmUploadRequest struct {
	AnalysisID string `json:"analysisId"`
	AthleteID  string `json:"athleteId"`
	Angle      string `json:"angle"`
	StorageKey string `json:"storageKey"`
	IsFinal    bool   `json:"isFinal"`
}

// POST /api/analyses/confirm-upload
func (app *App) ConfirmUploadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	var req confirmUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	actor, err := upload.ResolveActor(r.Context(), app.Athletes, userID, req.AthleteID)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	a, err := app.Coordinator.ConfirmSegment(r.Context(), actor,
		req.AnalysisID, models.Angle(req.Angle), req.StorageKey, req.IsFinal)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, a)
}

type triggerRequest struct {
	AnalysisID string `json:"analysisId"`
}

// POST /api/analyses/trigger
func (app *App) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AnalysisID == "" {
		httpError(w, http.StatusBadRequest, "analysisId is required")
		return
	}

	// Visibility check doubles as the authorization gate.
	if _, err := app.Assembler.GetAnalysis(r.Context(), req.AnalysisID, userID); err != nil {
		respondCoreError(w, err)
		return
	}

	if err := app.Trigger.Trigger(r.Context(), req.AnalysisID); err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{"analysisId": req.AnalysisID})
}

// POST /api/analyses/webhook — called back by the analysis worker.
func (app *App) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if app.WebhookSecret != "" {
		got := r.Header.Get(webhookSecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(app.WebhookSecret)) != 1 {
			httpError(w, http.StatusUnauthorized, "invalid webhook secret")
			return
		}
	}

	var payload analysis.CompletionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httpError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	log.Info().
		Str("analysisId", payload.AnalysisID).
		Str("status", payload.Status).
		Msg("Completion webhook received")

	if err := app.Receiver.Complete(r.Context(), payload); err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/analyses?page=&pageSize=&status=
func (app *App) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))

	var statusFilter *models.Status
	if s := r.URL.Query().Get("status"); s != "" {
		status := models.Status(s)
		statusFilter = &status
	}

	result, err := app.Assembler.ListAnalyses(r.Context(), userID, page, pageSize, statusFilter)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GET /api/analyses/{analysisID}
func (app *App) GetAnalysisHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	view, err := app.Assembler.GetAnalysis(r.Context(), chi.URLParam(r, "analysisID"), userID)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GET /api/analyses/{analysisID}/files
func (app *App) GetArtifactsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	view, err := app.Assembler.GetArtifacts(r.Context(), chi.URLParam(r, "analysisID"), userID)
	if err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// GET /api/notifications
func (app *App) ListNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	notifications, err := app.Notifications.ListForUser(r.Context(), userID, limit)
	if err != nil {
		respondCoreError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}

	respondJSON(w, http.StatusOK, notifications)
}

// POST /api/notifications/{notificationID}/read
func (app *App) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := app.requireUser(w, r)
	if !ok {
		return
	}

	if err := app.Notifications.MarkRead(r.Context(), chi.URLParam(r, "notificationID"), userID); err != nil {
		respondCoreError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
