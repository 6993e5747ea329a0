package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", HealthHandler)

	r.Route("/api/analyses", func(r chi.Router) {
		r.Post("/upload-url", app.UploadURLHandler)
		r.Post("/confirm-upload", app.ConfirmUploadHandler)
		r.Post("/trigger", app.TriggerHandler)
		r.Post("/webhook", app.WebhookHandler)
		r.Get("/", app.ListAnalysesHandler)
		r.Get("/{analysisID}", app.GetAnalysisHandler)
		r.Get("/{analysisID}/files", app.GetArtifactsHandler)
	})

	r.Route("/api/notifications", func(r chi.Router) {
		r.Get("/", app.ListNotificationsHandler)
		r.Post("/{notificationID}/read", app.MarkNotificationReadHandler)
	})

	return r
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
