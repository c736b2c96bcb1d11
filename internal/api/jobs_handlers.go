package api

import (
	"context"
	"net/http"

	"gymslots/internal/entities"
)

type ReminderRunner interface {
	ProcessPendingReminders(ctx context.Context) (*entities.DispatchResult, error)
	CancelViaToken(ctx context.Context, token string) error
	Statistics(ctx context.Context) (map[string]int, error)
}

type Sweeper interface {
	SweepFinished(ctx context.Context) error
}

// JobsHandler exposes the batch jobs over HTTP so an operator (or an
// external scheduler) can trigger and inspect them without waiting for the
// next tick.
type JobsHandler struct {
	Reminders       ReminderRunner
	Sweep           Sweeper
	FrontendBaseURL string
}

func NewJobsHandler(reminders ReminderRunner, sweep Sweeper, frontendBaseURL string) *JobsHandler {
	return &JobsHandler{Reminders: reminders, Sweep: sweep, FrontendBaseURL: frontendBaseURL}
}

// SendReminders handles POST /jobs/send-reminders.
func (h *JobsHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.Reminders.ProcessPendingReminders(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Reminder batch completed",
		"result":  result,
	})
}

// Status handles GET /jobs/status.
func (h *JobsHandler) Status(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Reminders.Statistics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reminders": stats})
}

// SweepFinished handles POST /jobs/sweep-finished.
func (h *JobsHandler) SweepFinished(w http.ResponseWriter, r *http.Request) {
	if err := h.Sweep.SweepFinished(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sweep completed"})
}

// CancelReservation handles GET /jobs/cancel-reservation?token=... It is the
// only unauthenticated booking mutation: the signed token in the email link
// is the credential. On success the browser is sent to the frontend.
func (h *JobsHandler) CancelReservation(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "Missing token", http.StatusBadRequest)
		return
	}

	if err := h.Reminders.CancelViaToken(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, h.FrontendBaseURL+"/cancel-success", http.StatusFound)
}
