package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"ai-voice-command-service/internal/models"
)

const maxTranscriptBody = 16 * 1024

// Submitter accepts operator-injected transcript text.
type Submitter interface {
	Submit(ctx context.Context, text, source string) (models.TranscriptEvent, error)
}

// ReadinessFunc reports whether the service is ready to take commands.
type ReadinessFunc func() bool

type transcriptRequest struct {
	Text string `json:"text"`
}

type transcriptResponse struct {
	EventID string `json:"eventId"`
	Status  string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the ops HTTP router for the service.
func NewRouter(submitter Submitter, ready ReadinessFunc) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		if ready != nil && !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/transcripts", submitTranscript(submitter))
	})

	return r
}

// submitTranscript feeds a text command into the transcript stream as if it had been spoken.
func submitTranscript(submitter Submitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if submitter == nil {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "transcript stream unavailable"})
			return
		}

		var req transcriptRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTranscriptBody)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		text := strings.TrimSpace(req.Text)
		if text == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
			return
		}

		ev, err := submitter.Submit(r.Context(), text, "http")
		if err != nil {
			status := http.StatusServiceUnavailable
			if errors.Is(err, context.Canceled) {
				status = http.StatusRequestTimeout
			}
			log.Warn().
				Err(err).
				Str("requestId", middleware.GetReqID(r.Context())).
				Msg("Transcript submission rejected")
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}

		writeJSON(w, http.StatusAccepted, transcriptResponse{EventID: ev.ID, Status: "accepted"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
