package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"spendwatch-server/src/anomaly"
	"spendwatch-server/src/logger"
	"spendwatch-server/src/middleware"
	"spendwatch-server/src/models"
	"spendwatch-server/src/util"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AnomalyService is the part of anomaly.Engine the handlers need.
type AnomalyService interface {
	DetectAnomalies(ctx context.Context, spaceID, userID string, opts anomaly.Options) ([]models.Anomaly, error)
	GetAnomalySummary(ctx context.Context, spaceID, userID string) (*models.Summary, error)
}

func GetAnomalies(svc AnomalyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, spaceID, ok := spaceRequest(w, r)
		if !ok {
			return
		}
		log := requestLogger(r).With().Str("user_id", userID).Str("space_id", spaceID).Logger()

		days, err := util.ParseDays(r.URL.Query().Get("days"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		limit, err := util.ParseLimit(r.URL.Query().Get("limit"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		anomalies, err := svc.DetectAnomalies(r.Context(), spaceID, userID, anomaly.Options{Days: days, Limit: limit})
		if err != nil {
			writeServiceError(w, log, err, "failed to detect anomalies")
			return
		}
		log.Info().Int("count", len(anomalies)).Int("days", days).Msg("Detected anomalies")
		writeJSON(w, http.StatusOK, anomalies)
	}
}

func GetAnomalySummary(svc AnomalyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, spaceID, ok := spaceRequest(w, r)
		if !ok {
			return
		}
		log := requestLogger(r).With().Str("user_id", userID).Str("space_id", spaceID).Logger()

		summary, err := svc.GetAnomalySummary(r.Context(), spaceID, userID)
		if err != nil {
			writeServiceError(w, log, err, "failed to summarize anomalies")
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func spaceRequest(w http.ResponseWriter, r *http.Request) (userID, spaceID string, ok bool) {
	userID, ok = middleware.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}
	spaceID = chi.URLParam(r, "space_id")
	if !util.ValidateSpaceID(spaceID) {
		log := requestLogger(r)
		log.Warn().Str("user_id", userID).Str("space_id", spaceID).Msg("Invalid space id param")
		http.Error(w, "invalid space id", http.StatusBadRequest)
		return "", "", false
	}
	return userID, spaceID, true
}

func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	switch {
	case errors.Is(err, anomaly.ErrForbidden):
		log.Warn().Err(err).Msg("Space access denied")
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, anomaly.ErrInvalidOptions), errors.Is(err, util.ErrInvalidParam):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Error().Err(err).Msg(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func requestLogger(r *http.Request) zerolog.Logger {
	return logger.FromContext(r.Context(), zerolog.Nop())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
