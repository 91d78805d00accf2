package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"spendwatch-server/src/anomaly"
	"spendwatch-server/src/middleware"
	"spendwatch-server/src/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSpaceID = "6f1c1e9e-2b7a-4c89-9d1f-3c1f0e8b7a10"

type fakeService struct {
	anomalies []models.Anomaly
	summary   *models.Summary
	err       error

	gotSpace string
	gotUser  string
	gotOpts  anomaly.Options
}

func (f *fakeService) DetectAnomalies(ctx context.Context, spaceID, userID string, opts anomaly.Options) ([]models.Anomaly, error) {
	f.gotSpace, f.gotUser, f.gotOpts = spaceID, userID, opts
	return f.anomalies, f.err
}

func (f *fakeService) GetAnomalySummary(ctx context.Context, spaceID, userID string) (*models.Summary, error) {
	f.gotSpace, f.gotUser = spaceID, userID
	return f.summary, f.err
}

func serve(t *testing.T, pattern string, h http.HandlerFunc, target string, userID string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get(pattern, h)
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != "" {
		req = req.WithContext(middleware.WithUser(req.Context(), userID, false))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetAnomalies(t *testing.T) {
	amount := decimal.RequireFromString("-450.00")
	svc := &fakeService{anomalies: []models.Anomaly{{
		Type:        models.AnomalyUnusualAmount,
		Severity:    models.SeverityHigh,
		Amount:      &amount,
		Description: "unusual",
		Date:        time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	}}}

	rec := serve(t, "/spaces/{space_id}/anomalies", GetAnomalies(svc),
		"/spaces/"+testSpaceID+"/anomalies?days=14&limit=5", "user-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, testSpaceID, svc.gotSpace)
	assert.Equal(t, "user-1", svc.gotUser)
	assert.Equal(t, anomaly.Options{Days: 14, Limit: 5}, svc.gotOpts)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "unusual_amount", body[0]["type"])
	assert.Equal(t, "high", body[0]["severity"])
	assert.Equal(t, "-450", body[0]["amount"])
}

func TestGetAnomalies_DefaultsToEngineOptions(t *testing.T) {
	svc := &fakeService{anomalies: []models.Anomaly{}}
	rec := serve(t, "/spaces/{space_id}/anomalies", GetAnomalies(svc), "/spaces/"+testSpaceID+"/anomalies", "user-1")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, anomaly.Options{}, svc.gotOpts)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestGetAnomalies_Errors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		user   string
		err    error
		status int
	}{
		{"unauthenticated", "/spaces/" + testSpaceID + "/anomalies", "", nil, http.StatusUnauthorized},
		{"bad space id", "/spaces/not-a-uuid/anomalies", "user-1", nil, http.StatusBadRequest},
		{"bad days", "/spaces/" + testSpaceID + "/anomalies?days=0", "user-1", nil, http.StatusBadRequest},
		{"bad limit", "/spaces/" + testSpaceID + "/anomalies?limit=lots", "user-1", nil, http.StatusBadRequest},
		{"forbidden", "/spaces/" + testSpaceID + "/anomalies", "user-1", fmt.Errorf("no membership: %w", anomaly.ErrForbidden), http.StatusForbidden},
		{"invalid options", "/spaces/" + testSpaceID + "/anomalies", "user-1", anomaly.ErrInvalidOptions, http.StatusBadRequest},
		{"query failure", "/spaces/" + testSpaceID + "/anomalies", "user-1", errors.New("connection reset"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{err: tt.err}
			rec := serve(t, "/spaces/{space_id}/anomalies", GetAnomalies(svc), tt.target, tt.user)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotContains(t, rec.Body.String(), "connection reset")
		})
	}
}

func TestGetAnomalySummary(t *testing.T) {
	svc := &fakeService{summary: &models.Summary{
		TotalCount:      2,
		BySeverity:      map[models.Severity]int{models.SeverityHigh: 1, models.SeverityMedium: 1, models.SeverityLow: 0},
		ByType:          map[models.AnomalyType]int{models.AnomalyDuplicateCharge: 2},
		TotalImpact:     decimal.RequireFromString("120.50"),
		RecentAnomalies: []models.Anomaly{},
	}}

	rec := serve(t, "/spaces/{space_id}/anomalies/summary", GetAnomalySummary(svc),
		"/spaces/"+testSpaceID+"/anomalies/summary", "user-1")

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(2), body["total_count"])
	assert.Equal(t, "120.5", body["total_impact"])
	assert.Equal(t, map[string]any{"high": float64(1), "medium": float64(1), "low": float64(0)}, body["by_severity"])
}

func TestGetAnomalySummary_Forbidden(t *testing.T) {
	svc := &fakeService{err: anomaly.ErrForbidden}
	rec := serve(t, "/spaces/{space_id}/anomalies/summary", GetAnomalySummary(svc),
		"/spaces/"+testSpaceID+"/anomalies/summary", "user-1")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type fakeCache struct{ entries int }

func (c *fakeCache) Clear() int {
	n := c.entries
	c.entries = 0
	return n
}

func TestClearCache(t *testing.T) {
	rec := httptest.NewRecorder()
	ClearCache(&fakeCache{entries: 3}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled":true,"cleared":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	ClearCache(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.JSONEq(t, `{"enabled":false,"cleared":0}`, rec.Body.String())
}
