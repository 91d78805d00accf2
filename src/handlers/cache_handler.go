package handlers

import (
	"net/http"
)

// CacheClearer drops every cached entry and reports how many were removed.
type CacheClearer interface {
	Clear() int
}

// ClearCache empties the merchant history cache. A nil cache means caching
// is disabled and the call is a no-op.
func ClearCache(cache CacheClearer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cache == nil {
			writeJSON(w, http.StatusOK, map[string]any{"enabled": false, "cleared": 0})
			return
		}
		cleared := cache.Clear()
		log := requestLogger(r)
		log.Info().Int("cleared", cleared).Msg("Cleared merchant history cache")
		writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "cleared": cleared})
	}
}
