package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/retailpulse/pulse/internal/domain"
	"github.com/retailpulse/pulse/internal/modules/dashboard"
)

// DashboardHandlers serves the aggregated dashboard API.
type DashboardHandlers struct {
	dashboard *dashboard.Service
	log       zerolog.Logger
}

// NewDashboardHandlers creates dashboard handlers.
func NewDashboardHandlers(svc *dashboard.Service, log zerolog.Logger) *DashboardHandlers {
	return &DashboardHandlers{
		dashboard: svc,
		log:       log.With().Str("component", "dashboard_handlers").Logger(),
	}
}

// HandleOverview returns the aggregated dashboard for the active timeframe.
// GET /api/dashboard
func (h *DashboardHandlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	result, err := h.dashboard.Overview(r.Context(), force)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build dashboard overview")
		writeError(w, http.StatusServiceUnavailable, "failed to build dashboard")
		return
	}

	tf, custom := h.dashboard.Timeframe()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe":    tf,
		"custom_range": custom,
		"stats":        result.Stats,
		"charts":       result.ChartData,
		"peak_hours":   result.PeakHours,
		"heatmap":      result.Heatmap,
		"skipped":      result.Skipped,
	})
}

// HandleRefresh forces a snapshot refetch and recompute.
// POST /api/dashboard/refresh
func (h *DashboardHandlers) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.dashboard.Overview(r.Context(), true)
	if err != nil {
		h.log.Error().Err(err).Msg("Forced refresh failed")
		writeError(w, http.StatusServiceUnavailable, "refresh failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "refreshed",
		"stats":   result.Stats,
		"skipped": result.Skipped,
	})
}

// HandleCacheStatus reports cache presence, age and expiry.
// GET /api/dashboard/cache
func (h *DashboardHandlers) HandleCacheStatus(w http.ResponseWriter, r *http.Request) {
	status := h.dashboard.CacheStatus()
	body := map[string]interface{}{
		"has_cache":  status.HasCache,
		"age_ms":     status.Age.Milliseconds(),
		"is_expired": status.IsExpired,
		"is_loading": h.dashboard.IsLoading(),
	}
	if err := h.dashboard.Err(); err != nil {
		body["last_error"] = err.Error()
	}
	writeJSON(w, http.StatusOK, body)
}

// HandleInvalidate marks the cache stale without dropping it.
// POST /api/dashboard/cache/invalidate
func (h *DashboardHandlers) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	h.dashboard.InvalidateCache()
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// HandleGetTimeframe returns the active timeframe selection.
// GET /api/dashboard/timeframe
func (h *DashboardHandlers) HandleGetTimeframe(w http.ResponseWriter, r *http.Request) {
	tf, custom := h.dashboard.Timeframe()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe":    tf,
		"custom_range": custom,
	})
}

// HandleSetTimeframe switches the active timeframe.
// PUT /api/dashboard/timeframe
func (h *DashboardHandlers) HandleSetTimeframe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Timeframe string `json:"timeframe"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tf := domain.Timeframe(req.Timeframe)
	if !tf.Valid() {
		writeError(w, http.StatusBadRequest, "unknown timeframe")
		return
	}
	if tf == domain.TimeframeCustom {
		if _, custom := h.dashboard.Timeframe(); custom == nil {
			writeError(w, http.StatusBadRequest, "no custom range set, use PUT /api/dashboard/range")
			return
		}
	}

	result, err := h.dashboard.SetTimeframe(r.Context(), tf)
	if err != nil {
		h.log.Error().Err(err).Str("timeframe", req.Timeframe).Msg("Failed to set timeframe")
		writeError(w, http.StatusServiceUnavailable, "failed to apply timeframe")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe": tf,
		"stats":     result.Stats,
	})
}

// HandleSetCustomRange stores a custom date range and switches to it.
// PUT /api/dashboard/range
func (h *DashboardHandlers) HandleSetCustomRange(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Start string `json:"start"`
		End   string `json:"end"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, err := parseDate(req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start date")
		return
	}
	end, err := parseDate(req.End)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid end date")
		return
	}
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "end date precedes start date")
		return
	}

	result, err := h.dashboard.SetCustomRange(r.Context(), domain.DateRange{Start: start, End: end})
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to set custom range")
		writeError(w, http.StatusServiceUnavailable, "failed to apply custom range")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe": domain.TimeframeCustom,
		"stats":     result.Stats,
	})
}

// parseDate accepts RFC3339 timestamps or bare YYYY-MM-DD dates.
func parseDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
