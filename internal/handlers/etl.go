package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/martforge/martforge-api/internal/etl"
	"github.com/martforge/martforge-api/internal/etl/jobs"
	"github.com/martforge/martforge-api/internal/models"
	"github.com/martforge/martforge-api/internal/repository"
	"github.com/martforge/martforge-api/internal/scheduler"
)

// ETLHandler exposes the admin surface over the pipeline: manual runs, run
// history, and aggregate stats.
type ETLHandler struct {
	orchestrator *etl.Orchestrator
	scheduler    *scheduler.Scheduler
	catalog      []etl.JobDefinition
	logs         repository.ETLLogRepository
	logger       zerolog.Logger
}

func NewETLHandler(orchestrator *etl.Orchestrator, sched *scheduler.Scheduler, catalog []etl.JobDefinition, logs repository.ETLLogRepository, logger zerolog.Logger) *ETLHandler {
	return &ETLHandler{
		orchestrator: orchestrator,
		scheduler:    sched,
		catalog:      catalog,
		logs:         logs,
		logger:       logger.With().Str("handler", "etl").Logger(),
	}
}

// ListJobs returns the job catalog.
func (h *ETLHandler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	type jobInfo struct {
		Name     string `json:"name"`
		Platform string `json:"platform"`
	}
	out := make([]jobInfo, 0, len(h.catalog))
	for _, def := range h.catalog {
		out = append(out, jobInfo{Name: def.Name, Platform: string(def.Platform)})
	}
	writeJSON(w, http.StatusOK, out)
}

// RunAll kicks off a full pass for one platform (or both when the parameter
// is absent). The pass runs in the background; the request returns as soon
// as it is accepted.
func (h *ETLHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	platforms := []models.PlatformKind{models.PlatformEvolution, models.PlatformVital}
	if raw := r.URL.Query().Get("platform"); raw != "" {
		switch models.PlatformKind(raw) {
		case models.PlatformEvolution:
			platforms = []models.PlatformKind{models.PlatformEvolution}
		case models.PlatformVital:
			platforms = []models.PlatformKind{models.PlatformVital}
		default:
			http.Error(w, "unknown platform: "+raw, http.StatusBadRequest)
			return
		}
	}

	// Detached from the request context: the pass outlives the response.
	go func() {
		ctx := context.Background()
		for _, platform := range platforms {
			h.scheduler.RunPlatformPass(ctx, platform)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// RunJob runs a single catalog job, either for one tenant (org_id query
// parameter) or across all tenants. Runs synchronously so the caller gets
// the outcome.
func (h *ETLHandler) RunJob(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["job"]
	def, ok := jobs.Find(h.catalog, name)
	if !ok {
		http.Error(w, "unknown job: "+name, http.StatusNotFound)
		return
	}

	if raw := r.URL.Query().Get("org_id"); raw != "" {
		orgID, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid org_id", http.StatusBadRequest)
			return
		}
		ok := h.orchestrator.RunForOneTenant(r.Context(), def, orgID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"job":     def.Name,
			"org_id":  orgID,
			"success": ok,
		})
		return
	}

	results := h.orchestrator.RunForAllTenants(r.Context(), def)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"job":     def.Name,
		"summary": etl.Summarize(results),
		"results": results,
	})
}

// ListRuns pages through the run log, newest first.
func (h *ETLHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	runs, err := h.logs.ListRuns(limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list runs")
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// RunStatsHandler returns per-day and total run counts for the dashboard.
func (h *ETLHandler) RunStatsHandler(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", 14)
	if days <= 0 || days > 90 {
		days = 14
	}

	stats, err := h.logs.RunStats(days)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to compute run stats")
		http.Error(w, "failed to compute run stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
