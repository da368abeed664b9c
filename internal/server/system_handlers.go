package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/marketdata/internal/cache"
	"github.com/aristath/marketdata/internal/database"
	"github.com/aristath/marketdata/internal/scheduler"
)

// DatabaseStats reports durable store statistics
type DatabaseStats interface {
	GetStats() (*database.Stats, error)
}

// RecordCounter counts stored observations per namespace
type RecordCounter interface {
	CountByNamespace(ctx context.Context) (map[string]int64, error)
}

// CacheStats reports cache store counters
type CacheStats interface {
	Stats() cache.Stats
}

// InFlightCounter reports upstream fetches currently running
type InFlightCounter interface {
	InFlight() int
}

// JobRunner lists and triggers scheduled jobs
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunByName(name string) error
}

// HostStats samples host CPU and memory usage in percent
type HostStats interface {
	Sample() (cpuPercent, memPercent float64, err error)
}

// SystemDeps are the collaborators of the system handlers
type SystemDeps struct {
	DB        DatabaseStats
	Records   RecordCounter
	Cache     CacheStats
	InFlight  InFlightCounter
	Jobs      JobRunner
	HostStats HostStats
}

// SystemHandlers serves status and job endpoints
type SystemHandlers struct {
	deps        SystemDeps
	startupTime time.Time
	now         func() time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(deps SystemDeps, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		deps:        deps,
		startupTime: time.Now(),
		now:         time.Now,
		log:         log.With().Str("handler", "system").Logger(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemPercent    float64          `json:"mem_percent"`
	Database      *database.Stats  `json:"database,omitempty"`
	Records       map[string]int64 `json:"records"`
	Cache         cache.Stats      `json:"cache"`
	InFlight      int              `json:"in_flight"`
	Jobs          int              `json:"jobs"`
	Warnings      []string         `json:"warnings,omitempty"`
	Timestamp     string           `json:"timestamp"`
}

// Snapshot collects the current system status. Failing probes degrade the
// status and are listed as warnings.
func (h *SystemHandlers) Snapshot(ctx context.Context) SystemStatusResponse {
	now := h.now()
	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(now.Sub(h.startupTime).Seconds()),
		Records:       map[string]int64{},
		Timestamp:     now.Format(time.RFC3339),
	}
	warn := func(probe string, err error) {
		h.log.Warn().Err(err).Str("probe", probe).Msg("System status probe failed")
		response.Status = "degraded"
		response.Warnings = append(response.Warnings, probe+": "+err.Error())
	}

	if h.deps.HostStats != nil {
		cpuPercent, memPercent, err := h.deps.HostStats.Sample()
		if err != nil {
			warn("host", err)
		}
		response.CPUPercent, response.MemPercent = cpuPercent, memPercent
	}

	if stats, err := h.deps.DB.GetStats(); err != nil {
		warn("database", err)
	} else {
		response.Database = stats
	}

	if counts, err := h.deps.Records.CountByNamespace(ctx); err != nil {
		warn("records", err)
	} else {
		response.Records = counts
	}

	response.Cache = h.deps.Cache.Stats()
	response.InFlight = h.deps.InFlight.InFlight()
	response.Jobs = len(h.deps.Jobs.Jobs())

	return response
}

// HandleSystemStatus returns comprehensive system status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")
	writeJSON(w, h.log, http.StatusOK, h.Snapshot(r.Context()))
}

// HandleJobsStatus returns every registered job with its schedule and last run
func (h *SystemHandlers) HandleJobsStatus(w http.ResponseWriter, r *http.Request) {
	jobs := h.deps.Jobs.Jobs()
	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"jobs":  jobs,
		"count": len(jobs),
	})
}

// HandleRunJob runs a registered job immediately
// POST /api/system/jobs/{name}/run
func (h *SystemHandlers) HandleRunJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	err := h.deps.Jobs.RunByName(name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		http.Error(w, "Unknown job: "+name, http.StatusNotFound)
		return
	case err != nil:
		writeJSON(w, h.log, http.StatusInternalServerError, map[string]interface{}{
			"status": "error",
			"job":    name,
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, h.log, http.StatusOK, map[string]interface{}{
		"status": "success",
		"job":    name,
	})
}

// gopsutilStats samples the host with gopsutil
type gopsutilStats struct{}

// Sample measures CPU over 100ms so the status call stays fast
func (gopsutilStats) Sample() (float64, float64, error) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, 0, err
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		return 0, 0, err
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent, nil
}
