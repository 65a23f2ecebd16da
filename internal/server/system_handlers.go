package server

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/retailpulse/pulse/internal/database"
)

// SystemHandlers exposes process and storage health for the ops panel.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases map[string]*database.DB
	startedAt time.Time
}

// NewSystemHandlers creates system monitoring handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases map[string]*database.DB) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("component", "system_handlers").Logger(),
		dataDir:   dataDir,
		databases: databases,
		startedAt: time.Now(),
	}
}

// SystemStatsResponse reports process resource usage.
type SystemStatsResponse struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsedMB  float64 `json:"memory_used_mb"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HandleSystemStats returns CPU and memory usage.
// GET /api/system/stats
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent, memUsedMB := h.getSystemStats()

	writeJSON(w, http.StatusOK, SystemStatsResponse{
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		MemoryUsedMB:  memUsedMB,
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	})
}

// getSystemStats calculates CPU and RAM usage percentages.
// Uses a short 100ms sampling interval so the endpoint responds fast enough
// for a 2s polling client.
func (h *SystemHandlers) getSystemStats() (float64, float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent, float64(memStat.Used) / 1024 / 1024
}

// DatabaseStatsEntry describes one database file.
type DatabaseStatsEntry struct {
	SizeMB  float64 `json:"size_mb"`
	Healthy bool    `json:"healthy"`
}

// HandleDatabaseStats returns size and health per database.
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]DatabaseStatsEntry, len(h.databases))

	for name, db := range h.databases {
		if db == nil {
			continue
		}

		entry := DatabaseStatsEntry{Healthy: true}
		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Warn().Err(err).Str("database", name).Msg("Database quick check failed")
			entry.Healthy = false
		}

		var pageCount, pageSize int64
		if err := db.QueryRow("PRAGMA page_count").Scan(&pageCount); err == nil {
			if err := db.QueryRow("PRAGMA page_size").Scan(&pageSize); err == nil {
				entry.SizeMB = float64(pageCount*pageSize) / 1024 / 1024
			}
		}

		stats[name] = entry
	}

	writeJSON(w, http.StatusOK, stats)
}

// DiskUsageResponse represents disk usage statistics
type DiskUsageResponse struct {
	DataDirMB float64 `json:"data_dir_mb"`
	LogsDirMB float64 `json:"logs_dir_mb"`
	TotalMB   float64 `json:"total_mb"`
}

// HandleDiskUsage returns disk usage statistics.
// GET /api/system/disk
func (h *SystemHandlers) HandleDiskUsage(w http.ResponseWriter, r *http.Request) {
	dataDirSize := h.getDirSize(h.dataDir)
	logsDirSize := h.getDirSize(filepath.Join(h.dataDir, "logs"))

	writeJSON(w, http.StatusOK, DiskUsageResponse{
		DataDirMB: dataDirSize,
		LogsDirMB: logsDirSize,
		TotalMB:   dataDirSize + logsDirSize,
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}
