package webapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"smartagri-server-go/internal/platform/storage"
)

// SystemService reports service health and recent diagnosis activity.
type SystemService struct {
	records   *storage.Repository
	startedAt time.Time
	version   string
}

// NewSystemService creates the handler set. records may be nil.
func NewSystemService(records *storage.Repository, version string) *SystemService {
	return &SystemService{
		records:   records,
		startedAt: time.Now(),
		version:   version,
	}
}

// Register adds the system routes to the API group.
func (s *SystemService) Register(apiGroup *gin.RouterGroup) {
	group := apiGroup.Group("/system")
	group.GET("/health", s.handleHealth)
	group.GET("/records", s.handleRecords)
}

func (s *SystemService) handleHealth(c *gin.Context) {
	info := gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		info["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info["memory_percent"] = vm.UsedPercent
	}

	respondSuccess(c, http.StatusOK, info, "")
}

func (s *SystemService) handleRecords(c *gin.Context) {
	if s.records == nil {
		respondError(c, http.StatusServiceUnavailable, "record store is not configured", nil)
		return
	}
	records, err := s.records.Recent(c.Request.Context(), 20)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "failed to load records", nil)
		return
	}
	respondSuccess(c, http.StatusOK, records, "")
}
