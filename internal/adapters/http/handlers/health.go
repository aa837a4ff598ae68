// Package handlers provides HTTP request handlers for the service.
package handlers

import (
	"net/http"
	"runtime"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jsamuelsen/quotebook/internal/ports"
)

// BuildInfo describes the running binary. Version, Commit and BuildTime
// come from -ldflags; Commit and BuildTime fall back to the VCS stamp the Go
// toolchain embeds when they were not injected.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
}

// NewBuildInfo creates a BuildInfo for the running Go version.
func NewBuildInfo(version, commit, buildTime string) BuildInfo {
	bi := BuildInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		bi.fillFromVCS(info.Settings)
	}

	return bi
}

func (bi *BuildInfo) fillFromVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			if unset(bi.Commit) {
				bi.Commit = s.Value
			}
		case "vcs.time":
			if unset(bi.BuildTime) {
				bi.BuildTime = s.Value
			}
		}
	}
}

func unset(v string) bool { return v == "" || v == "unknown" }

// Sizer reports the number of quotes held in memory.
type Sizer interface {
	Len() int
}

// HealthHandler serves the /-/ probe endpoints.
type HealthHandler struct {
	registry  ports.HealthRegistry
	buildInfo BuildInfo
	quotes    Sizer
}

// NewHealthHandler creates a new health handler. quotes may be nil.
func NewHealthHandler(registry ports.HealthRegistry, buildInfo BuildInfo, quotes Sizer) *HealthHandler {
	return &HealthHandler{
		registry:  registry,
		buildInfo: buildInfo,
		quotes:    quotes,
	}
}

type livenessResponse struct {
	Status string `json:"status"`
}

type readinessResponse struct {
	Status string                        `json:"status"`
	Quotes *int                          `json:"quotes,omitempty"`
	Checks map[string]*ports.CheckResult `json:"checks,omitempty"`
}

// Liveness handles GET /-/live. It never checks storage.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{Status: "ok"})
}

// Readiness handles GET /-/ready: 200 while every registered check (the
// storage backend) passes, 503 otherwise.
func (h *HealthHandler) Readiness(c *gin.Context) {
	result := h.registry.CheckAll(c.Request.Context())

	resp := readinessResponse{
		Status: string(result.Status),
		Checks: result.Checks,
	}

	if h.quotes != nil {
		n := h.quotes.Len()
		resp.Quotes = &n
	}

	status := http.StatusOK
	if result.Status == ports.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, resp)
}

// BuildInfoHandler handles GET /-/build.
func (h *HealthHandler) BuildInfoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.buildInfo)
}

// RegisterHealthRoutes registers the probe routes on rg:
//   - GET live, ready, build
//   - GET metrics (Prometheus, including the quotebook_* store collectors)
func (h *HealthHandler) RegisterHealthRoutes(rg *gin.RouterGroup) {
	rg.GET("/live", h.Liveness)
	rg.GET("/ready", h.Readiness)
	rg.GET("/build", h.BuildInfoHandler)
	rg.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterHealthRoutesOnEngine registers the probe routes under /-/.
func (h *HealthHandler) RegisterHealthRoutesOnEngine(engine *gin.Engine) {
	h.RegisterHealthRoutes(engine.Group("/-"))
}
