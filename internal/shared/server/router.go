package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bjj-backend/internal/analyses"
	"bjj-backend/internal/shared/config"
	"bjj-backend/internal/shared/metrics"
	"bjj-backend/internal/shared/server/middleware"
	"bjj-backend/internal/shared/server/respond"
	"bjj-backend/internal/videos"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config          config.Config
	VideoHandler    *videos.Handler
	AnalysisHandler *analyses.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
// Routes live at the root path; the shipped dashboard calls /upload,
// /analyze, /status and /analyze-complete without a prefix.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.RateLimit(rateLimitConfig()),
	)

	r.GET("/", banner(deps.Config))
	r.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{
			"status":  "healthy",
			"version": deps.Config.Version,
		})
	})
	r.GET("/metrics", metrics.Handler())

	root := r.Group("/")
	if deps.VideoHandler != nil {
		deps.VideoHandler.RegisterRoutes(root)
	}
	if deps.AnalysisHandler != nil {
		deps.AnalysisHandler.RegisterRoutes(root)
	}

	return r
}

// rateLimitConfig keeps one bucket per client IP. Status polling gets a
// higher allowance than the upload and analyze routes; the per-analysis
// window is enforced separately in the analyses handler.
func rateLimitConfig() middleware.RateLimitConfig {
	return middleware.RateLimitConfig{
		DefaultGroup: "DEFAULT",
		GroupFor: func(c *gin.Context) string {
			if c.Request.Method == http.MethodGet && c.FullPath() == "/status/:analysis_id" {
				return "POLLING"
			}
			return "DEFAULT"
		},
		Rules: map[string]middleware.RateLimitRule{
			"DEFAULT": {Rate: 5, Burst: 20},
			"POLLING": {Rate: 20, Burst: 40},
		},
	}
}

// banner reports the frame sampling strategy. The dashboard reads the
// version field from this route.
func banner(cfg config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{
			"message": "BJJ AI Coach - Smart Weighted Frame Extraction",
			"version": cfg.Version,
			"frame_extraction": gin.H{
				"method":       "Weighted Priority",
				"distribution": "START 25% | MIDDLE 35% | END 40%",
				"rationale":    "END weighted heavily for submission detection",
			},
			"features": []string{
				"40% of frames from final 20% of video",
				"Always includes VERY LAST frame",
				"Frame-by-frame END analysis in prompt",
				"Explicit leg lock detection patterns",
				"Tap detection visual indicators",
				"Outcome-based scoring adjustments",
			},
			"target_time": "30-45 seconds",
		})
	}
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
