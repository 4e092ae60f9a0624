// internal/api/api.go
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/inventory-analyzer/internal/api/handlers"
	"github.com/andresuchdata/inventory-analyzer/internal/api/middleware"
	"github.com/andresuchdata/inventory-analyzer/internal/metrics"
	"github.com/andresuchdata/inventory-analyzer/internal/service"
)

type Services struct {
	AnalysisService *service.AnalysisService
	Metrics         *metrics.Recorder
	// Drive serves /api/drive/... when Google Drive import is configured.
	Drive http.Handler
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", health)

	apiGroup := router.Group("/api/v1")
	apiGroup.GET("/health", health)

	if services == nil {
		return router
	}

	if services.AnalysisService != nil {
		h := handlers.NewAnalysisHandler(services.AnalysisService)
		apiGroup.POST("/uploads", h.Upload)
		apiGroup.POST("/columns/resolve", h.ResolveColumns)
		apiGroup.GET("/stats", h.GetStats)

		sessionGroup := apiGroup.Group("/sessions/:id")
		{
			sessionGroup.GET("/kpis", h.GetKPIs)
			sessionGroup.GET("/reorders", h.GetReorders)
			sessionGroup.GET("/reorder-plan", h.GetReorderPlan)
			sessionGroup.GET("/categories", h.GetCategories)
			sessionGroup.GET("/movers", h.GetMovers)
			sessionGroup.GET("/products", h.GetProducts)
			sessionGroup.POST("/products/filter", h.FilterProducts)
			sessionGroup.GET("/filter-options", h.GetFilterOptions)
			sessionGroup.GET("/insights", h.GetInsights)
			sessionGroup.GET("/columns", h.GetColumns)
			sessionGroup.GET("/export", h.Export)
		}
	}

	if services.Metrics != nil {
		router.GET("/metrics", gin.WrapH(services.Metrics.Handler()))
	}

	if services.Drive != nil {
		router.Any("/api/drive/*path", gin.WrapH(services.Drive))
	}

	return router
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
