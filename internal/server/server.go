package server

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"

	"fleet-telemetry-reporter/internal/analytics"
	"fleet-telemetry-reporter/internal/config"
	"fleet-telemetry-reporter/internal/middleware"
	"fleet-telemetry-reporter/internal/pipeline"
	apperrors "fleet-telemetry-reporter/pkg/errors"
)

// Store holds the latest completed extraction for the dashboard to read.
// Results are replaced wholesale; handlers only ever see a consistent run.
type Store struct {
	mu   sync.RWMutex
	data *pipeline.FleetData
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Set(data *pipeline.FleetData) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

func (s *Store) Get() *pipeline.FleetData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

// unitView is the list representation of a unit: everything except the
// raw record sequence, which is large and served per-unit only.
type unitView struct {
	ID          int64                      `json:"id"`
	Name        string                     `json:"name"`
	DeviceType  string                     `json:"device_type,omitempty"`
	RecordCount int                        `json:"record_count"`
	Metrics     analytics.UnitMetrics      `json:"metrics"`
	Quality     analytics.DataQuality      `json:"data_quality"`
	Performance analytics.PerformanceScore `json:"performance"`
	Error       string                     `json:"error,omitempty"`
}

// SetupRoutes wires the read-only dashboard API over the extraction store.
func SetupRoutes(cfg *config.Config, store *Store) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "healthy"}
		if store.Get() == nil {
			status["extraction"] = "pending"
		} else {
			status["extraction"] = "ready"
		}
		c.JSON(http.StatusOK, status)
	})

	v1 := router.Group("/api/v1")
	v1.Use(requireData(store))
	{
		v1.GET("/fleet", func(c *gin.Context) {
			data := store.Get()
			c.JSON(http.StatusOK, gin.H{
				"extraction_info":     data.Info,
				"fleet_summary":       data.Summary,
				"data_quality_report": data.QualityReport,
			})
		})

		v1.GET("/fleet/summary", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.Get().Summary)
		})

		v1.GET("/fleet/quality", func(c *gin.Context) {
			c.JSON(http.StatusOK, store.Get().QualityReport)
		})

		v1.GET("/units", func(c *gin.Context) {
			data := store.Get()
			views := make([]unitView, 0, len(data.Units))
			for _, u := range data.Units {
				views = append(views, unitView{
					ID:          u.ID,
					Name:        u.Name,
					DeviceType:  u.DeviceType,
					RecordCount: len(u.Records),
					Metrics:     u.Metrics,
					Quality:     u.Quality,
					Performance: u.Performance,
					Error:       u.Error,
				})
			}
			c.JSON(http.StatusOK, gin.H{"units": views})
		})

		v1.GET("/units/:id", func(c *gin.Context) {
			id, err := strconv.ParseInt(c.Param("id"), 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid unit id"})
				return
			}
			for _, u := range store.Get().Units {
				if u.ID == id {
					c.JSON(http.StatusOK, u)
					return
				}
			}
			c.JSON(http.StatusNotFound, gin.H{"error": apperrors.ErrUnitNotFound.Error()})
		})
	}

	return router
}

func requireData(store *Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store.Get() == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": apperrors.ErrNoExtraction.Error(),
			})
			return
		}
		c.Next()
	}
}
