package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-telemetry-reporter/internal/analytics"
	"fleet-telemetry-reporter/internal/config"
	"fleet-telemetry-reporter/internal/logger"
	"fleet-telemetry-reporter/internal/pipeline"
	"fleet-telemetry-reporter/internal/telemetry"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := logger.Init("production"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.Server{Environment: "test"},
		CORS: config.CORS{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Origin", "Content-Type", "Accept"},
		},
	}
}

func testFleetData() *pipeline.FleetData {
	return &pipeline.FleetData{
		Info: pipeline.ExtractionInfo{RunID: "run-1", TotalUnits: 2, SuccessfulUnits: 1, FailedUnits: 1},
		Units: []pipeline.UnitResult{
			{
				ID:      101,
				Name:    "Tanker 01",
				Records: []telemetry.Record{{Speed: 60}, {Speed: 70}},
				Metrics: analytics.UnitMetrics{TotalDistanceKM: 80, RecordCount: 2},
				Quality: analytics.DataQuality{Tier: analytics.QualityExcellent, Score: 100},
			},
			{ID: 102, Name: "Tanker 02", Error: "device offline"},
		},
		Summary: analytics.FleetSummary{TotalUnits: 1, TotalDistanceKM: 80},
	}
}

func doRequest(t *testing.T, router *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	store := NewStore()
	router := SetupRoutes(testConfig(), store)

	w := doRequest(t, router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","extraction":"pending"}`, w.Body.String())

	store.Set(testFleetData())
	w = doRequest(t, router, "/health")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","extraction":"ready"}`, w.Body.String())
}

func TestAPIUnavailableBeforeExtraction(t *testing.T) {
	router := SetupRoutes(testConfig(), NewStore())

	for _, path := range []string{"/api/v1/fleet", "/api/v1/units", "/api/v1/units/101"} {
		w := doRequest(t, router, path)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestFleetEndpoint(t *testing.T) {
	store := NewStore()
	store.Set(testFleetData())
	router := SetupRoutes(testConfig(), store)

	w := doRequest(t, router, "/api/v1/fleet")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Info    pipeline.ExtractionInfo `json:"extraction_info"`
		Summary analytics.FleetSummary  `json:"fleet_summary"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Info.RunID)
	assert.Equal(t, 80.0, body.Summary.TotalDistanceKM)
}

func TestUnitsListOmitsRecords(t *testing.T) {
	store := NewStore()
	store.Set(testFleetData())
	router := SetupRoutes(testConfig(), store)

	w := doRequest(t, router, "/api/v1/units")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Units []map[string]json.RawMessage `json:"units"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Units, 2)
	assert.NotContains(t, body.Units[0], "telemetry_data")
	assert.Contains(t, body.Units[0], "record_count")
}

func TestUnitDetail(t *testing.T) {
	store := NewStore()
	store.Set(testFleetData())
	router := SetupRoutes(testConfig(), store)

	w := doRequest(t, router, "/api/v1/units/101")
	require.Equal(t, http.StatusOK, w.Code)

	var unit pipeline.UnitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &unit))
	assert.Equal(t, "Tanker 01", unit.Name)
	assert.Len(t, unit.Records, 2)

	w = doRequest(t, router, "/api/v1/units/999")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(t, router, "/api/v1/units/not-a-number")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
