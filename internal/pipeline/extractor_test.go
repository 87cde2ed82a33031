package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleet-telemetry-reporter/internal/analytics"
	"fleet-telemetry-reporter/internal/logger"
	"fleet-telemetry-reporter/internal/wialon"
	apperrors "fleet-telemetry-reporter/pkg/errors"
)

func TestMain(m *testing.M) {
	if err := logger.Init("production"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// fakeAPI serves canned fleet data and injects per-unit failures.
type fakeAPI struct {
	units       []wialon.Unit
	drivers     []wialon.Driver
	messages    map[int64][]wialon.RawMessage
	unitsErr    error
	driversErr  error
	failingUnit int64
}

func (f *fakeAPI) Units(ctx context.Context) ([]wialon.Unit, error) {
	return f.units, f.unitsErr
}

func (f *fakeAPI) Drivers(ctx context.Context) ([]wialon.Driver, error) {
	return f.drivers, f.driversErr
}

func (f *fakeAPI) Messages(ctx context.Context, unitID int64, from, to time.Time) ([]wialon.RawMessage, error) {
	if unitID == f.failingUnit {
		return nil, errors.New("device offline")
	}
	return f.messages[unitID], nil
}

func window() (time.Time, time.Time) {
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return from, from.Add(24 * time.Hour)
}

func drivingMessages(start int64, odoFrom, odoTo float64) []wialon.RawMessage {
	return []wialon.RawMessage{
		{
			Timestamp: start,
			Pos:       &wialon.Position{Latitude: 13.7, Longitude: 100.5, Speed: 55},
			Params:    map[string]interface{}{"mileage": odoFrom, "fuel_lvl": 80.0, "ign": 1, "engine_on": 1},
		},
		{
			Timestamp: start + 5,
			Pos:       &wialon.Position{Latitude: 13.71, Longitude: 100.51, Speed: 62},
			Params:    map[string]interface{}{"mileage": odoTo, "fuel_lvl": 78.0, "ign": 1, "engine_on": 1},
		},
	}
}

func TestParseReportType(t *testing.T) {
	for _, valid := range []string{"daily", "weekly", "monthly"} {
		rt, err := ParseReportType(valid)
		require.NoError(t, err)
		assert.Equal(t, ReportType(valid), rt)
	}

	_, err := ParseReportType("hourly")
	assert.Error(t, err)
}

func TestRunEmptyDateRange(t *testing.T) {
	from, _ := window()
	_, err := NewExtractor(&fakeAPI{}).Run(context.Background(), from, from, ReportDaily)
	assert.ErrorIs(t, err, apperrors.ErrEmptyDateRange)
}

func TestRunNoUnits(t *testing.T) {
	from, to := window()
	_, err := NewExtractor(&fakeAPI{}).Run(context.Background(), from, to, ReportDaily)
	assert.ErrorIs(t, err, apperrors.ErrNoUnitsFound)
}

func TestRunFullFleet(t *testing.T) {
	from, to := window()
	api := &fakeAPI{
		units: []wialon.Unit{
			{ID: 101, Name: "Tanker 01", DeviceType: "FMB920"},
			{ID: 102, Name: "Tanker 02"},
		},
		drivers: []wialon.Driver{{ID: 1, Name: "Somchai"}},
		messages: map[int64][]wialon.RawMessage{
			101: drivingMessages(from.Unix(), 100000, 180000),
			102: drivingMessages(from.Unix(), 50000, 90000),
		},
	}

	data, err := NewExtractor(api).Run(context.Background(), from, to, ReportWeekly)
	require.NoError(t, err)

	assert.NotEmpty(t, data.Info.RunID)
	assert.Equal(t, ReportWeekly, data.Info.ReportType)
	assert.Equal(t, 2, data.Info.TotalUnits)
	assert.Equal(t, 2, data.Info.SuccessfulUnits)
	assert.Zero(t, data.Info.FailedUnits)

	require.Len(t, data.Units, 2)
	u := data.Units[0]
	assert.Equal(t, "Tanker 01", u.Name)
	require.Len(t, u.Records, 2)
	assert.Equal(t, 80.0, u.Metrics.TotalDistanceKM)
	assert.Equal(t, 2.0, u.Metrics.FuelConsumptionL)
	assert.NotZero(t, u.Performance.Overall)
	assert.NotEmpty(t, u.Quality.Tier)

	assert.Equal(t, 120.0, data.Summary.TotalDistanceKM)
	assert.Equal(t, 2, data.Summary.TotalUnits)
	assert.Equal(t, data.Drivers, api.drivers)
}

func TestRunIsolatesFailingUnit(t *testing.T) {
	from, to := window()
	api := &fakeAPI{
		units: []wialon.Unit{
			{ID: 101, Name: "Tanker 01"},
			{ID: 102, Name: "Tanker 02"},
		},
		messages: map[int64][]wialon.RawMessage{
			101: drivingMessages(from.Unix(), 100000, 150000),
		},
		failingUnit: 102,
	}

	data, err := NewExtractor(api).Run(context.Background(), from, to, ReportDaily)
	require.NoError(t, err)

	assert.Equal(t, 1, data.Info.SuccessfulUnits)
	assert.Equal(t, 1, data.Info.FailedUnits)

	// The failed unit is reported but kept out of the fleet rollup.
	assert.Equal(t, 1, data.Summary.TotalUnits)
	assert.Equal(t, 50.0, data.Summary.TotalDistanceKM)

	require.Len(t, data.Units, 2)
	failed := data.Units[1]
	assert.Equal(t, "Tanker 02", failed.Name)
	assert.Equal(t, "device offline", failed.Error)
	assert.Empty(t, failed.Records)

	assert.Equal(t, 1, data.QualityReport.FailedExtractions)
	require.Len(t, data.QualityReport.FailedUnits, 1)
	assert.Equal(t, "Tanker 02", data.QualityReport.FailedUnits[0].Name)
}

func TestRunContinuesWithoutDrivers(t *testing.T) {
	from, to := window()
	api := &fakeAPI{
		units:      []wialon.Unit{{ID: 101, Name: "Tanker 01"}},
		driversErr: errors.New("access denied"),
		messages: map[int64][]wialon.RawMessage{
			101: drivingMessages(from.Unix(), 100000, 120000),
		},
	}

	data, err := NewExtractor(api).Run(context.Background(), from, to, ReportDaily)
	require.NoError(t, err)
	assert.Empty(t, data.Drivers)
	assert.Equal(t, 1, data.Info.SuccessfulUnits)
}

func qualityWith(score float64, tier string, issues []string) analytics.DataQuality {
	return analytics.DataQuality{Score: score, Tier: tier, Issues: issues}
}

func TestBuildQualityReport(t *testing.T) {
	results := []UnitResult{
		{Name: "A", Quality: qualityWith(95, "Excellent", nil)},
		{Name: "B", Quality: qualityWith(80, "Good", []string{"2 significant time gaps detected"})},
		{Name: "C", Quality: qualityWith(40, "Poor", []string{"2 significant time gaps detected", "Invalid GPS coordinates"})},
		{Name: "D", Error: "device offline"},
	}

	report := buildQualityReport(results)

	assert.Equal(t, 3, report.SuccessfulExtractions)
	assert.Equal(t, 1, report.FailedExtractions)
	assert.InDelta(t, (95.0+80+40)/3, report.AvgQualityScore, 1e-9)
	assert.Equal(t, 1, report.ExcellentUnits)
	assert.Equal(t, 1, report.PoorUnits)

	// Issues sorted by affected units, most common first.
	require.Len(t, report.CommonIssues, 2)
	assert.Equal(t, IssueCount{Issue: "2 significant time gaps detected", Units: 2}, report.CommonIssues[0])
	assert.Equal(t, IssueCount{Issue: "Invalid GPS coordinates", Units: 1}, report.CommonIssues[1])
}
