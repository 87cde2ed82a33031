package pipeline

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"fleet-telemetry-reporter/internal/analytics"
	"fleet-telemetry-reporter/internal/logger"
	"fleet-telemetry-reporter/internal/telemetry"
	"fleet-telemetry-reporter/internal/wialon"
	apperrors "fleet-telemetry-reporter/pkg/errors"
)

// API is the slice of the vendor client the pipeline needs. Session and
// retry state live behind it; the pipeline never sees session ids.
type API interface {
	Units(ctx context.Context) ([]wialon.Unit, error)
	Drivers(ctx context.Context) ([]wialon.Driver, error)
	Messages(ctx context.Context, unitID int64, from, to time.Time) ([]wialon.RawMessage, error)
}

// ReportType selects the reporting window label.
type ReportType string

const (
	ReportDaily   ReportType = "daily"
	ReportWeekly  ReportType = "weekly"
	ReportMonthly ReportType = "monthly"
)

func ParseReportType(s string) (ReportType, error) {
	switch ReportType(s) {
	case ReportDaily, ReportWeekly, ReportMonthly:
		return ReportType(s), nil
	default:
		return "", fmt.Errorf("invalid report type %q (want daily, weekly or monthly)", s)
	}
}

// UnitResult bundles everything computed for one unit. Error is set, and
// the analytic fields left zero, when extraction failed for the unit.
type UnitResult struct {
	ID          int64                      `json:"id"`
	Name        string                     `json:"name"`
	DeviceType  string                     `json:"device_type,omitempty"`
	Records     []telemetry.Record         `json:"telemetry_data,omitempty"`
	Metrics     analytics.UnitMetrics      `json:"metrics"`
	Quality     analytics.DataQuality      `json:"data_quality"`
	Performance analytics.PerformanceScore `json:"performance"`
	Driver      analytics.DriverMetrics    `json:"driver_metrics"`
	Error       string                     `json:"error,omitempty"`
}

// ExtractionInfo is run metadata attached to every fleet result.
type ExtractionInfo struct {
	RunID           string     `json:"run_id"`
	DateFrom        time.Time  `json:"date_from"`
	DateTo          time.Time  `json:"date_to"`
	ReportType      ReportType `json:"report_type"`
	ExtractedAt     time.Time  `json:"extraction_timestamp"`
	TotalUnits      int        `json:"total_units"`
	SuccessfulUnits int        `json:"successful_units"`
	FailedUnits     int        `json:"failed_units"`
}

// IssueCount is one entry of the fleet quality report's common-issue list.
type IssueCount struct {
	Issue string `json:"issue"`
	Units int    `json:"units"`
}

// FailedUnit names a unit whose extraction errored, with the reason.
type FailedUnit struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// QualityReport is the fleet-wide data quality rollup.
type QualityReport struct {
	SuccessfulExtractions int          `json:"successful_extractions"`
	FailedExtractions     int          `json:"failed_extractions"`
	AvgQualityScore       float64      `json:"avg_data_quality_score"`
	ExcellentUnits        int          `json:"units_with_excellent_quality"`
	PoorUnits             int          `json:"units_with_poor_quality"`
	CommonIssues          []IssueCount `json:"common_issues"`
	FailedUnits           []FailedUnit `json:"failed_units"`
}

// FleetData is the complete result of one extraction run: per-unit
// results plus the fleet rollups the report and dashboard consume.
type FleetData struct {
	Info          ExtractionInfo         `json:"extraction_info"`
	Units         []UnitResult           `json:"units_data"`
	Summary       analytics.FleetSummary `json:"fleet_summary"`
	QualityReport QualityReport          `json:"data_quality_report"`
	Drivers       []wialon.Driver        `json:"drivers,omitempty"`
}

// Extractor drives the full pipeline: fetch messages per unit, normalize,
// aggregate, score, then roll up across the fleet. Units are processed
// sequentially; a failing unit is recorded and skipped, never fatal.
type Extractor struct {
	api API
}

func NewExtractor(api API) *Extractor {
	return &Extractor{api: api}
}

// Run extracts and analyzes the whole fleet for [from, to].
func (e *Extractor) Run(ctx context.Context, from, to time.Time, reportType ReportType) (*FleetData, error) {
	if !to.After(from) {
		return nil, apperrors.ErrEmptyDateRange
	}

	units, err := e.api.Units(ctx)
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	if len(units) == 0 {
		return nil, apperrors.ErrNoUnitsFound
	}

	drivers, err := e.api.Drivers(ctx)
	if err != nil {
		// Driver names only decorate the report; extraction continues.
		logger.Warn("Failed to fetch drivers", zap.Error(err))
	}

	logger.Info("Starting fleet extraction",
		zap.Int("units", len(units)),
		zap.Time("from", from),
		zap.Time("to", to),
		zap.String("report_type", string(reportType)),
	)

	results := make([]UnitResult, 0, len(units))
	for _, unit := range units {
		results = append(results, e.processUnit(ctx, unit, from, to))
	}

	successful := make([]analytics.UnitMetrics, 0, len(results))
	for _, r := range results {
		if r.Error == "" {
			successful = append(successful, r.Metrics)
		}
	}

	data := &FleetData{
		Info: ExtractionInfo{
			RunID:           uuid.New().String(),
			DateFrom:        from,
			DateTo:          to,
			ReportType:      reportType,
			ExtractedAt:     time.Now(),
			TotalUnits:      len(units),
			SuccessfulUnits: len(successful),
			FailedUnits:     len(results) - len(successful),
		},
		Units:         results,
		Summary:       analytics.Summarize(successful),
		QualityReport: buildQualityReport(results),
		Drivers:       drivers,
	}

	logger.Info("Fleet extraction finished",
		zap.String("run_id", data.Info.RunID),
		zap.Int("successful", data.Info.SuccessfulUnits),
		zap.Int("failed", data.Info.FailedUnits),
		zap.Float64("total_distance_km", data.Summary.TotalDistanceKM),
	)
	return data, nil
}

func (e *Extractor) processUnit(ctx context.Context, unit wialon.Unit, from, to time.Time) UnitResult {
	log := logger.WithUnit(unit.ID, unit.Name)

	result := UnitResult{
		ID:         unit.ID,
		Name:       unit.Name,
		DeviceType: unit.DeviceType,
	}

	messages, err := e.api.Messages(ctx, unit.ID, from, to)
	if err != nil {
		log.Error("Unit extraction failed", zap.Error(err))
		result.Error = err.Error()
		return result
	}

	builder := telemetry.NewBuilder(unit.Sensors)
	result.Records = builder.BuildAll(messages)

	result.Metrics = analytics.Aggregate(result.Records)
	result.Quality = analytics.AssessQuality(result.Records)
	result.Performance = analytics.Score(result.Records)
	result.Driver = analytics.ComputeDriverMetrics(result.Records)

	log.Info("Unit processed",
		zap.Int("records", len(result.Records)),
		zap.Float64("distance_km", result.Metrics.TotalDistanceKM),
		zap.Float64("max_speed", result.Metrics.MaxSpeed),
		zap.Int("harsh_events", result.Metrics.TotalHarshEvents),
		zap.String("quality", result.Quality.Tier),
	)
	return result
}

func buildQualityReport(results []UnitResult) QualityReport {
	report := QualityReport{}

	issueCounts := make(map[string]int)
	var scoreSum float64
	for _, r := range results {
		if r.Error != "" {
			report.FailedExtractions++
			report.FailedUnits = append(report.FailedUnits, FailedUnit{Name: r.Name, Error: r.Error})
			continue
		}
		report.SuccessfulExtractions++
		scoreSum += r.Quality.Score
		switch r.Quality.Tier {
		case analytics.QualityExcellent:
			report.ExcellentUnits++
		case analytics.QualityPoor:
			report.PoorUnits++
		}
		for _, issue := range r.Quality.Issues {
			issueCounts[issue]++
		}
	}

	if report.SuccessfulExtractions > 0 {
		report.AvgQualityScore = scoreSum / float64(report.SuccessfulExtractions)
	}

	for issue, count := range issueCounts {
		report.CommonIssues = append(report.CommonIssues, IssueCount{Issue: issue, Units: count})
	}
	sort.Slice(report.CommonIssues, func(i, j int) bool {
		if report.CommonIssues[i].Units != report.CommonIssues[j].Units {
			return report.CommonIssues[i].Units > report.CommonIssues[j].Units
		}
		return report.CommonIssues[i].Issue < report.CommonIssues[j].Issue
	})
	if len(report.CommonIssues) > 5 {
		report.CommonIssues = report.CommonIssues[:5]
	}

	return report
}
