package analytics

import (
	"fmt"
	"math"

	"fleet-telemetry-reporter/internal/telemetry"
)

// Quality tiers, best to worst.
const (
	QualityExcellent = "Excellent"
	QualityGood      = "Good"
	QualityFair      = "Fair"
	QualityPoor      = "Poor"
)

const (
	gapThresholdMinutes  = 10.0
	anomalyPenalty       = 10.0
	gapPenalty           = 5.0
	gpsCompletenessFloor = 90.0
	spdCompletenessFloor = 95.0
)

// DataQuality scores one unit's record sequence for completeness and
// plausibility, independently of the metric aggregation.
type DataQuality struct {
	Tier              string   `json:"overall_quality"`
	Score             float64  `json:"quality_score"`
	GPSCompleteness   float64  `json:"gps_completeness"`
	SpeedCompleteness float64  `json:"speed_completeness"`
	TimeGaps          int      `json:"time_gaps"`
	Issues            []string `json:"issues"`
}

// AssessQuality walks the sequence once per concern, deducting from a
// starting score of 100. The tier is mapped from the raw (possibly
// negative) score; only the reported score is floored at zero.
func AssessQuality(records []telemetry.Record) DataQuality {
	if len(records) == 0 {
		return DataQuality{Tier: QualityPoor, Issues: []string{"No data available"}}
	}

	total := float64(len(records))
	score := 100.0
	var issues []string

	validGPS := 0
	validSpeed := 0
	for _, rec := range records {
		if rec.Latitude != 0 && rec.Longitude != 0 {
			validGPS++
		}
		if rec.Speed >= 0 {
			validSpeed++
		}
	}

	gpsCompleteness := float64(validGPS) / total * 100
	if gpsCompleteness < gpsCompletenessFloor {
		issues = append(issues, fmt.Sprintf("GPS data only %.1f%% complete", gpsCompleteness))
		score -= (100 - gpsCompleteness) * 0.5
	}

	speedCompleteness := float64(validSpeed) / total * 100
	if speedCompleteness < spdCompletenessFloor {
		issues = append(issues, fmt.Sprintf("Speed data only %.1f%% complete", speedCompleteness))
		score -= (100 - speedCompleteness) * 0.3
	}

	gaps := countTimeGaps(records)
	if gaps > 0 {
		issues = append(issues, fmt.Sprintf("%d significant time gaps detected", gaps))
		score -= float64(gaps) * gapPenalty
	}

	anomalies := detectAnomalies(records)
	if len(anomalies) > 0 {
		issues = append(issues, anomalies...)
		score -= float64(len(anomalies)) * anomalyPenalty
	}

	return DataQuality{
		Tier:              tierFor(score),
		Score:             math.Max(0, score),
		GPSCompleteness:   gpsCompleteness,
		SpeedCompleteness: speedCompleteness,
		TimeGaps:          gaps,
		Issues:            issues,
	}
}

func tierFor(score float64) string {
	switch {
	case score >= 90:
		return QualityExcellent
	case score >= 75:
		return QualityGood
	case score >= 60:
		return QualityFair
	default:
		return QualityPoor
	}
}

// countTimeGaps counts consecutive pairs more than ten minutes apart.
// Pairs with a missing timestamp on either side are skipped.
func countTimeGaps(records []telemetry.Record) int {
	gaps := 0
	for i := 1; i < len(records); i++ {
		prev, cur := records[i-1].Timestamp, records[i].Timestamp
		if prev.IsZero() || cur.IsZero() {
			continue
		}
		if cur.Sub(prev).Minutes() > gapThresholdMinutes {
			gaps++
		}
	}
	return gaps
}

// detectAnomalies scans once per category and reports each category at
// most once, regardless of how many records trip it.
func detectAnomalies(records []telemetry.Record) []string {
	checks := []struct {
		message string
		hit     func(telemetry.Record) bool
	}{
		{"Negative speed detected", func(r telemetry.Record) bool {
			return r.Speed < 0
		}},
		{"Excessive speed detected (>200 km/h)", func(r telemetry.Record) bool {
			return r.Speed > 200
		}},
		{"Invalid GPS coordinates", func(r telemetry.Record) bool {
			return math.Abs(r.Latitude) > 90 || math.Abs(r.Longitude) > 180
		}},
		{"Low power voltage detected", func(r telemetry.Record) bool {
			return r.PowerVoltage > 0 && r.PowerVoltage < 9000
		}},
		{"Fuel level >100% detected", func(r telemetry.Record) bool {
			return r.FuelLevel > 100
		}},
	}

	var anomalies []string
	for _, check := range checks {
		for _, rec := range records {
			if check.hit(rec) {
				anomalies = append(anomalies, check.message)
				break
			}
		}
	}
	return anomalies
}
