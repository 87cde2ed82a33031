package analytics

import (
	"math"

	"fleet-telemetry-reporter/internal/telemetry"
)

// Performance tiers for the traffic-light index.
const (
	PerformanceExcellent = "EXCELLENT"
	PerformanceGood      = "GOOD"
	PerformanceNeedsWork = "NEEDS IMPROVEMENT"
)

// PerformanceScore is the composite 0-100 rating behind the traffic-light
// sheet: three weighted sub-scores and a qualitative tier.
type PerformanceScore struct {
	Overall    float64 `json:"overall_score"`
	Eco        float64 `json:"eco_score"`
	Safety     float64 `json:"safety_score"`
	Efficiency float64 `json:"efficiency_score"`
	Tier       string  `json:"performance_level"`
}

// Score rates one unit's window. Speeding counts and idling hours are
// recomputed from the records rather than read from a UnitMetrics; the
// two agree today, but the scorer is kept self-contained so a change in
// aggregation policy cannot silently shift scores.
//
// Every sub-score is clamped to zero from below, never above 100 from
// penalties alone; an empty window scores zero across the board.
func Score(records []telemetry.Record) PerformanceScore {
	if len(records) == 0 {
		return PerformanceScore{Tier: PerformanceNeedsWork}
	}

	totalHarsh := 0
	speedingCount := 0
	var idlingSeconds float64
	for _, rec := range records {
		totalHarsh += rec.HarshAccel + rec.HarshBraking + rec.HarshCornering
		if rec.Speed > telemetry.SpeedingThreshold {
			speedingCount++
		}
		idlingSeconds += rec.IdlingTime
	}
	idlingHours := idlingSeconds / 3600

	eco := math.Max(0, 100-float64(totalHarsh)*2)
	safety := math.Max(0, 100-float64(speedingCount)*0.5-float64(totalHarsh)*1.5)
	efficiency := math.Max(0, 100-idlingHours*5)
	overall := eco*0.3 + safety*0.4 + efficiency*0.3

	return PerformanceScore{
		Overall:    overall,
		Eco:        eco,
		Safety:     safety,
		Efficiency: efficiency,
		Tier:       performanceTier(overall),
	}
}

func performanceTier(overall float64) string {
	switch {
	case overall >= 80:
		return PerformanceExcellent
	case overall >= 60:
		return PerformanceGood
	default:
		return PerformanceNeedsWork
	}
}
