package analytics

import (
	"math"

	"fleet-telemetry-reporter/internal/telemetry"
)

// SpeedBucketLabels lists the reporting template's speed brackets in
// column order. Lower bounds are inclusive, upper bounds exclusive;
// samples below 15 km/h are not bracketed.
var SpeedBucketLabels = []string{
	"15-35", "35-45", "45-55", "55-60", "60-65", "65-75", "75-80", "80+",
}

var speedBucketBounds = []struct {
	label  string
	lo, hi float64
}{
	{"15-35", 15, 35},
	{"35-45", 35, 45},
	{"45-55", 45, 55},
	{"55-60", 55, 60},
	{"60-65", 60, 65},
	{"65-75", 65, 75},
	{"75-80", 75, 80},
	{"80+", 80, math.Inf(1)},
}

// DriverMetrics carries the per-driver columns of the performance sheet:
// the speed histogram, speeding duration and harsh-event breakdown.
type DriverMetrics struct {
	SpeedViolations       map[string]int `json:"speed_violations"`
	TotalViolations       int            `json:"total_violations"`
	SpeedingDurationHours float64        `json:"speeding_duration"`
	HarshAcceleration     int            `json:"harsh_acceleration"`
	HarshBraking          int            `json:"harsh_braking"`
	HarshTurning          int            `json:"harsh_turning"`
	TotalHarshEvents      int            `json:"total_harsh_events"`
}

// ComputeDriverMetrics buckets every sample's speed and totals the harsh
// counters. Speeding duration assumes the fixed per-record sampling
// interval, reported in hours. The vehicle sheet reuses these numbers
// unchanged.
func ComputeDriverMetrics(records []telemetry.Record) DriverMetrics {
	m := DriverMetrics{SpeedViolations: make(map[string]int, len(speedBucketBounds))}
	for _, b := range speedBucketBounds {
		m.SpeedViolations[b.label] = 0
	}
	if len(records) == 0 {
		return m
	}

	speedingSamples := 0
	for _, rec := range records {
		m.HarshAcceleration += rec.HarshAccel
		m.HarshBraking += rec.HarshBraking
		m.HarshTurning += rec.HarshCornering

		for _, b := range speedBucketBounds {
			if rec.Speed >= b.lo && rec.Speed < b.hi {
				m.SpeedViolations[b.label]++
				break
			}
		}
		if rec.Speed >= 80 {
			speedingSamples++
		}
	}

	for _, count := range m.SpeedViolations {
		m.TotalViolations += count
	}
	m.SpeedingDurationHours = float64(speedingSamples) * sampleIntervalSeconds / 3600
	m.TotalHarshEvents = m.HarshAcceleration + m.HarshBraking + m.HarshTurning
	return m
}
