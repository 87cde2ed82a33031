package analytics

import (
	"fleet-telemetry-reporter/internal/telemetry"
)

const (
	// Sampling interval assumed when converting record counts into hours.
	// Device timing is not uniform; the reporting template relies on this
	// fixed approximation, so it stays a constant here.
	sampleIntervalSeconds = 5.0

	// Kilograms of CO2 emitted per liter of diesel burned.
	co2PerLiter = 2.31
)

// UnitMetrics is the windowed aggregate of one unit's record sequence.
// It is recomputed from scratch on every extraction and never persisted.
type UnitMetrics struct {
	TotalDistanceKM    float64  `json:"total_distance_km"`
	MaxSpeed           float64  `json:"max_speed"`
	AvgSpeed           float64  `json:"avg_speed"`
	DrivingHours       float64  `json:"driving_hours"`
	TotalEngineHours   float64  `json:"total_engine_hours"`
	IdlingHours        float64  `json:"idling_hours"`
	EngineOnPercentage float64  `json:"engine_on_percentage"`
	HarshAcceleration  int      `json:"harsh_acceleration"`
	HarshBraking       int      `json:"harsh_braking"`
	HarshCornering     int      `json:"harsh_cornering"`
	TotalHarshEvents   int      `json:"total_harsh_events"`
	SpeedingViolations int      `json:"speeding_violations"`
	FuelConsumptionL   float64  `json:"fuel_consumption_l"`
	CO2EmissionKG      float64  `json:"co2_emission_kg"`
	AvgEcoScore        float64  `json:"avg_eco_score"`
	MaintenanceAlerts  []string `json:"maintenance_alerts"`
	RecordCount        int      `json:"record_count"`
}

// Aggregate reduces a time-ordered record sequence into summary metrics.
// Order matters: distance uses the first and last odometer readings, fuel
// the first and last non-zero fuel levels.
//
// Distance and fuel keep their sign. An odometer reset or a mid-window
// refuel yields a negative value here; the report layer clamps fuel to
// zero for presentation, the aggregate stays truthful.
//
// An empty sequence produces the zero value, not an error.
func Aggregate(records []telemetry.Record) UnitMetrics {
	var m UnitMetrics
	if len(records) == 0 {
		return m
	}
	m.RecordCount = len(records)

	if len(records) > 1 {
		first := records[0].Odometer
		last := records[len(records)-1].Odometer
		m.TotalDistanceKM = (last - first) / 1000
	}

	var speedSum float64
	var speedCount int
	var engineOnCount int
	var idlingSeconds float64
	var ecoSum float64
	var ecoCount int
	var firstFuel, lastFuel float64
	var fuelSeen int
	var alertSeen map[string]bool

	for _, rec := range records {
		if rec.Speed > 0 {
			speedCount++
			speedSum += rec.Speed
			if rec.Speed > m.MaxSpeed {
				m.MaxSpeed = rec.Speed
			}
		}
		if rec.EngineOn {
			engineOnCount++
		}
		idlingSeconds += rec.IdlingTime

		m.HarshAcceleration += rec.HarshAccel
		m.HarshBraking += rec.HarshBraking
		m.HarshCornering += rec.HarshCornering

		if rec.Speed > telemetry.SpeedingThreshold {
			m.SpeedingViolations++
		}

		if rec.FuelLevel > 0 {
			if fuelSeen == 0 {
				firstFuel = rec.FuelLevel
			}
			lastFuel = rec.FuelLevel
			fuelSeen++
		}

		if rec.EcoDrivingScore > 0 {
			ecoSum += rec.EcoDrivingScore
			ecoCount++
		}

		for _, alert := range rec.MaintenanceAlerts {
			if alertSeen == nil {
				alertSeen = make(map[string]bool)
			}
			if !alertSeen[alert] {
				alertSeen[alert] = true
				m.MaintenanceAlerts = append(m.MaintenanceAlerts, alert)
			}
		}
	}

	if speedCount > 0 {
		m.AvgSpeed = speedSum / float64(speedCount)
	}

	m.DrivingHours = float64(engineOnCount) * sampleIntervalSeconds / 3600
	m.TotalEngineHours = m.DrivingHours
	m.IdlingHours = idlingSeconds / 3600
	m.EngineOnPercentage = float64(engineOnCount) / float64(len(records)) * 100

	m.TotalHarshEvents = m.HarshAcceleration + m.HarshBraking + m.HarshCornering

	if fuelSeen > 1 {
		m.FuelConsumptionL = firstFuel - lastFuel
	}
	m.CO2EmissionKG = m.FuelConsumptionL * co2PerLiter

	if ecoCount > 0 {
		m.AvgEcoScore = ecoSum / float64(ecoCount)
	}

	return m
}
