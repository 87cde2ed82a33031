package analytics

// FleetSummary reduces the per-unit metrics of every successfully
// processed unit into fleet-wide totals and averages. Units whose
// extraction failed are excluded before this function runs; they are
// never scored as zero.
type FleetSummary struct {
	TotalUnits           int     `json:"total_units"`
	TotalDistanceKM      float64 `json:"total_distance_km"`
	TotalFuelLiters      float64 `json:"total_fuel_liters"`
	TotalHarshEvents     int     `json:"total_harsh_events"`
	TotalDrivingHours    float64 `json:"total_driving_hours"`
	TotalIdlingHours     float64 `json:"total_idling_hours"`
	TotalCO2KG           float64 `json:"total_co2_kg"`
	AvgSpeedKMH          float64 `json:"avg_speed_kmh"`
	MaxSpeedKMH          float64 `json:"max_speed_kmh"`
	FuelEfficiencyKMPerL float64 `json:"fuel_efficiency_km_per_liter"`
	AvgHarshPerVehicle   float64 `json:"avg_harsh_events_per_vehicle"`
	UtilizationPct       float64 `json:"fleet_utilization_percentage"`
}

// Summarize computes the fleet rollup. The average speed is the
// arithmetic mean of per-unit averages, not distance-weighted; the
// template reads it that way.
func Summarize(units []UnitMetrics) FleetSummary {
	var s FleetSummary
	if len(units) == 0 {
		return s
	}
	s.TotalUnits = len(units)

	var avgSpeedSum float64
	for _, m := range units {
		s.TotalDistanceKM += m.TotalDistanceKM
		s.TotalFuelLiters += m.FuelConsumptionL
		s.TotalHarshEvents += m.TotalHarshEvents
		s.TotalDrivingHours += m.DrivingHours
		s.TotalIdlingHours += m.IdlingHours
		s.TotalCO2KG += m.CO2EmissionKG
		avgSpeedSum += m.AvgSpeed
		if m.MaxSpeed > s.MaxSpeedKMH {
			s.MaxSpeedKMH = m.MaxSpeed
		}
	}

	s.AvgSpeedKMH = avgSpeedSum / float64(s.TotalUnits)
	if s.TotalFuelLiters > 0 {
		s.FuelEfficiencyKMPerL = s.TotalDistanceKM / s.TotalFuelLiters
	}
	s.AvgHarshPerVehicle = float64(s.TotalHarshEvents) / float64(s.TotalUnits)
	s.UtilizationPct = s.TotalDrivingHours / (float64(s.TotalUnits) * 24) * 100

	return s
}
