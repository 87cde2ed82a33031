package telemetry

import (
	"strconv"
	"strings"

	"fleet-telemetry-reporter/internal/wialon"
)

// Canonical field names targeted by the alias table.
const (
	fieldPowerVoltage    = "power_voltage"
	fieldBatteryVoltage  = "battery_voltage"
	fieldInternalBattery = "internal_battery"
	fieldGSMSignal       = "gsm_signal"
	fieldTemperature     = "temperature"
	fieldEngineOn        = "engine_on"
	fieldIgnition        = "ignition"
	fieldOdometer        = "odometer"
	fieldEngineHours     = "engine_hours"
	fieldFuelLevel       = "fuel_level"
	fieldFuelConsumption = "fuel_consumption"
	fieldRPM             = "rpm"
	fieldCoolantTemp     = "coolant_temp"
	fieldOilPressure     = "oil_pressure"
	fieldAcceleration    = "acceleration"
	fieldMaxAcceleration = "max_acceleration"
	fieldMaxBraking      = "max_braking"
	fieldHarshAccel      = "harsh_acceleration"
	fieldHarshBraking    = "harsh_braking"
	fieldHarshCornering  = "harsh_cornering"
	fieldMaxCornering    = "max_cornering"
	fieldIdlingTime      = "idling_time"
	fieldMovementSensor  = "movement_sensor"
	fieldDriverID        = "driver_id"
	fieldTripID          = "trip_id"
)

type aliasRule struct {
	key   string
	field string
}

// aliasTable maps raw parameter spellings to canonical fields. Order is
// the resolution priority: when a bag carries several aliases of the same
// field, the first one listed here wins.
var aliasTable = []aliasRule{
	// Power and electrical
	{"pwr_ext", fieldPowerVoltage},
	{"pwr_int", fieldBatteryVoltage},
	{"battery", fieldBatteryVoltage},
	{"int_battery", fieldInternalBattery},
	{"gsm_signal", fieldGSMSignal},
	{"gsm_level", fieldGSMSignal},
	{"pcb_temp", fieldTemperature},
	{"temperature", fieldTemperature},
	{"temp1", fieldTemperature},

	// Engine and vehicle
	{"engine_on", fieldEngineOn},
	{"ignition", fieldIgnition},
	{"ign", fieldIgnition},
	{"acc", fieldIgnition},
	{"mileage", fieldOdometer},
	{"odometer", fieldOdometer},
	{"engine_hours", fieldEngineHours},
	{"eh", fieldEngineHours},
	{"fuel_level", fieldFuelLevel},
	{"fuel_lvl", fieldFuelLevel},
	{"fuel1", fieldFuelLevel},
	{"fuel_consumption", fieldFuelConsumption},
	{"fuel_cons", fieldFuelConsumption},
	{"rpm", fieldRPM},
	{"engine_rpm", fieldRPM},
	{"coolant_temp", fieldCoolantTemp},
	{"engine_temp", fieldCoolantTemp},
	{"oil_pressure", fieldOilPressure},
	{"oil_press", fieldOilPressure},

	// Movement and behavior
	{"acceleration", fieldAcceleration},
	{"acc_x", fieldAcceleration},
	{"max_acceleration", fieldMaxAcceleration},
	{"max_acc", fieldMaxAcceleration},
	{"max_braking", fieldMaxBraking},
	{"max_brake", fieldMaxBraking},
	{"harsh_acceleration", fieldHarshAccel},
	{"harsh_acc", fieldHarshAccel},
	{"harsh_braking", fieldHarshBraking},
	{"harsh_brake", fieldHarshBraking},
	{"harsh_cornering", fieldHarshCornering},
	{"harsh_turn", fieldHarshCornering},
	{"wln_crn_max", fieldMaxCornering},
	{"cornering", fieldMaxCornering},
	{"idling_time", fieldIdlingTime},
	{"idle_time", fieldIdlingTime},
	{"movement_sens", fieldMovementSensor},
	{"movement", fieldMovementSensor},

	// Driver and trip
	{"avl_driver", fieldDriverID},
	{"driver_code", fieldDriverID},
	{"driver_id", fieldDriverID},
	{"trip_id", fieldTripID},
	{"trip", fieldTripID},
}

// analogNames are bare keys routed to the analog-input map in addition to
// the ain<N> convention.
var analogNames = map[string]struct{}{
	"tilt":      {},
	"vibration": {},
	"ext_temp":  {},
	"humidity":  {},
	"pressure":  {},
}

// digitalNames are bare keys routed to the digital-input map.
var digitalNames = map[string]struct{}{
	"panic": {},
	"sos":   {},
	"alarm": {},
}

// Mapper normalizes one unit's raw parameter bags into canonical record
// fields. The alias table is static; the custom sensor table is the
// unit's own and is fixed at construction.
type Mapper struct {
	sensors map[string]wialon.SensorDef
}

func NewMapper(sensors map[string]wialon.SensorDef) *Mapper {
	return &Mapper{sensors: sensors}
}

// MapInto applies the alias table, the prefix/pattern rules and the custom
// sensor table to one parameter bag. Keys or values of unexpected shape
// are skipped for that field only; MapInto never fails.
//
// A key may legitimately populate both a canonical scalar field and a
// digital/analog map entry; the two rule sets run independently.
func (m *Mapper) MapInto(params map[string]interface{}, rec *Record) {
	if len(params) == 0 {
		return
	}

	assigned := make(map[string]bool)
	for _, rule := range aliasTable {
		if assigned[rule.field] {
			continue
		}
		value, ok := params[rule.key]
		if !ok {
			continue
		}
		if setCanonical(rec, rule.field, value) {
			assigned[rule.field] = true
		}
	}

	for key, value := range params {
		if isDigitalInputKey(key) {
			rec.DigitalInputs[key] = truthy(value)
		}
		if isDigitalOutputKey(key) {
			rec.DigitalOutputs[key] = truthy(value)
		}
		if isAnalogInputKey(key) {
			if f, ok := toFloat(value); ok {
				rec.AnalogInputs[key] = f
			}
		}
		if strings.HasPrefix(key, "can_") || strings.HasPrefix(key, "j1939_") {
			rec.CANData[key] = value
		}
	}

	for _, def := range m.sensors {
		if def.Parameter == "" {
			continue
		}
		if value, ok := params[def.Parameter]; ok {
			rec.CustomSensors[def.Name] = value
		}
	}
}

func setCanonical(rec *Record, field string, value interface{}) bool {
	switch field {
	case fieldEngineOn:
		rec.EngineOn = truthy(value)
	case fieldIgnition:
		rec.Ignition = truthy(value)
	case fieldDriverID:
		s, ok := toString(value)
		if !ok {
			return false
		}
		rec.DriverID = s
	case fieldTripID:
		s, ok := toString(value)
		if !ok {
			return false
		}
		rec.TripID = s
	case fieldGSMSignal, fieldRPM, fieldMovementSensor:
		n, ok := toFloat(value)
		if !ok {
			return false
		}
		switch field {
		case fieldGSMSignal:
			rec.GSMSignal = int(n)
		case fieldRPM:
			rec.RPM = int(n)
		case fieldMovementSensor:
			rec.MovementSensor = int(n)
		}
	default:
		n, ok := toFloat(value)
		if !ok {
			return false
		}
		switch field {
		case fieldPowerVoltage:
			rec.PowerVoltage = n
		case fieldBatteryVoltage:
			rec.BatteryVoltage = n
		case fieldInternalBattery:
			rec.InternalBattery = n
		case fieldTemperature:
			rec.Temperature = n
		case fieldOdometer:
			rec.Odometer = n
		case fieldEngineHours:
			rec.EngineHours = n
		case fieldFuelLevel:
			rec.FuelLevel = n
		case fieldFuelConsumption:
			rec.FuelConsumption = n
		case fieldCoolantTemp:
			rec.CoolantTemp = n
		case fieldOilPressure:
			rec.OilPressure = n
		case fieldAcceleration:
			rec.Acceleration = n
		case fieldMaxAcceleration:
			rec.MaxAcceleration = n
		case fieldMaxBraking:
			rec.MaxBraking = n
		case fieldHarshAccel:
			rec.HarshAccel = int(n)
		case fieldHarshBraking:
			rec.HarshBraking = int(n)
		case fieldHarshCornering:
			rec.HarshCornering = int(n)
		case fieldMaxCornering:
			rec.MaxCornering = n
		case fieldIdlingTime:
			rec.IdlingTime = n
		default:
			return false
		}
	}
	return true
}

func isDigitalInputKey(key string) bool {
	if rest, ok := strings.CutPrefix(key, "din"); ok && isDigits(rest) {
		return true
	}
	if strings.HasPrefix(key, "door") {
		return true
	}
	_, named := digitalNames[key]
	return named
}

func isDigitalOutputKey(key string) bool {
	if rest, ok := strings.CutPrefix(key, "dout"); ok && isDigits(rest) {
		return true
	}
	return strings.HasPrefix(key, "relay")
}

func isAnalogInputKey(key string) bool {
	if rest, ok := strings.CutPrefix(key, "ain"); ok && isDigits(rest) {
		return true
	}
	_, named := analogNames[key]
	return named
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// toFloat coerces the mixed scalar types a parameter bag carries after
// JSON decoding: numbers, numeric strings and booleans.
func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case bool:
		if v {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	default:
		return "", false
	}
}

// truthy implements the boolean coercion used for engine/ignition state
// and digital I/O: any non-zero number or non-empty string is true.
func truthy(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case float64:
		return v != 0
	case float32:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case string:
		return v != ""
	default:
		return true
	}
}
