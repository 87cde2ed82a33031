package telemetry

import (
	"math"
	"time"

	"fleet-telemetry-reporter/internal/wialon"
)

// Record is the canonical per-sample telemetry snapshot. Every numeric
// field defaults to zero when the source parameter bag has no alias for
// it; absence is never distinguished from zero.
type Record struct {
	Timestamp time.Time `json:"timestamp"`

	// GPS position
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	Altitude   float64 `json:"altitude"`
	Speed      float64 `json:"speed"`
	Course     float64 `json:"course"`
	Satellites int     `json:"satellites"`
	HDOP       float64 `json:"hdop"`

	// Device status
	PowerVoltage    float64 `json:"power_voltage"`
	BatteryVoltage  float64 `json:"battery_voltage"`
	InternalBattery float64 `json:"internal_battery"`
	GSMSignal       int     `json:"gsm_signal"`
	Temperature     float64 `json:"temperature"`

	// Engine and vehicle state
	EngineOn        bool    `json:"engine_on"`
	Ignition        bool    `json:"ignition"`
	Odometer        float64 `json:"odometer"`
	EngineHours     float64 `json:"engine_hours"`
	FuelLevel       float64 `json:"fuel_level"`
	FuelConsumption float64 `json:"fuel_consumption"`
	RPM             int     `json:"rpm"`
	CoolantTemp     float64 `json:"coolant_temp"`
	OilPressure     float64 `json:"oil_pressure"`

	// Movement and behavior
	Acceleration    float64 `json:"acceleration"`
	MaxAcceleration float64 `json:"max_acceleration"`
	MaxBraking      float64 `json:"max_braking"`
	HarshAccel      int     `json:"harsh_acceleration"`
	HarshBraking    int     `json:"harsh_braking"`
	HarshCornering  int     `json:"harsh_cornering"`
	MaxCornering    float64 `json:"max_cornering"`
	IdlingTime      float64 `json:"idling_time"`
	MovementSensor  int     `json:"movement_sensor"`

	// Driver and trip
	DriverID   string `json:"driver_id"`
	DriverName string `json:"driver_name,omitempty"`
	TripID     string `json:"trip_id"`

	// Bus and I/O maps
	DigitalInputs  map[string]bool        `json:"digital_inputs"`
	DigitalOutputs map[string]bool        `json:"digital_outputs"`
	AnalogInputs   map[string]float64     `json:"analog_inputs"`
	CustomSensors  map[string]interface{} `json:"custom_sensors"`
	CANData        map[string]interface{} `json:"can_data"`

	// Derived per-record fields
	SpeedingViolations int      `json:"speeding_violations"`
	EcoDrivingScore    float64  `json:"eco_driving_score"`
	MaintenanceAlerts  []string `json:"maintenance_alerts"`

	// Verbatim copy of the raw parameter bag.
	RawParameters map[string]interface{} `json:"raw_parameters"`
}

const (
	// SpeedingThreshold is the fixed speed above which a sample counts as
	// a speeding violation, in km/h.
	SpeedingThreshold = 80.0

	lowFuelThreshold     = 10.0
	lowVoltageThreshold  = 11000.0 // millivolts
	engineServiceHours   = 100.0
	odometerServiceKM    = 10000.0
	odometerServiceSlack = 100.0
)

func newRecord() Record {
	return Record{
		DriverID:       "0",
		DigitalInputs:  make(map[string]bool),
		DigitalOutputs: make(map[string]bool),
		AnalogInputs:   make(map[string]float64),
		CustomSensors:  make(map[string]interface{}),
		CANData:        make(map[string]interface{}),
		RawParameters:  make(map[string]interface{}),
	}
}

// Builder turns raw device messages into canonical records. One builder
// serves one unit: the sensor definitions it carries are that unit's.
type Builder struct {
	mapper *Mapper
}

func NewBuilder(sensors map[string]wialon.SensorDef) *Builder {
	return &Builder{mapper: NewMapper(sensors)}
}

// Build constructs one immutable Record from a raw message. A nil message
// yields an all-default record; Build never fails.
func (b *Builder) Build(msg *wialon.RawMessage) Record {
	rec := newRecord()
	if msg == nil {
		return rec
	}

	rec.Timestamp = time.Unix(msg.Timestamp, 0)

	if msg.Pos != nil {
		rec.Latitude = msg.Pos.Latitude
		rec.Longitude = msg.Pos.Longitude
		rec.Altitude = msg.Pos.Altitude
		rec.Speed = msg.Pos.Speed
		rec.Course = msg.Pos.Course
		rec.Satellites = msg.Pos.Satellites
		rec.HDOP = msg.Pos.HDOP
	}

	for k, v := range msg.Params {
		rec.RawParameters[k] = v
	}
	b.mapper.MapInto(msg.Params, &rec)

	deriveFields(&rec)
	return rec
}

// BuildAll maps a full message sequence, preserving order.
func (b *Builder) BuildAll(msgs []wialon.RawMessage) []Record {
	records := make([]Record, 0, len(msgs))
	for i := range msgs {
		records = append(records, b.Build(&msgs[i]))
	}
	return records
}

// deriveFields computes the per-record speeding flag, eco score and
// maintenance alerts. Alert order is fixed; several may fire at once.
func deriveFields(rec *Record) {
	if rec.Speed > SpeedingThreshold {
		rec.SpeedingViolations = 1
	}

	eco := 100.0
	eco -= float64(rec.HarshAccel) * 5
	eco -= float64(rec.HarshBraking) * 5
	eco -= float64(rec.HarshCornering) * 3
	if rec.Speed > 100 {
		eco -= 10
	}
	rec.EcoDrivingScore = math.Max(0, eco)

	if rec.EngineHours > 0 && math.Mod(rec.EngineHours, engineServiceHours) < 1 {
		rec.MaintenanceAlerts = append(rec.MaintenanceAlerts, "Engine maintenance due")
	}
	if rec.Odometer > 0 && math.Mod(rec.Odometer, odometerServiceKM) < odometerServiceSlack {
		rec.MaintenanceAlerts = append(rec.MaintenanceAlerts, "Vehicle service due")
	}
	if rec.FuelLevel < lowFuelThreshold {
		rec.MaintenanceAlerts = append(rec.MaintenanceAlerts, "Low fuel level")
	}
	if rec.PowerVoltage > 0 && rec.PowerVoltage < lowVoltageThreshold {
		rec.MaintenanceAlerts = append(rec.MaintenanceAlerts, "Low battery voltage")
	}
}
