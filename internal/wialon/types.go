package wialon

import "encoding/json"

// Position is the GPS block of a message. Field names follow the wire
// format: y/x are latitude/longitude, s is speed in km/h, c is course,
// sc the satellite count.
type Position struct {
	Latitude   float64 `json:"y"`
	Longitude  float64 `json:"x"`
	Altitude   float64 `json:"z"`
	Speed      float64 `json:"s"`
	Course     float64 `json:"c"`
	Satellites int     `json:"sc"`
	HDOP       float64 `json:"hdop"`
}

// RawMessage is one device sample as returned by messages/load_interval.
// Params carries the raw parameter bag; values are numbers, booleans or
// strings depending on the device firmware.
type RawMessage struct {
	Timestamp int64                  `json:"t"`
	Pos       *Position              `json:"pos"`
	Params    map[string]interface{} `json:"p"`
}

// SensorDef describes one custom sensor configured on a unit: a human
// readable name and the raw parameter it reads from.
type SensorDef struct {
	Name      string `json:"n"`
	Parameter string `json:"p"`
}

// Unit is one tracked vehicle/device.
type Unit struct {
	ID         int64                `json:"id"`
	Name       string               `json:"nm"`
	DeviceType string               `json:"hw"`
	UniqueID   string               `json:"uid"`
	Phone      string               `json:"ph"`
	Sensors    map[string]SensorDef `json:"sens"`
}

// Driver is one registered driver.
type Driver struct {
	ID    int64  `json:"id"`
	Name  string `json:"nm"`
	Code  string `json:"c"`
	Phone string `json:"ph"`
	Email string `json:"email"`
}

type searchItemsResult struct {
	Items json.RawMessage `json:"items"`
}

type loadIntervalResult struct {
	Count    int          `json:"count"`
	Messages []RawMessage `json:"messages"`
}

type loginResult struct {
	SessionID string `json:"eid"`
	UserName  string `json:"au"`
}

// apiError is the error envelope the API mixes into otherwise ordinary
// responses. Code 1 means the session is no longer valid.
type apiError struct {
	Code   int    `json:"error"`
	Reason string `json:"reason"`
}

func (e *apiError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	switch e.Code {
	case 1:
		return "invalid session"
	case 4:
		return "invalid input"
	case 7:
		return "access denied"
	default:
		return "api error"
	}
}

const (
	svcLogin        = "token/login"
	svcLogout       = "core/logout"
	svcSearchItems  = "core/search_items"
	svcLoadInterval = "messages/load_interval"
)

// Unit search flags: base properties, custom fields, sensors, counters and
// maintenance info, matching what the report needs.
const unitDataFlags = 0x00000001 | 0x00000002 | 0x00000008 | 0x00000020 |
	0x00000040 | 0x00000200 | 0x00000400 | 0x00001000 | 0x00008000
