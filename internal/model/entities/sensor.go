package entities

import "math"

// SensorKind is the physical magnitude a sensor reports.
type SensorKind string

const (
	KindHumidity    SensorKind = "humidity"
	KindTemperature SensorKind = "temperature"
)

// SensorStatus indicates whether the simulator refreshes the sensor.
type SensorStatus string

const (
	StatusActive   SensorStatus = "active"
	StatusInactive SensorStatus = "inactive"
)

func (s SensorStatus) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Valid ranges per kind.
const (
	HumidityMin    = 0.0
	HumidityMax    = 100.0
	TemperatureMin = -10.0
	TemperatureMax = 50.0
)

// Clamp forces v into the valid range of the kind.
func (k SensorKind) Clamp(v float64) float64 {
	lo, hi := k.Bounds()
	return math.Min(hi, math.Max(lo, v))
}

func (k SensorKind) Bounds() (float64, float64) {
	switch k {
	case KindTemperature:
		return TemperatureMin, TemperatureMax
	default:
		return HumidityMin, HumidityMax
	}
}

func (k SensorKind) Unit() string {
	if k == KindTemperature {
		return "°C"
	}
	return "%"
}

// Sensor represents a single simulated probe. Sensors are never deleted,
// only switched between active and inactive.
type Sensor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        SensorKind   `json:"type"`
	Value       float64      `json:"value"`
	Unit        string       `json:"unit"`
	Status      SensorStatus `json:"status"`
	LastUpdated Timestamp    `json:"lastUpdated"`
	Location    string       `json:"location"`
}

func (s Sensor) IsActive() bool {
	return s.Status == StatusActive
}
