package entities

import (
	"math"
	"time"
)

// SystemData is the whole persisted aggregate, read and rewritten as one document.
type SystemData struct {
	Sensors           []Sensor           `json:"sensors"`
	IrrigationHistory []IrrigationRecord `json:"irrigationHistory"`
	Config            SystemConfig       `json:"config"`
	Users             []User             `json:"users"`
}

// InitialSystemData returns the seed document written on first run or after corruption.
func InitialSystemData(now time.Time) SystemData {
	ts := NewTimestamp(now)
	duration := 15
	return SystemData{
		Sensors: []Sensor{
			{ID: "humid-001", Name: "Sensor Humedad Zona A", Type: KindHumidity, Value: 45, Unit: "%", Status: StatusActive, LastUpdated: ts, Location: "Sector Norte"},
			{ID: "humid-002", Name: "Sensor Humedad Zona B", Type: KindHumidity, Value: 28, Unit: "%", Status: StatusActive, LastUpdated: ts, Location: "Sector Sur"},
			{ID: "temp-001", Name: "Sensor Temperatura", Type: KindTemperature, Value: 24, Unit: "°C", Status: StatusActive, LastUpdated: ts, Location: "Central"},
		},
		IrrigationHistory: []IrrigationRecord{
			{
				ID:          "irr-001",
				Timestamp:   NewTimestamp(now.Add(-time.Hour)),
				Humidity:    25,
				Temperature: 26,
				PumpStatus:  true,
				Type:        TriggerAutomatic,
				Duration:    &duration,
			},
		},
		Config: SystemConfig{
			HumidityThreshold: 30,
			AutoIrrigation:    true,
			PumpActive:        false,
			LastUpdate:        ts,
		},
		Users: []User{{Username: "admin", Password: "admin123", Role: RoleAdmin}},
	}
}

// FindSensor returns a pointer into Sensors, or nil.
func (d *SystemData) FindSensor(id string) *Sensor {
	for i := range d.Sensors {
		if d.Sensors[i].ID == id {
			return &d.Sensors[i]
		}
	}
	return nil
}

// Mean averages the active sensors of a kind. ok is false when none is active.
func (d *SystemData) Mean(kind SensorKind) (mean float64, ok bool) {
	var sum float64
	n := 0
	for _, s := range d.Sensors {
		if s.Type == kind && s.IsActive() {
			sum += s.Value
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// RoundedMean is Mean rounded to an integer, 0 when no sensor of the kind is active.
func (d *SystemData) RoundedMean(kind SensorKind) float64 {
	m, _ := d.Mean(kind)
	return math.Floor(m + 0.5)
}

// ActiveSensors counts the active sensors.
func (d *SystemData) ActiveSensors() int {
	n := 0
	for _, s := range d.Sensors {
		if s.IsActive() {
			n++
		}
	}
	return n
}

// PrependRecord puts r first and trims the history to MaxHistory.
func (d *SystemData) PrependRecord(r IrrigationRecord) {
	h := make([]IrrigationRecord, 0, len(d.IrrigationHistory)+1)
	h = append(h, r)
	h = append(h, d.IrrigationHistory...)
	if len(h) > MaxHistory {
		h = h[:MaxHistory]
	}
	d.IrrigationHistory = h
}
