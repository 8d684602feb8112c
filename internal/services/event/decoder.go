package event

import (
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
)

// Event types.
const (
	TypeIrrigationStart = "irrigation.start"
	TypeIrrigationStop  = "irrigation.stop"
	TypeSensorStatus    = "sensor.status_change"
)

type CommonEvent struct {
	EventType     string // irrigation.start | irrigation.stop | sensor.status_change
	SourceService string // irrigation-controller | telemetry-simulator
	SensorID      string
	Trigger       string
	Severity      string // info|warning|error
	Fields        map[string]interface{}
	Timestamp     time.Time
}

// FromPumpState maps a pump transition onto a CommonEvent.
func FromPumpState(e messages.PumpStateEvent) CommonEvent {
	if e.Active {
		return CommonEvent{
			EventType:     TypeIrrigationStart,
			SourceService: "irrigation-controller",
			Trigger:       string(e.Trigger),
			Severity:      "info",
			Fields: map[string]interface{}{
				"record_id":   e.RecordID,
				"humidity":    e.Humidity,
				"temperature": e.Temperature,
				"run_for_s":   e.RunFor.Seconds(),
			},
			Timestamp: e.Timestamp,
		}
	}
	return CommonEvent{
		EventType:     TypeIrrigationStop,
		SourceService: "irrigation-controller",
		Severity:      "info",
		Fields:        map[string]interface{}{"reason": e.Reason},
		Timestamp:     e.Timestamp,
	}
}

// FromSensorStatus maps an operator status change; disabling a sensor is a warning.
func FromSensorStatus(e messages.SensorStatusChanged) CommonEvent {
	sev := "info"
	if e.NewStatus == entities.StatusInactive {
		sev = "warning"
	}
	return CommonEvent{
		EventType:     TypeSensorStatus,
		SourceService: "telemetry-simulator",
		SensorID:      e.SensorID,
		Severity:      sev,
		Fields: map[string]interface{}{
			"old_status": string(e.OldStatus),
			"new_status": string(e.NewStatus),
		},
		Timestamp: e.Timestamp,
	}
}
