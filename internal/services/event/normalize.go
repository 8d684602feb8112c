package event

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement is the single measurement for every system event.
const Measurement = "system_event"

// EventToPoint normalizza CommonEvent in un *write.Point per InfluxDB.
func EventToPoint(evt CommonEvent) *write.Point {
	tags := map[string]string{
		"event_type":     evt.EventType,
		"source_service": evt.SourceService,
		"severity":       evt.Severity,
	}
	if evt.SensorID != "" {
		tags["sensor_id"] = evt.SensorID
	}
	if evt.Trigger != "" {
		tags["trigger"] = evt.Trigger
	}

	fields := map[string]interface{}{}
	for k, v := range evt.Fields {
		fields[k] = v
	}
	// almeno un field
	if _, ok := fields["count"]; !ok {
		fields["count"] = int64(1)
	}

	t := evt.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	return influxdb2.NewPoint(Measurement, tags, fields, t)
}
