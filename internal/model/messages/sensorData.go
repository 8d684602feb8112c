package messages

import (
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// SensorReading is the per-sensor sample published after every simulator pass.
type SensorReading struct {
	SensorID  string                `json:"sensor_id"`
	Type      entities.SensorKind   `json:"type"`
	Location  string                `json:"location"`
	Value     float64               `json:"value"`
	Unit      string                `json:"unit"`
	Status    entities.SensorStatus `json:"status"`
	Source    string                `json:"source"` // "simulated" | "device"
	Timestamp time.Time             `json:"timestamp"`
}
