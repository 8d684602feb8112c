package messages

import (
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// SensorStatusChanged is emitted when an operator enables or disables a sensor.
type SensorStatusChanged struct {
	SensorID  string                `json:"sensor_id"`
	OldStatus entities.SensorStatus `json:"old_status"`
	NewStatus entities.SensorStatus `json:"new_status"`
	Timestamp time.Time             `json:"timestamp"`
}
