package messages

import (
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// Simulator passes.
const (
	PassUpdate = "update"
	PassJitter = "jitter"
	PassStatus = "status"
)

// Snapshot is the committed aggregate after a simulator pass, fanned out to observers.
// FromDevice marks the kinds whose values came from a real source during the pass.
type Snapshot struct {
	Pass       string                       `json:"pass"`
	Data       entities.SystemData          `json:"data"`
	FromDevice map[entities.SensorKind]bool `json:"from_device,omitempty"`
	At         time.Time                    `json:"at"`
}

// Readings flattens the snapshot, one reading per sensor.
func (s Snapshot) Readings() []SensorReading {
	out := make([]SensorReading, 0, len(s.Data.Sensors))
	for _, sen := range s.Data.Sensors {
		source := "simulated"
		if s.FromDevice[sen.Type] && s.Pass == PassUpdate {
			source = "device"
		}
		out = append(out, SensorReading{
			SensorID:  sen.ID,
			Type:      sen.Type,
			Location:  sen.Location,
			Value:     sen.Value,
			Unit:      sen.Unit,
			Status:    sen.Status,
			Source:    source,
			Timestamp: sen.LastUpdated.Time,
		})
	}
	return out
}
