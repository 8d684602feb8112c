package messages

import (
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
)

// PumpCommand arrives over MQTT from field devices or remote panels.
// ID is used for de-duplication of redelivered commands.
type PumpCommand struct {
	ID        string               `json:"id"`
	Action    string               `json:"action"`
	Trigger   entities.TriggerType `json:"trigger,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}
