package messages

import (
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// Reasons for a pump state change.
const (
	ReasonActivated = "activated"
	ReasonTimer     = "timer"
	ReasonManualOff = "manual_off"
)

// PumpStateEvent is emitted by the irrigation controller on every pump transition.
// RecordID, Humidity and Temperature are only set on activation.
type PumpStateEvent struct {
	Active      bool                 `json:"active"`
	Trigger     entities.TriggerType `json:"trigger,omitempty"`
	Reason      string               `json:"reason"`
	RecordID    string               `json:"record_id,omitempty"`
	Humidity    float64              `json:"humidity"`
	Temperature float64              `json:"temperature"`
	RunFor      time.Duration        `json:"run_for"`
	Timestamp   time.Time            `json:"timestamp"`
}
