package entities

// TriggerType tells who started an irrigation.
type TriggerType string

const (
	TriggerManual    TriggerType = "manual"
	TriggerAutomatic TriggerType = "automatic"
)

func (t TriggerType) Valid() bool {
	return t == TriggerManual || t == TriggerAutomatic
}

// MaxHistory caps the irrigation history, newest first.
const MaxHistory = 50

// IrrigationRecord is an immutable log entry written at pump activation.
// Humidity and Temperature are the rounded means of the active sensors at that moment.
type IrrigationRecord struct {
	ID          string      `json:"id"`
	Timestamp   Timestamp   `json:"timestamp"`
	Humidity    float64     `json:"humidity"`
	Temperature float64     `json:"temperature"`
	PumpStatus  bool        `json:"pumpStatus"`
	Type        TriggerType `json:"type"`
	Duration    *int        `json:"duration,omitempty"` // minuti nominali, solo automatico
}
