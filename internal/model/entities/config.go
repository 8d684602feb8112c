package entities

import "time"

// SystemConfig is the singleton configuration. PumpActive and AutoIrrigation are independent.
type SystemConfig struct {
	HumidityThreshold float64   `json:"humidityThreshold"`
	AutoIrrigation    bool      `json:"autoIrrigation"`
	PumpActive        bool      `json:"pumpActive"`
	LastUpdate        Timestamp `json:"lastUpdate"`
}

// ConfigPatch carries the fields to merge; nil means "leave as is".
type ConfigPatch struct {
	HumidityThreshold *float64 `json:"humidityThreshold,omitempty"`
	AutoIrrigation    *bool    `json:"autoIrrigation,omitempty"`
	PumpActive        *bool    `json:"pumpActive,omitempty"`
}

func (p ConfigPatch) Empty() bool {
	return p.HumidityThreshold == nil && p.AutoIrrigation == nil && p.PumpActive == nil
}

// Apply shallow-merges the patch and refreshes LastUpdate.
func (c *SystemConfig) Apply(p ConfigPatch, now time.Time) {
	if p.HumidityThreshold != nil {
		c.HumidityThreshold = *p.HumidityThreshold
	}
	if p.AutoIrrigation != nil {
		c.AutoIrrigation = *p.AutoIrrigation
	}
	if p.PumpActive != nil {
		c.PumpActive = *p.PumpActive
	}
	c.LastUpdate = NewTimestamp(now)
}
