package app

import (
	"encoding/json"
	"net/http"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/services/history"
)

// Humidity and temperature bands shown on the dashboard cards.
const (
	HumidityCritical = "critical"
	HumidityLow      = "low"
	HumidityOptimal  = "optimal"
	TemperatureAlert = "alert"
	TemperatureOK    = "normal"
)

// System modes.
const (
	ModeIrrigating = "irrigating"
	ModeAutomatic  = "automatic"
	ModeManual     = "manual"
)

type DashboardStats struct {
	AvgHumidity       float64 `json:"avgHumidity"`
	AvgTemperature    float64 `json:"avgTemperature"`
	ActiveSensors     int     `json:"activeSensors"`
	TotalSensors      int     `json:"totalSensors"`
	PumpActive        bool    `json:"pumpActive"`
	AutoMode          bool    `json:"autoMode"`
	Threshold         float64 `json:"threshold"`
	HumidityStatus    string  `json:"humidityStatus"`
	TemperatureStatus string  `json:"temperatureStatus"`
	Mode              string  `json:"mode"`
}

type DashboardData struct {
	Sensors    []entities.Sensor           `json:"sensors"`
	Stats      DashboardStats              `json:"stats"`
	Alerts     []string                    `json:"alerts"`
	Recent     []entities.IrrigationRecord `json:"recent"`
	LastUpdate entities.Timestamp          `json:"lastUpdate"`
}

type SensorsData struct {
	Sensors     []entities.Sensor `json:"sensors"`
	Active      int               `json:"active"`
	Inactive    int               `json:"inactive"`
	AvgHumidity float64           `json:"avgHumidity"`
}

type HistoryData struct {
	Records []entities.IrrigationRecord `json:"records"`
	Stats   history.Stats               `json:"stats"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      string `json:"user"`
	Timestamp int64  `json:"timestamp"`
}

type statusRequest struct {
	Status entities.SensorStatus `json:"status"`
}

type activateRequest struct {
	Trigger entities.TriggerType `json:"trigger"`
}

type activateResponse struct {
	Record     entities.IrrigationRecord `json:"record"`
	RunSeconds float64                   `json:"runSeconds"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func humidityStatus(avg float64) string {
	switch {
	case avg < 25:
		return HumidityCritical
	case avg < 35:
		return HumidityLow
	}
	return HumidityOptimal
}

func temperatureStatus(avg float64) string {
	if avg < 18 || avg > 32 {
		return TemperatureAlert
	}
	return TemperatureOK
}

func systemMode(cfg entities.SystemConfig) string {
	switch {
	case cfg.PumpActive:
		return ModeIrrigating
	case cfg.AutoIrrigation:
		return ModeAutomatic
	}
	return ModeManual
}

func buildDashboard(d entities.SystemData, recent int) DashboardData {
	stats := DashboardStats{
		AvgHumidity:    d.RoundedMean(entities.KindHumidity),
		AvgTemperature: d.RoundedMean(entities.KindTemperature),
		ActiveSensors:  d.ActiveSensors(),
		TotalSensors:   len(d.Sensors),
		PumpActive:     d.Config.PumpActive,
		AutoMode:       d.Config.AutoIrrigation,
		Threshold:      d.Config.HumidityThreshold,
		Mode:           systemMode(d.Config),
	}
	stats.HumidityStatus = humidityStatus(stats.AvgHumidity)
	stats.TemperatureStatus = temperatureStatus(stats.AvgTemperature)

	alerts := []string{}
	if stats.AvgHumidity < d.Config.HumidityThreshold {
		alerts = append(alerts, "humidity_below_threshold")
	}
	if !stats.AutoMode {
		alerts = append(alerts, "auto_irrigation_disabled")
	}

	rec := d.IrrigationHistory
	if len(rec) > recent {
		rec = rec[:recent]
	}
	return DashboardData{
		Sensors:    d.Sensors,
		Stats:      stats,
		Alerts:     alerts,
		Recent:     rec,
		LastUpdate: d.Config.LastUpdate,
	}
}

func buildSensors(d entities.SystemData) SensorsData {
	active := d.ActiveSensors()
	return SensorsData{
		Sensors:     d.Sensors,
		Active:      active,
		Inactive:    len(d.Sensors) - active,
		AvgHumidity: d.RoundedMean(entities.KindHumidity),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
