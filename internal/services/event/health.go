package event

import (
	"encoding/json"
	"net/http"
	"time"
)

// StoreChecker reports the last storage failure.
type StoreChecker interface {
	LastError() error
}

// ConnChecker is satisfied by mqtt.Client.
type ConnChecker interface {
	IsConnectionOpen() bool
}

// Deps are the dependencies inspected by /healthz and /readyz.
// A nil MQTT or Writer means the integration is disabled, not down.
type Deps struct {
	Store  StoreChecker
	MQTT   ConnChecker
	Writer *Writer
}

type status struct {
	Status          string  `json:"status"`
	StoreOK         bool    `json:"store_ok"`
	MQTTEnabled     bool    `json:"mqtt_enabled"`
	MQTTConnected   bool    `json:"mqtt_connected"`
	InfluxEnabled   bool    `json:"influx_enabled"`
	LastWriteErrorS float64 `json:"last_write_error_age_sec"`
}

func (d Deps) check(minErrAge time.Duration) status {
	st := status{
		StoreOK:       d.Store == nil || d.Store.LastError() == nil,
		MQTTEnabled:   d.MQTT != nil,
		MQTTConnected: d.MQTT != nil && d.MQTT.IsConnectionOpen(),
		InfluxEnabled: d.Writer != nil,
	}
	age := d.Writer.LastErrorAge()
	st.LastWriteErrorS = age.Seconds()

	mqttOK := !st.MQTTEnabled || st.MQTTConnected
	influxOK := !st.InfluxEnabled || age > minErrAge
	switch {
	case st.StoreOK && mqttOK && influxOK:
		st.Status = "ok"
	case st.StoreOK:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}
	return st
}

// NewHealthHandler always answers 200 with the dependency breakdown.
func NewHealthHandler(d Deps) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.check(30 * time.Second))
	})
}

// NewReadyHandler answers 200 only when every enabled dependency is ok.
func NewReadyHandler(d Deps, minOkErrorAge time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		st := d.check(minOkErrorAge)
		ready := st.Status == "ok"
		w.Header().Set("Content-Type", "application/json")
		if !ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		type resp struct {
			Ready bool `json:"ready"`
		}
		_ = json.NewEncoder(w).Encode(resp{Ready: ready})
	})
}
