package app

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	sensor_simulator "github.com/CrissP24/citrus-flow-sim/internal/sensor-simulator"
	irrigation_controller "github.com/CrissP24/citrus-flow-sim/internal/services/irrigation-controller"
	"github.com/CrissP24/citrus-flow-sim/internal/services/history"
	"github.com/CrissP24/citrus-flow-sim/internal/services/session"
)

func (g *Gateway) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	data := g.deps.Store.Load(r.Context())
	writeJSON(w, http.StatusOK, buildDashboard(data, g.cfg.RecentLimit))
}

func (g *Gateway) HandleSensors(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildSensors(g.deps.Store.Load(r.Context())))
}

func (g *Gateway) HandleSensorStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	sen, err := g.deps.Sensors.SetSensorStatus(r.Context(), r.PathValue("id"), req.Status)
	switch {
	case errors.Is(err, sensor_simulator.ErrUnknownSensor):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, sensor_simulator.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, sen)
	}
}

func (g *Gateway) HandlePumpActivate(w http.ResponseWriter, r *http.Request) {
	req := activateRequest{Trigger: entities.TriggerManual}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid body")
			return
		}
		if req.Trigger == "" {
			req.Trigger = entities.TriggerManual
		}
	}
	rec, err := g.deps.Pump.Activate(r.Context(), req.Trigger)
	if errors.Is(err, irrigation_controller.ErrInvalidTrigger) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, activateResponse{Record: rec, RunSeconds: g.deps.Pump.RunTime(rec.Type).Seconds()})
}

func (g *Gateway) HandlePumpDeactivate(w http.ResponseWriter, r *http.Request) {
	g.deps.Pump.Deactivate(r.Context())
	writeJSON(w, http.StatusOK, g.deps.Store.Load(r.Context()).Config)
}

func (g *Gateway) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, g.deps.Sessions.Config(r.Context()))
}

// HandlePutConfig merges the patch; a pumpActive change goes through the controller
// so the pending deactivation and history stay consistent. Switching on a running
// pump leaves it untouched.
func (g *Gateway) HandlePutConfig(w http.ResponseWriter, r *http.Request) {
	var patch entities.ConfigPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if patch.Empty() {
		writeError(w, http.StatusBadRequest, session.ErrEmptyPatch.Error())
		return
	}
	pump := patch.PumpActive
	patch.PumpActive = nil

	if !patch.Empty() {
		if _, err := g.deps.Sessions.UpdateConfig(r.Context(), patch); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if pump != nil {
		running := g.deps.Store.Load(r.Context()).Config.PumpActive
		if *pump && !running {
			if _, err := g.deps.Pump.Activate(r.Context(), entities.TriggerManual); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		} else if !*pump {
			g.deps.Pump.Deactivate(r.Context())
		}
	}
	writeJSON(w, http.StatusOK, g.deps.Sessions.Config(r.Context()))
}

func (g *Gateway) filteredHistory(r *http.Request) ([]entities.IrrigationRecord, error) {
	q := r.URL.Query()
	typ, err := history.ParseType(q.Get("type"))
	if err != nil {
		return nil, err
	}
	records := g.deps.Store.Load(r.Context()).IrrigationHistory
	return history.Filter(records, typ, q.Get("q"), g.cfg.Location), nil
}

func (g *Gateway) HandleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := g.filteredHistory(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, HistoryData{Records: records, Stats: history.Summarize(records)})
}

// HandleHistoryExport downloads the filtered history as CSV.
func (g *Gateway) HandleHistoryExport(w http.ResponseWriter, r *http.Request) {
	records, err := g.filteredHistory(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var buf bytes.Buffer
	if err := history.WriteCSV(&buf, records, g.cfg.Location); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv;charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+history.FileName(time.Now())+`"`)
	_, _ = w.Write(buf.Bytes())
}

func (g *Gateway) HandleTrend(w http.ResponseWriter, r *http.Request) {
	if g.deps.Trend == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, g.deps.Trend.Points())
}
