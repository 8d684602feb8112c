package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	sensor_simulator "github.com/CrissP24/citrus-flow-sim/internal/sensor-simulator"
	"github.com/CrissP24/citrus-flow-sim/internal/services/aggregator"
	irrigation_controller "github.com/CrissP24/citrus-flow-sim/internal/services/irrigation-controller"
	"github.com/CrissP24/citrus-flow-sim/internal/services/session"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/kvstore"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
	"github.com/CrissP24/citrus-flow-sim/pkg/metrics"
)

type noopTimer struct{}

func (noopTimer) Stop() bool { return true }

// idleScheduler never fires, the pump stays on until deactivated.
type idleScheduler struct{}

func (idleScheduler) AfterFunc(time.Duration, func()) irrigation_controller.Timer { return noopTimer{} }

type staticTrend []aggregator.TrendPoint

func (s staticTrend) Points() []aggregator.TrendPoint { return s }

type gatewaySuite struct {
	suite.Suite
	now     time.Time
	store   *store.Holder
	ctrl    *irrigation_controller.Controller
	gateway *Gateway
	handler http.Handler
}

func (s *gatewaySuite) SetupTest() {
	s.now = time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	clock := func() time.Time { return s.now }
	log := logging.Discard()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	s.store = store.New(kvstore.NewMemory(), log, store.WithClock(clock), store.WithMetrics(m))
	sim := sensor_simulator.NewSimulator(s.store, sensor_simulator.NewWeatherModel(func() float64 { return 0.5 }), log,
		sensor_simulator.WithClock(clock), sensor_simulator.WithLocation(time.UTC))
	s.ctrl = irrigation_controller.NewController(s.store, log,
		irrigation_controller.WithScheduler(idleScheduler{}),
		irrigation_controller.WithClock(clock),
		irrigation_controller.WithMetrics(m))

	s.gateway = NewGateway(Config{Location: time.UTC}, Deps{
		Store:    s.store,
		Sessions: session.NewService(s.store, log, session.WithClock(clock)),
		Sensors:  sim,
		Pump:     s.ctrl,
		Trend:    staticTrend{{Time: "15:00", Humidity: 37, Temperature: 24, Threshold: 30}},
		Gatherer: reg,
		Logger:   log,
	})
	s.handler = s.gateway.Routes()
}

func (s *gatewaySuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.T(), json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func (s *gatewaySuite) login() {
	rec := s.do(http.MethodPost, "/auth/login", loginRequest{Username: "admin", Password: "admin123"})
	require.Equal(s.T(), http.StatusOK, rec.Code)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func (s *gatewaySuite) TestPublicEndpoints() {
	assert.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/healthz", nil).Code)
	assert.Equal(s.T(), http.StatusOK, s.do(http.MethodGet, "/readyz", nil).Code)

	rec := s.do(http.MethodGet, "/metrics", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Body.String(), "citriflow_pump_active")
}

func (s *gatewaySuite) TestProtectedRequiresSession() {
	for _, path := range []string{"/dashboard/data", "/sensors", "/config", "/history", "/trend", "/data/latest"} {
		assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, path, nil).Code, path)
	}
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, "/auth/session", nil).Code)
}

func (s *gatewaySuite) TestLoginFlow() {
	rec := s.do(http.MethodPost, "/auth/login", loginRequest{Username: "admin", Password: "nope"})
	assert.Equal(s.T(), http.StatusUnauthorized, rec.Code)
	assert.Equal(s.T(), http.StatusBadRequest, s.do(http.MethodPost, "/auth/login", "{").Code)

	s.login()
	sess := decode[sessionResponse](s.T(), s.do(http.MethodGet, "/auth/session", nil))
	assert.Equal(s.T(), "admin", sess.User)
	assert.Equal(s.T(), s.now.UnixMilli(), sess.Timestamp)

	s.now = s.now.Add(25 * time.Hour)
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, "/dashboard/data", nil).Code)

	s.login()
	assert.Equal(s.T(), http.StatusNoContent, s.do(http.MethodPost, "/auth/logout", nil).Code)
	assert.Equal(s.T(), http.StatusUnauthorized, s.do(http.MethodGet, "/dashboard/data", nil).Code)
}

func (s *gatewaySuite) TestDashboard() {
	s.login()
	d := decode[DashboardData](s.T(), s.do(http.MethodGet, "/dashboard/data", nil))

	assert.Len(s.T(), d.Sensors, 3)
	assert.Equal(s.T(), 37.0, d.Stats.AvgHumidity)
	assert.Equal(s.T(), 24.0, d.Stats.AvgTemperature)
	assert.Equal(s.T(), 3, d.Stats.ActiveSensors)
	assert.Equal(s.T(), HumidityOptimal, d.Stats.HumidityStatus)
	assert.Equal(s.T(), TemperatureOK, d.Stats.TemperatureStatus)
	assert.Equal(s.T(), ModeAutomatic, d.Stats.Mode)
	assert.Empty(s.T(), d.Alerts)
	assert.Len(s.T(), d.Recent, 1)
}

func (s *gatewaySuite) TestSensorStatus() {
	s.login()
	rec := s.do(http.MethodPut, "/sensors/humid-002/status", statusRequest{Status: entities.StatusInactive})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), entities.StatusInactive, decode[entities.Sensor](s.T(), rec).Status)

	sd := decode[SensorsData](s.T(), s.do(http.MethodGet, "/sensors", nil))
	assert.Equal(s.T(), 2, sd.Active)
	assert.Equal(s.T(), 1, sd.Inactive)
	assert.Equal(s.T(), 45.0, sd.AvgHumidity)

	assert.Equal(s.T(), http.StatusNotFound,
		s.do(http.MethodPut, "/sensors/nope/status", statusRequest{Status: entities.StatusActive}).Code)
	assert.Equal(s.T(), http.StatusBadRequest,
		s.do(http.MethodPut, "/sensors/humid-001/status", statusRequest{Status: "broken"}).Code)
}

func (s *gatewaySuite) TestPumpEndpoints() {
	s.login()
	rec := s.do(http.MethodPost, "/pump/activate", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	resp := decode[activateResponse](s.T(), rec)
	assert.Equal(s.T(), entities.TriggerManual, resp.Record.Type)
	assert.Equal(s.T(), 30.0, resp.RunSeconds)
	assert.True(s.T(), s.store.Load(context.Background()).Config.PumpActive)

	d := decode[DashboardData](s.T(), s.do(http.MethodGet, "/dashboard/data", nil))
	assert.Equal(s.T(), ModeIrrigating, d.Stats.Mode)

	rec = s.do(http.MethodPost, "/pump/deactivate", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.False(s.T(), decode[entities.SystemConfig](s.T(), rec).PumpActive)

	assert.Equal(s.T(), http.StatusBadRequest,
		s.do(http.MethodPost, "/pump/activate", activateRequest{Trigger: "scheduled"}).Code)
}

func (s *gatewaySuite) TestConfig() {
	s.login()
	bad := 150.0
	assert.Equal(s.T(), http.StatusBadRequest,
		s.do(http.MethodPut, "/config", entities.ConfigPatch{HumidityThreshold: &bad}).Code)
	assert.Equal(s.T(), http.StatusBadRequest, s.do(http.MethodPut, "/config", map[string]any{}).Code)

	threshold, off, on := 40.0, false, true
	rec := s.do(http.MethodPut, "/config", entities.ConfigPatch{HumidityThreshold: &threshold, AutoIrrigation: &off})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	cfg := decode[entities.SystemConfig](s.T(), rec)
	assert.Equal(s.T(), 40.0, cfg.HumidityThreshold)
	assert.False(s.T(), cfg.AutoIrrigation)

	rec = s.do(http.MethodPut, "/config", entities.ConfigPatch{PumpActive: &on})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.True(s.T(), decode[entities.SystemConfig](s.T(), rec).PumpActive)
	assert.Len(s.T(), s.store.Load(context.Background()).IrrigationHistory, 2, "pump switched on through the controller")

	rec = s.do(http.MethodPut, "/config", entities.ConfigPatch{PumpActive: &on})
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.True(s.T(), decode[entities.SystemConfig](s.T(), rec).PumpActive)
	assert.Len(s.T(), s.store.Load(context.Background()).IrrigationHistory, 2, "running pump is not activated again")

	got := decode[entities.SystemConfig](s.T(), s.do(http.MethodGet, "/config", nil))
	assert.Equal(s.T(), 40.0, got.HumidityThreshold)
}

func (s *gatewaySuite) TestHistoryAndExport() {
	s.login()
	_, err := s.ctrl.Activate(context.Background(), entities.TriggerManual)
	require.NoError(s.T(), err)

	all := decode[HistoryData](s.T(), s.do(http.MethodGet, "/history", nil))
	assert.Equal(s.T(), 2, all.Stats.Total)

	manual := decode[HistoryData](s.T(), s.do(http.MethodGet, "/history?type=manual", nil))
	require.Len(s.T(), manual.Records, 1)
	assert.Equal(s.T(), entities.TriggerManual, manual.Records[0].Type)

	assert.Equal(s.T(), http.StatusBadRequest, s.do(http.MethodGet, "/history?type=bogus", nil).Code)

	rec := s.do(http.MethodGet, "/history/export?q=01/05/2024", nil)
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Contains(s.T(), rec.Header().Get("Content-Disposition"), "historial_riego_")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	assert.Len(s.T(), lines, 3)
	assert.True(s.T(), strings.HasPrefix(lines[1], "01/05/2024,15:00,Manual"))
}

func (s *gatewaySuite) TestTrendAndLatest() {
	s.login()
	pts := decode[[]aggregator.TrendPoint](s.T(), s.do(http.MethodGet, "/trend", nil))
	require.Len(s.T(), pts, 1)
	assert.Equal(s.T(), "15:00", pts[0].Time)

	rec := s.do(http.MethodGet, "/data/latest", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "cache", rec.Header().Get("X-Data-Source"))

	rec = s.do(http.MethodGet, "/events/irrigation/latest", nil)
	assert.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "store", rec.Header().Get("X-Data-Source"))
}

func (s *gatewaySuite) TestWebsocketReceivesBroadcast() {
	s.login()
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(s.T(), err)
	defer conn.Close()
	require.Eventually(s.T(), func() bool { return s.gateway.Hub().Len() == 1 }, time.Second, 5*time.Millisecond)

	s.gateway.Hub().OnPumpState(messages.PumpStateEvent{Active: true, Trigger: entities.TriggerManual})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(s.T(), err)
	var env struct {
		Type string                  `json:"type"`
		Data messages.PumpStateEvent `json:"data"`
	}
	require.NoError(s.T(), json.Unmarshal(msg, &env))
	assert.Equal(s.T(), "pump", env.Type)
	assert.True(s.T(), env.Data.Active)
}

func (s *gatewaySuite) TestStalledWebsocketClientDoesNotBlockBroadcast() {
	s.login()
	srv := httptest.NewServer(s.handler)
	defer srv.Close()

	// never reads
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(s.T(), err)
	defer conn.Close()
	hub := s.gateway.Hub()
	require.Eventually(s.T(), func() bool { return hub.Len() == 1 }, time.Second, 5*time.Millisecond)

	payload := strings.Repeat("x", 256<<10)
	start := time.Now()
	for i := 0; i < 200; i++ {
		hub.Broadcast("snapshot", payload)
	}
	assert.Less(s.T(), time.Since(start), 2*time.Second)
	assert.Eventually(s.T(), func() bool { return hub.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(gatewaySuite))
}

func TestStatusBands(t *testing.T) {
	assert.Equal(t, HumidityCritical, humidityStatus(24))
	assert.Equal(t, HumidityLow, humidityStatus(25))
	assert.Equal(t, HumidityLow, humidityStatus(34))
	assert.Equal(t, HumidityOptimal, humidityStatus(35))
	assert.Equal(t, TemperatureAlert, temperatureStatus(17))
	assert.Equal(t, TemperatureAlert, temperatureStatus(33))
	assert.Equal(t, TemperatureOK, temperatureStatus(32))
}

func TestDashboardAlerts(t *testing.T) {
	d := entities.InitialSystemData(time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC))
	d.Sensors[0].Value, d.Sensors[1].Value = 20, 20
	d.Config.AutoIrrigation = false
	out := buildDashboard(d, 5)
	assert.Equal(t, []string{"humidity_below_threshold", "auto_irrigation_disabled"}, out.Alerts)
	assert.Equal(t, HumidityCritical, out.Stats.HumidityStatus)
	assert.Equal(t, ModeManual, out.Stats.Mode)
}
