package app

import (
	"bufio"
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/services/aggregator"
	"github.com/CrissP24/citrus-flow-sim/internal/services/event"
	"github.com/CrissP24/citrus-flow-sim/internal/services/persistence"
	"github.com/CrissP24/citrus-flow-sim/internal/services/session"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
)

// SensorService toggles sensors (the telemetry simulator).
type SensorService interface {
	SetSensorStatus(ctx context.Context, id string, status entities.SensorStatus) (entities.Sensor, error)
}

// PumpService drives the pump (the irrigation controller).
type PumpService interface {
	Activate(ctx context.Context, trigger entities.TriggerType) (entities.IrrigationRecord, error)
	Deactivate(ctx context.Context)
	RunTime(trigger entities.TriggerType) time.Duration
}

// TrendSource serves the chart points.
type TrendSource interface {
	Points() []aggregator.TrendPoint
}

type Config struct {
	Location     *time.Location // per date e ore di storico ed export
	RecentLimit  int            // record recenti nella dashboard
	ReadyErrAge  time.Duration
	EventsBucket string
}

// Deps are the components served over HTTP. Persistence, EventQuerier, EventWriter
// and MQTT may be nil when the integration is disabled.
type Deps struct {
	Store        *store.Holder
	Sessions     *session.Service
	Sensors      SensorService
	Pump         PumpService
	Trend        TrendSource
	Persistence  *persistence.Service
	EventQuerier event.Querier
	EventWriter  *event.Writer
	MQTT         event.ConnChecker
	Gatherer     prometheus.Gatherer
	Hub          *Hub
	Logger       *logrus.Entry
}

type Gateway struct {
	cfg  Config
	deps Deps
	log  *logrus.Entry
}

func NewGateway(cfg Config, deps Deps) *Gateway {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 5
	}
	if cfg.ReadyErrAge <= 0 {
		cfg.ReadyErrAge = 30 * time.Second
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Logger)
	}
	if deps.Persistence == nil {
		deps.Persistence = persistence.NewService(deps.Logger)
	}
	return &Gateway{cfg: cfg, deps: deps, log: deps.Logger}
}

// Hub returns the websocket hub fed by the simulator and the controller.
func (g *Gateway) Hub() *Hub { return g.deps.Hub }

// Routes builds the HTTP surface.
func (g *Gateway) Routes() http.Handler {
	mux := http.NewServeMux()

	health := event.Deps{Store: g.deps.Store, MQTT: g.deps.MQTT, Writer: g.deps.EventWriter}
	mux.Handle("GET /healthz", event.NewHealthHandler(health))
	mux.Handle("GET /readyz", event.NewReadyHandler(health, g.cfg.ReadyErrAge))
	mux.Handle("GET /metrics", promhttp.HandlerFor(g.deps.Gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("POST /auth/login", g.HandleLogin)
	mux.HandleFunc("POST /auth/logout", g.HandleLogout)
	mux.HandleFunc("GET /auth/session", g.HandleSession)

	auth := g.requireSession
	mux.Handle("GET /dashboard/data", auth(http.HandlerFunc(g.HandleDashboard)))
	mux.Handle("GET /sensors", auth(http.HandlerFunc(g.HandleSensors)))
	mux.Handle("PUT /sensors/{id}/status", auth(http.HandlerFunc(g.HandleSensorStatus)))
	mux.Handle("POST /pump/activate", auth(http.HandlerFunc(g.HandlePumpActivate)))
	mux.Handle("POST /pump/deactivate", auth(http.HandlerFunc(g.HandlePumpDeactivate)))
	mux.Handle("GET /config", auth(http.HandlerFunc(g.HandleGetConfig)))
	mux.Handle("PUT /config", auth(http.HandlerFunc(g.HandlePutConfig)))
	mux.Handle("GET /history", auth(http.HandlerFunc(g.HandleHistory)))
	mux.Handle("GET /history/export", auth(http.HandlerFunc(g.HandleHistoryExport)))
	mux.Handle("GET /trend", auth(http.HandlerFunc(g.HandleTrend)))
	mux.Handle("GET /data/latest", auth(persistence.LatestHandler(g.deps.Persistence)))
	mux.Handle("GET /events/irrigation/latest", auth(event.NewIrrigationLatestHandler(
		g.deps.EventQuerier, g.cfg.EventsBucket, g.history, g.log)))
	mux.Handle("GET /ws", auth(http.HandlerFunc(g.deps.Hub.ServeWS)))

	return g.logRequests(mux)
}

func (g *Gateway) history(ctx context.Context) []entities.IrrigationRecord {
	return g.deps.Store.Load(ctx).IrrigationHistory
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets the websocket upgrade through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		g.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": rec.status,
			"ms":     time.Since(start).Milliseconds(),
		}).Debug("http request")
	})
}
