package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	sensor_simulator "github.com/CrissP24/citrus-flow-sim/internal/sensor-simulator"
	"github.com/CrissP24/citrus-flow-sim/internal/services/aggregator"
	"github.com/CrissP24/citrus-flow-sim/internal/services/device"
	"github.com/CrissP24/citrus-flow-sim/internal/services/event"
	"github.com/CrissP24/citrus-flow-sim/internal/services/gateway/app"
	irrigation_controller "github.com/CrissP24/citrus-flow-sim/internal/services/irrigation-controller"
	"github.com/CrissP24/citrus-flow-sim/internal/services/persistence"
	"github.com/CrissP24/citrus-flow-sim/internal/services/session"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/kvstore"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
	"github.com/CrissP24/citrus-flow-sim/pkg/metrics"
	"github.com/CrissP24/citrus-flow-sim/pkg/rabbitmq"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	logs := logging.NewLogrus(cfg.LogLevel, os.Stdout)
	log := logs.Get("gateway")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// === Metrics ===
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// === Storage ===
	backend, err := kvstore.Open(kvstore.Options{Driver: cfg.Storage.Driver, Dir: cfg.Storage.Dir, DSN: cfg.Storage.DSN})
	if err != nil {
		log.WithError(err).Fatal("storage unavailable")
	}
	st := store.New(backend, logs.Get("store"), store.WithMetrics(m))
	defer func() {
		if err := st.Close(); err != nil {
			log.WithError(err).Warn("store close failed")
		}
	}()
	loc := sensor_simulator.LoadLocation(cfg.Simulator.Timezone, log)

	// === Simulator + controller ===
	field := device.NewFieldSensors(0)
	owm := sensor_simulator.NewOWMClient(owmConfig(cfg.OpenWeather), logs.Get("openweather"))
	sim := sensor_simulator.NewSimulator(st, sensor_simulator.NewWeatherModel(nil), logs.Get("simulator"),
		sensor_simulator.WithDevice(sensor_simulator.Chain{field, owm}),
		sensor_simulator.WithMetrics(m),
		sensor_simulator.WithLocation(loc),
		sensor_simulator.WithIntervals(cfg.Simulator.Interval, cfg.Simulator.JitterInterval),
	)
	ctrl := irrigation_controller.NewController(st, logs.Get("controller"),
		irrigation_controller.WithRunTimes(cfg.Pump.ManualRun(), cfg.Pump.AutomaticRun()),
		irrigation_controller.WithMetrics(m),
	)
	sim.SetEvaluator(ctrl)

	// === MQTT (opzionale) ===
	var mqttConn event.ConnChecker
	var devices *device.DeviceService
	var trendOpts []aggregator.Option
	if cfg.MQTT.Enabled() {
		client, err := rabbitmq.NewRabbitMQConn(ctx, &cfg.MQTT, logs.Get("mqtt"))
		if err != nil {
			log.WithError(err).Warn("mqtt unavailable, continuing without broker")
		} else {
			mqttConn = client
			devLog := logs.Get("device")
			consumer := rabbitmq.NewConsumer(client, devLog, device.PumpCommandTopic, device.FieldTopicFilter)
			publisher := rabbitmq.NewPublisher(client, device.PumpStateTopic, devLog)
			devices = device.NewDeviceService(consumer, publisher, ctrl, devLog,
				device.WithMetrics(m), device.WithFieldSensors(field))
			trendOpts = append(trendOpts, aggregator.WithPublisher(rabbitmq.NewPublisher(client, aggregator.TrendTopic, devLog)))
		}
	}

	// === InfluxDB (opzionale) ===
	persistOpts := []persistence.Option{}
	var eventWriter *event.Writer
	var eventQuerier event.Querier
	if cfg.Influx.Enabled() {
		influx := influxdb2.NewClientWithOptions(cfg.Influx.URL, cfg.Influx.Token, influxOptions(cfg.Influx))
		defer influx.Close()
		queryAPI := influx.QueryAPI(cfg.Influx.Org)
		persistOpts = append(persistOpts,
			persistence.WithInflux(influx.WriteAPIBlocking(cfg.Influx.Org, cfg.Influx.Bucket), queryAPI, cfg.Influx.Bucket),
			persistence.WithBatching(cfg.Influx.BatchSize, cfg.Influx.FlushInterval),
		)
		eventWriter = event.NewWriter(influx.WriteAPI(cfg.Influx.Org, cfg.Influx.Bucket), logs.Get("events"))
		eventQuerier = queryAPI
	}
	persist := persistence.NewService(logs.Get("persistence"), persistOpts...)
	trend := aggregator.NewTrendAggregator(st, cfg.Simulator.TrendInterval, cfg.Simulator.TrendPoints, logs.Get("trend"),
		append(trendOpts, aggregator.WithLocation(loc))...)

	// === Gateway ===
	hub := app.NewHub(logs.Get("ws"))
	gw := app.NewGateway(app.Config{
		Location:     loc,
		EventsBucket: cfg.Influx.Bucket,
	}, app.Deps{
		Store:        st,
		Sessions:     session.NewService(st, logs.Get("session"), session.WithTTL(cfg.Session.TTL)),
		Sensors:      sim,
		Pump:         ctrl,
		Trend:        trend,
		Persistence:  persist,
		EventQuerier: eventQuerier,
		EventWriter:  eventWriter,
		MQTT:         mqttConn,
		Gatherer:     reg,
		Hub:          hub,
		Logger:       logs.Get("http"),
	})

	// osservatori in-process
	sim.OnSnapshot(persist.HandleSnapshot)
	sim.OnSnapshot(hub.OnSnapshot)
	sim.OnSnapshot(func(snap messages.Snapshot) {
		for _, r := range snap.Readings() {
			m.ObserveSensor(r.SensorID, string(r.Type), r.Value, r.Status == entities.StatusActive)
		}
	})
	sim.OnStatusChange(eventWriter.HandleSensorStatus)
	ctrl.OnStateChange(eventWriter.HandlePumpState)
	ctrl.OnStateChange(hub.OnPumpState)
	if devices != nil {
		sim.OnSnapshot(devices.PublishSnapshot)
		ctrl.OnStateChange(devices.PublishPumpState)
	}

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}
	run(persist.Start)
	run(sim.Start)
	run(trend.Start)
	if devices != nil {
		run(func(ctx context.Context) {
			if err := devices.Start(ctx); err != nil {
				log.WithError(err).Error("device bridge stopped")
			}
		})
	}

	// === gRPC health ===
	if cfg.GRPC.Addr != "" {
		gs, hs := app.NewGRPCServer()
		lis, err := net.Listen("tcp", cfg.GRPC.Addr)
		if err != nil {
			log.WithError(err).Fatal("grpc listen failed")
		}
		go func() {
			log.WithField("addr", cfg.GRPC.Addr).Info("grpc health listening")
			if err := gs.Serve(lis); err != nil {
				log.WithError(err).Error("grpc server stopped")
			}
		}()
		app.MarkServing(ctx, st, hs)
		defer gs.GracefulStop()
	}

	// === HTTP ===
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           gw.Routes(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}
	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if ctrl.Pending() {
		// il timer non sopravvive al riavvio
		ctrl.Deactivate(shCtx)
	}
	wg.Wait()
	eventWriter.Flush()
}
