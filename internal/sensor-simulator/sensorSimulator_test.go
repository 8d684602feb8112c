package sensor_simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/kvstore"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
)

var noon = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type evaluatorMock struct {
	mock.Mock
}

func (e *evaluatorMock) Evaluate(ctx context.Context) bool {
	return e.Called(ctx).Bool(0)
}

type fakeDevice struct {
	values map[entities.SensorKind]float64
}

func (f fakeDevice) Read(_ context.Context, kind entities.SensorKind) (float64, bool) {
	v, ok := f.values[kind]
	return v, ok
}

type simulatorSuite struct {
	suite.Suite
	ctx   context.Context
	store *store.Holder
	sim   *Simulator
	clock time.Time
	snaps []messages.Snapshot
	mu    sync.Mutex
}

func (s *simulatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = noon
	s.snaps = nil
	clock := func() time.Time { return s.clock }
	s.store = store.New(kvstore.NewMemory(), logging.Discard(), store.WithClock(clock))
	s.sim = NewSimulator(s.store, NewWeatherModel(fixedRand(0.5)), logging.Discard(),
		WithClock(clock), WithLocation(time.UTC))
	s.sim.OnSnapshot(func(snap messages.Snapshot) {
		s.mu.Lock()
		s.snaps = append(s.snaps, snap)
		s.mu.Unlock()
	})
	s.store.Load(s.ctx) // seed at noon
}

func (s *simulatorSuite) TestUpdateRefreshesActiveSensors() {
	s.clock = noon.Add(time.Minute)
	data := s.sim.Update(s.ctx)

	assert.Equal(s.T(), 60.0, data.Sensors[0].Value)
	assert.Equal(s.T(), 60.0, data.Sensors[1].Value)
	assert.Equal(s.T(), 32.0, data.Sensors[2].Value)
	for _, sen := range data.Sensors {
		assert.Equal(s.T(), s.clock, sen.LastUpdated.Time)
	}
	assert.Equal(s.T(), s.clock, data.Config.LastUpdate.Time)
	assert.Equal(s.T(), data, s.store.Load(s.ctx), "pass must be persisted")

	require.Len(s.T(), s.snaps, 1)
	assert.Equal(s.T(), messages.PassUpdate, s.snaps[0].Pass)
}

func (s *simulatorSuite) TestUpdateSharesOneSamplePerKind() {
	vals := []float64{0.0, 1.0, 0.3, 0.7}
	i := 0
	s.sim.weather = NewWeatherModel(func() float64 {
		v := vals[i%len(vals)]
		i++
		return v
	})

	data := s.sim.Update(s.ctx)
	require.Equal(s.T(), entities.KindHumidity, data.Sensors[0].Type)
	require.Equal(s.T(), entities.KindHumidity, data.Sensors[1].Type)
	assert.Equal(s.T(), data.Sensors[0].Value, data.Sensors[1].Value)
}

func (s *simulatorSuite) TestUpdateSkipsInactiveSensors() {
	_, err := s.sim.SetSensorStatus(s.ctx, "humid-002", entities.StatusInactive)
	require.NoError(s.T(), err)
	s.clock = noon.Add(time.Hour)

	data := s.sim.Update(s.ctx)

	assert.Equal(s.T(), 28.0, data.Sensors[1].Value)
	assert.Equal(s.T(), noon, data.Sensors[1].LastUpdated.Time)
}

func (s *simulatorSuite) TestUpdatePrefersDeviceReadings() {
	s.sim.device = fakeDevice{values: map[entities.SensorKind]float64{entities.KindHumidity: 19.6}}

	data := s.sim.Update(s.ctx)

	assert.Equal(s.T(), 20.0, data.Sensors[0].Value)
	assert.Equal(s.T(), 32.0, data.Sensors[2].Value)
	assert.True(s.T(), s.snaps[0].FromDevice[entities.KindHumidity])
}

func (s *simulatorSuite) TestDeviceReadingsAreClamped() {
	s.sim.device = fakeDevice{values: map[entities.SensorKind]float64{entities.KindTemperature: 63}}

	data := s.sim.Update(s.ctx)

	assert.Equal(s.T(), 50.0, data.Sensors[2].Value)
}

func (s *simulatorSuite) TestUpdateRunsEvaluatorAfterPersisting() {
	ev := new(evaluatorMock)
	ev.On("Evaluate", mock.Anything).Run(func(mock.Arguments) {
		assert.Equal(s.T(), 60.0, s.store.Load(s.ctx).Sensors[0].Value)
	}).Return(false).Once()
	s.sim.SetEvaluator(ev)

	s.sim.Update(s.ctx)

	ev.AssertExpectations(s.T())
}

func (s *simulatorSuite) TestJitterKeepsBaseline() {
	s.sim.weather = NewWeatherModel(fixedRand(0.99))
	s.clock = noon.Add(3 * time.Second)

	data := s.sim.Jitter(s.ctx)

	assert.Equal(s.T(), 46.0, data.Sensors[0].Value)
	assert.Equal(s.T(), 29.0, data.Sensors[1].Value)
	assert.Equal(s.T(), 25.0, data.Sensors[2].Value)
	assert.Equal(s.T(), s.clock, data.Sensors[0].LastUpdated.Time)
	assert.Equal(s.T(), noon, data.Config.LastUpdate.Time, "jitter does not touch config")
}

func (s *simulatorSuite) TestSetSensorStatus() {
	var events []messages.SensorStatusChanged
	s.sim.OnStatusChange(func(e messages.SensorStatusChanged) { events = append(events, e) })

	sen, err := s.sim.SetSensorStatus(s.ctx, "temp-001", entities.StatusInactive)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), entities.StatusInactive, sen.Status)
	data := s.store.Load(s.ctx)
	require.NotNil(s.T(), data.FindSensor("temp-001"))
	assert.Equal(s.T(), entities.StatusInactive, data.FindSensor("temp-001").Status)

	require.Len(s.T(), events, 1)
	assert.Equal(s.T(), entities.StatusActive, events[0].OldStatus)
	assert.Equal(s.T(), messages.PassStatus, s.snaps[0].Pass)
}

func (s *simulatorSuite) TestSetSensorStatusErrors() {
	_, err := s.sim.SetSensorStatus(s.ctx, "nope", entities.StatusActive)
	assert.ErrorIs(s.T(), err, ErrUnknownSensor)

	_, err = s.sim.SetSensorStatus(s.ctx, "temp-001", "broken")
	assert.ErrorIs(s.T(), err, ErrInvalidStatus)
}

func (s *simulatorSuite) TestStartStopsOnCancel() {
	s.sim.interval, s.sim.jitter = 5*time.Millisecond, 2*time.Millisecond
	ctx, cancel := context.WithCancel(s.ctx)
	done := make(chan struct{})
	go func() {
		s.sim.Start(ctx)
		close(done)
	}()

	require.Eventually(s.T(), func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return len(s.snaps) >= 3
	}, time.Second, time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.T().Fatal("simulator did not stop")
	}
}

func TestSimulatorSuite(t *testing.T) {
	suite.Run(t, new(simulatorSuite))
}

func TestLoadLocationFallback(t *testing.T) {
	assert.Equal(t, time.Local, LoadLocation("Mars/Olympus", logging.Discard()))
	assert.Equal(t, time.Local, LoadLocation("", logging.Discard()))
	assert.Equal(t, "UTC", LoadLocation("UTC", logging.Discard()).String())
}

func TestChainReturnsFirstReading(t *testing.T) {
	ctx := context.Background()
	c := Chain{
		nil,
		NoDevice{},
		fakeDevice{values: map[entities.SensorKind]float64{entities.KindHumidity: 41}},
		fakeDevice{values: map[entities.SensorKind]float64{entities.KindHumidity: 99, entities.KindTemperature: 20}},
	}
	v, ok := c.Read(ctx, entities.KindHumidity)
	assert.True(t, ok)
	assert.Equal(t, 41.0, v)

	v, ok = c.Read(ctx, entities.KindTemperature)
	assert.True(t, ok)
	assert.Equal(t, 20.0, v)

	_, ok = Chain{}.Read(ctx, entities.KindHumidity)
	assert.False(t, ok)
}
