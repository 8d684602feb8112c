package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/kvstore"
	"github.com/CrissP24/citrus-flow-sim/pkg/logging"
)

type publisherMock struct {
	mock.Mock
}

func (m *publisherMock) PublishMessage(message interface{}) error {
	return m.Called(message).Error(0)
}

func (m *publisherMock) PublishTo(topic string, message interface{}) error {
	return m.Called(topic, message).Error(0)
}

func newAggregator(t *testing.T, now *time.Time, opts ...Option) (*TrendAggregator, *store.Holder) {
	t.Helper()
	clock := func() time.Time { return *now }
	st := store.New(kvstore.NewMemory(), logging.Discard(), store.WithClock(clock))
	opts = append([]Option{WithClock(clock), WithLocation(time.UTC)}, opts...)
	return NewTrendAggregator(st, 30*time.Second, 3, logging.Discard(), opts...), st
}

func TestSampleUsesRoundedMeans(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 7, 0, 0, time.UTC)
	agg, _ := newAggregator(t, &now)

	p := agg.Sample(context.Background())
	assert.Equal(t, "09:07", p.Time)
	assert.Equal(t, 37.0, p.Humidity)
	assert.Equal(t, 24.0, p.Temperature)
	assert.Equal(t, 30.0, p.Threshold)
}

func TestSampleKeepsLastPoints(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	agg, st := newAggregator(t, &now)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		st.Transact(ctx, func(d *entities.SystemData) bool {
			d.Config.HumidityThreshold = float64(20 + i)
			return true
		})
		agg.Sample(ctx)
		now = now.Add(30 * time.Second)
	}

	pts := agg.Points()
	require.Len(t, pts, 3)
	assert.Equal(t, []float64{22, 23, 24}, []float64{pts[0].Threshold, pts[1].Threshold, pts[2].Threshold})
	assert.Equal(t, "09:01", pts[0].Time)
}

func TestSampleWithoutActiveSensors(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	agg, st := newAggregator(t, &now)
	ctx := context.Background()
	st.Transact(ctx, func(d *entities.SystemData) bool {
		for i := range d.Sensors {
			d.Sensors[i].Status = entities.StatusInactive
		}
		return true
	})

	p := agg.Sample(ctx)
	assert.Equal(t, 0.0, p.Humidity)
	assert.Equal(t, 0.0, p.Temperature)
}

func TestSamplePublishes(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	pub := new(publisherMock)
	pub.On("PublishMessage", mock.AnythingOfType("aggregator.TrendPoint")).Return(nil).Once()
	agg, _ := newAggregator(t, &now, WithPublisher(pub))

	agg.Sample(context.Background())
	pub.AssertExpectations(t)
}

func TestStartStopsOnCancel(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	agg, _ := newAggregator(t, &now)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		agg.Start(ctx)
		close(done)
	}()
	assert.Eventually(t, func() bool { return len(agg.Points()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop")
	}
}
