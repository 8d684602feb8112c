package sensor_simulator

import (
	"math"
	"math/rand"
	"sync"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// ====== Tunables ======
const (
	baseTemperature  = 22.0
	tempAmplitude    = 10.0
	baseHumidity     = 85.0
	humidAmplitude   = 25.0
	tempNoise        = 2.0 // picco-picco
	humidNoise       = 4.0
	jitterNoise      = 2.0
	peakShiftHours   = 5.0
	halfCycleInHours = 14.0
)

// WeatherModel produces time-of-day readings: temperature peaks in the afternoon
// while relative humidity bottoms out, plus uniform noise.
type WeatherModel struct {
	mu   sync.Mutex
	rand func() float64 // [0,1)
}

// NewWeatherModel uses rnd as noise source; nil means math/rand.
func NewWeatherModel(rnd func() float64) *WeatherModel {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &WeatherModel{rand: rnd}
}

func (w *WeatherModel) noise(span float64) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return (w.rand() - 0.5) * span
}

func dayCycle(hour int) float64 {
	return math.Sin(math.Pi * (float64(hour) - peakShiftHours) / halfCycleInHours)
}

// Temperature in °C for the local hour, not rounded.
func (w *WeatherModel) Temperature(hour int) float64 {
	return baseTemperature + tempAmplitude*dayCycle(hour) + w.noise(tempNoise)
}

// Humidity in % for the local hour, not rounded.
func (w *WeatherModel) Humidity(hour int) float64 {
	return baseHumidity - humidAmplitude*dayCycle(hour) + w.noise(humidNoise)
}

// Sample returns the rounded, clamped baseline of the given kind.
func (w *WeatherModel) Sample(kind entities.SensorKind, hour int) float64 {
	var v float64
	switch kind {
	case entities.KindTemperature:
		v = w.Temperature(hour)
	default:
		v = w.Humidity(hour)
	}
	return Settle(kind, v)
}

// Jitter nudges v by at most ±1 and settles it in range.
func (w *WeatherModel) Jitter(kind entities.SensorKind, v float64) float64 {
	return Settle(kind, v+w.noise(jitterNoise))
}

// Settle clamps into the valid range of kind and rounds half up to an integer.
func Settle(kind entities.SensorKind, v float64) float64 {
	return math.Floor(kind.Clamp(v) + 0.5)
}
