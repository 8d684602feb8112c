package sensor_simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

const owmBaseURL = "https://api.openweathermap.org"

type owmCurrent struct {
	Dt   int64 `json:"dt"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
}

// Conditions are the current outdoor readings at the configured coordinates.
type Conditions struct {
	Temperature float64
	Humidity    float64
	At          time.Time
}

type OWMConfig struct {
	APIKey          string
	Lat, Lon        float64
	CacheTTL        time.Duration
	Timeout         time.Duration
	BreakerFailures int
	BreakerOpenFor  time.Duration
	BaseURL         string
}

// OWMClient reads current conditions from OpenWeatherMap and serves them as
// device readings. Responses are cached for CacheTTL; failures trip a circuit breaker
// and the simulator falls back to its own model.
type OWMClient struct {
	cfg  OWMConfig
	http *http.Client
	cb   *gobreaker.CircuitBreaker
	log  *logrus.Entry
	now  func() time.Time

	mu        sync.Mutex
	cached    *Conditions
	fetchedAt time.Time
}

func NewOWMClient(cfg OWMConfig, log *logrus.Entry) *OWMClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = owmBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.BreakerFailures <= 0 {
		cfg.BreakerFailures = 3
	}
	return &OWMClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		cb:   mkCB("openweather", cfg.BreakerFailures, cfg.BreakerOpenFor, log),
		log:  log,
		now:  time.Now,
	}
}

func mkCB(name string, fails int, openFor time.Duration, log *logrus.Entry) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    name,
		Timeout: openFor,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(fails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state change")
		},
	})
}

// Read implements DeviceSensors.
func (c *OWMClient) Read(ctx context.Context, kind entities.SensorKind) (float64, bool) {
	cond, err := c.Current(ctx)
	if err != nil {
		c.log.WithError(err).Debug("no real reading, using simulation")
		return 0, false
	}
	if kind == entities.KindTemperature {
		return cond.Temperature, true
	}
	return cond.Humidity, true
}

// Current returns cached conditions or fetches fresh ones through the breaker.
func (c *OWMClient) Current(ctx context.Context) (Conditions, error) {
	if c.cfg.APIKey == "" {
		return Conditions{}, errors.New("missing api key")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached != nil && c.now().Sub(c.fetchedAt) < c.cfg.CacheTTL {
		return *c.cached, nil
	}

	res, err := c.cb.Execute(func() (interface{}, error) {
		var out Conditions
		op := func() error {
			var ferr error
			out, ferr = c.fetch(ctx)
			return ferr
		}
		bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
		return out, backoff.Retry(op, bo)
	})
	if err != nil {
		return Conditions{}, err
	}

	cond := res.(Conditions)
	c.cached = &cond
	c.fetchedAt = c.now()
	return cond, nil
}

func (c *OWMClient) fetch(ctx context.Context) (Conditions, error) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", c.cfg.Lat))
	q.Set("lon", fmt.Sprintf("%f", c.cfg.Lon))
	q.Set("units", "metric")
	q.Set("appid", c.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/data/2.5/weather?"+q.Encode(), nil)
	if err != nil {
		return Conditions{}, backoff.Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Conditions{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return Conditions{}, errors.Errorf("owm status %d", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Conditions{}, backoff.Permanent(errors.Errorf("owm status %d: %s", resp.StatusCode, string(b)))
	}

	var out owmCurrent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Conditions{}, backoff.Permanent(errors.Wrap(err, "decode owm response"))
	}
	if out.Main.Temp == nil || out.Main.Humidity == nil {
		return Conditions{}, backoff.Permanent(errors.New("owm response without main.temp/main.humidity"))
	}
	at := c.now()
	if out.Dt > 0 {
		at = time.Unix(out.Dt, 0).UTC()
	}
	return Conditions{Temperature: *out.Main.Temp, Humidity: *out.Main.Humidity, At: at}, nil
}
