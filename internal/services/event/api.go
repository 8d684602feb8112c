package event

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// Querier is satisfied by api.QueryAPI.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Irrigation is the payload served to the dashboard.
type Irrigation struct {
	RecordID    string  `json:"record_id,omitempty"`
	Trigger     string  `json:"trigger"`
	Humidity    float64 `json:"humidity"`
	Temperature float64 `json:"temperature"`
	Time        string  `json:"time"` // RFC3339
}

type irrQueryParams struct {
	Minutes   int
	Limit     int
	TimeoutMS int
}

func parseIrr(r *http.Request, defMin, defLim, defTOms int) irrQueryParams {
	q := r.URL.Query()
	get := func(k string, def, min, max int) int {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				if n < min {
					return min
				}
				if max > 0 && n > max {
					return max
				}
				return n
			}
		}
		return def
	}
	return irrQueryParams{
		Minutes:   get("minutes", defMin, 1, 7*24*60),
		Limit:     get("limit", defLim, 1, 500),
		TimeoutMS: get("timeout_ms", defTOms, 200, 5000),
	}
}

func buildFlux(bucket string, minutes, limit int) string {
	return fmt.Sprintf(`
from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r.event_type == %q)
  |> pivot(rowKey: ["_time"], columnKey: ["_field"], valueColumn: "_value")
  |> group()
  |> sort(columns: ["_time"], desc: true)
  |> limit(n:%d)
`, bucket, minutes, Measurement, TypeIrrigationStart, limit)
}

func queryIrrigations(ctx context.Context, q Querier, bucket string, p irrQueryParams) ([]Irrigation, error) {
	res, err := q.Query(ctx, buildFlux(bucket, p.Minutes, p.Limit))
	if err != nil {
		return nil, err
	}
	defer res.Close()

	out := make([]Irrigation, 0, p.Limit)
	for res.Next() {
		rec := res.Record()
		out = append(out, Irrigation{
			RecordID:    asString(rec.ValueByKey("record_id")),
			Trigger:     asString(rec.ValueByKey("trigger")),
			Humidity:    asFloat(rec.ValueByKey("humidity")),
			Temperature: asFloat(rec.ValueByKey("temperature")),
			Time:        rec.Time().UTC().Format(time.RFC3339),
		})
	}
	return out, res.Err()
}

func fromHistory(records []entities.IrrigationRecord, limit int) []Irrigation {
	out := make([]Irrigation, 0, limit)
	for _, r := range records {
		if len(out) == limit {
			break
		}
		out = append(out, Irrigation{
			RecordID:    r.ID,
			Trigger:     string(r.Type),
			Humidity:    r.Humidity,
			Temperature: r.Temperature,
			Time:        r.Timestamp.UTC().Format(time.RFC3339),
		})
	}
	return out
}

func asFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f
	}
	return 0
}

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// NewIrrigationLatestHandler serves GET /events/irrigation/latest?limit=20[&minutes=1440].
// Without Influx, or when the query fails, the stored history answers instead.
func NewIrrigationLatestHandler(q Querier, bucket string, history func(context.Context) []entities.IrrigationRecord, log *logrus.Entry) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := parseIrr(r, 1440, 20, 2000)
		w.Header().Set("Content-Type", "application/json")

		if q != nil {
			ctx, cancel := context.WithTimeout(r.Context(), time.Duration(p.TimeoutMS)*time.Millisecond)
			defer cancel()
			out, err := queryIrrigations(ctx, q, bucket, p)
			if err == nil {
				w.Header().Set("X-Data-Source", "influx")
				_ = json.NewEncoder(w).Encode(out)
				return
			}
			log.WithError(err).Warn("irrigation query failed, serving stored history")
			w.Header().Set("X-Error", "influx-query-error")
		}

		w.Header().Set("X-Data-Source", "store")
		_ = json.NewEncoder(w).Encode(fromHistory(history(r.Context()), p.Limit))
	})
}
