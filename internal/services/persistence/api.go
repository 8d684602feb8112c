package persistence

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
)

// LatestHandler serves GET /data/latest.
// Query params:
//
//	source=auto|influx|cache   (default auto: Influx first, cache as fallback)
//	minutes=<int>              (Influx window, default 1440 = 24h)
func LatestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		source := strings.ToLower(q.Get("source"))
		if source == "" {
			source = "auto"
		}
		if source != "auto" && source != "influx" && source != "cache" {
			http.Error(w, "source must be auto, influx or cache", http.StatusBadRequest)
			return
		}
		minutes := 60 * 24
		if s := q.Get("minutes"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n > 0 {
				minutes = n
			}
		}

		var (
			list []messages.SensorReading
			used string
		)
		if source != "cache" && svc.Enabled() {
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			res, err := svc.QueryLatestFromInflux(ctx, minutes)
			switch {
			case err == nil && len(res) > 0:
				list, used = res, "influx"
			case source == "influx":
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadGateway)
					return
				}
				list, used = []messages.SensorReading{}, "influx"
			case err != nil:
				svc.log.WithError(err).Warn("influx query failed, serving cache")
			}
		}
		if used == "" {
			list, used = svc.LatestCache(), "cache"
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Data-Source", used)
		_ = json.NewEncoder(w).Encode(list)
	}
}
