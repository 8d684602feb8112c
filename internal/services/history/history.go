// Package history filters, summarises and exports the irrigation log.
package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// TypeAll disables the type filter.
const TypeAll = "all"

var ErrInvalidType = errors.New("type filter must be all, manual or automatic")

var csvHeader = []string{"Fecha", "Hora", "Tipo", "Humedad (%)", "Temperatura (°C)", "Estado Bomba", "Duración (min)"}

// Stats summarises a set of records.
type Stats struct {
	Total       int     `json:"total"`
	Automatic   int     `json:"automatic"`
	Manual      int     `json:"manual"`
	AvgHumidity float64 `json:"avgHumidity"`
}

// ParseType validates a type filter; empty means all.
func ParseType(s string) (string, error) {
	switch s {
	case "", TypeAll:
		return TypeAll, nil
	case string(entities.TriggerManual), string(entities.TriggerAutomatic):
		return s, nil
	}
	return "", errors.Wrapf(ErrInvalidType, "%q", s)
}

// Filter keeps the records of the given type whose local date (d/m/yyyy or dd/mm/yyyy)
// contains search, or whose type contains it ignoring case. Order is preserved.
func Filter(records []entities.IrrigationRecord, typ, search string, loc *time.Location) []entities.IrrigationRecord {
	out := make([]entities.IrrigationRecord, 0, len(records))
	needle := strings.ToLower(search)
	for _, r := range records {
		if typ != "" && typ != TypeAll && string(r.Type) != typ {
			continue
		}
		if search != "" && !matches(r, search, needle, loc) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matches(r entities.IrrigationRecord, search, needle string, loc *time.Location) bool {
	t := r.Timestamp.In(loc)
	if strings.Contains(t.Format("2/1/2006"), search) || strings.Contains(FormatDate(t), search) {
		return true
	}
	return strings.Contains(strings.ToLower(string(r.Type)), needle)
}

func Summarize(records []entities.IrrigationRecord) Stats {
	var st Stats
	var sum float64
	for _, r := range records {
		st.Total++
		switch r.Type {
		case entities.TriggerAutomatic:
			st.Automatic++
		case entities.TriggerManual:
			st.Manual++
		}
		sum += r.Humidity
	}
	if st.Total > 0 {
		st.AvgHumidity = math.Floor(sum/float64(st.Total) + 0.5)
	}
	return st
}

// FormatDate is dd/mm/yyyy.
func FormatDate(t time.Time) string { return t.Format("02/01/2006") }

// FormatTime is HH:MM, 24h.
func FormatTime(t time.Time) string { return t.Format("15:04") }

// WriteCSV writes a header line and one line per record.
func WriteCSV(w io.Writer, records []entities.IrrigationRecord, loc *time.Location) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	for _, r := range records {
		if err := cw.Write(row(r, loc)); err != nil {
			return errors.Wrapf(err, "write record %s", r.ID)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func row(r entities.IrrigationRecord, loc *time.Location) []string {
	t := r.Timestamp.In(loc)
	typ := "Manual"
	if r.Type == entities.TriggerAutomatic {
		typ = "Automático"
	}
	pump := "Inactiva"
	if r.PumpStatus {
		pump = "Activa"
	}
	dur := "N/A"
	if r.Duration != nil && *r.Duration != 0 {
		dur = strconv.Itoa(*r.Duration)
	}
	return []string{FormatDate(t), FormatTime(t), typ, formatNumber(r.Humidity), formatNumber(r.Temperature), pump, dur}
}

// formatNumber prints the shortest form, 25 rather than 25.000000.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FileName is the download name for an export made at now.
func FileName(now time.Time) string {
	return fmt.Sprintf("historial_riego_%s.csv", now.UTC().Format("2006-01-02"))
}
