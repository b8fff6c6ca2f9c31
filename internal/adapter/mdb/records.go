package mdb

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/fjmahv/datosEmbalses/internal/domain"
)

// Column names after header normalization.
const (
	colBasin     = "AMBITO_NOMBRE"
	colReservoir = "EMBALSE_NOMBRE"
	colDate      = "FECHA"
	colCapacity  = "AGUA_TOTAL"
	colVolume    = "AGUA_ACTUAL"
)

// dateLayouts covers the day-before-month formats mdb-export emits for the
// FECHA column, with and without a time portion, plus the ISO form some
// tool versions produce.
var dateLayouts = []string{
	"02/01/2006 15:04:05",
	"02/01/2006",
	"02/01/06 15:04:05",
	"02/01/06",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseRecords reads the mdb-export CSV dump and returns the rows that
// survive coercion, plus the number of rows dropped for missing or
// unparseable required fields. Dropping is per-row: one bad reading must
// not discard a reservoir's history.
func ParseRecords(r io.Reader) ([]domain.RawRecord, int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // mdb-export occasionally pads short rows
	cr.LazyQuotes = true    // header type annotations carry bare quotes

	header, err := cr.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("read table header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[normalizeColumn(name)] = i
	}
	for _, required := range []string{colBasin, colReservoir, colDate, colCapacity, colVolume} {
		if _, ok := idx[required]; !ok {
			return nil, 0, fmt.Errorf("table is missing column %s", required)
		}
	}

	var records []domain.RawRecord
	dropped := 0
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read table row: %w", err)
		}

		rec, ok := coerceRow(row, idx)
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	return records, dropped, nil
}

// normalizeColumn strips a trailing quoted type annotation, trims, and
// replaces spaces with underscores, e.g. `EMBALSE NOMBRE "texto"` becomes
// EMBALSE_NOMBRE.
func normalizeColumn(name string) string {
	if i := strings.IndexByte(name, '"'); i >= 0 {
		name = name[:i]
	}
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
}

func coerceRow(row []string, idx map[string]int) (domain.RawRecord, bool) {
	basin := strings.TrimSpace(field(row, idx[colBasin]))
	reservoir := strings.TrimSpace(field(row, idx[colReservoir]))
	if basin == "" || reservoir == "" {
		return domain.RawRecord{}, false
	}

	date, ok := parseDate(field(row, idx[colDate]))
	if !ok {
		return domain.RawRecord{}, false
	}
	capacity, ok := parseDecimal(field(row, idx[colCapacity]))
	if !ok {
		return domain.RawRecord{}, false
	}
	volume, ok := parseDecimal(field(row, idx[colVolume]))
	if !ok {
		return domain.RawRecord{}, false
	}

	return domain.RawRecord{
		Basin:         basin,
		Reservoir:     reservoir,
		Date:          date,
		CapacityTotal: capacity,
		VolumeCurrent: volume,
	}, true
}

func field(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return row[i]
}

// parseDecimal accepts decimal-comma notation ("1234,56") as well as the
// plain dot form. Non-parseable values coerce to absence.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseDate tries the known day-first layouts and truncates any time
// portion to UTC midnight, which is the resolution of the series.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}
