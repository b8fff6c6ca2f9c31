package domain

import (
	"sort"
	"time"
)

// RawRecord is one cleaned observation row from the MITECO table.
// All fields are guaranteed present and valid; rows failing coercion are
// dropped by the CSV adapter before grouping.
type RawRecord struct {
	Basin         string    // AMBITO_NOMBRE
	Reservoir     string    // EMBALSE_NOMBRE
	Date          time.Time // FECHA, UTC midnight
	CapacityTotal float64   // AGUA_TOTAL, hm³
	VolumeCurrent float64   // AGUA_ACTUAL, hm³
}

// Key identifies one reservoir within the national network.
type Key struct {
	Basin     string
	Reservoir string
}

// Series holds every observation of a single reservoir, in the order the
// rows arrived. The engine establishes its own date ordering.
type Series []RawRecord

// Group partitions records by (basin, reservoir). Groups are never empty
// because keys are derived from the records themselves.
func Group(records []RawRecord) map[Key]Series {
	groups := make(map[Key]Series)
	for _, r := range records {
		k := Key{Basin: r.Basin, Reservoir: r.Reservoir}
		groups[k] = append(groups[k], r)
	}
	return groups
}

// SortedKeys returns the group keys in ascending (basin, reservoir) order.
// This ordering is part of the output contract: it keeps per-reservoir
// diffs stable across runs.
func SortedKeys(groups map[Key]Series) []Key {
	keys := make([]Key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Basin != keys[j].Basin {
			return keys[i].Basin < keys[j].Basin
		}
		return keys[i].Reservoir < keys[j].Reservoir
	})
	return keys
}
