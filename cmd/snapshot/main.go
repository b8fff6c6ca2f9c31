// Command snapshot runs the statistics engine over an existing CSV table
// dump and writes the hybrid JSON artifact, skipping download and
// mdb-export. Useful for inspecting output locally and for regenerating
// fixtures from a captured dump.
//
// Usage:
//
//	go run ./cmd/snapshot -csv dump.csv -out datos_embalses_optimizado.json
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/fjmahv/datosEmbalses/internal/adapter/mdb"
	"github.com/fjmahv/datosEmbalses/internal/domain"
	"github.com/fjmahv/datosEmbalses/internal/export"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "path to an mdb-export CSV dump")
	outPath := flag.String("out", "datos_embalses_optimizado.json", "output JSON path")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -csv")
	}

	f, err := os.Open(*csvPath)
	if err != nil {
		return err
	}
	defer f.Close()

	records, dropped, err := mdb.ParseRecords(f)
	if err != nil {
		return err
	}

	groups := domain.Group(records)
	keys := domain.SortedKeys(groups)
	snapshots := make([]domain.Snapshot, len(keys))
	for i, k := range keys {
		snapshots[i] = domain.Compute(groups[k])
	}

	if err := export.WriteFile(*outPath, export.Assemble(keys, snapshots)); err != nil {
		return err
	}

	fmt.Printf("wrote %s: %d reservoirs from %d records (%d rows dropped)\n",
		*outPath, len(keys), len(records), dropped)
	return nil
}
