// Package mdb dumps a table from the extracted Access database with the
// external mdb-export tool and cleans the tabular output into typed records.
package mdb

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Exporter dumps a fixed table with a configured mdb-export binary.
// It implements pipeline.Dumper.
type Exporter struct {
	Bin   string
	Table string
}

// Dump exports the configured table from the database at mdbPath.
func (e Exporter) Dump(ctx context.Context, mdbPath string) ([]byte, error) {
	return Dump(ctx, e.Bin, mdbPath, e.Table)
}

// Dump runs `<bin> <mdbPath> <table>` and returns the CSV the tool writes
// to stdout. A non-zero exit is fatal for the run; stderr is carried in the
// error for diagnosis.
func Dump(ctx context.Context, bin, mdbPath, table string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, mdbPath, table)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimSpace(stderr.Bytes())
		if len(msg) > 0 {
			return nil, fmt.Errorf("%s failed: %w: %s", bin, err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", bin, err)
	}
	return stdout.Bytes(), nil
}
