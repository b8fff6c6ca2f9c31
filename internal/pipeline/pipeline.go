// Package pipeline orchestrates one complete snapshot run: fetch the
// database, gate on its fingerprint, dump and clean the table, compute
// per-reservoir statistics, write the hybrid JSON artifact, and only then
// advance the fingerprint.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/fjmahv/datosEmbalses/internal/adapter/mdb"
	"github.com/fjmahv/datosEmbalses/internal/domain"
	"github.com/fjmahv/datosEmbalses/internal/export"
	"github.com/fjmahv/datosEmbalses/internal/gate"
	"github.com/fjmahv/datosEmbalses/internal/observability"
)

// Fetcher retrieves the source database and returns its local path.
type Fetcher interface {
	Fetch(ctx context.Context, workDir string) (string, error)
}

// Dumper exports the observation table of the database at mdbPath as CSV.
type Dumper interface {
	Dump(ctx context.Context, mdbPath string) ([]byte, error)
}

// FingerprintStore persists the digest of the last processed database.
type FingerprintStore interface {
	Last() (string, error)
	Commit(digest string) error
}

// SnapshotPublisher streams finished records to downstream consumers.
// Publishing is best-effort: the file artifact is the contract.
type SnapshotPublisher interface {
	Publish(ctx context.Context, ds export.Dataset) error
}

// Result summarizes a finished run.
type Result struct {
	Unchanged      bool
	Digest         string
	RecordsParsed  int
	RecordsDropped int
	Reservoirs     int
	Duration       time.Duration
}

// Pipeline wires the run's stages together.
type Pipeline struct {
	fetcher   Fetcher
	dumper    Dumper
	store     FingerprintStore
	publisher SnapshotPublisher // nil when publishing is disabled
	logger    *slog.Logger
	metrics   *observability.Metrics

	workDir    string
	outputFile string
	workers    int
}

// New creates a Pipeline. publisher may be nil.
func New(f Fetcher, d Dumper, s FingerprintStore, pub SnapshotPublisher,
	logger *slog.Logger, metrics *observability.Metrics,
	workDir, outputFile string, workers int) *Pipeline {

	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		fetcher:    f,
		dumper:     d,
		store:      s,
		publisher:  pub,
		logger:     logger,
		metrics:    metrics,
		workDir:    workDir,
		outputFile: outputFile,
		workers:    workers,
	}
}

// Run executes one batch run to completion. Any returned error is fatal:
// nothing downstream-visible has changed and the fingerprint was not
// advanced, so the next invocation retries from scratch.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := clock.Now()

	mdbPath, err := p.fetcher.Fetch(ctx, p.workDir)
	if err != nil {
		return Result{}, fmt.Errorf("fetch source: %w", err)
	}
	defer p.cleanup(mdbPath)

	digest, err := gate.Digest(mdbPath)
	if err != nil {
		return Result{}, err
	}
	last, err := p.store.Last()
	if err != nil {
		return Result{}, err
	}

	if digest == last {
		p.metrics.RunsUnchanged.Inc()
		p.metrics.LastRunSuccess.Set(1)
		duration := clock.Since(start)
		p.logger.Info("database unchanged, nothing to do", "digest", digest, "duration", duration)
		return Result{Unchanged: true, Digest: digest, Duration: duration}, nil
	}

	p.logger.Info("new data detected", "digest", digest)

	dump, err := p.dumper.Dump(ctx, mdbPath)
	if err != nil {
		return Result{}, fmt.Errorf("dump table: %w", err)
	}

	records, dropped, err := mdb.ParseRecords(bytes.NewReader(dump))
	if err != nil {
		return Result{}, fmt.Errorf("parse table dump: %w", err)
	}
	p.metrics.RecordsParsed.Add(float64(len(records)))
	p.metrics.RecordsDropped.Add(float64(dropped))
	p.logger.Info("table cleaned", "records", len(records), "dropped", dropped)

	groups := domain.Group(records)
	keys := domain.SortedKeys(groups)
	snapshots := p.computeSnapshots(keys, groups)
	p.metrics.ReservoirsComputed.Add(float64(len(keys)))

	ds := export.Assemble(keys, snapshots)
	if err := export.WriteFile(p.outputFile, ds); err != nil {
		return Result{}, err
	}
	p.metrics.OutputRecords.Set(float64(len(ds.Records)))

	// The fingerprint advances only after the artifact is safely on disk.
	if err := p.store.Commit(digest); err != nil {
		return Result{}, err
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, ds); err != nil {
			p.logger.Warn("snapshot publish failed", "error", err)
		}
	}

	duration := clock.Since(start)
	p.metrics.RunDuration.Observe(duration.Seconds())
	p.metrics.LastRunSuccess.Set(1)
	p.logger.Info("run complete",
		"reservoirs", len(keys),
		"records", len(records),
		"output", p.outputFile,
		"duration", duration,
	)

	return Result{
		Digest:         digest,
		RecordsParsed:  len(records),
		RecordsDropped: dropped,
		Reservoirs:     len(keys),
		Duration:       duration,
	}, nil
}

// computeSnapshots evaluates the engine across a bounded worker pool.
// Results land in an index-addressed slice, so output order follows the
// sorted keys no matter how the scheduler interleaves workers.
func (p *Pipeline) computeSnapshots(keys []domain.Key, groups map[domain.Key]domain.Series) []domain.Snapshot {
	snapshots := make([]domain.Snapshot, len(keys))

	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i, k := range keys {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, series domain.Series) {
			defer wg.Done()
			defer func() { <-sem }()
			snapshots[i] = domain.Compute(series)
		}(i, groups[k])
	}
	wg.Wait()

	return snapshots
}

// cleanup removes the extracted database; it is re-fetched every run.
func (p *Pipeline) cleanup(mdbPath string) {
	if err := os.Remove(mdbPath); err != nil {
		p.logger.Warn("could not remove extracted database", "path", mdbPath, "error", err)
	}
}
