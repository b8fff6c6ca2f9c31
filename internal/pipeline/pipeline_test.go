package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fjmahv/datosEmbalses/internal/export"
	"github.com/fjmahv/datosEmbalses/internal/gate"
	"github.com/fjmahv/datosEmbalses/internal/observability"
	"github.com/fjmahv/datosEmbalses/internal/pipeline"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvHeader = "AMBITO_NOMBRE,EMBALSE_NOMBRE,FECHA,AGUA_TOTAL,AGUA_ACTUAL\n"

// --- mocks ---

// mockFetcher copies fixed database bytes into the work directory, like the
// real downloader does with the extracted .mdb.
type mockFetcher struct {
	content []byte
	err     error
	calls   int
}

func (m *mockFetcher) Fetch(_ context.Context, workDir string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	path := filepath.Join(workDir, "BD-Embalses.mdb")
	if err := os.WriteFile(path, m.content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type mockDumper struct {
	csv   string
	err   error
	calls int
}

func (m *mockDumper) Dump(_ context.Context, _ string) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.csv), nil
}

type mockPublisher struct {
	published []export.Dataset
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, ds export.Dataset) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, ds)
	return nil
}

type failingStore struct {
	lastErr   error
	commitErr error
}

func (s *failingStore) Last() (string, error) { return "", s.lastErr }
func (s *failingStore) Commit(string) error   { return s.commitErr }

// --- helpers ---

type fixture struct {
	workDir string
	output  string
	store   *gate.Store
	fetcher *mockFetcher
	dumper  *mockDumper
}

func newFixture(t *testing.T, mdbContent, csv string) *fixture {
	t.Helper()
	dir := t.TempDir()
	return &fixture{
		workDir: dir,
		output:  filepath.Join(dir, "datos_embalses_optimizado.json"),
		store:   gate.NewStore(filepath.Join(dir, "last_mdb_hash.txt")),
		fetcher: &mockFetcher{content: []byte(mdbContent)},
		dumper:  &mockDumper{csv: csv},
	}
}

func (f *fixture) pipeline(pub pipeline.SnapshotPublisher) *pipeline.Pipeline {
	return pipeline.New(f.fetcher, f.dumper, f.store, pub,
		slog.Default(), observability.NewMetrics(), f.workDir, f.output, 4)
}

func readOutput(t *testing.T, path string) (export.Metadata, []map[string]any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc struct {
		Metadata export.Metadata  `json:"metadatos"`
		Data     []map[string]any `json:"datos"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc.Metadata, doc.Data
}

// --- tests ---

func TestRun_EndToEnd(t *testing.T) {
	// Reservoir A spans two months; B has a single reading.
	csv := csvHeader +
		"EBRO,MEQUINENZA,15/04/2024,1533,20\n" +
		"EBRO,MEQUINENZA,05/04/2024,1533,25\n" +
		"EBRO,MEQUINENZA,06/03/2024,1533,30\n" +
		"TAJO,BUENDIA,10/04/2024,1638,500\n"

	f := newFixture(t, "mdb-v1", csv)
	res, err := f.pipeline(nil).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Unchanged)
	assert.Equal(t, 4, res.RecordsParsed)
	assert.Zero(t, res.RecordsDropped)
	assert.Equal(t, 2, res.Reservoirs)
	assert.NotEmpty(t, res.Digest)

	meta, data := readOutput(t, f.output)
	assert.Equal(t, "MITECO", meta.Source)
	require.Len(t, data, 2)

	// Ordered by (basin, reservoir) ascending.
	a, b := data[0], data[1]
	assert.Equal(t, "MEQUINENZA", a["en"])
	assert.Equal(t, "BUENDIA", b["en"])

	// A: the 30-day window holds the 20 and 25 readings.
	assert.Equal(t, 20.0, a["aa"])
	assert.Equal(t, 22.5, a["m1m"])
	assert.Equal(t, 20.0, a["m1s"])
	// April cohort excludes the March reading.
	assert.Equal(t, 22.5, a["ht"])
	assert.Nil(t, a["ma1"])

	// B: single record, historical fields equal its value, year-ago null.
	assert.Equal(t, 500.0, b["aa"])
	assert.Equal(t, 500.0, b["ht"])
	assert.Equal(t, 500.0, b["h20a"])
	assert.Nil(t, b["ma1"])

	// Fingerprint advanced.
	last, err := f.store.Last()
	require.NoError(t, err)
	assert.Equal(t, res.Digest, last)

	// The extracted database was cleaned up.
	_, err = os.Stat(filepath.Join(f.workDir, "BD-Embalses.mdb"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_SecondRunShortCircuits(t *testing.T) {
	csv := csvHeader + "EBRO,EBRO,15/04/2024,540,123\n"
	f := newFixture(t, "same-bytes", csv)

	p := f.pipeline(nil)
	first, err := p.Run(context.Background())
	require.NoError(t, err)
	require.False(t, first.Unchanged)

	firstOutput, err := os.ReadFile(f.output)
	require.NoError(t, err)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Unchanged)
	assert.Equal(t, first.Digest, second.Digest)
	assert.Equal(t, 1, f.dumper.calls, "statistics must not be recomputed")

	// Output artifact untouched.
	secondOutput, err := os.ReadFile(f.output)
	require.NoError(t, err)
	assert.Equal(t, firstOutput, secondOutput)
}

func TestRun_ChangedDataReprocesses(t *testing.T) {
	csv := csvHeader + "EBRO,EBRO,15/04/2024,540,123\n"
	f := newFixture(t, "v1", csv)

	p := f.pipeline(nil)
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	f.fetcher.content = []byte("v2")
	f.dumper.csv = csvHeader + "EBRO,EBRO,16/04/2024,540,125\n"

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Unchanged)
	assert.Equal(t, 2, f.dumper.calls)

	_, data := readOutput(t, f.output)
	require.Len(t, data, 1)
	assert.Equal(t, "2024-04-16", data[0]["f"])
}

func TestRun_FetchFailureIsFatal(t *testing.T) {
	f := newFixture(t, "", "")
	f.fetcher.err = errors.New("miteco unreachable")

	_, err := f.pipeline(nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "miteco unreachable")
	assert.Zero(t, f.dumper.calls)
}

func TestRun_DumpFailureLeavesFingerprint(t *testing.T) {
	f := newFixture(t, "v1", "")
	f.dumper.err = errors.New("mdb-export failed")

	_, err := f.pipeline(nil).Run(context.Background())
	require.Error(t, err)

	// Crash-safe gate: the fingerprint did not advance, so the next run
	// retries from scratch.
	last, lerr := f.store.Last()
	require.NoError(t, lerr)
	assert.Empty(t, last)

	_, serr := os.Stat(f.output)
	assert.True(t, os.IsNotExist(serr))
}

func TestRun_BadDumpIsFatal(t *testing.T) {
	f := newFixture(t, "v1", "WRONG_HEADER\nfoo\n")

	_, err := f.pipeline(nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse table dump")
}

func TestRun_CommitFailureIsFatal(t *testing.T) {
	csv := csvHeader + "EBRO,EBRO,15/04/2024,540,123\n"
	f := newFixture(t, "v1", csv)

	p := pipeline.New(f.fetcher, f.dumper,
		&failingStore{commitErr: errors.New("disk full")}, nil,
		slog.Default(), observability.NewMetrics(), f.workDir, f.output, 1)

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestRun_PublisherFailureIsNotFatal(t *testing.T) {
	csv := csvHeader + "EBRO,EBRO,15/04/2024,540,123\n"
	f := newFixture(t, "v1", csv)

	res, err := f.pipeline(&mockPublisher{err: errors.New("broker down")}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Reservoirs)

	// File written and fingerprint advanced despite the failed publish.
	last, err := f.store.Last()
	require.NoError(t, err)
	assert.Equal(t, res.Digest, last)
}

func TestRun_PublishesAfterSuccessfulWrite(t *testing.T) {
	csv := csvHeader +
		"EBRO,EBRO,15/04/2024,540,123\n" +
		"TAJO,BUENDIA,10/04/2024,1638,500\n"
	f := newFixture(t, "v1", csv)

	pub := &mockPublisher{}
	_, err := f.pipeline(pub).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, pub.published, 1)
	assert.Len(t, pub.published[0].Records, 2)
}

func TestRun_ManyReservoirsDeterministicOrder(t *testing.T) {
	// More groups than workers exercises the pool; order must still be
	// (basin, reservoir) ascending.
	var sb strings.Builder
	sb.WriteString(csvHeader)
	names := []string{"ZUJAR", "ALARCON", "MEQUINENZA", "BUENDIA", "CENAJO", "RICOBAYO", "IZNAJAR", "EBRO"}
	for _, n := range names {
		sb.WriteString("CUENCA," + n + ",15/04/2024,100,50\n")
	}

	f := newFixture(t, "v1", sb.String())
	_, err := f.pipeline(nil).Run(context.Background())
	require.NoError(t, err)

	_, data := readOutput(t, f.output)
	require.Len(t, data, len(names))
	for i := 1; i < len(data); i++ {
		assert.Less(t, data[i-1]["en"].(string), data[i]["en"].(string))
	}
}

func TestRun_DurationUsesInjectedClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	pipeline.SetClock(fc)
	t.Cleanup(func() { pipeline.SetClock(nil) })

	csv := csvHeader + "EBRO,EBRO,15/04/2024,540,123\n"
	f := newFixture(t, "v1", csv)

	res, err := f.pipeline(nil).Run(context.Background())
	require.NoError(t, err)

	// The frozen clock never advances, so the measured duration is zero.
	assert.Equal(t, time.Duration(0), res.Duration)
}

func TestRun_DroppedRowsAreCounted(t *testing.T) {
	csv := csvHeader +
		"EBRO,EBRO,15/04/2024,540,123\n" +
		"EBRO,EBRO,bad-date,540,123\n"
	f := newFixture(t, "v1", csv)

	res, err := f.pipeline(nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsParsed)
	assert.Equal(t, 1, res.RecordsDropped)
}
