// Command etl runs one complete snapshot of the MITECO reservoir database:
// download, change-gate, table dump, per-reservoir statistics, hybrid JSON
// output. Exit code 0 covers both a written snapshot and the "no new data"
// short-circuit; any fatal error exits 1.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/fjmahv/datosEmbalses/internal/adapter/kafka"
	"github.com/fjmahv/datosEmbalses/internal/adapter/mdb"
	"github.com/fjmahv/datosEmbalses/internal/adapter/miteco"
	"github.com/fjmahv/datosEmbalses/internal/config"
	"github.com/fjmahv/datosEmbalses/internal/gate"
	"github.com/fjmahv/datosEmbalses/internal/observability"
	"github.com/fjmahv/datosEmbalses/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	fetcher := miteco.NewClient(cfg.SourceURL, cfg.DownloadTimeout, logger)
	dumper := mdb.Exporter{Bin: cfg.MDBExportBin, Table: cfg.Table}
	store := gate.NewStore(cfg.HashFile)

	// Snapshot publishing is feature-flagged via KAFKA_ENABLED.
	var publisher pipeline.SnapshotPublisher
	if cfg.KafkaEnabled {
		kp := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Error("kafka publisher close error", "error", err)
			}
		}()
		publisher = kp
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(fetcher, dumper, store, publisher, logger, metrics,
		cfg.WorkDir, cfg.OutputFile, cfg.Workers)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := p.Run(ctx)
	if err != nil {
		logger.Error("pipeline failed", "error", err)
		os.Exit(1)
	}

	if cfg.PushgatewayURL != "" {
		if err := metrics.Push(cfg.PushgatewayURL); err != nil {
			logger.Warn("metrics push failed", "error", err)
		}
	}

	if result.Unchanged {
		logger.Info("finished: no new data")
		return
	}
	logger.Info("finished",
		"reservoirs", result.Reservoirs,
		"records", result.RecordsParsed,
		"dropped", result.RecordsDropped,
		"output", cfg.OutputFile,
	)
}
