package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// defaultSourceURL is the published location of the historical reservoir
// database (ZIP containing an Access .mdb).
const defaultSourceURL = "https://www.miteco.gob.es/content/dam/miteco/es/agua/temas/evaluacion-de-los-recursos-hidricos/boletin-hidrologico/Historico-de-embalses/BD-Embalses.zip"

// Config holds all pipeline settings, populated from environment variables.
type Config struct {
	SourceURL       string
	Table           string
	WorkDir         string
	HashFile        string
	OutputFile      string
	MDBExportBin    string
	DownloadTimeout time.Duration
	Workers         int
	LogLevel        string
	LogFormat       string

	// Optional snapshot publishing.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string

	// Optional batch-job metrics push.
	PushgatewayURL string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // ignore missing file

	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}

	workers, err := parseWorkers()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		SourceURL:       envOrDefault("MITECO_URL", defaultSourceURL),
		Table:           envOrDefault("MDB_TABLE", "T_Datos Embalses 1988-2026"),
		WorkDir:         envOrDefault("WORK_DIR", "."),
		HashFile:        envOrDefault("HASH_FILE", "last_mdb_hash.txt"),
		OutputFile:      envOrDefault("OUTPUT_FILE", "datos_embalses_optimizado.json"),
		MDBExportBin:    envOrDefault("MDB_EXPORT_BIN", "mdb-export"),
		DownloadTimeout: downloadTimeout,
		Workers:         workers,
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "text"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "reservoir-snapshots"),

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
	}

	if cfg.SourceURL == "" {
		return nil, errors.New("MITECO_URL is required")
	}
	if cfg.Table == "" {
		return nil, errors.New("MDB_TABLE is required")
	}
	if cfg.OutputFile == "" {
		return nil, errors.New("OUTPUT_FILE is required")
	}
	if cfg.HashFile == "" {
		return nil, errors.New("HASH_FILE is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseWorkers() (int, error) {
	s := os.Getenv("WORKERS")
	if s == "" {
		return runtime.GOMAXPROCS(0), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid WORKERS")
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
