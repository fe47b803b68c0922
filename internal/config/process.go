package config

import (
	"os"
	"strconv"
	"time"
)

// ProcessConfig holds run-level parameters read from the environment,
// independent of the provider document, via a getenv/getenvInt/
// getenvDuration helper trio for orchestrator bootstrap.
type ProcessConfig struct {
	RunDate             string // YYYY-MM-DD, ET local date
	ArtifactRoot        string
	LogLevel            string
	LogFile             string
	OTLPEndpoint        string
	RunDeadline         time.Duration
	WriteDeadline       time.Duration
	HTTPPoolSize        int
	GathererConcurrency int
	AnalyzerBatchSize   int
	AnalyzerConcurrency int
}

// LoadProcessConfig populates ProcessConfig from the environment,
// applying defaults wherever a variable is unset.
func LoadProcessConfig() ProcessConfig {
	return ProcessConfig{
		RunDate:             getenv("RUN_DATE", defaultRunDate()),
		ArtifactRoot:        getenv("ARTIFACT_ROOT", "web/data"),
		LogLevel:            getenv("LOG_LEVEL", "info"),
		LogFile:             getenv("LOG_FILE", ""),
		OTLPEndpoint:        getenv("OTLP_ENDPOINT", ""),
		RunDeadline:         getenvDuration("RUN_DEADLINE", 20*time.Minute),
		WriteDeadline:       getenvDuration("WRITE_DEADLINE", 30*time.Second),
		HTTPPoolSize:        getenvInt("HTTP_POOL_SIZE", 32),
		GathererConcurrency: getenvInt("GATHERER_CONCURRENCY", 4),
		AnalyzerBatchSize:   getenvInt("ANALYZER_BATCH_SIZE", 75),
		AnalyzerConcurrency: getenvInt("ANALYZER_CONCURRENCY", 4),
	}
}

func defaultRunDate() string {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return time.Now().In(loc).Format("2006-01-02")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
