// Package config loads and validates environment variables at startup.
// Fail-fast: an invalid value aborts the command before any work starts.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultBaseURL      = "https://jobsearch.api.jobtechdev.se"
	DefaultLimit        = 100
	DefaultMaxOffset    = 1900
	DefaultScheduleCron = "25 11 * * *"
)

// Warehouse drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Jobsearch holds the extraction settings for one run.
type Jobsearch struct {
	BaseURL           string
	Query             string
	OccupationFields  []string // "" means no occupation-field filter
	Limit             int
	Offset            int
	MaxOffset         int
	HTTPTimeout       time.Duration
	RequestsPerSecond float64 // 0 disables pacing
	ExcludeTerms      []string
}

// Config holds all runtime configuration.
type Config struct {
	Jobsearch Jobsearch

	WarehouseDriver  string
	DatabaseURL      string
	SQLitePath       string
	WarehouseSchema  string
	WriteDisposition string

	RedisURL      string
	ScheduleCron  string
	DashboardPort string
	GRPCPort      string
	MartCacheTTL  time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	limit, err := intEnv("JOBSEARCH_LIMIT", DefaultLimit)
	if err != nil {
		return nil, err
	}
	if limit < 1 {
		return nil, fmt.Errorf("JOBSEARCH_LIMIT must be a positive integer, got %d", limit)
	}

	offset, err := intEnv("JOBSEARCH_OFFSET", 0)
	if err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("JOBSEARCH_OFFSET must not be negative, got %d", offset)
	}

	maxOffset, err := intEnv("JOBSEARCH_MAX_OFFSET", DefaultMaxOffset)
	if err != nil {
		return nil, err
	}
	if maxOffset < 0 {
		return nil, fmt.Errorf("JOBSEARCH_MAX_OFFSET must not be negative, got %d", maxOffset)
	}

	timeout, err := durationEnv("JOBSEARCH_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	rps := 0.0
	if s := os.Getenv("JOBSEARCH_REQUESTS_PER_SECOND"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("JOBSEARCH_REQUESTS_PER_SECOND must be a non-negative number, got %q", s)
		}
		rps = v
	}

	driver := envOr("WAREHOUSE_DRIVER", DriverSQLite)
	dbURL := os.Getenv("DATABASE_URL")
	switch driver {
	case DriverSQLite:
	case DriverPostgres:
		if dbURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when WAREHOUSE_DRIVER=%s", DriverPostgres)
		}
	default:
		return nil, fmt.Errorf("WAREHOUSE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverPostgres, driver)
	}

	disposition := envOr("WRITE_DISPOSITION", "append")
	if disposition != "append" && disposition != "merge" {
		return nil, fmt.Errorf("WRITE_DISPOSITION must be \"append\" or \"merge\", got %q", disposition)
	}

	cacheTTL, err := durationEnv("MART_CACHE_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	logFormat := envOr("LOG_FORMAT", "text")
	if logFormat != "text" && logFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be \"text\" or \"json\", got %q", logFormat)
	}

	return &Config{
		Jobsearch: Jobsearch{
			BaseURL:           envOr("JOBSEARCH_BASE_URL", DefaultBaseURL),
			Query:             os.Getenv("JOBSEARCH_QUERY"),
			OccupationFields:  ParseFields(os.Getenv("JOBSEARCH_OCCUPATION_FIELDS")),
			Limit:             limit,
			Offset:            offset,
			MaxOffset:         maxOffset,
			HTTPTimeout:       timeout,
			RequestsPerSecond: rps,
			ExcludeTerms:      splitList(os.Getenv("JOBSEARCH_EXCLUDE_TERMS")),
		},
		WarehouseDriver:  driver,
		DatabaseURL:      dbURL,
		SQLitePath:       envOr("SQLITE_PATH", "data/job_ads.db"),
		WarehouseSchema:  envOr("WAREHOUSE_SCHEMA", "staging"),
		WriteDisposition: disposition,
		RedisURL:         os.Getenv("REDIS_URL"),
		ScheduleCron:     envOr("SCHEDULE_CRON", DefaultScheduleCron),
		DashboardPort:    envOr("DASHBOARD_PORT", "8501"),
		GRPCPort:         envOr("GRPC_PORT", "9090"),
		MartCacheTTL:     cacheTTL,
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        logFormat,
	}, nil
}

// ParseFields splits a comma-separated list of occupation-field concept ids.
// An empty input yields a single empty entry, i.e. one unfiltered run.
func ParseFields(s string) []string {
	fields := splitList(s)
	if len(fields) == 0 {
		return []string{""}
	}
	return fields
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, s)
	}
	return v, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, s)
	}
	return d, nil
}
