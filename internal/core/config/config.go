package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type IngestCfg struct {
	Enabled bool
	Brokers string
	Topic   string
	GroupID string
}

type MetricsCfg struct {
	Enabled   bool
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	Backend        string // memory | redis
	RedisAddr      string
	Strategy       string // flatscan | hierarchical
	H3Res          int
	ScanCeiling    int
	GhostPrefix    string
	StoreOpTimeout time.Duration
	Metrics        MetricsCfg
	Ingest         IngestCfg
}

func FromEnv() Config {
	res := getint("H3_RES", 7)
	if res < 0 {
		res = 0
	}
	if res > 15 {
		res = 15
	}

	ceiling := getint("SCAN_CEILING", 1000)
	if ceiling <= 0 {
		ceiling = 1000
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		Backend:        strings.ToLower(getenv("BACKEND", "memory")),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		Strategy:       strings.ToLower(getenv("STRATEGY", "flatscan")),
		H3Res:          res,
		ScanCeiling:    ceiling,
		GhostPrefix:    getenv("GHOST_PREFIX", "ghost:"),
		StoreOpTimeout: getduration("STORE_OP_TIMEOUT", 250*time.Millisecond),
		Metrics: MetricsCfg{
			Enabled:   getbool("METRICS_ENABLED", true),
			Version:   getenv("BUILD_VERSION", ""),
			Revision:  getenv("BUILD_REVISION", ""),
			Branch:    getenv("BUILD_BRANCH", ""),
			BuildDate: getenv("BUILD_DATE", ""),
		},
		Ingest: IngestCfg{
			Enabled: getbool("INGEST_ENABLED", false),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:   getenv("KAFKA_TOPIC", "driver-locations"),
			GroupID: getenv("KAFKA_GROUP_ID", "proximity-index"),
		},
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
