package config

import (
	"os"
	"strings"
	"time"
)

// Operational knobs. Defaults match the behavior the warehouse deployment runs with.
const (
	DefaultProbeInterval    = 10 * time.Second
	DefaultSweepInterval    = 60 * time.Second
	DefaultRetentionWindow  = 24 * time.Hour
	DefaultContingencyDir   = "./contingency-data"
	DefaultListLimitCeiling = 1000
)

func ContingencyDir() string {
	if dir := strings.TrimSpace(os.Getenv("CONTINGENCY_DIR")); dir != "" {
		return dir
	}
	return DefaultContingencyDir
}

func ProbeInterval() time.Duration {
	return durationFromEnvSeconds("DB_PROBE_INTERVAL_SECONDS", DefaultProbeInterval)
}

func SweepInterval() time.Duration {
	return durationFromEnvSeconds("RETENTION_SWEEP_INTERVAL_SECONDS", DefaultSweepInterval)
}

func RetentionWindow() time.Duration {
	return durationFromEnvSeconds("RETENTION_WINDOW_SECONDS", DefaultRetentionWindow)
}

func durationFromEnvSeconds(key string, def time.Duration) time.Duration {
	n := IntFromEnv(key, 0)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
