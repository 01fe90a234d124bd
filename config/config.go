package config

import (
	"time"
)

// Config represents the core cardsync configuration
type Config struct {
	Gateway GatewayConfig `mapstructure:"gateway"`
	Polling PollingConfig `mapstructure:"polling"`
	Retry   RetryConfig   `mapstructure:"retry"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Server  ServerConfig  `mapstructure:"server"`
}

// GatewayConfig configures the content-pipeline gateway client
type GatewayConfig struct {
	BaseURL           string  `mapstructure:"base_url"`
	AuthToken         string  `mapstructure:"auth_token"` // bearer token, env-only in practice
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // rate limit across all polling loops
	Burst             int     `mapstructure:"burst"`
}

// Timeout returns the per-request gateway timeout.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// PollingConfig configures background refresh behaviour.
//
// AllowedPages is the set of console routes permitted to poll in the
// background; a watcher whose Options.Page is not in this list never
// schedules a refetch.
type PollingConfig struct {
	Enabled                  bool     `mapstructure:"enabled"`
	JobsListIntervalMS       int      `mapstructure:"jobs_list_interval_ms"`       // default: 30000
	JobIntervalMS            int      `mapstructure:"job_interval_ms"`             // default: 5000
	EmptyAssetsBackoffFactor int      `mapstructure:"empty_assets_backoff_factor"` // default: 3
	AllowedPages             []string `mapstructure:"allowed_pages"`
}

// JobsListInterval returns the jobs-list polling interval.
func (p PollingConfig) JobsListInterval() time.Duration {
	return time.Duration(p.JobsListIntervalMS) * time.Millisecond
}

// JobInterval returns the individual-job polling interval.
func (p PollingConfig) JobInterval() time.Duration {
	return time.Duration(p.JobIntervalMS) * time.Millisecond
}

// EmptyAssetsBackoff returns the reduced-frequency interval used when a
// job's assets were requested but the gateway has none yet.
func (p PollingConfig) EmptyAssetsBackoff() time.Duration {
	factor := p.EmptyAssetsBackoffFactor
	if factor <= 0 {
		factor = 3
	}
	return time.Duration(factor) * p.JobInterval()
}

// PageAllowed reports whether the given console route may poll.
// An empty page means a headless caller (CLI, tests) and is always allowed.
func (p PollingConfig) PageAllowed(page string) bool {
	if page == "" {
		return true
	}
	for _, allowed := range p.AllowedPages {
		if allowed == page {
			return true
		}
	}
	return false
}

// RetryConfig configures fetch-failure retry behaviour
type RetryConfig struct {
	BaseDelayMS int     `mapstructure:"base_delay_ms"` // default: 1000
	MaxDelayMS  int     `mapstructure:"max_delay_ms"`  // default: 30000
	Multiplier  float64 `mapstructure:"multiplier"`    // default: 1.5
	MaxAttempts int     `mapstructure:"max_attempts"`  // default: 3
}

// CacheConfig configures per-category cache freshness and eviction windows
type CacheConfig struct {
	JobDetailStaleSeconds   int `mapstructure:"job_detail_stale_seconds"`   // default: 30
	JobDetailEvictSeconds   int `mapstructure:"job_detail_evict_seconds"`   // default: 300
	FilesStaleSeconds       int `mapstructure:"files_stale_seconds"`        // default: 15
	FilesEvictSeconds       int `mapstructure:"files_evict_seconds"`        // default: 180
	AssetsStaleSeconds      int `mapstructure:"assets_stale_seconds"`       // default: 60
	AssetsEvictSeconds      int `mapstructure:"assets_evict_seconds"`       // default: 600
	JobsListStaleSeconds    int `mapstructure:"jobs_list_stale_seconds"`    // default: 30
	JobsListEvictSeconds    int `mapstructure:"jobs_list_evict_seconds"`    // default: 300
	DownloadURLStaleSeconds int `mapstructure:"download_url_stale_seconds"` // default: 1800
	DownloadURLEvictSeconds int `mapstructure:"download_url_evict_seconds"` // default: 3600
	BatchJobsEvictSeconds   int `mapstructure:"batch_jobs_evict_seconds"`   // default: 300
	SweepIntervalSeconds    int `mapstructure:"sweep_interval_seconds"`     // default: 60
}

// SweepInterval returns how often expired entries are garbage collected.
func (c CacheConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

// ServerConfig configures the console push server
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}
