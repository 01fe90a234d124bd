package config

import (
	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Gateway defaults
	v.SetDefault("gateway.base_url", "http://localhost:8787")
	v.SetDefault("gateway.timeout_seconds", 30)
	v.SetDefault("gateway.requests_per_second", 10.0)
	v.SetDefault("gateway.burst", 20)

	// Polling defaults
	v.SetDefault("polling.enabled", true)
	v.SetDefault("polling.jobs_list_interval_ms", 30000) // list polling is status-independent
	v.SetDefault("polling.job_interval_ms", 5000)
	v.SetDefault("polling.empty_assets_backoff_factor", 3) // reduce not-found round trips
	v.SetDefault("polling.allowed_pages", []string{
		"jobs",
		"job-details",
		"asset-generation",
	})

	// Retry defaults
	v.SetDefault("retry.base_delay_ms", 1000)
	v.SetDefault("retry.max_delay_ms", 30000)
	v.SetDefault("retry.multiplier", 1.5)
	v.SetDefault("retry.max_attempts", 3)

	// Cache freshness/eviction windows (seconds)
	v.SetDefault("cache.job_detail_stale_seconds", 30)
	v.SetDefault("cache.job_detail_evict_seconds", 300)
	v.SetDefault("cache.files_stale_seconds", 15)
	v.SetDefault("cache.files_evict_seconds", 180)
	v.SetDefault("cache.assets_stale_seconds", 60)
	v.SetDefault("cache.assets_evict_seconds", 600)
	v.SetDefault("cache.jobs_list_stale_seconds", 30)
	v.SetDefault("cache.jobs_list_evict_seconds", 300)
	v.SetDefault("cache.download_url_stale_seconds", 1800)
	v.SetDefault("cache.download_url_evict_seconds", 3600)
	v.SetDefault("cache.batch_jobs_evict_seconds", 300)
	v.SetDefault("cache.sweep_interval_seconds", 60)

	// Console push server defaults
	v.SetDefault("server.port", 8788)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
}

// Default returns a Config populated with defaults only, bypassing files
// and environment. Used by tests and as a fallback when Load fails.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)

	var config Config
	// Unmarshal of pure defaults cannot fail
	_ = v.Unmarshal(&config)
	return &config
}
