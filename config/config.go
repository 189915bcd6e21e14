// Package config loads the §6 configuration keys from a YAML file.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Redis holds the redis.* configuration keys of §6.
type Redis struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Socket string `yaml:"socket"`
	// TimeoutMS is redis.timeout, in milliseconds; default 1000.
	TimeoutMS int `yaml:"timeout"`
	Keepalive struct {
		// MaxIdleTimeoutMS is redis.keepalive.max_idle_timeout, in
		// milliseconds.
		MaxIdleTimeoutMS int `yaml:"max_idle_timeout"`
		// PoolSize is redis.keepalive.pool_size; default 100.
		PoolSize int `yaml:"pool_size"`
	} `yaml:"keepalive"`
}

// Config is the full set of §6 configuration keys, plus the
// serve_when_stale grace §4.3 calls design-level configurable and the
// additive cache_key_header override (SPEC_FULL.md).
type Config struct {
	Redis              Redis  `yaml:"redis"`
	RedisDatabase      int    `yaml:"redis_database"`
	RedisQlessDatabase int    `yaml:"redis_qless_database"`
	UpstreamHost       string `yaml:"upstream_host"`
	UpstreamPort       int    `yaml:"upstream_port"`
	ProxyLocation      string `yaml:"proxy_location"`
	// ServeWhenStaleSeconds is the grace period (§4.3) added to a stored
	// entry's TTL but never to its absolute expiry. Zero by default.
	ServeWhenStaleSeconds int `yaml:"serve_when_stale"`
	// CacheKeyHeader is parsed but not read by anything; the cache-key
	// override always uses the Cache-Key request header
	// (cachekey.FromRequest).
	CacheKeyHeader string `yaml:"cache_key_header"`
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Config, error) {
	var cfg Config
	bytes, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(bytes, &cfg)
	return cfg, err
}

// Timeout returns redis.timeout as a time.Duration, defaulting to 1s.
func (r Redis) Timeout() time.Duration {
	if r.TimeoutMS == 0 {
		return time.Second
	}
	return time.Duration(r.TimeoutMS) * time.Millisecond
}

// PoolSize returns redis.keepalive.pool_size, defaulting to 100.
func (r Redis) PoolSize() int {
	if r.Keepalive.PoolSize == 0 {
		return 100
	}
	return r.Keepalive.PoolSize
}

// MaxIdleTimeout returns redis.keepalive.max_idle_timeout as a
// time.Duration.
func (r Redis) MaxIdleTimeout() time.Duration {
	return time.Duration(r.Keepalive.MaxIdleTimeoutMS) * time.Millisecond
}

// ServeWhenStale returns the configured grace as a time.Duration.
func (c Config) ServeWhenStale() time.Duration {
	return time.Duration(c.ServeWhenStaleSeconds) * time.Second
}
