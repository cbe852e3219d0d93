// Package cache provides query cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/pharmakb/pharmakb/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options configures the Redis-backed query answer cache.
type Options struct {
	// Enabled toggles the cache. When disabled, Redis is never dialed.
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL is the cache entry lifetime.
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix namespaces cache keys.
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// Redis holds the connection settings.
	Redis *RedisOptions `json:"redis" mapstructure:"redis"`
}

// RedisOptions holds Redis connection settings.
type RedisOptions struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	Password     string `json:"-" mapstructure:"password"`
	Database     int    `json:"database" mapstructure:"database"`
	MaxRetries   int    `json:"max-retries" mapstructure:"max-retries"`
	PoolSize     int    `json:"pool-size" mapstructure:"pool-size"`
	MinIdleConns int    `json:"min-idle-conns" mapstructure:"min-idle-conns"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Enabled:   true,
		TTL:       1 * time.Hour,
		KeyPrefix: "pharmakb:query:",
		Redis: &RedisOptions{
			Host:         "localhost",
			Port:         6379,
			Database:     0,
			MaxRetries:   3,
			PoolSize:     10,
			MinIdleConns: 5,
		},
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	join := options.Join(prefixes...)
	fs.BoolVar(&o.Enabled, join+"cache.enabled", o.Enabled, "Enable query answer cache.")
	fs.DurationVar(&o.TTL, join+"cache.ttl", o.TTL, "Cache TTL duration.")
	fs.StringVar(&o.KeyPrefix, join+"cache.key-prefix", o.KeyPrefix, "Cache key prefix.")
	fs.StringVar(&o.Redis.Host, join+"cache.redis.host", o.Redis.Host, "Redis host.")
	fs.IntVar(&o.Redis.Port, join+"cache.redis.port", o.Redis.Port, "Redis port.")
	fs.StringVar(&o.Redis.Password, join+"cache.redis.password", o.Redis.Password, "Redis password.")
	fs.IntVar(&o.Redis.Database, join+"cache.redis.database", o.Redis.Database, "Redis database number.")
	fs.IntVar(&o.Redis.MaxRetries, join+"cache.redis.max-retries", o.Redis.MaxRetries, "Redis max retries.")
	fs.IntVar(&o.Redis.PoolSize, join+"cache.redis.pool-size", o.Redis.PoolSize, "Redis connection pool size.")
	fs.IntVar(&o.Redis.MinIdleConns, join+"cache.redis.min-idle-conns", o.Redis.MinIdleConns, "Redis minimum idle connections.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.TTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl must be positive"))
	}
	if o.Redis == nil || o.Redis.Host == "" {
		errs = append(errs, fmt.Errorf("cache redis host is required when cache is enabled"))
	}
	return errs
}
