// Package config loads the storefront configuration from YAML with
// STOREFRONT_* environment overrides.
package config

import (
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/akashdube/PartsUL/pkg/cache"
	"github.com/akashdube/PartsUL/pkg/catalog"
	"github.com/akashdube/PartsUL/pkg/microservice"
	"github.com/akashdube/PartsUL/pkg/resilience"
	"github.com/cockroachdb/errors"
	"github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "STOREFRONT_"

// Backend names.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendFirestore = "firestore"
)

// Duration accepts Go durations as well as day and week units ("1d", "2w3d").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return str2duration.String(time.Duration(d)), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func parseDuration(s string) (time.Duration, error) {
	d, err := str2duration.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "invalid duration %q", s)
	}
	return d, nil
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type FirestoreConfig struct {
	Collection string `yaml:"collection"`
}

type MemoryConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

type RetryConfig struct {
	Attempts int      `yaml:"attempts"`
	Interval Duration `yaml:"interval"`
}

// DetailConfig is the sliding policy of product detail entries.
type DetailConfig struct {
	Sliding  Duration `yaml:"sliding"`
	Priority string   `yaml:"priority"`
}

// ListingConfig is the absolute policy of listing entries.
type ListingConfig struct {
	Absolute Duration `yaml:"absolute"`
	Priority string   `yaml:"priority"`
}

type CacheConfig struct {
	Backend   string          `yaml:"backend"`
	Codec     string          `yaml:"codec"`
	Redis     RedisConfig     `yaml:"redis"`
	Firestore FirestoreConfig `yaml:"firestore"`
	Memory    MemoryConfig    `yaml:"memory"`
	Retry     RetryConfig     `yaml:"retry"`
	Detail    DetailConfig    `yaml:"detail"`
	Listing   ListingConfig   `yaml:"listing"`
}

type CatalogConfig struct {
	ListingSize int `yaml:"listing_size"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
}

type AnnouncementsConfig struct {
	// Topic is the Pub/Sub topic id. Empty disables announcements.
	Topic string `yaml:"topic"`
}

// Config is the full storefront configuration.
type Config struct {
	microservice.BaseConfig `yaml:",inline"`

	Cache         CacheConfig         `yaml:"cache"`
	Catalog       CatalogConfig       `yaml:"catalog"`
	Store         StoreConfig         `yaml:"store"`
	Announcements AnnouncementsConfig `yaml:"announcements"`
}

// Default returns a configuration that runs entirely in memory.
func Default() *Config {
	return &Config{
		BaseConfig: microservice.BaseConfig{
			LogLevel:  "info",
			LogFormat: "json",
			HTTPPort:  ":8080",
		},
		Cache: CacheConfig{
			Backend:   BackendMemory,
			Codec:     "json",
			Firestore: FirestoreConfig{Collection: "storefront-cache"},
			Retry: RetryConfig{
				Attempts: resilience.DefaultMaxAttempts,
				Interval: Duration(resilience.DefaultInterval),
			},
			Detail:  DetailConfig{Sliding: Duration(10 * time.Minute), Priority: "normal"},
			Listing: ListingConfig{Absolute: Duration(10 * time.Minute), Priority: "high"},
		},
		Catalog: CatalogConfig{ListingSize: 4},
		Store:   StoreConfig{Backend: BackendMemory},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open config file %s", path)
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, errors.Wrapf(err, "failed to decode config file %s", path)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from STOREFRONT_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_LEVEL":            &c.LogLevel,
		"LOG_FORMAT":           &c.LogFormat,
		"HTTP_PORT":            &c.HTTPPort,
		"PROJECT_ID":           &c.ProjectID,
		"CREDENTIALS_FILE":     &c.CredentialsFile,
		"CACHE_BACKEND":        &c.Cache.Backend,
		"CACHE_CODEC":          &c.Cache.Codec,
		"REDIS_ADDR":           &c.Cache.Redis.Addr,
		"REDIS_PASSWORD":       &c.Cache.Redis.Password,
		"REDIS_PREFIX":         &c.Cache.Redis.Prefix,
		"FIRESTORE_COLLECTION": &c.Cache.Firestore.Collection,
		"DETAIL_PRIORITY":      &c.Cache.Detail.Priority,
		"LISTING_PRIORITY":     &c.Cache.Listing.Priority,
		"STORE_BACKEND":        &c.Store.Backend,
		"ANNOUNCEMENTS_TOPIC":  &c.Announcements.Topic,
	}
	for name, field := range strs {
		if v, ok := lookup(EnvPrefix + name); ok {
			*field = v
		}
	}

	ints := map[string]*int{
		"REDIS_DB":           &c.Cache.Redis.DB,
		"MEMORY_MAX_ENTRIES": &c.Cache.Memory.MaxEntries,
		"RETRY_ATTEMPTS":     &c.Cache.Retry.Attempts,
		"LISTING_SIZE":       &c.Catalog.ListingSize,
	}
	for name, field := range ints {
		if v, ok := lookup(EnvPrefix + name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s%s", EnvPrefix, name)
			}
			*field = n
		}
	}

	durations := map[string]*Duration{
		"RETRY_INTERVAL":   &c.Cache.Retry.Interval,
		"DETAIL_SLIDING":   &c.Cache.Detail.Sliding,
		"LISTING_ABSOLUTE": &c.Cache.Listing.Absolute,
	}
	for name, field := range durations {
		if v, ok := lookup(EnvPrefix + name); ok {
			d, err := parseDuration(v)
			if err != nil {
				return errors.Wrapf(err, "invalid %s%s", EnvPrefix, name)
			}
			*field = Duration(d)
		}
	}
	return nil
}

// Validate checks backend names, the codec, the retry policy and the catalog policies.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendMemory, BackendFirestore:
	case BackendRedis:
		if c.Cache.Redis.Addr == "" {
			return errors.New("cache.redis.addr is required for the redis backend")
		}
	default:
		return errors.Newf("unknown cache backend %q", c.Cache.Backend)
	}
	switch c.Store.Backend {
	case BackendMemory, BackendFirestore:
	default:
		return errors.Newf("unknown store backend %q", c.Store.Backend)
	}
	if (c.Cache.Backend == BackendFirestore || c.Store.Backend == BackendFirestore || c.Announcements.Topic != "") && c.ProjectID == "" {
		return errors.New("project_id is required for firestore and pubsub")
	}
	if _, err := cache.CodecByName(c.Cache.Codec); err != nil {
		return err
	}
	if err := c.RetryPolicy(nil).Validate(); err != nil {
		return errors.Wrap(err, "cache.retry")
	}
	if _, err := c.CatalogConfig(); err != nil {
		return err
	}
	return nil
}

// RetryPolicy builds the cache retry policy with the given transient-fault detector.
func (c *Config) RetryPolicy(isTransient func(error) bool) resilience.RetryPolicy {
	return resilience.RetryPolicy{
		MaxAttempts: c.Cache.Retry.Attempts,
		Interval:    c.Cache.Retry.Interval.Std(),
		IsTransient: isTransient,
	}
}

// CatalogConfig builds the per-family entry policies.
func (c *Config) CatalogConfig() (catalog.Config, error) {
	detailPriority, err := cache.ParsePriority(c.Cache.Detail.Priority)
	if err != nil {
		return catalog.Config{}, errors.Wrap(err, "cache.detail.priority")
	}
	listingPriority, err := cache.ParsePriority(c.Cache.Listing.Priority)
	if err != nil {
		return catalog.Config{}, errors.Wrap(err, "cache.listing.priority")
	}
	cfg := catalog.Config{
		DetailPolicy:  cache.Sliding(c.Cache.Detail.Sliding.Std()).WithPriority(detailPriority),
		ListingPolicy: cache.Absolute(c.Cache.Listing.Absolute.Std()).WithPriority(listingPriority),
		ListingSize:   c.Catalog.ListingSize,
	}
	if err := cfg.Validate(); err != nil {
		return catalog.Config{}, err
	}
	return cfg, nil
}
