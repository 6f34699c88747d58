/*
Package config manages TOML config for menuserve.
*/
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bastiangx/menuserve/internal/utils"
	"github.com/charmbracelet/log"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds the entire config structure
type Config struct {
	Search    SearchConfig    `toml:"search"`
	Cache     CacheConfig     `toml:"cache"`
	Bloom     BloomConfig     `toml:"bloom"`
	Dispatch  DispatchConfig  `toml:"dispatch"`
	Recommend RecommendConfig `toml:"recommend"`
	Catalog   CatalogConfig   `toml:"catalog"`
	Server    ServerConfig    `toml:"server"`
	Log       LogConfig       `toml:"log"`
}

// SearchConfig has coordinator options.
type SearchConfig struct {
	// TTLSeconds is how long a built index stays fresh. 0 never goes stale.
	TTLSeconds   int `toml:"ttl_seconds"`
	DefaultLimit int `toml:"default_limit"`
}

// CacheConfig sizes the result caches.
type CacheConfig struct {
	SearchCapacity    int `toml:"search_capacity"`
	RecommendCapacity int `toml:"recommend_capacity"`
}

// BloomConfig holds membership filter options.
type BloomConfig struct {
	FalsePositiveRate float64 `toml:"false_positive_rate"`
}

// DispatchConfig holds order queue options.
type DispatchConfig struct {
	Capacity       int     `toml:"capacity"`
	CompactRatio   float64 `toml:"compact_ratio"`
	Workers        int     `toml:"workers"`
	IdleIntervalMs int     `toml:"idle_interval_ms"`
}

// RecommendConfig holds collaborative filtering options.
type RecommendConfig struct {
	MinSimilarity float64 `toml:"min_similarity"`
	MaxNeighbors  int     `toml:"max_neighbors"`
	DefaultLimit  int     `toml:"default_limit"`
}

// CatalogConfig says where the catalog comes from.
type CatalogConfig struct {
	Path       string `toml:"path"`
	Watch      bool   `toml:"watch"`
	DebounceMs int    `toml:"debounce_ms"`
}

// ServerConfig has server related options.
type ServerConfig struct {
	MaxLimit     int  `toml:"max_limit"`
	MinPrefix    int  `toml:"min_prefix"`
	MaxPrefix    int  `toml:"max_prefix"`
	// EnableFilter drops typing noise (symbols, one rune repeated) before
	// searching. Off by default: catalog names such as
	// "Chili's #1" would never match.
	EnableFilter bool `toml:"enable_filter"`
}

// LogConfig sets the global log level.
type LogConfig struct {
	Level string `toml:"level"`
}

// TTL returns the search TTL as a duration.
func (s SearchConfig) TTL() time.Duration {
	return time.Duration(s.TTLSeconds) * time.Second
}

// IdleInterval returns the worker idle poll interval.
func (d DispatchConfig) IdleInterval() time.Duration {
	return time.Duration(d.IdleIntervalMs) * time.Millisecond
}

// Debounce returns the catalog watch debounce.
func (c CatalogConfig) Debounce() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	pr, err := utils.NewPathResolver()
	if err != nil {
		return "", err
	}
	return pr.GetConfigPath("config.toml")
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/menuserve/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if utils.FileExists(customConfigPath) {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s. Trying default path...", customConfigPath)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			TTLSeconds:   300,
			DefaultLimit: 20,
		},
		Cache: CacheConfig{
			SearchCapacity:    1000,
			RecommendCapacity: 1000,
		},
		Bloom: BloomConfig{
			FalsePositiveRate: 0.01,
		},
		Dispatch: DispatchConfig{
			Capacity:       10000,
			CompactRatio:   0.5,
			Workers:        4,
			IdleIntervalMs: 1000,
		},
		Recommend: RecommendConfig{
			MinSimilarity: 0.3,
			MaxNeighbors:  20,
			DefaultLimit:  10,
		},
		Catalog: CatalogConfig{
			Path:       "catalog.yaml",
			Watch:      false,
			DebounceMs: 250,
		},
		Server: ServerConfig{
			MaxLimit:     64,
			MinPrefix:    1,
			MaxPrefix:    60,
			EnableFilter: false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate reports the first setting no component could be built with.
func (c *Config) Validate() error {
	switch {
	case c.Search.TTLSeconds < 0:
		return fmt.Errorf("%w: search.ttl_seconds must be >= 0, got %d", ErrInvalidConfig, c.Search.TTLSeconds)
	case c.Cache.SearchCapacity <= 0:
		return fmt.Errorf("%w: cache.search_capacity must be positive, got %d", ErrInvalidConfig, c.Cache.SearchCapacity)
	case c.Cache.RecommendCapacity <= 0:
		return fmt.Errorf("%w: cache.recommend_capacity must be positive, got %d", ErrInvalidConfig, c.Cache.RecommendCapacity)
	case c.Bloom.FalsePositiveRate <= 0 || c.Bloom.FalsePositiveRate >= 1:
		return fmt.Errorf("%w: bloom.false_positive_rate must be in (0, 1), got %v", ErrInvalidConfig, c.Bloom.FalsePositiveRate)
	case c.Dispatch.Capacity <= 0:
		return fmt.Errorf("%w: dispatch.capacity must be positive, got %d", ErrInvalidConfig, c.Dispatch.Capacity)
	case c.Dispatch.CompactRatio <= 0 || c.Dispatch.CompactRatio > 1:
		return fmt.Errorf("%w: dispatch.compact_ratio must be in (0, 1], got %v", ErrInvalidConfig, c.Dispatch.CompactRatio)
	case c.Dispatch.Workers <= 0:
		return fmt.Errorf("%w: dispatch.workers must be positive, got %d", ErrInvalidConfig, c.Dispatch.Workers)
	case c.Recommend.MinSimilarity < -1 || c.Recommend.MinSimilarity > 1:
		return fmt.Errorf("%w: recommend.min_similarity must be in [-1, 1], got %v", ErrInvalidConfig, c.Recommend.MinSimilarity)
	case c.Recommend.MaxNeighbors <= 0:
		return fmt.Errorf("%w: recommend.max_neighbors must be positive, got %d", ErrInvalidConfig, c.Recommend.MaxNeighbors)
	case c.Server.MinPrefix < 0 || (c.Server.MaxPrefix > 0 && c.Server.MaxPrefix < c.Server.MinPrefix):
		return fmt.Errorf("%w: server prefix bounds %d..%d", ErrInvalidConfig, c.Server.MinPrefix, c.Server.MaxPrefix)
	}
	return nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file. Keys missing from the file keep their
// defaults; a file that fails the typed decode is salvaged key by key.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse attempts to parse a TOML file
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "search"); ok {
		extractSearchConfig(section, &config.Search)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		extractCacheConfig(section, &config.Cache)
	}
	if section, ok := utils.ExtractSection(tempConfig, "bloom"); ok {
		if val, ok := utils.ExtractFloat64(section, "false_positive_rate"); ok {
			config.Bloom.FalsePositiveRate = val
		}
	}
	if section, ok := utils.ExtractSection(tempConfig, "dispatch"); ok {
		extractDispatchConfig(section, &config.Dispatch)
	}
	if section, ok := utils.ExtractSection(tempConfig, "recommend"); ok {
		extractRecommendConfig(section, &config.Recommend)
	}
	if section, ok := utils.ExtractSection(tempConfig, "catalog"); ok {
		extractCatalogConfig(section, &config.Catalog)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "log"); ok {
		if val, ok := utils.ExtractString(section, "level"); ok {
			config.Log.Level = val
		}
	}
	return config, nil
}

func extractSearchConfig(data map[string]any, search *SearchConfig) {
	if val, ok := utils.ExtractInt64(data, "ttl_seconds"); ok {
		search.TTLSeconds = val
	}
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		search.DefaultLimit = val
	}
}

func extractCacheConfig(data map[string]any, cache *CacheConfig) {
	if val, ok := utils.ExtractInt64(data, "search_capacity"); ok {
		cache.SearchCapacity = val
	}
	if val, ok := utils.ExtractInt64(data, "recommend_capacity"); ok {
		cache.RecommendCapacity = val
	}
}

func extractDispatchConfig(data map[string]any, dispatch *DispatchConfig) {
	if val, ok := utils.ExtractInt64(data, "capacity"); ok {
		dispatch.Capacity = val
	}
	if val, ok := utils.ExtractFloat64(data, "compact_ratio"); ok {
		dispatch.CompactRatio = val
	}
	if val, ok := utils.ExtractInt64(data, "workers"); ok {
		dispatch.Workers = val
	}
	if val, ok := utils.ExtractInt64(data, "idle_interval_ms"); ok {
		dispatch.IdleIntervalMs = val
	}
}

func extractRecommendConfig(data map[string]any, rec *RecommendConfig) {
	if val, ok := utils.ExtractFloat64(data, "min_similarity"); ok {
		rec.MinSimilarity = val
	}
	if val, ok := utils.ExtractInt64(data, "max_neighbors"); ok {
		rec.MaxNeighbors = val
	}
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		rec.DefaultLimit = val
	}
}

func extractCatalogConfig(data map[string]any, cat *CatalogConfig) {
	if val, ok := utils.ExtractString(data, "path"); ok {
		cat.Path = val
	}
	if val, ok := utils.ExtractBool(data, "watch"); ok {
		cat.Watch = val
	}
	if val, ok := utils.ExtractInt64(data, "debounce_ms"); ok {
		cat.DebounceMs = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "min_prefix"); ok {
		server.MinPrefix = val
	}
	if val, ok := utils.ExtractInt64(data, "max_prefix"); ok {
		server.MaxPrefix = val
	}
	if val, ok := utils.ExtractBool(data, "enable_filter"); ok {
		server.EnableFilter = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}
