package forum

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/store"
)

// Environment variables read by ApplyEnv. Every config key is also read
// from FORUM_ followed by the upper-cased key, with dots as underscores.
const (
	EnvBaseURL            = "FORUM_BASE_URL"
	EnvUserAgent          = "FORUM_USER_AGENT"
	EnvTimeout            = "FORUM_TIMEOUT"
	EnvStore              = "FORUM_STORE"
	EnvStorePath          = "FORUM_STORE_PATH"
	EnvSubredditCacheSize = "FORUM_SUBREDDIT_CACHE_SIZE"
	EnvRateLimitRPM       = "FORUM_RATE_LIMIT_RPM"
	EnvRateLimitBurst     = "FORUM_RATE_LIMIT_BURST"
	EnvRateLimitDisable   = "FORUM_RATE_LIMIT_DISABLED"

	envPrefix = "FORUM"
)

// configKeys are the keys a config file or the environment may set.
var configKeys = []string{
	"base_url",
	"user_agent",
	"timeout",
	"store",
	"store_path",
	"subreddit_cache_size",
	"rate_limit.requests_per_minute",
	"rate_limit.burst",
	"rate_limit.disabled",
}

// LoadConfig reads a YAML configuration file. A missing file yields an
// empty Config so callers can layer environment overrides on top.
//
//	base_url: https://forum.example.com/api
//	user_agent: myapp/1.0
//	timeout: 15s
//	store: sqlite
//	rate_limit:
//	  requests_per_minute: 120
//	  burst: 10
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yml")
	if err := v.ReadInConfig(); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "path", Message: fmt.Sprintf("failed to parse %s: %v", path, err)}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "path", Message: fmt.Sprintf("failed to decode %s: %v", path, err)}
	}
	if err := cfg.validateStoreKind(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overlays the FORUM_* environment variables onto c. Unset or
// empty variables leave the current value alone. On error c is unchanged.
func (c *Config) ApplyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range configKeys {
		if err := v.BindEnv(key); err != nil {
			return &pkgerrs.ConfigError{Field: key, Message: err.Error()}
		}
	}
	if err := v.BindEnv("rate_limit.requests_per_minute", EnvRateLimitRPM, "FORUM_RATE_LIMIT_REQUESTS_PER_MINUTE"); err != nil {
		return &pkgerrs.ConfigError{Field: EnvRateLimitRPM, Message: err.Error()}
	}

	next := *c
	if c.RateLimit != nil {
		rl := *c.RateLimit
		next.RateLimit = &rl
	}
	if err := v.Unmarshal(&next); err != nil {
		return &pkgerrs.ConfigError{Field: "environment", Message: err.Error()}
	}
	if err := next.validateStoreKind(); err != nil {
		return err
	}
	*c = next
	return nil
}

func (c *Config) validateStoreKind() error {
	switch c.StoreKind {
	case "", store.KindMemory, store.KindFile, store.KindPebble, store.KindSQLite:
		return nil
	}
	return &pkgerrs.ConfigError{Field: "store", Message: fmt.Sprintf("unknown store backend %q", c.StoreKind)}
}
