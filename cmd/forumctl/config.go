package main

import (
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	forum "github.com/jamesprial/go-forum-client"
	"github.com/jamesprial/go-forum-client/pkg/store"
)

// effectiveConfig is the YAML view printed by `forumctl config`.
type effectiveConfig struct {
	BaseURL            string        `yaml:"base_url"`
	UserAgent          string        `yaml:"user_agent"`
	Timeout            string        `yaml:"timeout"`
	Store              string        `yaml:"store"`
	StorePath          string        `yaml:"store_path"`
	SubredditCacheSize int           `yaml:"subreddit_cache_size"`
	RateLimit          rateLimitView `yaml:"rate_limit"`
}

type rateLimitView struct {
	RequestsPerMinute float64 `yaml:"requests_per_minute"`
	Burst             int     `yaml:"burst"`
	Disabled          bool    `yaml:"disabled"`
}

var cmdConfig = &cli.Command{
	Name:  "config",
	Usage: "print the configuration after file, environment and flags are applied",
	Action: func(cctx *cli.Context) error {
		cfg, err := loadConfig(cctx)
		if err != nil {
			return err
		}
		view := effectiveConfig{
			BaseURL:            orDefault(cfg.BaseURL, forum.DefaultBaseURL),
			UserAgent:          orDefault(cfg.UserAgent, forum.DefaultUserAgent),
			Timeout:            forum.DefaultTimeout.String(),
			Store:              orDefault(string(cfg.StoreKind), string(store.KindFile)),
			StorePath:          cfg.StorePath,
			SubredditCacheSize: forum.DefaultSubredditCacheSize,
		}
		if cfg.Timeout > 0 {
			view.Timeout = cfg.Timeout.String()
		}
		if cfg.SubredditCacheSize > 0 {
			view.SubredditCacheSize = cfg.SubredditCacheSize
		}
		if rl := cfg.RateLimit; rl != nil {
			view.RateLimit = rateLimitView{RequestsPerMinute: rl.RequestsPerMinute, Burst: rl.Burst, Disabled: rl.Disabled}
		}

		enc := yaml.NewEncoder(cctx.App.Writer)
		enc.SetIndent(2)
		if err := enc.Encode(&view); err != nil {
			return err
		}
		return enc.Close()
	},
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
