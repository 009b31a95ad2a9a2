package forum

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jamesprial/go-forum-client/internal"
	pkgerrs "github.com/jamesprial/go-forum-client/pkg/errors"
	"github.com/jamesprial/go-forum-client/pkg/store"
	"github.com/jamesprial/go-forum-client/pkg/types"
)

const (
	// DefaultBaseURL is the default forum API base URL
	DefaultBaseURL = "http://localhost:8080/api"
	// DefaultUserAgent is the default user agent string
	DefaultUserAgent = "go-forum-client/0.1"
	// DefaultTimeout is the default HTTP client timeout
	DefaultTimeout = 30 * time.Second
	// DefaultAppName names the per-user state directory of the durable store
	DefaultAppName = "go-forum-client"
	// DefaultSubredditCacheSize bounds the by-name subreddit cache
	DefaultSubredditCacheSize = 128

	// PageSize is the number of items requested per feed page. A shorter
	// page marks the feed as exhausted.
	PageSize = 20
)

// RateLimitConfig controls client-side request throttling.
type RateLimitConfig = internal.RateLimitConfig

// Config holds the configuration for the forum client.
//
// Only BaseURL is commonly changed; everything else has a working default.
//
//	client, err := forum.NewClient(&forum.Config{
//		BaseURL:   "https://forum.example.com/api",
//		UserAgent: "myapp/1.0",
//	})
type Config struct {
	// BaseURL for the forum API, including any path prefix such as /api.
	// Defaults to DefaultBaseURL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`

	// UserAgent identifies the application. Defaults to DefaultUserAgent.
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`

	// Timeout applies to the default HTTP client. Ignored when HTTPClient is set.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// StoreKind selects the durable store backend when Store is nil.
	// Defaults to store.KindFile.
	StoreKind store.Kind `yaml:"store" mapstructure:"store"`

	// StorePath overrides the backend's default XDG state location.
	StorePath string `yaml:"store_path" mapstructure:"store_path"`

	// RateLimit configures request throttling. Nil uses the defaults.
	RateLimit *RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`

	// SubredditCacheSize bounds the by-name subreddit cache.
	SubredditCacheSize int `yaml:"subreddit_cache_size" mapstructure:"subreddit_cache_size"`

	// HTTPClient to use for requests.
	// Defaults to a client with Timeout if not specified.
	HTTPClient *http.Client `yaml:"-" mapstructure:"-"`

	// Store persists the session between runs. When set, the caller owns it
	// and Close leaves it open.
	Store store.Store `yaml:"-" mapstructure:"-"`

	// Logger for structured diagnostics. Defaults to discarding output.
	Logger *slog.Logger `yaml:"-" mapstructure:"-"`

	// Registerer receives the client's prometheus collectors. Optional.
	Registerer prometheus.Registerer `yaml:"-" mapstructure:"-"`

	// OnSessionExpired runs after a failed credential renewal has cleared
	// the session, e.g. to send the user back to a sign-in screen.
	OnSessionExpired func() `yaml:"-" mapstructure:"-"`
}

// Client is the forum state engine. It owns the session and hands out
// feeds and threads that share it.
//
// A Client is safe for concurrent use by multiple goroutines.
type Client struct {
	config    *Config
	gateway   *internal.Client
	session   *internal.Session
	parser    *internal.Parser
	validator *internal.Validator
	logger    *slog.Logger

	store     store.Store
	ownsStore bool

	subreddits *lru.Cache[string, *types.Subreddit]
	mineMu     sync.Mutex
	mine       []*types.Subreddit
	mineValid  bool
	// mineGen advances on every invalidation so stale fetches are not cached.
	mineGen uint64

	feedsMu sync.Mutex
	feeds   map[*Feed]struct{}
}

// NewClient creates a forum client. A nil config uses every default.
//
// NewClient performs no network I/O. The stored session is restored lazily
// by the first operation, or explicitly with Bootstrap.
//
// Returns an error if:
//   - the base URL or user agent is invalid
//   - the durable store cannot be opened
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		config = &Config{}
	}
	cfg := *config

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.StoreKind == "" {
		cfg.StoreKind = store.KindFile
	}
	if cfg.SubredditCacheSize <= 0 {
		cfg.SubredditCacheSize = DefaultSubredditCacheSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	validator := internal.NewValidator()
	if err := validator.ValidateUserAgent(cfg.UserAgent); err != nil {
		return nil, &pkgerrs.ConfigError{Field: "UserAgent", Message: err.Error()}
	}

	metrics := internal.NewMetrics(cfg.Registerer)

	gateway, err := internal.NewClient(cfg.HTTPClient, cfg.BaseURL, cfg.UserAgent, cfg.RateLimit, cfg.Logger, metrics)
	if err != nil {
		return nil, err
	}

	subreddits, err := lru.New[string, *types.Subreddit](cfg.SubredditCacheSize)
	if err != nil {
		return nil, &pkgerrs.ConfigError{Field: "SubredditCacheSize", Message: err.Error()}
	}

	st, owns := cfg.Store, false
	if st == nil {
		st, err = store.Open(cfg.StoreKind, cfg.StorePath, DefaultAppName)
		if err != nil {
			return nil, &pkgerrs.StoreError{Op: "open", Err: err}
		}
		owns = true
	}

	c := &Client{
		config:     &cfg,
		gateway:    gateway,
		parser:     internal.NewParser(),
		validator:  validator,
		logger:     cfg.Logger,
		store:      st,
		ownsStore:  owns,
		subreddits: subreddits,
		feeds:      make(map[*Feed]struct{}),
	}
	c.session = internal.NewSession(gateway, st, cfg.Logger, metrics, c.sessionExpired)
	return c, nil
}

// Close releases the durable store if the client opened it.
func (c *Client) Close() error {
	if !c.ownsStore {
		return nil
	}
	if err := c.store.Close(); err != nil {
		return &pkgerrs.StoreError{Op: "close", Err: err}
	}
	return nil
}

// ensureBootstrapped restores the stored session before the first request.
func (c *Client) ensureBootstrapped(ctx context.Context) error {
	return c.session.Bootstrap(ctx)
}

func (c *Client) sessionExpired() {
	c.forgetMembership()
	if c.config.OnSessionExpired != nil {
		c.config.OnSessionExpired()
	}
}

// call issues an authenticated request and decodes the response into v.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, v any) error {
	if err := c.ensureBootstrapped(ctx); err != nil {
		return err
	}
	return c.gateway.Call(ctx, method, path, query, body, v)
}
