// Package cli implements the rootline command-line interface.
package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/rootline/rootline/pkg/cache"
	"github.com/rootline/rootline/pkg/config"
	"github.com/rootline/rootline/pkg/integrations/backend"
	"github.com/rootline/rootline/pkg/review"
	"github.com/rootline/rootline/pkg/session"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "rootline"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
	Config config.Config

	configPath string
	envFiles   []string
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

func (c *CLI) loadConfig() error {
	cfg, err := config.Load(c.configPath, c.envFiles...)
	if err != nil {
		return err
	}
	c.Config = cfg
	c.Logger.Debug("config loaded", "path", c.configPathOrDefault(), "api", cfg.API.URL, "cache", cfg.Cache.Backend)
	return nil
}

func (c *CLI) configPathOrDefault() string {
	if c.configPath != "" {
		return c.configPath
	}
	p, err := config.Path()
	if err != nil {
		return ""
	}
	return p
}

// =============================================================================
// Dependency Factories
// =============================================================================

// newCache opens the configured reference cache. A file cache that cannot
// be created falls back to no caching.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	cfg := c.Config.Cache
	if noCache || cfg.Backend == config.CacheNone {
		return cache.NewNullCache(), nil
	}
	if cfg.Backend == config.CacheRedis {
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis cache %s: %w", cfg.RedisAddr, err)
		}
		return rc, nil
	}

	dir := cfg.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			c.Logger.Warn("no cache directory, caching disabled", "err", err)
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		c.Logger.Warn("cannot open cache, caching disabled", "dir", dir, "err", err)
		return cache.NewNullCache(), nil
	}
	return fc, nil
}

func (c *CLI) keyer() cache.Keyer {
	k := cache.NewDefaultKeyer()
	if p := c.Config.Cache.Prefix; p != "" {
		k = cache.NewScopedKeyer(k, p)
	}
	return k
}

// token returns the configured API token, or the token of the logged-in
// CLI session.
func (c *CLI) token(ctx context.Context) string {
	if c.Config.API.Token != "" {
		return c.Config.API.Token
	}
	store, err := c.sessionStore()
	if err != nil {
		return ""
	}
	sess, err := store.Current(ctx)
	if err != nil || sess == nil {
		return ""
	}
	return sess.Token
}

// newClient builds a backend client with the caller's token and cache. The
// returned cache must be closed by the caller.
func (c *CLI) newClient(ctx context.Context, noCache bool) (*backend.Client, cache.Cache, error) {
	cc, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, nil, err
	}
	client, err := backend.NewClient(backend.Options{
		BaseURL:    c.Config.API.URL,
		Token:      c.token(ctx),
		Cache:      cc,
		Keyer:      c.keyer(),
		RefTTL:     c.Config.Cache.TTL.Duration,
		HTTPClient: &http.Client{Timeout: c.Config.API.Timeout.Duration},
		Logger:     c.Logger,
	})
	if err != nil {
		cc.Close()
		return nil, nil, err
	}
	return client, cc, nil
}

// newLedger opens the configured decision ledger.
func (c *CLI) newLedger(ctx context.Context) (review.Store, error) {
	cfg := c.Config.Review
	if cfg.Ledger != config.LedgerMongo {
		return review.NewMemoryStore(), nil
	}
	store, err := review.NewMongoStore(ctx, review.MongoConfig{
		URI:        cfg.MongoURI,
		Database:   cfg.MongoDatabase,
		Collection: cfg.MongoCollection,
	})
	if err != nil {
		return nil, fmt.Errorf("open decision ledger: %w", err)
	}
	return store, nil
}

func (c *CLI) sessionStore() (*session.FileStore, error) {
	dir := c.Config.Server.SessionDir
	if dir == "" {
		d, err := sessionDir()
		if err != nil {
			return nil, err
		}
		dir = d
	}
	return session.NewFileStore(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/rootline/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// sessionDir returns where CLI sessions are stored (~/.config/rootline/sessions/).
func sessionDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "sessions"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "sessions"), nil
}
