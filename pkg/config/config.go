// Package config loads rootline's TOML configuration.
//
// Values come from three layers, later ones winning: built-in defaults, the
// config file, and ROOTLINE_* environment variables. Command-line flags are
// applied on top by the CLI.
//
//	cfg, err := config.Load("")
//	if err != nil {
//		return err
//	}
//	client, err := backend.NewClient(backend.Options{BaseURL: cfg.API.URL, Token: cfg.API.Token})
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/tree"
)

const appName = "rootline"

// Environment variables read by [Config.ApplyEnv].
const (
	EnvAPIURL    = "ROOTLINE_API_URL"
	EnvToken     = "ROOTLINE_TOKEN"
	EnvRedisAddr = "ROOTLINE_REDIS_ADDR"
	EnvMongoURI  = "ROOTLINE_MONGO_URI"
)

// Cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerMongo  = "mongo"
)

// Duration is a time.Duration written as a string such as "24h" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText parses d from a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats d as a Go duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Config is the complete rootline configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Cache  CacheConfig  `toml:"cache"`
	Tree   TreeConfig   `toml:"tree"`
	Review ReviewConfig `toml:"review"`
	Server ServerConfig `toml:"server"`
}

// APIConfig points at the genealogy backend.
type APIConfig struct {
	URL     string   `toml:"url"`
	Token   string   `toml:"token,omitempty"`
	Timeout Duration `toml:"timeout"`
}

// CacheConfig selects where reference records are cached.
type CacheConfig struct {
	Backend       string   `toml:"backend"`
	Dir           string   `toml:"dir,omitempty"`
	TTL           Duration `toml:"ttl"`
	RedisAddr     string   `toml:"redis_addr,omitempty"`
	RedisPassword string   `toml:"redis_password,omitempty"`
	RedisDB       int      `toml:"redis_db"`
	Prefix        string   `toml:"prefix,omitempty"`
}

// TreeConfig holds the default traversal window.
type TreeConfig struct {
	Up       int `toml:"up"`
	Down     int `toml:"down"`
	MaxNodes int `toml:"max_nodes"`
}

// ReviewConfig configures suggestion previews and the moderation ledger.
type ReviewConfig struct {
	Ledger          string `toml:"ledger"`
	MongoURI        string `toml:"mongo_uri,omitempty"`
	MongoDatabase   string `toml:"mongo_database,omitempty"`
	MongoCollection string `toml:"mongo_collection,omitempty"`
	Concurrency     int    `toml:"concurrency"`
}

// ServerConfig configures `rootline serve`.
type ServerConfig struct {
	Addr           string   `toml:"addr"`
	ViewTTL        Duration `toml:"view_ttl"`
	SessionDir     string   `toml:"session_dir,omitempty"`
	AllowedOrigins []string `toml:"allowed_origins,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		API: APIConfig{
			URL:     "http://localhost:8000",
			Timeout: Duration{10 * time.Second},
		},
		Cache: CacheConfig{
			Backend: CacheFile,
			TTL:     Duration{24 * time.Hour},
		},
		Tree: TreeConfig{
			Up:       tree.DefaultUp,
			Down:     tree.DefaultDown,
			MaxNodes: tree.DefaultMaxNodes,
		},
		Review: ReviewConfig{
			Ledger:      LedgerMemory,
			Concurrency: 8,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			ViewTTL: Duration{30 * time.Minute},
		},
	}
}

// Path returns the default config file location:
// $XDG_CONFIG_HOME/rootline/config.toml, or ~/.config/rootline/config.toml.
func Path() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the config file at path, or the default path when path is
// empty, and applies environment overrides. A missing file at the default
// path is not an error; a missing explicit path is.
//
// envFiles are dotenv files whose ROOTLINE_* values apply when the process
// environment does not set them. The process environment is not modified.
func Load(path string, envFiles ...string) (Config, error) {
	getenv := os.Getenv
	if len(envFiles) > 0 {
		vars, err := godotenv.Read(envFiles...)
		if err != nil {
			return Config{}, rlerrors.Wrap(rlerrors.ErrCodeInvalidConfig, err, "read env file")
		}
		getenv = func(k string) string {
			if v := os.Getenv(k); v != "" {
				return v
			}
			return vars[k]
		}
	}

	explicit := path != ""
	if !explicit {
		p, err := Path()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if cfg, err = Parse(data); err != nil {
			return Config{}, fmt.Errorf("%s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, rlerrors.Wrap(rlerrors.ErrCodeInvalidConfig, err, "read config")
	}

	cfg.ApplyEnv(getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes TOML on top of [Default]. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return Config{}, rlerrors.Wrap(rlerrors.ErrCodeInvalidConfig, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, rlerrors.New(rlerrors.ErrCodeInvalidConfig, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up with getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.API.URL = v
	}
	if v := getenv(EnvToken); v != "" {
		c.API.Token = v
	}
	if v := getenv(EnvRedisAddr); v != "" {
		c.Cache.RedisAddr = v
		c.Cache.Backend = CacheRedis
	}
	if v := getenv(EnvMongoURI); v != "" {
		c.Review.MongoURI = v
		c.Review.Ledger = LedgerMongo
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if err := rlerrors.ValidateURL(c.API.URL); err != nil {
		return rlerrors.Wrap(rlerrors.ErrCodeInvalidConfig, err, "api.url")
	}
	if c.API.Timeout.Duration < 0 {
		return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "api.timeout must not be negative")
	}

	switch c.Cache.Backend {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Cache.RedisAddr == "" {
			return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "cache.redis_addr is required for the redis cache")
		}
	default:
		return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "cache.backend must be file, redis or none, got %q", c.Cache.Backend)
	}
	if c.Cache.TTL.Duration < 0 {
		return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "cache.ttl must not be negative")
	}

	req := tree.Request{RootRef: "config", Up: c.Tree.Up, Down: c.Tree.Down, MaxNodes: c.Tree.MaxNodes}
	if err := req.Validate(); err != nil {
		return rlerrors.Wrap(rlerrors.ErrCodeInvalidConfig, err, "tree")
	}

	switch c.Review.Ledger {
	case LedgerMemory:
	case LedgerMongo:
		if c.Review.MongoURI == "" {
			return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "review.mongo_uri is required for the mongo ledger")
		}
	default:
		return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "review.ledger must be memory or mongo, got %q", c.Review.Ledger)
	}
	if c.Review.Concurrency < 1 {
		return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "review.concurrency must be at least 1")
	}

	if c.Server.Addr == "" {
		return rlerrors.New(rlerrors.ErrCodeInvalidConfig, "server.addr is required")
	}
	return nil
}

// TreeRequest returns a traversal request for ref using the configured window.
func (c Config) TreeRequest(ref string) tree.Request {
	return tree.Request{RootRef: ref, Up: c.Tree.Up, Down: c.Tree.Down, MaxNodes: c.Tree.MaxNodes}
}

// Write encodes c as TOML. The API token is never written.
func (c Config) Write(w io.Writer) error {
	c.API.Token = ""
	return toml.NewEncoder(w).Encode(c)
}

// Save writes c to path, creating its directory.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := c.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Redacted returns a display form of a secret, keeping only its length.
func Redacted(secret string) string {
	if secret == "" {
		return ""
	}
	return "<redacted:" + strconv.Itoa(len(secret)) + ">"
}
