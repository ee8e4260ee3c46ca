package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/rootline/rootline/internal/api"
	"github.com/rootline/rootline/pkg/config"
	"github.com/rootline/rootline/pkg/observability/metrics"
	"github.com/rootline/rootline/pkg/session"
)

// sweepInterval is how often idle tree views are closed.
const sweepInterval = time.Minute

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tree and review API over HTTP",
		Long: `Run the rootline HTTP API.

Reference records are cached in the configured cache; with the redis cache,
sessions are kept in Redis too so several instances can share them.
Prometheus metrics are exposed at /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				c.Config.Server.Addr = addr
			}
			return c.runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :8080)")
	return cmd
}

func (c *CLI) runServe(ctx context.Context) error {
	collector := metrics.New(appName)
	collector.Install()

	client, cc, err := c.newClient(ctx, false)
	if err != nil {
		return err
	}
	defer cc.Close()

	sessions, closeSessions, err := c.serverSessions(ctx)
	if err != nil {
		return err
	}
	defer closeSessions()

	ledger, err := c.newLedger(ctx)
	if err != nil {
		return err
	}
	defer ledger.Close(context.WithoutCancel(ctx))

	srv, err := api.New(api.Options{
		Backend:        client,
		Sessions:       sessions,
		Ledger:         ledger,
		ViewTTL:        c.Config.Server.ViewTTL.Duration,
		Concurrency:    c.Config.Review.Concurrency,
		AllowedOrigins: c.Config.Server.AllowedOrigins,
		Metrics:        collector.Handler(),
		Logger:         c.Logger,
	})
	if err != nil {
		return err
	}
	if err := srv.Start(sweepInterval); err != nil {
		return fmt.Errorf("start view sweeper: %w", err)
	}

	c.Logger.Info("starting server",
		"addr", c.Config.Server.Addr,
		"backend", client.BaseURL(),
		"cache", c.Config.Cache.Backend,
		"ledger", c.Config.Review.Ledger)
	return srv.ListenAndServe(ctx, c.Config.Server.Addr)
}

// serverSessions returns the session store for the server: Redis when the
// cache lives there, files otherwise.
func (c *CLI) serverSessions(ctx context.Context) (session.Store, func(), error) {
	cfg := c.Config.Cache
	if cfg.Backend == config.CacheRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("connect redis sessions %s: %w", cfg.RedisAddr, err)
		}
		return session.NewRedisStore(rdb), func() { rdb.Close() }, nil
	}
	store, err := c.sessionStore()
	if err != nil {
		return nil, nil, err
	}
	return store, func() {}, nil
}
