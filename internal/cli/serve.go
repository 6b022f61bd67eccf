package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/non4ik-sdk/palettron/internal/colour"
	"github.com/non4ik-sdk/palettron/internal/server"
	"github.com/non4ik-sdk/palettron/internal/session"
)

// sweepInterval is how often expired in-memory sessions are dropped.
const sweepInterval = time.Minute

type serveCmdOptions struct {
	*extractOptions
	addr          string
	redisAddr     string
	sessionTTL    time.Duration
	maxConcurrent int64
	maxUpload     int64
}

func newServeCmd(global *globalOptions) *cobra.Command {
	opts := &serveCmdOptions{extractOptions: newExtractOptions()}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the two-image recolouring flow over HTTP",
		Long: `Run an HTTP server that recolours images in two steps.

  POST   /v1/sessions               open a session
  POST   /v1/sessions/{id}/images   upload a "photo" or "document" part;
                                    the first sets the palette, the second
                                    is recoloured and returned as PNG
  DELETE /v1/sessions/{id}          forget a pending palette
  GET    /v1/start                  usage text
  GET    /healthz, /metrics         health and Prometheus metrics

Pending palettes live in memory unless --redis-addr is set.

Every flag can also be set through the environment: PALETTRON_ADDR,
PALETTRON_REDIS_ADDR, PALETTRON_SESSION_TTL, PALETTRON_MAX_COLOURS,
PALETTRON_MAX_CONCURRENT and PALETTRON_MAX_UPLOAD.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, global, opts)
		},
	}

	fs := cmd.Flags()
	opts.addFlags(fs, false)
	fs.StringVar(&opts.addr, "addr", server.DefaultAddr, "listen address")
	fs.StringVar(&opts.redisAddr, "redis-addr", "", "Redis address or redis:// URL for session storage (default: in memory)")
	fs.DurationVar(&opts.sessionTTL, "session-ttl", session.DefaultTTL, "how long a pending palette is kept (0 keeps it forever)")
	fs.Int64Var(&opts.maxConcurrent, "max-concurrent", int64(runtime.GOMAXPROCS(0)), "images processed at once")
	fs.Int64Var(&opts.maxUpload, "max-upload", server.DefaultMaxUploadBytes, "maximum upload size in bytes")

	return cmd
}

func runServe(cmd *cobra.Command, global *globalOptions, opts *serveCmdOptions) error {
	if err := applyEnv(cmd.Flags()); err != nil {
		return err
	}
	logger := global.logger(cmd)

	if opts.maxConcurrent < 1 {
		return fmt.Errorf("max-concurrent must be at least 1, got %d", opts.maxConcurrent)
	}
	if opts.maxUpload < 1 {
		return fmt.Errorf("max-upload must be at least 1, got %d", opts.maxUpload)
	}

	extractorOpts := []colour.Option{colour.WithLogger(logger.Named("extract"))}
	if cmd.Flags().Changed("seed") {
		extractorOpts = append(extractorOpts, colour.WithSeed(opts.seed))
	}
	extractor, err := colour.NewSampleExtractor(opts.config(), extractorOpts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	store, err := openStore(gctx, g, logger, opts)
	if err != nil {
		return err
	}

	srv := server.New(store, extractor,
		server.WithAddr(opts.addr),
		server.WithLogger(logger.Named("http")),
		server.WithMaxColours(opts.colours),
		server.WithMaxConcurrent(opts.maxConcurrent),
		server.WithMaxUploadBytes(opts.maxUpload),
	)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	return g.Wait()
}

// openStore connects the session store. The in-memory store gets a sweeper
// on g that runs until ctx is done.
func openStore(ctx context.Context, g *errgroup.Group, logger hclog.Logger, opts *serveCmdOptions) (session.Store, error) {
	if opts.redisAddr == "" {
		store := session.NewMemoryStore(session.WithMemoryTTL(opts.sessionTTL))
		logger.Info("using in-memory session store", "ttl", opts.sessionTTL)
		if opts.sessionTTL > 0 {
			g.Go(func() error {
				sweep(ctx, logger.Named("sessions"), store)
				return nil
			})
		}
		return store, nil
	}

	redisOpts, err := redisOptions(opts.redisAddr)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(redisOpts)
	store := session.NewRedisStore(client, session.WithTTL(opts.sessionTTL))
	if err := store.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", redisOpts.Addr, err)
	}
	logger.Info("using redis session store", "addr", redisOpts.Addr, "ttl", opts.sessionTTL)

	g.Go(func() error {
		<-ctx.Done()
		return client.Close()
	})
	return store, nil
}

// redisOptions accepts a plain host:port or a redis:// / rediss:// URL.
func redisOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr}, nil
}

func sweep(ctx context.Context, logger hclog.Logger, store *session.MemoryStore) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				logger.Debug("dropped expired sessions", "count", n)
			}
		}
	}
}
