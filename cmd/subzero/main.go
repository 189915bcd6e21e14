// Command subzero is the thin protocol-server adapter: it wires a
// chi.Router, a Store, an origin.Fetcher, an events.Bus and the State
// Engine together, and runs the background revalidation worker alongside
// the HTTP listener.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/subzero-cache/subzero/config"
	"github.com/subzero-cache/subzero/engine"
	"github.com/subzero-cache/subzero/events"
	"github.com/subzero-cache/subzero/metrics"
	"github.com/subzero-cache/subzero/origin"
	"github.com/subzero-cache/subzero/revalidate"
	"github.com/subzero-cache/subzero/store"
)

var (
	configFlag   string
	portFlag     int
	originFlag   string
	providerFlag string
	hostFlag     string
	traceFlag    bool
)

func init() {
	flag.StringVar(&configFlag, "config", "", "Path to config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&originFlag, "origin", "", "Origin to proxy to (overrides config proxy_location)")
	flag.StringVar(&providerFlag, "provider", "redis", "Store provider: redis or memory")
	flag.StringVar(&hostFlag, "host", "", "This cache's own identity for the Via header")
	flag.BoolVar(&traceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if traceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stdout})

	var cfg config.Config
	if configFlag != "" {
		loaded, err := config.Load(configFlag)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
		cfg = loaded
	}
	if originFlag != "" {
		cfg.ProxyLocation = originFlag
	}
	if cfg.ProxyLocation == "" {
		log.Fatal().Msg("proxy_location is required (config file or -origin)")
	}
	host := hostFlag
	if host == "" {
		host, _ = os.Hostname()
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	cacheStore := newStore(cfg)
	defer cacheStore.Close()

	bus := events.NewBus()
	fetcher := origin.New(cfg.ProxyLocation, bus)
	publisher := revalidate.New(cacheStore)

	eng := engine.New(engine.Config{
		Store:     cacheStore,
		Fetcher:   fetcher,
		Bus:       bus,
		Publisher: publisher,
		Metrics:   m,
		Logger:    &log.Logger,
		Host:      host,
		Grace:     cfg.ServeWhenStale(),
	})

	worker := &revalidate.Worker{
		Store:     cacheStore,
		Refresher: eng,
		Log:       log.Logger,
	}

	router := newRouter(eng, registry, log.Logger)

	srv := &http.Server{
		Addr:    ":" + strconv.Itoa(portFlag),
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("proxy_location", cfg.ProxyLocation).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown")
	}
}

func newStore(cfg config.Config) store.Store {
	switch providerFlag {
	case "memory":
		return store.NewMemoryStore(10000)
	case "redis":
		return store.NewRedisStore(store.RedisOptions{
			Host:                 cfg.Redis.Host,
			Port:                 cfg.Redis.Port,
			Socket:               cfg.Redis.Socket,
			Database:             cfg.RedisDatabase,
			PoolSize:             cfg.Redis.PoolSize(),
			Timeout:              cfg.Redis.Timeout(),
			KeepAliveIdleTimeout: cfg.Redis.MaxIdleTimeout(),
		})
	default:
		log.Fatal().Str("provider", providerFlag).Msg("unsupported store provider")
		return nil
	}
}

func newRouter(eng *engine.Engine, registry *prometheus.Registry, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logging(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Handle("/*", eng)

	return r
}
