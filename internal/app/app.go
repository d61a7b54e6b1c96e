package app

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/catalog"
	"github.com/xenking/storefront/internal/format"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/order"
	"github.com/xenking/storefront/internal/storage"
	"github.com/xenking/storefront/internal/storage/file"
	"github.com/xenking/storefront/internal/storage/memory"
	"github.com/xenking/storefront/internal/storage/postgres"
	"github.com/xenking/storefront/internal/storefront"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Telemetry provides the OpenTelemetry providers. *app.Telemetry of
// go-faster/sdk satisfies it.
type Telemetry interface {
	MeterProvider() metric.MeterProvider
	TracerProvider() trace.TracerProvider
	TextMapPropagator() propagation.TextMapPropagator
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("channel", cfg.Order.Channel),
	)

	money, err := format.NewMoney(cfg.Currency.Code, cfg.Currency.Locale)
	if err != nil {
		return errors.Wrap(err, "currency")
	}

	slots, journal, closeStore, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer closeStore()

	// Catalog, loaded in the background. Readiness waits for the products.
	cat := catalog.New()
	loader, err := newLoader(cfg.Catalog, cat, lg.Named("catalog"), m)
	if err != nil {
		return errors.Wrap(err, "create catalog loader")
	}

	orderCfg, err := newOrderConfig(cfg.Order, money, journal, m)
	if err != nil {
		return errors.Wrap(err, "order config")
	}
	metrics, err := storefront.NewMetrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}
	sessions := storefront.NewRegistry(storefront.Config{
		Order:            orderCfg,
		SearchDebounce:   cfg.Session.SearchDebounce,
		NoticeTTL:        cfg.Session.NoticeTTL,
		CarouselFrames:   cfg.Carousel.Frames,
		CarouselInterval: cfg.Carousel.Interval,
		ReducedMotion:    cfg.Carousel.ReducedMotion,
		IdleTTL:          cfg.Session.IdleTTL,
	}, cat, slots, metrics, lg.Named("session"))

	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("catalog", time.Second, productsLoaded(cat), health.StartUnhealthy(), health.WithThresholds(1, 1))
	healthSvc.AddReadinessCheck("slots", 5*time.Second, health.PingCheck(slots))
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	healthSvc.Start(ctx, cfg.Health.Interval)
	healthSvc.SetReady(true)

	promReg, err := newPrometheusRegistry(cat, sessions)
	if err != nil {
		return errors.Wrap(err, "prometheus registry")
	}

	h := handler.NewHandler(handler.HandlerConfig{
		ImageBaseURL: cfg.ImageBaseURL,
		Money:        money,
		OrderLimit:   limiter.Middleware(),
	}, cat, sessions)

	router := h.Router()
	router.Get("/livez", healthSvc.LiveEndpoint)
	router.Get("/readyz", healthSvc.ReadyEndpoint)
	router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("storefront", m.MeterProvider(), m.TracerProvider(), m.TextMapPropagator()),
			httpmiddleware.LogRequests(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
		),
	}

	// Background workers stop with ctx.
	workers, workersCtx := errgroup.WithContext(ctx)
	workers.Go(func() error {
		loader.Run(workersCtx, cfg.Catalog.RefreshInterval)
		return nil
	})
	workers.Go(func() error {
		sessions.Run(workersCtx)
		return nil
	})
	workers.Go(func() error {
		limiter.Run(workersCtx)
		return nil
	})

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return workers.Wait()
}

// openStorage returns the configured slot store and, for postgres, the
// order journal. The journal is nil for the other drivers.
func openStorage(ctx context.Context, cfg StorageConfig) (storage.Slots, order.Journal, func(), error) {
	switch cfg.Driver {
	case "file":
		s, err := file.New(cfg.Dir)
		return s, nil, func() {}, err
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, errors.Wrap(err, "run migrations")
		}
		return postgres.NewSlots(pool), postgres.NewOrderJournal(pool), pool.Close, nil
	default:
		return memory.New(), nil, func() {}, nil
	}
}

func newLoader(cfg CatalogConfig, cat *catalog.Catalog, lg *zap.Logger, m Telemetry) (*catalog.Loader, error) {
	products, err := catalog.DocumentURL(cfg.ProductsURL)
	if err != nil {
		return nil, err
	}
	neighborhoods, err := catalog.DocumentURL(cfg.NeighborhoodsURL)
	if err != nil {
		return nil, err
	}
	return catalog.NewLoader(catalog.LoaderConfig{
		ProductsURL:      products,
		NeighborhoodsURL: neighborhoods,
		Timeout:          cfg.Timeout,
		MeterProvider:    m.MeterProvider(),
		TracerProvider:   m.TracerProvider(),
	}, cat, lg)
}

func newOrderConfig(cfg OrderConfig, money *format.Money, journal order.Journal, m Telemetry) (order.Config, error) {
	var layout string
	if cfg.Template != "" {
		data, err := os.ReadFile(cfg.Template)
		if err != nil {
			return order.Config{}, errors.Wrap(err, "read order template")
		}
		layout = string(data)
	}
	renderer, err := order.NewRenderer(layout, money)
	if err != nil {
		return order.Config{}, err
	}

	oc := order.Config{
		ChannelURL:            order.ChannelURL(cfg.ChannelURL, cfg.Phone),
		ClearOnChannelFailure: cfg.ClearOnChannelFailure,
		Renderer:              renderer,
		Journal:               journal,
	}
	if cfg.Channel == "webhook" {
		oc.Channel = order.NewWebhookChannel(cfg.WebhookURL, &http.Client{
			Timeout: 10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport,
				otelhttp.WithMeterProvider(m.MeterProvider()),
				otelhttp.WithTracerProvider(m.TracerProvider()),
			),
		})
	}
	return oc, nil
}

func productsLoaded(cat *catalog.Catalog) health.CheckFunc {
	return func(context.Context) error {
		st := cat.Status(catalog.DocProducts)
		if st.Loaded {
			return nil
		}
		if st.Err != nil {
			return errors.Wrap(st.Err, "products not loaded")
		}
		return errors.New("products not loaded")
	}
}

func newPrometheusRegistry(cat *catalog.Catalog, sessions *storefront.Registry) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "catalog",
			Name:      "products",
			Help:      "Products in the current catalog.",
		}, func() float64 { return float64(len(cat.Products())) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "catalog",
			Name:      "neighborhoods",
			Help:      "Delivery neighborhoods in the current catalog.",
		}, func() float64 { return float64(len(cat.Neighborhoods())) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "storefront",
			Name:      "sessions",
			Help:      "Sessions held in memory.",
		}, func() float64 { return float64(sessions.Len()) }),
	} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "register collector")
		}
	}
	return reg, nil
}
