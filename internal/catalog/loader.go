package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxDocumentSize bounds the decoded size of a catalog document.
const maxDocumentSize = 8 << 20

// FetchError describes a failed document fetch or decode.
type FetchError struct {
	Document   Document
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s from %s: unexpected status %d", e.Document, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s from %s: %v", e.Document, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// LoaderConfig holds the document locations and transport settings.
type LoaderConfig struct {
	ProductsURL      string
	NeighborhoodsURL string
	// Timeout bounds a single document fetch. Zero means 10s.
	Timeout time.Duration
	// Client overrides the HTTP client. When nil, a client with file://
	// support and otel instrumentation is built.
	Client         *http.Client
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Result reports the outcome of each document of one Load call.
type Result struct {
	Products      error
	Neighborhoods error
}

// Loader fetches catalog documents and publishes them into a Catalog.
type Loader struct {
	cat              *Catalog
	client           *http.Client
	productsURL      string
	neighborhoodsURL string
	timeout          time.Duration
	lg               *zap.Logger
	tracer           trace.Tracer
	loads            metric.Int64Counter
	size             metric.Int64Gauge
}

// NewLoader creates a Loader that publishes into cat.
func NewLoader(cfg LoaderConfig, cat *Catalog, lg *zap.Logger) (*Loader, error) {
	if cfg.ProductsURL == "" || cfg.NeighborhoodsURL == "" {
		return nil, errors.New("products and neighborhoods URLs are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}
	if cfg.Client == nil {
		cfg.Client = newClient(cfg.MeterProvider, cfg.TracerProvider)
	}

	meter := cfg.MeterProvider.Meter("storefront/catalog")
	loads, err := meter.Int64Counter("storefront.catalog.loads",
		metric.WithDescription("Catalog document load attempts by outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create loads counter")
	}
	size, err := meter.Int64Gauge("storefront.catalog.size",
		metric.WithDescription("Entries in the most recently loaded catalog document"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create size gauge")
	}

	return &Loader{
		cat:              cat,
		client:           cfg.Client,
		productsURL:      cfg.ProductsURL,
		neighborhoodsURL: cfg.NeighborhoodsURL,
		timeout:          cfg.Timeout,
		lg:               lg,
		tracer:           cfg.TracerProvider.Tracer("storefront/catalog"),
		loads:            loads,
		size:             size,
	}, nil
}

// newClient builds an HTTP client that can also read file:// URLs.
func newClient(mp metric.MeterProvider, tp trace.TracerProvider) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	return &http.Client{
		Transport: otelhttp.NewTransport(t,
			otelhttp.WithMeterProvider(mp),
			otelhttp.WithTracerProvider(tp),
		),
	}
}

// Load fetches both documents concurrently. A failure of one document never
// affects the other; each failure is logged and recorded in the catalog
// status while the previous list stays in place.
func (l *Loader) Load(ctx context.Context) Result {
	var (
		g   errgroup.Group
		res Result
	)
	g.Go(func() error {
		res.Products = l.loadProducts(ctx)
		return nil
	})
	g.Go(func() error {
		res.Neighborhoods = l.loadNeighborhoods(ctx)
		return nil
	})
	_ = g.Wait()
	return res
}

// Run loads the catalog immediately and then every interval until ctx is
// cancelled. A zero interval loads once and returns.
func (l *Loader) Run(ctx context.Context, interval time.Duration) {
	l.Load(ctx)
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Load(ctx)
		}
	}
}

func (l *Loader) loadProducts(ctx context.Context) error {
	data, err := l.fetch(ctx, DocProducts, l.productsURL)
	if err != nil {
		return l.fail(ctx, DocProducts, err)
	}

	products, rejected, err := DecodeProducts(data)
	if err != nil {
		return l.fail(ctx, DocProducts, &FetchError{Document: DocProducts, URL: l.productsURL, Err: err})
	}
	if rejected > 0 {
		l.lg.Warn("Skipped invalid products", zap.Int("rejected", rejected))
	}

	l.cat.SetProducts(products)
	l.succeed(ctx, DocProducts, len(l.cat.Products()))
	return nil
}

func (l *Loader) loadNeighborhoods(ctx context.Context) error {
	data, err := l.fetch(ctx, DocNeighborhoods, l.neighborhoodsURL)
	if err != nil {
		return l.fail(ctx, DocNeighborhoods, err)
	}

	neighborhoods, rejected, err := DecodeNeighborhoods(data)
	if err != nil {
		return l.fail(ctx, DocNeighborhoods, &FetchError{Document: DocNeighborhoods, URL: l.neighborhoodsURL, Err: err})
	}
	if rejected > 0 {
		l.lg.Warn("Skipped invalid neighborhoods", zap.Int("rejected", rejected))
	}

	l.cat.SetNeighborhoods(neighborhoods)
	l.succeed(ctx, DocNeighborhoods, len(l.cat.Neighborhoods()))
	return nil
}

func (l *Loader) fail(ctx context.Context, doc Document, err error) error {
	l.cat.setError(doc, err)
	l.loads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("document", string(doc)),
		attribute.String("outcome", "error"),
	))
	l.lg.Error("Catalog load failed", zap.String("document", string(doc)), zap.Error(err))
	return err
}

func (l *Loader) succeed(ctx context.Context, doc Document, n int) {
	l.loads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("document", string(doc)),
		attribute.String("outcome", "ok"),
	))
	l.size.Record(ctx, int64(n), metric.WithAttributes(attribute.String("document", string(doc))))
	l.lg.Info("Catalog loaded", zap.String("document", string(doc)), zap.Int("entries", n))
}

// fetch downloads a document, bypassing HTTP caches. Gzip-compressed bodies
// are detected by their magic bytes and inflated.
func (l *Loader) fetch(ctx context.Context, doc Document, url string) (_ []byte, rerr error) {
	ctx, span := l.tracer.Start(ctx, "catalog.fetch",
		trace.WithAttributes(attribute.String("document", string(doc))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, "fetch failed")
		}
		span.End()
	}()

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: err}
	}
	req.Header.Set("Cache-Control", "no-cache, no-store")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Document: doc, URL: url, StatusCode: resp.StatusCode}
	}

	body, err := maybeGunzip(resp.Body)
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: err}
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(io.LimitReader(body, maxDocumentSize+1))
	if err != nil {
		return nil, &FetchError{Document: doc, URL: url, Err: errors.Wrap(err, "read body")}
	}
	if len(data) > maxDocumentSize {
		return nil, &FetchError{Document: doc, URL: url, Err: errors.Errorf("document exceeds %d bytes", maxDocumentSize)}
	}
	return data, nil
}

// maybeGunzip wraps r in a gzip reader when the stream starts with the gzip
// magic number. Closing the result stops the gzip read-ahead; it does not
// close r.
func maybeGunzip(r io.Reader) (io.ReadCloser, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "peek body")
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip stream")
		}
		return zr, nil
	}
	return io.NopCloser(br), nil
}

// DocumentURL turns a plain path into an absolute file:// URL. URLs with a
// scheme are returned unchanged.
func DocumentURL(s string) (string, error) {
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return s, nil
	}
	abs, err := filepath.Abs(s)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %q", s)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}
