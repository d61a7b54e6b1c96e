// Command catalog-check fetches the products and neighborhoods documents the
// way the server does and reports what a visitor would see.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/catalog"
)

func main() {
	var (
		productsURL      string
		neighborhoodsURL string
		timeout          time.Duration
		verbose          bool
	)

	flag.StringVar(&productsURL, "products-url", "data/produtos.json", "products document URL or path")
	flag.StringVar(&neighborhoodsURL, "neighborhoods-url", "data/bairros.json", "neighborhoods document URL or path")
	flag.DurationVar(&timeout, "timeout", 10*time.Second, "timeout of a single document fetch")
	flag.BoolVar(&verbose, "v", false, "list every entry")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, productsURL, neighborhoodsURL, timeout, verbose); err != nil {
		lg.Error("Catalog check failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, lg *zap.Logger, productsURL, neighborhoodsURL string, timeout time.Duration, verbose bool) error {
	products, err := catalog.DocumentURL(productsURL)
	if err != nil {
		return err
	}
	neighborhoods, err := catalog.DocumentURL(neighborhoodsURL)
	if err != nil {
		return err
	}

	cat := catalog.New()
	loader, err := catalog.NewLoader(catalog.LoaderConfig{
		ProductsURL:      products,
		NeighborhoodsURL: neighborhoods,
		Timeout:          timeout,
	}, cat, lg.Named("catalog"))
	if err != nil {
		return errors.Wrap(err, "create loader")
	}

	res := loader.Load(ctx)
	if err := multierr.Combine(res.Products, res.Neighborhoods); err != nil {
		return err
	}

	if verbose {
		for _, p := range cat.Products() {
			lg.Info("Product",
				zap.String("name", p.Name),
				zap.String("category", p.Category),
				zap.String("price", p.Price.StringFixed(2)),
			)
		}
		for _, n := range cat.Neighborhoods() {
			lg.Info("Neighborhood",
				zap.String("name", n.Name),
				zap.String("fee", n.DeliveryFee.StringFixed(2)),
			)
		}
	}

	if len(cat.Products()) == 0 {
		return errors.New("no valid products")
	}
	lg.Info("Catalog OK",
		zap.Int("products", len(cat.Products())),
		zap.Int("neighborhoods", len(cat.Neighborhoods())),
	)
	return nil
}
