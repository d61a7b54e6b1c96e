package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	ImageBaseURL string `default:"" usage:"Prefix for img/ and img/mini/ product image paths" flag:"image-base-url"`
	Catalog      CatalogConfig
	Storage      StorageConfig
	Order        OrderConfig
	Session      SessionConfig
	Carousel     CarouselConfig
	Currency     CurrencyConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Health       HealthConfig
	Graceful     GracefulConfig
}

// CatalogConfig locates the catalog documents. A plain path is read from
// disk; http(s) and file URLs are fetched.
type CatalogConfig struct {
	ProductsURL      string        `default:"data/produtos.json" usage:"Products document URL or path" flag:"products-url"`
	NeighborhoodsURL string        `default:"data/bairros.json" usage:"Neighborhoods document URL or path" flag:"neighborhoods-url"`
	RefreshInterval  time.Duration `default:"0s" usage:"Catalog reload interval, 0 loads once" flag:"catalog-refresh"`
	Timeout          time.Duration `default:"10s" usage:"Timeout of a single document fetch" flag:"catalog-timeout"`
}

// StorageConfig selects the slot store backend.
type StorageConfig struct {
	Driver      string `default:"memory" usage:"Slot store: memory, file or postgres"`
	Dir         string `default:"var/slots" usage:"Directory of the file slot store"`
	DatabaseURL string `usage:"PostgreSQL connection URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// OrderConfig controls the order hand-off.
type OrderConfig struct {
	ChannelURL            string `default:"" usage:"Base of the order link, defaults to https://wa.me/<phone>" flag:"channel-url"`
	Phone                 string `default:"5522997407901" usage:"WhatsApp number receiving orders"`
	Channel               string `default:"link" usage:"Order channel: link or webhook"`
	WebhookURL            string `default:"" usage:"Relay receiving orders when channel is webhook" flag:"webhook-url"`
	ClearOnChannelFailure bool   `default:"true" usage:"Clear the cart even when the channel fails" flag:"clear-on-channel-failure"`
	Template              string `default:"" usage:"Path to a text/template order message layout" flag:"order-template"`
}

// SessionConfig controls per-visitor state.
type SessionConfig struct {
	IdleTTL        time.Duration `default:"30m" usage:"Evict sessions unused for this long" flag:"session-idle-ttl"`
	SearchDebounce time.Duration `default:"200ms" usage:"Delay before a search is applied" flag:"search-debounce"`
	NoticeTTL      time.Duration `default:"2600ms" usage:"Lifetime of notifications" flag:"notice-ttl"`
}

// CarouselConfig configures the banner carousel.
type CarouselConfig struct {
	Frames        []string      `default:"img/banner1.jpg,img/banner2.jpg,img/banner3.jpg" usage:"Carousel frame images"`
	Interval      time.Duration `default:"5s" usage:"Carousel auto-advance interval" flag:"carousel-interval"`
	ReducedMotion bool          `default:"false" usage:"Disable carousel auto-advance for every visitor" flag:"reduced-motion"`
}

// CurrencyConfig selects money formatting.
type CurrencyConfig struct {
	Code   string `default:"BRL" usage:"ISO 4217 currency code"`
	Locale string `default:"pt-BR" usage:"BCP 47 locale for amounts"`
}

// RateLimitConfig controls the order submission rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Max order submissions per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow the session cookie cross-origin" flag:"cors-credentials"`
}

// HealthConfig controls the liveness and readiness checks.
type HealthConfig struct {
	Interval time.Duration `default:"5s" usage:"Interval between health check runs" flag:"health-interval"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, flags, YAML
// config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	ac.FileDecoders = map[string]aconfig.FileDecoder{
		".yaml": aconfigyaml.New(),
	}
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided PORT and DATABASE_URL onto
// the STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	if c.Catalog.ProductsURL == "" || c.Catalog.NeighborhoodsURL == "" {
		return errors.New("catalog products and neighborhoods URLs are required")
	}
	switch c.Storage.Driver {
	case "memory", "file":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return errors.New("postgres storage requires STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Order.Channel {
	case "link":
	case "webhook":
		if c.Order.WebhookURL == "" {
			return errors.New("webhook channel requires a webhook URL")
		}
	default:
		return errors.Errorf("unknown order channel %q", c.Order.Channel)
	}
	if c.Order.ChannelURL == "" && c.Order.Phone == "" {
		return errors.New("order channel URL or phone is required")
	}
	return nil
}
