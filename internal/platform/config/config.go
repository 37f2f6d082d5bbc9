package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile              = ".env"
	defaultPort                 = "8080"
	defaultReadTimeout          = 15 * time.Second
	defaultWriteTimeout         = 30 * time.Second
	defaultIdleTimeout          = 120 * time.Second
	defaultRequestTimeout       = 20 * time.Second
	defaultEnvironment          = "local"
	defaultCartStore            = CartStoreMemory
	defaultCartDataDir          = "data/carts"
	defaultSessionCacheSize     = 1024
	defaultNoteMaxLength        = 500
	defaultCurrency             = "USD"
	defaultSessionHeader        = "X-Session-ID"
	defaultSessionCookie        = "cart_session"
	defaultSessionCookieTTL     = 30 * 24 * time.Hour
	defaultCatalogSource        = CatalogSourceFile
	defaultCatalogFile          = "data/catalog.json"
	defaultIdempotencyHeader    = "Idempotency-Key"
	defaultIdempotencyTTL       = 24 * time.Hour
	defaultIdempotencyInterval  = time.Hour
	defaultIdempotencyBatchSize = 200
	defaultIdempotencyStore     = IdempotencyStoreMemory
)

// Cart snapshot store drivers.
const (
	CartStoreMemory    = "memory"
	CartStoreFile      = "file"
	CartStoreFirestore = "firestore"
)

// Catalog source drivers.
const (
	CatalogSourceFile      = "file"
	CatalogSourceGCS       = "gcs"
	CatalogSourceFirestore = "firestore"
)

// Idempotency record store drivers.
const (
	IdempotencyStoreMemory    = "memory"
	IdempotencyStoreFirestore = "firestore"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server      ServerConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	Cart        CartConfig
	Catalog     CatalogConfig
	Checkout    CheckoutConfig
	Idempotency IdempotencyConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	RequestTimeout time.Duration
	Environment    string
	LogLevel       string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig locates the catalog object when the catalog is read from Cloud Storage.
type StorageConfig struct {
	CatalogBucket string
	CatalogObject string
}

// CartConfig controls snapshot persistence and session handling.
type CartConfig struct {
	Store            string
	DataDir          string
	SessionCacheSize int
	NoteMaxLength    int
	Currency         string
	SessionHeader    string
	SessionCookie    string
	SessionCookieTTL time.Duration
}

// CatalogConfig selects where menu products are read from.
type CatalogConfig struct {
	Source   string
	FilePath string
}

// CheckoutConfig holds the fee schedule and the order hand-off topic.
type CheckoutConfig struct {
	DeliveryFee           float64
	FreeDeliveryThreshold float64
	MinimumDeliveryOrder  float64
	ServiceFeePercent     float64
	PaymentSurcharges     map[string]float64
	PubSubProjectID       string
	OrderTopic            string
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header           string
	TTL              time.Duration
	CleanupInterval  time.Duration
	CleanupBatchSize int
	Store            string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// Load assembles the application configuration by combining defaults, .env overrides and
// environment variables.
func Load(_ context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	var invalid []string
	number := func(key string, fallback float64) float64 {
		value, ok, err := floatWithDefault(lookup, key, fallback)
		if err != nil || (ok && value < 0) {
			invalid = append(invalid, key)
		}
		return value
	}

	cfg := Config{
		Server: ServerConfig{
			Port:           stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:    durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			RequestTimeout: durationWithDefault(lookup, "API_SERVER_REQUEST_TIMEOUT", defaultRequestTimeout),
			Environment:    strings.ToLower(stringWithDefault(lookup, "API_ENVIRONMENT", defaultEnvironment)),
			LogLevel:       stringWithDefault(lookup, "API_LOG_LEVEL", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Storage: StorageConfig{
			CatalogBucket: stringWithDefault(lookup, "API_STORAGE_CATALOG_BUCKET", ""),
			CatalogObject: stringWithDefault(lookup, "API_STORAGE_CATALOG_OBJECT", ""),
		},
		Cart: CartConfig{
			Store:            strings.ToLower(stringWithDefault(lookup, "API_CART_STORE", defaultCartStore)),
			DataDir:          stringWithDefault(lookup, "API_CART_DATA_DIR", defaultCartDataDir),
			SessionCacheSize: intWithDefault(lookup, "API_CART_SESSION_CACHE_SIZE", defaultSessionCacheSize),
			NoteMaxLength:    intWithDefault(lookup, "API_CART_NOTE_MAX_LENGTH", defaultNoteMaxLength),
			Currency:         strings.ToUpper(stringWithDefault(lookup, "API_CART_CURRENCY", defaultCurrency)),
			SessionHeader:    stringWithDefault(lookup, "API_CART_SESSION_HEADER", defaultSessionHeader),
			SessionCookie:    stringWithDefault(lookup, "API_CART_SESSION_COOKIE", defaultSessionCookie),
			SessionCookieTTL: durationWithDefault(lookup, "API_CART_SESSION_COOKIE_TTL", defaultSessionCookieTTL),
		},
		Catalog: CatalogConfig{
			Source:   strings.ToLower(stringWithDefault(lookup, "API_CATALOG_SOURCE", defaultCatalogSource)),
			FilePath: stringWithDefault(lookup, "API_CATALOG_FILE", defaultCatalogFile),
		},
		Checkout: CheckoutConfig{
			DeliveryFee:           number("API_CHECKOUT_DELIVERY_FEE", 0),
			FreeDeliveryThreshold: number("API_CHECKOUT_FREE_DELIVERY_THRESHOLD", 0),
			MinimumDeliveryOrder:  number("API_CHECKOUT_MINIMUM_DELIVERY_ORDER", 0),
			ServiceFeePercent:     number("API_CHECKOUT_SERVICE_FEE_PERCENT", 0),
			PubSubProjectID:       stringWithDefault(lookup, "API_CHECKOUT_PUBSUB_PROJECT_ID", ""),
			OrderTopic:            stringWithDefault(lookup, "API_CHECKOUT_ORDER_TOPIC", ""),
		},
		Idempotency: IdempotencyConfig{
			Header:           stringWithDefault(lookup, "API_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:              durationWithDefault(lookup, "API_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			CleanupInterval:  durationWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_INTERVAL", defaultIdempotencyInterval),
			CleanupBatchSize: intWithDefault(lookup, "API_IDEMPOTENCY_CLEANUP_BATCH", defaultIdempotencyBatchSize),
			Store:            strings.ToLower(stringWithDefault(lookup, "API_IDEMPOTENCY_STORE", defaultIdempotencyStore)),
		},
	}

	surcharges, err := surchargesWithDefault(lookup, "API_CHECKOUT_PAYMENT_SURCHARGES")
	if err != nil {
		invalid = append(invalid, "API_CHECKOUT_PAYMENT_SURCHARGES")
	}
	cfg.Checkout.PaymentSurcharges = surcharges

	// Pub/Sub shares the Firestore project unless configured separately.
	if cfg.Checkout.PubSubProjectID == "" {
		cfg.Checkout.PubSubProjectID = cfg.Firestore.ProjectID
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	needsFirestore := false

	switch cfg.Cart.Store {
	case CartStoreMemory:
	case CartStoreFile:
		if strings.TrimSpace(cfg.Cart.DataDir) == "" {
			missing = append(missing, "Cart.DataDir")
		}
	case CartStoreFirestore:
		needsFirestore = true
	default:
		missing = append(missing, "Cart.Store")
	}
	if cfg.Cart.SessionCacheSize <= 0 {
		missing = append(missing, "Cart.SessionCacheSize")
	}
	if cfg.Cart.NoteMaxLength < 0 {
		missing = append(missing, "Cart.NoteMaxLength")
	}
	if strings.TrimSpace(cfg.Cart.SessionHeader) == "" {
		missing = append(missing, "Cart.SessionHeader")
	}
	if strings.TrimSpace(cfg.Cart.SessionCookie) == "" {
		missing = append(missing, "Cart.SessionCookie")
	}

	switch cfg.Catalog.Source {
	case CatalogSourceFile:
		if strings.TrimSpace(cfg.Catalog.FilePath) == "" {
			missing = append(missing, "Catalog.FilePath")
		}
	case CatalogSourceGCS:
		if cfg.Storage.CatalogBucket == "" {
			missing = append(missing, "Storage.CatalogBucket")
		}
		if cfg.Storage.CatalogObject == "" {
			missing = append(missing, "Storage.CatalogObject")
		}
	case CatalogSourceFirestore:
		needsFirestore = true
	default:
		missing = append(missing, "Catalog.Source")
	}

	switch cfg.Idempotency.Store {
	case IdempotencyStoreMemory:
	case IdempotencyStoreFirestore:
		needsFirestore = true
	default:
		missing = append(missing, "Idempotency.Store")
	}

	if needsFirestore && cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Checkout.OrderTopic == "" {
		missing = append(missing, "Checkout.OrderTopic")
	}
	if cfg.Checkout.PubSubProjectID == "" {
		missing = append(missing, "Checkout.PubSubProjectID")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	if cfg.Idempotency.CleanupInterval <= 0 {
		missing = append(missing, "Idempotency.CleanupInterval")
	}
	if cfg.Idempotency.CleanupBatchSize <= 0 {
		missing = append(missing, "Idempotency.CleanupBatchSize")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	if _, err := os.Stat(absPath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	values, err := godotenv.Read(absPath)
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func floatWithDefault(lookup func(string) (string, bool), key string, fallback float64) (float64, bool, error) {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback, false, nil
	}
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback, true, err
	}
	return parsed, true, nil
}

// surchargesWithDefault parses "card=2.5,wallet=1" into method → percentage.
func surchargesWithDefault(lookup func(string) (string, bool), key string) (map[string]float64, error) {
	values := make(map[string]float64)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values, nil
	}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			return values, fmt.Errorf("config: malformed surcharge %q", entry)
		}
		method := strings.ToLower(strings.TrimSpace(parts[0]))
		pct, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if method == "" || err != nil || pct < 0 {
			return values, fmt.Errorf("config: malformed surcharge %q", entry)
		}
		values[method] = pct
	}
	return values, nil
}
