package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/tavola-kitchen/api/internal/platform/config"
	"github.com/tavola-kitchen/api/internal/platform/idempotency"
	"github.com/tavola-kitchen/api/internal/platform/jobs"
	"github.com/tavola-kitchen/api/internal/platform/observability"
	"github.com/tavola-kitchen/api/internal/platform/textutil"
	"github.com/tavola-kitchen/api/internal/repositories"
	"github.com/tavola-kitchen/api/internal/services"
)

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Catalog  services.CatalogService
	Cart     services.CartService
	Checkout services.CheckoutService
	System   services.SystemService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Build        services.BuildInfo
	Repositories repositories.Registry
	Services     Services
	Idempotency  idempotency.Store

	closers []func(context.Context) error
}

// Option overrides a dependency otherwise built from configuration.
type Option func(*containerOptions)

type containerOptions struct {
	registry    repositories.Registry
	publisher   services.OrderPublisher
	idempotency idempotency.Store
	build       services.BuildInfo
	clock       func() time.Time
	idGenerator func() string
}

// WithRegistry supplies a prebuilt repository registry.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *containerOptions) { o.registry = reg }
}

// WithOrderPublisher supplies the publisher used on checkout submit.
func WithOrderPublisher(pub services.OrderPublisher) Option {
	return func(o *containerOptions) { o.publisher = pub }
}

// WithIdempotencyStore supplies the idempotency record store.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(o *containerOptions) { o.idempotency = store }
}

// WithBuildInfo sets the build metadata reported by health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) { o.build = info }
}

// WithClock overrides the clock used by services.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithIDGenerator overrides line item and order id generation.
func WithIDGenerator(gen func() string) Option {
	return func(o *containerOptions) { o.idGenerator = gen }
}

// pinger is implemented by publishers that can report readiness.
type pinger interface {
	Ping(ctx context.Context) error
}

// NewContainer constructs the runtime dependencies from cfg. Options replace individual
// backends, which tests use to avoid cloud clients.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.build.StartedAt.IsZero() {
		o.build.StartedAt = o.clock().UTC()
	}
	if o.build.Environment == "" {
		o.build.Environment = cfg.Server.Environment
	}

	c := &Container{Config: cfg, Build: o.build}
	b := &backends{cfg: cfg}

	idem := o.idempotency
	if idem == nil {
		store, err := newIdempotencyStore(cfg, b)
		if err != nil {
			_ = b.close(ctx)
			return nil, err
		}
		idem = store
	}
	c.Idempotency = idem

	publisher := o.publisher
	if publisher == nil {
		pub, closeFn, err := newOrderPublisher(ctx, cfg.Checkout)
		if err != nil {
			_ = b.close(ctx)
			return nil, err
		}
		publisher = pub
		c.closers = append(c.closers, closeFn)
	}

	reg := o.registry
	if reg == nil {
		var extra []repositories.DependencyCheck
		if p, ok := publisher.(pinger); ok {
			extra = append(extra, repositories.DependencyCheck{Name: "orders", Check: p.Ping})
		}
		built, err := newRegistry(ctx, b, extra...)
		if err != nil {
			_ = c.Close(ctx)
			_ = b.close(ctx)
			return nil, err
		}
		reg = built
	} else {
		c.closers = append(c.closers, b.close)
	}
	c.Repositories = reg

	svc, err := buildServices(cfg, reg, publisher, logger, o)
	if err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	c.Services = svc
	return c, nil
}

// Close releases resources such as repository clients and the order publisher.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	if c.Repositories != nil {
		if err := c.Repositories.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildServices(cfg config.Config, reg repositories.Registry, publisher services.OrderPublisher, logger *zap.Logger, o containerOptions) (Services, error) {
	var svc Services

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{
		Catalog: reg.Catalog(),
		Logger:  observability.EventLogger(logger.Named("catalog")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	cartSvc, err := services.NewCartService(services.CartServiceDeps{
		Store:            reg.Snapshots(),
		Catalog:          catalogSvc,
		Sanitizer:        textutil.NewNoteSanitizer(cfg.Cart.NoteMaxLength),
		SessionCacheSize: cfg.Cart.SessionCacheSize,
		SharedStore:      cfg.Cart.Store != config.CartStoreMemory,
		Logger:           observability.EventLogger(logger.Named("cart")),
		IDGenerator:      o.idGenerator,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cartSvc

	checkoutSvc, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:     cartSvc,
		Publisher: publisher,
		Fees: services.FeeSchedule{
			DeliveryFee:           cfg.Checkout.DeliveryFee,
			FreeDeliveryThreshold: cfg.Checkout.FreeDeliveryThreshold,
			MinimumDeliveryOrder:  cfg.Checkout.MinimumDeliveryOrder,
			ServiceFeePercent:     cfg.Checkout.ServiceFeePercent,
			PaymentSurcharges:     cfg.Checkout.PaymentSurcharges,
		},
		Currency:    cfg.Cart.Currency,
		Clock:       o.clock,
		IDGenerator: o.idGenerator,
		Logger:      observability.EventLogger(logger.Named("checkout")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkoutSvc

	if healthRepo := reg.Health(); healthRepo != nil {
		systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
			HealthRepository: healthRepo,
			Clock:            o.clock,
			Build:            o.build,
		})
		if err != nil {
			return Services{}, fmt.Errorf("build system service: %w", err)
		}
		svc.System = systemSvc
	}

	return svc, nil
}

func newIdempotencyStore(cfg config.Config, b *backends) (idempotency.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Idempotency.Store)) {
	case config.IdempotencyStoreFirestore:
		store, err := idempotency.NewFirestoreStore(b.firestoreProvider())
		if err != nil {
			return nil, fmt.Errorf("build idempotency store: %w", err)
		}
		return store, nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func newOrderPublisher(ctx context.Context, cfg config.CheckoutConfig) (services.OrderPublisher, func(context.Context) error, error) {
	client, err := pubsub.NewClient(ctx, cfg.PubSubProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("open pubsub client: %w", err)
	}
	publisher, err := jobs.NewPubSubOrderPublisher(client.Topic(cfg.OrderTopic))
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	closeFn := func(context.Context) error {
		publisher.Stop()
		return client.Close()
	}
	return publisher, closeFn, nil
}
