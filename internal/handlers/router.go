package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tavola-kitchen/api/internal/platform/httpx"
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

type routerConfig struct {
	basePath    string
	timeout     time.Duration
	middlewares []func(http.Handler) http.Handler
	health      *HealthHandlers

	apiMiddlewares      []func(http.Handler) http.Handler
	mutationMiddlewares []func(http.Handler) http.Handler
	checkoutMiddlewares []func(http.Handler) http.Handler

	cart     RouteRegistrar
	catalog  RouteRegistrar
	checkout RouteRegistrar
}

// Option customises the router configuration before construction.
type Option func(*routerConfig)

const (
	defaultAPIPrefix  = "/api/v1"
	defaultTimeout    = 60 * time.Second
	errorNotFoundCode = "route_not_found"
)

// NewRouter constructs the chi router with shared middleware and the API route groups.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		basePath: defaultAPIPrefix,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	r := chi.NewRouter()
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r.Use(middleware.RequestID, middleware.RealIP)
	for _, mw := range cfg.middlewares {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.Use(middleware.Timeout(cfg.timeout))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError(errorNotFoundCode, fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	r.Route(cfg.basePath, func(api chi.Router) {
		for _, mw := range cfg.apiMiddlewares {
			if mw != nil {
				api.Use(mw)
			}
		}

		mount := func(path, name string, registrar RouteRegistrar, groupMW []func(http.Handler) http.Handler) {
			api.Route(path, func(group chi.Router) {
				for _, mw := range groupMW {
					if mw != nil {
						group.Use(mw)
					}
				}
				if registrar != nil {
					registrar(group)
					return
				}
				registerNotImplemented(group, name)
			})
		}

		mount("/catalog", "catalog", cfg.catalog, nil)
		mount("/cart", "cart", cfg.cart, cfg.mutationMiddlewares)
		mount("/checkout", "checkout", cfg.checkout, cfg.checkoutMiddlewares)
	})

	return r
}

// WithMiddlewares appends global middleware, applied after request id and real ip.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.middlewares = append(cfg.middlewares, mw...)
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(cfg *routerConfig) {
		if timeout > 0 {
			cfg.timeout = timeout
		}
	}
}

// WithAPIMiddlewares appends middleware applied to every route under the API prefix.
func WithAPIMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.apiMiddlewares = append(cfg.apiMiddlewares, mw...)
	}
}

// WithCartMiddlewares appends middleware applied to the /cart group.
func WithCartMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.mutationMiddlewares = append(cfg.mutationMiddlewares, mw...)
	}
}

// WithCheckoutMiddlewares appends middleware applied to the /checkout group.
func WithCheckoutMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) {
		cfg.checkoutMiddlewares = append(cfg.checkoutMiddlewares, mw...)
	}
}

// WithHealthHandlers overrides the handlers used for /healthz and /readyz endpoints.
func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) {
		cfg.health = h
	}
}

// WithCartRoutes configures the registrar responsible for cart endpoints.
func WithCartRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.cart = reg
	}
}

// WithCatalogRoutes configures the registrar responsible for catalog endpoints.
func WithCatalogRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.catalog = reg
	}
}

// WithCheckoutRoutes configures the registrar responsible for checkout endpoints.
func WithCheckoutRoutes(reg RouteRegistrar) Option {
	return func(cfg *routerConfig) {
		cfg.checkout = reg
	}
}

func registerNotImplemented(r chi.Router, name string) {
	handler := func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s routes not implemented", name), http.StatusNotImplemented))
	}
	r.HandleFunc("/*", handler)
	r.HandleFunc("/", handler)
}
