package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tavola-kitchen/api/internal/repositories"
)

const (
	cartInstrumentation     = "github.com/tavola-kitchen/api/internal/services/cart"
	defaultSessionCacheSize = 1024
)

var (
	errCartStoreRequired   = errors.New("cart service: snapshot store is required")
	errCartCatalogRequired = errors.New("cart service: catalog is required")

	sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)
)

// ErrCartInvalidInput indicates the caller supplied invalid input.
var ErrCartInvalidInput = errors.New("cart service: invalid input")

// ErrCartUnavailable indicates the cart cannot be loaded because the snapshot backend failed.
var ErrCartUnavailable = errors.New("cart service: unavailable")

// ErrCartNotFound indicates a referenced product does not exist.
var ErrCartNotFound = errors.New("cart service: not found")

// NoteSanitizer cleans free-text notes before they reach the cart.
type NoteSanitizer interface {
	Sanitize(text string) (string, error)
}

// CartServiceDeps wires the persistence, catalog and telemetry dependencies for cart operations.
type CartServiceDeps struct {
	Store            repositories.SnapshotStore
	Catalog          CatalogService
	Sanitizer        NoteSanitizer
	SessionCacheSize int
	// SharedStore reports that other processes write to Store. Every call then restores the
	// cart from its snapshot instead of trusting the cached engine.
	SharedStore bool
	Logger      func(context.Context, string, map[string]any)
	IDGenerator func() string
	Meter       metric.Meter
	Tracer      trace.Tracer
}

type cartSession struct {
	mu     sync.Mutex
	engine *CartEngine
	// refs counts calls holding the session; guarded by cartService.sessionsMu.
	refs int
}

type cartService struct {
	store     repositories.SnapshotStore
	catalog   CatalogService
	sanitizer NoteSanitizer
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	tracer    trace.Tracer
	shared    bool

	mutations   metric.Int64Counter
	mutationsOn bool
	cartTotal   metric.Float64Histogram
	cartTotalOn bool
	sessionsMu  sync.Mutex
	sessions    *lru.Cache[string, *cartSession]
	active      map[string]*cartSession
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Store == nil {
		return nil, errCartStoreRequired
	}
	if deps.Catalog == nil {
		return nil, errCartCatalogRequired
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	sanitizer := deps.Sanitizer
	if sanitizer == nil {
		sanitizer = trimSanitizer{}
	}
	size := deps.SessionCacheSize
	if size <= 0 {
		size = defaultSessionCacheSize
	}
	sessions, err := lru.New[string, *cartSession](size)
	if err != nil {
		return nil, fmt.Errorf("cart service: session cache: %w", err)
	}

	meter := deps.Meter
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(cartInstrumentation)
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(cartInstrumentation)
	}

	mutations, mutationsErr := meter.Int64Counter(
		"cart.mutations",
		metric.WithDescription("Count of applied cart mutations"),
	)
	if mutationsErr != nil {
		logger(context.Background(), "cart.metric_unavailable", map[string]any{"metric": "cart.mutations", "error": mutationsErr.Error()})
	}
	cartTotal, totalErr := meter.Float64Histogram(
		"cart.total",
		metric.WithDescription("Payable cart total after a mutation"),
	)
	if totalErr != nil {
		logger(context.Background(), "cart.metric_unavailable", map[string]any{"metric": "cart.total", "error": totalErr.Error()})
	}

	return &cartService{
		store:       deps.Store,
		catalog:     deps.Catalog,
		sanitizer:   sanitizer,
		newID:       idGen,
		logger:      logger,
		tracer:      tracer,
		shared:      deps.SharedStore,
		mutations:   mutations,
		mutationsOn: mutationsErr == nil,
		cartTotal:   cartTotal,
		cartTotalOn: totalErr == nil,
		sessions:    sessions,
		active:      make(map[string]*cartSession),
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, sessionID string) (Cart, error) {
	return s.withSession(ctx, sessionID, "get", func(engine *CartEngine) (Cart, error) {
		return engine.Cart(), nil
	})
}

func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (AddCartItemResult, error) {
	if cmd.Quantity < 1 {
		return AddCartItemResult{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return AddCartItemResult{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	note, err := s.sanitizeNote(cmd.Note)
	if err != nil {
		return AddCartItemResult{}, err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return AddCartItemResult{}, translateCatalogError(err)
	}
	if err := s.catalog.ValidateSelection(product, cmd.Selection); err != nil {
		return AddCartItemResult{}, translateCatalogError(err)
	}

	var item LineItem
	cart, err := s.withSession(ctx, cmd.SessionID, "add", func(engine *CartEngine) (Cart, error) {
		var cart Cart
		item, cart = engine.Add(ctx, product, cmd.Selection, cmd.Quantity, note)
		return cart, nil
	})
	if err != nil {
		return AddCartItemResult{}, err
	}
	return AddCartItemResult{Item: item, Cart: cart}, nil
}

func (s *cartService) UpdateItem(ctx context.Context, cmd UpdateCartItemCommand) (Cart, error) {
	patch := LineItemPatch{Quantity: cmd.Quantity, Selection: cmd.Selection}
	if patch.Quantity == nil && patch.Selection == nil && cmd.Note == nil {
		return Cart{}, fmt.Errorf("%w: nothing to update", ErrCartInvalidInput)
	}
	if patch.Quantity != nil && *patch.Quantity < 1 {
		return Cart{}, fmt.Errorf("%w: quantity must be positive", ErrCartInvalidInput)
	}
	if cmd.Note != nil {
		note, err := s.sanitizeNote(*cmd.Note)
		if err != nil {
			return Cart{}, err
		}
		patch.Note = &note
	}

	return s.withSession(ctx, cmd.SessionID, "update", func(engine *CartEngine) (Cart, error) {
		current := engine.Cart()
		idx := current.FindItem(cmd.ItemID)
		if idx < 0 {
			return current, nil
		}
		if patch.Selection != nil {
			if err := s.catalog.ValidateSelection(current.Items[idx].Product, *patch.Selection); err != nil {
				return Cart{}, translateCatalogError(err)
			}
		}
		return engine.Update(ctx, cmd.ItemID, patch), nil
	})
}

func (s *cartService) RemoveItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	return s.withSession(ctx, cmd.SessionID, "remove", func(engine *CartEngine) (Cart, error) {
		return engine.Remove(ctx, cmd.ItemID), nil
	})
}

func (s *cartService) IncrementItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	return s.withSession(ctx, cmd.SessionID, "increment", func(engine *CartEngine) (Cart, error) {
		return engine.Increment(ctx, cmd.ItemID), nil
	})
}

func (s *cartService) DecrementItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	return s.withSession(ctx, cmd.SessionID, "decrement", func(engine *CartEngine) (Cart, error) {
		return engine.Decrement(ctx, cmd.ItemID), nil
	})
}

func (s *cartService) UpdateItemNote(ctx context.Context, cmd CartItemNoteCommand) (Cart, error) {
	note, err := s.sanitizeNote(cmd.Note)
	if err != nil {
		return Cart{}, err
	}
	return s.withSession(ctx, cmd.SessionID, "note", func(engine *CartEngine) (Cart, error) {
		return engine.UpdateNote(ctx, cmd.ItemID, note), nil
	})
}

func (s *cartService) ClearCart(ctx context.Context, sessionID string) (Cart, error) {
	return s.withSession(ctx, sessionID, "clear", func(engine *CartEngine) (Cart, error) {
		return engine.Clear(ctx), nil
	})
}

// RemoveOrderedItems takes the lines of a submitted order out of the cart, keeping lines
// added after the order was built.
func (s *cartService) RemoveOrderedItems(ctx context.Context, sessionID string, ordered []LineItem) (Cart, error) {
	return s.withSession(ctx, sessionID, "checkout", func(engine *CartEngine) (Cart, error) {
		return engine.RemoveOrdered(ctx, ordered), nil
	})
}

// withSession runs fn while holding the session lock, creating the engine from the stored
// snapshot when the session is not cached or the store is shared.
func (s *cartService) withSession(ctx context.Context, sessionID, op string, fn func(*CartEngine) (Cart, error)) (Cart, error) {
	sid := strings.TrimSpace(sessionID)
	if !sessionIDPattern.MatchString(sid) {
		return Cart{}, fmt.Errorf("%w: invalid session id", ErrCartInvalidInput)
	}

	ctx, span := s.tracer.Start(ctx, "cart."+op, trace.WithAttributes(attribute.String("cart.operation", op)))
	defer span.End()

	session := s.acquire(sid)
	defer s.release(sid, session)
	session.mu.Lock()
	defer session.mu.Unlock()

	if session.engine == nil || s.shared {
		engine, err := s.newEngine(ctx, sid)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "cart load failed")
			s.logger(ctx, "cart.load_failed", map[string]any{"sessionID": sid, "error": err.Error()})
			return Cart{}, err
		}
		session.engine = engine
	}

	cart, err := fn(session.engine)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op+" rejected")
		return Cart{}, err
	}
	span.SetAttributes(
		attribute.Int("cart.item_count", cart.ItemCount),
		attribute.Int("cart.lines", len(cart.Items)),
	)
	if op != "get" {
		s.record(ctx, op, cart)
	}
	return cart, nil
}

// acquire pins the session while a call uses it. A pinned session evicted from the cache
// stays reachable through active, so one process never runs two engines for a session.
func (s *cartService) acquire(sessionID string) *cartSession {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	session, ok := s.active[sessionID]
	if !ok {
		if cached, hit := s.sessions.Get(sessionID); hit {
			session = cached
		} else {
			session = &cartSession{}
		}
		s.active[sessionID] = session
	}
	session.refs++
	s.sessions.Add(sessionID, session)
	return session
}

func (s *cartService) release(sessionID string, session *cartSession) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	session.refs--
	if session.refs <= 0 {
		delete(s.active, sessionID)
	}
}

func (s *cartService) newEngine(ctx context.Context, sessionID string) (*CartEngine, error) {
	gateway, err := NewSnapshotGateway(s.store, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCartUnavailable, err)
	}
	logger := func(ctx context.Context, event string, fields map[string]any) {
		if fields == nil {
			fields = map[string]any{}
		}
		fields["sessionID"] = sessionID
		s.logger(ctx, event, fields)
	}
	return NewCartEngine(ctx, CartEngineDeps{Gateway: gateway, IDGenerator: s.newID, Logger: logger})
}

func (s *cartService) record(ctx context.Context, op string, cart Cart) {
	attrs := metric.WithAttributes(attribute.String("operation", op))
	if s.mutationsOn {
		s.mutations.Add(ctx, 1, attrs)
	}
	if s.cartTotalOn {
		s.cartTotal.Record(ctx, cart.Total, attrs)
	}
}

func (s *cartService) sanitizeNote(note string) (string, error) {
	cleaned, err := s.sanitizer.Sanitize(note)
	if err != nil {
		return "", fmt.Errorf("%w: note: %v", ErrCartInvalidInput, err)
	}
	return cleaned, nil
}

func translateCatalogError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrCatalogProductNotFound):
		return fmt.Errorf("%w: %w", ErrCartNotFound, err)
	case errors.Is(err, ErrCatalogInvalidInput):
		return fmt.Errorf("%w: %w", ErrCartInvalidInput, err)
	case errors.Is(err, ErrCatalogUnavailable):
		return fmt.Errorf("%w: %w", ErrCartUnavailable, err)
	default:
		return err
	}
}

type trimSanitizer struct{}

func (trimSanitizer) Sanitize(text string) (string, error) {
	return strings.TrimSpace(text), nil
}
