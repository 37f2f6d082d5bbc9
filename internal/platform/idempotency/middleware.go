package idempotency

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tavola-kitchen/api/internal/platform/httpx"
	"github.com/tavola-kitchen/api/internal/platform/requestctx"
)

const (
	defaultHeaderName = "Idempotency-Key"
	replayHeaderName  = "X-Idempotent-Replay"
	anonymousScope    = "anonymous"
	maxKeyLength      = 255
)

type middlewareConfig struct {
	headerName  string
	ttl         time.Duration
	methods     map[string]struct{}
	clock       func() time.Time
	keyOptional bool
}

// MiddlewareOption customises Middleware.
type MiddlewareOption func(*middlewareConfig)

// WithHeader overrides the header carrying the key.
func WithHeader(name string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if name = strings.TrimSpace(name); name != "" {
			cfg.headerName = name
		}
	}
}

// WithTTL sets how long completed responses are replayed.
func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if ttl > 0 {
			cfg.ttl = ttl
		}
	}
}

// WithMethods restricts the guarded HTTP methods.
func WithMethods(methods ...string) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		set := make(map[string]struct{}, len(methods))
		for _, method := range methods {
			if method = strings.ToUpper(strings.TrimSpace(method)); method != "" {
				set[method] = struct{}{}
			}
		}
		if len(set) > 0 {
			cfg.methods = set
		}
	}
}

// WithKeyOptional passes requests without a key straight through instead of rejecting them.
func WithKeyOptional() MiddlewareOption {
	return func(cfg *middlewareConfig) {
		cfg.keyOptional = true
	}
}

// WithClock overrides the time source.
func WithClock(clock func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if clock != nil {
			cfg.clock = clock
		}
	}
}

// Middleware replays the stored response when a key is reused for the same request. Keys
// are scoped to the cart session. Server errors are not stored so the caller can retry
// with the same key.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	cfg := middlewareConfig{
		headerName: defaultHeaderName,
		ttl:        DefaultTTL,
		methods: map[string]struct{}{
			http.MethodPost:   {},
			http.MethodPut:    {},
			http.MethodPatch:  {},
			http.MethodDelete: {},
		},
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := cfg.methods[r.Method]; !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			logger := requestctx.Logger(ctx)

			key := strings.TrimSpace(r.Header.Get(cfg.headerName))
			switch {
			case key == "" && cfg.keyOptional:
				next.ServeHTTP(w, r)
				return
			case key == "":
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing "+cfg.headerName+" header", http.StatusBadRequest))
				return
			case len(key) > maxKeyLength:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_invalid", "idempotency key is too long", http.StatusBadRequest))
				return
			}

			body, err := bufferBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unable to read request body", http.StatusBadRequest))
				return
			}

			scope := requesterScope(r)
			storeKey := key + "|" + scope
			fingerprint := requestFingerprint(r, body, scope)

			reservation, err := store.Reserve(ctx, storeKey, fingerprint, cfg.clock().UTC(), cfg.ttl)
			if err != nil {
				if errors.Is(err, ErrFingerprintMismatch) {
					httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
					return
				}
				logger.Error("idempotency reserve failed", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_unavailable", "unable to process idempotency key", http.StatusServiceUnavailable))
				return
			}
			switch reservation.State {
			case ReservationStateCompleted:
				replay(w, reservation.Record)
				return
			case ReservationStatePending:
				httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
				return
			}

			recorder := newBufferedWriter()
			next.ServeHTTP(recorder, r)

			if recorder.Status() >= http.StatusInternalServerError {
				if err := store.Release(ctx, storeKey, fingerprint); err != nil {
					logger.Warn("idempotency release failed", zap.Error(err))
				}
			} else {
				resp := Response{Status: recorder.Status(), Headers: recorder.header, Body: recorder.body.Bytes()}
				if err := store.SaveResponse(ctx, storeKey, fingerprint, resp, cfg.clock().UTC(), cfg.ttl); err != nil {
					logger.Error("idempotency save failed", zap.Error(err))
					if err := store.Release(ctx, storeKey, fingerprint); err != nil {
						logger.Warn("idempotency release failed", zap.Error(err))
					}
				}
			}
			if err := recorder.flushTo(w); err != nil {
				logger.Warn("idempotency flush failed", zap.Error(err))
			}
		})
	}
}

func requesterScope(r *http.Request) string {
	if sessionID, ok := requestctx.SessionID(r.Context()); ok {
		return sessionID
	}
	return anonymousScope
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func requestFingerprint(r *http.Request, body []byte, scope string) string {
	parts := []string{
		strings.ToUpper(r.Method),
		r.URL.Path,
		r.URL.RawQuery,
		r.Header.Get("Content-Type"),
		scope,
		sha256Hex(body),
	}
	return sha256Hex([]byte(strings.Join(parts, "|")))
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range record.ResponseHeaders {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set(replayHeaderName, "true")
	status := record.ResponseStatus
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(record.ResponseBody)
}

// bufferedWriter holds the downstream response until the record is persisted.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header)}
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(status int) {
	if b.status == 0 {
		b.status = status
	}
}

func (b *bufferedWriter) Write(data []byte) (int, error) {
	if b.status == 0 {
		b.status = http.StatusOK
	}
	return b.body.Write(data)
}

func (b *bufferedWriter) Status() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) error {
	for name, values := range b.header {
		w.Header()[name] = values
	}
	w.WriteHeader(b.Status())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(b.body.Bytes())
	return err
}
