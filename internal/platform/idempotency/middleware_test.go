package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tavola-kitchen/api/internal/platform/requestctx"
)

var fixedTime = time.Date(2025, time.April, 12, 19, 0, 0, 0, time.UTC)

func checkoutRequest(body, key, session string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout/submit", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	if session != "" {
		req = req.WithContext(requestctx.WithSessionID(req.Context(), session))
	}
	return req
}

func TestMiddleware_MissingHeader(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not run without a key")
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest(`{"fulfilment":"pickup"}`, "", "sess-1"))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_OptionalKeyPassesThrough(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	handler := Middleware(store, WithKeyOptional())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, checkoutRequest(`{}`, "", "sess-1"))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	}
	if calls != 2 || store.Len() != 0 {
		t.Fatalf("expected pass-through without records, calls=%d records=%d", calls, store.Len())
	}
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"orderId":"ord-1"}`))
		}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, checkoutRequest(`{"fulfilment":"pickup"}`, "key-1", "sess-1"))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, checkoutRequest(`{"fulfilment":"pickup"}`, "key-1", "sess-1"))

	if calls != 1 {
		t.Fatalf("expected one handler call, got %d", calls)
	}
	if rr2.Code != http.StatusCreated || rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("expected identical replay, got %d %s", rr2.Code, rr2.Body.String())
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatalf("expected replay header")
	}
	if rr2.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected stored content type, got %s", rr2.Header().Get("Content-Type"))
	}
}

func TestMiddleware_KeysAreScopedBySession(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "shared", "sess-a"))
	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{}`, "shared", "sess-b"))

	if calls != 2 {
		t.Fatalf("expected separate sessions not to share keys, got %d calls", calls)
	}
}

func TestMiddleware_ConflictingFingerprint(t *testing.T) {
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), checkoutRequest(`{"fulfilment":"pickup"}`, "same", "sess-1"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest(`{"fulfilment":"delivery"}`, "same", "sess-1"))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_PendingReservation(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not run while the key is pending")
		}))

	req := checkoutRequest(`{}`, "pending", "sess-1")
	fingerprint := requestFingerprint(req, []byte(`{}`), "sess-1")
	if _, err := store.Reserve(context.Background(), "pending|sess-1", fingerprint, fixedTime, time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorIsRetryable(t *testing.T) {
	status := http.StatusServiceUnavailable
	var calls int
	handler := Middleware(NewMemoryStore())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, checkoutRequest(`{}`, "retry", "sess-1"))
	status = http.StatusCreated
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, checkoutRequest(`{}`, "retry", "sess-1"))

	if rr1.Code != http.StatusServiceUnavailable || rr2.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry to reach handler, got %d/%d calls=%d", rr1.Code, rr2.Code, calls)
	}
}

func TestMiddleware_SaveFailureReleasesReservation(t *testing.T) {
	store := &stubStore{failSave: true}
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("ok"))
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, checkoutRequest(`{}`, "fail", "sess-1"))

	if rr.Code != http.StatusCreated || rr.Body.String() != "ok" {
		t.Fatalf("expected handler response to be delivered, got %d %q", rr.Code, rr.Body.String())
	}
	if !store.released {
		t.Fatalf("expected reservation to be released")
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if _, err := store.Reserve(ctx, "old", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if _, err := store.Reserve(ctx, "fresh", "fp", fixedTime, time.Hour); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	removed, err := store.CleanupExpired(ctx, fixedTime.Add(10*time.Minute), 10)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 || store.Len() != 1 {
		t.Fatalf("expected one expired record removed, removed=%d remaining=%d", removed, store.Len())
	}

	res, err := store.Reserve(ctx, "old", "other", fixedTime.Add(10*time.Minute), time.Hour)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expected expired key to be reusable, got %+v %v", res, err)
	}
}

type stubStore struct {
	failSave bool
	released bool
}

func (s *stubStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return nil
}

func (s *stubStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *stubStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertErrorResponse(t *testing.T, payload []byte, expected string) {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
}
