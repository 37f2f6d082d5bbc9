package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long completed records are replayed.
const DefaultTTL = 24 * time.Hour

// Status is the lifecycle state of a record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState is the outcome of Reserve.
type ReservationState int

const (
	// ReservationStateNew means the caller owns the key and should run the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted means a stored response should be replayed.
	ReservationStateCompleted
	// ReservationStatePending means another request holds the key.
	ReservationStatePending
)

// Reservation pairs a state with the record it was derived from.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is a persisted key with its captured response.
type Record struct {
	Key             string
	Fingerprint     string
	Status          Status
	ResponseStatus  int
	ResponseHeaders map[string][]string
	ResponseBody    []byte
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ExpiresAt       time.Time
}

// Response is the captured HTTP response stored for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store persists reservations and responses. Implementations must return
// ErrFingerprintMismatch when a live key is reused for a different request.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// ErrFingerprintMismatch reports key reuse with a different request.
var ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")

func recordID(key string) string {
	return sha256Hex([]byte(strings.TrimSpace(key)))
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func pendingRecord(key, fingerprint string, now time.Time, ttl time.Duration) Record {
	return Record{
		Key:         key,
		Fingerprint: fingerprint,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func expired(record Record, now time.Time) bool {
	return !record.ExpiresAt.IsZero() && !now.Before(record.ExpiresAt)
}

func reservationFor(record Record) Reservation {
	if record.Status == StatusCompleted {
		return Reservation{State: ReservationStateCompleted, Record: record}
	}
	return Reservation{State: ReservationStatePending, Record: record}
}

// storableHeaders drops hop-by-hop and per-response headers.
func storableHeaders(header http.Header) map[string][]string {
	out := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		switch canonical {
		case "Content-Length", "Date", "Connection", "Keep-Alive", "Te", "Trailer", "Transfer-Encoding", "Upgrade", "Set-Cookie":
			continue
		}
		out[canonical] = append([]string(nil), values...)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
