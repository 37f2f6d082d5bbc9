package idempotency

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/tavola-kitchen/api/internal/platform/firestore"
)

const (
	defaultCollection  = "idempotencyKeys"
	defaultMaxAttempts = 5
)

// FirestoreOption customises FirestoreStore.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts bounds transaction retries.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore keeps records in Firestore so replays survive restarts and span instances.
type FirestoreStore struct {
	provider    *pfirestore.Provider
	collection  string
	maxAttempts int
}

var _ Store = (*FirestoreStore)(nil)

// NewFirestoreStore constructs a store resolving its client from provider.
func NewFirestoreStore(provider *pfirestore.Provider, opts ...FirestoreOption) (*FirestoreStore, error) {
	if provider == nil {
		return nil, errors.New("idempotency: firestore provider is required")
	}
	store := &FirestoreStore{
		provider:    provider,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store, nil
}

func (s *FirestoreStore) doc(ctx context.Context, key string) (*firestore.Client, *firestore.DocumentRef, error) {
	client, err := s.provider.Client(ctx)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Collection(s.collection).Doc(recordID(key)), nil
}

// Reserve implements Store.
func (s *FirestoreStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client, ref, err := s.doc(ctx, key)
	if err != nil {
		return Reservation{}, err
	}

	var result Reservation
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err == nil {
			var existing firestoreRecord
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			record := existing.toRecord()
			if !expired(record, now) {
				if record.Fingerprint != fingerprint {
					return ErrFingerprintMismatch
				}
				result = reservationFor(record)
				return nil
			}
		}
		record := pendingRecord(key, fingerprint, now, ttl)
		result = Reservation{State: ReservationStateNew, Record: record}
		return tx.Set(ref, recordToFirestore(record))
	}, firestore.MaxAttempts(s.maxAttempts))
	if err != nil {
		return Reservation{}, pfirestore.WrapError("idempotency.reserve", err)
	}
	return result, nil
}

// SaveResponse implements Store.
func (s *FirestoreStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	client, ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}

	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		record := pendingRecord(key, fingerprint, now, ttl)
		snap, err := tx.Get(ref)
		switch {
		case err == nil:
			var existing firestoreRecord
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			if existing.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			record.CreatedAt = existing.CreatedAt
		case status.Code(err) != codes.NotFound:
			return err
		}
		record.Status = StatusCompleted
		record.ResponseStatus = resp.Status
		record.ResponseHeaders = storableHeaders(resp.Headers)
		record.ResponseBody = append([]byte(nil), resp.Body...)
		return tx.Set(ref, recordToFirestore(record))
	}, firestore.MaxAttempts(s.maxAttempts))
	if err != nil && !errors.Is(err, ErrFingerprintMismatch) {
		return pfirestore.WrapError("idempotency.save", err)
	}
	return err
}

// Release implements Store.
func (s *FirestoreStore) Release(ctx context.Context, key, _ string) error {
	_, ref, err := s.doc(ctx, key)
	if err != nil {
		return err
	}
	if _, err := ref.Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return pfirestore.WrapError("idempotency.release", err)
	}
	return nil
}

// CleanupExpired implements Store.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	client, err := s.provider.Client(ctx)
	if err != nil {
		return 0, err
	}
	docs, err := client.Collection(s.collection).
		Where("expiresAt", "<=", now.UTC()).
		Limit(limit).
		Documents(ctx).GetAll()
	if err != nil {
		return 0, pfirestore.WrapError("idempotency.cleanup", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	writer := client.BulkWriter(ctx)
	for _, doc := range docs {
		if _, err := writer.Delete(doc.Ref); err != nil {
			writer.End()
			return 0, pfirestore.WrapError("idempotency.cleanup", err)
		}
	}
	writer.End()
	return len(docs), nil
}

type firestoreRecord struct {
	Key             string              `firestore:"key"`
	Fingerprint     string              `firestore:"fingerprint"`
	Status          string              `firestore:"status"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders"`
	ResponseBody    []byte              `firestore:"responseBody"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func recordToFirestore(r Record) firestoreRecord {
	return firestoreRecord{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          string(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}

func (r firestoreRecord) toRecord() Record {
	return Record{
		Key:             r.Key,
		Fingerprint:     r.Fingerprint,
		Status:          Status(r.Status),
		ResponseStatus:  r.ResponseStatus,
		ResponseHeaders: r.ResponseHeaders,
		ResponseBody:    r.ResponseBody,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		ExpiresAt:       r.ExpiresAt,
	}
}
