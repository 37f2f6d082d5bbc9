package firestore

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestWrapErrorClassifiesCodes(t *testing.T) {
	cases := []struct {
		name        string
		code        codes.Code
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "not found", code: codes.NotFound, notFound: true},
		{name: "aborted", code: codes.Aborted, conflict: true},
		{name: "unavailable", code: codes.Unavailable, unavailable: true},
		{name: "permission denied", code: codes.PermissionDenied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := WrapError("cartSnapshots.get", status.Error(tc.code, "boom"))
			var fsErr *Error
			if !errors.As(err, &fsErr) {
				t.Fatalf("expected *Error, got %T", err)
			}
			if fsErr.IsNotFound() != tc.notFound || fsErr.IsConflict() != tc.conflict || fsErr.IsUnavailable() != tc.unavailable {
				t.Fatalf("unexpected classification for %s: %+v", tc.code, fsErr)
			}
		})
	}
}

func TestWrapErrorPassesThroughCancellation(t *testing.T) {
	if err := WrapError("op", status.Error(codes.Canceled, "gone")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := WrapError("op", context.DeadlineExceeded); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if err := WrapError("op", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
