package storage

import (
	"errors"
	"fmt"
	"testing"

	gcs "cloud.google.com/go/storage"
)

func TestNewReaderRequiresClient(t *testing.T) {
	if _, err := NewReader(nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}

func TestObjectPath(t *testing.T) {
	bucket, object, err := objectPath(" menus ", "/catalog/products.json")
	if err != nil {
		t.Fatalf("objectPath: %v", err)
	}
	if bucket != "menus" || object != "catalog/products.json" {
		t.Fatalf("unexpected path %s/%s", bucket, object)
	}
	for _, tc := range [][2]string{{"", "a"}, {"b", ""}, {"b", "/"}} {
		if _, _, err := objectPath(tc[0], tc[1]); err == nil {
			t.Fatalf("expected error for %v", tc)
		}
	}
}

func TestTranslateNotFound(t *testing.T) {
	for _, cause := range []error{gcs.ErrObjectNotExist, gcs.ErrBucketNotExist, fmt.Errorf("wrapped: %w", gcs.ErrObjectNotExist)} {
		if err := translate("menus", "catalog.json", cause); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("expected ErrObjectNotFound for %v, got %v", cause, err)
		}
	}
	boom := errors.New("boom")
	err := translate("menus", "catalog.json", boom)
	if errors.Is(err, ErrObjectNotFound) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}
