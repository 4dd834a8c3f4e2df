package services_test

import (
	"context"
	"testing"

	"rtsync/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithItemID(ctx, "01J9ZQ")
	ctx = services.WithRecordID(ctx, "rec-1")
	ctx = services.WithPassID(ctx, "pass-9")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.ItemIDFromContext(ctx); !ok || id != "01J9ZQ" {
		t.Fatalf("unexpected item id: %v %v", id, ok)
	}
	if id, ok := services.RecordIDFromContext(ctx); !ok || id != "rec-1" {
		t.Fatalf("unexpected record id: %v %v", id, ok)
	}
	if id, ok := services.PassIDFromContext(ctx); !ok || id != "pass-9" {
		t.Fatalf("unexpected pass id: %v %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := services.WithPassID(context.Background(), "")
	if _, ok := services.PassIDFromContext(ctx); ok {
		t.Fatal("expected no pass id value")
	}
	if _, ok := services.ItemIDFromContext(nil); ok { //nolint:staticcheck
		t.Fatal("expected nil context to carry nothing")
	}
}
