package httpapi

import (
	"testing"
	"time"
)

func TestSetMaxEventBatch_DefaultWhenNonPositive(t *testing.T) {
	defer SetMaxEventBatch(0)
	SetMaxEventBatch(-1)
	if maxEventBatch != 256 {
		t.Fatalf("expected default 256, got %d", maxEventBatch)
	}
	SetMaxEventBatch(12)
	if maxEventBatch != 12 {
		t.Fatalf("expected 12, got %d", maxEventBatch)
	}
}

func TestSetMaxEventWait_NormalizesNegativeToZero(t *testing.T) {
	defer SetMaxEventWait(30 * time.Second)
	SetMaxEventWait(-time.Second)
	if maxEventWait != 0 {
		t.Fatalf("expected 0, got %s", maxEventWait)
	}
	SetMaxEventWait(3 * time.Second)
	if maxEventWait != 3*time.Second {
		t.Fatalf("expected 3s, got %s", maxEventWait)
	}
}
