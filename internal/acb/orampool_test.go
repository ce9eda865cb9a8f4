package acb

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func TestORAMPool_StoreRetrieveRoundTrip(t *testing.T) {
	pool, err := NewORAMPool(256, 256, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}

	if _, err := pool.Store("secret:password", []byte("sensitive_value")); err != nil {
		t.Fatalf("Store: %v", err)
	}

	data, metrics, err := pool.Retrieve("secret:password")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(data, []byte("sensitive_value")) {
		t.Errorf("Retrieve = %q, want %q", data, "sensitive_value")
	}
	if metrics.Pool != "oram" || !metrics.Found {
		t.Errorf("metrics = %+v", metrics)
	}
}

func TestORAMPool_Overwrite(t *testing.T) {
	pool, err := NewORAMPool(16, 64, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}

	if _, err := pool.Store("k", []byte("v1")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := pool.Store("k", []byte("v2")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	data, _, err := pool.Retrieve("k")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(data, []byte("v2")) {
		t.Errorf("Retrieve = %q, want %q", data, "v2")
	}
}

func TestORAMPool_MissDoesNotAccessTree(t *testing.T) {
	pool, err := NewORAMPool(16, 32, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}

	data, metrics, err := pool.Retrieve("never-stored")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if data != nil {
		t.Errorf("Retrieve(miss) data = %v, want nil", data)
	}
	if metrics.Found {
		t.Error("metrics.Found = true, want false")
	}
	if pool.engine.AccessCount() != 0 {
		t.Errorf("AccessCount() = %d, want 0 (miss must not touch the tree)", pool.engine.AccessCount())
	}
}

func TestORAMPool_TruncatesOverlongValues(t *testing.T) {
	pool, err := NewORAMPool(16, 8, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}

	if _, err := pool.Store("k", []byte("this value is definitely longer than 8 bytes")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	data, _, err := pool.Retrieve("k")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(data) != 8 {
		t.Errorf("Retrieve = %q (len %d), want truncated to 8 bytes", data, len(data))
	}
}

func TestORAMPool_TrailingZeroLimitation(t *testing.T) {
	// Documented limitation: genuine trailing zero bytes are indistinguishable
	// from store-time padding and are stripped on retrieve.
	pool, err := NewORAMPool(16, 16, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}

	original := []byte("abc\x00\x00")
	if _, err := pool.Store("k", original); err != nil {
		t.Fatalf("Store: %v", err)
	}
	data, _, err := pool.Retrieve("k")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if bytes.Equal(data, original) {
		t.Fatal("expected trailing zeros to be stripped, but they survived")
	}
	if !bytes.Equal(data, []byte("abc")) {
		t.Errorf("Retrieve = %q, want %q", data, "abc")
	}
}

func TestORAMPool_BoundaryNumBlocksOne(t *testing.T) {
	pool, err := NewORAMPool(1, 16, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}
	if pool.engine.Height() != 1 || pool.engine.PathLength() != 2 {
		t.Errorf("Height/PathLength = %d/%d, want 1/2", pool.engine.Height(), pool.engine.PathLength())
	}

	if _, err := pool.Store("only-key", []byte("value")); err != nil {
		t.Fatalf("Store: %v", err)
	}
	data, _, err := pool.Retrieve("only-key")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if !bytes.Equal(data, []byte("value")) {
		t.Errorf("Retrieve = %q, want %q", data, "value")
	}
}

func TestORAMPool_CapacityExhausted(t *testing.T) {
	pool, err := NewORAMPool(2, 16, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}
	if _, err := pool.Store("a", []byte("1")); err != nil {
		t.Fatalf("Store(a): %v", err)
	}
	if _, err := pool.Store("b", []byte("2")); err != nil {
		t.Fatalf("Store(b): %v", err)
	}
	if _, err := pool.Store("c", []byte("3")); err == nil {
		t.Error("expected an error once distinct-key count exceeds declared capacity")
	}
}
