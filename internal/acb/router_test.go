package acb

import (
	"bytes"
	"errors"
	"testing"

	"github.com/attested-computing/acb/internal/oram"
)

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	oramPool, err := NewORAMPool(64, 64, 4, 128, testKey(t))
	if err != nil {
		t.Fatalf("NewORAMPool: %v", err)
	}
	standardPool := NewStandardPool(oram.NoopEncryptor{})
	return NewRouter(oramPool, standardPool)
}

func TestClassify_SensitivePrefixesCaseInsensitive(t *testing.T) {
	sensitive := []string{
		"session_key:abc", "SESSION_KEY:abc", "Session_Key:abc",
		"ephemeral:abc", "EPHEMERAL:abc",
		"secret:abc", "SECRET:abc",
		"credential:abc", "Credential:abc",
		"private:abc", "PRIVATE:abc",
		"token:abc", "Token:abc",
	}
	for _, key := range sensitive {
		if got := classify(key); got != "oram" {
			t.Errorf("classify(%q) = %q, want oram", key, got)
		}
	}
}

func TestClassify_NonSensitivePrefixes(t *testing.T) {
	nonSensitive := []string{
		"config:theme", "user:alice", "cache:result", "public:notice", "plain-key",
	}
	for _, key := range nonSensitive {
		if got := classify(key); got != "standard" {
			t.Errorf("classify(%q) = %q, want standard", key, got)
		}
	}
}

func TestRouter_StoreRetrieveRoundTrip_BothPools(t *testing.T) {
	r := newTestRouter(t)

	storeResult, err := r.Store("secret:password", []byte("hunter2"))
	if err != nil {
		t.Fatalf("Store(secret): %v", err)
	}
	if storeResult.RoutedTo != "oram" {
		t.Errorf("RoutedTo = %q, want oram", storeResult.RoutedTo)
	}

	storeResult, err = r.Store("config:theme", []byte("dark"))
	if err != nil {
		t.Fatalf("Store(config): %v", err)
	}
	if storeResult.RoutedTo != "standard" {
		t.Errorf("RoutedTo = %q, want standard", storeResult.RoutedTo)
	}

	data, retrieveResult, err := r.Retrieve("secret:password")
	if err != nil {
		t.Fatalf("Retrieve(secret): %v", err)
	}
	if !bytes.Equal(data, []byte("hunter2")) || retrieveResult.RoutedFrom != "oram" {
		t.Errorf("Retrieve(secret) = (%q, %+v)", data, retrieveResult)
	}

	data, retrieveResult, err = r.Retrieve("config:theme")
	if err != nil {
		t.Fatalf("Retrieve(config): %v", err)
	}
	if !bytes.Equal(data, []byte("dark")) || retrieveResult.RoutedFrom != "standard" {
		t.Errorf("Retrieve(config) = (%q, %+v)", data, retrieveResult)
	}
}

func TestRouter_Delete(t *testing.T) {
	r := newTestRouter(t)

	r.Store("config:theme", []byte("dark"))
	ok, err := r.Delete("config:theme")
	if err != nil || !ok {
		t.Errorf("Delete(standard key) = (%v, %v), want (true, nil)", ok, err)
	}

	r.Store("secret:password", []byte("hunter2"))
	ok, err = r.Delete("secret:password")
	if !errors.Is(err, ErrOramDeleteUnsupported) {
		t.Errorf("Delete(oram key) error = %v, want ErrOramDeleteUnsupported", err)
	}
	if ok {
		t.Error("Delete(oram key) ok = true, want false")
	}
}

func TestRouter_MixedWorkloadMetrics(t *testing.T) {
	r := newTestRouter(t)

	for i := 0; i < 90; i++ {
		r.Store(keyN("config:", i), []byte("v"))
	}
	for i := 0; i < 10; i++ {
		r.Store(keyN("secret:", i), []byte("v"))
	}

	m := r.GetMetrics()
	if m.Routing.StandardRoutes != 90 {
		t.Errorf("StandardRoutes = %d, want 90", m.Routing.StandardRoutes)
	}
	if m.Routing.OramRoutes != 10 {
		t.Errorf("OramRoutes = %d, want 10", m.Routing.OramRoutes)
	}
	if m.Routing.TotalRoutes != 100 {
		t.Errorf("TotalRoutes = %d, want 100", m.Routing.TotalRoutes)
	}
	if m.Routing.OramPercentage != 10.0 {
		t.Errorf("OramPercentage = %v, want 10.0", m.Routing.OramPercentage)
	}
}

func TestRouter_GetMetrics_EmptyRouterNoDivideByZero(t *testing.T) {
	r := newTestRouter(t)
	m := r.GetMetrics()
	if m.Routing.OramPercentage != 0 {
		t.Errorf("OramPercentage = %v, want 0 with no routes yet", m.Routing.OramPercentage)
	}
}

func TestRouter_Summary_ContainsKeyFigures(t *testing.T) {
	r := newTestRouter(t)
	r.Store("secret:k", []byte("v"))
	r.Store("config:k", []byte("v"))

	summary := r.Summary()
	if summary == "" {
		t.Fatal("Summary() returned empty string")
	}
}

func keyN(prefix string, n int) string {
	digits := []byte{byte('0' + n/100%10), byte('0' + n/10%10), byte('0' + n%10)}
	return prefix + string(digits)
}
