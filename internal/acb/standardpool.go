package acb

import (
	"sync"

	"github.com/attested-computing/acb/internal/oram"
)

// StandardPool is a string-keyed AEAD-only store with O(1) lookup.
// It does not hide access patterns: the map's lookup trace is
// observable. This is the intentional trade-off for O(1) latency on
// high-volume, non-sensitive data.
type StandardPool struct {
	mu          sync.Mutex
	encrypt     oram.Encryptor
	storage     map[string][]byte
	accessCount int
}

// NewStandardPool creates a Standard pool sealing values with the
// same process-wide Encryptor the ORAM pool uses.
func NewStandardPool(encrypt oram.Encryptor) *StandardPool {
	return &StandardPool{
		encrypt: encrypt,
		storage: make(map[string][]byte),
	}
}

// Store seals value and replaces any previous entry for key.
func (p *StandardPool) Store(key string, value []byte) (Metrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	// id/leaf are meaningless outside the ORAM tree; 0/0 is just a
	// fixed header so the same Encryptor can seal both pools' data.
	sealed, err := p.encrypt.Seal(0, 0, value)
	if err != nil {
		return Metrics{}, err
	}

	p.storage[key] = sealed
	p.accessCount++

	return Metrics{Pool: "standard", AccessCount: p.accessCount, Overhead: "O(1)"}, nil
}

// Retrieve unseals the value stored under key, or reports a miss.
func (p *StandardPool) Retrieve(key string) ([]byte, Metrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.accessCount++

	sealed, ok := p.storage[key]
	if !ok {
		return nil, Metrics{Pool: "standard", Found: false, AccessCount: p.accessCount}, nil
	}

	_, _, plaintext, err := p.encrypt.Open(sealed)
	if err != nil {
		return nil, Metrics{}, err
	}

	return plaintext, Metrics{Pool: "standard", Found: true, AccessCount: p.accessCount}, nil
}

// Delete removes key, reporting whether it existed.
func (p *StandardPool) Delete(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.storage[key]; !ok {
		return false
	}
	delete(p.storage, key)
	return true
}

// GetMetrics reports aggregate Standard pool metrics.
func (p *StandardPool) GetMetrics() PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()

	return PoolMetrics{
		PoolType:    "standard",
		Entries:     len(p.storage),
		AccessCount: p.accessCount,
	}
}
