// Package acb implements the Attested Confidential Blackboard: an
// ORAM-protected pool and a Standard AEAD-only pool, unified behind a
// Router that classifies keys by sensitivity.
package acb

import (
	"bytes"

	"github.com/attested-computing/acb/internal/oram"
)

// Metrics is the per-operation metrics payload a Pool returns,
// serialized verbatim (minus routing annotations, which Router adds)
// into the wire response.
type Metrics struct {
	Pool        string `json:"pool"`
	Found       bool   `json:"found"`
	AccessCount int    `json:"access_count"`
	PathLength  int    `json:"path_length,omitempty"`
	Overhead    string `json:"overhead,omitempty"`
}

// Pool is the uniform external contract both pools present:
// store(key, value) -> metrics, retrieve(key) -> (value?, metrics).
// Keeping this an interface (rather than a tagged enum) is the
// idiomatic Go shape for "one of two backends" and is what every
// pluggable seam in this codebase already looks like.
type Pool interface {
	Store(key string, value []byte) (Metrics, error)
	Retrieve(key string) ([]byte, Metrics, error)
}

// ORAMPool is a string-keyed, variable-length facade over a
// Path-ORAM engine. It assigns a dense, stable block ID to each key on
// first write.
type ORAMPool struct {
	engine    *oram.Engine
	keyToID   map[string]int
	nextID    int
	blockSize int
	capacity  int
}

// NewORAMPool creates an ORAM pool with its own Path-ORAM engine of
// the given capacity and block size, sealed under the shared
// process-wide key.
func NewORAMPool(capacity, blockSize, bucketSize, stashLimit int, key []byte) (*ORAMPool, error) {
	cfg := oram.Config{
		NumBlocks:  capacity,
		BlockSize:  blockSize,
		BucketSize: bucketSize,
		StashLimit: stashLimit,
	}
	engine, err := oram.NewInMemoryEncrypted(cfg, key)
	if err != nil {
		return nil, err
	}
	return &ORAMPool{
		engine:    engine,
		keyToID:   make(map[string]int),
		blockSize: blockSize,
		capacity:  capacity,
	}, nil
}

// blockID returns the stable block ID for key, assigning a fresh one
// from an incrementing counter on first use. The dense counter is
// bounded by the engine's declared capacity; exceeding it is an
// operational error, not a tree invariant violation, so it surfaces as
// oram.ErrInvalidBlockID rather than a fatal decrypt/stash error.
func (p *ORAMPool) blockID(key string) (int, error) {
	if id, ok := p.keyToID[key]; ok {
		return id, nil
	}
	if p.nextID >= p.capacity {
		return 0, oram.ErrInvalidBlockID
	}
	id := p.nextID
	p.keyToID[key] = id
	p.nextID++
	return id, nil
}

// Store writes value under key, zero-right-padding to the engine's
// block size (truncating if value is longer).
func (p *ORAMPool) Store(key string, value []byte) (Metrics, error) {
	id, err := p.blockID(key)
	if err != nil {
		return Metrics{}, err
	}

	padded := make([]byte, p.blockSize)
	copy(padded, value) // copy truncates at len(padded) if value is longer

	if _, err := p.engine.Write(id, padded); err != nil {
		return Metrics{}, err
	}

	return Metrics{
		Pool:        "oram",
		AccessCount: p.engine.AccessCount(),
		PathLength:  p.engine.PathLength(),
	}, nil
}

// Retrieve reads the value stored under key. If key was never stored,
// it returns (nil, {found:false}) without performing a tree access —
// a known limitation: an observer of the access trace learns "this key
// was never stored" from the absence of a path access. Callers who
// need full membership hiding must issue a dummy access on miss; this
// pool trades that off for simplicity.
func (p *ORAMPool) Retrieve(key string) ([]byte, Metrics, error) {
	id, ok := p.keyToID[key]
	if !ok {
		return nil, Metrics{Pool: "oram", Found: false, AccessCount: p.engine.AccessCount()}, nil
	}

	data, err := p.engine.Read(id)
	if err != nil {
		return nil, Metrics{}, err
	}

	// Strip the zero padding Store applied. Values whose genuine bytes
	// end in 0x00 lose those bytes here — known limitation, not fixed.
	data = bytes.TrimRight(data, "\x00")

	return data, Metrics{
		Pool:        "oram",
		Found:       true,
		AccessCount: p.engine.AccessCount(),
	}, nil
}

// PoolMetrics reports ORAM pool metrics for the metrics request.
type PoolMetrics struct {
	PoolType    string `json:"pool_type"`
	Entries     int    `json:"entries"`
	AccessCount int    `json:"access_count"`
	StashSize   int    `json:"stash_size"`
	StashPeak   int    `json:"stash_peak"`
	TreeHeight  int    `json:"tree_height"`
	PathLength  int    `json:"path_length"`
}

// GetMetrics reports aggregate ORAM pool metrics.
func (p *ORAMPool) GetMetrics() PoolMetrics {
	return PoolMetrics{
		PoolType:    "oram",
		Entries:     len(p.keyToID),
		AccessCount: p.engine.AccessCount(),
		StashSize:   p.engine.StashSize(),
		StashPeak:   p.engine.StashPeak(),
		TreeHeight:  p.engine.Height(),
		PathLength:  p.engine.PathLength(),
	}
}
