package oram

import (
	"crypto/rand"
	"io"
	"math/big"
)

// block is a single data block held client-side (stash or in transit
// during an access). Block ID -1 means empty/dummy; a dummy never
// appears in the stash, only as at-rest padding.
type block struct {
	id   int
	leaf int
	data []byte
}

// Engine implements the Path-ORAM access algorithm described in the
// data model: a flat-array binary tree of sealed buckets, a
// client-side position map, and a client-side stash.
type Engine struct {
	cfg       Config
	height    int
	numLeaves int

	storage Storage     // pluggable bucket storage (opaque ciphertext slots)
	posMap  PositionMap // pluggable block-id -> leaf table
	encrypt Encryptor   // pluggable sealing/opening of slots
	rng     io.Reader   // source of randomness for leaf sampling

	stash []block

	accessCount int
	stashPeak   int
}

// New creates an Engine with explicit collaborators. Use this
// constructor to wire AES-GCM encryption, custom storage, or (in
// tests) a deterministic rng.
func New(cfg Config, storage Storage, posMap PositionMap, enc Encryptor, rng io.Reader) (*Engine, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	if rng == nil {
		rng = rand.Reader
	}

	height, numLeaves, _ := cfg.ComputeTreeParams()

	return &Engine{
		cfg:       cfg,
		height:    height,
		numLeaves: numLeaves,
		storage:   storage,
		posMap:    posMap,
		encrypt:   enc,
		rng:       rng,
	}, nil
}

// NewInMemory creates an Engine with in-memory storage and no
// encryption (NoopEncryptor). Intended for engine-level unit tests;
// production pools use NewInMemoryEncrypted.
func NewInMemory(cfg Config) (*Engine, error) {
	return newInMemory(cfg, NoopEncryptor{}, nil)
}

// NewInMemoryEncrypted creates an Engine with in-memory storage backed
// by AES-256-GCM under the given 32-byte key. This is what the ORAM
// pool uses in production.
func NewInMemoryEncrypted(cfg Config, key []byte) (*Engine, error) {
	enc, err := NewAESGCMEncryptor(key)
	if err != nil {
		return nil, err
	}
	return newInMemory(cfg, enc, nil)
}

func newInMemory(cfg Config, enc Encryptor, rng io.Reader) (*Engine, error) {
	cfg, err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	_, _, totalBuckets := cfg.ComputeTreeParams()

	storage, err := NewInMemoryStorage(totalBuckets, cfg.BucketSize, func() ([]byte, error) {
		dummy := make([]byte, cfg.BlockSize)
		return enc.Seal(EmptyBlockID, -1, dummy)
	})
	if err != nil {
		return nil, err
	}

	return New(cfg, storage, NewInMemoryPositionMap(), enc, rng)
}

// Capacity returns the number of blocks this engine can store.
func (e *Engine) Capacity() int { return e.cfg.NumBlocks }

// Height returns the height of the binary tree (H).
func (e *Engine) Height() int { return e.height }

// NumLeaves returns the number of leaf nodes in the tree (2^H).
func (e *Engine) NumLeaves() int { return e.numLeaves }

// PathLength returns the number of buckets visited per access (H+1).
func (e *Engine) PathLength() int { return e.height + 1 }

// StashSize returns the current number of blocks in the stash.
func (e *Engine) StashSize() int { return len(e.stash) }

// StashPeak returns the largest stash size observed so far.
func (e *Engine) StashPeak() int { return e.stashPeak }

// AccessCount returns the number of completed Access operations.
func (e *Engine) AccessCount() int { return e.accessCount }

// Size returns the number of blocks with an assigned position.
func (e *Engine) Size() int { return e.posMap.Size() }

// BlockSize returns the configured block size.
func (e *Engine) BlockSize() int { return e.cfg.BlockSize }

// Read reads the block with the given ID. Returns zeros if the block
// was never written.
func (e *Engine) Read(blockID int) ([]byte, error) {
	if blockID < 0 || blockID >= e.cfg.NumBlocks {
		return nil, ErrInvalidBlockID
	}
	return e.access(blockID, nil)
}

// Write writes data to the block with the given ID. data must be
// exactly BlockSize bytes. Returns the block's previous value.
func (e *Engine) Write(blockID int, data []byte) ([]byte, error) {
	if blockID < 0 || blockID >= e.cfg.NumBlocks {
		return nil, ErrInvalidBlockID
	}
	if len(data) != e.cfg.BlockSize {
		return nil, ErrInvalidDataSize
	}
	return e.access(blockID, data)
}

// Access performs an oblivious read (newData == nil) or write
// (newData != nil) of blockID. It is the single oblivious primitive;
// Read and Write are thin wrappers.
func (e *Engine) Access(blockID int, newData []byte) ([]byte, error) {
	if blockID < 0 || blockID >= e.cfg.NumBlocks {
		return nil, ErrInvalidBlockID
	}
	if newData != nil && len(newData) != e.cfg.BlockSize {
		return nil, ErrInvalidDataSize
	}
	return e.access(blockID, newData)
}

// randomLeaf returns a cryptographically random leaf index in
// [0, numLeaves).
func (e *Engine) randomLeaf() int {
	n, err := rand.Int(e.rng, big.NewInt(int64(e.numLeaves)))
	if err != nil {
		panic("oram: rng failed: " + err.Error())
	}
	return int(n.Int64())
}

// access performs the core Path-ORAM access: position lookup, remap,
// path read, target resolution, eviction, bookkeeping — in that order,
// as specified.
func (e *Engine) access(blockID int, newData []byte) ([]byte, error) {
	// Step 1: position lookup (assign a fresh random leaf on first touch).
	leafOld, exists := e.posMap.Get(blockID)
	if !exists {
		leafOld = e.randomLeaf()
	}

	// Step 2: remap before write-back, so evicted blocks route by their
	// new position.
	e.posMap.Set(blockID, e.randomLeaf())

	// Step 3: path read — decrypt every slot on the path, move real
	// blocks into the stash, clear the bucket.
	path := e.Path(leafOld)
	if err := e.readPathIntoStash(path); err != nil {
		return nil, err
	}

	// Step 4: target resolution.
	var foundIdx int
	var result []byte
	if e.cfg.ConstantTime {
		foundIdx, result = e.findInStashConstantTime(blockID)
	} else {
		foundIdx, result = e.findInStash(blockID)
	}

	if foundIdx == -1 {
		result = make([]byte, e.cfg.BlockSize)
		newLeaf, _ := e.posMap.Get(blockID)
		nb := block{id: blockID, leaf: newLeaf, data: make([]byte, e.cfg.BlockSize)}
		if newData != nil {
			copy(nb.data, newData)
		}
		e.stash = append(e.stash, nb)
	} else {
		newLeaf, _ := e.posMap.Get(blockID)
		e.stash[foundIdx].leaf = newLeaf
		if newData != nil {
			copy(e.stash[foundIdx].data, newData)
		}
	}

	// Step 5: eviction / path write-back.
	var err error
	if e.cfg.ConstantTime {
		err = e.evictConstantTime(path)
	} else {
		err = e.evictWithStrategy(path)
	}
	if err != nil {
		return nil, err
	}

	// Step 6: bookkeeping.
	e.accessCount++
	if len(e.stash) > e.stashPeak {
		e.stashPeak = len(e.stash)
	}

	return result, nil
}

// findInStash searches the stash for blockID.
// Returns (index, data); index is -1 if not found.
func (e *Engine) findInStash(blockID int) (int, []byte) {
	for i, b := range e.stash {
		if b.id == blockID {
			result := make([]byte, e.cfg.BlockSize)
			copy(result, b.data)
			return i, result
		}
	}
	return -1, nil
}

// readPathIntoStash opens every slot on path, moves real blocks into
// the stash, and clears the in-memory bucket (its contents get
// rebuilt entirely during eviction).
func (e *Engine) readPathIntoStash(path []int) error {
	for _, bucketIdx := range path {
		bucket, err := e.storage.ReadBucket(bucketIdx)
		if err != nil {
			return err
		}
		for _, slot := range bucket {
			id, leaf, plaintext, err := e.encrypt.Open(slot.Ciphertext)
			if err != nil {
				return err
			}
			if id != EmptyBlockID {
				e.stash = append(e.stash, block{id: id, leaf: leaf, data: plaintext})
			}
		}
	}
	return nil
}

// sealBlock seals a real block for storage.
func (e *Engine) sealBlock(b block) (SealedBlock, error) {
	ct, err := e.encrypt.Seal(b.id, b.leaf, b.data)
	if err != nil {
		return SealedBlock{}, err
	}
	return SealedBlock{Ciphertext: ct}, nil
}

// sealDummy seals a fresh random dummy slot.
func (e *Engine) sealDummy() (SealedBlock, error) {
	dummy := make([]byte, e.cfg.BlockSize)
	if _, err := rand.Read(dummy); err != nil {
		return SealedBlock{}, err
	}
	ct, err := e.encrypt.Seal(EmptyBlockID, -1, dummy)
	if err != nil {
		return SealedBlock{}, err
	}
	return SealedBlock{Ciphertext: ct}, nil
}

// Path returns the sequence of bucket indices from root to the given
// leaf (length H+1). Leaf index is 0-based among all leaves.
func (e *Engine) Path(leaf int) []int {
	path := make([]int, e.height+1)
	bucket := e.numLeaves - 1 + leaf
	for i := e.height; i >= 0; i-- {
		path[i] = bucket
		if bucket == 0 {
			break
		}
		bucket = (bucket - 1) / 2
	}
	return path
}

// canPlaceAt reports whether a block assigned to leaf can be placed
// in the bucket at bucketIdx — i.e. bucketIdx lies on leaf's
// root-to-leaf path.
func (e *Engine) canPlaceAt(leaf, bucketIdx int) bool {
	leafBucket := e.numLeaves - 1 + leaf
	for b := leafBucket; ; b = (b - 1) / 2 {
		if b == bucketIdx {
			return true
		}
		if b == 0 {
			return false
		}
	}
}
