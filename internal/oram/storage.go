package oram

// Storage provides block-level access to the ORAM tree structure.
// Implementations may store data in memory, files, or remote services.
//
// Slots are opaque: Storage never sees a block's id, leaf, or
// plaintext payload — only the sealed ciphertext produced by an
// Encryptor. This is what makes a bucket's at-rest representation
// indistinguishable from random to anyone without the AEAD key,
// including the storage layer itself.
type Storage interface {
	// ReadBucket returns all sealed slots in the bucket at idx.
	ReadBucket(idx int) ([]SealedBlock, error)

	// WriteBucket writes all sealed slots to the bucket at idx.
	WriteBucket(idx int, blocks []SealedBlock) error

	// NumBuckets returns the total number of buckets in storage.
	NumBuckets() int

	// BucketSize returns the number of block slots per bucket.
	BucketSize() int
}

// SealedBlock is a single ciphertext slot as stored at rest.
// Ciphertext is produced by Encryptor.Seal and is the only field
// Storage ever touches.
type SealedBlock struct {
	Ciphertext []byte
}

// InMemoryStorage implements Storage using in-memory slices.
type InMemoryStorage struct {
	buckets    [][]SealedBlock
	bucketSize int
}

// NewInMemoryStorage creates in-memory storage with the given
// dimensions. Every slot is initialized with a freshly sealed dummy
// produced by sealDummy, so even a never-written tree is already
// padded to capacity and encrypted at rest.
func NewInMemoryStorage(numBuckets, bucketSize int, sealDummy func() ([]byte, error)) (*InMemoryStorage, error) {
	buckets := make([][]SealedBlock, numBuckets)
	for i := range buckets {
		buckets[i] = make([]SealedBlock, bucketSize)
		for j := range buckets[i] {
			ct, err := sealDummy()
			if err != nil {
				return nil, err
			}
			buckets[i][j] = SealedBlock{Ciphertext: ct}
		}
	}
	return &InMemoryStorage{buckets: buckets, bucketSize: bucketSize}, nil
}

// ReadBucket returns a copy of all sealed slots in the bucket at idx.
func (s *InMemoryStorage) ReadBucket(idx int) ([]SealedBlock, error) {
	if idx < 0 || idx >= len(s.buckets) {
		return nil, ErrInvalidConfig
	}
	result := make([]SealedBlock, len(s.buckets[idx]))
	for i, b := range s.buckets[idx] {
		ct := make([]byte, len(b.Ciphertext))
		copy(ct, b.Ciphertext)
		result[i] = SealedBlock{Ciphertext: ct}
	}
	return result, nil
}

// WriteBucket writes all sealed slots to the bucket at idx.
func (s *InMemoryStorage) WriteBucket(idx int, blocks []SealedBlock) error {
	if idx < 0 || idx >= len(s.buckets) {
		return ErrInvalidConfig
	}
	if len(blocks) != s.bucketSize {
		return ErrInvalidConfig
	}
	for i, b := range blocks {
		ct := make([]byte, len(b.Ciphertext))
		copy(ct, b.Ciphertext)
		s.buckets[idx][i] = SealedBlock{Ciphertext: ct}
	}
	return nil
}

// NumBuckets returns the total number of buckets.
func (s *InMemoryStorage) NumBuckets() int {
	return len(s.buckets)
}

// BucketSize returns slots per bucket.
func (s *InMemoryStorage) BucketSize() int {
	return s.bucketSize
}
