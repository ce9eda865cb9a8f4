package oram

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// Encryptor seals and opens bucket slots. A sealed slot is a single
// opaque ciphertext: the block's identity (id, leaf) and its payload
// are encrypted together as one unit, so that a party without the key
// cannot distinguish a dummy slot from a real one, nor tell two real
// slots apart, from the ciphertext alone.
type Encryptor interface {
	// Seal encrypts (id, leaf, plaintext) into a single ciphertext blob.
	Seal(id, leaf int, plaintext []byte) ([]byte, error)

	// Open decrypts a ciphertext blob produced by Seal, recovering the
	// id, leaf, and plaintext it was sealed with.
	Open(ciphertext []byte) (id, leaf int, plaintext []byte, err error)

	// Overhead returns the number of extra bytes a Seal adds on top of
	// the header+payload (nonce + authentication tag).
	Overhead() int
}

// header is the fixed-size cleartext-before-sealing prefix carrying a
// block's identity. It only ever exists as AEAD plaintext/ciphertext,
// never at rest unencrypted.
const headerSize = 16 // int64 id ++ int64 leaf

func encodeHeader(id, leaf int) []byte {
	h := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(h[0:8], uint64(int64(id)))
	binary.LittleEndian.PutUint64(h[8:16], uint64(int64(leaf)))
	return h
}

func decodeHeader(h []byte) (id, leaf int) {
	id = int(int64(binary.LittleEndian.Uint64(h[0:8])))
	leaf = int(int64(binary.LittleEndian.Uint64(h[8:16])))
	return
}

// NoopEncryptor passes data through without encryption, prefixing the
// cleartext header. Use only for engine unit tests that don't care
// about ciphertext opacity.
type NoopEncryptor struct{}

func (NoopEncryptor) Seal(id, leaf int, plaintext []byte) ([]byte, error) {
	out := make([]byte, 0, headerSize+len(plaintext))
	out = append(out, encodeHeader(id, leaf)...)
	out = append(out, plaintext...)
	return out, nil
}

func (NoopEncryptor) Open(ciphertext []byte) (int, int, []byte, error) {
	if len(ciphertext) < headerSize {
		return 0, 0, nil, ErrDecrypt
	}
	id, leaf := decodeHeader(ciphertext[:headerSize])
	plaintext := make([]byte, len(ciphertext)-headerSize)
	copy(plaintext, ciphertext[headerSize:])
	return id, leaf, plaintext, nil
}

func (NoopEncryptor) Overhead() int { return 0 }

const (
	aesKeySize   = 32 // AES-256
	aesNonceSize = 12 // standard GCM nonce size
)

// AESGCMEncryptor provides AES-256-GCM sealing with random nonces.
// Layout: nonce (12B) || ciphertext(header||payload) || tag (16B).
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

// NewAESGCMEncryptor creates a new AES-GCM encryptor with the given
// 32-byte key.
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != aesKeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", aesKeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create aes cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &AESGCMEncryptor{aead: aead}, nil
}

// Seal encrypts (id, leaf, plaintext) using AES-GCM with a fresh
// random nonce per call.
func (e *AESGCMEncryptor) Seal(id, leaf int, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, aesNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	inner := make([]byte, 0, headerSize+len(plaintext))
	inner = append(inner, encodeHeader(id, leaf)...)
	inner = append(inner, plaintext...)

	ciphertext := e.aead.Seal(nonce, nonce, inner, nil)
	return ciphertext, nil
}

// Open decrypts a ciphertext blob produced by Seal. Any tag mismatch,
// truncation, or corruption returns ErrDecrypt; callers must treat
// this as fatal, not as an ordinary error.
func (e *AESGCMEncryptor) Open(ciphertext []byte) (int, int, []byte, error) {
	if len(ciphertext) < aesNonceSize+e.aead.Overhead() {
		return 0, 0, nil, ErrDecrypt
	}

	nonce := ciphertext[:aesNonceSize]
	ct := ciphertext[aesNonceSize:]

	inner, err := e.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return 0, 0, nil, ErrDecrypt
	}
	if len(inner) < headerSize {
		return 0, 0, nil, ErrDecrypt
	}

	id, leaf := decodeHeader(inner[:headerSize])
	plaintext := make([]byte, len(inner)-headerSize)
	copy(plaintext, inner[headerSize:])
	return id, leaf, plaintext, nil
}

// Overhead returns nonce size + GCM tag size.
func (e *AESGCMEncryptor) Overhead() int {
	return aesNonceSize + e.aead.Overhead()
}
