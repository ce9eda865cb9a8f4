package attestation

import "context"

// StaticDecrypter returns a fixed, constructor-supplied key
// unconditionally. It stands in for the real attestation oracle in
// tests and in standalone (non-enclave) runs, where the Decrypter
// interface is the only contract that matters and any implementation
// satisfying it is a legitimate substitute for the real hardware path.
type StaticDecrypter struct {
	Key []byte
}

// NewStaticDecrypter creates a StaticDecrypter that always returns key.
func NewStaticDecrypter(key []byte) *StaticDecrypter {
	return &StaticDecrypter{Key: key}
}

// Decrypt ignores its inputs and returns the configured key.
func (d *StaticDecrypter) Decrypt(ctx context.Context, creds Credentials, ciphertextB64 string) ([]byte, error) {
	return d.Key, nil
}
