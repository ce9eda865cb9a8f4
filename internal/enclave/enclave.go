package enclave

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/attested-computing/acb/internal/acb"
	"github.com/attested-computing/acb/internal/attestation"
	"github.com/attested-computing/acb/internal/oram"
)

// nowISO formats the current time as an ISO-8601 UTC timestamp.
func nowISO() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.999999")
}

// PoolConfig carries the ORAM/Standard pool dimensions the enclave
// configures itself with, supplied by the cmd/acbd flags.
type PoolConfig struct {
	ORAMCapacity  int
	ORAMBlockSize int
	BucketSize    int
	StashLimit    int
}

// Enclave owns the process-wide credentials, encryption key, and
// Router for the lifetime of the process. It is created once at
// startup and configured exactly once by a configure request — a
// second configure attempt is rejected rather than reinitializing state.
type Enclave struct {
	mu sync.Mutex

	decrypter attestation.Decrypter
	poolCfg   PoolConfig
	log       *slog.Logger

	configured    bool
	credentials   attestation.Credentials
	encryptionKey []byte
	router        *acb.Router
	configuredAt  string
}

// New creates an unconfigured Enclave.
func New(decrypter attestation.Decrypter, poolCfg PoolConfig, log *slog.Logger) *Enclave {
	if log == nil {
		log = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	return &Enclave{decrypter: decrypter, poolCfg: poolCfg, log: log}
}

// Configured reports whether Configure has already succeeded.
func (e *Enclave) Configured() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.configured
}

// configure decrypts the transport session key via the attestation
// oracle and initializes the Router. Returns an error kind string on
// failure ("" on success).
func (e *Enclave) configure(ctx context.Context, req Request) (kind string, details string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.configured {
		return KindInternalError, "enclave is already configured"
	}

	missing := missingFields(req)
	if len(missing) > 0 {
		return KindMissingFields, "required: " + joinFields(missing)
	}

	creds := attestation.Credentials{
		AccessKeyID:     req.AWSAccessKeyID,
		SecretAccessKey: req.AWSSecretAccessKey,
		SessionToken:    req.AWSSessionToken,
	}

	e.log.Info("decrypting transport session key with attestation")
	key, err := e.decrypter.Decrypt(ctx, creds, req.EncryptedTSK)
	if err != nil {
		e.log.Error("attestation decrypt failed", "err", err)
		return KindKMSDecryptFailed, err.Error()
	}

	oramPool, err := acb.NewORAMPool(e.poolCfg.ORAMCapacity, e.poolCfg.ORAMBlockSize, e.poolCfg.BucketSize, e.poolCfg.StashLimit, key)
	if err != nil {
		e.log.Error("oram pool init failed", "err", err)
		return KindInternalError, err.Error()
	}

	sharedAEAD, err := oram.NewAESGCMEncryptor(key)
	if err != nil {
		e.log.Error("standard pool encryptor init failed", "err", err)
		return KindInternalError, err.Error()
	}
	standardPool := acb.NewStandardPool(sharedAEAD)

	e.credentials = creds
	e.encryptionKey = key
	e.router = acb.NewRouter(oramPool, standardPool)
	e.configured = true
	e.configuredAt = nowISO()

	e.log.Info("acb configured", "oram_capacity", e.poolCfg.ORAMCapacity, "oram_block_size", e.poolCfg.ORAMBlockSize)
	return "", ""
}

func missingFields(req Request) []string {
	var missing []string
	if req.AWSAccessKeyID == "" {
		missing = append(missing, "aws_access_key_id")
	}
	if req.AWSSecretAccessKey == "" {
		missing = append(missing, "aws_secret_access_key")
	}
	if req.AWSSessionToken == "" {
		missing = append(missing, "aws_session_token")
	}
	if req.EncryptedTSK == "" {
		missing = append(missing, "encrypted_tsk")
	}
	return missing
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
