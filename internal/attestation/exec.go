package attestation

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"os/exec"
	"strings"
)

// ExecDecrypter shells out to an external attestation CLI (e.g. a
// Nitro Enclaves kmstool binary) and parses a "PLAINTEXT: <base64>"
// marker from its stdout.
type ExecDecrypter struct {
	// Path to the attestation CLI binary.
	Path string
	// Region is passed as --region.
	Region string
	// ProxyPort is passed as --proxy-port, for a local vsock-to-KMS proxy.
	ProxyPort string
}

// NewExecDecrypter creates an ExecDecrypter for the given binary path,
// region, and local proxy port.
func NewExecDecrypter(path, region, proxyPort string) *ExecDecrypter {
	return &ExecDecrypter{Path: path, Region: region, ProxyPort: proxyPort}
}

// Decrypt invokes the external CLI as:
//
//	<path> decrypt --region <region> --proxy-port <port> \
//	  --aws-access-key-id <ak> --aws-secret-access-key <sk> \
//	  --aws-session-token <token> --ciphertext <b64>
//
// and parses "PLAINTEXT: <base64>" (or a bare base64 payload) from
// stdout.
func (d *ExecDecrypter) Decrypt(ctx context.Context, creds Credentials, ciphertextB64 string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, d.Path, "decrypt",
		"--region", d.Region,
		"--proxy-port", d.ProxyPort,
		"--aws-access-key-id", creds.AccessKeyID,
		"--aws-secret-access-key", creds.SecretAccessKey,
		"--aws-session-token", creds.SessionToken,
		"--ciphertext", ciphertextB64,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("attestation cli failed: %s", strings.TrimSpace(stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	const marker = "PLAINTEXT:"
	if idx := strings.Index(out, marker); idx != -1 {
		out = strings.TrimSpace(out[idx+len(marker):])
	}

	plaintext, err := base64.StdEncoding.DecodeString(out)
	if err != nil {
		return nil, fmt.Errorf("decode attestation cli output: %w", err)
	}
	return plaintext, nil
}
