// Command acbd runs the Attested Confidential Blackboard enclave
// process: it accepts one request at a time on a stream listener,
// dispatches ping/configure/store/retrieve/metrics/health requests to
// an enclave.Enclave, and serializes the handler's response back.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	chacha "github.com/sixafter/prng-chacha"
	"github.com/spf13/cobra"

	"github.com/attested-computing/acb/internal/attestation"
	"github.com/attested-computing/acb/internal/enclave"
	"github.com/attested-computing/acb/internal/transport"
)

func main() {
	var (
		listen        string
		oramCapacity  int
		oramBlockSize int
		bucketSize    int
		stashLimit    int
		logLevel      string
		decrypterKind string
		attestBin     string
		attestRegion  string
		attestProxy   string
		staticKeyHex  string
	)

	rootCmd := &cobra.Command{
		Use:           "acbd",
		Short:         "Attested Confidential Blackboard enclave server",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger(logLevel)

			decrypter, err := buildDecrypter(decrypterKind, attestBin, attestRegion, attestProxy, staticKeyHex)
			if err != nil {
				return fmt.Errorf("build decrypter: %w", err)
			}

			enc := enclave.New(decrypter, enclave.PoolConfig{
				ORAMCapacity:  oramCapacity,
				ORAMBlockSize: oramBlockSize,
				BucketSize:    bucketSize,
				StashLimit:    stashLimit,
			}, log)

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listen, err)
			}
			log.Info("acbd listening", "addr", ln.Addr().String())

			srv := transport.New(ln, enc, log)

			ctx, cancel := signalContext()
			defer cancel()

			return srv.Serve(ctx)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&listen, "listen", "127.0.0.1:5000", "address to listen on")
	flags.IntVar(&oramCapacity, "oram-capacity", 256, "Path-ORAM declared block capacity (N)")
	flags.IntVar(&oramBlockSize, "oram-block-size", 256, "Path-ORAM block payload size in bytes")
	flags.IntVar(&bucketSize, "bucket-size", 4, "Path-ORAM bucket capacity (Z)")
	flags.IntVar(&stashLimit, "stash-limit", 128, "stash overflow ceiling before a fatal abort")
	flags.StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	flags.StringVar(&decrypterKind, "decrypter", "static", "attestation decrypter: exec or static")
	flags.StringVar(&attestBin, "attestation-bin", "kmstool-enclave-cli", "attestation CLI binary path (decrypter=exec)")
	flags.StringVar(&attestRegion, "attestation-region", "us-east-1", "attestation CLI --region (decrypter=exec)")
	flags.StringVar(&attestProxy, "attestation-proxy-port", "8000", "attestation CLI --proxy-port (decrypter=exec)")
	flags.StringVar(&staticKeyHex, "static-key-hex", "", "32-byte hex key for decrypter=static (random if omitted)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "acbd:", err)
		os.Exit(1)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// buildDecrypter wires the attestation oracle: "exec" shells to a real
// attestation CLI (production, inside the enclave); "static" hands
// back a fixed or freshly-generated 32-byte key, for standalone and
// development runs where no attestation hardware is present.
func buildDecrypter(kind, bin, region, proxy, staticKeyHex string) (attestation.Decrypter, error) {
	switch kind {
	case "exec":
		return attestation.NewExecDecrypter(bin, region, proxy), nil
	case "static":
		key, err := staticKey(staticKeyHex)
		if err != nil {
			return nil, err
		}
		return attestation.NewStaticDecrypter(key), nil
	default:
		return nil, fmt.Errorf("unknown decrypter %q (want exec or static)", kind)
	}
}

// staticKey decodes an operator-supplied hex key, or draws a fresh
// 32-byte key from the platform ChaCha20 CSPRNG when none is supplied,
// distinct from the injectable-for-tests randomness seam the engine
// itself uses internally.
func staticKey(hexKey string) ([]byte, error) {
	if hexKey != "" {
		key, err := decodeHexKey(hexKey)
		if err != nil {
			return nil, err
		}
		return key, nil
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(chacha.Reader, key); err != nil {
		return nil, fmt.Errorf("draw dev key: %w", err)
	}
	return key, nil
}

func decodeHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode --static-key-hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("--static-key-hex must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
