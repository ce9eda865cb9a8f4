package enclave

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/attested-computing/acb/internal/oram"
)

// isFatal reports whether err represents a trust-boundary violation
// (AEAD tag mismatch, stash overflow) rather than an ordinary
// operational error (bad block id, wrong data size). Through the
// Router, a bad block id arises when the ORAM pool has assigned every
// ID up to its declared capacity and a new key is stored.
func isFatal(err error) bool {
	return errors.Is(err, oram.ErrDecrypt) || errors.Is(err, oram.ErrStashOverflow)
}

// Handle dispatches a decoded Request to the handler for its Type and
// returns the Response to serialize back over the wire. Handle never
// panics on operational errors — those become KindInternalError
// responses — but an Encryptor tag failure surfacing from the ORAM or
// Standard pool is returned as an error for the caller to treat as
// fatal (see transport.Server).
func (e *Enclave) Handle(ctx context.Context, req Request) (Response, error) {
	switch req.Type {
	case "ping":
		return Response{"status": "ok", "msg": "pong", "oram_enabled": true}, nil

	case "health":
		return Response{
			"status":      "healthy",
			"configured":  e.Configured(),
			"acb_enabled": e.Configured(),
			"timestamp":   nowISO(),
		}, nil

	case "configure":
		return e.handleConfigure(ctx, req), nil

	case "store":
		return e.handleStore(req)

	case "retrieve":
		return e.handleRetrieve(req)

	case "metrics":
		return e.handleMetrics()

	default:
		return errorResponse(KindUnknownType, ""), nil
	}
}

func (e *Enclave) handleConfigure(ctx context.Context, req Request) Response {
	kind, details := e.configure(ctx, req)
	if kind != "" {
		return errorResponse(kind, details)
	}
	return Response{
		"status":       "ok",
		"msg":          "configured",
		"timestamp":    nowISO(),
		"acb_enabled":  true,
		"oram_enabled": true,
	}
}

// decodeValue turns a store request's raw JSON value field into bytes:
// a JSON string is UTF-8-decoded, anything else (object, array,
// number, bool) is kept as its raw JSON text, exactly as received.
func decodeValue(raw json.RawMessage) ([]byte, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s), true
	}
	return []byte(raw), true
}

func (e *Enclave) handleStore(req Request) (Response, error) {
	if !e.Configured() {
		return errorResponse(KindNotConfigured, "call configure first"), nil
	}

	value, ok := decodeValue(req.Value)
	if req.Key == "" || !ok {
		return errorResponse(KindMissingParams, "key and value required"), nil
	}

	result, err := e.router.Store(req.Key, value)
	if err != nil {
		if isFatal(err) {
			return nil, fmt.Errorf("store %q: %w", req.Key, err)
		}
		return errorResponse(KindInternalError, err.Error()), nil
	}

	resp := Response{
		"status":    "ok",
		"msg":       "stored",
		"key":       req.Key,
		"routed_to": result.RoutedTo,
		"reason":    result.Reason,
	}
	mergeMetrics(resp, result.Metrics)
	return resp, nil
}

func (e *Enclave) handleRetrieve(req Request) (Response, error) {
	if !e.Configured() {
		return errorResponse(KindNotConfigured, "call configure first"), nil
	}
	if req.Key == "" {
		return errorResponse(KindMissingParams, "key required"), nil
	}

	data, result, err := e.router.Retrieve(req.Key)
	if err != nil {
		if isFatal(err) {
			return nil, fmt.Errorf("retrieve %q: %w", req.Key, err)
		}
		return errorResponse(KindInternalError, err.Error()), nil
	}

	if data == nil {
		resp := Response{
			"status":      "ok",
			"msg":         "not_found",
			"key":         req.Key,
			"routed_from": result.RoutedFrom,
		}
		mergeMetrics(resp, result.Metrics)
		return resp, nil
	}

	resp := Response{
		"status":      "ok",
		"msg":         "retrieved",
		"key":         req.Key,
		"value":       encodeValue(data),
		"routed_from": result.RoutedFrom,
	}
	mergeMetrics(resp, result.Metrics)
	return resp, nil
}

// encodeValue decodes a retrieved block back into a wire value: try
// UTF-8, then try JSON on top of that, else fall back to base64.
func encodeValue(data []byte) any {
	if !utf8.Valid(data) {
		return base64.StdEncoding.EncodeToString(data)
	}
	var parsed any
	if err := json.Unmarshal(data, &parsed); err == nil {
		return parsed
	}
	return string(data)
}

func (e *Enclave) handleMetrics() (Response, error) {
	if !e.Configured() {
		return errorResponse(KindNotConfigured, ""), nil
	}
	m := e.router.GetMetrics()
	return Response{
		"status":        "ok",
		"msg":           "metrics",
		"routing":       m.Routing,
		"oram_pool":     m.OramPool,
		"standard_pool": m.StandardPool,
	}, nil
}

// mergeMetrics flattens an acb.Metrics value into the response map.
func mergeMetrics(resp Response, m any) {
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	var fields map[string]any
	if err := json.Unmarshal(b, &fields); err != nil {
		return
	}
	for k, v := range fields {
		resp[k] = v
	}
}
