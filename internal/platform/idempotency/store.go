package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL is how long completed claims are retained for replay.
const DefaultTTL = 24 * time.Hour

// ErrFingerprintMismatch is returned when an idempotency key is reused for a
// request with a different method, path, body, or requester.
var ErrFingerprintMismatch = errors.New("idempotency: key reused with a different request")

// Key identifies one idempotent request attempt. Keys are scoped per
// requester so two customers sending the same Idempotency-Key header value
// never collide.
type Key struct {
	Value     string
	Requester string
}

// DocID derives the stable storage identifier for the key.
func (k Key) DocID() string {
	requester := strings.TrimSpace(k.Requester)
	if requester == "" {
		requester = "anonymous"
	}
	return sha256Hex([]byte(requester + "\x00" + strings.TrimSpace(k.Value)))
}

// ClaimState reports what the caller should do with the request.
type ClaimState int

const (
	// ClaimAccepted means this is the first attempt; process the request.
	ClaimAccepted ClaimState = iota
	// ClaimReplay means a finished attempt exists; replay its response.
	ClaimReplay
	// ClaimInFlight means another attempt with this key is still running.
	ClaimInFlight
)

// Claim is the stored state for one idempotency key.
type Claim struct {
	Key         Key
	Fingerprint string
	Completed   bool
	Response    SavedResponse
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
}

// SavedResponse is the replayable HTTP response captured from the first
// execution of the request.
type SavedResponse struct {
	Status  int
	Headers map[string][]string
	Body    []byte
}

// ClaimResult pairs the state decision with the stored claim, when one exists.
type ClaimResult struct {
	State ClaimState
	Claim Claim
}

// Store persists idempotency claims.
type Store interface {
	Claim(ctx context.Context, key Key, fingerprint string, now time.Time, ttl time.Duration) (ClaimResult, error)
	Complete(ctx context.Context, key Key, fingerprint string, resp SavedResponse, now time.Time, ttl time.Duration) error
	Forget(ctx context.Context, key Key) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func sanitizeHeaders(header http.Header) map[string][]string {
	if len(header) == 0 {
		return nil
	}

	filtered := make(map[string][]string, len(header))
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if shouldOmitHeader(canonical) {
			continue
		}
		copied := make([]string, len(values))
		copy(copied, values)
		filtered[canonical] = copied
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}

// Hop-by-hop and transport-derived headers are recomputed on replay, never
// stored.
func shouldOmitHeader(name string) bool {
	switch strings.ToLower(name) {
	case "content-length", "date", "connection", "keep-alive", "proxy-authenticate", "proxy-authorization", "te", "trailers", "transfer-encoding", "upgrade":
		return true
	default:
		return false
	}
}

func headersFromSaved(values map[string][]string) http.Header {
	if len(values) == 0 {
		return http.Header{}
	}

	header := make(http.Header, len(values))
	for name, vals := range values {
		copied := make([]string, len(vals))
		copy(copied, vals)
		header[name] = copied
	}
	return header
}
