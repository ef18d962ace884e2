package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps claims in process memory. Useful for tests and local
// development; replay state is lost on restart.
type MemoryStore struct {
	mu     sync.Mutex
	claims map[string]Claim
}

// NewMemoryStore constructs an empty memory-backed idempotency store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{claims: make(map[string]Claim)}
}

// Claim implements the Store interface.
func (s *MemoryStore) Claim(_ context.Context, key Key, fingerprint string, now time.Time, ttl time.Duration) (ClaimResult, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.DocID()
	claim, ok := s.claims[id]
	if !ok || claimExpired(claim, now) {
		claim = Claim{
			Key:         key,
			Fingerprint: fingerprint,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		s.claims[id] = claim
		return ClaimResult{State: ClaimAccepted, Claim: claim}, nil
	}

	if claim.Fingerprint != fingerprint {
		return ClaimResult{}, ErrFingerprintMismatch
	}
	if claim.Completed {
		return ClaimResult{State: ClaimReplay, Claim: claim}, nil
	}
	return ClaimResult{State: ClaimInFlight, Claim: claim}, nil
}

// Complete implements the Store interface.
func (s *MemoryStore) Complete(_ context.Context, key Key, fingerprint string, resp SavedResponse, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.DocID()
	claim, ok := s.claims[id]
	if ok && claim.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}
	if !ok {
		claim = Claim{Key: key, Fingerprint: fingerprint, CreatedAt: now}
	}

	claim.Completed = true
	claim.Response = SavedResponse{
		Status:  resp.Status,
		Headers: resp.Headers,
	}
	if len(resp.Body) > 0 {
		claim.Response.Body = append([]byte(nil), resp.Body...)
	}
	if claim.CreatedAt.IsZero() {
		claim.CreatedAt = now
	}
	claim.UpdatedAt = now
	claim.ExpiresAt = now.Add(ttl)
	s.claims[id] = claim

	return nil
}

// Forget implements the Store interface.
func (s *MemoryStore) Forget(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.claims, key.DocID())
	return nil
}

// CleanupExpired implements the Store interface.
func (s *MemoryStore) CleanupExpired(_ context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.claims) {
		limit = len(s.claims)
	}

	removed := 0
	for id, claim := range s.claims {
		if !claimExpired(claim, now) {
			continue
		}
		delete(s.claims, id)
		removed++
		if removed >= limit {
			break
		}
	}

	return removed, nil
}

func claimExpired(claim Claim, now time.Time) bool {
	return !claim.ExpiresAt.IsZero() && !now.Before(claim.ExpiresAt)
}
