package idempotency

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection  = "idempotency"
	defaultMaxAttempts = 5
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used to store claims.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts configures the transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore implements Store backed by Firestore. Claims are written
// transactionally so two racing requests with the same key cannot both be
// accepted.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

// NewFirestoreStore constructs a Firestore-backed idempotency store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

// Claim reserves the key for this request or reports the state of an
// existing claim.
func (s *FirestoreStore) Claim(ctx context.Context, key Key, fingerprint string, now time.Time, ttl time.Duration) (ClaimResult, error) {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(key.DocID())

	var result ClaimResult
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				doc := newClaimDocument(key, fingerprint, now, ttl)
				if err := tx.Set(ref, doc); err != nil {
					return err
				}
				result = ClaimResult{State: ClaimAccepted, Claim: doc.toClaim()}
				return nil
			}
			return err
		}

		var doc claimDocument
		if err := snap.DataTo(&doc); err != nil {
			return err
		}
		if doc.Fingerprint != fingerprint {
			return ErrFingerprintMismatch
		}

		if claimExpired(doc.toClaim(), now) {
			doc = newClaimDocument(key, fingerprint, now, ttl)
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			result = ClaimResult{State: ClaimAccepted, Claim: doc.toClaim()}
			return nil
		}

		if doc.Completed {
			result = ClaimResult{State: ClaimReplay, Claim: doc.toClaim()}
			return nil
		}
		result = ClaimResult{State: ClaimInFlight, Claim: doc.toClaim()}
		return nil
	}, firestore.MaxAttempts(s.attempts()))

	return result, err
}

// Complete stores the response so later attempts with the same key replay it.
func (s *FirestoreStore) Complete(ctx context.Context, key Key, fingerprint string, resp SavedResponse, now time.Time, ttl time.Duration) error {
	now = now.UTC()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	ref := s.client.Collection(s.collection).Doc(key.DocID())

	var bodyCopy []byte
	if len(resp.Body) > 0 {
		bodyCopy = append([]byte(nil), resp.Body...)
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		var doc claimDocument
		if err != nil {
			if status.Code(err) != codes.NotFound {
				return err
			}
			doc = newClaimDocument(key, fingerprint, now, ttl)
		} else {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
			if doc.Fingerprint != fingerprint {
				return ErrFingerprintMismatch
			}
			if doc.CreatedAt.IsZero() {
				doc.CreatedAt = now
			}
		}

		doc.Completed = true
		doc.ResponseStatus = resp.Status
		doc.ResponseHeaders = resp.Headers
		doc.ResponseBody = bodyCopy
		doc.UpdatedAt = now
		doc.ExpiresAt = now.Add(ttl)

		return tx.Set(ref, doc)
	}, firestore.MaxAttempts(s.attempts()))
}

// Forget drops the claim so the caller may retry from scratch.
func (s *FirestoreStore) Forget(ctx context.Context, key Key) error {
	ref := s.client.Collection(s.collection).Doc(key.DocID())
	_, err := ref.Delete(ctx)
	if status.Code(err) == codes.NotFound {
		return nil
	}
	return err
}

// CleanupExpired removes expired claims up to the provided limit.
func (s *FirestoreStore) CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	now = now.UTC()
	if limit <= 0 {
		limit = 100
	}

	query := s.client.Collection(s.collection).Where("expiresAt", "<=", now).Limit(limit)
	docs, err := query.Documents(ctx).GetAll()
	if err != nil {
		return 0, err
	}
	if len(docs) == 0 {
		return 0, nil
	}

	batch := s.client.Batch()
	for _, doc := range docs {
		batch.Delete(doc.Ref)
	}
	if _, err := batch.Commit(ctx); err != nil {
		return 0, err
	}

	return len(docs), nil
}

func (s *FirestoreStore) attempts() int {
	if s.maxAttempts <= 0 {
		return 1
	}
	return s.maxAttempts
}

type claimDocument struct {
	Key             string              `firestore:"key"`
	Requester       string              `firestore:"requester"`
	Fingerprint     string              `firestore:"fingerprint"`
	Completed       bool                `firestore:"completed"`
	ResponseStatus  int                 `firestore:"responseStatus"`
	ResponseHeaders map[string][]string `firestore:"responseHeaders"`
	ResponseBody    []byte              `firestore:"responseBody"`
	CreatedAt       time.Time           `firestore:"createdAt"`
	UpdatedAt       time.Time           `firestore:"updatedAt"`
	ExpiresAt       time.Time           `firestore:"expiresAt"`
}

func newClaimDocument(key Key, fingerprint string, now time.Time, ttl time.Duration) claimDocument {
	return claimDocument{
		Key:         key.Value,
		Requester:   key.Requester,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

func (d claimDocument) toClaim() Claim {
	return Claim{
		Key:         Key{Value: d.Key, Requester: d.Requester},
		Fingerprint: d.Fingerprint,
		Completed:   d.Completed,
		Response: SavedResponse{
			Status:  d.ResponseStatus,
			Headers: d.ResponseHeaders,
			Body:    d.ResponseBody,
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}
