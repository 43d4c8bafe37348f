package cache

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreConfig holds configuration for the Firestore backed cache.
type FirestoreConfig struct {
	CollectionName string
}

// firestoreEntry is the document stored per key.
type firestoreEntry struct {
	Payload       []byte    `firestore:"payload"`
	ExpiresAt     time.Time `firestore:"expiresAt"`
	SlidingMillis int64     `firestore:"slidingMillis"`
	Priority      int       `firestore:"priority"`
}

// FirestoreCache is an implementation of Cache using one Firestore document per key.
// It is suitable for low volume deployments where a dedicated Redis instance
// may be overkill. Expired documents read as absent and are deleted lazily.
type FirestoreCache struct {
	client     *firestore.Client
	collection string
	logger     zerolog.Logger
	now        func() time.Time
}

var _ Cache = (*FirestoreCache)(nil)

// NewFirestoreCache creates a new FirestoreCache.
func NewFirestoreCache(client *firestore.Client, cfg *FirestoreConfig, logger zerolog.Logger) (*FirestoreCache, error) {
	if client == nil {
		return nil, errors.New("firestore client cannot be nil")
	}
	if cfg.CollectionName == "" {
		return nil, errors.New("firestore cache collection name cannot be empty")
	}

	logger.Info().Str("collection", cfg.CollectionName).Msg("FirestoreCache initialized.")

	return &FirestoreCache{
		client:     client,
		collection: cfg.CollectionName,
		logger:     logger.With().Str("component", "FirestoreCache").Logger(),
		now:        time.Now,
	}, nil
}

// docID maps a cache key to a valid document id.
func docID(key string) string {
	return strings.ReplaceAll(key, "/", "%2F")
}

func (c *FirestoreCache) doc(key string) *firestore.DocumentRef {
	return c.client.Collection(c.collection).Doc(docID(key))
}

// Set creates or overwrites the document for key.
func (c *FirestoreCache) Set(ctx context.Context, key string, value []byte, policy EntryPolicy) error {
	if err := policy.Validate(); err != nil {
		return err
	}
	entry := firestoreEntry{
		Payload:   value,
		ExpiresAt: policy.deadline(c.now()),
		Priority:  int(policy.Priority),
	}
	if policy.IsSliding() {
		entry.SlidingMillis = policy.TTL.Milliseconds()
	}
	if _, err := c.doc(key).Set(ctx, entry); err != nil {
		return errors.Wrapf(err, "firestore set for %s", key)
	}
	c.logger.Debug().Str("key", key).Msg("Stored entry in Firestore.")
	return nil
}

// TryGet reads the document for key, treating expired documents as absent.
func (c *FirestoreCache) TryGet(ctx context.Context, key string) (Result[[]byte], error) {
	snap, err := c.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Absent[[]byte](), nil
		}
		return Absent[[]byte](), errors.Wrapf(err, "firestore get for %s", key)
	}

	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return Absent[[]byte](), errors.Mark(errors.Wrapf(err, "firestore DataTo for %s", key), ErrCorruptEntry)
	}

	now := c.now()
	if !now.Before(entry.ExpiresAt) {
		if _, err := c.doc(key).Delete(ctx); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to delete expired cache document.")
		}
		return Absent[[]byte](), nil
	}

	if entry.SlidingMillis > 0 {
		renewed := now.Add(time.Duration(entry.SlidingMillis) * time.Millisecond)
		if _, err := c.doc(key).Update(ctx, []firestore.Update{{Path: "expiresAt", Value: renewed}}); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("Failed to renew sliding expiration.")
		}
	}
	return Present(entry.Payload), nil
}

// Remove deletes the document for key.
func (c *FirestoreCache) Remove(ctx context.Context, key string) error {
	if _, err := c.doc(key).Delete(ctx); err != nil {
		// It's often acceptable to ignore "not found" errors on delete.
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return errors.Wrapf(err, "firestore delete for %s", key)
	}
	return nil
}

// Close is a no-op as the Firestore client's lifecycle is managed externally.
func (c *FirestoreCache) Close() error {
	return nil
}
