package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/pictora/server/internal/module/identity"
	"go.uber.org/zap"
)

// ErrObjectNotFound indicates the object was not found.
var ErrObjectNotFound = errors.New("object not found")

// Object metadata keys attached to generated artifacts.
const (
	MetaSourceHash = "source-hash"
	MetaStyle      = "style"
	MetaScope      = "scope"
	MetaCreatedAt  = "created-at"
)

// ObjectStore is the backing object storage for originals and generated
// artifacts. Implementations must be multi-writer safe.
type ObjectStore interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	URL(ctx context.Context, key string) (string, error)
}

// Store is a content-hash keyed store for uploaded originals and generated
// results. Objects are written once per distinct path and never mutated;
// expiry is the object store's TTL policy.
type Store struct {
	objects ObjectStore
	logger  *zap.Logger
}

// NewStore creates a content-addressed store over the given object storage.
func NewStore(objects ObjectStore, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{objects: objects, logger: logger}
}

// Hash returns the SHA-256 hex digest of the raw decoded bytes. Identical
// bytes hash identically regardless of any request envelope metadata.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ScopeFor returns the storage scope for an identity.
func ScopeFor(id identity.Identity) string {
	switch id.Kind {
	case identity.KindCustomer:
		return "customers/" + id.Value
	case identity.KindSession:
		return "temp/" + id.Value
	default:
		return "temp/anonymous"
	}
}

// OriginalPath returns the object key for an uploaded original.
func OriginalPath(scope, hash string) string {
	return fmt.Sprintf("originals/%s/%s.jpg", scope, hash)
}

// GeneratedPath returns the object key for a generated artifact.
func GeneratedPath(scope, hash, style string) string {
	return fmt.Sprintf("generated/%s/%s_%s.jpg", scope, hash, style)
}

// LookupGenerated checks for an existing generated artifact. This is the
// cache-hit fast path and runs before any quota or generator cost.
func (s *Store) LookupGenerated(ctx context.Context, hash, style, scope string) (string, bool, error) {
	key := GeneratedPath(scope, hash, style)

	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("check generated %s: %w", key, err)
	}
	if !exists {
		return "", false, nil
	}

	url, err := s.objects.URL(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("url for %s: %w", key, err)
	}
	return url, true, nil
}

// StoreOriginal writes an uploaded original if it is not already present and
// returns its url and content hash. Repeated calls with identical bytes are
// no-ops that return the existing object's reference.
func (s *Store) StoreOriginal(ctx context.Context, data []byte, scope string) (string, string, error) {
	hash := Hash(data)
	key := OriginalPath(scope, hash)

	exists, err := s.objects.Exists(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("check original %s: %w", key, err)
	}
	if !exists {
		meta := map[string]string{
			MetaScope:     scope,
			MetaCreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := s.objects.Put(ctx, key, data, meta); err != nil {
			return "", "", fmt.Errorf("put original %s: %w", key, err)
		}
		s.logger.Debug("stored original", zap.String("key", key), zap.Int("size", len(data)))
	}

	url, err := s.objects.URL(ctx, key)
	if err != nil {
		return "", "", fmt.Errorf("url for %s: %w", key, err)
	}
	return url, hash, nil
}

// StoreGenerated writes a generated artifact, tagged with its source hash
// and style so later lookups can dedup against it.
func (s *Store) StoreGenerated(ctx context.Context, data []byte, hash, style, scope string) (string, error) {
	key := GeneratedPath(scope, hash, style)

	meta := map[string]string{
		MetaSourceHash: hash,
		MetaStyle:      style,
		MetaScope:      scope,
		MetaCreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.objects.Put(ctx, key, data, meta); err != nil {
		return "", fmt.Errorf("put generated %s: %w", key, err)
	}
	s.logger.Debug("stored generated artifact",
		zap.String("key", key),
		zap.String("style", style),
		zap.Int("size", len(data)),
	)

	url, err := s.objects.URL(ctx, key)
	if err != nil {
		return "", fmt.Errorf("url for %s: %w", key, err)
	}
	return url, nil
}

// OriginalURL returns the url for a previously stored original.
func (s *Store) OriginalURL(ctx context.Context, scope, hash string) (string, error) {
	return s.objects.URL(ctx, OriginalPath(scope, hash))
}
