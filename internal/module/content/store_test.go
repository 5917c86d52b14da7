package content

import (
	"context"
	"sync"
	"testing"

	"github.com/pictora/server/internal/module/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockObjectStore implements ObjectStore in memory.
type MockObjectStore struct {
	mu       sync.Mutex
	objects  map[string][]byte
	metadata map[string]map[string]string
	puts     int
}

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{
		objects:  make(map[string][]byte),
		metadata: make(map[string]map[string]string),
	}
}

func (m *MockObjectStore) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MockObjectStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return data, nil
}

func (m *MockObjectStore) Put(_ context.Context, key string, data []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.metadata[key] = metadata
	m.puts++
	return nil
}

func (m *MockObjectStore) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.example.com/" + key, nil
}

func TestHashDeterministic(t *testing.T) {
	a := Hash([]byte("same bytes"))
	b := Hash([]byte("same bytes"))
	c := Hash([]byte("other bytes"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, "customers/c1", ScopeFor(identity.Identity{Kind: identity.KindCustomer, Value: "c1"}))
	assert.Equal(t, "temp/s1", ScopeFor(identity.Identity{Kind: identity.KindSession, Value: "s1"}))
	assert.Equal(t, "temp/anonymous", ScopeFor(identity.Identity{Kind: identity.KindAddress, Value: "10.0.0.1"}))
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "originals/customers/c1/abc123.jpg", OriginalPath("customers/c1", "abc123"))
	assert.Equal(t, "generated/temp/s1/abc123_van_gogh.jpg", GeneratedPath("temp/s1", "abc123", "van_gogh"))
}

func TestStoreOriginalIdempotent(t *testing.T) {
	objects := NewMockObjectStore()
	store := NewStore(objects, nil)
	ctx := context.Background()
	data := []byte("image bytes")

	url1, hash1, err := store.StoreOriginal(ctx, data, "customers/c1")
	require.NoError(t, err)

	url2, hash2, err := store.StoreOriginal(ctx, data, "customers/c1")
	require.NoError(t, err)

	// One stored object, identical references from both calls
	assert.Equal(t, 1, objects.puts)
	assert.Equal(t, url1, url2)
	assert.Equal(t, hash1, hash2)
	assert.Equal(t, Hash(data), hash1)
}

func TestStoreOriginalDistinctScopes(t *testing.T) {
	objects := NewMockObjectStore()
	store := NewStore(objects, nil)
	ctx := context.Background()
	data := []byte("image bytes")

	_, _, err := store.StoreOriginal(ctx, data, "customers/c1")
	require.NoError(t, err)
	_, _, err = store.StoreOriginal(ctx, data, "temp/anonymous")
	require.NoError(t, err)

	assert.Equal(t, 2, objects.puts)
}

func TestLookupGenerated(t *testing.T) {
	objects := NewMockObjectStore()
	store := NewStore(objects, nil)
	ctx := context.Background()

	hash := Hash([]byte("source"))

	_, ok, err := store.LookupGenerated(ctx, hash, "van_gogh", "customers/c1")
	require.NoError(t, err)
	assert.False(t, ok)

	url, err := store.StoreGenerated(ctx, []byte("stylized"), hash, "van_gogh", "customers/c1")
	require.NoError(t, err)

	got, ok, err := store.LookupGenerated(ctx, hash, "van_gogh", "customers/c1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, url, got)

	// Different style is a distinct artifact
	_, ok, err = store.LookupGenerated(ctx, hash, "monet", "customers/c1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreGeneratedMetadata(t *testing.T) {
	objects := NewMockObjectStore()
	store := NewStore(objects, nil)
	ctx := context.Background()

	hash := Hash([]byte("source"))
	_, err := store.StoreGenerated(ctx, []byte("stylized"), hash, "monet", "temp/s1")
	require.NoError(t, err)

	key := GeneratedPath("temp/s1", hash, "monet")
	meta := objects.metadata[key]
	require.NotNil(t, meta)
	assert.Equal(t, hash, meta[MetaSourceHash])
	assert.Equal(t, "monet", meta[MetaStyle])
	assert.Equal(t, "temp/s1", meta[MetaScope])
	assert.NotEmpty(t, meta[MetaCreatedAt])
}
