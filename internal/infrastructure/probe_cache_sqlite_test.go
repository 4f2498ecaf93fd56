package infrastructure

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/vidsplit-go/internal/domain"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) *SQLiteProbeCache {
	t.Helper()
	cache, err := NewSQLiteProbeCache(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func sampleMetadata(id string) *domain.VideoMetadata {
	h := 720
	size := int64(30 << 20)
	return &domain.VideoMetadata{
		ID:       id,
		Title:    "sample",
		Duration: 120,
		Formats: []domain.StreamFormat{
			{FormatID: "22", Ext: "mp4", Height: &h, Filesize: &size, VCodec: "avc1", ACodec: "mp4a"},
		},
	}
}

func TestSQLiteProbeCache_PutGet(t *testing.T) {
	cache := setupTestCache(t)
	url := "https://youtu.be/abc"

	miss, err := cache.Get(url, time.Hour)
	require.NoError(t, err)
	assert.Nil(t, miss)

	require.NoError(t, cache.Put(url, sampleMetadata("abc")))

	got, err := cache.Get(url, time.Hour)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "abc", got.ID)
	require.Len(t, got.Formats, 1)
	assert.Equal(t, 720, *got.Formats[0].Height)
	assert.Equal(t, int64(30<<20), *got.Formats[0].Filesize)

	require.NoError(t, cache.Put(url, sampleMetadata("abc2")))
	got, err = cache.Get(url, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "abc2", got.ID, "put replaces the previous entry")

	count, err := cache.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSQLiteProbeCache_Expiry(t *testing.T) {
	cache := setupTestCache(t)
	require.NoError(t, cache.Put("u1", sampleMetadata("a")))

	stale, err := cache.Get("u1", -time.Second)
	require.NoError(t, err)
	assert.Nil(t, stale)

	removed, err := cache.Prune(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

type countingProber struct {
	calls int
	meta  *domain.VideoMetadata
	err   error
}

func (p *countingProber) Probe(context.Context, string) (*domain.VideoMetadata, error) {
	p.calls++
	return p.meta, p.err
}

func TestCachingProber(t *testing.T) {
	cache := setupTestCache(t)
	backend := &countingProber{meta: sampleMetadata("abc")}
	prober := NewCachingProber(backend, cache, time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		meta, err := prober.Probe(context.Background(), "https://youtu.be/abc")
		require.NoError(t, err)
		assert.Equal(t, "abc", meta.ID)
	}
	assert.Equal(t, 1, backend.calls)
}

func TestCachingProber_ErrorsAreNotCached(t *testing.T) {
	cache := setupTestCache(t)
	backend := &countingProber{err: domain.ErrMetadataProbeFailed}
	prober := NewCachingProber(backend, cache, time.Hour, zap.NewNop())

	_, err := prober.Probe(context.Background(), "u")
	assert.True(t, errors.Is(err, domain.ErrMetadataProbeFailed))
	_, err = prober.Probe(context.Background(), "u")
	assert.Error(t, err)
	assert.Equal(t, 2, backend.calls)
}
