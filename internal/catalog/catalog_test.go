package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidfetch/vidfetch/internal/resolver"
)

type fakeResolver struct {
	formats []resolver.Format
	err     error
}

func (f *fakeResolver) ListFormats(_ context.Context, _ string) ([]resolver.Format, error) {
	return f.formats, f.err
}

func (f *fakeResolver) Download(_ context.Context, _, _, _ string) error {
	return errors.New("not implemented")
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildFiltersByCeiling(t *testing.T) {
	r := &fakeResolver{formats: []resolver.Format{
		{ID: "137", Ext: "mp4", Height: 1080, Size: 3000},
		{ID: "22", Ext: "mp4", Height: 720, Size: 900},
		{ID: "140", Ext: "m4a", Size: 100},
	}}
	b := NewBuilder(testLogger(), r, 1000, false, 0)

	cat, err := b.Build(context.Background(), "https://example.com/watch?v=abc")
	require.NoError(t, err)

	require.Len(t, cat.Candidates, 3)
	assert.Equal(t, "22", cat.Candidates[0].ID)
	assert.Equal(t, "720p", cat.Candidates[0].Label)
	assert.Equal(t, "720p - mp4", cat.Candidates[0].ButtonLabel())
	assert.Equal(t, "140", cat.Candidates[1].ID)
	assert.Equal(t, "Audio", cat.Candidates[1].Label)
	// Synthetic best-audio candidate is always appended last.
	assert.Equal(t, resolver.BestAudio, cat.Candidates[2].ID)

	for _, c := range cat.Candidates {
		assert.LessOrEqual(t, c.Size, int64(1000))
	}
}

func TestBuildUnknownSizePolicy(t *testing.T) {
	formats := []resolver.Format{
		{ID: "nosize", Ext: "mp4", Height: 480},
		{ID: "sized", Ext: "mp4", Height: 360, Size: 10},
	}

	t.Run("rejected by default", func(t *testing.T) {
		b := NewBuilder(testLogger(), &fakeResolver{formats: formats}, 1000, false, 0)
		cat, err := b.Build(context.Background(), "https://example.com/v")
		require.NoError(t, err)
		require.Len(t, cat.Candidates, 2)
		assert.Equal(t, "sized", cat.Candidates[0].ID)
	})

	t.Run("admitted when configured", func(t *testing.T) {
		b := NewBuilder(testLogger(), &fakeResolver{formats: formats}, 1000, true, 0)
		cat, err := b.Build(context.Background(), "https://example.com/v")
		require.NoError(t, err)
		require.Len(t, cat.Candidates, 3)
		assert.Equal(t, "nosize", cat.Candidates[0].ID)
	})
}

func TestBuildResolverError(t *testing.T) {
	b := NewBuilder(testLogger(), &fakeResolver{err: errors.New("boom")}, 1000, false, 0)

	_, err := b.Build(context.Background(), "https://example.com/v")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestBuildNoFormats(t *testing.T) {
	b := NewBuilder(testLogger(), &fakeResolver{}, 1000, false, 0)

	_, err := b.Build(context.Background(), "https://example.com/v")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestBuildSingleEncodingScenario(t *testing.T) {
	// One fitting encoding yields two entries: the encoding plus the
	// synthetic audio candidate.
	r := &fakeResolver{formats: []resolver.Format{
		{ID: "22", Ext: "mp4", Height: 720, Size: 50 * 1024 * 1024},
	}}
	b := NewBuilder(testLogger(), r, 2*1024*1024*1024, false, 0)

	cat, err := b.Build(context.Background(), "https://example.com/v")
	require.NoError(t, err)
	require.Len(t, cat.Candidates, 2)
	assert.Equal(t, "22", cat.Candidates[0].ID)
	assert.Equal(t, resolver.BestAudio, cat.Candidates[1].ID)
}
