package reader

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/windowio/internal/cache"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
)

func newStream(t *testing.T, data []byte, opts *Options) *Reader {
	t.Helper()
	r, err := NewStreamReader(io.NopCloser(bytes.NewReader(data)), opts)
	require.NoError(t, err)
	return r
}

func TestStreamReader_RandomAccessWithDefaultCache(t *testing.T) {
	// 200 windows of 4 bytes, far more than the memory tier holds.
	data := groundTruth(800)
	dir := t.TempDir()
	r := newStream(t, data, &Options{WindowSize: 4, OverflowDir: dir})

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 2000; i++ {
		p := rng.Int63n(int64(len(data)) + 8)
		b, ok, err := r.ByteAt(p)
		require.NoError(t, err, "position %d", p)
		if p >= int64(len(data)) {
			assert.False(t, ok, "position %d", p)
			continue
		}
		require.True(t, ok, "position %d", p)
		require.Equal(t, data[p], b, "position %d", p)
	}

	// A backward bulk read crosses windows held by both tiers.
	buf := make([]byte, len(data))
	n, err := r.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, buf)

	require.NoError(t, r.Close())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "overflow storage must be removed on close")
}

func TestStreamReader_Length(t *testing.T) {
	data := groundTruth(25)
	r := newStream(t, data, &Options{WindowSize: 4, OverflowDir: t.TempDir()})
	defer r.Close()

	assert.Equal(t, int64(-1), r.Info().Length)

	b, ok, err := r.ByteAt(5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data[5], b)
	assert.Equal(t, int64(-1), r.Info().Length)

	length, err := r.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(25), length)
	assert.Equal(t, int64(25), r.Info().Length)
	assert.Equal(t, KindStream, r.Info().Kind)

	// Everything read while measuring is still reachable.
	for p := range data {
		b, ok, err := r.ByteAt(int64(p))
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, data[p], b)
	}

	n, err := r.Read(25, make([]byte, 4))
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamReader_WindowMissing(t *testing.T) {
	data := groundTruth(16)

	lru, err := cache.NewLRUCache(&cache.LRUConfig{Capacity: 1}, nil)
	require.NoError(t, err)

	tests := []struct {
		name  string
		cache func() *Options
	}{
		{"no cache", func() *Options { return &Options{WindowSize: 4, Cache: cache.NoCache{}} }},
		{"lru of one", func() *Options { return &Options{WindowSize: 4, Cache: lru} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newStream(t, data, tt.cache())
			defer r.Close()

			b, ok, err := r.ByteAt(9)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, data[9], b)

			_, ok, err = r.ByteAt(1)
			require.Error(t, err)
			assert.False(t, ok)
			assert.ErrorIs(t, err, wioerrors.ErrWindowMissing)
			assert.True(t, wioerrors.IsCategory(err, wioerrors.CategoryProgramming))

			var wioErr *wioerrors.WindowIOError
			require.True(t, errors.As(err, &wioErr))
			assert.Equal(t, r.ID(), wioErr.Context["reader"])
		})
	}
}

func TestStreamReader_Windows(t *testing.T) {
	data := groundTruth(10)
	r := newStream(t, data, &Options{WindowSize: 4, OverflowDir: t.TempDir()})
	defer r.Close()

	w, err := r.Window(9)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, int64(8), w.Position())
	assert.Equal(t, 2, w.Length())
	assert.False(t, w.Reclaimable())

	w, err = r.Window(10)
	require.NoError(t, err)
	assert.Nil(t, w)

	stats := r.Stats()
	assert.Equal(t, 3, stats.Windows)
}

func TestStreamReader_EmptyStream(t *testing.T) {
	r := newStream(t, nil, &Options{OverflowDir: t.TempDir()})
	defer r.Close()

	w, err := r.Window(0)
	require.NoError(t, err)
	assert.Nil(t, w)

	length, err := r.Length()
	require.NoError(t, err)
	assert.Zero(t, length)
}

type failingStream struct {
	data []byte
	err  error
}

func (f *failingStream) Read(p []byte) (int, error) {
	if len(f.data) == 0 {
		return 0, f.err
	}
	n := copy(p, f.data)
	f.data = f.data[n:]
	return n, nil
}

func TestStreamReader_SourceError(t *testing.T) {
	boom := errors.New("connection reset")
	src := &failingStream{data: groundTruth(6), err: boom}
	r, err := NewStreamReader(src, &Options{WindowSize: 4, Cache: cache.NoCache{}})
	require.NoError(t, err)
	defer r.Close()

	_, ok, err := r.ByteAt(1)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = r.ByteAt(5)
	require.Error(t, err)
	assert.ErrorIs(t, err, wioerrors.ErrSourceRead)
	assert.ErrorIs(t, err, boom)
}

// flakyStream hands out data in pieces of at most step bytes and fails once after
// failAfter bytes.
type flakyStream struct {
	data      []byte
	step      int
	failAfter int
	failed    bool
	served    int
}

func (f *flakyStream) Read(p []byte) (int, error) {
	if !f.failed && f.served == f.failAfter {
		f.failed = true
		return 0, errors.New("transient")
	}
	if len(f.data) == 0 {
		return 0, io.EOF
	}
	limit := min(len(p), f.step, len(f.data))
	if !f.failed {
		limit = min(limit, f.failAfter-f.served)
	}
	n := copy(p, f.data[:limit])
	f.data = f.data[n:]
	f.served += n
	return n, nil
}

func TestStreamReader_RetryAfterShortRead(t *testing.T) {
	data := groundTruth(20)
	src := &flakyStream{data: data, step: 3, failAfter: 3}
	r, err := NewStreamReader(src, &Options{WindowSize: 8})
	require.NoError(t, err)
	defer r.Close()

	_, _, err = r.ByteAt(0)
	require.ErrorIs(t, err, wioerrors.ErrSourceRead)

	// The three bytes taken before the failure still belong to the first window.
	for _, pos := range []int64{0, 3, 7, 8, 19} {
		b, ok, err := r.ByteAt(pos)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, data[pos], b, "position %d", pos)
	}

	length, err := r.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(20), length)
}

func TestStreamReader_LengthRetryAfterShortRead(t *testing.T) {
	data := groundTruth(20)
	src := &flakyStream{data: data, step: 5, failAfter: 10}
	r, err := NewStreamReader(src, &Options{WindowSize: 8})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Length()
	require.ErrorIs(t, err, wioerrors.ErrSourceRead)

	length, err := r.Length()
	require.NoError(t, err)
	assert.Equal(t, int64(20), length)

	buf := make([]byte, 20)
	n, err := r.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Equal(t, data, buf)
}

func TestNewStreamReader_Invalid(t *testing.T) {
	_, err := NewStreamReader(nil, nil)
	assert.ErrorIs(t, err, wioerrors.ErrInvalidArgument)
}
