package reader

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/objectfs/windowio/internal/cache"
	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/window"
)

// groundTruth returns n bytes that differ from their neighbours and from their index.
func groundTruth(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

type constructor func(t *testing.T, data []byte, opts *Options) *Reader

// finiteSources returns one constructor per finite, rewindable source kind.
func finiteSources() map[string]constructor {
	return map[string]constructor{
		KindFile: func(t *testing.T, data []byte, opts *Options) *Reader {
			r, err := NewFileReader(writeTemp(t, data), opts)
			require.NoError(t, err)
			return r
		},
		KindSeekable: func(t *testing.T, data []byte, opts *Options) *Reader {
			r, err := NewSeekableReader(bytes.NewReader(data), opts)
			require.NoError(t, err)
			return r
		},
		KindRange: func(t *testing.T, data []byte, opts *Options) *Reader {
			r, err := NewReaderAtReader(bytes.NewReader(data), int64(len(data)), opts)
			require.NoError(t, err)
			return r
		},
	}
}

func TestReader_RoundTrip(t *testing.T) {
	data := groundTruth(37)

	for name, open := range finiteSources() {
		t.Run(name, func(t *testing.T) {
			for size := 1; size <= len(data)+2; size++ {
				r := open(t, data, &Options{WindowSize: size})
				for p := range data {
					b, ok, err := r.ByteAt(int64(p))
					require.NoError(t, err)
					require.True(t, ok, "window size %d position %d", size, p)
					require.Equal(t, data[p], b, "window size %d position %d", size, p)
				}
				_, ok, err := r.ByteAt(int64(len(data)))
				require.NoError(t, err)
				assert.False(t, ok)
				require.NoError(t, r.Close())
			}
		})
	}
}

func TestReader_WindowAlignment(t *testing.T) {
	data := groundTruth(50)

	for name, open := range finiteSources() {
		t.Run(name, func(t *testing.T) {
			r := open(t, data, &Options{WindowSize: 8})
			defer r.Close()

			for p := int64(-2); p < 60; p++ {
				w, err := r.Window(p)
				require.NoError(t, err)
				if p < 0 || p >= int64(len(data)) {
					assert.Nil(t, w, "position %d", p)
					continue
				}
				require.NotNil(t, w, "position %d", p)
				assert.Equal(t, p-p%8, w.Position())
				assert.LessOrEqual(t, w.Position(), p)
				assert.GreaterOrEqual(t, w.EndPosition(), p)
				assert.Equal(t, int(p%8), r.WindowOffset(p))
			}
		})
	}
}

func TestReader_BoundaryScenarios(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	for name, open := range finiteSources() {
		t.Run(name, func(t *testing.T) {
			r := open(t, data, &Options{WindowSize: 4})
			defer r.Close()

			w, err := r.Window(3)
			require.NoError(t, err)
			require.NotNil(t, w)
			assert.Equal(t, int64(0), w.Position())
			buf, err := w.Array()
			require.NoError(t, err)
			assert.Equal(t, []byte{0, 1, 2, 3}, buf[:w.Length()])

			w, err = r.Window(4)
			require.NoError(t, err)
			require.NotNil(t, w)
			assert.Equal(t, int64(4), w.Position())
			assert.Equal(t, int64(8), w.NextPosition())

			w, err = r.Window(10)
			require.NoError(t, err)
			assert.Nil(t, w)

			// Inside the last window's slot but past its data.
			w, err = r.Window(11)
			require.NoError(t, err)
			assert.Nil(t, w)

			dst := make([]byte, 10)
			n, err := r.Read(8, dst)
			require.NoError(t, err)
			assert.Equal(t, 2, n)
			assert.Equal(t, []byte{8, 9}, dst[:n])

			n, err = r.Read(10, dst)
			assert.Equal(t, 0, n)
			assert.ErrorIs(t, err, io.EOF)

			n, err = r.Read(-1, dst)
			assert.Equal(t, 0, n)
			assert.ErrorIs(t, err, io.EOF)

			_, ok, err := r.ByteAt(-1)
			require.NoError(t, err)
			assert.False(t, ok)

			length, err := r.Length()
			require.NoError(t, err)
			assert.Equal(t, int64(10), length)
		})
	}
}

func TestReader_BulkReadAcrossBoundary(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		// 4090..4105 is all the data there is.
		{name: "ten byte remainder", size: DefaultWindowSize + 10, want: 16},
		{name: "twenty byte remainder", size: DefaultWindowSize + 20, want: 20},
	}

	for _, tt := range tests {
		data := groundTruth(tt.size)
		for name, open := range finiteSources() {
			t.Run(tt.name+"/"+name, func(t *testing.T) {
				r := open(t, data, nil)
				defer r.Close()
				assert.Equal(t, DefaultWindowSize, r.WindowSize())

				dst := make([]byte, 20)
				n, err := r.Read(4090, dst)
				require.NoError(t, err)
				assert.Equal(t, tt.want, n)
				assert.Equal(t, data[4090:4090+tt.want], dst[:n])

				// Both windows are cached now; the second read is served by the cache.
				before := r.Stats()
				clear(dst)
				n, err = r.Read(4090, dst)
				require.NoError(t, err)
				assert.Equal(t, tt.want, n)
				assert.Equal(t, data[4090:4090+tt.want], dst[:n])
				assert.Greater(t, r.Stats().Hits, before.Hits)
				assert.Equal(t, uint64(0), r.Stats().Misses-before.Misses)
				assert.Equal(t, 2, r.Stats().Windows)
			})
		}
	}
}

func TestReader_ReadAt(t *testing.T) {
	data := groundTruth(10)
	r, err := NewReaderAtReader(bytes.NewReader(data), 10, &Options{WindowSize: 4})
	require.NoError(t, err)
	defer r.Close()

	var _ io.ReaderAt = r

	dst := make([]byte, 4)
	n, err := r.ReadAt(dst, 3)
	require.NoError(t, err)
	assert.Equal(t, data[3:7], dst[:n])

	n, err = r.ReadAt(dst, 8)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReader_IdempotentCaching(t *testing.T) {
	data := groundTruth(64)
	r := finiteSources()[KindFile](t, data, &Options{WindowSize: 16, Factory: window.ReclaimableFactory{}})
	defer r.Close()

	first, err := r.Window(20)
	require.NoError(t, err)
	require.True(t, first.Reclaimable())
	want, err := first.Array()
	require.NoError(t, err)
	want = append([]byte(nil), want[:first.Length()]...)

	first.Release()

	second, err := r.Window(20)
	require.NoError(t, err)
	got, err := second.Array()
	require.NoError(t, err)
	assert.Equal(t, want, got[:second.Length()])
	assert.Equal(t, data[16:32], got[:second.Length()])
	// A collection between the calls can reclaim the buffer again.
	assert.GreaterOrEqual(t, second.Recoveries(), 1)
}

// flakyReaderAt fails every read once broken is set.
type flakyReaderAt struct {
	data   []byte
	broken bool
}

func (f *flakyReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if f.broken {
		return 0, io.ErrClosedPipe
	}
	return bytes.NewReader(f.data).ReadAt(p, off)
}

func TestReader_RecoveryFailureIsAnError(t *testing.T) {
	src := &flakyReaderAt{data: groundTruth(32)}
	r, err := NewReaderAtReader(src, 32, &Options{WindowSize: 8, Factory: window.ReclaimableFactory{}})
	require.NoError(t, err)
	defer r.Close()

	w, err := r.Window(0)
	require.NoError(t, err)
	w.Release()
	src.broken = true

	_, ok, err := r.ByteAt(3)
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, wioerrors.ErrRecoveryFailed)
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	n, err := r.Read(0, make([]byte, 4))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, wioerrors.ErrRecoveryFailed)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestReader_SourceReadError(t *testing.T) {
	src := &flakyReaderAt{data: groundTruth(32), broken: true}
	r, err := NewReaderAtReader(src, 32, &Options{WindowSize: 8})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Window(9)
	assert.ErrorIs(t, err, wioerrors.ErrSourceRead)
	assert.True(t, wioerrors.IsCategory(err, wioerrors.CategoryIO))

	src.broken = false
	w, err := r.Window(9)
	require.NoError(t, err)
	assert.Equal(t, int64(8), w.Position())
}

func TestReader_PartialReadStopsOnError(t *testing.T) {
	src := &flakyReaderAt{data: groundTruth(32)}
	r, err := NewReaderAtReader(src, 32, &Options{WindowSize: 8})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Window(0)
	require.NoError(t, err)
	src.broken = true

	dst := make([]byte, 16)
	n, err := r.Read(4, dst)
	assert.Equal(t, 4, n, "bytes from the cached window are kept")
	assert.ErrorIs(t, err, wioerrors.ErrSourceRead)
	assert.Equal(t, src.data[4:8], dst[:4])
}

// trackingCloser records whether Close was called.
type trackingCloser struct {
	*bytes.Reader
	closed bool
}

func (c *trackingCloser) Close() error {
	c.closed = true
	return nil
}

func TestReader_Close(t *testing.T) {
	t.Run("operations fail once closed", func(t *testing.T) {
		src := &trackingCloser{Reader: bytes.NewReader(groundTruth(16))}
		r, err := NewSeekableReader(src, &Options{WindowSize: 4})
		require.NoError(t, err)

		require.NoError(t, r.Close())
		require.NoError(t, r.Close(), "close is idempotent")
		assert.True(t, src.closed)
		assert.True(t, r.Info().Closed)

		_, err = r.Window(0)
		assert.ErrorIs(t, err, wioerrors.ErrReaderClosed)
		assert.True(t, wioerrors.IsCategory(err, wioerrors.CategoryIO))
		assert.Contains(t, err.Error(), r.ID())

		_, err = r.Read(0, make([]byte, 1))
		assert.ErrorIs(t, err, wioerrors.ErrReaderClosed)
		_, _, err = r.ByteAt(0)
		assert.ErrorIs(t, err, wioerrors.ErrReaderClosed)
		_, err = r.Length()
		assert.ErrorIs(t, err, wioerrors.ErrReaderClosed)
	})

	t.Run("keep open", func(t *testing.T) {
		src := &trackingCloser{Reader: bytes.NewReader(groundTruth(16))}
		r, err := NewSeekableReader(src, &Options{KeepOpen: true})
		require.NoError(t, err)
		require.NoError(t, r.Close())
		assert.False(t, src.closed)
	})

	t.Run("clears the cache", func(t *testing.T) {
		lru, err := cache.NewLRUCache(&cache.LRUConfig{Capacity: 4}, nil)
		require.NoError(t, err)
		r, err := NewReaderAtReader(bytes.NewReader(groundTruth(16)), 16, &Options{WindowSize: 4, Cache: lru})
		require.NoError(t, err)

		_, err = r.Read(0, make([]byte, 16))
		require.NoError(t, err)
		assert.Equal(t, 4, lru.Len())

		require.NoError(t, r.Close())
		assert.Equal(t, 0, lru.Len())
	})
}

func TestReader_Options(t *testing.T) {
	_, err := NewReaderAtReader(bytes.NewReader(nil), 0, &Options{WindowSize: -1})
	assert.ErrorIs(t, err, wioerrors.ErrInvalidArgument)

	_, err = NewReaderAtReader(bytes.NewReader(nil), 0, &Options{ReadAhead: -1})
	assert.ErrorIs(t, err, wioerrors.ErrInvalidArgument)

	_, err = NewReaderAtReader(nil, 0, nil)
	assert.ErrorIs(t, err, wioerrors.ErrInvalidArgument)

	_, err = NewReaderAtReader(bytes.NewReader(nil), -5, nil)
	assert.ErrorIs(t, err, wioerrors.ErrInvalidArgument)

	_, err = NewFileReader("", nil)
	assert.ErrorIs(t, err, wioerrors.ErrInvalidArgument)

	_, err = NewFileReader(filepath.Join(t.TempDir(), "missing"), nil)
	assert.ErrorIs(t, err, wioerrors.ErrSourceRead)

	r, err := NewReaderAtReader(bytes.NewReader(groundTruth(8)), 8, nil)
	require.NoError(t, err)
	defer r.Close()
	assert.ErrorIs(t, r.SetWindowFactory(nil), wioerrors.ErrInvalidArgument)
	require.NoError(t, r.SetWindowFactory(window.ReclaimableFactory{}))

	w, err := r.Window(0)
	require.NoError(t, err)
	assert.True(t, w.Reclaimable())
	assert.Equal(t, cache.DefaultCapacity, r.Stats().Capacity)

	info := r.Info()
	assert.Equal(t, KindRange, info.Kind)
	assert.Equal(t, int64(8), info.Length)
	assert.Equal(t, r.ID(), info.ID)
}

func TestReader_LRUEvictionThroughReader(t *testing.T) {
	data := groundTruth(64)
	lru, err := cache.NewLRUCache(&cache.LRUConfig{Capacity: 2}, nil)
	require.NoError(t, err)
	r := finiteSources()[KindSeekable](t, data, &Options{WindowSize: 8, Cache: lru})
	defer r.Close()

	for p := int64(0); p < 64; p += 8 {
		b, ok, err := r.ByteAt(p)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, data[p], b)
		require.LessOrEqual(t, lru.Len(), 2)
	}

	// Evicted windows of a rewindable source are simply read again.
	b, ok, err := r.ByteAt(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, data[1], b)
}

// countingReaderAt records the offset of every read.
type countingReaderAt struct {
	data    []byte
	offsets []int64
}

func (c *countingReaderAt) ReadAt(p []byte, off int64) (int, error) {
	c.offsets = append(c.offsets, off)
	return bytes.NewReader(c.data).ReadAt(p, off)
}

func TestReader_ReadAhead(t *testing.T) {
	data := groundTruth(40)
	src := &countingReaderAt{data: data}
	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "readahead"})
	require.NoError(t, err)

	r, err := NewReaderAtReader(src, 40, &Options{WindowSize: 4, ReadAhead: 2, Metrics: collector})
	require.NoError(t, err)
	defer r.Close()

	byteAt := func(pos int64) {
		t.Helper()
		b, ok, err := r.ByteAt(pos)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, data[pos], b)
	}

	// A first miss says nothing about the access pattern.
	byteAt(0)
	assert.Equal(t, []int64{0}, src.offsets)

	// The next window in order is sequential and brings two more with it.
	byteAt(4)
	assert.Equal(t, []int64{0, 4, 8, 12}, src.offsets)
	byteAt(8)
	byteAt(12)
	assert.Len(t, src.offsets, 4)

	// Reading on past the prefetched windows stays sequential.
	byteAt(16)
	assert.Equal(t, []int64{0, 4, 8, 12, 16, 20, 24}, src.offsets)

	// A jump is a plain miss.
	byteAt(36)
	assert.Equal(t, []int64{0, 4, 8, 12, 16, 20, 24, 36}, src.offsets)

	expected := `
# HELP readahead_windows_prefetched_total Total number of windows read ahead of sequential access
# TYPE readahead_windows_prefetched_total counter
readahead_windows_prefetched_total{source="range"} 4
`
	assert.NoError(t, testutil.GatherAndCompare(collector.Registry(), strings.NewReader(expected),
		"readahead_windows_prefetched_total"))
}

func TestReader_ReadAheadStopsAtEnd(t *testing.T) {
	data := groundTruth(10)
	src := &countingReaderAt{data: data}
	r, err := NewReaderAtReader(src, 10, &Options{WindowSize: 4, ReadAhead: 5})
	require.NoError(t, err)
	defer r.Close()

	buf := make([]byte, 10)
	n, err := r.Read(0, buf)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, data, buf)
	assert.Equal(t, []int64{0, 4, 8}, src.offsets)
}

func TestBytesReader_HeldWindowIsNotMaterialized(t *testing.T) {
	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "held"})
	require.NoError(t, err)

	r, err := NewBytesReader(groundTruth(16))
	require.NoError(t, err)
	r.metrics = collector
	defer r.Close()

	for range 3 {
		_, err := r.Window(5)
		require.NoError(t, err)
		_, err = r.Read(0, make([]byte, 16))
		require.NoError(t, err)
	}
	count, err := testutil.GatherAndCount(collector.Registry(), "held_windows_materialized_total")
	require.NoError(t, err)
	assert.Zero(t, count)
}
