package reader

import (
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/objectfs/windowio/internal/cache"
	"github.com/objectfs/windowio/internal/metrics"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/types"
	"github.com/objectfs/windowio/pkg/utils"
	"github.com/objectfs/windowio/pkg/window"
)

// DefaultWindowSize is the window size used when Options leaves it unset.
const DefaultWindowSize = 4096

var logger = utils.GetLogger("reader")

// Options configures a windowed reader. A nil *Options means all defaults.
type Options struct {
	// WindowSize is the fixed size of every window. Zero selects DefaultWindowSize.
	WindowSize int

	// Cache holds materialized windows. When nil, finite sources get an LRUCache of
	// cache.DefaultCapacity windows and stream sources a two-level cache that spills to
	// a scratch file in OverflowDir.
	Cache window.Cache

	// OverflowDir is where the default stream cache keeps its scratch file.
	OverflowDir string

	// Factory creates windows. Nil selects window.DefaultFactory.
	Factory window.Factory

	// KeepOpen leaves the underlying source open when the reader is closed.
	KeepOpen bool

	// ReadAhead is how many windows past a sequential miss are materialized with it.
	// Only sources that can re-read a range read ahead. Zero disables read-ahead.
	ReadAhead int

	// Metrics receives reader and cache activity. Nil disables metrics.
	Metrics *metrics.Collector
}

// windowSource is the one capability a reader needs from its origin.
type windowSource interface {
	// kind names the source for metrics and logs.
	kind() string

	// createWindow reads the window starting at the aligned position, or returns nil
	// when there is no data there.
	createWindow(r *Reader, position int64) (*window.Window, error)

	// length returns the total number of bytes in the source.
	length(r *Reader) (int64, error)

	// knownLength returns the length when it is known without reading.
	knownLength() (int64, bool)

	close() error
}

// residentSource is a source that keeps its windows itself, so handing one out is not
// a materialization.
type residentSource interface {
	resident() bool
}

// Reader gives random access to a byte source through fixed-size windows kept in a
// cache. A Reader is not safe for concurrent use.
type Reader struct {
	id         uuid.UUID
	src        windowSource
	cache      window.Cache
	windowSize int
	factory    window.Factory
	metrics    *metrics.Collector
	keepOpen   bool
	closed     bool

	// readAhead and sequential drive read-ahead: a miss at sequential, the position
	// after the last window read from the source, counts as sequential access.
	readAhead  int
	sequential int64

	log *logrus.Entry
}

func newReader(src windowSource, opts *Options, defaultCache func(*Options) (window.Cache, error)) (*Reader, error) {
	if opts == nil {
		opts = &Options{}
	}

	size := opts.WindowSize
	if size == 0 {
		size = DefaultWindowSize
	}
	if size < 0 {
		return nil, wioerrors.InvalidArgument("reader", "window size %d must be positive", opts.WindowSize)
	}
	if opts.ReadAhead < 0 {
		return nil, wioerrors.InvalidArgument("reader", "read-ahead %d must not be negative", opts.ReadAhead)
	}

	c := opts.Cache
	if c == nil {
		var err error
		if c, err = defaultCache(opts); err != nil {
			return nil, err
		}
	}

	factory := opts.Factory
	if factory == nil {
		factory = window.DefaultFactory
	}

	id := uuid.New()
	r := &Reader{
		id:         id,
		src:        src,
		cache:      c,
		windowSize: size,
		factory:    factory,
		metrics:    opts.Metrics,
		keepOpen:   opts.KeepOpen,
		readAhead:  opts.ReadAhead,
		sequential: -1,
		log: logger.WithFields(logrus.Fields{
			"reader": id.String()[:8],
			"source": src.kind(),
		}),
	}
	r.log.Debugf("opened reader with window size %d", size)
	return r, nil
}

func lruCache(opts *Options) (window.Cache, error) {
	return cache.NewLRUCache(nil, opts.Metrics)
}

func streamCache(opts *Options) (window.Cache, error) {
	return cache.NewTwoLevelCache(&cache.TwoLevelConfig{
		Primary:  &cache.LRUConfig{Capacity: cache.DefaultCapacity},
		Overflow: &cache.OverflowConfig{Backend: cache.BackendFile, Directory: opts.OverflowDir},
		Policy:   cache.PolicySpill,
	}, opts.Metrics)
}

// ID returns the identifier used for this reader in errors and logs.
func (r *Reader) ID() string {
	return r.id.String()
}

// WindowSize returns the reader's window size.
func (r *Reader) WindowSize() int {
	return r.windowSize
}

// WindowOffset returns the offset of position within its window.
func (r *Reader) WindowOffset(position int64) int {
	return int(position % int64(r.windowSize))
}

// Window returns the window containing position, or nil when position is negative or
// past the end of the data.
func (r *Reader) Window(position int64) (*window.Window, error) {
	if err := r.checkOpen("window"); err != nil {
		return nil, err
	}
	if position < 0 || r.pastEnd(position) {
		return nil, nil
	}

	offset := r.WindowOffset(position)
	start := position - int64(offset)

	w, err := r.cache.Window(start)
	if err != nil {
		return nil, err
	}
	if w == nil {
		if w, err = r.materialize(start); err != nil || w == nil {
			return nil, err
		}
	}

	// The last window of a source may not reach position.
	if w.Length() <= offset {
		return nil, nil
	}
	return w, nil
}

// Read copies bytes starting at position into dst and returns how many were copied.
// It returns 0 and io.EOF when there is no data at position, including negative
// positions. A read that runs out of data part way returns the bytes copied and a nil
// error. On failure the bytes copied before the failure are reported with the error.
func (r *Reader) Read(position int64, dst []byte) (int, error) {
	if err := r.checkOpen("read"); err != nil {
		return 0, err
	}
	if position < 0 {
		return 0, io.EOF
	}

	want := len(dst)
	if rem := math.MaxInt64 - position; int64(want) > rem {
		want = int(rem)
	}
	if want == 0 {
		return 0, nil
	}

	total := 0
	for total < want {
		cursor := position + int64(total)
		if r.pastEnd(cursor) {
			break
		}
		offset := r.WindowOffset(cursor)
		start := cursor - int64(offset)

		n, err := r.cache.Read(start, offset, dst[total:want])
		if err != nil {
			r.metrics.RecordBytesRead(total + n)
			return total + n, err
		}

		if n == 0 {
			w, err := r.materialize(start)
			if err != nil {
				r.metrics.RecordBytesRead(total)
				return total, err
			}
			if w == nil {
				break
			}
			if n, err = w.Read(offset, dst[total:want]); err != nil {
				r.metrics.RecordBytesRead(total + n)
				return total + n, err
			}
			if n == 0 {
				break
			}
		}
		total += n
	}

	r.metrics.RecordBytesRead(total)
	if total == 0 {
		return 0, io.EOF
	}
	return total, nil
}

// ReadAt implements io.ReaderAt.
func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.Read(off, p)
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// ByteAt returns the byte at position. ok is false when there is no byte there.
func (r *Reader) ByteAt(position int64) (b byte, ok bool, err error) {
	w, err := r.Window(position)
	if err != nil || w == nil {
		return 0, false, err
	}
	b, err = w.Byte(r.WindowOffset(position))
	if err != nil {
		return 0, false, err
	}
	return b, true, nil
}

// Length returns the total number of bytes in the source. For stream sources this reads
// the rest of the stream.
func (r *Reader) Length() (int64, error) {
	if err := r.checkOpen("length"); err != nil {
		return 0, err
	}
	return r.src.length(r)
}

// SetWindowFactory selects how windows materialized from now on are retained.
func (r *Reader) SetWindowFactory(factory window.Factory) error {
	if factory == nil {
		return wioerrors.InvalidArgument("reader", "window factory must not be nil")
	}
	r.factory = factory
	return nil
}

// Stats returns the statistics of the reader's cache, when it keeps any.
func (r *Reader) Stats() types.CacheStats {
	if sp, ok := r.cache.(window.StatsProvider); ok {
		return sp.Stats()
	}
	return types.CacheStats{}
}

// Info describes the reader. Length is -1 when it is not known without reading.
func (r *Reader) Info() types.SourceInfo {
	info := types.SourceInfo{
		ID:         r.ID(),
		Kind:       r.src.kind(),
		WindowSize: r.windowSize,
		Length:     -1,
		Closed:     r.closed,
	}
	if n, known := r.src.knownLength(); known {
		info.Length = n
	}
	return info
}

// Close clears the cache and closes the source unless KeepOpen was set. Closing a
// closed reader does nothing.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	cacheErr := r.cache.Clear()
	if cacheErr != nil {
		r.log.Warnf("failed to clear cache: %v", cacheErr)
	}

	var srcErr error
	if !r.keepOpen {
		if srcErr = r.src.close(); srcErr != nil {
			r.log.Warnf("failed to close source: %v", srcErr)
		}
	}

	r.log.Debugf("closed reader")
	if cacheErr != nil {
		return cacheErr
	}
	return srcErr
}

// pastEnd reports whether position is known to be beyond the data.
func (r *Reader) pastEnd(position int64) bool {
	n, known := r.src.knownLength()
	return known && position >= n
}

func (r *Reader) checkOpen(op string) error {
	if !r.closed {
		return nil
	}
	return wioerrors.Newf(wioerrors.ErrCodeReaderClosed, "reader %s is closed", r.id).
		WithComponent("reader").
		WithOperation(op).
		WithContext("reader", r.id.String())
}

// materialize reads the window at start from the source and caches it.
func (r *Reader) materialize(start int64) (*window.Window, error) {
	w, err := r.src.createWindow(r, start)
	if err != nil || w == nil {
		return nil, err
	}
	if rs, ok := r.src.(residentSource); ok && rs.resident() {
		return w, r.cache.Add(w)
	}
	r.metrics.RecordWindowMaterialized(r.src.kind())
	r.log.Debugf("materialized window %d (%d bytes)", start, w.Length())

	if err := r.cache.Add(w); err != nil {
		return nil, err
	}

	sequential := start == r.sequential
	r.sequential = w.NextPosition()
	if sequential {
		r.prefetch(w)
	}
	return w, nil
}

// prefetch materializes up to readAhead windows after w that are not cached yet.
// Failures only end the read-ahead; the window that was asked for is already read.
func (r *Reader) prefetch(w *window.Window) {
	if r.readAhead == 0 {
		return
	}
	if _, ok := r.src.(*rangeSource); !ok {
		return
	}
	contains, _ := r.cache.(interface{ Contains(int64) bool })

	next := w.NextPosition()
	for range r.readAhead {
		if r.pastEnd(next) {
			return
		}
		if contains != nil && contains.Contains(next) {
			next += int64(r.windowSize)
			continue
		}
		ahead, err := r.src.createWindow(r, next)
		if err != nil {
			r.log.Debugf("read-ahead of window %d stopped: %v", next, err)
			return
		}
		if ahead == nil {
			return
		}
		if err := r.cache.Add(ahead); err != nil {
			r.log.Debugf("read-ahead of window %d stopped: %v", next, err)
			return
		}
		r.metrics.RecordPrefetch(r.src.kind())
		next = ahead.NextPosition()
		r.sequential = next
	}
}

// recovery wraps a source's re-read function with metrics and logging.
func (r *Reader) recovery(fn window.RecoveryFunc) window.RecoveryFunc {
	return func(position int64, buf []byte) (int, error) {
		n, err := fn(position, buf)
		r.metrics.RecordRecovery(err == nil)
		if err != nil {
			r.log.Warnf("failed to recover window %d: %v", position, err)
		} else {
			r.log.Debugf("recovered window %d", position)
		}
		return n, err
	}
}

func sourceError(kind string, position int64, cause error) error {
	return wioerrors.Newf(wioerrors.ErrCodeSourceRead, "failed to read %s source at %d", kind, position).
		WithComponent("reader").
		WithOperation("materialize").
		WithCause(cause)
}
