package reader

import (
	"errors"
	"io"
	"os"

	pkgerrors "github.com/pkg/errors"
	"golang.org/x/text/encoding"

	"github.com/objectfs/windowio/internal/cache"
	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/window"
)

// Source kinds reported in metrics and SourceInfo.
const (
	KindFile     = "file"
	KindSeekable = "seekable"
	KindRange    = "range"
	KindBytes    = "bytes"
	KindStream   = "stream"
)

// rangeSource is a finite source that can read any byte range at any time. Its windows
// can be recovered after the collector reclaims them.
type rangeSource struct {
	name   string
	ra     io.ReaderAt
	size   int64
	closer io.Closer
}

func (s *rangeSource) kind() string {
	return s.name
}

func (s *rangeSource) createWindow(r *Reader, position int64) (*window.Window, error) {
	if position >= s.size {
		return nil, nil
	}

	buf := make([]byte, r.windowSize)
	n, err := s.readAt(position, buf)
	if err != nil {
		return nil, sourceError(s.name, position, err)
	}
	if n == 0 {
		return nil, nil
	}
	return r.factory.Create(buf, position, n, r.recovery(s.readAt))
}

// readAt fills buf from position, treating a short read at the end as success.
func (s *rangeSource) readAt(position int64, buf []byte) (int, error) {
	if rem := s.size - position; rem < int64(len(buf)) {
		buf = buf[:max(rem, 0)]
	}
	n, err := s.ra.ReadAt(buf, position)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return n, pkgerrors.Wrapf(err, "read %d bytes at %d", len(buf), position)
	}
	return n, nil
}

func (s *rangeSource) length(*Reader) (int64, error) {
	return s.size, nil
}

func (s *rangeSource) knownLength() (int64, bool) {
	return s.size, true
}

func (s *rangeSource) close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return wioerrors.Newf(wioerrors.ErrCodeSourceClose, "failed to close %s source", s.name).
			WithComponent("reader").
			WithCause(err)
	}
	return nil
}

// NewFileReader opens the file at path and reads it through windows. The file is
// closed with the reader unless KeepOpen is set.
func NewFileReader(path string, opts *Options) (*Reader, error) {
	if path == "" {
		return nil, wioerrors.InvalidArgument("reader", "file path must not be empty")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, wioerrors.Newf(wioerrors.ErrCodeSourceRead, "failed to open %s", path).
			WithComponent("reader").
			WithCause(err)
	}

	r, err := NewOSFileReader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return r, nil
}

// NewOSFileReader reads an open file through windows. The length is taken from the
// file's metadata when the reader is created.
func NewOSFileReader(f *os.File, opts *Options) (*Reader, error) {
	if f == nil {
		return nil, wioerrors.InvalidArgument("reader", "file must not be nil")
	}
	info, err := f.Stat()
	if err != nil {
		return nil, wioerrors.Newf(wioerrors.ErrCodeSourceRead, "failed to stat %s", f.Name()).
			WithComponent("reader").
			WithCause(err)
	}

	src := &rangeSource{name: KindFile, ra: f, size: info.Size(), closer: f}
	return newReader(src, opts, lruCache)
}

// NewReaderAtReader reads size bytes of any ranged source, such as an object store
// client, through windows. If ra is an io.Closer it is closed with the reader unless
// KeepOpen is set.
func NewReaderAtReader(ra io.ReaderAt, size int64, opts *Options) (*Reader, error) {
	if ra == nil {
		return nil, wioerrors.InvalidArgument("reader", "source must not be nil")
	}
	if size < 0 {
		return nil, wioerrors.InvalidArgument("reader", "source size %d must not be negative", size)
	}

	closer, _ := ra.(io.Closer)
	src := &rangeSource{name: KindRange, ra: ra, size: size, closer: closer}
	return newReader(src, opts, lruCache)
}

// seekReaderAt reads ranges of a seekable source by seeking before every read.
type seekReaderAt struct {
	rs io.ReadSeeker
}

func (s seekReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if _, err := s.rs.Seek(off, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := io.ReadFull(s.rs, p)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	return n, err
}

// NewSeekableReader reads a seekable source through windows. Its length is found by
// seeking to the end once, at creation. If rs is an io.Closer it is closed with the
// reader unless KeepOpen is set.
func NewSeekableReader(rs io.ReadSeeker, opts *Options) (*Reader, error) {
	if rs == nil {
		return nil, wioerrors.InvalidArgument("reader", "source must not be nil")
	}
	size, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, wioerrors.NewError(wioerrors.ErrCodeSourceRead, "failed to find source length").
			WithComponent("reader").
			WithCause(err)
	}

	closer, _ := rs.(io.Closer)
	src := &rangeSource{name: KindSeekable, ra: seekReaderAt{rs: rs}, size: size, closer: closer}
	return newReader(src, opts, lruCache)
}

// bytesSource holds an in-memory array as one window covering all of it.
type bytesSource struct {
	w    *window.Window
	size int64
}

func (s *bytesSource) kind() string {
	return KindBytes
}

func (s *bytesSource) createWindow(_ *Reader, position int64) (*window.Window, error) {
	if position != 0 || s.w == nil {
		return nil, nil
	}
	return s.w, nil
}

func (s *bytesSource) resident() bool {
	return true
}

func (s *bytesSource) length(*Reader) (int64, error) {
	return s.size, nil
}

func (s *bytesSource) knownLength() (int64, bool) {
	return s.size, true
}

func (s *bytesSource) close() error {
	s.w = nil
	return nil
}

// NewBytesReader reads an in-memory array as a single window spanning all of it. The
// reader takes ownership of data. Nothing is cached since the window is always held.
func NewBytesReader(data []byte) (*Reader, error) {
	src := &bytesSource{size: int64(len(data))}
	if len(data) > 0 {
		w, err := window.New(data, 0, len(data))
		if err != nil {
			return nil, err
		}
		src.w = w
	}

	opts := &Options{
		WindowSize: max(len(data), 1),
		Cache:      cache.NoCache{},
	}
	return newReader(src, opts, nil)
}

// NewStringReader reads the UTF-8 bytes of s.
func NewStringReader(s string) (*Reader, error) {
	return NewBytesReader([]byte(s))
}

// NewEncodedStringReader reads the bytes of s in the given character encoding.
func NewEncodedStringReader(s string, enc encoding.Encoding) (*Reader, error) {
	if enc == nil {
		return nil, wioerrors.InvalidArgument("reader", "encoding must not be nil")
	}
	data, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, wioerrors.InvalidArgument("reader", "string cannot be encoded").WithCause(err)
	}
	return NewBytesReader(data)
}
