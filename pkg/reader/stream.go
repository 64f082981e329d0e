package reader

import (
	"errors"
	"io"

	pkgerrors "github.com/pkg/errors"

	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/window"
)

// streamSource reads a forward-only stream. Every window it passes on the way to a
// requested position is added to the reader's cache, since the stream cannot go back
// for it later.
type streamSource struct {
	in     io.Reader
	closer io.Closer

	// frontier is the first position not yet read from the stream.
	frontier int64
	eof      bool

	// partial holds the bytes of the frontier window read before a failed read, so a
	// retry resumes filling it instead of labelling later bytes with the frontier.
	partial []byte
	filled  int
}

func (s *streamSource) kind() string {
	return KindStream
}

func (s *streamSource) createWindow(r *Reader, position int64) (*window.Window, error) {
	if position < s.frontier {
		return nil, wioerrors.Newf(wioerrors.ErrCodeWindowMissing,
			"window %d is behind the stream frontier %d and not in the cache", position, s.frontier).
			WithComponent("reader").
			WithOperation("materialize").
			WithContext("reader", r.ID()).
			WithDetail("frontier", s.frontier)
	}

	for !s.eof {
		start := s.frontier
		w, err := s.next(r)
		if err != nil || w == nil {
			return nil, err
		}
		if start == position {
			return w, nil
		}
		if err := s.keep(r, w); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

// keep caches a window read on the way to another position.
func (s *streamSource) keep(r *Reader, w *window.Window) error {
	r.metrics.RecordWindowMaterialized(KindStream)
	return r.cache.Add(w)
}

// next reads the window at the frontier, or returns nil at the end of the stream.
func (s *streamSource) next(r *Reader) (*window.Window, error) {
	buf, n := s.partial, s.filled
	if buf == nil {
		buf = make([]byte, r.windowSize)
	}
	m, err := io.ReadFull(s.in, buf[n:])
	n += m
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		s.eof = true
		err = nil
	}
	if err != nil {
		s.partial, s.filled = buf, n
		return nil, sourceError(KindStream, s.frontier,
			pkgerrors.Wrapf(err, "read %d bytes at %d", len(buf)-n, s.frontier+int64(n)))
	}
	s.partial, s.filled = nil, 0
	if n == 0 {
		return nil, nil
	}

	// Streams cannot re-read a range, so windows are never reclaimable.
	w, err := r.factory.Create(buf, s.frontier, n, nil)
	if err != nil {
		return nil, err
	}
	s.frontier += int64(n)
	return w, nil
}

// length reads and caches the rest of the stream.
func (s *streamSource) length(r *Reader) (int64, error) {
	for !s.eof {
		w, err := s.next(r)
		if err != nil {
			return 0, err
		}
		if w == nil {
			break
		}
		if err := s.keep(r, w); err != nil {
			return 0, err
		}
	}
	return s.frontier, nil
}

func (s *streamSource) knownLength() (int64, bool) {
	return s.frontier, s.eof
}

func (s *streamSource) close() error {
	if s.closer == nil {
		return nil
	}
	if err := s.closer.Close(); err != nil {
		return wioerrors.NewError(wioerrors.ErrCodeSourceClose, "failed to close stream").
			WithComponent("reader").
			WithCause(err)
	}
	return nil
}

// NewStreamReader reads a forward-only stream through windows. Positions already read
// stay available only through the cache, so the default cache is two-level with a
// durable overflow tier. If in is an io.Closer it is closed with the reader unless
// KeepOpen is set.
func NewStreamReader(in io.Reader, opts *Options) (*Reader, error) {
	if in == nil {
		return nil, wioerrors.InvalidArgument("reader", "stream must not be nil")
	}

	closer, _ := in.(io.Closer)
	src := &streamSource{in: in, closer: closer}
	return newReader(src, opts, streamCache)
}
