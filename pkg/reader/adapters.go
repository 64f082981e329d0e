package reader

import (
	"io"

	wioerrors "github.com/objectfs/windowio/pkg/errors"
)

// Stream reads a Reader forward from a starting position. It adds a cursor and nothing
// else: several Streams may share a Reader but must not be driven concurrently.
type Stream struct {
	r           *Reader
	pos         int64
	mark        int64
	closeReader bool
	closed      bool
}

// NewStream creates a Stream over r starting at from. Closing the stream closes r when
// closeReader is set.
func NewStream(r *Reader, from int64, closeReader bool) (*Stream, error) {
	if r == nil {
		return nil, wioerrors.InvalidArgument("stream", "reader must not be nil")
	}
	if from < 0 {
		return nil, wioerrors.InvalidArgument("stream", "start position %d must not be negative", from)
	}
	return &Stream{r: r, pos: from, mark: from, closeReader: closeReader}, nil
}

// Position returns the position of the next byte to be read.
func (s *Stream) Position() int64 {
	return s.pos
}

// Read implements io.Reader.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.checkOpen("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := s.r.Read(s.pos, p)
	s.pos += int64(n)
	return n, err
}

// ReadByte implements io.ByteReader.
func (s *Stream) ReadByte() (byte, error) {
	if err := s.checkOpen("read"); err != nil {
		return 0, err
	}
	b, ok, err := s.r.ByteAt(s.pos)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, io.EOF
	}
	s.pos++
	return b, nil
}

// WriteTo implements io.WriterTo, writing window-sized chunks without copying whole
// windows.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if err := s.checkOpen("write_to"); err != nil {
		return 0, err
	}

	var written int64
	for chunk, err := range s.r.BytesFrom(s.pos) {
		if err != nil {
			return written, err
		}
		n, err := w.Write(chunk)
		written += int64(n)
		s.pos += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Skip advances the stream by up to n bytes and returns how far it moved.
func (s *Stream) Skip(n int64) (int64, error) {
	if err := s.checkOpen("skip"); err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, nil
	}

	if _, ok, err := s.r.ByteAt(s.pos + n - 1); err != nil {
		return 0, err
	} else if ok {
		s.pos += n
		return n, nil
	}

	length, err := s.r.Length()
	if err != nil {
		return 0, err
	}
	skipped := max(length-s.pos, 0)
	s.pos += skipped
	return skipped, nil
}

// Mark remembers the current position for Reset.
func (s *Stream) Mark() {
	s.mark = s.pos
}

// Reset returns to the position saved by Mark, or the starting position.
func (s *Stream) Reset() {
	s.pos = s.mark
}

// Close closes the stream, and the reader when the stream owns it.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closeReader {
		return s.r.Close()
	}
	return nil
}

func (s *Stream) checkOpen(op string) error {
	if !s.closed {
		return nil
	}
	return wioerrors.NewError(wioerrors.ErrCodeReaderClosed, "stream is closed").
		WithComponent("stream").
		WithOperation(op).
		WithContext("reader", s.r.ID())
}

// Channel exposes a Reader as a read-only seekable channel.
type Channel struct {
	r           *Reader
	pos         int64
	closeReader bool
	closed      bool
}

// NewChannel creates a Channel over r positioned at 0. Closing the channel closes r when
// closeReader is set.
func NewChannel(r *Reader, closeReader bool) (*Channel, error) {
	if r == nil {
		return nil, wioerrors.InvalidArgument("channel", "reader must not be nil")
	}
	return &Channel{r: r, closeReader: closeReader}, nil
}

// Position returns the current position.
func (c *Channel) Position() int64 {
	return c.pos
}

// Size returns the length of the underlying source.
func (c *Channel) Size() (int64, error) {
	if err := c.checkOpen("size"); err != nil {
		return 0, err
	}
	return c.r.Length()
}

// Read implements io.Reader.
func (c *Channel) Read(p []byte) (int, error) {
	if err := c.checkOpen("read"); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n, err := c.r.Read(c.pos, p)
	c.pos += int64(n)
	return n, err
}

// ReadAt implements io.ReaderAt. It does not move the channel's position.
func (c *Channel) ReadAt(p []byte, off int64) (int, error) {
	if err := c.checkOpen("read_at"); err != nil {
		return 0, err
	}
	return c.r.ReadAt(p, off)
}

// Seek implements io.Seeker. Seeking past the end is allowed; reads there return io.EOF.
func (c *Channel) Seek(offset int64, whence int) (int64, error) {
	if err := c.checkOpen("seek"); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = c.pos
	case io.SeekEnd:
		length, err := c.r.Length()
		if err != nil {
			return 0, err
		}
		base = length
	default:
		return 0, wioerrors.InvalidArgument("channel", "invalid whence %d", whence)
	}

	pos := base + offset
	if pos < 0 {
		return 0, wioerrors.InvalidArgument("channel", "negative position %d", pos)
	}
	c.pos = pos
	return pos, nil
}

// Close closes the channel, and the reader when the channel owns it.
func (c *Channel) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	if c.closeReader {
		return c.r.Close()
	}
	return nil
}

func (c *Channel) checkOpen(op string) error {
	if !c.closed {
		return nil
	}
	return wioerrors.NewError(wioerrors.ErrCodeReaderClosed, "channel is closed").
		WithComponent("channel").
		WithOperation(op).
		WithContext("reader", c.r.ID())
}
