package window

import (
	"weak"

	wioerrors "github.com/objectfs/windowio/pkg/errors"
)

// RecoveryFunc re-reads the bytes of the source starting at position into buf and
// returns the number of bytes read. It is supplied by the reader that created the
// window and must only be set for sources able to re-read a past range.
type RecoveryFunc func(position int64, buf []byte) (int, error)

// softBuffer is the unit the runtime may reclaim for a reclaimable window.
type softBuffer struct {
	data []byte
}

// Window is an immutable view of up to len(buffer) bytes of a source starting at an
// absolute position. Only the first Length bytes of the buffer are valid.
type Window struct {
	position int64
	length   int
	span     int

	strong  []byte
	soft    weak.Pointer[softBuffer]
	recover RecoveryFunc

	recoveries int
}

// New creates a strongly retained window over buf. The window takes ownership of buf.
func New(buf []byte, position int64, length int) (*Window, error) {
	if err := validate(buf, position, length); err != nil {
		return nil, err
	}
	return &Window{
		position: position,
		length:   length,
		span:     len(buf),
		strong:   buf,
	}, nil
}

// NewReclaimable creates a window whose buffer is reclaimed at the next garbage
// collection unless a caller still holds the slice returned by Array. There is no
// memory-pressure signal; any later access regenerates the buffer through recover.
func NewReclaimable(buf []byte, position int64, length int, recover RecoveryFunc) (*Window, error) {
	if err := validate(buf, position, length); err != nil {
		return nil, err
	}
	if recover == nil {
		return nil, wioerrors.InvalidArgument("window", "reclaimable window at %d needs a recovery function", position)
	}
	return &Window{
		position: position,
		length:   length,
		span:     len(buf),
		soft:     weak.Make(&softBuffer{data: buf}),
		recover:  recover,
	}, nil
}

func validate(buf []byte, position int64, length int) error {
	if position < 0 {
		return wioerrors.InvalidArgument("window", "negative window position %d", position)
	}
	if length < 1 || length > len(buf) {
		return wioerrors.InvalidArgument("window", "window length %d outside buffer of %d bytes", length, len(buf))
	}
	return nil
}

// Position returns the absolute position of the first byte of the window.
func (w *Window) Position() int64 {
	return w.position
}

// EndPosition returns the absolute position of the last valid byte.
func (w *Window) EndPosition() int64 {
	return w.position + int64(w.length) - 1
}

// NextPosition returns the position of the window that follows this one.
func (w *Window) NextPosition() int64 {
	return w.position + int64(w.span)
}

// Length returns the number of valid bytes in the window.
func (w *Window) Length() int {
	return w.length
}

// Span returns the size of the window's buffer.
func (w *Window) Span() int {
	return w.span
}

// Reclaimable reports whether the window's buffer may be reclaimed.
func (w *Window) Reclaimable() bool {
	return w.strong == nil
}

// Recoveries returns how many times the buffer has been regenerated.
func (w *Window) Recoveries() int {
	return w.recoveries
}

// Release drops a reclaimable window's buffer immediately, as the collector would
// under memory pressure. It has no effect on strong windows.
func (w *Window) Release() {
	if w.strong == nil {
		w.soft = weak.Pointer[softBuffer]{}
	}
}

// Byte returns the byte at index within the window.
func (w *Window) Byte(index int) (byte, error) {
	if index < 0 || index >= w.length {
		return 0, wioerrors.InvalidArgument("window", "index %d outside window of length %d", index, w.length)
	}
	buf, err := w.buffer()
	if err != nil {
		return 0, err
	}
	return buf[index], nil
}

// Array returns the window's backing buffer. Only the first Length bytes are valid and
// the slice is shared: callers must not modify it.
func (w *Window) Array() ([]byte, error) {
	return w.buffer()
}

// Read copies the valid bytes starting at offset into dst and returns the count.
func (w *Window) Read(offset int, dst []byte) (int, error) {
	if offset < 0 || offset >= w.length || len(dst) == 0 {
		return 0, nil
	}
	buf, err := w.buffer()
	if err != nil {
		return 0, err
	}
	return copy(dst, buf[offset:w.length]), nil
}

func (w *Window) buffer() ([]byte, error) {
	if w.strong != nil {
		return w.strong, nil
	}
	if sb := w.soft.Value(); sb != nil {
		return sb.data, nil
	}
	return w.reload()
}

func (w *Window) reload() ([]byte, error) {
	buf := make([]byte, w.span)
	n, err := w.recover(w.position, buf)
	if err != nil {
		return nil, wioerrors.Newf(wioerrors.ErrCodeRecoveryFailed, "failed to recover window at %d", w.position).
			WithComponent("window").
			WithCause(err)
	}
	if n < w.length {
		return nil, wioerrors.Newf(wioerrors.ErrCodeRecoveryFailed,
			"recovered %d bytes for window at %d, want %d", n, w.position, w.length).
			WithComponent("window")
	}

	sb := &softBuffer{data: buf}
	w.soft = weak.Make(sb)
	w.recoveries++
	return sb.data, nil
}
