package reader

import (
	"iter"
	"math"

	wioerrors "github.com/objectfs/windowio/pkg/errors"
	"github.com/objectfs/windowio/pkg/types"
	"github.com/objectfs/windowio/pkg/window"
)

// Windows returns the windows covering the inclusive range [from, to]. The sequence is
// lazy: each window is fetched when the loop asks for it. Ranging over the sequence
// again starts over from from. An invalid range or a failed fetch yields one error and
// ends the sequence.
func (r *Reader) Windows(from, to int64) iter.Seq2[*window.Window, error] {
	return func(yield func(*window.Window, error) bool) {
		if from < 0 || to < from {
			yield(nil, wioerrors.InvalidArgument("reader", "invalid range [%d, %d]", from, to))
			return
		}

		requested := types.Range{From: from, To: to}
		for pos := from; requested.Contains(pos); {
			w, err := r.Window(pos)
			if err != nil {
				yield(nil, err)
				return
			}
			if w == nil || !yield(w, nil) {
				return
			}
			pos = w.NextPosition()
		}
	}
}

// AllWindows returns every window of the source in order.
func (r *Reader) AllWindows() iter.Seq2[*window.Window, error] {
	return r.Windows(0, math.MaxInt64)
}

// Chunks returns the bytes of the inclusive range [from, to] one window at a time. A
// chunk covering a whole window whose buffer holds nothing else is the window's own
// buffer; other chunks are copies sized to the requested part. Callers must not modify
// chunks.
func (r *Reader) Chunks(from, to int64) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for w, err := range r.Windows(from, to) {
			if err != nil {
				yield(nil, err)
				return
			}

			buf, err := w.Array()
			if err != nil {
				yield(nil, err)
				return
			}

			rng := types.Range{From: max(from, w.Position()), To: min(to, w.EndPosition())}
			var chunk []byte
			if rng.From == w.Position() && rng.To == w.EndPosition() && len(buf) == w.Length() {
				chunk = buf
			} else {
				lo := rng.From - w.Position()
				chunk = make([]byte, rng.Length())
				copy(chunk, buf[lo:lo+rng.Length()])
			}

			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// Bytes returns every byte of the source as chunks.
func (r *Reader) Bytes() iter.Seq2[[]byte, error] {
	return r.Chunks(0, math.MaxInt64)
}

// BytesFrom returns the bytes from position from to the end as chunks.
func (r *Reader) BytesFrom(from int64) iter.Seq2[[]byte, error] {
	return r.Chunks(from, math.MaxInt64)
}
