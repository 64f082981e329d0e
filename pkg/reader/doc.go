/*
Package reader provides random access to byte sources through fixed-size windows.

A Reader divides its source into windows of WindowSize bytes aligned at multiples of
the window size. Reads look up the window in the reader's cache and fall back to the
source when it is missing; the new window is cached before it is used. A read that
spans several windows first asks the cache to copy as much as it can, which for an
LRUCache or OverflowCache may cover several consecutive windows in one call.

# Sources

	NewFileReader(path, opts)            file on disk
	NewOSFileReader(f, opts)             open *os.File
	NewReaderAtReader(ra, size, opts)    any io.ReaderAt, such as an S3 object
	NewSeekableReader(rs, opts)          any io.ReadSeeker
	NewBytesReader(data)                 in-memory array, one window
	NewStringReader(s)                   UTF-8 string, one window
	NewEncodedStringReader(s, enc)       string in another encoding, one window
	NewStreamReader(in, opts)            forward-only io.Reader

Finite sources can re-read any range, so their windows may be reclaimable: set
Options.Factory to window.ReclaimableFactory{} and the garbage collector may drop idle
window buffers, which are read again from the source on the next access. They can
also read ahead: with Options.ReadAhead set, a miss on the window right after the last
one read brings that many following windows into the cache as well.

A stream cannot go back. Every window it reads is cached, and the default cache for a
stream is a TwoLevelCache whose overflow tier keeps every window evicted from memory.
With a cache that loses windows, asking for a position behind the stream's frontier
fails with WINDOW_MISSING instead of returning wrong data. A failed stream read keeps
the bytes it did get, so asking again resumes the same window.

# Boundaries

Positions outside the data are not errors. Window returns nil, ByteAt returns ok=false
and Read returns 0 with io.EOF. Errors are reserved for closed readers, source and
store failures, failed recoveries and missing stream windows.

	r, err := reader.NewFileReader("image.dd", &reader.Options{WindowSize: 64 * 1024})
	if err != nil {
		return err
	}
	defer r.Close()

	for chunk, err := range r.Chunks(512, 1023) {
		if err != nil {
			return err
		}
		process(chunk)
	}

# Adapters

NewStream turns a Reader back into an io.Reader with io.ByteReader, io.WriterTo, Skip
and Mark/Reset. NewChannel gives an io.ReadSeeker and io.ReaderAt. Neither adds
locking.
*/
package reader
