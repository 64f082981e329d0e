/*
Package window defines the Window entity, the factories that create windows and the
Cache contract that stores them.

A Window is a position-tagged view of up to one window size of contiguous bytes of a
source. Strong windows own their buffer outright. Reclaimable windows keep their buffer
behind a weak pointer: once the garbage collector reclaims it, the next access calls the
RecoveryFunc supplied by the owning reader to re-read exactly the same range. Recovery
is only offered by sources that can re-read a past range (files, ReaderAt and seekable
sources); forward-only streams always produce strong windows.

Caches implementing Cache are not safe for concurrent use; a reader and its cache are
driven by one goroutine at a time.
*/
package window
