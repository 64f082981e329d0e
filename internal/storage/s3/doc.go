/*
Package s3 exposes S3 objects as finite, rewindable byte sources for windowed readers.

An ObjectReader learns the object size with one HeadObject call and then serves every
ReadAt with a ranged GetObject:

	┌─────────────────────────────────────────────┐
	│          reader.Reader (windows)            │
	└─────────────────────────────────────────────┘
	                      │ ReadAt(p, off)
	┌─────────────────────────────────────────────┐
	│               ObjectReader                  │
	│     Range: bytes=off-(off+len(p)-1)         │
	│     If-Match: <etag from HeadObject>        │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│                AWS S3 Service               │
	└─────────────────────────────────────────────┘

One window costs one request, so the window size is the request size. Reclaimed
windows are fetched again with the same range.

A request whose body is cut short, or that fails with anything but a missing object,
denied access or a changed ETag, is sent again according to Config.Retry.

# Usage

	client, err := s3.NewClient(ctx, &s3.Config{Region: "us-west-2"})
	if err != nil {
		return err
	}

	r, err := s3.NewReader(ctx, client, "forensics", "images/disk.dd", nil,
		&reader.Options{WindowSize: 1 << 20, Factory: window.ReclaimableFactory{}})
	if err != nil {
		return err
	}
	defer r.Close()

Any client implementing API can be used, which keeps tests off the network.
*/
package s3
