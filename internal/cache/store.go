package cache

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"

	wioerrors "github.com/objectfs/windowio/pkg/errors"
)

// Overflow store backends
const (
	BackendFile = "file"
	BackendBolt = "bolt"
)

// OverflowStore is a durable keyed store of window bytes. Put is called at most once
// per position; Get copies the stored bytes starting at offset into dst.
type OverflowStore interface {
	Put(position int64, data []byte) error
	Get(position int64, offset int, dst []byte) (int, error)
	// Close releases the store and deletes its backing file.
	Close() error
}

// NewOverflowStore creates a store for backend in dir. An empty dir means os.TempDir().
func NewOverflowStore(backend, dir string) (OverflowStore, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	switch backend {
	case "", BackendFile:
		return NewFileStore(dir), nil
	case BackendBolt:
		return NewBoltStore(dir), nil
	default:
		return nil, wioerrors.InvalidArgument("cache", "unknown overflow backend %q", backend)
	}
}

func scratchName(dir, ext string) string {
	return filepath.Join(dir, "windowio-"+uuid.NewString()+ext)
}

// fileRecord locates one window in a FileStore.
type fileRecord struct {
	offset int64
	length int
	sum    uint64
}

// FileStore appends window bytes to a single scratch file. The file is created by the
// first Put.
type FileStore struct {
	dir   string
	path  string
	file  *os.File
	end   int64
	index map[int64]fileRecord
}

// NewFileStore creates a store whose scratch file will live in dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		dir:   dir,
		index: make(map[int64]fileRecord),
	}
}

// Path returns the scratch file path, or "" before the first Put.
func (s *FileStore) Path() string {
	return s.path
}

// Put implements OverflowStore.
func (s *FileStore) Put(position int64, data []byte) error {
	if _, ok := s.index[position]; ok {
		return nil
	}
	if s.file == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	if _, err := s.file.WriteAt(data, s.end); err != nil {
		return wioerrors.Newf(wioerrors.ErrCodeStoreWrite, "failed to write window %d", position).
			WithComponent("filestore").
			WithCause(pkgerrors.Wrapf(err, "write %s at %d", s.path, s.end))
	}

	s.index[position] = fileRecord{
		offset: s.end,
		length: len(data),
		sum:    xxhash.Sum64(data),
	}
	s.end += int64(len(data))
	return nil
}

// Get implements OverflowStore. Reads of a whole window are verified against the
// checksum recorded by Put.
func (s *FileStore) Get(position int64, offset int, dst []byte) (int, error) {
	rec, ok := s.index[position]
	if !ok {
		return 0, wioerrors.Newf(wioerrors.ErrCodeStoreRead, "window %d not in store", position).
			WithComponent("filestore")
	}
	if offset < 0 || offset >= rec.length {
		return 0, nil
	}

	n := min(len(dst), rec.length-offset)
	if _, err := s.file.ReadAt(dst[:n], rec.offset+int64(offset)); err != nil {
		return 0, wioerrors.Newf(wioerrors.ErrCodeStoreRead, "failed to read window %d", position).
			WithComponent("filestore").
			WithCause(pkgerrors.Wrapf(err, "read %s at %d", s.path, rec.offset+int64(offset)))
	}

	if offset == 0 && n == rec.length && xxhash.Sum64(dst[:n]) != rec.sum {
		return 0, wioerrors.Newf(wioerrors.ErrCodeStoreRead, "checksum mismatch for window %d", position).
			WithComponent("filestore")
	}
	return n, nil
}

// Close implements OverflowStore.
func (s *FileStore) Close() error {
	if s.file == nil {
		return nil
	}

	closeErr := s.file.Close()
	removeErr := os.Remove(s.path)
	s.file = nil
	s.end = 0
	s.index = make(map[int64]fileRecord)

	if closeErr != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreClose, "failed to close overflow file").
			WithComponent("filestore").
			WithCause(pkgerrors.Wrap(closeErr, s.path))
	}
	if removeErr != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreClose, "failed to remove overflow file").
			WithComponent("filestore").
			WithCause(pkgerrors.Wrap(removeErr, s.path))
	}
	return nil
}

func (s *FileStore) open() error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreWrite, "failed to create overflow directory").
			WithComponent("filestore").
			WithCause(pkgerrors.Wrap(err, s.dir))
	}

	path := scratchName(s.dir, ".overflow")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreWrite, "failed to create overflow file").
			WithComponent("filestore").
			WithCause(pkgerrors.Wrap(err, path))
	}

	logger.Debugf("created overflow file %s", path)
	s.path = path
	s.file = file
	return nil
}

var windowsBucket = []byte("windows")

// BoltStore keeps window bytes in a bbolt database in a scratch file. The database is
// created by the first Put.
type BoltStore struct {
	dir  string
	path string
	db   *bolt.DB
}

// NewBoltStore creates a store whose database will live in dir.
func NewBoltStore(dir string) *BoltStore {
	return &BoltStore{dir: dir}
}

// Path returns the database path, or "" before the first Put.
func (s *BoltStore) Path() string {
	return s.path
}

func positionKey(position int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(position))
	return key
}

// Put implements OverflowStore.
func (s *BoltStore) Put(position int64, data []byte) error {
	if s.db == nil {
		if err := s.open(); err != nil {
			return err
		}
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(windowsBucket)
		key := positionKey(position)
		if b.Get(key) != nil {
			return nil
		}
		return b.Put(key, data)
	})
	if err != nil {
		return wioerrors.Newf(wioerrors.ErrCodeStoreWrite, "failed to write window %d", position).
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(err, s.path))
	}
	return nil
}

// Get implements OverflowStore.
func (s *BoltStore) Get(position int64, offset int, dst []byte) (int, error) {
	if s.db == nil {
		return 0, wioerrors.Newf(wioerrors.ErrCodeStoreRead, "window %d not in store", position).
			WithComponent("boltstore")
	}

	n := 0
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(windowsBucket).Get(positionKey(position))
		if v == nil {
			return nil
		}
		found = true
		if offset >= 0 && offset < len(v) {
			// v is only valid inside the transaction.
			n = copy(dst, v[offset:])
		}
		return nil
	})
	if err != nil {
		return 0, wioerrors.Newf(wioerrors.ErrCodeStoreRead, "failed to read window %d", position).
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(err, s.path))
	}
	if !found {
		return 0, wioerrors.Newf(wioerrors.ErrCodeStoreRead, "window %d not in store", position).
			WithComponent("boltstore")
	}
	return n, nil
}

// Close implements OverflowStore.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}

	closeErr := s.db.Close()
	removeErr := os.Remove(s.path)
	s.db = nil

	if closeErr != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreClose, "failed to close overflow database").
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(closeErr, s.path))
	}
	if removeErr != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreClose, "failed to remove overflow database").
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(removeErr, s.path))
	}
	return nil
}

func (s *BoltStore) open() error {
	if err := os.MkdirAll(s.dir, 0750); err != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreWrite, "failed to create overflow directory").
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(err, s.dir))
	}

	path := scratchName(s.dir, ".db")
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second, NoSync: true})
	if err != nil {
		return wioerrors.NewError(wioerrors.ErrCodeStoreWrite, "failed to open overflow database").
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(err, path))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(windowsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		_ = os.Remove(path)
		return wioerrors.NewError(wioerrors.ErrCodeStoreWrite, "failed to create windows bucket").
			WithComponent("boltstore").
			WithCause(pkgerrors.Wrap(err, path))
	}

	logger.Debugf("created overflow database %s", path)
	s.path = path
	s.db = db
	return nil
}
