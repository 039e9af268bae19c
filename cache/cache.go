package cache

import (
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-codegen/errors"
	"github.com/wippyai/wasm-codegen/host"
	"github.com/wippyai/wasm-codegen/target"
)

var bucketCompiled = []byte("compiled")

// Key derives the cache key for one compilation. The key covers everything
// the emitted code depends on: the exact function body bytes, the target
// descriptor, and the vmContext layout fingerprint. Code compiled against
// one layout must never be served under another, so the layout is part of
// the key rather than a validation afterthought.
func Key(desc target.Descriptor, layout host.VMContextLayout, body []byte) [32]byte {
	h := blake3.New()
	_, _ = h.Write([]byte(desc.String()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(layout.Fingerprint())
	_, _ = h.Write(body)

	var key [32]byte
	copy(key[:], h.Sum(nil))
	return key
}

// Store persists compiled functions in a single-file bolt database with
// zstd-compressed entries. It is safe for concurrent use by multiple
// compilers in one process; cross-process exclusion comes from bolt's file
// lock.
type Store struct {
	db  *bbolt.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.IO(errors.PhaseCache, "open cache database", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCompiled)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.IO(errors.PhaseCache, "initialize cache bucket", err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		_ = db.Close()
		return nil, errors.IO(errors.PhaseCache, "initialize compressor", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, errors.IO(errors.PhaseCache, "initialize decompressor", err)
	}

	Logger().Debug("cache opened", zap.String("path", path))
	return &Store{db: db, enc: enc, dec: dec}, nil
}

// Close releases the database and compression resources.
func (s *Store) Close() error {
	s.enc.Close()
	s.dec.Close()
	if err := s.db.Close(); err != nil {
		return errors.IO(errors.PhaseCache, "close cache database", err)
	}
	return nil
}

// Get returns the cached compilation for key, if present.
func (s *Store) Get(key [32]byte) (host.CompiledFunction, bool, error) {
	var fn host.CompiledFunction
	var found bool

	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketCompiled).Get(key[:])
		if v == nil {
			return nil
		}
		raw, err := s.dec.DecodeAll(v, nil)
		if err != nil {
			return errors.InvalidData(errors.PhaseCache, "decompress cached entry", err)
		}
		fn, err = decodeFunction(raw)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return host.CompiledFunction{}, false, err
	}
	return fn, found, nil
}

// Put stores one compilation under key, overwriting any previous entry.
func (s *Store) Put(key [32]byte, fn host.CompiledFunction) error {
	compressed := s.enc.EncodeAll(encodeFunction(fn), nil)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCompiled).Put(key[:], compressed)
	})
	if err != nil {
		return errors.IO(errors.PhaseCache, "store cache entry", err)
	}
	return nil
}
