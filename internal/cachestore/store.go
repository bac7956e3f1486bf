package cachestore

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Entry is one cached response snapshot, keyed by request identity within a
// generation. Entries are idempotent: overwriting with an equally fresh
// response is harmless, so concurrent writers need no coordination.
type Entry struct {
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt int64 // unix seconds
}

type op struct {
	gen string
	key string
	ent Entry
}

// Store keeps cache generations in a single leveldb database. Entry keys are
// prefixed with their generation name so a whole generation can be dropped
// with one ranged delete. Writes submitted via PutAsync are applied by a
// single writer goroutine; their failures are logged, never returned.
type Store struct {
	db *leveldb.DB

	ops  chan op
	done chan struct{}

	writeErrLog *rateLimitedLogger
}

func entryKey(gen, key string) []byte { return []byte("e:" + gen + "|" + key) }

func genKey(gen string) []byte { return []byte("g:" + gen) }

func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("open cache store %s: %w", dir, err)
	}
	s := &Store{
		db:          db,
		ops:         make(chan op, 1024),
		done:        make(chan struct{}),
		writeErrLog: newRateLimitedLogger(1 * time.Minute),
	}
	go s.writerLoop()
	return s, nil
}

func (s *Store) Close() error {
	close(s.ops)
	<-s.done
	return s.db.Close()
}

// Get looks up the entry for key in the named generation.
func (s *Store) Get(gen, key string) (Entry, bool) {
	b, err := s.db.Get(entryKey(gen, key), nil)
	if err != nil {
		return Entry{}, false
	}
	var ent Entry
	if err := decodeGob(b, &ent); err != nil {
		return Entry{}, false
	}
	return ent, true
}

// Put stores an entry synchronously and marks the generation as existing.
func (s *Store) Put(gen, key string, ent Entry) error {
	b, err := encodeGob(ent)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put(entryKey(gen, key), b)
	batch.Put(genKey(gen), []byte{})
	return s.db.Write(batch, nil)
}

// PutAsync queues a write for the writer loop. The caller never observes the
// outcome; failures go to a rate-limited log.
func (s *Store) PutAsync(gen, key string, ent Entry) {
	s.ops <- op{gen: gen, key: key, ent: ent}
}

func (s *Store) writerLoop() {
	defer close(s.done)
	for o := range s.ops {
		if err := s.Put(o.gen, o.key, o.ent); err != nil {
			s.writeErrLog.Warn("cache write failed", "generation", o.gen, "key", o.key, "error", err)
		}
	}
}

// Generations lists every generation name present in the store.
func (s *Store) Generations() ([]string, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte("g:")), nil)
	defer it.Release()

	var out []string
	for it.Next() {
		out = append(out, string(bytes.TrimPrefix(it.Key(), []byte("g:"))))
	}
	return out, it.Error()
}

// DropGeneration deletes a generation marker and every entry under it.
func (s *Store) DropGeneration(gen string) error {
	it := s.db.NewIterator(util.BytesPrefix([]byte("e:"+gen+"|")), nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		batch.Delete(k)
	}
	err := it.Error()
	it.Release()
	if err != nil {
		return err
	}
	batch.Delete(genKey(gen))
	return s.db.Write(batch, nil)
}

// EntryCount counts the entries stored under a generation.
func (s *Store) EntryCount(gen string) (int, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte("e:"+gen+"|")), nil)
	defer it.Release()

	n := 0
	for it.Next() {
		n++
	}
	return n, it.Error()
}

func encodeGob(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeGob(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

func init() {
	gob.Register(http.Header{})
}
