package main

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/gosuda/wifi-chat/chatwire"
)

// historyStore persists the room log in a PebbleDB key-value store. Keys
// are 8-byte big-endian sequence numbers increasing monotonically; values
// are the JSON wire form of the message, so tombstones persist the same way
// they travel.
type historyStore struct {
	db      *pebble.DB
	mu      sync.Mutex
	next    uint64
	seqByID map[string]uint64
}

func openHistoryStore(dir string) (*historyStore, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, err
	}
	s := &historyStore{db: db, seqByID: map[string]uint64{}}
	// One pass to recover the next sequence and the id index.
	it, err := db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	for it.First(); it.Valid(); it.Next() {
		if len(it.Key()) < 8 {
			continue
		}
		seq := binary.BigEndian.Uint64(it.Key()[:8])
		s.next = seq + 1
		var m chatwire.Message
		if err := json.Unmarshal(it.Value(), &m); err == nil {
			s.seqByID[m.ID] = seq
		}
	}
	return s, nil
}

func (s *historyStore) Append(m chatwire.Message) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, s.next)
	s.seqByID[m.ID] = s.next
	s.next++
	val, _ := json.Marshal(m)
	return s.db.Set(key, val, pebble.Sync)
}

// MarkDeleted rewrites the stored record as a tombstone. Unknown ids are a
// no-op; the message may have been swept already.
func (s *historyStore) MarkDeleted(id string) error {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.seqByID[id]
	if !ok {
		return nil
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	raw, closer, err := s.db.Get(key)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil
		}
		return err
	}
	var m chatwire.Message
	uerr := json.Unmarshal(raw, &m)
	_ = closer.Close()
	if uerr != nil {
		return uerr
	}
	m.Tombstone()
	val, _ := json.Marshal(m)
	return s.db.Set(key, val, pebble.Sync)
}

// LoadRecent loads the most recent limit messages in stored order; a
// non-positive limit loads everything.
func (s *historyStore) LoadRecent(limit int) ([]chatwire.Message, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	it, err := s.db.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = it.Close() }()
	out := make([]chatwire.Message, 0, 256)
	for it.First(); it.Valid(); it.Next() {
		var m chatwire.Message
		if err := json.Unmarshal(it.Value(), &m); err == nil {
			out = append(out, m)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// Sweep deletes records older than maxAge.
func (s *historyStore) Sweep(maxAge time.Duration) error {
	if s == nil || s.db == nil {
		return nil
	}
	cutoff := time.Now().Add(-maxAge)
	s.mu.Lock()
	defer s.mu.Unlock()
	it, err := s.db.NewIter(nil)
	if err != nil {
		return err
	}
	type victim struct {
		key []byte
		id  string
	}
	var victims []victim
	for it.First(); it.Valid(); it.Next() {
		var m chatwire.Message
		if err := json.Unmarshal(it.Value(), &m); err != nil {
			continue
		}
		ts, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil || ts.Before(cutoff) {
			victims = append(victims, victim{key: append([]byte(nil), it.Key()...), id: m.ID})
		}
	}
	if err := it.Close(); err != nil {
		return err
	}
	for _, v := range victims {
		if err := s.db.Delete(v.key, pebble.Sync); err != nil {
			return err
		}
		delete(s.seqByID, v.id)
	}
	return nil
}

func (s *historyStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
