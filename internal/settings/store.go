// Package settings is the guarded per-entity configuration store every
// feature module reads and mutates. Documents are addressed by (Type, entity
// id) and creation/mutation of one key never interleaves; unrelated keys
// proceed fully concurrently.
package settings

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sync"
)

// Type names one feature's document kind ("guild_settings", "history").
type Type string

// GlobalID addresses the singleton document of a Type.
const GlobalID = "global"

// lockShards caps the mutex pool: keys hash onto a fixed shard instead of
// growing one mutex per entity ever seen. Colliding keys serialize with each
// other, which is safe, just coarser.
const lockShards = 64

// Collection is the underlying document store the settings layer wraps.
// Implemented by the datastore package and by test fakes.
type Collection interface {
	Find(kind, id string) (json.RawMessage, bool, error)
	Insert(kind, id string, doc any) error
	Upsert(kind, id string, doc any) error
}

// Store serializes read-or-create and read-modify-write sequences per
// (Type, id) key over a Collection.
type Store struct {
	col   Collection
	locks [lockShards]sync.Mutex
}

// New wraps a collection.
func New(col Collection) *Store {
	return &Store{col: col}
}

func (s *Store) lock(kind Type, id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(id))
	return &s.locks[h.Sum32()%lockShards]
}

// Read fetches the document at (kind, id). With createIfMissing, an absent
// document is created exactly once even under concurrent first access: the
// lookup is re-checked under the key's lock before inserting (double-checked
// pattern). Without createIfMissing an absent document returns ok=false.
func Read[T any](s *Store, kind Type, id string, createIfMissing bool) (*T, bool, error) {
	doc, ok, err := find[T](s, kind, id)
	if err != nil || ok {
		return doc, ok, err
	}
	if !createIfMissing {
		return nil, false, nil
	}

	mu := s.lock(kind, id)
	mu.Lock()
	defer mu.Unlock()

	doc, ok, err = find[T](s, kind, id)
	if err != nil || ok {
		return doc, ok, err
	}
	doc = new(T)
	if err := s.col.Insert(string(kind), id, doc); err != nil {
		return nil, false, fmt.Errorf("settings: create %s/%s: %w", kind, id, err)
	}
	return doc, true, nil
}

// Modify applies mutate to the document at (kind, id) under the key's lock
// for the full read-modify-write sequence, creating a zero document when
// absent, and persists the result as a whole-document upsert. It returns
// whatever mutate returns.
func Modify[T, R any](s *Store, kind Type, id string, mutate func(*T) R) (R, error) {
	var zero R

	mu := s.lock(kind, id)
	mu.Lock()
	defer mu.Unlock()

	doc, ok, err := find[T](s, kind, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		doc = new(T)
	}
	out := mutate(doc)
	if err := s.col.Upsert(string(kind), id, doc); err != nil {
		return zero, fmt.Errorf("settings: persist %s/%s: %w", kind, id, err)
	}
	return out, nil
}

// ReadGlobal reads the singleton document of a Type.
func ReadGlobal[T any](s *Store, kind Type, createIfMissing bool) (*T, bool, error) {
	return Read[T](s, kind, GlobalID, createIfMissing)
}

// ModifyGlobal mutates the singleton document of a Type.
func ModifyGlobal[T, R any](s *Store, kind Type, mutate func(*T) R) (R, error) {
	return Modify[T, R](s, kind, GlobalID, mutate)
}

func find[T any](s *Store, kind Type, id string) (*T, bool, error) {
	raw, ok, err := s.col.Find(string(kind), id)
	if err != nil {
		return nil, false, fmt.Errorf("settings: find %s/%s: %w", kind, id, err)
	}
	if !ok {
		return nil, false, nil
	}
	doc := new(T)
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, false, fmt.Errorf("settings: decode %s/%s: %w", kind, id, err)
	}
	return doc, true, nil
}
