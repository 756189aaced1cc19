package settings

import (
	"errors"
	"fmt"

	pebblestore "github.com/Ovyl/zmod/internal/storage/pebble"
	"github.com/Ovyl/zmod/pkg/log"
)

// ErrUnknownKey is returned for keys outside the declared schema.
var ErrUnknownKey = errors.New("settings: unknown key")

// Keys of the built-in schema.
const (
	// KeyLogLevel is the persisted runtime log level, one byte.
	KeyLogLevel = "log_level"
)

// keyPrefix namespaces setting keys inside the shared Pebble keyspace.
var keyPrefix = []byte("cfg/")

// Entry declares one setting: its key, fixed value size, compiled-in
// default, and whether a settings reset restores it. Non-resettable entries
// survive everything short of ResetAll.
type Entry struct {
	Key        string
	Size       int
	Default    []byte
	Resettable bool
}

// Schema returns the built-in setting entries.
func Schema() []Entry {
	return []Entry{
		{Key: KeyLogLevel, Size: 1, Default: []byte{byte(log.Info)}, Resettable: true},
	}
}

// Item is one setting with its current value, as returned by List.
type Item struct {
	Key        string
	Value      []byte
	Default    []byte
	Resettable bool
	// Stored reports whether a persisted value exists; false means Value
	// is the compiled-in default.
	Stored bool
}

// Store reads and writes schema-declared settings.
type Store struct {
	db      *pebblestore.DB
	entries map[string]Entry
	order   []string
}

// Open validates the schema and binds it to db.
func Open(db *pebblestore.DB, schema []Entry) (*Store, error) {
	if db == nil {
		return nil, errors.New("settings: nil db")
	}
	s := &Store{
		db:      db,
		entries: make(map[string]Entry, len(schema)),
		order:   make([]string, 0, len(schema)),
	}
	for _, e := range schema {
		if e.Key == "" {
			return nil, errors.New("settings: entry with empty key")
		}
		if e.Size <= 0 {
			return nil, fmt.Errorf("settings: entry %s has size %d", e.Key, e.Size)
		}
		if len(e.Default) != e.Size {
			return nil, fmt.Errorf("settings: entry %s default is %d bytes, want %d", e.Key, len(e.Default), e.Size)
		}
		if _, dup := s.entries[e.Key]; dup {
			return nil, fmt.Errorf("settings: duplicate entry %s", e.Key)
		}
		s.entries[e.Key] = e
		s.order = append(s.order, e.Key)
	}
	return s, nil
}

// Lookup returns the effective value for key and whether a persisted value
// exists. An unset key yields the schema default with stored == false.
func (s *Store) Lookup(key string) (value []byte, stored bool, err error) {
	e, ok := s.entries[key]
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	v, err := s.db.Get(storageKey(key))
	if errors.Is(err, pebblestore.ErrNotFound) {
		return append([]byte(nil), e.Default...), false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("settings: read %s: %w", key, err)
	}
	if len(v) != e.Size {
		return nil, false, fmt.Errorf("settings: stored %s is %d bytes, want %d", key, len(v), e.Size)
	}
	return v, true, nil
}

// Get returns the stored value for key, or the schema default when nothing
// was ever written.
func (s *Store) Get(key string) ([]byte, error) {
	v, _, err := s.Lookup(key)
	return v, err
}

// Set persists a value for key. The value size must match the schema.
func (s *Store) Set(key string, value []byte) error {
	e, ok := s.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	if len(value) != e.Size {
		return fmt.Errorf("settings: value for %s is %d bytes, want %d", key, len(value), e.Size)
	}
	if err := s.db.Set(storageKey(key), value); err != nil {
		return fmt.Errorf("settings: write %s: %w", key, err)
	}
	return nil
}

// GetUint8 reads a one-byte setting.
func (s *Store) GetUint8(key string) (uint8, error) {
	v, _, err := s.LookupUint8(key)
	return v, err
}

// LookupUint8 reads a one-byte setting, reporting whether a persisted value
// exists.
func (s *Store) LookupUint8(key string) (uint8, bool, error) {
	v, stored, err := s.Lookup(key)
	if err != nil {
		return 0, false, err
	}
	if len(v) != 1 {
		return 0, false, fmt.Errorf("settings: %s is %d bytes, not uint8", key, len(v))
	}
	return v[0], stored, nil
}

// SetUint8 writes a one-byte setting.
func (s *Store) SetUint8(key string, v uint8) error {
	return s.Set(key, []byte{v})
}

// List returns every declared setting with its effective value, in schema
// order.
func (s *Store) List() ([]Item, error) {
	items := make([]Item, 0, len(s.order))
	for _, key := range s.order {
		e := s.entries[key]
		item := Item{
			Key:        key,
			Default:    append([]byte(nil), e.Default...),
			Resettable: e.Resettable,
		}
		v, err := s.db.Get(storageKey(key))
		switch {
		case errors.Is(err, pebblestore.ErrNotFound):
			item.Value = append([]byte(nil), e.Default...)
		case err != nil:
			return nil, fmt.Errorf("settings: read %s: %w", key, err)
		default:
			item.Value = v
			item.Stored = true
		}
		items = append(items, item)
	}
	return items, nil
}

// ResetDefaults deletes every resettable key, so reads fall back to the
// schema defaults. Non-resettable keys keep their stored values.
func (s *Store) ResetDefaults() error {
	for _, key := range s.order {
		if !s.entries[key].Resettable {
			continue
		}
		if err := s.db.Delete(storageKey(key)); err != nil {
			return fmt.Errorf("settings: reset %s: %w", key, err)
		}
	}
	return nil
}

// ResetAll deletes every declared key, resettable or not.
func (s *Store) ResetAll() error {
	for _, key := range s.order {
		if err := s.db.Delete(storageKey(key)); err != nil {
			return fmt.Errorf("settings: reset %s: %w", key, err)
		}
	}
	return nil
}

func storageKey(key string) []byte {
	k := make([]byte, 0, len(keyPrefix)+len(key))
	k = append(k, keyPrefix...)
	k = append(k, key...)
	return k
}
