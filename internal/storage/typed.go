package storage

import (
	"encoding/json"
	"fmt"
)

// Docs is a typed view of one kind of document.
type Docs[T any] struct {
	store *Store
	kind  string
}

// NewDocs binds a kind to the value type stored under it.
func NewDocs[T any](store *Store, kind string) *Docs[T] {
	return &Docs[T]{store: store, kind: kind}
}

// Load decodes the document with the given id. ok is false when it is missing.
func (d *Docs[T]) Load(id string) (value T, ok bool, err error) {
	body, _, err := d.store.Load(d.kind, id)
	if err != nil || body == nil {
		return value, false, err
	}
	if err := json.Unmarshal(body, &value); err != nil {
		return value, false, fmt.Errorf("decode %s/%s: %w", d.kind, id, err)
	}
	return value, true, nil
}

// Save encodes and stores value under id.
func (d *Docs[T]) Save(id string, value T) error {
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", d.kind, id, err)
	}
	_, err = d.store.Save(d.kind, id, body)
	return err
}

// Delete removes the document with the given id.
func (d *Docs[T]) Delete(id string) error {
	return d.store.Delete(d.kind, id)
}
