// Package memstore provides in-memory repositories with the same conditional
// write semantics as the Mongo implementations. Transactions are not atomic,
// so services running on it exercise their compensation paths.
package memstore

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"canchas/pkg/cas"
	mongotx "canchas/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/bson"
)

// NewTxManager returns the non-atomic transaction manager used by every store.
func NewTxManager() mongotx.TransactionManager {
	return mongotx.NewTransactionManager(nil, false)
}

// Collection stores documents of type T as their BSON form, keyed by _id.
// Reads decode a fresh copy, so callers never share state with the store.
type Collection[T any] struct {
	mu     sync.Mutex
	docs   map[string]bson.M
	order  []string
	unique [][]string

	// OnSwap, when set, runs before every Swap and Delete. A non-nil error is
	// returned instead of performing the write.
	OnSwap func(id string) error
}

// NewCollection creates a collection. Each unique entry lists the fields of
// one compound unique index.
func NewCollection[T any](unique ...[]string) *Collection[T] {
	return &Collection[T]{
		docs:   map[string]bson.M{},
		unique: unique,
	}
}

func (c *Collection[T]) Insert(doc *T) error {
	m, err := toDoc(doc)
	if err != nil {
		return err
	}
	id, ok := m[cas.FieldID].(string)
	if !ok || id == "" {
		return fmt.Errorf("document has no string _id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.docs[id]; exists {
		return cas.ErrDuplicate
	}
	if c.violatesUnique(m, id) {
		return cas.ErrDuplicate
	}
	c.docs[id] = m
	c.order = append(c.order, id)
	return nil
}

func (c *Collection[T]) Get(id string) (*T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.docs[id]
	if !ok {
		return nil, false
	}
	out, err := fromDoc[T](m)
	if err != nil {
		return nil, false
	}
	return out, true
}

// Find returns the documents accepted by pred in insertion order.
func (c *Collection[T]) Find(pred func(*T) bool) []*T {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*T
	for _, id := range c.order {
		m, ok := c.docs[id]
		if !ok {
			continue
		}
		doc, err := fromDoc[T](m)
		if err != nil {
			continue
		}
		if pred == nil || pred(doc) {
			out = append(out, doc)
		}
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.docs)
}

// Swap checks expect and applies set under one lock.
func (c *Collection[T]) Swap(id string, expect cas.Expect, set cas.Set) error {
	if c.OnSwap != nil {
		if err := c.OnSwap(id); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.docs[id]
	if !ok {
		return cas.ErrNotFound
	}
	if !cas.Matches(m, expect) {
		return cas.ErrConflict
	}

	next, err := clone(m)
	if err != nil {
		return err
	}
	cas.Apply(next, set, time.Now().UTC())
	// Round-trip so stored values have the shapes a decode would produce.
	next, err = clone(next)
	if err != nil {
		return err
	}
	if c.violatesUnique(next, id) {
		return cas.ErrDuplicate
	}
	c.docs[id] = next
	return nil
}

func (c *Collection[T]) Delete(id string, expect cas.Expect) error {
	if c.OnSwap != nil {
		if err := c.OnSwap(id); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.docs[id]
	if !ok {
		return cas.ErrNotFound
	}
	if !cas.Matches(m, expect) {
		return cas.ErrConflict
	}
	delete(c.docs, id)
	c.order = slices.DeleteFunc(c.order, func(o string) bool { return o == id })
	return nil
}

func (c *Collection[T]) violatesUnique(m bson.M, id string) bool {
	for _, fields := range c.unique {
		key := uniqueKey(m, fields)
		for otherID, other := range c.docs {
			if otherID != id && uniqueKey(other, fields) == key {
				return true
			}
		}
	}
	return false
}

func uniqueKey(m bson.M, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = fmt.Sprint(m[f])
	}
	return strings.Join(parts, "\x00")
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return m, nil
}

func fromDoc[T any](m bson.M) (*T, error) {
	raw, err := bson.Marshal(m)
	if err != nil {
		return nil, err
	}
	var out T
	if err := bson.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func clone(m bson.M) (bson.M, error) {
	return toDoc(m)
}
