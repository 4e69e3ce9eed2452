// Package cas implements conditional single-document writes: an update is
// applied only if the stored document still holds the expected values.
package cas

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound  = errors.New("document not found")
	ErrConflict  = errors.New("document changed concurrently")
	ErrDuplicate = errors.New("document already exists")
)

const (
	FieldID        = "_id"
	FieldVersion   = "version"
	FieldUpdatedAt = "updated_at"
)

type absent struct{}

// Absent as an expected value requires the field to be missing entirely.
// A nil expected value matches a field that is null or missing.
var Absent = absent{}

// Expect maps field paths (dotted for nested keys) to their required values.
type Expect map[string]any

// Set maps field paths to the values written by a successful swap.
type Set map[string]any

// Guard performs compare-and-swap writes against one collection.
type Guard struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewGuard(coll *mongo.Collection) *Guard {
	return &Guard{
		coll: coll,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Swap applies set to the document with the given id if every field in
// expect still matches. version is incremented and updated_at refreshed on
// every successful swap. A miss is resolved to ErrNotFound or ErrConflict.
func (g *Guard) Swap(ctx context.Context, id string, expect Expect, set Set) error {
	result, err := g.coll.UpdateOne(ctx, Filter(id, expect), Update(set, g.now()))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to swap document %s: %w", id, err)
	}
	if result.MatchedCount == 1 {
		return nil
	}
	return g.miss(ctx, id)
}

// Delete removes the document if expect still matches.
func (g *Guard) Delete(ctx context.Context, id string, expect Expect) error {
	result, err := g.coll.DeleteOne(ctx, Filter(id, expect))
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if result.DeletedCount == 1 {
		return nil
	}
	return g.miss(ctx, id)
}

// Insert creates doc, reporting unique index violations as ErrDuplicate.
func (g *Guard) Insert(ctx context.Context, doc any) error {
	if _, err := g.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (g *Guard) InsertMany(ctx context.Context, docs []any) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := g.coll.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert documents: %w", err)
	}
	return nil
}

func (g *Guard) miss(ctx context.Context, id string) error {
	n, err := g.coll.CountDocuments(ctx, bson.D{{Key: FieldID, Value: id}})
	if err != nil {
		return fmt.Errorf("failed to resolve swap miss for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// Filter builds the match document for a conditional write.
func Filter(id string, expect Expect) bson.D {
	filter := bson.D{{Key: FieldID, Value: id}}
	for _, field := range sortedKeys(expect) {
		value := expect[field]
		switch value.(type) {
		case absent:
			filter = append(filter, bson.E{Key: field, Value: bson.D{{Key: "$exists", Value: false}}})
		default:
			filter = append(filter, bson.E{Key: field, Value: value})
		}
	}
	return filter
}

// Update builds the $set/$inc document written by a successful swap.
func Update(set Set, now time.Time) bson.D {
	fields := bson.D{}
	for _, field := range sortedKeys(set) {
		fields = append(fields, bson.E{Key: field, Value: set[field]})
	}
	fields = append(fields, bson.E{Key: FieldUpdatedAt, Value: now})

	return bson.D{
		{Key: "$set", Value: fields},
		{Key: "$inc", Value: bson.D{{Key: FieldVersion, Value: 1}}},
	}
}
