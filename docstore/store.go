// Package docstore provides the storage transport behind quill's
// serialization engine: a passive key-value document store that accepts
// and returns wire documents, with Redis and SQL backends, plus the
// document layer binding record types to storage locations.
package docstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Reserved document metadata keys maintained by the document layer
const (
	IDKey           = "_id"
	VersionKey      = "__version__"
	LastModifiedKey = "__last_modified__"
)

// Common store error types
var (
	// ErrNotFound is returned when no document matches
	ErrNotFound = errors.New("document not found")

	// ErrMissingID is returned when a document has no usable _id
	ErrMissingID = errors.New("document missing _id")
)

// DocumentID identifies a stored document. Used for a document's own _id
// and for reference fields pointing at other documents.
type DocumentID string

// NewDocumentID returns a fresh random document id
func NewDocumentID() DocumentID {
	return DocumentID(uuid.NewString())
}

// Filter selects documents by top-level field equality
type Filter map[string]any

// Store is the narrow transport surface the engine's collaborators
// consume. Implementations persist wire documents opaquely; they never
// interpret document contents beyond the _id key.
type Store interface {
	// ListLocations enumerates the existing storage location names
	ListLocations(ctx context.Context) ([]string, error)

	// Read returns the first document in location matching filter, or
	// ErrNotFound when none matches
	Read(ctx context.Context, location string, filter Filter) (map[string]any, error)

	// Write upserts a document into location, keyed by its _id
	Write(ctx context.Context, location string, doc map[string]any) error

	// Delete removes the document with the given id from location,
	// returning ErrNotFound when it does not exist
	Delete(ctx context.Context, location string, id string) error
}

// documentID extracts the _id of a wire document
func documentID(doc map[string]any) (string, error) {
	id, ok := doc[IDKey].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("docstore: %w", ErrMissingID)
	}
	return id, nil
}

// matches reports whether a document satisfies a top-level equality
// filter. Numbers are compared by value so that documents round-tripped
// through JSON (where all numbers come back as float64) still match
// integer filter values.
func matches(doc map[string]any, filter Filter) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
