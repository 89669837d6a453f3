package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/quillstore/quill/codec"
	"github.com/quillstore/quill/schema"
)

// Collection binds one registered record type to its storage location.
// Reads decode through the engine with a document context carrying the
// document's identity; writes stamp the _id, __version__, and
// __last_modified__ metadata before handing the document to the store.
type Collection struct {
	eng      *codec.Engine
	spec     *schema.RecordSpec
	store    Store
	log      *zap.Logger
	location string
}

// CollectionOption configures a Collection
type CollectionOption func(*Collection)

// WithLogger sets the logger used for legacy-location diagnostics
func WithLogger(log *zap.Logger) CollectionOption {
	return func(c *Collection) {
		c.log = log
	}
}

// OpenCollection resolves a record type's storage location against the
// store and returns a handle bound to it. A registered location override
// is consulted with the store's live set of location names; this is the
// single point where opening may block on the store.
func OpenCollection(ctx context.Context, eng *codec.Engine, typeID string, store Store, opts ...CollectionOption) (*Collection, error) {
	spec, ok := eng.Registry().LookupByTypeID(typeID)
	if !ok {
		return nil, fmt.Errorf("docstore: %q: %w", typeID, schema.ErrUnknownTypeID)
	}

	c := &Collection{
		eng:   eng,
		spec:  spec,
		store: store,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	location, err := ResolveLocation(ctx, store, spec)
	if err != nil {
		return nil, err
	}
	if location != spec.CollectionName() {
		c.log.Info("using legacy storage location",
			zap.String("type_id", spec.TypeID),
			zap.String("current", spec.CollectionName()),
			zap.String("legacy", location))
	}
	c.location = location
	return c, nil
}

// ResolveLocation returns the storage location for a record type,
// applying its location override against the store's known locations
func ResolveLocation(ctx context.Context, store Store, spec *schema.RecordSpec) (string, error) {
	if spec.Location == nil {
		return spec.CollectionName(), nil
	}
	names, err := store.ListLocations(ctx)
	if err != nil {
		return "", fmt.Errorf("docstore: list locations: %w", err)
	}
	known := make(map[string]bool, len(names))
	for _, name := range names {
		known[name] = true
	}
	return spec.Location(known), nil
}

// Location returns the resolved storage location name
func (c *Collection) Location() string { return c.location }

// Insert encodes a record, stamps its document metadata, and writes it.
// Returns the document id.
func (c *Collection) Insert(ctx context.Context, v any) (string, error) {
	doc, err := c.toDocument(v)
	if err != nil {
		return "", err
	}

	id, ok := doc[IDKey].(string)
	if !ok || id == "" {
		id = string(NewDocumentID())
		doc[IDKey] = id
	}
	if _, ok := doc[VersionKey]; !ok {
		doc[VersionKey] = int64(0)
	}

	if err := c.store.Write(ctx, c.location, doc); err != nil {
		return "", err
	}
	return id, nil
}

// Update re-encodes a record and writes it over its stored document,
// incrementing the stored version
func (c *Collection) Update(ctx context.Context, v any) error {
	doc, err := c.toDocument(v)
	if err != nil {
		return err
	}
	id, err := documentID(doc)
	if err != nil {
		return err
	}

	prev, err := c.store.Read(ctx, c.location, Filter{IDKey: id})
	if err != nil {
		return err
	}
	version := int64(0)
	if f, ok := asFloat(prev[VersionKey]); ok {
		version = int64(f)
	}
	doc[VersionKey] = version + 1

	return c.store.Write(ctx, c.location, doc)
}

// FindOne returns the first record matching the filter, or nil when none
// matches. The type tag is always part of the query so locations shared
// by multiple types stay disjoint.
func (c *Collection) FindOne(ctx context.Context, filter Filter) (any, error) {
	doc, err := c.store.Read(ctx, c.location, c.classFilter(filter))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return c.fromDocument(doc)
}

// FindByID returns the record with the given id, or nil when absent
func (c *Collection) FindByID(ctx context.Context, id string) (any, error) {
	return c.FindOne(ctx, Filter{IDKey: id})
}

// RequireByID returns the record with the given id, failing with
// ErrNotFound when absent
func (c *Collection) RequireByID(ctx context.Context, id string) (any, error) {
	v, err := c.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("docstore: %s %q: %w", c.spec.TypeID, id, ErrNotFound)
	}
	return v, nil
}

// Delete removes the document with the given id
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.location, id)
}

// classFilter extends a filter with this collection's type tag
func (c *Collection) classFilter(filter Filter) Filter {
	out := Filter{schema.TypeKey: c.spec.TypeID}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

func (c *Collection) toDocument(v any) (map[string]any, error) {
	wire, err := c.eng.Encode(v)
	if err != nil {
		return nil, err
	}
	doc, ok := wire.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("docstore: %s did not encode to a document: %w", c.spec.TypeID, schema.ErrUnencodableType)
	}
	if tag, _ := doc[schema.TypeKey].(string); tag != c.spec.TypeID {
		return nil, fmt.Errorf("docstore: value encodes as %q, collection holds %q", tag, c.spec.TypeID)
	}
	doc[LastModifiedKey] = float64(time.Now().UnixNano()) / 1e9
	return doc, nil
}

func (c *Collection) fromDocument(doc map[string]any) (any, error) {
	id, _ := doc[IDKey].(string)
	dctx := &schema.DocContext{
		Path:       schema.NewFieldPath(c.spec.TypeID),
		DocumentID: id,
		Location:   c.location,
	}

	// Store-owned metadata stays out of the record unless the schema
	// declares it, so loose fields do not absorb it.
	clean := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case IDKey, VersionKey, LastModifiedKey:
			if _, declared := c.spec.Field(k); !declared {
				continue
			}
		}
		clean[k] = v
	}

	return c.eng.Decode(clean, schema.Named(c.spec.TypeID), dctx)
}
