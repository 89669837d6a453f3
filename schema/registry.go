// Package schema provides the type registry for quill's document
// serialization engine. Record types are registered with an explicit,
// ordered field schema and a stable string type id; pseudo-primitives are
// registered as a named type set with a pair of swappable codec functions.
// The registry is built once at startup and is read-only afterward.
package schema

import (
	"fmt"
	"reflect"
)

// TypeKey is the reserved wire key holding a record's type id
const TypeKey = "__type__"

// TypeRefPrefix marks a wire string holding a type reference rather than
// a plain string value
const TypeRefPrefix = "type_id="

// EncodeFunc converts a pseudo-primitive value to its wire representation
type EncodeFunc func(v any) (any, error)

// DecodeFunc converts a wire value back into a pseudo-primitive of the
// expected type. The registry resolves the expected name to its concrete
// type before invoking the slot. The coerce flag requests best-effort
// parsing of string scalars written by older, less strict producers.
type DecodeFunc func(wire any, expected TypeInfo, typ reflect.Type, ctx *DocContext, coerce bool) (any, error)

// Decoder is the narrow engine surface handed to per-type decode
// overrides so they can fall back to the default field-by-field path.
type Decoder interface {
	// Decode deserializes a wire value against the expected type info
	Decode(wire any, expected TypeInfo, ctx *DocContext) (any, error)

	// DecodeCoerce is Decode with string coercion enabled
	DecodeCoerce(wire any, expected TypeInfo, ctx *DocContext) (any, error)

	// DecodeRecordFields runs the default field-by-field record decode
	DecodeRecordFields(spec *RecordSpec, doc map[string]any, ctx *DocContext, coerce bool) (any, error)
}

// DecodeOverride fully replaces the default record decode for one type.
// Implementations typically attempt the default path first and fall back
// to alternate field names or shapes on failure.
type DecodeOverride func(dec Decoder, doc map[string]any, ctx *DocContext, coerce bool) (any, error)

// LocationOverride resolves the storage location for one record type
// against the store's live set of location names, typically returning the
// current name when present and a previously known name otherwise.
type LocationOverride func(known map[string]bool) string

// FieldSpec declares one serializable field of a record type
type FieldSpec struct {
	// Name is the wire key for this field
	Name string

	// GoName is the Go struct field backing this wire key
	GoName string

	// Type is the declared type of the field
	Type TypeInfo

	// Legacy is an optional prior wire key consulted when Name is absent
	// from a stored document
	Legacy string

	// Default is used when neither Name nor Legacy is present
	Default    any
	HasDefault bool

	// Loose marks a map[string]any field that absorbs wire keys not
	// claimed by any declared field, preserving them across round trips
	Loose bool

	// resolved at registry build time
	index  []int
	goType reflect.Type
}

// GoType returns the Go type of the backing struct field. Valid only
// after the owning registry has been built.
func (f *FieldSpec) GoType() reflect.Type { return f.goType }

// Get returns this field's value on a record struct value
func (f *FieldSpec) Get(record reflect.Value) reflect.Value {
	return record.FieldByIndex(f.index)
}

// Set assigns this field's value on an addressable record struct value
func (f *FieldSpec) Set(record reflect.Value, v reflect.Value) {
	record.FieldByIndex(f.index).Set(v)
}

// RecordSpec declares a registered record type
type RecordSpec struct {
	// TypeID is the stable string identifier, unique across the registry
	TypeID string

	// Type is the concrete struct type
	Type reflect.Type

	// Collection overrides the default "type id is the storage location"
	// rule with a fixed name
	Collection string

	// Fields is the ordered field schema
	Fields []FieldSpec

	// DecodeOverride, when set, replaces the default field-by-field
	// decode for this type
	DecodeOverride DecodeOverride

	// Location, when set, resolves the storage location against the
	// store's known location names
	Location LocationOverride
}

// CollectionName returns the storage location name before any
// per-store legacy fallback is applied
func (s *RecordSpec) CollectionName() string {
	if s.Collection != "" {
		return s.Collection
	}
	return s.TypeID
}

// New allocates a zero instance of the record, returned as a pointer value
func (s *RecordSpec) New() reflect.Value {
	return reflect.New(s.Type)
}

// Field returns the field spec with the given wire name
func (s *RecordSpec) Field(name string) (*FieldSpec, bool) {
	for i := range s.Fields {
		if s.Fields[i].Name == name {
			return &s.Fields[i], true
		}
	}
	return nil, false
}

// Config assembles everything the registry is built from
type Config struct {
	// Records are the record type specs to register
	Records []RecordSpec

	// PseudoPrimitives maps registered names to types serialized via the
	// codec slots rather than by field recursion
	PseudoPrimitives map[string]reflect.Type

	// EncodePseudo and DecodePseudo are the two codec slots. Both must be
	// set when PseudoPrimitives is non-empty.
	EncodePseudo EncodeFunc
	DecodePseudo DecodeFunc
}

// Registry is the process-wide lookup table mapping type ids to concrete
// record types and back. It is immutable once built; rebuilds construct a
// new Registry and swap it in via a Handle.
type Registry struct {
	byID   map[string]*RecordSpec
	byType map[reflect.Type]*RecordSpec

	pseudoByName map[string]reflect.Type
	pseudoByType map[reflect.Type]string

	encodePseudo EncodeFunc
	decodePseudo DecodeFunc
}

// NewRegistry builds a registry from the given config. Construction fails
// with ErrMissingTypeID when a record spec omits its type id and with
// ErrDuplicateTypeID when two specs (or a spec and a pseudo-primitive)
// share one. Field specs are resolved against the concrete struct types
// and validated for dangling named references.
func NewRegistry(cfg Config) (*Registry, error) {
	r := &Registry{
		byID:         make(map[string]*RecordSpec, len(cfg.Records)),
		byType:       make(map[reflect.Type]*RecordSpec, len(cfg.Records)),
		pseudoByName: make(map[string]reflect.Type, len(cfg.PseudoPrimitives)),
		pseudoByType: make(map[reflect.Type]string, len(cfg.PseudoPrimitives)),
		encodePseudo: cfg.EncodePseudo,
		decodePseudo: cfg.DecodePseudo,
	}

	if len(cfg.PseudoPrimitives) > 0 && (cfg.EncodePseudo == nil || cfg.DecodePseudo == nil) {
		return nil, fmt.Errorf("schema: pseudo-primitives registered without both codec slots")
	}

	for name, typ := range cfg.PseudoPrimitives {
		if name == "" {
			return nil, fmt.Errorf("schema: pseudo-primitive %s: %w", typ, ErrMissingTypeID)
		}
		r.pseudoByName[name] = typ
		if prev, ok := r.pseudoByType[typ]; ok && prev != name {
			return nil, fmt.Errorf("schema: type %s registered under %q and %q: %w", typ, prev, name, ErrDuplicateTypeID)
		}
		r.pseudoByType[typ] = name
	}

	for i := range cfg.Records {
		spec := cfg.Records[i]
		if spec.TypeID == "" {
			return nil, fmt.Errorf("schema: record %s: %w", spec.Type, ErrMissingTypeID)
		}
		if spec.Type == nil || spec.Type.Kind() != reflect.Struct {
			return nil, fmt.Errorf("schema: record %q must be a struct type, got %v", spec.TypeID, spec.Type)
		}
		if _, ok := r.byID[spec.TypeID]; ok {
			return nil, fmt.Errorf("schema: %q: %w", spec.TypeID, ErrDuplicateTypeID)
		}
		if _, ok := r.pseudoByName[spec.TypeID]; ok {
			return nil, fmt.Errorf("schema: %q collides with a pseudo-primitive: %w", spec.TypeID, ErrDuplicateTypeID)
		}
		if err := resolveFields(&spec); err != nil {
			return nil, err
		}
		sp := new(RecordSpec)
		*sp = spec
		r.byID[spec.TypeID] = sp
		r.byType[spec.Type] = sp
	}

	// Validate named field references now that all names are known
	for _, spec := range r.byID {
		for i := range spec.Fields {
			if err := r.validateTypeInfo(spec.TypeID, spec.Fields[i].Name, spec.Fields[i].Type); err != nil {
				return nil, err
			}
		}
	}

	return r, nil
}

// resolveFields binds each field spec to its backing struct field
func resolveFields(spec *RecordSpec) error {
	for i := range spec.Fields {
		f := &spec.Fields[i]
		if f.GoName == "" {
			return fmt.Errorf("schema: record %q field %q has no Go field name", spec.TypeID, f.Name)
		}
		sf, ok := spec.Type.FieldByName(f.GoName)
		if !ok {
			return fmt.Errorf("schema: record %q field %q: struct %s has no field %s", spec.TypeID, f.Name, spec.Type, f.GoName)
		}
		f.index = sf.Index
		f.goType = sf.Type
		if f.Loose && sf.Type != reflect.TypeOf(map[string]any(nil)) {
			return fmt.Errorf("schema: record %q loose field %q must be map[string]any", spec.TypeID, f.Name)
		}
		if err := checkBacking(spec.TypeID, f.Name, f.Type, sf.Type); err != nil {
			return err
		}
	}
	return nil
}

// checkBacking rejects container declarations whose backing Go type the
// decoder cannot construct, so the mismatch surfaces when the registry is
// built instead of mid-decode
func checkBacking(typeID, fieldName string, t TypeInfo, gt reflect.Type) error {
	if gt.Kind() == reflect.Interface {
		return nil
	}
	switch t.Kind {
	case KindOptional:
		if gt.Kind() == reflect.Pointer {
			gt = gt.Elem()
		}
		if len(t.Params) != 1 {
			return nil
		}
		return checkBacking(typeID, fieldName, t.Params[0], gt)
	case KindSeq:
		if gt.Kind() != reflect.Slice {
			return fmt.Errorf("schema: record %q field %q: sequence fields must be backed by a slice, got %s", typeID, fieldName, gt)
		}
		if len(t.Params) != 1 {
			return nil
		}
		return checkBacking(typeID, fieldName, t.Params[0], gt.Elem())
	case KindMapping:
		if gt.Kind() != reflect.Map || gt.Key().Kind() != reflect.String {
			return fmt.Errorf("schema: record %q field %q: mapping fields must be backed by a string-keyed map, got %s", typeID, fieldName, gt)
		}
		if len(t.Params) != 1 {
			return nil
		}
		return checkBacking(typeID, fieldName, t.Params[0], gt.Elem())
	}
	return nil
}

func (r *Registry) validateTypeInfo(typeID, fieldName string, t TypeInfo) error {
	switch t.Kind {
	case KindNamed:
		if _, ok := r.byID[t.Name]; ok {
			return nil
		}
		if _, ok := r.pseudoByName[t.Name]; ok {
			return nil
		}
		return fmt.Errorf("schema: record %q field %q references %q: %w", typeID, fieldName, t.Name, ErrUnknownTypeID)
	case KindSeq, KindMapping, KindOptional:
		if len(t.Params) != 1 {
			return fmt.Errorf("schema: record %q field %q: %s requires exactly one type parameter", typeID, fieldName, t.Kind)
		}
		return r.validateTypeInfo(typeID, fieldName, t.Params[0])
	default:
		return nil
	}
}

// LookupByTypeID returns the record spec registered under the given id
func (r *Registry) LookupByTypeID(id string) (*RecordSpec, bool) {
	spec, ok := r.byID[id]
	return spec, ok
}

// LookupByType returns the record spec for the given concrete type.
// Pointer types are resolved to their element type.
func (r *Registry) LookupByType(t reflect.Type) (*RecordSpec, bool) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	spec, ok := r.byType[t]
	return spec, ok
}

// IsPrimitive reports whether the type is a registered pseudo-primitive,
// to be serialized through the codec slots instead of field recursion
func (r *Registry) IsPrimitive(t reflect.Type) bool {
	_, ok := r.pseudoByType[t]
	return ok
}

// PseudoName returns the registered name of a pseudo-primitive type
func (r *Registry) PseudoName(t reflect.Type) (string, bool) {
	name, ok := r.pseudoByType[t]
	return name, ok
}

// PseudoType returns the pseudo-primitive type registered under name
func (r *Registry) PseudoType(name string) (reflect.Type, bool) {
	t, ok := r.pseudoByName[name]
	return t, ok
}

// EncodePseudo invokes the configured pseudo-primitive encoder slot
func (r *Registry) EncodePseudo(v any) (any, error) {
	if r.encodePseudo == nil {
		return nil, fmt.Errorf("schema: no pseudo-primitive encoder configured: %w", ErrUnencodableType)
	}
	return r.encodePseudo(v)
}

// DecodePseudo resolves the expected name to its registered type and
// invokes the configured pseudo-primitive decoder slot
func (r *Registry) DecodePseudo(wire any, expected TypeInfo, ctx *DocContext, coerce bool) (any, error) {
	if r.decodePseudo == nil {
		return nil, fmt.Errorf("schema: no pseudo-primitive decoder configured: %w", ErrUndecodableType)
	}
	typ, ok := r.pseudoByName[expected.Name]
	if !ok {
		return nil, fmt.Errorf("schema: pseudo-primitive %q: %w", expected.Name, ErrUnknownTypeID)
	}
	return r.decodePseudo(wire, expected, typ, ctx, coerce)
}

// TypeToTypeID returns the registered id for a record or pseudo-primitive
// type. Pointer types are resolved to their element type.
func (r *Registry) TypeToTypeID(t reflect.Type) (string, bool) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if spec, ok := r.byType[t]; ok {
		return spec.TypeID, true
	}
	if name, ok := r.pseudoByType[t]; ok {
		return name, true
	}
	return "", false
}

// TypeByTypeID returns the concrete type registered under the given id
func (r *Registry) TypeByTypeID(id string) (reflect.Type, bool) {
	if spec, ok := r.byID[id]; ok {
		return spec.Type, true
	}
	if t, ok := r.pseudoByName[id]; ok {
		return t, true
	}
	return nil, false
}

// TypeIDs returns all registered record type ids
func (r *Registry) TypeIDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
