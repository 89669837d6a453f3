// Package codec implements the recursive encode/decode engine between
// typed Go values and quill's schema-less wire representation (scalars,
// []any sequences, and map[string]any documents). Strategy selection is
// driven by the schema registry: pseudo-primitives go through the
// configured codec slots, registered record types are serialized
// field-by-field with an embedded type tag, and containers recurse over
// their elements.
package codec

import (
	"fmt"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/quillstore/quill/schema"
)

// Engine converts between typed values and wire values. Encode and
// Decode are pure, non-blocking computations; an Engine is safe for
// concurrent use once its registry is built.
type Engine struct {
	reg *schema.Registry
	log *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger used for legacy-fallback diagnostics
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an engine bound to the given registry
func New(reg *schema.Registry, opts ...Option) *Engine {
	e := &Engine{reg: reg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry returns the registry this engine dispatches against
func (e *Engine) Registry() *schema.Registry { return e.reg }

// Encode serializes a value into its wire representation. Dispatch order:
// registered type references, pseudo-primitives, registered record types,
// exact primitive scalars, then containers. Values of any other type fail
// with ErrUnencodableType.
func (e *Engine) Encode(v any) (any, error) {
	return e.encode(v)
}

func (e *Engine) encode(v any) (any, error) {
	if v == nil {
		return nil, nil
	}

	// A registered type itself (not an instance) is stored as a tagged
	// string so polymorphic type-valued fields survive round trips.
	if t, ok := v.(reflect.Type); ok {
		id, ok := e.reg.TypeToTypeID(t)
		if !ok {
			return nil, fmt.Errorf("codec: type %s not registered: %w", t, schema.ErrUnencodableType)
		}
		return schema.TypeRefPrefix + id, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	t := rv.Type()

	// Pseudo-primitives are checked before everything else: they may
	// shadow a scalar underlying kind or a struct shape.
	if e.reg.IsPrimitive(t) {
		return e.reg.EncodePseudo(rv.Interface())
	}

	if spec, ok := e.reg.LookupByType(t); ok {
		return e.encodeRecord(spec, rv)
	}

	// Exact scalar matches only. Defined types with a scalar underlying
	// kind must be registered as pseudo-primitives.
	switch x := rv.Interface().(type) {
	case string:
		return x, nil
	case bool:
		return x, nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case time.Time:
		return x, nil
	}

	switch t.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			w, err := e.encode(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			out[i] = w
		}
		return out, nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("codec: map key type %s is not a string: %w", t.Key(), schema.ErrUnencodableType)
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			w, err := e.encode(iter.Value().Interface())
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", iter.Key().String(), err)
			}
			out[iter.Key().String()] = w
		}
		return out, nil
	}

	return nil, fmt.Errorf("codec: value of type %s: %w", t, schema.ErrUnencodableType)
}

// encodeRecord produces the tagged field-by-field document for a record
func (e *Engine) encodeRecord(spec *schema.RecordSpec, rv reflect.Value) (any, error) {
	doc := make(map[string]any, len(spec.Fields)+1)
	doc[schema.TypeKey] = spec.TypeID

	var loose map[string]any
	for i := range spec.Fields {
		f := &spec.Fields[i]
		fv := f.Get(rv)
		if f.Loose {
			if m, ok := fv.Interface().(map[string]any); ok {
				loose = m
			}
			continue
		}
		w, err := e.encode(fv.Interface())
		if err != nil {
			return nil, fmt.Errorf("record %q field %q: %w", spec.TypeID, f.Name, err)
		}
		doc[f.Name] = w
	}

	// Loose fields carry wire keys the schema does not declare; they are
	// re-emitted as-is so unknown data survives a read-modify-write cycle.
	for k, v := range loose {
		if _, claimed := doc[k]; claimed {
			continue
		}
		w, err := e.encode(v)
		if err != nil {
			return nil, fmt.Errorf("record %q loose field %q: %w", spec.TypeID, k, err)
		}
		doc[k] = w
	}

	return doc, nil
}

// Decode deserializes a wire value against the expected type info
func (e *Engine) Decode(wire any, expected schema.TypeInfo, ctx *schema.DocContext) (any, error) {
	return e.decodeAny(wire, expected, ctx, false)
}

// DecodeCoerce is Decode with string coercion enabled: scalar mismatches
// between a stored string and an expected non-string primitive are
// resolved via a type-specific parse where one exists. Used for defensive
// reads of documents written by older, less strict producers.
func (e *Engine) DecodeCoerce(wire any, expected schema.TypeInfo, ctx *schema.DocContext) (any, error) {
	return e.decodeAny(wire, expected, ctx, true)
}

func (e *Engine) decodeAny(wire any, expected schema.TypeInfo, ctx *schema.DocContext, coerce bool) (any, error) {
	rv, err := e.decode(wire, expected, nil, ctx, coerce)
	if err != nil {
		return nil, err
	}
	if !rv.IsValid() {
		return nil, nil
	}
	return rv.Interface(), nil
}

// decode is the core dispatch. want is the Go type the result must be
// assignable to; a nil want selects the canonical Go representation
// (string, int64, float64, bool, time.Time, []any, map[string]any).
func (e *Engine) decode(wire any, exp schema.TypeInfo, want reflect.Type, ctx *schema.DocContext, coerce bool) (reflect.Value, error) {
	if wire == nil && exp.Kind != schema.KindOptional {
		return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), "null", "value is not optional")
	}

	switch exp.Kind {
	case schema.KindNamed:
		if spec, ok := e.reg.LookupByTypeID(exp.Name); ok {
			return e.decodeRecord(spec, wire, want, ctx, coerce)
		}
		if _, ok := e.reg.PseudoType(exp.Name); ok {
			out, err := e.reg.DecodePseudo(wire, exp, ctx, coerce)
			if err != nil {
				return reflect.Value{}, err
			}
			return adapt(reflect.ValueOf(out), want, exp, ctx)
		}
		return reflect.Value{}, fmt.Errorf("codec: expected type %q: %w", exp.Name, schema.ErrUnknownTypeID)

	case schema.KindIface:
		doc, ok := wire.(map[string]any)
		if !ok {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), wireShape(wire), "polymorphic value must be a tagged document")
		}
		tag, ok := doc[schema.TypeKey].(string)
		if !ok {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), wireShape(wire), "document carries no type tag")
		}
		spec, ok := e.reg.LookupByTypeID(tag)
		if !ok {
			return reflect.Value{}, fmt.Errorf("codec: wire tag %q: %w", tag, schema.ErrUnknownTypeID)
		}
		if exp.Iface != nil && !reflect.PointerTo(spec.Type).Implements(exp.Iface) {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), tag, "tagged type does not satisfy the expected interface")
		}
		return e.runRecordDecode(spec, doc, want, ctx, coerce)

	case schema.KindOptional:
		if wire == nil {
			if want != nil {
				return reflect.Zero(want), nil
			}
			return reflect.Value{}, nil
		}
		var elemWant reflect.Type
		if want != nil && want.Kind() == reflect.Pointer {
			elemWant = want.Elem()
		} else {
			elemWant = want
		}
		inner, err := e.decode(wire, exp.Elem(), elemWant, ctx, coerce)
		if err != nil {
			return reflect.Value{}, err
		}
		if want != nil && want.Kind() == reflect.Pointer {
			p := reflect.New(want.Elem())
			p.Elem().Set(inner)
			return p, nil
		}
		return inner, nil

	case schema.KindSeq:
		list, ok := wire.([]any)
		if !ok {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), wireShape(wire), "expected a sequence")
		}
		var out reflect.Value
		var elemWant reflect.Type
		if want != nil && want.Kind() == reflect.Slice {
			out = reflect.MakeSlice(want, len(list), len(list))
			elemWant = want.Elem()
		} else {
			out = reflect.MakeSlice(reflect.TypeOf([]any(nil)), len(list), len(list))
		}
		for i, item := range list {
			ev, err := e.decode(item, exp.Elem(), elemWant, ctx.Index(i), coerce)
			if err != nil {
				return reflect.Value{}, err
			}
			if ev.IsValid() {
				out.Index(i).Set(ev)
			}
		}
		return out, nil

	case schema.KindMapping:
		m, ok := wire.(map[string]any)
		if !ok {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), wireShape(wire), "expected a mapping")
		}
		var out reflect.Value
		var valWant reflect.Type
		if want != nil && want.Kind() == reflect.Map {
			out = reflect.MakeMapWithSize(want, len(m))
			valWant = want.Elem()
		} else {
			out = reflect.MakeMapWithSize(reflect.TypeOf(map[string]any(nil)), len(m))
		}
		for k, item := range m {
			ev, err := e.decode(item, exp.Elem(), valWant, ctx.Field(k), coerce)
			if err != nil {
				return reflect.Value{}, err
			}
			key := reflect.ValueOf(k)
			if out.Type().Key() != key.Type() {
				key = key.Convert(out.Type().Key())
			}
			if !ev.IsValid() {
				ev = reflect.Zero(out.Type().Elem())
			}
			out.SetMapIndex(key, ev)
		}
		return out, nil

	case schema.KindRaw:
		m, ok := wire.(map[string]any)
		if !ok {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), wireShape(wire), "expected a raw mapping")
		}
		return adapt(reflect.ValueOf(m), want, exp, ctx)

	case schema.KindTypeRef:
		s, ok := wire.(string)
		if !ok || len(s) <= len(schema.TypeRefPrefix) || s[:len(schema.TypeRefPrefix)] != schema.TypeRefPrefix {
			return reflect.Value{}, schema.NewDecodeError(ctx, exp.String(), wireShape(wire), "expected a type reference string")
		}
		id := s[len(schema.TypeRefPrefix):]
		t, ok := e.reg.TypeByTypeID(id)
		if !ok {
			return reflect.Value{}, fmt.Errorf("codec: type reference %q: %w", id, schema.ErrUnknownTypeID)
		}
		return adapt(reflect.ValueOf(t), want, exp, ctx)

	case schema.KindString, schema.KindInt, schema.KindFloat, schema.KindBool, schema.KindTime:
		out, err := decodeScalar(wire, exp.Kind, ctx, coerce)
		if err != nil {
			return reflect.Value{}, err
		}
		return adapt(reflect.ValueOf(out), want, exp, ctx)
	}

	return reflect.Value{}, fmt.Errorf("codec: expected type %s: %w", exp, schema.ErrUndecodableType)
}

// decodeRecord handles a wire value against a specific expected record
// type, enforcing agreement with an embedded type tag when one is present
func (e *Engine) decodeRecord(spec *schema.RecordSpec, wire any, want reflect.Type, ctx *schema.DocContext, coerce bool) (reflect.Value, error) {
	doc, ok := wire.(map[string]any)
	if !ok {
		return reflect.Value{}, schema.NewDecodeError(ctx, spec.TypeID, wireShape(wire), "record value must be a document")
	}

	if tag, ok := doc[schema.TypeKey].(string); ok && tag != spec.TypeID {
		if _, known := e.reg.LookupByTypeID(tag); !known {
			return reflect.Value{}, fmt.Errorf("codec: wire tag %q: %w", tag, schema.ErrUnknownTypeID)
		}
		// The tag names a different registered record. There is no
		// subtype relation between record types, so declared-vs-stored
		// disagreement is surfaced rather than silently resolved.
		return reflect.Value{}, schema.NewDecodeError(ctx, spec.TypeID, tag, "type tag disagrees with expected record type")
	}

	return e.runRecordDecode(spec, doc, want, ctx, coerce)
}

// runRecordDecode dispatches to the per-type decode override when one is
// registered, and to the default field-by-field path otherwise
func (e *Engine) runRecordDecode(spec *schema.RecordSpec, doc map[string]any, want reflect.Type, ctx *schema.DocContext, coerce bool) (reflect.Value, error) {
	var out any
	var err error
	if spec.DecodeOverride != nil {
		out, err = spec.DecodeOverride(e, doc, ctx, coerce)
	} else {
		out, err = e.DecodeRecordFields(spec, doc, ctx, coerce)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	return adapt(reflect.ValueOf(out), want, schema.Named(spec.TypeID), ctx)
}

// DecodeRecordFields runs the default field-by-field record decode and
// returns a pointer to a freshly constructed record. Per-field lookup
// order: the current wire name, then the declared legacy name, then the
// field default; anything else fails with a DecodeError naming the field.
func (e *Engine) DecodeRecordFields(spec *schema.RecordSpec, doc map[string]any, ctx *schema.DocContext, coerce bool) (any, error) {
	pv := spec.New()
	elem := pv.Elem()

	var looseField *schema.FieldSpec
	claimed := map[string]bool{schema.TypeKey: true}

	for i := range spec.Fields {
		f := &spec.Fields[i]
		if f.Loose {
			looseField = f
			claimed[f.Name] = true
			continue
		}
		claimed[f.Name] = true
		if f.Legacy != "" {
			claimed[f.Legacy] = true
		}

		raw, ok := doc[f.Name]
		fctx := ctx.Field(f.Name)
		if !ok && f.Legacy != "" {
			if raw, ok = doc[f.Legacy]; ok {
				fctx = ctx.Field(f.Legacy)
				e.log.Info("using legacy field",
					zap.String("type_id", spec.TypeID),
					zap.String("field", f.Name),
					zap.String("legacy", f.Legacy))
			}
		}
		if !ok {
			if f.HasDefault {
				e.log.Warn("using default value for missing field",
					zap.String("type_id", spec.TypeID),
					zap.String("field", f.Name))
				if f.Default != nil {
					dv := reflect.ValueOf(f.Default)
					if !dv.Type().AssignableTo(f.GoType()) {
						if !dv.Type().ConvertibleTo(f.GoType()) {
							return nil, fmt.Errorf("codec: record %q field %q: default value type %s does not fit %s", spec.TypeID, f.Name, dv.Type(), f.GoType())
						}
						dv = dv.Convert(f.GoType())
					}
					f.Set(elem, dv)
				}
				continue
			}
			return nil, schema.NewDecodeError(fctx, f.Type.String(), "absent", "document has no value for field "+f.Name)
		}

		fv, err := e.decode(raw, f.Type, f.GoType(), fctx, coerce)
		if err != nil {
			return nil, err
		}
		if fv.IsValid() {
			f.Set(elem, fv)
		}
	}

	if looseField != nil {
		extra := make(map[string]any)
		for k, v := range doc {
			if !claimed[k] {
				extra[k] = v
			}
		}
		if len(extra) > 0 {
			looseField.Set(elem, reflect.ValueOf(extra))
		}
	}

	return pv.Interface(), nil
}

// adapt fits a decoded value to the Go type the caller needs
func adapt(v reflect.Value, want reflect.Type, exp schema.TypeInfo, ctx *schema.DocContext) (reflect.Value, error) {
	if want == nil || !v.IsValid() {
		return v, nil
	}
	t := v.Type()
	if t.AssignableTo(want) {
		return v, nil
	}
	// A record decodes to *T; struct-valued fields take the element
	if t.Kind() == reflect.Pointer && t.Elem().AssignableTo(want) {
		return v.Elem(), nil
	}
	// Numeric width adjustments (int64 -> int32 fields and the like).
	// String-to-number conversions are never taken here; those go through
	// the coercion path in the scalar codec.
	if t.ConvertibleTo(want) && t.Kind() != reflect.String && want.Kind() != reflect.String {
		return v.Convert(want), nil
	}
	if t.Kind() == reflect.String && want.Kind() == reflect.String {
		return v.Convert(want), nil
	}
	return reflect.Value{}, schema.NewDecodeError(ctx, want.String(), t.String(), "decoded value of type "+exp.String()+" does not fit")
}

// wireShape names the shape of a wire value for diagnostics
func wireShape(wire any) string {
	switch wire.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "document"
	case []any:
		return "sequence"
	case string:
		return "string"
	case bool:
		return "bool"
	case int, int32, int64, float32, float64:
		return "number"
	case time.Time:
		return "timestamp"
	default:
		return reflect.TypeOf(wire).String()
	}
}
