package codec

import (
	"fmt"
	"reflect"

	"github.com/quillstore/quill/schema"
)

var _ schema.Decoder = (*Engine)(nil)

// DefaultPseudoEncoder returns an encoder slot covering the common
// pseudo-primitive shapes: defined types whose underlying kind is a
// string (identifier and enum-style types), an integer, a float, or a
// bool. Applications with richer pseudo-primitives wrap this and handle
// their own types first.
func DefaultPseudoEncoder() schema.EncodeFunc {
	return func(v any) (any, error) {
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.String:
			return rv.String(), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return rv.Int(), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			return int64(rv.Uint()), nil
		case reflect.Float32, reflect.Float64:
			return rv.Float(), nil
		case reflect.Bool:
			return rv.Bool(), nil
		}
		return nil, fmt.Errorf("codec: pseudo-primitive %s has no default encoding: %w", rv.Type(), schema.ErrUnencodableType)
	}
}

// DefaultPseudoDecoder returns the decoder slot matching
// DefaultPseudoEncoder: the wire scalar is decoded against the underlying
// kind of the registered type and converted back into it.
func DefaultPseudoDecoder() schema.DecodeFunc {
	return func(wire any, expected schema.TypeInfo, typ reflect.Type, ctx *schema.DocContext, coerce bool) (any, error) {
		var kind schema.Kind
		switch typ.Kind() {
		case reflect.String:
			kind = schema.KindString
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
			kind = schema.KindInt
		case reflect.Float32, reflect.Float64:
			kind = schema.KindFloat
		case reflect.Bool:
			kind = schema.KindBool
		default:
			return nil, fmt.Errorf("codec: pseudo-primitive %q (%s) has no default decoding: %w", expected.Name, typ, schema.ErrUndecodableType)
		}

		scalar, err := decodeScalar(wire, kind, ctx, coerce)
		if err != nil {
			return nil, err
		}
		sv := reflect.ValueOf(scalar)
		if !sv.Type().ConvertibleTo(typ) {
			return nil, schema.NewDecodeError(ctx, expected.Name, wireShape(wire), "")
		}
		return sv.Convert(typ).Interface(), nil
	}
}
