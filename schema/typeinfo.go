package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// Kind identifies the base shape of a declared type.
type Kind int

const (
	KindInvalid Kind = iota

	// Scalar kinds
	KindString
	KindInt
	KindFloat
	KindBool
	KindTime

	// Raw is a free-form map[string]any stored without interpretation
	KindRaw

	// Container kinds (parameterized)
	KindSeq      // ordered sequence, one element parameter
	KindMapping  // string-keyed mapping, one value parameter
	KindOptional // nullable wrapper, one element parameter

	// Named refers to a registered record type or pseudo-primitive by name
	KindNamed

	// Iface is a polymorphic slot resolved from the wire type tag
	KindIface

	// TypeRef holds a registered type itself rather than an instance
	KindTypeRef
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindRaw:
		return "raw"
	case KindSeq:
		return "seq"
	case KindMapping:
		return "mapping"
	case KindOptional:
		return "optional"
	case KindNamed:
		return "named"
	case KindIface:
		return "iface"
	case KindTypeRef:
		return "typeref"
	default:
		return "invalid"
	}
}

// TypeInfo describes a declared or expected type: a base kind plus its
// ordered type parameters. Params is non-empty only for the container
// kinds (seq, mapping, optional). Values are immutable once constructed.
type TypeInfo struct {
	Kind   Kind
	Name   string       // registered name, set only for KindNamed
	Iface  reflect.Type // interface type, set only for KindIface
	Params []TypeInfo
}

// String returns the string scalar type info
func String() TypeInfo { return TypeInfo{Kind: KindString} }

// Int returns the int type info
func Int() TypeInfo { return TypeInfo{Kind: KindInt} }

// Float returns the float type info
func Float() TypeInfo { return TypeInfo{Kind: KindFloat} }

// Bool returns the bool type info
func Bool() TypeInfo { return TypeInfo{Kind: KindBool} }

// Time returns the timestamp type info
func Time() TypeInfo { return TypeInfo{Kind: KindTime} }

// Raw returns the free-form map type info
func Raw() TypeInfo { return TypeInfo{Kind: KindRaw} }

// Seq returns a sequence type info with the given element type
func Seq(elem TypeInfo) TypeInfo {
	return TypeInfo{Kind: KindSeq, Params: []TypeInfo{elem}}
}

// Mapping returns a string-keyed mapping type info with the given value type
func Mapping(value TypeInfo) TypeInfo {
	return TypeInfo{Kind: KindMapping, Params: []TypeInfo{value}}
}

// Optional returns a nullable wrapper around the given element type
func Optional(elem TypeInfo) TypeInfo {
	return TypeInfo{Kind: KindOptional, Params: []TypeInfo{elem}}
}

// Named returns a type info referring to a registered record type or
// pseudo-primitive by its registered name
func Named(name string) TypeInfo {
	return TypeInfo{Kind: KindNamed, Name: name}
}

// Iface returns a polymorphic type info constrained to the given interface
// type. The concrete type is recovered from the wire type tag at decode time.
func Iface(t reflect.Type) TypeInfo {
	return TypeInfo{Kind: KindIface, Iface: t}
}

// TypeRef returns the type info for a value that is itself a registered type
func TypeRef() TypeInfo { return TypeInfo{Kind: KindTypeRef} }

// Elem returns the sole type parameter. It panics if the type info does
// not carry exactly one parameter.
func (t TypeInfo) Elem() TypeInfo {
	if len(t.Params) != 1 {
		panic(fmt.Sprintf("schema: Elem on %s with %d params", t.Kind, len(t.Params)))
	}
	return t.Params[0]
}

// Equal reports whether two type infos describe the same type
func (t TypeInfo) Equal(o TypeInfo) bool {
	if t.Kind != o.Kind || t.Name != o.Name || t.Iface != o.Iface {
		return false
	}
	if len(t.Params) != len(o.Params) {
		return false
	}
	for i := range t.Params {
		if !t.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return true
}

// String implements fmt.Stringer
func (t TypeInfo) String() string {
	switch t.Kind {
	case KindNamed:
		return t.Name
	case KindIface:
		if t.Iface != nil {
			return "iface<" + t.Iface.String() + ">"
		}
		return "iface"
	case KindSeq, KindMapping, KindOptional:
		parts := make([]string, len(t.Params))
		for i, p := range t.Params {
			parts[i] = p.String()
		}
		return t.Kind.String() + "<" + strings.Join(parts, ", ") + ">"
	default:
		return t.Kind.String()
	}
}
