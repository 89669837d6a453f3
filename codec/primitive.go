package codec

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/quillstore/quill/schema"
)

// decodeScalar converts a wire scalar into its canonical Go value:
// string, int64, float64, bool, or time.Time. With coerce set, string
// values are parsed into the expected kind where a deterministic parse
// exists; without it, a string against a non-string kind is a DecodeError.
func decodeScalar(wire any, kind schema.Kind, ctx *schema.DocContext, coerce bool) (any, error) {
	switch kind {
	case schema.KindString:
		if s, ok := wire.(string); ok {
			return s, nil
		}
		return nil, mismatch(ctx, "string", wire)

	case schema.KindInt:
		switch x := wire.(type) {
		case int:
			return int64(x), nil
		case int32:
			return int64(x), nil
		case int64:
			return x, nil
		case float64:
			// Stores that round-trip documents through JSON hand numbers
			// back as float64; accept them when integral.
			if x == math.Trunc(x) {
				return int64(x), nil
			}
			return nil, mismatch(ctx, "int", wire)
		case json.Number:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
			return nil, mismatch(ctx, "int", wire)
		case string:
			if coerce {
				if n, err := strconv.ParseInt(x, 10, 64); err == nil {
					return n, nil
				}
			}
			return nil, mismatch(ctx, "int", wire)
		}
		return nil, mismatch(ctx, "int", wire)

	case schema.KindFloat:
		switch x := wire.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		case int:
			return float64(x), nil
		case int32:
			return float64(x), nil
		case int64:
			return float64(x), nil
		case json.Number:
			if f, err := x.Float64(); err == nil {
				return f, nil
			}
			return nil, mismatch(ctx, "float", wire)
		case string:
			if coerce {
				if f, err := strconv.ParseFloat(x, 64); err == nil {
					return f, nil
				}
			}
			return nil, mismatch(ctx, "float", wire)
		}
		return nil, mismatch(ctx, "float", wire)

	case schema.KindBool:
		switch x := wire.(type) {
		case bool:
			return x, nil
		case string:
			if coerce {
				switch x {
				case "true":
					return true, nil
				case "false":
					return false, nil
				}
			}
			return nil, mismatch(ctx, "bool", wire)
		}
		return nil, mismatch(ctx, "bool", wire)

	case schema.KindTime:
		switch x := wire.(type) {
		case time.Time:
			return x, nil
		case string:
			// Timestamps come back as RFC 3339 strings from stores that
			// persist documents as JSON, independent of the coerce flag.
			if ts, err := time.Parse(time.RFC3339Nano, x); err == nil {
				return ts, nil
			}
			return nil, mismatch(ctx, "time", wire)
		}
		return nil, mismatch(ctx, "time", wire)
	}

	return nil, mismatch(ctx, kind.String(), wire)
}

func mismatch(ctx *schema.DocContext, expected string, wire any) error {
	return schema.NewDecodeError(ctx, expected, wireShape(wire), "")
}
