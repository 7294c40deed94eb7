package object

import "reflect"

// ---------------------------------------------------------------------------
// Primitive kind tags
// ---------------------------------------------------------------------------

// Kind names classify values that are not tagged with a class. They are the
// dispatch discriminators for foreign Go values and the exact-match targets
// for kind predicates.
const (
	KindNil    = "nil"
	KindBool   = "bool"
	KindInt    = "int"
	KindFloat  = "float"
	KindString = "string"
	KindSlice  = "slice"
	KindMap    = "map"
	KindFunc   = "func"
	KindObject = "object"
	KindClass  = "class"
	KindOpaque = "opaque"
)

// KindOf returns the primitive kind name for a value. All signed and
// unsigned integer widths report KindInt, both float widths KindFloat.
// Values with no better classification report KindOpaque.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return KindNil
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindFloat
	case string:
		return KindString
	case *Object:
		return KindObject
	case *Class:
		return KindClass
	case Func:
		return KindFunc
	case []any:
		return KindSlice
	case map[string]any:
		return KindMap
	}

	// Fall back to reflection for other container and function shapes.
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array:
		return KindSlice
	case reflect.Map:
		return KindMap
	case reflect.Func:
		return KindFunc
	}
	return KindOpaque
}
