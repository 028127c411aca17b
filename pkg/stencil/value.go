package stencil

import (
	"fmt"
	"iter"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ValueKind is the capability a Value exposes
type ValueKind int

const (
	// KindScalar is a plain value: string, number, bool, time, nil
	KindScalar ValueKind = iota
	// KindObject exposes named properties
	KindObject
	// KindList exposes a length and bounds-checked index access
	KindList
	// KindFunction can be called
	KindFunction
)

func (k ValueKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// PropertyBearer is implemented by host objects that expose named properties.
// Lookups should be case-insensitive.
type PropertyBearer interface {
	Property(name string) (any, bool)
}

// Indexable is implemented by host collections
type Indexable interface {
	Len() int
	Index(i int) (any, bool)
}

// Func is a callable value
type Func func(args ...any) (any, error)

// Value is a template value classified by capability. The zero Value is a nil scalar.
type Value struct {
	kind   ValueKind
	raw    any
	object PropertyBearer
	list   Indexable
	fn     Func
}

// Wrap classifies a host value. Reflection is used here only; everything
// downstream dispatches on Kind.
func Wrap(v any) Value {
	switch t := v.(type) {
	case nil:
		return Value{}
	case Value:
		return t
	case Indexable:
		return Value{kind: KindList, raw: v, list: t}
	case PropertyBearer:
		return Value{kind: KindObject, raw: v, object: t}
	case Func:
		return Value{kind: KindFunction, raw: v, fn: t}
	case func(args ...any) (any, error):
		return Value{kind: KindFunction, raw: v, fn: t}
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
		float32, float64, time.Time, time.Duration, []byte:
		return Value{raw: v}
	case map[string]any:
		return Value{kind: KindObject, raw: v, object: mapObject(t)}
	case []any:
		return Value{kind: KindList, raw: v, list: sliceList(t)}
	case iter.Seq[any]:
		var items []any
		for item := range t {
			items = append(items, item)
		}
		return Value{kind: KindList, raw: items, list: sliceList(items)}
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return Value{}
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Struct:
		return Value{kind: KindObject, raw: v, object: structObject{rv}}
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return Value{kind: KindObject, raw: v, object: reflectMap{rv}}
		}
	case reflect.Slice, reflect.Array:
		return Value{kind: KindList, raw: v, list: reflectList{rv}}
	case reflect.Func:
		return Value{kind: KindFunction, raw: v, fn: reflectFunc(rv)}
	}
	return Value{raw: v}
}

// Kind returns the capability of v
func (v Value) Kind() ValueKind { return v.kind }

// IsNil reports whether v holds no value
func (v Value) IsNil() bool { return v.kind == KindScalar && v.raw == nil }

// Interface returns the host value v was wrapped from
func (v Value) Interface() any { return v.raw }

// Property looks up a property on an object value
func (v Value) Property(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	p, ok := v.object.Property(name)
	if !ok {
		return Value{}, false
	}
	return Wrap(p), true
}

// Len returns the item count of a list value, or 0
func (v Value) Len() int {
	if v.kind != KindList {
		return 0
	}
	return v.list.Len()
}

// Index returns the item at i of a list value. ok is false when i is out of range.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != KindList || i < 0 || i >= v.list.Len() {
		return Value{}, false
	}
	item, ok := v.list.Index(i)
	if !ok {
		return Value{}, false
	}
	return Wrap(item), true
}

// Call invokes a function value
func (v Value) Call(args ...any) (Value, error) {
	if v.kind != KindFunction {
		return Value{}, fmt.Errorf("value of kind %s is not callable", v.kind)
	}
	out, err := v.fn(args...)
	if err != nil {
		return Value{}, err
	}
	return Wrap(out), nil
}

// String renders v with the default stringification
func (v Value) String() string {
	switch v.kind {
	case KindList:
		parts := make([]string, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item, _ := v.Index(i)
			parts = append(parts, item.String())
		}
		return strings.Join(parts, ", ")
	case KindFunction:
		return ""
	}
	switch t := v.raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.Format("2006-01-02")
	case float32:
		return fmt.Sprintf("%g", t)
	case float64:
		return fmt.Sprintf("%g", t)
	}
	return fmt.Sprintf("%v", v.raw)
}

// mapObject is a map with case-insensitive key lookup
type mapObject map[string]any

func (m mapObject) Property(name string) (any, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// deterministic when keys differ only by case
	sort.Strings(keys)
	for _, k := range keys {
		if strings.EqualFold(k, name) {
			return m[k], true
		}
	}
	return nil, false
}

type sliceList []any

func (s sliceList) Len() int { return len(s) }

func (s sliceList) Index(i int) (any, bool) {
	if i < 0 || i >= len(s) {
		return nil, false
	}
	return s[i], true
}

type structObject struct {
	rv reflect.Value
}

func (s structObject) Property(name string) (any, bool) {
	t := s.rv.Type()
	if f, ok := t.FieldByName(name); ok && f.IsExported() {
		return s.rv.FieldByIndex(f.Index).Interface(), true
	}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.IsExported() && strings.EqualFold(f.Name, name) {
			return s.rv.Field(i).Interface(), true
		}
	}
	return nil, false
}

type reflectMap struct {
	rv reflect.Value
}

func (m reflectMap) Property(name string) (any, bool) {
	key := reflect.ValueOf(name).Convert(m.rv.Type().Key())
	if v := m.rv.MapIndex(key); v.IsValid() {
		return v.Interface(), true
	}
	it := m.rv.MapRange()
	var found reflect.Value
	var foundKey string
	for it.Next() {
		k := it.Key().String()
		if strings.EqualFold(k, name) && (!found.IsValid() || k < foundKey) {
			found, foundKey = it.Value(), k
		}
	}
	if !found.IsValid() {
		return nil, false
	}
	return found.Interface(), true
}

type reflectList struct {
	rv reflect.Value
}

func (l reflectList) Len() int { return l.rv.Len() }

func (l reflectList) Index(i int) (any, bool) {
	if i < 0 || i >= l.rv.Len() {
		return nil, false
	}
	return l.rv.Index(i).Interface(), true
}

func reflectFunc(rv reflect.Value) Func {
	return func(args ...any) (any, error) {
		t := rv.Type()
		if !t.IsVariadic() && len(args) != t.NumIn() {
			return nil, fmt.Errorf("expected %d arguments, got %d", t.NumIn(), len(args))
		}
		in := make([]reflect.Value, len(args))
		for i, a := range args {
			var want reflect.Type
			if t.IsVariadic() && i >= t.NumIn()-1 {
				want = t.In(t.NumIn() - 1).Elem()
			} else {
				want = t.In(i)
			}
			if a == nil {
				in[i] = reflect.Zero(want)
				continue
			}
			av := reflect.ValueOf(a)
			if !av.Type().AssignableTo(want) {
				if !av.Type().ConvertibleTo(want) {
					return nil, fmt.Errorf("argument %d: cannot use %T as %s", i, a, want)
				}
				av = av.Convert(want)
			}
			in[i] = av
		}
		out := rv.Call(in)
		switch len(out) {
		case 0:
			return nil, nil
		case 1:
			if err, ok := out[0].Interface().(error); ok && t.Out(0) == errorType {
				return nil, err
			}
			return out[0].Interface(), nil
		default:
			if err, _ := out[len(out)-1].Interface().(error); err != nil {
				return nil, err
			}
			return out[0].Interface(), nil
		}
	}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()
