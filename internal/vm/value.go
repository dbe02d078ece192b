package vm

import (
	"fmt"
	"math"
)

// Kind is the Value tag (spec.md §3): Null, Bool, Number or Obj.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindObj
)

// Value is the VM's tagged-union stack slot. It is intentionally a plain
// struct rather than a NaN-boxed 64-bit word (spec.md §9 permits either); a
// straightforward tagged union is easier to keep correct while the GC and
// exception machinery are still settling.
type Value struct {
	Kind Kind
	num  float64
	obj  Object
}

func Null() Value                 { return Value{Kind: KindNull} }
func Bool(b bool) Value           { return Value{Kind: KindBool, num: boolNum(b)} }
func Number(f float64) Value      { return Value{Kind: KindNumber, num: f} }
func FromObject(o Object) Value   { return Value{Kind: KindObj, obj: o} }

func boolNum(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (v Value) IsNull() bool   { return v.Kind == KindNull }
func (v Value) IsBool() bool   { return v.Kind == KindBool }
func (v Value) IsNumber() bool { return v.Kind == KindNumber }
func (v Value) IsObj() bool    { return v.Kind == KindObj }

func (v Value) AsBool() bool     { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObject() Object  { return v.obj }

func (v Value) Is(k ObjKind) bool {
	return v.Kind == KindObj && v.obj != nil && v.obj.Kind() == k
}

func (v Value) AsString() *String           { return v.obj.(*String) }
func (v Value) AsList() *List               { return v.obj.(*List) }
func (v Value) AsClosure() *Closure         { return v.obj.(*Closure) }
func (v Value) AsFunction() *Function       { return v.obj.(*Function) }
func (v Value) AsClass() *Class             { return v.obj.(*Class) }
func (v Value) AsInstance() *Instance       { return v.obj.(*Instance) }
func (v Value) AsNative() *Native           { return v.obj.(*Native) }
func (v Value) AsBoundMethod() *BoundMethod { return v.obj.(*BoundMethod) }

// Truthy implements the language's notion of "falsy": null and false are
// falsy, every other value (including 0 and "") is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindNull:
		return false
	case KindBool:
		return v.AsBool()
	default:
		return true
	}
}

// valuesEqual implements both `is` (identity for objects, structural for
// primitives) and the non-overloaded fallback of `==` (spec.md §3): objects
// compare by reference, which is sufficient for content equality on
// interned Strings.
func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNull:
		return true
	case KindBool:
		return a.AsBool() == b.AsBool()
	case KindNumber:
		return a.num == b.num
	case KindObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// TypeName returns the canonical typeof() string (spec.md §4.4).
func (v Value) TypeName() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindObj:
		switch v.obj.(type) {
		case *String:
			return "string"
		case *List:
			return "list"
		case *Class:
			return "class"
		case *Instance:
			return "object"
		case *Function, *Closure, *Native, *BoundMethod:
			return "function"
		default:
			return "object"
		}
	default:
		return "null"
	}
}

// Inspect renders a value for print()/string coercion. Instances prefer a
// user-defined toString method, resolved by the caller (VM.stringify), so
// Inspect here only handles the primitive/Obj default rendering.
func (v Value) Inspect() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.AsBool())
	case KindNumber:
		return formatNumber(v.num)
	case KindObj:
		if v.obj == nil {
			return "null"
		}
		return v.obj.Inspect()
	default:
		return "?"
	}
}

func formatNumber(f float64) string {
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
