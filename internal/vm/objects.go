package vm

import "fmt"

// ObjKind tags the concrete HeapObject variant (spec.md §3).
type ObjKind uint8

const (
	OKString ObjKind = iota
	OKFunction
	OKClosure
	OKUpvalue
	OKNative
	OKClass
	OKInstance
	OKBoundMethod
	OKList
)

// Object is the interface every heap object satisfies. Header carries the
// intrusive `next` link and mark bit every variant needs for the GC
// (spec.md §3 "all hold an intrusive next link, a marked flag, and a type
// tag").
type Object interface {
	Kind() ObjKind
	Inspect() string
	header() *Header
}

// Header is embedded in every concrete heap object.
type Header struct {
	marked bool
	next   Object // intrusive link into VM.objects
}

func (h *Header) header() *Header { return h }

// ---- String ------------------------------------------------------------

// String is an immutable, interned byte string with a precomputed FNV-1a
// hash (spec.md §3, §9 — hash is computed once at construction, matching
// the original C scanner's eager hashString()).
type String struct {
	Header
	Chars string
	Hash  uint32
}

func (s *String) Kind() ObjKind   { return OKString }
func (s *String) Inspect() string { return s.Chars }

func fnv1a32(s string) uint32 {
	const offset32 = 2166136261
	const prime32 = 16777619
	h := uint32(offset32)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}

// ---- Function ------------------------------------------------------------

// Function is a compiled function body: arity, flags, and its owned Chunk.
type Function struct {
	Header
	Name         *String
	Arity        int
	UpvalueCount int
	Chunk        *Chunk
	IsLambda     bool // lambdas never arity-check the caller
	IsVarargs    bool
	IsInit       bool // TYPE_INITIALIZER: implicitly returns `this`
}

func (f *Function) Kind() ObjKind { return OKFunction }
func (f *Function) Inspect() string {
	if f.Name == nil {
		return "<script>"
	}
	return fmt.Sprintf("<function %s>", f.Name.Chars)
}

// ---- Closure ------------------------------------------------------------

type Closure struct {
	Header
	Function *Function
	Upvalues []*Upvalue
}

func (c *Closure) Kind() ObjKind   { return OKClosure }
func (c *Closure) Inspect() string { return c.Function.Inspect() }

// ---- Upvalue ------------------------------------------------------------

// Upvalue is open (Location points into a live stack slot) or closed
// (Closed holds the value directly, Location == -1). openNext links the
// VM's open-upvalue list, kept sorted by descending stack slot (spec.md §3).
type Upvalue struct {
	Header
	Location int
	Closed   Value
	openNext *Upvalue
}

func (u *Upvalue) Kind() ObjKind   { return OKUpvalue }
func (u *Upvalue) Inspect() string { return "<upvalue>" }
func (u *Upvalue) isClosed() bool  { return u.Location < 0 }

// ---- Native ------------------------------------------------------------

// NativeFn is a built-in function or bound method implementation. It
// returns (result, thrown); when thrown is non-nil the VM treats it as an
// OP_THROW of that value.
type NativeFn func(vm *VM, receiver *Value, args []Value) (Value, *Value)

type Native struct {
	Header
	Name     string
	Arity    int
	Varargs  bool
	Bound    *Value // not set by the VM; receivers are bound through BoundMethod
	Fn       NativeFn
}

func (n *Native) Kind() ObjKind   { return OKNative }
func (n *Native) Inspect() string { return fmt.Sprintf("<native %s>", n.Name) }

// ---- Class ------------------------------------------------------------

type Class struct {
	Header
	Name    *String
	Methods *Table
}

func (c *Class) Kind() ObjKind   { return OKClass }
func (c *Class) Inspect() string { return fmt.Sprintf("<class %s>", c.Name.Chars) }

// ---- Instance ------------------------------------------------------------

type Instance struct {
	Header
	Class  *Class
	Fields *Table
}

func (i *Instance) Kind() ObjKind   { return OKInstance }
func (i *Instance) Inspect() string { return fmt.Sprintf("<instance %s>", i.Class.Name.Chars) }

// ---- BoundMethod ------------------------------------------------------------

type BoundMethod struct {
	Header
	Receiver Value
	Method   Object // *Closure or *Native
}

func (b *BoundMethod) Kind() ObjKind { return OKBoundMethod }
func (b *BoundMethod) Inspect() string {
	return fmt.Sprintf("<bound method %s>", b.Method.Inspect())
}

// ---- List ------------------------------------------------------------

type List struct {
	Header
	Items []Value
}

func (l *List) Kind() ObjKind { return OKList }
func (l *List) Inspect() string {
	s := "["
	for i, v := range l.Items {
		if i > 0 {
			s += ", "
		}
		s += v.Inspect()
	}
	return s + "]"
}
