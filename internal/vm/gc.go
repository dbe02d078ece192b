package vm

// Memory manager & GC (spec.md §4.5). Every allocation goes through
// register(), which links the object into the VM's intrusive heap list and
// checks whether a collection is due. Go's own runtime still owns the
// actual memory; this layer implements the language-visible tracing
// behaviour (mark bits, weak intern-table sweep, "freed" objects becoming
// unreachable from vm.objects so Go can reclaim them) that spec.md's
// testable properties (GC idempotence, string-identity-through-GC) depend
// on.

// objectSize is a rough per-kind footprint used only to decide when to
// collect; it need not be exact.
func objectSize(o Object) int {
	switch v := o.(type) {
	case *String:
		return 32 + len(v.Chars)
	case *List:
		return 32 + len(v.Items)*24
	case *Instance:
		return 48
	case *Class:
		return 48
	case *Closure:
		return 32 + len(v.Upvalues)*8
	default:
		return 32
	}
}

func (v *VM) register(o Object) Object {
	h := o.header()
	h.next = v.objects
	v.objects = o
	v.bytesAllocated += objectSize(o)
	if v.bytesAllocated > v.nextGC {
		v.collectGarbage()
	}
	return o
}

// internString returns the unique *String for chars, allocating and
// interning a new one only on a miss (spec.md §3 Invariants).
func (v *VM) internString(chars string) *String {
	hash := fnv1a32(chars)
	if s := v.strings.FindString(chars, hash); s != nil {
		return s
	}
	s := &String{Chars: chars, Hash: hash}
	v.register(s)
	v.strings.Insert(s)
	return s
}

func (v *VM) newFunction() *Function {
	f := &Function{Chunk: NewChunk()}
	v.register(f)
	return f
}

func (v *VM) newClosure(fn *Function) *Closure {
	c := &Closure{Function: fn, Upvalues: make([]*Upvalue, fn.UpvalueCount)}
	v.register(c)
	return c
}

func (v *VM) newUpvalue(slot int) *Upvalue {
	u := &Upvalue{Location: slot}
	v.register(u)
	return u
}

func (v *VM) newNative(name string, arity int, varargs bool, fn NativeFn) *Native {
	n := &Native{Name: name, Arity: arity, Varargs: varargs, Fn: fn}
	v.register(n)
	return n
}

func (v *VM) newClass(name *String) *Class {
	c := &Class{Name: name, Methods: NewTable()}
	v.register(c)
	return c
}

func (v *VM) newInstance(class *Class) *Instance {
	i := &Instance{Class: class, Fields: NewTable()}
	v.register(i)
	return i
}

func (v *VM) newBoundMethod(receiver Value, method Object) *BoundMethod {
	b := &BoundMethod{Receiver: receiver, Method: method}
	v.register(b)
	return b
}

func (v *VM) newList(items []Value) *List {
	l := &List{Items: items}
	v.register(l)
	return l
}

// ---- collection -----------------------------------------------------------

func (v *VM) markValue(val Value) {
	if val.Kind == KindObj && val.obj != nil {
		v.markObject(val.obj)
	}
}

func (v *VM) markObject(o Object) {
	if o == nil {
		return
	}
	h := o.header()
	if h.marked {
		return
	}
	h.marked = true
	v.grayStack = append(v.grayStack, o)
}

func (v *VM) markTable(t *Table) {
	t.Range(func(k *String, val Value) bool {
		v.markObject(k)
		v.markValue(val)
		return true
	})
}

func (v *VM) markRoots() {
	for i := 0; i < v.sp; i++ {
		v.markValue(v.stack[i])
	}
	for i := 0; i < v.frameCount; i++ {
		v.markObject(v.frames[i].closure)
	}
	for u := v.openUpvalues; u != nil; u = u.openNext {
		v.markObject(u)
	}
	v.markTable(v.globals)
	v.markTable(v.exports)
	if v.listMethods != nil {
		v.markTable(v.listMethods)
	}
	if v.stringMethods != nil {
		v.markTable(v.stringMethods)
	}
	if v.objectClass != nil {
		v.markObject(v.objectClass)
	}
	if v.iteratorClass != nil {
		v.markObject(v.iteratorClass)
	}
	if v.exceptionClass != nil {
		v.markObject(v.exceptionClass)
	}
	for _, fn := range v.compilerRoots {
		v.markObject(fn)
	}
}

// blacken traces everything object transitively references, pushing newly
// discovered objects onto the gray stack via markObject.
func (v *VM) blacken(o Object) {
	switch obj := o.(type) {
	case *String, *Native:
		// no references
	case *Function:
		v.markObject(obj.Name)
		for _, c := range obj.Chunk.Constants {
			v.markValue(c)
		}
	case *Closure:
		v.markObject(obj.Function)
		for _, u := range obj.Upvalues {
			v.markObject(u)
		}
	case *Upvalue:
		v.markValue(obj.Closed)
	case *Class:
		v.markObject(obj.Name)
		v.markTable(obj.Methods)
	case *Instance:
		v.markObject(obj.Class)
		v.markTable(obj.Fields)
	case *BoundMethod:
		v.markValue(obj.Receiver)
		v.markObject(obj.Method)
	case *List:
		for _, item := range obj.Items {
			v.markValue(item)
		}
	}
}

func (v *VM) traceReferences() {
	for len(v.grayStack) > 0 {
		o := v.grayStack[len(v.grayStack)-1]
		v.grayStack = v.grayStack[:len(v.grayStack)-1]
		v.blacken(o)
	}
}

// sweep walks the intrusive object list, drops unmarked objects (so Go's GC
// can reclaim them) and clears marks on survivors.
func (v *VM) sweep() {
	var prev Object
	obj := v.objects
	for obj != nil {
		h := obj.header()
		next := h.next
		if h.marked {
			h.marked = false
			prev = obj
		} else {
			v.bytesAllocated -= objectSize(obj)
			if prev == nil {
				v.objects = next
			} else {
				prev.header().next = next
			}
		}
		obj = next
	}
}

// collectGarbage runs one full mark-trace-sweep cycle (spec.md §4.5).
func (v *VM) collectGarbage() {
	v.markRoots()
	v.traceReferences()
	v.strings.WeakSweep()
	v.sweep()
	v.nextGC = int(float64(v.bytesAllocated) * v.heapGrowFactor)
	if v.nextGC < initialNextGC {
		v.nextGC = initialNextGC
	}
}

// CollectGarbage runs a collection on demand; exposed for tests exercising
// the GC-idempotence property (spec.md §8).
func (v *VM) CollectGarbage() { v.collectGarbage() }

func (v *VM) BytesAllocated() int { return v.bytesAllocated }
