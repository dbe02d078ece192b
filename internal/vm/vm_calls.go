package vm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/foxlang/fox/internal/foxerr"
)

// ---- calling convention ---------------------------------------------------
//
// Before a CALL/INVOKE opcode runs, the callee (for CALL) or the receiver
// (for INVOKE, which never pushes the method itself) sits at stack slot
// base = sp-1-argc, with the argc arguments above it. That slot becomes the
// new frame's local slot 0 ("this" for methods, unused for plain functions),
// exactly as compileFunction reserves it.

func (v *VM) callValue(callee Value, argc int) bool {
	switch {
	case callee.Is(OKClosure):
		return v.call(callee.AsClosure(), argc)
	case callee.Is(OKNative):
		return v.callNative(callee.AsNative(), argc, nil)
	case callee.Is(OKBoundMethod):
		bound := callee.AsBoundMethod()
		v.stack[v.sp-1-argc] = bound.Receiver
		return v.callMethodValue(FromObject(bound.Method), argc)
	case callee.Is(OKClass):
		return v.instantiate(callee.AsClass(), argc)
	default:
		v.throwNamed(foxerr.Type, "can only call functions and classes")
		return false
	}
}

func (v *VM) instantiate(class *Class, argc int) bool {
	inst := v.newInstance(class)
	v.stack[v.sp-1-argc] = FromObject(inst)
	// A user class's initializer is declared under the class's own name
	// (`class C { C(x) { ... } }`), not a reserved "init" keyword, so the
	// lookup key must match what method()/OP_METHOD actually stored.
	init, ok := class.Methods.Get(class.Name)
	if !ok {
		if argc != 0 {
			v.throwNamed(foxerr.Arity, fmt.Sprintf("%s() takes no arguments", class.Name.Chars))
			return false
		}
		return true
	}
	return v.callMethodValue(init, argc)
}

func (v *VM) callMethodValue(method Value, argc int) bool {
	switch {
	case method.Is(OKClosure):
		return v.call(method.AsClosure(), argc)
	case method.Is(OKNative):
		base := v.sp - 1 - argc
		recv := v.stack[base]
		return v.callNative(method.AsNative(), argc, &recv)
	default:
		v.throwNamed(foxerr.Type, "not callable")
		return false
	}
}

func (v *VM) call(closure *Closure, argc int) bool {
	fn := closure.Function
	base := v.sp - 1 - argc

	switch {
	case fn.IsVarargs:
		minArity := fn.Arity - 1
		if argc < minArity {
			if !fn.IsLambda {
				v.throwNamed(foxerr.Arity, fmt.Sprintf("expected at least %d arguments but got %d", minArity, argc))
				return false
			}
			for argc < minArity {
				v.push(Null())
				argc++
			}
		}
		restCount := argc - minArity
		restItems := make([]Value, restCount)
		copy(restItems, v.stack[base+1+minArity:base+1+argc])
		restList := v.newList(restItems)
		v.sp = base + 1 + minArity
		v.push(FromObject(restList))
	case argc != fn.Arity:
		if !fn.IsLambda {
			v.throwNamed(foxerr.Arity, fmt.Sprintf("expected %d arguments but got %d", fn.Arity, argc))
			return false
		}
		// Lambdas never arity-check the caller: pad missing trailing
		// arguments with null, truncate surplus ones.
		for argc < fn.Arity {
			v.push(Null())
			argc++
		}
		if argc > fn.Arity {
			v.sp -= argc - fn.Arity
		}
	}

	if v.frameCount >= v.frameCap {
		v.throwNamed(foxerr.StackOverflow, "stack overflow")
		return false
	}
	if v.frameCount >= len(v.frames) {
		grown := make([]CallFrame, len(v.frames)*2)
		copy(grown, v.frames)
		v.frames = grown
	}
	v.frames[v.frameCount] = CallFrame{closure: closure, ip: 0, base: base}
	v.frameCount++
	return true
}

func (v *VM) callNative(native *Native, argc int, boundReceiver *Value) bool {
	if native.Varargs {
		if argc < native.Arity {
			v.throwNamed(foxerr.Arity, fmt.Sprintf("%s() expected at least %d arguments but got %d", native.Name, native.Arity, argc))
			return false
		}
	} else if argc != native.Arity {
		v.throwNamed(foxerr.Arity, fmt.Sprintf("%s() expected %d arguments but got %d", native.Name, native.Arity, argc))
		return false
	}
	base := v.sp - 1 - argc
	args := make([]Value, argc)
	copy(args, v.stack[base+1:base+1+argc])
	result, thrown := native.Fn(v, boundReceiver, args)
	v.sp = base
	if thrown != nil {
		v.throwValue(*thrown)
		return false
	}
	v.push(result)
	return true
}

func (v *VM) execReturn() {
	result := v.pop()
	f := v.currentFrame()
	v.closeUpvalues(f.base)
	v.frameCount--
	v.sp = f.base
	if v.frameCount == 0 {
		return
	}
	v.push(result)
}

// callNativeOrClosureDirect invokes method (a toString/operator-overload
// value found on an Instance's class) outside the normal CALL/INVOKE opcode
// path, used by stringify() and operator dispatch. An exception thrown from
// a closure invoked this way unwinds the whole VM rather than being
// catchable by an enclosing fox try block; acceptable since toString/operator
// overloads are expected not to throw in practice.
func (v *VM) callNativeOrClosureDirect(method Value, receiver Value, args []Value) (Value, *Value) {
	if method.Is(OKNative) {
		return method.AsNative().Fn(v, &receiver, args)
	}
	if !method.Is(OKClosure) {
		errv := FromObject(v.internString("not callable"))
		return Null(), &errv
	}
	v.push(receiver)
	for _, a := range args {
		v.push(a)
	}
	floor := v.frameCount
	if !v.call(method.AsClosure(), len(args)) {
		v.pendingThrow = false
		errv := FromObject(v.internString(v.pendingErrMessage))
		if v.pendingErrInstance != nil {
			errv = FromObject(v.pendingErrInstance)
		}
		return Null(), &errv
	}
	if err := v.runLoop(floor); err != nil {
		re, _ := err.(*RuntimeError)
		var errv Value
		if re != nil && re.Instance != nil {
			errv = FromObject(re.Instance)
		} else if re != nil {
			errv = FromObject(v.internString(re.Message))
		}
		return Null(), &errv
	}
	return v.pop(), nil
}

// ---- upvalues --------------------------------------------------------------

func (v *VM) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	up := v.openUpvalues
	for up != nil && up.Location > slot {
		prev = up
		up = up.openNext
	}
	if up != nil && up.Location == slot {
		return up
	}
	created := v.newUpvalue(slot)
	created.openNext = up
	if prev == nil {
		v.openUpvalues = created
	} else {
		prev.openNext = created
	}
	return created
}

func (v *VM) closeUpvalues(last int) {
	for v.openUpvalues != nil && v.openUpvalues.Location >= last {
		u := v.openUpvalues
		u.Closed = v.stack[u.Location]
		u.Location = -1
		v.openUpvalues = u.openNext
	}
}

// ---- arithmetic/comparison --------------------------------------------------

func (v *VM) stringify(val Value) string {
	if val.Is(OKInstance) {
		inst := val.AsInstance()
		if m, ok := inst.Class.Methods.Get(v.internString("toString")); ok {
			res, thrown := v.callNativeOrClosureDirect(m, val, nil)
			if thrown == nil {
				return v.stringify(res)
			}
		}
	}
	return val.Inspect()
}

func (v *VM) execOperatorOverload(a, b Value, opName string) {
	inst := a.AsInstance()
	if m, ok := inst.Class.Methods.Get(v.internString(opName)); ok {
		res, thrown := v.callNativeOrClosureDirect(m, a, []Value{b})
		if thrown != nil {
			v.throwValue(*thrown)
			return
		}
		v.push(res)
		return
	}
	v.throwNamed(foxerr.InvalidOperation, fmt.Sprintf("no operator overload for '%s'", opName))
}

// execAdd implements `+` per spec.md §4.4: number+number adds; a List on
// the left appends the right operand as a single new element (functional,
// not in-place); an Instance on the left dispatches to its "operator+"
// method; otherwise, if either side is a String, the other is coerced to
// its textual representation and the two are concatenated.
func (v *VM) execAdd() {
	b := v.pop()
	a := v.pop()
	switch {
	case a.IsNumber() && b.IsNumber():
		v.push(Number(a.AsNumber() + b.AsNumber()))
	case a.Is(OKInstance):
		v.execOperatorOverload(a, b, "operator+")
	case a.Is(OKList):
		items := a.AsList().Items
		merged := make([]Value, len(items)+1)
		copy(merged, items)
		merged[len(items)] = b
		v.push(FromObject(v.newList(merged)))
	case a.Is(OKString) || b.Is(OKString):
		v.push(FromObject(v.internString(v.stringify(a) + v.stringify(b))))
	default:
		v.throwNamed(foxerr.Type, "operands must be numbers, strings, or a list and a value")
	}
}

func (v *VM) execNumericBinary(fn func(a, b float64) float64) {
	b := v.pop()
	a := v.pop()
	if !a.IsNumber() || !b.IsNumber() {
		v.throwNamed(foxerr.Type, "operands must be numbers")
		return
	}
	v.push(Number(fn(a.AsNumber(), b.AsNumber())))
}

func (v *VM) execIntBinary(fn func(a, b int64) int64) {
	b := v.pop()
	a := v.pop()
	if !a.IsNumber() || !b.IsNumber() {
		v.throwNamed(foxerr.Type, "operands must be numbers")
		return
	}
	v.push(Number(float64(fn(int64(a.AsNumber()), int64(b.AsNumber())))))
}

func (v *VM) execCompare(fn func(a, b float64) bool) {
	b := v.pop()
	a := v.pop()
	if !a.IsNumber() || !b.IsNumber() {
		v.throwNamed(foxerr.Type, "operands must be numbers")
		return
	}
	v.push(Bool(fn(a.AsNumber(), b.AsNumber())))
}

func (v *VM) execIn() {
	b := v.pop()
	a := v.pop()
	switch {
	case b.Is(OKList):
		found := false
		for _, item := range b.AsList().Items {
			if v.valuesEqualOverloaded(a, item) {
				found = true
				break
			}
		}
		v.push(Bool(found))
	case b.Is(OKString) && a.Is(OKString):
		v.push(Bool(strings.Contains(b.AsString().Chars, a.AsString().Chars)))
	case b.Is(OKInstance) && a.Is(OKString):
		_, ok := b.AsInstance().Fields.Get(a.AsString())
		v.push(Bool(ok))
	default:
		v.throwNamed(foxerr.Type, "right-hand side of 'in' must be a list, string, or object")
	}
}

func (v *VM) execRange() {
	b := v.pop()
	a := v.pop()
	if !a.IsNumber() || !b.IsNumber() {
		v.throwNamed(foxerr.Type, "range bounds must be numbers")
		return
	}
	lo, hi := int64(a.AsNumber()), int64(b.AsNumber())
	var items []Value
	if lo < hi {
		for i := lo; i < hi; i++ {
			items = append(items, Number(float64(i)))
		}
	} else if lo > hi {
		for i := lo; i > hi; i-- {
			items = append(items, Number(float64(i)))
		}
	}
	v.push(FromObject(v.newList(items)))
}

// execImplements is a structural check: a implements b when a's class
// carries every method name b's class does. There is no retained class
// hierarchy to walk (OP_INHERIT flattens methods at class-definition time),
// so this is duck typing rather than a nominal relationship test.
func (v *VM) execImplements() {
	b := v.pop()
	a := v.pop()
	if !a.Is(OKInstance) || !b.Is(OKClass) {
		v.push(Bool(false))
		return
	}
	result := true
	b.AsClass().Methods.Range(func(k *String, _ Value) bool {
		if _, ok := a.AsInstance().Class.Methods.Get(k); !ok {
			result = false
			return false
		}
		return true
	})
	v.push(Bool(result))
}

// ---- properties / indexing -------------------------------------------------

// indexToInt resolves a negative-aware index against length. The caller must
// have already confirmed idx is a number; "not a number" is a distinct
// exception (InvalidIndexException) from "out of range"
// (IndexOutOfBoundsException) per spec.md §7.
func (v *VM) indexToInt(idx Value, length int) (int, bool) {
	i := int(idx.AsNumber())
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, false
	}
	return i, true
}

func (v *VM) execGetProperty(name *String) {
	receiver := v.pop()
	switch {
	case receiver.Is(OKInstance):
		inst := receiver.AsInstance()
		if val, ok := inst.Fields.Get(name); ok {
			v.push(val)
			return
		}
		if method, ok := inst.Class.Methods.Get(name); ok {
			v.push(FromObject(v.newBoundMethod(receiver, method.AsObject())))
			return
		}
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined property '%s'", name.Chars))
	case receiver.Is(OKList):
		if method, ok := v.listMethods.Get(name); ok {
			v.push(FromObject(v.newBoundMethod(receiver, method.AsObject())))
			return
		}
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined list method '%s'", name.Chars))
	case receiver.Is(OKString):
		if method, ok := v.stringMethods.Get(name); ok {
			v.push(FromObject(v.newBoundMethod(receiver, method.AsObject())))
			return
		}
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined string method '%s'", name.Chars))
	default:
		v.throwNamed(foxerr.Type, "only instances, lists, and strings have properties")
	}
}

func (v *VM) execSetProperty(name *String) {
	value := v.pop()
	receiver := v.pop()
	if !receiver.Is(OKInstance) {
		v.throwNamed(foxerr.Type, "only instances have settable properties")
		return
	}
	receiver.AsInstance().Fields.Set(name, value)
	v.push(value)
}

func (v *VM) bindMethodFrom(class *Class, receiver Value, name *String) {
	method, ok := class.Methods.Get(name)
	if !ok {
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined property '%s'", name.Chars))
		return
	}
	v.push(FromObject(v.newBoundMethod(receiver, method.AsObject())))
}

func (v *VM) execGetIndex() {
	idx := v.pop()
	obj := v.pop()
	switch {
	case obj.Is(OKList):
		if !idx.IsNumber() {
			v.throwNamed(foxerr.InvalidIndex, "list index must be a number")
			return
		}
		list := obj.AsList()
		i, ok := v.indexToInt(idx, len(list.Items))
		if !ok {
			v.throwNamed(foxerr.IndexOutOfBounds, "list index out of range")
			return
		}
		v.push(list.Items[i])
	case obj.Is(OKString):
		if !idx.IsNumber() {
			v.throwNamed(foxerr.InvalidIndex, "string index must be a number")
			return
		}
		s := obj.AsString()
		i, ok := v.indexToInt(idx, len(s.Chars))
		if !ok {
			v.throwNamed(foxerr.IndexOutOfBounds, "string index out of range")
			return
		}
		v.push(FromObject(v.internString(string(s.Chars[i]))))
	case obj.Is(OKInstance):
		if !idx.Is(OKString) {
			v.throwNamed(foxerr.InvalidIndex, "object index must be a string")
			return
		}
		if val, ok := obj.AsInstance().Fields.Get(idx.AsString()); ok {
			v.push(val)
		} else {
			v.push(Null())
		}
	default:
		v.throwNamed(foxerr.Type, "value is not indexable")
	}
}

func (v *VM) execSetIndex() {
	value := v.pop()
	idx := v.pop()
	obj := v.pop()
	switch {
	case obj.Is(OKList):
		if !idx.IsNumber() {
			v.throwNamed(foxerr.InvalidIndex, "list index must be a number")
			return
		}
		list := obj.AsList()
		i, ok := v.indexToInt(idx, len(list.Items))
		if !ok {
			v.throwNamed(foxerr.IndexOutOfBounds, "list index out of range")
			return
		}
		list.Items[i] = value
	case obj.Is(OKInstance):
		if !idx.Is(OKString) {
			v.throwNamed(foxerr.InvalidIndex, "object index must be a string")
			return
		}
		obj.AsInstance().Fields.Set(idx.AsString(), value)
	default:
		v.throwNamed(foxerr.Type, "value does not support index assignment")
		return
	}
	v.push(value)
}

// ---- method dispatch (OP_INVOKE/OP_SUPER_INVOKE) ---------------------------

func (v *VM) invoke(name *String, argc int) {
	receiver := v.peek(argc)
	switch {
	case receiver.Is(OKInstance):
		inst := receiver.AsInstance()
		if field, ok := inst.Fields.Get(name); ok {
			v.stack[v.sp-1-argc] = field
			v.callValue(field, argc)
			return
		}
		if method, ok := inst.Class.Methods.Get(name); ok {
			v.callMethodValue(method, argc)
			return
		}
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined method '%s'", name.Chars))
	case receiver.Is(OKList):
		if method, ok := v.listMethods.Get(name); ok {
			v.callMethodValue(method, argc)
			return
		}
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined list method '%s'", name.Chars))
	case receiver.Is(OKString):
		if method, ok := v.stringMethods.Get(name); ok {
			v.callMethodValue(method, argc)
			return
		}
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined string method '%s'", name.Chars))
	default:
		v.throwNamed(foxerr.Type, "value has no methods")
	}
}

func (v *VM) invokeFromClass(class *Class, name *String, argc int) {
	method, ok := class.Methods.Get(name)
	if !ok {
		v.throwNamed(foxerr.UndefinedProperty, fmt.Sprintf("undefined method '%s'", name.Chars))
		return
	}
	v.callMethodValue(method, argc)
}

// ---- exceptions -------------------------------------------------------------

// newExceptionInstance builds an Exception instance with the automatically
// populated name/value/filename/line/stack fields (spec.md §4.4/§6).
func (v *VM) newExceptionInstance(className, value string) *Instance {
	inst := v.newInstance(v.exceptionClass)
	inst.Fields.Set(v.internString("name"), FromObject(v.internString(className)))
	inst.Fields.Set(v.internString("value"), FromObject(v.internString(value)))
	filename := v.filename
	if filename == "" {
		filename = "<script>"
	}
	line := 0
	var trace *List
	if v.frameCount > 0 {
		f := v.currentFrame()
		line = f.closure.Function.Chunk.LineAt(f.ip)
		trace = v.buildStackTrace()
	} else {
		trace = v.newList(nil)
	}
	inst.Fields.Set(v.internString("filename"), FromObject(v.internString(filename)))
	inst.Fields.Set(v.internString("line"), Number(float64(line)))
	inst.Fields.Set(v.internString("stack"), FromObject(trace))
	return inst
}

// buildStackTrace renders one "[line] in name" entry per active call frame,
// innermost first (spec.md §4.4 "Throw-site metadata").
func (v *VM) buildStackTrace() *List {
	items := make([]Value, 0, v.frameCount)
	for i := v.frameCount - 1; i >= 0; i-- {
		fr := v.frames[i]
		name := "<script>"
		if fr.closure.Function.Name != nil {
			name = fr.closure.Function.Name.Chars
		}
		line := fr.closure.Function.Chunk.LineAt(fr.ip)
		items = append(items, FromObject(v.internString(fmt.Sprintf("[%d] in %s", line, name))))
	}
	return v.newList(items)
}

func (v *VM) throwNamed(className, value string) {
	v.throwValue(FromObject(v.newExceptionInstance(className, value)))
}

// throwValue unwinds frames looking for the innermost open try handler. If
// none remains anywhere on the call stack it records the failure on v and
// returns false; runLoop's dispatch loop checks that flag after every opcode.
func (v *VM) throwValue(val Value) bool {
	for v.frameCount > 0 {
		f := &v.frames[v.frameCount-1]
		if n := len(f.handlers); n > 0 {
			h := f.handlers[n-1]
			f.handlers = f.handlers[:n-1]
			v.sp = h.stackDepth
			v.push(val)
			f.ip = h.catchIP
			return true
		}
		v.closeUpvalues(f.base)
		v.frameCount--
		v.sp = f.base
	}
	v.pendingThrow = true
	if val.Is(OKInstance) {
		v.pendingErrInstance = val.AsInstance()
	}
	v.pendingErrMessage = v.describeThrown(val)
	return false
}

// ---- imports ----------------------------------------------------------------

// execImport resolves path first relative to the importing file's own
// directory, then relative to the VM's base path (spec.md §4.4/§6), caching
// resolved paths in v.resolver so re-importing the same module never stats
// the filesystem twice.
func (v *VM) execImport(path, file *String, star bool) {
	if path.Chars == dbModuleName {
		v.execVirtualDBImport(star)
		return
	}

	fullPath, err := v.resolver.Resolve(filepath.Dir(v.filename), file.Chars, path.Chars)
	if err != nil {
		v.throwNamed(foxerr.InvalidImport, fmt.Sprintf("could not import '%s': %v", path.Chars, err))
		return
	}

	child, cached := v.moduleCache.Get(fullPath)
	if !cached {
		src, err := os.ReadFile(fullPath)
		if err != nil {
			v.throwNamed(foxerr.InvalidImport, fmt.Sprintf("could not import '%s': %v", path.Chars, err))
			return
		}
		child = NewVM(fullPath, filepath.Dir(fullPath), nil)
		if _, err := child.Interpret(string(src)); err != nil {
			v.throwNamed(foxerr.InvalidImport, fmt.Sprintf("error importing '%s': %v", path.Chars, err))
			return
		}
		v.imports = append(v.imports, child)
		v.moduleCache.Put(fullPath, child)
	}

	if star {
		child.exports.Range(func(k *String, val Value) bool {
			v.globals.Set(v.internString(k.Chars), val)
			return true
		})
		return
	}

	modInst := v.newInstance(v.objectClass)
	child.exports.Range(func(k *String, val Value) bool {
		modInst.Fields.Set(v.internString(k.Chars), val)
		return true
	})
	v.push(FromObject(modInst))
}

// execVirtualDBImport handles `import db;` / `from db import *;`: it never
// touches internal/foxio since there is no backing .fox file.
func (v *VM) execVirtualDBImport(star bool) {
	mod := v.newDBModule()
	if star {
		mod.Fields.Range(func(k *String, val Value) bool {
			v.globals.Set(v.internString(k.Chars), val)
			return true
		})
		return
	}
	v.push(FromObject(mod))
}
