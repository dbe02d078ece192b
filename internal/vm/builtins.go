package vm

import (
	"strings"

	"github.com/foxlang/fox/internal/foxerr"
)

// initBuiltinClasses wires up the Object/Iterator/Exception classes and the
// List/String native method tables every VM needs before any fox code runs
// (spec.md §6 "Built-in method surfaces"). Called once from NewVM.
func (v *VM) initBuiltinClasses() {
	v.objectClass = v.newClass(v.internString("Object"))
	v.iteratorClass = v.newClass(v.internString("Iterator"))
	v.exceptionClass = v.newClass(v.internString("Exception"))

	v.registerObjectMethods()
	v.registerExceptionMethods()
	v.registerIteratorMethods()
	v.registerListMethods()
	v.registerStringMethods()

	// Built-in classes are reachable from fox source by name, both to
	// instantiate (Iterator(data)) and to subclass (class E extends Exception).
	v.globals.Set(v.internString("Object"), FromObject(v.objectClass))
	v.globals.Set(v.internString("Iterator"), FromObject(v.iteratorClass))
	v.globals.Set(v.internString("Exception"), FromObject(v.exceptionClass))
}

// ---- Object ---------------------------------------------------------------

// registerObjectMethods installs keys()/values()/hasProp(name) on the
// built-in Object class (spec.md §6). Every user class inherits these
// through OP_INHERIT's synthesized-superclass fallback.
func (v *VM) registerObjectMethods() {
	v.defineMethod(v.objectClass, "keys", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		inst := recv.AsInstance()
		var items []Value
		inst.Fields.Range(func(k *String, _ Value) bool {
			items = append(items, FromObject(k))
			return true
		})
		return FromObject(vm.newList(items)), nil
	})
	v.defineMethod(v.objectClass, "values", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		inst := recv.AsInstance()
		var items []Value
		inst.Fields.Range(func(_ *String, val Value) bool {
			items = append(items, val)
			return true
		})
		return FromObject(vm.newList(items)), nil
	})
	v.defineMethod(v.objectClass, "hasProp", 1, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		if !args[0].Is(OKString) {
			errv := FromObject(vm.newExceptionInstance(foxerr.Type, "hasProp() requires a string name"))
			return Null(), &errv
		}
		_, ok := recv.AsInstance().Fields.Get(args[0].AsString())
		return Bool(ok), nil
	})
}

func (v *VM) defineMethod(class *Class, name string, arity int, varargs bool, fn NativeFn) {
	native := v.newNative(name, arity, varargs, fn)
	class.Methods.Set(v.internString(name), FromObject(native))
}

func (v *VM) defineListMethod(name string, arity int, varargs bool, fn NativeFn) {
	native := v.newNative(name, arity, varargs, fn)
	v.listMethods.Set(v.internString(name), FromObject(native))
}

func (v *VM) defineStringMethod(name string, arity int, varargs bool, fn NativeFn) {
	native := v.newNative(name, arity, varargs, fn)
	v.stringMethods.Set(v.internString(name), FromObject(native))
}

// ---- Exception --------------------------------------------------------------

func (v *VM) registerExceptionMethods() {
	v.defineMethod(v.exceptionClass, "getStackTrace", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		inst := recv.AsInstance()
		stack, ok := inst.Fields.Get(vm.internString("stack"))
		if !ok || !stack.Is(OKList) {
			return FromObject(vm.internString("")), nil
		}
		items := stack.AsList().Items
		lines := make([]string, len(items))
		for i, it := range items {
			lines[i] = vm.stringify(it)
		}
		return FromObject(vm.internString(strings.Join(lines, "\n"))), nil
	})
}

// ---- Iterator -----------------------------------------------------------------

// newIteratorInstance builds the Iterator instances returned by
// List.iterator()/String.iterator(): a plain List/String value plus a cursor,
// both stashed in the instance's own field table so done/next never need a
// side table.
func (v *VM) newIteratorInstance(source Value) *Instance {
	inst := v.newInstance(v.iteratorClass)
	inst.Fields.Set(v.internString("@source"), source)
	inst.Fields.Set(v.internString("@cursor"), Number(0))
	return inst
}

func (v *VM) registerIteratorMethods() {
	v.defineMethod(v.iteratorClass, "Iterator", 1, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		inst := recv.AsInstance()
		inst.Fields.Set(vm.internString("@source"), args[0])
		inst.Fields.Set(vm.internString("@cursor"), Number(0))
		return *recv, nil
	})
	v.defineMethod(v.iteratorClass, "iterator", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		return *recv, nil
	})
	v.defineMethod(v.iteratorClass, "done", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		inst := recv.AsInstance()
		source, _ := inst.Fields.Get(vm.internString("@source"))
		cursor, _ := inst.Fields.Get(vm.internString("@cursor"))
		length := iterableLength(source)
		return Bool(int(cursor.AsNumber()) >= length), nil
	})
	v.defineMethod(v.iteratorClass, "next", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		inst := recv.AsInstance()
		source, _ := inst.Fields.Get(vm.internString("@source"))
		cursor, _ := inst.Fields.Get(vm.internString("@cursor"))
		idx := int(cursor.AsNumber())
		inst.Fields.Set(vm.internString("@cursor"), Number(float64(idx+1)))
		switch {
		case source.Is(OKList):
			items := source.AsList().Items
			if idx < 0 || idx >= len(items) {
				errv := FromObject(vm.newExceptionInstance(foxerr.IndexOutOfBounds, "iterator exhausted"))
				return Null(), &errv
			}
			return items[idx], nil
		case source.Is(OKString):
			chars := source.AsString().Chars
			if idx < 0 || idx >= len(chars) {
				errv := FromObject(vm.newExceptionInstance(foxerr.IndexOutOfBounds, "iterator exhausted"))
				return Null(), &errv
			}
			return FromObject(vm.internString(string(chars[idx]))), nil
		default:
			errv := FromObject(vm.newExceptionInstance(foxerr.Type, "not iterable"))
			return Null(), &errv
		}
	})
}

func iterableLength(v Value) int {
	switch {
	case v.Is(OKList):
		return len(v.AsList().Items)
	case v.Is(OKString):
		return len(v.AsString().Chars)
	default:
		return 0
	}
}

// ---- List ---------------------------------------------------------------------

func (v *VM) registerListMethods() {
	v.defineListMethod("length", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		return Number(float64(len(recv.AsList().Items))), nil
	})
	v.defineListMethod("append", 1, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		list := recv.AsList()
		list.Items = append(list.Items, args[0])
		return *recv, nil
	})
	v.defineListMethod("iterator", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		return FromObject(vm.newIteratorInstance(*recv)), nil
	})
}

// ---- String ---------------------------------------------------------------------

func (v *VM) registerStringMethods() {
	v.defineStringMethod("length", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		return Number(float64(len(recv.AsString().Chars))), nil
	})
	v.defineStringMethod("iterator", 0, false, func(vm *VM, recv *Value, args []Value) (Value, *Value) {
		return FromObject(vm.newIteratorInstance(*recv)), nil
	})
}
