package vm

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/foxlang/fox/internal/foxerr"
)

// registerNatives installs the free-function native globals (spec.md §6:
// "print, input, read, clock, sqrt"). Called once from NewVM, after
// initBuiltinClasses so natives can build Exception instances.
func registerNatives(v *VM) {
	v.defineGlobalNative("clock", 0, false, nativeClock)
	v.defineGlobalNative("sqrt", 1, false, nativeSqrt)
	v.defineGlobalNative("input", 0, true, nativeInput)
	v.defineGlobalNative("read", 1, false, nativeRead)
	v.defineGlobalNative("print", 0, true, nativePrint)
}

func (v *VM) defineGlobalNative(name string, arity int, varargs bool, fn NativeFn) {
	native := v.newNative(name, arity, varargs, fn)
	v.globals.Set(v.internString(name), FromObject(native))
}

func nativeClock(vm *VM, recv *Value, args []Value) (Value, *Value) {
	return Number(float64(time.Now().UnixNano()) / 1e9), nil
}

func nativeSqrt(vm *VM, recv *Value, args []Value) (Value, *Value) {
	if !args[0].IsNumber() {
		errv := FromObject(vm.newExceptionInstance(foxerr.Type, "sqrt() requires a number"))
		return Null(), &errv
	}
	return Number(math.Sqrt(args[0].AsNumber())), nil
}

func nativeInput(vm *VM, recv *Value, args []Value) (Value, *Value) {
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = vm.stringify(a)
		}
		fmt.Fprint(vm.Stdout, strings.Join(parts, " "))
	}
	reader := bufio.NewReader(vm.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		errv := FromObject(vm.newExceptionInstance(foxerr.IO, err.Error()))
		return Null(), &errv
	}
	return FromObject(vm.internString(strings.TrimRight(line, "\r\n"))), nil
}

func nativeRead(vm *VM, recv *Value, args []Value) (Value, *Value) {
	if !args[0].Is(OKString) {
		errv := FromObject(vm.newExceptionInstance(foxerr.Type, "read() requires a path string"))
		return Null(), &errv
	}
	data, err := os.ReadFile(args[0].AsString().Chars)
	if err != nil {
		errv := FromObject(vm.newExceptionInstance(foxerr.IO, err.Error()))
		return Null(), &errv
	}
	return FromObject(vm.internString(string(data))), nil
}

func nativePrint(vm *VM, recv *Value, args []Value) (Value, *Value) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = vm.stringify(a)
	}
	fmt.Fprintln(vm.Stdout, strings.Join(parts, " "))
	return Null(), nil
}
