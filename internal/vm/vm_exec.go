package vm

import (
	"fmt"
	"math"

	"github.com/foxlang/fox/internal/foxerr"
)

// InterpretResult distinguishes how Interpret finished.
type InterpretResult int

const (
	ResultOK InterpretResult = iota
	ResultCompileError
	ResultRuntimeError
)

// Interpret compiles and runs src as this VM's top-level program.
func (v *VM) Interpret(src string) (InterpretResult, error) {
	comp := NewCompiler(v, src, v.filename, v.basePath)
	fn, errs := comp.Compile()
	if errs != nil {
		return ResultCompileError, firstCompileError(errs)
	}
	closure := v.newClosure(fn)
	v.push(FromObject(closure))
	v.callValue(FromObject(closure), 0)
	if err := v.runLoop(0); err != nil {
		return ResultRuntimeError, err
	}
	return ResultOK, nil
}

// CompileOnly compiles src without running it, for the CLI's `-disasm` debug
// flag (spec.md §6 names the debug-dump formatters an external collaborator;
// this just exposes the already-written Compile path to reach one).
func (v *VM) CompileOnly(src string) (*Function, error) {
	comp := NewCompiler(v, src, v.filename, v.basePath)
	fn, errs := comp.Compile()
	if errs != nil {
		return nil, firstCompileError(errs)
	}
	return fn, nil
}

func firstCompileError(errs []CompileError) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}

func (v *VM) currentFrame() *CallFrame { return &v.frames[v.frameCount-1] }

func (v *VM) readByte() byte {
	f := v.currentFrame()
	b := f.closure.Function.Chunk.Code[f.ip]
	f.ip++
	return b
}

func (v *VM) readU16() uint16 {
	f := v.currentFrame()
	hi := uint16(v.readByte())
	lo := uint16(v.readByte())
	return hi<<8 | lo
}

func (v *VM) readConstant() Value {
	f := v.currentFrame()
	return f.closure.Function.Chunk.Constants[v.readByte()]
}

func (v *VM) readString() *String { return v.readConstant().AsString() }

// runLoop is the bytecode dispatch loop (spec.md §4.4). It runs until the
// frame stack drops back to floor, i.e. until the frame that was on top when
// it was entered returns. Interpret calls it with floor 0 to run a whole
// program; callNativeOrClosureDirect calls it with the depth just below a
// synthetically-pushed frame to run one native-triggered closure call.
func (v *VM) runLoop(floor int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()

	for v.frameCount > floor {
		f := v.currentFrame()
		op := Opcode(v.readByte())

		switch op {
		case OP_CONSTANT:
			v.push(v.readConstant())
		case OP_NULL:
			v.push(Null())
		case OP_TRUE:
			v.push(Bool(true))
		case OP_FALSE:
			v.push(Bool(false))
		case OP_POP:
			v.pop()
		case OP_DUP:
			v.push(v.peek(0))
		case OP_DUP_OFFSET:
			n := int(v.readByte())
			v.push(v.peek(n))
		case OP_SWAP:
			a, b := v.pop(), v.pop()
			v.push(a)
			v.push(b)
		case OP_SWAP_OFFSET:
			n := int(v.readByte())
			i := v.sp - 1
			j := v.sp - 1 - n
			v.stack[i], v.stack[j] = v.stack[j], v.stack[i]

		case OP_NEGATE:
			if !v.peek(0).IsNumber() {
				v.throwNamed(foxerr.Type, "operand must be a number")
				break
			}
			v.push(Number(-v.pop().AsNumber()))
		case OP_NOT:
			v.push(Bool(!v.pop().Truthy()))
		case OP_BITWISE_NOT:
			if !v.peek(0).IsNumber() {
				v.throwNamed(foxerr.Type, "operand must be a number")
				break
			}
			v.push(Number(float64(^int64(v.pop().AsNumber()))))

		case OP_ADD:
			v.execAdd()
		case OP_SUB:
			v.execNumericBinary(func(a, b float64) float64 { return a - b })
		case OP_MUL:
			v.execNumericBinary(func(a, b float64) float64 { return a * b })
		case OP_DIV:
			v.execNumericBinary(func(a, b float64) float64 { return a / b })
		case OP_MOD:
			v.execNumericBinary(math.Mod)
		case OP_BITWISE_AND:
			v.execIntBinary(func(a, b int64) int64 { return a & b })
		case OP_BITWISE_OR:
			v.execIntBinary(func(a, b int64) int64 { return a | b })
		case OP_XOR:
			v.execIntBinary(func(a, b int64) int64 { return a ^ b })
		case OP_LSH:
			v.execIntBinary(func(a, b int64) int64 { return a << uint(b) })
		case OP_ASH:
			v.execIntBinary(func(a, b int64) int64 { return a >> uint(b) })
		case OP_RSH:
			v.execIntBinary(func(a, b int64) int64 { return int64(uint64(a) >> uint(b)) })

		case OP_EQUAL:
			b, a := v.pop(), v.pop()
			v.push(Bool(v.valuesEqualOverloaded(a, b)))
		case OP_GREATER:
			v.execCompare(func(a, b float64) bool { return a > b })
		case OP_LESS:
			v.execCompare(func(a, b float64) bool { return a < b })
		case OP_GREATER_EQ:
			v.execCompare(func(a, b float64) bool { return a >= b })
		case OP_LESS_EQ:
			v.execCompare(func(a, b float64) bool { return a <= b })
		case OP_INCREMENT:
			if !v.peek(0).IsNumber() {
				v.throwNamed(foxerr.Type, "operand must be a number")
				break
			}
			v.push(Number(v.pop().AsNumber() + 1))
		case OP_DECREMENT:
			if !v.peek(0).IsNumber() {
				v.throwNamed(foxerr.Type, "operand must be a number")
				break
			}
			v.push(Number(v.pop().AsNumber() - 1))

		case OP_IS:
			b, a := v.pop(), v.pop()
			v.push(Bool(valuesEqual(a, b)))
		case OP_IN:
			v.execIn()
		case OP_RANGE:
			v.execRange()
		case OP_TYPEOF:
			v.push(FromObject(v.internString(v.pop().TypeName())))
		case OP_IMPLEMENTS:
			v.execImplements()

		case OP_DEFINE_GLOBAL:
			name := v.readString()
			v.globals.Set(name, v.pop())
		case OP_GET_GLOBAL:
			name := v.readString()
			val, ok := v.globals.Get(name)
			if !ok {
				v.throwNamed(foxerr.UndefinedVariable, fmt.Sprintf("undefined variable '%s'", name.Chars))
				break
			}
			v.push(val)
		case OP_SET_GLOBAL:
			name := v.readString()
			if v.globals.Set(name, v.peek(0)) {
				v.globals.Delete(name)
				v.throwNamed(foxerr.UndefinedVariable, fmt.Sprintf("undefined variable '%s'", name.Chars))
			}
		case OP_GET_LOCAL:
			slot := int(v.readByte())
			v.push(v.stack[f.base+slot])
		case OP_SET_LOCAL:
			slot := int(v.readByte())
			v.stack[f.base+slot] = v.peek(0)
		case OP_GET_UPVALUE:
			slot := int(v.readByte())
			up := f.closure.Upvalues[slot]
			if up.isClosed() {
				v.push(up.Closed)
			} else {
				v.push(v.stack[up.Location])
			}
		case OP_SET_UPVALUE:
			slot := int(v.readByte())
			up := f.closure.Upvalues[slot]
			if up.isClosed() {
				up.Closed = v.peek(0)
			} else {
				v.stack[up.Location] = v.peek(0)
			}
		case OP_CLOSE_UPVALUE:
			v.closeUpvalues(v.sp - 1)
			v.pop()

		case OP_JUMP:
			offset := v.readU16()
			f.ip += int(offset)
		case OP_JUMP_IF_FALSE:
			offset := v.readU16()
			if !v.pop().Truthy() {
				f.ip += int(offset)
			}
		case OP_JUMP_IF_FALSE_S:
			offset := v.readU16()
			if !v.peek(0).Truthy() {
				f.ip += int(offset)
			}
		case OP_LOOP:
			offset := v.readU16()
			f.ip -= int(offset)

		case OP_CALL:
			argc := int(v.readByte())
			if !v.callValue(v.peek(argc), argc) {
				break
			}
		case OP_CLOSURE:
			fn := v.readConstant().AsFunction()
			cl := v.newClosure(fn)
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := v.readByte()
				idx := int(v.readByte())
				if isLocal != 0 {
					cl.Upvalues[i] = v.captureUpvalue(f.base + idx)
				} else {
					cl.Upvalues[i] = f.closure.Upvalues[idx]
				}
			}
			v.push(FromObject(cl))
		case OP_RETURN:
			v.execReturn()
			if v.frameCount == floor {
				return nil
			}
			f = v.currentFrame()
		case OP_INVOKE:
			name := v.readString()
			argc := int(v.readByte())
			v.invoke(name, argc)
		case OP_SUPER_INVOKE:
			name := v.readString()
			argc := int(v.readByte())
			superclass := v.pop().AsClass()
			v.invokeFromClass(superclass, name, argc)

		case OP_CLASS:
			name := v.readString()
			v.push(FromObject(v.newClass(name)))
		case OP_INHERIT:
			super := v.pop()
			if !super.Is(OKClass) {
				v.throwNamed(foxerr.InvalidInheritance, "superclass must be a class")
				break
			}
			sub := v.peek(0).AsClass()
			sub.Methods.AddAll(super.AsClass().Methods)
		case OP_METHOD:
			name := v.readString()
			method := v.pop()
			class := v.peek(0).AsClass()
			class.Methods.Set(name, method)
		case OP_GET_PROPERTY:
			v.execGetProperty(v.readString())
		case OP_SET_PROPERTY:
			v.execSetProperty(v.readString())
		case OP_GET_SUPER:
			name := v.readString()
			superclass := v.pop().AsClass()
			receiver := v.pop()
			v.bindMethodFrom(superclass, receiver, name)
		case OP_OBJECT:
			v.push(FromObject(v.objectClass))

		case OP_LIST:
			count := int(v.readByte())
			items := make([]Value, count)
			copy(items, v.stack[v.sp-count:v.sp])
			v.sp -= count
			v.push(FromObject(v.newList(items)))
		case OP_GET_INDEX:
			v.execGetIndex()
		case OP_SET_INDEX:
			v.execSetIndex()

		case OP_EXPORT:
			name := v.readString()
			v.exports.Set(name, v.peek(0))
		case OP_IMPORT:
			path, file := v.readString(), v.readString()
			v.execImport(path, file, false)
		case OP_IMPORT_STAR:
			path, file := v.readString(), v.readString()
			v.execImport(path, file, true)

		case OP_THROW:
			val := v.pop()
			if !val.Is(OKInstance) {
				val = FromObject(v.newExceptionInstance("Exception", val.Inspect()))
			}
			v.throwValue(val)
		case OP_TRY_BEGIN:
			offset := v.readU16()
			f.handlers = append(f.handlers, tryHandler{catchIP: f.ip + int(offset), stackDepth: v.sp})
		case OP_TRY_END:
			f.handlers = f.handlers[:len(f.handlers)-1]

		default:
			return &RuntimeError{Message: fmt.Sprintf("unknown opcode %d", op)}
		}

		if v.pendingThrow {
			v.pendingThrow = false
			return &RuntimeError{Instance: v.pendingErrInstance, Message: v.pendingErrMessage}
		}
	}
	return nil
}

func (v *VM) describeThrown(val Value) string {
	if val.Is(OKInstance) {
		inst := val.AsInstance()
		name, hasName := inst.Fields.Get(v.internString("name"))
		value, hasValue := inst.Fields.Get(v.internString("value"))
		if hasName && hasValue {
			return fmt.Sprintf("%s: %s", name.Inspect(), value.Inspect())
		}
	}
	return val.Inspect()
}

func (v *VM) valuesEqualOverloaded(a, b Value) bool {
	if a.Is(OKInstance) {
		if method, ok := a.AsInstance().Class.Methods.Get(v.internString("operator==")); ok {
			res, thrown := v.callNativeOrClosureDirect(method, a, []Value{b})
			if thrown != nil {
				v.throwValue(*thrown)
				return false
			}
			return res.Truthy()
		}
	}
	return valuesEqual(a, b)
}
