package vm

import (
	"fmt"
	"io"
)

// DisassembleChunk writes a human-readable instruction dump of chunk to w,
// prefixed by name, ported from the original C bytecode VM's
// src/debug/disassemble.c to a Go %-column-width idiom.
func DisassembleChunk(w io.Writer, filename string, chunk *Chunk, name string) {
	fmt.Fprintf(w, "=== %s | %s ===\n", filename, name)
	offset := 0
	for offset < len(chunk.Code) {
		var line string
		offset, line = DisassembleInstruction(chunk, offset)
		fmt.Fprintln(w, line)
	}
}

// DisassembleInstruction formats the instruction at offset and returns the
// offset of the next instruction plus its rendered line.
func DisassembleInstruction(chunk *Chunk, offset int) (int, string) {
	prefix := fmt.Sprintf("%04d %4d ", offset, chunk.LineAt(offset))
	op := Opcode(chunk.Code[offset])

	switch op {
	case OP_RETURN, OP_DUP, OP_SWAP, OP_NEGATE, OP_NOT, OP_BITWISE_NOT,
		OP_BITWISE_AND, OP_BITWISE_OR, OP_XOR, OP_LSH, OP_RSH, OP_ASH,
		OP_ADD, OP_SUB, OP_DIV, OP_MUL, OP_MOD, OP_NULL, OP_TRUE, OP_FALSE,
		OP_EQUAL, OP_GREATER, OP_GREATER_EQ, OP_LESS, OP_LESS_EQ, OP_POP,
		OP_CLOSE_UPVALUE, OP_INHERIT, OP_GET_INDEX, OP_SET_INDEX, OP_OBJECT,
		OP_IS, OP_IN, OP_RANGE, OP_TYPEOF, OP_IMPLEMENTS, OP_THROW,
		OP_TRY_END, OP_INCREMENT, OP_DECREMENT:
		return simpleInstruction(prefix, op, offset)

	case OP_DUP_OFFSET, OP_SWAP_OFFSET, OP_GET_LOCAL, OP_SET_LOCAL,
		OP_GET_UPVALUE, OP_SET_UPVALUE, OP_CALL, OP_LIST:
		return byteInstruction(prefix, op, offset, chunk)

	case OP_CONSTANT, OP_DEFINE_GLOBAL, OP_SET_GLOBAL, OP_GET_GLOBAL,
		OP_CLASS, OP_GET_PROPERTY, OP_SET_PROPERTY, OP_METHOD, OP_GET_SUPER,
		OP_EXPORT:
		return constantInstruction(prefix, op, offset, chunk)

	case OP_JUMP, OP_JUMP_IF_FALSE, OP_JUMP_IF_FALSE_S:
		return jumpInstruction(prefix, op, 1, offset, chunk)
	case OP_LOOP:
		return jumpInstruction(prefix, op, -1, offset, chunk)
	case OP_TRY_BEGIN:
		return jumpInstruction(prefix, op, 1, offset, chunk)

	case OP_INVOKE, OP_SUPER_INVOKE:
		return invokeInstruction(prefix, op, offset, chunk)
	case OP_IMPORT, OP_IMPORT_STAR:
		return importInstruction(prefix, op, offset, chunk)
	case OP_CLOSURE:
		return closureInstruction(prefix, offset, chunk)

	default:
		return offset + 1, fmt.Sprintf("%sUnknown opcode: %02X", prefix, byte(op))
	}
}

func simpleInstruction(prefix string, op Opcode, offset int) (int, string) {
	return offset + 1, fmt.Sprintf("%s%-16s", prefix, op)
}

func byteInstruction(prefix string, op Opcode, offset int, chunk *Chunk) (int, string) {
	slot := chunk.Code[offset+1]
	return offset + 2, fmt.Sprintf("%s%-16s %4d", prefix, op, slot)
}

func constantInstruction(prefix string, op Opcode, offset int, chunk *Chunk) (int, string) {
	idx := chunk.Code[offset+1]
	return offset + 2, fmt.Sprintf("%s%-16s %4d '%s'", prefix, op, idx, chunk.Constants[idx].Inspect())
}

func jumpInstruction(prefix string, op Opcode, sign int, offset int, chunk *Chunk) (int, string) {
	jump := int(chunk.ReadU16(offset + 1))
	target := offset + 3 + sign*jump
	return offset + 3, fmt.Sprintf("%s%-16s %4d -> %d", prefix, op, offset, target)
}

func invokeInstruction(prefix string, op Opcode, offset int, chunk *Chunk) (int, string) {
	idx := chunk.Code[offset+1]
	argc := chunk.Code[offset+2]
	return offset + 3, fmt.Sprintf("%s%-16s (%d args) %4d '%s'", prefix, op, argc, idx, chunk.Constants[idx].Inspect())
}

func importInstruction(prefix string, op Opcode, offset int, chunk *Chunk) (int, string) {
	pathIdx := chunk.Code[offset+1]
	fileIdx := chunk.Code[offset+2]
	return offset + 3, fmt.Sprintf("%s%-16s %4d '%s' -> %4d '%s'", prefix, op,
		pathIdx, chunk.Constants[pathIdx].Inspect(), fileIdx, chunk.Constants[fileIdx].Inspect())
}

func closureInstruction(prefix string, offset int, chunk *Chunk) (int, string) {
	idx := chunk.Code[offset+1]
	line := fmt.Sprintf("%s%-16s %4d '%s'", prefix, OP_CLOSURE, idx, chunk.Constants[idx].Inspect())
	fn := chunk.Constants[idx].AsFunction()
	next := offset + 2
	for j := 0; j < fn.UpvalueCount; j++ {
		isLocal := chunk.Code[next]
		index := chunk.Code[next+1]
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		line += fmt.Sprintf("\n%04d      |                 %s %d", next, kind, index)
		next += 2
	}
	return next, line
}
