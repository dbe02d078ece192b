// Package vm implements fox's bytecode chunks, tagged value/object model,
// garbage collector and stack-based virtual machine, following the
// convention (seen throughout the teacher corpus) of keeping compiler,
// chunk and VM in one cohesive package.
package vm

// Opcode is a single VM instruction tag. Operand widths are documented in
// spec.md §4.3; each comment names the operand bytes that immediately
// follow the opcode byte in a Chunk.
type Opcode byte

const (
	// Stack
	OP_CONSTANT    Opcode = iota // (1) push constants[operand]
	OP_NULL                      // push null
	OP_TRUE                      // push true
	OP_FALSE                     // push false
	OP_POP                       // pop and discard
	OP_DUP                       // duplicate top
	OP_DUP_OFFSET                // (1) duplicate stack[top-n]
	OP_SWAP                      // swap top two
	OP_SWAP_OFFSET                // (1) swap top with stack[top-n]

	// Arithmetic / bitwise / comparison
	OP_NEGATE
	OP_NOT
	OP_BITWISE_NOT
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD
	OP_BITWISE_AND
	OP_BITWISE_OR
	OP_XOR
	OP_LSH
	OP_RSH
	OP_ASH
	OP_EQUAL
	OP_GREATER
	OP_LESS
	OP_GREATER_EQ
	OP_LESS_EQ
	OP_INCREMENT
	OP_DECREMENT

	// Semantic
	OP_IS
	OP_IN
	OP_RANGE
	OP_TYPEOF
	OP_IMPLEMENTS

	// Variables
	OP_DEFINE_GLOBAL // (1)
	OP_GET_GLOBAL    // (1)
	OP_SET_GLOBAL    // (1)
	OP_GET_LOCAL     // (1)
	OP_SET_LOCAL     // (1)
	OP_GET_UPVALUE   // (1)
	OP_SET_UPVALUE   // (1)
	OP_CLOSE_UPVALUE

	// Control
	OP_JUMP            // (2)
	OP_JUMP_IF_FALSE   // (2) pops
	OP_JUMP_IF_FALSE_S // (2) peeks
	OP_LOOP            // (2)

	// Calls / closures
	OP_CALL    // (1)
	OP_CLOSURE // (1 + 2*upvalueCount)
	OP_RETURN
	OP_INVOKE       // (1,1) name-const, argc
	OP_SUPER_INVOKE // (1,1) name-const, argc

	// OOP
	OP_CLASS        // (1)
	OP_INHERIT
	OP_METHOD       // (1)
	OP_GET_PROPERTY // (1)
	OP_SET_PROPERTY // (1)
	OP_GET_SUPER    // (1)
	OP_OBJECT

	// Collections
	OP_LIST // (1)
	OP_GET_INDEX
	OP_SET_INDEX

	// Modules
	OP_EXPORT      // (1)
	OP_IMPORT      // (1,1) path-const, filename-const
	OP_IMPORT_STAR // (1,1)

	// Exceptions
	OP_THROW
	OP_TRY_BEGIN // (2) catch offset
	OP_TRY_END
)

var opcodeNames = map[Opcode]string{
	OP_CONSTANT: "CONSTANT", OP_NULL: "NULL", OP_TRUE: "TRUE", OP_FALSE: "FALSE",
	OP_POP: "POP", OP_DUP: "DUP", OP_DUP_OFFSET: "DUP_OFFSET",
	OP_SWAP: "SWAP", OP_SWAP_OFFSET: "SWAP_OFFSET",

	OP_NEGATE: "NEGATE", OP_NOT: "NOT", OP_BITWISE_NOT: "BITWISE_NOT",
	OP_ADD: "ADD", OP_SUB: "SUB", OP_MUL: "MUL", OP_DIV: "DIV", OP_MOD: "MOD",
	OP_BITWISE_AND: "BITWISE_AND", OP_BITWISE_OR: "BITWISE_OR", OP_XOR: "XOR",
	OP_LSH: "LSH", OP_RSH: "RSH", OP_ASH: "ASH",
	OP_EQUAL: "EQUAL", OP_GREATER: "GREATER", OP_LESS: "LESS",
	OP_GREATER_EQ: "GREATER_EQ", OP_LESS_EQ: "LESS_EQ",
	OP_INCREMENT: "INCREMENT", OP_DECREMENT: "DECREMENT",

	OP_IS: "IS", OP_IN: "IN", OP_RANGE: "RANGE", OP_TYPEOF: "TYPEOF",
	OP_IMPLEMENTS: "IMPLEMENTS",

	OP_DEFINE_GLOBAL: "DEFINE_GLOBAL", OP_GET_GLOBAL: "GET_GLOBAL",
	OP_SET_GLOBAL: "SET_GLOBAL", OP_GET_LOCAL: "GET_LOCAL", OP_SET_LOCAL: "SET_LOCAL",
	OP_GET_UPVALUE: "GET_UPVALUE", OP_SET_UPVALUE: "SET_UPVALUE",
	OP_CLOSE_UPVALUE: "CLOSE_UPVALUE",

	OP_JUMP: "JUMP", OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_JUMP_IF_FALSE_S: "JUMP_IF_FALSE_S", OP_LOOP: "LOOP",

	OP_CALL: "CALL", OP_CLOSURE: "CLOSURE", OP_RETURN: "RETURN",
	OP_INVOKE: "INVOKE", OP_SUPER_INVOKE: "SUPER_INVOKE",

	OP_CLASS: "CLASS", OP_INHERIT: "INHERIT", OP_METHOD: "METHOD",
	OP_GET_PROPERTY: "GET_PROPERTY", OP_SET_PROPERTY: "SET_PROPERTY",
	OP_GET_SUPER: "GET_SUPER", OP_OBJECT: "OBJECT",

	OP_LIST: "LIST", OP_GET_INDEX: "GET_INDEX", OP_SET_INDEX: "SET_INDEX",

	OP_EXPORT: "EXPORT", OP_IMPORT: "IMPORT", OP_IMPORT_STAR: "IMPORT_STAR",

	OP_THROW: "THROW", OP_TRY_BEGIN: "TRY_BEGIN", OP_TRY_END: "TRY_END",
}

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "UNKNOWN_OP"
}
