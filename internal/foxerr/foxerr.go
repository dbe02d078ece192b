// Package foxerr names the canonical runtime exception kinds (spec.md §7),
// raised by internal/vm. Exception identity lives in the "name" field of a thrown Instance
// as a plain string, not a Go type switch, mirroring the teacher's
// newError/isError convention of keeping error identity string-shaped at the
// object boundary (internal/evaluator/helpers.go) rather than introducing a
// parallel Go error-type hierarchy.
package foxerr

const (
	Arity             = "ArityException"
	Type              = "TypeException"
	InvalidOperation  = "InvalidOperationException"
	InvalidIndex      = "InvalidIndexException"
	IndexOutOfBounds  = "IndexOutOfBoundsException"
	UndefinedVariable = "UndefinedVariableException"
	UndefinedProperty = "UndefinedPropertyException"
	InvalidInheritance = "InvalidInheritanceException"
	InvalidImport     = "InvalidImportException"
	IO                = "IOException"
	StackOverflow     = "StackOverflowException"
)

// Kinds lists every catchable runtime exception name in spec.md §7, in the
// order the section enumerates them. Nothing in this module reads it.
var Kinds = []string{
	Arity,
	Type,
	InvalidOperation,
	InvalidIndex,
	IndexOutOfBounds,
	UndefinedVariable,
	UndefinedProperty,
	InvalidInheritance,
	InvalidImport,
	IO,
	StackOverflow,
}
