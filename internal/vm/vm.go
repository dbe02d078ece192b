package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/dolthub/swiss"
	"github.com/google/uuid"

	"github.com/foxlang/fox/internal/foxio"
)

const (
	initialStackSize = 16384
	initialFrames    = 64
	FramesMax        = 1024
	gcHeapGrowFactor = 2
	initialNextGC    = 1 << 20 // 1 MiB
)

// tryHandler is one active try/catch scope within a CallFrame. Frames keep a
// stack of these so nested try statements in the same function unwind to the
// innermost still-open handler (spec.md §4.4).
type tryHandler struct {
	catchIP    int // ip to resume at, inside the catch block
	stackDepth int // v.sp to truncate to before pushing the caught value
}

// CallFrame is a single call activation (spec.md §4.4).
type CallFrame struct {
	closure  *Closure
	ip       int
	base     int // slot index of the callee's implicit receiver slot
	handlers []tryHandler
}

// VM owns the call-frame stack, value stack, global tables, class registry,
// open-upvalue list and per-import child VMs (spec.md §4.4).
type VM struct {
	ID uuid.UUID

	stack []Value
	sp    int

	frames     []CallFrame
	frameCount int
	frame      *CallFrame

	globals *Table
	exports *Table
	strings *InternTable

	listMethods     *Table
	stringMethods   *Table
	objectClass     *Class
	iteratorClass   *Class
	exceptionClass  *Class

	openUpvalues *Upvalue

	// GC bookkeeping
	objects        Object // intrusive heap-object list head
	bytesAllocated int
	nextGC         int
	grayStack      []Object

	// Compiler chain roots: while a Compile is in progress, its partially
	// built Functions must be markable even though nothing references them
	// from Go's perspective yet.
	compilerRoots []*Function

	// Imports: child VMs spun up by OP_IMPORT, kept alive for the parent's
	// whole lifetime (spec.md §4.4, SPEC_FULL.md open question 2).
	imports []*VM

	// moduleCache avoids recompiling and re-running a module file imported
	// from more than one place in the same program, keyed by the resolved
	// path internal/foxio hands back (SPEC_FULL.md §3).
	moduleCache *swiss.Map[string, *VM]

	// filename/basePath drive import resolution (internal/foxio).
	filename string
	basePath string
	resolver *foxio.Resolver

	// Pending-throw bookkeeping: set by throwValue, consumed by runLoop's
	// dispatch loop right after the opcode that raised it returns.
	pendingThrow       bool
	pendingErrInstance *Instance
	pendingErrMessage  string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// Config, when non-nil, overrides the defaults above at NewVM time.
	heapGrowFactor float64
	frameCap       int
}

// Config customizes VM limits; zero-value fields take spec defaults.
// ModuleSearchPaths is carried but NewVM does not read it: imports resolve
// against the importing file's directory and then the base path only.
type Config struct {
	InitialStackSize  int
	FramesMax         int
	GCHeapGrowFactor  float64
	ModuleSearchPaths []string
}

func NewVM(filename, basePath string, cfg *Config) *VM {
	v := &VM{
		ID:             uuid.New(),
		stack:          make([]Value, initialStackSize),
		frames:         make([]CallFrame, initialFrames),
		globals:        NewTable(),
		exports:        NewTable(),
		strings:        NewInternTable(),
		listMethods:    NewTable(),
		stringMethods:  NewTable(),
		nextGC:         initialNextGC,
		heapGrowFactor: gcHeapGrowFactor,
		frameCap:       FramesMax,
		filename:       filename,
		basePath:       basePath,
		resolver:       foxio.New(basePath),
		moduleCache:    swiss.NewMap[string, *VM](8),
		Stdin:          os.Stdin,
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
	}
	if cfg != nil {
		if cfg.InitialStackSize > 0 {
			v.stack = make([]Value, cfg.InitialStackSize)
		}
		if cfg.FramesMax > 0 {
			v.frameCap = cfg.FramesMax
		}
		if cfg.GCHeapGrowFactor > 0 {
			v.heapGrowFactor = cfg.GCHeapGrowFactor
		}
	}
	v.initBuiltinClasses()
	registerNatives(v)
	return v
}

func (v *VM) push(val Value) {
	if v.sp >= len(v.stack) {
		grown := make([]Value, len(v.stack)*2)
		copy(grown, v.stack)
		v.stack = grown
	}
	v.stack[v.sp] = val
	v.sp++
}

func (v *VM) pop() Value {
	v.sp--
	return v.stack[v.sp]
}

func (v *VM) peek(distance int) Value {
	return v.stack[v.sp-1-distance]
}

func (v *VM) resetStack() {
	v.sp = 0
	v.frameCount = 0
	v.openUpvalues = nil
}

// RuntimeError is returned by Run/Interpret when an exception goes uncaught.
type RuntimeError struct {
	Instance *Instance
	Message  string
}

func (e *RuntimeError) Error() string { return e.Message }

// CompileError is one accumulated parse/compile failure (spec.md §7).
type CompileError struct {
	Line    int
	Message string
}

func (e CompileError) Error() string {
	return fmt.Sprintf("[line %d] %s", e.Line, e.Message)
}
