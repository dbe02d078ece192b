package vm

import (
	"fmt"

	"github.com/foxlang/fox/internal/lexer"
	"github.com/foxlang/fox/internal/token"
)

// Precedence levels, lowest to highest (spec.md §4.2).
type precedence int

const (
	precNone precedence = iota
	precDestructure
	precAssignment
	precPipe
	precTernary
	precOr
	precAnd
	precBitOr
	precXor
	precBitAnd
	precEquality
	precComparison
	precShift
	precTerm
	precFactor
	precRange
	precUnary
	precPostfix
	precCall
	precPrimary
)

type (
	prefixFn func(c *Compiler, canAssign bool)
	infixFn  func(c *Compiler, canAssign bool)
)

type parseRule struct {
	prefix prefixFn
	infix  infixFn
	prec   precedence
}

const maxLocals = 256
const maxUpvalues = 256
const maxConstants = 256
const maxParams = 256
const maxCaseTargets = 256

type localVar struct {
	name       string
	depth      int
	isCaptured bool
}

type upvalueRef struct {
	index   uint8
	isLocal bool
}

type funcType int

const (
	typeScript funcType = iota
	typeFunction
	typeMethod
	typeInitializer
	typeLambda
)

type loopCtx struct {
	breakJumps    []int
	continueTarget int
}

type classCtx struct {
	enclosing      *classCtx
	name           string
	hasSuperclass  bool
}

// frame is one nested function/method/lambda/script compilation context
// (spec.md §4.2 "Parse state").
type frame struct {
	enclosing  *frame
	fn         *Function
	fnType     funcType
	locals     []localVar
	upvalues   []upvalueRef
	scopeDepth int

	// lvalue metadata for postfix/prefix ++/-- and compound assignment.
	expectLvalue bool
	lvalueKind   int // see lvalue* constants below
	lvalueArg    int // constant/local/upvalue index for the lvalue's storage op
}

const (
	lvalueNone = iota
	lvalueLocal
	lvalueUpvalue
	lvalueGlobal
	lvalueProperty
	lvalueIndex
)

// Compiler is a single-pass Pratt parser that emits bytecode directly into
// the current frame's Chunk as it parses (spec.md §4.2 — no separate AST
// pass).
type Compiler struct {
	vm  *VM
	lex *lexer.Lexer

	cur, prev token.Token
	hadError  bool
	panicMode bool
	errors    []CompileError

	f      *frame
	class  *classCtx
	loops  []*loopCtx

	filename string
	basePath string

	destructureCounter int
}

var rules [256]parseRule // indexed by token.Kind

func rule(k token.Kind) *parseRule { return &rules[k] }

func init() {
	r := func(k token.Kind, pre prefixFn, in infixFn, p precedence) {
		rules[k] = parseRule{pre, in, p}
	}
	r(token.LPAREN, (*Compiler).grouping, (*Compiler).call, precCall)
	r(token.LBRACKET, (*Compiler).listLiteral, (*Compiler).index, precCall)
	r(token.DOT, nil, (*Compiler).dot, precCall)
	r(token.DOTDOT, nil, (*Compiler).rangeExpr, precRange)
	r(token.MINUS, (*Compiler).unary, (*Compiler).binary, precTerm)
	r(token.PLUS, nil, (*Compiler).binary, precTerm)
	r(token.SLASH, nil, (*Compiler).binary, precFactor)
	r(token.STAR, nil, (*Compiler).binary, precFactor)
	r(token.PERCENT, nil, (*Compiler).binary, precFactor)
	r(token.BANG, (*Compiler).unary, nil, precNone)
	r(token.BANG_EQUAL, nil, (*Compiler).binary, precEquality)
	r(token.EQUAL_EQUAL, nil, (*Compiler).binary, precEquality)
	r(token.GREATER, nil, (*Compiler).binary, precComparison)
	r(token.GREATER_EQUAL, nil, (*Compiler).binary, precComparison)
	r(token.LESS, nil, (*Compiler).binary, precComparison)
	r(token.LESS_EQUAL, nil, (*Compiler).binary, precComparison)
	r(token.IDENT, (*Compiler).variable, nil, precNone)
	r(token.STRING, (*Compiler).stringLit, nil, precNone)
	r(token.NUMBER, (*Compiler).number, nil, precNone)
	r(token.AND, nil, (*Compiler).and_, precAnd)
	r(token.AND_AND, nil, (*Compiler).and_, precAnd)
	r(token.AMP, nil, (*Compiler).binary, precBitAnd)
	// "or"/"||" both mean logical-or; only the symbolic "||" doubles as the
	// zero-parameter lambda marker in prefix position, matching how the
	// original grammar overloads TOKEN_OR for lambdaOr.
	r(token.OR, nil, (*Compiler).or_, precOr)
	r(token.OR_OR, (*Compiler).lambdaOr, (*Compiler).or_, precOr)
	r(token.PIPE, (*Compiler).lambda, (*Compiler).binary, precBitOr)
	r(token.TILDE, (*Compiler).unary, nil, precNone)
	r(token.CARET, nil, (*Compiler).binary, precXor)
	r(token.SHL, nil, (*Compiler).binary, precShift)
	r(token.SHR, nil, (*Compiler).binary, precShift)
	r(token.USHR, nil, (*Compiler).binary, precShift)
	r(token.QUESTION, nil, (*Compiler).ternary, precTernary)
	r(token.PIPE_ARROW, nil, (*Compiler).pipe, precPipe)
	r(token.FALSE, (*Compiler).literal, nil, precNone)
	r(token.TRUE, (*Compiler).literal, nil, precNone)
	r(token.NULL, (*Compiler).literal, nil, precNone)
	r(token.IS, nil, (*Compiler).binary, precEquality)
	r(token.IN, nil, (*Compiler).binary, precComparison)
	r(token.IMPLEMENTS, nil, (*Compiler).binary, precComparison)
	r(token.SUPER, (*Compiler).super_, nil, precNone)
	r(token.THIS, (*Compiler).this_, nil, precNone)
	r(token.TYPEOF, (*Compiler).unary, nil, precNone)
	r(token.PLUS_PLUS, (*Compiler).prefixIncDec, (*Compiler).postfixIncDec, precPostfix)
	r(token.MINUS_MINUS, (*Compiler).prefixIncDec, (*Compiler).postfixIncDec, precPostfix)
	r(token.SWITCH, (*Compiler).switchExpr, nil, precNone)
}

// NewCompiler creates a compiler for top-level script code.
func NewCompiler(vm *VM, src, filename, basePath string) *Compiler {
	c := &Compiler{vm: vm, lex: lexer.New(src), filename: filename, basePath: basePath}
	c.f = &frame{fn: vm.newFunction(), fnType: typeScript}
	c.f.fn.Name = nil
	// Slot 0 is reserved for the implicit receiver/callee alignment slot.
	c.f.locals = append(c.f.locals, localVar{name: "", depth: 0})
	vm.compilerRoots = append(vm.compilerRoots, c.f.fn)
	c.advance()
	return c
}

// Compile parses the whole program and returns the top-level Function, or
// the accumulated compile errors.
func (c *Compiler) Compile() (*Function, []CompileError) {
	for !c.check(token.EOF) {
		c.declaration()
	}
	fn := c.endCompiler()
	if c.hadError {
		return nil, c.errors
	}
	return fn, nil
}

// ---- token stream ---------------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.lex.Next()
		if c.cur.Kind != token.ERROR {
			break
		}
		c.errorAtCurrent(c.cur.Lexeme)
	}
}

func (c *Compiler) check(k token.Kind) bool { return c.cur.Kind == k }

func (c *Compiler) match(k token.Kind) bool {
	if !c.check(k) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(k token.Kind, msg string) {
	if c.cur.Kind == k {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(t token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	c.errors = append(c.errors, CompileError{Line: t.Line, Message: msg})
}

// synchronize implements panic-mode recovery: consume tokens until a
// statement boundary (spec.md §4.2 "Error recovery").
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.cur.Kind != token.EOF {
		if c.prev.Kind == token.SEMICOLON {
			return
		}
		switch c.cur.Kind {
		case token.CLASS, token.FUNCTION, token.VAR, token.FOR, token.FOREACH,
			token.IF, token.WHILE, token.RETURN, token.IMPORT, token.FROM,
			token.TRY, token.THROW, token.EXPORT, token.SWITCH:
			return
		}
		c.advance()
	}
}

// ---- emit helpers ---------------------------------------------------------

func (c *Compiler) chunk() *Chunk { return c.f.fn.Chunk }
func (c *Compiler) line() int {
	if c.prev.Line != 0 {
		return c.prev.Line
	}
	return c.cur.Line
}

func (c *Compiler) emit(op Opcode)              { c.chunk().WriteOp(op, c.line()) }
func (c *Compiler) emitByte(b byte)             { c.chunk().Write(b, c.line()) }
func (c *Compiler) emitOpByte(op Opcode, b byte) { c.emit(op); c.emitByte(b) }

func (c *Compiler) makeConstant(v Value) byte {
	if len(c.chunk().Constants) >= maxConstants {
		c.error("too many constants in one chunk (256)")
		return 0
	}
	return byte(c.chunk().AddConstant(v))
}

func (c *Compiler) emitConstant(v Value) {
	c.emitOpByte(OP_CONSTANT, c.makeConstant(v))
}

func (c *Compiler) identifierConstant(name string) byte {
	return c.makeConstant(FromObject(c.vm.internString(name)))
}

func (c *Compiler) emitJump(op Opcode) int {
	c.emit(op)
	return c.chunk().WriteU16(0xFFFF, c.line())
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xFFFF {
		c.error("jump too large")
	}
	c.chunk().PatchU16(offset, uint16(jump))
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emit(OP_LOOP)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		c.error("loop body too large")
	}
	c.chunk().WriteU16(uint16(offset), c.line())
}

func (c *Compiler) endCompiler() *Function {
	if c.f.fnType == typeInitializer {
		c.emitOpByte(OP_GET_LOCAL, 0)
		c.emit(OP_RETURN)
	} else {
		c.emit(OP_NULL)
		c.emit(OP_RETURN)
	}
	fn := c.f.fn
	fn.Arity = countParamArity(c.f)
	fn.UpvalueCount = len(c.f.upvalues)
	c.vm.compilerRoots = c.vm.compilerRoots[:len(c.vm.compilerRoots)-1]
	return fn
}

func countParamArity(f *frame) int { return f.fn.Arity }

// ---- scopes, locals, upvalues ---------------------------------------------

func (c *Compiler) beginScope() { c.f.scopeDepth++ }

func (c *Compiler) endScope() {
	c.f.scopeDepth--
	for len(c.f.locals) > 0 && c.f.locals[len(c.f.locals)-1].depth > c.f.scopeDepth {
		if c.f.locals[len(c.f.locals)-1].isCaptured {
			c.emit(OP_CLOSE_UPVALUE)
		} else {
			c.emit(OP_POP)
		}
		c.f.locals = c.f.locals[:len(c.f.locals)-1]
	}
}

func (c *Compiler) declareVariable(name string) {
	if c.f.scopeDepth == 0 {
		return
	}
	for i := len(c.f.locals) - 1; i >= 0; i-- {
		l := &c.f.locals[i]
		if l.depth != -1 && l.depth < c.f.scopeDepth {
			break
		}
		if l.name == name {
			c.error(fmt.Sprintf("variable %q already declared in this scope", name))
		}
	}
	c.addLocal(name)
}

func (c *Compiler) addLocal(name string) {
	if len(c.f.locals) >= maxLocals {
		c.error("too many local variables in function (256)")
		return
	}
	c.f.locals = append(c.f.locals, localVar{name: name, depth: -1})
}

func (c *Compiler) markInitialized() {
	if c.f.scopeDepth == 0 {
		return
	}
	c.f.locals[len(c.f.locals)-1].depth = c.f.scopeDepth
}

func (c *Compiler) parseVariable(msg string) byte {
	c.consume(token.IDENT, msg)
	name := c.prev.Lexeme
	c.declareVariable(name)
	if c.f.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) defineVariable(global byte) {
	if c.f.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(OP_DEFINE_GLOBAL, global)
}

func resolveLocal(f *frame, name string) int {
	for i := len(f.locals) - 1; i >= 0; i-- {
		if f.locals[i].name == name {
			if f.locals[i].depth == -1 {
				return -1
			}
			return i
		}
	}
	return -1
}

func addUpvalue(f *frame, index byte, isLocal bool) int {
	for i, u := range f.upvalues {
		if u.index == index && u.isLocal == isLocal {
			return i
		}
	}
	if len(f.upvalues) >= maxUpvalues {
		return -1
	}
	f.upvalues = append(f.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(f.upvalues) - 1
}

func resolveUpvalue(f *frame, name string) int {
	if f.enclosing == nil {
		return -1
	}
	if local := resolveLocal(f.enclosing, name); local != -1 {
		f.enclosing.locals[local].isCaptured = true
		return addUpvalue(f, byte(local), true)
	}
	if up := resolveUpvalue(f.enclosing, name); up != -1 {
		return addUpvalue(f, byte(up), false)
	}
	return -1
}

// ---- Pratt engine -----------------------------------------------------------

func (c *Compiler) parsePrecedence(p precedence) {
	c.advance()
	pre := rule(c.prev.Kind).prefix
	if pre == nil {
		c.error("expected expression")
		return
	}
	canAssign := p <= precAssignment
	pre(c, canAssign)

	for p <= rule(c.cur.Kind).prec {
		c.advance()
		in := rule(c.prev.Kind).infix
		in(c, canAssign)
	}

	if canAssign && c.match(token.EQUAL) {
		c.error("invalid assignment target")
	}
}

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }
