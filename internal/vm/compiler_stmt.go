package vm

import (
	"fmt"
	"strings"

	"github.com/foxlang/fox/internal/lexer"
	"github.com/foxlang/fox/internal/token"
)

// ---- lookahead for bare destructuring statements ---------------------------

// checkpoint snapshots lexer/token state so looksLikeDestructure can peek
// past the first identifier without committing to it.
func (c *Compiler) checkpoint() (lexer.Lexer, token.Token, token.Token) {
	return *c.lex, c.cur, c.prev
}

func (c *Compiler) restore(saved lexer.Lexer, cur, prev token.Token) {
	*c.lex = saved
	c.cur = cur
	c.prev = prev
}

// looksLikeDestructure reports whether the upcoming tokens are
// `identifier ,` which can only start a bare destructuring statement
// (spec.md §4.2); every other expression statement form is unambiguous.
func (c *Compiler) looksLikeDestructure() bool {
	if !c.check(token.IDENT) {
		return false
	}
	savedLex, savedCur, savedPrev := c.checkpoint()
	c.advance()
	is := c.check(token.COMMA)
	c.restore(savedLex, savedCur, savedPrev)
	return is
}

// ---- declarations / statements ---------------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(token.VAR):
		c.varDeclaration()
	case c.match(token.FUNCTION):
		c.funDeclaration()
	case c.match(token.CLASS):
		c.classDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.FOREACH):
		c.foreachStatement()
	case c.match(token.SWITCH):
		c.switchStatement()
	case c.match(token.TRY):
		c.tryStatement()
	case c.match(token.THROW):
		c.throwStatement()
	case c.match(token.IMPORT):
		c.importStatement()
	case c.match(token.FROM):
		c.fromImportStatement()
	case c.match(token.EXPORT):
		c.exportStatement()
	case c.match(token.BREAK):
		c.breakStatement()
	case c.match(token.CONTINUE):
		c.continueStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.SEMICOLON):
		// empty statement
	case c.looksLikeDestructure():
		c.destructureStatement()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "expected '}' after block")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "expected ';' after expression")
	c.emit(OP_POP)
}

func (c *Compiler) declareVarName(name string) byte {
	c.declareVariable(name)
	if c.f.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(name)
}

func (c *Compiler) varDeclaration() {
	c.consume(token.IDENT, "expected variable name")
	first := c.prev.Lexeme

	if c.check(token.COMMA) {
		names := []string{first}
		for c.match(token.COMMA) {
			c.consume(token.IDENT, "expected variable name")
			names = append(names, c.prev.Lexeme)
		}
		byName := c.match(token.LARROW)
		if !byName {
			c.consume(token.EQUAL, "expected '=' or '<-' after destructuring targets")
		}
		c.expression()
		c.consume(token.SEMICOLON, "expected ';' after variable declaration")
		c.emitDestructureBind(names, true, byName)
		return
	}

	global := c.declareVarName(first)
	if c.match(token.EQUAL) {
		c.expression()
	} else {
		c.emit(OP_NULL)
	}
	c.consume(token.SEMICOLON, "expected ';' after variable declaration")
	c.defineVariable(global)
}

// emitDestructureBind stashes the already-compiled source (on top of stack)
// into a hidden global scratch slot, then binds each name in order. Using a
// global scratch slot (rather than a stack-relative dup) keeps every target
// fetch independent of how many new locals get declared along the way.
//
// byName selects the per-target fetch: `a, b, c = expr` (positional) reads
// list[i] via OP_GET_INDEX; `a, b, c <- expr` (by name) reads a property of
// the same name via OP_GET_PROPERTY (spec.md §4.2).
func (c *Compiler) emitDestructureBind(names []string, declareNew, byName bool) {
	hidden := c.vm.internString(fmt.Sprintf("@destructure$%d", c.destructureCounter))
	c.destructureCounter++
	hiddenConst := c.makeConstant(FromObject(hidden))
	c.emitOpByte(OP_DEFINE_GLOBAL, hiddenConst)

	for i, name := range names {
		c.emitOpByte(OP_GET_GLOBAL, hiddenConst)
		if byName {
			c.emitOpByte(OP_GET_PROPERTY, c.identifierConstant(name))
		} else {
			c.emitConstant(Number(float64(i)))
			c.emit(OP_GET_INDEX)
		}
		if declareNew {
			c.declareVariable(name)
			if c.f.scopeDepth > 0 {
				c.markInitialized()
			} else {
				g := c.identifierConstant(name)
				c.emitOpByte(OP_DEFINE_GLOBAL, g)
			}
		} else {
			_, setOp, arg := c.resolveVariable(name)
			c.emitOpByte(setOp, byte(arg))
			c.emit(OP_POP)
		}
	}
}

func (c *Compiler) destructureStatement() {
	var names []string
	for {
		c.consume(token.IDENT, "expected identifier in destructuring target")
		names = append(names, c.prev.Lexeme)
		if !c.match(token.COMMA) {
			break
		}
	}
	byName := c.match(token.LARROW)
	if !byName {
		c.consume(token.EQUAL, "expected '=' or '<-' in destructuring statement")
	}
	c.expression()
	c.consume(token.SEMICOLON, "expected ';' after destructuring statement")
	c.emitDestructureBind(names, false, byName)
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("expected function name")
	name := c.prev.Lexeme
	c.markInitialized()
	c.compileFunction(typeFunction, name)
	c.defineVariable(global)
}

// compileFunction parses a `(params) { body }` or `(params) = expr;`
// function/method (lambdas go through compileLambdaBody) and
// leaves an OP_CLOSURE (with its upvalue pairs) emitted into the enclosing
// frame (spec.md §4.2 "function").
func (c *Compiler) compileFunction(fnType funcType, name string) {
	enclosing := c.f
	fn := c.vm.newFunction()
	if name != "" {
		fn.Name = c.vm.internString(name)
	}
	nf := &frame{enclosing: enclosing, fn: fn, fnType: fnType}
	slot0 := ""
	if fnType == typeMethod || fnType == typeInitializer {
		slot0 = "this"
	}
	nf.locals = append(nf.locals, localVar{name: slot0, depth: 0})
	c.f = nf
	c.vm.compilerRoots = append(c.vm.compilerRoots, fn)
	c.beginScope()

	c.consume(token.LPAREN, "expected '(' after function name")
	arity := 0
	if !c.check(token.RPAREN) {
		for {
			if c.match(token.ELLIPSIS) {
				c.consume(token.IDENT, "expected parameter name after '...'")
				fn.IsVarargs = true
				c.declareVariable(c.prev.Lexeme)
				c.markInitialized()
				arity++
				break
			}
			c.consume(token.IDENT, "expected parameter name")
			c.declareVariable(c.prev.Lexeme)
			c.markInitialized()
			arity++
			if arity > maxParams {
				c.error("too many parameters (256)")
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after parameters")
	fn.Arity = arity
	if fnType == typeInitializer {
		fn.IsInit = true
	}

	// `name(params) = expr;` is sugar for `name(params) { return expr; }`
	// (spec.md §8 scenario 3's `get() = this.x;`).
	if c.match(token.EQUAL) {
		c.expression()
		c.consume(token.SEMICOLON, "expected ';' after expression body")
		c.emit(OP_RETURN)
	} else {
		c.consume(token.LBRACE, "expected '{' or '=' before function body")
		c.block()

		if fnType == typeInitializer {
			c.emitOpByte(OP_GET_LOCAL, 0)
		} else {
			c.emit(OP_NULL)
		}
		c.emit(OP_RETURN)
	}

	upvals := append([]upvalueRef(nil), c.f.upvalues...)
	fn.UpvalueCount = len(upvals)

	c.vm.compilerRoots = c.vm.compilerRoots[:len(c.vm.compilerRoots)-1]
	c.f = enclosing

	c.emitOpByte(OP_CLOSURE, c.makeConstant(FromObject(fn)))
	for _, u := range upvals {
		if u.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.index)
	}
}

// classDeclaration always binds a "super" local holding the superclass and
// always emits OP_INHERIT (against the built-in Object class, which
// OP_OBJECT pushes, when there is no `extends` clause),
// so `super.method()` resolves uniformly whether or not a class actually has
// a superclass — grounded on the original compiler's classDeclaration(),
// which opens the same synthetic scope unconditionally.
func (c *Compiler) classDeclaration() {
	c.consume(token.IDENT, "expected class name")
	name := c.prev.Lexeme
	nameConst := c.identifierConstant(name)
	c.declareVariable(name)

	c.emitOpByte(OP_CLASS, nameConst)
	c.defineVariable(nameConst)

	cc := &classCtx{enclosing: c.class, name: name}
	c.class = cc

	c.beginScope()
	if c.match(token.EXTENDS) {
		c.consume(token.IDENT, "expected superclass name")
		if c.prev.Lexeme == name {
			c.error("a class cannot inherit from itself")
		}
		c.namedVariable(c.prev.Lexeme, false)
	} else {
		c.emit(OP_OBJECT)
	}
	c.addLocal("super")
	c.markInitialized()

	c.namedVariableGet(name)
	c.namedVariableGet("super")
	cc.hasSuperclass = true
	c.emit(OP_INHERIT)

	if c.match(token.IMPLEMENTS) {
		for {
			c.consume(token.IDENT, "expected interface name")
			c.namedVariable(c.prev.Lexeme, false)
			c.emit(OP_INHERIT)
			if !c.match(token.COMMA) {
				break
			}
		}
	}

	c.consume(token.LBRACE, "expected '{' before class body")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.method(name)
	}
	c.consume(token.RBRACE, "expected '}' after class body")
	c.emit(OP_POP)

	c.endScope()
	c.class = cc.enclosing
}

// method compiles one class member. A method literally named "operator"
// followed by an operator token defines an operator-overload method
// (`operator +`, `operator ==`, ...); a method whose name matches the
// enclosing class name is the initializer and implicitly returns `this`.
func (c *Compiler) method(className string) {
	var name string
	if c.check(token.IDENT) && c.cur.Lexeme == "operator" {
		c.advance()
		c.advance()
		name = "operator" + c.prev.Lexeme
	} else {
		c.consume(token.IDENT, "expected method name")
		name = c.prev.Lexeme
	}
	nameConst := c.identifierConstant(name)

	fnType := typeMethod
	if name == className {
		fnType = typeInitializer
	}
	c.compileFunction(fnType, name)
	c.emitOpByte(OP_METHOD, nameConst)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "expected '(' after 'if'")
	c.expression()
	c.consume(token.RPAREN, "expected ')' after condition")

	thenJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.statement()
	elseJump := c.emitJump(OP_JUMP)
	c.patchJump(thenJump)
	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(token.LPAREN, "expected '(' after 'while'")
	c.expression()
	c.consume(token.RPAREN, "expected ')' after condition")

	exitJump := c.emitJump(OP_JUMP_IF_FALSE)
	lc := &loopCtx{continueTarget: loopStart}
	c.loops = append(c.loops, lc)
	c.statement()
	c.emitLoop(loopStart)
	c.patchJump(exitJump)

	for _, bj := range lc.breakJumps {
		c.patchJump(bj)
	}
	c.loops = c.loops[:len(c.loops)-1]
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "expected '(' after 'for'")
	if c.match(token.SEMICOLON) {
		// no initializer
	} else if c.match(token.VAR) {
		c.varDeclaration()
	} else {
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(token.SEMICOLON) {
		c.expression()
		c.consume(token.SEMICOLON, "expected ';' after loop condition")
		exitJump = c.emitJump(OP_JUMP_IF_FALSE)
	}

	incrStart := loopStart
	if !c.check(token.RPAREN) {
		bodyJump := c.emitJump(OP_JUMP)
		incrStart = len(c.chunk().Code)
		c.expression()
		c.emit(OP_POP)
		c.consume(token.RPAREN, "expected ')' after for clauses")
		c.emitLoop(loopStart)
		c.patchJump(bodyJump)
	} else {
		c.consume(token.RPAREN, "expected ')' after for clauses")
	}

	lc := &loopCtx{continueTarget: incrStart}
	c.loops = append(c.loops, lc)
	c.statement()
	c.emitLoop(incrStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
	}
	for _, bj := range lc.breakJumps {
		c.patchJump(bj)
	}
	c.loops = c.loops[:len(c.loops)-1]
	c.endScope()
}

// foreachStatement compiles `foreach (var x in iterable) body` via the iterator
// protocol exactly as spec.md §4.2 describes it:
//
//	iter = iterable.iterator(); while (!iter.done()) { x = iter.next(); body }
func (c *Compiler) foreachStatement() {
	c.consume(token.LPAREN, "expected '(' after 'foreach'")
	c.consume(token.VAR, "expected 'var' before foreach loop variable")
	c.consume(token.IDENT, "expected loop variable name")
	varName := c.prev.Lexeme
	c.consume(token.IN, "expected 'in' in foreach")

	c.beginScope()
	c.expression()
	c.consume(token.RPAREN, "expected ')' after foreach clause")
	c.emit(OP_INVOKE)
	c.emitByte(c.identifierConstant("iterator"))
	c.emitByte(0)
	c.addLocal("@iter")
	c.markInitialized()
	iterSlot := len(c.f.locals) - 1

	loopStart := len(c.chunk().Code)
	c.emitOpByte(OP_GET_LOCAL, byte(iterSlot))
	c.emit(OP_INVOKE)
	c.emitByte(c.identifierConstant("done"))
	c.emitByte(0)
	c.emit(OP_NOT)
	exitJump := c.emitJump(OP_JUMP_IF_FALSE)

	lc := &loopCtx{continueTarget: loopStart}
	c.loops = append(c.loops, lc)
	c.beginScope()
	c.emitOpByte(OP_GET_LOCAL, byte(iterSlot))
	c.emit(OP_INVOKE)
	c.emitByte(c.identifierConstant("next"))
	c.emitByte(0)
	c.addLocal(varName)
	c.markInitialized()
	c.statement()
	c.endScope()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	for _, bj := range lc.breakJumps {
		c.patchJump(bj)
	}
	c.loops = c.loops[:len(c.loops)-1]
	c.endScope()
}

// compileSwitchPattern compiles one arm pattern, leaving a bool on the
// stack: a bare expression compares by ==, `in`/`is` delegate to those
// operators against the subject, `|param| expr` applies a predicate
// lambda to the subject, and a leading `!` negates any of the above.
func (c *Compiler) compileSwitchPattern(subjSlot int) {
	negate := false
	for c.match(token.BANG) {
		negate = !negate
	}
	switch {
	case c.match(token.IN):
		c.emitOpByte(OP_GET_LOCAL, byte(subjSlot))
		c.expression()
		c.emit(OP_IN)
	case c.match(token.IS):
		c.emitOpByte(OP_GET_LOCAL, byte(subjSlot))
		c.expression()
		c.emit(OP_IS)
	case c.check(token.PIPE):
		c.expression()
		c.emitOpByte(OP_GET_LOCAL, byte(subjSlot))
		c.emitOpByte(OP_CALL, 1)
	default:
		c.emitOpByte(OP_GET_LOCAL, byte(subjSlot))
		c.expression()
		c.emit(OP_EQUAL)
	}
	if negate {
		c.emit(OP_NOT)
	}
}

func (c *Compiler) switchStatement() {
	c.consume(token.LPAREN, "expected '(' after 'switch'")
	c.beginScope()
	c.expression()
	c.addLocal("@switch")
	c.markInitialized()
	subjSlot := len(c.f.locals) - 1
	c.consume(token.RPAREN, "expected ')' after switch subject")
	c.consume(token.LBRACE, "expected '{' to start switch body")
	c.switchBody(subjSlot, false)
	c.consume(token.RBRACE, "expected '}' after switch body")
	c.endScope()
}

// switchExpr parses `switch (subject) { pattern: expr, ..., else: expr }` in
// expression position (spec.md §4.2: "the expression form leaves the
// matched arm's value on the stack"). Arms are comma-separated since each
// arm body is a bare expression rather than a self-delimiting statement.
func (c *Compiler) switchExpr(canAssign bool) {
	c.consume(token.LPAREN, "expected '(' after 'switch'")
	c.beginScope()
	c.expression()
	c.addLocal("@switch")
	c.markInitialized()
	subjSlot := len(c.f.locals) - 1
	c.consume(token.RPAREN, "expected ')' after switch subject")
	c.consume(token.LBRACE, "expected '{' to start switch body")
	c.switchBody(subjSlot, true)
	c.consume(token.RBRACE, "expected '}' after switch body")

	// Overwrite the scratch subject local with the matched arm's value so
	// endScope's single OP_POP leaves exactly that value on top, rather
	// than retrofitting the local table.
	c.emitOpByte(OP_SET_LOCAL, byte(subjSlot))
	c.endScope()
}

// switchBody compiles the arm list shared by the statement and expression
// forms of `switch`. In expression position each arm body is a bare
// expression (comma-separated from its neighbors) whose value survives to
// the matched jump target; in statement position each arm body is an
// ordinary statement and discards its own value, exactly as before.
func (c *Compiler) switchBody(subjSlot int, isExpr bool) {
	var endJumps []int
	hadElse := false
	first := true
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		if isExpr && !first {
			c.consume(token.COMMA, "expected ',' between switch-expression arms")
		}
		first = false

		if c.match(token.ELSE) {
			hadElse = true
			c.consume(token.COLON, "expected ':' after 'else'")
			c.switchArmBody(isExpr)
			continue
		}

		var trueJumps []int
		for {
			c.compileSwitchPattern(subjSlot)
			falseJump := c.emitJump(OP_JUMP_IF_FALSE_S)
			trueJumps = append(trueJumps, c.emitJump(OP_JUMP))
			c.patchJump(falseJump)
			c.emit(OP_POP)
			if !c.match(token.COMMA) {
				break
			}
		}
		skipJump := c.emitJump(OP_JUMP)
		for _, tj := range trueJumps {
			c.patchJump(tj)
		}
		c.emit(OP_POP)
		c.consume(token.COLON, "expected ':' after switch pattern")
		c.switchArmBody(isExpr)
		endJumps = append(endJumps, c.emitJump(OP_JUMP))
		c.patchJump(skipJump)
	}
	// No arm matched and there was no `else`: an expression-form switch
	// still needs exactly one value on the stack, so it falls back to null.
	if isExpr && !hadElse {
		c.emit(OP_NULL)
	}
	for _, ej := range endJumps {
		c.patchJump(ej)
	}
}

func (c *Compiler) switchArmBody(isExpr bool) {
	if isExpr {
		c.expression()
	} else {
		c.statement()
	}
}

// tryStatement relies on the runtime pushing the caught instance (or
// nothing, on normal completion) onto the stack before jumping into the
// catch block; an unbound `catch { ... }` just discards it.
func (c *Compiler) tryStatement() {
	tryJump := c.emitJump(OP_TRY_BEGIN)
	c.beginScope()
	c.consume(token.LBRACE, "expected '{' after 'try'")
	c.block()
	c.endScope()
	c.emit(OP_TRY_END)
	endJump := c.emitJump(OP_JUMP)

	c.patchJump(tryJump)
	if c.match(token.CATCH) {
		c.beginScope()
		bound := ""
		if c.match(token.LPAREN) {
			c.consume(token.IDENT, "expected exception variable name")
			bound = c.prev.Lexeme
			c.consume(token.RPAREN, "expected ')' after catch variable")
		}
		if bound != "" {
			c.addLocal(bound)
			c.markInitialized()
		} else {
			c.emit(OP_POP)
		}
		c.consume(token.LBRACE, "expected '{' after 'catch'")
		c.block()
		c.endScope()
	} else {
		c.error("expected 'catch' after 'try' block")
	}
	c.patchJump(endJump)

	if c.match(token.FINALLY) {
		c.consume(token.LBRACE, "expected '{' after 'finally'")
		c.beginScope()
		c.block()
		c.endScope()
	}
}

func (c *Compiler) throwStatement() {
	c.expression()
	c.consume(token.SEMICOLON, "expected ';' after thrown value")
	c.emit(OP_THROW)
}

func joinPath(segments []string) (dotted, file string) {
	dotted = strings.Join(segments, ".")
	file = strings.Join(segments, "/") + ".fox"
	return
}

func (c *Compiler) parseModulePath() []string {
	var segments []string
	c.consume(token.IDENT, "expected module path")
	segments = append(segments, c.prev.Lexeme)
	for c.match(token.DOT) {
		c.consume(token.IDENT, "expected identifier after '.' in module path")
		segments = append(segments, c.prev.Lexeme)
	}
	return segments
}

// importStatement compiles `import a.b.c [as name];`, binding the resulting
// module instance to name (or the leaf segment).
func (c *Compiler) importStatement() {
	segments := c.parseModulePath()
	bindName := segments[len(segments)-1]
	if c.match(token.AS) {
		c.consume(token.IDENT, "expected identifier after 'as'")
		bindName = c.prev.Lexeme
	}
	dotted, file := joinPath(segments)
	pathConst := c.identifierConstant(dotted)
	fileConst := c.identifierConstant(file)

	c.emit(OP_IMPORT)
	c.emitByte(pathConst)
	c.emitByte(fileConst)
	c.consume(token.SEMICOLON, "expected ';' after import")

	global := c.declareVarName(bindName)
	c.defineVariable(global)
}

// fromImportStatement compiles `from a.b import x, y, z;` (pulling listed
// names off the imported module instance) and `from a.b import *;` (only
// legal at global scope, merging every export directly into globals).
func (c *Compiler) fromImportStatement() {
	segments := c.parseModulePath()
	c.consume(token.IMPORT, "expected 'import' after module path")
	dotted, file := joinPath(segments)
	pathConst := c.identifierConstant(dotted)
	fileConst := c.identifierConstant(file)

	if c.match(token.STAR) {
		if c.f.scopeDepth > 0 {
			c.error("'import *' is only legal at global scope")
		}
		c.emit(OP_IMPORT_STAR)
		c.emitByte(pathConst)
		c.emitByte(fileConst)
		c.consume(token.SEMICOLON, "expected ';' after import")
		return
	}

	c.emit(OP_IMPORT)
	c.emitByte(pathConst)
	c.emitByte(fileConst)
	hidden := c.vm.internString(fmt.Sprintf("@import$%d", c.destructureCounter))
	c.destructureCounter++
	hiddenConst := c.makeConstant(FromObject(hidden))
	c.emitOpByte(OP_DEFINE_GLOBAL, hiddenConst)

	for {
		c.consume(token.IDENT, "expected imported name")
		name := c.prev.Lexeme
		c.emitOpByte(OP_GET_GLOBAL, hiddenConst)
		prop := c.identifierConstant(name)
		c.emitOpByte(OP_GET_PROPERTY, prop)
		global := c.declareVarName(name)
		c.defineVariable(global)
		if !c.match(token.COMMA) {
			break
		}
	}
	c.consume(token.SEMICOLON, "expected ';' after import")
}

// exportStatement compiles `export value as name;` (spec.md §6 "module
// protocol"): value is any expression, not necessarily a bare variable.
func (c *Compiler) exportStatement() {
	if c.f.scopeDepth > 0 {
		c.error("'export' is only legal at global scope")
	}
	c.expression()
	c.consume(token.AS, "expected 'as' after exported value")
	c.consume(token.IDENT, "expected name after 'as'")
	name := c.prev.Lexeme
	c.consume(token.SEMICOLON, "expected ';' after export")
	nameConst := c.identifierConstant(name)
	c.emitOpByte(OP_EXPORT, nameConst)
	c.emit(OP_POP)
}

func (c *Compiler) breakStatement() {
	c.consume(token.SEMICOLON, "expected ';' after 'break'")
	if len(c.loops) == 0 {
		c.error("'break' outside a loop")
		return
	}
	lc := c.loops[len(c.loops)-1]
	jmp := c.emitJump(OP_JUMP)
	lc.breakJumps = append(lc.breakJumps, jmp)
}

func (c *Compiler) continueStatement() {
	c.consume(token.SEMICOLON, "expected ';' after 'continue'")
	if len(c.loops) == 0 {
		c.error("'continue' outside a loop")
		return
	}
	lc := c.loops[len(c.loops)-1]
	c.emitLoop(lc.continueTarget)
}

func (c *Compiler) returnStatement() {
	if c.f.fnType == typeScript {
		c.error("cannot return from top-level script code")
	}
	if c.match(token.SEMICOLON) {
		if c.f.fnType == typeInitializer {
			c.emitOpByte(OP_GET_LOCAL, 0)
		} else {
			c.emit(OP_NULL)
		}
		c.emit(OP_RETURN)
		return
	}
	if c.f.fnType == typeInitializer {
		c.error("cannot return a value from an initializer")
	}
	c.expression()
	c.consume(token.SEMICOLON, "expected ';' after return value")
	c.emit(OP_RETURN)
}
