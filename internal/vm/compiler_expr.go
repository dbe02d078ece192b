package vm

import (
	"strconv"

	"github.com/foxlang/fox/internal/token"
)

// compoundOps maps a compound-assignment token to the binary opcode that
// combines the current value with the right-hand side before storing.
var compoundOps = map[token.Kind]Opcode{
	token.PLUS_EQUAL:    OP_ADD,
	token.MINUS_EQUAL:   OP_SUB,
	token.STAR_EQUAL:    OP_MUL,
	token.SLASH_EQUAL:   OP_DIV,
	token.PERCENT_EQUAL: OP_MOD,
	token.SHL_EQUAL:     OP_LSH,
	token.SHR_EQUAL:     OP_ASH,
	token.USHR_EQUAL:    OP_RSH,
	token.AMP_EQUAL:     OP_BITWISE_AND,
	token.PIPE_EQUAL:    OP_BITWISE_OR,
	token.CARET_EQUAL:   OP_XOR,
}

func kindForOp(op Opcode) int {
	switch op {
	case OP_SET_LOCAL:
		return lvalueLocal
	case OP_SET_UPVALUE:
		return lvalueUpvalue
	case OP_SET_GLOBAL:
		return lvalueGlobal
	}
	return lvalueNone
}

func (c *Compiler) resolveVariable(name string) (getOp, setOp Opcode, arg int) {
	if local := resolveLocal(c.f, name); local != -1 {
		return OP_GET_LOCAL, OP_SET_LOCAL, local
	}
	if up := resolveUpvalue(c.f, name); up != -1 {
		return OP_GET_UPVALUE, OP_SET_UPVALUE, up
	}
	return OP_GET_GLOBAL, OP_SET_GLOBAL, int(c.identifierConstant(name))
}

func (c *Compiler) namedVariable(name string, canAssign bool) {
	getOp, setOp, arg := c.resolveVariable(name)
	c.f.lvalueKind = kindForOp(setOp)
	c.f.lvalueArg = arg

	if canAssign {
		if op, ok := compoundOps[c.cur.Kind]; ok {
			c.advance()
			c.emitOpByte(getOp, byte(arg))
			c.expression()
			c.emit(op)
			c.emitOpByte(setOp, byte(arg))
			return
		}
		if c.match(token.EQUAL) {
			c.expression()
			c.emitOpByte(setOp, byte(arg))
			return
		}
	}
	c.emitOpByte(getOp, byte(arg))
}

func (c *Compiler) namedVariableGet(name string) {
	getOp, _, arg := c.resolveVariable(name)
	c.emitOpByte(getOp, byte(arg))
}

func (c *Compiler) emitLvalueStore() {
	switch c.f.lvalueKind {
	case lvalueLocal:
		c.emitOpByte(OP_SET_LOCAL, byte(c.f.lvalueArg))
	case lvalueUpvalue:
		c.emitOpByte(OP_SET_UPVALUE, byte(c.f.lvalueArg))
	case lvalueGlobal:
		c.emitOpByte(OP_SET_GLOBAL, byte(c.f.lvalueArg))
	default:
		c.error("invalid increment/decrement target")
	}
}

// ---- prefix/infix parslets --------------------------------------------------

func (c *Compiler) variable(canAssign bool) { c.namedVariable(c.prev.Lexeme, canAssign) }

func (c *Compiler) number(canAssign bool) {
	f, err := strconv.ParseFloat(c.prev.Lexeme, 64)
	if err != nil {
		c.error("invalid number literal")
		return
	}
	c.emitConstant(Number(f))
}

func (c *Compiler) stringLit(canAssign bool) {
	c.emitConstant(FromObject(c.vm.internString(c.prev.Lexeme)))
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Kind {
	case token.TRUE:
		c.emit(OP_TRUE)
	case token.FALSE:
		c.emit(OP_FALSE)
	case token.NULL:
		c.emit(OP_NULL)
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(token.RPAREN, "expected ')' after expression")
}

func (c *Compiler) unary(canAssign bool) {
	opType := c.prev.Kind
	c.parsePrecedence(precUnary)
	switch opType {
	case token.MINUS:
		c.emit(OP_NEGATE)
	case token.BANG:
		c.emit(OP_NOT)
	case token.TILDE:
		c.emit(OP_BITWISE_NOT)
	case token.TYPEOF:
		c.emit(OP_TYPEOF)
	}
}

func (c *Compiler) binary(canAssign bool) {
	opType := c.prev.Kind
	r := rule(opType)
	c.parsePrecedence(r.prec + 1)
	switch opType {
	case token.PLUS:
		c.emit(OP_ADD)
	case token.MINUS:
		c.emit(OP_SUB)
	case token.STAR:
		c.emit(OP_MUL)
	case token.SLASH:
		c.emit(OP_DIV)
	case token.PERCENT:
		c.emit(OP_MOD)
	case token.AMP:
		c.emit(OP_BITWISE_AND)
	case token.PIPE:
		c.emit(OP_BITWISE_OR)
	case token.CARET:
		c.emit(OP_XOR)
	case token.SHL:
		c.emit(OP_LSH)
	case token.SHR:
		// '>>' is the arithmetic (sign-preserving) shift.
		c.emit(OP_ASH)
	case token.USHR:
		// '>>>' is the logical (zero-fill) shift.
		c.emit(OP_RSH)
	case token.BANG_EQUAL:
		c.emit(OP_EQUAL)
		c.emit(OP_NOT)
	case token.EQUAL_EQUAL:
		c.emit(OP_EQUAL)
	case token.GREATER:
		c.emit(OP_GREATER)
	case token.GREATER_EQUAL:
		c.emit(OP_GREATER_EQ)
	case token.LESS:
		c.emit(OP_LESS)
	case token.LESS_EQUAL:
		c.emit(OP_LESS_EQ)
	case token.IS:
		c.emit(OP_IS)
	case token.IN:
		c.emit(OP_IN)
	case token.IMPLEMENTS:
		c.emit(OP_IMPLEMENTS)
	}
}

func (c *Compiler) rangeExpr(canAssign bool) {
	c.parsePrecedence(precRange + 1)
	c.emit(OP_RANGE)
}

func (c *Compiler) and_(canAssign bool) {
	endJump := c.emitJump(OP_JUMP_IF_FALSE_S)
	c.emit(OP_POP)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(canAssign bool) {
	elseJump := c.emitJump(OP_JUMP_IF_FALSE_S)
	endJump := c.emitJump(OP_JUMP)
	c.patchJump(elseJump)
	c.emit(OP_POP)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) ternary(canAssign bool) {
	elseJump := c.emitJump(OP_JUMP_IF_FALSE)
	c.parsePrecedence(precTernary)
	endJump := c.emitJump(OP_JUMP)
	c.patchJump(elseJump)
	c.consume(token.COLON, "expected ':' in ternary expression")
	c.parsePrecedence(precTernary)
	c.patchJump(endJump)
}

func (c *Compiler) pipe(canAssign bool) {
	c.parsePrecedence(precPipe + 1)
	c.emit(OP_SWAP)
	c.emitOpByte(OP_CALL, 1)
}

func (c *Compiler) prefixIncDec(canAssign bool) {
	opTok := c.prev.Kind
	c.parsePrecedence(precUnary)
	if opTok == token.PLUS_PLUS {
		c.emit(OP_INCREMENT)
	} else {
		c.emit(OP_DECREMENT)
	}
	c.emitLvalueStore()
}

func (c *Compiler) postfixIncDec(canAssign bool) {
	opTok := c.prev.Kind
	c.emit(OP_DUP)
	if opTok == token.PLUS_PLUS {
		c.emit(OP_INCREMENT)
	} else {
		c.emit(OP_DECREMENT)
	}
	c.emitLvalueStore()
	c.emit(OP_POP)
}

func (c *Compiler) argumentList() int {
	count := 0
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			count++
			if count > 255 {
				c.error("too many arguments (255)")
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "expected ')' after arguments")
	return count
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(OP_CALL, byte(argc))
}

func (c *Compiler) listLiteral(canAssign bool) {
	count := 0
	if !c.check(token.RBRACKET) {
		for {
			if c.check(token.RBRACKET) {
				break
			}
			c.expression()
			count++
			if count > 255 {
				c.error("too many list elements (255)")
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RBRACKET, "expected ']' after list elements")
	c.emitOpByte(OP_LIST, byte(count))
}

// index compiles the infix `[` of `target[expr]`, including '=' and
// compound-assignment forms.
func (c *Compiler) index(canAssign bool) {
	c.expression()
	c.consume(token.RBRACKET, "expected ']' after index")
	c.f.lvalueKind = lvalueIndex
	c.f.lvalueArg = -1

	if canAssign {
		if op, ok := compoundOps[c.cur.Kind]; ok {
			c.advance()
			c.emitOpByte(OP_DUP_OFFSET, 1) // dup object
			c.emitOpByte(OP_DUP_OFFSET, 1) // dup index
			c.emit(OP_GET_INDEX)
			c.expression()
			c.emit(op)
			c.emit(OP_SET_INDEX)
			return
		}
		if c.match(token.EQUAL) {
			c.expression()
			c.emit(OP_SET_INDEX)
			return
		}
	}
	c.emit(OP_GET_INDEX)
}

// dot compiles `.name`, `.name(...)`, `.name = v` and `.name op= v`.
func (c *Compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "expected property name after '.'")
	name := c.identifierConstant(c.prev.Lexeme)
	c.f.lvalueKind = lvalueProperty
	c.f.lvalueArg = -1

	if canAssign {
		if op, ok := compoundOps[c.cur.Kind]; ok {
			c.advance()
			c.emit(OP_DUP)
			c.emitOpByte(OP_GET_PROPERTY, name)
			c.expression()
			c.emit(op)
			c.emitOpByte(OP_SET_PROPERTY, name)
			return
		}
		if c.match(token.EQUAL) {
			c.expression()
			c.emitOpByte(OP_SET_PROPERTY, name)
			return
		}
	}
	if c.match(token.LPAREN) {
		argc := c.argumentList()
		c.emit(OP_INVOKE)
		c.emitByte(name)
		c.emitByte(byte(argc))
		return
	}
	c.emitOpByte(OP_GET_PROPERTY, name)
}

func (c *Compiler) this_(canAssign bool) {
	if c.class == nil {
		c.error("'this' used outside a class method")
		return
	}
	c.namedVariable("this", false)
}

func (c *Compiler) super_(canAssign bool) {
	if c.class == nil {
		c.error("'super' used outside a class")
	} else if !c.class.hasSuperclass {
		c.error("'super' used in a class with no superclass")
	}
	c.consume(token.DOT, "expected '.' after 'super'")
	c.consume(token.IDENT, "expected superclass method name")
	name := c.identifierConstant(c.prev.Lexeme)

	c.namedVariableGet("this")
	if c.match(token.LPAREN) {
		argc := c.argumentList()
		c.namedVariableGet("super")
		c.emit(OP_SUPER_INVOKE)
		c.emitByte(name)
		c.emitByte(byte(argc))
		return
	}
	c.namedVariableGet("super")
	c.emitOpByte(OP_GET_SUPER, name)
}

// lambda compiles the `|param, ...| body` form (PIPE prefix position).
func (c *Compiler) lambda(canAssign bool) {
	var params []string
	if !c.check(token.PIPE) {
		for {
			c.consume(token.IDENT, "expected parameter name")
			params = append(params, c.prev.Lexeme)
			if len(params) > maxParams {
				c.error("too many parameters (256)")
			}
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.PIPE, "expected '|' to close lambda parameter list")
	c.compileLambdaBody(params)
}

// lambdaOr compiles the zero-parameter `||body` form (OR_OR prefix position).
func (c *Compiler) lambdaOr(canAssign bool) {
	c.compileLambdaBody(nil)
}

func (c *Compiler) compileLambdaBody(params []string) {
	enclosing := c.f
	fn := c.vm.newFunction()
	fn.IsLambda = true
	fn.Arity = len(params)

	nf := &frame{enclosing: enclosing, fn: fn, fnType: typeLambda}
	nf.locals = append(nf.locals, localVar{name: "", depth: 0})
	c.f = nf
	c.vm.compilerRoots = append(c.vm.compilerRoots, fn)
	c.beginScope()
	for _, p := range params {
		c.declareVariable(p)
		c.markInitialized()
	}

	if c.match(token.LBRACE) {
		c.block()
		c.emit(OP_NULL)
		c.emit(OP_RETURN)
	} else {
		c.expression()
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
