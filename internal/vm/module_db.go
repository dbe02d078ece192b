package vm

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/foxlang/fox/internal/foxerr"
)

// dbModuleName is the virtual module path recognized by execImport before it
// ever consults internal/foxio's file resolution (SPEC_FULL.md §3): `import
// db;` never touches the filesystem the way a user module would.
const dbModuleName = "db"

// dbHandles maps a Database instance to its open *sql.DB. Instance has no
// generic Go-side payload slot (spec.md §3's Instance is Class+Fields only),
// so the native methods below keep the handle out-of-band the way the
// teacher keeps terminal buffering state in package-level vars rather than
// threading it through Funxy-visible objects (internal/evaluator/builtins_term.go).
var (
	dbHandlesMu sync.Mutex
	dbHandles   = map[*Instance]*sql.DB{}
)

// newDBModule builds the `db` virtual module's exports: a single Database
// class with open/exec/query/close (SPEC_FULL.md §3).
func (v *VM) newDBModule() *Instance {
	class := v.newClass(v.internString("Database"))
	v.defineMethod(class, "open", 1, false, dbOpen)
	v.defineMethod(class, "exec", 1, true, dbExec)
	v.defineMethod(class, "query", 1, true, dbQuery)
	v.defineMethod(class, "close", 0, false, dbClose)

	mod := v.newInstance(v.objectClass)
	mod.Fields.Set(v.internString("Database"), FromObject(class))
	return mod
}

func dbTypeError(vm *VM, msg string) *Value {
	errv := FromObject(vm.newExceptionInstance(foxerr.Type, msg))
	return &errv
}

func dbIOError(vm *VM, err error) *Value {
	errv := FromObject(vm.newExceptionInstance(foxerr.IO, err.Error()))
	return &errv
}

func dbOpen(vm *VM, recv *Value, args []Value) (Value, *Value) {
	if !args[0].Is(OKString) {
		return Null(), dbTypeError(vm, "open() requires a path string")
	}
	handle, err := sql.Open("sqlite", args[0].AsString().Chars)
	if err != nil {
		return Null(), dbIOError(vm, err)
	}
	if err := handle.Ping(); err != nil {
		handle.Close()
		return Null(), dbIOError(vm, err)
	}
	dbHandlesMu.Lock()
	dbHandles[recv.AsInstance()] = handle
	dbHandlesMu.Unlock()
	return *recv, nil
}

func dbLookup(vm *VM, recv *Value) (*sql.DB, *Value) {
	dbHandlesMu.Lock()
	handle, ok := dbHandles[recv.AsInstance()]
	dbHandlesMu.Unlock()
	if !ok {
		errv := FromObject(vm.newExceptionInstance(foxerr.IO, "database is not open"))
		return nil, &errv
	}
	return handle, nil
}

func dbParams(args []Value) []interface{} {
	params := make([]interface{}, len(args)-1)
	for i, a := range args[1:] {
		switch {
		case a.IsNumber():
			params[i] = a.AsNumber()
		case a.IsBool():
			params[i] = a.AsBool()
		case a.IsNull():
			params[i] = nil
		case a.Is(OKString):
			params[i] = a.AsString().Chars
		default:
			params[i] = a.Inspect()
		}
	}
	return params
}

func dbExec(vm *VM, recv *Value, args []Value) (Value, *Value) {
	handle, errv := dbLookup(vm, recv)
	if errv != nil {
		return Null(), errv
	}
	if !args[0].Is(OKString) {
		return Null(), dbTypeError(vm, "exec() requires a SQL string")
	}
	result, err := handle.Exec(args[0].AsString().Chars, dbParams(args)...)
	if err != nil {
		return Null(), dbIOError(vm, err)
	}
	affected, _ := result.RowsAffected()
	return Number(float64(affected)), nil
}

func dbQuery(vm *VM, recv *Value, args []Value) (Value, *Value) {
	handle, errv := dbLookup(vm, recv)
	if errv != nil {
		return Null(), errv
	}
	if !args[0].Is(OKString) {
		return Null(), dbTypeError(vm, "query() requires a SQL string")
	}
	rows, err := handle.Query(args[0].AsString().Chars, dbParams(args)...)
	if err != nil {
		return Null(), dbIOError(vm, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Null(), dbIOError(vm, err)
	}

	var out []Value
	for rows.Next() {
		raw := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Null(), dbIOError(vm, err)
		}
		inst := vm.newInstance(vm.objectClass)
		for i, col := range cols {
			inst.Fields.Set(vm.internString(col), dbScanToValue(vm, raw[i]))
		}
		out = append(out, FromObject(inst))
	}
	if err := rows.Err(); err != nil {
		return Null(), dbIOError(vm, err)
	}
	return FromObject(vm.newList(out)), nil
}

func dbScanToValue(vm *VM, raw interface{}) Value {
	switch val := raw.(type) {
	case nil:
		return Null()
	case int64:
		return Number(float64(val))
	case float64:
		return Number(val)
	case []byte:
		return FromObject(vm.internString(string(val)))
	case string:
		return FromObject(vm.internString(val))
	case bool:
		return Bool(val)
	default:
		return FromObject(vm.internString(fmt.Sprintf("%v", val)))
	}
}

func dbClose(vm *VM, recv *Value, args []Value) (Value, *Value) {
	handle, errv := dbLookup(vm, recv)
	if errv != nil {
		return Null(), errv
	}
	dbHandlesMu.Lock()
	delete(dbHandles, recv.AsInstance())
	dbHandlesMu.Unlock()
	if err := handle.Close(); err != nil {
		return Null(), dbIOError(vm, err)
	}
	return Null(), nil
}
