package vm

import (
	"bytes"
	"strings"
	"testing"
)

// runSource interprets src against a fresh VM and returns everything written
// to stdout plus the Interpret error, if any (spec.md §8 "end-to-end
// scenarios").
func runSource(t *testing.T, src string) (string, error) {
	t.Helper()
	v := NewVM("<test>", ".", nil)
	var out bytes.Buffer
	v.Stdout = &out
	_, err := v.Interpret(src)
	return out.String(), err
}

func TestEndToEndScenarios(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"arithmetic precedence", `print(1 + 2 * 3);`, "7\n"},
		{"destructure then add", `var a, b = [10, 20]; print(a + b);`, "30\n"},
		{"class getter", `class C { C(x) { this.x = x; } get() = this.x; } print(C(5).get());`, "5\n"},
		{"foreach over string", `foreach (var c in "ab") print(c);`, "a\nb\n"},
		{"throw string literal", `try { throw "boom"; } catch (e) { print(e.value); }`, "boom\n"},
		{"closure over captured local", `function mk(){ var x=1; return ||x; } var f=mk(); print(f());`, "1\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := runSource(t, tc.src)
			if err != nil {
				t.Fatalf("Interpret(%q) returned error: %v", tc.src, err)
			}
			if got != tc.want {
				t.Errorf("Interpret(%q) stdout = %q, want %q", tc.src, got, tc.want)
			}
		})
	}
}

func TestArityExceptionSkipsBody(t *testing.T) {
	src := `function f(a, b) { print("ran"); return a + b; } f(1);`
	out, err := runSource(t, src)
	if err == nil {
		t.Fatalf("expected an ArityException, got none")
	}
	if !strings.Contains(err.Error(), "ArityException") {
		t.Errorf("error = %q, want it to mention ArityException", err.Error())
	}
	if strings.Contains(out, "ran") {
		t.Errorf("function body executed despite arity mismatch: stdout = %q", out)
	}
}

func TestNegativeIndexBoundary(t *testing.T) {
	cases := []struct {
		name    string
		src     string
		want    string
		wantErr string
	}{
		{"last element via -1", `var l = [1,2,3]; print(l[-1]);`, "3\n", ""},
		{"first element via -length", `var l = [1,2,3]; print(l[-3]);`, "1\n", ""},
		{"one past start raises", `var l = [1,2,3]; print(l[-4]);`, "", "IndexOutOfBoundsException"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := runSource(t, tc.src)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want it to mention %s", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out != tc.want {
				t.Errorf("stdout = %q, want %q", out, tc.want)
			}
		})
	}
}

func TestInvalidIndexVsOutOfBounds(t *testing.T) {
	// A non-number index is a different exception from a valid-type,
	// out-of-range one (spec.md §7).
	out, err := runSource(t, `var l = [1,2,3]; print(l["x"]);`)
	if err == nil || !strings.Contains(err.Error(), "InvalidIndexException") {
		t.Fatalf("err = %v (stdout %q), want InvalidIndexException", err, out)
	}
}

func TestRangeLength(t *testing.T) {
	out, err := runSource(t, `print((2..7).length());`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "5\n" {
		t.Errorf("stdout = %q, want %q", out, "5\n")
	}
}

func TestStringInterning(t *testing.T) {
	out, err := runSource(t, `var a = "hi"; var b = "hi"; print(a is b);`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n" {
		t.Errorf("stdout = %q, want %q", out, "true\n")
	}
}

func TestObjectBuiltinMethods(t *testing.T) {
	out, err := runSource(t, `class P { P(n) { this.name = n; } }
var p = P("ada");
print(p.hasProp("name"));
print(p.keys().length());`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n1\n" {
		t.Errorf("stdout = %q, want %q", out, "true\n1\n")
	}
}

func TestIteratorProtocol(t *testing.T) {
	src := `var it = Iterator([1,2,3]);
while (!it.done()) print(it.next());`
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n3\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n3\n")
	}
}

func TestTooManyArgumentsIsCompileError(t *testing.T) {
	var args strings.Builder
	for i := 0; i < 256; i++ {
		if i > 0 {
			args.WriteByte(',')
		}
		args.WriteString("0")
	}
	src := `function f() {} f(` + args.String() + `);`
	_, err := runSource(t, src)
	if err == nil {
		t.Fatalf("expected a compile error for 256 arguments")
	}
}

func TestStackOverflowRaisesException(t *testing.T) {
	src := `function rec(n) { return rec(n + 1); } rec(0);`
	_, err := runSource(t, src)
	if err == nil || !strings.Contains(err.Error(), "StackOverflowException") {
		t.Fatalf("err = %v, want StackOverflowException", err)
	}
}

func TestImplementsIsOneDirectional(t *testing.T) {
	src := `class Shape { area() = 0; }
class Trait { area() = 0; perimeter() = 0; }
var s = Shape();
print(s implements Trait);`
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "false\n" {
		t.Errorf("stdout = %q, want %q (Shape is missing perimeter())", out, "false\n")
	}
}

func TestRangeIsHalfOpen(t *testing.T) {
	out, err := runSource(t, `print(2..7);`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "[2, 3, 4, 5, 6]\n" {
		t.Errorf("stdout = %q, want %q", out, "[2, 3, 4, 5, 6]\n")
	}
}

func TestRangeEmptyWhenBoundsEqual(t *testing.T) {
	out, err := runSource(t, `print((5..5).length());`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "0\n" {
		t.Errorf("stdout = %q, want %q", out, "0\n")
	}
}

func TestDestructureByName(t *testing.T) {
	src := `class P { P(a, b) { this.a = a; this.b = b; } }
var a, b <- P(1, 2);
print(a); print(b);`
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "1\n2\n" {
		t.Errorf("stdout = %q, want %q", out, "1\n2\n")
	}
}

func TestDestructurePositional(t *testing.T) {
	// Positional `=` destructuring assigns the list's elements by index.
	out, err := runSource(t, `var x, y = [10, 20]; print(x); print(y);`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "10\n20\n" {
		t.Errorf("stdout = %q, want %q", out, "10\n20\n")
	}
}

func TestSwitchExpression(t *testing.T) {
	src := `var y = 2;
var x = switch (y) { 1: "one", 2: "two", else: "other" };
print(x);`
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "two\n" {
		t.Errorf("stdout = %q, want %q", out, "two\n")
	}
}

func TestSwitchExpressionFallsBackToNullWithoutElse(t *testing.T) {
	src := `var y = 9;
var x = switch (y) { 1: "one" };
print(x);`
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "null\n" {
		t.Errorf("stdout = %q, want %q", out, "null\n")
	}
}

func TestUnsignedShiftCompoundAssign(t *testing.T) {
	out, err := runSource(t, `var x = -8; x >>>= 1; print(x > 0);`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n" {
		t.Errorf("stdout = %q, want %q (>>>= is unsigned, result must be positive)", out, "true\n")
	}
}

func TestExceptionStackTraceIsListOfFrames(t *testing.T) {
	src := `function f() { throw "boom"; }
try { f(); } catch (e) { print(e.getStackTrace().length() > 0); }`
	out, err := runSource(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "true\n" {
		t.Errorf("stdout = %q, want %q", out, "true\n")
	}
}
