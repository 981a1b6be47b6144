package engine

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// hostStub is a Callbacks implementation for tests. Input lines are consumed
// in order; console output is recorded.
type hostStub struct {
	lines   []string
	prompts []string
	out     strings.Builder
	err     strings.Builder
	busy    []bool
	events  int
	onEvent func()
}

func (h *hostStub) ReadConsole(prompt string, addToHistory bool) (string, bool) {
	h.prompts = append(h.prompts, prompt)
	if len(h.lines) == 0 {
		return "", false
	}
	line := h.lines[0]
	h.lines = h.lines[1:]
	return line, true
}

func (h *hostStub) WriteConsole(text string, isError bool) {
	if isError {
		h.err.WriteString(text)
		return
	}
	h.out.WriteString(text)
}

func (h *hostStub) ShowMessage(text string)        { h.out.WriteString(text) }
func (h *hostStub) Busy(busy bool)                 { h.busy = append(h.busy, busy) }
func (h *hostStub) FlushConsole()                  {}
func (h *hostStub) ChooseFile(newFile bool) string { return "" }
func (h *hostStub) LoadHistory(path string) error  { return nil }
func (h *hostStub) SaveHistory(path string) error  { return nil }

func (h *hostStub) ExecCommand(id string, args *Value, wait bool) (*Value, error) {
	return Null, nil
}

func (h *hostStub) ProcessEvents() {
	h.events++
	if h.onEvent != nil {
		h.onEvent()
	}
}

func (h *hostStub) Graphics(call GraphicsCall) (*Value, error) { return Null, nil }

func number(t *testing.T, v *Value) float64 {
	t.Helper()
	switch {
	case v.Kind == RealKind && len(v.Real) == 1:
		return v.Real[0]
	case v.Kind == IntKind && len(v.Int) == 1:
		return float64(v.Int[0])
	}
	t.Fatalf("not a numeric scalar: %s", Deparse(v))
	return 0
}

func TestEvalString(t *testing.T) {
	in := New(&hostStub{})
	for _, tc := range []struct {
		src  string
		want float64
	}{
		{"1 + 2", 3},
		{"x <- c(1, 2, 3)\nsum(x)", 6},
		{"f <- function(a, b = 10) a * b\nf(4)", 40},
		{"length(list(1, 'a', NULL))", 3},
		{"if (2 > 1) 7 else 8", 7},
	} {
		v, err := in.EvalString(tc.src, in.Global())
		if err != nil {
			t.Errorf("%s: %v", tc.src, err)
			continue
		}
		if got := number(t, v); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.src, got, tc.want)
		}
	}

	v, err := in.EvalString("paste('a', 'b')", in.Global())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a b"}, v.Str); diff != "" {
		t.Errorf("paste (-want +got):\n%s", diff)
	}
}

func TestEvalError(t *testing.T) {
	in := New(&hostStub{})
	_, err := in.EvalString("stop('boom')", in.Global())
	var c *Condition
	if !errors.As(err, &c) {
		t.Fatalf("got %v, want a condition", err)
	}
	if c.Message != "boom" || !c.HasClass("error") {
		t.Errorf("condition = %q %v", c.Message, c.Classes)
	}
	if _, err := in.EvalString("undefinedVariable", in.Global()); err == nil {
		t.Error("lookup of an unbound symbol succeeded")
	}
}

func TestParseIncomplete(t *testing.T) {
	for _, tc := range []struct {
		src        string
		incomplete bool
	}{
		{"1 +", true},
		{"f <- function(x) {", true},
		{"c(1, 2", true},
		{"1 + )", false},
	} {
		_, err := Parse(tc.src)
		if err == nil {
			t.Errorf("%q parsed", tc.src)
			continue
		}
		if got := IsIncomplete(err); got != tc.incomplete {
			t.Errorf("IsIncomplete(%q) = %v, want %v", tc.src, got, tc.incomplete)
		}
	}
}

func TestDeparse(t *testing.T) {
	for _, src := range []string{"x + 1", "f(x, y = 2)", "a <- b"} {
		v, err := ParseOne(src)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if got := Deparse(v); got != src {
			t.Errorf("Deparse(%q) = %q", src, got)
		}
	}
}

func TestRun(t *testing.T) {
	h := &hostStub{lines: []string{
		"x <- 1 +",
		"2",
		"x",
		"stop('boom')",
		"quit()",
		"never read",
	}}
	in := New(h)
	if err := in.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := h.out.String(), "[1] 3\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if !strings.Contains(h.err.String(), "boom") {
		t.Errorf("stderr = %q, want boom", h.err.String())
	}
	if diff := cmp.Diff([]string{"> ", "+ ", "> ", "> ", "> "}, h.prompts); diff != "" {
		t.Errorf("prompts (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, false, true, false, true, false, true, false}, h.busy); diff != "" {
		t.Errorf("busy (-want +got):\n%s", diff)
	}
	if len(h.lines) != 1 {
		t.Errorf("Run read past quit(): %v left", h.lines)
	}
}

func TestRunEndOfInput(t *testing.T) {
	h := &hostStub{lines: []string{"1"}}
	if err := New(h).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := h.out.String(); got != "[1] 1\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestInterrupt(t *testing.T) {
	h := &hostStub{}
	in := New(h)

	in.Interrupt()
	if _, err := in.EvalString("x <- 1", in.Global()); !errors.Is(err, ErrInterrupted) {
		t.Fatalf("pending interrupt: got %v", err)
	}
	if _, err := in.EvalString("x <- 1", in.Global()); err != nil {
		t.Fatalf("interrupt was not consumed: %v", err)
	}

	h.onEvent = in.Interrupt
	_, err := in.EvalString("repeat { x <- x + 1 }", in.Global())
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("interrupt from ProcessEvents: got %v", err)
	}
	if h.events == 0 {
		t.Error("ProcessEvents never called")
	}
}

func TestArena(t *testing.T) {
	a := NewArena()
	v, w := Real(1), Str("a")

	h1 := a.Preserve(v, "client-1")
	if h1 == 0 {
		t.Fatal("zero handle")
	}
	if h := a.Preserve(v, "client-1"); h != h1 {
		t.Errorf("second Preserve = %d, want %d", h, h1)
	}
	h2 := a.Preserve(w, "client-2")

	a.Release(h1)
	if got, ok := a.Lookup(h1); !ok || got != v {
		t.Error("handle released before its count reached zero")
	}
	a.Release(h1)
	if _, ok := a.Lookup(h1); ok {
		t.Error("handle alive after final release")
	}

	if n := a.ReleaseOwner("client-2"); n != 1 {
		t.Errorf("ReleaseOwner = %d, want 1", n)
	}
	if _, ok := a.Lookup(h2); ok {
		t.Error("owner handle alive after ReleaseOwner")
	}
	if a.Count() != 0 {
		t.Errorf("Count = %d, want 0", a.Count())
	}
}

func TestArenaScopeAndSweep(t *testing.T) {
	a := NewArena()
	s := a.Scope()
	scoped := s.Protect(Real(1))
	owned := a.Preserve(Real(2), "client")

	time.Sleep(2 * time.Millisecond)
	if n := a.Sweep(time.Millisecond); n != 1 {
		t.Errorf("Sweep = %d, want 1", n)
	}
	if _, ok := a.Lookup(owned); ok {
		t.Error("stale owned handle survived the sweep")
	}
	if _, ok := a.Lookup(scoped); !ok {
		t.Error("sweep released a scoped handle")
	}

	s.Release()
	s.Release()
	if a.Count() != 0 {
		t.Errorf("Count after scope release = %d", a.Count())
	}
}

func TestIsNAReal(t *testing.T) {
	if !IsNAReal(NAReal()) {
		t.Error("NAReal is not NA")
	}
	if !IsNAReal(math.Float64frombits(0x7FF80000000007A2)) {
		t.Error("quiet NA is not NA")
	}
	if IsNAReal(math.NaN()) {
		t.Error("NaN reported as NA")
	}
}
