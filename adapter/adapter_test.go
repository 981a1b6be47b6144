package adapter

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/rjs/exchange"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
	"github.com/chazu/rjs/wire"
)

func startContext(t *testing.T) (*Context, *exchange.Exchange) {
	t.Helper()
	x := exchange.New(exchange.Policy{
		IdlePoll:      5 * time.Millisecond,
		CancelTimeout: 50 * time.Millisecond,
		DrainTimeout:  100 * time.Millisecond,
	})
	c := New(x, Options{})
	if err := c.Start("answer <- 42"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(c.Close)
	if err := x.Connect(1); err != nil {
		t.Fatal(err)
	}
	return c, x
}

func submit(t *testing.T, x *exchange.Exchange, d *item.Data) *item.Data {
	t.Helper()
	resp := x.Submit(1, []item.Item{d})
	if resp.Status != nil || len(resp.Items) != 1 {
		t.Fatalf("%s %q: got %+v, want one answered item", d.Kind(), d.Text(), resp)
	}
	got := resp.Items[0].(*item.Data)
	if !got.IsTerminal() {
		t.Fatalf("%s %q: not answered", d.Kind(), d.Text())
	}
	return got
}

func evalValue(t *testing.T, x *exchange.Exchange, expr string, depth int) rdata.Object {
	t.Helper()
	d := submit(t, x, item.NewEvalData(1, expr, depth, ""))
	if st := d.Status(); !st.IsOK() {
		t.Fatalf("%q: %s", expr, st)
	}
	return d.Value()
}

func evalVoid(t *testing.T, x *exchange.Exchange, expr string) {
	t.Helper()
	d := submit(t, x, item.NewEvalVoid(1, expr))
	if st := d.Status(); !st.IsOK() {
		t.Fatalf("%q: %s", expr, st)
	}
}

func numeric(vs ...float64) *rdata.Vector { return rdata.NewVector(rdata.NewNumericStore(vs...)) }

func character(vs ...string) *rdata.Vector { return rdata.NewVector(rdata.NewCharacterStore(vs...)) }

func TestEvalData(t *testing.T) {
	_, x := startContext(t)
	named := rdata.NewVector(rdata.NewIntegerStore(1, wire.NAInt32))
	named.Names = rdata.NewCharacterStore("a", "b")

	tests := []struct {
		expr string
		want rdata.Object
	}{
		{"1+1", numeric(2)},
		{"answer", numeric(42)},
		{"c(a = 1L, b = NA)", named},
		{"NULL", rdata.Null},
		{"list(1, 'x')", rdata.NewList(numeric(1), character("x"))},
	}
	for _, tt := range tests {
		got := evalValue(t, x, tt.expr, item.DepthUnlimited)
		if !rdata.Equal(got, tt.want) {
			t.Errorf("%q = %#v, want %#v", tt.expr, got, tt.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	_, x := startContext(t)
	tests := []struct {
		name    string
		data    *item.Data
		code    int32
		message string
	}{
		{"stop", item.NewEvalVoid(1, "stop('boom')"), item.CodeEvalVoidFailed, "boom"},
		{"stop with data", item.NewEvalData(1, "stop('boom')", -1, ""), item.CodeEvalDataFailed, "boom"},
		{"syntax", item.NewEvalData(1, "1 +)", -1, ""), item.CodeInvalidExpression, "syntax error"},
		{"two expressions", item.NewEvalVoid(1, "1\n2"), item.CodeInvalidExpression, "single expression"},
		{"unknown function", item.NewEvalData(1, "noSuchFunction", -1, "").WithArgs(rdata.NewList()),
			item.CodeEvalFunctionFailed, "noSuchFunction"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := submit(t, x, tt.data).Status()
			if st == nil || st.Severity != item.SeverityError || st.Code != tt.code {
				t.Fatalf("status = %s, want error %#x", st, tt.code)
			}
			if !strings.Contains(st.Message, tt.message) {
				t.Errorf("message %q does not mention %q", st.Message, tt.message)
			}
		})
	}
	// the engine keeps serving after failures
	if got := evalValue(t, x, "1+1", -1); !rdata.Equal(got, numeric(2)) {
		t.Errorf("after errors: got %#v", got)
	}
}

func TestFunctionCall(t *testing.T) {
	_, x := startContext(t)
	args := rdata.NewNamedList([]string{"", "", "sep"}, []rdata.Object{character("a"), character("b"), character("-")})
	d := submit(t, x, item.NewEvalData(1, "paste", -1, "").WithArgs(args))
	if !rdata.Equal(d.Value(), character("a-b")) {
		t.Errorf("paste = %#v, want a-b", d.Value())
	}
	d = submit(t, x, item.NewEvalData(1, "base::paste", -1, "").WithArgs(args))
	if !rdata.Equal(d.Value(), character("a-b")) {
		t.Errorf("base::paste = %#v (%s), want a-b", d.Value(), d.Status())
	}
}

func TestDepthLimit(t *testing.T) {
	_, x := startContext(t)
	expr := "list(a = 1, b = list(c = 2))"

	shallow := evalValue(t, x, expr, 1).(*rdata.List)
	var types []rdata.Type
	for _, it := range shallow.Items {
		ref, ok := it.(*rdata.Reference)
		if !ok || ref.Handle == 0 {
			t.Fatalf("depth 1 item = %#v, want a reference", it)
		}
		types = append(types, ref.DeclaredType)
	}
	if diff := cmp.Diff([]rdata.Type{rdata.TypeVector, rdata.TypeList}, types); diff != "" {
		t.Errorf("depth 1 reference types (-want +got):\n%s", diff)
	}

	deeper := evalValue(t, x, expr, 2).(*rdata.List)
	if !rdata.Equal(deeper.Items[0], numeric(1)) {
		t.Errorf("depth 2 a = %#v", deeper.Items[0])
	}
	inner := deeper.Items[1].(*rdata.List)
	if ref, ok := inner.Items[0].(*rdata.Reference); !ok || ref.DeclaredType != rdata.TypeVector || inner.Name(0) != "c" {
		t.Errorf("depth 2 b = %#v, want c as a reference", inner)
	}

	full := evalValue(t, x, expr, item.DepthUnlimited).(*rdata.List)
	if !rdata.Equal(full.Items[1].(*rdata.List).Items[0], numeric(2)) {
		t.Errorf("unlimited b$c = %#v", full.Items[1])
	}
}

func TestStructOnly(t *testing.T) {
	_, x := startContext(t)
	d := submit(t, x, item.NewEvalData(1, "1:5", -1, "").WithFlags(item.DataStructOnly))
	v, ok := d.Value().(*rdata.Vector)
	if !ok || !v.Data.StructOnly() || v.Length() != 5 || v.Data.StoreType() != rdata.IntegerType {
		t.Errorf("got %#v, want struct-only integer vector of length 5", d.Value())
	}
}

func TestReferences(t *testing.T) {
	c, x := startContext(t)
	ref, ok := evalValue(t, x, "list(1, 2)", item.DepthReference).(*rdata.Reference)
	if !ok {
		t.Fatal("depth 0 did not return a reference")
	}
	if ref.DeclaredType != rdata.TypeList || ref.ClassName() != "list" {
		t.Errorf("reference declares %s %q", ref.DeclaredType, ref.ClassName())
	}

	d := submit(t, x, item.NewResolve(1, ref, -1))
	if want := rdata.NewList(numeric(1), numeric(2)); !rdata.Equal(d.Value(), want) {
		t.Errorf("resolved %#v", d.Value())
	}

	if d := submit(t, x, item.NewAssign(1, "copy", ref)); !d.Status().IsOK() {
		t.Fatalf("assign reference: %s", d.Status())
	}
	if got := evalValue(t, x, "copy[[2]]", -1); !rdata.Equal(got, numeric(2)) {
		t.Errorf("copy[[2]] = %#v", got)
	}

	if n := c.ReleaseSlot(1); n == 0 {
		t.Error("no references released")
	}
	st := submit(t, x, item.NewResolve(1, ref, -1)).Status()
	if st == nil || st.Code != item.CodeInvalidReference {
		t.Errorf("stale reference: %s, want invalid reference", st)
	}
}

func TestFactorAndDataFrame(t *testing.T) {
	_, x := startContext(t)
	wantFactor := rdata.NewFactor(rdata.NewFactorStore([]int32{1, 2, 1}, []string{"a", "b"}, false))
	wantFactor.Class = "factor"
	if got := evalValue(t, x, "factor(c('a', 'b', 'a'))", -1); !rdata.Equal(got, wantFactor) {
		t.Errorf("factor = %#v", got)
	}

	df, ok := evalValue(t, x, "data.frame(x = 1:2, y = c('a', 'b'))", -1).(*rdata.DataFrame)
	if !ok {
		t.Fatal("data.frame was not built as a data frame")
	}
	if df.RowCount() != 2 || df.Length() != 2 {
		t.Errorf("data frame is %dx%d, want 2x2", df.RowCount(), df.Length())
	}
	if col, _ := df.Column("y"); !rdata.Equal(col, character("a", "b")) {
		t.Errorf("column y = %#v", col)
	}

	broken := evalValue(t, x, "structure(list(a = 1:2, b = 1:3), class = 'data.frame')", -1)
	if broken.Type() != rdata.TypeList || broken.ClassName() != "data.frame" {
		t.Errorf("ragged data frame came back as %s %q, want list", broken.Type(), broken.ClassName())
	}
}

func TestEnvironment(t *testing.T) {
	_, x := startContext(t)
	evalVoid(t, x, "e <- new.env()")
	evalVoid(t, x, "assign('v', 1, envir = e)")

	env, ok := evalValue(t, x, "e", -1).(*rdata.Environment)
	if !ok {
		t.Fatal("e is not an environment")
	}
	if diff := cmp.Diff([]string{"v"}, env.Names.Values); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if !rdata.Equal(env.Items[0], numeric(1)) {
		t.Errorf("e$v = %#v", env.Items[0])
	}

	nested := evalValue(t, x, "list(e)", -1).(*rdata.List)
	if ref, ok := nested.Items[0].(*rdata.Reference); !ok || ref.DeclaredType != rdata.TypeEnvironment {
		t.Errorf("nested environment = %#v, want reference", nested.Items[0])
	}
	d := submit(t, x, item.NewEvalData(1, "list(e)", -1, "").WithFlags(item.DataLoadEnvironments))
	if _, ok := d.Value().(*rdata.List).Items[0].(*rdata.Environment); !ok {
		t.Errorf("loaded environment = %#v", d.Value())
	}
}

func TestS4(t *testing.T) {
	_, x := startContext(t)
	evalVoid(t, x, "setClass('Person', representation(name = 'character', age = 'numeric'))")

	obj, ok := evalValue(t, x, "new('Person', name = 'Ada', age = 36)", -1).(*rdata.S4)
	if !ok {
		t.Fatal("not an S4 object")
	}
	want := &rdata.S4{
		Class:      "Person",
		SlotNames:  []string{"name", "age"},
		SlotValues: []rdata.Object{character("Ada"), numeric(36)},
	}
	if !rdata.Equal(obj, want) {
		t.Errorf("got %#v, want %#v", obj, want)
	}

	obj.SlotValues[1] = numeric(37)
	if d := submit(t, x, item.NewAssign(1, "p", obj)); !d.Status().IsOK() {
		t.Fatalf("assign S4: %s", d.Status())
	}
	if got := evalValue(t, x, "p@age", -1); !rdata.Equal(got, numeric(37)) {
		t.Errorf("p@age = %#v", got)
	}

	st := submit(t, x, item.NewAssign(1, "q", &rdata.S4{Class: "NoSuchClass"})).Status()
	if st == nil || st.Code != item.CodeNewS4Failed {
		t.Errorf("unknown class: %s, want %#x", st, item.CodeNewS4Failed)
	}
}

func TestAssign(t *testing.T) {
	_, x := startContext(t)
	df := rdata.NewDataFrame([]string{"n"}, []rdata.Object{numeric(1, 2, 3)}, nil)
	tests := []struct {
		name   string
		target string
		value  rdata.Object
		check  string
		want   rdata.Object
	}{
		{"vector", "v", numeric(1, 2, 3), "v", numeric(1, 2, 3)},
		{"element", "v[2]", numeric(9), "v", numeric(1, 9, 3)},
		{"data frame row names", "df", df, "attr(df, 'row.names')", rdata.NewVector(rdata.NewIntegerStore(1, 2, 3))},
		{"symbol", "s", &rdata.Language{Kind: rdata.LangName, Source: "xyz"}, "identical(s, quote(xyz))", rdata.NewVector(rdata.NewLogicalStore(rdata.True))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if d := submit(t, x, item.NewAssign(1, tt.target, tt.value)); !d.Status().IsOK() {
				t.Fatalf("assign: %s", d.Status())
			}
			if got := evalValue(t, x, tt.check, -1); !rdata.Equal(got, tt.want) {
				t.Errorf("%s = %#v, want %#v", tt.check, got, tt.want)
			}
		})
	}

	failures := []struct {
		name  string
		value rdata.Object
		code  int32
	}{
		{"missing value", nil, item.CodeAssignMissing},
		{"function", &rdata.Function{Header: "function (x) "}, item.CodeAssignUnsupported},
		{"struct only", rdata.NewStructVector(rdata.NumericType, 3), item.CodeAssignUnsupported},
		{"stale reference", &rdata.Reference{Handle: 1 << 40}, item.CodeInvalidReference},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			st := submit(t, x, item.NewAssign(1, "z", tt.value)).Status()
			if st == nil || st.Code != tt.code {
				t.Errorf("status %s, want %#x", st, tt.code)
			}
		})
	}
}

func TestFunctionHeader(t *testing.T) {
	_, x := startContext(t)
	got, ok := evalValue(t, x, "function(x, y = 2) x + y", -1).(*rdata.Function)
	if !ok || got.Header != "function (x, y = 2) " {
		t.Errorf("got %#v", got)
	}
}
