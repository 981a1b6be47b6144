package rdata

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/rjs/wire"
)

func withNA(s *CharacterStore, i int) *CharacterStore {
	s.SetNA(i)
	return s
}

func sampleValues() map[string]Object {
	named := NewVector(NewNumericStore(1.5, wire.NAFloat64(), math.Inf(1)))
	named.Names = withNA(NewCharacterStore("a", "b", ""), 2)
	named.Attrs = NewNamedList([]string{"comment"}, []Object{NewVector(NewCharacterStore("hi"))})

	classed := NewVector(NewIntegerStore(3, wire.NAInt32))
	classed.Class = "myint"

	arr := NewArray(NewIntegerStore(1, 2, 3, 4, 5, 6), 2, 3)
	arr.DimNames = NewList(NewVector(NewCharacterStore("r1", "r2")), Null)

	df := NewDataFrame([]string{"x", "y"},
		[]Object{
			NewVector(NewIntegerStore(1, 2)),
			NewVector(withNA(NewCharacterStore("p", "q"), 1)),
		},
		NewIntegerStore(1, 2))

	env := NewEnvironment("0x1f", 42, []string{"v"}, []Object{NewVector(NewLogicalStore(True))})
	env.Class = "environment"

	return map[string]Object{
		"null":          Null,
		"missing":       Missing,
		"promise":       Promise,
		"logical":       NewVector(NewLogicalStore(True, False, LogicalNA)),
		"integer":       classed,
		"numeric":       named,
		"complex":       NewVector(NewComplexStore(1+2i, complex(wire.NAFloat64(), 0))),
		"character":     NewVector(withNA(NewCharacterStore("x", "y", "z"), 1)),
		"raw":           NewVector(NewRawStore(0, 0x7f, 0xff)),
		"empty":         NewVector(NewNumericStore()),
		"struct vector": NewStructVector(NumericType, 1000),
		"factor":        NewFactor(NewFactorStore([]int32{1, 2, wire.NAInt32, 1}, []string{"lo", "hi"}, true)),
		"struct factor": NewStructFactor(StructFactorStore(false, 3), 12),
		"array":         arr,
		"list":          NewNamedList([]string{"a", "b"}, []Object{Null, NewList(NewVector(NewRawStore(1)))}),
		"empty list":    NewList(),
		"struct list":   NewStructList(20000),
		"data.frame":    df,
		"environment":   env,
		"env stub":      NewEnvironmentStub("0x2a", 7, 3),
		"function":      &Function{Header: "function (x, y = 2) "},
		"reference":     &Reference{Handle: 99, DeclaredType: TypeEnvironment, DeclaredClass: "environment"},
		"s4": &S4{
			Class:      "Person",
			SlotNames:  []string{"name", DataSlotName, "age"},
			SlotValues: []Object{NewVector(NewCharacterStore("ann")), NewVector(NewNumericStore(1)), Missing},
		},
		"name":       &Language{Kind: LangName, Source: "x"},
		"call":       &Language{Kind: LangCall, Source: "f(1, b = 2)"},
		"expression": &Language{Kind: LangExpression, Source: "expression(1 + 1)"},
		"other":      &Other{Class: "externalptr"},
	}
}

func TestValueRoundTrip(t *testing.T) {
	for name, v := range sampleValues() {
		got, err := Unmarshal(Marshal(v))
		if err != nil {
			t.Errorf("%s: decode: %v", name, err)
			continue
		}
		if !Equal(v, got) {
			t.Errorf("%s: round trip mismatch:\nwant %#v\ngot  %#v", name, v, got)
		}
	}
}

func TestAbsentValueRoundTrip(t *testing.T) {
	data := Marshal(nil)
	if diff := cmp.Diff([]byte{0xFF}, data); diff != "" {
		t.Fatalf("absent encoding (-want +got):\n%s", diff)
	}
	got, err := Unmarshal(data)
	if err != nil || got != nil {
		t.Fatalf("got %v, %v; want nil, nil", got, err)
	}
}

func TestEqualDetectsNAPositions(t *testing.T) {
	a := NewVector(NewNumericStore(1, wire.NAFloat64()))
	b := NewVector(NewNumericStore(1, math.NaN()))
	if Equal(a, b) {
		t.Error("NA and NaN compared equal")
	}
	c := NewVector(withNA(NewCharacterStore("a", "b"), 0))
	d := NewVector(NewCharacterStore("", "b"))
	if Equal(c, d) {
		t.Error("NA string compared equal to empty string")
	}
}

func TestEqualComparesReferenceClass(t *testing.T) {
	a := &Reference{Handle: 3, DeclaredType: TypeList, DeclaredClass: "list"}
	b := &Reference{Handle: 3, DeclaredType: TypeList, DeclaredClass: "data.frame"}
	if Equal(a, b) {
		t.Error("references with different classes compared equal")
	}
	if !Equal(a, &Reference{Handle: 3, DeclaredType: TypeList, DeclaredClass: "list"}) {
		t.Error("identical references compared unequal")
	}
}

func TestStructEqual(t *testing.T) {
	stub := NewStructVector(IntegerType, 3)
	full := NewVector(NewIntegerStore(7, 8, 9))
	if !StructEqual(stub, full) || !StructEqual(full, stub) {
		t.Error("struct-only vector should match materialized vector of same type and length")
	}
	if Equal(stub, full) {
		t.Error("Equal must distinguish struct-only from materialized data")
	}
	if StructEqual(stub, NewVector(NewIntegerStore(1, 2))) {
		t.Error("lengths differ")
	}
	if StructEqual(stub, NewVector(NewNumericStore(1, 2, 3))) {
		t.Error("store types differ")
	}
	if !StructEqual(NewStructList(2), NewList(Null, Null)) {
		t.Error("struct-only list should match list of same length")
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{99}},
		{"unknown store", append(vectorHeader(1), 0x33)},
		{"truncated store", append(vectorHeader(2), byte(IntegerType), 0, 0, 0, 2, 0, 0)},
		{"length mismatch", append(vectorHeader(5), byte(RawType), 0, 0, 0, 1, 9)},
		{"bad language kind", []byte{byte(TypeLanguage), 0, 0, 0, 0, 9}},
	}
	for _, tc := range tests {
		_, err := Unmarshal(tc.data)
		if !wire.IsProtocolDecodeError(err) {
			t.Errorf("%s: got %v, want ProtocolDecodeError", tc.name, err)
		}
	}
}

func vectorHeader(length int64) []byte {
	w := wire.NewWriter(16)
	w.PutTag(int8(TypeVector))
	w.PutInt32(0)
	w.PutInt64(length)
	return w.Bytes()
}

func TestMutableStores(t *testing.T) {
	s := NewIntegerStore(1, 2, 3)
	s.InsertNA(1)
	if diff := cmp.Diff([]int32{1, wire.NAInt32, 2, 3}, s.Values); diff != "" {
		t.Errorf("insert (-want +got):\n%s", diff)
	}
	s.Remove(0)
	if diff := cmp.Diff([]int32{wire.NAInt32, 2, 3}, s.Values); diff != "" {
		t.Errorf("remove (-want +got):\n%s", diff)
	}

	c := NewCharacterStore("a", "b")
	c.InsertNA(2)
	if c.Len() != 3 || !c.IsNA(2) || c.IsNA(0) {
		t.Errorf("character insert: %+v", c)
	}
	c.Remove(0)
	if c.Values[0] != "b" || !c.IsNA(1) {
		t.Errorf("character remove: %+v", c)
	}

	var m MutableStore = NewComplexStore(1i)
	m.InsertNA(0)
	if !m.IsNA(0) || m.IsNA(1) {
		t.Error("complex insert NA")
	}
}

func TestFactorLevels(t *testing.T) {
	f := NewFactorStore([]int32{1, 2, 3, wire.NAInt32, 2}, []string{"a", "b", "c"}, false)

	if err := f.InsertLevel(1, "ab"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{1, 3, 4, wire.NAInt32, 3}, f.Codes); diff != "" {
		t.Errorf("insert level codes (-want +got):\n%s", diff)
	}
	if lvl, _ := f.Level(1); lvl != "b" {
		t.Errorf("level of element 1: got %q, want %q", lvl, "b")
	}

	if err := f.RemoveLevel("b"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int32{1, wire.NAInt32, 3, wire.NAInt32, wire.NAInt32}, f.Codes); diff != "" {
		t.Errorf("remove level codes (-want +got):\n%s", diff)
	}
	if lvl, _ := f.Level(2); lvl != "c" {
		t.Errorf("level of element 2: got %q, want %q", lvl, "c")
	}

	if err := f.RenameLevel("c", "C"); err != nil {
		t.Fatal(err)
	}
	if err := f.AddLevel("d"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "ab", "C", "d"}, f.Levels); diff != "" {
		t.Errorf("levels (-want +got):\n%s", diff)
	}

	if err := f.AddLevel("a"); err == nil {
		t.Error("duplicate level accepted")
	}
	if err := f.RenameLevel("zz", "y"); err == nil {
		t.Error("renaming missing level accepted")
	}
	if err := f.InsertLevel(9, "x"); err == nil {
		t.Error("out of range position accepted")
	}
}
