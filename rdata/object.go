// Package rdata is the tagged value model exchanged between the engine and
// its clients: vectors, arrays, lists, data frames, environments, factors,
// functions, references, S4 objects and language forms, together with their
// binary encoding.
package rdata

import "fmt"

// Type is the variant tag of an Object. It is also the tag byte on the wire.
type Type int8

const (
	TypeNull        Type = 1
	TypeVector      Type = 2
	TypeArray       Type = 3
	TypeList        Type = 4
	TypeDataFrame   Type = 5
	TypeEnvironment Type = 6
	TypeFactor      Type = 7
	TypeFunction    Type = 8
	TypeReference   Type = 9
	TypeS4          Type = 10
	TypeLanguage    Type = 11
	TypeMissing     Type = 12
	TypeOther       Type = 13
	TypePromise     Type = 14

	// tagAbsent encodes a nil Object.
	tagAbsent int8 = -1
)

var typeNames = map[Type]string{
	TypeNull:        "null",
	TypeVector:      "vector",
	TypeArray:       "array",
	TypeList:        "list",
	TypeDataFrame:   "data.frame",
	TypeEnvironment: "environment",
	TypeFactor:      "factor",
	TypeFunction:    "function",
	TypeReference:   "reference",
	TypeS4:          "S4",
	TypeLanguage:    "language",
	TypeMissing:     "missing",
	TypeOther:       "other",
	TypePromise:     "promise",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", int8(t))
}

// Object is one tagged value.
type Object interface {
	Type() Type
	// ClassName is the value's class, falling back to a per-variant default.
	ClassName() string
	Length() int64
	// Attributes returns the attribute list or nil.
	Attributes() *List
}

// attrs is embedded by variants that can carry an attribute list.
type attrs struct {
	Attrs *List
}

func (a *attrs) Attributes() *List { return a.Attrs }

func className(explicit, def string) string {
	if explicit != "" {
		return explicit
	}
	return def
}

// ---------------------------------------------------------------------------
// Singletons
// ---------------------------------------------------------------------------

type nullObject struct{}

func (nullObject) Type() Type        { return TypeNull }
func (nullObject) ClassName() string { return "NULL" }
func (nullObject) Length() int64     { return 0 }
func (nullObject) Attributes() *List { return nil }

type missingObject struct{}

func (missingObject) Type() Type        { return TypeMissing }
func (missingObject) ClassName() string { return "" }
func (missingObject) Length() int64     { return 0 }
func (missingObject) Attributes() *List { return nil }

type promiseObject struct{}

func (promiseObject) Type() Type        { return TypePromise }
func (promiseObject) ClassName() string { return "promise" }
func (promiseObject) Length() int64     { return 0 }
func (promiseObject) Attributes() *List { return nil }

var (
	// Null is the empty value.
	Null Object = nullObject{}
	// Missing stands for an empty argument or an absent S4 slot.
	Missing Object = missingObject{}
	// Promise stands for an unforced lazy value.
	Promise Object = promiseObject{}
)

// ---------------------------------------------------------------------------
// Vector
// ---------------------------------------------------------------------------

// Vector is a one-dimensional atomic vector.
type Vector struct {
	attrs
	Class string
	Data  Store
	Names *CharacterStore
	// length is authoritative only for struct-only data.
	length int64
}

// NewVector wraps a materialized store.
func NewVector(data Store) *Vector {
	return &Vector{Data: data, length: int64(data.Len())}
}

// NewStructVector describes a vector of the given type and length without data.
func NewStructVector(t StoreType, length int64) *Vector {
	return &Vector{Data: StructStore(t), length: length}
}

func (v *Vector) Type() Type { return TypeVector }

func (v *Vector) ClassName() string {
	if v.Data == nil {
		return className(v.Class, "vector")
	}
	return className(v.Class, v.Data.StoreType().String())
}

func (v *Vector) Length() int64 {
	if v.Data == nil || v.Data.StructOnly() {
		return v.length
	}
	return int64(v.Data.Len())
}

// ---------------------------------------------------------------------------
// Factor
// ---------------------------------------------------------------------------

// Factor is a vector of level codes.
type Factor struct {
	attrs
	Class  string
	Data   *FactorStore
	Names  *CharacterStore
	length int64
}

func NewFactor(data *FactorStore) *Factor {
	return &Factor{Data: data, length: int64(data.Len())}
}

func NewStructFactor(data *FactorStore, length int64) *Factor {
	return &Factor{Data: data, length: length}
}

func (f *Factor) Type() Type { return TypeFactor }

func (f *Factor) ClassName() string {
	if f.Data != nil && f.Data.Ordered {
		return className(f.Class, "ordered")
	}
	return className(f.Class, "factor")
}

func (f *Factor) Length() int64 {
	if f.Data == nil || f.Data.StructOnly() {
		return f.length
	}
	return int64(f.Data.Len())
}

// ---------------------------------------------------------------------------
// Array
// ---------------------------------------------------------------------------

// Array is an atomic vector with a dim attribute. DimNames, when present,
// holds one character vector (or Null) per dimension.
type Array struct {
	attrs
	Class    string
	Data     Store
	Dim      []int32
	DimNames *List
}

func NewArray(data Store, dim ...int32) *Array {
	return &Array{Data: data, Dim: dim}
}

func (a *Array) Type() Type { return TypeArray }

func (a *Array) ClassName() string {
	if len(a.Dim) == 2 {
		return className(a.Class, "matrix")
	}
	return className(a.Class, "array")
}

func (a *Array) Length() int64 {
	n := int64(1)
	for _, d := range a.Dim {
		n *= int64(d)
	}
	return n
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// List is a generic vector. Items is nil when the list is struct-only.
type List struct {
	attrs
	Class  string
	Items  []Object
	Names  *CharacterStore
	length int64
}

func NewList(items ...Object) *List {
	return &List{Items: items, length: int64(len(items))}
}

// NewNamedList builds a list with item names.
func NewNamedList(names []string, items []Object) *List {
	return &List{Items: items, Names: NewCharacterStore(names...), length: int64(len(items))}
}

// NewStructList describes a list of the given length without children.
func NewStructList(length int64) *List {
	return &List{length: length}
}

func (l *List) Type() Type        { return TypeList }
func (l *List) ClassName() string { return className(l.Class, "list") }
func (l *List) StructOnly() bool  { return l.Items == nil && l.length > 0 }

func (l *List) Length() int64 {
	if l.Items == nil {
		return l.length
	}
	return int64(len(l.Items))
}

// Name returns the name of item i, or "" when unnamed.
func (l *List) Name(i int) string {
	if l.Names == nil || i >= l.Names.Len() || l.Names.IsNA(i) {
		return ""
	}
	return l.Names.Values[i]
}

// Get returns the first item named name.
func (l *List) Get(name string) (Object, bool) {
	if l.Names == nil {
		return nil, false
	}
	i := l.Names.Index(name)
	if i < 0 || i >= len(l.Items) {
		return nil, false
	}
	return l.Items[i], true
}

// ---------------------------------------------------------------------------
// DataFrame
// ---------------------------------------------------------------------------

// DataFrame is a list of equally long vector columns.
type DataFrame struct {
	attrs
	Class    string
	Columns  []Object
	Names    *CharacterStore
	RowNames Store
	rowCount int64
	colCount int64
}

func NewDataFrame(names []string, columns []Object, rowNames Store) *DataFrame {
	var rows int64
	if len(columns) > 0 {
		rows = columns[0].Length()
	} else if rowNames != nil {
		rows = int64(rowNames.Len())
	}
	return &DataFrame{
		Columns:  columns,
		Names:    NewCharacterStore(names...),
		RowNames: rowNames,
		rowCount: rows,
		colCount: int64(len(columns)),
	}
}

func (d *DataFrame) Type() Type        { return TypeDataFrame }
func (d *DataFrame) ClassName() string { return className(d.Class, "data.frame") }
func (d *DataFrame) Length() int64     { return d.colCount }
func (d *DataFrame) RowCount() int64   { return d.rowCount }

// Column returns the column named name.
func (d *DataFrame) Column(name string) (Object, bool) {
	i := d.Names.Index(name)
	if i < 0 || i >= len(d.Columns) {
		return nil, false
	}
	return d.Columns[i], true
}

// ---------------------------------------------------------------------------
// Environment
// ---------------------------------------------------------------------------

// Environment is a snapshot of an engine environment. Handle points back into
// the engine and is not owned by the snapshot. Items is nil when the children
// were not loaded.
type Environment struct {
	attrs
	Class  string
	ID     string
	Handle uint64
	Items  []Object
	Names  *CharacterStore
	length int64
}

func NewEnvironment(id string, handle uint64, names []string, items []Object) *Environment {
	return &Environment{
		ID: id, Handle: handle,
		Names: NewCharacterStore(names...), Items: items,
		length: int64(len(items)),
	}
}

// NewEnvironmentStub describes an environment of the given size without children.
func NewEnvironmentStub(id string, handle uint64, length int64) *Environment {
	return &Environment{ID: id, Handle: handle, length: length}
}

func (e *Environment) Type() Type        { return TypeEnvironment }
func (e *Environment) ClassName() string { return className(e.Class, "environment") }

func (e *Environment) Length() int64 {
	if e.Items == nil {
		return e.length
	}
	return int64(len(e.Items))
}

// HasChildren reports whether the children were loaded.
func (e *Environment) HasChildren() bool { return e.Items != nil }

// ---------------------------------------------------------------------------
// Function, Reference, S4, Language, Other
// ---------------------------------------------------------------------------

// Function carries a closure's deparsed header, e.g. "function (x, y = 2) ".
type Function struct {
	attrs
	Header string
}

func (f *Function) Type() Type        { return TypeFunction }
func (f *Function) ClassName() string { return "function" }
func (f *Function) Length() int64     { return 1 }

// Reference is a weak handle to an engine value.
type Reference struct {
	Handle        uint64
	DeclaredType  Type
	DeclaredClass string
}

func (r *Reference) Type() Type        { return TypeReference }
func (r *Reference) Length() int64     { return 0 }
func (r *Reference) Attributes() *List { return nil }

func (r *Reference) ClassName() string {
	return className(r.DeclaredClass, r.DeclaredType.String())
}

// S4 is a composite object; slot ".Data" holds the primitive representation.
type S4 struct {
	Class      string
	SlotNames  []string
	SlotValues []Object
}

// DataSlotName is the synthetic slot holding an S4 object's primitive data.
const DataSlotName = ".Data"

func (s *S4) Type() Type        { return TypeS4 }
func (s *S4) ClassName() string { return className(s.Class, "S4") }
func (s *S4) Length() int64     { return 0 }
func (s *S4) Attributes() *List { return nil }

// Slot returns the value of the named slot.
func (s *S4) Slot(name string) (Object, bool) {
	for i, n := range s.SlotNames {
		if n == name {
			return s.SlotValues[i], true
		}
	}
	return nil, false
}

// DataSlot returns the .Data slot, if any.
func (s *S4) DataSlot() (Object, bool) { return s.Slot(DataSlotName) }

// LanguageKind distinguishes symbols, calls and expression vectors.
type LanguageKind byte

const (
	LangName       LanguageKind = 1
	LangExpression LanguageKind = 2
	LangCall       LanguageKind = 3
)

// Language is a language object in source form.
type Language struct {
	attrs
	Class  string
	Kind   LanguageKind
	Source string
}

func (l *Language) Type() Type { return TypeLanguage }

func (l *Language) ClassName() string {
	switch l.Kind {
	case LangName:
		return className(l.Class, "name")
	case LangExpression:
		return className(l.Class, "expression")
	}
	return className(l.Class, "call")
}

func (l *Language) Length() int64 {
	if l.Kind == LangName {
		return 0
	}
	return 1
}

// Other stands for an engine value that has no marshaled form.
type Other struct {
	attrs
	Class string
}

func (o *Other) Type() Type        { return TypeOther }
func (o *Other) ClassName() string { return o.Class }
func (o *Other) Length() int64     { return 0 }
