package engine

import (
	"fmt"
	"math"
)

// Kind is the native type tag of a Value.
type Kind uint8

const (
	NilKind Kind = iota
	SymKind
	LglKind
	IntKind
	RealKind
	CplxKind
	StrKind
	RawKind
	ListKind
	ExprKind
	LangKind
	CloKind
	BuiltinKind
	EnvKind
	PromKind
	S4Kind
	ExtPtrKind
)

var kindNames = [...]string{
	NilKind:     "NULL",
	SymKind:     "symbol",
	LglKind:     "logical",
	IntKind:     "integer",
	RealKind:    "double",
	CplxKind:    "complex",
	StrKind:     "character",
	RawKind:     "raw",
	ListKind:    "list",
	ExprKind:    "expression",
	LangKind:    "language",
	CloKind:     "closure",
	BuiltinKind: "builtin",
	EnvKind:     "environment",
	PromKind:    "promise",
	S4Kind:      "S4",
	ExtPtrKind:  "externalptr",
}

// String returns the typeof() name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// NA values.
const (
	NAInt     int32  = math.MinInt32
	NALogical int32  = math.MinInt32
	// NAString is the NA element of a character vector. Script strings cannot
	// contain NUL, so it never collides with a real value.
	NAString = "\x00NA\x00"
)

const naRealBits uint64 = 0x7FF00000000007A2

// NAReal returns the numeric NA.
func NAReal() float64 { return math.Float64frombits(naRealBits) }

// IsNAReal distinguishes NA from other NaNs.
func IsNAReal(f float64) bool {
	return math.IsNaN(f) && uint32(math.Float64bits(f)) == uint32(naRealBits&0xFFFFFFFF)
}

// Attr is one named attribute.
type Attr struct {
	Name  string
	Value *Value
}

// Value is a native engine value. Only the fields matching Kind are used.
type Value struct {
	Kind  Kind
	Attrs []Attr
	// S4 is the S4 object bit.
	S4 bool

	Lgl  []int32
	Int  []int32
	Real []float64
	Cplx []complex128
	Str  []string
	Raw  []byte
	// Items holds list and expression elements, or the arguments of a call.
	Items []*Value
	// Tags holds argument names of a call.
	Tags []string
	// Fn is the function part of a call.
	Fn *Value
	// Name of a symbol.
	Name string

	Clo     *Closure
	Builtin *Builtin
	Env     *Env
	Prom    *Promise
}

// Closure is a user function.
type Closure struct {
	Formals []Formal
	Body    *Value
	Env     *Env
}

// Formal is one declared parameter; Default is nil when there is none.
type Formal struct {
	Name    string
	Default *Value
}

// Promise is a lazily evaluated value.
type Promise struct {
	Expr   *Value
	Env    *Env
	Value  *Value
	Forced bool

	fromDefault bool
}

// Null is the shared NULL value. It must never be mutated.
var Null = &Value{Kind: NilKind}

// MissingArg is the empty symbol marking an omitted argument.
var MissingArg = &Value{Kind: SymKind}

func Sym(name string) *Value { return &Value{Kind: SymKind, Name: name} }

func Lgl(vs ...int32) *Value       { return &Value{Kind: LglKind, Lgl: vs} }
func Int(vs ...int32) *Value       { return &Value{Kind: IntKind, Int: vs} }
func Real(vs ...float64) *Value    { return &Value{Kind: RealKind, Real: vs} }
func Cplx(vs ...complex128) *Value { return &Value{Kind: CplxKind, Cplx: vs} }
func Str(vs ...string) *Value      { return &Value{Kind: StrKind, Str: vs} }
func RawBytes(vs ...byte) *Value   { return &Value{Kind: RawKind, Raw: vs} }
func List(items ...*Value) *Value  { return &Value{Kind: ListKind, Items: items} }
func EnvValue(e *Env) *Value       { return &Value{Kind: EnvKind, Env: e} }
func Bool(b bool) *Value           { return Lgl(boolLgl(b)) }

// Call builds a call of fn with positional args.
func Call(fn *Value, args ...*Value) *Value {
	return &Value{Kind: LangKind, Fn: fn, Items: args, Tags: make([]string, len(args))}
}

// NamedList builds a list with a names attribute.
func NamedList(names []string, items []*Value) *Value {
	v := List(items...)
	v.SetAttr("names", Str(names...))
	return v
}

func boolLgl(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

// IsMissingArg reports whether v is the empty argument symbol.
func (v *Value) IsMissingArg() bool { return v.Kind == SymKind && v.Name == "" }

// IsAtomic reports whether v is an atomic vector.
func (v *Value) IsAtomic() bool {
	switch v.Kind {
	case LglKind, IntKind, RealKind, CplxKind, StrKind, RawKind:
		return true
	}
	return false
}

// IsVector reports whether v is an atomic vector or a list.
func (v *Value) IsVector() bool { return v.IsAtomic() || v.Kind == ListKind || v.Kind == ExprKind }

// Len returns the vector length (1 for non-vectors other than NULL).
func (v *Value) Len() int {
	switch v.Kind {
	case NilKind:
		return 0
	case LglKind:
		return len(v.Lgl)
	case IntKind:
		return len(v.Int)
	case RealKind:
		return len(v.Real)
	case CplxKind:
		return len(v.Cplx)
	case StrKind:
		return len(v.Str)
	case RawKind:
		return len(v.Raw)
	case ListKind, ExprKind:
		return len(v.Items)
	case LangKind:
		return len(v.Items) + 1
	case EnvKind:
		return v.Env.Len()
	}
	return 1
}

// Attr returns the named attribute or nil.
func (v *Value) Attr(name string) *Value {
	for _, a := range v.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return nil
}

// SetAttr sets, replaces or (with a nil or NULL value) removes an attribute.
func (v *Value) SetAttr(name string, val *Value) {
	for i, a := range v.Attrs {
		if a.Name == name {
			if val == nil || val.Kind == NilKind {
				v.Attrs = append(v.Attrs[:i:i], v.Attrs[i+1:]...)
			} else {
				v.Attrs[i].Value = val
			}
			return
		}
	}
	if val != nil && val.Kind != NilKind {
		v.Attrs = append(v.Attrs, Attr{Name: name, Value: val})
	}
}

// Names returns the names attribute as strings, or nil.
func (v *Value) Names() []string {
	if v.Kind == LangKind {
		return v.Tags
	}
	if n := v.Attr("names"); n != nil && n.Kind == StrKind {
		return n.Str
	}
	return nil
}

// Class returns the explicit class attribute, or nil.
func (v *Value) Class() []string {
	if c := v.Attr("class"); c != nil && c.Kind == StrKind {
		return c.Str
	}
	return nil
}

// Inherits reports whether class is in the explicit or implicit class vector.
func (v *Value) Inherits(class string) bool {
	for _, c := range ImplicitClass(v) {
		if c == class {
			return true
		}
	}
	return false
}

// ImplicitClass returns class(v): the class attribute or the implicit class.
func ImplicitClass(v *Value) []string {
	if c := v.Class(); len(c) > 0 {
		return c
	}
	if d := v.Attr("dim"); d != nil && v.IsAtomic() {
		if d.Len() == 2 {
			return []string{"matrix", "array"}
		}
		return []string{"array"}
	}
	switch v.Kind {
	case RealKind:
		return []string{"numeric"}
	case CloKind, BuiltinKind:
		return []string{"function"}
	case SymKind:
		return []string{"name"}
	case LangKind:
		return []string{"call"}
	}
	return []string{v.Kind.String()}
}

// Copy returns a shallow copy with its own attribute and element slices.
func (v *Value) Copy() *Value {
	if v == Null {
		return Null
	}
	c := *v
	c.Attrs = append([]Attr(nil), v.Attrs...)
	c.Lgl = append([]int32(nil), v.Lgl...)
	c.Int = append([]int32(nil), v.Int...)
	c.Real = append([]float64(nil), v.Real...)
	c.Cplx = append([]complex128(nil), v.Cplx...)
	c.Str = append([]string(nil), v.Str...)
	c.Raw = append([]byte(nil), v.Raw...)
	c.Items = append([]*Value(nil), v.Items...)
	c.Tags = append([]string(nil), v.Tags...)
	return &c
}

// IsNA reports whether element i of an atomic vector is NA.
func (v *Value) IsNA(i int) bool {
	switch v.Kind {
	case LglKind:
		return v.Lgl[i] == NALogical
	case IntKind:
		return v.Int[i] == NAInt
	case RealKind:
		return math.IsNaN(v.Real[i])
	case CplxKind:
		return math.IsNaN(real(v.Cplx[i])) || math.IsNaN(imag(v.Cplx[i]))
	case StrKind:
		return v.Str[i] == NAString
	}
	return false
}

// BuiltinFunc implements a builtin. Specials receive their arguments
// unevaluated.
type BuiltinFunc func(in *Interp, c *CallCtx) (*Value, error)

// Builtin is a function implemented in Go.
type Builtin struct {
	Name    string
	Special bool
	Fn      BuiltinFunc
}

// NewBuiltin wraps fn as a function value.
func NewBuiltin(name string, fn BuiltinFunc) *Value {
	return &Value{Kind: BuiltinKind, Builtin: &Builtin{Name: name, Fn: fn}}
}
