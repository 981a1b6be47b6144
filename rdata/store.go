package rdata

import (
	"fmt"

	"github.com/chazu/rjs/wire"
)

// StoreType identifies the element type of a Store.
type StoreType byte

const (
	LogicalType   StoreType = 1
	IntegerType   StoreType = 2
	NumericType   StoreType = 3
	ComplexType   StoreType = 4
	CharacterType StoreType = 5
	RawType       StoreType = 6
	FactorType    StoreType = 10
)

func (t StoreType) String() string {
	switch t {
	case LogicalType:
		return "logical"
	case IntegerType:
		return "integer"
	case NumericType:
		return "numeric"
	case ComplexType:
		return "complex"
	case CharacterType:
		return "character"
	case RawType:
		return "raw"
	case FactorType:
		return "factor"
	}
	return fmt.Sprintf("StoreType(%d)", byte(t))
}

// Store is a homogeneous column of scalars.
type Store interface {
	StoreType() StoreType
	// Len is the number of materialized elements; zero for struct-only stores.
	Len() int
	IsNA(i int) bool
	// StructOnly reports a placeholder that carries no element data.
	StructOnly() bool
}

// MutableStore is a Store that supports positional insert and remove.
// Indices at and after the position shift.
type MutableStore interface {
	Store
	InsertNA(i int)
	Remove(i int)
}

// ---------------------------------------------------------------------------
// Struct-only placeholders
// ---------------------------------------------------------------------------

type structStore struct {
	typ StoreType
}

// StructStore returns a zero-length placeholder of the given type.
func StructStore(t StoreType) Store {
	if t == FactorType {
		return &FactorStore{structOnly: true}
	}
	return structStore{typ: t}
}

func (s structStore) StoreType() StoreType { return s.typ }
func (s structStore) Len() int             { return 0 }
func (s structStore) IsNA(int) bool        { return false }
func (s structStore) StructOnly() bool     { return true }

// ---------------------------------------------------------------------------
// Logical
// ---------------------------------------------------------------------------

// Logical is a tri-state truth value.
type Logical int8

const (
	False     Logical = 0
	True      Logical = 1
	LogicalNA Logical = 2
)

type LogicalStore struct {
	Values []Logical
}

func NewLogicalStore(vs ...Logical) *LogicalStore { return &LogicalStore{Values: vs} }

func (s *LogicalStore) StoreType() StoreType { return LogicalType }
func (s *LogicalStore) Len() int             { return len(s.Values) }
func (s *LogicalStore) IsNA(i int) bool      { return s.Values[i] == LogicalNA }
func (s *LogicalStore) StructOnly() bool     { return false }

func (s *LogicalStore) InsertNA(i int) { s.Values = insertAt(s.Values, i, LogicalNA) }
func (s *LogicalStore) Remove(i int)   { s.Values = removeAt(s.Values, i) }

// ---------------------------------------------------------------------------
// Integer
// ---------------------------------------------------------------------------

type IntegerStore struct {
	Values []int32
}

func NewIntegerStore(vs ...int32) *IntegerStore { return &IntegerStore{Values: vs} }

func (s *IntegerStore) StoreType() StoreType { return IntegerType }
func (s *IntegerStore) Len() int             { return len(s.Values) }
func (s *IntegerStore) IsNA(i int) bool      { return s.Values[i] == wire.NAInt32 }
func (s *IntegerStore) StructOnly() bool     { return false }

func (s *IntegerStore) InsertNA(i int) { s.Values = insertAt(s.Values, i, wire.NAInt32) }
func (s *IntegerStore) Remove(i int)   { s.Values = removeAt(s.Values, i) }

// ---------------------------------------------------------------------------
// Numeric
// ---------------------------------------------------------------------------

type NumericStore struct {
	Values []float64
}

func NewNumericStore(vs ...float64) *NumericStore { return &NumericStore{Values: vs} }

func (s *NumericStore) StoreType() StoreType { return NumericType }
func (s *NumericStore) Len() int             { return len(s.Values) }
func (s *NumericStore) IsNA(i int) bool      { return wire.IsNAFloat64(s.Values[i]) }
func (s *NumericStore) StructOnly() bool     { return false }

func (s *NumericStore) InsertNA(i int) { s.Values = insertAt(s.Values, i, wire.NAFloat64()) }
func (s *NumericStore) Remove(i int)   { s.Values = removeAt(s.Values, i) }

// ---------------------------------------------------------------------------
// Complex
// ---------------------------------------------------------------------------

// ComplexStore keeps real and imaginary parts in parallel arrays.
type ComplexStore struct {
	Re []float64
	Im []float64
}

func NewComplexStore(vs ...complex128) *ComplexStore {
	s := &ComplexStore{Re: make([]float64, len(vs)), Im: make([]float64, len(vs))}
	for i, v := range vs {
		s.Re[i], s.Im[i] = real(v), imag(v)
	}
	return s
}

func (s *ComplexStore) StoreType() StoreType { return ComplexType }
func (s *ComplexStore) Len() int             { return len(s.Re) }
func (s *ComplexStore) IsNA(i int) bool      { return wire.IsNAFloat64(s.Re[i]) }
func (s *ComplexStore) StructOnly() bool     { return false }

func (s *ComplexStore) InsertNA(i int) {
	s.Re = insertAt(s.Re, i, wire.NAFloat64())
	s.Im = insertAt(s.Im, i, wire.NAFloat64())
}

func (s *ComplexStore) Remove(i int) {
	s.Re = removeAt(s.Re, i)
	s.Im = removeAt(s.Im, i)
}

// ---------------------------------------------------------------------------
// Character
// ---------------------------------------------------------------------------

// CharacterStore holds strings; NA marks missing values and may be nil when
// there are none.
type CharacterStore struct {
	Values []string
	NA     []bool
}

func NewCharacterStore(vs ...string) *CharacterStore { return &CharacterStore{Values: vs} }

func (s *CharacterStore) StoreType() StoreType { return CharacterType }
func (s *CharacterStore) Len() int             { return len(s.Values) }
func (s *CharacterStore) StructOnly() bool     { return false }

func (s *CharacterStore) IsNA(i int) bool {
	return s.NA != nil && s.NA[i]
}

// SetNA marks element i as NA.
func (s *CharacterStore) SetNA(i int) {
	if s.NA == nil {
		s.NA = make([]bool, len(s.Values))
	}
	s.Values[i] = ""
	s.NA[i] = true
}

func (s *CharacterStore) InsertNA(i int) {
	if s.NA == nil {
		s.NA = make([]bool, len(s.Values))
	}
	s.Values = insertAt(s.Values, i, "")
	s.NA = insertAt(s.NA, i, true)
}

func (s *CharacterStore) Remove(i int) {
	s.Values = removeAt(s.Values, i)
	if s.NA != nil {
		s.NA = removeAt(s.NA, i)
	}
}

// Index returns the position of the first non-NA element equal to v, or -1.
func (s *CharacterStore) Index(v string) int {
	for i, x := range s.Values {
		if x == v && !s.IsNA(i) {
			return i
		}
	}
	return -1
}

// ---------------------------------------------------------------------------
// Raw
// ---------------------------------------------------------------------------

type RawStore struct {
	Values []byte
}

func NewRawStore(vs ...byte) *RawStore { return &RawStore{Values: vs} }

func (s *RawStore) StoreType() StoreType { return RawType }
func (s *RawStore) Len() int             { return len(s.Values) }
func (s *RawStore) IsNA(int) bool        { return false }
func (s *RawStore) StructOnly() bool     { return false }

func (s *RawStore) InsertNA(i int) { s.Values = insertAt(s.Values, i, 0) }
func (s *RawStore) Remove(i int)   { s.Values = removeAt(s.Values, i) }

func insertAt[T any](s []T, i int, v T) []T {
	s = append(s, v)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
