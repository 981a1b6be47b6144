package rdata

import (
	"math"

	"github.com/chazu/rjs/wire"
)

// Equal reports deep structural equality: variant, class, length, payload
// including NA positions, names and attributes. Environment handles are
// compared; struct-only stores equal only struct-only stores of the same type.
func Equal(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() || a.ClassName() != b.ClassName() || a.Length() != b.Length() {
		return false
	}
	if !listEqual(a.Attributes(), b.Attributes()) {
		return false
	}
	switch x := a.(type) {
	case nullObject, missingObject, promiseObject:
		return true
	case *Vector:
		y := b.(*Vector)
		return StoreEqual(x.Data, y.Data) && namesEqual(x.Names, y.Names)
	case *Factor:
		y := b.(*Factor)
		return StoreEqual(x.Data, y.Data) && namesEqual(x.Names, y.Names)
	case *Array:
		y := b.(*Array)
		return int32sEqual(x.Dim, y.Dim) && StoreEqual(x.Data, y.Data) && listEqual(x.DimNames, y.DimNames)
	case *List:
		y := b.(*List)
		return namesEqual(x.Names, y.Names) && itemsEqual(x.Items, y.Items)
	case *DataFrame:
		y := b.(*DataFrame)
		return x.rowCount == y.rowCount &&
			namesEqual(x.Names, y.Names) &&
			storeOrNilEqual(x.RowNames, y.RowNames) &&
			itemsEqual(x.Columns, y.Columns)
	case *Environment:
		y := b.(*Environment)
		return x.ID == y.ID && x.Handle == y.Handle &&
			x.HasChildren() == y.HasChildren() &&
			namesEqual(x.Names, y.Names) && itemsEqual(x.Items, y.Items)
	case *Function:
		return x.Header == b.(*Function).Header
	case *Reference:
		y := b.(*Reference)
		return x.Handle == y.Handle && x.DeclaredType == y.DeclaredType &&
			x.DeclaredClass == y.DeclaredClass
	case *S4:
		y := b.(*S4)
		if len(x.SlotNames) != len(y.SlotNames) {
			return false
		}
		for i := range x.SlotNames {
			if x.SlotNames[i] != y.SlotNames[i] || !Equal(x.SlotValues[i], y.SlotValues[i]) {
				return false
			}
		}
		return true
	case *Language:
		y := b.(*Language)
		return x.Kind == y.Kind && x.Source == y.Source
	case *Other:
		return true
	}
	return false
}

// StructEqual is the structural-compatibility check: when either side of a
// vector comparison is struct-only, type and length decide; otherwise it
// behaves like Equal, recursing through containers.
func StructEqual(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.Type() != b.Type() || a.Length() != b.Length() {
		return false
	}
	switch x := a.(type) {
	case *Vector:
		y := b.(*Vector)
		if x.Data.StructOnly() || y.Data.StructOnly() {
			return x.Data.StoreType() == y.Data.StoreType()
		}
	case *Factor:
		y := b.(*Factor)
		if x.Data.StructOnly() || y.Data.StructOnly() {
			return x.Data.LevelCount() == y.Data.LevelCount()
		}
	case *Array:
		y := b.(*Array)
		if x.Data.StructOnly() || y.Data.StructOnly() {
			return x.Data.StoreType() == y.Data.StoreType() && int32sEqual(x.Dim, y.Dim)
		}
	case *List:
		y := b.(*List)
		if x.Items == nil || y.Items == nil {
			return true
		}
		for i := range x.Items {
			if !StructEqual(x.Items[i], y.Items[i]) {
				return false
			}
		}
		return true
	case *DataFrame:
		y := b.(*DataFrame)
		if x.Columns == nil || y.Columns == nil {
			return x.rowCount == y.rowCount
		}
		for i := range x.Columns {
			if !StructEqual(x.Columns[i], y.Columns[i]) {
				return false
			}
		}
		return x.rowCount == y.rowCount
	}
	return Equal(a, b)
}

// StoreEqual compares two stores element by element, NA positions included.
func StoreEqual(a, b Store) bool {
	if a.StoreType() != b.StoreType() || a.StructOnly() != b.StructOnly() {
		return false
	}
	if a.StructOnly() {
		if fa, ok := a.(*FactorStore); ok {
			fb := b.(*FactorStore)
			return fa.Ordered == fb.Ordered && fa.LevelCount() == fb.LevelCount()
		}
		return true
	}
	if a.Len() != b.Len() {
		return false
	}
	for i := 0; i < a.Len(); i++ {
		if a.IsNA(i) != b.IsNA(i) {
			return false
		}
	}
	switch x := a.(type) {
	case *LogicalStore:
		y := b.(*LogicalStore)
		for i := range x.Values {
			if x.Values[i] != y.Values[i] {
				return false
			}
		}
	case *IntegerStore:
		return int32sEqual(x.Values, b.(*IntegerStore).Values)
	case *NumericStore:
		return floatsEqual(x.Values, b.(*NumericStore).Values)
	case *ComplexStore:
		y := b.(*ComplexStore)
		return floatsEqual(x.Re, y.Re) && floatsEqual(x.Im, y.Im)
	case *CharacterStore:
		y := b.(*CharacterStore)
		for i := range x.Values {
			if !x.IsNA(i) && x.Values[i] != y.Values[i] {
				return false
			}
		}
	case *RawStore:
		y := b.(*RawStore)
		for i := range x.Values {
			if x.Values[i] != y.Values[i] {
				return false
			}
		}
	case *FactorStore:
		y := b.(*FactorStore)
		if x.Ordered != y.Ordered || len(x.Levels) != len(y.Levels) {
			return false
		}
		for i := range x.Levels {
			if x.Levels[i] != y.Levels[i] {
				return false
			}
		}
		return int32sEqual(x.Codes, y.Codes)
	}
	return true
}

func floatsEqual(a, b []float64) bool {
	for i := range a {
		x, y := a[i], b[i]
		switch {
		case wire.IsNAFloat64(x) || wire.IsNAFloat64(y):
			if wire.IsNAFloat64(x) != wire.IsNAFloat64(y) {
				return false
			}
		case math.IsNaN(x) || math.IsNaN(y):
			if math.IsNaN(x) != math.IsNaN(y) {
				return false
			}
		case x != y:
			return false
		}
	}
	return true
}

func int32sEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func namesEqual(a, b *CharacterStore) bool {
	if a == nil || a.Len() == 0 {
		return b == nil || b.Len() == 0
	}
	if b == nil {
		return false
	}
	return StoreEqual(a, b)
}

func storeOrNilEqual(a, b Store) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return StoreEqual(a, b)
}

func listEqual(a, b *List) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}

func itemsEqual(a, b []Object) bool {
	if len(a) != len(b) || (a == nil) != (b == nil) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
