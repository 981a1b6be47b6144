package adapter

import (
	"github.com/chazu/rjs/engine"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

// UnsupportedValueError is returned for tagged values that cannot be turned
// into engine values, such as functions or promises.
type UnsupportedValueError struct {
	Type rdata.Type
}

func (e *UnsupportedValueError) Error() string {
	return "The assignment for R objects of type " + e.Type.String() + " is not yet supported."
}

// toNative converts a client value into an engine value. References are
// resolved through the arena and pinned in scope until the command ends.
func (c *Context) toNative(obj rdata.Object, scope *engine.Scope) (*engine.Value, error) {
	if structOnly(obj) {
		return nil, evalError(item.CodeAssignUnsupported, "The R object to assign has no data.")
	}
	switch o := obj.(type) {
	case nil:
		return engine.Null, nil
	case *rdata.Vector:
		v := nativeStore(o.Data)
		if o.Names != nil {
			v.SetAttr("names", nativeStore(o.Names))
		}
		if o.Class != "" {
			v.SetAttr("class", engine.Str(o.Class))
		}
		return v, nil
	case *rdata.Factor:
		return nativeFactor(o.Data), nil
	case *rdata.Array:
		v := nativeStore(o.Data)
		v.SetAttr("dim", engine.Int(o.Dim...))
		if o.DimNames != nil {
			dn, err := c.toNative(o.DimNames, scope)
			if err != nil {
				return nil, err
			}
			v.SetAttr("dimnames", dn)
		}
		return v, nil
	case *rdata.DataFrame:
		return c.nativeDataFrame(o, scope)
	case *rdata.List:
		items := make([]*engine.Value, len(o.Items))
		for i, x := range o.Items {
			v, err := c.toNative(x, scope)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		l := engine.List(items...)
		if o.Names != nil {
			l.SetAttr("names", nativeStore(o.Names))
		}
		return l, nil
	case *rdata.Reference:
		v, ok := c.arena.Lookup(engine.Handle(o.Handle))
		if !ok {
			return nil, evalError(item.CodeInvalidReference, "Invalid reference.")
		}
		scope.Protect(v)
		return v, nil
	case *rdata.S4:
		return c.newS4(o, scope)
	case *rdata.Language:
		return nativeLanguage(o)
	}
	switch obj.Type() {
	case rdata.TypeNull, rdata.TypeMissing:
		return engine.Null, nil
	}
	return nil, &EvaluationError{
		Code:    item.CodeAssignUnsupported,
		Message: (&UnsupportedValueError{Type: obj.Type()}).Error(),
	}
}

func structOnly(obj rdata.Object) bool {
	switch o := obj.(type) {
	case *rdata.Vector:
		return o.Data == nil || o.Data.StructOnly()
	case *rdata.Array:
		return o.Data == nil || o.Data.StructOnly()
	case *rdata.Factor:
		return o.Data == nil || o.Data.StructOnly()
	case *rdata.List:
		return o.StructOnly()
	}
	return false
}

func nativeStore(s rdata.Store) *engine.Value {
	switch s := s.(type) {
	case *rdata.LogicalStore:
		vs := make([]int32, len(s.Values))
		for i, x := range s.Values {
			switch x {
			case rdata.LogicalNA:
				vs[i] = engine.NALogical
			case rdata.False:
				vs[i] = 0
			default:
				vs[i] = 1
			}
		}
		return engine.Lgl(vs...)
	case *rdata.IntegerStore:
		return engine.Int(append([]int32(nil), s.Values...)...)
	case *rdata.NumericStore:
		return engine.Real(append([]float64(nil), s.Values...)...)
	case *rdata.ComplexStore:
		vs := make([]complex128, len(s.Re))
		for i := range vs {
			vs[i] = complex(s.Re[i], s.Im[i])
		}
		return engine.Cplx(vs...)
	case *rdata.CharacterStore:
		vs := append([]string(nil), s.Values...)
		for i := range vs {
			if s.IsNA(i) {
				vs[i] = engine.NAString
			}
		}
		return engine.Str(vs...)
	case *rdata.RawStore:
		return engine.RawBytes(append([]byte(nil), s.Values...)...)
	case *rdata.FactorStore:
		return nativeFactor(s)
	}
	return &engine.Value{Kind: engine.NilKind}
}

func nativeFactor(s *rdata.FactorStore) *engine.Value {
	v := engine.Int(append([]int32(nil), s.Codes...)...)
	v.SetAttr("levels", engine.Str(s.Levels...))
	if s.Ordered {
		v.SetAttr("class", engine.Str("ordered", "factor"))
	} else {
		v.SetAttr("class", engine.Str("factor"))
	}
	return v
}

// nativeDataFrame builds the column list with names, row names (1..n when
// absent) and the data.frame class.
func (c *Context) nativeDataFrame(df *rdata.DataFrame, scope *engine.Scope) (*engine.Value, error) {
	cols := make([]*engine.Value, len(df.Columns))
	for i, col := range df.Columns {
		v, err := c.toNative(col, scope)
		if err != nil {
			return nil, err
		}
		cols[i] = v
	}
	v := engine.List(cols...)
	if df.Names != nil {
		v.SetAttr("names", nativeStore(df.Names))
	}
	if df.RowNames != nil {
		v.SetAttr("row.names", nativeStore(df.RowNames))
	} else {
		rows := make([]int32, df.RowCount())
		for i := range rows {
			rows[i] = int32(i + 1)
		}
		v.SetAttr("row.names", engine.Int(rows...))
	}
	v.SetAttr("class", engine.Str("data.frame"))
	return v, nil
}

// newS4 instantiates the class through new() with every non-missing slot
// passed by name.
func (c *Context) newS4(o *rdata.S4, scope *engine.Scope) (*engine.Value, error) {
	args := []*engine.Value{engine.Str(o.ClassName())}
	tags := []string{"Class"}
	for i, name := range o.SlotNames {
		slot := o.SlotValues[i]
		if slot == nil || slot.Type() == rdata.TypeMissing {
			continue
		}
		v, err := c.toNative(slot, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, quote(v))
		tags = append(tags, name)
	}
	call := engine.Call(engine.Sym("new"), args...)
	copy(call.Tags, tags)
	return c.eval(call, item.CodeNewS4Failed)
}

func nativeLanguage(l *rdata.Language) (*engine.Value, error) {
	if l.Kind == rdata.LangName {
		return engine.Sym(l.Source), nil
	}
	exprs, err := engine.Parse(l.Source)
	if err != nil {
		return nil, evalError(item.CodeInvalidLanguage, "The language data is invalid.")
	}
	if l.Kind == rdata.LangExpression {
		return exprs, nil
	}
	if len(exprs.Items) != 1 || exprs.Items[0].Kind != engine.LangKind {
		return nil, evalError(item.CodeInvalidLanguage, "The language data is invalid.")
	}
	return exprs.Items[0], nil
}
