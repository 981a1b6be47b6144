package adapter

import (
	"strings"

	"github.com/chazu/rjs/engine"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

type mode int

const (
	// modeDefault counts against the depth budget.
	modeDefault mode = iota
	// modeForce builds the value even when the budget is used up.
	modeForce
	// modeDataSlot builds the primitive part of an S4 object, ignoring its
	// class and S4 bit.
	modeDataSlot
)

// builder turns engine values into tagged values for one data command.
type builder struct {
	c        *Context
	flags    uint32
	owner    string
	scope    *engine.Scope
	depth    int
	maxDepth int
	// shaping is set while the outline of a reference is built.
	shaping bool
}

func (c *Context) newBuilder(slot, depth int, scope *engine.Scope) *builder {
	maxDepth := depth
	switch {
	case depth < 0:
		maxDepth = item.MaxDepth + 1
	case depth > item.MaxDepth:
		maxDepth = item.MaxDepth
	}
	return &builder{c: c, owner: slotOwner(slot), scope: scope, maxDepth: maxDepth}
}

func (b *builder) structOnly() bool { return b.flags&item.DataStructOnly != 0 }

func (b *builder) interrupted() bool { return b.c.x.Interrupted() }

// object is the entry point: with a depth of 0 the value stays in the engine
// and only a reference describing it is returned.
func (b *builder) object(v *engine.Value) rdata.Object {
	if b.maxDepth > 0 {
		return b.build(v, modeForce)
	}
	return b.reference(v)
}

// reference keeps v in the engine and describes it by the type and class
// of its outline. Children of the outline are not built.
func (b *builder) reference(v *engine.Value) rdata.Object {
	flags := b.flags
	b.flags |= item.DataStructOnly
	b.shaping = true
	shape := b.build(v, modeForce)
	b.flags = flags
	b.shaping = false
	ref := &rdata.Reference{Handle: b.preserve(v)}
	if shape != nil {
		ref.DeclaredType = shape.Type()
		ref.DeclaredClass = shape.ClassName()
	}
	return ref
}

func (b *builder) preserve(v *engine.Value) uint64 {
	return uint64(b.c.arena.Preserve(v, b.owner))
}

// build returns a reference once the depth budget is exhausted in
// modeDefault.
func (b *builder) build(v *engine.Value, m mode) rdata.Object {
	if m == modeDefault && b.depth >= b.maxDepth {
		if b.shaping {
			return nil
		}
		return b.reference(v)
	}
	b.depth++
	defer func() { b.depth-- }()

	if v.Kind == engine.PromKind {
		p := v.Prom
		switch {
		case p.Forced:
			v = p.Value
		case b.flags&item.DataLoadPromises != 0:
			forced, err := b.c.in.Force(v)
			if err != nil {
				log.Debugf("forcing promise: %s", err.Error())
				return rdata.Promise
			}
			v = forced
		default:
			return rdata.Promise
		}
	}

	switch classify(v, m) {
	case shapeNull:
		return rdata.Null
	case shapeMissing:
		return rdata.Missing
	case shapeS4:
		return b.s4(v)
	case shapeFactor:
		return b.factor(v, m)
	case shapeDataFrame:
		if df := b.dataFrame(v); df != nil {
			return df
		}
		return b.list(v, m)
	case shapeArray:
		return b.array(v, m)
	case shapeVector:
		return b.vector(v, m)
	case shapeList:
		return b.list(v, m)
	case shapeEnvironment:
		return b.environment(v, m)
	case shapeFunction:
		return &rdata.Function{Header: functionHeader(v)}
	case shapeLanguage:
		return b.language(v, m)
	}
	return &rdata.Other{Class: otherClass(v, m)}
}

type shape int

const (
	shapeOther shape = iota
	shapeNull
	shapeMissing
	shapeS4
	shapeFactor
	shapeDataFrame
	shapeArray
	shapeVector
	shapeList
	shapeEnvironment
	shapeFunction
	shapeLanguage
)

// classify decides the variant of v: the class attribute first, then
// structural attributes, then the native type.
func classify(v *engine.Value, m mode) shape {
	switch {
	case v.Kind == engine.NilKind:
		return shapeNull
	case v.IsMissingArg():
		return shapeMissing
	}
	if m != modeDataSlot {
		if v.Kind == engine.S4Kind || (v.S4 && v.Kind != engine.EnvKind) {
			return shapeS4
		}
		if cls := v.Class(); len(cls) > 0 {
			switch {
			case v.Kind == engine.IntKind && (hasClass(cls, "factor") || hasClass(cls, "ordered")) && v.Attr("levels") != nil:
				return shapeFactor
			case v.Kind == engine.ListKind && hasClass(cls, "data.frame") && v.Attr("names") != nil:
				return shapeDataFrame
			}
		}
	}
	if v.IsAtomic() {
		switch {
		case m != modeDataSlot && v.Kind == engine.IntKind && v.Attr("levels") != nil:
			return shapeFactor
		case v.Attr("dim") != nil:
			return shapeArray
		}
		return shapeVector
	}
	switch v.Kind {
	case engine.ListKind:
		return shapeList
	case engine.EnvKind:
		return shapeEnvironment
	case engine.CloKind, engine.BuiltinKind:
		return shapeFunction
	case engine.SymKind, engine.LangKind, engine.ExprKind:
		return shapeLanguage
	}
	return shapeOther
}

func hasClass(classes []string, class string) bool {
	for _, c := range classes {
		if c == class {
			return true
		}
	}
	return false
}

// explicitClass is the first element of the class attribute, "" in data slot
// mode or when there is none.
func explicitClass(v *engine.Value, m mode) string {
	if m == modeDataSlot {
		return ""
	}
	if cls := v.Class(); len(cls) > 0 {
		return cls[0]
	}
	return ""
}

func otherClass(v *engine.Value, m mode) string {
	if c := explicitClass(v, m); c != "" {
		return c
	}
	if v.Kind == engine.ExtPtrKind {
		return "externalptr"
	}
	return engine.ImplicitClass(v)[0]
}

// ---------------------------------------------------------------------------
// Atomic values
// ---------------------------------------------------------------------------

func storeType(k engine.Kind) rdata.StoreType {
	switch k {
	case engine.LglKind:
		return rdata.LogicalType
	case engine.IntKind:
		return rdata.IntegerType
	case engine.CplxKind:
		return rdata.ComplexType
	case engine.StrKind:
		return rdata.CharacterType
	case engine.RawKind:
		return rdata.RawType
	}
	return rdata.NumericType
}

// store copies the data of an atomic value.
func store(v *engine.Value) rdata.Store {
	switch v.Kind {
	case engine.LglKind:
		s := rdata.NewLogicalStore(make([]rdata.Logical, len(v.Lgl))...)
		for i, x := range v.Lgl {
			switch x {
			case engine.NALogical:
				s.Values[i] = rdata.LogicalNA
			case 0:
				s.Values[i] = rdata.False
			default:
				s.Values[i] = rdata.True
			}
		}
		return s
	case engine.IntKind:
		return rdata.NewIntegerStore(append([]int32(nil), v.Int...)...)
	case engine.CplxKind:
		return rdata.NewComplexStore(v.Cplx...)
	case engine.StrKind:
		s := rdata.NewCharacterStore(append([]string(nil), v.Str...)...)
		for i, x := range v.Str {
			if x == engine.NAString {
				s.SetNA(i)
			}
		}
		return s
	case engine.RawKind:
		return rdata.NewRawStore(append([]byte(nil), v.Raw...)...)
	}
	return rdata.NewNumericStore(append([]float64(nil), v.Real...)...)
}

func names(v *engine.Value) *rdata.CharacterStore {
	n := v.Attr("names")
	if n == nil || n.Kind != engine.StrKind {
		return nil
	}
	return store(n).(*rdata.CharacterStore)
}

// plainAttrs are the attributes the variants carry in their own fields.
var plainAttrs = map[string]bool{
	"names": true, "dim": true, "dimnames": true, "class": true, "levels": true, "row.names": true,
}

// attributes collects the remaining attributes of v, or nil.
func (b *builder) attributes(v *engine.Value, m mode) *rdata.List {
	if m == modeDataSlot || b.structOnly() {
		return nil
	}
	var keys []string
	var items []rdata.Object
	for _, a := range v.Attrs {
		if plainAttrs[a.Name] {
			continue
		}
		keys = append(keys, a.Name)
		items = append(items, b.build(a.Value, modeForce))
	}
	if keys == nil {
		return nil
	}
	return rdata.NewNamedList(keys, items)
}

func (b *builder) vector(v *engine.Value, m mode) rdata.Object {
	var vec *rdata.Vector
	if b.structOnly() {
		vec = rdata.NewStructVector(storeType(v.Kind), int64(v.Len()))
	} else {
		vec = rdata.NewVector(store(v))
		vec.Names = names(v)
		vec.Attrs = b.attributes(v, m)
	}
	vec.Class = explicitClass(v, m)
	return vec
}

func (b *builder) factor(v *engine.Value, m mode) rdata.Object {
	levels := engine.Strings(v.Attr("levels"))
	ordered := v.Inherits("ordered")
	var f *rdata.Factor
	if b.structOnly() {
		f = rdata.NewStructFactor(rdata.StructFactorStore(ordered, len(levels)), int64(v.Len()))
	} else {
		f = rdata.NewFactor(rdata.NewFactorStore(append([]int32(nil), v.Int...), levels, ordered))
		f.Names = names(v)
		f.Attrs = b.attributes(v, m)
	}
	f.Class = explicitClass(v, m)
	return f
}

func (b *builder) array(v *engine.Value, m mode) rdata.Object {
	dim := engine.Coerce(v.Attr("dim"), engine.IntKind).Int
	var a *rdata.Array
	if b.structOnly() {
		a = rdata.NewArray(rdata.StructStore(storeType(v.Kind)), dim...)
	} else {
		a = rdata.NewArray(store(v), dim...)
		a.DimNames = b.dimNames(v, len(dim))
		a.Attrs = b.attributes(v, m)
	}
	a.Class = explicitClass(v, m)
	return a
}

func (b *builder) dimNames(v *engine.Value, n int) *rdata.List {
	dn := v.Attr("dimnames")
	if dn == nil || dn.Kind != engine.ListKind || len(dn.Items) != n {
		return nil
	}
	items := make([]rdata.Object, n)
	for i, x := range dn.Items {
		if x.Kind == engine.StrKind {
			items[i] = rdata.NewVector(store(x))
		} else {
			items[i] = rdata.Null
		}
	}
	l := rdata.NewList(items...)
	l.Names = names(dn)
	return l
}

// ---------------------------------------------------------------------------
// Containers
// ---------------------------------------------------------------------------

func (b *builder) list(v *engine.Value, m mode) rdata.Object {
	if b.structOnly() && len(v.Items) > b.c.opts.MaxListLength {
		l := rdata.NewStructList(int64(len(v.Items)))
		l.Class = explicitClass(v, m)
		l.Names = names(v)
		return l
	}
	items := make([]rdata.Object, len(v.Items))
	for i, x := range v.Items {
		if b.interrupted() {
			break
		}
		items[i] = b.build(x, modeDefault)
	}
	l := rdata.NewList(items...)
	l.Class = explicitClass(v, m)
	l.Names = names(v)
	l.Attrs = b.attributes(v, m)
	return l
}

// dataFrame returns nil when v does not hold equally long vector columns
// with matching row names; the caller then builds a plain list.
func (b *builder) dataFrame(v *engine.Value) rdata.Object {
	cols := make([]rdata.Object, len(v.Items))
	length := int64(-1)
	for i, x := range v.Items {
		if b.interrupted() {
			return nil
		}
		col := b.build(x, modeForce)
		if col == nil || (col.Type() != rdata.TypeVector && col.Type() != rdata.TypeFactor) {
			return nil
		}
		switch {
		case length < 0:
			length = col.Length()
		case length != col.Length():
			return nil
		}
		cols[i] = col
	}
	var rowNames rdata.Store
	if rn := v.Attr("row.names"); rn != nil && !b.structOnly() {
		rowNames = rdata.NewCharacterStore(engine.Strings(rn)...)
		if length >= 0 && int64(rowNames.Len()) != length {
			return nil
		}
	}
	df := rdata.NewDataFrame(engine.Strings(v.Attr("names")), cols, rowNames)
	df.Class = explicitClass(v, modeForce)
	return df
}

// environment returns nested environments as references unless environments
// are to be loaded. Large environments come without children.
func (b *builder) environment(v *engine.Value, m mode) rdata.Object {
	if b.depth > 1 && b.flags&item.DataLoadEnvironments == 0 {
		return &rdata.Reference{
			Handle:        b.preserve(v),
			DeclaredType:  rdata.TypeEnvironment,
			DeclaredClass: "environment",
		}
	}
	env := v.Env
	keys := env.Names(true, true)
	handle := b.preserve(v)
	if len(keys) > b.c.opts.MaxEnvLength {
		e := rdata.NewEnvironmentStub(env.ID, handle, int64(len(keys)))
		e.Class = explicitClass(v, m)
		return e
	}
	items := make([]rdata.Object, len(keys))
	for i, k := range keys {
		if b.interrupted() {
			break
		}
		if x, ok := env.Get(k); ok {
			items[i] = b.build(x, modeDefault)
		} else {
			items[i] = rdata.Missing
		}
	}
	e := rdata.NewEnvironment(env.ID, handle, keys, items)
	e.Class = explicitClass(v, m)
	return e
}

// s4 enumerates the declared slots of the object's class; .Data maps to
// the primitive representation.
func (b *builder) s4(v *engine.Value) rdata.Object {
	class := explicitClass(v, modeForce)
	if def := b.c.in.S4ClassOf(v); def != nil {
		if slots := def.SlotNames(); len(slots) > 0 {
			values := make([]rdata.Object, len(slots))
			for i, name := range slots {
				if b.interrupted() {
					break
				}
				if name == rdata.DataSlotName {
					values[i] = b.build(v, modeDataSlot)
					continue
				}
				if x := v.Attr(name); x != nil {
					values[i] = b.build(x, modeForce)
				} else {
					values[i] = rdata.Missing
				}
			}
			return &rdata.S4{Class: class, SlotNames: slots, SlotValues: values}
		}
	}
	if v.Kind != engine.S4Kind {
		if data := b.build(v, modeDataSlot); data != nil {
			if class == "" {
				class = data.ClassName()
			}
			return &rdata.S4{Class: class, SlotNames: []string{rdata.DataSlotName}, SlotValues: []rdata.Object{data}}
		}
	}
	if class == "" {
		class = "S4"
	}
	return &rdata.S4{Class: class}
}

func (b *builder) language(v *engine.Value, m mode) rdata.Object {
	l := &rdata.Language{Class: explicitClass(v, m)}
	switch v.Kind {
	case engine.SymKind:
		l.Kind = rdata.LangName
		l.Class = ""
		if !b.structOnly() {
			l.Source = v.Name
		}
		return l
	case engine.ExprKind:
		l.Kind = rdata.LangExpression
	default:
		l.Kind = rdata.LangCall
	}
	if !b.structOnly() {
		l.Source = engine.Deparse(v)
	}
	return l
}

// functionHeader renders the signature of a function, e.g.
// "function (x, y = 2) ".
func functionHeader(v *engine.Value) string {
	if v.Kind != engine.CloKind {
		return "function (...) "
	}
	var sb strings.Builder
	sb.WriteString("function (")
	for i, f := range v.Clo.Formals {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(f.Name)
		if f.Default != nil && !f.Default.IsMissingArg() {
			sb.WriteString(" = ")
			sb.WriteString(engine.Deparse(f.Default))
		}
	}
	sb.WriteString(") ")
	return sb.String()
}
