package engine

func (in *Interp) installAttributes() {
	in.def("attr", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "which", "exact")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || a[1] == nil {
			return nil, c.errorf("exactly 2 arguments are required")
		}
		name, ok := asStringScalar(a[1])
		if !ok {
			return nil, c.errorf("'which' must be of mode character")
		}
		return getAttr(a[0], name), nil
	})
	in.def("attr<-", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "which", "value")
		if err != nil {
			return nil, err
		}
		name, ok := asStringScalar(a[1])
		if !ok {
			return nil, c.errorf("'name' must be non-null character string")
		}
		return setAttr(c, a[0], name, orNull(a[2]))
	})
	in.def("attributes", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		if len(x.Attrs) == 0 && x.Kind != LangKind {
			return Null, nil
		}
		var names []string
		var items []*Value
		for _, at := range x.Attrs {
			names = append(names, at.Name)
			items = append(items, at.Value)
		}
		if len(names) == 0 {
			return Null, nil
		}
		return NamedList(names, items), nil
	})
	in.def("structure", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \".Data\" is missing, with no default")
		}
		x := c.Args[0]
		for i, v := range c.Args[1:] {
			name := c.Names[i+1]
			if name == ".Names" {
				name = "names"
			}
			var err error
			if x, err = setAttr(c, x, name, v); err != nil {
				return nil, err
			}
		}
		return x, nil
	})
	in.def("names", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		x := c.Args[0]
		switch x.Kind {
		case EnvKind:
			return Str(x.Env.Names(true, true)...), nil
		case LangKind:
			if !hasNames(x.Tags) {
				return Null, nil
			}
			return Str(append([]string{""}, x.Tags...)...), nil
		}
		if n := x.Attr("names"); n != nil {
			return n, nil
		}
		if d := x.Attr("dimnames"); d != nil && d.Kind == ListKind && len(d.Items) == 1 {
			return d.Items[0], nil
		}
		return Null, nil
	})
	in.def("names<-", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(2); err != nil {
			return nil, err
		}
		return setAttr(c, c.Args[0], "names", c.Args[1])
	})
	in.def("class", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		return Str(ImplicitClass(c.Args[0])...), nil
	})
	in.def("oldClass", func(in *Interp, c *CallCtx) (*Value, error) {
		return orNull(c.Args[0].Attr("class")), nil
	})
	in.def("class<-", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(2); err != nil {
			return nil, err
		}
		return setAttr(c, c.Args[0], "class", c.Args[1])
	})
	in.def("oldClass<-", func(in *Interp, c *CallCtx) (*Value, error) {
		return setAttr(c, c.Args[0], "class", c.Args[1])
	})
	in.def("unclass", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		if x.Attr("class") == nil {
			return x, nil
		}
		x = x.Copy()
		x.SetAttr("class", nil)
		return x, nil
	})
	in.def("inherits", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "what", "which")
		if err != nil {
			return nil, err
		}
		for _, w := range Strings(a[1]) {
			if a[0].Inherits(w) || in.s4Extends(a[0], w) {
				return Lgl(1), nil
			}
		}
		return Lgl(0), nil
	})
	in.def("dim", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		if isDataFrame(x) {
			return Int(int32(dataFrameRows(x)), int32(len(x.Items))), nil
		}
		return orNull(x.Attr("dim")), nil
	})
	in.def("dim<-", func(in *Interp, c *CallCtx) (*Value, error) {
		return setAttr(c, c.Args[0], "dim", c.Args[1])
	})
	in.def("dimnames", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		if isDataFrame(x) {
			return List(Coerce(orNull(x.Attr("row.names")), StrKind), Str(x.Names()...)), nil
		}
		return orNull(x.Attr("dimnames")), nil
	})
	in.def("dimnames<-", func(in *Interp, c *CallCtx) (*Value, error) {
		return setAttr(c, c.Args[0], "dimnames", c.Args[1])
	})
	in.def("levels", func(in *Interp, c *CallCtx) (*Value, error) {
		return orNull(c.Args[0].Attr("levels")), nil
	})
	in.def("levels<-", func(in *Interp, c *CallCtx) (*Value, error) {
		return setAttr(c, c.Args[0], "levels", c.Args[1])
	})
	in.def("nlevels", func(in *Interp, c *CallCtx) (*Value, error) {
		return Int(int32(orNull(c.Args[0].Attr("levels")).Len())), nil
	})
	in.def("rownames", func(in *Interp, c *CallCtx) (*Value, error) { return dimNamesPart(c.Args[0], 0), nil })
	in.def("colnames", func(in *Interp, c *CallCtx) (*Value, error) { return dimNamesPart(c.Args[0], 1), nil })
	in.def("row.names", func(in *Interp, c *CallCtx) (*Value, error) { return dimNamesPart(c.Args[0], 0), nil })
}

func orNull(v *Value) *Value {
	if v == nil {
		return Null
	}
	return v
}

func dimNamesPart(x *Value, k int) *Value {
	if isDataFrame(x) {
		if k == 0 {
			return Coerce(orNull(x.Attr("row.names")), StrKind)
		}
		return Str(x.Names()...)
	}
	d := x.Attr("dimnames")
	if d == nil || d.Kind != ListKind || len(d.Items) <= k {
		return Null
	}
	return d.Items[k]
}

// getAttr returns an attribute, expanding the compact row.names form.
func getAttr(x *Value, name string) *Value {
	if x.Kind == LangKind && name == "names" {
		if !hasNames(x.Tags) {
			return Null
		}
		return Str(append([]string{""}, x.Tags...)...)
	}
	v := x.Attr(name)
	if v == nil {
		return Null
	}
	if name == "row.names" && v.Kind == IntKind && len(v.Int) == 2 && v.Int[0] == NAInt {
		return intRange(dataFrameRows(x))
	}
	return v
}

// setAttr returns a copy of x with the attribute set after validating the
// special attributes.
func setAttr(c *CallCtx, x *Value, name string, val *Value) (*Value, error) {
	if x.Kind == NilKind {
		if val.Kind == NilKind {
			return Null, nil
		}
		x = List()
	}
	if x.Kind == EnvKind || x.Kind == SymKind {
		return nil, c.errorf("cannot set attribute on a %s", x.Kind)
	}
	x = x.Copy()
	if val.Kind == NilKind {
		if name == "names" && x.Kind == LangKind {
			x.Tags = make([]string, len(x.Items))
		}
		x.SetAttr(name, nil)
		return x, nil
	}
	switch name {
	case "names":
		names := Coerce(val, StrKind)
		if isFactor(val) {
			names = factorLabels(val)
		}
		n := x.Len()
		if x.Kind == LangKind {
			for i := range x.Items {
				if i+1 < len(names.Str) {
					x.Tags[i] = names.Str[i+1]
				}
			}
			return x, nil
		}
		if isDataFrame(x) {
			n = len(x.Items)
		}
		if len(names.Str) > n {
			return nil, c.errorf("'names' attribute [%d] must be the same length as the vector [%d]", len(names.Str), n)
		}
		out := make([]string, n)
		for i := range out {
			if i < len(names.Str) {
				out[i] = names.Str[i]
			} else {
				out[i] = NAString
			}
		}
		x.SetAttr("names", Str(out...))
		if d := x.Attr("dim"); d != nil && d.Len() == 1 {
			x.SetAttr("names", nil)
			x.SetAttr("dimnames", List(Str(out...)))
		}
	case "dim":
		if !isNumeric(val) {
			return nil, c.errorf("invalid second argument, must be vector or NULL")
		}
		dim := Coerce(val, IntKind)
		prod := 1
		for _, d := range dim.Int {
			if d == NAInt || d < 0 {
				return nil, c.errorf("the dims contain missing or negative values")
			}
			prod *= int(d)
		}
		if prod != x.Len() {
			return nil, c.errorf("dims [product %d] do not match the length of object [%d]", prod, x.Len())
		}
		x.SetAttr("names", nil)
		x.SetAttr("dimnames", nil)
		x.SetAttr("dim", dim)
	case "dimnames":
		dim := x.Attr("dim")
		if dim == nil {
			return nil, c.errorf("'dimnames' applied to non-array")
		}
		if val.Kind != ListKind || len(val.Items) != dim.Len() {
			return nil, c.errorf("length of 'dimnames' [%d] must match that of 'dims' [%d]", val.Len(), dim.Len())
		}
		dn := val.Copy()
		for i, it := range dn.Items {
			if it.Kind == NilKind {
				continue
			}
			if it.Len() != int(ints(dim)[i]) {
				return nil, c.errorf("length of 'dimnames' [%d] not equal to array extent", i+1)
			}
			dn.Items[i] = Coerce(it, StrKind)
		}
		x.SetAttr("dimnames", dn)
	case "class":
		cls := Coerce(val, StrKind)
		if cls.Len() == 0 {
			x.SetAttr("class", nil)
			return x, nil
		}
		if len(cls.Str) == 1 && !x.S4 {
			switch cls.Str[0] {
			case "numeric":
				x.SetAttr("class", nil)
				return Coerce(x, RealKind), nil
			case "matrix", "array":
				if x.Attr("dim") == nil {
					return nil, c.errorf("cannot set class to matrix unless the dimension attribute has length 2")
				}
				x.SetAttr("class", nil)
				return x, nil
			}
		}
		x.SetAttr("class", cls)
	case "levels":
		x.SetAttr("levels", Coerce(val, StrKind))
	default:
		x.SetAttr(name, val)
	}
	return x, nil
}
