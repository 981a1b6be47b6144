package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

func (in *Interp) installVectors() {
	in.def("c", func(in *Interp, c *CallCtx) (*Value, error) {
		args, names := c.Args, c.Names
		var vals []*Value
		var tags []string
		for i, a := range args {
			if names[i] == "recursive" || names[i] == "use.names" {
				continue
			}
			vals = append(vals, a)
			tags = append(tags, names[i])
		}
		return combineNamed(vals, tags), nil
	})
	in.def("list", func(in *Interp, c *CallCtx) (*Value, error) {
		items := append([]*Value(nil), c.Args...)
		for i, it := range items {
			if it.IsMissingArg() {
				items[i] = Null
			}
		}
		if hasNames(c.Names) {
			return NamedList(append([]string(nil), c.Names...), items), nil
		}
		return List(items...), nil
	})
	in.def("vector", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("mode", "length")
		if err != nil {
			return nil, err
		}
		mode := "logical"
		if a[0] != nil {
			mode, _ = asStringScalar(a[0])
		}
		n := 0
		if a[1] != nil {
			n, _ = asIntScalar(a[1])
		}
		return makeVector(c, mode, n)
	})
	for _, mode := range []string{"logical", "integer", "numeric", "double", "character", "complex", "raw"} {
		mode := mode
		in.def(mode, func(in *Interp, c *CallCtx) (*Value, error) {
			n := 0
			if len(c.Args) > 0 {
				n, _ = asIntScalar(c.Args[0])
			}
			return makeVector(c, mode, n)
		})
	}
	in.def("length", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		x := c.Args[0]
		if isDataFrame(x) {
			return Int(int32(len(x.Items))), nil
		}
		return Int(int32(x.Len())), nil
	})
	in.def(":", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(2); err != nil {
			return nil, err
		}
		from, ok1 := asFloatScalar(c.Args[0])
		to, ok2 := asFloatScalar(c.Args[1])
		if !ok1 || !ok2 || math.IsNaN(from) || math.IsNaN(to) {
			return nil, c.errorf("NA/NaN argument")
		}
		return seqBy(from, to, 1), nil
	})
	in.def("seq_len", func(in *Interp, c *CallCtx) (*Value, error) {
		n, ok := asIntScalar(c.Args[0])
		if !ok || n < 0 {
			return nil, c.errorf("argument of length 0")
		}
		return intRange(n), nil
	})
	in.def("seq_along", func(in *Interp, c *CallCtx) (*Value, error) {
		return intRange(c.Args[0].Len()), nil
	})
	in.def("seq", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("from", "to", "by", "length.out")
		if err != nil {
			return nil, err
		}
		from, to := 1.0, 1.0
		if a[0] != nil {
			from, _ = asFloatScalar(a[0])
		}
		if a[1] != nil {
			to, _ = asFloatScalar(a[1])
		} else if a[0] != nil && a[2] == nil && a[3] == nil {
			return intRange(int(from)), nil
		}
		switch {
		case a[3] != nil:
			n, _ := asIntScalar(a[3])
			if n == 1 {
				return Real(from), nil
			}
			if a[1] == nil && a[2] != nil {
				by, _ := asFloatScalar(a[2])
				to = from + by*float64(n-1)
			}
			out := make([]float64, n)
			for i := range out {
				out[i] = from + (to-from)*float64(i)/float64(n-1)
			}
			return Real(out...), nil
		case a[2] != nil:
			by, _ := asFloatScalar(a[2])
			if by == 0 || (to-from)/by < 0 {
				return nil, c.errorf("wrong sign in 'by' argument")
			}
			v := seqBy(from, to, by)
			if a[2].Kind == RealKind && v.Kind == IntKind {
				return Coerce(v, RealKind), nil
			}
			return v, nil
		}
		return seqBy(from, to, 1), nil
	})
	in.def("rep", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "times", "each", "length.out")
		if err != nil {
			return nil, err
		}
		x := a[0]
		if x == nil {
			return Null, nil
		}
		each := 1
		if a[2] != nil {
			each, _ = asIntScalar(a[2])
		}
		var idx []int
		for i := 0; i < x.Len(); i++ {
			for j := 0; j < each; j++ {
				idx = append(idx, i)
			}
		}
		if a[1] != nil {
			if a[1].Len() == len(idx) && len(idx) > 1 {
				var out []int
				for i, t := range ints(a[1]) {
					for j := int32(0); j < t; j++ {
						out = append(out, idx[i])
					}
				}
				idx = out
			} else {
				times, _ := asIntScalar(a[1])
				base := idx
				idx = nil
				for t := 0; t < times; t++ {
					idx = append(idx, base...)
				}
			}
		}
		if a[3] != nil && len(idx) > 0 {
			n, _ := asIntScalar(a[3])
			out := make([]int, n)
			for i := range out {
				out[i] = idx[i%len(idx)]
			}
			idx = out
		}
		res := subsetVector(dropAttrs(x), idx)
		if isFactor(x) {
			res.SetAttr("levels", x.Attr("levels"))
			res.SetAttr("class", x.Attr("class"))
		}
		return res, nil
	})
	in.def("rev", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		idx := make([]int, x.Len())
		for i := range idx {
			idx[i] = len(idx) - 1 - i
		}
		res := subsetVector(dropAttrs(x), idx)
		if names := x.Names(); names != nil {
			res.SetAttr("names", subsetVector(Str(names...), idx))
		}
		return res, nil
	})
	in.def("which", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		if x.Kind != LglKind {
			return nil, c.errorf("argument to 'which' is not logical")
		}
		out := []int32{}
		var names []string
		xn := x.Names()
		for i, v := range x.Lgl {
			if v == 1 {
				out = append(out, int32(i+1))
				if xn != nil {
					names = append(names, xn[i])
				}
			}
		}
		res := Int(out...)
		if xn != nil {
			res.SetAttr("names", Str(names...))
		}
		return res, nil
	})
	in.def("is.na", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		out := make([]int32, x.Len())
		for i := range out {
			switch {
			case x.IsAtomic():
				out[i] = boolLgl(x.IsNA(i))
			case x.Kind == ListKind:
				e := x.Items[i]
				out[i] = boolLgl(e.IsAtomic() && e.Len() == 1 && e.IsNA(0))
			}
		}
		res := Lgl(out...)
		for _, k := range []string{"names", "dim", "dimnames"} {
			res.SetAttr(k, x.Attr(k))
		}
		return res, nil
	})
	in.def("unique", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		seen := map[string]bool{}
		var idx []int
		for i := 0; i < x.Len(); i++ {
			k := keyOf(x, i)
			if !seen[k] {
				seen[k] = true
				idx = append(idx, i)
			}
		}
		res := subsetVector(dropAttrs(x), idx)
		if isFactor(x) {
			res.SetAttr("levels", x.Attr("levels"))
			res.SetAttr("class", x.Attr("class"))
		}
		return res, nil
	})
	in.def("match", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "table", "nomatch")
		if err != nil {
			return nil, err
		}
		nomatch := NAInt
		if a[2] != nil {
			nomatch = intAt(a[2], 0)
		}
		return matchValues(a[0], a[1], nomatch), nil
	})
	in.def("%in%", func(in *Interp, c *CallCtx) (*Value, error) {
		m := matchValues(c.Args[0], c.Args[1], 0)
		out := make([]int32, len(m.Int))
		for i, v := range m.Int {
			out[i] = boolLgl(v > 0)
		}
		return Lgl(out...), nil
	})
	in.def("identical", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) < 2 {
			return nil, c.errorf("argument \"y\" is missing, with no default")
		}
		return Bool(Identical(c.Args[0], c.Args[1])), nil
	})
	in.def("unlist", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		if x.Kind != ListKind {
			return x, nil
		}
		var leaves []*Value
		var tags []string
		flatten(x, "", &leaves, &tags)
		return combineNamed(leaves, tags), nil
	})
	in.def("lapply", func(in *Interp, c *CallCtx) (*Value, error) {
		return in.apply(c, false)
	})
	in.def("sapply", func(in *Interp, c *CallCtx) (*Value, error) {
		return in.apply(c, true)
	})
	in.def("do.call", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("what", "args", "envir")
		if err != nil {
			return nil, err
		}
		fn := a[0]
		if fn == nil {
			return nil, c.errorf("argument \"what\" is missing, with no default")
		}
		if fn.Kind == StrKind {
			if fn, err = in.findFun(fn.Str[0], c.Env); err != nil {
				return nil, err
			}
		}
		var args []*Value
		var names []string
		if a[1] != nil {
			l := Coerce(a[1], ListKind)
			args = l.Items
			names = make([]string, len(args))
			if n := a[1].Names(); n != nil {
				copy(names, n)
			}
		}
		return in.Call(fn, args, names, c.Env)
	})

	in.def("paste", func(in *Interp, c *CallCtx) (*Value, error) { return paste(c, " ") })
	in.def("paste0", func(in *Interp, c *CallCtx) (*Value, error) { return paste(c, "") })
	in.def("nchar", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		s := Strings(x)
		out := make([]int32, len(s))
		for i, v := range s {
			if v == NAString {
				out[i] = 2
				continue
			}
			out[i] = int32(len([]rune(v)))
		}
		res := Int(out...)
		res.SetAttr("names", x.Attr("names"))
		return res, nil
	})
	in.def("toupper", func(in *Interp, c *CallCtx) (*Value, error) { return mapStrings(c, strings.ToUpper) })
	in.def("tolower", func(in *Interp, c *CallCtx) (*Value, error) { return mapStrings(c, strings.ToLower) })
	in.def("trimws", func(in *Interp, c *CallCtx) (*Value, error) { return mapStrings(c, strings.TrimSpace) })
	in.def("substr", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "start", "stop")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || a[1] == nil || a[2] == nil {
			return nil, c.errorf("argument missing, with no default")
		}
		start, _ := asIntScalar(a[1])
		stop, _ := asIntScalar(a[2])
		return mapStrings(&CallCtx{Args: []*Value{a[0]}}, func(s string) string {
			r := []rune(s)
			lo, hi := max(start, 1)-1, min(stop, len(r))
			if lo >= hi {
				return ""
			}
			return string(r[lo:hi])
		})
	})
	in.def("strsplit", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "split", "fixed")
		if err != nil {
			return nil, err
		}
		sep, _ := asStringScalar(a[1])
		var items []*Value
		for _, s := range Strings(a[0]) {
			if sep == "" {
				items = append(items, Str(splitRunes(s)...))
			} else {
				items = append(items, Str(strings.Split(s, sep)...))
			}
		}
		return List(items...), nil
	})
	in.def("sprintf", func(in *Interp, c *CallCtx) (*Value, error) { return sprintf(c) })
	in.def("format", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "...", "nsmall", "width")
		if err != nil {
			return nil, err
		}
		x := a[0]
		if x == nil {
			return nil, c.errorf("argument \"x\" is missing, with no default")
		}
		if !x.IsAtomic() {
			return Str(strings.TrimRight(in.Format(x), "\n")), nil
		}
		if isFactor(x) {
			x = factorLabels(x)
		}
		var out []string
		if x.Kind == RealKind && a[2] != nil {
			nsmall, _ := asIntScalar(a[2])
			out = formatReals(x.Real, 7, nsmall)
		} else {
			out = formatElements(x, false)
		}
		w := 0
		if a[3] != nil {
			w, _ = asIntScalar(a[3])
		}
		for _, o := range out {
			w = max(w, displayWidth(o))
		}
		out = padAll(out, w, x.Kind != StrKind)
		res := Str(out...)
		res.SetAttr("names", x.Attr("names"))
		res.SetAttr("dim", x.Attr("dim"))
		return res, nil
	})
	in.def("toString", func(in *Interp, c *CallCtx) (*Value, error) {
		return Str(strings.Join(Strings(c.Args[0]), ", ")), nil
	})

	in.def("factor", builtinFactor)
	in.def("matrix", builtinMatrix)
	in.def("array", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("data", "dim", "dimnames")
		if err != nil {
			return nil, err
		}
		data := a[0]
		if data == nil {
			data = Lgl(NALogical)
		}
		dim := Int(int32(data.Len()))
		if a[1] != nil {
			dim = Coerce(a[1], IntKind)
		}
		n := 1
		for _, d := range dim.Int {
			n *= int(d)
		}
		res := recycle(dropAttrs(data), n)
		res.SetAttr("dim", dim)
		if a[2] != nil {
			res.SetAttr("dimnames", a[2])
		}
		return res, nil
	})
	in.def("t", func(in *Interp, c *CallCtx) (*Value, error) {
		x := c.Args[0]
		nr, nc, ok := matrixDims(x)
		if !ok {
			nr, nc = 1, x.Len()
			idx := make([]int, nc)
			for i := range idx {
				idx[i] = i
			}
			res := subsetVector(dropAttrs(x), idx)
			res.SetAttr("dim", Int(1, int32(nc)))
			if names := x.Attr("names"); names != nil {
				res.SetAttr("dimnames", List(Null, names))
			}
			return res, nil
		}
		idx := make([]int, 0, nr*nc)
		for i := 0; i < nr; i++ {
			for j := 0; j < nc; j++ {
				idx = append(idx, i+j*nr)
			}
		}
		res := subsetVector(dropAttrs(x), idx)
		res.SetAttr("dim", Int(int32(nc), int32(nr)))
		if dn := x.Attr("dimnames"); dn != nil && dn.Kind == ListKind && len(dn.Items) == 2 {
			res.SetAttr("dimnames", List(dn.Items[1], dn.Items[0]))
		}
		return res, nil
	})
	in.def("nrow", func(in *Interp, c *CallCtx) (*Value, error) {
		return dimPart(c.Args[0], 0), nil
	})
	in.def("ncol", func(in *Interp, c *CallCtx) (*Value, error) {
		return dimPart(c.Args[0], 1), nil
	})
	in.def("data.frame", builtinDataFrame)

	in.def("typeof", func(in *Interp, c *CallCtx) (*Value, error) {
		return Str(c.Args[0].Kind.String()), nil
	})
	in.def("mode", func(in *Interp, c *CallCtx) (*Value, error) {
		switch k := c.Args[0].Kind; k {
		case IntKind, RealKind:
			return Str("numeric"), nil
		case CloKind, BuiltinKind:
			return Str("function"), nil
		case SymKind:
			return Str("name"), nil
		case LangKind:
			return Str("call"), nil
		default:
			return Str(k.String()), nil
		}
	})
	for name, kind := range map[string]Kind{
		"as.logical": LglKind, "as.integer": IntKind, "as.numeric": RealKind,
		"as.double": RealKind, "as.character": StrKind, "as.complex": CplxKind,
		"as.raw": RawKind, "as.list": ListKind,
	} {
		kind := kind
		in.def(name, func(in *Interp, c *CallCtx) (*Value, error) {
			if len(c.Args) == 0 {
				return makeVector(c, kind.String(), 0)
			}
			return in.asKind(c, c.Args[0], kind)
		})
	}
	in.def("as.vector", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "mode")
		if err != nil {
			return nil, err
		}
		mode := "any"
		if a[1] != nil {
			mode, _ = asStringScalar(a[1])
		}
		x := a[0]
		if mode == "any" {
			if x.Kind == ListKind {
				return x, nil
			}
			if isFactor(x) {
				return factorLabels(x), nil
			}
			res := dropAttrs(x)
			if x.Attr("dim") == nil {
				res.SetAttr("names", x.Attr("names"))
			}
			return res, nil
		}
		kind, ok := modeKinds[mode]
		if !ok {
			return nil, c.errorf("vector: cannot make a vector of mode '%s'", mode)
		}
		return in.asKind(c, x, kind)
	})
	typeChecks := map[string]func(*Value) bool{
		"is.null":        func(v *Value) bool { return v.Kind == NilKind },
		"is.logical":     func(v *Value) bool { return v.Kind == LglKind },
		"is.integer":     func(v *Value) bool { return v.Kind == IntKind },
		"is.double":      func(v *Value) bool { return v.Kind == RealKind },
		"is.complex":     func(v *Value) bool { return v.Kind == CplxKind },
		"is.character":   func(v *Value) bool { return v.Kind == StrKind },
		"is.raw":         func(v *Value) bool { return v.Kind == RawKind },
		"is.numeric":     func(v *Value) bool { return (v.Kind == IntKind || v.Kind == RealKind) && !isFactor(v) },
		"is.list":        func(v *Value) bool { return v.Kind == ListKind },
		"is.function":    func(v *Value) bool { return v.Kind == CloKind || v.Kind == BuiltinKind },
		"is.environment": func(v *Value) bool { return v.Kind == EnvKind },
		"is.symbol":      func(v *Value) bool { return v.Kind == SymKind },
		"is.name":        func(v *Value) bool { return v.Kind == SymKind },
		"is.call":        func(v *Value) bool { return v.Kind == LangKind },
		"is.expression":  func(v *Value) bool { return v.Kind == ExprKind },
		"is.atomic":      func(v *Value) bool { return v.IsAtomic() },
		"is.factor":      isFactor,
		"is.data.frame":  isDataFrame,
		"is.matrix":      func(v *Value) bool { d := v.Attr("dim"); return d != nil && d.Len() == 2 },
		"is.array":       func(v *Value) bool { return v.Attr("dim") != nil },
		"is.vector": func(v *Value) bool {
			if !v.IsVector() {
				return false
			}
			for _, a := range v.Attrs {
				if a.Name != "names" {
					return false
				}
			}
			return true
		},
	}
	for name, check := range typeChecks {
		check := check
		in.def(name, func(in *Interp, c *CallCtx) (*Value, error) {
			if len(c.Args) == 0 {
				return nil, c.errorf("argument \"x\" is missing, with no default")
			}
			return Bool(check(c.Args[0])), nil
		})
	}
}

var modeKinds = map[string]Kind{
	"logical": LglKind, "integer": IntKind, "numeric": RealKind, "double": RealKind,
	"complex": CplxKind, "character": StrKind, "raw": RawKind, "list": ListKind,
	"expression": ExprKind,
}

func (in *Interp) asKind(c *CallCtx, x *Value, kind Kind) (*Value, error) {
	if kind == ListKind {
		switch x.Kind {
		case ListKind:
			return x, nil
		case EnvKind:
			names := x.Env.Names(true, true)
			items := make([]*Value, len(names))
			for i, n := range names {
				v, _ := x.Env.Get(n)
				fv, err := in.Force(v)
				if err != nil {
					return nil, err
				}
				items[i] = fv
			}
			return NamedList(names, items), nil
		case NilKind:
			return List(), nil
		}
		if !x.IsAtomic() {
			return List(x), nil
		}
		return Coerce(x, ListKind), nil
	}
	if x.Kind == SymKind && kind == StrKind {
		return Str(x.Name), nil
	}
	if x.Kind == NilKind {
		return makeVector(c, kind.String(), 0)
	}
	if !x.IsVector() {
		return nil, c.errorf("cannot coerce type '%s' to vector of type '%s'", x.Kind, kind)
	}
	res := Coerce(x, kind)
	res.SetAttr("names", nil)
	introduced := false
	if x.Kind == StrKind && (kind == RealKind || kind == IntKind) {
		for i, s := range x.Str {
			if s != NAString && res.IsNA(i) && strings.TrimSpace(s) != "NA" {
				introduced = true
			}
		}
	}
	if introduced {
		if err := in.warn(c.Call, "NAs introduced by coercion"); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func makeVector(c *CallCtx, mode string, n int) (*Value, error) {
	if n < 0 {
		return nil, c.errorf("invalid 'length' argument")
	}
	switch mode {
	case "logical":
		return &Value{Kind: LglKind, Lgl: make([]int32, n)}, nil
	case "integer":
		return &Value{Kind: IntKind, Int: make([]int32, n)}, nil
	case "numeric", "double":
		return &Value{Kind: RealKind, Real: make([]float64, n)}, nil
	case "complex":
		return &Value{Kind: CplxKind, Cplx: make([]complex128, n)}, nil
	case "character":
		return &Value{Kind: StrKind, Str: make([]string, n)}, nil
	case "raw":
		return &Value{Kind: RawKind, Raw: make([]byte, n)}, nil
	case "list":
		items := make([]*Value, n)
		for i := range items {
			items[i] = Null
		}
		return &Value{Kind: ListKind, Items: items}, nil
	}
	return nil, c.errorf("vector: cannot make a vector of mode '%s'", mode)
}

func hasNames(names []string) bool {
	for _, n := range names {
		if n != "" {
			return true
		}
	}
	return false
}

func intRange(n int) *Value {
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(i + 1)
	}
	return Int(out...)
}

// seqBy builds from, from+by, ... up to to; integer valued when possible.
func seqBy(from, to, by float64) *Value {
	if to < from && by > 0 {
		by = -by
	}
	n := int(math.Floor((to-from)/by+1e-10)) + 1
	if n < 0 {
		n = 0
	}
	integral := from == math.Trunc(from) && by == math.Trunc(by) &&
		math.Abs(from) <= math.MaxInt32 && math.Abs(from+by*float64(n)) <= math.MaxInt32
	if integral {
		out := make([]int32, n)
		for i := range out {
			out[i] = int32(from + by*float64(i))
		}
		return Int(out...)
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = from + by*float64(i)
	}
	return Real(out...)
}

// combineNamed implements c(): the result kind is the highest of the inputs,
// names come from tags and element names.
func combineNamed(vals []*Value, tags []string) *Value {
	kind := commonKind(vals)
	if kind == NilKind {
		return Null
	}
	out := &Value{Kind: kind}
	var names []string
	named := false
	for i, v := range vals {
		tag := ""
		if i < len(tags) {
			tag = tags[i]
		}
		if v.Kind == NilKind {
			continue
		}
		src := v
		if isFactor(v) {
			src = factorLabels(v)
		}
		var part *Value
		switch {
		case kind == ListKind && !v.IsVector():
			part = List(v)
		case kind == ListKind && v.Kind == ListKind:
			part = v
		default:
			part = Coerce(src, kind)
		}
		n := part.Len()
		vn := v.Names()
		for j := 0; j < n; j++ {
			name := ""
			switch {
			case tag != "" && vn != nil && vn[j] != "":
				name = tag + "." + vn[j]
			case tag != "" && n == 1:
				name = tag
			case tag != "":
				name = tag + strconv.Itoa(j+1)
			case vn != nil:
				name = vn[j]
			}
			if name != "" {
				named = true
			}
			names = append(names, name)
		}
		switch kind {
		case LglKind:
			out.Lgl = append(out.Lgl, part.Lgl...)
		case IntKind:
			out.Int = append(out.Int, part.Int...)
		case RealKind:
			out.Real = append(out.Real, part.Real...)
		case CplxKind:
			out.Cplx = append(out.Cplx, part.Cplx...)
		case StrKind:
			out.Str = append(out.Str, part.Str...)
		case RawKind:
			out.Raw = append(out.Raw, part.Raw...)
		case ListKind, ExprKind:
			out.Items = append(out.Items, part.Items...)
		}
	}
	if named {
		out.SetAttr("names", Str(names...))
	}
	return out
}

func combine(vals []*Value) *Value { return combineNamed(vals, nil) }

func flatten(v *Value, prefix string, leaves *[]*Value, tags *[]string) {
	names := v.Names()
	for i, it := range v.Items {
		name := prefix
		if names != nil && names[i] != "" {
			if prefix != "" {
				name = prefix + "." + names[i]
			} else {
				name = names[i]
			}
		}
		if it.Kind == ListKind {
			flatten(it, name, leaves, tags)
			continue
		}
		*leaves = append(*leaves, it)
		*tags = append(*tags, name)
	}
}

// keyOf returns a hashable rendering of element i for unique and match.
func keyOf(v *Value, i int) string {
	if v.Kind == ListKind {
		return Deparse(v.Items[i])
	}
	if isFactor(v) {
		return strAt(factorLabels(v), i)
	}
	return v.Kind.String()[:1] + strAt(v, i)
}

func matchValues(x, table *Value, nomatch int32) *Value {
	if isFactor(x) {
		x = factorLabels(x)
	}
	if isFactor(table) {
		table = factorLabels(table)
	}
	pos := map[string]int32{}
	ts := Strings(table)
	for i := len(ts) - 1; i >= 0; i-- {
		pos[ts[i]] = int32(i + 1)
	}
	xs := Strings(x)
	out := make([]int32, len(xs))
	for i, s := range xs {
		if p, ok := pos[s]; ok {
			out[i] = p
		} else {
			out[i] = nomatch
		}
	}
	return Int(out...)
}

// Identical compares two values deeply, attributes included.
func Identical(a, b *Value) bool {
	if a == b {
		return true
	}
	if a.Kind != b.Kind || a.S4 != b.S4 || len(a.Attrs) != len(b.Attrs) {
		return false
	}
	for _, at := range a.Attrs {
		bv := b.Attr(at.Name)
		if bv == nil || !Identical(at.Value, bv) {
			return false
		}
	}
	switch a.Kind {
	case NilKind:
		return true
	case SymKind:
		return a.Name == b.Name
	case LglKind:
		return equalSlices(a.Lgl, b.Lgl)
	case IntKind:
		return equalSlices(a.Int, b.Int)
	case RealKind:
		if len(a.Real) != len(b.Real) {
			return false
		}
		for i := range a.Real {
			x, y := a.Real[i], b.Real[i]
			if x != y && !(math.IsNaN(x) && math.IsNaN(y) && IsNAReal(x) == IsNAReal(y)) {
				return false
			}
		}
		return true
	case CplxKind:
		return equalSlices(a.Cplx, b.Cplx)
	case StrKind:
		return equalSlices(a.Str, b.Str)
	case RawKind:
		return equalSlices(a.Raw, b.Raw)
	case ListKind, ExprKind:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Identical(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case LangKind:
		if !Identical(a.Fn, b.Fn) || len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Identical(a.Items[i], b.Items[i]) || tagAt(a.Tags, i) != tagAt(b.Tags, i) {
				return false
			}
		}
		return true
	case EnvKind:
		return a.Env == b.Env
	case CloKind:
		return a.Clo == b.Clo
	case BuiltinKind:
		return a.Builtin == b.Builtin
	}
	return false
}

func equalSlices[T comparable](a, b []T) bool {
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

func (in *Interp) apply(c *CallCtx, simplify bool) (*Value, error) {
	a, err := c.Match("X", "FUN", "...")
	if err != nil {
		return nil, err
	}
	if a[0] == nil || a[1] == nil {
		return nil, c.errorf("argument missing, with no default")
	}
	x, fn := a[0], a[1]
	if fn.Kind == StrKind {
		if fn, err = in.findFun(fn.Str[0], c.Env); err != nil {
			return nil, err
		}
	}
	extra, extraNames := c.Dots()
	if x.Kind == EnvKind {
		if x, err = in.asKind(c, x, ListKind); err != nil {
			return nil, err
		}
	}
	n := x.Len()
	results := make([]*Value, n)
	for i := 0; i < n; i++ {
		args := append([]*Value{elementAt(x, i)}, extra...)
		names := append([]string{""}, extraNames...)
		r, err := in.Call(fn, args, names, c.Env)
		if err != nil {
			return nil, err
		}
		results[i] = r
	}
	names := x.Names()
	if simplify && x.Kind == StrKind && names == nil {
		names = x.Str
	}
	if simplify && n > 0 {
		same := true
		for _, r := range results {
			if !r.IsAtomic() || r.Len() != results[0].Len() {
				same = false
				break
			}
		}
		if same && results[0].Len() == 1 {
			res := combine(results)
			if names != nil {
				res.SetAttr("names", Str(names...))
			}
			return res, nil
		}
		if same && results[0].Len() > 1 {
			res := dropAttrs(combine(results))
			res.SetAttr("dim", Int(int32(results[0].Len()), int32(n)))
			if names != nil {
				res.SetAttr("dimnames", List(Null, Str(names...)))
			}
			return res, nil
		}
	}
	if names != nil {
		return NamedList(append([]string(nil), names...), results), nil
	}
	return List(results...), nil
}

func paste(c *CallCtx, sep string) (*Value, error) {
	var collapse *string
	var parts [][]string
	n := 0
	for i, a := range c.Args {
		switch c.Names[i] {
		case "sep":
			sep, _ = asStringScalar(a)
			continue
		case "collapse":
			if a.Kind != NilKind {
				s, _ := asStringScalar(a)
				collapse = &s
			}
			continue
		}
		if a.Len() == 0 {
			continue
		}
		var strs []string
		switch {
		case isFactor(a):
			strs = factorLabels(a).Str
		case a.Kind == SymKind:
			strs = []string{a.Name}
		case a.IsVector():
			strs = Strings(a)
		default:
			strs = []string{Deparse(a)}
		}
		for j, s := range strs {
			if s == NAString {
				strs[j] = "NA"
			}
		}
		parts = append(parts, strs)
		n = max(n, len(strs))
	}
	out := make([]string, n)
	for i := range out {
		elems := make([]string, len(parts))
		for j, p := range parts {
			elems[j] = p[i%len(p)]
		}
		out[i] = strings.Join(elems, sep)
	}
	if collapse != nil {
		return Str(strings.Join(out, *collapse)), nil
	}
	return Str(out...), nil
}

func mapStrings(c *CallCtx, f func(string) string) (*Value, error) {
	x := c.Args[0]
	s := Strings(x)
	out := make([]string, len(s))
	for i, v := range s {
		if v == NAString {
			out[i] = v
			continue
		}
		out[i] = f(v)
	}
	res := Str(out...)
	res.SetAttr("names", x.Attr("names"))
	return res, nil
}

func splitRunes(s string) []string {
	var out []string
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// sprintf formats vectorised arguments with C-style conversions.
func sprintf(c *CallCtx) (*Value, error) {
	if len(c.Args) == 0 {
		return nil, c.errorf("'fmt' argument missing")
	}
	fmtv := Strings(c.Args[0])
	args := c.Args[1:]
	n := len(fmtv)
	for _, a := range args {
		if a.Len() == 0 {
			return Str(), nil
		}
		n = max(n, a.Len())
	}
	out := make([]string, n)
	for i := range out {
		f := fmtv[i%len(fmtv)]
		var sb strings.Builder
		argi := 0
		for j := 0; j < len(f); j++ {
			if f[j] != '%' {
				sb.WriteByte(f[j])
				continue
			}
			if j+1 < len(f) && f[j+1] == '%' {
				sb.WriteByte('%')
				j++
				continue
			}
			k := j + 1
			for k < len(f) && strings.IndexByte("0123456789.-+ #", f[k]) >= 0 {
				k++
			}
			if k >= len(f) {
				return nil, c.errorf("unrecognised format specification '%s'", f[j:])
			}
			if argi >= len(args) {
				return nil, c.errorf("too few arguments")
			}
			spec, verb := f[j:k], f[k]
			arg := args[argi]
			idx := i % arg.Len()
			argi++
			switch verb {
			case 'd', 'i':
				x := realAt(arg, idx)
				if arg.Kind == StrKind || x != math.Trunc(x) {
					return nil, c.errorf("invalid format '%s'; use format %%f, %%e, %%g or %%a for numeric objects", f[j:k+1])
				}
				if arg.IsNA(idx) {
					sb.WriteString(fmt.Sprintf(spec+"s", "NA"))
				} else {
					sb.WriteString(fmt.Sprintf(spec+"d", int64(x)))
				}
			case 'f', 'e', 'E', 'g', 'G':
				if arg.Kind == StrKind {
					return nil, c.errorf("invalid format '%s'; use format %%s for character objects", f[j:k+1])
				}
				x := realAt(arg, idx)
				if IsNAReal(x) {
					sb.WriteString(fmt.Sprintf(spec+"s", "NA"))
				} else {
					sb.WriteString(fmt.Sprintf(spec+string(verb), x))
				}
			case 'x', 'X', 'o':
				sb.WriteString(fmt.Sprintf(spec+string(verb), int64(realAt(arg, idx))))
			case 's':
				s := strAt(arg, idx)
				if isFactor(arg) {
					s = factorLabels(arg).Str[idx]
				}
				if s == NAString {
					s = "NA"
				}
				if arg.Kind == RealKind && !arg.IsNA(idx) {
					s = FormatNumber(arg.Real[idx], 15)
				}
				sb.WriteString(fmt.Sprintf(spec+"s", s))
			default:
				return nil, c.errorf("unrecognised format specification '%s'", f[j:k+1])
			}
			j = k
		}
		out[i] = sb.String()
	}
	return Str(out...), nil
}

func padAll(s []string, width int, right bool) []string {
	out := make([]string, len(s))
	for i, v := range s {
		out[i] = pad(v, width, right)
	}
	return out
}

func builtinFactor(in *Interp, c *CallCtx) (*Value, error) {
	a, err := c.Match("x", "levels", "labels", "exclude", "ordered")
	if err != nil {
		return nil, err
	}
	x := a[0]
	if x == nil {
		x = Str()
	}
	if isFactor(x) {
		x = factorLabels(x)
	}
	xs := Strings(x)
	var levels []string
	if a[1] != nil {
		levels = Strings(a[1])
	} else {
		idx := orderOf(x, false)
		seen := map[string]bool{}
		for _, i := range idx {
			if !seen[xs[i]] {
				seen[xs[i]] = true
				levels = append(levels, xs[i])
			}
		}
	}
	pos := map[string]int32{}
	for i, l := range levels {
		pos[l] = int32(i + 1)
	}
	codes := make([]int32, len(xs))
	for i, s := range xs {
		if p, ok := pos[s]; ok && s != NAString {
			codes[i] = p
		} else {
			codes[i] = NAInt
		}
	}
	labels := levels
	if a[2] != nil {
		labels = Strings(a[2])
		if len(labels) != len(levels) {
			return nil, c.errorf("invalid 'labels'; length %d should be 1 or %d", len(labels), len(levels))
		}
	}
	f := Int(codes...)
	f.SetAttr("levels", Str(append([]string(nil), labels...)...))
	if asBool(a[4], false) {
		f.SetAttr("class", Str("ordered", "factor"))
	} else {
		f.SetAttr("class", Str("factor"))
	}
	f.SetAttr("names", x.Attr("names"))
	return f, nil
}

func builtinMatrix(in *Interp, c *CallCtx) (*Value, error) {
	a, err := c.Match("data", "nrow", "ncol", "byrow", "dimnames")
	if err != nil {
		return nil, err
	}
	data := a[0]
	if data == nil {
		data = Lgl(NALogical)
	}
	n := data.Len()
	nr, nc := -1, -1
	if a[1] != nil {
		nr, _ = asIntScalar(a[1])
	}
	if a[2] != nil {
		nc, _ = asIntScalar(a[2])
	}
	switch {
	case nr < 0 && nc < 0:
		nr, nc = n, 1
	case nr < 0:
		nr = int(math.Ceil(float64(n) / float64(max(nc, 1))))
	case nc < 0:
		nc = int(math.Ceil(float64(n) / float64(max(nr, 1))))
	}
	total := nr * nc
	if n > 0 && total%n != 0 && n%max(total, 1) != 0 {
		if err := in.warn(c.Call, fmt.Sprintf("data length [%d] is not a sub-multiple or multiple of the number of rows [%d]", n, nr)); err != nil {
			return nil, err
		}
	}
	base := dropAttrs(data)
	var res *Value
	if asBool(a[3], false) {
		idx := make([]int, total)
		for i := 0; i < nr; i++ {
			for j := 0; j < nc; j++ {
				idx[i+j*nr] = (i*nc + j) % max(n, 1)
			}
		}
		res = subsetVector(base, idx)
	} else {
		res = recycle(base, total)
	}
	res.SetAttr("dim", Int(int32(nr), int32(nc)))
	if a[4] != nil && a[4].Kind == ListKind {
		res.SetAttr("dimnames", a[4])
	}
	return res, nil
}

// recycle repeats v to length n.
func recycle(v *Value, n int) *Value {
	if v.Len() == n {
		return v.Copy()
	}
	idx := make([]int, n)
	if l := v.Len(); l > 0 {
		for i := range idx {
			idx[i] = i % l
		}
	} else {
		for i := range idx {
			idx[i] = -1
		}
	}
	return subsetVector(v, idx)
}

func matrixDims(v *Value) (nr, nc int, ok bool) {
	d := v.Attr("dim")
	if d == nil || d.Len() != 2 {
		return 0, 0, false
	}
	di := ints(d)
	return int(di[0]), int(di[1]), true
}

func dimPart(v *Value, k int) *Value {
	if isDataFrame(v) {
		if k == 0 {
			return Int(int32(dataFrameRows(v)))
		}
		return Int(int32(len(v.Items)))
	}
	d := v.Attr("dim")
	if d == nil || d.Len() <= k {
		return Null
	}
	return Int(ints(d)[k])
}

func isDataFrame(v *Value) bool {
	return v.Kind == ListKind && v.Inherits("data.frame")
}

func dataFrameRows(v *Value) int {
	if rn := v.Attr("row.names"); rn != nil {
		if rn.Kind == IntKind && len(rn.Int) == 2 && rn.Int[0] == NAInt {
			n := int(rn.Int[1])
			if n < 0 {
				n = -n
			}
			return n
		}
		return rn.Len()
	}
	if len(v.Items) > 0 {
		return v.Items[0].Len()
	}
	return 0
}

func builtinDataFrame(in *Interp, c *CallCtx) (*Value, error) {
	var cols []*Value
	var names []string
	var rowNames *Value
	strAsFactors := false
	for i, a := range c.Args {
		switch c.Names[i] {
		case "row.names":
			rowNames = a
			continue
		case "stringsAsFactors":
			strAsFactors = asBool(a, false)
			continue
		case "check.names":
			continue
		}
		if isDataFrame(a) {
			cols = append(cols, a.Items...)
			names = append(names, a.Names()...)
			continue
		}
		if a.Kind == ListKind && !isDataFrame(a) {
			ln := a.Names()
			for j, it := range a.Items {
				cols = append(cols, it)
				if ln != nil && ln[j] != "" {
					names = append(names, ln[j])
				} else {
					names = append(names, fmt.Sprintf("V%d", len(names)+1))
				}
			}
			continue
		}
		name := c.Names[i]
		if name == "" {
			name = strings.Trim(Deparse(argExpr(c.Call.Items[min(i, len(c.Call.Items)-1)])), "`")
			if name == "" || strings.ContainsAny(name, "()[] ,") {
				name = fmt.Sprintf("V%d", len(names)+1)
			}
		}
		cols = append(cols, a)
		names = append(names, name)
	}
	rows := 0
	for _, col := range cols {
		rows = max(rows, col.Len())
	}
	for i, col := range cols {
		if col.Len() != rows {
			if col.Len() == 0 || rows%col.Len() != 0 {
				return nil, c.errorf("arguments imply differing number of rows: %d, %d", rows, col.Len())
			}
			attrs := col
			col = recycle(dropAttrs(col), rows)
			if isFactor(attrs) {
				col.SetAttr("levels", attrs.Attr("levels"))
				col.SetAttr("class", attrs.Attr("class"))
			}
		} else if col.Attr("names") != nil {
			col = col.Copy()
			col.SetAttr("names", nil)
		}
		if strAsFactors && col.Kind == StrKind {
			f, err := builtinFactor(in, &CallCtx{Call: c.Call, Args: []*Value{col}, Names: []string{""}})
			if err != nil {
				return nil, err
			}
			col = f
		}
		cols[i] = col
	}
	df := NamedList(names, cols)
	df.SetAttr("class", Str("data.frame"))
	if rowNames != nil && rowNames.Kind != NilKind {
		if rowNames.Len() != rows {
			return nil, c.errorf("row names supplied are of the wrong length")
		}
		df.SetAttr("row.names", Coerce(rowNames, StrKind))
	} else {
		df.SetAttr("row.names", intRange(rows))
	}
	return df, nil
}
