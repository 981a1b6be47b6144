package engine

import (
	"math"
	"math/cmplx"
	"sort"
	"strings"
)

func (in *Interp) installArith() {
	for _, op := range []string{"+", "-", "*", "/", "^", "%%", "%/%"} {
		op := op
		in.def(op, func(in *Interp, c *CallCtx) (*Value, error) {
			if len(c.Args) == 1 {
				return unaryArith(c, op, c.Args[0])
			}
			if err := c.arity(2); err != nil {
				return nil, err
			}
			return in.arith(c, op, c.Args[0], c.Args[1])
		})
	}
	for _, op := range []string{"==", "!=", "<", ">", "<=", ">="} {
		op := op
		in.def(op, func(in *Interp, c *CallCtx) (*Value, error) {
			if err := c.arity(2); err != nil {
				return nil, err
			}
			return compare(c, op, c.Args[0], c.Args[1])
		})
	}
	for _, op := range []string{"&", "|"} {
		op := op
		in.def(op, func(in *Interp, c *CallCtx) (*Value, error) {
			if err := c.arity(2); err != nil {
				return nil, err
			}
			return logical(c, op, c.Args[0], c.Args[1])
		})
	}
	in.def("!", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		x := c.Args[0]
		if !x.IsAtomic() || x.Kind == StrKind {
			return nil, c.errorf("invalid argument type")
		}
		l := Coerce(x, LglKind)
		for i, v := range l.Lgl {
			if v != NALogical {
				l.Lgl[i] = 1 - v
			}
		}
		keepAttrs(l, x)
		return l, nil
	})
	in.defSpecial("&&", func(in *Interp, c *CallCtx) (*Value, error) { return in.scalarLogic(c, true) })
	in.defSpecial("||", func(in *Interp, c *CallCtx) (*Value, error) { return in.scalarLogic(c, false) })
	in.def("xor", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := logical(c, "|", c.Args[0], c.Args[1])
		if err != nil {
			return nil, err
		}
		b, _ := logical(c, "&", c.Args[0], c.Args[1])
		for i := range a.Lgl {
			if a.Lgl[i] != NALogical && b.Lgl[i] != NALogical {
				a.Lgl[i] = boolLgl(a.Lgl[i] == 1 && b.Lgl[i] == 0)
			}
		}
		return a, nil
	})

	for name, fn := range map[string]func(float64) float64{
		"sqrt": math.Sqrt, "exp": math.Exp, "abs": math.Abs, "floor": math.Floor,
		"ceiling": math.Ceil, "trunc": math.Trunc, "sin": math.Sin, "cos": math.Cos,
		"tan": math.Tan, "log2": math.Log2, "log10": math.Log10, "log1p": math.Log1p,
	} {
		name, fn := name, fn
		in.def(name, func(in *Interp, c *CallCtx) (*Value, error) {
			if err := c.arity(1); err != nil {
				return nil, err
			}
			return in.mathFn(c, name, c.Args[0], fn)
		})
	}
	in.def("log", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "base")
		if err != nil {
			return nil, err
		}
		if a[0] == nil {
			return nil, c.errorf("argument \"x\" is missing, with no default")
		}
		base := math.E
		if a[1] != nil {
			base, _ = asFloatScalar(a[1])
		}
		return in.mathFn(c, "log", a[0], func(x float64) float64 { return math.Log(x) / math.Log(base) })
	})
	in.def("round", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "digits")
		if err != nil {
			return nil, err
		}
		digits := 0
		if a[1] != nil {
			digits, _ = asIntScalar(a[1])
		}
		p := math.Pow(10, float64(digits))
		return in.mathFn(c, "round", a[0], func(x float64) float64 { return math.RoundToEven(x*p) / p })
	})
	in.def("signif", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "digits")
		if err != nil {
			return nil, err
		}
		digits := 6
		if a[1] != nil {
			digits, _ = asIntScalar(a[1])
		}
		return in.mathFn(c, "signif", a[0], func(x float64) float64 {
			if x == 0 || math.IsInf(x, 0) || math.IsNaN(x) {
				return x
			}
			p := math.Pow(10, float64(digits)-math.Ceil(math.Log10(math.Abs(x))))
			return math.Round(x*p) / p
		})
	})

	in.def("sum", func(in *Interp, c *CallCtx) (*Value, error) { return summary(c, "sum") })
	in.def("prod", func(in *Interp, c *CallCtx) (*Value, error) { return summary(c, "prod") })
	in.def("max", func(in *Interp, c *CallCtx) (*Value, error) { return summary(c, "max") })
	in.def("min", func(in *Interp, c *CallCtx) (*Value, error) { return summary(c, "min") })
	in.def("range", func(in *Interp, c *CallCtx) (*Value, error) {
		lo, err := summary(c, "min")
		if err != nil {
			return nil, err
		}
		hi, err := summary(c, "max")
		if err != nil {
			return nil, err
		}
		return combine([]*Value{lo, hi}), nil
	})
	in.def("any", func(in *Interp, c *CallCtx) (*Value, error) { return anyAll(c, true) })
	in.def("all", func(in *Interp, c *CallCtx) (*Value, error) { return anyAll(c, false) })
	in.def("mean", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "...", "na.rm")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || !(a[0].Kind == LglKind || a[0].Kind == IntKind || a[0].Kind == RealKind) {
			return Real(NAReal()), in.warn(c.Call, "argument is not numeric or logical: returning NA")
		}
		naRm := asBool(a[2], false)
		sum, n := 0.0, 0
		for _, f := range Floats(a[0]) {
			if math.IsNaN(f) {
				if naRm {
					continue
				}
				return Real(f), nil
			}
			sum += f
			n++
		}
		if n == 0 {
			return Real(math.NaN()), nil
		}
		return Real(sum / float64(n)), nil
	})
	in.def("cumsum", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		x := c.Args[0]
		if x.Kind == IntKind || x.Kind == LglKind {
			out := make([]int32, x.Len())
			var acc int64
			na := false
			for i, v := range ints(x) {
				if na || v == NAInt {
					na = true
					out[i] = NAInt
					continue
				}
				acc += int64(v)
				if acc > math.MaxInt32 || acc < -math.MaxInt32 {
					na = true
					out[i] = NAInt
					continue
				}
				out[i] = int32(acc)
			}
			return Int(out...), nil
		}
		fs := Floats(x)
		out := make([]float64, len(fs))
		acc := 0.0
		for i, f := range fs {
			acc += f
			out[i] = acc
		}
		return Real(out...), nil
	})
	in.def("Re", func(in *Interp, c *CallCtx) (*Value, error) {
		return complexPart(c, func(z complex128) float64 { return real(z) })
	})
	in.def("Im", func(in *Interp, c *CallCtx) (*Value, error) {
		return complexPart(c, func(z complex128) float64 { return imag(z) })
	})
	in.def("Mod", func(in *Interp, c *CallCtx) (*Value, error) { return complexPart(c, cmplx.Abs) })
	in.def("sort", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "decreasing")
		if err != nil {
			return nil, err
		}
		x := a[0]
		order := orderOf(x, asBool(a[1], false))
		return subsetVector(dropAttrs(x), order), nil
	})
	in.def("order", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "decreasing")
		if err != nil {
			return nil, err
		}
		idx := orderOf(a[0], asBool(a[1], false))
		out := make([]int32, len(idx))
		for i, j := range idx {
			out[i] = int32(j + 1)
		}
		return Int(out...), nil
	})
}

func dropAttrs(v *Value) *Value {
	c := v.Copy()
	c.Attrs = nil
	return c
}

// orderOf returns the indexes sorting x, NAs removed.
func orderOf(x *Value, decreasing bool) []int {
	var idx []int
	for i := 0; i < x.Len(); i++ {
		if !x.IsNA(i) {
			idx = append(idx, i)
		}
	}
	less := func(a, b int) bool {
		if x.Kind == StrKind {
			return x.Str[a] < x.Str[b]
		}
		return realAt(x, a) < realAt(x, b)
	}
	sort.SliceStable(idx, func(i, j int) bool {
		if decreasing {
			return less(idx[j], idx[i])
		}
		return less(idx[i], idx[j])
	})
	return idx
}

func complexPart(c *CallCtx, f func(complex128) float64) (*Value, error) {
	if err := c.arity(1); err != nil {
		return nil, err
	}
	z := Coerce(c.Args[0], CplxKind)
	out := make([]float64, len(z.Cplx))
	for i, v := range z.Cplx {
		out[i] = f(v)
	}
	return Real(out...), nil
}

// keepAttrs copies the attributes of the longer (or only) operand.
func keepAttrs(dst *Value, srcs ...*Value) {
	for _, s := range srcs {
		if s.Len() == dst.Len() && len(s.Attrs) > 0 {
			for _, a := range s.Attrs {
				if dst.Attr(a.Name) == nil {
					dst.SetAttr(a.Name, a.Value)
				}
			}
		}
	}
}

func isNumeric(v *Value) bool {
	switch v.Kind {
	case LglKind, IntKind, RealKind, CplxKind:
		return !isFactor(v)
	}
	return false
}

func unaryArith(c *CallCtx, op string, x *Value) (*Value, error) {
	if !isNumeric(x) {
		return nil, c.errorf("invalid argument to unary operator")
	}
	if op == "+" {
		if x.Kind == LglKind {
			return Coerce(x, IntKind), nil
		}
		return x, nil
	}
	if op != "-" {
		return nil, c.errorf("invalid unary operator")
	}
	var out *Value
	switch x.Kind {
	case LglKind, IntKind:
		out = Coerce(x, IntKind)
		for i, v := range out.Int {
			if v != NAInt {
				out.Int[i] = -v
			}
		}
	case RealKind:
		out = x.Copy()
		for i, v := range out.Real {
			out.Real[i] = -v
		}
		return out, nil
	case CplxKind:
		out = x.Copy()
		for i, v := range out.Cplx {
			out.Cplx[i] = -v
		}
		return out, nil
	}
	keepAttrs(out, x)
	return out, nil
}

func (in *Interp) arith(c *CallCtx, op string, x, y *Value) (*Value, error) {
	if !isNumeric(x) && x.Kind != NilKind || !isNumeric(y) && y.Kind != NilKind {
		return nil, c.errorf("non-numeric argument to binary operator")
	}
	nx, ny := x.Len(), y.Len()
	n := max(nx, ny)
	if nx == 0 || ny == 0 {
		n = 0
	}
	if n > 0 && n%nx != 0 || n > 0 && n%ny != 0 {
		if err := in.warn(c.Call, "longer object length is not a multiple of shorter object length"); err != nil {
			return nil, err
		}
	}
	kind := RealKind
	switch {
	case x.Kind == CplxKind || y.Kind == CplxKind:
		kind = CplxKind
	case (x.Kind == IntKind || x.Kind == LglKind || x.Kind == NilKind) &&
		(y.Kind == IntKind || y.Kind == LglKind || y.Kind == NilKind) &&
		op != "/" && op != "^":
		kind = IntKind
	}
	var out *Value
	switch kind {
	case CplxKind:
		out = &Value{Kind: CplxKind, Cplx: make([]complex128, n)}
		for i := range out.Cplx {
			out.Cplx[i] = cplxOp(op, cplxAt(x, i%nx), cplxAt(y, i%ny))
		}
	case IntKind:
		out = &Value{Kind: IntKind, Int: make([]int32, n)}
		overflow := false
		for i := range out.Int {
			r, ok := intOp(op, intAt(x, i%nx), intAt(y, i%ny))
			if !ok {
				overflow = true
			}
			out.Int[i] = r
		}
		if overflow {
			if err := in.warn(c.Call, "NAs produced by integer overflow"); err != nil {
				return nil, err
			}
		}
	default:
		out = &Value{Kind: RealKind, Real: make([]float64, n)}
		for i := range out.Real {
			out.Real[i] = realOp(op, realAt(x, i%nx), realAt(y, i%ny))
		}
	}
	if nx >= ny {
		keepAttrs(out, x, y)
	} else {
		keepAttrs(out, y, x)
	}
	return out, nil
}

func realOp(op string, a, b float64) float64 {
	if IsNAReal(a) || IsNAReal(b) {
		if op == "^" && (a == 1 || b == 0) {
			return 1
		}
		return NAReal()
	}
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	case "^":
		return math.Pow(a, b)
	case "%%":
		if b == 0 {
			return math.NaN()
		}
		m := math.Mod(a, b)
		if m != 0 && (m < 0) != (b < 0) {
			m += b
		}
		return m
	case "%/%":
		return math.Floor(a / b)
	}
	return math.NaN()
}

func intOp(op string, a, b int32) (int32, bool) {
	if a == NAInt || b == NAInt {
		return NAInt, true
	}
	var r int64
	x, y := int64(a), int64(b)
	switch op {
	case "+":
		r = x + y
	case "-":
		r = x - y
	case "*":
		r = x * y
	case "%%":
		if y == 0 {
			return NAInt, true
		}
		r = x % y
		if r != 0 && (r < 0) != (y < 0) {
			r += y
		}
	case "%/%":
		if y == 0 {
			return NAInt, true
		}
		r = int64(math.Floor(float64(x) / float64(y)))
	}
	if r > math.MaxInt32 || r <= math.MinInt32 {
		return NAInt, false
	}
	return int32(r), true
}

func cplxOp(op string, a, b complex128) complex128 {
	switch op {
	case "+":
		return a + b
	case "-":
		return a - b
	case "*":
		return a * b
	case "/":
		return a / b
	case "^":
		return cmplx.Pow(a, b)
	}
	return cmplx.NaN()
}

func (in *Interp) mathFn(c *CallCtx, name string, x *Value, fn func(float64) float64) (*Value, error) {
	if !isNumeric(x) {
		return nil, c.errorf("non-numeric argument to mathematical function")
	}
	if name == "abs" && (x.Kind == IntKind || x.Kind == LglKind) {
		out := Coerce(x, IntKind)
		for i, v := range out.Int {
			if v < 0 && v != NAInt {
				out.Int[i] = -v
			}
		}
		keepAttrs(out, x)
		return out, nil
	}
	fs := Floats(x)
	out := &Value{Kind: RealKind, Real: make([]float64, len(fs))}
	nan := false
	for i, f := range fs {
		if IsNAReal(f) {
			out.Real[i] = f
			continue
		}
		out.Real[i] = fn(f)
		if math.IsNaN(out.Real[i]) && !math.IsNaN(f) {
			nan = true
		}
	}
	keepAttrs(out, x)
	if nan {
		if err := in.warn(c.Call, "NaNs produced"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func compare(c *CallCtx, op string, x, y *Value) (*Value, error) {
	if isFactor(x) {
		x = factorLabels(x)
	}
	if isFactor(y) {
		y = factorLabels(y)
	}
	if x.Kind == SymKind {
		x = Str(x.Name)
	}
	if y.Kind == SymKind {
		y = Str(y.Name)
	}
	if !(x.IsAtomic() || x.Kind == NilKind) || !(y.IsAtomic() || y.Kind == NilKind) {
		return nil, c.errorf("comparison (%s) is possible only for atomic and list types", op)
	}
	nx, ny := x.Len(), y.Len()
	n := max(nx, ny)
	if nx == 0 || ny == 0 {
		return &Value{Kind: LglKind, Lgl: []int32{}}, nil
	}
	out := &Value{Kind: LglKind, Lgl: make([]int32, n)}
	useStr := x.Kind == StrKind || y.Kind == StrKind
	useCplx := x.Kind == CplxKind || y.Kind == CplxKind
	for i := range out.Lgl {
		xi, yi := i%nx, i%ny
		if x.IsNA(xi) || y.IsNA(yi) {
			out.Lgl[i] = NALogical
			continue
		}
		var cmp int
		switch {
		case useStr:
			cmp = strings.Compare(strAt(x, xi), strAt(y, yi))
		case useCplx:
			if op != "==" && op != "!=" {
				return nil, c.errorf("invalid comparison with complex values")
			}
			if cplxAt(x, xi) != cplxAt(y, yi) {
				cmp = 1
			}
		default:
			a, b := realAt(x, xi), realAt(y, yi)
			if math.IsNaN(a) || math.IsNaN(b) {
				out.Lgl[i] = NALogical
				continue
			}
			switch {
			case a < b:
				cmp = -1
			case a > b:
				cmp = 1
			}
		}
		var r bool
		switch op {
		case "==":
			r = cmp == 0
		case "!=":
			r = cmp != 0
		case "<":
			r = cmp < 0
		case ">":
			r = cmp > 0
		case "<=":
			r = cmp <= 0
		case ">=":
			r = cmp >= 0
		}
		out.Lgl[i] = boolLgl(r)
	}
	if nx >= ny {
		keepAttrs(out, x, y)
	} else {
		keepAttrs(out, y, x)
	}
	return out, nil
}

func logical(c *CallCtx, op string, x, y *Value) (*Value, error) {
	if !(x.IsAtomic() || x.Kind == NilKind) || !(y.IsAtomic() || y.Kind == NilKind) || x.Kind == StrKind || y.Kind == StrKind {
		return nil, c.errorf("operations are possible only for numeric, logical or complex types")
	}
	nx, ny := x.Len(), y.Len()
	if nx == 0 || ny == 0 {
		return &Value{Kind: LglKind, Lgl: []int32{}}, nil
	}
	n := max(nx, ny)
	out := &Value{Kind: LglKind, Lgl: make([]int32, n)}
	for i := range out.Lgl {
		out.Lgl[i] = logicOp(op == "&", lglAt(x, i%nx), lglAt(y, i%ny))
	}
	return out, nil
}

func logicOp(and bool, a, b int32) int32 {
	if and {
		switch {
		case a == 0 || b == 0:
			return 0
		case a == NALogical || b == NALogical:
			return NALogical
		}
		return 1
	}
	switch {
	case a == 1 || b == 1:
		return 1
	case a == NALogical || b == NALogical:
		return NALogical
	}
	return 0
}

func (in *Interp) scalarLogic(c *CallCtx, and bool) (*Value, error) {
	scalar := func(e *Value) (int32, error) {
		v, err := in.Eval(e, c.Env)
		if err != nil {
			return 0, err
		}
		if v.Len() != 1 || !v.IsAtomic() || v.Kind == StrKind {
			return 0, c.errorf("invalid 'x' type in 'x %s y'", map[bool]string{true: "&&", false: "||"}[and])
		}
		return lglAt(v, 0), nil
	}
	a, err := scalar(c.Args[0])
	if err != nil {
		return nil, err
	}
	if and && a == 0 || !and && a == 1 {
		return Lgl(a), nil
	}
	b, err := scalar(c.Args[1])
	if err != nil {
		return nil, err
	}
	return Lgl(logicOp(and, a, b)), nil
}

// summary implements sum, prod, min and max over all arguments.
func summary(c *CallCtx, op string) (*Value, error) {
	naRm := false
	var vals []*Value
	for i, a := range c.Args {
		if c.Names[i] == "na.rm" {
			naRm = asBool(a, false)
			continue
		}
		if isFactor(a) || !(a.IsAtomic() || a.Kind == NilKind) || a.Kind == RawKind {
			return nil, c.errorf("invalid 'type' (%s) of argument", a.Kind)
		}
		vals = append(vals, a)
	}
	kind := IntKind
	for _, v := range vals {
		switch v.Kind {
		case RealKind:
			if kind == IntKind {
				kind = RealKind
			}
		case CplxKind:
			kind = CplxKind
		case StrKind:
			if op == "sum" || op == "prod" {
				return nil, c.errorf("invalid 'type' (character) of argument")
			}
			kind = StrKind
		}
	}
	if op == "prod" && kind == IntKind {
		kind = RealKind
	}
	switch kind {
	case StrKind:
		best, found := "", false
		for _, v := range vals {
			for i, s := range Strings(v) {
				if v.IsNA(i) {
					if naRm {
						continue
					}
					return Str(NAString), nil
				}
				if !found || (op == "max" && s > best) || (op == "min" && s < best) {
					best, found = s, true
				}
			}
		}
		if !found {
			return nil, c.errorf("no non-missing arguments to %s", op)
		}
		return Str(best), nil
	case CplxKind:
		var acc complex128
		if op == "prod" {
			acc = 1
		}
		for _, v := range vals {
			for _, z := range Coerce(v, CplxKind).Cplx {
				if op == "prod" {
					acc *= z
				} else {
					acc += z
				}
			}
		}
		return Cplx(acc), nil
	case IntKind:
		if op == "sum" {
			var acc int64
			for _, v := range vals {
				for _, x := range ints(v) {
					if x == NAInt {
						if naRm {
							continue
						}
						return Int(NAInt), nil
					}
					acc += int64(x)
				}
			}
			if acc > math.MaxInt32 || acc < -math.MaxInt32 {
				return Int(NAInt), nil
			}
			return Int(int32(acc)), nil
		}
		var best int32
		found := false
		for _, v := range vals {
			for _, x := range ints(v) {
				if x == NAInt {
					if naRm {
						continue
					}
					return Int(NAInt), nil
				}
				if !found || (op == "max" && x > best) || (op == "min" && x < best) {
					best, found = x, true
				}
			}
		}
		if !found {
			if op == "max" {
				return Real(math.Inf(-1)), nil
			}
			return Real(math.Inf(1)), nil
		}
		return Int(best), nil
	}
	var acc float64
	switch op {
	case "prod":
		acc = 1
	case "max":
		acc = math.Inf(-1)
	case "min":
		acc = math.Inf(1)
	}
	for _, v := range vals {
		for _, f := range Floats(v) {
			if math.IsNaN(f) {
				if naRm {
					continue
				}
				return Real(f), nil
			}
			switch op {
			case "sum":
				acc += f
			case "prod":
				acc *= f
			case "max":
				acc = math.Max(acc, f)
			case "min":
				acc = math.Min(acc, f)
			}
		}
	}
	return Real(acc), nil
}

func anyAll(c *CallCtx, wantAny bool) (*Value, error) {
	naRm := false
	sawNA := false
	for i, a := range c.Args {
		if c.Names[i] == "na.rm" {
			naRm = asBool(a, false)
			continue
		}
		if !(a.IsAtomic() || a.Kind == NilKind) || a.Kind == StrKind {
			return nil, c.errorf("invalid 'type' (%s) of argument", a.Kind)
		}
		for j := 0; j < a.Len(); j++ {
			switch lglAt(a, j) {
			case NALogical:
				sawNA = true
			case 1:
				if wantAny {
					return Lgl(1), nil
				}
			case 0:
				if !wantAny {
					return Lgl(0), nil
				}
			}
		}
	}
	if sawNA && !naRm {
		return Lgl(NALogical), nil
	}
	return Bool(!wantAny), nil
}
