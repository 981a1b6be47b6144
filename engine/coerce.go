package engine

import (
	"math"
	"math/cmplx"
	"strconv"
	"strings"
)

// rank orders atomic kinds for implicit coercion.
func rank(k Kind) int {
	switch k {
	case NilKind:
		return 0
	case RawKind:
		return 1
	case LglKind:
		return 2
	case IntKind:
		return 3
	case RealKind:
		return 4
	case CplxKind:
		return 5
	case StrKind:
		return 6
	case ListKind:
		return 7
	case ExprKind:
		return 8
	}
	return 7
}

// commonKind returns the kind c() would produce for vs.
func commonKind(vs []*Value) Kind {
	best := NilKind
	for _, v := range vs {
		k := v.Kind
		if isFactor(v) {
			k = StrKind
		}
		if !v.IsVector() && k != NilKind {
			k = ListKind
		}
		if rank(k) > rank(best) {
			best = k
		}
	}
	return best
}

// Coerce converts an atomic vector or list to kind, dropping attributes
// other than names. Factors convert through their labels.
func Coerce(v *Value, kind Kind) *Value {
	if isFactor(v) && kind != IntKind {
		v = factorLabels(v)
	}
	n := v.Len()
	out := &Value{Kind: kind}
	switch kind {
	case LglKind:
		out.Lgl = make([]int32, n)
		for i := range out.Lgl {
			out.Lgl[i] = lglAt(v, i)
		}
	case IntKind:
		out.Int = make([]int32, n)
		for i := range out.Int {
			out.Int[i] = intAt(v, i)
		}
	case RealKind:
		out.Real = make([]float64, n)
		for i := range out.Real {
			out.Real[i] = realAt(v, i)
		}
	case CplxKind:
		out.Cplx = make([]complex128, n)
		for i := range out.Cplx {
			out.Cplx[i] = cplxAt(v, i)
		}
	case StrKind:
		out.Str = make([]string, n)
		for i := range out.Str {
			out.Str[i] = strAt(v, i)
		}
	case RawKind:
		out.Raw = make([]byte, n)
		for i := range out.Raw {
			x := intAt(v, i)
			if x < 0 || x > 255 {
				x = 0
			}
			out.Raw[i] = byte(x)
		}
	case ListKind, ExprKind:
		out.Items = make([]*Value, n)
		for i := range out.Items {
			out.Items[i] = elementAt(v, i)
		}
	default:
		return v
	}
	if names := v.Attr("names"); names != nil {
		out.SetAttr("names", names)
	}
	return out
}

func lglAt(v *Value, i int) int32 {
	switch v.Kind {
	case LglKind:
		return v.Lgl[i]
	case IntKind:
		if v.Int[i] == NAInt {
			return NALogical
		}
		return boolLgl(v.Int[i] != 0)
	case RealKind:
		if math.IsNaN(v.Real[i]) {
			return NALogical
		}
		return boolLgl(v.Real[i] != 0)
	case CplxKind:
		if v.IsNA(i) {
			return NALogical
		}
		return boolLgl(v.Cplx[i] != 0)
	case StrKind:
		switch v.Str[i] {
		case "TRUE", "true", "T", "True":
			return 1
		case "FALSE", "false", "F", "False":
			return 0
		}
		return NALogical
	case RawKind:
		return boolLgl(v.Raw[i] != 0)
	case ListKind:
		if e := v.Items[i]; e.IsAtomic() && e.Len() == 1 {
			return lglAt(e, 0)
		}
	}
	return NALogical
}

func intAt(v *Value, i int) int32 {
	switch v.Kind {
	case LglKind:
		return v.Lgl[i]
	case IntKind:
		return v.Int[i]
	case RealKind:
		return realToInt(v.Real[i])
	case CplxKind:
		return realToInt(real(v.Cplx[i]))
	case StrKind:
		return realToInt(parseReal(v.Str[i]))
	case RawKind:
		return int32(v.Raw[i])
	case ListKind:
		if e := v.Items[i]; e.IsAtomic() && e.Len() == 1 {
			return intAt(e, 0)
		}
	}
	return NAInt
}

func realToInt(f float64) int32 {
	if math.IsNaN(f) || f >= math.MaxInt32+1 || f <= math.MinInt32 {
		return NAInt
	}
	return int32(f)
}

func realAt(v *Value, i int) float64 {
	switch v.Kind {
	case LglKind:
		if v.Lgl[i] == NALogical {
			return NAReal()
		}
		return float64(v.Lgl[i])
	case IntKind:
		if v.Int[i] == NAInt {
			return NAReal()
		}
		return float64(v.Int[i])
	case RealKind:
		return v.Real[i]
	case CplxKind:
		return real(v.Cplx[i])
	case StrKind:
		return parseReal(v.Str[i])
	case RawKind:
		return float64(v.Raw[i])
	case ListKind:
		if e := v.Items[i]; e.IsAtomic() && e.Len() == 1 {
			return realAt(e, 0)
		}
	}
	return NAReal()
}

func cplxAt(v *Value, i int) complex128 {
	switch v.Kind {
	case CplxKind:
		return v.Cplx[i]
	case StrKind:
		if c, err := strconv.ParseComplex(strings.TrimSpace(v.Str[i]), 128); err == nil {
			return c
		}
		return complex(NAReal(), 0)
	}
	f := realAt(v, i)
	return complex(f, 0)
}

func strAt(v *Value, i int) string {
	switch v.Kind {
	case LglKind:
		switch v.Lgl[i] {
		case NALogical:
			return NAString
		case 0:
			return "FALSE"
		}
		return "TRUE"
	case IntKind:
		if v.Int[i] == NAInt {
			return NAString
		}
		return strconv.Itoa(int(v.Int[i]))
	case RealKind:
		if IsNAReal(v.Real[i]) {
			return NAString
		}
		return FormatNumber(v.Real[i], 15)
	case CplxKind:
		if v.IsNA(i) {
			return NAString
		}
		return formatComplex(v.Cplx[i], 15)
	case StrKind:
		return v.Str[i]
	case RawKind:
		return strconv.FormatUint(uint64(v.Raw[i])|0x100, 16)[1:]
	case ListKind:
		e := v.Items[i]
		if e.IsAtomic() && e.Len() == 1 {
			return strAt(e, 0)
		}
		return Deparse(e)
	case SymKind:
		return v.Name
	}
	return Deparse(v)
}

// parseReal converts text the way as.numeric does; failures give NA.
func parseReal(s string) float64 {
	if s == NAString {
		return NAReal()
	}
	t := strings.TrimSpace(s)
	switch t {
	case "NA":
		return NAReal()
	case "Inf", "inf":
		return math.Inf(1)
	case "-Inf", "-inf":
		return math.Inf(-1)
	case "NaN":
		return math.NaN()
	}
	if strings.HasPrefix(t, "0x") || strings.HasPrefix(t, "0X") {
		if u, err := strconv.ParseUint(t[2:], 16, 64); err == nil {
			return float64(u)
		}
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return NAReal()
	}
	return f
}

// FormatNumber renders f with at most digits significant digits, choosing
// fixed or scientific notation by width.
func FormatNumber(f float64, digits int) string {
	switch {
	case IsNAReal(f):
		return "NA"
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	}
	sig, exp := significance(f, digits)
	fixed := strconv.FormatFloat(f, 'f', max(0, sig-1-exp), 64)
	sci := sciString(f, sig)
	if len(fixed) <= len(sci) {
		return fixed
	}
	return sci
}

// significance returns the number of significant digits needed to show f
// with at most digits digits, and its decimal exponent.
func significance(f float64, digits int) (sig, exp int) {
	if f == 0 {
		return 1, 0
	}
	s := strconv.FormatFloat(f, 'e', digits-1, 64)
	mant, ex, _ := strings.Cut(s, "e")
	exp, _ = strconv.Atoi(ex)
	mant = strings.TrimLeft(mant, "-")
	mant = strings.Replace(mant, ".", "", 1)
	mant = strings.TrimRight(mant, "0")
	if mant == "" {
		return 1, exp
	}
	return len(mant), exp
}

func sciString(f float64, sig int) string {
	s := strconv.FormatFloat(f, 'e', sig-1, 64)
	mant, ex, _ := strings.Cut(s, "e")
	sign := ex[0]
	digits := strings.TrimLeft(ex[1:], "0")
	for len(digits) < 2 {
		digits = "0" + digits
	}
	return mant + "e" + string(sign) + digits
}

func formatComplex(c complex128, digits int) string {
	if cmplx.IsNaN(c) {
		return "NA"
	}
	re := FormatNumber(real(c), digits)
	im := imag(c)
	sign := "+"
	if im < 0 || (im == 0 && math.Signbit(im)) {
		sign = "-"
		im = -im
	}
	return re + sign + FormatNumber(im, digits) + "i"
}

// elementAt returns element i as a length-one vector, or the list item.
func elementAt(v *Value, i int) *Value {
	switch v.Kind {
	case LglKind:
		return Lgl(v.Lgl[i])
	case IntKind:
		return Int(v.Int[i])
	case RealKind:
		return Real(v.Real[i])
	case CplxKind:
		return Cplx(v.Cplx[i])
	case StrKind:
		return Str(v.Str[i])
	case RawKind:
		return RawBytes(v.Raw[i])
	case ListKind, ExprKind:
		return v.Items[i]
	case LangKind:
		if i == 0 {
			return v.Fn
		}
		return v.Items[i-1]
	}
	return v
}

// asLogicalVector coerces v for use as a condition; nil when impossible.
func asLogicalVector(v *Value) *Value {
	if v.Kind == LglKind {
		return v
	}
	if !v.IsAtomic() {
		return nil
	}
	return Coerce(v, LglKind)
}

func asIntScalar(v *Value) (int, bool) {
	if !v.IsAtomic() || v.Len() == 0 || v.Kind == StrKind {
		return 0, false
	}
	x := intAt(v, 0)
	if x == NAInt {
		return 0, false
	}
	return int(x), true
}

func asFloatScalar(v *Value) (float64, bool) {
	if !v.IsAtomic() || v.Len() == 0 {
		return 0, false
	}
	f := realAt(v, 0)
	return f, !IsNAReal(f)
}

func asStringScalar(v *Value) (string, bool) {
	if v.Kind == SymKind {
		return v.Name, true
	}
	if !v.IsAtomic() || v.Len() == 0 {
		return "", false
	}
	s := strAt(v, 0)
	return s, s != NAString
}

func asBool(v *Value, def bool) bool {
	if v == nil || !v.IsAtomic() || v.Len() == 0 {
		return def
	}
	l := lglAt(v, 0)
	if l == NALogical {
		return def
	}
	return l != 0
}

// Strings returns the character rendering of every element of v.
func Strings(v *Value) []string {
	if v.Kind == StrKind {
		return v.Str
	}
	return Coerce(v, StrKind).Str
}

// Floats returns v as doubles.
func Floats(v *Value) []float64 {
	if v.Kind == RealKind {
		return v.Real
	}
	return Coerce(v, RealKind).Real
}

func ints(v *Value) []int32 {
	if v.Kind == IntKind {
		return v.Int
	}
	return Coerce(v, IntKind).Int
}

func isFactor(v *Value) bool {
	return v.Kind == IntKind && v.Inherits("factor")
}

// factorLabels maps factor codes to their level strings.
func factorLabels(v *Value) *Value {
	var levels []string
	if l := v.Attr("levels"); l != nil && l.Kind == StrKind {
		levels = l.Str
	}
	out := make([]string, len(v.Int))
	for i, code := range v.Int {
		if code == NAInt || int(code) < 1 || int(code) > len(levels) {
			out[i] = NAString
		} else {
			out[i] = levels[code-1]
		}
	}
	res := Str(out...)
	if names := v.Attr("names"); names != nil {
		res.SetAttr("names", names)
	}
	return res
}
