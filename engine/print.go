package engine

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// printWidth is the console width used to wrap vectors.
const printWidth = 80

// PrintValue writes the printed form of v to the console, dispatching to a
// print.<class> closure when one is visible from env.
func (in *Interp) PrintValue(v *Value, env *Env) error {
	if v.Kind == S4Kind || v.S4 {
		if fn := in.s4Method("show", v); fn != nil {
			_, err := in.Call(fn, []*Value{v}, nil, env)
			in.visible = false
			return err
		}
	}
	for _, cl := range v.Class() {
		fn, err := in.findFun("print."+cl, env)
		if err != nil || fn.Kind != CloKind {
			continue
		}
		_, err = in.Call(fn, []*Value{v}, nil, env)
		in.visible = false
		return err
	}
	in.cb.WriteConsole(in.Format(v), false)
	return nil
}

// Format returns the printed form of v, newline terminated.
func (in *Interp) Format(v *Value) string {
	var sb strings.Builder
	in.format(&sb, v, "")
	return sb.String()
}

func (in *Interp) format(sb *strings.Builder, v *Value, prefix string) {
	switch {
	case v.Kind == NilKind:
		sb.WriteString("NULL\n")
	case v.Kind == S4Kind || v.S4:
		in.formatS4(sb, v)
		return
	case isFactor(v):
		formatFactor(sb, v)
	case isDataFrame(v):
		formatDataFrame(sb, v)
		return
	case v.Inherits("POSIXct"):
		out := make([]string, v.Len())
		for i := range out {
			f := realAt(v, i)
			out[i] = "NA"
			if !IsNAReal(f) {
				sec, frac := math.Modf(f)
				out[i] = time.Unix(int64(sec), int64(frac*1e9)).Format("2006-01-02 15:04:05 MST")
			}
		}
		formatVector(sb, Str(out...), true, nil)
	case v.Kind == ListKind || v.Kind == ExprKind:
		if d := v.Attr("dim"); d != nil && d.Len() == 2 {
			formatMatrix(sb, Coerce(v, StrKind), false)
			break
		}
		in.formatList(sb, v, prefix)
	case v.IsAtomic():
		if d := v.Attr("dim"); d != nil && d.Len() == 2 {
			formatMatrix(sb, v, true)
			break
		}
		formatVector(sb, v, true, v.Names())
	case v.Kind == EnvKind:
		sb.WriteString(envLabel(v.Env) + "\n")
	case v.Kind == CloKind:
		sb.WriteString(Deparse(v) + "\n")
		if v.Clo.Env != in.global && v.Clo.Env != in.base {
			sb.WriteString(envLabel(v.Clo.Env) + "\n")
		}
	case v.Kind == BuiltinKind:
		fmt.Fprintf(sb, "function (...) .Primitive(\"%s\")\n", v.Builtin.Name)
	case v.Kind == SymKind:
		sb.WriteString(v.Name + "\n")
	case v.Kind == LangKind:
		sb.WriteString(Deparse(v) + "\n")
	case v.Kind == PromKind:
		sb.WriteString("<promise>\n")
	case v.Kind == ExtPtrKind:
		sb.WriteString("<pointer>\n")
	default:
		sb.WriteString("<" + v.Kind.String() + ">\n")
	}
	in.formatAttrs(sb, v)
}

func envLabel(e *Env) string {
	if e.Name != "" {
		return "<environment: " + e.Name + ">"
	}
	return e.Label()
}

// formatAttrs prints attributes that have no dedicated display.
func (in *Interp) formatAttrs(sb *strings.Builder, v *Value) {
	for _, a := range v.Attrs {
		switch a.Name {
		case "names", "dim", "dimnames", "class", "levels", "row.names", "tsp", "comment":
			continue
		}
		if v.Kind == LangKind || v.Kind == CloKind {
			continue
		}
		fmt.Fprintf(sb, "attr(,\"%s\")\n", a.Name)
		in.format(sb, a.Value, "")
	}
}

func emptyVector(v *Value) string {
	switch v.Kind {
	case LglKind:
		return "logical(0)"
	case IntKind:
		return "integer(0)"
	case RealKind:
		return "numeric(0)"
	case CplxKind:
		return "complex(0)"
	case StrKind:
		return "character(0)"
	case RawKind:
		return "raw(0)"
	}
	return "list()"
}

// formatVector prints an atomic vector: wrapped rows prefixed by the index
// of their first element, or name/value column pairs when names are set.
func formatVector(sb *strings.Builder, v *Value, quote bool, names []string) {
	if v.Len() == 0 {
		if names != nil {
			sb.WriteString("named ")
		}
		sb.WriteString(emptyVector(v) + "\n")
		return
	}
	elems := formatElements(v, quote)
	if names != nil {
		formatNamed(sb, elems, names)
		return
	}
	width := 0
	for _, e := range elems {
		width = max(width, displayWidth(e))
	}
	right := v.Kind != StrKind || !quote
	labelWidth := len(fmt.Sprintf("[%d]", len(elems)))
	perLine := max(1, (printWidth-labelWidth)/(width+1))
	for i := 0; i < len(elems); i += perLine {
		label := fmt.Sprintf("[%d]", i+1)
		sb.WriteString(pad(label, labelWidth, true))
		for j := i; j < min(i+perLine, len(elems)); j++ {
			sb.WriteByte(' ')
			sb.WriteString(pad(elems[j], width, right))
		}
		sb.WriteByte('\n')
	}
}

func formatNamed(sb *strings.Builder, elems, names []string) {
	width := 0
	for i, e := range elems {
		n := names[i]
		if n == NAString {
			n = "<NA>"
		}
		width = max(width, displayWidth(e), displayWidth(n))
	}
	perLine := max(1, printWidth/(width+1))
	for i := 0; i < len(elems); i += perLine {
		end := min(i+perLine, len(elems))
		var top, bottom strings.Builder
		for j := i; j < end; j++ {
			n := names[j]
			if n == NAString {
				n = "<NA>"
			}
			if j > i {
				top.WriteByte(' ')
				bottom.WriteByte(' ')
			}
			top.WriteString(pad(n, width, true))
			bottom.WriteString(pad(elems[j], width, true))
		}
		sb.WriteString(top.String() + "\n" + bottom.String() + "\n")
	}
}

func formatFactor(sb *strings.Builder, v *Value) {
	labels := factorLabels(v)
	for i, s := range labels.Str {
		if s == NAString {
			labels.Str[i] = "<NA>"
		}
	}
	if v.Len() == 0 {
		sb.WriteString("factor(0)\n")
	} else {
		formatVector(sb, labels, false, v.Names())
	}
	levels := Strings(orNull(v.Attr("levels")))
	sep := " "
	if v.Inherits("ordered") {
		sep = " < "
	}
	line := "Levels: " + strings.Join(levels, sep)
	sb.WriteString(line + "\n")
}

func formatMatrix(sb *strings.Builder, v *Value, quote bool) {
	nr, nc, _ := matrixDims(v)
	rowNames := dimNamesPart(v, 0)
	colNames := dimNamesPart(v, 1)
	elems := formatElements(v, quote)
	rows := make([]string, nr)
	rowWidth := 0
	for i := range rows {
		if rowNames.Kind == StrKind {
			rows[i] = rowNames.Str[i]
		} else {
			rows[i] = fmt.Sprintf("[%d,]", i+1)
		}
		rowWidth = max(rowWidth, displayWidth(rows[i]))
	}
	if nc == 0 {
		sb.WriteString(strings.Repeat(" ", rowWidth) + "\n")
		for _, r := range rows {
			sb.WriteString(r + "\n")
		}
		return
	}
	cols := make([]string, nc)
	widths := make([]int, nc)
	for j := range cols {
		if colNames.Kind == StrKind {
			cols[j] = colNames.Str[j]
		} else {
			cols[j] = fmt.Sprintf("[,%d]", j+1)
		}
		widths[j] = displayWidth(cols[j])
		for i := 0; i < nr; i++ {
			widths[j] = max(widths[j], displayWidth(elems[i+j*nr]))
		}
	}
	right := v.Kind != StrKind || !quote
	for start := 0; start < nc; {
		end, used := start, rowWidth
		for end < nc && (end == start || used+1+widths[end] <= printWidth) {
			used += 1 + widths[end]
			end++
		}
		sb.WriteString(pad("", rowWidth, false))
		for j := start; j < end; j++ {
			sb.WriteString(" " + pad(cols[j], widths[j], right))
		}
		sb.WriteByte('\n')
		for i := 0; i < nr; i++ {
			sb.WriteString(pad(rows[i], rowWidth, false))
			for j := start; j < end; j++ {
				sb.WriteString(" " + pad(elems[i+j*nr], widths[j], right))
			}
			sb.WriteByte('\n')
		}
		start = end
	}
}

func formatDataFrame(sb *strings.Builder, df *Value) {
	rows := dataFrameRows(df)
	names := df.Names()
	if len(df.Items) == 0 {
		fmt.Fprintf(sb, "data frame with 0 columns and %d rows\n", rows)
		return
	}
	if rows == 0 {
		sb.WriteString("[1] " + strings.Join(names, " ") + "\n<0 rows> (or 0-length row.names)\n")
		return
	}
	rowNames := Strings(getAttr(df, "row.names"))
	mat := make([]string, 0, rows*len(df.Items))
	colNames := make([]string, len(df.Items))
	for j, col := range df.Items {
		var elems []string
		if isFactor(col) {
			elems = factorLabels(col).Str
			for i, s := range elems {
				if s == NAString {
					elems[i] = "<NA>"
				}
			}
		} else if col.IsAtomic() {
			elems = formatElements(col, false)
			if col.Kind == StrKind {
				for i, s := range col.Str {
					if s == NAString {
						elems[i] = "<NA>"
					}
				}
			}
		} else {
			elems = make([]string, rows)
			for i := range elems {
				elems[i] = strAt(col, i%max(1, col.Len()))
			}
		}
		for i := 0; i < rows; i++ {
			mat = append(mat, elems[i%len(elems)])
		}
		colNames[j] = names[j]
	}
	m := Str(mat...)
	m.SetAttr("dim", Int(int32(rows), int32(len(df.Items))))
	m.SetAttr("dimnames", List(Str(rowNames...), Str(colNames...)))
	formatMatrix(sb, m, false)
}

func (in *Interp) formatList(sb *strings.Builder, v *Value, prefix string) {
	if len(v.Items) == 0 {
		if v.Kind == ExprKind {
			sb.WriteString("expression()\n")
		} else if v.Names() != nil {
			sb.WriteString("named list()\n")
		} else {
			sb.WriteString("list()\n")
		}
		return
	}
	if v.Kind == ExprKind {
		parts := make([]string, len(v.Items))
		for i, e := range v.Items {
			parts[i] = Deparse(e)
		}
		sb.WriteString("expression(" + strings.Join(parts, ", ") + ")\n")
		return
	}
	names := v.Names()
	for i, item := range v.Items {
		tag := fmt.Sprintf("%s[[%d]]", prefix, i+1)
		if i < len(names) && names[i] != "" && names[i] != NAString {
			tag = prefix + "$" + deparseName(names[i])
		}
		sb.WriteString(tag + "\n")
		if (item.Kind == ListKind) && !isDataFrame(item) && item.Attr("class") == nil && item.Attr("dim") == nil {
			in.formatList(sb, item, tag)
			in.formatAttrs(sb, item)
		} else {
			in.format(sb, item, tag)
		}
		sb.WriteByte('\n')
	}
}

func (in *Interp) formatS4(sb *strings.Builder, v *Value) {
	cls := "S4"
	if c := v.Class(); len(c) > 0 {
		cls = c[0]
	}
	fmt.Fprintf(sb, "An object of class \"%s\"\n", cls)
	if v.Kind != S4Kind {
		data := v.Copy()
		data.S4 = false
		data.SetAttr("class", nil)
		for _, a := range v.Attrs {
			if a.Name != "class" && a.Name != "names" && a.Name != "dim" && a.Name != "dimnames" && a.Name != "levels" {
				data.SetAttr(a.Name, nil)
			}
		}
		in.format(sb, data, "")
	}
	for _, a := range v.Attrs {
		if a.Name == "class" || (v.Kind != S4Kind && (a.Name == "names" || a.Name == "dim" || a.Name == "dimnames")) {
			continue
		}
		fmt.Fprintf(sb, "Slot \"%s\":\n", a.Name)
		in.format(sb, a.Value, "")
		sb.WriteByte('\n')
	}
}

// formatElements formats the elements of an atomic vector to a common
// representation: numbers share their decimals, strings are quoted when
// quote is set. Elements are not padded.
func formatElements(v *Value, quote bool) []string {
	n := v.Len()
	out := make([]string, n)
	switch v.Kind {
	case LglKind, IntKind:
		for i := range out {
			out[i] = strAt(v, i)
			if out[i] == NAString {
				out[i] = "NA"
			}
		}
	case RealKind:
		return formatReals(v.Real, 7, 0)
	case CplxKind:
		for i, c := range v.Cplx {
			out[i] = formatComplex(c, 7)
		}
	case StrKind:
		for i, s := range v.Str {
			switch {
			case s == NAString:
				out[i] = "NA"
			case quote:
				out[i] = strconv.Quote(s)
			default:
				out[i] = s
			}
		}
	case RawKind:
		for i := range out {
			out[i] = strAt(v, i)
		}
	default:
		for i := range out {
			out[i] = strAt(v, i)
		}
	}
	return out
}

// formatReals formats finite values with a shared number of decimals chosen
// so every value shows up to digits significant digits, switching to
// scientific notation when that is narrower.
func formatReals(vals []float64, digits, nsmall int) []string {
	out := make([]string, len(vals))
	decimals, sciSig := 0, 1
	fixedWidth, sciWidth := 0, 0
	finite := false
	for _, f := range vals {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		finite = true
		sig, exp := significance(f, digits)
		decimals = max(decimals, sig-1-exp)
		sciSig = max(sciSig, sig)
		neg := 0
		if f < 0 {
			neg = 1
		}
		intDigits := max(1, exp+1)
		fixedWidth = max(fixedWidth, neg+intDigits)
		expDigits := 2
		if exp >= 100 || exp <= -100 {
			expDigits = 3
		}
		sciWidth = max(sciWidth, neg+3+expDigits)
	}
	decimals = max(decimals, nsmall)
	if decimals > 0 {
		fixedWidth += decimals + 1
	}
	if sciSig > 1 {
		sciWidth += sciSig
	}
	useSci := finite && fixedWidth > sciWidth
	for i, f := range vals {
		switch {
		case IsNAReal(f):
			out[i] = "NA"
		case math.IsNaN(f):
			out[i] = "NaN"
		case math.IsInf(f, 1):
			out[i] = "Inf"
		case math.IsInf(f, -1):
			out[i] = "-Inf"
		case useSci:
			out[i] = sciString(f, sciSig)
		default:
			out[i] = strconv.FormatFloat(f, 'f', decimals, 64)
		}
	}
	return out
}

func displayWidth(s string) int { return utf8.RuneCountInString(s) }

// pad widens s to width, right-justified when right is set.
func pad(s string, width int, right bool) string {
	n := displayWidth(s)
	if n >= width {
		return s
	}
	if right {
		return strings.Repeat(" ", width-n) + s
	}
	return s + strings.Repeat(" ", width-n)
}
