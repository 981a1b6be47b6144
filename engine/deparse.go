package engine

import (
	"strconv"
	"strings"
)

// Deparse renders v as source text that parses back to an equal value.
func Deparse(v *Value) string {
	d := &deparser{}
	d.value(v, precLowest)
	return d.sb.String()
}

type deparser struct {
	sb     strings.Builder
	indent int
}

func (d *deparser) write(s string) { d.sb.WriteString(s) }

func (d *deparser) newline() {
	d.sb.WriteByte('\n')
	d.sb.WriteString(strings.Repeat("    ", d.indent))
}

func (d *deparser) value(v *Value, prec int) {
	switch v.Kind {
	case NilKind:
		d.write("NULL")
	case SymKind:
		d.write(deparseName(v.Name))
	case LangKind:
		d.call(v, prec)
	case PromKind:
		d.value(v.Prom.Expr, prec)
	case CloKind:
		d.write("function (")
		d.formals(v.Clo.Formals)
		d.write(") ")
		d.newline()
		d.value(v.Clo.Body, precLowest)
	case BuiltinKind:
		d.write(".Primitive(\"" + v.Builtin.Name + "\")")
	case EnvKind:
		d.write("<environment>")
	case ExprKind:
		d.write("expression(")
		d.args(v.Items, nil)
		d.write(")")
	case S4Kind:
		cls := v.Class()
		name := "S4"
		if len(cls) > 0 {
			name = cls[0]
		}
		d.write("<S4 object of class \"" + name + "\">")
	case ExtPtrKind:
		d.write("<pointer>")
	default:
		d.vector(v)
	}
}

// vector deparses atomic vectors and lists, wrapping them in structure()
// when they carry attributes other than names.
func (d *deparser) vector(v *Value) {
	var extra []Attr
	for _, a := range v.Attrs {
		if a.Name != "names" {
			extra = append(extra, a)
		}
	}
	if len(extra) > 0 {
		d.write("structure(")
	}
	d.bareVector(v)
	if len(extra) > 0 {
		for _, a := range extra {
			d.write(", " + deparseArgName(a.Name) + " = ")
			d.value(a.Value, precLowest)
		}
		d.write(")")
	}
}

func (d *deparser) bareVector(v *Value) {
	names := v.Names()
	n := v.Len()
	if v.Kind == ListKind {
		d.write("list(")
		d.args(v.Items, names)
		d.write(")")
		return
	}
	if n == 0 {
		d.write(emptyVector(v))
		return
	}
	if names == nil && v.Kind == IntKind && n > 1 && isRange(v.Int) {
		d.write(strconv.Itoa(int(v.Int[0])) + ":" + strconv.Itoa(int(v.Int[n-1])))
		return
	}
	allNA := true
	for i := 0; i < n; i++ {
		if !v.IsNA(i) {
			allNA = false
		}
	}
	if n == 1 && names == nil {
		d.write(deparseScalar(v, 0, allNA))
		return
	}
	d.write("c(")
	for i := 0; i < n; i++ {
		if i > 0 {
			d.write(", ")
		}
		if names != nil && names[i] != "" {
			d.write(deparseArgName(names[i]) + " = ")
		}
		d.write(deparseScalar(v, i, allNA))
	}
	d.write(")")
}

func isRange(xs []int32) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i-1] == NAInt || xs[i] != xs[i-1]+1 {
			return false
		}
	}
	return xs[0] != NAInt
}

// deparseScalar renders element i. Typed NA constants are only needed when
// no other element fixes the vector's type.
func deparseScalar(v *Value, i int, allNA bool) string {
	if v.IsNA(i) && v.Kind != RealKind && v.Kind != CplxKind {
		if !allNA {
			return "NA"
		}
		switch v.Kind {
		case IntKind:
			return "NA_integer_"
		case StrKind:
			return "NA_character_"
		}
		return "NA"
	}
	switch v.Kind {
	case LglKind:
		if v.Lgl[i] != 0 {
			return "TRUE"
		}
		return "FALSE"
	case IntKind:
		return strconv.Itoa(int(v.Int[i])) + "L"
	case RealKind:
		f := v.Real[i]
		if IsNAReal(f) {
			if allNA {
				return "NA_real_"
			}
			return "NA"
		}
		return FormatNumber(f, 15)
	case CplxKind:
		if v.IsNA(i) {
			return "NA_complex_"
		}
		return formatComplex(v.Cplx[i], 15)
	case StrKind:
		return strconv.Quote(v.Str[i])
	case RawKind:
		return "as.raw(0x" + strAt(v, i) + ")"
	}
	return strAt(v, i)
}

func (d *deparser) formals(fs []Formal) {
	for i, f := range fs {
		if i > 0 {
			d.write(", ")
		}
		d.write(deparseName(f.Name))
		if f.Default != nil && !f.Default.IsMissingArg() {
			d.write(" = ")
			d.value(f.Default, precLeftAssign)
		}
	}
}

func (d *deparser) args(items []*Value, names []string) {
	for i, a := range items {
		if i > 0 {
			d.write(", ")
		}
		if i < len(names) && names[i] != "" {
			d.write(deparseArgName(names[i]) + " = ")
		}
		if a.IsMissingArg() {
			continue
		}
		d.value(a, precLeftAssign)
	}
}

func (d *deparser) call(v *Value, prec int) {
	if v.Fn.Kind != SymKind {
		d.value(v.Fn, precPostfix)
		d.write("(")
		d.args(v.Items, v.Tags)
		d.write(")")
		return
	}
	name := v.Fn.Name
	args := v.Items
	switch {
	case name == "{":
		d.write("{")
		d.indent++
		for _, e := range args {
			d.newline()
			d.value(e, precLowest)
		}
		d.indent--
		d.newline()
		d.write("}")
		return
	case name == "(" && len(args) == 1:
		d.write("(")
		d.value(args[0], precLowest)
		d.write(")")
		return
	case name == "if" && (len(args) == 2 || len(args) == 3):
		d.paren(prec > precLowest, func() {
			d.write("if (")
			d.value(args[0], precLowest)
			d.write(") ")
			d.value(args[1], precLowest)
			if len(args) == 3 {
				d.write(" else ")
				d.value(args[2], precLowest)
			}
		})
		return
	case name == "for" && len(args) == 3:
		d.write("for (")
		d.value(args[0], precLowest)
		d.write(" in ")
		d.value(args[1], precLowest)
		d.write(") ")
		d.value(args[2], precLowest)
		return
	case name == "while" && len(args) == 2:
		d.write("while (")
		d.value(args[0], precLowest)
		d.write(") ")
		d.value(args[1], precLowest)
		return
	case name == "repeat" && len(args) == 1:
		d.write("repeat ")
		d.value(args[0], precLowest)
		return
	case (name == "break" || name == "next") && len(args) == 0:
		d.write(name)
		return
	case name == "function" && len(args) == 2:
		d.write("function(")
		var fs []Formal
		for i, n := range args[0].Names() {
			fs = append(fs, Formal{Name: n, Default: args[0].Items[i]})
		}
		d.formals(fs)
		d.write(") ")
		d.value(args[1], precLowest)
		return
	case (name == "[" || name == "[[") && len(args) >= 1:
		d.value(args[0], precPostfix)
		d.write(name)
		d.args(args[1:], tail(v.Tags))
		if name == "[" {
			d.write("]")
		} else {
			d.write("]]")
		}
		return
	case (name == "$" || name == "@") && len(args) == 2:
		d.value(args[0], precPostfix)
		d.write(name)
		if args[1].Kind == StrKind && len(args[1].Str) == 1 {
			d.write(deparseName(args[1].Str[0]))
		} else {
			d.value(args[1], precPostfix+1)
		}
		return
	case len(args) == 1 && (name == "-" || name == "+" || name == "!" || name == "~"):
		p := precUnary
		if name == "!" {
			p = precNot
		} else if name == "~" {
			p = precTilde
		}
		d.paren(prec > p, func() {
			d.write(name)
			d.value(args[0], p)
		})
		return
	case len(args) == 2:
		if info, ok := infixInfo(name); ok && v.Tags[0] == "" && v.Tags[1] == "" {
			d.paren(prec > info.prec, func() {
				left, right := info.prec, info.prec+1
				if info.right {
					left, right = info.prec+1, info.prec
				}
				d.value(args[0], left)
				switch name {
				case "^", ":", "$", "@", "::":
					d.write(name)
				default:
					d.write(" " + name + " ")
				}
				d.value(args[1], right)
			})
			return
		}
	}
	d.write(deparseName(name))
	d.write("(")
	d.args(args, v.Tags)
	d.write(")")
}

func (d *deparser) paren(need bool, body func()) {
	if need {
		d.write("(")
	}
	body()
	if need {
		d.write(")")
	}
}

func tail(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	return tags[1:]
}

// deparseName backquotes names that are not syntactic.
func deparseName(name string) string {
	if isSyntacticName(name) {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "\\`") + "`"
}

func deparseArgName(name string) string {
	if isSyntacticName(name) || name == "..." {
		return name
	}
	return deparseName(name)
}

func isSyntacticName(name string) bool {
	if name == "" || name == "..." {
		return name == "..."
	}
	if _, reserved := reservedWords[name]; reserved {
		return false
	}
	if _, constant := constants[name]; constant {
		return false
	}
	for i, r := range name {
		switch {
		case r == '.' || r == '_' && i > 0:
		case isLetter(r):
		case isDigit(r) && i > 0:
		default:
			return false
		}
	}
	if name[0] == '.' && len(name) > 1 && isDigit(rune(name[1])) {
		return false
	}
	return true
}
