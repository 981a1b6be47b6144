package engine

import (
	"math"
)

func (in *Interp) installIndexing() {
	in.def("[", builtinSubset)
	in.def("[[", builtinSubset2)
	in.defSpecial("$", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) != 2 {
			return nil, c.errorf("invalid subsetting")
		}
		x, err := in.Eval(c.Args[0], c.Env)
		if err != nil {
			return nil, err
		}
		name, ok := memberName(c.Args[1])
		if !ok {
			return nil, c.errorf("invalid subscript type '%s'", c.Args[1].Kind)
		}
		return in.dollar(c, x, name)
	})
	in.def("[<-", builtinSubassign)
	in.def("[[<-", builtinSubassign2)
	in.def("$<-", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) != 3 {
			return nil, c.errorf("invalid subassignment")
		}
		name, ok := memberName(c.Args[1])
		if !ok {
			return nil, c.errorf("invalid subscript type '%s'", c.Args[1].Kind)
		}
		x := c.Args[0]
		if x.IsAtomic() && x.Len() > 0 {
			return nil, c.errorf("$ operator is invalid for atomic vectors")
		}
		return setElement(c, x, Str(name), c.Args[2])
	})
}

func memberName(v *Value) (string, bool) {
	switch v.Kind {
	case SymKind:
		return v.Name, true
	case StrKind:
		if len(v.Str) == 1 {
			return v.Str[0], true
		}
	case LangKind:
		if v.Fn.Kind == SymKind && v.Fn.Name == "quote" && len(v.Items) == 1 {
			return memberName(v.Items[0])
		}
	}
	return "", false
}

func (in *Interp) dollar(c *CallCtx, x *Value, name string) (*Value, error) {
	switch {
	case x.Kind == NilKind:
		return Null, nil
	case x.Kind == EnvKind:
		v, ok := x.Env.Get(name)
		if !ok {
			return Null, nil
		}
		return in.Force(v)
	case x.Kind == ListKind:
		names := x.Names()
		for i, n := range names {
			if n == name {
				return x.Items[i], nil
			}
		}
		match := -1
		for i, n := range names {
			if len(n) > len(name) && n[:len(name)] == name {
				if match >= 0 {
					return Null, nil
				}
				match = i
			}
		}
		if match >= 0 {
			return x.Items[match], nil
		}
		return Null, nil
	case x.Kind == S4Kind || x.S4:
		return nil, c.errorf("$ operator not defined for this S4 class")
	}
	return nil, c.errorf("$ operator is invalid for atomic vectors")
}

// subsetVector selects elements by zero-based index; out of range indexes
// give NA (NULL for lists). Attributes are not carried.
func subsetVector(v *Value, idx []int) *Value {
	n := v.Len()
	ok := func(i int) bool { return i >= 0 && i < n }
	out := &Value{Kind: v.Kind}
	switch v.Kind {
	case NilKind:
		return Null
	case LglKind:
		out.Lgl = make([]int32, len(idx))
		for k, i := range idx {
			out.Lgl[k] = NALogical
			if ok(i) {
				out.Lgl[k] = v.Lgl[i]
			}
		}
	case IntKind:
		out.Int = make([]int32, len(idx))
		for k, i := range idx {
			out.Int[k] = NAInt
			if ok(i) {
				out.Int[k] = v.Int[i]
			}
		}
	case RealKind:
		out.Real = make([]float64, len(idx))
		for k, i := range idx {
			out.Real[k] = NAReal()
			if ok(i) {
				out.Real[k] = v.Real[i]
			}
		}
	case CplxKind:
		out.Cplx = make([]complex128, len(idx))
		for k, i := range idx {
			out.Cplx[k] = complex(NAReal(), 0)
			if ok(i) {
				out.Cplx[k] = v.Cplx[i]
			}
		}
	case StrKind:
		out.Str = make([]string, len(idx))
		for k, i := range idx {
			out.Str[k] = NAString
			if ok(i) {
				out.Str[k] = v.Str[i]
			}
		}
	case RawKind:
		out.Raw = make([]byte, len(idx))
		for k, i := range idx {
			if ok(i) {
				out.Raw[k] = v.Raw[i]
			}
		}
	case ListKind, ExprKind:
		out.Items = make([]*Value, len(idx))
		for k, i := range idx {
			out.Items[k] = Null
			if ok(i) {
				out.Items[k] = v.Items[i]
			}
		}
	default:
		return v
	}
	return out
}

// resolveIndex turns one subscript into zero-based positions for a vector
// of length n. For assignments, names that do not exist yet are appended
// and returned in newNames.
func resolveIndex(c *CallCtx, sub *Value, n int, names []string, assign bool) (idx []int, newNames []string, err error) {
	if sub == nil || sub.IsMissingArg() {
		idx = make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx, nil, nil
	}
	if isFactor(sub) {
		sub = Coerce(sub, IntKind)
		sub.Attrs = nil
	}
	switch sub.Kind {
	case NilKind:
		return []int{}, nil, nil
	case LglKind:
		m := max(n, len(sub.Lgl))
		if len(sub.Lgl) == 0 {
			return []int{}, nil, nil
		}
		for i := 0; i < m; i++ {
			switch sub.Lgl[i%len(sub.Lgl)] {
			case 1:
				idx = append(idx, i)
			case NALogical:
				idx = append(idx, -1)
			}
		}
		return idx, nil, nil
	case IntKind, RealKind:
		fs := Floats(sub)
		neg, pos := false, false
		for _, f := range fs {
			switch {
			case math.IsNaN(f):
				pos = true
			case f < 0:
				neg = true
			case f > 0:
				pos = true
			}
		}
		if neg && pos {
			return nil, nil, c.errorf("can't mix positive and negative subscripts")
		}
		if neg {
			drop := make(map[int]bool)
			for _, f := range fs {
				drop[int(-f)-1] = true
			}
			for i := 0; i < n; i++ {
				if !drop[i] {
					idx = append(idx, i)
				}
			}
			return idx, nil, nil
		}
		for _, f := range fs {
			switch {
			case math.IsNaN(f):
				idx = append(idx, -1)
			case f >= 1:
				idx = append(idx, int(f)-1)
			}
		}
		return idx, nil, nil
	case StrKind:
		pos := make(map[string]int, len(names))
		for i := len(names) - 1; i >= 0; i-- {
			if names[i] != "" && names[i] != NAString {
				pos[names[i]] = i
			}
		}
		next := n
		for _, s := range sub.Str {
			if p, ok := pos[s]; ok && s != NAString {
				idx = append(idx, p)
				continue
			}
			if !assign {
				idx = append(idx, -1)
				continue
			}
			pos[s] = next
			idx = append(idx, next)
			newNames = append(newNames, s)
			next++
		}
		return idx, newNames, nil
	}
	return nil, nil, c.errorf("invalid subscript type '%s'", sub.Kind)
}

// splitSubsetArgs separates indexes from the drop/exact/value arguments.
func splitSubsetArgs(c *CallCtx) (x *Value, subs []*Value, drop bool, value *Value) {
	drop = true
	x = c.Args[0]
	for i, a := range c.Args[1:] {
		switch c.Names[i+1] {
		case "drop":
			drop = asBool(a, true)
		case "exact":
		case "value":
			value = a
		default:
			subs = append(subs, a)
		}
	}
	return x, subs, drop, value
}

func builtinSubset(in *Interp, c *CallCtx) (*Value, error) {
	if len(c.Args) == 0 {
		return Null, nil
	}
	x, subs, drop, _ := splitSubsetArgs(c)
	switch x.Kind {
	case NilKind:
		return Null, nil
	case EnvKind, CloKind, BuiltinKind, SymKind, S4Kind:
		return nil, c.errorf("object of type '%s' is not subsettable", x.Kind)
	case LangKind:
		l := List(append([]*Value{x.Fn}, x.Items...)...)
		res, err := subsetOne(c, l, subs[0])
		if err != nil || res.Len() == 0 {
			return res, err
		}
		return &Value{Kind: LangKind, Fn: res.Items[0], Items: res.Items[1:], Tags: make([]string, len(res.Items)-1)}, nil
	}
	if isDataFrame(x) {
		return subsetDataFrame(c, x, subs, drop)
	}
	if dim := x.Attr("dim"); dim != nil && len(subs) == dim.Len() && len(subs) > 1 {
		return subsetArray(c, x, subs, drop)
	}
	switch len(subs) {
	case 0:
		return x, nil
	case 1:
		return subsetOne(c, x, subs[0])
	}
	return nil, c.errorf("incorrect number of dimensions")
}

func subsetOne(c *CallCtx, x, sub *Value) (*Value, error) {
	names := x.Names()
	idx, _, err := resolveIndex(c, sub, x.Len(), names, false)
	if err != nil {
		return nil, err
	}
	res := subsetVector(x, idx)
	if names != nil {
		sel := make([]string, len(idx))
		for k, i := range idx {
			sel[k] = NAString
			if i >= 0 && i < len(names) {
				sel[k] = names[i]
			}
		}
		res.SetAttr("names", Str(sel...))
	}
	if isFactor(x) {
		res.SetAttr("levels", x.Attr("levels"))
		res.SetAttr("class", x.Attr("class"))
	}
	return res, nil
}

func subsetArray(c *CallCtx, x *Value, subs []*Value, drop bool) (*Value, error) {
	dims := ints(x.Attr("dim"))
	dn := x.Attr("dimnames")
	per := make([][]int, len(dims))
	for k, s := range subs {
		var names []string
		if dn != nil && dn.Kind == ListKind && dn.Items[k].Kind == StrKind {
			names = dn.Items[k].Str
		}
		idx, _, err := resolveIndex(c, s, int(dims[k]), names, false)
		if err != nil {
			return nil, err
		}
		for _, i := range idx {
			if i < 0 || i >= int(dims[k]) {
				return nil, c.errorf("subscript out of bounds")
			}
		}
		per[k] = idx
	}
	total := 1
	for _, p := range per {
		total *= len(p)
	}
	flat := make([]int, 0, total)
	counter := make([]int, len(per))
	for n := 0; n < total; n++ {
		off, stride := 0, 1
		for k := range per {
			off += per[k][counter[k]] * stride
			stride *= int(dims[k])
		}
		flat = append(flat, off)
		for k := range counter {
			counter[k]++
			if counter[k] < len(per[k]) {
				break
			}
			counter[k] = 0
		}
	}
	res := subsetVector(x, flat)
	if isFactor(x) {
		res.SetAttr("levels", x.Attr("levels"))
		res.SetAttr("class", x.Attr("class"))
	}
	var newDims []int32
	var newNames []*Value
	for k, p := range per {
		if drop && len(p) == 1 {
			continue
		}
		newDims = append(newDims, int32(len(p)))
		names := Null
		if dn != nil && dn.Kind == ListKind && dn.Items[k].Kind == StrKind {
			names = subsetVector(dn.Items[k], p)
		}
		newNames = append(newNames, names)
	}
	switch {
	case len(newDims) <= 1 && drop:
		if len(newNames) == 1 && newNames[0].Kind != NilKind {
			res.SetAttr("names", newNames[0])
		}
	default:
		res.SetAttr("dim", Int(newDims...))
		if dn != nil {
			res.SetAttr("dimnames", List(newNames...))
		}
	}
	return res, nil
}

func subsetDataFrame(c *CallCtx, df *Value, subs []*Value, drop bool) (*Value, error) {
	rows := dataFrameRows(df)
	var rowSub, colSub *Value
	switch len(subs) {
	case 1:
		colSub = subs[0]
		drop = false
	case 2:
		rowSub, colSub = subs[0], subs[1]
	default:
		return nil, c.errorf("undefined columns selected")
	}
	cols, _, err := resolveIndex(c, colSub, len(df.Items), df.Names(), false)
	if err != nil {
		return nil, err
	}
	for _, j := range cols {
		if j < 0 || j >= len(df.Items) {
			return nil, c.errorf("undefined columns selected")
		}
	}
	rowNames := Coerce(getAttr(df, "row.names"), StrKind)
	rowIdx, _, err := resolveIndex(c, rowSub, rows, rowNames.Str, false)
	if err != nil {
		return nil, err
	}
	names := df.Names()
	items := make([]*Value, len(cols))
	colNames := make([]string, len(cols))
	for k, j := range cols {
		col := df.Items[j]
		if rowSub != nil && !rowSub.IsMissingArg() {
			sub := subsetVector(col, rowIdx)
			if isFactor(col) {
				sub.SetAttr("levels", col.Attr("levels"))
				sub.SetAttr("class", col.Attr("class"))
			}
			col = sub
		}
		items[k] = col
		colNames[k] = names[j]
	}
	if drop && len(items) == 1 {
		return items[0], nil
	}
	res := NamedList(colNames, items)
	res.SetAttr("class", Str("data.frame"))
	if rowSub != nil && !rowSub.IsMissingArg() {
		if rn := df.Attr("row.names"); rn != nil && rn.Kind == StrKind {
			res.SetAttr("row.names", subsetVector(rn, rowIdx))
		} else {
			sel := make([]int32, len(rowIdx))
			for k, i := range rowIdx {
				sel[k] = int32(i + 1)
			}
			res.SetAttr("row.names", Int(sel...))
		}
	} else {
		res.SetAttr("row.names", df.Attr("row.names"))
	}
	return res, nil
}

func builtinSubset2(in *Interp, c *CallCtx) (*Value, error) {
	if len(c.Args) < 2 {
		return nil, c.errorf("invalid subscript")
	}
	x, subs, _, _ := splitSubsetArgs(c)
	if len(subs) == 2 {
		if nr, _, ok := matrixDims(x); ok {
			i, ok1 := asIntScalar(subs[0])
			j, ok2 := asIntScalar(subs[1])
			if !ok1 || !ok2 {
				return nil, c.errorf("subscript out of bounds")
			}
			k := (i - 1) + (j-1)*nr
			if k < 0 || k >= x.Len() {
				return nil, c.errorf("subscript out of bounds")
			}
			return elementAt(x, k), nil
		}
		if isDataFrame(x) {
			col, err := getElement(c, x, subs[1])
			if err != nil {
				return nil, err
			}
			return getElement(c, col, subs[0])
		}
	}
	if len(subs) != 1 {
		return nil, c.errorf("incorrect number of subscripts")
	}
	if x.Kind == EnvKind {
		name, ok := asStringScalar(subs[0])
		if !ok || subs[0].Kind != StrKind {
			return nil, c.errorf("wrong args for environment subassignment")
		}
		v, found := x.Env.Get(name)
		if !found {
			return Null, nil
		}
		return in.Force(v)
	}
	return getElement(c, x, subs[0])
}

func getElement(c *CallCtx, x, sub *Value) (*Value, error) {
	switch x.Kind {
	case NilKind:
		return Null, nil
	case CloKind, BuiltinKind, SymKind:
		return nil, c.errorf("object of type '%s' is not subsettable", x.Kind)
	}
	if sub.Len() != 1 {
		if sub.Len() > 1 && x.Kind == ListKind {
			cur := x
			for i := 0; i < sub.Len(); i++ {
				next, err := getElement(c, cur, elementAt(sub, i))
				if err != nil {
					return nil, err
				}
				cur = next
			}
			return cur, nil
		}
		return nil, c.errorf("subscript out of bounds")
	}
	var i int
	if sub.Kind == StrKind {
		i = -1
		for k, n := range x.Names() {
			if n == sub.Str[0] {
				i = k
				break
			}
		}
		if i < 0 {
			if x.Kind == ListKind {
				return Null, nil
			}
			return nil, c.errorf("subscript out of bounds")
		}
	} else {
		k, ok := asIntScalar(sub)
		if !ok || k < 1 || k > x.Len() {
			return nil, c.errorf("subscript out of bounds")
		}
		i = k - 1
	}
	e := elementAt(x, i)
	if isFactor(x) {
		e.SetAttr("levels", x.Attr("levels"))
		e.SetAttr("class", x.Attr("class"))
	}
	return e, nil
}

func builtinSubassign2(in *Interp, c *CallCtx) (*Value, error) {
	x, subs, _, value := splitSubsetArgs(c)
	if value == nil {
		return nil, c.errorf("argument \"value\" is missing, with no default")
	}
	if len(subs) != 1 {
		if len(subs) == 2 && x.Attr("dim") != nil {
			return subassignArray(c, x, subs, value)
		}
		return nil, c.errorf("[[ ]] improper number of subscripts")
	}
	return setElement(c, x, subs[0], value)
}

// setElement implements x[[sub]] <- value and x$name <- value.
func setElement(c *CallCtx, x, sub, value *Value) (*Value, error) {
	if x.Kind == EnvKind {
		name, ok := asStringScalar(sub)
		if !ok {
			return nil, c.errorf("wrong args for environment subassignment")
		}
		x.Env.Set(name, value)
		return x, nil
	}
	if x.Kind == NilKind {
		if value.Kind == NilKind {
			return Null, nil
		}
		if value.IsAtomic() && value.Len() == 1 && sub.Kind != StrKind {
			x = &Value{Kind: value.Kind}
		} else {
			x = List()
		}
	}
	if !x.IsVector() {
		return nil, c.errorf("object of type '%s' is not subsettable", x.Kind)
	}
	if sub.Len() != 1 {
		return nil, c.errorf("subscript out of bounds")
	}
	names := x.Names()
	idx, newNames, err := resolveIndex(c, sub, x.Len(), names, true)
	if err != nil {
		return nil, err
	}
	if len(idx) != 1 || idx[0] < 0 {
		return nil, c.errorf("subscript out of bounds")
	}
	i := idx[0]
	if x.Kind == ListKind {
		if value.Kind == NilKind {
			if i >= len(x.Items) {
				return x, nil
			}
			out := x.Copy()
			out.Items = append(out.Items[:i], out.Items[i+1:]...)
			if names != nil {
				out.SetAttr("names", Str(append(append([]string(nil), names[:i]...), names[i+1:]...)...))
			}
			return out, nil
		}
		if isDataFrame(x) {
			rows := dataFrameRows(x)
			if value.Len() != rows && len(x.Items) > 0 {
				if value.Len() == 0 || rows%value.Len() != 0 {
					return nil, c.errorf("replacement has %d rows, data has %d", value.Len(), rows)
				}
				value = recycle(value, rows)
			}
			if len(x.Items) == 0 {
				x = x.Copy()
				x.SetAttr("row.names", intRange(value.Len()))
			}
		}
		return assignPositions(x, []int{i}, List(value), newNames), nil
	}
	if value.Len() != 1 {
		if value.Len() == 0 {
			return nil, c.errorf("replacement has length zero")
		}
		return nil, c.errorf("more elements supplied than there are to replace")
	}
	if !value.IsAtomic() {
		return assignPositions(Coerce(x, ListKind), []int{i}, List(value), newNames), nil
	}
	return assignPositions(x, []int{i}, value, newNames), nil
}

func builtinSubassign(in *Interp, c *CallCtx) (*Value, error) {
	x, subs, _, value := splitSubsetArgs(c)
	if value == nil {
		return nil, c.errorf("argument \"value\" is missing, with no default")
	}
	if isDataFrame(x) {
		return subassignDataFrame(in, c, x, subs, value)
	}
	if x.Attr("dim") != nil && len(subs) > 1 {
		return subassignArray(c, x, subs, value)
	}
	if len(subs) > 1 {
		return nil, c.errorf("incorrect number of subscripts")
	}
	var sub *Value
	if len(subs) == 1 {
		sub = subs[0]
	}
	if x.Kind == NilKind {
		if value.Kind == NilKind {
			return Null, nil
		}
		x = &Value{Kind: value.Kind}
		if !value.IsAtomic() {
			x = List()
		}
	}
	if !x.IsVector() {
		return nil, c.errorf("object of type '%s' is not subsettable", x.Kind)
	}
	idx, newNames, err := resolveIndex(c, sub, x.Len(), x.Names(), true)
	if err != nil {
		return nil, err
	}
	for _, i := range idx {
		if i < 0 {
			if value.Len() > 1 {
				return nil, c.errorf("NAs are not allowed in subscripted assignments")
			}
		}
	}
	if x.Kind == ListKind && value.Kind == NilKind {
		drop := map[int]bool{}
		for _, i := range idx {
			drop[i] = true
		}
		var keep []int
		for i := 0; i < x.Len(); i++ {
			if !drop[i] {
				keep = append(keep, i)
			}
		}
		res := subsetVector(x, keep)
		for _, a := range x.Attrs {
			if a.Name != "names" {
				res.SetAttr(a.Name, a.Value)
			}
		}
		if names := x.Names(); names != nil {
			res.SetAttr("names", subsetVector(Str(names...), keep))
		}
		return res, nil
	}
	if len(idx) == 0 {
		return x, nil
	}
	if value.Len() == 0 {
		return nil, c.errorf("replacement has length zero")
	}
	if len(idx)%value.Len() != 0 {
		if err := in.warn(c.Call, "number of items to replace is not a multiple of replacement length"); err != nil {
			return nil, err
		}
	}
	if isFactor(x) {
		return assignFactor(c, x, idx, value)
	}
	if x.Kind == ListKind && value.Kind != ListKind {
		value = Coerce(value, ListKind)
	}
	return assignPositions(x, idx, value, newNames), nil
}

// assignPositions writes value (recycled) at idx, widening the kind and
// extending the vector as needed. newNames are the names of appended
// character subscripts.
func assignPositions(x *Value, idx []int, value *Value, newNames []string) *Value {
	kind := x.Kind
	if rank(value.Kind) > rank(kind) {
		kind = value.Kind
	}
	out := x
	if kind != x.Kind {
		out = Coerce(x, kind)
		for _, a := range x.Attrs {
			out.SetAttr(a.Name, a.Value)
		}
	} else {
		out = x.Copy()
	}
	val := value
	if value.Kind != kind {
		val = Coerce(value, kind)
	}
	maxIdx := out.Len() - 1
	for _, i := range idx {
		maxIdx = max(maxIdx, i)
	}
	oldLen := out.Len()
	if maxIdx >= oldLen {
		grow := make([]int, maxIdx+1)
		for i := range grow {
			grow[i] = i
		}
		attrs := out.Attrs
		out = subsetVector(out, grow)
		for _, a := range attrs {
			if a.Name != "names" && a.Name != "dim" && a.Name != "dimnames" {
				out.SetAttr(a.Name, a.Value)
			}
		}
		names := x.Names()
		if names != nil || len(newNames) > 0 {
			full := make([]string, maxIdx+1)
			copy(full, names)
			for k := range newNames {
				full[oldLen+k] = newNames[k]
			}
			out.SetAttr("names", Str(full...))
		}
	}
	n := val.Len()
	for k, i := range idx {
		if i < 0 {
			continue
		}
		j := k % n
		switch kind {
		case LglKind:
			out.Lgl[i] = val.Lgl[j]
		case IntKind:
			out.Int[i] = val.Int[j]
		case RealKind:
			out.Real[i] = val.Real[j]
		case CplxKind:
			out.Cplx[i] = val.Cplx[j]
		case StrKind:
			out.Str[i] = val.Str[j]
		case RawKind:
			out.Raw[i] = val.Raw[j]
		case ListKind, ExprKind:
			out.Items[i] = val.Items[j]
		}
	}
	return out
}

func assignFactor(c *CallCtx, x *Value, idx []int, value *Value) (*Value, error) {
	levels := Strings(orNull(x.Attr("levels")))
	pos := map[string]int32{}
	for i, l := range levels {
		pos[l] = int32(i + 1)
	}
	vals := Strings(value)
	if isFactor(value) {
		vals = factorLabels(value).Str
	}
	codes := make([]int32, len(vals))
	for i, s := range vals {
		p, ok := pos[s]
		if !ok && s != NAString {
			return nil, c.errorf("invalid factor level, NA generated")
		}
		if !ok {
			p = NAInt
		}
		codes[i] = p
	}
	return assignPositions(x, idx, Int(codes...), nil), nil
}

func subassignArray(c *CallCtx, x *Value, subs []*Value, value *Value) (*Value, error) {
	dims := ints(x.Attr("dim"))
	if len(subs) != len(dims) {
		return nil, c.errorf("incorrect number of subscripts")
	}
	dn := x.Attr("dimnames")
	per := make([][]int, len(dims))
	for k, s := range subs {
		var names []string
		if dn != nil && dn.Kind == ListKind && dn.Items[k].Kind == StrKind {
			names = dn.Items[k].Str
		}
		idx, _, err := resolveIndex(c, s, int(dims[k]), names, false)
		if err != nil {
			return nil, err
		}
		for _, i := range idx {
			if i < 0 || i >= int(dims[k]) {
				return nil, c.errorf("subscript out of bounds")
			}
		}
		per[k] = idx
	}
	var flat []int
	counter := make([]int, len(per))
	total := 1
	for _, p := range per {
		total *= len(p)
	}
	for n := 0; n < total; n++ {
		off, stride := 0, 1
		for k := range per {
			off += per[k][counter[k]] * stride
			stride *= int(dims[k])
		}
		flat = append(flat, off)
		for k := range counter {
			counter[k]++
			if counter[k] < len(per[k]) {
				break
			}
			counter[k] = 0
		}
	}
	if len(flat) == 0 {
		return x, nil
	}
	if value.Len() == 0 {
		return nil, c.errorf("replacement has length zero")
	}
	return assignPositions(x, flat, value, nil), nil
}

func subassignDataFrame(in *Interp, c *CallCtx, df *Value, subs []*Value, value *Value) (*Value, error) {
	var rowSub, colSub *Value
	switch len(subs) {
	case 1:
		colSub = subs[0]
	case 2:
		rowSub, colSub = subs[0], subs[1]
	default:
		return nil, c.errorf("incorrect number of subscripts")
	}
	cols, newNames, err := resolveIndex(c, colSub, len(df.Items), df.Names(), true)
	if err != nil {
		return nil, err
	}
	rows := dataFrameRows(df)
	out := df
	for k, j := range cols {
		var colVal *Value
		switch {
		case value.Kind == ListKind:
			colVal = value.Items[k%len(value.Items)]
		default:
			colVal = value
		}
		var col *Value
		if j < len(df.Items) {
			col = df.Items[j]
		} else {
			col = recycle(Lgl(NALogical), rows)
		}
		if rowSub != nil && !rowSub.IsMissingArg() {
			sub := &CallCtx{Call: c.Call, Env: c.Env, Args: []*Value{col, rowSub, colVal}, Names: []string{"", "", "value"}}
			if col, err = builtinSubassign(in, sub); err != nil {
				return nil, err
			}
		} else {
			col = recycle(colVal, rows)
		}
		var names []string
		if j >= len(df.Items) {
			names = newNames[j-len(df.Items) : j-len(df.Items)+1]
		}
		out = assignPositions(out, []int{j}, List(col), names)
	}
	return out, nil
}
