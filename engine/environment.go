package engine

import (
	"os"
	"strings"
)

func (in *Interp) installEnvironment() {
	in.def("environment", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("fun")
		if err != nil {
			return nil, err
		}
		switch {
		case a[0] == nil || a[0].Kind == NilKind:
			return EnvValue(c.Env), nil
		case a[0].Kind == CloKind:
			return EnvValue(a[0].Clo.Env), nil
		}
		return Null, nil
	})
	in.def("environment<-", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("fun", "value")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || a[0].Kind != CloKind || a[1] == nil || a[1].Kind != EnvKind {
			return nil, c.errorf("replacement object is not an environment")
		}
		fn := a[0].Copy()
		clo := *fn.Clo
		clo.Env = a[1].Env
		fn.Clo = &clo
		return fn, nil
	})
	in.def("new.env", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("hash", "parent", "size")
		if err != nil {
			return nil, err
		}
		parent := c.Env
		if a[1] != nil {
			if a[1].Kind != EnvKind {
				return nil, c.errorf("'enclos' must be an environment")
			}
			parent = a[1].Env
		}
		return EnvValue(NewEnv(parent)), nil
	})
	in.def("globalenv", func(in *Interp, c *CallCtx) (*Value, error) { return EnvValue(in.global), nil })
	in.def("emptyenv", func(in *Interp, c *CallCtx) (*Value, error) { return EnvValue(in.empty), nil })
	in.def("baseenv", func(in *Interp, c *CallCtx) (*Value, error) { return EnvValue(in.base), nil })
	in.def("topenv", func(in *Interp, c *CallCtx) (*Value, error) { return EnvValue(in.global), nil })
	in.def("parent.frame", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("n")
		if err != nil {
			return nil, err
		}
		n := 1
		if a[0] != nil {
			if n, _ = asIntScalar(a[0]); n < 1 {
				return nil, c.errorf("invalid 'n' value")
			}
		}
		env := c.Env
		for ; n > 0; n-- {
			f := in.frameOf(env)
			if f == nil {
				return EnvValue(in.global), nil
			}
			env = f.Caller
		}
		return EnvValue(env), nil
	})
	in.def("parent.env", func(in *Interp, c *CallCtx) (*Value, error) {
		env, err := envArg(c, 0)
		if err != nil {
			return nil, err
		}
		if env.Parent == nil {
			return nil, c.errorf("the empty environment has no parent")
		}
		return EnvValue(env.Parent), nil
	})
	in.def("parent.env<-", func(in *Interp, c *CallCtx) (*Value, error) {
		env, err := envArg(c, 0)
		if err != nil {
			return nil, err
		}
		p := c.Args[len(c.Args)-1]
		if p.Kind != EnvKind {
			return nil, c.errorf("'parent' is not an environment")
		}
		env.Parent = p.Env
		return c.Args[0], nil
	})
	in.def("environmentName", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || c.Args[0].Kind != EnvKind {
			return Str(""), nil
		}
		return Str(c.Args[0].Env.Name), nil
	})
	in.def("sys.call", func(in *Interp, c *CallCtx) (*Value, error) {
		if f := in.frameOf(c.Env); f != nil {
			return f.Call, nil
		}
		return Null, nil
	})
	in.def("sys.function", func(in *Interp, c *CallCtx) (*Value, error) {
		if f := in.frameOf(c.Env); f != nil {
			return f.Fn, nil
		}
		return nil, c.errorf("not that many frames on the stack")
	})
	in.def("nargs", func(in *Interp, c *CallCtx) (*Value, error) {
		if f := in.frameOf(c.Env); f != nil {
			return Int(int32(len(f.Call.Items))), nil
		}
		return Int(0), nil
	})

	in.def("assign", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "value", "pos", "envir", "inherits", "immediate")
		if err != nil {
			return nil, err
		}
		name, ok := asStringScalar(orNull(a[0]))
		if !ok || a[0].Kind != StrKind {
			return nil, c.errorf("invalid first argument")
		}
		if a[1] == nil {
			return nil, c.errorf("argument \"value\" is missing, with no default")
		}
		env, err := envOpt(c, a[3], c.Env)
		if err != nil {
			return nil, err
		}
		if asBool(a[4], false) {
			if _, found := env.Lookup(name); found != nil {
				env = found
			}
		}
		if env.IsLocked(name) {
			return nil, c.errorf("cannot change value of locked binding for '%s'", name)
		}
		env.Set(name, a[1])
		in.visible = false
		return a[1], nil
	})
	getter := func(orElse bool) BuiltinFunc {
		return func(in *Interp, c *CallCtx) (*Value, error) {
			formals := []string{"x", "pos", "envir", "mode", "inherits"}
			if orElse {
				formals = []string{"x", "envir", "mode", "inherits", "ifnotfound"}
			}
			a, err := c.Match(formals...)
			if err != nil {
				return nil, err
			}
			name, ok := asStringScalar(orNull(a[0]))
			if !ok {
				return nil, c.errorf("invalid first argument")
			}
			envIdx, modeIdx, inhIdx := 2, 3, 4
			if orElse {
				envIdx, modeIdx, inhIdx = 1, 2, 3
			}
			env, err := envOpt(c, a[envIdx], c.Env)
			if err != nil {
				return nil, err
			}
			mode := "any"
			if a[modeIdx] != nil {
				mode, _ = asStringScalar(a[modeIdx])
			}
			v, err := in.getVar(name, env, asBool(a[inhIdx], true), mode)
			if err != nil {
				return nil, err
			}
			if v == nil {
				if orElse {
					return orNull(a[4]), nil
				}
				if mode == "function" {
					return nil, c.errorf("object '%s' of mode 'function' was not found", name)
				}
				return nil, c.errorf("object '%s' not found", name)
			}
			return v, nil
		}
	}
	in.def("get", getter(false))
	in.def("get0", getter(true))
	in.def("exists", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "where", "envir", "frame", "mode", "inherits")
		if err != nil {
			return nil, err
		}
		name, ok := asStringScalar(orNull(a[0]))
		if !ok {
			return nil, c.errorf("invalid first argument")
		}
		envArgV := a[2]
		if envArgV == nil {
			envArgV = a[1]
		}
		env, err := envOpt(c, envArgV, c.Env)
		if err != nil {
			return nil, err
		}
		mode := "any"
		if a[4] != nil {
			mode, _ = asStringScalar(a[4])
		}
		v, err := in.getVar(name, env, asBool(a[5], true), mode)
		if err != nil {
			return nil, err
		}
		return Bool(v != nil), nil
	})
	in.defSpecial("rm", func(in *Interp, c *CallCtx) (*Value, error) {
		env := c.Env
		var names []string
		for i, a := range c.Args {
			switch c.Names[i] {
			case "list":
				v, err := in.Eval(a, c.Env)
				if err != nil {
					return nil, err
				}
				names = append(names, Strings(v)...)
			case "envir":
				v, err := in.Eval(a, c.Env)
				if err != nil {
					return nil, err
				}
				if v.Kind != EnvKind {
					return nil, c.errorf("invalid 'envir' argument")
				}
				env = v.Env
			case "inherits":
			default:
				switch a.Kind {
				case SymKind:
					names = append(names, a.Name)
				case StrKind:
					names = append(names, a.Str...)
				default:
					return nil, c.errorf("... must contain names or character strings")
				}
			}
		}
		for _, n := range names {
			if !env.Remove(n) {
				if err := in.warn(c.Call, "object '"+n+"' not found"); err != nil {
					return nil, err
				}
			}
		}
		in.visible = false
		return Null, nil
	})
	in.def("ls", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("name", "pos", "envir", "all.names", "pattern", "sorted")
		if err != nil {
			return nil, err
		}
		envV := a[2]
		if envV == nil {
			envV = a[0]
		}
		env, err := envOpt(c, envV, c.Env)
		if err != nil {
			return nil, err
		}
		names := env.Names(asBool(a[3], false), asBool(a[5], true))
		if a[4] != nil {
			pat, _ := asStringScalar(a[4])
			var keep []string
			for _, n := range names {
				if strings.Contains(n, strings.Trim(pat, "^$")) {
					keep = append(keep, n)
				}
			}
			names = keep
		}
		return Str(names...), nil
	})
	in.defSpecial("local", func(in *Interp, c *CallCtx) (*Value, error) {
		env := NewEnv(c.Env)
		if len(c.Args) > 1 {
			v, err := in.Eval(c.Args[1], c.Env)
			if err != nil {
				return nil, err
			}
			if v.Kind != EnvKind {
				return nil, c.errorf("invalid 'envir' argument")
			}
			env = v.Env
		}
		if len(c.Args) == 0 {
			return Null, nil
		}
		return in.Eval(c.Args[0], env)
	})
	in.def("eval", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("expr", "envir", "enclos")
		if err != nil {
			return nil, err
		}
		if a[0] == nil {
			return nil, c.errorf("argument \"expr\" is missing, with no default")
		}
		enclos := c.Env
		if a[2] != nil && a[2].Kind == EnvKind {
			enclos = a[2].Env
		}
		env, err := in.evalEnv(c, a[1], enclos)
		if err != nil {
			return nil, err
		}
		return in.Eval(a[0], env)
	})
	in.defSpecial("evalq", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"expr\" is missing, with no default")
		}
		var envV *Value
		if len(c.Args) > 1 {
			var err error
			if envV, err = in.Eval(c.Args[1], c.Env); err != nil {
				return nil, err
			}
		}
		env, err := in.evalEnv(c, envV, c.Env)
		if err != nil {
			return nil, err
		}
		return in.Eval(c.Args[0], env)
	})
	in.def("parse", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("file", "n", "text", "prompt", "keep.source")
		if err != nil {
			return nil, err
		}
		if a[2] == nil {
			return nil, c.errorf("'file' must be a character string or connection")
		}
		text := strings.Join(Strings(a[2]), "\n")
		exprs, err := Parse(text)
		if err != nil {
			return nil, c.errorf("<text>:%s", err.Error())
		}
		return exprs, nil
	})
	in.def("deparse", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("expr", "width.cutoff")
		if err != nil {
			return nil, err
		}
		if a[0] == nil {
			return nil, c.errorf("argument \"expr\" is missing, with no default")
		}
		return Str(strings.Split(Deparse(a[0]), "\n")...), nil
	})
	in.defSpecial("substitute", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return MissingArg, nil
		}
		env := c.Env
		if len(c.Args) > 1 {
			v, err := in.Eval(c.Args[1], c.Env)
			if err != nil {
				return nil, err
			}
			switch v.Kind {
			case EnvKind:
				env = v.Env
			case ListKind:
				env = listEnv(v, nil)
			default:
				return nil, c.errorf("invalid environment specified")
			}
		}
		if env == in.global {
			return c.Args[0], nil
		}
		return substitute(c.Args[0], env), nil
	})
	in.defSpecial("expression", func(in *Interp, c *CallCtx) (*Value, error) {
		return &Value{Kind: ExprKind, Items: append([]*Value(nil), c.Args...)}, nil
	})
	in.defSpecial("bquote", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"expr\" is missing, with no default")
		}
		return in.bquote(c.Args[0], c.Env)
	})
	for _, name := range []string{"as.name", "as.symbol"} {
		in.def(name, func(in *Interp, c *CallCtx) (*Value, error) {
			if len(c.Args) == 0 {
				return nil, c.errorf("argument \"x\" is missing, with no default")
			}
			if c.Args[0].Kind == SymKind {
				return c.Args[0], nil
			}
			s, ok := asStringScalar(c.Args[0])
			if !ok || s == "" {
				return nil, c.errorf("invalid type/length (symbol/%d) in vector allocation", c.Args[0].Len())
			}
			return Sym(s), nil
		})
	}
	in.def("call", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || c.Args[0].Kind != StrKind || len(c.Args[0].Str) != 1 {
			return nil, c.errorf("first argument must be a character string")
		}
		call := Call(Sym(c.Args[0].Str[0]), c.Args[1:]...)
		copy(call.Tags, c.Names[1:])
		return call, nil
	})
	in.def("as.call", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || c.Args[0].Kind != ListKind || len(c.Args[0].Items) == 0 {
			return nil, c.errorf("invalid argument list")
		}
		l := c.Args[0]
		call := Call(l.Items[0], l.Items[1:]...)
		if names := l.Names(); names != nil {
			copy(call.Tags, names[1:])
		}
		return call, nil
	})
	in.def("body", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || c.Args[0].Kind != CloKind {
			return Null, nil
		}
		return c.Args[0].Clo.Body, nil
	})
	in.def("formals", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || c.Args[0].Kind != CloKind {
			return Null, nil
		}
		return formalsList(c.Args[0].Clo), nil
	})
	in.def("args", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || c.Args[0].Kind != CloKind {
			return Null, nil
		}
		clo := *c.Args[0].Clo
		clo.Body = Null
		return &Value{Kind: CloKind, Clo: &clo}, nil
	})
	in.def("match.arg", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("arg", "choices", "several.ok")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || a[1] == nil {
			return nil, c.errorf("'arg' must be of length 1")
		}
		if Identical(a[0], a[1]) {
			return elementAt(a[1], 0), nil
		}
		s, _ := asStringScalar(a[0])
		for _, ch := range Strings(a[1]) {
			if strings.HasPrefix(ch, s) {
				return Str(ch), nil
			}
		}
		return nil, c.errorf("'arg' should be one of %s", strings.Join(quoteAll(Strings(a[1])), ", "))
	})
	in.def("force", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return Null, nil
		}
		return c.Args[0], nil
	})
	in.def("identity", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		return c.Args[0], nil
	})
	in.def("lockBinding", func(in *Interp, c *CallCtx) (*Value, error) {
		name, env, err := bindingArgs(c)
		if err != nil {
			return nil, err
		}
		env.Lock(name)
		in.visible = false
		return Null, nil
	})
	in.def("unlockBinding", func(in *Interp, c *CallCtx) (*Value, error) {
		name, env, err := bindingArgs(c)
		if err != nil {
			return nil, err
		}
		delete(env.locked, name)
		in.visible = false
		return Null, nil
	})
	in.def("bindingIsLocked", func(in *Interp, c *CallCtx) (*Value, error) {
		name, env, err := bindingArgs(c)
		if err != nil {
			return nil, err
		}
		return Bool(env.IsLocked(name)), nil
	})
	in.defSpecial("delayedAssign", func(in *Interp, c *CallCtx) (*Value, error) {
		var nameExpr, valueExpr, evalEnvExpr, assignEnvExpr *Value
		pos := 0
		for i, a := range c.Args {
			switch c.Names[i] {
			case "x":
				nameExpr = a
			case "value":
				valueExpr = a
			case "eval.env":
				evalEnvExpr = a
			case "assign.env":
				assignEnvExpr = a
			default:
				switch pos {
				case 0:
					nameExpr = a
				case 1:
					valueExpr = a
				case 2:
					evalEnvExpr = a
				case 3:
					assignEnvExpr = a
				}
				pos++
			}
		}
		if nameExpr == nil || valueExpr == nil {
			return nil, c.errorf("argument \"value\" is missing, with no default")
		}
		nv, err := in.Eval(nameExpr, c.Env)
		if err != nil {
			return nil, err
		}
		name, ok := asStringScalar(nv)
		if !ok {
			return nil, c.errorf("invalid first argument")
		}
		evalEnv, assignEnv := c.Env, c.Env
		for _, p := range []struct {
			expr *Value
			dst  **Env
		}{{evalEnvExpr, &evalEnv}, {assignEnvExpr, &assignEnv}} {
			if p.expr == nil {
				continue
			}
			v, err := in.Eval(p.expr, c.Env)
			if err != nil {
				return nil, err
			}
			if v.Kind != EnvKind {
				return nil, c.errorf("invalid 'eval.env' argument")
			}
			*p.dst = v.Env
		}
		assignEnv.Set(name, &Value{Kind: PromKind, Prom: &Promise{Expr: valueExpr, Env: evalEnv}})
		in.visible = false
		return Null, nil
	})
	in.def("Sys.getenv", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "unset")
		if err != nil {
			return nil, err
		}
		unset := ""
		if a[1] != nil {
			unset, _ = asStringScalar(a[1])
		}
		if a[0] == nil {
			return Str(os.Environ()...), nil
		}
		keys := Strings(a[0])
		out := make([]string, len(keys))
		for i, k := range keys {
			v, ok := os.LookupEnv(k)
			if !ok {
				v = unset
			}
			out[i] = v
		}
		return Str(out...), nil
	})
}

// getVar looks name up, optionally through parents, skipping bindings that do
// not match mode. It returns nil when nothing is bound.
func (in *Interp) getVar(name string, env *Env, inherits bool, mode string) (*Value, error) {
	for e := env; e != nil; e = e.Parent {
		v, ok := e.vars[name]
		if ok {
			fv, err := in.Force(v)
			if err != nil {
				return nil, err
			}
			if mode == "any" || mode == "" || modeOf(fv) == mode {
				return fv, nil
			}
		}
		if !inherits {
			break
		}
	}
	return nil, nil
}

func modeOf(v *Value) string {
	switch v.Kind {
	case CloKind, BuiltinKind:
		return "function"
	case IntKind, RealKind:
		return "numeric"
	case SymKind:
		return "name"
	case LangKind:
		return "call"
	}
	return v.Kind.String()
}

func envArg(c *CallCtx, i int) (*Env, error) {
	if len(c.Args) <= i {
		return nil, c.errorf("argument is missing, with no default")
	}
	if c.Args[i].Kind != EnvKind {
		return nil, c.errorf("argument is not an environment")
	}
	return c.Args[i].Env, nil
}

func envOpt(c *CallCtx, v *Value, def *Env) (*Env, error) {
	if v == nil {
		return def, nil
	}
	if v.Kind != EnvKind {
		return nil, c.errorf("invalid 'envir' argument")
	}
	return v.Env, nil
}

// evalEnv resolves the envir argument of eval: an environment, a list or
// data frame (bound in a child of enclos), or NULL for enclos itself.
func (in *Interp) evalEnv(c *CallCtx, v *Value, enclos *Env) (*Env, error) {
	switch {
	case v == nil:
		return c.Env, nil
	case v.Kind == EnvKind:
		return v.Env, nil
	case v.Kind == ListKind:
		return listEnv(v, enclos), nil
	case v.Kind == NilKind:
		return enclos, nil
	}
	return nil, c.errorf("invalid 'envir' argument of type '%s'", v.Kind)
}

func listEnv(l *Value, parent *Env) *Env {
	env := NewEnv(parent)
	names := l.Names()
	for i, it := range l.Items {
		if i < len(names) && names[i] != "" {
			env.Set(names[i], it)
		}
	}
	return env
}

func bindingArgs(c *CallCtx) (string, *Env, error) {
	if len(c.Args) < 2 {
		return "", nil, c.errorf("argument \"env\" is missing, with no default")
	}
	name, ok := asStringScalar(c.Args[0])
	if !ok {
		return "", nil, c.errorf("not a symbol")
	}
	if c.Args[1].Kind != EnvKind {
		return "", nil, c.errorf("not an environment")
	}
	return name, c.Args[1].Env, nil
}

func formalsList(clo *Closure) *Value {
	if len(clo.Formals) == 0 {
		return Null
	}
	names := make([]string, len(clo.Formals))
	items := make([]*Value, len(clo.Formals))
	for i, f := range clo.Formals {
		names[i] = f.Name
		items[i] = f.Default
		if items[i] == nil {
			items[i] = MissingArg
		}
	}
	return NamedList(names, items)
}

// substitute replaces symbols bound in env by their promise expressions or
// values.
func substitute(expr *Value, env *Env) *Value {
	switch expr.Kind {
	case SymKind:
		v, ok := env.vars[expr.Name]
		if !ok {
			return expr
		}
		if v.Kind == PromKind {
			return v.Prom.Expr
		}
		if expr.Name == "..." {
			return expr
		}
		return v
	case LangKind:
		out := &Value{Kind: LangKind, Fn: substitute(expr.Fn, env), Attrs: expr.Attrs}
		for i, a := range expr.Items {
			if a.Kind == SymKind && a.Name == "..." {
				if d, ok := env.vars["..."]; ok && d.Kind == ListKind {
					for j, it := range d.Items {
						out.Items = append(out.Items, argExpr(it))
						out.Tags = append(out.Tags, tagAt(d.Tags, j))
					}
					continue
				}
			}
			out.Items = append(out.Items, substitute(a, env))
			out.Tags = append(out.Tags, tagAt(expr.Tags, i))
		}
		return out
	}
	return expr
}

// bquote evaluates .(x) forms inside expr.
func (in *Interp) bquote(expr *Value, env *Env) (*Value, error) {
	if expr.Kind != LangKind {
		return expr, nil
	}
	if expr.Fn.Kind == SymKind && expr.Fn.Name == "." && len(expr.Items) == 1 {
		return in.Eval(expr.Items[0], env)
	}
	out := &Value{Kind: LangKind, Tags: append([]string(nil), expr.Tags...)}
	fn, err := in.bquote(expr.Fn, env)
	if err != nil {
		return nil, err
	}
	out.Fn = fn
	for _, a := range expr.Items {
		v, err := in.bquote(a, env)
		if err != nil {
			return nil, err
		}
		out.Items = append(out.Items, v)
	}
	return out, nil
}

func quoteAll(s []string) []string {
	out := make([]string, len(s))
	for i, x := range s {
		out[i] = "\"" + x + "\""
	}
	return out
}
