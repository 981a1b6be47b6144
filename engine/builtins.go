package engine

import (
	"github.com/pkg/errors"
)

// CallCtx carries one builtin invocation. Args are evaluated unless the
// builtin is special.
type CallCtx struct {
	Call  *Value
	Env   *Env
	Args  []*Value
	Names []string

	dots     []*Value
	dotNames []string
}

// Match binds Args to formals by name, partial name and position. Unbound
// formals come back nil; arguments not matched are kept as dots when
// formals include "...".
func (c *CallCtx) Match(formals ...string) ([]*Value, error) {
	bound, dots, dotNames, err := matchArgs(formals, c.Args, c.Names)
	if err != nil {
		return nil, err
	}
	for i, b := range bound {
		if b != nil && b.IsMissingArg() {
			bound[i] = nil
		}
	}
	c.dots, c.dotNames = dots, dotNames
	return bound, nil
}

// Dots returns the arguments collected by "..." in the last Match.
func (c *CallCtx) Dots() ([]*Value, []string) { return c.dots, c.dotNames }

func (c *CallCtx) errorf(format string, args ...any) error {
	return errorCondition(c.Call, format, args...)
}

// arity checks the exact argument count of a builtin.
func (c *CallCtx) arity(n int) error {
	if len(c.Args) != n {
		name := "function"
		if c.Call.Fn.Kind == SymKind {
			name = c.Call.Fn.Name
		}
		return c.errorf("%d arguments passed to '%s' which requires %d", len(c.Args), name, n)
	}
	return nil
}

// Define binds a host builtin in the base environment.
func (in *Interp) Define(name string, fn BuiltinFunc) { in.def(name, fn) }

func (in *Interp) def(name string, fn BuiltinFunc) {
	in.base.Set(name, NewBuiltin(name, fn))
}

func (in *Interp) defSpecial(name string, fn BuiltinFunc) {
	in.base.Set(name, &Value{Kind: BuiltinKind, Builtin: &Builtin{Name: name, Special: true, Fn: fn}})
}

func (in *Interp) installBuiltins() {
	in.installLanguage()
	in.installArith()
	in.installVectors()
	in.installAttributes()
	in.installIndexing()
	in.installEnvironment()
	in.installConditions()
	in.installConsole()
	in.installS4()
	in.installGraphics()

	in.base.Set("T", Lgl(1))
	in.base.Set("F", Lgl(0))
	in.base.Set("pi", Real(3.141592653589793))
	in.base.Set("LETTERS", Str(splitChars("ABCDEFGHIJKLMNOPQRSTUVWXYZ")...))
	in.base.Set("letters", Str(splitChars("abcdefghijklmnopqrstuvwxyz")...))
	in.base.Set(".GlobalEnv", EnvValue(in.global))
}

func splitChars(s string) []string {
	out := make([]string, len(s))
	for i := range s {
		out[i] = s[i : i+1]
	}
	return out
}

// ---------------------------------------------------------------------------
// Language constructs
// ---------------------------------------------------------------------------

func (in *Interp) installLanguage() {
	in.defSpecial("quote", func(in *Interp, c *CallCtx) (*Value, error) {
		if err := c.arity(1); err != nil {
			return nil, err
		}
		return c.Args[0], nil
	})
	in.defSpecial("(", func(in *Interp, c *CallCtx) (*Value, error) {
		v, err := in.Eval(c.Args[0], c.Env)
		in.visible = true
		return v, err
	})
	in.defSpecial("{", func(in *Interp, c *CallCtx) (*Value, error) {
		res := Null
		in.visible = true
		for _, e := range c.Args {
			v, err := in.Eval(e, c.Env)
			if err != nil {
				return nil, err
			}
			res = v
		}
		return res, nil
	})
	in.defSpecial("if", builtinIf)
	in.defSpecial("for", builtinFor)
	in.defSpecial("while", builtinWhile)
	in.defSpecial("repeat", builtinRepeat)
	in.defSpecial("break", func(in *Interp, c *CallCtx) (*Value, error) {
		return nil, &control{kind: ctlBreak}
	})
	in.defSpecial("next", func(in *Interp, c *CallCtx) (*Value, error) {
		return nil, &control{kind: ctlNext}
	})
	in.defSpecial("return", func(in *Interp, c *CallCtx) (*Value, error) {
		v := Null
		if len(c.Args) > 0 {
			var err error
			if v, err = in.Eval(c.Args[0], c.Env); err != nil {
				return nil, err
			}
		}
		return nil, &control{kind: ctlReturn, value: v, env: c.Env}
	})
	in.defSpecial("function", func(in *Interp, c *CallCtx) (*Value, error) {
		formals := c.Args[0]
		clo := &Closure{Body: c.Args[1], Env: c.Env}
		for i, name := range formals.Names() {
			clo.Formals = append(clo.Formals, Formal{Name: name, Default: formals.Items[i]})
		}
		return &Value{Kind: CloKind, Clo: clo}, nil
	})
	in.defSpecial("<-", func(in *Interp, c *CallCtx) (*Value, error) { return in.assignOp(c, false) })
	in.defSpecial("=", func(in *Interp, c *CallCtx) (*Value, error) { return in.assignOp(c, false) })
	in.defSpecial("<<-", func(in *Interp, c *CallCtx) (*Value, error) { return in.assignOp(c, true) })
	in.defSpecial("::", func(in *Interp, c *CallCtx) (*Value, error) {
		return in.Eval(c.Args[1], in.global)
	})
	in.defSpecial("~", func(in *Interp, c *CallCtx) (*Value, error) {
		f := c.Call.Copy()
		f.SetAttr("class", Str("formula"))
		return f, nil
	})
	in.defSpecial("missing", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) != 1 || c.Args[0].Kind != SymKind {
			return nil, c.errorf("invalid use of 'missing'")
		}
		v, ok := c.Env.Get(c.Args[0].Name)
		if !ok {
			return nil, c.errorf("'missing' can only be used for arguments")
		}
		return Bool(v.IsMissingArg() || (v.Kind == PromKind && v.Prom.fromDefault)), nil
	})
	in.defSpecial("switch", builtinSwitch)
	in.def("invisible", func(in *Interp, c *CallCtx) (*Value, error) {
		in.visible = false
		if len(c.Args) == 0 {
			return Null, nil
		}
		return c.Args[0], nil
	})
	in.def("Recall", func(in *Interp, c *CallCtx) (*Value, error) {
		f := in.frameOf(c.Env)
		if f == nil {
			return nil, c.errorf("'Recall' called from outside a closure")
		}
		return in.Call(f.Fn, c.Args, c.Names, c.Env)
	})
}

// assignOp implements <-, = and <<-.
func (in *Interp) assignOp(c *CallCtx, super bool) (*Value, error) {
	if len(c.Args) != 2 {
		return nil, c.errorf("invalid assignment")
	}
	val, err := in.Eval(c.Args[1], c.Env)
	if err != nil {
		return nil, err
	}
	if err := in.assign(c.Args[0], val, c.Env, super); err != nil {
		return nil, err
	}
	in.visible = false
	return val, nil
}

// assign stores val into the location described by target. Calls such as
// names(x) or x$a become replacement function calls: x <- `names<-`(x, value=val).
func (in *Interp) assign(target, val *Value, env *Env, super bool) error {
	switch target.Kind {
	case SymKind:
		return in.setVar(target.Name, val, env, super)
	case StrKind:
		if len(target.Str) == 1 {
			return in.setVar(target.Str[0], val, env, super)
		}
	case LangKind:
		if target.Fn.Kind != SymKind || len(target.Items) == 0 {
			break
		}
		objExpr := target.Items[0]
		cur, err := in.assignTargetValue(objExpr, env, super)
		if err != nil {
			return err
		}
		args := []*Value{cur}
		names := []string{""}
		for i, a := range target.Items[1:] {
			if (target.Fn.Name == "$" || target.Fn.Name == "@") && a.Kind == SymKind {
				args = append(args, Str(a.Name))
			} else if a.IsMissingArg() {
				args = append(args, MissingArg)
			} else {
				v, err := in.Eval(a, env)
				if err != nil {
					return err
				}
				args = append(args, v)
			}
			names = append(names, tagAt(target.Tags, i+1))
		}
		args = append(args, val)
		names = append(names, "value")
		repl, err := in.findFun(target.Fn.Name+"<-", env)
		if err != nil {
			return err
		}
		updated, err := in.Call(repl, args, names, env)
		if err != nil {
			return err
		}
		return in.assign(objExpr, updated, env, super)
	}
	return errorCondition(nil, "invalid assignment target")
}

func (in *Interp) assignTargetValue(expr *Value, env *Env, super bool) (*Value, error) {
	if expr.Kind == SymKind {
		start := env
		if super {
			start = env.Parent
		}
		v, _ := start.Lookup(expr.Name)
		if v == nil {
			return nil, errorCondition(nil, "object '%s' not found", expr.Name)
		}
		return in.Force(v)
	}
	if expr.Kind == LangKind {
		return in.Eval(expr, env)
	}
	return nil, errorCondition(nil, "invalid assignment target")
}

func (in *Interp) setVar(name string, val *Value, env *Env, super bool) error {
	target := env
	if super {
		target = in.global
		for e := env.Parent; e != nil; e = e.Parent {
			if _, ok := e.vars[name]; ok {
				target = e
				break
			}
		}
	}
	if target.IsLocked(name) {
		return errorCondition(nil, "cannot change value of locked binding for '%s'", name)
	}
	target.Set(name, val)
	return nil
}

func builtinIf(in *Interp, c *CallCtx) (*Value, error) {
	cond, err := in.Eval(c.Args[0], c.Env)
	if err != nil {
		return nil, err
	}
	ok, err := conditionValue(c, cond)
	if err != nil {
		return nil, err
	}
	if ok {
		return in.Eval(c.Args[1], c.Env)
	}
	if len(c.Args) > 2 {
		return in.Eval(c.Args[2], c.Env)
	}
	in.visible = false
	return Null, nil
}

func conditionValue(c *CallCtx, v *Value) (bool, error) {
	if v.Len() == 0 {
		return false, c.errorf("argument is of length zero")
	}
	l := asLogicalVector(v)
	if l == nil {
		return false, c.errorf("argument is not interpretable as logical")
	}
	if l.Lgl[0] == NALogical {
		return false, c.errorf("missing value where TRUE/FALSE needed")
	}
	if v.Len() > 1 {
		return false, c.errorf("the condition has length > 1")
	}
	return l.Lgl[0] != 0, nil
}

// loopBody evaluates one iteration and reports whether the loop should stop.
func (in *Interp) loopBody(body *Value, env *Env) (bool, error) {
	_, err := in.Eval(body, env)
	if err == nil {
		return false, nil
	}
	var ctl *control
	if errors.As(err, &ctl) {
		switch ctl.kind {
		case ctlBreak:
			return true, nil
		case ctlNext:
			return false, nil
		}
	}
	return true, err
}

func builtinFor(in *Interp, c *CallCtx) (*Value, error) {
	seq, err := in.Eval(c.Args[1], c.Env)
	if err != nil {
		return nil, err
	}
	name := c.Args[0].Name
	n := seq.Len()
	if seq.Kind == EnvKind || seq.Kind == CloKind || seq.Kind == BuiltinKind {
		return nil, c.errorf("invalid for() loop sequence")
	}
	for i := 0; i < n; i++ {
		c.Env.Set(name, elementAt(seq, i))
		stop, err := in.loopBody(c.Args[2], c.Env)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}
	in.visible = false
	return Null, nil
}

func builtinWhile(in *Interp, c *CallCtx) (*Value, error) {
	for {
		cond, err := in.Eval(c.Args[0], c.Env)
		if err != nil {
			return nil, err
		}
		ok, err := conditionValue(c, cond)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		stop, err := in.loopBody(c.Args[1], c.Env)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}
	in.visible = false
	return Null, nil
}

func builtinRepeat(in *Interp, c *CallCtx) (*Value, error) {
	for {
		if err := in.checkInterrupt(); err != nil {
			return nil, err
		}
		stop, err := in.loopBody(c.Args[0], c.Env)
		if err != nil {
			return nil, err
		}
		if stop {
			break
		}
	}
	in.visible = false
	return Null, nil
}

func builtinSwitch(in *Interp, c *CallCtx) (*Value, error) {
	if len(c.Args) == 0 {
		return nil, c.errorf("'EXPR' is missing")
	}
	sel, err := in.Eval(c.Args[0], c.Env)
	if err != nil {
		return nil, err
	}
	alts, tags := c.Args[1:], c.Names[1:]
	if sel.Kind == StrKind {
		if len(sel.Str) != 1 {
			return nil, c.errorf("EXPR must be a length 1 vector")
		}
		for i, t := range tags {
			if t != sel.Str[0] {
				continue
			}
			for j := i; j < len(alts); j++ {
				if !alts[j].IsMissingArg() {
					return in.Eval(alts[j], c.Env)
				}
			}
		}
		for i, t := range tags {
			if t == "" {
				return in.Eval(alts[i], c.Env)
			}
		}
		in.visible = false
		return Null, nil
	}
	n, ok := asIntScalar(sel)
	if !ok || n < 1 || n > len(alts) {
		in.visible = false
		return Null, nil
	}
	return in.Eval(alts[n-1], c.Env)
}
