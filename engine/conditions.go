package engine

import (
	"strings"

	"github.com/pkg/errors"
)

// interruptCondition is handed to interrupt handlers.
var interruptCondition = &Condition{Classes: []string{"interrupt", "condition"}}

func (in *Interp) installConditions() {
	in.def("stop", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("...", "call.")
		if err != nil {
			return nil, err
		}
		args, _ := c.Dots()
		if len(args) == 1 && isConditionValue(args[0]) {
			return nil, conditionFromValue(args[0])
		}
		call := Null
		if asBool(a[1], true) {
			call = in.callerCall(c.Env)
		}
		return nil, &Condition{
			Classes: []string{"simpleError", "error", "condition"},
			Message: messageOf(args),
			Call:    call,
		}
	})
	in.def("warning", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("...", "call.", "immediate.")
		if err != nil {
			return nil, err
		}
		args, _ := c.Dots()
		var cond *Condition
		if len(args) == 1 && isConditionValue(args[0]) {
			cond = conditionFromValue(args[0])
		} else {
			call := Null
			if asBool(a[1], true) {
				call = in.callerCall(c.Env)
			}
			cond = &Condition{Classes: []string{"simpleWarning", "warning", "condition"}, Message: messageOf(args), Call: call}
		}
		if err := in.signalWarning(cond); err != nil {
			return nil, err
		}
		in.visible = false
		return Str(cond.Message), nil
	})
	in.def("message", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("...", "domain", "appendLF")
		if err != nil {
			return nil, err
		}
		args, _ := c.Dots()
		var cond *Condition
		if len(args) == 1 && isConditionValue(args[0]) {
			cond = conditionFromValue(args[0])
		} else {
			msg := messageOf(args)
			if asBool(a[2], true) {
				msg += "\n"
			}
			cond = &Condition{Classes: []string{"simpleMessage", "message", "condition"}, Message: msg, Call: in.callerCall(c.Env)}
		}
		in.visible = false
		if in.handled(cond.Classes) {
			return nil, cond
		}
		if in.suppress["message"] == 0 {
			in.cb.WriteConsole(cond.Message, true)
		}
		return Null, nil
	})
	in.def("signalCondition", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || !isConditionValue(c.Args[0]) {
			return nil, c.errorf("bad condition object")
		}
		cond := conditionFromValue(c.Args[0])
		if in.handled(cond.Classes) {
			return nil, cond
		}
		return Null, nil
	})
	in.def("conditionMessage", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || !isConditionValue(c.Args[0]) {
			return nil, c.errorf("no applicable method for 'conditionMessage'")
		}
		return Str(conditionFromValue(c.Args[0]).Message), nil
	})
	in.def("conditionCall", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 || !isConditionValue(c.Args[0]) {
			return Null, nil
		}
		return orNull(conditionFromValue(c.Args[0]).Call), nil
	})
	for name, classes := range map[string][]string{
		"simpleError":     {"simpleError", "error", "condition"},
		"simpleWarning":   {"simpleWarning", "warning", "condition"},
		"simpleMessage":   {"simpleMessage", "message", "condition"},
		"simpleCondition": {"simpleCondition", "condition"},
	} {
		in.def(name, func(in *Interp, c *CallCtx) (*Value, error) {
			a, err := c.Match("message", "call")
			if err != nil {
				return nil, err
			}
			msg, _ := asStringScalar(orNull(a[0]))
			return (&Condition{Classes: classes, Message: msg, Call: orNull(a[1])}).Value(), nil
		})
	}
	in.def("errorCondition", func(in *Interp, c *CallCtx) (*Value, error) {
		return customCondition(c, "error")
	})
	in.def("warningCondition", func(in *Interp, c *CallCtx) (*Value, error) {
		return customCondition(c, "warning")
	})
	in.defSpecial("tryCatch", builtinTryCatch)
	in.defSpecial("try", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return Null, nil
		}
		silent := false
		if len(c.Args) > 1 {
			v, err := in.Eval(c.Args[1], c.Env)
			if err != nil {
				return nil, err
			}
			silent = asBool(v, false)
		}
		in.catching = append(in.catching, map[string]bool{"error": true})
		v, err := in.Eval(c.Args[0], c.Env)
		in.catching = in.catching[:len(in.catching)-1]
		cond := asCondition(err)
		if cond == nil || !cond.HasClass("error") {
			return v, err
		}
		text := cond.Format()
		if !silent {
			in.cb.WriteConsole(text, true)
		}
		res := Str(text)
		res.SetAttr("class", Str("try-error"))
		res.SetAttr("condition", cond.Value())
		in.visible = false
		return res, nil
	})
	suppress := func(class string) BuiltinFunc {
		return func(in *Interp, c *CallCtx) (*Value, error) {
			if len(c.Args) == 0 {
				return Null, nil
			}
			in.suppress[class]++
			defer func() { in.suppress[class]-- }()
			v, err := in.Eval(c.Args[0], c.Env)
			in.visible = false
			return v, err
		}
	}
	in.defSpecial("suppressWarnings", suppress("warning"))
	in.defSpecial("suppressMessages", suppress("message"))
	in.defSpecial("on.exit", func(in *Interp, c *CallCtx) (*Value, error) {
		f := in.frameOf(c.Env)
		if f == nil {
			return Null, nil
		}
		var expr *Value
		add := false
		for i, a := range c.Args {
			switch c.Names[i] {
			case "add":
				v, err := in.Eval(a, c.Env)
				if err != nil {
					return nil, err
				}
				add = asBool(v, false)
			case "after":
			default:
				if expr == nil {
					expr = a
				}
			}
		}
		switch {
		case expr == nil:
			f.onExit = nil
		case add:
			f.onExit = append(f.onExit, expr)
		default:
			f.onExit = []*Value{expr}
		}
		in.visible = false
		return Null, nil
	})
	in.def("geterrmessage", func(in *Interp, c *CallCtx) (*Value, error) {
		return Str(in.lastError), nil
	})
}

// callerCall returns the call of the closure evaluating in env, or NULL at
// top level.
func (in *Interp) callerCall(env *Env) *Value {
	if f := in.frameOf(env); f != nil {
		return f.Call
	}
	return Null
}

func messageOf(args []*Value) string {
	var sb strings.Builder
	for _, a := range args {
		for _, s := range Strings(a) {
			if s == NAString {
				s = "NA"
			}
			sb.WriteString(s)
		}
	}
	return sb.String()
}

func isConditionValue(v *Value) bool {
	return v.Kind == ListKind && v.Inherits("condition")
}

func conditionFromValue(v *Value) *Condition {
	cond := &Condition{Classes: v.Class(), Call: Null}
	for i, n := range v.Names() {
		switch n {
		case "message":
			cond.Message, _ = asStringScalar(v.Items[i])
		case "call":
			cond.Call = v.Items[i]
		}
	}
	return cond
}

func customCondition(c *CallCtx, kind string) (*Value, error) {
	a, err := c.Match("message", "...", "class", "call")
	if err != nil {
		return nil, err
	}
	msg, _ := asStringScalar(orNull(a[0]))
	var classes []string
	if a[2] != nil {
		classes = Strings(a[2])
	}
	classes = append(classes, kind, "condition")
	return (&Condition{Classes: classes, Message: msg, Call: orNull(a[3])}).Value(), nil
}

// asCondition converts an evaluation error into the condition a handler
// sees. Control flow and interrupts give nil.
func asCondition(err error) *Condition {
	if err == nil {
		return nil
	}
	var ctl *control
	if errors.As(err, &ctl) || errors.Is(err, ErrQuit) || errors.Is(err, ErrInterrupted) {
		return nil
	}
	var cond *Condition
	if errors.As(err, &cond) {
		return cond
	}
	return &Condition{Classes: []string{"simpleError", "error", "condition"}, Message: err.Error(), Call: Null}
}

type handler struct {
	class string
	fn    *Value
}

func builtinTryCatch(in *Interp, c *CallCtx) (*Value, error) {
	var expr, finally *Value
	var handlers []handler
	catching := map[string]bool{}
	for i, a := range c.Args {
		switch name := c.Names[i]; name {
		case "":
			if expr == nil {
				expr = a
			}
		case "expr":
			expr = a
		case "finally":
			finally = a
		default:
			fn, err := in.Eval(a, c.Env)
			if err != nil {
				return nil, err
			}
			handlers = append(handlers, handler{class: name, fn: fn})
			catching[name] = true
		}
	}
	if finally != nil {
		defer func() {
			visible := in.visible
			if _, err := in.Eval(finally, c.Env); err != nil {
				log.Debugf("finally failed: %s", err)
			}
			in.visible = visible
		}()
	}
	if expr == nil {
		return Null, nil
	}
	in.catching = append(in.catching, catching)
	v, err := in.Eval(expr, c.Env)
	in.catching = in.catching[:len(in.catching)-1]
	if err == nil {
		return v, nil
	}
	var condValue *Value
	var classes []string
	if errors.Is(err, ErrInterrupted) {
		classes = interruptCondition.Classes
		condValue = interruptCondition.Value()
	} else if cond := asCondition(err); cond != nil {
		classes = cond.Classes
		condValue = cond.Value()
		if cond.HasClass("error") {
			in.lastError = cond.Format()
		}
	} else {
		return nil, err
	}
	for _, h := range handlers {
		for _, cl := range classes {
			if cl == h.class {
				return in.Call(h.fn, []*Value{condValue}, nil, c.Env)
			}
		}
	}
	return nil, err
}
