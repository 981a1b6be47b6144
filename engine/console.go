package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// sleepStep bounds how long Sys.sleep waits between event checks.
const sleepStep = 50 * time.Millisecond

func (in *Interp) installConsole() {
	in.def("print", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"x\" is missing, with no default")
		}
		if err := in.PrintValue(c.Args[0], c.Env); err != nil {
			return nil, err
		}
		in.visible = false
		return c.Args[0], nil
	})
	in.def("print.default", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"x\" is missing, with no default")
		}
		in.cb.WriteConsole(in.Format(c.Args[0]), false)
		in.visible = false
		return c.Args[0], nil
	})
	in.def("cat", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("...", "file", "sep", "fill", "labels", "append")
		if err != nil {
			return nil, err
		}
		sep := " "
		if a[2] != nil {
			sep, _ = asStringScalar(a[2])
		}
		isErr := false
		if a[1] != nil && a[1].Inherits("connection") {
			n, _ := asIntScalar(a[1])
			isErr = n == 2
		}
		args, _ := c.Dots()
		var parts []string
		for _, v := range args {
			p, err := catParts(c, v)
			if err != nil {
				return nil, err
			}
			parts = append(parts, p...)
		}
		var sb strings.Builder
		for i, p := range parts {
			sb.WriteString(p)
			if i < len(parts)-1 {
				sb.WriteString(sep)
			}
		}
		if asBool(a[3], false) && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		in.cb.WriteConsole(sb.String(), isErr)
		in.visible = false
		return Null, nil
	})
	in.def("writeLines", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("text", "con", "sep")
		if err != nil {
			return nil, err
		}
		sep := "\n"
		if a[2] != nil {
			sep, _ = asStringScalar(a[2])
		}
		isErr := false
		if a[1] != nil && a[1].Inherits("connection") {
			n, _ := asIntScalar(a[1])
			isErr = n == 2
		}
		var sb strings.Builder
		for _, s := range Strings(orNull(a[0])) {
			if s == NAString {
				s = "NA"
			}
			sb.WriteString(s + sep)
		}
		in.cb.WriteConsole(sb.String(), isErr)
		in.visible = false
		return Null, nil
	})
	for name, n := range map[string]int32{"stdin": 0, "stdout": 1, "stderr": 2} {
		conn := Int(n)
		conn.SetAttr("class", Str("terminal", "connection"))
		in.def(name, func(in *Interp, c *CallCtx) (*Value, error) { return conn, nil })
	}
	in.def("readline", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("prompt")
		if err != nil {
			return nil, err
		}
		prompt := ""
		if a[0] != nil {
			prompt, _ = asStringScalar(a[0])
		}
		line, ok := in.cb.ReadConsole(prompt, false)
		if !ok {
			return Str(""), nil
		}
		return Str(strings.TrimRight(line, "\r\n")), nil
	})
	in.def("browser", func(in *Interp, c *CallCtx) (*Value, error) {
		return in.browse(c.Env)
	})
	in.def("interactive", func(in *Interp, c *CallCtx) (*Value, error) { return Bool(true), nil })
	in.def("flush.console", func(in *Interp, c *CallCtx) (*Value, error) {
		in.cb.FlushConsole()
		in.visible = false
		return Null, nil
	})
	in.def("file.choose", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("new")
		if err != nil {
			return nil, err
		}
		path := in.cb.ChooseFile(asBool(a[0], false))
		if path == "" {
			return nil, c.errorf("file choice cancelled")
		}
		return Str(path), nil
	})
	historyFile := func(c *CallCtx) (string, error) {
		a, err := c.Match("file")
		if err != nil {
			return "", err
		}
		file := ".Rhistory"
		if a[0] != nil {
			file, _ = asStringScalar(a[0])
		}
		return file, nil
	}
	in.def("loadhistory", func(in *Interp, c *CallCtx) (*Value, error) {
		file, err := historyFile(c)
		if err != nil {
			return nil, err
		}
		if err := in.cb.LoadHistory(file); err != nil {
			return nil, c.errorf("%s", err.Error())
		}
		in.visible = false
		return Null, nil
	})
	in.def("savehistory", func(in *Interp, c *CallCtx) (*Value, error) {
		file, err := historyFile(c)
		if err != nil {
			return nil, err
		}
		if err := in.cb.SaveHistory(file); err != nil {
			return nil, c.errorf("%s", err.Error())
		}
		in.visible = false
		return Null, nil
	})
	in.def("history", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("max.show", "reverse", "pattern")
		if err != nil {
			return nil, err
		}
		limit := Int(25)
		if a[0] != nil {
			limit = Coerce(a[0], IntKind)
		}
		args := NamedList([]string{"max.show", "reverse"}, []*Value{limit, Bool(asBool(a[1], false))})
		if _, err := in.cb.ExecCommand("common/showHistory", args, false); err != nil {
			return nil, c.errorf("%s", err.Error())
		}
		in.visible = false
		return Null, nil
	})
	in.def(".rj.ui", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("command", "args", "wait")
		if err != nil {
			return nil, err
		}
		id, ok := asStringScalar(orNull(a[0]))
		if !ok || id == "" {
			return nil, c.errorf("invalid 'command' argument")
		}
		wait := asBool(a[2], true)
		res, err := in.cb.ExecCommand(id, orNull(a[1]), wait)
		if err != nil {
			return nil, c.errorf("%s", err.Error())
		}
		if res == nil {
			res = Null
		}
		in.visible = wait
		return res, nil
	})
	in.def("Sys.sleep", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("time")
		if err != nil {
			return nil, err
		}
		secs, ok := asFloatScalar(orNull(a[0]))
		if !ok || secs < 0 {
			return nil, c.errorf("invalid 'time' value")
		}
		deadline := time.Now().Add(time.Duration(secs * float64(time.Second)))
		for {
			in.cb.ProcessEvents()
			if in.pending.Swap(false) {
				return nil, ErrInterrupted
			}
			left := time.Until(deadline)
			if left <= 0 {
				break
			}
			time.Sleep(min(left, sleepStep))
		}
		in.visible = false
		return Null, nil
	})
	in.def("Sys.time", func(in *Interp, c *CallCtx) (*Value, error) {
		now := time.Now()
		v := Real(float64(now.UnixNano()) / 1e9)
		v.SetAttr("class", Str("POSIXct", "POSIXt"))
		return v, nil
	})
	in.defSpecial("system.time", func(in *Interp, c *CallCtx) (*Value, error) {
		if len(c.Args) == 0 {
			return nil, c.errorf("argument \"expr\" is missing, with no default")
		}
		start := time.Now()
		if _, err := in.Eval(c.Args[0], c.Env); err != nil {
			return nil, err
		}
		elapsed := time.Since(start).Seconds()
		v := Real(elapsed, 0, elapsed)
		v.SetAttr("names", Str("user.self", "sys.self", "elapsed"))
		in.visible = true
		return v, nil
	})
	quit := func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("save", "status", "runLast")
		if err != nil {
			return nil, err
		}
		if a[1] != nil {
			in.quitStatus, _ = asIntScalar(a[1])
		}
		log.Infof("quit requested with status %d", in.quitStatus)
		return nil, ErrQuit
	}
	in.def("quit", quit)
	in.def("q", quit)
}

// catParts converts one cat() argument to its output pieces.
func catParts(c *CallCtx, v *Value) ([]string, error) {
	switch {
	case v.Kind == NilKind:
		return nil, nil
	case isFactor(v):
		v = Coerce(v, IntKind)
	case v.Kind == ListKind:
		var out []string
		for _, it := range v.Items {
			if !it.IsAtomic() || it.Len() != 1 {
				return nil, c.errorf("argument 1 (type 'list') cannot be handled by 'cat'")
			}
			p, _ := catParts(c, it)
			out = append(out, p...)
		}
		return out, nil
	case v.Kind == SymKind:
		return []string{v.Name}, nil
	case !v.IsAtomic():
		return nil, c.errorf("argument 1 (type '%s') cannot be handled by 'cat'", v.Kind)
	}
	out := make([]string, v.Len())
	for i := range out {
		if v.Kind == RealKind {
			out[i] = FormatNumber(v.Real[i], 7)
			continue
		}
		out[i] = strAt(v, i)
		if out[i] == NAString {
			out[i] = "NA"
		}
	}
	return out, nil
}

// browse runs a nested prompt evaluating in env until the user continues
// ("c" or an empty line) or quits ("Q").
func (in *Interp) browse(env *Env) (*Value, error) {
	in.browseLevel++
	defer func() { in.browseLevel-- }()
	prompt := fmt.Sprintf("Browse[%d]> ", in.browseLevel)
	for {
		line, ok := in.cb.ReadConsole(prompt, true)
		if !ok {
			break
		}
		cmd := strings.TrimSpace(line)
		switch cmd {
		case "", "c", "cont", "n", "s", "f":
			in.visible = false
			return Null, nil
		case "Q":
			return nil, &control{kind: ctlAbort}
		case "where":
			for i := len(in.frames) - 1; i >= 0; i-- {
				in.cb.WriteConsole(fmt.Sprintf("where %d: %s\n", len(in.frames)-i, Deparse(in.frames[i].Call)), false)
			}
			continue
		}
		exprs, err := Parse(line)
		if err != nil {
			in.cb.WriteConsole("Error: "+err.Error()+"\n", true)
			continue
		}
		for _, e := range exprs.Items {
			in.visible = true
			v, err := in.Eval(e, env)
			if err == nil && in.visible {
				err = in.PrintValue(v, env)
			}
			if err != nil {
				var ctl *control
				if (errors.As(err, &ctl) && ctl.kind == ctlAbort) || errors.Is(err, ErrQuit) {
					return nil, err
				}
				in.ReportError(err)
				break
			}
		}
		in.FlushWarnings()
	}
	in.visible = false
	return Null, nil
}
