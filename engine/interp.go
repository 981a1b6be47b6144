package engine

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("rjs.engine")

// ErrInterrupted is returned by evaluation stopped through Interrupt.
var ErrInterrupted = errors.New("interrupted")

// ErrQuit is returned by Run and Eval after quit() was evaluated.
var ErrQuit = errors.New("quit requested")

// eventInterval is the number of evaluation steps between two
// Callbacks.ProcessEvents calls.
const eventInterval = 256

// Callbacks connects the interpreter to its host. All methods are called on
// the goroutine that runs the interpreter.
type Callbacks interface {
	// ReadConsole returns the next input line, or false when input ended.
	ReadConsole(prompt string, addToHistory bool) (string, bool)
	WriteConsole(text string, isError bool)
	ShowMessage(text string)
	Busy(busy bool)
	FlushConsole()
	ChooseFile(newFile bool) string
	LoadHistory(path string) error
	SaveHistory(path string) error
	// ExecCommand runs a named host extension command.
	ExecCommand(id string, args *Value, wait bool) (*Value, error)
	ProcessEvents()
	// Graphics forwards one drawing operation. Operations returning metrics
	// block for the host's answer.
	Graphics(call GraphicsCall) (*Value, error)
}

// Condition is a signalled error or warning.
type Condition struct {
	Classes []string
	Message string
	Call    *Value
}

func (c *Condition) Error() string { return c.Message }

// HasClass reports whether the condition carries class.
func (c *Condition) HasClass(class string) bool {
	for _, cl := range c.Classes {
		if cl == class {
			return true
		}
	}
	return false
}

// Format renders the condition the way the console shows it.
func (c *Condition) Format() string {
	if c.HasClass("warning") {
		return "Warning message:\n" + c.describe("In ") + "\n"
	}
	return "Error" + c.describe(" in ") + "\n"
}

// describe renders "<lead>call : message", or just the message (prefixed
// with ": " for errors) when there is no call.
func (c *Condition) describe(lead string) string {
	if c.Call == nil || c.Call == Null {
		if lead == "In " {
			return c.Message
		}
		return ": " + c.Message
	}
	call := Deparse(c.Call)
	sep := " : "
	if len(call)+len(c.Message) > 58 {
		sep = " :\n  "
	}
	return lead + call + sep + c.Message
}

// Value returns the condition object handed to handlers.
func (c *Condition) Value() *Value {
	call := c.Call
	if call == nil {
		call = Null
	}
	v := NamedList([]string{"message", "call"}, []*Value{Str(c.Message), call})
	v.SetAttr("class", Str(c.Classes...))
	return v
}

func errorCondition(call *Value, format string, args ...any) *Condition {
	return &Condition{
		Classes: []string{"simpleError", "error", "condition"},
		Message: fmt.Sprintf(format, args...),
		Call:    call,
	}
}

type controlKind int

const (
	ctlBreak controlKind = iota
	ctlNext
	ctlReturn
	ctlAbort
)

// control unwinds the evaluator for loops, return() and browser aborts.
type control struct {
	kind  controlKind
	value *Value
	env   *Env
}

func (c *control) Error() string {
	switch c.kind {
	case ctlBreak, ctlNext:
		return "no loop for break/next, jumping to top level"
	case ctlReturn:
		return "no function to return from, jumping to top level"
	}
	return "aborted"
}

// Frame is one active closure call.
type Frame struct {
	Call   *Value
	Fn     *Value
	Env    *Env
	Caller *Env

	onExit []*Value
}

// Interp is a single-threaded interpreter instance.
type Interp struct {
	cb     Callbacks
	base   *Env
	global *Env
	empty  *Env

	frames   []*Frame
	classes  map[string]*S4Class
	methods  map[string]map[string]*Value
	catching []map[string]bool
	warnings []*Condition
	suppress map[string]int
	devices  *deviceTable

	visible     bool
	steps       int
	browseLevel int
	pending     atomic.Bool
	quitStatus  int
	lastError   string
}

// New creates an interpreter that talks to its host through cb.
func New(cb Callbacks) *Interp {
	in := &Interp{
		cb:       cb,
		classes:  make(map[string]*S4Class),
		methods:  make(map[string]map[string]*Value),
		suppress: make(map[string]int),
		devices:  newDeviceTable(),
	}
	in.empty = NewEnv(nil)
	in.empty.Name = "R_EmptyEnv"
	in.base = NewEnv(in.empty)
	in.base.Name = "base"
	in.global = NewEnv(in.base)
	in.global.Name = "R_GlobalEnv"
	in.installBuiltins()
	return in
}

func (in *Interp) Global() *Env         { return in.global }
func (in *Interp) Base() *Env           { return in.base }
func (in *Interp) Visible() bool        { return in.visible }
func (in *Interp) Callbacks() Callbacks { return in.cb }

// QuitStatus returns the status passed to quit().
func (in *Interp) QuitStatus() int { return in.quitStatus }

// Interrupt asks the running evaluation to stop at its next step. It may be
// called from any goroutine.
func (in *Interp) Interrupt() { in.pending.Store(true) }

// ClearInterrupt drops a pending interrupt.
func (in *Interp) ClearInterrupt() { in.pending.Store(false) }

// checkInterrupt consumes a pending interrupt and periodically lets the host
// process events.
func (in *Interp) checkInterrupt() error {
	if in.pending.Swap(false) {
		return ErrInterrupted
	}
	in.steps++
	if in.steps%eventInterval == 0 {
		in.cb.ProcessEvents()
		if in.pending.Swap(false) {
			return ErrInterrupted
		}
	}
	return nil
}

// ProcessEvents runs one host event cycle immediately.
func (in *Interp) ProcessEvents() { in.cb.ProcessEvents() }

// ---------------------------------------------------------------------------
// Evaluation
// ---------------------------------------------------------------------------

// Eval evaluates expr in env.
func (in *Interp) Eval(expr *Value, env *Env) (*Value, error) {
	switch expr.Kind {
	case SymKind:
		in.visible = true
		return in.evalSym(expr, env)
	case LangKind:
		return in.evalCall(expr, env)
	case PromKind:
		return in.force(expr.Prom)
	case ExprKind:
		var res = Null
		for _, e := range expr.Items {
			v, err := in.Eval(e, env)
			if err != nil {
				return nil, err
			}
			res = v
		}
		return res, nil
	}
	in.visible = true
	return expr, nil
}

// EvalString parses and evaluates text, returning the last value.
func (in *Interp) EvalString(text string, env *Env) (*Value, error) {
	exprs, err := Parse(text)
	if err != nil {
		return nil, err
	}
	in.visible = false
	return in.Eval(exprs, env)
}

func (in *Interp) evalSym(sym *Value, env *Env) (*Value, error) {
	if sym.Name == "" {
		return nil, errorCondition(nil, "argument is missing, with no default")
	}
	v, _ := env.Lookup(sym.Name)
	if v == nil {
		return nil, errorCondition(nil, "object '%s' not found", sym.Name)
	}
	if v.Kind == PromKind {
		return in.force(v.Prom)
	}
	if v.IsMissingArg() {
		return nil, errorCondition(nil, "argument \"%s\" is missing, with no default", sym.Name)
	}
	return v, nil
}

// Force returns the value of v, evaluating it first when it is a promise.
func (in *Interp) Force(v *Value) (*Value, error) {
	if v.Kind == PromKind {
		return in.force(v.Prom)
	}
	return v, nil
}

func (in *Interp) force(p *Promise) (*Value, error) {
	if p.Forced {
		return p.Value, nil
	}
	if p.Env == nil {
		return nil, errorCondition(nil, "promise already under evaluation: recursive default argument reference or earlier problems?")
	}
	env := p.Env
	p.Env = nil
	v, err := in.Eval(p.Expr, env)
	if err != nil {
		p.Env = env
		return nil, err
	}
	p.Value, p.Forced = v, true
	return v, nil
}

// findFun looks up a function binding, skipping non-function values.
func (in *Interp) findFun(name string, env *Env) (*Value, error) {
	for e := env; e != nil; e = e.Parent {
		v, ok := e.vars[name]
		if !ok {
			continue
		}
		if v.Kind == PromKind {
			fv, err := in.force(v.Prom)
			if err != nil {
				return nil, err
			}
			v = fv
		}
		if v.Kind == CloKind || v.Kind == BuiltinKind {
			return v, nil
		}
	}
	return nil, errorCondition(nil, "could not find function \"%s\"", name)
}

func (in *Interp) evalCall(call *Value, env *Env) (*Value, error) {
	if err := in.checkInterrupt(); err != nil {
		return nil, err
	}
	var fn *Value
	var err error
	if call.Fn.Kind == SymKind {
		fn, err = in.findFun(call.Fn.Name, env)
	} else {
		fn, err = in.Eval(call.Fn, env)
	}
	if err != nil {
		return nil, withCall(err, call)
	}
	switch fn.Kind {
	case BuiltinKind:
		ctx := &CallCtx{Call: call, Env: env}
		if fn.Builtin.Special {
			ctx.Args, ctx.Names = call.Items, call.Tags
		} else if ctx.Args, ctx.Names, err = in.evalArgs(call, env); err != nil {
			return nil, err
		}
		in.visible = true
		v, err := fn.Builtin.Fn(in, ctx)
		if err != nil {
			return nil, withCall(err, call)
		}
		return v, nil
	case CloKind:
		args, names, err := in.promiseArgs(call, env)
		if err != nil {
			return nil, err
		}
		return in.applyClosure(call, fn, args, names, env)
	}
	return nil, errorCondition(call, "attempt to apply non-function")
}

// withCall attaches call to conditions raised without one.
func withCall(err error, call *Value) error {
	var c *Condition
	if errors.As(err, &c) && c.Call == nil {
		c.Call = call
	}
	return err
}

// dots returns the ... binding of env as promises and tags.
func (in *Interp) dots(env *Env) ([]*Value, []string, error) {
	d, _ := env.Lookup("...")
	if d == nil {
		return nil, nil, errorCondition(nil, "'...' used in an incorrect context")
	}
	if d.Kind != ListKind {
		return nil, nil, nil
	}
	return d.Items, d.Tags, nil
}

func (in *Interp) evalArgs(call *Value, env *Env) ([]*Value, []string, error) {
	args := make([]*Value, 0, len(call.Items))
	names := make([]string, 0, len(call.Items))
	for i, a := range call.Items {
		if a.Kind == SymKind && a.Name == "..." {
			items, tags, err := in.dots(env)
			if err != nil {
				return nil, nil, err
			}
			for j, it := range items {
				v, err := in.Force(it)
				if err != nil {
					return nil, nil, err
				}
				args = append(args, v)
				names = append(names, tags[j])
			}
			continue
		}
		var v *Value
		if a.IsMissingArg() {
			v = MissingArg
		} else {
			var err error
			if v, err = in.Eval(a, env); err != nil {
				return nil, nil, err
			}
		}
		args = append(args, v)
		names = append(names, tagAt(call.Tags, i))
	}
	return args, names, nil
}

func (in *Interp) promiseArgs(call *Value, env *Env) ([]*Value, []string, error) {
	args := make([]*Value, 0, len(call.Items))
	names := make([]string, 0, len(call.Items))
	for i, a := range call.Items {
		switch {
		case a.Kind == SymKind && a.Name == "...":
			items, tags, err := in.dots(env)
			if err != nil {
				return nil, nil, err
			}
			args = append(args, items...)
			names = append(names, tags...)
			continue
		case a.IsMissingArg():
			args = append(args, MissingArg)
		case a.Kind == LangKind || a.Kind == SymKind:
			args = append(args, &Value{Kind: PromKind, Prom: &Promise{Expr: a, Env: env}})
		default:
			args = append(args, a)
		}
		names = append(names, tagAt(call.Tags, i))
	}
	return args, names, nil
}

func tagAt(tags []string, i int) string {
	if i < len(tags) {
		return tags[i]
	}
	return ""
}

// matchArgs binds supplied arguments to formals: exact names, then unique
// partial names for formals before ..., then positions.
func matchArgs(formals []string, args []*Value, names []string) (bound []*Value, dotArgs []*Value, dotNames []string, err error) {
	bound = make([]*Value, len(formals))
	used := make([]bool, len(args))
	dotsAt := -1
	for i, f := range formals {
		if f == "..." {
			dotsAt = i
		}
	}
	for i, n := range names {
		if n == "" {
			continue
		}
		for j, f := range formals {
			if f == n && f != "..." {
				if bound[j] != nil {
					return nil, nil, nil, errorCondition(nil, "formal argument \"%s\" matched by multiple actual arguments", f)
				}
				bound[j], used[i] = args[i], true
				break
			}
		}
	}
	for i, n := range names {
		if n == "" || used[i] {
			continue
		}
		match := -1
		for j, f := range formals {
			if dotsAt >= 0 && j > dotsAt {
				break
			}
			if f != "..." && bound[j] == nil && strings.HasPrefix(f, n) {
				if match >= 0 {
					return nil, nil, nil, errorCondition(nil, "argument %d matches multiple formal arguments", i+1)
				}
				match = j
			}
		}
		if match >= 0 {
			bound[match], used[i] = args[i], true
		}
	}
	next := 0
	for i := range args {
		if used[i] {
			continue
		}
		if names[i] == "" {
			for next < len(formals) && bound[next] != nil && formals[next] != "..." {
				next++
			}
			if next < len(formals) && formals[next] != "..." {
				bound[next], used[i] = args[i], true
				next++
				continue
			}
		}
		if dotsAt < 0 {
			if names[i] != "" {
				return nil, nil, nil, errorCondition(nil, "unused argument (%s = %s)", names[i], Deparse(argExpr(args[i])))
			}
			return nil, nil, nil, errorCondition(nil, "unused argument (%s)", Deparse(argExpr(args[i])))
		}
		dotArgs = append(dotArgs, args[i])
		dotNames = append(dotNames, names[i])
	}
	return bound, dotArgs, dotNames, nil
}

func argExpr(v *Value) *Value {
	if v.Kind == PromKind {
		return v.Prom.Expr
	}
	return v
}

func (in *Interp) applyClosure(call, fn *Value, args []*Value, names []string, caller *Env) (*Value, error) {
	clo := fn.Clo
	formals := make([]string, len(clo.Formals))
	for i, f := range clo.Formals {
		formals[i] = f.Name
	}
	bound, dotArgs, dotNames, err := matchArgs(formals, args, names)
	if err != nil {
		return nil, withCall(err, call)
	}
	env := NewEnv(clo.Env)
	for i, f := range clo.Formals {
		switch {
		case f.Name == "...":
			env.Set("...", &Value{Kind: ListKind, Items: dotArgs, Tags: dotNames})
		case bound[i] != nil && !bound[i].IsMissingArg():
			env.Set(f.Name, bound[i])
		case f.Default != nil && !f.Default.IsMissingArg():
			env.Set(f.Name, &Value{Kind: PromKind, Prom: &Promise{Expr: f.Default, Env: env, fromDefault: true}})
		default:
			env.Set(f.Name, MissingArg)
		}
	}
	frame := &Frame{Call: call, Fn: fn, Env: env, Caller: caller}
	in.frames = append(in.frames, frame)
	defer func() { in.frames = in.frames[:len(in.frames)-1] }()

	v, err := in.Eval(clo.Body, env)
	if len(frame.onExit) > 0 {
		visible := in.visible
		for _, e := range frame.onExit {
			if _, exitErr := in.Eval(e, env); exitErr != nil && err == nil {
				err = exitErr
			}
		}
		in.visible = visible
	}
	if err != nil {
		var ctl *control
		if errors.As(err, &ctl) && ctl.kind == ctlReturn && ctl.env == env {
			return ctl.value, nil
		}
		return nil, err
	}
	return v, nil
}

// Call applies fn to already evaluated arguments.
func (in *Interp) Call(fn *Value, args []*Value, names []string, env *Env) (*Value, error) {
	if names == nil {
		names = make([]string, len(args))
	}
	call := &Value{Kind: LangKind, Fn: fn, Items: make([]*Value, len(args)), Tags: names}
	for i, a := range args {
		call.Items[i] = quoteIfNeeded(a)
	}
	switch fn.Kind {
	case BuiltinKind:
		if fn.Builtin.Special {
			return in.evalCall(call, env)
		}
		in.visible = true
		v, err := fn.Builtin.Fn(in, &CallCtx{Call: call, Env: env, Args: args, Names: names})
		return v, withCall(err, call)
	case CloKind:
		return in.applyClosure(call, fn, args, names, env)
	}
	return nil, errorCondition(nil, "attempt to apply non-function")
}

// quoteIfNeeded wraps language values so that a synthesized call evaluates
// back to them.
func quoteIfNeeded(v *Value) *Value {
	if v.Kind == SymKind || v.Kind == LangKind || v.Kind == PromKind {
		return Call(Sym("quote"), v)
	}
	return v
}

// CallFunction calls the function bound to name with evaluated arguments.
func (in *Interp) CallFunction(name string, args []*Value, names []string, env *Env) (*Value, error) {
	fn, err := in.findFun(name, env)
	if err != nil {
		return nil, err
	}
	return in.Call(fn, args, names, env)
}

func (in *Interp) currentFrame() *Frame {
	if len(in.frames) == 0 {
		return nil
	}
	return in.frames[len(in.frames)-1]
}

// frameOf returns the innermost frame whose environment is env.
func (in *Interp) frameOf(env *Env) *Frame {
	for i := len(in.frames) - 1; i >= 0; i-- {
		if in.frames[i].Env == env {
			return in.frames[i]
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Conditions
// ---------------------------------------------------------------------------

// handled reports whether an active tryCatch catches class.
func (in *Interp) handled(classes []string) bool {
	for i := len(in.catching) - 1; i >= 0; i-- {
		for _, c := range classes {
			if in.catching[i][c] {
				return true
			}
		}
	}
	return false
}

// warn records a warning, or raises it when a handler is waiting for it.
func (in *Interp) warn(call *Value, msg string) error {
	return in.signalWarning(&Condition{Classes: []string{"simpleWarning", "warning", "condition"}, Message: msg, Call: call})
}

func (in *Interp) signalWarning(c *Condition) error {
	if in.handled(c.Classes) {
		return c
	}
	if in.suppress["warning"] > 0 {
		return nil
	}
	in.warnings = append(in.warnings, c)
	return nil
}

// FlushWarnings prints and clears deferred warnings.
func (in *Interp) FlushWarnings() {
	switch n := len(in.warnings); {
	case n == 0:
		return
	case n == 1:
		in.cb.WriteConsole(in.warnings[0].Format(), true)
	default:
		var sb strings.Builder
		sb.WriteString("Warning messages:\n")
		for i, w := range in.warnings {
			fmt.Fprintf(&sb, "%d: %s\n", i+1, w.describe("In "))
		}
		in.cb.WriteConsole(sb.String(), true)
	}
	in.warnings = nil
}

// ---------------------------------------------------------------------------
// Top level
// ---------------------------------------------------------------------------

// EvalTop evaluates one top-level expression and prints its value when
// visible. Errors are printed, not returned, except ErrQuit.
func (in *Interp) EvalTop(expr *Value) error {
	in.visible = true
	v, err := in.Eval(expr, in.global)
	if err == nil && in.visible {
		err = in.PrintValue(v, in.global)
	}
	if err != nil {
		if errors.Is(err, ErrQuit) {
			return err
		}
		in.ReportError(err)
	}
	in.FlushWarnings()
	return nil
}

// ReportError writes err to the error console.
func (in *Interp) ReportError(err error) {
	var c *Condition
	var ctl *control
	switch {
	case errors.Is(err, ErrInterrupted):
		in.cb.WriteConsole("\n", true)
	case errors.As(err, &c):
		in.lastError = c.Format()
		in.cb.WriteConsole(in.lastError, true)
	case errors.As(err, &ctl):
		if ctl.kind != ctlAbort {
			in.cb.WriteConsole("Error: "+ctl.Error()+"\n", true)
		}
	default:
		in.cb.WriteConsole("Error: "+err.Error()+"\n", true)
	}
}

// Run is the read-eval-print loop. It returns when input ends or quit() is
// called.
func (in *Interp) Run() error {
	for {
		src, ok := in.readExpression("> ")
		if !ok {
			return nil
		}
		exprs, err := Parse(src)
		if err != nil {
			in.cb.WriteConsole("Error: "+err.Error()+"\n", true)
			continue
		}
		if len(exprs.Items) == 0 {
			continue
		}
		in.ClearInterrupt()
		in.cb.Busy(true)
		for _, e := range exprs.Items {
			if err := in.EvalTop(e); err != nil {
				in.cb.Busy(false)
				return nil
			}
		}
		in.cb.Busy(false)
	}
}

// readExpression reads lines until they parse or fail for a reason other
// than truncation.
func (in *Interp) readExpression(prompt string) (string, bool) {
	var buf strings.Builder
	for {
		line, ok := in.cb.ReadConsole(prompt, true)
		if !ok {
			return "", false
		}
		buf.WriteString(line)
		if !strings.HasSuffix(line, "\n") {
			buf.WriteByte('\n')
		}
		if _, err := Parse(buf.String()); err != nil && IsIncomplete(err) {
			prompt = "+ "
			continue
		}
		return buf.String(), true
	}
}
