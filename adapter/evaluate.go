package adapter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/chazu/rjs/engine"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

// EvaluationError is a data command that failed inside the engine or was
// rejected before evaluation. It is answered with an error status carrying
// Code.
type EvaluationError struct {
	Code    int32
	Message string
}

func (e *EvaluationError) Error() string { return e.Message }

func (e *EvaluationError) Status() *item.Status {
	return item.NewStatus(item.SeverityError, e.Code, e.Message)
}

func evalError(code int32, format string, args ...any) error {
	return &EvaluationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// errCancelled ends a data command stopped by an interrupt.
var errCancelled = errors.New("cancelled")

// ExecData runs a data command of a client on the engine goroutine.
func (c *Context) ExecData(d *item.Data) item.Item {
	if err := d.SetAnswer(c.execData(d)); err != nil {
		log.Errorf("cannot answer %s: %s", d.Kind(), err.Error())
	}
	return d
}

func (c *Context) execData(d *item.Data) (ans item.Answer) {
	scope := c.arena.Scope()
	defer scope.Release()
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("%s of %q failed: %v", d.Kind(), d.Text(), r)
			ans = item.StatusAnswer(item.InternalError())
		}
		if c.x.Interrupted() {
			c.flushInterrupt()
		}
	}()
	if c.x.Interrupted() {
		return item.StatusAnswer(item.Cancelled())
	}

	b := c.newBuilder(d.Slot(), d.Depth(), scope)
	b.flags = d.Flags()
	obj, err := c.dispatch(d, b)
	if err == nil && c.x.Interrupted() {
		err = errCancelled
	}

	var evalErr *EvaluationError
	switch {
	case err == nil:
		if obj == nil {
			return item.StatusAnswer(item.OK())
		}
		return item.ValueAnswer(obj)
	case errors.Is(err, errCancelled), errors.Is(err, engine.ErrInterrupted):
		return item.StatusAnswer(item.Cancelled())
	case errors.As(err, &evalErr):
		log.Debugf("%s: %s", d.Kind(), evalErr.Message)
		return item.StatusAnswer(evalErr.Status())
	}
	log.Errorf("%s of %q failed: %s", d.Kind(), d.Text(), err.Error())
	return item.StatusAnswer(item.InternalError())
}

// flushInterrupt lets the engine consume an interrupt that arrived after the
// command finished, so it does not hit the next evaluation.
func (c *Context) flushInterrupt() {
	if _, err := c.in.EvalString("1+1", c.in.Global()); err != nil {
		log.Debugf("interrupt flush: %s", err.Error())
	}
	c.in.ClearInterrupt()
}

func (c *Context) dispatch(d *item.Data, b *builder) (rdata.Object, error) {
	switch d.Kind() {
	case item.EvalVoid:
		_, err := c.evaluate(d, b, item.CodeEvalVoidFailed)
		return nil, err
	case item.EvalData:
		v, err := c.evaluate(d, b, item.CodeEvalDataFailed)
		if err != nil {
			return nil, err
		}
		return b.object(v), nil
	case item.ResolveReference:
		ref, ok := d.Value().(*rdata.Reference)
		if !ok {
			return nil, evalError(item.CodeInvalidReference, "Invalid reference.")
		}
		v, ok := c.arena.Lookup(engine.Handle(ref.Handle))
		if !ok {
			return nil, evalError(item.CodeInvalidReference, "Invalid reference.")
		}
		return b.object(v), nil
	case item.Assign:
		return nil, c.assign(d.Text(), d.Value(), b.scope)
	}
	return nil, evalError(item.CodeInternal, "Unsupported data command %s.", d.Kind())
}

// evaluate runs the expression text of d, or the function it names when d
// carries arguments.
func (c *Context) evaluate(d *item.Data, b *builder, code int32) (*engine.Value, error) {
	if args, ok := d.Value().(*rdata.List); ok {
		call, err := c.functionCall(d.Text(), args, b.scope)
		if err != nil {
			return nil, err
		}
		return c.eval(call, item.CodeEvalFunctionFailed)
	}
	expr, err := resolveExpression(d.Text())
	if err != nil {
		return nil, err
	}
	return c.eval(expr, code)
}

// resolveExpression parses text into exactly one expression.
func resolveExpression(text string) (*engine.Value, error) {
	exprs, err := engine.Parse(text)
	if err != nil {
		return nil, evalError(item.CodeInvalidExpression, "The specified expression is invalid (syntax error).")
	}
	if len(exprs.Items) != 1 {
		return nil, evalError(item.CodeInvalidExpression, "The specified expression is invalid (not a single expression).")
	}
	return exprs.Items[0], nil
}

// functionCall builds name(args...). A qualified name such as "pkg::fn" is
// parsed.
func (c *Context) functionCall(name string, args *rdata.List, scope *engine.Scope) (*engine.Value, error) {
	var fn *engine.Value
	if strings.Contains(name, ":") {
		expr, err := engine.ParseOne(name)
		if err != nil || expr.Kind != engine.LangKind {
			return nil, evalError(item.CodeInvalidFunction, "The reference to the function is invalid.")
		}
		fn = expr
	} else {
		fn = engine.Sym(name)
	}
	values := make([]*engine.Value, len(args.Items))
	for i, a := range args.Items {
		if a == nil || a.Type() == rdata.TypeMissing {
			values[i] = engine.MissingArg
			continue
		}
		v, err := c.toNative(a, scope)
		if err != nil {
			return nil, err
		}
		values[i] = quote(v)
	}
	call := engine.Call(fn, values...)
	for i := range values {
		call.Tags[i] = args.Name(i)
	}
	return call, nil
}

// eval evaluates expr in the global environment. Errors raised by the code
// are reported with code; the message is what the console would print.
func (c *Context) eval(expr *engine.Value, code int32) (*engine.Value, error) {
	v, err := c.in.Eval(expr, c.in.Global())
	if err == nil {
		return v, nil
	}
	if errors.Is(err, engine.ErrInterrupted) || c.x.Interrupted() {
		return nil, errCancelled
	}
	var cond *engine.Condition
	if !errors.As(err, &cond) {
		return nil, evalError(code, "%s.", failureMessage(code, err.Error()))
	}
	return nil, evalError(code, "%s.", failureMessage(code, strings.TrimRight(cond.Format(), "\n")))
}

func failureMessage(code int32, output string) string {
	switch code {
	case item.CodeEvalDataFailed, item.CodeEvalVoidFailed:
		return "An error occurred when evaluating the specified expression: " + output
	case item.CodeEvalFunctionFailed:
		return "An error occurred when evaluating the function: " + output
	case item.CodeAssignFailed:
		return "An error occurred when assigning the value to the specified expression: " + output
	case item.CodeNewS4Failed:
		return "An error occurred when instancing an S4 object: " + output
	}
	return output
}

// assign evaluates `target <- value` with value converted from obj.
func (c *Context) assign(target string, obj rdata.Object, scope *engine.Scope) error {
	if obj == nil {
		return evalError(item.CodeAssignMissing, "The value to assign is missing.")
	}
	expr, err := resolveExpression(target)
	if err != nil {
		return err
	}
	v, err := c.toNative(obj, scope)
	if err != nil {
		return err
	}
	_, err = c.eval(engine.Call(engine.Sym("<-"), expr, quote(v)), item.CodeAssignFailed)
	return err
}

// quote protects language values from evaluation when they are spliced
// into a call as data.
func quote(v *engine.Value) *engine.Value {
	switch v.Kind {
	case engine.SymKind, engine.LangKind, engine.PromKind:
		return engine.Call(engine.Sym("quote"), v)
	}
	return v
}
