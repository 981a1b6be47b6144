// Package client is the remote side of the exchange. A Client owns one slot
// of a server, drives RunMainLoop and hands the engine's callbacks to a
// Handler.
package client

import (
	"context"
	"sync"
	"sync/atomic"

	"connectrpc.com/connect"
	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

var log = commonlog.GetLogger("rjs.client")

// MaxDataLevels bounds the nesting of data commands issued from handler
// callbacks.
const MaxDataLevels = 16

var (
	// ErrCancelled is returned for commands the engine gave up on request.
	ErrCancelled = errors.New("cancelled")
	// ErrDisconnected is returned once the client lost its server.
	ErrDisconnected = errors.New("disconnected")
	// ErrStopped is returned once the engine has stopped.
	ErrStopped = errors.New("engine stopped")
	// ErrUnhandled is returned by handlers for callbacks they do not
	// implement.
	ErrUnhandled = errors.New("unhandled callback")
	// ErrTooDeep is returned when data commands nest beyond MaxDataLevels.
	ErrTooDeep = errors.New("too many nested data levels")
)

// StatusError is a failed command.
type StatusError struct {
	Status *item.Status
}

func (e *StatusError) Error() string { return "Evaluation failed: " + e.Status.Message }

// Handler receives the engine's callbacks. The context passed to a handler
// may be used for nested data commands on the same client.
type Handler interface {
	ReadConsole(ctx context.Context, prompt string, addToHistory bool) (string, error)
	WriteConsole(text string, isError bool)
	ShowMessage(text string)
	// ExtUI runs a UI command. For commands that do not wait the value is
	// ignored.
	ExtUI(ctx context.Context, ui *item.ExtUI) (rdata.Object, error)
	// Graphics draws one primitive. Metric ops return their numeric answer.
	Graphics(ctx context.Context, g *item.Graphics) (rdata.Object, error)
	Busy(busy bool)
}

// HotHandler is implemented by handlers with work for the hot loop. Hot may
// issue data commands through ctx while the engine is busy.
type HotHandler interface {
	Hot(ctx context.Context) error
}

// Client is connected to one slot.
type Client struct {
	rpc     *api.ConsoleServiceClient
	handler Handler
	slot    int
	token   string

	// mu serializes the outermost main loop.
	mu           sync.Mutex
	busy         bool
	disconnected atomic.Bool
}

type levelKey struct{}

func levelOf(ctx context.Context) int {
	level, _ := ctx.Value(levelKey{}).(int)
	return level
}

// Dial connects a new client to slot.
func Dial(ctx context.Context, rpc *api.ConsoleServiceClient, slot int, name string, handler Handler) (*Client, error) {
	resp, err := rpc.Connect(ctx, &api.ConnectRequest{Slot: int32(slot), Name: name})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to slot %d", slot)
	}
	log.Debugf("connected to slot %d", slot)
	return &Client{rpc: rpc, handler: handler, slot: slot, token: resp.Token}, nil
}

// Slot returns the slot of the client.
func (c *Client) Slot() int { return c.slot }

// Disconnected reports whether the client lost its server.
func (c *Client) Disconnected() bool { return c.disconnected.Load() }

// Close disconnects from the server.
func (c *Client) Close(ctx context.Context) error {
	if c.disconnected.Swap(true) {
		return nil
	}
	_, err := c.rpc.Disconnect(ctx, &api.DisconnectRequest{Token: c.token})
	return errors.Wrap(err, "disconnect")
}

// ---------------------------------------------------------------------------
// Data commands
// ---------------------------------------------------------------------------

// EvalVoid evaluates expr for its side effects.
func (c *Client) EvalVoid(ctx context.Context, expr string) error {
	_, err := c.run(ctx, item.NewEvalVoid(c.slot, expr))
	return err
}

// EvalData evaluates expr and returns its value down to depth levels
// (-1 for unlimited, capped at item.MaxDepth).
func (c *Client) EvalData(ctx context.Context, expr string, depth int) (rdata.Object, error) {
	return c.value(ctx, item.NewEvalData(c.slot, expr, depth, ""))
}

// Call calls the function fun with args; tagged list items become named
// arguments.
func (c *Client) Call(ctx context.Context, fun string, args *rdata.List, depth int) (rdata.Object, error) {
	return c.value(ctx, item.NewEvalData(c.slot, fun, depth, "").WithArgs(args))
}

// ResolveReference fetches the value behind ref.
func (c *Client) ResolveReference(ctx context.Context, ref *rdata.Reference, depth int) (rdata.Object, error) {
	return c.value(ctx, item.NewResolve(c.slot, ref, depth))
}

// Assign assigns value to target, an assignable expression.
func (c *Client) Assign(ctx context.Context, target string, value rdata.Object) error {
	_, err := c.run(ctx, item.NewAssign(c.slot, target, value))
	return err
}

// GraphicsOp sends a device request (close, resize, redraw).
func (c *Client) GraphicsOp(ctx context.Context, dev int32, code item.GraphicsOpCode, args ...float64) error {
	_, err := c.run(ctx, item.NewGraphicsOp(c.slot, dev, code, args...))
	return err
}

func (c *Client) value(ctx context.Context, d *item.Data) (rdata.Object, error) {
	ans, err := c.run(ctx, d)
	if err != nil {
		return nil, err
	}
	return ans.Value(), nil
}

// run sends cmd and processes batches until its answer arrives.
func (c *Client) run(ctx context.Context, cmd item.Item) (item.Item, error) {
	level := levelOf(ctx)
	if level >= MaxDataLevels {
		return nil, ErrTooDeep
	}
	if level == 0 {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	ctx = context.WithValue(ctx, levelKey{}, level+1)
	ans, err := c.loop(ctx, []item.Item{cmd}, cmd.Type())
	if err != nil {
		return nil, err
	}
	return ans, answerError(ans.Status())
}

func answerError(st *item.Status) error {
	switch {
	case st.IsOK():
		return nil
	case st.Severity == item.SeverityCancel:
		return ErrCancelled
	case st.Code == item.CodeStopped:
		return ErrStopped
	}
	return &StatusError{Status: st}
}

// RunConsole serves the console of slot 0 until the engine stops or ctx
// ends.
func (c *Client) RunConsole(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.loop(context.WithValue(ctx, levelKey{}, 1), nil, item.TypeNone)
	if errors.Is(err, ErrStopped) {
		return nil
	}
	return err
}

// loop exchanges batches until an answered item of type want arrives. With
// want TypeNone it runs until an error.
func (c *Client) loop(ctx context.Context, send []item.Item, want item.Type) (item.Item, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		env, err := c.mainLoop(ctx, send)
		if err != nil {
			return nil, err
		}
		send = nil
		if env.Kind == item.KindStatus {
			return nil, statusError(env.Status)
		}
		if env.Kind != item.KindBatch {
			return nil, errors.Errorf("unexpected %s envelope", env.Kind)
		}
		if env.Busy != c.busy {
			c.busy = env.Busy
			c.handler.Busy(env.Busy)
		}
		var answer item.Item
		for _, it := range env.Items {
			if !it.Type().EngineInitiated() {
				if answer == nil && it.Type() == want && it.IsTerminal() {
					answer = it
				} else {
					log.Warningf("dropping unexpected answer %s", it.Type())
				}
				continue
			}
			if reply := c.handle(ctx, it); reply != nil {
				send = append(send, reply)
			}
		}
		if answer != nil {
			if len(send) > 0 {
				log.Warningf("%d callback answers left after the command ended", len(send))
			}
			return answer, nil
		}
	}
}

func statusError(st *item.Status) error {
	switch st.Code {
	case item.CodeStopped:
		return ErrStopped
	case item.CodeDisconnected:
		return ErrDisconnected
	}
	if st.Severity == item.SeverityCancel {
		return ErrCancelled
	}
	return &StatusError{Status: st}
}

// mainLoop runs one RunMainLoop call. A failed call is followed by a ping;
// when the server still answers, the call is repeated.
func (c *Client) mainLoop(ctx context.Context, send []item.Item) (*item.Envelope, error) {
	if c.disconnected.Load() {
		return nil, ErrDisconnected
	}
	req := api.NewCallRequest(c.token, item.BatchEnvelope(send, false))
	for {
		resp, err := c.rpc.RunMainLoop(ctx, req)
		if err == nil {
			return resp.Envelope(c.slot)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if code := connect.CodeOf(err); code == connect.CodeNotFound || code == connect.CodeInvalidArgument {
			c.disconnected.Store(true)
			return nil, errors.Wrap(ErrDisconnected, err.Error())
		}
		log.Warningf("main loop call failed: %s", err.Error())
		if perr := c.Ping(ctx); perr != nil {
			c.disconnected.Store(true)
			return nil, errors.Wrap(ErrDisconnected, perr.Error())
		}
		if connect.CodeOf(err) != connect.CodeUnavailable {
			// The server may have taken the batch; poll instead of sending it twice.
			req = api.NewCallRequest(c.token, item.BatchEnvelope(nil, false))
		}
	}
}

// handle runs the handler for an engine item and returns the answered item
// when the engine waits for it.
func (c *Client) handle(ctx context.Context, it item.Item) item.Item {
	var a item.Answer
	switch it := it.(type) {
	case *item.ConsoleRead:
		if it.Hot() {
			a = c.hot(ctx)
			break
		}
		line, err := c.handler.ReadConsole(ctx, it.Text(), it.AddToHistory())
		if err != nil {
			log.Warningf("read console: %s", err.Error())
			a = item.StatusAnswer(item.Cancelled())
		} else {
			a = item.TextAnswer(line)
		}
	case *item.ConsoleWrite:
		switch it.Type() {
		case item.TypeConsoleWriteErr:
			c.handler.WriteConsole(it.Text(), true)
		case item.TypeMessage:
			c.handler.ShowMessage(it.Text())
		default:
			c.handler.WriteConsole(it.Text(), false)
		}
		return nil
	case *item.ExtUI:
		v, err := c.handler.ExtUI(ctx, it)
		a = callbackAnswer(it.Command(), v, err)
	case *item.Graphics:
		v, err := c.handler.Graphics(ctx, it)
		a = callbackAnswer(it.Code().String(), v, err)
	default:
		log.Warningf("unsupported engine item %s", it.Type())
		a = item.StatusAnswer(clientError())
	}
	if !it.WaitsForClient() {
		return nil
	}
	if err := it.SetAnswer(a); err != nil {
		log.Errorf("cannot answer %s: %s", it.Type(), err.Error())
		if err := it.SetAnswer(item.StatusAnswer(clientError())); err != nil {
			return nil
		}
	}
	return it
}

// hot runs the hot-mode work of the handler. The engine leaves the hot loop
// once the read is answered.
func (c *Client) hot(ctx context.Context) item.Answer {
	if h, ok := c.handler.(HotHandler); ok {
		if err := h.Hot(ctx); err != nil {
			log.Warningf("hot mode: %s", err.Error())
		}
	}
	return item.TextAnswer("")
}

func callbackAnswer(what string, v rdata.Object, err error) item.Answer {
	if err == nil {
		if v == nil {
			return item.StatusAnswer(item.OK())
		}
		return item.ValueAnswer(v)
	}
	if !errors.Is(err, ErrUnhandled) {
		log.Errorf("%s: %s", what, err.Error())
	}
	return item.StatusAnswer(clientError())
}

func clientError() *item.Status {
	return item.NewStatus(item.SeverityError, item.CodeClientError, "Client error processing current command.")
}
