// Package adapter connects the embedded engine to the exchange. It answers
// the engine's console and UI callbacks through exchange items and runs the
// data commands of clients on the engine goroutine.
package adapter

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/rjs/engine"
	"github.com/chazu/rjs/exchange"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

var log = commonlog.GetLogger("rjs.adapter")

// ErrHotMode is returned by callbacks that need a client answer while the
// engine runs the hot loop.
var ErrHotMode = errors.New("not available in hot mode")

// Options control value construction and reference housekeeping.
type Options struct {
	// MaxListLength is the largest list materialized when only the
	// structure is requested.
	MaxListLength int
	// MaxEnvLength is the largest environment whose children are loaded.
	MaxEnvLength int
	// HandleTTL is how long an unused reference handle stays valid.
	HandleTTL time.Duration
	// SweepInterval is the minimum time between two handle sweeps.
	SweepInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxListLength: 10000,
		MaxEnvLength:  10000,
		HandleTTL:     30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxListLength <= 0 {
		o.MaxListLength = def.MaxListLength
	}
	if o.MaxEnvLength <= 0 {
		o.MaxEnvLength = def.MaxEnvLength
	}
	if o.HandleTTL <= 0 {
		o.HandleTTL = def.HandleTTL
	}
	if o.SweepInterval <= 0 {
		o.SweepInterval = def.SweepInterval
	}
	return o
}

// Context owns one engine instance together with its reference arena and
// the exchange it talks through.
type Context struct {
	opts  Options
	x     *exchange.Exchange
	in    *engine.Interp
	arena *engine.Arena

	// lastSweep is only touched on the engine goroutine.
	lastSweep time.Time
}

// New creates the engine for x. The engine does not run before Start.
func New(x *exchange.Exchange, opts Options) *Context {
	c := &Context{
		opts:      opts.withDefaults(),
		x:         x,
		arena:     engine.NewArena(),
		lastSweep: time.Now(),
	}
	c.in = engine.New(c)
	return c
}

// Interp returns the engine.
func (c *Context) Interp() *engine.Interp { return c.in }

// Arena returns the reference arena.
func (c *Context) Arena() *engine.Arena { return c.arena }

// Exchange returns the exchange the engine talks through.
func (c *Context) Exchange() *exchange.Exchange { return c.x }

// Start evaluates profile and then runs the engine's main loop on its own
// goroutine. A failing profile leaves the exchange NotStarted.
func (c *Context) Start(profile string) error {
	init := func() error {
		if strings.TrimSpace(profile) == "" {
			return nil
		}
		if _, err := c.in.EvalString(profile, c.in.Global()); err != nil {
			return errors.Wrap(err, "profile")
		}
		return nil
	}
	return c.x.Start(c, init, func() {
		if err := c.in.Run(); err != nil {
			log.Errorf("engine main loop failed: %s", err.Error())
		}
		log.Infof("engine main loop ended (status %d)", c.in.QuitStatus())
	})
}

// ReleaseSlot drops the references handed out to the client of slot.
func (c *Context) ReleaseSlot(slot int) int {
	return c.arena.ReleaseOwner(slotOwner(slot))
}

// Close stops the exchange, waits for the engine goroutine and releases
// all references.
func (c *Context) Close() {
	c.in.Interrupt()
	c.x.Stop()
	if c.x.State() != exchange.NotStarted {
		<-c.x.Done()
	}
	for slot := 0; slot < exchange.NumSlots; slot++ {
		c.ReleaseSlot(slot)
	}
}

func slotOwner(slot int) string {
	return "slot" + strconv.Itoa(slot)
}

// ---------------------------------------------------------------------------
// exchange.Engine
// ---------------------------------------------------------------------------

func (c *Context) Interrupt() { c.in.Interrupt() }

// Idle expires reference handles nobody used within the handle TTL.
func (c *Context) Idle() {
	if time.Since(c.lastSweep) < c.opts.SweepInterval {
		return
	}
	c.lastSweep = time.Now()
	if n := c.arena.Sweep(c.opts.HandleTTL); n > 0 {
		log.Debugf("released %d expired references", n)
	}
}

// ---------------------------------------------------------------------------
// engine.Callbacks
// ---------------------------------------------------------------------------

// ReadConsole asks the slot 0 client for a line. In hot mode reads are
// answered at once: browser prompts continue, anything else gets an empty
// line.
func (c *Context) ReadConsole(prompt string, addToHistory bool) (string, bool) {
	if c.x.HotMode() {
		if strings.HasPrefix(prompt, "Browse") {
			return "c\n", true
		}
		return "\n", true
	}
	var opts uint32
	if addToHistory {
		opts |= item.ReadAddToHistory
	}
	ans := c.x.FromEngine(item.NewConsoleRead(prompt, opts))
	if st := ans.Status(); st != nil {
		if st.Code == item.CodeStopped {
			return "", false
		}
		return "\n", true
	}
	return ans.Text(), true
}

func (c *Context) WriteConsole(text string, isError bool) {
	if c.x.HotMode() {
		log.Warningf("console output in hot mode: %q", text)
		return
	}
	if isError {
		c.x.WriteErr(text)
		return
	}
	c.x.WriteOut(text)
}

func (c *Context) ShowMessage(text string) {
	if c.x.HotMode() {
		log.Warningf("message in hot mode: %q", text)
		return
	}
	c.x.FromEngine(item.NewMessage(text))
}

func (c *Context) Busy(busy bool) { c.x.SetBusy(busy) }

func (c *Context) FlushConsole() { c.x.Flush() }

func (c *Context) ProcessEvents() { c.x.ProcessEvents() }

// ChooseFile asks the client for a file name. It returns "" when the client
// gave none.
func (c *Context) ChooseFile(newFile bool) string {
	args := rdata.NewNamedList([]string{"newResource"}, []rdata.Object{logicalObject(newFile)})
	v, err := c.extUI(item.UIChooseFile, args, true)
	if err != nil {
		log.Warningf("choose file: %s", err.Error())
		return ""
	}
	if l, ok := v.(*rdata.List); ok {
		v, _ = l.Get("filename")
	}
	if s, ok := stringObject(v); ok {
		return s
	}
	return ""
}

func (c *Context) LoadHistory(path string) error {
	_, err := c.extUI(item.UILoadHistory, filenameArgs(path), true)
	return err
}

func (c *Context) SaveHistory(path string) error {
	_, err := c.extUI(item.UISaveHistory, filenameArgs(path), true)
	return err
}

// ExecCommand forwards a UI command with its arguments to the client and
// converts the answer back into an engine value.
func (c *Context) ExecCommand(id string, args *engine.Value, wait bool) (*engine.Value, error) {
	var obj rdata.Object
	if args != nil && args != engine.Null {
		b := c.newBuilder(0, -1, c.arena.Scope())
		defer b.scope.Release()
		obj = b.build(args, modeForce)
	}
	v, err := c.extUI(id, obj, wait)
	if err != nil || v == nil {
		return engine.Null, err
	}
	scope := c.arena.Scope()
	defer scope.Release()
	return c.toNative(v, scope)
}

func (c *Context) extUI(cmd string, args rdata.Object, wait bool) (rdata.Object, error) {
	if c.x.HotMode() {
		return nil, errors.Wrap(ErrHotMode, cmd)
	}
	ans := c.x.FromEngine(item.NewExtUI(0, cmd, args, wait))
	if !wait {
		return nil, nil
	}
	if st := ans.Status(); !st.IsOK() {
		return nil, errors.Errorf("%s: %s", cmd, st.Message)
	}
	return ans.Value(), nil
}

func filenameArgs(path string) rdata.Object {
	return rdata.NewNamedList([]string{"filename"}, []rdata.Object{rdata.NewVector(rdata.NewCharacterStore(path))})
}

func logicalObject(b bool) rdata.Object {
	v := rdata.False
	if b {
		v = rdata.True
	}
	return rdata.NewVector(rdata.NewLogicalStore(v))
}

func stringObject(obj rdata.Object) (string, bool) {
	v, ok := obj.(*rdata.Vector)
	if !ok {
		return "", false
	}
	s, ok := v.Data.(*rdata.CharacterStore)
	if !ok || s.Len() == 0 || s.IsNA(0) {
		return "", false
	}
	return s.Values[0], true
}
