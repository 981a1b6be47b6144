// Package exchange hands control back and forth between the single engine
// goroutine and the goroutines serving client calls.
//
// The engine goroutine talks to the exchange through FromEngine and the
// console helpers; client calls go through Submit and the control methods.
// One mutex guards all shared state. clientCond wakes clients waiting for
// outbound items, engineCond wakes the engine waiting for inbound items.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/semaphore"

	"github.com/chazu/rjs/item"
)

var log = commonlog.GetLogger("rjs.exchange")

// State of the engine as seen by the exchange.
type State int32

const (
	NotStarted State = iota
	RunningInEngine
	WaitingForClient
	Stopped
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case RunningInEngine:
		return "RunningInEngine"
	case WaitingForClient:
		return "WaitingForClient"
	case Stopped:
		return "Stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// clientState is the micro-state of the slot 0 client.
type clientState int

const (
	clientNone clientState = iota
	clientOK
	clientOKWait
	clientCancel
)

// reconnectPoll is the timed wait used while a cancelled client call winds
// down.
const reconnectPoll = 100 * time.Millisecond

var (
	// ErrNotRunning is returned when a client connects to an engine that is
	// not running.
	ErrNotRunning = errors.New("engine is not running")
	// ErrNotConnected is returned for calls from a slot that is not bound.
	ErrNotConnected = errors.New("not connected")
	// ErrInvalidSlot is returned for slot numbers outside [0, NumSlots).
	ErrInvalidSlot = errors.New("invalid slot")
)

// EngineStartError reports a failed engine start. The exchange stays in
// NotStarted.
type EngineStartError struct {
	Cause error
}

func (e *EngineStartError) Error() string { return "engine start failed: " + e.Cause.Error() }
func (e *EngineStartError) Unwrap() error { return e.Cause }

// Engine is the native side driven by the exchange. Interrupt may be called
// from any goroutine; the other methods run on the engine goroutine.
type Engine interface {
	// Interrupt asks the running evaluation to stop.
	Interrupt()
	// Idle runs one native event cycle while the engine waits.
	Idle()
	// ExecData executes a data command and returns it answered.
	ExecData(d *item.Data) item.Item
	// ExecGraphicsOp executes a device request and returns it answered.
	ExecGraphicsOp(op *item.GraphicsOp) item.Item
}

// Plugin receives idle time while the engine waits for clients. A plugin
// whose Idle fails is removed.
type Plugin interface {
	Name() string
	Idle() error
	// Stop is called when the plugin is removed or the engine stops.
	Stop(ok bool)
}

// Response is the outcome of Submit: either a batch of outbound items with
// the busy flag, or a status.
type Response struct {
	Items  []item.Item
	Busy   bool
	Status *item.Status
}

// Exchange owns the engine goroutine and the per-slot queues.
type Exchange struct {
	policy Policy
	engine Engine

	mu         sync.Mutex
	clientCond *sync.Cond
	engineCond *sync.Cond
	// interrupt is held by the engine while it runs idle work and by Cancel.
	interrupt *semaphore.Weighted

	state        atomic.Int32
	starting     bool
	busyAtServer bool
	busyAtClient bool
	client0      clientState
	bound        [NumSlots]bool
	listening    [NumSlots]int
	serverStack  int
	answerFail   int

	stdout    strings.Builder
	stdoutLen int

	outbound [NumSlots]queue
	lastSent [NumSlots][]item.Item
	inbound  queue
	// requests holds the blocking engine items awaiting an answer; the
	// request id of an item is its index.
	requests []item.Item

	hotRequested bool
	hotDelayed   bool
	hot          bool
	hotBase      int

	interrupted atomic.Bool

	slotLocks    [NumSlots]sync.RWMutex
	lastActivity [NumSlots]atomic.Int64

	pluginsMu sync.Mutex
	plugins   []Plugin

	done chan struct{}
}

// New creates an exchange in state NotStarted.
func New(policy Policy) *Exchange {
	x := &Exchange{
		policy:       policy.withDefaults(),
		interrupt:    semaphore.NewWeighted(1),
		busyAtClient: true,
		done:         make(chan struct{}),
	}
	x.clientCond = sync.NewCond(&x.mu)
	x.engineCond = sync.NewCond(&x.mu)
	return x
}

// Policy returns the effective policy.
func (x *Exchange) Policy() Policy { return x.policy }

// State returns the current engine state.
func (x *Exchange) State() State { return State(x.state.Load()) }

func (x *Exchange) setState(s State) { x.state.Store(int32(s)) }

// Done is closed after the engine goroutine has stopped.
func (x *Exchange) Done() <-chan struct{} { return x.done }

// Interrupted reports whether a cancel request arrived since the last
// client command.
func (x *Exchange) Interrupted() bool { return x.interrupted.Load() }

// HotMode reports whether the engine runs the hot sub-loop.
func (x *Exchange) HotMode() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.hot
}

// Start runs init on the calling goroutine and then run on a new engine
// goroutine. The exchange stops when run returns.
func (x *Exchange) Start(engine Engine, init func() error, run func()) error {
	x.mu.Lock()
	switch {
	case x.starting:
		x.mu.Unlock()
		return &EngineStartError{Cause: errors.New("engine is starting")}
	case x.State() != NotStarted:
		x.mu.Unlock()
		return &EngineStartError{Cause: errors.Errorf("engine already %s", x.State())}
	}
	x.starting = true
	x.mu.Unlock()

	if init != nil {
		if err := init(); err != nil {
			x.mu.Lock()
			x.starting = false
			x.mu.Unlock()
			log.Errorf("engine start failed: %s", err.Error())
			return &EngineStartError{Cause: err}
		}
	}

	x.mu.Lock()
	x.starting = false
	if x.State() != NotStarted {
		// Stopped while init ran.
		x.mu.Unlock()
		return &EngineStartError{Cause: errors.Errorf("engine %s during start", x.State())}
	}
	x.engine = engine
	x.setState(RunningInEngine)
	x.mu.Unlock()
	log.Info("engine started")

	go func() {
		defer close(x.done)
		defer x.Stop()
		run()
	}()
	return nil
}

// waitFor waits on c for at most d. The caller holds x.mu.
func (x *Exchange) waitFor(c *sync.Cond, d time.Duration) {
	t := time.AfterFunc(d, func() {
		x.mu.Lock()
		c.Broadcast()
		x.mu.Unlock()
	})
	c.Wait()
	t.Stop()
}

func checkSlot(slot int) error {
	if slot < 0 || slot >= NumSlots {
		return errors.Wrapf(ErrInvalidSlot, "slot %d", slot)
	}
	return nil
}

func (x *Exchange) touch(slot int) {
	x.lastActivity[slot].Store(time.Now().UnixNano())
}

// LastActivity returns the time of the last call from slot.
func (x *Exchange) LastActivity(slot int) time.Time {
	return time.Unix(0, x.lastActivity[slot].Load())
}

// ---------------------------------------------------------------------------
// Client side
// ---------------------------------------------------------------------------

// Connect binds a client to slot. A client connecting to slot 0 while the
// previous one still waits in Submit first cancels that call and waits for
// it to return.
func (x *Exchange) Connect(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	x.slotLocks[slot].Lock()
	defer x.slotLocks[slot].Unlock()
	x.mu.Lock()
	defer x.mu.Unlock()

	switch x.State() {
	case RunningInEngine, WaitingForClient:
	default:
		return ErrNotRunning
	}
	x.touch(slot)
	if slot > 0 {
		x.bound[slot] = true
		log.Debugf("client connected to slot %d", slot)
		return nil
	}

	x.cancelClient0()
	x.busyAtClient = true
	x.client0 = clientOK
	x.answerFail = 0
	x.outbound[0].prepend(x.lastSent[0])
	x.lastSent[0] = nil
	if x.outbound[0].empty() && len(x.requests) > 0 {
		x.outbound[0].push(x.requests[len(x.requests)-1])
	}
	x.bound[0] = true
	log.Info("new client connected to slot 0")
	return nil
}

// cancelClient0 ends a slot 0 call waiting in Submit. The caller holds x.mu.
func (x *Exchange) cancelClient0() {
	if x.client0 != clientOKWait {
		x.client0 = clientNone
		return
	}
	x.client0 = clientCancel
	x.clientCond.Broadcast()
	for x.client0 == clientCancel {
		x.waitFor(x.clientCond, reconnectPoll)
	}
}

// Disconnect unbinds the client of slot.
func (x *Exchange) Disconnect(slot int) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	x.slotLocks[slot].Lock()
	defer x.slotLocks[slot].Unlock()
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.bound[slot] {
		return errors.Wrapf(ErrNotConnected, "slot %d", slot)
	}
	x.bound[slot] = false
	if slot > 0 {
		log.Debugf("client disconnected from slot %d", slot)
		return nil
	}
	x.cancelClient0()
	x.hotRequested = false
	x.cancelHot()
	log.Info("client disconnected from slot 0")
	return nil
}

// cancelHot answers the pending requests of the hot loop with Cancel until
// the engine leaves it. The caller holds x.mu.
func (x *Exchange) cancelHot() {
	deadline := time.Now().Add(x.policy.DrainTimeout)
	for x.hot {
		if n := len(x.requests); n > x.hotBase {
			req := x.requests[n-1]
			if !req.IsTerminal() {
				if err := req.SetAnswer(item.StatusAnswer(item.Cancelled())); err != nil {
					log.Errorf("cannot cancel hot loop request %s: %s", req.Type(), err.Error())
					return
				}
				x.outbound[0].remove(req)
				x.inbound.push(req)
				x.engineCond.Broadcast()
			}
		}
		if time.Now().After(deadline) {
			log.Warning("hot loop did not end after disconnect")
			return
		}
		x.waitFor(x.clientCond, reconnectPoll)
	}
}

// Submit delivers cmds from slot to the engine and waits for outbound
// items for that slot. An empty cmds polls.
func (x *Exchange) Submit(slot int, cmds []item.Item) Response {
	if err := checkSlot(slot); err != nil {
		return Response{Status: item.NewStatus(item.SeverityError, item.CodeClientError, err.Error())}
	}
	x.slotLocks[slot].RLock()
	if !x.bound[slot] {
		x.slotLocks[slot].RUnlock()
		return Response{Status: item.Disconnected(item.SeverityWarning)}
	}
	x.touch(slot)
	x.mu.Lock()
	x.slotLocks[slot].RUnlock()
	defer x.mu.Unlock()

	x.lastSent[slot] = nil
	return x.submit(slot, cmds)
}

// submit implements Submit. The caller holds x.mu.
func (x *Exchange) submit(slot int, cmds []item.Item) Response {
	if slot == 0 && x.client0 != clientOK {
		return Response{Status: item.Disconnected(item.SeverityWarning)}
	}
	if x.State() == WaitingForClient {
		if len(cmds) == 0 && x.outbound[slot].empty() {
			if slot > 0 {
				return Response{Status: item.NewStatus(item.SeverityError, item.CodeClientError, "Nothing to do.")}
			}
			x.retryRequest()
		} else {
			x.answerFail = 0
		}
	}
	if len(cmds) > 0 {
		x.interrupted.Store(false)
		for _, it := range cmds {
			if x.State() == Stopped {
				x.rejectStopped(it)
				continue
			}
			x.inbound.push(it)
		}
	}

	x.engineCond.Broadcast()
	if slot == 0 {
		x.client0 = clientOKWait
	}
	for x.outbound[slot].empty() && x.State() != Stopped &&
		(x.State() == RunningInEngine || !x.inbound.empty() || x.hotRequested) &&
		(slot > 0 || (x.client0 == clientOKWait && x.stdoutLen == 0 && x.busyAtClient == x.busyAtServer)) {
		x.listening[slot]++
		x.clientCond.Wait()
		x.listening[slot]--
	}
	if slot == 0 && x.client0 == clientOKWait {
		x.client0 = clientOK
	}

	if slot > 0 || x.client0 == clientOK {
		if x.stdoutLen > 0 {
			x.flushStdout()
		}
		if x.State() == Stopped && x.outbound[slot].empty() {
			return Response{Status: item.Stopped(item.SeverityInfo)}
		}
		x.busyAtClient = x.busyAtServer
		items := x.outbound[slot].drain()
		x.lastSent[slot] = items
		return Response{Items: items, Busy: x.busyAtClient}
	}
	x.client0 = clientNone
	return Response{Status: item.Disconnected(item.SeverityCancel)}
}

// retryRequest handles a slot 0 poll while the engine waits and nothing is
// queued: the pending request is sent again, and once the retry budget is
// used up it is failed so the engine can continue. The caller holds x.mu.
func (x *Exchange) retryRequest() {
	if len(x.requests) == 0 {
		return
	}
	req := x.requests[len(x.requests)-1]
	if x.answerFail < x.policy.AnswerRetries {
		x.answerFail++
		x.outbound[0].push(req)
		log.Warningf("unanswered request, retry %d: %s", x.answerFail, req.Type())
		return
	}
	if err := req.SetAnswer(item.StatusAnswer(item.NewStatus(item.SeverityError, item.CodeNone, "Unanswered request."))); err != nil {
		log.Errorf("cannot fail unanswered request %s: %s", req.Type(), err.Error())
		return
	}
	x.inbound.push(req)
	log.Errorf("unanswered request, skipped: %s", req.Type())
}

// Cancel interrupts the running evaluation. It is a no-op while the engine
// idles at its prompt.
func (x *Exchange) Cancel() *item.Status {
	ctx, cancel := context.WithTimeout(context.Background(), x.policy.CancelTimeout)
	defer cancel()
	if err := x.interrupt.Acquire(ctx, 1); err != nil {
		log.Warning("cancel request timed out")
		return item.NewStatus(item.SeverityError, item.CodeCancelTimeout, "Timeout.")
	}
	defer x.interrupt.Release(1)

	x.mu.Lock()
	active := x.State() == RunningInEngine || (x.State() == WaitingForClient && x.busyAtServer)
	engine := x.engine
	x.mu.Unlock()
	if !active || engine == nil {
		return item.OK()
	}
	x.interrupted.Store(true)
	engine.Interrupt()
	log.Debug("engine interrupted")
	return item.OK()
}

// RequestHotMode asks the engine to enter the hot sub-loop.
func (x *Exchange) RequestHotMode() *item.Status {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.State() == Stopped {
		return item.Stopped(item.SeverityWarning)
	}
	if !x.hotRequested {
		x.hotRequested = true
		if !x.hot {
			x.engineCond.Broadcast()
		}
	}
	return item.OK()
}

// Ping reports whether the engine is alive.
func (x *Exchange) Ping(slot int) *item.Status {
	if checkSlot(slot) == nil {
		x.touch(slot)
	}
	if x.State() == Stopped {
		return item.Stopped(item.SeverityWarning)
	}
	return item.OK()
}

// Bound reports whether a client is bound to slot.
func (x *Exchange) Bound(slot int) bool {
	if checkSlot(slot) != nil {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.bound[slot]
}

// ConsoleWaiting reports whether the slot 0 client currently waits in
// Submit. Such a client is alive even when its last call is old.
func (x *Exchange) ConsoleWaiting() bool {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.client0 == clientOKWait
}

// ---------------------------------------------------------------------------
// Engine side
// ---------------------------------------------------------------------------

// WriteOut buffers console output for slot 0.
func (x *Exchange) WriteOut(text string) {
	if text == "" {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.stdoutLen > 0 && x.stdoutLen+len(text) > x.policy.StdoutBufferSize {
		x.flushStdout()
	}
	x.stdout.WriteString(text)
	x.stdoutLen += len(text)
	if x.listening[0] > 0 {
		x.clientCond.Broadcast()
	}
}

// flushStdout moves buffered output to the outbound queue of slot 0. The
// caller holds x.mu.
func (x *Exchange) flushStdout() {
	x.outbound[0].push(item.NewConsoleWriteOut(x.stdout.String()))
	x.stdout.Reset()
	x.stdoutLen = 0
}

// WriteErr sends error output to slot 0.
func (x *Exchange) WriteErr(text string) {
	x.FromEngine(item.NewConsoleWriteErr(text))
}

// SetBusy records whether the engine is busy and tells waiting clients.
func (x *Exchange) SetBusy(busy bool) {
	x.mu.Lock()
	x.busyAtServer = busy
	x.mu.Unlock()
	x.FromEngine(nil)
}

// Flush hands buffered output to waiting clients.
func (x *Exchange) Flush() { x.FromEngine(nil) }

// FromEngine sends it to its slot. A blocking item waits for its answer;
// client commands arriving meanwhile are executed on the calling (engine)
// goroutine. The answered item is returned; nil for non-blocking items.
func (x *Exchange) FromEngine(it item.Item) item.Item {
	initial := it
	first := true
	for {
		var next item.Item
		var ret item.Item
		var done bool
		func() {
			x.mu.Lock()
			defer x.mu.Unlock()
			if it != nil {
				if x.stdoutLen > 0 {
					x.flushStdout()
				}
				x.outbound[it.Slot()].push(it)
			}
			x.clientCond.Broadcast()

			if first {
				first = false
				if initial == nil || !initial.WaitsForClient() {
					done = true
					return
				}
				initial.SetRequestID(len(x.requests))
				x.requests = append(x.requests, initial)
			}
			if x.State() == Stopped {
				x.answerStopped(initial)
				ret, done = initial, true
				return
			}
			if x.inbound.empty() {
				x.waitForClient()
				if x.State() == Stopped {
					x.answerStopped(initial)
					ret, done = initial, true
					return
				}
			}
			if x.hotRequested {
				return
			}
			next = x.inbound.pop()
			if next.Type().EngineInitiated() {
				if next.RequestID() == initial.RequestID() {
					x.requests = x.requests[:initial.RequestID()]
					ret, done = next, true
					return
				}
				log.Warningf("dropping stale answer %s (request %d, waiting for %d)",
					next.Type(), next.RequestID(), initial.RequestID())
				next = nil
			}
		}()
		if done {
			return ret
		}
		it = x.execute(next)
	}
}

// answerStopped fails a pending request because the engine stopped. The
// caller holds x.mu.
func (x *Exchange) answerStopped(req item.Item) {
	if id := req.RequestID(); id >= 0 && id < len(x.requests) {
		x.requests = x.requests[:id]
	}
	if !req.IsTerminal() {
		if err := req.SetAnswer(item.StatusAnswer(item.Stopped(item.SeverityError))); err != nil {
			log.Errorf("cannot answer %s: %s", req.Type(), err.Error())
		}
	}
}

// waitForClient blocks the engine until a client command or a hot mode
// request arrives, running idle work in between. The caller holds x.mu.
func (x *Exchange) waitForClient() {
	x.setState(WaitingForClient)
	x.serverStack++
	stackID := x.serverStack
	defer func() {
		x.serverStack--
		if x.State() != Stopped {
			x.setState(RunningInEngine)
		}
	}()
	for ((x.inbound.empty() && !x.hotRequested) || x.serverStack > stackID) && x.State() != Stopped {
		x.mu.Unlock()
		x.runIdle()
		x.mu.Lock()
		if (!x.inbound.empty() || x.hotRequested) && x.serverStack <= stackID {
			return
		}
		if x.State() == Stopped {
			return
		}
		x.waitFor(x.engineCond, x.policy.IdlePoll)
	}
}

// runIdle runs the plugins and one engine event cycle under the interrupt
// lock. It is called without x.mu.
func (x *Exchange) runIdle() {
	if err := x.interrupt.Acquire(context.Background(), 1); err != nil {
		return
	}
	defer x.interrupt.Release(1)
	x.pluginsMu.Lock()
	plugins := append([]Plugin(nil), x.plugins...)
	x.pluginsMu.Unlock()
	for _, p := range plugins {
		if err := runPlugin(p); err != nil {
			log.Errorf("plugin %q failed and is disabled: %s", p.Name(), err.Error())
			x.RemovePlugin(p)
			p.Stop(false)
		}
	}
	if x.engine != nil {
		x.engine.Idle()
	}
}

func runPlugin(p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("panic: %v", r)
		}
	}()
	return p.Idle()
}

// execute runs a client command on the engine goroutine; a nil command
// gives the engine a chance to enter the hot loop.
func (x *Exchange) execute(cmd item.Item) item.Item {
	switch c := cmd.(type) {
	case nil:
		x.ProcessEvents()
		return nil
	case *item.Data:
		return x.engine.ExecData(c)
	case *item.GraphicsOp:
		return x.engine.ExecGraphicsOp(c)
	}
	log.Warningf("ignoring unsupported client command %s", cmd.Type())
	return nil
}

// ProcessEvents enters the hot sub-loop when it was requested. It is called
// by the engine between evaluation steps.
func (x *Exchange) ProcessEvents() {
	for {
		x.mu.Lock()
		if !x.hotRequested {
			x.mu.Unlock()
			return
		}
		if x.hot || x.State() == WaitingForClient {
			x.hotRequested = false
			x.hotDelayed = true
			x.mu.Unlock()
			return
		}
		x.hotRequested = false
		x.hot = true
		x.hotBase = len(x.requests)
		x.mu.Unlock()
		log.Debug("entering hot mode")

		x.runHot()

		x.mu.Lock()
		x.hot = false
		if x.hotDelayed && x.State() != Stopped {
			x.hotDelayed = false
			x.hotRequested = true
		}
		again := x.hotRequested
		x.clientCond.Broadcast()
		x.mu.Unlock()
		log.Debug("leaving hot mode")
		if !again {
			return
		}
	}
}

func (x *Exchange) runHot() {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("hot mode failed: %v", r)
		}
	}()
	x.FromEngine(item.NewConsoleRead("", item.ReadHot))
}

// Stop moves the exchange to Stopped. Queued client commands are answered
// with a Stopped status and waiting calls are woken; Stop then waits,
// bounded by the drain timeout, for clients to fetch their items.
func (x *Exchange) Stop() {
	x.mu.Lock()
	if x.State() == Stopped {
		x.mu.Unlock()
		return
	}
	x.hot = false
	x.hotRequested = false
	x.hotDelayed = false
	x.setState(Stopped)
	for !x.inbound.empty() {
		x.rejectStopped(x.inbound.pop())
	}
	x.engineCond.Broadcast()
	x.clientCond.Broadcast()
	deadline := time.Now().Add(x.policy.DrainTimeout)
	for x.pendingOutbound() && time.Now().Before(deadline) {
		x.waitFor(x.engineCond, reconnectPoll)
		x.clientCond.Broadcast()
	}
	x.mu.Unlock()
	log.Info("engine stopped")

	x.pluginsMu.Lock()
	plugins := x.plugins
	x.plugins = nil
	x.pluginsMu.Unlock()
	for _, p := range plugins {
		p.Stop(true)
	}
}

// rejectStopped answers a client command with a Stopped status and queues
// it for its slot. Answers to engine requests are dropped. The caller holds
// x.mu.
func (x *Exchange) rejectStopped(cmd item.Item) {
	if cmd.Type().EngineInitiated() {
		return
	}
	if err := cmd.SetAnswer(item.StatusAnswer(item.Stopped(item.SeverityError))); err != nil {
		log.Errorf("cannot answer %s: %s", cmd.Type(), err.Error())
		return
	}
	x.outbound[cmd.Slot()].push(cmd)
}

// pendingOutbound reports whether a bound client still has items to
// fetch. The caller holds x.mu.
func (x *Exchange) pendingOutbound() bool {
	if x.stdoutLen > 0 && x.bound[0] {
		return true
	}
	for slot := range x.outbound {
		if x.bound[slot] && !x.outbound[slot].empty() {
			return true
		}
	}
	return false
}

// AddPlugin registers p for idle time.
func (x *Exchange) AddPlugin(p Plugin) {
	x.pluginsMu.Lock()
	defer x.pluginsMu.Unlock()
	x.plugins = append(x.plugins, p)
}

// RemovePlugin unregisters p.
func (x *Exchange) RemovePlugin(p Plugin) {
	x.pluginsMu.Lock()
	defer x.pluginsMu.Unlock()
	for i, q := range x.plugins {
		if q == p {
			x.plugins = append(x.plugins[:i], x.plugins[i+1:]...)
			return
		}
	}
}
