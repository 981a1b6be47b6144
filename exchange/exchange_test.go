package exchange

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

var testPolicy = Policy{
	IdlePoll:      5 * time.Millisecond,
	CancelTimeout: 50 * time.Millisecond,
	DrainTimeout:  100 * time.Millisecond,
}

// fakeEngine runs a console loop that echoes its input. The line "block"
// keeps the engine busy until release is closed.
type fakeEngine struct {
	x          *Exchange
	release    chan struct{}
	interrupts atomic.Int32
	idles      atomic.Int32
	hotData    atomic.Int32
}

func (e *fakeEngine) Interrupt() { e.interrupts.Add(1) }
func (e *fakeEngine) Idle()      { e.idles.Add(1) }

func (e *fakeEngine) ExecData(d *item.Data) item.Item {
	if e.x.HotMode() {
		e.hotData.Add(1)
	}
	var a item.Answer
	switch d.Text() {
	case "1+1":
		a = item.ValueAnswer(rdata.NewVector(rdata.NewNumericStore(2)))
	case "stop('x')":
		a = item.StatusAnswer(item.NewStatus(item.SeverityError, item.CodeEvalVoidFailed, "Error: x"))
	default:
		a = item.ValueAnswer(rdata.NewVector(rdata.NewCharacterStore(d.Text())))
	}
	if err := d.SetAnswer(a); err != nil {
		panic(err)
	}
	return d
}

func (e *fakeEngine) ExecGraphicsOp(op *item.GraphicsOp) item.Item {
	if err := op.SetAnswer(item.StatusAnswer(item.OK())); err != nil {
		panic(err)
	}
	return op
}

func (e *fakeEngine) run() {
	for {
		ans := e.x.FromEngine(item.NewConsoleRead("> ", item.ReadAddToHistory))
		if st := ans.Status(); st != nil {
			if st.Code == item.CodeStopped {
				return
			}
			continue
		}
		line := strings.TrimSuffix(ans.Text(), "\n")
		e.x.SetBusy(true)
		switch line {
		case "quit":
			e.x.SetBusy(false)
			return
		case "block":
			<-e.release
		default:
			e.x.WriteOut("echo " + line + "\n")
		}
		e.x.SetBusy(false)
	}
}

func startExchange(t *testing.T) (*Exchange, *fakeEngine) {
	t.Helper()
	x := New(testPolicy)
	e := &fakeEngine{x: x, release: make(chan struct{})}
	if err := x.Start(e, nil, e.run); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		x.Stop()
		select {
		case <-x.Done():
		case <-time.After(5 * time.Second):
			t.Error("engine goroutine did not end")
		}
	})
	return x, e
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func (x *Exchange) locked(f func() bool) func() bool {
	return func() bool {
		x.mu.Lock()
		defer x.mu.Unlock()
		return f()
	}
}

// nextRead polls slot 0, sending cmds first, until an unanswered console
// read arrives. It returns the read and the console output seen before it.
func nextRead(t *testing.T, x *Exchange, cmds ...item.Item) (*item.ConsoleRead, string) {
	t.Helper()
	read, out, err := pollRead(x, cmds)
	if err != nil {
		t.Fatal(err)
	}
	return read, out
}

func pollRead(x *Exchange, cmds []item.Item) (*item.ConsoleRead, string, error) {
	var out strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp := x.Submit(0, cmds)
		cmds = nil
		if resp.Status != nil {
			return nil, "", errors.Errorf("Submit: %s", resp.Status)
		}
		for _, it := range resp.Items {
			switch it := it.(type) {
			case *item.ConsoleWrite:
				out.WriteString(it.Text())
			case *item.ConsoleRead:
				if !it.IsTerminal() {
					return it, out.String(), nil
				}
			}
		}
	}
	return nil, "", errors.New("no console read arrived")
}

// submitWithin calls Submit and fails if it has not returned after d.
func submitWithin(x *Exchange, slot int, cmds []item.Item, d time.Duration) (Response, error) {
	result := make(chan Response, 1)
	go func() { result <- x.Submit(slot, cmds) }()
	select {
	case resp := <-result:
		return resp, nil
	case <-time.After(d):
		return Response{}, errors.Errorf("slot %d: Submit still blocked after %s", slot, d)
	}
}

func TestStartFailureKeepsNotStarted(t *testing.T) {
	x := New(testPolicy)
	err := x.Start(&fakeEngine{}, func() error { return errors.New("no engine") }, func() {})
	var startErr *EngineStartError
	if !errors.As(err, &startErr) {
		t.Fatalf("got %v, want *EngineStartError", err)
	}
	if x.State() != NotStarted {
		t.Errorf("state = %s, want NotStarted", x.State())
	}
	if err := x.Connect(0); !errors.Is(err, ErrNotRunning) {
		t.Errorf("Connect before start: got %v, want ErrNotRunning", err)
	}
}

func TestConsoleRoundTrip(t *testing.T) {
	x, _ := startExchange(t)
	if err := x.Connect(0); err != nil {
		t.Fatal(err)
	}
	read, _ := nextRead(t, x)
	if read.Text() != "> " || !read.AddToHistory() {
		t.Errorf("prompt %q history=%v", read.Text(), read.AddToHistory())
	}
	if x.State() != WaitingForClient {
		t.Errorf("state = %s, want WaitingForClient", x.State())
	}
	if err := read.SetAnswer(item.TextAnswer("hello\n")); err != nil {
		t.Fatal(err)
	}
	next, out := nextRead(t, x, read)
	if out != "echo hello\n" {
		t.Errorf("output = %q, want %q", out, "echo hello\n")
	}
	if next == read {
		t.Error("got the answered read again")
	}
}

func TestEvalDataFromAuxiliarySlot(t *testing.T) {
	x, _ := startExchange(t)
	if err := x.Connect(1); err != nil {
		t.Fatal(err)
	}
	resp := x.Submit(1, []item.Item{item.NewEvalData(1, "1+1", item.DepthUnlimited, "")})
	if resp.Status != nil || len(resp.Items) != 1 {
		t.Fatalf("got %+v, want one answered item", resp)
	}
	d := resp.Items[0].(*item.Data)
	want := rdata.NewVector(rdata.NewNumericStore(2))
	if !d.IsTerminal() || !rdata.Equal(d.Value(), want) {
		t.Errorf("answer %v, want 2", d.Value())
	}
}

func TestEvalErrorKeepsEngineRunning(t *testing.T) {
	x, _ := startExchange(t)
	if err := x.Connect(1); err != nil {
		t.Fatal(err)
	}
	resp := x.Submit(1, []item.Item{item.NewEvalVoid(1, "stop('x')")})
	if len(resp.Items) != 1 {
		t.Fatalf("got %+v", resp)
	}
	st := resp.Items[0].Status()
	if st == nil || st.Severity != item.SeverityError || !strings.Contains(st.Message, "x") {
		t.Errorf("status = %s, want error mentioning x", st)
	}
	if s := x.State(); s == Stopped || s == NotStarted {
		t.Errorf("state = %s after evaluation error", s)
	}
}

func TestUnboundSlotIsDisconnected(t *testing.T) {
	x, _ := startExchange(t)
	resp := x.Submit(2, []item.Item{item.NewEvalVoid(2, "1")})
	if resp.Status == nil || resp.Status.Code != item.CodeDisconnected {
		t.Errorf("got %+v, want disconnected status", resp)
	}
	if err := x.Disconnect(2); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Disconnect: got %v, want ErrNotConnected", err)
	}
	if err := x.Connect(NumSlots); !errors.Is(err, ErrInvalidSlot) {
		t.Errorf("Connect: got %v, want ErrInvalidSlot", err)
	}
}

func TestReconnectCancelsWaitingCall(t *testing.T) {
	x, e := startExchange(t)
	if err := x.Connect(0); err != nil {
		t.Fatal(err)
	}
	read, _ := nextRead(t, x)
	if err := read.SetAnswer(item.TextAnswer("block\n")); err != nil {
		t.Fatal(err)
	}
	if resp := x.Submit(0, []item.Item{read}); !resp.Busy {
		t.Fatalf("got %+v, want busy", resp)
	}

	result := make(chan Response, 1)
	go func() { result <- x.Submit(0, nil) }()
	waitUntil(t, "blocked client call", x.locked(func() bool {
		return x.listening[0] > 0 && x.client0 == clientOKWait
	}))

	if err := x.Connect(0); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	resp := <-result
	want := item.Disconnected(item.SeverityCancel)
	if diff := cmp.Diff(want, resp.Status); diff != "" {
		t.Errorf("cancelled call status (-want +got):\n%s", diff)
	}

	close(e.release)
	if _, out := nextRead(t, x); out != "" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCancel(t *testing.T) {
	x, e := startExchange(t)
	if err := x.Connect(0); err != nil {
		t.Fatal(err)
	}
	read, _ := nextRead(t, x)

	if st := x.Cancel(); !st.IsOK() {
		t.Errorf("cancel while idle: %s", st)
	}
	if n := e.interrupts.Load(); n != 0 {
		t.Errorf("idle cancel interrupted the engine %d times", n)
	}

	if err := read.SetAnswer(item.TextAnswer("block\n")); err != nil {
		t.Fatal(err)
	}
	x.Submit(0, []item.Item{read})
	if st := x.Cancel(); !st.IsOK() {
		t.Errorf("cancel while busy: %s", st)
	}
	if n := e.interrupts.Load(); n != 1 || !x.Interrupted() {
		t.Errorf("interrupts = %d, interrupted = %v", n, x.Interrupted())
	}
	close(e.release)
}

func TestCancelTimeout(t *testing.T) {
	x, _ := startExchange(t)
	waitUntil(t, "interrupt lock", func() bool { return x.interrupt.TryAcquire(1) })
	defer x.interrupt.Release(1)
	st := x.Cancel()
	if st.Severity != item.SeverityError || st.Code != item.CodeCancelTimeout {
		t.Errorf("got %s, want cancel timeout", st)
	}
}

func TestUnansweredRequestRetries(t *testing.T) {
	x, _ := startExchange(t)
	if err := x.Connect(0); err != nil {
		t.Fatal(err)
	}
	read, _ := nextRead(t, x)
	for i := 0; i < x.Policy().AnswerRetries; i++ {
		resp := x.Submit(0, nil)
		if len(resp.Items) != 1 || resp.Items[0] != item.Item(read) {
			t.Fatalf("retry %d: got %+v, want the pending read", i+1, resp)
		}
	}
	next, _ := nextRead(t, x)
	if next == read {
		t.Fatal("pending read was not failed")
	}
	if st := read.Status(); st == nil || st.Severity != item.SeverityError {
		t.Errorf("failed read status = %s", st)
	}
}

func TestStopAnswersQueuedCommands(t *testing.T) {
	x, e := startExchange(t)
	if err := x.Connect(0); err != nil {
		t.Fatal(err)
	}
	if err := x.Connect(1); err != nil {
		t.Fatal(err)
	}
	read, _ := nextRead(t, x)
	if err := read.SetAnswer(item.TextAnswer("block\n")); err != nil {
		t.Fatal(err)
	}
	x.Submit(0, []item.Item{read})

	result := make(chan Response, 1)
	go func() { result <- x.Submit(1, []item.Item{item.NewEvalData(1, "x", 1, "")}) }()
	waitUntil(t, "queued command", x.locked(func() bool { return x.inbound.len() == 1 }))

	x.Stop()
	resp := <-result
	if len(resp.Items) != 1 {
		t.Fatalf("got %+v, want the answered command", resp)
	}
	if diff := cmp.Diff(item.Stopped(item.SeverityError), resp.Items[0].Status()); diff != "" {
		t.Errorf("answer (-want +got):\n%s", diff)
	}
	if resp := x.Submit(1, nil); resp.Status == nil || resp.Status.Code != item.CodeStopped {
		t.Errorf("after stop: got %+v", resp)
	}
	if st := x.Ping(1); st.Code != item.CodeStopped {
		t.Errorf("ping after stop: %s", st)
	}
	close(e.release)
}

func TestHotMode(t *testing.T) {
	x, e := startExchange(t)
	for _, slot := range []int{0, 1} {
		if err := x.Connect(slot); err != nil {
			t.Fatal(err)
		}
	}
	read, _ := nextRead(t, x)

	if st := x.RequestHotMode(); !st.IsOK() {
		t.Fatalf("RequestHotMode: %s", st)
	}
	waitUntil(t, "hot loop", x.locked(func() bool { return x.hot && len(x.requests) == 2 }))
	hot, _ := nextRead(t, x)
	if !hot.Hot() {
		t.Fatalf("got read %q, want the hot loop read", hot.Text())
	}

	x.Submit(1, []item.Item{item.NewEvalVoid(1, "ls()")})
	if n := e.hotData.Load(); n != 1 {
		t.Errorf("commands evaluated in hot mode = %d, want 1", n)
	}

	if err := hot.SetAnswer(item.TextAnswer("\n")); err != nil {
		t.Fatal(err)
	}
	x.Submit(0, []item.Item{hot})
	waitUntil(t, "end of hot loop", func() bool { return !x.HotMode() })

	if err := read.SetAnswer(item.TextAnswer("after\n")); err != nil {
		t.Fatal(err)
	}
	if _, out := nextRead(t, x, read); out != "echo after\n" {
		t.Errorf("output = %q", out)
	}
}

func TestDisconnectEndsHotMode(t *testing.T) {
	x, _ := startExchange(t)
	if err := x.Connect(0); err != nil {
		t.Fatal(err)
	}
	nextRead(t, x)
	x.RequestHotMode()
	waitUntil(t, "hot loop", x.locked(func() bool { return x.hot }))
	if err := x.Disconnect(0); err != nil {
		t.Fatal(err)
	}
	if x.HotMode() {
		t.Error("hot loop still running after disconnect")
	}
	if x.Bound(0) {
		t.Error("slot 0 still bound")
	}
}

func TestStdoutCoalescing(t *testing.T) {
	tests := []struct {
		bufferSize int
		want       []string
	}{
		{0, []string{"abcdef"}},
		{4, []string{"abcd", "ef"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.bufferSize), func(t *testing.T) {
			x := New(Policy{StdoutBufferSize: tt.bufferSize, DrainTimeout: 10 * time.Millisecond})
			x.Start(&fakeEngine{x: x}, nil, func() {
				for _, s := range []string{"ab", "cd", "ef"} {
					x.WriteOut(s)
				}
				x.FromEngine(item.NewMessage("done"))
			})
			<-x.Done()
			var got []string
			for _, it := range x.outbound[0].drain() {
				if it.Type() == item.TypeConsoleWriteOut {
					got = append(got, it.Text())
				}
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("output items (-want +got):\n%s", diff)
			}
		})
	}
}

type countingPlugin struct {
	idles   atomic.Int32
	stopped atomic.Bool
	fail    bool
}

func (p *countingPlugin) Name() string { return "counter" }
func (p *countingPlugin) Stop(bool)    { p.stopped.Store(true) }

func (p *countingPlugin) Idle() error {
	p.idles.Add(1)
	if p.fail {
		return errors.New("broken")
	}
	return nil
}

func TestPluginsRunWhileIdle(t *testing.T) {
	x, e := startExchange(t)
	good, bad := &countingPlugin{}, &countingPlugin{fail: true}
	x.AddPlugin(good)
	x.AddPlugin(bad)
	waitUntil(t, "idle work", func() bool { return good.idles.Load() > 2 && e.idles.Load() > 2 })
	if n := bad.idles.Load(); n != 1 || !bad.stopped.Load() {
		t.Errorf("failing plugin ran %d times, stopped = %v", n, bad.stopped.Load())
	}
}

// TestConcurrentClients checks that every submitted command is answered
// while several slots and the console talk to the engine at once.
func TestConcurrentClients(t *testing.T) {
	x, _ := startExchange(t)
	for slot := 0; slot < NumSlots; slot++ {
		if err := x.Connect(slot); err != nil {
			t.Fatal(err)
		}
	}
	var g errgroup.Group
	for slot := 1; slot < NumSlots; slot++ {
		g.Go(func() error {
			for i := 0; i < 25; i++ {
				expr := fmt.Sprintf("s%d-%d", slot, i)
				resp := x.Submit(slot, []item.Item{item.NewEvalData(slot, expr, 1, "")})
				if resp.Status != nil || len(resp.Items) != 1 {
					return errors.Errorf("slot %d: got %+v", slot, resp)
				}
				want := rdata.NewVector(rdata.NewCharacterStore(expr))
				if got := resp.Items[0].Value(); !rdata.Equal(got, want) {
					return errors.Errorf("slot %d: got %v, want %s", slot, got, expr)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		read, _, err := pollRead(x, nil)
		if err != nil {
			return err
		}
		for i := 0; i < 10; i++ {
			line := fmt.Sprintf("line %d", i)
			if err := read.SetAnswer(item.TextAnswer(line + "\n")); err != nil {
				return err
			}
			var out string
			read, out, err = pollRead(x, []item.Item{read})
			if err != nil {
				return err
			}
			if out != "echo "+line+"\n" {
				return errors.Errorf("console output %q", out)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
}

func TestConcurrentStartRunsOneEngine(t *testing.T) {
	x := New(testPolicy)
	e := &fakeEngine{x: x, release: make(chan struct{})}
	var runs, started atomic.Int32
	init := func() error {
		time.Sleep(50 * time.Millisecond)
		return nil
	}
	run := func() {
		runs.Add(1)
		e.run()
	}

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			err := x.Start(e, init, run)
			if err == nil {
				started.Add(1)
				return nil
			}
			var startErr *EngineStartError
			if !errors.As(err, &startErr) {
				return errors.Errorf("got %v, want *EngineStartError", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if n := started.Load(); n != 1 {
		t.Fatalf("successful Start calls = %d, want 1", n)
	}
	waitUntil(t, "engine goroutine", func() bool { return runs.Load() > 0 })

	x.Stop()
	select {
	case <-x.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("engine goroutine did not end")
	}
	if n := runs.Load(); n != 1 {
		t.Errorf("engine goroutines = %d, want 1", n)
	}
	if err := x.Start(e, nil, run); err == nil {
		t.Error("Start after Stop succeeded")
	}
}

func TestStopClearsHotRequest(t *testing.T) {
	x, e := startExchange(t)
	for _, slot := range []int{0, 1} {
		if err := x.Connect(slot); err != nil {
			t.Fatal(err)
		}
	}
	read, _ := nextRead(t, x)
	if err := read.SetAnswer(item.TextAnswer("block\n")); err != nil {
		t.Fatal(err)
	}
	if resp := x.Submit(0, []item.Item{read}); !resp.Busy {
		t.Fatalf("got %+v, want busy", resp)
	}
	if st := x.RequestHotMode(); !st.IsOK() {
		t.Fatalf("RequestHotMode: %s", st)
	}
	x.Stop()

	resp, err := submitWithin(x, 0, nil, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status == nil || resp.Status.Code != item.CodeStopped {
		t.Errorf("console poll after stop: got %+v", resp)
	}

	resp, err = submitWithin(x, 1, []item.Item{item.NewEvalData(1, "x", 1, "")}, 2*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("got %+v, want the rejected command", resp)
	}
	if diff := cmp.Diff(item.Stopped(item.SeverityError), resp.Items[0].Status()); diff != "" {
		t.Errorf("answer (-want +got):\n%s", diff)
	}
	if st := x.RequestHotMode(); st.Code != item.CodeStopped {
		t.Errorf("hot mode after stop: %s", st)
	}
	close(e.release)
}

// TestRandomInterleavings runs console and data clients against random
// cancels, hot mode requests, console reconnects and a final stop. Every
// Submit must return, and at most one console call may wait at a time.
func TestRandomInterleavings(t *testing.T) {
	for seed := uint64(1); seed <= 4; seed++ {
		t.Run(fmt.Sprint(seed), func(t *testing.T) {
			runInterleaving(t, rand.New(rand.NewPCG(seed, seed)))
		})
	}
}

func runInterleaving(t *testing.T, rng *rand.Rand) {
	const bound = 3 * time.Second
	x, _ := startExchange(t)
	for slot := 0; slot < NumSlots; slot++ {
		if err := x.Connect(slot); err != nil {
			t.Fatal(err)
		}
	}
	stopped := make(chan struct{})

	var g errgroup.Group
	// Two console clients compete for slot 0.
	for c := 0; c < 2; c++ {
		g.Go(func() error {
			var pending []item.Item
			for i := 0; i < 60; i++ {
				resp, err := submitWithin(x, 0, pending, bound)
				if err != nil {
					return err
				}
				pending = nil
				for _, it := range resp.Items {
					read, ok := it.(*item.ConsoleRead)
					if !ok || read.IsTerminal() {
						continue
					}
					if read.SetAnswer(item.TextAnswer(fmt.Sprintf("c%d-%d\n", c, i))) == nil {
						pending = append(pending, read)
					}
				}
				if resp.Status != nil && resp.Status.Code == item.CodeStopped {
					return nil
				}
			}
			return nil
		})
	}
	for slot := 1; slot < NumSlots; slot++ {
		g.Go(func() error {
			for i := 0; i < 40; i++ {
				d := item.NewEvalData(slot, fmt.Sprintf("s%d-%d", slot, i), 1, "")
				resp, err := submitWithin(x, slot, []item.Item{d}, bound)
				if err != nil {
					return err
				}
				if resp.Status != nil {
					if resp.Status.Code == item.CodeStopped {
						return nil
					}
					return errors.Errorf("slot %d: %s", slot, resp.Status)
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		ticker := time.NewTicker(100 * time.Microsecond)
		defer ticker.Stop()
		for {
			select {
			case <-stopped:
				return nil
			case <-ticker.C:
			}
			x.mu.Lock()
			n := x.listening[0]
			x.mu.Unlock()
			if n > 1 {
				return errors.Errorf("%d console calls waiting at once", n)
			}
		}
	})
	g.Go(func() error {
		defer close(stopped)
		for i := 0; i < 50; i++ {
			switch rng.IntN(4) {
			case 0:
				x.Cancel()
			case 1:
				x.RequestHotMode()
			case 2:
				x.Disconnect(0)
				x.Connect(0)
			case 3:
				x.Connect(0)
			}
			time.Sleep(time.Duration(rng.IntN(500)) * time.Microsecond)
		}
		x.Stop()
		return nil
	})
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	if x.State() != Stopped {
		t.Errorf("state = %s, want Stopped", x.State())
	}
	if x.HotMode() {
		t.Error("hot loop still running after stop")
	}
}
