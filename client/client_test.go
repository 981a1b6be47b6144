package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/chazu/rjs/adapter"
	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/exchange"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
	"github.com/chazu/rjs/server"
)

// scriptHandler answers console reads from a list of lines and records
// everything else.
type scriptHandler struct {
	mu    sync.Mutex
	lines []string
	out   strings.Builder
	err   strings.Builder
	ui    []string
	busy  int
}

func (h *scriptHandler) ReadConsole(ctx context.Context, prompt string, addToHistory bool) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.lines) == 0 {
		return "", errors.New("script exhausted")
	}
	line := h.lines[0]
	h.lines = h.lines[1:]
	return line + "\n", nil
}

func (h *scriptHandler) WriteConsole(text string, isError bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if isError {
		h.err.WriteString(text)
	} else {
		h.out.WriteString(text)
	}
}

func (h *scriptHandler) ShowMessage(text string) { h.WriteConsole(text, false) }

func (h *scriptHandler) ExtUI(ctx context.Context, ui *item.ExtUI) (rdata.Object, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ui = append(h.ui, ui.Command())
	return nil, ErrUnhandled
}

func (h *scriptHandler) Graphics(ctx context.Context, g *item.Graphics) (rdata.Object, error) {
	return nil, ErrUnhandled
}

func (h *scriptHandler) Busy(busy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.busy++
}

type fixture struct {
	rpc  *api.ConsoleServiceClient
	http *httptest.Server
}

func startServer(t *testing.T) *fixture {
	t.Helper()
	x := exchange.New(exchange.Policy{
		IdlePoll:      5 * time.Millisecond,
		CancelTimeout: 50 * time.Millisecond,
		DrainTimeout:  200 * time.Millisecond,
	})
	ctx := adapter.New(x, adapter.Options{})
	srv, err := server.New(ctx, server.WithWorkDir(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop()
		hs.Close()
	})
	rpc := api.NewConsoleServiceClient(hs.Client(), hs.URL)
	resp, err := rpc.Start(context.Background(), &api.StartRequest{Profile: "answer <- 42"})
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Status.IsOK() {
		t.Fatalf("Start: %s", resp.Status)
	}
	return &fixture{rpc: rpc, http: hs}
}

func dial(t *testing.T, f *fixture, slot int, h Handler) *Client {
	t.Helper()
	c, err := Dial(context.Background(), f.rpc, slot, t.Name(), h)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

func TestDataCommands(t *testing.T) {
	f := startServer(t)
	c := dial(t, f, 1, &scriptHandler{})
	ctx := context.Background()

	got, err := c.EvalData(ctx, "answer + 1", -1)
	if err != nil {
		t.Fatalf("EvalData: %v", err)
	}
	if want := rdata.NewVector(rdata.NewNumericStore(43)); !rdata.Equal(got, want) {
		t.Errorf("answer + 1 = %#v", got)
	}

	if err := c.Assign(ctx, "v", rdata.NewVector(rdata.NewCharacterStore("a", "b"))); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	args := rdata.NewNamedList([]string{"", "sep"}, []rdata.Object{
		rdata.NewVector(rdata.NewCharacterStore("x")),
		rdata.NewVector(rdata.NewCharacterStore("-")),
	})
	got, err = c.Call(ctx, "paste", args, -1)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if want := rdata.NewVector(rdata.NewCharacterStore("x")); !rdata.Equal(got, want) {
		t.Errorf("paste = %#v", got)
	}

	ref, err := c.EvalData(ctx, "v", item.DepthReference)
	if err != nil {
		t.Fatalf("EvalData reference: %v", err)
	}
	r, ok := ref.(*rdata.Reference)
	if !ok {
		t.Fatalf("got %T, want a reference", ref)
	}
	got, err = c.ResolveReference(ctx, r, -1)
	if err != nil {
		t.Fatalf("ResolveReference: %v", err)
	}
	v, ok := got.(*rdata.Vector)
	if !ok {
		t.Fatalf("resolved %T", got)
	}
	if diff := cmp.Diff([]string{"a", "b"}, v.Data.(*rdata.CharacterStore).Values); diff != "" {
		t.Errorf("resolved (-want +got):\n%s", diff)
	}
}

func TestEvaluationFailure(t *testing.T) {
	f := startServer(t)
	c := dial(t, f, 1, &scriptHandler{})
	ctx := context.Background()

	err := c.EvalVoid(ctx, "stop('x')")
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("got %v, want a StatusError", err)
	}
	if !strings.HasPrefix(err.Error(), "Evaluation failed: ") || !strings.Contains(err.Error(), "x") {
		t.Errorf("error = %q", err.Error())
	}
	if err := c.EvalVoid(ctx, "y <- 1"); err != nil {
		t.Errorf("engine should keep running: %v", err)
	}
}

func TestAsync(t *testing.T) {
	f := startServer(t)
	c := dial(t, f, 2, &scriptHandler{})
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
	if err := c.Cancel(ctx); err != nil {
		t.Errorf("Cancel while idle: %v", err)
	}
	if err := c.Upload(ctx, "notes/a.txt", []byte("data")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	data, err := c.Download(ctx, "notes/a.txt")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if string(data) != "data" {
		t.Errorf("downloaded %q", data)
	}
	if _, err := c.Download(ctx, "../outside"); err == nil {
		t.Error("download outside the work directory succeeded")
	}
}

func TestConsole(t *testing.T) {
	f := startServer(t)
	h := &scriptHandler{lines: []string{
		"x <- readline('name? ')",
		"Ada",
		"cat(x, '\\n')",
		"file.choose()",
		"quit()",
	}}
	c := dial(t, f, 0, h)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.RunConsole(ctx); err != nil {
		t.Fatalf("RunConsole: %v", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if !strings.Contains(h.out.String(), "Ada") {
		t.Errorf("stdout = %q, want Ada", h.out.String())
	}
	if diff := cmp.Diff([]string{item.UIChooseFile}, h.ui); diff != "" {
		t.Errorf("UI commands (-want +got):\n%s", diff)
	}
	if !strings.Contains(h.err.String(), "file choice cancelled") {
		t.Errorf("stderr = %q", h.err.String())
	}
	if h.busy == 0 {
		t.Error("busy was never reported")
	}
}

func TestDisconnectedServer(t *testing.T) {
	f := startServer(t)
	c := dial(t, f, 1, &scriptHandler{})
	f.http.CloseClientConnections()
	f.http.Close()

	_, err := c.EvalData(context.Background(), "1", -1)
	if !errors.Is(err, ErrDisconnected) {
		t.Fatalf("got %v, want ErrDisconnected", err)
	}
	if !c.Disconnected() {
		t.Error("client not marked disconnected")
	}
	if err := c.EvalVoid(context.Background(), "1"); !errors.Is(err, ErrDisconnected) {
		t.Errorf("second call: %v", err)
	}
}

func TestNestingLimit(t *testing.T) {
	ctx := context.WithValue(context.Background(), levelKey{}, MaxDataLevels)
	c := &Client{}
	if _, err := c.run(ctx, item.NewEvalVoid(1, "1")); !errors.Is(err, ErrTooDeep) {
		t.Errorf("got %v, want ErrTooDeep", err)
	}
}
