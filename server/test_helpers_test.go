package server

import (
	"context"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/pkg/errors"

	"github.com/chazu/rjs/adapter"
	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/exchange"
	"github.com/chazu/rjs/item"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
//
// One engine is started in TestMain and served over httptest. Tests connect
// their own slot and disconnect it when done.
// ---------------------------------------------------------------------------

var (
	testCtx     *adapter.Context
	testServer  *RJSServer
	testHTTP    *httptest.Server
	testClient  *api.ConsoleServiceClient
	testWorkDir string
)

// TestMain starts a single engine and server for all server tests.
func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "rjs-server-test")
	if err != nil {
		panic(err)
	}
	testWorkDir = dir

	x := exchange.New(exchange.Policy{
		IdlePoll:      5 * time.Millisecond,
		CancelTimeout: 50 * time.Millisecond,
		DrainTimeout:  100 * time.Millisecond,
	})
	testCtx = adapter.New(x, adapter.Options{})
	testServer, err = New(testCtx, WithWorkDir(dir), WithProfile("answer <- 42"))
	if err != nil {
		panic(err)
	}
	testHTTP = httptest.NewServer(testServer.Handler())
	testClient = api.NewConsoleServiceClient(testHTTP.Client(), testHTTP.URL)

	resp, err := testClient.Start(bg(), &api.StartRequest{})
	if err != nil {
		panic(err)
	}
	if !resp.Status.IsOK() {
		panic(resp.Status.String())
	}

	code := m.Run()

	testServer.Stop()
	testHTTP.Close()
	os.RemoveAll(dir)
	os.Exit(code)
}

// ---------------------------------------------------------------------------
// Request helpers.
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

// connectSlot connects a client to slot and disconnects it at cleanup.
func connectSlot(t *testing.T, slot int) string {
	t.Helper()
	resp, err := testClient.Connect(bg(), &api.ConnectRequest{Slot: int32(slot), Name: t.Name()})
	if err != nil {
		t.Fatalf("Connect(%d): %v", slot, err)
	}
	token := resp.Token
	t.Cleanup(func() {
		testClient.Disconnect(bg(), &api.DisconnectRequest{Token: token})
	})
	return token
}

func mainLoop(t *testing.T, token string, slot int, items ...item.Item) *item.Envelope {
	t.Helper()
	resp, err := testClient.RunMainLoop(bg(), api.NewCallRequest(token, item.BatchEnvelope(items, false)))
	if err != nil {
		t.Fatalf("RunMainLoop: %v", err)
	}
	env, err := resp.Envelope(slot)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func async(t *testing.T, token string, env *item.Envelope) *item.Envelope {
	t.Helper()
	resp, err := testClient.RunAsync(bg(), api.NewCallRequest(token, env))
	if err != nil {
		t.Fatalf("RunAsync: %v", err)
	}
	out, err := resp.Envelope(0)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

// nextRead polls slot 0, sending cmds first, until an unanswered console
// read arrives. It returns the read and the console output seen before it.
func nextRead(t *testing.T, token string, cmds ...item.Item) (*item.ConsoleRead, string) {
	t.Helper()
	var out strings.Builder
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		env := mainLoop(t, token, 0, cmds...)
		cmds = nil
		if env.Kind != item.KindBatch {
			t.Fatalf("got %s envelope with status %s", env.Kind, env.Status)
		}
		for _, it := range env.Items {
			switch it := it.(type) {
			case *item.ConsoleWrite:
				out.WriteString(it.Text())
			case *item.ConsoleRead:
				if !it.IsTerminal() {
					return it, out.String()
				}
			}
		}
	}
	t.Fatal(errors.New("no console read arrived"))
	return nil, ""
}

func codeOf(err error) connect.Code {
	return connect.CodeOf(err)
}
