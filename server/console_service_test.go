package server

import (
	"strings"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

// ---------------------------------------------------------------------------
// Start / Connect / Disconnect
// ---------------------------------------------------------------------------

func TestStart_AlreadyRunning(t *testing.T) {
	resp, err := testClient.Start(bg(), &api.StartRequest{Profile: "x <- 1"})
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if resp.Status.Severity != item.SeverityInfo {
		t.Errorf("Status = %s, want INFO", resp.Status)
	}
}

func TestConnect_InvalidSlot(t *testing.T) {
	_, err := testClient.Connect(bg(), &api.ConnectRequest{Slot: 7})
	if codeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("Connect(7) code = %v, want InvalidArgument", codeOf(err))
	}
}

func TestConnect_ReplacesSession(t *testing.T) {
	first := connectSlot(t, 2)
	second := connectSlot(t, 2)
	if first == second {
		t.Fatal("two connections should get different tokens")
	}
	if _, ok := testServer.Sessions().Get(first); ok {
		t.Error("replaced token should be gone")
	}
	session, ok := testServer.Sessions().BySlot(2)
	if !ok || session.Token != second {
		t.Errorf("slot 2 session = %+v, want token %q", session, second)
	}
}

func TestDisconnect(t *testing.T) {
	token := connectSlot(t, 3)
	if _, err := testClient.Disconnect(bg(), &api.DisconnectRequest{Token: token}); err != nil {
		t.Fatalf("Disconnect returned error: %v", err)
	}
	if testCtx.Exchange().Bound(3) {
		t.Error("slot 3 should be unbound")
	}
	_, err := testClient.Disconnect(bg(), &api.DisconnectRequest{Token: token})
	if codeOf(err) != connect.CodeNotFound {
		t.Errorf("second Disconnect code = %v, want NotFound", codeOf(err))
	}
}

func TestDisconnect_ReleasesReferences(t *testing.T) {
	token := connectSlot(t, 1)
	env := mainLoop(t, token, 1, item.NewEvalData(1, "list(1, 2)", item.DepthReference, ""))
	d := env.Items[0].(*item.Data)
	ref, ok := d.Value().(*rdata.Reference)
	if !ok {
		t.Fatalf("got %T, want a reference", d.Value())
	}

	svc := testServer.console
	if _, err := svc.Disconnect(bg(), connectReq(&api.DisconnectRequest{Token: token})); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	token = connectSlot(t, 1)
	env = mainLoop(t, token, 1, item.NewResolve(1, ref, 1))
	st := env.Items[0].Status()
	if st.IsOK() || st.Code != item.CodeInvalidReference {
		t.Errorf("resolve after disconnect: status %s, want invalid reference", st)
	}
}

// ---------------------------------------------------------------------------
// Token and payload validation
// ---------------------------------------------------------------------------

func TestCall_Validation(t *testing.T) {
	token := connectSlot(t, 1)
	tests := []struct {
		name string
		req  *api.CallRequest
		want connect.Code
	}{
		{"missing token", &api.CallRequest{Payload: item.MarshalEnvelope(item.PingEnvelope())}, connect.CodeInvalidArgument},
		{"unknown token", api.NewCallRequest("nope", item.PingEnvelope()), connect.CodeNotFound},
		{"bad payload", &api.CallRequest{Token: token, Payload: []byte{42}}, connect.CodeInvalidArgument},
		{"ping on main loop", api.NewCallRequest(token, item.PingEnvelope()), connect.CodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := testClient.RunMainLoop(bg(), tt.req)
			if codeOf(err) != tt.want {
				t.Errorf("code = %v, want %v (err %v)", codeOf(err), tt.want, err)
			}
		})
	}

	_, err := testClient.RunAsync(bg(), api.NewCallRequest(token, item.BatchEnvelope(nil, false)))
	if codeOf(err) != connect.CodeInvalidArgument {
		t.Errorf("batch on RunAsync code = %v, want InvalidArgument", codeOf(err))
	}
}

// ---------------------------------------------------------------------------
// RunMainLoop
// ---------------------------------------------------------------------------

func TestRunMainLoop_EvalData(t *testing.T) {
	token := connectSlot(t, 1)
	env := mainLoop(t, token, 1, item.NewEvalData(1, "answer / 2", -1, ""))
	if env.Kind != item.KindBatch || len(env.Items) != 1 {
		t.Fatalf("got %s with %d items", env.Kind, len(env.Items))
	}
	d := env.Items[0].(*item.Data)
	if st := d.Status(); !st.IsOK() {
		t.Fatalf("status %s", st)
	}
	if want := rdata.NewVector(rdata.NewNumericStore(21)); !rdata.Equal(d.Value(), want) {
		t.Errorf("answer / 2 = %#v, want 21", d.Value())
	}
}

func TestRunMainLoop_EvalError(t *testing.T) {
	token := connectSlot(t, 1)
	env := mainLoop(t, token, 1, item.NewEvalVoid(1, "stop('boom')"))
	st := env.Items[0].Status()
	if st.Severity != item.SeverityError || !strings.Contains(st.Message, "boom") {
		t.Errorf("status = %s, want an error mentioning boom", st)
	}
	env = mainLoop(t, token, 1, item.NewEvalVoid(1, "y <- 1"))
	if st := env.Items[0].Status(); !st.IsOK() {
		t.Errorf("engine should keep running, got %s", st)
	}
}

func TestRunMainLoop_Console(t *testing.T) {
	token := connectSlot(t, 0)
	read, _ := nextRead(t, token)
	if read.Text() != "> " {
		t.Errorf("prompt = %q, want %q", read.Text(), "> ")
	}
	if err := read.SetAnswer(item.TextAnswer("z <- 5\n")); err != nil {
		t.Fatal(err)
	}
	read, _ = nextRead(t, token, read)
	if err := read.SetAnswer(item.TextAnswer("z * 2\n")); err != nil {
		t.Fatal(err)
	}
	_, out := nextRead(t, token, read)
	if !strings.Contains(out, "10") {
		t.Errorf("output = %q, want it to contain 10", out)
	}
}

// ---------------------------------------------------------------------------
// RunAsync
// ---------------------------------------------------------------------------

func TestRunAsync_Ping(t *testing.T) {
	token := connectSlot(t, 2)
	env := async(t, token, item.PingEnvelope())
	if env.Kind != item.KindStatus || !env.Status.IsOK() {
		t.Errorf("ping = %s %s, want OK status", env.Kind, env.Status)
	}
}

func TestRunAsync_CancelWhileIdle(t *testing.T) {
	token := connectSlot(t, 2)
	env := async(t, token, item.CtrlEnvelope(item.CtrlCancel))
	if !env.Status.IsOK() {
		t.Errorf("cancel while idle = %s, want OK", env.Status)
	}
	env = mainLoop(t, token, 2, item.NewEvalData(2, "1+1", -1, ""))
	if st := env.Items[0].Status(); !st.IsOK() {
		t.Errorf("evaluation after cancel: %s", st)
	}
}

func TestRunAsync_Files(t *testing.T) {
	token := connectSlot(t, 3)
	up := async(t, token, item.FileEnvelope(&item.FileTransfer{
		Direction: item.Upload,
		Path:      "data/in.txt",
		Data:      []byte("hello"),
	}))
	if !up.Status.IsOK() {
		t.Fatalf("upload = %s", up.Status)
	}
	down := async(t, token, item.FileEnvelope(&item.FileTransfer{Direction: item.Download, Path: "data/in.txt"}))
	if down.Kind != item.KindFile || string(down.File.Data) != "hello" {
		t.Errorf("download = %s %+v, want the uploaded file", down.Kind, down.File)
	}

	for _, p := range []string{"../escape.txt", "/etc/passwd", "data/../../x", "missing.txt"} {
		env := async(t, token, item.FileEnvelope(&item.FileTransfer{Direction: item.Download, Path: p}))
		if env.Kind != item.KindStatus || env.Status.Severity != item.SeverityError {
			t.Errorf("download %q = %s, want an error status", p, env.Kind)
		}
	}
}
