package item

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/chazu/rjs/rdata"
	"github.com/chazu/rjs/wire"
)

func roundTrip(t *testing.T, items ...Item) []Item {
	t.Helper()
	w := wire.NewWriter(0)
	WriteBatch(w, items)
	r := wire.NewReader(w.Bytes())
	got := ReadBatch(r, 2)
	r.ExpectEnd()
	if err := r.Err(); err != nil {
		t.Fatalf("ReadBatch: %v", err)
	}
	if len(got) != len(items) {
		t.Fatalf("got %d items, want %d", len(got), len(items))
	}
	return got
}

func TestBatchRoundTrip(t *testing.T) {
	read := NewConsoleRead("> ", ReadAddToHistory)
	read.SetRequestID(3)
	ui := NewExtUI(0, UIChooseFile, rdata.NewNamedList([]string{"newResource"}, []rdata.Object{
		rdata.NewVector(rdata.NewLogicalStore(rdata.True)),
	}), true)
	data := NewEvalData(1, "x + 1", 500, "default")
	gd := NewGraphics(1, GDrawText, 10, 20, 0, 0.5).WithText("label")
	raster := NewGraphics(1, GDrawRaster, 0, 0, 4, 4).WithRaster([]byte{1, 2, 3})

	got := roundTrip(t,
		read,
		NewConsoleWriteOut("out"),
		NewConsoleWriteErr("err"),
		NewMessage("note"),
		ui,
		data,
		gd,
		raster,
		NewGraphicsOp(1, 3, OpResize, 640, 480),
	)

	r := got[0].(*ConsoleRead)
	if r.Text() != "> " || !r.AddToHistory() || r.Hot() || r.RequestID() != 3 || !r.WaitsForClient() {
		t.Errorf("console read: text=%q history=%v hot=%v id=%d", r.Text(), r.AddToHistory(), r.Hot(), r.RequestID())
	}
	if got[1].Type() != TypeConsoleWriteOut || got[1].Text() != "out" || got[1].WaitsForClient() {
		t.Errorf("write out: %v %q", got[1].Type(), got[1].Text())
	}
	if got[2].Type() != TypeConsoleWriteErr || got[3].Type() != TypeMessage {
		t.Errorf("types: %v %v", got[2].Type(), got[3].Type())
	}
	u := got[4].(*ExtUI)
	if u.Command() != UIChooseFile {
		t.Errorf("ext ui command: got %q", u.Command())
	}
	if v, ok := u.Arg("newResource"); !ok || !rdata.Equal(v, rdata.NewVector(rdata.NewLogicalStore(rdata.True))) {
		t.Errorf("ext ui arg: %v %v", v, ok)
	}
	d := got[5].(*Data)
	if d.Kind() != EvalData || d.Text() != "x + 1" || d.Depth() != MaxDepth || d.FactoryID() != "default" {
		t.Errorf("data: kind=%v text=%q depth=%d factory=%q", d.Kind(), d.Text(), d.Depth(), d.FactoryID())
	}
	if d.Slot() != 2 {
		t.Errorf("slot: got %d, want 2", d.Slot())
	}
	g := got[6].(*Graphics)
	if g.Code() != GDrawText || g.Text() != "label" || g.Device() != 1 || g.WaitsForClient() {
		t.Errorf("graphics: %v %q", g.Code(), g.Text())
	}
	if diff := cmp.Diff([]float64{10, 20, 0, 0.5}, g.Args()); diff != "" {
		t.Errorf("graphics args (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]byte{1, 2, 3}, got[7].(*Graphics).Raster()); diff != "" {
		t.Errorf("raster (-want +got):\n%s", diff)
	}
	op := got[8].(*GraphicsOp)
	if op.Code() != OpResize || op.Device() != 3 || len(op.Args()) != 2 {
		t.Errorf("graphics op: %v %d %v", op.Code(), op.Device(), op.Args())
	}
}

func TestAnsweredItemsRoundTrip(t *testing.T) {
	read := NewConsoleRead("> ", 0)
	read.SetRequestID(0)
	if err := read.SetAnswer(TextAnswer("1+1\n")); err != nil {
		t.Fatal(err)
	}
	data := NewEvalData(0, "1+1", DepthUnlimited, "")
	if err := data.SetAnswer(ValueAnswer(rdata.NewVector(rdata.NewNumericStore(2)))); err != nil {
		t.Fatal(err)
	}
	failed := NewEvalVoid(0, "stop('x')")
	if err := failed.SetAnswer(StatusAnswer(NewStatus(SeverityError, CodeEvalVoidFailed, "x"))); err != nil {
		t.Fatal(err)
	}

	got := roundTrip(t, read, data, failed)

	if !got[0].IsTerminal() || got[0].Text() != "1+1\n" {
		t.Errorf("answered read: terminal=%v text=%q", got[0].IsTerminal(), got[0].Text())
	}
	if !rdata.Equal(got[1].Value(), rdata.NewVector(rdata.NewNumericStore(2))) {
		t.Errorf("answered data: %#v", got[1].Value())
	}
	if got[1].(*Data).Depth() != DepthUnlimited {
		t.Errorf("depth: got %d, want -1", got[1].(*Data).Depth())
	}
	st := got[2].Status()
	if st == nil || st.Severity != SeverityError || st.Code != CodeEvalVoidFailed || st.Message != "x" {
		t.Errorf("status: %v", st)
	}
	if got[2].Options()&optSeverityMask == 0 {
		t.Error("severity bits not set")
	}
}

func TestSetAnswerTransitions(t *testing.T) {
	read := NewConsoleRead("> ", 0)
	if err := read.SetAnswer(ValueAnswer(rdata.Null)); !errors.Is(err, ErrIllegalStateTransition) {
		t.Errorf("value answer to console read: got %v", err)
	}
	if err := read.SetAnswer(TextAnswer("a\n")); err != nil {
		t.Fatalf("first answer: %v", err)
	}
	if err := read.SetAnswer(TextAnswer("b\n")); !errors.Is(err, ErrIllegalStateTransition) {
		t.Errorf("second answer: got %v", err)
	}
	if err := NewConsoleWriteOut("x").SetAnswer(StatusAnswer(OK())); !errors.Is(err, ErrIllegalStateTransition) {
		t.Errorf("answer to console write: got %v", err)
	}
	if err := NewGraphics(0, GDrawLine).SetAnswer(ValueAnswer(rdata.Null)); !errors.Is(err, ErrIllegalStateTransition) {
		t.Errorf("answer to non-blocking graphics: got %v", err)
	}
	if err := NewGraphicsOp(1, 0, OpClose).SetAnswer(TextAnswer("x")); !errors.Is(err, ErrIllegalStateTransition) {
		t.Errorf("text answer to graphics op: got %v", err)
	}
	if err := NewGraphics(0, GGetSize).SetAnswer(ValueAnswer(rdata.NewVector(rdata.NewNumericStore(0, 0, 640, 480)))); err != nil {
		t.Errorf("size answer: %v", err)
	}
}

func TestReadBatchRejectsUnknownType(t *testing.T) {
	w := wire.NewWriter(0)
	WriteBatch(w, []Item{NewConsoleWriteOut("ok")})
	data := append([]byte{42}, w.Bytes()...)
	r := wire.NewReader(data)
	if items := ReadBatch(r, 0); items != nil {
		t.Errorf("got %d items from invalid batch", len(items))
	}
	if !wire.IsProtocolDecodeError(r.Err()) {
		t.Errorf("got %v, want ProtocolDecodeError", r.Err())
	}
}

func TestReadBatchRejectsMissingTerminator(t *testing.T) {
	w := wire.NewWriter(0)
	WriteBatch(w, []Item{NewMessage("m")})
	data := w.Bytes()
	_, err := UnmarshalEnvelope(append([]byte{byte(KindBatch), 0}, data[:len(data)-1]...), 0)
	if !wire.IsProtocolDecodeError(err) {
		t.Errorf("got %v, want ProtocolDecodeError", err)
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	envs := []*Envelope{
		PingEnvelope(),
		CtrlEnvelope(CtrlCancel),
		CtrlEnvelope(CtrlHotMode),
		StatusEnvelope(Stopped(SeverityInfo)),
		FileEnvelope(&FileTransfer{Direction: Upload, Path: "data/in.csv", Data: []byte("a,b\n")}),
		BatchEnvelope([]Item{NewConsoleWriteOut("hi")}, true),
	}
	for _, e := range envs {
		got, err := UnmarshalEnvelope(MarshalEnvelope(e), 0)
		if err != nil {
			t.Errorf("%v: %v", e.Kind, err)
			continue
		}
		if got.Kind != e.Kind || got.Busy != e.Busy || got.Ctrl != e.Ctrl || len(got.Items) != len(e.Items) {
			t.Errorf("%v: got %+v", e.Kind, got)
		}
		if e.Status != nil && (got.Status == nil || *got.Status != *e.Status) {
			t.Errorf("%v: status %v, want %v", e.Kind, got.Status, e.Status)
		}
		if e.File != nil {
			if diff := cmp.Diff(e.File, got.File); diff != "" {
				t.Errorf("file (-want +got):\n%s", diff)
			}
		}
	}
}

func TestClampDepth(t *testing.T) {
	tests := []struct {
		in   int
		want int8
	}{
		{-5, DepthUnlimited},
		{-1, DepthUnlimited},
		{0, 0},
		{12, 12},
		{127, 127},
		{1000, 127},
	}
	for _, tc := range tests {
		if got := ClampDepth(tc.in); got != tc.want {
			t.Errorf("ClampDepth(%d): got %d, want %d", tc.in, got, tc.want)
		}
	}
}
