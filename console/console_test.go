package console

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/chazu/rjs/client"
	"github.com/chazu/rjs/history"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

type recallReader struct {
	*Plain
	recall  []string
	prompts []string
}

func (r *recallReader) ReadLine(prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.Plain.ReadLine("")
}

func (r *recallReader) AppendHistory(line string) { r.recall = append(r.recall, line) }
func (r *recallReader) ClearHistory()             { r.recall = nil }

func newConsole(t *testing.T, input string) (*Console, *recallReader, *strings.Builder, history.Store) {
	t.Helper()
	hist, err := history.OpenFile(filepath.Join(t.TempDir(), "hist"), 100)
	if err != nil {
		t.Fatal(err)
	}
	r := &recallReader{Plain: NewPlain(strings.NewReader(input), nil)}
	var out strings.Builder
	return New(r, &out, &out, hist), r, &out, hist
}

func lines(t *testing.T, hist history.Store) []string {
	t.Helper()
	entries, err := hist.Entries(0)
	if err != nil {
		t.Fatal(err)
	}
	var out []string
	for _, e := range entries {
		out = append(out, e.Line)
	}
	return out
}

func TestReadConsole(t *testing.T) {
	c, r, _, hist := newConsole(t, "x <- 1\n\nsecret\ny")
	ctx := context.Background()

	for _, tc := range []struct {
		prompt string
		add    bool
		want   string
	}{
		{"> ", true, "x <- 1\n"},
		{"> ", true, "\n"},
		{"Password: ", false, "secret\n"},
		{"> ", true, "y\n"},
	} {
		got, err := c.ReadConsole(ctx, tc.prompt, tc.add)
		if err != nil {
			t.Fatalf("ReadConsole(%q): %v", tc.prompt, err)
		}
		if got != tc.want {
			t.Errorf("ReadConsole(%q) = %q, want %q", tc.prompt, got, tc.want)
		}
	}
	if diff := cmp.Diff([]string{"x <- 1", "y"}, lines(t, hist)); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x <- 1", "y"}, r.recall); diff != "" {
		t.Errorf("recall (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"> ", "> ", "Password: ", "> "}, r.prompts); diff != "" {
		t.Errorf("prompts (-want +got):\n%s", diff)
	}
}

func TestReadConsoleEOF(t *testing.T) {
	c, _, _, _ := newConsole(t, "")
	called := false
	c.OnEOF = func() { called = true }
	if _, err := c.ReadConsole(context.Background(), "> ", true); !errors.Is(err, io.EOF) {
		t.Fatalf("got %v, want io.EOF", err)
	}
	if !called {
		t.Error("OnEOF not called")
	}
}

func filename(path string) rdata.Object {
	return rdata.NewNamedList([]string{"filename"}, []rdata.Object{rdata.NewVector(rdata.NewCharacterStore(path))})
}

func TestHistoryCommands(t *testing.T) {
	c, r, out, hist := newConsole(t, "a\nb\nc\n")
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.ReadConsole(ctx, "> ", true); err != nil {
			t.Fatal(err)
		}
	}

	saved := filepath.Join(t.TempDir(), "saved")
	if _, err := c.ExtUI(ctx, item.NewExtUI(0, item.UISaveHistory, filename(saved), true)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := hist.Append("d"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ExtUI(ctx, item.NewExtUI(0, item.UILoadHistory, filename(saved), true)); err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, lines(t, hist)); diff != "" {
		t.Errorf("history after load (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, r.recall); diff != "" {
		t.Errorf("recall after load (-want +got):\n%s", diff)
	}

	out.Reset()
	args := rdata.NewNamedList([]string{"max.show", "reverse"}, []rdata.Object{
		rdata.NewVector(rdata.NewIntegerStore(2)),
		rdata.NewVector(rdata.NewLogicalStore(rdata.True)),
	})
	if _, err := c.ExtUI(ctx, item.NewExtUI(0, item.UIShowHistory, args, false)); err != nil {
		t.Fatalf("show: %v", err)
	}
	if got, want := out.String(), "c\nb\n"; got != want {
		t.Errorf("show history = %q, want %q", got, want)
	}

	if _, err := c.ExtUI(ctx, item.NewExtUI(0, item.UILoadHistory, rdata.NewNamedList(nil, nil), true)); err == nil {
		t.Error("load without filename succeeded")
	}
}

func TestChooseFile(t *testing.T) {
	c, r, _, _ := newConsole(t, "  data.csv \n")
	args := rdata.NewNamedList([]string{"newResource"}, []rdata.Object{rdata.NewVector(rdata.NewLogicalStore(rdata.True))})
	v, err := c.ExtUI(context.Background(), item.NewExtUI(0, item.UIChooseFile, args, true))
	if err != nil {
		t.Fatal(err)
	}
	if want := rdata.NewVector(rdata.NewCharacterStore("data.csv")); !rdata.Equal(v, want) {
		t.Errorf("chose %#v", v)
	}
	if diff := cmp.Diff([]string{"New file: "}, r.prompts); diff != "" {
		t.Errorf("prompts (-want +got):\n%s", diff)
	}
}

func TestUnhandled(t *testing.T) {
	c, _, _, _ := newConsole(t, "")
	ctx := context.Background()
	if _, err := c.ExtUI(ctx, item.NewExtUI(0, "custom/openView", nil, true)); !errors.Is(err, client.ErrUnhandled) {
		t.Errorf("ExtUI: got %v, want ErrUnhandled", err)
	}
	if _, err := c.Graphics(ctx, nil); !errors.Is(err, client.ErrUnhandled) {
		t.Errorf("Graphics: got %v, want ErrUnhandled", err)
	}
}

func TestWriteAndBusy(t *testing.T) {
	var out, errOut strings.Builder
	c := New(NewPlain(strings.NewReader(""), nil), &out, &errOut, nil)
	c.WriteConsole("[1] 2\n", false)
	c.WriteConsole("Error: x\n", true)
	c.ShowMessage("note")
	if got, want := out.String(), "[1] 2\nnote\n"; got != want {
		t.Errorf("out = %q, want %q", got, want)
	}
	if got, want := errOut.String(), "Error: x\n"; got != want {
		t.Errorf("err = %q, want %q", got, want)
	}
	c.Busy(true)
	if !c.IsBusy() {
		t.Error("not busy after Busy(true)")
	}
	if _, err := c.ExtUI(context.Background(), item.NewExtUI(0, item.UISaveHistory, filename("x"), true)); err == nil {
		t.Error("save without history succeeded")
	}
}
