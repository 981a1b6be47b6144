// Package console implements the client handler of an interactive console:
// prompts are read from a line reader, output goes to writers and the UI
// commands for history and file choice are served locally.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/tliron/commonlog"

	"github.com/chazu/rjs/client"
	"github.com/chazu/rjs/history"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

var log = commonlog.GetLogger("rjs.console")

// DefaultShowHistory is the number of lines common/showHistory prints
// without max.show.
const DefaultShowHistory = 25

// LineReader reads one line after a prompt. Implementations with line
// editing keep their own recall list, fed through AppendHistory.
type LineReader interface {
	ReadLine(prompt string) (string, error)
	AppendHistory(line string)
}

// Console is a client.Handler for a terminal.
type Console struct {
	in      LineReader
	out     io.Writer
	errOut  io.Writer
	history history.Store

	// OnEOF is called once the reader reports io.EOF, typically to end the
	// client run.
	OnEOF func()

	busy atomic.Bool
}

var _ client.Handler = (*Console)(nil)

// New creates a console. hist may be nil to disable history.
func New(in LineReader, out, errOut io.Writer, hist history.Store) *Console {
	c := &Console{in: in, out: out, errOut: errOut, history: hist}
	c.replay()
	return c
}

// IsBusy reports whether the engine is evaluating.
func (c *Console) IsBusy() bool { return c.busy.Load() }

func (c *Console) ReadConsole(ctx context.Context, prompt string, addToHistory bool) (string, error) {
	line, err := c.in.ReadLine(prompt)
	if err != nil {
		if errors.Is(err, io.EOF) && c.OnEOF != nil {
			fmt.Fprintln(c.out)
			c.OnEOF()
		}
		return "", err
	}
	if addToHistory && strings.TrimSpace(line) != "" {
		c.in.AppendHistory(line)
		if c.history != nil {
			if err := c.history.Append(line); err != nil {
				log.Warningf("history: %s", err.Error())
			}
		}
	}
	return line + "\n", nil
}

func (c *Console) WriteConsole(text string, isError bool) {
	if isError {
		io.WriteString(c.errOut, text)
		return
	}
	io.WriteString(c.out, text)
}

func (c *Console) ShowMessage(text string) {
	io.WriteString(c.out, text)
	if !strings.HasSuffix(text, "\n") {
		io.WriteString(c.out, "\n")
	}
}

func (c *Console) Busy(busy bool) { c.busy.Store(busy) }

// Graphics is not supported on a terminal.
func (c *Console) Graphics(ctx context.Context, g *item.Graphics) (rdata.Object, error) {
	return nil, client.ErrUnhandled
}

func (c *Console) ExtUI(ctx context.Context, ui *item.ExtUI) (rdata.Object, error) {
	switch ui.Command() {
	case item.UIChooseFile:
		return c.chooseFile(ui)
	case item.UILoadHistory:
		return nil, c.loadHistory(ui)
	case item.UISaveHistory:
		return nil, c.saveHistory(ui)
	case item.UIShowHistory:
		return nil, c.showHistory(ui)
	}
	return nil, client.ErrUnhandled
}

func (c *Console) chooseFile(ui *item.ExtUI) (rdata.Object, error) {
	prompt := "File: "
	if b, ok := logicalArg(ui, "newResource"); ok && b {
		prompt = "New file: "
	}
	line, err := c.in.ReadLine(prompt)
	if err != nil {
		return nil, errors.Wrap(err, "choose file")
	}
	return rdata.NewVector(rdata.NewCharacterStore(strings.TrimSpace(line))), nil
}

func (c *Console) loadHistory(ui *item.ExtUI) error {
	if c.history == nil {
		return errors.New("history is disabled")
	}
	path, ok := stringArg(ui, "filename")
	if !ok {
		return errors.New("load history: filename is required")
	}
	if err := c.history.Load(path); err != nil {
		return err
	}
	c.replay()
	return nil
}

func (c *Console) saveHistory(ui *item.ExtUI) error {
	if c.history == nil {
		return errors.New("history is disabled")
	}
	path, ok := stringArg(ui, "filename")
	if !ok {
		return errors.New("save history: filename is required")
	}
	return c.history.Save(path)
}

func (c *Console) showHistory(ui *item.ExtUI) error {
	if c.history == nil {
		return errors.New("history is disabled")
	}
	limit := DefaultShowHistory
	if n, ok := intArg(ui, "max.show"); ok {
		limit = n
	}
	entries, err := c.history.Entries(limit)
	if err != nil {
		return err
	}
	if b, ok := logicalArg(ui, "reverse"); ok && b {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	for _, e := range entries {
		fmt.Fprintln(c.out, e.Line)
	}
	return nil
}

// replay feeds the stored history into the line reader.
func (c *Console) replay() {
	if c.history == nil {
		return
	}
	entries, err := c.history.Entries(0)
	if err != nil {
		log.Warningf("history: %s", err.Error())
		return
	}
	if r, ok := c.in.(interface{ ClearHistory() }); ok {
		r.ClearHistory()
	}
	for _, e := range entries {
		c.in.AppendHistory(e.Line)
	}
}

func stringArg(ui *item.ExtUI, name string) (string, bool) {
	v, ok := vectorArg(ui, name)
	if !ok {
		return "", false
	}
	s, ok := v.Data.(*rdata.CharacterStore)
	if !ok || s.Len() == 0 || s.IsNA(0) || s.Values[0] == "" {
		return "", false
	}
	return s.Values[0], true
}

func intArg(ui *item.ExtUI, name string) (int, bool) {
	v, ok := vectorArg(ui, name)
	if !ok || v.Data.Len() == 0 || v.Data.IsNA(0) {
		return 0, false
	}
	switch s := v.Data.(type) {
	case *rdata.IntegerStore:
		return int(s.Values[0]), true
	case *rdata.NumericStore:
		return int(s.Values[0]), true
	}
	return 0, false
}

func logicalArg(ui *item.ExtUI, name string) (bool, bool) {
	v, ok := vectorArg(ui, name)
	if !ok {
		return false, false
	}
	s, ok := v.Data.(*rdata.LogicalStore)
	if !ok || s.Len() == 0 || s.IsNA(0) {
		return false, false
	}
	return s.Values[0] == rdata.True, true
}

func vectorArg(ui *item.ExtUI, name string) (*rdata.Vector, bool) {
	obj, ok := ui.Arg(name)
	if !ok {
		return nil, false
	}
	v, ok := obj.(*rdata.Vector)
	return v, ok && v.Data != nil
}
