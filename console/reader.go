package console

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"
)

// ErrInterrupted is returned by ReadLine when the user aborted the prompt
// with Ctrl-C.
var ErrInterrupted = liner.ErrPromptAborted

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Terminal reads lines with line editing and recall.
type Terminal struct {
	*liner.State
}

// NewTerminal takes over the terminal until Close.
func NewTerminal() *Terminal {
	t := &Terminal{liner.NewLiner()}
	t.SetCtrlCAborts(true)
	return t
}

func (t *Terminal) ReadLine(prompt string) (string, error) {
	return t.Prompt(prompt)
}

// Plain reads lines from a non-interactive input. Prompts are written to
// out.
type Plain struct {
	r   *bufio.Reader
	out io.Writer
}

func NewPlain(in io.Reader, out io.Writer) *Plain {
	return &Plain{r: bufio.NewReader(in), out: out}
}

func (p *Plain) ReadLine(prompt string) (string, error) {
	if p.out != nil {
		io.WriteString(p.out, prompt)
	}
	line, err := p.r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Plain) AppendHistory(string) {}

// NewReader returns a Terminal when stdin and stdout are terminals and a
// Plain reader otherwise. The returned close function restores the
// terminal.
func NewReader() (LineReader, func() error) {
	if IsTerminal(os.Stdin) && IsTerminal(os.Stdout) {
		t := NewTerminal()
		return t, t.Close
	}
	return NewPlain(os.Stdin, os.Stdout), func() error { return nil }
}
