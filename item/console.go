package item

import "github.com/chazu/rjs/wire"

// ConsoleRead option bits.
const (
	ReadAddToHistory uint32 = 0x1
	// ReadHot marks the prompt of the hot-mode sub-loop.
	ReadHot uint32 = 0x2
)

// ConsoleRead asks slot 0 for one line of input. It is answered with the
// line (including its newline) or with a status.
type ConsoleRead struct {
	base
}

func NewConsoleRead(prompt string, opts uint32) *ConsoleRead {
	it := &ConsoleRead{base: newBase(TypeConsoleRead, 0, true)}
	it.options |= opts & optSpecificMask
	it.setText(prompt)
	return it
}

// AddToHistory reports whether the answered line belongs in the history.
func (it *ConsoleRead) AddToHistory() bool { return it.specific()&ReadAddToHistory != 0 }

// Hot reports whether the read belongs to the hot-mode sub-loop.
func (it *ConsoleRead) Hot() bool { return it.specific()&ReadHot != 0 }

func (it *ConsoleRead) SetAnswer(a Answer) error {
	return it.answer(a, answerText, answerStatus)
}

func (it *ConsoleRead) encode(w *wire.Writer) {
	it.writeHeader(w)
	it.writeText(w)
}

func (it *ConsoleRead) decode(r *wire.Reader) {
	it.readHeader(r)
	it.readText(r)
}

// ConsoleWrite carries console output (stdout or stderr) or a message to be
// shown to the user. It is never answered.
type ConsoleWrite struct {
	base
}

func NewConsoleWriteOut(text string) *ConsoleWrite { return newConsoleWrite(TypeConsoleWriteOut, text) }
func NewConsoleWriteErr(text string) *ConsoleWrite { return newConsoleWrite(TypeConsoleWriteErr, text) }
func NewMessage(text string) *ConsoleWrite         { return newConsoleWrite(TypeMessage, text) }

func newConsoleWrite(t Type, text string) *ConsoleWrite {
	it := &ConsoleWrite{base: newBase(t, 0, false)}
	it.setText(text)
	return it
}

func (it *ConsoleWrite) SetAnswer(a Answer) error {
	return it.answer(a)
}

func (it *ConsoleWrite) encode(w *wire.Writer) {
	it.writeHeader(w)
	it.writeText(w)
}

func (it *ConsoleWrite) decode(r *wire.Reader) {
	it.readHeader(r)
	it.readText(r)
}
