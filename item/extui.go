package item

import (
	"github.com/chazu/rjs/rdata"
	"github.com/chazu/rjs/wire"
)

// Extended UI command ids.
const (
	UIChooseFile  = "common/chooseFile"
	UILoadHistory = "common/loadHistory"
	UISaveHistory = "common/saveHistory"
	UIShowHistory = "common/showHistory"
)

// ExtUI asks the client to run a UI command, e.g. show a file chooser. Args
// travel as a list value; the answer is a value or a status.
type ExtUI struct {
	base
	command string
}

func NewExtUI(slot int, command string, args rdata.Object, wait bool) *ExtUI {
	it := &ExtUI{base: newBase(TypeExtUI, slot, wait), command: command}
	if args != nil {
		it.value = args
		it.options |= OptHasData
	}
	return it
}

// Command returns the UI command id.
func (it *ExtUI) Command() string { return it.command }

// Arg returns a named argument from the args list.
func (it *ExtUI) Arg(name string) (rdata.Object, bool) {
	l, ok := it.value.(*rdata.List)
	if !ok || it.IsTerminal() {
		return nil, false
	}
	return l.Get(name)
}

func (it *ExtUI) SetAnswer(a Answer) error {
	if !it.WaitsForClient() {
		return it.answer(a)
	}
	return it.answer(a, answerValue, answerStatus)
}

func (it *ExtUI) encode(w *wire.Writer) {
	it.writeHeader(w)
	w.PutString(it.command)
	it.writeValue(w)
}

func (it *ExtUI) decode(r *wire.Reader) {
	it.readHeader(r)
	it.command = r.GetString()
	it.readValue(r)
}
