// Package item defines the command items that cross the boundary between the
// engine and its clients, the batches they travel in, and the envelopes of the
// transport calls.
//
// An item is created by the side that initiates a unit of work and completed
// once, by SetAnswer, on the other side. Items never talk to the engine.
package item

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/chazu/rjs/rdata"
	"github.com/chazu/rjs/wire"
)

// Type is the item type tag written before each item of a batch.
type Type byte

const (
	TypeNone            Type = 0
	TypeConsoleRead     Type = 1
	TypeConsoleWriteOut Type = 2
	TypeConsoleWriteErr Type = 3
	TypeMessage         Type = 4
	TypeExtUI           Type = 5
	TypeGraphics        Type = 7

	// Types at or above clientInitiated are sent by clients; the others are
	// sent by the engine and answered by clients.
	clientInitiated Type = 9

	TypeData       Type = 10
	TypeGraphicsOp Type = 11
)

var typeNames = map[Type]string{
	TypeNone:            "NONE",
	TypeConsoleRead:     "CONSOLE_READ",
	TypeConsoleWriteOut: "CONSOLE_WRITE_OUT",
	TypeConsoleWriteErr: "CONSOLE_WRITE_ERR",
	TypeMessage:         "MESSAGE",
	TypeExtUI:           "EXTENDED_UI",
	TypeGraphics:        "GRAPHICS",
	TypeData:            "DATA",
	TypeGraphicsOp:      "GRAPHICS_OP",
}

func (t Type) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("Type(%d)", byte(t))
}

// EngineInitiated reports whether items of this type are created by the
// engine (and therefore answered by a client).
func (t Type) EngineInitiated() bool { return t < clientInitiated }

// Option bits shared by all items. The low 16 bits are item specific.
const (
	OptWaitForClient uint32 = 0x80000000
	OptHasStatus     uint32 = 0x40000000
	OptHasData       uint32 = 0x20000000
	OptHasText       uint32 = 0x10000000
	OptAnswered      uint32 = 0x08000000

	optSeverityShift        = 16
	optSeverityMask  uint32 = 0xFF << optSeverityShift
	optSpecificMask  uint32 = 0xFFFF
)

// ErrIllegalStateTransition is returned by SetAnswer when the item was
// already answered or does not accept that kind of answer.
var ErrIllegalStateTransition = errors.New("item: illegal state transition")

// Answer completes a blocking item with exactly one of a status, a line of
// text or a value.
type Answer struct {
	Status *Status
	Text   string
	Value  rdata.Object

	kind answerKind
}

type answerKind byte

const (
	answerStatus answerKind = iota + 1
	answerText
	answerValue
)

func StatusAnswer(s *Status) Answer     { return Answer{Status: s, kind: answerStatus} }
func TextAnswer(text string) Answer     { return Answer{Text: text, kind: answerText} }
func ValueAnswer(v rdata.Object) Answer { return Answer{Value: v, kind: answerValue} }

// Item is one unit of cross-boundary work.
type Item interface {
	Type() Type
	// Slot is the client slot the item belongs to.
	Slot() int
	Options() uint32
	// RequestID identifies a blocking item while it awaits its answer.
	RequestID() int
	SetRequestID(id int)
	// WaitsForClient is fixed at construction: the sender blocks until answered.
	WaitsForClient() bool
	// IsTerminal reports whether the item has been answered.
	IsTerminal() bool
	Status() *Status
	Text() string
	Value() rdata.Object
	SetAnswer(a Answer) error

	encode(w *wire.Writer)
	decode(r *wire.Reader)
	header() *base
}

// base carries the fields every item has.
type base struct {
	typ       Type
	slot      int
	options   uint32
	requestID int
	status    *Status
	text      string
	value     rdata.Object
}

func newBase(t Type, slot int, wait bool) base {
	b := base{typ: t, slot: slot, requestID: -1}
	if wait {
		b.options |= OptWaitForClient
	}
	return b
}

func (b *base) header() *base        { return b }
func (b *base) Type() Type           { return b.typ }
func (b *base) Slot() int            { return b.slot }
func (b *base) Options() uint32      { return b.options }
func (b *base) RequestID() int       { return b.requestID }
func (b *base) SetRequestID(id int)  { b.requestID = id }
func (b *base) WaitsForClient() bool { return b.options&OptWaitForClient != 0 }
func (b *base) IsTerminal() bool     { return b.options&OptAnswered != 0 }
func (b *base) Status() *Status      { return b.status }
func (b *base) Text() string         { return b.text }
func (b *base) Value() rdata.Object  { return b.value }

// specific returns the item specific option bits.
func (b *base) specific() uint32 { return b.options & optSpecificMask }

// answer applies a to the item if kind is accepted.
func (b *base) answer(a Answer, accept ...answerKind) error {
	if b.IsTerminal() {
		return errors.Wrapf(ErrIllegalStateTransition, "%s already answered", b.typ)
	}
	ok := false
	for _, k := range accept {
		if a.kind == k {
			ok = true
			break
		}
	}
	if !ok {
		return errors.Wrapf(ErrIllegalStateTransition, "%s does not accept this answer", b.typ)
	}
	b.options |= OptAnswered
	switch a.kind {
	case answerStatus:
		b.setStatus(a.Status)
		b.value = nil
		b.options &^= OptHasData
	case answerText:
		b.setText(a.Text)
		b.status = nil
		b.options &^= OptHasStatus | optSeverityMask
	case answerValue:
		b.value = a.Value
		b.options |= OptHasData
		b.status = nil
		b.options &^= OptHasStatus | optSeverityMask
	}
	return nil
}

func (b *base) setStatus(s *Status) {
	b.status = s
	b.options &^= optSeverityMask
	if s == nil {
		b.options &^= OptHasStatus
		return
	}
	b.options |= OptHasStatus | uint32(s.Severity)<<optSeverityShift
}

func (b *base) setText(text string) {
	b.text = text
	b.options |= OptHasText
}

// writeHeader writes options and, for blocking items, the request id.
func (b *base) writeHeader(w *wire.Writer) {
	w.PutInt32(int32(b.options))
	if b.WaitsForClient() {
		w.PutInt32(int32(b.requestID))
	}
	if b.options&OptHasStatus != 0 {
		WriteStatus(w, b.status)
	}
}

func (b *base) readHeader(r *wire.Reader) {
	b.options = uint32(r.GetInt32())
	if b.WaitsForClient() {
		b.requestID = int(r.GetInt32())
	}
	if b.options&OptHasStatus != 0 {
		b.status = ReadStatus(r)
	}
}

func (b *base) writeText(w *wire.Writer) {
	if b.options&OptHasText != 0 {
		w.PutString(b.text)
	}
}

func (b *base) readText(r *wire.Reader) {
	if b.options&OptHasText != 0 {
		b.text = r.GetString()
	}
}

func (b *base) writeValue(w *wire.Writer) {
	if b.options&OptHasData != 0 {
		rdata.WriteValue(w, b.value)
	}
}

func (b *base) readValue(r *wire.Reader) {
	if b.options&OptHasData != 0 {
		b.value = rdata.ReadValue(r)
	}
}
