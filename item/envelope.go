package item

import (
	"fmt"

	"github.com/chazu/rjs/wire"
)

// EnvelopeKind distinguishes the payloads of a transport call.
type EnvelopeKind byte

const (
	KindPing   EnvelopeKind = 1
	KindBatch  EnvelopeKind = 2
	KindCtrl   EnvelopeKind = 3
	KindFile   EnvelopeKind = 4
	KindStatus EnvelopeKind = 5
)

func (k EnvelopeKind) String() string {
	switch k {
	case KindPing:
		return "PING"
	case KindBatch:
		return "BATCH"
	case KindCtrl:
		return "CTRL"
	case KindFile:
		return "FILE"
	case KindStatus:
		return "STATUS"
	}
	return fmt.Sprintf("EnvelopeKind(%d)", byte(k))
}

// CtrlCode is an out-of-band control request.
type CtrlCode int32

const (
	CtrlCancel  CtrlCode = 0x2010
	CtrlHotMode CtrlCode = 0x2020
)

// FileDirection of a file transfer.
type FileDirection byte

const (
	Upload   FileDirection = 1
	Download FileDirection = 2
)

// FileTransfer moves a file between the client and the server's work directory.
type FileTransfer struct {
	Direction FileDirection
	Path      string
	Data      []byte
}

// Envelope is the payload of one transport call in either direction.
type Envelope struct {
	Kind EnvelopeKind
	// Busy is set on server batches while the engine is busy.
	Busy   bool
	Items  []Item
	Ctrl   CtrlCode
	File   *FileTransfer
	Status *Status
}

func PingEnvelope() *Envelope                { return &Envelope{Kind: KindPing} }
func CtrlEnvelope(c CtrlCode) *Envelope      { return &Envelope{Kind: KindCtrl, Ctrl: c} }
func StatusEnvelope(s *Status) *Envelope     { return &Envelope{Kind: KindStatus, Status: s} }
func FileEnvelope(f *FileTransfer) *Envelope { return &Envelope{Kind: KindFile, File: f} }

func BatchEnvelope(items []Item, busy bool) *Envelope {
	return &Envelope{Kind: KindBatch, Items: items, Busy: busy}
}

// WriteEnvelope encodes e.
func WriteEnvelope(w *wire.Writer, e *Envelope) {
	w.PutByte(byte(e.Kind))
	switch e.Kind {
	case KindPing:
	case KindBatch:
		w.PutBool(e.Busy)
		WriteBatch(w, e.Items)
	case KindCtrl:
		w.PutInt32(int32(e.Ctrl))
	case KindFile:
		w.PutByte(byte(e.File.Direction))
		w.PutString(e.File.Path)
		w.PutBytes(e.File.Data)
	case KindStatus:
		WriteStatus(w, e.Status)
	}
}

// ReadEnvelope decodes an envelope; batch items are bound to slot.
func ReadEnvelope(r *wire.Reader, slot int) *Envelope {
	e := &Envelope{Kind: EnvelopeKind(r.GetByte())}
	switch e.Kind {
	case KindPing:
	case KindBatch:
		e.Busy = r.GetBool()
		e.Items = ReadBatch(r, slot)
	case KindCtrl:
		e.Ctrl = CtrlCode(r.GetInt32())
		if e.Ctrl != CtrlCancel && e.Ctrl != CtrlHotMode {
			r.Failf("unknown control code %#x", int32(e.Ctrl))
		}
	case KindFile:
		f := &FileTransfer{Direction: FileDirection(r.GetByte())}
		if f.Direction != Upload && f.Direction != Download {
			r.Failf("unknown file direction %d", f.Direction)
		}
		f.Path = r.GetString()
		f.Data = r.GetBytes()
		e.File = f
	case KindStatus:
		e.Status = ReadStatus(r)
	default:
		r.Failf("unknown envelope kind %d", byte(e.Kind))
	}
	if r.Err() != nil {
		return nil
	}
	return e
}

// MarshalEnvelope encodes e into a fresh byte slice.
func MarshalEnvelope(e *Envelope) []byte {
	w := wire.NewWriter(128)
	WriteEnvelope(w, e)
	return w.Bytes()
}

// UnmarshalEnvelope decodes exactly one envelope from data.
func UnmarshalEnvelope(data []byte, slot int) (*Envelope, error) {
	r := wire.NewReader(data)
	e := ReadEnvelope(r, slot)
	r.ExpectEnd()
	if err := r.Err(); err != nil {
		return nil, err
	}
	return e, nil
}
