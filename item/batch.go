package item

import (
	"github.com/chazu/rjs/wire"
)

// MaxBatchItems bounds the number of items accepted in one batch.
const MaxBatchItems = 1 << 16

// WriteBatch encodes items, each prefixed by its type byte, and terminates
// the batch with the NONE tag.
func WriteBatch(w *wire.Writer, items []Item) {
	for _, it := range items {
		w.PutByte(byte(it.Type()))
		it.encode(w)
	}
	w.PutByte(byte(TypeNone))
}

// ReadBatch decodes a batch; every decoded item is bound to slot. An unknown
// type tag invalidates the whole batch.
func ReadBatch(r *wire.Reader, slot int) []Item {
	var items []Item
	for {
		t := Type(r.GetByte())
		if r.Err() != nil {
			return nil
		}
		if t == TypeNone {
			return items
		}
		if len(items) >= MaxBatchItems {
			r.Failf("batch exceeds %d items", MaxBatchItems)
			return nil
		}
		it := newEmpty(t)
		if it == nil {
			r.Failf("unknown item type %d", byte(t))
			return nil
		}
		it.header().slot = slot
		it.header().typ = t
		it.decode(r)
		if r.Err() != nil {
			return nil
		}
		items = append(items, it)
	}
}

func newEmpty(t Type) Item {
	switch t {
	case TypeConsoleRead:
		return &ConsoleRead{}
	case TypeConsoleWriteOut, TypeConsoleWriteErr, TypeMessage:
		return &ConsoleWrite{}
	case TypeExtUI:
		return &ExtUI{}
	case TypeGraphics:
		return &Graphics{}
	case TypeData:
		return &Data{}
	case TypeGraphicsOp:
		return &GraphicsOp{}
	}
	return nil
}
