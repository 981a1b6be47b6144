package item

import (
	"fmt"

	"github.com/chazu/rjs/rdata"
	"github.com/chazu/rjs/wire"
)

// DataKind selects what a Data item asks the engine to do.
type DataKind byte

const (
	EvalVoid         DataKind = 0x01
	EvalData         DataKind = 0x02
	ResolveReference DataKind = 0x12
	Assign           DataKind = 0x22
)

func (k DataKind) String() string {
	switch k {
	case EvalVoid:
		return "EVAL_VOID"
	case EvalData:
		return "EVAL_DATA"
	case ResolveReference:
		return "RESOLVE"
	case Assign:
		return "ASSIGN"
	}
	return fmt.Sprintf("DataKind(%#x)", byte(k))
}

// Depth limits.
const (
	// MaxDepth is the largest depth that fits the wire byte.
	MaxDepth = 127
	// DepthUnlimited requests complete materialization.
	DepthUnlimited = -1
	// DepthReference requests only a reference to the result.
	DepthReference = 0
)

// Construction flags of a Data item.
const (
	// DataStructOnly asks for the shape of the result without its data.
	DataStructOnly uint32 = 0x1
	// DataLoadEnvironments materializes nested environments instead of
	// returning references.
	DataLoadEnvironments uint32 = 0x2
	// DataLoadPromises forces unevaluated promises.
	DataLoadPromises uint32 = 0x4
)

// Data asks the engine to evaluate an expression, resolve a reference or
// assign a value. It always blocks its sender and is answered with a value
// or a status.
type Data struct {
	base
	kind      DataKind
	depth     int8
	factoryID string
}

// NewEvalVoid evaluates expr for its side effects.
func NewEvalVoid(slot int, expr string) *Data {
	d := newData(slot, EvalVoid, 0)
	d.setText(expr)
	return d
}

// NewEvalData evaluates expr and returns its value, materialized up to depth.
func NewEvalData(slot int, expr string, depth int, factoryID string) *Data {
	d := newData(slot, EvalData, depth)
	d.factoryID = factoryID
	d.setText(expr)
	return d
}

// NewResolve materializes the engine value behind ref.
func NewResolve(slot int, ref *rdata.Reference, depth int) *Data {
	d := newData(slot, ResolveReference, depth)
	d.value = ref
	d.options |= OptHasData
	return d
}

// NewAssign assigns value to the target expression.
func NewAssign(slot int, target string, value rdata.Object) *Data {
	d := newData(slot, Assign, 0)
	d.setText(target)
	d.value = value
	d.options |= OptHasData
	return d
}

func newData(slot int, kind DataKind, depth int) *Data {
	return &Data{base: newBase(TypeData, slot, true), kind: kind, depth: ClampDepth(depth)}
}

// ClampDepth maps a requested depth onto the wire range.
func ClampDepth(depth int) int8 {
	switch {
	case depth < 0:
		return DepthUnlimited
	case depth > MaxDepth:
		return MaxDepth
	}
	return int8(depth)
}

func (d *Data) Kind() DataKind { return d.kind }

// Depth is the requested materialization depth, -1 for unlimited.
func (d *Data) Depth() int { return int(d.depth) }

// WithArgs turns an evaluation into a call of the function named by the
// expression text with the items of args as (named) arguments.
func (d *Data) WithArgs(args *rdata.List) *Data {
	d.value = args
	d.options |= OptHasData
	return d
}

// WithFlags sets construction flags and returns d.
func (d *Data) WithFlags(flags uint32) *Data {
	d.options |= flags & optSpecificMask
	return d
}

// Flags returns the construction flags.
func (d *Data) Flags() uint32 { return d.specific() }

// FactoryID names the client-side object factory the answer is built for.
func (d *Data) FactoryID() string { return d.factoryID }

func (d *Data) SetAnswer(a Answer) error {
	return d.answer(a, answerValue, answerStatus)
}

func (d *Data) encode(w *wire.Writer) {
	d.writeHeader(w)
	w.PutByte(byte(d.kind))
	if d.options&OptHasStatus != 0 {
		return
	}
	w.PutByte(byte(d.depth))
	w.PutString(d.factoryID)
	d.writeText(w)
	d.writeValue(w)
}

func (d *Data) decode(r *wire.Reader) {
	d.readHeader(r)
	d.kind = DataKind(r.GetByte())
	switch d.kind {
	case EvalVoid, EvalData, ResolveReference, Assign:
	default:
		r.Failf("unknown data kind %#x", byte(d.kind))
		return
	}
	if d.options&OptHasStatus != 0 {
		return
	}
	d.depth = int8(r.GetByte())
	if d.depth < DepthUnlimited {
		r.Failf("invalid depth %d", d.depth)
	}
	d.factoryID = r.GetString()
	d.readText(r)
	d.readValue(r)
}
