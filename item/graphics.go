package item

import (
	"fmt"

	"github.com/chazu/rjs/wire"
)

// GraphicsCode is a drawing primitive or device request sent to the client's
// graphics sink.
type GraphicsCode byte

const (
	GSetClip      GraphicsCode = 0x01
	GSetColor     GraphicsCode = 0x02
	GSetFill      GraphicsCode = 0x03
	GSetLine      GraphicsCode = 0x04
	GSetFont      GraphicsCode = 0x05
	GDrawLine     GraphicsCode = 0x11
	GDrawRect     GraphicsCode = 0x12
	GDrawPolyline GraphicsCode = 0x13
	GDrawPolygon  GraphicsCode = 0x14
	GDrawPath     GraphicsCode = 0x15
	GDrawCircle   GraphicsCode = 0x16
	GDrawText     GraphicsCode = 0x17
	GDrawRaster   GraphicsCode = 0x18
	GCapture      GraphicsCode = 0x1c
	GNewPage      GraphicsCode = 0x21
	GClose        GraphicsCode = 0x22
	GGetSize      GraphicsCode = 0x23
	GDeactivate   GraphicsCode = 0x24
	GActivate     GraphicsCode = 0x25
	GSetMode      GraphicsCode = 0x26
	GFontMetric   GraphicsCode = 0x27
	GStringWidth  GraphicsCode = 0x28
	GLocator      GraphicsCode = 0x31
)

var graphicsNames = map[GraphicsCode]string{
	GSetClip: "SET_CLIP", GSetColor: "SET_COLOR", GSetFill: "SET_FILL",
	GSetLine: "SET_LINE", GSetFont: "SET_FONT", GDrawLine: "DRAW_LINE",
	GDrawRect: "DRAW_RECT", GDrawPolyline: "DRAW_POLYLINE",
	GDrawPolygon: "DRAW_POLYGON", GDrawPath: "DRAW_PATH",
	GDrawCircle: "DRAW_CIRCLE", GDrawText: "DRAW_TEXT",
	GDrawRaster: "DRAW_RASTER", GCapture: "CAPTURE", GNewPage: "NEW_PAGE",
	GClose: "CLOSE", GGetSize: "GET_SIZE", GDeactivate: "DEACTIVATE",
	GActivate: "ACTIVATE", GSetMode: "SET_MODE", GFontMetric: "FONT_METRIC",
	GStringWidth: "STRING_WIDTH", GLocator: "LOCATOR",
}

func (c GraphicsCode) String() string {
	if n, ok := graphicsNames[c]; ok {
		return n
	}
	return fmt.Sprintf("GraphicsCode(%#x)", byte(c))
}

// GraphicsCodeByName maps an op name such as "DRAW_LINE" to its code.
func GraphicsCodeByName(name string) (GraphicsCode, bool) {
	for c, n := range graphicsNames {
		if n == name {
			return c, true
		}
	}
	return 0, false
}

// Answered reports whether the op returns metrics and so blocks the engine.
func (c GraphicsCode) Answered() bool {
	switch c {
	case GGetSize, GFontMetric, GStringWidth, GLocator, GCapture:
		return true
	}
	return false
}

// Graphics is one primitive for a client-side device. Numeric parameters
// travel in Args; DRAW_TEXT, STRING_WIDTH and SET_FONT carry Text; DRAW_RASTER
// carries image bytes. Ops that return metrics are answered with a numeric
// vector (raw vector for CAPTURE).
type Graphics struct {
	base
	dev    int32
	code   GraphicsCode
	args   []float64
	raster []byte
}

func NewGraphics(dev int32, code GraphicsCode, args ...float64) *Graphics {
	return &Graphics{base: newBase(TypeGraphics, 0, code.Answered()), dev: dev, code: code, args: args}
}

// WithText attaches the text parameter.
func (g *Graphics) WithText(text string) *Graphics {
	g.setText(text)
	return g
}

// WithRaster attaches image bytes.
func (g *Graphics) WithRaster(data []byte) *Graphics {
	g.raster = data
	return g
}

func (g *Graphics) Device() int32      { return g.dev }
func (g *Graphics) Code() GraphicsCode { return g.code }
func (g *Graphics) Args() []float64    { return g.args }
func (g *Graphics) Raster() []byte     { return g.raster }

func (g *Graphics) SetAnswer(a Answer) error {
	if !g.WaitsForClient() {
		return g.answer(a)
	}
	return g.answer(a, answerValue, answerStatus)
}

func (g *Graphics) encode(w *wire.Writer) {
	g.writeHeader(w)
	w.PutInt32(g.dev)
	w.PutByte(byte(g.code))
	w.PutFloat64s(g.args)
	g.writeText(w)
	if g.code == GDrawRaster {
		w.PutBytes(g.raster)
	}
	g.writeValue(w)
}

func (g *Graphics) decode(r *wire.Reader) {
	g.readHeader(r)
	g.dev = r.GetInt32()
	g.code = GraphicsCode(r.GetByte())
	if _, ok := graphicsNames[g.code]; !ok {
		r.Failf("unknown graphics code %#x", byte(g.code))
		return
	}
	g.args = r.GetFloat64s()
	g.readText(r)
	if g.code == GDrawRaster {
		g.raster = r.GetBytes()
	}
	g.readValue(r)
}

// GraphicsOpCode is a device request sent by a client.
type GraphicsOpCode byte

const (
	OpClose  GraphicsOpCode = 0x01
	OpResize GraphicsOpCode = 0x02
	OpRedraw GraphicsOpCode = 0x03
)

// GraphicsOp asks the engine to act on one of its devices. It is answered
// with a status.
type GraphicsOp struct {
	base
	dev  int32
	code GraphicsOpCode
	args []float64
}

func NewGraphicsOp(slot int, dev int32, code GraphicsOpCode, args ...float64) *GraphicsOp {
	return &GraphicsOp{base: newBase(TypeGraphicsOp, slot, true), dev: dev, code: code, args: args}
}

func (g *GraphicsOp) Device() int32        { return g.dev }
func (g *GraphicsOp) Code() GraphicsOpCode { return g.code }
func (g *GraphicsOp) Args() []float64      { return g.args }

func (g *GraphicsOp) SetAnswer(a Answer) error {
	return g.answer(a, answerStatus)
}

func (g *GraphicsOp) encode(w *wire.Writer) {
	g.writeHeader(w)
	w.PutInt32(g.dev)
	w.PutByte(byte(g.code))
	if g.options&OptHasStatus == 0 {
		w.PutFloat64s(g.args)
	}
}

func (g *GraphicsOp) decode(r *wire.Reader) {
	g.readHeader(r)
	g.dev = r.GetInt32()
	g.code = GraphicsOpCode(r.GetByte())
	if g.code < OpClose || g.code > OpRedraw {
		r.Failf("unknown graphics op %#x", byte(g.code))
		return
	}
	if g.options&OptHasStatus == 0 {
		g.args = r.GetFloat64s()
	}
}
