package engine

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// GraphicsCall is one drawing operation sent to the host. Op names the
// primitive ("NEW_PAGE", "DRAW_LINE", "GET_SIZE", ...).
type GraphicsCall struct {
	Device int32
	Op     string
	Args   []float64
	Text   string
	Raster []byte
}

// queryOps return metrics and are not recorded for redraw.
var queryOps = map[string]bool{
	"GET_SIZE": true, "STRING_WIDTH": true, "FONT_METRIC": true, "LOCATOR": true, "CAPTURE": true,
}

type device struct {
	id            int32
	width, height float64
	// display holds the operations drawn since the last new page.
	display []GraphicsCall
}

type deviceTable struct {
	devices map[int32]*device
	current int32
	next    int32
}

func newDeviceTable() *deviceTable {
	return &deviceTable{devices: make(map[int32]*device), next: 1}
}

func (t *deviceTable) ids() []int32 {
	ids := make([]int32, 0, len(t.devices))
	for id := range t.devices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ErrNoDevice is returned for operations on a device that is not open.
var ErrNoDevice = errors.New("no such graphics device")

// send forwards call to the host, recording drawing operations on the
// device's display list.
func (in *Interp) send(dev *device, call GraphicsCall) (*Value, error) {
	call.Device = dev.id
	switch {
	case call.Op == "NEW_PAGE":
		dev.display = dev.display[:0]
	case !queryOps[call.Op] && call.Op != "CLOSE" && call.Op != "ACTIVATE" && call.Op != "DEACTIVATE":
		dev.display = append(dev.display, call)
	}
	v, err := in.cb.Graphics(call)
	if err != nil {
		return nil, err
	}
	if v == nil {
		v = Null
	}
	return v, nil
}

func (in *Interp) openDevice(width, height float64) (*device, error) {
	t := in.devices
	dev := &device{id: t.next, width: width, height: height}
	t.next++
	t.devices[dev.id] = dev
	if t.current != 0 {
		if old := t.devices[t.current]; old != nil {
			if _, err := in.send(old, GraphicsCall{Op: "DEACTIVATE"}); err != nil {
				return nil, err
			}
		}
	}
	t.current = dev.id
	log.Debugf("opened graphics device %d (%gx%g)", dev.id, width, height)
	if _, err := in.send(dev, GraphicsCall{Op: "NEW_PAGE", Args: []float64{width, height}}); err != nil {
		return nil, err
	}
	if _, err := in.send(dev, GraphicsCall{Op: "ACTIVATE"}); err != nil {
		return nil, err
	}
	return dev, nil
}

// currentDevice returns the active device, opening a default one first.
func (in *Interp) currentDevice() (*device, error) {
	if dev := in.devices.devices[in.devices.current]; dev != nil {
		return dev, nil
	}
	return in.openDevice(504, 504)
}

// CloseDevice closes device id on behalf of the host.
func (in *Interp) CloseDevice(id int32) error {
	dev := in.devices.devices[id]
	if dev == nil {
		return errors.Wrapf(ErrNoDevice, "device %d", id)
	}
	delete(in.devices.devices, id)
	if in.devices.current == id {
		in.devices.current = 0
		if ids := in.devices.ids(); len(ids) > 0 {
			in.devices.current = ids[len(ids)-1]
		}
	}
	_, err := in.send(dev, GraphicsCall{Op: "CLOSE"})
	return err
}

// ResizeDevice records a new size for device id and redraws it.
func (in *Interp) ResizeDevice(id int32, width, height float64) error {
	dev := in.devices.devices[id]
	if dev == nil {
		return errors.Wrapf(ErrNoDevice, "device %d", id)
	}
	dev.width, dev.height = width, height
	return in.RedrawDevice(id)
}

// RedrawDevice starts a new page on device id and replays its display
// list.
func (in *Interp) RedrawDevice(id int32) error {
	dev := in.devices.devices[id]
	if dev == nil {
		return errors.Wrapf(ErrNoDevice, "device %d", id)
	}
	replay := append([]GraphicsCall(nil), dev.display...)
	if _, err := in.send(dev, GraphicsCall{Op: "NEW_PAGE", Args: []float64{dev.width, dev.height}}); err != nil {
		return err
	}
	for _, call := range replay {
		if _, err := in.send(dev, call); err != nil {
			return err
		}
	}
	return nil
}

// Devices lists the open device ids.
func (in *Interp) Devices() []int32 { return in.devices.ids() }

var namedColors = map[string]uint32{
	"black": 0x000000, "white": 0xFFFFFF, "red": 0xFF0000, "green": 0x00CD00,
	"blue": 0x0000FF, "cyan": 0x00FFFF, "magenta": 0xFF00FF, "yellow": 0xFFFF00,
	"gray": 0xBEBEBE, "grey": 0xBEBEBE, "orange": 0xFFA500, "purple": 0xA020F0,
	"brown": 0xA52A2A, "darkgreen": 0x006400, "navy": 0x000080, "pink": 0xFFC0CB,
}

var palette = []string{"black", "red", "green", "blue", "cyan", "magenta", "yellow", "gray"}

// colorValue converts a color name, "#RRGGBB[AA]" string or palette index to
// an ARGB number.
func colorValue(c *CallCtx, v *Value) (float64, error) {
	if v.Kind == StrKind {
		s := strings.ToLower(strAt(v, 0))
		if s == "transparent" || s == NAString {
			return 0, nil
		}
		if strings.HasPrefix(s, "#") && (len(s) == 7 || len(s) == 9) {
			rgb, err := strconv.ParseUint(s[1:7], 16, 32)
			if err != nil {
				return 0, c.errorf("invalid color name '%s'", s)
			}
			alpha := uint64(0xFF)
			if len(s) == 9 {
				if alpha, err = strconv.ParseUint(s[7:], 16, 8); err != nil {
					return 0, c.errorf("invalid color name '%s'", s)
				}
			}
			return float64(alpha<<24 | rgb), nil
		}
		rgb, ok := namedColors[s]
		if !ok {
			return 0, c.errorf("invalid color name '%s'", s)
		}
		return float64(0xFF000000 | rgb), nil
	}
	i, ok := asIntScalar(v)
	if !ok || i < 0 {
		return 0, c.errorf("invalid color specification")
	}
	if i == 0 {
		return float64(0xFFFFFFFF), nil
	}
	return float64(0xFF000000 | namedColors[palette[(i-1)%len(palette)]]), nil
}

func (in *Interp) installGraphics() {
	in.def("dev.new", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("width", "height")
		if err != nil {
			return nil, err
		}
		w, h := 504.0, 504.0
		if a[0] != nil {
			w, _ = asFloatScalar(a[0])
		}
		if a[1] != nil {
			h, _ = asFloatScalar(a[1])
		}
		dev, err := in.openDevice(w, h)
		if err != nil {
			return nil, err
		}
		in.visible = false
		return Int(dev.id), nil
	})
	in.def("dev.cur", func(in *Interp, c *CallCtx) (*Value, error) {
		return Int(in.devices.current), nil
	})
	in.def("dev.list", func(in *Interp, c *CallCtx) (*Value, error) {
		ids := in.devices.ids()
		if len(ids) == 0 {
			return Null, nil
		}
		return Int(ids...), nil
	})
	in.def("dev.set", func(in *Interp, c *CallCtx) (*Value, error) {
		id, ok := asIntScalar(orNull(firstArg(c)))
		dev := in.devices.devices[int32(id)]
		if !ok || dev == nil {
			return nil, c.errorf("no such device %d", id)
		}
		if old := in.devices.devices[in.devices.current]; old != nil && old != dev {
			if _, err := in.send(old, GraphicsCall{Op: "DEACTIVATE"}); err != nil {
				return nil, err
			}
		}
		in.devices.current = dev.id
		if _, err := in.send(dev, GraphicsCall{Op: "ACTIVATE"}); err != nil {
			return nil, err
		}
		return Int(dev.id), nil
	})
	in.def("dev.off", func(in *Interp, c *CallCtx) (*Value, error) {
		id := in.devices.current
		if n, ok := asIntScalar(orNull(firstArg(c))); ok {
			id = int32(n)
		}
		if id == 0 {
			return nil, c.errorf("cannot shut down device 1 (the null device)")
		}
		if err := in.CloseDevice(id); err != nil {
			return nil, c.errorf("%s", err.Error())
		}
		return Int(in.devices.current), nil
	})
	in.def("plot.new", func(in *Interp, c *CallCtx) (*Value, error) {
		dev, err := in.currentDevice()
		if err != nil {
			return nil, err
		}
		in.visible = false
		_, err = in.send(dev, GraphicsCall{Op: "NEW_PAGE", Args: []float64{dev.width, dev.height}})
		return Null, err
	})
	draw := func(op string, formals ...string) BuiltinFunc {
		return func(in *Interp, c *CallCtx) (*Value, error) {
			a, err := c.Match(formals...)
			if err != nil {
				return nil, err
			}
			var args []float64
			for i, v := range a {
				if v == nil {
					return nil, c.errorf("argument \"%s\" is missing, with no default", formals[i])
				}
				args = append(args, Floats(v)...)
			}
			dev, err := in.currentDevice()
			if err != nil {
				return nil, err
			}
			in.visible = false
			_, err = in.send(dev, GraphicsCall{Op: op, Args: args})
			return Null, err
		}
	}
	in.def("gd.clip", draw("SET_CLIP", "x0", "x1", "y0", "y1"))
	in.def("gd.line", draw("DRAW_LINE", "x0", "y0", "x1", "y1"))
	in.def("gd.rect", draw("DRAW_RECT", "x0", "y0", "x1", "y1"))
	in.def("gd.circle", draw("DRAW_CIRCLE", "x", "y", "r"))
	in.def("gd.lineStyle", draw("SET_LINE", "lwd", "lty"))
	in.def("gd.mode", draw("SET_MODE", "mode"))
	poly := func(op string) BuiltinFunc {
		return func(in *Interp, c *CallCtx) (*Value, error) {
			a, err := c.Match("x", "y")
			if err != nil {
				return nil, err
			}
			if a[0] == nil || a[1] == nil || a[0].Len() != a[1].Len() {
				return nil, c.errorf("'x' and 'y' lengths differ")
			}
			dev, err := in.currentDevice()
			if err != nil {
				return nil, err
			}
			xs, ys := Floats(a[0]), Floats(a[1])
			args := append([]float64{float64(len(xs))}, xs...)
			in.visible = false
			_, err = in.send(dev, GraphicsCall{Op: op, Args: append(args, ys...)})
			return Null, err
		}
	}
	in.def("gd.polyline", poly("DRAW_POLYLINE"))
	in.def("gd.polygon", poly("DRAW_POLYGON"))
	color := func(op string) BuiltinFunc {
		return func(in *Interp, c *CallCtx) (*Value, error) {
			if len(c.Args) == 0 {
				return nil, c.errorf("argument \"col\" is missing, with no default")
			}
			col, err := colorValue(c, c.Args[0])
			if err != nil {
				return nil, err
			}
			dev, err := in.currentDevice()
			if err != nil {
				return nil, err
			}
			in.visible = false
			_, err = in.send(dev, GraphicsCall{Op: op, Args: []float64{col}})
			return Null, err
		}
	}
	in.def("gd.color", color("SET_COLOR"))
	in.def("gd.fill", color("SET_FILL"))
	in.def("gd.font", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("cex", "ps", "lineheight", "face", "family")
		if err != nil {
			return nil, err
		}
		args := []float64{1, 12, 1.2, 1}
		for i := 0; i < 4; i++ {
			if a[i] != nil {
				args[i], _ = asFloatScalar(a[i])
			}
		}
		family := ""
		if a[4] != nil {
			family, _ = asStringScalar(a[4])
		}
		dev, err := in.currentDevice()
		if err != nil {
			return nil, err
		}
		in.visible = false
		_, err = in.send(dev, GraphicsCall{Op: "SET_FONT", Args: args, Text: family})
		return Null, err
	})
	in.def("gd.text", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "y", "text", "rot", "hadj")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || a[1] == nil || a[2] == nil {
			return nil, c.errorf("'x', 'y' and 'text' are required")
		}
		x, _ := asFloatScalar(a[0])
		y, _ := asFloatScalar(a[1])
		rot, hadj := 0.0, 0.0
		if a[3] != nil {
			rot, _ = asFloatScalar(a[3])
		}
		if a[4] != nil {
			hadj, _ = asFloatScalar(a[4])
		}
		text, _ := asStringScalar(a[2])
		dev, err := in.currentDevice()
		if err != nil {
			return nil, err
		}
		in.visible = false
		_, err = in.send(dev, GraphicsCall{Op: "DRAW_TEXT", Args: []float64{x, y, rot, hadj}, Text: text})
		return Null, err
	})
	in.def("gd.raster", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("image", "x", "y", "width", "height")
		if err != nil {
			return nil, err
		}
		if a[0] == nil || a[0].Kind != RawKind {
			return nil, c.errorf("'image' must be a raw vector")
		}
		var args []float64
		for _, v := range a[1:] {
			f := 0.0
			if v != nil {
				f, _ = asFloatScalar(v)
			}
			args = append(args, f)
		}
		dev, err := in.currentDevice()
		if err != nil {
			return nil, err
		}
		in.visible = false
		_, err = in.send(dev, GraphicsCall{Op: "DRAW_RASTER", Args: args, Raster: a[0].Raw})
		return Null, err
	})
	query := func(op string, text bool) BuiltinFunc {
		return func(in *Interp, c *CallCtx) (*Value, error) {
			call := GraphicsCall{Op: op}
			if len(c.Args) > 0 {
				if text {
					call.Text, _ = asStringScalar(c.Args[0])
				} else {
					call.Args = Floats(c.Args[0])
				}
			}
			dev, err := in.currentDevice()
			if err != nil {
				return nil, err
			}
			return in.send(dev, call)
		}
	}
	in.def("gd.size", query("GET_SIZE", false))
	in.def("gd.strWidth", query("STRING_WIDTH", true))
	in.def("gd.metric", query("FONT_METRIC", false))
	in.def("gd.capture", query("CAPTURE", false))
	in.def("locator", query("LOCATOR", false))
	in.def("plot", func(in *Interp, c *CallCtx) (*Value, error) {
		a, err := c.Match("x", "y", "type", "col")
		if err != nil {
			return nil, err
		}
		if a[0] == nil {
			return nil, c.errorf("argument \"x\" is missing, with no default")
		}
		ys := Floats(a[0])
		xs := make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i + 1)
		}
		if a[1] != nil {
			xs, ys = ys, Floats(a[1])
			if len(xs) != len(ys) {
				return nil, c.errorf("'x' and 'y' lengths differ")
			}
		}
		kind := "p"
		if a[2] != nil {
			kind, _ = asStringScalar(a[2])
		}
		dev, err := in.currentDevice()
		if err != nil {
			return nil, err
		}
		if err := in.plotPoints(c, dev, xs, ys, kind, a[3]); err != nil {
			return nil, err
		}
		in.visible = false
		return Null, nil
	})
}

// plotPoints draws a scatter or line plot scaled into the device with a
// frame around the plotting region.
func (in *Interp) plotPoints(c *CallCtx, dev *device, xs, ys []float64, kind string, col *Value) error {
	if _, err := in.send(dev, GraphicsCall{Op: "NEW_PAGE", Args: []float64{dev.width, dev.height}}); err != nil {
		return err
	}
	if col != nil {
		cv, err := colorValue(c, col)
		if err != nil {
			return err
		}
		if _, err := in.send(dev, GraphicsCall{Op: "SET_COLOR", Args: []float64{cv}}); err != nil {
			return err
		}
	}
	bounds := func(vs []float64) (lo, hi float64) {
		lo, hi = math.Inf(1), math.Inf(-1)
		for _, v := range vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		if lo > hi {
			return 0, 1
		}
		if lo == hi {
			return lo - 1, hi + 1
		}
		return lo, hi
	}
	const margin = 0.1
	x0, x1 := bounds(xs)
	y0, y1 := bounds(ys)
	left, right := dev.width*margin, dev.width*(1-margin)
	top, bottom := dev.height*margin, dev.height*(1-margin)
	px := func(x float64) float64 { return left + (x-x0)/(x1-x0)*(right-left) }
	py := func(y float64) float64 { return bottom - (y-y0)/(y1-y0)*(bottom-top) }
	if _, err := in.send(dev, GraphicsCall{Op: "DRAW_RECT", Args: []float64{left, top, right, bottom}}); err != nil {
		return err
	}
	if kind == "l" || kind == "b" {
		args := []float64{float64(len(xs))}
		for _, x := range xs {
			args = append(args, px(x))
		}
		for _, y := range ys {
			args = append(args, py(y))
		}
		if _, err := in.send(dev, GraphicsCall{Op: "DRAW_POLYLINE", Args: args}); err != nil {
			return err
		}
	}
	if kind == "p" || kind == "b" {
		for i := range xs {
			if math.IsNaN(xs[i]) || math.IsNaN(ys[i]) {
				continue
			}
			if _, err := in.send(dev, GraphicsCall{Op: "DRAW_CIRCLE", Args: []float64{px(xs[i]), py(ys[i]), 2.5}}); err != nil {
				return err
			}
		}
	}
	return nil
}
