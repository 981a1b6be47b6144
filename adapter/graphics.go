package adapter

import (
	"github.com/pkg/errors"

	"github.com/chazu/rjs/engine"
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/rdata"
)

// Graphics forwards a drawing operation of the engine to the slot 0
// client. Metric queries block until the client answers.
func (c *Context) Graphics(call engine.GraphicsCall) (*engine.Value, error) {
	code, ok := item.GraphicsCodeByName(call.Op)
	if !ok {
		return nil, errors.Errorf("unknown graphics operation %q", call.Op)
	}
	if c.x.HotMode() {
		if code.Answered() {
			return nil, errors.Wrap(ErrHotMode, call.Op)
		}
		return nil, nil
	}
	g := item.NewGraphics(call.Device, code, call.Args...)
	if call.Text != "" {
		g.WithText(call.Text)
	}
	if call.Raster != nil {
		g.WithRaster(call.Raster)
	}
	ans := c.x.FromEngine(g)
	if !code.Answered() {
		return nil, nil
	}
	if st := ans.Status(); !st.IsOK() {
		return nil, errors.Errorf("%s: %s", call.Op, st.Message)
	}
	return metricValue(ans.Value()), nil
}

// metricValue converts the answer of a metric query.
func metricValue(obj rdata.Object) *engine.Value {
	v, ok := obj.(*rdata.Vector)
	if !ok || v.Data == nil || v.Data.StructOnly() {
		return engine.Null
	}
	return nativeStore(v.Data)
}

// ExecGraphicsOp runs a device request of a client.
func (c *Context) ExecGraphicsOp(op *item.GraphicsOp) item.Item {
	var err error
	switch op.Code() {
	case item.OpClose:
		err = c.in.CloseDevice(op.Device())
	case item.OpResize:
		args := op.Args()
		if len(args) < 2 {
			err = errors.New("resize needs width and height")
			break
		}
		err = c.in.ResizeDevice(op.Device(), args[0], args[1])
	case item.OpRedraw:
		err = c.in.RedrawDevice(op.Device())
	default:
		err = errors.Errorf("unknown graphics op %#x", byte(op.Code()))
	}
	st := item.OK()
	if err != nil {
		log.Warningf("graphics op on device %d: %s", op.Device(), err.Error())
		st = item.NewStatus(item.SeverityError, item.CodeGraphicsFailed, err.Error())
	}
	if err := op.SetAnswer(item.StatusAnswer(st)); err != nil {
		log.Errorf("cannot answer graphics op: %s", err.Error())
	}
	return op
}
