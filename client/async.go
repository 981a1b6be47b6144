package client

import (
	"context"

	"github.com/pkg/errors"

	"github.com/chazu/rjs/api"
	"github.com/chazu/rjs/item"
)

// Ping checks that the server and its engine are alive.
func (c *Client) Ping(ctx context.Context) error {
	env, err := c.async(ctx, item.PingEnvelope())
	if err != nil {
		return err
	}
	return statusOf(env)
}

// Cancel interrupts the running evaluation.
func (c *Client) Cancel(ctx context.Context) error {
	env, err := c.async(ctx, item.CtrlEnvelope(item.CtrlCancel))
	if err != nil {
		return err
	}
	return statusOf(env)
}

// RequestHotMode asks the engine to enter the hot loop; the handler's Hot
// method runs once it does.
func (c *Client) RequestHotMode(ctx context.Context) error {
	env, err := c.async(ctx, item.CtrlEnvelope(item.CtrlHotMode))
	if err != nil {
		return err
	}
	return statusOf(env)
}

// Upload stores data as path in the server's work directory.
func (c *Client) Upload(ctx context.Context, path string, data []byte) error {
	env, err := c.async(ctx, item.FileEnvelope(&item.FileTransfer{Direction: item.Upload, Path: path, Data: data}))
	if err != nil {
		return err
	}
	return statusOf(env)
}

// Download fetches path from the server's work directory.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	env, err := c.async(ctx, item.FileEnvelope(&item.FileTransfer{Direction: item.Download, Path: path}))
	if err != nil {
		return nil, err
	}
	if env.Kind == item.KindFile {
		return env.File.Data, nil
	}
	if err := statusOf(env); err != nil {
		return nil, err
	}
	return nil, errors.Errorf("download %s: unexpected %s envelope", path, env.Kind)
}

func (c *Client) async(ctx context.Context, env *item.Envelope) (*item.Envelope, error) {
	if c.disconnected.Load() {
		return nil, ErrDisconnected
	}
	resp, err := c.rpc.RunAsync(ctx, api.NewCallRequest(c.token, env))
	if err != nil {
		return nil, errors.Wrap(err, env.Kind.String())
	}
	return resp.Envelope(c.slot)
}

func statusOf(env *item.Envelope) error {
	if env.Kind != item.KindStatus {
		return errors.Errorf("unexpected %s envelope", env.Kind)
	}
	if env.Status.IsOK() {
		return nil
	}
	return statusError(env.Status)
}
