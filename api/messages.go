// Package api defines the messages and connect bindings of the console
// service. Messages are encoded with the wire format and carried by the
// "rjs" codec.
package api

import (
	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/wire"
)

// StartRequest starts the engine. Profile is evaluated before the main loop
// after the configured profile.
type StartRequest struct {
	Profile string
}

type StartResponse struct {
	Status *item.Status
}

// ConnectRequest binds the caller to a slot.
type ConnectRequest struct {
	Slot int32
	Name string
}

// ConnectResponse carries the client token every further call presents.
type ConnectResponse struct {
	Token string
}

type DisconnectRequest struct {
	Token string
}

type DisconnectResponse struct{}

// CallRequest carries one wire-encoded item.Envelope for the slot of Token.
type CallRequest struct {
	Token   string
	Payload []byte
}

// CallResponse carries the server's envelope.
type CallResponse struct {
	Payload []byte
}

// NewCallRequest encodes env for the client identified by token.
func NewCallRequest(token string, env *item.Envelope) *CallRequest {
	return &CallRequest{Token: token, Payload: item.MarshalEnvelope(env)}
}

// Envelope decodes the payload, binding batch items to slot.
func (m *CallRequest) Envelope(slot int) (*item.Envelope, error) {
	return item.UnmarshalEnvelope(m.Payload, slot)
}

// NewCallResponse encodes env.
func NewCallResponse(env *item.Envelope) *CallResponse {
	return &CallResponse{Payload: item.MarshalEnvelope(env)}
}

// Envelope decodes the payload, binding batch items to slot.
func (m *CallResponse) Envelope(slot int) (*item.Envelope, error) {
	return item.UnmarshalEnvelope(m.Payload, slot)
}

// ---------------------------------------------------------------------------
// Binary encoding
// ---------------------------------------------------------------------------

func (m *StartRequest) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(16 + len(m.Profile))
	w.PutString(m.Profile)
	return w.Bytes(), nil
}

func (m *StartRequest) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) { m.Profile = r.GetString() })
}

func (m *StartResponse) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(32)
	w.PutBool(m.Status != nil)
	if m.Status != nil {
		item.WriteStatus(w, m.Status)
	}
	return w.Bytes(), nil
}

func (m *StartResponse) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) {
		if r.GetBool() {
			m.Status = item.ReadStatus(r)
		}
	})
}

func (m *ConnectRequest) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(16 + len(m.Name))
	w.PutInt32(m.Slot)
	w.PutString(m.Name)
	return w.Bytes(), nil
}

func (m *ConnectRequest) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) {
		m.Slot = r.GetInt32()
		m.Name = r.GetString()
	})
}

func (m *ConnectResponse) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(48)
	w.PutString(m.Token)
	return w.Bytes(), nil
}

func (m *ConnectResponse) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) { m.Token = r.GetString() })
}

func (m *DisconnectRequest) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(48)
	w.PutString(m.Token)
	return w.Bytes(), nil
}

func (m *DisconnectRequest) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) { m.Token = r.GetString() })
}

func (m *DisconnectResponse) MarshalBinary() ([]byte, error) { return nil, nil }

func (m *DisconnectResponse) UnmarshalBinary(data []byte) error {
	return decode(data, func(*wire.Reader) {})
}

func (m *CallRequest) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(48 + len(m.Payload))
	w.PutString(m.Token)
	w.PutBytes(m.Payload)
	return w.Bytes(), nil
}

func (m *CallRequest) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) {
		m.Token = r.GetString()
		m.Payload = r.GetBytes()
	})
}

func (m *CallResponse) MarshalBinary() ([]byte, error) {
	w := wire.NewWriter(8 + len(m.Payload))
	w.PutBytes(m.Payload)
	return w.Bytes(), nil
}

func (m *CallResponse) UnmarshalBinary(data []byte) error {
	return decode(data, func(r *wire.Reader) { m.Payload = r.GetBytes() })
}

func decode(data []byte, read func(*wire.Reader)) error {
	r := wire.NewReader(data)
	read(r)
	r.ExpectEnd()
	return r.Err()
}
