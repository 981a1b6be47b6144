package api

import (
	"encoding"

	"github.com/pkg/errors"
)

// CodecName is the connect codec name; requests travel as
// "application/rjs".
const CodecName = "rjs"

// Codec marshals messages that implement encoding.BinaryMarshaler and
// encoding.BinaryUnmarshaler.
type Codec struct{}

func (Codec) Name() string { return CodecName }

func (Codec) Marshal(msg any) ([]byte, error) {
	m, ok := msg.(encoding.BinaryMarshaler)
	if !ok {
		return nil, errors.Errorf("rjs codec: cannot marshal %T", msg)
	}
	return m.MarshalBinary()
}

func (Codec) Unmarshal(data []byte, msg any) error {
	m, ok := msg.(encoding.BinaryUnmarshaler)
	if !ok {
		return errors.Errorf("rjs codec: cannot unmarshal into %T", msg)
	}
	return errors.Wrapf(m.UnmarshalBinary(data), "rjs codec: %T", msg)
}
