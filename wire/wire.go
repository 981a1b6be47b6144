// Package wire implements the big-endian, tag-prefixed binary stream shared by
// the server and its clients. Writers append to an in-memory buffer and never
// fail; readers latch the first decode problem as a *ProtocolDecodeError and
// return zero values from then on, so callers check Err once per message.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// NA sentinels. None of them is a valid payload value of its store type.
const (
	NAInt32     int32  = math.MinInt32
	naFloatBits uint64 = 0x7FF00000000007A2
	naStringLen int32  = -1
)

// MaxArrayLength bounds every length prefix accepted by a Reader.
const MaxArrayLength = 1 << 28

// NAFloat64 returns the numeric NA value.
func NAFloat64() float64 {
	return math.Float64frombits(naFloatBits)
}

// IsNAFloat64 reports whether f is the numeric NA (as opposed to an ordinary NaN).
func IsNAFloat64(f float64) bool {
	return math.IsNaN(f) && uint32(math.Float64bits(f)) == uint32(naFloatBits&0xFFFFFFFF)
}

// ProtocolDecodeError reports malformed wire data. The whole message that
// produced it must be treated as invalid.
type ProtocolDecodeError struct {
	Offset int
	Msg    string
}

func (e *ProtocolDecodeError) Error() string {
	return fmt.Sprintf("wire: malformed data at offset %d: %s", e.Offset, e.Msg)
}

// IsProtocolDecodeError reports whether err is, or wraps, a *ProtocolDecodeError.
func IsProtocolDecodeError(err error) bool {
	var pde *ProtocolDecodeError
	return errors.As(err, &pde)
}

// ---------------------------------------------------------------------------
// Writer
// ---------------------------------------------------------------------------

// Writer appends encoded values to a growing byte slice.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with an initial capacity hint.
func NewWriter(sizeHint int) *Writer {
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Bytes returns the encoded bytes. The slice aliases the writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) PutByte(b byte) {
	w.buf = append(w.buf, b)
}

// PutTag writes a signed tag byte; -1 marks an absent value.
func (w *Writer) PutTag(tag int8) {
	w.buf = append(w.buf, byte(tag))
}

func (w *Writer) PutBool(v bool) {
	if v {
		w.buf = append(w.buf, 1)
	} else {
		w.buf = append(w.buf, 0)
	}
}

func (w *Writer) PutInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

func (w *Writer) PutInt64(v int64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, uint64(v))
}

func (w *Writer) PutFloat64(v float64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, math.Float64bits(v))
}

// PutString writes a length-prefixed UTF-8 string.
func (w *Writer) PutString(s string) {
	w.PutInt32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// PutStringNA writes s, or the NA marker when na is set.
func (w *Writer) PutStringNA(s string, na bool) {
	if na {
		w.PutInt32(naStringLen)
		return
	}
	w.PutString(s)
}

func (w *Writer) PutBytes(b []byte) {
	w.PutInt32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *Writer) PutInt32s(vs []int32) {
	w.PutInt32(int32(len(vs)))
	for _, v := range vs {
		w.PutInt32(v)
	}
}

func (w *Writer) PutFloat64s(vs []float64) {
	w.PutInt32(int32(len(vs)))
	for _, v := range vs {
		w.PutFloat64(v)
	}
}

func (w *Writer) PutStrings(vs []string) {
	w.PutInt32(int32(len(vs)))
	for _, v := range vs {
		w.PutString(v)
	}
}

// ---------------------------------------------------------------------------
// Reader
// ---------------------------------------------------------------------------

// Reader decodes values from a byte slice.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Err returns the first decode error, if any.
func (r *Reader) Err() error { return r.err }

// Offset returns the current read position.
func (r *Reader) Offset() int { return r.off }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.off }

// Failf records a decode error at the current offset unless one is already set.
func (r *Reader) Failf(format string, args ...any) {
	if r.err == nil {
		r.err = &ProtocolDecodeError{Offset: r.off, Msg: fmt.Sprintf(format, args...)}
	}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.Remaining() < n {
		r.Failf("truncated: need %d bytes, have %d", n, r.Remaining())
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) GetByte() byte {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// GetTag reads a signed tag byte.
func (r *Reader) GetTag() int8 {
	return int8(r.GetByte())
}

func (r *Reader) GetBool() bool {
	switch b := r.GetByte(); b {
	case 0:
		return false
	case 1:
		return true
	default:
		r.Failf("invalid bool byte %#x", b)
		return false
	}
}

func (r *Reader) GetInt32() int32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return int32(binary.BigEndian.Uint32(b))
}

func (r *Reader) GetInt64() int64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

func (r *Reader) GetFloat64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// GetLength reads an array length prefix and validates it against the
// remaining input, assuming each element occupies at least elemSize bytes.
func (r *Reader) GetLength(elemSize int) int {
	n := r.GetInt32()
	if r.err != nil {
		return 0
	}
	if n < 0 || n > MaxArrayLength {
		r.Failf("invalid length prefix %d", n)
		return 0
	}
	if elemSize > 0 && int(n) > r.Remaining()/elemSize {
		r.Failf("length prefix %d exceeds remaining input", n)
		return 0
	}
	return int(n)
}

// GetString reads a string; an NA marker is a decode error here.
func (r *Reader) GetString() string {
	s, na := r.GetStringNA()
	if na {
		r.Failf("unexpected NA string")
	}
	return s
}

// GetStringNA reads a string that may be NA.
func (r *Reader) GetStringNA() (s string, na bool) {
	n := r.GetInt32()
	if r.err != nil {
		return "", false
	}
	if n == naStringLen {
		return "", true
	}
	if n < 0 {
		r.Failf("invalid string length %d", n)
		return "", false
	}
	b := r.take(int(n))
	if b == nil {
		return "", false
	}
	if !utf8.Valid(b) {
		r.Failf("string is not valid UTF-8")
		return "", false
	}
	return string(b), false
}

func (r *Reader) GetBytes() []byte {
	n := r.GetLength(1)
	b := r.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

func (r *Reader) GetInt32s() []int32 {
	n := r.GetLength(4)
	if r.err != nil {
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = r.GetInt32()
	}
	return out
}

func (r *Reader) GetFloat64s() []float64 {
	n := r.GetLength(8)
	if r.err != nil {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = r.GetFloat64()
	}
	return out
}

func (r *Reader) GetStrings() []string {
	n := r.GetLength(4)
	if r.err != nil {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = r.GetString()
	}
	return out
}

// ExpectEnd fails unless the whole input was consumed.
func (r *Reader) ExpectEnd() {
	if r.err == nil && r.Remaining() != 0 {
		r.Failf("%d trailing bytes", r.Remaining())
	}
}
