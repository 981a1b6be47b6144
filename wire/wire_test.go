package wire

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestScalarRoundTrip(t *testing.T) {
	w := NewWriter(64)
	w.PutByte(0xAB)
	w.PutTag(-1)
	w.PutBool(true)
	w.PutInt32(math.MinInt32 + 1)
	w.PutInt64(-1 << 40)
	w.PutFloat64(math.Pi)
	w.PutFloat64(NAFloat64())
	w.PutFloat64(math.NaN())
	w.PutString("héllo")
	w.PutStringNA("", true)

	r := NewReader(w.Bytes())
	if got := r.GetByte(); got != 0xAB {
		t.Errorf("byte: got %#x, want 0xab", got)
	}
	if got := r.GetTag(); got != -1 {
		t.Errorf("tag: got %d, want -1", got)
	}
	if !r.GetBool() {
		t.Error("bool: got false, want true")
	}
	if got := r.GetInt32(); got != math.MinInt32+1 {
		t.Errorf("int32: got %d", got)
	}
	if got := r.GetInt64(); got != -1<<40 {
		t.Errorf("int64: got %d", got)
	}
	if got := r.GetFloat64(); got != math.Pi {
		t.Errorf("float64: got %v, want %v", got, math.Pi)
	}
	if got := r.GetFloat64(); !IsNAFloat64(got) {
		t.Errorf("NA float did not survive: bits %#x", math.Float64bits(got))
	}
	if got := r.GetFloat64(); !math.IsNaN(got) || IsNAFloat64(got) {
		t.Errorf("plain NaN decoded as %v (NA=%v)", got, IsNAFloat64(got))
	}
	if got := r.GetString(); got != "héllo" {
		t.Errorf("string: got %q", got)
	}
	if _, na := r.GetStringNA(); !na {
		t.Error("expected NA string")
	}
	r.ExpectEnd()
	if err := r.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	ints := []int32{1, NAInt32, -7}
	dbls := []float64{0.5, NAFloat64(), math.Inf(-1)}
	strs := []string{"a", "", "ç"}
	raw := []byte{0, 1, 255}

	w := NewWriter(0)
	w.PutInt32s(ints)
	w.PutFloat64s(dbls)
	w.PutStrings(strs)
	w.PutBytes(raw)

	r := NewReader(w.Bytes())
	gotInts := r.GetInt32s()
	gotDbls := r.GetFloat64s()
	gotStrs := r.GetStrings()
	gotRaw := r.GetBytes()
	if err := r.Err(); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(ints, gotInts); diff != "" {
		t.Errorf("ints mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(strs, gotStrs); diff != "" {
		t.Errorf("strings mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(raw, gotRaw); diff != "" {
		t.Errorf("raw mismatch (-want +got):\n%s", diff)
	}
	for i := range dbls {
		if math.Float64bits(dbls[i]) != math.Float64bits(gotDbls[i]) {
			t.Errorf("double[%d]: bits %#x, want %#x", i, math.Float64bits(gotDbls[i]), math.Float64bits(dbls[i]))
		}
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader)
	}{
		{"truncated int", []byte{0, 1}, func(r *Reader) { r.GetInt32() }},
		{"negative length", []byte{0xFF, 0xFF, 0xFF, 0xFE}, func(r *Reader) { r.GetInt32s() }},
		{"length beyond input", []byte{0, 0, 0, 9, 1}, func(r *Reader) { r.GetBytes() }},
		{"bad bool", []byte{7}, func(r *Reader) { r.GetBool() }},
		{"invalid utf8", []byte{0, 0, 0, 1, 0xFF}, func(r *Reader) { r.GetString() }},
		{"NA where string required", []byte{0xFF, 0xFF, 0xFF, 0xFF}, func(r *Reader) { r.GetString() }},
		{"trailing bytes", []byte{1}, func(r *Reader) { r.ExpectEnd() }},
	}
	for _, tc := range tests {
		r := NewReader(tc.data)
		tc.read(r)
		if !IsProtocolDecodeError(r.Err()) {
			t.Errorf("%s: got %v, want ProtocolDecodeError", tc.name, r.Err())
		}
	}
}

func TestReaderErrorIsSticky(t *testing.T) {
	r := NewReader([]byte{0})
	r.GetInt64()
	first := r.Err()
	if first == nil {
		t.Fatal("expected error")
	}
	if got := r.GetByte(); got != 0 {
		t.Errorf("read after error returned %d", got)
	}
	if r.Err() != first {
		t.Error("first error was replaced")
	}
}

func TestIsNAFloat64(t *testing.T) {
	for _, tc := range []struct {
		name string
		bits uint64
		want bool
	}{
		{"NA", 0x7FF00000000007A2, true},
		{"quiet NA", 0x7FF80000000007A2, true},
		{"NaN", math.Float64bits(math.NaN()), false},
		{"finite with NA low word", 0x40000000000007A2, false},
	} {
		if got := IsNAFloat64(math.Float64frombits(tc.bits)); got != tc.want {
			t.Errorf("%s: IsNAFloat64 = %v, want %v", tc.name, got, tc.want)
		}
	}
}
