package api

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/rjs/item"
	"github.com/chazu/rjs/wire"
)

func TestCodecMessages(t *testing.T) {
	var codec Codec
	tests := []struct {
		name string
		in   any
		out  any
	}{
		{"start", &StartRequest{Profile: "x <- 1"}, &StartRequest{}},
		{"start status", &StartResponse{Status: item.Stopped(item.SeverityInfo)}, &StartResponse{}},
		{"start ok", &StartResponse{}, &StartResponse{}},
		{"connect", &ConnectRequest{Slot: 1, Name: "console"}, &ConnectRequest{}},
		{"token", &ConnectResponse{Token: "abc"}, &ConnectResponse{}},
		{"disconnect", &DisconnectRequest{Token: "abc"}, &DisconnectRequest{}},
		{"call", &CallRequest{Token: "abc", Payload: []byte{1, 2, 3}}, &CallRequest{}},
		{"call response", &CallResponse{Payload: []byte{4}}, &CallResponse{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := codec.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if err := codec.Unmarshal(data, tt.out); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			if diff := cmp.Diff(tt.in, tt.out); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCodecRejectsForeignTypes(t *testing.T) {
	var codec Codec
	if _, err := codec.Marshal("text"); err == nil {
		t.Error("Marshal(string) succeeded")
	}
	var s string
	if err := codec.Unmarshal(nil, &s); err == nil {
		t.Error("Unmarshal(*string) succeeded")
	}
}

func TestCodecTrailingBytes(t *testing.T) {
	data, _ := (&ConnectResponse{Token: "abc"}).MarshalBinary()
	data = append(data, 0)
	err := Codec{}.Unmarshal(data, &ConnectResponse{})
	if err == nil {
		t.Fatal("expected error for trailing bytes")
	}
	if !wire.IsProtocolDecodeError(err) {
		t.Errorf("error %v is not a protocol decode error", err)
	}
}

func TestCallEnvelope(t *testing.T) {
	req := NewCallRequest("tok", item.BatchEnvelope([]item.Item{
		item.NewEvalVoid(1, "x <- 1"),
	}, false))
	env, err := req.Envelope(1)
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Kind != item.KindBatch || len(env.Items) != 1 {
		t.Fatalf("got %v with %d items", env.Kind, len(env.Items))
	}
	if got := env.Items[0].Slot(); got != 1 {
		t.Errorf("slot = %d, want 1", got)
	}

	resp := NewCallResponse(item.StatusEnvelope(item.Cancelled()))
	env, err = resp.Envelope(1)
	if err != nil {
		t.Fatalf("Envelope: %v", err)
	}
	if env.Status.Severity != item.SeverityCancel {
		t.Errorf("status = %v, want cancel", env.Status)
	}

	bad := &CallRequest{Token: "tok", Payload: []byte{99}}
	if _, err := bad.Envelope(1); err == nil {
		t.Error("decoding an unknown envelope kind succeeded")
	}
}
