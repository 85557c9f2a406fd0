package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrBadRequest,
		ErrNotFound,
		ErrTooLarge,
		ErrBusy,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := DecodeBase([]byte(`{"type":"MESH","protocol_version":"1.0","id":"r7","cx":1}`))
	if err != nil {
		t.Fatalf("DecodeBase: %v", err)
	}
	if m.Type != TypeMesh || m.ProtocolVersion != Version || m.ID != "r7" {
		t.Fatalf("unexpected base: %+v", m)
	}
	if _, err := DecodeBase([]byte(`{"type":`)); err == nil {
		t.Fatalf("expected error for truncated json")
	}
}
