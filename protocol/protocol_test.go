package protocol

import (
	"bytes"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	body := []byte("hello world")

	var buf bytes.Buffer
	if err := Encode(&buf, "REQ", body); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	header, name, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if header.MsgType != MsgTypeNamed {
		t.Errorf("MsgType mismatch: got %d, want %d", header.MsgType, MsgTypeNamed)
	}
	if name != "REQ" {
		t.Errorf("Name mismatch: got %q, want %q", name, "REQ")
	}
	if header.BodyLen != uint32(len(body)) {
		t.Errorf("BodyLen mismatch: got %d, want %d", header.BodyLen, len(body))
	}
	if !bytes.Equal(decodedBody, body) {
		t.Errorf("Body mismatch: got %s, want %s", string(decodedBody), string(body))
	}
}

func TestDecodeInvalidMagic(t *testing.T) {
	invalidHeader := []byte{0x00, 0x00, 0x00, Version, byte(MsgTypeNamed), 0x00, 0x03, 0x00, 0x00, 0x00, 0x01}
	var buf bytes.Buffer
	buf.Write(invalidHeader)
	buf.Write([]byte("REQx"))

	_, _, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("Expected error for invalid magic number, but got nil")
	}
	pe, ok := IsProtocolError(err)
	if !ok || pe.Code != ErrCodeBadFrame {
		t.Errorf("expect ErrCodeBadFrame, got %v", err)
	}
}

func TestDecodeInvalidVersion(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{
		MagicNumber, MagicByte2, MagicByte3,
		0xFF, // wrong version
		byte(MsgTypeNamed),
		0, 0,
		0, 0, 0, 0,
	})

	_, _, _, err := Decode(&buf)
	if err == nil {
		t.Fatal("expected error for unsupported version")
	}
	pe, ok := IsProtocolError(err)
	if !ok || pe.Code != ErrCodeInvalidVersion {
		t.Errorf("expect ErrCodeInvalidVersion, got %v", err)
	}
}

func TestHeartbeat(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeHeartbeat(&buf); err != nil {
		t.Fatalf("EncodeHeartbeat failed: %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Fatalf("heartbeat should be header only, got %d bytes", buf.Len())
	}

	header, name, body, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if header.MsgType != MsgTypeHeartbeat {
		t.Errorf("MsgType mismatch: got %d, want %d", header.MsgType, MsgTypeHeartbeat)
	}
	if name != "" || len(body) != 0 {
		t.Errorf("expected empty heartbeat, got name %q and %d body bytes", name, len(body))
	}
}

func TestEncodeRejectsEmptyChannel(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, "", []byte("x")); err == nil {
		t.Fatal("expected error for empty channel name")
	}
}

func TestDecodeLargeBody(t *testing.T) {
	var buf bytes.Buffer

	largeBody := make([]byte, 1024*1024)
	for i := range largeBody {
		largeBody[i] = byte(i % 256)
	}

	if err := Encode(&buf, "RES", largeBody); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	_, _, decodedBody, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !bytes.Equal(decodedBody, largeBody) {
		t.Errorf("large body mismatch")
	}
}

func TestDecodeSequentialFrames(t *testing.T) {
	var buf bytes.Buffer
	Encode(&buf, "REQ", []byte("one"))
	EncodeHeartbeat(&buf)
	Encode(&buf, "RES", []byte("two"))

	want := []string{"REQ:one", ":", "RES:two"}
	for i, w := range want {
		_, name, body, err := Decode(&buf)
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if got := name + ":" + string(body); got != w {
			t.Errorf("frame %d: got %q, want %q", i, got, w)
		}
	}
}
