// Package protocol implements the binary formats used by mini-reqres.
//
// Two layers live here. The frame layer (frame.go) serializes RequestFrame and
// ResponseFrame into self-contained byte slices; this is what every transport carries.
// The stream layer (this file) is only needed by byte-stream transports such as TCP:
// it splits the stream into named messages using a fixed-size 10-byte header followed
// by the channel name and the body.
//
// Stream frame format:
//
//	0      3  4  5       7         10
//	┌──────┬──┬──┬───────┬─────────┬────────────┬──────────────┐
//	│magic │v │mt│nameLen│ bodyLen │ name ...   │  body ...    │
//	│ mrq  │01│  │uint16 │ uint32  │nameLen     │ bodyLen      │
//	└──────┴──┴──┴───────┴─────────┴────────────┴──────────────┘
package protocol

import (
	"encoding/binary"
	"io"
)

// Magic number bytes: "mrq" (mini-reqres).
// Rejects non-protocol connections early (e.g., an HTTP client hitting the wrong port).
const (
	MagicNumber byte = 0x6d // 'm'
	MagicByte2  byte = 0x72 // 'r'
	MagicByte3  byte = 0x71 // 'q'
	Version     byte = 0x01
	HeaderSize  int  = 11 // 3 (magic) + 1 (version) + 1 (msgType) + 2 (nameLen) + 4 (bodyLen)

	MaxNameLen = 255
)

// MsgType distinguishes named messages from keep-alive probes.
type MsgType byte

const (
	MsgTypeNamed     MsgType = 0 // Channel name + body
	MsgTypeHeartbeat MsgType = 1 // KeepAlive probe (no name, no body)
)

// Header is the fixed stream frame header.
type Header struct {
	MsgType MsgType
	NameLen uint16
	BodyLen uint32
}

// Encode writes one named message to w as a single Write call.
// Callers sharing a writer across goroutines must still serialize calls, since a
// short write would otherwise interleave with another frame.
func Encode(w io.Writer, channel string, body []byte) error {
	if len(channel) == 0 || len(channel) > MaxNameLen {
		return newError(ErrCodeBadFrame, "invalid channel name length: %d", len(channel))
	}
	if len(body) > MaxPayloadSize+ResponseHeaderSize+RequestHeaderSize {
		return newError(ErrCodeFrameTooLarge, "body of %d bytes", len(body))
	}
	return writeFrame(w, &Header{
		MsgType: MsgTypeNamed,
		NameLen: uint16(len(channel)),
		BodyLen: uint32(len(body)),
	}, channel, body)
}

// EncodeHeartbeat writes a keep-alive frame.
func EncodeHeartbeat(w io.Writer) error {
	return writeFrame(w, &Header{MsgType: MsgTypeHeartbeat}, "", nil)
}

func writeFrame(w io.Writer, h *Header, name string, body []byte) error {
	buf := make([]byte, HeaderSize+len(name)+len(body))
	buf[0], buf[1], buf[2] = MagicNumber, MagicByte2, MagicByte3
	buf[3] = Version
	buf[4] = byte(h.MsgType)
	binary.BigEndian.PutUint16(buf[5:7], h.NameLen)
	binary.BigEndian.PutUint32(buf[7:11], h.BodyLen)
	copy(buf[HeaderSize:], name)
	copy(buf[HeaderSize+len(name):], body)
	_, err := w.Write(buf)
	return err
}

// Decode reads one complete frame from r.
// Uses io.ReadFull so a frame is either read entirely or an error is returned.
func Decode(r io.Reader) (*Header, string, []byte, error) {
	headerBuf := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, headerBuf); err != nil {
		return nil, "", nil, err
	}

	if headerBuf[0] != MagicNumber || headerBuf[1] != MagicByte2 || headerBuf[2] != MagicByte3 {
		return nil, "", nil, newError(ErrCodeBadFrame, "invalid magic number: %x", headerBuf[0:3])
	}
	if headerBuf[3] != Version {
		return nil, "", nil, newError(ErrCodeInvalidVersion, "unsupported version: %d", headerBuf[3])
	}
	msgType := MsgType(headerBuf[4])
	if msgType != MsgTypeNamed && msgType != MsgTypeHeartbeat {
		return nil, "", nil, newError(ErrCodeBadFrame, "unsupported message type: %d", msgType)
	}

	h := &Header{
		MsgType: msgType,
		NameLen: binary.BigEndian.Uint16(headerBuf[5:7]),
		BodyLen: binary.BigEndian.Uint32(headerBuf[7:11]),
	}
	if h.NameLen > MaxNameLen {
		return nil, "", nil, newError(ErrCodeBadFrame, "channel name too long: %d", h.NameLen)
	}
	if h.BodyLen > MaxPayloadSize+ResponseHeaderSize+RequestHeaderSize {
		return nil, "", nil, newError(ErrCodeFrameTooLarge, "body of %d bytes", h.BodyLen)
	}

	rest := make([]byte, int(h.NameLen)+int(h.BodyLen))
	if _, err := io.ReadFull(r, rest); err != nil {
		return nil, "", nil, err
	}
	return h, string(rest[:h.NameLen]), rest[h.NameLen:], nil
}
