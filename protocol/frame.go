package protocol

import (
	"encoding/binary"

	"mini-reqres/message"
)

// Frame markers. Requests and responses travel on different channels, but a distinct
// marker per kind lets a decoder reject a frame delivered on the wrong channel.
const (
	RequestMagic0  byte = 0x72 // 'r'
	RequestMagic1  byte = 0x71 // 'q'
	ResponseMagic0 byte = 0x72 // 'r'
	ResponseMagic1 byte = 0x73 // 's'

	FrameVersion byte = 0x01

	MaxPayloadSize = 16 * 1024 * 1024

	// magic(2) + version(1) + requestType(2) + requestID(4) + payloadLen(4)
	RequestHeaderSize = 13
	// magic(2) + version(1) + requestID(4) + ackCode(1) + payloadLen(4)
	ResponseHeaderSize = 12
)

// EncodeRequest serializes a request frame:
//
//	0    2  3      5          9          13
//	┌────┬──┬──────┬──────────┬──────────┬──────────────┐
//	│ rq │v │ type │    id    │  length  │ payload ...  │
//	└────┴──┴──────┴──────────┴──────────┴──────────────┘
func EncodeRequest(f *message.RequestFrame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, newError(ErrCodeFrameTooLarge, "payload of %d bytes", len(f.Payload))
	}
	buf := make([]byte, RequestHeaderSize+len(f.Payload))
	buf[0], buf[1], buf[2] = RequestMagic0, RequestMagic1, FrameVersion
	binary.BigEndian.PutUint16(buf[3:5], f.RequestType)
	binary.BigEndian.PutUint32(buf[5:9], f.RequestID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(f.Payload)))
	copy(buf[RequestHeaderSize:], f.Payload)
	return buf, nil
}

// DecodeRequest parses a request frame produced by EncodeRequest.
// The returned payload is a copy; data may be reused by the caller.
func DecodeRequest(data []byte) (*message.RequestFrame, error) {
	if len(data) < RequestHeaderSize {
		return nil, newError(ErrCodeBadFrame, "request frame too short: %d bytes", len(data))
	}
	if data[0] != RequestMagic0 || data[1] != RequestMagic1 {
		return nil, newError(ErrCodeBadFrame, "invalid request marker: %x", data[0:2])
	}
	if data[2] != FrameVersion {
		return nil, newError(ErrCodeInvalidVersion, "unsupported version: %d", data[2])
	}
	payload, err := readPayload(data[9:13], data[RequestHeaderSize:])
	if err != nil {
		return nil, err
	}
	return &message.RequestFrame{
		RequestType: binary.BigEndian.Uint16(data[3:5]),
		RequestID:   binary.BigEndian.Uint32(data[5:9]),
		Payload:     payload,
	}, nil
}

// EncodeResponse serializes a response frame:
//
//	0    2  3          7   8          12
//	┌────┬──┬──────────┬───┬──────────┬──────────────┐
//	│ rs │v │    id    │ack│  length  │ payload ...  │
//	└────┴──┴──────────┴───┴──────────┴──────────────┘
func EncodeResponse(f *message.ResponseFrame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, newError(ErrCodeFrameTooLarge, "payload of %d bytes", len(f.Payload))
	}
	buf := make([]byte, ResponseHeaderSize+len(f.Payload))
	buf[0], buf[1], buf[2] = ResponseMagic0, ResponseMagic1, FrameVersion
	binary.BigEndian.PutUint32(buf[3:7], f.RequestID)
	buf[7] = byte(f.AckCode)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(f.Payload)))
	copy(buf[ResponseHeaderSize:], f.Payload)
	return buf, nil
}

// DecodeResponse parses a response frame produced by EncodeResponse.
func DecodeResponse(data []byte) (*message.ResponseFrame, error) {
	if len(data) < ResponseHeaderSize {
		return nil, newError(ErrCodeBadFrame, "response frame too short: %d bytes", len(data))
	}
	if data[0] != ResponseMagic0 || data[1] != ResponseMagic1 {
		return nil, newError(ErrCodeBadFrame, "invalid response marker: %x", data[0:2])
	}
	if data[2] != FrameVersion {
		return nil, newError(ErrCodeInvalidVersion, "unsupported version: %d", data[2])
	}
	payload, err := readPayload(data[8:12], data[ResponseHeaderSize:])
	if err != nil {
		return nil, err
	}
	return &message.ResponseFrame{
		RequestID: binary.BigEndian.Uint32(data[3:7]),
		AckCode:   message.AckCode(data[7]),
		Payload:   payload,
	}, nil
}

func readPayload(lenField, rest []byte) ([]byte, error) {
	n := binary.BigEndian.Uint32(lenField)
	if n > MaxPayloadSize {
		return nil, newError(ErrCodeFrameTooLarge, "payload of %d bytes", n)
	}
	if int(n) != len(rest) {
		return nil, newError(ErrCodeBadFrame, "payload length %d, frame carries %d", n, len(rest))
	}
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	copy(payload, rest)
	return payload, nil
}
