package codec

import (
	"encoding/binary"
	"fmt"
)

// A payload is a fixed typed part followed by caller-extensible trailing bytes:
//
//	┌──────────┬──────────────┬──────────────────┐
//	│ typedLen │ typed ...    │ extra ...        │
//	│ uint32   │ Codec.Encode │ written by extra │
//	└──────────┴──────────────┴──────────────────┘
//
// The length prefix lets a self-delimiting-unaware codec (JSON) coexist with extra bytes.

// EncodePayload encodes v with c and appends whatever extra writes.
// extra may be nil.
func EncodePayload(c Codec, v any, extra func(w *Writer)) ([]byte, error) {
	typed, err := c.Encode(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode %T: %w", v, err)
	}
	w := NewWriter(4 + len(typed))
	w.WriteBytes(typed)
	if extra != nil {
		extra(w)
	}
	return w.Bytes(), nil
}

// DecodePayload decodes the typed part of data into v and returns a Reader positioned
// at the extra bytes. An empty payload leaves v untouched and returns an empty Reader.
func DecodePayload(c Codec, data []byte, v any) (*Reader, error) {
	if len(data) == 0 {
		return NewReader(nil), nil
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("%w: payload of %d bytes has no length prefix", ErrShortBuffer, len(data))
	}
	n := binary.BigEndian.Uint32(data[:4])
	if uint64(n) > uint64(len(data)-4) {
		return nil, fmt.Errorf("%w: typed part of %d bytes, payload carries %d", ErrShortBuffer, n, len(data)-4)
	}
	if err := c.Decode(data[4:4+n], v); err != nil {
		return nil, fmt.Errorf("codec: decode %T: %w", v, err)
	}
	return NewReader(data[4+n:]), nil
}
