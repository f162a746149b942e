package codec

import (
	"encoding"
	"fmt"
)

// BinaryCodec delegates to the value's own binary form.
// Encode requires encoding.BinaryMarshaler, Decode requires a pointer implementing
// encoding.BinaryUnmarshaler. Message types usually implement both with Writer and Reader.
type BinaryCodec struct{}

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	m, ok := v.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("BinaryCodec: %T does not implement encoding.BinaryMarshaler", v)
	}
	return m.MarshalBinary()
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	u, ok := v.(encoding.BinaryUnmarshaler)
	if !ok {
		return fmt.Errorf("BinaryCodec: %T does not implement encoding.BinaryUnmarshaler", v)
	}
	return u.UnmarshalBinary(data)
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}
