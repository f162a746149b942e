// Package codec serializes the typed part of request and response payloads.
//
// The correlation engine never looks inside a payload; it asks the configured Codec to
// turn a typed value into bytes and back. Both peers must use the same codec.
package codec

import (
	"fmt"
	"strings"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
)

func (t CodecType) String() string {
	if t == CodecTypeBinary {
		return "binary"
	}
	return "json"
}

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Binary
}

func GetCodec(codecType CodecType) Codec {
	if codecType == CodecTypeBinary {
		return &BinaryCodec{}
	}

	return &JSONCodec{}
}

// ParseCodecType maps a configuration string ("json", "binary") to a CodecType.
func ParseCodecType(s string) (CodecType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return CodecTypeJSON, nil
	case "binary", "bin":
		return CodecTypeBinary, nil
	}
	return 0, fmt.Errorf("codec: unknown codec type %q", s)
}
