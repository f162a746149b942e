// Package message defines the envelopes exchanged between two request/response peers.
//
// A RequestFrame travels on the request channel, a ResponseFrame on the response channel.
// Both carry an opaque payload produced by the codec layer; the frames themselves are
// serialized by the protocol package.
package message

import "fmt"

// AckCode is the result code carried by every response.
type AckCode uint8

const (
	AckSuccess       AckCode = 0 // Handler produced a response
	AckUnimplemented AckCode = 1 // No handler registered for the request type (local or remote)
	AckTimeout       AckCode = 2 // No response observed within the window, or the engine was drained
	AckError         AckCode = 3 // Handler ran but reported a business failure
	AckRateLimited   AckCode = 4 // Rejected by inbound rate limiting
	AckBadRequest    AckCode = 5 // Response payload could not be decoded
)

func (c AckCode) String() string {
	switch c {
	case AckSuccess:
		return "Success"
	case AckUnimplemented:
		return "Unimplemented"
	case AckTimeout:
		return "Timeout"
	case AckError:
		return "Error"
	case AckRateLimited:
		return "RateLimited"
	case AckBadRequest:
		return "BadRequest"
	}
	return fmt.Sprintf("AckCode(%d)", uint8(c))
}

// RequestFrame is the envelope of a single request.
//
// RequestType selects the registered handler on the receiving engine, RequestID is
// allocated by the sending engine and echoed back in the matching ResponseFrame.
type RequestFrame struct {
	RequestType uint16
	RequestID   uint32
	Payload     []byte // Encoded typed request followed by optional extra bytes
}

// ResponseFrame is the envelope of a single response.
type ResponseFrame struct {
	RequestID uint32
	AckCode   AckCode
	Payload   []byte // Empty for Unimplemented and Timeout
}

// EmptyMessage is the message used when a request or response carries no typed body.
type EmptyMessage struct{}

func (EmptyMessage) MarshalBinary() ([]byte, error) {
	return nil, nil
}

func (*EmptyMessage) UnmarshalBinary([]byte) error {
	return nil
}
