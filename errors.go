package http2

import (
	"errors"
	"fmt"
)

// ErrorCode is the 32-bit error code carried by RST_STREAM and GOAWAY.
//
// https://tools.ietf.org/html/rfc7540#section-11.4
type ErrorCode uint32

const (
	NoError            ErrorCode = 0x0
	ProtocolError      ErrorCode = 0x1
	InternalError      ErrorCode = 0x2
	FlowControlError   ErrorCode = 0x3
	SettingsTimeout    ErrorCode = 0x4
	StreamClosedError  ErrorCode = 0x5
	FrameSizeError     ErrorCode = 0x6
	RefusedStreamError ErrorCode = 0x7
	StreamCanceled     ErrorCode = 0x8
	CompressionError   ErrorCode = 0x9
	ConnectError       ErrorCode = 0xa
	EnhanceYourCalm    ErrorCode = 0xb
	InadequateSecurity ErrorCode = 0xc
	HTTP11Required     ErrorCode = 0xd
)

var errorCodeNames = [...]string{
	"NO_ERROR", "PROTOCOL_ERROR", "INTERNAL_ERROR", "FLOW_CONTROL_ERROR",
	"SETTINGS_TIMEOUT", "STREAM_CLOSED", "FRAME_SIZE_ERROR",
	"REFUSED_STREAM", "CANCEL", "COMPRESSION_ERROR", "CONNECT_ERROR",
	"ENHANCE_YOUR_CALM", "INADEQUATE_SECURITY", "HTTP_1_1_REQUIRED",
}

func (e ErrorCode) String() string {
	if int(e) < len(errorCodeNames) {
		return errorCodeNames[e]
	}
	return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint32(e))
}

// Initiator identifies which side caused an Http2Error.
type Initiator uint8

const (
	// InitiatorLocal means this side detected peer misbehavior and is
	// reacting to it (sending GOAWAY/RST_STREAM).
	InitiatorLocal Initiator = iota
	// InitiatorRemote means the peer reported the error to us (received
	// GOAWAY/RST_STREAM, or a transport failure while reading).
	InitiatorRemote
	// InitiatorUser means the caller's own usage triggered this (send on a
	// closed stream, dropped stream handle, oversized header list).
	InitiatorUser
)

func (i Initiator) String() string {
	switch i {
	case InitiatorLocal:
		return "local"
	case InitiatorRemote:
		return "remote"
	case InitiatorUser:
		return "user"
	default:
		return "unknown"
	}
}

// Http2Error is the engine's structured error type. It keeps which side
// caused the failure and, for stream-scoped errors, the affected stream id —
// the "richer" representation this engine's design favors over a flat
// local/remote split, because both pieces of information are needed to
// report a useful error back to the caller.
type Http2Error struct {
	Code      ErrorCode
	Initiator Initiator
	// StreamID is non-zero for a stream error; zero means connection-scoped.
	StreamID uint32
	Message  string
}

func (e *Http2Error) Error() string {
	if e.StreamID != 0 {
		return fmt.Sprintf("http2: stream %d: %s (%s, %s)", e.StreamID, e.Code, e.Initiator, e.Message)
	}
	return fmt.Sprintf("http2: connection: %s (%s, %s)", e.Code, e.Initiator, e.Message)
}

// IsConnError reports whether e terminates the whole connection.
func (e *Http2Error) IsConnError() bool {
	return e.StreamID == 0
}

// NewConnError builds a connection-scoped error. initiator is typically
// InitiatorLocal (we detected the violation) or InitiatorRemote (we received
// a GOAWAY).
func NewConnError(initiator Initiator, code ErrorCode, message string) *Http2Error {
	return &Http2Error{Code: code, Initiator: initiator, Message: message}
}

// NewStreamError builds a stream-scoped error for streamID.
func NewStreamError(initiator Initiator, streamID uint32, code ErrorCode, message string) *Http2Error {
	return &Http2Error{Code: code, Initiator: initiator, StreamID: streamID, Message: message}
}

// NewError builds a bare connection-scoped error, matching the signature
// frame types historically call when constructing an error from their own
// carried ErrorCode (e.g. RstStream.Error()).
func NewError(code ErrorCode, message string) error {
	return NewConnError(InitiatorLocal, code, message)
}

var (
	// ErrMissingBytes is returned when a frame's payload is shorter than its
	// fixed-size fields require.
	ErrMissingBytes = errors.New("http2: missing bytes in frame payload")
	// ErrPayloadExceeds is returned when a frame's declared length exceeds
	// the negotiated SETTINGS_MAX_FRAME_SIZE.
	ErrPayloadExceeds = errors.New("http2: payload exceeds max frame size")
	// ErrUnknowFrameType is returned for a frame type byte above the last
	// known frame type.
	ErrUnknowFrameType = errors.New("http2: unknown frame type")
	// ErrUnexpectedSize is returned by the HPACK decoder when a header
	// block ends mid-field; the caller should buffer and retry once more
	// bytes (a CONTINUATION) arrive.
	ErrUnexpectedSize = errors.New("http2: unexpected end of header block")
	// ErrBitOverflow is returned by the HPACK integer decoder when an
	// encoded integer does not fit in 64 bits.
	ErrBitOverflow = errors.New("http2: hpack integer overflow")
	// ErrInvalidState is returned when a caller operation is not valid for
	// the stream's current state.
	ErrInvalidState = errors.New("http2: invalid operation for stream state")
	// ErrClosedConn is returned by Conn/StreamHandle operations once the
	// connection has latched a terminal error.
	ErrClosedConn = errors.New("http2: connection closed")
)
