package http2

import (
	"fmt"
	"sync"

	"github.com/kressh/h2proto/http2utils"
)

const FrameGoAway FrameType = 0x7

// maxGoAwayDebugData bounds the opaque debug payload GOAWAY will send or
// accept, so a peer cannot force an unbounded allocation through it.
const maxGoAwayDebugData = 256

var _ Frame = &GoAway{}

var goAwayPool = sync.Pool{
	New: func() interface{} {
		return &GoAway{}
	},
}

func acquireGoAway() *GoAway {
	return goAwayPool.Get().(*GoAway)
}

func releaseGoAway(ga *GoAway) {
	ga.Reset()
	goAwayPool.Put(ga)
}

// GoAway ...
//
// https://tools.ietf.org/html/rfc7540#section-6.8
type GoAway struct {
	stream uint32
	code   ErrorCode
	data   []byte // additional data
}

func (ga *GoAway) Error() string {
	return fmt.Sprintf("stream=%d, code=%s, data=%s", ga.stream, ga.code, ga.data)
}

func (ga *GoAway) Type() FrameType {
	return FrameGoAway
}

// Reset ...
func (ga *GoAway) Reset() {
	ga.stream = 0
	ga.code = 0
	ga.data = ga.data[:0]
}

// CopyTo ...
func (ga *GoAway) CopyTo(other *GoAway) {
	other.stream = ga.stream
	other.code = ga.code
	other.data = append(other.data[:0], ga.data...)
}

func (ga *GoAway) Copy() *GoAway {
	other := new(GoAway)
	other.stream = ga.stream
	other.code = ga.code
	other.data = append(other.data[:0], ga.data...)
	return other
}

// Code ...
func (ga *GoAway) Code() ErrorCode {
	return ga.code
}

// SetCode ...
func (ga *GoAway) SetCode(code ErrorCode) {
	ga.code = code
}

// Stream ...
func (ga *GoAway) Stream() uint32 {
	return ga.stream
}

// SetStream ...
func (ga *GoAway) SetStream(stream uint32) {
	ga.stream = stream & (1<<31 - 1)
}

// Data ...
func (ga *GoAway) Data() []byte {
	return ga.data
}

// SetData ...
func (ga *GoAway) SetData(b []byte) {
	if len(b) > maxGoAwayDebugData {
		b = b[:maxGoAwayDebugData]
	}
	ga.data = append(ga.data[:0], b...)
}

// Deserialize parses last-stream-id (payload[0:4], top bit reserved) and the
// error code (payload[4:8]) separately, then the optional, length-capped
// debug data.
func (ga *GoAway) Deserialize(fr *FrameHeader) (err error) {
	if len(fr.payload) < 8 { // 8 is the min number of bytes
		return ErrMissingBytes
	}

	ga.stream = http2utils.BytesToUint32(fr.payload[:4]) & (1<<31 - 1)
	ga.code = ErrorCode(http2utils.BytesToUint32(fr.payload[4:8]))

	if rest := fr.payload[8:]; len(rest) != 0 {
		if len(rest) > maxGoAwayDebugData {
			rest = rest[:maxGoAwayDebugData]
		}
		ga.data = append(ga.data[:0], rest...)
	}

	return nil
}

func (ga *GoAway) Serialize(fr *FrameHeader) {
	fr.payload = http2utils.AppendUint32Bytes(fr.payload[:0], ga.stream)
	fr.payload = http2utils.AppendUint32Bytes(fr.payload, uint32(ga.code))
	fr.payload = append(fr.payload, ga.data...)
}
