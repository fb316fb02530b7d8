package http2

import (
	"sync"

	"github.com/kressh/h2proto/http2utils"
)

// SETTINGS parameter identifiers.
//
// https://tools.ietf.org/html/rfc7540#section-6.5.2
const (
	SettingHeaderTableSize      uint16 = 0x1
	SettingEnablePush           uint16 = 0x2
	SettingMaxConcurrentStreams uint16 = 0x3
	SettingInitialWindowSize    uint16 = 0x4
	SettingMaxFrameSize         uint16 = 0x5
	SettingMaxHeaderListSize    uint16 = 0x6
)

const (
	defaultHeaderTableSize      uint32 = 4096
	defaultConcurrentStreams    uint32 = 100
	defaultInitialWindowSize    uint32 = 1<<16 - 1
	defaultMaxFrameSize         uint32 = 1 << 14
	maxFrameSizeAllowed         uint32 = 1<<24 - 1
	minFrameSizeAllowed         uint32 = 1 << 14
	maxFlowControlWindow        uint32 = 1<<31 - 1
	fixedConnRecvWindow         int32  = 65535
)

var _ Frame = &Settings{}

var settingsPool = sync.Pool{
	New: func() interface{} {
		return &Settings{}
	},
}

func acquireSettings() *Settings {
	s := settingsPool.Get().(*Settings)
	s.Reset()
	return s
}

func releaseSettings(s *Settings) {
	s.Reset()
	settingsPool.Put(s)
}

// AcquireSettings returns a Settings with RFC defaults.
func AcquireSettings() *Settings {
	return acquireSettings()
}

// ReleaseSettings returns s to the pool.
func ReleaseSettings(s *Settings) {
	releaseSettings(s)
}

// Settings represents both a SETTINGS frame's payload and the connection's
// currently effective settings (the two uses share one humanized struct, as
// in the teacher).
type Settings struct {
	ack bool

	headerTableSize      uint32
	enablePush           bool
	maxConcurrentStreams uint32
	initialWindowSize    uint32
	maxFrameSize         uint32
	maxHeaderListSize    uint32
}

func (st *Settings) Type() FrameType { return FrameSettings }

func (st *Settings) Reset() {
	st.ack = false
	st.headerTableSize = defaultHeaderTableSize
	st.enablePush = true
	st.maxConcurrentStreams = defaultConcurrentStreams
	st.initialWindowSize = defaultInitialWindowSize
	st.maxFrameSize = defaultMaxFrameSize
	st.maxHeaderListSize = 0
}

// CopyTo copies st's values onto other.
func (st *Settings) CopyTo(other *Settings) {
	other.ack = st.ack
	other.headerTableSize = st.headerTableSize
	other.enablePush = st.enablePush
	other.maxConcurrentStreams = st.maxConcurrentStreams
	other.initialWindowSize = st.initialWindowSize
	other.maxFrameSize = st.maxFrameSize
	other.maxHeaderListSize = st.maxHeaderListSize
}

func (st *Settings) IsAck() bool     { return st.ack }
func (st *Settings) SetAck(v bool)   { st.ack = v }

func (st *Settings) HeaderTableSize() uint32   { return st.headerTableSize }
func (st *Settings) SetHeaderTableSize(v uint32) { st.headerTableSize = v }

func (st *Settings) Push() bool      { return st.enablePush }
func (st *Settings) SetPush(v bool)  { st.enablePush = v }

func (st *Settings) MaxConcurrentStreams() uint32     { return st.maxConcurrentStreams }
func (st *Settings) SetMaxConcurrentStreams(v uint32) { st.maxConcurrentStreams = v }

// MaxWindowSize returns the SETTINGS_INITIAL_WINDOW_SIZE value.
func (st *Settings) MaxWindowSize() uint32 { return st.initialWindowSize }

// SetMaxWindowSize sets SETTINGS_INITIAL_WINDOW_SIZE, clamped to the
// protocol's 2^31-1 ceiling.
func (st *Settings) SetMaxWindowSize(v uint32) {
	if v > maxFlowControlWindow {
		v = maxFlowControlWindow
	}
	st.initialWindowSize = v
}

func (st *Settings) MaxFrameSize() uint32 { return st.maxFrameSize }

// SetMaxFrameSize sets SETTINGS_MAX_FRAME_SIZE, clamped to the legal range.
func (st *Settings) SetMaxFrameSize(v uint32) {
	if v < minFrameSizeAllowed {
		v = minFrameSizeAllowed
	}
	if v > maxFrameSizeAllowed {
		v = maxFrameSizeAllowed
	}
	st.maxFrameSize = v
}

func (st *Settings) MaxHeaderListSize() uint32     { return st.maxHeaderListSize }
func (st *Settings) SetMaxHeaderListSize(v uint32) { st.maxHeaderListSize = v }

// Deserialize decodes the 6-octet (id,value) pairs of a SETTINGS payload.
// A malformed (non-multiple-of-6) payload is a FRAME_SIZE_ERROR per RFC
// 7540 §6.5. Unknown ids are ignored (forward compatibility, per §4.6).
func (st *Settings) Deserialize(frh *FrameHeader) error {
	st.ack = frh.Flags().Has(FlagAck)
	if st.ack {
		if len(frh.payload) != 0 {
			return ErrPayloadExceeds
		}
		return nil
	}

	payload := frh.payload
	if len(payload)%6 != 0 {
		return NewError(FrameSizeError, "settings payload not a multiple of 6")
	}

	for i := 0; i+6 <= len(payload); i += 6 {
		id := uint16(payload[i])<<8 | uint16(payload[i+1])
		value := http2utils.BytesToUint32(payload[i+2 : i+6])

		switch id {
		case SettingHeaderTableSize:
			st.headerTableSize = value
		case SettingEnablePush:
			st.enablePush = value != 0
		case SettingMaxConcurrentStreams:
			st.maxConcurrentStreams = value
		case SettingInitialWindowSize:
			if value > maxFlowControlWindow {
				return NewError(FlowControlError, "initial window size too large")
			}
			st.initialWindowSize = value
		case SettingMaxFrameSize:
			if value < minFrameSizeAllowed || value > maxFrameSizeAllowed {
				return NewError(ProtocolError, "max frame size out of range")
			}
			st.maxFrameSize = value
		case SettingMaxHeaderListSize:
			st.maxHeaderListSize = value
		}
	}

	return nil
}

// Serialize writes st's non-ACK values as a sequence of (id,value) pairs. An
// ACK Settings serializes to an empty payload with FlagAck set.
func (st *Settings) Serialize(frh *FrameHeader) {
	frh.payload = frh.payload[:0]

	if st.ack {
		frh.SetFlags(frh.Flags().Add(FlagAck))
		return
	}

	frh.payload = appendSetting(frh.payload, SettingHeaderTableSize, st.headerTableSize)
	push := uint32(0)
	if st.enablePush {
		push = 1
	}
	frh.payload = appendSetting(frh.payload, SettingEnablePush, push)
	frh.payload = appendSetting(frh.payload, SettingMaxConcurrentStreams, st.maxConcurrentStreams)
	frh.payload = appendSetting(frh.payload, SettingInitialWindowSize, st.initialWindowSize)
	frh.payload = appendSetting(frh.payload, SettingMaxFrameSize, st.maxFrameSize)
	if st.maxHeaderListSize != 0 {
		frh.payload = appendSetting(frh.payload, SettingMaxHeaderListSize, st.maxHeaderListSize)
	}
}

func appendSetting(dst []byte, id uint16, value uint32) []byte {
	dst = append(dst, byte(id>>8), byte(id))
	dst = http2utils.AppendUint32Bytes(dst, value)
	return dst
}
