package http2

// FrameType is the 8-bit type field of a frame header.
//
// https://tools.ietf.org/html/rfc7540#section-11.2
type FrameType uint8

const (
	FrameSettings FrameType = 0x4
)

// FrameFlags is the 8-bit flags field of a frame header.
type FrameFlags uint8

// Has returns true if f is set on flags.
func (flags FrameFlags) Has(f FrameFlags) bool {
	return flags&f == f
}

// Add sets f on flags and returns the result.
func (flags FrameFlags) Add(f FrameFlags) FrameFlags {
	return flags | f
}

// Del clears f from flags and returns the result.
func (flags FrameFlags) Del(f FrameFlags) FrameFlags {
	return flags &^ f
}

// Frame is implemented by every HTTP/2 frame payload type (Data, Headers,
// Priority, RstStream, Settings, PushPromise, Ping, GoAway, WindowUpdate,
// Continuation).
//
// A Frame instance MUST NOT be used concurrently from more than one
// goroutine. Acquire/Release via AcquireFrame/ReleaseFrame to reuse buffers.
type Frame interface {
	// Type returns the frame's wire type.
	Type() FrameType

	// Reset clears the frame so it can be reused.
	Reset()

	// Deserialize fills the frame from the payload already stored in frh.
	Deserialize(frh *FrameHeader) error

	// Serialize writes the frame's payload into frh, ready for WriteTo.
	Serialize(frh *FrameHeader)
}

// AcquireFrame returns a pooled Frame implementation for kind. The returned
// Frame must be released with ReleaseFrame (FrameHeader does this for you
// via ReleaseFrameHeader).
func AcquireFrame(kind FrameType) Frame {
	switch kind {
	case FrameData:
		return acquireData()
	case FrameHeaders:
		return acquireHeaders()
	case FramePriority:
		return acquirePriority()
	case FrameResetStream:
		return acquireRstStream()
	case FrameSettings:
		return acquireSettings()
	case FramePushPromise:
		return acquirePushPromise()
	case FramePing:
		return acquirePing()
	case FrameGoAway:
		return acquireGoAway()
	case FrameWindowUpdate:
		return acquireWindowUpdate()
	case FrameContinuation:
		return acquireContinuation()
	default:
		return nil
	}
}

// ReleaseFrame resets fr and returns it to its pool. A nil fr is a no-op.
func ReleaseFrame(fr Frame) {
	if fr == nil {
		return
	}

	switch f := fr.(type) {
	case *Data:
		releaseData(f)
	case *Headers:
		releaseHeaders(f)
	case *Priority:
		releasePriority(f)
	case *RstStream:
		releaseRstStream(f)
	case *Settings:
		releaseSettings(f)
	case *PushPromise:
		releasePushPromise(f)
	case *Ping:
		releasePing(f)
	case *GoAway:
		releaseGoAway(f)
	case *WindowUpdate:
		releaseWindowUpdate(f)
	case *Continuation:
		releaseContinuation(f)
	}
}
