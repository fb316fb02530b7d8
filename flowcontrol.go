package http2

// flowControl tracks one signed 32-bit HTTP/2 flow-control window, shared
// shape for both the connection-level window and each stream's window
// (RFC 7540 §6.9).
//
// Windows are signed: SETTINGS_INITIAL_WINDOW_SIZE changes can push an
// already-open stream's window negative, and it must climb back above zero
// via WINDOW_UPDATE before more DATA may be sent on it.
type flowControl struct {
	size int32 // bytes this side is currently allowed to send
}

func newFlowControl(initial uint32) flowControl {
	return flowControl{size: int32(initial)}
}

// Avail reports how many bytes may currently be sent; never negative.
func (fc *flowControl) Avail() int32 {
	if fc.size < 0 {
		return 0
	}
	return fc.size
}

// Consume accounts for n bytes of DATA about to be sent.
func (fc *flowControl) Consume(n int32) {
	fc.size -= n
}

// Increment applies a WINDOW_UPDATE increment, reporting a FLOW_CONTROL_ERROR
// if doing so would exceed the protocol's 2^31-1 ceiling.
func (fc *flowControl) Increment(n int32) error {
	next := int64(fc.size) + int64(n)
	if next > int64(maxFlowControlWindow) {
		return NewError(FlowControlError, "window increment overflow")
	}
	fc.size = int32(next)
	return nil
}

// Rebase adjusts the window by delta, used when SETTINGS_INITIAL_WINDOW_SIZE
// changes and every open stream's send window must shift by the same
// amount (RFC 7540 §6.9.2). Unlike Increment this is allowed to push the
// window negative and does not check the 2^31-1 ceiling itself;
// applyPeerSettings checks it before calling Rebase.
func (fc *flowControl) Rebase(delta int32) {
	fc.size += delta
}

// recvWindowThreshold is how low a receive window can drop, relative to its
// configured size, before this side proactively sends a WINDOW_UPDATE
// instead of waiting for the caller to fully drain the buffer.
func recvWindowThreshold(configured int32) int32 {
	return configured / 2
}
