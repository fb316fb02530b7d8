package http2

import (
	"github.com/valyala/bytebufferpool"
)

// StreamState is one of the seven states a stream moves through over its
// life, per RFC 7540 §5.1.
type StreamState int8

const (
	StreamStateIdle StreamState = iota
	StreamStateReservedLocal
	StreamStateReservedRemote
	StreamStateOpen
	StreamStateHalfClosedLocal
	StreamStateHalfClosedRemote
	StreamStateClosed
)

func (ss StreamState) String() string {
	switch ss {
	case StreamStateIdle:
		return "idle"
	case StreamStateReservedLocal:
		return "reserved_local"
	case StreamStateReservedRemote:
		return "reserved_remote"
	case StreamStateOpen:
		return "open"
	case StreamStateHalfClosedLocal:
		return "half_closed_local"
	case StreamStateHalfClosedRemote:
		return "half_closed_remote"
	case StreamStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// streamEvent identifies the transition a frame or local action drives the
// stream state machine with. The (state, event) -> state table lives in
// nextStreamState, kept separate from dispatch so it can be tested as a
// pure function.
type streamEvent int8

const (
	eventRecvHeaders streamEvent = iota
	eventSendHeaders
	eventRecvPushPromise
	eventSendPushPromise
	eventRecvEndStream
	eventSendEndStream
	eventRecvReset
	eventSendReset
)

// Stream holds everything owned exclusively by the connection task for one
// request/response exchange (or, server-side, one accepted request). Every
// field here is part of the engine's Stream data model; nothing is ever
// touched by more than one goroutine, and callers only ever reach it
// indirectly through a StreamHandle and its channels.
type Stream struct {
	id    uint32
	state StreamState

	sendWindow flowControl
	recvWindow flowControl

	// pendingData holds DATA payloads queued faster than the peer's send
	// window allows; the connection task drains it as WINDOW_UPDATEs
	// arrive.
	pendingData []pendingWrite

	recvBuffer *bytebufferpool.ByteBuffer

	contentLengthRemaining int64
	hasContentLength       bool

	resetReason ErrorCode
	resetBy     Initiator

	pendingHeaders []byte // accumulator for HEADERS + CONTINUATION fragments
	headersEnded   bool
	sentHeaders    bool

	weight   uint8
	priority uint32

	// handle-facing channels; owned by the connection task for sends,
	// read-only from the caller's perspective.
	headersCh  chan []*HeaderField
	dataCh     chan []byte
	trailersCh chan []*HeaderField
	doneCh     chan error

	handleClosed bool
}

// pendingWrite is one caller-supplied DATA payload still waiting for send
// window to open up.
type pendingWrite struct {
	data      []byte
	endStream bool
}

func newStream(id uint32, sendInitial, recvInitial uint32) *Stream {
	return &Stream{
		id:         id,
		state:      StreamStateIdle,
		sendWindow: newFlowControl(sendInitial),
		recvWindow: newFlowControl(recvInitial),
		recvBuffer: bytebufferpool.Get(),
		weight:     16, // RFC 7540 §5.3.5 default weight
		headersCh:  make(chan []*HeaderField, 1),
		dataCh:     make(chan []byte, 16),
		trailersCh: make(chan []*HeaderField, 1),
		doneCh:     make(chan error, 1),
	}
}

func (s *Stream) release() {
	bytebufferpool.Put(s.recvBuffer)
}

// ID returns the stream's identifier.
func (s *Stream) ID() uint32 { return s.id }

// State returns the stream's current state.
func (s *Stream) State() StreamState { return s.state }

// localClosed reports whether this side has finished sending on s.
func (s *Stream) localClosed() bool {
	switch s.state {
	case StreamStateHalfClosedLocal, StreamStateClosed:
		return true
	default:
		return false
	}
}

// remoteClosed reports whether the peer has finished sending on s.
func (s *Stream) remoteClosed() bool {
	switch s.state {
	case StreamStateHalfClosedRemote, StreamStateClosed:
		return true
	default:
		return false
	}
}

// transition advances s's state for ev, per RFC 7540 §5.1's table.
func (s *Stream) transition(ev streamEvent) error {
	next, err := nextStreamState(s.state, ev)
	if err != nil {
		return err
	}
	s.state = next
	return nil
}

// nextStreamState is the pure (state, event) -> state transition function.
// Kept free of Stream so state-machine tests can drive it directly without
// constructing a full Stream.
func nextStreamState(state StreamState, ev streamEvent) (StreamState, error) {
	switch state {
	case StreamStateIdle:
		switch ev {
		case eventRecvHeaders, eventSendHeaders:
			return StreamStateOpen, nil
		case eventRecvPushPromise:
			return StreamStateReservedRemote, nil
		case eventSendPushPromise:
			return StreamStateReservedLocal, nil
		}

	case StreamStateReservedLocal:
		switch ev {
		case eventSendHeaders:
			return StreamStateHalfClosedRemote, nil
		case eventRecvReset, eventSendReset:
			return StreamStateClosed, nil
		}

	case StreamStateReservedRemote:
		switch ev {
		case eventRecvHeaders:
			return StreamStateHalfClosedLocal, nil
		case eventRecvReset, eventSendReset:
			return StreamStateClosed, nil
		}

	case StreamStateOpen:
		switch ev {
		case eventRecvEndStream:
			return StreamStateHalfClosedRemote, nil
		case eventSendEndStream:
			return StreamStateHalfClosedLocal, nil
		case eventRecvReset, eventSendReset:
			return StreamStateClosed, nil
		}

	case StreamStateHalfClosedLocal:
		switch ev {
		case eventRecvEndStream, eventRecvReset, eventSendReset:
			return StreamStateClosed, nil
		}

	case StreamStateHalfClosedRemote:
		switch ev {
		case eventSendEndStream, eventRecvReset, eventSendReset:
			return StreamStateClosed, nil
		}

	case StreamStateClosed:
		switch ev {
		case eventRecvReset, eventSendReset:
			return StreamStateClosed, nil
		}
	}

	return state, NewStreamError(InitiatorLocal, 0, ProtocolError, "illegal transition from "+state.String())
}

// applyReset moves s to Closed, recording who reset it and why. Idempotent:
// resetting an already-closed stream keeps the first reason.
func (s *Stream) applyReset(by Initiator, code ErrorCode) {
	if s.state == StreamStateClosed {
		return
	}
	s.state = StreamStateClosed
	s.resetBy = by
	s.resetReason = code
}
