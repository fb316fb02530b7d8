package http2

import (
	"context"
	"io"
	"time"
)

// windowPollInterval bounds how long ReserveCapacity waits between checks
// of the stream's flow-control window when it isn't yet wide enough.
const windowPollInterval = 20 * time.Millisecond

// StreamHandle is the caller-facing, non-owning view of one stream. All of
// its fields besides the connection reference are channels the connection
// task owns the writing end of (or, for sends, the reading end) — the
// stream's *Stream bookkeeping itself never leaves the connection task's
// goroutine.
//
// https://tools.ietf.org/html/rfc7540#section-5.1
type StreamHandle struct {
	id   uint32
	conn *Conn

	headersCh  chan []*HeaderField
	dataCh     chan []byte
	trailersCh chan []*HeaderField
	doneCh     chan error
}

// ID returns the stream's identifier.
func (h *StreamHandle) ID() uint32 { return h.id }

// SendHeaders encodes and queues headers as this stream's HEADERS block.
// Calling it more than once (outside of the special case of sending
// trailers, see SendTrailers) is a caller error.
func (h *StreamHandle) SendHeaders(headers []*HeaderField, endStream bool) error {
	return h.conn.submitSync(func(c *Conn) error {
		return c.sendHeaders(h.id, headers, endStream)
	})
}

// SendData queues p as DATA on this stream. It does not block for peer flow
// control to catch up — PollCapacity/ReserveCapacity exist for callers that
// want to pace themselves against the peer's advertised window.
func (h *StreamHandle) SendData(p []byte, endStream bool) error {
	return h.conn.submitSync(func(c *Conn) error {
		return c.sendData(h.id, p, endStream)
	})
}

// SendTrailers queues a final, END_STREAM HEADERS block with no further DATA
// to follow.
func (h *StreamHandle) SendTrailers(trailers []*HeaderField) error {
	return h.conn.submitSync(func(c *Conn) error {
		return c.sendTrailers(h.id, trailers)
	})
}

// SendReset aborts the stream locally with code, emitting RST_STREAM.
func (h *StreamHandle) SendReset(code ErrorCode) error {
	return h.conn.submitSync(func(c *Conn) error {
		return c.sendReset(h.id, InitiatorUser, code)
	})
}

// RecvHeaders blocks until the stream's header block is fully received, ctx
// is canceled, or the stream closes without ever receiving one.
func (h *StreamHandle) RecvHeaders(ctx context.Context) ([]*HeaderField, error) {
	select {
	case hf, ok := <-h.headersCh:
		if !ok {
			return nil, io.EOF
		}
		return hf, nil
	case err := <-h.doneCh:
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecvData returns the next chunk of DATA, io.EOF once the peer has ended
// the stream, or ctx's error.
func (h *StreamHandle) RecvData(ctx context.Context) ([]byte, error) {
	select {
	case p, ok := <-h.dataCh:
		if !ok {
			return nil, io.EOF
		}
		return p, nil
	case err := <-h.doneCh:
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecvTrailers blocks until a trailing HEADERS block arrives or the stream
// closes with none.
func (h *StreamHandle) RecvTrailers(ctx context.Context) ([]*HeaderField, error) {
	select {
	case hf, ok := <-h.trailersCh:
		if !ok {
			return nil, io.EOF
		}
		return hf, nil
	case err := <-h.doneCh:
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done returns the channel that fires once, with the stream's terminal
// error (nil on a clean close), when the stream fully closes.
func (h *StreamHandle) Done() <-chan error { return h.doneCh }

// PollCapacity reports how many bytes of DATA may currently be written
// without exceeding the peer's advertised flow-control window, without
// blocking.
func (h *StreamHandle) PollCapacity() (n int32, err error) {
	err = h.conn.submitSync(func(c *Conn) error {
		s := c.streams.Get(h.id)
		if s == nil {
			return NewStreamError(InitiatorUser, h.id, StreamClosedError, "stream closed")
		}
		n = s.sendWindow.Avail()
		if cw := c.connSend.Avail(); cw < n {
			n = cw
		}
		return nil
	})
	return n, err
}

// ReserveCapacity blocks (subject to ctx) until at least n bytes of
// stream-level and connection-level send window are available.
func (h *StreamHandle) ReserveCapacity(ctx context.Context, n int32) error {
	for {
		avail, err := h.PollCapacity()
		if err != nil {
			return err
		}
		if avail >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-h.doneCh:
			return ErrClosedConn
		case <-time.After(windowPollInterval):
		}
	}
}
