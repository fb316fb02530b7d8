package http2

import (
	"bufio"
	"context"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

// Role identifies which side of the connection this engine instance plays,
// which in turn decides stream id parity (RFC 7540 §5.1.1) and whether the
// connection preface is written or read.
type Role uint8

const (
	RoleClient Role = iota
	RoleServer
)

const (
	// DefaultPingInterval is how often an idle connection pings its peer
	// to detect a dead socket.
	DefaultPingInterval = 15 * time.Second
	// DefaultSettingsTimeout bounds how long this side waits for the
	// peer to ACK a SETTINGS frame before treating it as SETTINGS_TIMEOUT.
	DefaultSettingsTimeout = 10 * time.Second
	// DefaultIdleTimeout closes a connection with no open streams and no
	// traffic for this long.
	DefaultIdleTimeout = 5 * time.Minute
)

// ConnConfig configures one Conn. The zero value is usable; unset durations
// fall back to the package defaults.
type ConnConfig struct {
	Role Role

	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	HeaderTableSize      uint32

	PingInterval    time.Duration
	SettingsTimeout time.Duration
	IdleTimeout     time.Duration

	// Handler is invoked, in its own goroutine, once a peer-initiated
	// stream's header block finishes arriving. Server role only.
	Handler func(*StreamHandle)

	// OnDisconnect fires once, from the connection task, right before the
	// underlying net.Conn is closed.
	OnDisconnect func(*Conn)

	Logger fasthttp.Logger
	Debug  bool
}

func (cfg *ConnConfig) settings() Settings {
	st := Settings{}
	st.Reset()
	if cfg.MaxConcurrentStreams > 0 {
		st.SetMaxConcurrentStreams(cfg.MaxConcurrentStreams)
	}
	if cfg.InitialWindowSize > 0 {
		st.SetMaxWindowSize(cfg.InitialWindowSize)
	}
	if cfg.MaxFrameSize > 0 {
		st.SetMaxFrameSize(cfg.MaxFrameSize)
	}
	if cfg.HeaderTableSize > 0 {
		st.SetHeaderTableSize(cfg.HeaderTableSize)
	}
	st.SetPush(false) // push is out of scope; always refused
	return st
}

// Conn drives one HTTP/2 connection end to end: frame codec, HPACK,
// per-stream flow control and state, SETTINGS/PING/GOAWAY bookkeeping, and
// write scheduling. Every field below is touched only from the single
// goroutine run() executes on; StreamHandles and the public OpenStream/
// Close API reach it exclusively through cmdCh, so nothing here needs a
// mutex.
type Conn struct {
	role Role
	cfg  ConnConfig

	c  net.Conn
	br *bufio.Reader
	bw *bufio.Writer

	enc *HPACK
	dec *HPACK

	local Settings
	peer  Settings

	streams     *streamStore
	nextLocalID uint32

	connSend flowControl
	connRecv flowControl

	cmdCh     chan func(*Conn)
	frameCh   chan *FrameHeader
	readErr   error
	doneCh    chan struct{}
	closeOnce bool

	pingOutstanding bool
	pingSentAt      time.Time

	settingsAckPending bool

	goAwaySent     bool
	goAwayReceived bool

	// expectContinuation is the stream id of an open header block (a
	// HEADERS or CONTINUATION seen without END_HEADERS), or 0 if none is
	// open. While non-zero, only a CONTINUATION on this exact stream may
	// follow; anything else is a connection error (RFC 7540 §4.3, §6.10).
	expectContinuation uint32

	lastErr error
}

// NewConn wraps c as an HTTP/2 connection engine. Call Handshake before
// doing anything else with it.
func NewConn(c net.Conn, cfg ConnConfig) *Conn {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	if cfg.SettingsTimeout <= 0 {
		cfg.SettingsTimeout = DefaultSettingsTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}

	local := cfg.settings()

	nc := &Conn{
		role:        cfg.Role,
		cfg:         cfg,
		c:           c,
		br:          bufio.NewReaderSize(c, 4096),
		bw:          bufio.NewWriterSize(c, 4096),
		enc:         AcquireHPACK(),
		dec:         AcquireHPACK(),
		local:       local,
		streams:     newStreamStore(local.MaxConcurrentStreams(), cfg.Role == RoleClient),
		nextLocalID: 1,
		connSend:    newFlowControl(defaultInitialWindowSize),
		connRecv:    newFlowControl(defaultInitialWindowSize),
		cmdCh:       make(chan func(*Conn), 32),
		frameCh:     make(chan *FrameHeader, 32),
		doneCh:      make(chan struct{}),
	}
	nc.peer.Reset()

	if cfg.Role == RoleServer {
		nc.nextLocalID = 2
	}

	return nc
}

// Handshake writes (client) or reads and validates (server) the connection
// preface, writes this side's initial SETTINGS, then starts the reader
// goroutine and the connection task. It returns without waiting for the
// peer's SETTINGS or ACK; a missing ACK later surfaces from the connection
// task as SETTINGS_TIMEOUT.
func (c *Conn) Handshake() error {
	if c.role == RoleClient {
		if err := WritePreface(c.bw); err != nil {
			return err
		}
	} else {
		if err := ReadPreface(c.br); err != nil {
			return err
		}
	}

	fr := AcquireFrameHeader()
	st := AcquireFrame(FrameSettings).(*Settings)
	c.local.CopyTo(st)
	fr.SetBody(st)
	if _, err := fr.WriteTo(c.bw); err != nil {
		ReleaseFrameHeader(fr)
		return err
	}
	if err := c.bw.Flush(); err != nil {
		ReleaseFrameHeader(fr)
		return err
	}
	ReleaseFrameHeader(fr)
	c.settingsAckPending = true

	go c.readLoop()
	go c.run()

	return nil
}

// readLoop only parses frames off the wire and hands them to run(); it
// never touches connection or stream state directly.
func (c *Conn) readLoop() {
	for {
		frh, err := ReadFrameFromWithSize(c.br, c.local.MaxFrameSize())
		if err != nil {
			c.readErr = err
			close(c.frameCh)
			return
		}
		select {
		case c.frameCh <- frh:
		case <-c.doneCh:
			ReleaseFrameHeader(frh)
			return
		}
	}
}

// submitSync runs fn on the connection task and waits for its result.
func (c *Conn) submitSync(fn func(*Conn) error) error {
	errCh := make(chan error, 1)
	select {
	case c.cmdCh <- func(cc *Conn) { errCh <- fn(cc) }:
	case <-c.doneCh:
		return ErrClosedConn
	}
	select {
	case err := <-errCh:
		return err
	case <-c.doneCh:
		return ErrClosedConn
	}
}

// run is the connection task: the only goroutine allowed to touch c's
// stream store, HPACK contexts, or settings after Handshake returns.
func (c *Conn) run() {
	pingTicker := time.NewTicker(c.cfg.PingInterval)
	defer pingTicker.Stop()

	idleTimer := time.NewTimer(c.cfg.IdleTimeout)
	defer idleTimer.Stop()

	settingsTimer := time.NewTimer(c.cfg.SettingsTimeout)
	defer settingsTimer.Stop()

	for {
		select {
		case cmd, ok := <-c.cmdCh:
			if !ok {
				c.shutdown(nil)
				return
			}
			cmd(c)
		case frh, ok := <-c.frameCh:
			if !ok {
				c.shutdown(c.readErr)
				return
			}
			c.handleFrame(frh)
			ReleaseFrameHeader(frh)
		case <-pingTicker.C:
			c.sendPing()
		case <-idleTimer.C:
			if c.streams.Len() == 0 {
				c.shutdown(nil)
				return
			}
		case <-settingsTimer.C:
			if c.settingsAckPending {
				c.lastErr = NewConnError(InitiatorLocal, SettingsTimeout, "peer never acked initial settings")
			}
		}

		if !idleTimer.Stop() {
			select {
			case <-idleTimer.C:
			default:
			}
		}
		idleTimer.Reset(c.cfg.IdleTimeout)

		if c.lastErr != nil {
			c.shutdown(c.lastErr)
			return
		}
	}
}

func (c *Conn) shutdown(err error) {
	if c.closeOnce {
		return
	}
	c.closeOnce = true
	c.lastErr = err

	c.streams.Each(func(s *Stream) {
		s.applyReset(InitiatorLocal, NoError)
		nonBlockingSendErr(s.doneCh, err)
	})

	close(c.doneCh)

	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(c)
	}

	_ = c.c.Close()
}

func nonBlockingSendErr(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// LastErr returns the error the connection task terminated with:
// ErrClosedConn after Close, the transport read error or protocol error that
// ended it otherwise, or nil if it exited on its idle timeout.
func (c *Conn) LastErr() error { return c.lastErr }

// Wait blocks until the connection task exits.
func (c *Conn) Wait() { <-c.doneCh }

// Closed reports whether the connection task has exited.
func (c *Conn) Closed() bool {
	select {
	case <-c.doneCh:
		return true
	default:
		return false
	}
}

// Close sends GOAWAY with NO_ERROR and tears the connection down.
func (c *Conn) Close() error {
	return c.submitSync(func(cc *Conn) error {
		cc.sendGoAway(NoError, nil)
		cc.lastErr = ErrClosedConn
		return nil
	})
}

// OpenStream starts a new locally-initiated stream (client requests, or
// server push — push is unused here since it's always disabled). It
// returns once the stream is registered; it does not wait for a response.
func (c *Conn) OpenStream() (*StreamHandle, error) {
	var handle *StreamHandle
	err := c.submitSync(func(cc *Conn) error {
		id := cc.nextLocalID
		cc.nextLocalID += 2

		s, err := cc.streams.OpenLocal(id, cc.peer.MaxWindowSize(), cc.local.MaxWindowSize())
		if err != nil {
			return err
		}
		handle = cc.handleFor(s)
		return nil
	})
	return handle, err
}

func (c *Conn) handleFor(s *Stream) *StreamHandle {
	return &StreamHandle{
		id:         s.id,
		conn:       c,
		headersCh:  s.headersCh,
		dataCh:     s.dataCh,
		trailersCh: s.trailersCh,
		doneCh:     s.doneCh,
	}
}

func (c *Conn) writeFrame(streamID uint32, body Frame) error {
	frh := AcquireFrameHeader()
	frh.SetStream(streamID)
	frh.SetBody(body)
	_, err := frh.WriteTo(c.bw)
	if err == nil {
		err = c.bw.Flush()
	}
	ReleaseFrameHeader(frh)
	return err
}

func (c *Conn) sendPing() {
	if c.pingOutstanding {
		c.lastErr = NewConnError(InitiatorLocal, ProtocolError, "ping timeout")
		return
	}
	ping := AcquireFrame(FramePing).(*Ping)
	ping.SetCurrentTime()
	c.pingOutstanding = true
	c.pingSentAt = time.Now()
	if err := c.writeFrame(0, ping); err != nil {
		c.lastErr = err
	}
}

func (c *Conn) sendGoAway(code ErrorCode, debug []byte) {
	if c.goAwaySent {
		return
	}
	c.goAwaySent = true
	ga := AcquireFrame(FrameGoAway).(*GoAway)
	ga.SetStream(c.streams.lastProcessedRemoteID)
	ga.SetCode(code)
	ga.SetData(debug)
	_ = c.writeFrame(0, ga)
}

// connError records a connection-level protocol violation detected locally:
// it marks the connection for shutdown and writes GOAWAY right away, since
// shutdown itself only tears the connection down and never emits one.
func (c *Conn) connError(code ErrorCode, msg string) {
	c.lastErr = NewConnError(InitiatorLocal, code, msg)
	c.sendGoAway(code, nil)
}

func (c *Conn) sendReset(id uint32, by Initiator, code ErrorCode) error {
	s := c.streams.Get(id)
	if s == nil {
		return NewStreamError(by, id, StreamClosedError, "stream closed")
	}
	s.applyReset(by, code)
	rst := AcquireFrame(FrameResetStream).(*RstStream)
	rst.SetCode(code)
	nonBlockingSendErr(s.doneCh, s.resetReason.asError(by))
	c.streams.Del(id)
	s.release()
	return c.writeFrame(id, rst)
}

func (c *Conn) sendHeaders(id uint32, headers []*HeaderField, endStream bool) error {
	s := c.streams.Get(id)
	if s == nil {
		return NewStreamError(InitiatorUser, id, StreamClosedError, "stream closed")
	}

	if !s.sentHeaders {
		s.sentHeaders = true
		// Idle/ReservedLocal means this side is the one opening the
		// stream (a request, or a push); anything else (typically a
		// server answering an already-Open stream) leaves state alone —
		// only END_STREAM drives a transition from there.
		if s.state == StreamStateIdle || s.state == StreamStateReservedLocal {
			if err := s.transition(eventSendHeaders); err != nil {
				return err
			}
		}
	}

	h := AcquireFrame(FrameHeaders).(*Headers)
	for _, hf := range headers {
		h.AppendHeaderField(c.enc, hf, true)
	}
	h.SetEndHeaders(true)
	h.SetEndStream(endStream)

	if err := c.writeFrame(id, h); err != nil {
		return err
	}
	if endStream {
		return s.transition(eventSendEndStream)
	}
	return nil
}

// sendTrailers sends a final, END_STREAM HEADERS block. It does not retrigger
// the HEADERS->OPEN transition sendHeaders applies on a stream's first call.
func (c *Conn) sendTrailers(id uint32, trailers []*HeaderField) error {
	return c.sendHeaders(id, trailers, true)
}

// sendData writes as much of p as the current send window allows and
// queues the remainder on the stream for later draining as WINDOW_UPDATEs
// arrive.
func (c *Conn) sendData(id uint32, p []byte, endStream bool) error {
	s := c.streams.Get(id)
	if s == nil {
		return NewStreamError(InitiatorUser, id, StreamClosedError, "stream closed")
	}

	s.pendingData = append(s.pendingData, pendingWrite{data: p, endStream: endStream})
	return c.drainPending(s)
}

// drainPending writes queued DATA chunks for s while both the stream's and
// the connection's send windows allow it.
func (c *Conn) drainPending(s *Stream) error {
	maxFrame := int32(c.peer.MaxFrameSize())
	if maxFrame <= 0 {
		maxFrame = int32(defaultMaxFrameSize)
	}

	for len(s.pendingData) > 0 {
		pw := &s.pendingData[0]

		avail := s.sendWindow.Avail()
		if cw := c.connSend.Avail(); cw < avail {
			avail = cw
		}
		if avail <= 0 {
			return nil
		}

		n := int32(len(pw.data))
		last := true
		if n > avail {
			n = avail
			last = false
		}
		if n > maxFrame {
			n = maxFrame
			last = false
		}

		chunk := pw.data[:n]
		pw.data = pw.data[n:]

		data := AcquireFrame(FrameData).(*Data)
		data.SetData(chunk)
		endHere := last && len(pw.data) == 0 && pw.endStream
		data.SetEndStream(endHere)

		s.sendWindow.Consume(n)
		c.connSend.Consume(n)

		if err := c.writeFrame(s.id, data); err != nil {
			return err
		}

		if len(pw.data) == 0 {
			s.pendingData = s.pendingData[1:]
			if pw.endStream {
				if err := s.transition(eventSendEndStream); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// asError renders a reset reason as an error for a stream handle's Done
// channel.
func (code ErrorCode) asError(by Initiator) error {
	if code == NoError {
		return nil
	}
	return NewStreamError(by, 0, code, "stream reset")
}

func (c *Conn) handleFrame(frh *FrameHeader) {
	if c.expectContinuation != 0 {
		if frh.Type() != FrameContinuation || frh.Stream() != c.expectContinuation {
			c.connError(ProtocolError, "expected a CONTINUATION frame to finish the open header block")
			return
		}
	}
	switch b := frh.Body().(type) {
	case *Headers:
		c.updateContinuationExpectation(frh.Stream(), b.EndHeaders())
	case *Continuation:
		c.updateContinuationExpectation(frh.Stream(), b.EndHeaders())
	}

	if frh.Stream() == 0 {
		c.handleConnFrame(frh)
		return
	}
	c.handleStreamFrame(frh)
}

// updateContinuationExpectation tracks whether streamID's header block is
// still open, gating what handleFrame will accept next.
func (c *Conn) updateContinuationExpectation(streamID uint32, endHeaders bool) {
	if endHeaders {
		c.expectContinuation = 0
		return
	}
	c.expectContinuation = streamID
}

func (c *Conn) handleConnFrame(frh *FrameHeader) {
	switch frh.Type() {
	case FrameSettings:
		st := frh.Body().(*Settings)
		if st.IsAck() {
			c.settingsAckPending = false
			return
		}
		c.applyPeerSettings(st)
		ack := AcquireFrame(FrameSettings).(*Settings)
		ack.SetAck(true)
		if err := c.writeFrame(0, ack); err != nil {
			c.lastErr = err
		}
	case FrameWindowUpdate:
		wu := frh.Body().(*WindowUpdate)
		if wu.Increment() == 0 {
			// A zero increment against the connection window is a
			// connection error, unlike the stream-level case.
			c.connError(ProtocolError, "window update increment must not be zero")
			return
		}
		if err := c.connSend.Increment(int32(wu.Increment())); err != nil {
			c.connError(FlowControlError, "connection send window overflow")
			return
		}
		c.streams.Each(func(s *Stream) { _ = c.drainPending(s) })
	case FramePing:
		p := frh.Body().(*Ping)
		if p.IsAck() {
			c.pingOutstanding = false
			return
		}
		reply := AcquireFrame(FramePing).(*Ping)
		reply.SetData(p.Data())
		reply.SetAck(true)
		if err := c.writeFrame(0, reply); err != nil {
			c.lastErr = err
		}
	case FrameGoAway:
		ga := frh.Body().(*GoAway)
		c.goAwayReceived = true
		if ga.Code() != NoError {
			c.lastErr = NewConnError(InitiatorRemote, ga.Code(), "peer sent goaway")
		}
	default:
		// Every other frame type, including DATA, HEADERS and PRIORITY,
		// is only meaningful scoped to a stream; receiving one on stream
		// 0 is a connection error, not something to silently drop.
		c.connError(ProtocolError, "frame type not valid on stream 0")
	}
}

// applyPeerSettings applies a peer SETTINGS frame, including rebasing every
// open stream's send window if SETTINGS_INITIAL_WINDOW_SIZE changed. A
// rebase that would lift a window past 2^31-1 is a FLOW_CONTROL_ERROR
// connection error.
//
// https://tools.ietf.org/html/rfc7540#section-6.9.2
func (c *Conn) applyPeerSettings(st *Settings) {
	oldInitial := int32(c.peer.MaxWindowSize())
	st.CopyTo(&c.peer)
	c.enc.SetMaxTableSize(int(st.HeaderTableSize()))

	delta := int32(st.MaxWindowSize()) - oldInitial
	if delta != 0 {
		c.streams.Each(func(s *Stream) {
			if int64(s.sendWindow.size)+int64(delta) > int64(maxFlowControlWindow) {
				c.connError(FlowControlError, "stream send window overflow")
				return
			}
			s.sendWindow.Rebase(delta)
		})
	}
}

func (c *Conn) handleStreamFrame(frh *FrameHeader) {
	id := frh.Stream()
	s := c.streams.Get(id)

	switch frh.Type() {
	case FramePushPromise:
		// Push is always disabled locally (SETTINGS_ENABLE_PUSH=0); a
		// compliant peer never sends this.
		c.lastErr = NewConnError(InitiatorLocal, ProtocolError, "unexpected push promise")
	case FrameHeaders:
		if s == nil {
			var err error
			s, err = c.streams.AcceptRemote(id, c.peer.MaxWindowSize(), c.local.MaxWindowSize())
			if err != nil {
				c.rejectRemote(id, err)
				return
			}
			c.streams.MarkProcessed(id)
		}
		h := frh.Body().(FrameWithHeaders)
		s.pendingHeaders = append(s.pendingHeaders, h.Headers()...)
		c.maybeFinishHeaders(s, frh)
	case FrameContinuation:
		if s == nil {
			return
		}
		cont := frh.Body().(*Continuation)
		s.pendingHeaders = append(s.pendingHeaders, cont.Headers()...)
		c.maybeFinishHeaders(s, frh)
	case FrameData:
		if s == nil {
			return
		}
		data := frh.Body().(*Data)
		n := int32(frh.Len())
		c.connRecv.Consume(n)
		s.recvWindow.Consume(n)
		if c.connRecv.size < 0 {
			c.connError(FlowControlError, "connection receive window exceeded")
			return
		}
		if s.recvWindow.size < 0 {
			_ = c.sendReset(id, InitiatorLocal, FlowControlError)
			return
		}
		if data.Len() > 0 {
			s.recvBuffer.Write(data.Data())
			select {
			case s.dataCh <- append([]byte(nil), data.Data()...):
			default:
			}
		}
		c.maybeReplenishWindow(s)
		c.maybeReplenishConnWindow()
		if data.EndStream() {
			if err := s.transition(eventRecvEndStream); err == nil {
				close(s.dataCh)
				nonBlockingSendErr(s.doneCh, nil)
			}
		}
	case FrameResetStream:
		if s == nil {
			// An id neither side has opened yet is still Idle, and
			// RST_STREAM on an idle stream is a connection error.
			if c.streams.isRemoteID(id) {
				if id > c.streams.highestRemoteID {
					c.connError(ProtocolError, "RST_STREAM on idle stream")
				}
			} else if id >= c.nextLocalID {
				c.connError(ProtocolError, "RST_STREAM on idle stream")
			}
			return
		}
		rst := frh.Body().(*RstStream)
		s.applyReset(InitiatorRemote, rst.Code())
		nonBlockingSendErr(s.doneCh, rst.Code().asError(InitiatorRemote))
		c.streams.Del(id)
		s.release()
	case FramePriority:
		if s == nil {
			return
		}
		p := frh.Body().(*Priority)
		s.weight = p.Weight()
		s.priority = p.Stream()
	case FrameWindowUpdate:
		if s == nil {
			return
		}
		wu := frh.Body().(*WindowUpdate)
		if wu.Increment() == 0 {
			// Unlike the connection-window case, a zero increment here
			// only invalidates this stream.
			_ = c.sendReset(id, InitiatorLocal, ProtocolError)
			return
		}
		if err := s.sendWindow.Increment(int32(wu.Increment())); err != nil {
			_ = c.sendReset(id, InitiatorLocal, FlowControlError)
			return
		}
		_ = c.drainPending(s)
	}
}

func (c *Conn) rejectRemote(id uint32, err error) {
	code := ProtocolError
	if he, ok := err.(*Http2Error); ok {
		code = he.Code
		if he.IsConnError() {
			c.lastErr = err
			return
		}
	}
	rst := AcquireFrame(FrameResetStream).(*RstStream)
	rst.SetCode(code)
	_ = c.writeFrame(id, rst)
}

// maybeFinishHeaders decodes and delivers s's accumulated header block once
// END_HEADERS lands on frh. CONTINUATION atomicity holds automatically:
// nothing delivers until the flag is set, however many fragments arrived.
func (c *Conn) maybeFinishHeaders(s *Stream, frh *FrameHeader) {
	endHeaders := false
	endStream := false
	switch b := frh.Body().(type) {
	case *Headers:
		endHeaders = b.EndHeaders()
		endStream = b.EndStream()
	case *Continuation:
		endHeaders = b.EndHeaders()
	}
	if !endHeaders {
		return
	}

	c.dec.ResetBlock()
	fields := make([]*HeaderField, 0, 8)
	b := s.pendingHeaders
	for len(b) > 0 {
		hf := AcquireHeaderField()
		var err error
		b, err = c.dec.Next(hf, b)
		if err != nil {
			ReleaseHeaderField(hf)
			c.lastErr = NewConnError(InitiatorLocal, CompressionError, err.Error())
			return
		}
		fields = append(fields, hf)
	}
	s.pendingHeaders = s.pendingHeaders[:0]

	alreadyOpen := s.headersEnded
	s.headersEnded = true

	if !alreadyOpen {
		// Idle/ReservedRemote means the peer is opening the stream; a
		// response on a stream this side opened leaves state alone — only
		// END_STREAM drives a transition from there.
		if s.state == StreamStateIdle || s.state == StreamStateReservedRemote {
			if err := s.transition(eventRecvHeaders); err != nil {
				c.lastErr = err
				return
			}
		}
		select {
		case s.headersCh <- fields:
		default:
		}
		if c.role == RoleServer && c.cfg.Handler != nil {
			go c.cfg.Handler(c.handleFor(s))
		}
	} else {
		select {
		case s.trailersCh <- fields:
		default:
		}
	}

	if endStream {
		if err := s.transition(eventRecvEndStream); err == nil {
			close(s.dataCh)
			nonBlockingSendErr(s.doneCh, nil)
		}
	}
}

// maybeReplenishWindow sends a WINDOW_UPDATE once a stream's receive window
// has drained past half its configured size, per RFC 7540 §6.9's guidance
// to avoid stalling the peer on a byte-at-a-time trickle.
func (c *Conn) maybeReplenishWindow(s *Stream) {
	threshold := recvWindowThreshold(int32(c.local.MaxWindowSize()))
	if s.recvWindow.Avail() >= threshold {
		return
	}
	inc := int32(c.local.MaxWindowSize()) - s.recvWindow.Avail()
	if inc <= 0 {
		return
	}
	_ = s.recvWindow.Increment(inc)
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(int(inc))
	_ = c.writeFrame(s.id, wu)
}

// maybeReplenishConnWindow is maybeReplenishWindow's connection-level
// counterpart; stream id 0 addresses the connection window itself.
func (c *Conn) maybeReplenishConnWindow() {
	threshold := recvWindowThreshold(int32(c.local.MaxWindowSize()))
	if c.connRecv.Avail() >= threshold {
		return
	}
	inc := int32(c.local.MaxWindowSize()) - c.connRecv.Avail()
	if inc <= 0 {
		return
	}
	_ = c.connRecv.Increment(inc)
	wu := AcquireFrame(FrameWindowUpdate).(*WindowUpdate)
	wu.SetIncrement(int(inc))
	_ = c.writeFrame(0, wu)
}

// blockUntilDone waits for ctx or the connection task to exit.
func (c *Conn) blockUntilDone(ctx context.Context) error {
	select {
	case <-c.doneCh:
		return c.lastErr
	case <-ctx.Done():
		return ctx.Err()
	}
}
