package http2

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

// Server runs an HTTP/2 server on top of the engine in conn.go, bridging
// each accepted stream to a fasthttp.RequestHandler the same way fasthttp
// itself dispatches HTTP/1 requests.
type Server struct {
	// Handler is called once per accepted stream, with a RequestCtx
	// populated the same way fasthttp.Server populates one for HTTP/1.
	Handler fasthttp.RequestHandler

	MaxConcurrentStreams uint32
	PingInterval         time.Duration
	IdleTimeout          time.Duration

	Logger fasthttp.Logger
	Debug  bool
}

// ConfigureServer registers s to run over an existing fasthttp.Server's TLS
// ALPN negotiation, the same NextProto hook fasthttp itself uses for h2c
// upgrades.
func (s *Server) ConfigureServer(ss *fasthttp.Server) {
	if s.Handler == nil {
		s.Handler = ss.Handler
	}
	ss.NextProto(H2TLSProto, func(c net.Conn) {
		_ = s.ServeConn(c)
	})
}

// ListenAndServeTLS listens on addr and serves HTTP/2 over TLS using certFile/keyFile.
func (s *Server) ListenAndServeTLS(addr, certFile, keyFile string) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{H2TLSProto},
	}

	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections from ln and serves each on its own goroutine
// until ln.Accept fails.
func (s *Server) Serve(ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		if cTLS, ok := c.(connTLSer); ok {
			if err := cTLS.Handshake(); err != nil {
				_ = c.Close()
				continue
			}
			if cTLS.ConnectionState().NegotiatedProtocol != H2TLSProto {
				_ = c.Close()
				continue
			}
		}
		go func() { _ = s.ServeConn(c) }()
	}
}

type connTLSer interface {
	net.Conn
	Handshake() error
	ConnectionState() tls.ConnectionState
}

// ServeConn runs the HTTP/2 engine over a single already-accepted
// connection and blocks until it's done.
func (s *Server) ServeConn(c net.Conn) error {
	cfg := ConnConfig{
		Role:                 RoleServer,
		MaxConcurrentStreams: s.MaxConcurrentStreams,
		PingInterval:         s.PingInterval,
		IdleTimeout:          s.IdleTimeout,
		Logger:               s.Logger,
		Debug:                s.Debug,
	}
	cfg.Handler = s.handleStream

	nc := NewConn(c, cfg)
	if err := nc.Handshake(); err != nil {
		_ = c.Close()
		return err
	}
	nc.Wait()
	return nc.LastErr()
}

// handleStream receives one accepted stream's request, runs the user
// handler against a fasthttp.RequestCtx the same shape fasthttp builds for
// HTTP/1, and writes the response back onto the stream.
func (s *Server) handleStream(h *StreamHandle) {
	ctx := context.Background()

	headers, err := h.RecvHeaders(ctx)
	if err != nil {
		return
	}

	rctx := &fasthttp.RequestCtx{}
	for _, hf := range headers {
		fasthttpRequestHeaders(hf, &rctx.Request)
	}

	for {
		p, err := h.RecvData(ctx)
		if err != nil {
			break
		}
		rctx.Request.AppendBody(p)
	}

	s.Handler(rctx)

	fields := responseHeaderFields(&rctx.Response)
	defer releaseHeaderFields(fields)

	body := rctx.Response.Body()
	_ = h.SendHeaders(fields, len(body) == 0)
	if len(body) != 0 {
		_ = h.SendData(body, true)
	}
}
