package http2

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/valyala/fasthttp"
)

// ErrServerSupport is returned by Dial when the peer completed a TLS
// handshake but did not negotiate "h2" via ALPN.
var ErrServerSupport = errors.New("http2: server does not support HTTP/2")

// Client runs request/response exchanges over a single negotiated HTTP/2
// connection, the same one-conn-per-Client shape fasthttp.HostClient itself
// assumes for HTTP/1.
type Client struct {
	conn *Conn

	MaxConcurrentStreams uint32
	PingInterval         time.Duration
	IdleTimeout          time.Duration
}

// Dial opens addr, completes a TLS handshake negotiating "h2" via ALPN, and
// runs the HTTP/2 engine over the result.
func Dial(addr string, tlsConfig *tls.Config) (*Client, error) {
	cfg := tlsConfig.Clone()
	if len(cfg.NextProtos) == 0 {
		cfg.NextProtos = []string{H2TLSProto}
	}

	rawConn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}

	tlsConn := tls.Client(rawConn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		_ = rawConn.Close()
		return nil, err
	}
	if tlsConn.ConnectionState().NegotiatedProtocol != H2TLSProto {
		_ = tlsConn.Close()
		return nil, ErrServerSupport
	}

	return NewClientConn(tlsConn, ClientOpts{})
}

// ClientOpts configures a client-side Conn. Zero value uses the engine's
// defaults.
type ClientOpts struct {
	MaxConcurrentStreams uint32
	PingInterval         time.Duration
	IdleTimeout          time.Duration
}

// NewClientConn runs the HTTP/2 client engine over an already-negotiated
// connection c (typically the result of a completed TLS handshake).
func NewClientConn(c net.Conn, opts ClientOpts) (*Client, error) {
	cl := &Client{
		MaxConcurrentStreams: opts.MaxConcurrentStreams,
		PingInterval:         opts.PingInterval,
		IdleTimeout:          opts.IdleTimeout,
	}

	cl.conn = NewConn(c, ConnConfig{
		Role:                 RoleClient,
		MaxConcurrentStreams: opts.MaxConcurrentStreams,
		PingInterval:         opts.PingInterval,
		IdleTimeout:          opts.IdleTimeout,
	})
	if err := cl.conn.Handshake(); err != nil {
		return nil, err
	}
	return cl, nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Closed reports whether the underlying connection has shut down.
func (c *Client) Closed() bool { return c.conn.Closed() }

// Do runs one request/response exchange over a freshly opened stream,
// mirroring fasthttp.HostClient.Do's blocking, single-shot shape.
func (c *Client) Do(req *fasthttp.Request, res *fasthttp.Response) error {
	return c.DoContext(context.Background(), req, res)
}

// DoContext is Do with a caller-supplied context, so a request can be
// aborted mid-flight without waiting for the whole connection to close.
func (c *Client) DoContext(ctx context.Context, req *fasthttp.Request, res *fasthttp.Response) error {
	h, err := c.conn.OpenStream()
	if err != nil {
		return err
	}

	fields := requestHeaderFields(req)
	defer releaseHeaderFields(fields)

	body := req.Body()
	if err := h.SendHeaders(fields, len(body) == 0); err != nil {
		return err
	}
	if len(body) != 0 {
		if err := h.SendData(body, true); err != nil {
			return err
		}
	}

	headers, err := h.RecvHeaders(ctx)
	if err != nil {
		return err
	}
	responseFromFields(headers, res)
	releaseHeaderFields(headers)

	res.ResetBody()
	for {
		p, err := h.RecvData(ctx)
		if err != nil {
			break
		}
		res.AppendBody(p)
	}

	trailers, err := h.RecvTrailers(ctx)
	if err == nil {
		for _, hf := range trailers {
			res.Header.AddBytesKV(hf.KeyBytes(), hf.ValueBytes())
		}
		releaseHeaderFields(trailers)
	}

	return nil
}
