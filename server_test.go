package http2

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serveOne(s *Server, ln net.Listener) {
	c, err := ln.Accept()
	if err != nil {
		return
	}
	_ = s.ServeConn(c)
}

func newTestField(k, v []byte) *HeaderField {
	hf := AcquireHeaderField()
	hf.SetBytes(k, v)
	return hf
}

func TestServeConnEchoesBody(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()

	s := &Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.Write(ctx.PostBody())
		},
		IdleTimeout: time.Second,
	}

	go serveOne(s, ln)

	c, err := ln.Dial()
	if err != nil {
		t.Fatal(err)
	}

	nc := NewConn(c, ConnConfig{Role: RoleClient, IdleTimeout: time.Second})
	if err := nc.Handshake(); err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	h, err := nc.OpenStream()
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	body := []byte("hello world")
	headers := []*HeaderField{
		newTestField(StringMethod, []byte("POST")),
		newTestField(StringScheme, []byte("https")),
		newTestField(StringAuthority, []byte("localhost")),
		newTestField(StringPath, []byte("/echo")),
	}
	defer releaseHeaderFields(headers)

	if err := h.SendHeaders(headers, false); err != nil {
		t.Fatal(err)
	}
	if err := h.SendData(body, true); err != nil {
		t.Fatal(err)
	}

	respHeaders, err := h.RecvHeaders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer releaseHeaderFields(respHeaders)

	var status string
	for _, hf := range respHeaders {
		if hf.Key() == ":status" {
			status = hf.Value()
		}
	}
	if status != "200" {
		t.Fatalf("unexpected status: %s", status)
	}

	got := make([]byte, 0, len(body))
	for {
		p, err := h.RecvData(ctx)
		if err != nil {
			break
		}
		got = append(got, p...)
	}
	if string(got) != string(body) {
		t.Fatalf("unexpected echoed body: %q", got)
	}
}

func TestServeConnHandlesBodylessGet(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()

	s := &Server{
		Handler:     func(ctx *fasthttp.RequestCtx) {},
		IdleTimeout: time.Second,
	}
	go serveOne(s, ln)

	c, err := ln.Dial()
	if err != nil {
		t.Fatal(err)
	}

	nc := NewConn(c, ConnConfig{Role: RoleClient, IdleTimeout: time.Second})
	if err := nc.Handshake(); err != nil {
		t.Fatal(err)
	}
	defer nc.Close()

	h, err := nc.OpenStream()
	if err != nil {
		t.Fatal(err)
	}

	headers := []*HeaderField{
		newTestField(StringMethod, []byte("GET")),
		newTestField(StringScheme, []byte("https")),
		newTestField(StringAuthority, []byte("localhost")),
		newTestField(StringPath, []byte("/")),
	}
	defer releaseHeaderFields(headers)

	if err := h.SendHeaders(headers, true); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := h.RecvHeaders(ctx); err != nil {
		t.Fatal(err)
	}
}
