package http2

import (
	"testing"
	"time"

	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func TestClientDoRoundTrip(t *testing.T) {
	ln := fasthttputil.NewInmemoryListener()

	s := &Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("pong")
		},
		IdleTimeout: time.Second,
	}
	go serveOne(s, ln)

	c, err := ln.Dial()
	if err != nil {
		t.Fatal(err)
	}

	cl, err := NewClientConn(c, ClientOpts{IdleTimeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	defer cl.Close()

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.Header.SetMethod("GET")
	req.SetRequestURI("https://localhost/ping")

	res := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(res)

	if err := cl.Do(req, res); err != nil {
		t.Fatal(err)
	}
	if res.StatusCode() != fasthttp.StatusOK {
		t.Fatalf("unexpected status: %d", res.StatusCode())
	}
	if string(res.Body()) != "pong" {
		t.Fatalf("unexpected body: %q", res.Body())
	}
}
