package http2

import (
	"crypto/tls"
	"net"

	"github.com/valyala/fasthttp"
)

// ConfigureClient wires c to dial its upstream over HTTP/2 whenever the peer
// negotiates "h2", the same TLSConfig/Transport hook fasthttp.HostClient
// exposes for swapping in an alternate protocol.
func ConfigureClient(c *fasthttp.HostClient) error {
	tlsConfig := c.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS13,
		}
	}

	emptyServerName := len(tlsConfig.ServerName) == 0
	if emptyServerName {
		host, _, err := net.SplitHostPort(c.Addr)
		if err != nil {
			host = c.Addr
		}
		tlsConfig.ServerName = host
	}

	tlsConfig.NextProtos = append(tlsConfig.NextProtos, H2TLSProto)

	cl, err := Dial(c.Addr, tlsConfig)
	if err != nil {
		if err == ErrServerSupport && c.TLSConfig != nil { // remove added config settings
			tlsConfig.NextProtos = tlsConfig.NextProtos[:len(tlsConfig.NextProtos)-1]
			if emptyServerName {
				tlsConfig.ServerName = ""
			}
		}
		return err
	}

	c.IsTLS = true
	c.TLSConfig = tlsConfig
	c.Transport = transportFunc(cl)

	return nil
}

// transportFunc adapts cl into the fasthttp.HostClient.Transport hook.
func transportFunc(cl *Client) fasthttp.TransportFunc {
	return func(req *fasthttp.Request, res *fasthttp.Response) error {
		return cl.Do(req, res)
	}
}
