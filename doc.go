// Package http2 implements the connection-level engine of RFC 7540: frame
// codec, HPACK header compression, flow control, the stream lifecycle state
// machine and a single-threaded connection driver usable from either a
// client or a server role.
//
// The package deliberately stops at the byte transport and the HTTP message
// model: callers hand it a net.Conn and an opaque, ordered header list, and
// get back Stream handles they read and write through.
package http2
