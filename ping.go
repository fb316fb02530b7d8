package http2

import (
	"encoding/binary"
	"sync"
	"time"
)

const FramePing FrameType = 0x6

var _ Frame = &Ping{}

var pingPool = sync.Pool{
	New: func() interface{} {
		return &Ping{}
	},
}

func acquirePing() *Ping {
	return pingPool.Get().(*Ping)
}

func releasePing(p *Ping) {
	p.Reset()
	pingPool.Put(p)
}

// Ping ...
//
// https://tools.ietf.org/html/rfc7540#section-6.7
type Ping struct {
	ack  bool
	data [8]byte
}

func (ping *Ping) Type() FrameType {
	return FramePing
}

// Reset ...
func (ping *Ping) Reset() {
	ping.ack = false
}

// CopyTo ...
func (ping *Ping) CopyTo(p *Ping) {
	p.ack = ping.ack
}

// Write ...
func (ping *Ping) Write(b []byte) (n int, err error) {
	copy(ping.data[:], b)
	return
}

// SetData ...
func (ping *Ping) SetData(b []byte) {
	copy(ping.data[:], b)
}

// Deserialize ...
func (ping *Ping) Deserialize(frh *FrameHeader) error {
	ping.ack = frh.Flags().Has(FlagAck)
	ping.SetData(frh.payload)
	return nil
}

func (ping *Ping) Data() []byte {
	return ping.data[:]
}

// IsAck reports whether the ACK flag is set.
func (ping *Ping) IsAck() bool { return ping.ack }

// SetAck sets or clears the ACK flag.
func (ping *Ping) SetAck(v bool) { ping.ack = v }

// SetCurrentTime stamps the payload with time.Now(), so a later DataAsTime
// on the peer's ACK measures round-trip time.
func (ping *Ping) SetCurrentTime() {
	binary.BigEndian.PutUint64(ping.data[:], uint64(time.Now().UnixNano()))
}

// DataAsTime interprets the payload as a timestamp written by SetCurrentTime.
func (ping *Ping) DataAsTime() time.Time {
	return time.Unix(0, int64(binary.BigEndian.Uint64(ping.data[:])))
}

// Serialize ...
func (ping *Ping) Serialize(fr *FrameHeader) {
	if ping.ack {
		fr.SetFlags(fr.Flags().Add(FlagAck))
	}

	fr.setPayload(ping.data[:])
}
