package http2

import (
	"sort"
)

// streamStore is a sorted-by-id slice of open streams, extended from the
// teacher's original Streams into the full §4.5 StreamStore: besides
// insert/get/delete it tracks per-initiator id monotonicity and enforces
// MAX_CONCURRENT_STREAMS against peer-initiated streams.
type streamStore struct {
	list []*Stream

	maxConcurrent uint32 // SETTINGS_MAX_CONCURRENT_STREAMS we've advertised

	localOdd bool // true if this side's own stream ids are odd (client role)

	highestRemoteID       uint32
	lastProcessedRemoteID uint32
	highestLocalID        uint32

	openRemote uint32 // count of peer-initiated streams currently open
}

func newStreamStore(maxConcurrent uint32, localOdd bool) *streamStore {
	return &streamStore{maxConcurrent: maxConcurrent, localOdd: localOdd}
}

func (ss *streamStore) search(id uint32) int {
	return sort.Search(len(ss.list), func(i int) bool {
		return ss.list[i].id >= id
	})
}

// Get returns the stream with id, or nil.
func (ss *streamStore) Get(id uint32) *Stream {
	i := ss.search(id)
	if i < len(ss.list) && ss.list[i].id == id {
		return ss.list[i]
	}
	return nil
}

// GetFirstOf returns the lowest-id stream still tracked, or nil if none.
func (ss *streamStore) GetFirstOf() *Stream {
	if len(ss.list) == 0 {
		return nil
	}
	return ss.list[0]
}

func (ss *streamStore) insert(s *Stream) {
	i := ss.search(s.id)
	if i == len(ss.list) {
		ss.list = append(ss.list, s)
		return
	}
	ss.list = append(ss.list, nil)
	copy(ss.list[i+1:], ss.list[i:])
	ss.list[i] = s
}

// Del removes and returns the stream with id, or nil if not tracked.
func (ss *streamStore) Del(id uint32) *Stream {
	i := ss.search(id)
	if i < len(ss.list) && ss.list[i].id == id {
		s := ss.list[i]
		ss.list = append(ss.list[:i], ss.list[i+1:]...)
		if ss.isRemoteID(s.id) {
			ss.openRemote--
		}
		return s
	}
	return nil
}

// Len reports how many streams are currently tracked.
func (ss *streamStore) Len() int { return len(ss.list) }

// isRemoteID reports whether id belongs to the peer's id space (odd for a
// server's store, even for a client's), per RFC 7540 §5.1.1's parity rule.
func (ss *streamStore) isRemoteID(id uint32) bool {
	idOdd := id%2 == 1
	return idOdd != ss.localOdd
}

// AcceptRemote validates and registers a stream the peer just opened via
// HEADERS or PUSH_PROMISE. It enforces strictly-increasing remote ids and
// the locally-advertised concurrency ceiling (RFC 7540 §5.1.2, §6.5.2).
func (ss *streamStore) AcceptRemote(id uint32, sendInitial, recvInitial uint32) (*Stream, error) {
	if id <= ss.highestRemoteID {
		return nil, NewConnError(InitiatorLocal, ProtocolError, "non-increasing remote stream id")
	}
	if ss.openRemote >= ss.maxConcurrent {
		return nil, NewStreamError(InitiatorLocal, id, RefusedStreamError, "max concurrent streams exceeded")
	}

	s := newStream(id, sendInitial, recvInitial)
	ss.insert(s)
	ss.highestRemoteID = id
	ss.openRemote++
	return s, nil
}

// OpenLocal validates and registers a stream this side is opening (a
// request, or a pushed stream). It enforces strictly-increasing local ids.
func (ss *streamStore) OpenLocal(id uint32, sendInitial, recvInitial uint32) (*Stream, error) {
	if id <= ss.highestLocalID && ss.highestLocalID != 0 {
		return nil, NewConnError(InitiatorLocal, ProtocolError, "non-increasing local stream id")
	}

	s := newStream(id, sendInitial, recvInitial)
	ss.insert(s)
	ss.highestLocalID = id
	return s, nil
}

// MarkProcessed records id as the highest remote stream this side has
// begun processing, used to populate GOAWAY's last-stream-id.
func (ss *streamStore) MarkProcessed(id uint32) {
	if id > ss.lastProcessedRemoteID {
		ss.lastProcessedRemoteID = id
	}
}

// Each calls fn for every tracked stream in ascending id order. fn must not
// mutate the store.
func (ss *streamStore) Each(fn func(*Stream)) {
	for _, s := range ss.list {
		fn(s)
	}
}
