package http2

import "testing"

func TestStreamStoreInsertKeepsAscendingOrder(t *testing.T) {
	ss := newStreamStore(100, false)

	ids := []uint32{5, 1, 3, 7}
	for _, id := range ids {
		ss.insert(newStream(id, 65535, 65535))
	}

	if ss.Len() != len(ids) {
		t.Fatalf("unexpected length: %d", ss.Len())
	}

	var last uint32
	ss.Each(func(s *Stream) {
		if s.ID() < last {
			t.Fatalf("stream ids out of order: %d before %d", last, s.ID())
		}
		last = s.ID()
	})

	if ss.GetFirstOf().ID() != 1 {
		t.Fatalf("unexpected first stream: %d", ss.GetFirstOf().ID())
	}
}

func TestStreamStoreGetAndDel(t *testing.T) {
	ss := newStreamStore(100, false)
	s := newStream(3, 65535, 65535)
	ss.insert(s)

	if ss.Get(3) != s {
		t.Fatal("Get did not return the inserted stream")
	}
	if ss.Get(99) != nil {
		t.Fatal("Get on an untracked id should return nil")
	}

	if ss.Del(3) != s {
		t.Fatal("Del did not return the removed stream")
	}
	if ss.Len() != 0 {
		t.Fatalf("expected empty store after Del, got %d", ss.Len())
	}
	if ss.Del(3) != nil {
		t.Fatal("Del on an already-removed id should return nil")
	}
}

func TestStreamStoreAcceptRemoteEnforcesMonotonicity(t *testing.T) {
	ss := newStreamStore(100, false) // server-side store, remote ids are odd

	if _, err := ss.AcceptRemote(1, 65535, 65535); err != nil {
		t.Fatal(err)
	}
	if _, err := ss.AcceptRemote(3, 65535, 65535); err != nil {
		t.Fatal(err)
	}
	if _, err := ss.AcceptRemote(3, 65535, 65535); err == nil {
		t.Fatal("expected an error re-accepting a non-increasing remote stream id")
	}
	if _, err := ss.AcceptRemote(1, 65535, 65535); err == nil {
		t.Fatal("expected an error accepting a remote id below the high-water mark")
	}
}

func TestStreamStoreAcceptRemoteEnforcesConcurrencyLimit(t *testing.T) {
	ss := newStreamStore(1, false)

	if _, err := ss.AcceptRemote(1, 65535, 65535); err != nil {
		t.Fatal(err)
	}
	if _, err := ss.AcceptRemote(3, 65535, 65535); err == nil {
		t.Fatal("expected RefusedStreamError once MAX_CONCURRENT_STREAMS is reached")
	}

	ss.Del(1)
	if _, err := ss.AcceptRemote(3, 65535, 65535); err != nil {
		t.Fatalf("stream slot should be free again after Del: %v", err)
	}
}

func TestStreamStoreOpenLocalEnforcesMonotonicity(t *testing.T) {
	ss := newStreamStore(100, true) // client-side store, local ids are odd

	if _, err := ss.OpenLocal(1, 65535, 65535); err != nil {
		t.Fatal(err)
	}
	if _, err := ss.OpenLocal(3, 65535, 65535); err != nil {
		t.Fatal(err)
	}
	if _, err := ss.OpenLocal(1, 65535, 65535); err == nil {
		t.Fatal("expected an error opening a non-increasing local stream id")
	}
}

func TestStreamStoreMarkProcessedTracksHighWaterMark(t *testing.T) {
	ss := newStreamStore(100, false)

	ss.MarkProcessed(5)
	ss.MarkProcessed(3)
	if ss.lastProcessedRemoteID != 5 {
		t.Fatalf("MarkProcessed should keep the highest id seen, got %d", ss.lastProcessedRemoteID)
	}
	ss.MarkProcessed(9)
	if ss.lastProcessedRemoteID != 9 {
		t.Fatalf("expected 9, got %d", ss.lastProcessedRemoteID)
	}
}

func TestStreamStoreIsRemoteID(t *testing.T) {
	server := newStreamStore(100, false) // server's own ids are even
	if !server.isRemoteID(1) || server.isRemoteID(2) {
		t.Fatal("server store should treat odd ids as remote, even as local")
	}

	client := newStreamStore(100, true) // client's own ids are odd
	if !client.isRemoteID(2) || client.isRemoteID(1) {
		t.Fatal("client store should treat even ids as remote, odd as local")
	}
}
