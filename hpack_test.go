package http2

import (
	"testing"
)

func TestAppendIntSmall(t *testing.T) {
	dst := appendInt(nil, 5, 10, 0)
	if len(dst) != 1 || dst[0] != 10 {
		t.Fatalf("unexpected encoding: %v", dst)
	}
}

func TestAppendIntLarge(t *testing.T) {
	dst := appendInt(nil, 5, 1337, 0)
	rest, got, err := readInt(5, dst)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1337 {
		t.Fatalf("got %d, want 1337", got)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected leftover bytes: %v", rest)
	}
}

func TestReadIntRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 15, 127, 128, 1337, 1 << 20} {
		dst := appendInt(nil, 7, n, 0)
		rest, got, err := readInt(7, dst)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if got != n {
			t.Fatalf("n=%d: got %d", n, got)
		}
		if len(rest) != 0 {
			t.Fatalf("n=%d: unexpected leftover %v", n, rest)
		}
	}
}

func TestAppendStringHuffmanRoundTrip(t *testing.T) {
	src := []byte("www.example.com")
	dst := appendString(nil, src)

	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)

	rest, err := readString(dst, hf)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected leftover bytes: %v", rest)
	}
	if string(hf.key) != string(src) {
		t.Fatalf("got %q, want %q", hf.key, src)
	}
}

func TestHPACKEncodeDecodeStaticIndexed(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)
	hf.SetBytes(StringMethod, []byte("GET"))

	dst := enc.AppendHeader(nil, hf, true)

	dec.ResetBlock()
	got := AcquireHeaderField()
	defer ReleaseHeaderField(got)

	rest, err := dec.Next(got, dst)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 0 {
		t.Fatalf("unexpected leftover bytes: %v", rest)
	}
	if got.Key() != ":method" || got.Value() != "GET" {
		t.Fatalf("unexpected field: %s=%s", got.Key(), got.Value())
	}
}

func TestHPACKEncodeDecodeLiteralWithIndexing(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)
	hf.Set("x-custom-header", "custom-value")

	dst := enc.AppendHeader(nil, hf, true)

	fields, err := dec.Decode(nil, dst)
	if err != nil {
		t.Fatal(err)
	}
	defer releaseHeaderFields(fields)

	if len(fields) != 1 {
		t.Fatalf("unexpected field count: %d", len(fields))
	}
	if fields[0].Key() != "x-custom-header" || fields[0].Value() != "custom-value" {
		t.Fatalf("unexpected field: %s=%s", fields[0].Key(), fields[0].Value())
	}

	// the field was indexed, so a second identical header is encoded as a
	// pure indexed reference against the dynamic table.
	before := len(dst)
	dst2 := enc.AppendHeader(nil, hf, true)
	if len(dst2) >= before {
		t.Fatalf("expected a shorter indexed reference, got %d bytes (first was %d)", len(dst2), before)
	}
}

func TestHPACKSensitiveFieldNeverIndexed(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	hf := AcquireHeaderField()
	defer ReleaseHeaderField(hf)
	hf.Set("authorization", "secret-token")
	hf.sensible = true

	dst := enc.AppendHeader(nil, hf, true)

	fields, err := dec.Decode(nil, dst)
	if err != nil {
		t.Fatal(err)
	}
	defer releaseHeaderFields(fields)

	if len(fields) != 1 || fields[0].Value() != "secret-token" {
		t.Fatalf("unexpected decode result: %+v", fields)
	}
	if len(dec.dynamic) != 0 {
		t.Fatalf("sensitive field must not enter the dynamic table")
	}
}

func TestHPACKDynamicTableEviction(t *testing.T) {
	hp := AcquireHPACK()
	defer ReleaseHPACK(hp)

	hp.SetMaxTableSize(64)

	for i := 0; i < 10; i++ {
		hf := AcquireHeaderField()
		hf.Set("x-header", "0123456789")
		hp.insert(hf)
		ReleaseHeaderField(hf)
	}

	if hp.dynamicSize > 64 {
		t.Fatalf("dynamic table exceeds configured ceiling: %d > 64", hp.dynamicSize)
	}
}

func TestHPACKMultiFieldBlockRoundTrip(t *testing.T) {
	enc := AcquireHPACK()
	dec := AcquireHPACK()
	defer ReleaseHPACK(enc)
	defer ReleaseHPACK(dec)

	want := []struct{ k, v string }{
		{":method", "POST"},
		{":scheme", "https"},
		{":path", "/hello/world"},
		{":authority", "localhost"},
		{"content-length", "11"},
	}

	var dst []byte
	for _, kv := range want {
		hf := AcquireHeaderField()
		hf.Set(kv.k, kv.v)
		dst = enc.AppendHeader(dst, hf, true)
		ReleaseHeaderField(hf)
	}

	fields, err := dec.Decode(nil, dst)
	if err != nil {
		t.Fatal(err)
	}
	defer releaseHeaderFields(fields)

	if len(fields) != len(want) {
		t.Fatalf("unexpected field count: %d", len(fields))
	}
	for i, kv := range want {
		if fields[i].Key() != kv.k || fields[i].Value() != kv.v {
			t.Fatalf("field %d: got %s=%s, want %s=%s", i, fields[i].Key(), fields[i].Value(), kv.k, kv.v)
		}
	}
}
