package http2

import (
	"bufio"
	"bytes"
	"testing"
)

const testStr = "make fasthttp great again"

func TestFrameHeaderWriteRead(t *testing.T) {
	bf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(bf)

	frh := AcquireFrameHeader()
	frh.SetStream(3)
	data := AcquireFrame(FrameData).(*Data)
	data.SetData([]byte(testStr))
	data.SetEndStream(true)
	frh.SetBody(data)

	if _, err := frh.WriteTo(bw); err != nil {
		t.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}
	ReleaseFrameHeader(frh)

	br := bufio.NewReader(bf)
	got, err := ReadFrameFrom(br)
	if err != nil {
		t.Fatal(err)
	}
	defer ReleaseFrameHeader(got)

	if got.Type() != FrameData {
		t.Fatalf("unexpected type: %d", got.Type())
	}
	if got.Stream() != 3 {
		t.Fatalf("unexpected stream id: %d", got.Stream())
	}

	gotData := got.Body().(*Data)
	if string(gotData.Data()) != testStr {
		t.Fatalf("mismatch %q<>%q", gotData.Data(), testStr)
	}
	if !gotData.EndStream() {
		t.Fatal("expected END_STREAM flag")
	}
}

func TestFrameHeaderRejectsOversizedPayload(t *testing.T) {
	bf := bytes.NewBuffer(nil)
	bw := bufio.NewWriter(bf)

	frh := AcquireFrameHeader()
	frh.SetStream(1)
	data := AcquireFrame(FrameData).(*Data)
	data.SetData(bytes.Repeat([]byte{'a'}, 32))
	frh.SetBody(data)

	if _, err := frh.WriteTo(bw); err != nil {
		t.Fatal(err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatal(err)
	}
	ReleaseFrameHeader(frh)

	br := bufio.NewReader(bf)
	_, err := ReadFrameFromWithSize(br, 16)
	if err != ErrPayloadExceeds {
		t.Fatalf("expected ErrPayloadExceeds, got %v", err)
	}
}
