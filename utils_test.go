package http2

import (
	"testing"

	"github.com/kressh/h2proto/http2utils"
)

func TestCutPaddingRoundTrip(t *testing.T) {
	orig := []byte("8971293nfasv7asnrnqw9bma 237urkf8KifgiMKFG98UIM8fgnb kifgnrA7JKLK")

	padded := http2utils.AddPadding(orig)

	got, err := http2utils.CutPadding(padded, len(padded))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(orig) {
		t.Fatalf("mismatch %q<>%q", got, orig)
	}
}

func TestCutPaddingRejectsTruncated(t *testing.T) {
	_, err := http2utils.CutPadding([]byte{20}, 1)
	if err != http2utils.ErrPadding {
		t.Fatalf("expected ErrPadding, got %v", err)
	}
}

func BenchmarkCutPadding(b *testing.B) {
	padded := http2utils.AddPadding([]byte("8971293nfasv7asnrnqw9bma 237urkf8KifgiMKFG98UIM8fgnb kifgnrA7JKLK"))

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		p, err := http2utils.CutPadding(padded, len(padded))
		if err != nil || len(p) == 0 {
			b.Fatal("wrong cutting")
		}
	}
}
