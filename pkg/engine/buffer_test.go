package engine

import (
	"io"
	"strings"
	"testing"
)

func TestBufferAppendPreservesBytes(t *testing.T) {
	buf := NewBuffer(8)

	parts := []string{"d-i ", "netcfg/get_hostname ", "string ", strings.Repeat("x", 100), "\n"}
	want := ""
	total := 0
	for _, p := range parts {
		buf.Append(p)
		want += p
		total += len(p)

		if buf.String() != want {
			t.Fatalf("lost bytes after append: got %q, want %q", buf.String(), want)
		}
		if buf.Len() > buf.Cap() {
			t.Fatalf("length %d exceeds capacity %d", buf.Len(), buf.Cap())
		}
	}

	if buf.Len() != total {
		t.Errorf("expected length %d, got %d", total, buf.Len())
	}
}

func TestBufferDoublesCapacity(t *testing.T) {
	buf := NewBuffer(16)

	buf.Append(strings.Repeat("a", 16))
	if buf.Cap() != 16 {
		t.Fatalf("expected capacity 16 when exactly full, got %d", buf.Cap())
	}

	buf.Append("b")
	if buf.Cap() != 32 {
		t.Errorf("expected capacity 32 after overflow, got %d", buf.Cap())
	}

	// a single large append doubles as many times as it needs
	buf.Append(strings.Repeat("c", 200))
	if buf.Cap() != 256 {
		t.Errorf("expected capacity 256, got %d", buf.Cap())
	}
	if buf.Len() != 217 {
		t.Errorf("expected length 217, got %d", buf.Len())
	}
}

func TestBufferNeverShrinks(t *testing.T) {
	buf := NewBuffer(4)
	buf.Append("12345")
	before := buf.Cap()
	buf.Append("")
	if buf.Cap() != before {
		t.Errorf("capacity changed on empty append: %d -> %d", before, buf.Cap())
	}
}

func TestBufferDefaults(t *testing.T) {
	if got := NewBuffer(0).Cap(); got != DefaultBufferSize {
		t.Errorf("expected default capacity %d, got %d", DefaultBufferSize, got)
	}

	var zero Buffer
	zero.Append("ok")
	if zero.String() != "ok" {
		t.Errorf("zero value buffer: got %q", zero.String())
	}
}

func TestBufferWriterAndAppendf(t *testing.T) {
	buf := NewBuffer(4)
	buf.Appendf("part %s --size=%d\n", "/", 1000)
	if _, err := io.WriteString(buf, "zerombr\n"); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	want := "part / --size=1000\nzerombr\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if string(buf.Bytes()) != want {
		t.Errorf("Bytes mismatch: %q", buf.Bytes())
	}
}
