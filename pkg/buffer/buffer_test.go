package buffer

import (
	"os"
	"testing"
)

func TestAppendTaggedFramesOnTagSwitch(t *testing.T) {
	b := NewLog("log")
	f, err := os.CreateTemp(t.TempDir(), "log")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := b.AttachWrite(f, false); err != nil {
		t.Fatal(err)
	}

	b.AppendTagged('<', []byte("hi"))
	b.AppendTagged('<', []byte("there"))
	b.AppendTagged('>', []byte("ok"))

	got := string(b.data[:b.size])
	want := "\n<< hithere\n>> ok"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendTaggedElidesNewlineAndClosesFrame(t *testing.T) {
	b := NewLog("log")
	b.AppendTagged('<', []byte("a\nb"))
	got := string(b.data[:b.size])
	want := "\n<< a\n<< b"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendTaggedDropsBytesPastCapacity(t *testing.T) {
	b := NewLog("log")
	huge := make([]byte, Capacity*2)
	for i := range huge {
		huge[i] = 'x'
	}
	b.AppendTagged('<', huge)
	if b.size != Capacity {
		t.Fatalf("size = %d, want %d", b.size, Capacity)
	}
}

func TestAppendRawDoesNotFrame(t *testing.T) {
	b := NewLog("log")
	b.AppendTagged('<', []byte("x"))
	sizeBefore := b.size
	b.AppendRaw([]byte("\n"))
	if b.size != sizeBefore+1 {
		t.Fatalf("size = %d, want %d", b.size, sizeBefore+1)
	}
	if b.data[b.size-1] != '\n' {
		t.Fatalf("last byte = %q, want newline", b.data[b.size-1])
	}
}

func TestStreamBufferReadWriteCycle(t *testing.T) {
	srcR, srcW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	dstR, dstW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer srcR.Close()
	defer dstW.Close()

	b := NewStream("stream", '<')
	if err := b.AttachRead(srcR, false); err != nil {
		t.Fatal(err)
	}
	if err := b.AttachWrite(dstW, false); err != nil {
		t.Fatal(err)
	}
	b.Start(OpRead)

	if _, err := srcW.Write([]byte("payload")); err != nil {
		t.Fatal(err)
	}
	srcW.Close()

	if n := b.DoRead(); n != len("payload") {
		t.Fatalf("DoRead() = %d, want %d", n, len("payload"))
	}
	if b.Op() != OpWrite {
		t.Fatalf("Op() = %v, want OpWrite", b.Op())
	}

	if n := b.DoWrite(); n != len("payload") {
		t.Fatalf("DoWrite() = %d, want %d", n, len("payload"))
	}
	if b.Op() != OpRead {
		t.Fatalf("Op() = %v, want OpRead after drain", b.Op())
	}

	dstW.Close()
	out := make([]byte, 16)
	n, err := dstR.Read(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(out[:n]) != "payload" {
		t.Fatalf("got %q", out[:n])
	}
}

func TestDoReadEOFIdlesBuffer(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	w.Close()

	b := NewStream("stream", '<')
	if err := b.AttachRead(r, false); err != nil {
		t.Fatal(err)
	}
	b.Start(OpRead)

	if n := b.DoRead(); n != 0 {
		t.Fatalf("DoRead() = %d, want 0 on EOF", n)
	}
	if b.Op() != OpIdle {
		t.Fatalf("Op() = %v, want OpIdle", b.Op())
	}
	if b.CanProgress() {
		t.Fatalf("CanProgress() = true after EOF close")
	}
}

func TestCanProgressFalseWhenWriteDrainedAndReadGone(t *testing.T) {
	dstR, dstW, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer dstR.Close()

	b := NewStream("stream", '<')
	if err := b.AttachWrite(dstW, false); err != nil {
		t.Fatal(err)
	}
	b.data[0] = 'x'
	b.size = 1
	b.off = 0
	b.Start(OpWrite)

	if n := b.DoWrite(); n != 1 {
		t.Fatalf("DoWrite() = %d, want 1", n)
	}
	if b.CanProgress() {
		t.Fatalf("CanProgress() = true for a drained buffer with no read end")
	}
}

func TestBorrowedEndNeverClosed(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	b := NewStream("stream", '<')
	if err := b.AttachRead(r, true); err != nil {
		t.Fatal(err)
	}
	b.Close()

	if _, err := r.Stat(); err != nil {
		t.Fatalf("borrowed end was closed by Buffer.Close: %v", err)
	}
}
