// Package buffer implements the half-duplex byte buffer at the core of the
// recorder's event loop: a fixed-capacity array that is either draining a
// read end into itself or draining itself into a write end, never both, plus
// the annotation-framing routines used to build the recorder log.
package buffer

import (
	"os"

	"golang.org/x/sys/unix"
)

// Capacity is the size of a buffer's backing array, matching iolog.c's
// BUF_SIZE.
const Capacity = 2048

// Op is the half-duplex state of a Buffer.
type Op int

const (
	OpIdle Op = iota
	OpRead
	OpWrite
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	default:
		return "idle"
	}
}

// Buffer is a bounded byte buffer with exactly one read end and one write
// end, and a current direction of travel (Op). Stream buffers (stdin,
// stdout, stderr) start idle and are driven into OpRead once both ends are
// attached; the log buffer is pinned to OpWrite for its entire life.
type Buffer struct {
	Name string
	Sign byte

	data [Capacity]byte
	size int
	off  int
	op   Op

	readEnd, writeEnd             *os.File
	readBorrowed, writeBorrowed   bool

	// logTag is the last annotation tag written, used only by the log
	// buffer's framing routines. '?' is the "no open frame" sentinel,
	// matching iolog.c's static log_c.
	logTag byte
}

// NewStream creates an idle stream buffer (stdin/stdout/stderr) identified
// by sign, the tag byte used when its bytes are mirrored into the log.
func NewStream(name string, sign byte) *Buffer {
	return &Buffer{Name: name, Sign: sign, op: OpIdle}
}

// NewLog creates the log buffer, permanently in OpWrite with no open frame.
func NewLog(name string) *Buffer {
	return &Buffer{Name: name, Sign: '=', op: OpWrite, logTag: '?'}
}

// Start sets the buffer's direction once both of its ends are attached.
func (b *Buffer) Start(op Op) { b.op = op }

func (b *Buffer) Op() Op { return b.op }

// AttachRead assigns the buffer's read end. borrowed marks an end this
// buffer does not own (e.g. the process's real stdin), which is never
// closed by this buffer.
func (b *Buffer) AttachRead(f *os.File, borrowed bool) error {
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		return err
	}
	b.readEnd = f
	b.readBorrowed = borrowed
	return nil
}

// AttachWrite assigns the buffer's write end, with the same borrowing rule
// as AttachRead.
func (b *Buffer) AttachWrite(f *os.File, borrowed bool) error {
	if err := unix.SetNonblock(int(f.Fd()), true); err != nil {
		return err
	}
	b.writeEnd = f
	b.writeBorrowed = borrowed
	return nil
}

func (b *Buffer) readFD() (int, bool) {
	if b.readEnd == nil {
		return 0, false
	}
	return int(b.readEnd.Fd()), true
}

func (b *Buffer) writeFD() (int, bool) {
	if b.writeEnd == nil {
		return 0, false
	}
	return int(b.writeEnd.Fd()), true
}

// WantRead reports the descriptor this buffer wants to poll for
// readability, if it is currently in OpRead.
func (b *Buffer) WantRead() (int, bool) {
	if b.op != OpRead {
		return 0, false
	}
	return b.readFD()
}

// WantWrite reports the descriptor this buffer wants to poll for
// writability, if it is currently in OpWrite and has a write end. It does
// not check for pending bytes: a drained buffer parked in OpWrite is still
// armed.
func (b *Buffer) WantWrite() (int, bool) {
	if b.op != OpWrite {
		return 0, false
	}
	return b.writeFD()
}

// DoRead performs one non-blocking read attempt. It returns the number of
// bytes read (0 if nothing happened, including on EAGAIN/EINTR). A read
// returning 0 bytes or an unexpected error closes both ends and idles the
// buffer.
func (b *Buffer) DoRead() int {
	fd, ok := b.readFD()
	if !ok {
		return 0
	}
	n, err := unix.Read(fd, b.data[:])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0
		}
		b.closeBoth()
		b.op = OpIdle
		return 0
	}
	if n <= 0 {
		b.closeBoth()
		b.op = OpIdle
		return 0
	}
	b.size = n
	b.off = 0
	if _, ok := b.writeFD(); ok {
		b.op = OpWrite
	} else {
		// No write end to drain into: drop the payload. data still
		// holds the bytes, so the caller can mirror them to the log
		// through Bytes(n) after this returns.
		b.size = 0
	}
	return n
}

// DoWrite performs one non-blocking write attempt of the buffer's pending
// bytes. It returns the number of bytes written (0 if nothing happened).
func (b *Buffer) DoWrite() int {
	fd, ok := b.writeFD()
	if !ok {
		return 0
	}
	if b.off >= b.size {
		return 0
	}
	n, err := unix.Write(fd, b.data[b.off:b.size])
	if err != nil {
		if err == unix.EAGAIN || err == unix.EINTR {
			return 0
		}
		b.closeBoth()
		b.op = OpIdle
		return 0
	}
	if n <= 0 {
		b.closeBoth()
		b.op = OpIdle
		return 0
	}
	b.off += n
	if b.off >= b.size {
		b.size, b.off = 0, 0
		if _, ok := b.readFD(); ok {
			b.op = OpRead
		}
	}
	return n
}

func (b *Buffer) closeRead() {
	if b.readEnd == nil {
		return
	}
	if !b.readBorrowed {
		b.readEnd.Close()
	}
	b.readEnd = nil
}

func (b *Buffer) closeWrite() {
	if b.writeEnd == nil {
		return
	}
	if b.op == OpWrite && b.off < b.size {
		fd := int(b.writeEnd.Fd())
		unix.Write(fd, b.data[b.off:b.size])
		if b.Sign == '=' {
			unix.Write(fd, []byte("\n"))
		}
	}
	if !b.writeBorrowed {
		b.writeEnd.Close()
	}
	b.writeEnd = nil
}

func (b *Buffer) closeBoth() {
	b.closeRead()
	b.closeWrite()
}

// Close closes whichever ends this buffer still owns, flushing any pending
// bytes to the write end first.
func (b *Buffer) Close() { b.closeBoth() }

// CloseRead closes this buffer's read end unconditionally, used when the
// engine decides stdin should stop forwarding because the child is gone.
func (b *Buffer) CloseRead() { b.closeRead() }

// CloseIfGone probes both ends with fstat and closes whichever one no
// longer resolves to a valid descriptor, the opportunistic descriptor-loss
// detection iolog.c performs every loop iteration.
func (b *Buffer) CloseIfGone() {
	if b.readEnd != nil {
		var st unix.Stat_t
		if unix.Fstat(int(b.readEnd.Fd()), &st) != nil {
			b.closeRead()
		}
	}
	if b.writeEnd != nil {
		var st unix.Stat_t
		if unix.Fstat(int(b.writeEnd.Fd()), &st) != nil {
			b.closeWrite()
		}
	}
}

// CanProgress reports whether this buffer could still make progress: more
// bytes might arrive (OpRead with a live read end), or there are bytes
// still queued to flush (OpWrite with a live write end and pending data).
// A buffer parked in OpWrite with nothing pending (its read end was lost
// mid-drain) is finished, not merely idle.
func (b *Buffer) CanProgress() bool {
	switch b.op {
	case OpRead:
		return b.readEnd != nil
	case OpWrite:
		return b.writeEnd != nil && b.HasPending()
	default:
		return false
	}
}

// HasPending reports whether the buffer holds bytes not yet written out.
func (b *Buffer) HasPending() bool { return b.off < b.size }

// WriteOpen reports whether the buffer still has a write end attached.
func (b *Buffer) WriteOpen() bool { return b.writeEnd != nil }

// Bytes returns the n most recently read bytes, for mirroring into the log
// buffer. Valid only immediately after a DoRead call that returned n.
func (b *Buffer) Bytes(n int) []byte { return b.data[:n] }

// AppendTagged appends p to the buffer framed under the given tag: a
// "\n<tag><tag> " prefix is emitted whenever the tag changes, and bare LF
// bytes within p close the current frame without being copied, matching
// iolog.c's log_add. Bytes are silently dropped once the buffer is full.
func (b *Buffer) AppendTagged(sign byte, p []byte) {
	for _, c := range p {
		if b.size >= Capacity {
			return
		}
		if sign != b.logTag {
			prefix := [4]byte{'\n', sign, sign, ' '}
			for _, pc := range prefix {
				if b.size >= Capacity {
					return
				}
				b.data[b.size] = pc
				b.size++
			}
			b.logTag = sign
		}
		if c == '\n' {
			b.logTag = '?'
			continue
		}
		b.data[b.size] = c
		b.size++
	}
}

// AppendRaw appends p verbatim with no framing, matching iolog.c's
// log_add_internal. Bytes are silently dropped once the buffer is full.
func (b *Buffer) AppendRaw(p []byte) {
	for _, c := range p {
		if b.size >= Capacity {
			return
		}
		b.data[b.size] = c
		b.size++
	}
}
