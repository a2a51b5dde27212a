// Package lineio reassembles arbitrary byte writes into complete,
// newline-terminated lines. Process output arrives in chunks whose boundaries
// have no relation to line boundaries; the assembler buffers the unterminated
// tail of each write and prefixes it to the next one.
package lineio

import "bytes"

// EmitFunc receives each completed line, including its trailing '\n'. The
// slice is owned by the callee.
type EmitFunc func(line []byte)

// Assembler converts a sequence of byte chunks for one logical stream into
// discrete lines. It implements io.Writer so it can be handed directly to an
// exec.Cmd's Stdout or Stderr. Not safe for concurrent use; each stream gets
// its own instance and must never share buffering state with another.
type Assembler struct {
	emit EmitFunc
	tail []byte // buffered bytes after the last newline; never contains '\n'
}

// NewAssembler creates an assembler delivering completed lines to emit.
func NewAssembler(emit EmitFunc) *Assembler {
	return &Assembler{emit: emit}
}

// Write scans p for line terminators and emits every line completed by this
// chunk. Only the new bytes are scanned, so total cost is linear in bytes
// written regardless of how fragmented the input is. Write never fails; a
// logging sink must not be able to break the producing process.
func (a *Assembler) Write(p []byte) (int, error) {
	data := p
	for {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			break
		}

		line := make([]byte, 0, len(a.tail)+i+1)
		line = append(line, a.tail...)
		line = append(line, data[:i+1]...)
		a.tail = a.tail[:0]
		data = data[i+1:]

		a.emit(line)
	}

	a.tail = append(a.tail, data...)
	return len(p), nil
}

// Pending returns the number of buffered bytes awaiting a terminator.
func (a *Assembler) Pending() int {
	return len(a.tail)
}

// Flush emits any buffered unterminated fragment as a final line without a
// trailing terminator. The runner deliberately does not call this at process
// exit; framing stays best-effort and a trailing fragment is dropped unless a
// caller explicitly forces it out.
func (a *Assembler) Flush() {
	if len(a.tail) == 0 {
		return
	}
	line := make([]byte, len(a.tail))
	copy(line, a.tail)
	a.tail = a.tail[:0]
	a.emit(line)
}
