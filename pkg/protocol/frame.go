package protocol

import (
	"errors"
	"io"
)

// Terminator scanner states.
const (
	stateNoMatch uint8 = iota
	stateCR
	stateCRLF
	stateCRLFCR
	stateFound
)

// TerminatorScanner finds the CRLF CRLF sequence that ends a header block.
// It keeps its state between calls to Scan, so a terminator split across
// several reads is still found.
//
// The zero value is ready to use.
type TerminatorScanner struct {
	state uint8
}

// Scan feeds p to the scanner. If the terminator completes inside p it
// returns the offset just past it and true. Once found, further calls
// return (0, true) until Reset.
func (s *TerminatorScanner) Scan(p []byte) (int, bool) {
	if s.state == stateFound {
		return 0, true
	}
	for i, c := range p {
		switch s.state {
		case stateNoMatch:
			if c == '\r' {
				s.state = stateCR
			}
		case stateCR:
			switch c {
			case '\n':
				s.state = stateCRLF
			case '\r':
				s.state = stateCR
			default:
				s.state = stateNoMatch
			}
		case stateCRLF:
			if c == '\r' {
				s.state = stateCRLFCR
			} else {
				s.state = stateNoMatch
			}
		case stateCRLFCR:
			switch c {
			case '\n':
				s.state = stateFound
				return i + 1, true
			case '\r':
				s.state = stateCR
			default:
				s.state = stateNoMatch
			}
		}
	}
	return 0, false
}

// Found reports whether the terminator has been seen.
func (s *TerminatorScanner) Found() bool {
	return s.state == stateFound
}

// Reset returns the scanner to its initial state.
func (s *TerminatorScanner) Reset() {
	s.state = stateNoMatch
}

// MessageReader reads one message at a time from a stream into a buffer it
// owns and reuses. A message ends at the first CRLF CRLF; nothing after
// the read that contained it is consumed.
//
// A MessageReader is not safe for concurrent use.
type MessageReader struct {
	limits  MessageLimits
	buf     []byte
	scanner TerminatorScanner
}

// NewMessageReader creates a reader. Zero fields in limits take defaults.
func NewMessageReader(limits MessageLimits) *MessageReader {
	return &MessageReader{limits: limits.normalize()}
}

// Limits returns the effective limits.
func (m *MessageReader) Limits() MessageLimits {
	return m.limits
}

// Cap returns the current size of the receive buffer.
func (m *MessageReader) Cap() int {
	return len(m.buf)
}

// ReadMessage reads from r until the header terminator has arrived and
// returns every byte read, including any body bytes that came in the same
// read as the terminator. The returned slice is only valid until the next
// call to ReadMessage.
//
// It returns io.EOF if r ends before any byte is read,
// io.ErrUnexpectedEOF if r ends mid-message and ErrMessageTooLarge if
// the message does not fit in MaxSize.
func (m *MessageReader) ReadMessage(r io.Reader) ([]byte, error) {
	if m.buf == nil {
		m.buf = make([]byte, m.limits.InitialSize)
	}
	m.scanner.Reset()

	n := 0
	for {
		if n == len(m.buf) {
			if err := m.grow(); err != nil {
				return nil, err
			}
		}

		end := min(n+m.limits.ChunkSize, len(m.buf))
		read, err := r.Read(m.buf[n:end])
		if read > 0 {
			_, found := m.scanner.Scan(m.buf[n : n+read])
			n += read
			if found {
				return m.buf[:n], nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				if n == 0 {
					return nil, io.EOF
				}
				return nil, io.ErrUnexpectedEOF
			}
			return nil, err
		}
	}
}

// grow extends the buffer by one growth step, keeping its contents.
func (m *MessageReader) grow() error {
	if len(m.buf) >= m.limits.MaxSize {
		return ErrMessageTooLarge
	}
	size := min(len(m.buf)+m.limits.GrowthStep, m.limits.MaxSize)
	buf := make([]byte, size)
	copy(buf, m.buf)
	m.buf = buf
	return nil
}
