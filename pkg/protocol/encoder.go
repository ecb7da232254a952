package protocol

// Serializable is implemented by Header, Request and Response.
type Serializable interface {
	SerializedSize() (int, error)
	SerializeTo(buf []byte) int
}

// Encoder is a reusable output buffer for serialized messages.
// Its backing array only grows, so encoding into a warm Encoder does not
// allocate.
type Encoder struct {
	buf []byte
}

// NewEncoder creates a new encoder with a default initial capacity.
func NewEncoder() *Encoder {
	return NewEncoderWithCap(DefaultInitialBufferSize)
}

// NewEncoderWithCap creates a new encoder with the specified initial capacity.
func NewEncoderWithCap(cap int) *Encoder {
	return &Encoder{
		buf: make([]byte, 0, cap),
	}
}

// Reset empties the encoder, reusing the underlying buffer.
func (e *Encoder) Reset() {
	e.buf = e.buf[:0]
}

// Bytes returns the encoded bytes. The returned slice is valid until
// the next call to Reset or Encode.
func (e *Encoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes currently encoded.
func (e *Encoder) Len() int {
	return len(e.buf)
}

// Cap returns the capacity of the underlying buffer.
func (e *Encoder) Cap() int {
	return cap(e.buf)
}

// Encode replaces the encoder contents with the serialized form of m.
// It fails with ErrSizeOverflow if the size does not fit in an int and
// with ErrSizeMismatch if m writes a different number of bytes than it
// reported. On error the encoder is left empty.
func (e *Encoder) Encode(m Serializable) ([]byte, error) {
	e.Reset()
	size, err := m.SerializedSize()
	if err != nil {
		return nil, err
	}
	if cap(e.buf) < size {
		e.buf = make([]byte, 0, size)
	}
	out := e.buf[:size]
	if n := m.SerializeTo(out); n != size {
		return nil, ErrSizeMismatch
	}
	e.buf = out
	return e.buf, nil
}
