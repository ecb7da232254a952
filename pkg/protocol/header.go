package protocol

import "bytes"

var (
	headerSeparator = []byte(": ")
	crlf            = []byte("\r\n")
)

// HeaderField is a single header line. After Header.Parse both slices
// reference the parsed buffer.
type HeaderField struct {
	Name  []byte
	Value []byte
}

// Header is an ordered list of header fields.
// Order is preserved on serialization and duplicate names are kept as
// separate fields. Names and values are stored exactly as given.
type Header struct {
	fields []HeaderField
}

// Len returns the number of fields.
func (h *Header) Len() int {
	return len(h.fields)
}

// At returns the field at index i.
func (h *Header) At(i int) HeaderField {
	return h.fields[i]
}

// Fields returns the fields in order. The slice is owned by the Header.
func (h *Header) Fields() []HeaderField {
	return h.fields
}

// Add appends a field.
func (h *Header) Add(name, value []byte) {
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
}

// AddString appends a field built from strings.
func (h *Header) AddString(name, value string) {
	h.Add([]byte(name), []byte(value))
}

// Insert puts a field at index i, shifting later fields.
func (h *Header) Insert(i int, f HeaderField) {
	h.fields = append(h.fields, HeaderField{})
	copy(h.fields[i+1:], h.fields[i:])
	h.fields[i] = f
}

// Remove deletes the field at index i.
func (h *Header) Remove(i int) {
	h.fields = append(h.fields[:i], h.fields[i+1:]...)
}

// Clear removes all fields, keeping the allocated capacity.
func (h *Header) Clear() {
	clear(h.fields)
	h.fields = h.fields[:0]
}

// Get returns the value of the first field whose name matches
// case-insensitively.
func (h *Header) Get(name string) ([]byte, bool) {
	for _, f := range h.fields {
		if len(f.Name) == len(name) && bytes.EqualFold(f.Name, []byte(name)) {
			return f.Value, true
		}
	}
	return nil, false
}

// Parse reads a header block from buf and returns the number of bytes
// consumed, including the blank line that ends the block.
//
// Each line must be NAME ": " VALUE CRLF. A block that starts with CRLF is
// empty. If buf ends right after a complete header line the block is taken
// as complete and all of buf is consumed. On error no fields are added.
func (h *Header) Parse(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, parseError("header", 0, ErrEmptyHeaderBlock)
	}
	if bytes.HasPrefix(buf, crlf) {
		return len(crlf), nil
	}

	committed := len(h.fields)
	pos := 0

	for pos < len(buf) {
		line := buf[pos:]
		sep := bytes.Index(line, headerSeparator)
		eol := bytes.Index(line, crlf)

		if sep < 0 || (eol >= 0 && eol < sep) {
			h.truncate(committed)
			return 0, parseError("header", pos, ErrMissingHeaderDelimiter)
		}
		if eol < 0 {
			h.truncate(committed)
			return 0, parseError("header", pos+sep, ErrMissingHeaderCRLF)
		}

		h.Add(line[:sep], line[sep+len(headerSeparator):eol])
		pos += eol + len(crlf)

		if bytes.HasPrefix(buf[pos:], crlf) {
			return pos + len(crlf), nil
		}
	}

	return pos, nil
}

// truncate drops fields added after the first n.
func (h *Header) truncate(n int) {
	clear(h.fields[n:])
	h.fields = h.fields[:n]
}

// SerializedSize returns the exact number of bytes SerializeTo writes.
func (h *Header) SerializedSize() (int, error) {
	size := 0
	var err error
	for _, f := range h.fields {
		if size, err = addSize(size, len(f.Name), len(headerSeparator)); err != nil {
			return 0, err
		}
		if size, err = addSize(size, len(f.Value), len(crlf)); err != nil {
			return 0, err
		}
	}
	return addSize(size, len(crlf))
}

// SerializeTo writes the header block, including the terminating blank
// line, to buf and returns the number of bytes written.
// buf must hold at least SerializedSize() bytes; the write is not bounds
// checked beyond what the runtime does.
func (h *Header) SerializeTo(buf []byte) int {
	n := 0
	for _, f := range h.fields {
		n += copy(buf[n:], f.Name)
		buf[n] = ':'
		buf[n+1] = ' '
		n += 2
		n += copy(buf[n:], f.Value)
		buf[n] = '\r'
		buf[n+1] = '\n'
		n += 2
	}
	buf[n] = '\r'
	buf[n+1] = '\n'
	return n + 2
}

// AppendTo appends the serialized header block to dst.
func (h *Header) AppendTo(dst []byte) ([]byte, error) {
	size, err := h.SerializedSize()
	if err != nil {
		return dst, err
	}
	start := len(dst)
	dst = grow(dst, size)
	h.SerializeTo(dst[start:])
	return dst, nil
}

// grow extends dst by n bytes, reallocating only when capacity is short.
func grow(dst []byte, n int) []byte {
	if cap(dst)-len(dst) >= n {
		return dst[:len(dst)+n]
	}
	out := make([]byte, len(dst)+n, 2*len(dst)+n)
	copy(out, dst)
	return out
}
