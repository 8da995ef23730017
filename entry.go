package ar

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"
)

// Malformed is stored in a numeric header field whose text is not a decimal
// number. Only the size field treats malformed text as fatal. Encoders never
// write negative numbers, so a decoded -1 always means malformed text.
const Malformed = -1

// UnknownSize marks a Source whose length has not been declared.
const UnknownSize int64 = -1

// Header holds the metadata of one archive member.
type Header struct {
	Name    string // Trimmed, at most 16 bytes.
	ModTime int64  // Seconds since the epoch.
	OwnerID int
	GroupID int
	Mode    string // Octal permission digits, kept as text.
	Size    int64  // Length of the content in bytes.
}

// FileMode parses Mode as octal digits.
func (h *Header) FileMode() (fs.FileMode, error) {
	m, err := strconv.ParseUint(h.Mode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("ar: parse mode %q: %w", h.Mode, err)
	}
	return fs.FileMode(m), nil
}

// ModTimeTime returns ModTime as a time.Time.
func (h *Header) ModTimeTime() time.Time {
	return time.Unix(h.ModTime, 0)
}

// Entry is a decoded member with its content.
type Entry struct {
	Header
	Content []byte
}

// IndexEntry is a member located by an Archive. Offset is the absolute
// position of the first content byte in the underlying source.
type IndexEntry struct {
	Header
	Offset int64
}

// WriteEntry is a member handed to an Encoder. Header.Size is ignored; the
// size always comes from Content.
type WriteEntry struct {
	Header
	Content Content
}

// Content is the payload of a WriteEntry: either Bytes or Source.
type Content interface {
	isContent()
}

// Bytes is in-memory content whose length is its size.
type Bytes []byte

func (Bytes) isContent() {}

// Source is streamed content. The header is written before any content, so
// the length must be declared up front with SizedStream. The zero Source and
// one built by Stream carry no size and are rejected with ErrMissingSize.
type Source struct {
	r     io.Reader
	size  int64
	sized bool
}

func (Source) isContent() {}

// Stream wraps r as a Source with an undeclared size.
func Stream(r io.Reader) Source {
	return Source{r: r, size: UnknownSize}
}

// SizedStream wraps r as a Source that must yield exactly size bytes.
// A negative size leaves the Source undeclared.
func SizedStream(r io.Reader, size int64) Source {
	if size < 0 {
		return Stream(r)
	}
	return Source{r: r, size: size, sized: true}
}

// Size returns the declared length, or UnknownSize.
func (s Source) Size() int64 {
	if !s.sized {
		return UnknownSize
	}
	return s.size
}

type slicer []byte

func (sp *slicer) next(n int) (b []byte) {
	s := *sp
	b, *sp = s[0:n], s[n:]
	return
}

func trimField(b []byte) string {
	return strings.TrimSpace(string(b))
}

// parseNumber trims v and parses it as base 10. Blank fields read as zero.
func parseNumber(v string) int64 {
	if v == "" {
		return 0
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return Malformed
	}
	return n
}

// parseHeader decodes the six metadata fields of a HeaderSize block and
// returns the raw end marker separately so callers can decide whether to
// check it.
func parseHeader(b []byte) (Header, []byte, error) {
	s := slicer(b[:HeaderSize])
	var h Header
	h.Name = trimField(s.next(NameSize))
	h.ModTime = parseNumber(trimField(s.next(ModTimeSize)))
	h.OwnerID = int(parseNumber(trimField(s.next(OwnerIDSize))))
	h.GroupID = int(parseNumber(trimField(s.next(GroupIDSize))))
	h.Mode = trimField(s.next(ModeSize))
	rawSize := trimField(s.next(SizeSize))
	end := s.next(EndSize)

	h.Size = parseNumber(rawSize)
	if h.Size < 0 {
		return h, end, fmt.Errorf("%w: %q", ErrBadSize, rawSize)
	}
	return h, end, nil
}

// formatHeader renders h into a new HeaderSize block. Nothing is returned
// when any field overflows or a numeric field is negative.
func formatHeader(h *Header) ([]byte, error) {
	values := [len(fields)]string{
		h.Name,
		strconv.FormatInt(h.ModTime, 10),
		strconv.Itoa(h.OwnerID),
		strconv.Itoa(h.GroupID),
		h.Mode,
		strconv.FormatInt(h.Size, 10),
	}

	hdr := make([]byte, HeaderSize)
	off := 0
	for i, f := range fields {
		v := values[i]
		if f.decimal && strings.HasPrefix(v, "-") {
			return nil, &FieldError{Field: f.name, Value: v, Err: ErrNegativeField}
		}
		if len(v) > f.width {
			return nil, &FieldError{Field: f.name, Value: v}
		}
		fillField(hdr[off:off+f.width], v)
		off += f.width
	}
	copy(hdr[off:], HeaderEnd)
	return hdr, nil
}

// fillField writes contents and right pads the rest of field with spaces.
func fillField(field []byte, contents string) {
	n := copy(field, contents)
	for i := n; i < len(field); i++ {
		field[i] = ' '
	}
}

// padding returns the alignment bytes that follow content of the given size.
func padding(size int64, aligned bool) int64 {
	if aligned && size%2 != 0 {
		return 1
	}
	return 0
}
