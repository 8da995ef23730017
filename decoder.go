package ar

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
)

var errFeedAfterClose = errors.New("ar: feed after close")

type decodeState int

const (
	stateMagic decodeState = iota
	stateHeader
	stateContent
)

// Decoder turns an archive byte stream, delivered in chunks of any size, into
// entries. It is single use: the first error ends it, and every later call
// returns that error.
type Decoder struct {
	opts   options
	state  decodeState
	buf    []byte // unconsumed bytes
	need   int64  // buffered bytes required before the next parse attempt
	skip   int64  // alignment bytes to drop before the next header
	pos    int64  // stream offset of buf[0]
	header Header // header of the entry whose content is pending
	err    error
}

func NewDecoder(opts ...Option) *Decoder {
	return newDecoder(newOptions(opts))
}

func newDecoder(o options) *Decoder {
	return &Decoder{opts: o, state: stateMagic, need: MagicSize}
}

// Feed appends chunk to the buffered input and returns every entry that can
// be completed from it, in stream order. Entries completed before a fatal
// error are returned along with the error.
func (d *Decoder) Feed(chunk []byte) ([]Entry, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.buf = append(d.buf, chunk...)
	if int64(len(d.buf)) < d.need {
		return nil, nil
	}
	entries, err := d.parse()
	if err != nil {
		d.err = err
	}
	return entries, err
}

// Close reports whether the input ended on an entry boundary. A stream too
// short to hold the magic fails with ErrBadMagic; a cut header or content
// fails with io.ErrUnexpectedEOF.
func (d *Decoder) Close() error {
	if d.err != nil {
		if d.err == errFeedAfterClose {
			return nil
		}
		return d.err
	}
	var err error
	switch d.state {
	case stateMagic:
		err = fmt.Errorf("%w: stream ended after %d bytes", ErrBadMagic, len(d.buf))
	case stateContent:
		err = fmt.Errorf("ar: content of %q at %d: %w", d.header.Name, d.pos, io.ErrUnexpectedEOF)
	case stateHeader:
		if int64(len(d.buf)) > d.skip {
			err = fmt.Errorf("ar: header at %d: %w", d.pos+d.skip, io.ErrUnexpectedEOF)
		}
	}
	if err != nil {
		d.err = err
		return err
	}
	d.err = errFeedAfterClose
	d.buf = nil
	return nil
}

func (d *Decoder) parse() ([]Entry, error) {
	var out []Entry
	off := int64(0)
	avail := func() int64 { return int64(len(d.buf)) - off }
	defer d.release(&off)

loop:
	for {
		switch d.state {
		case stateMagic:
			if avail() < MagicSize {
				break loop
			}
			magic := d.buf[off : off+MagicSize]
			if string(magic) != Magic {
				return out, fmt.Errorf("%w: %q at %d", ErrBadMagic, magic, d.pos+off)
			}
			off += MagicSize
			d.state, d.need = stateHeader, HeaderSize
		case stateHeader:
			if avail() < d.skip+HeaderSize {
				break loop
			}
			off += d.skip
			d.skip = 0
			h, end, err := parseHeader(d.buf[off:])
			if err != nil {
				return out, fmt.Errorf("header at %d: %w", d.pos+off, err)
			}
			if string(end) != HeaderEnd {
				return out, fmt.Errorf("%w: %q at %d", ErrBadHeaderEnd, end, d.pos+off+HeaderSize-EndSize)
			}
			off += HeaderSize
			d.header = h
			d.state, d.need = stateContent, h.Size
		case stateContent:
			if avail() < d.need {
				break loop
			}
			content := bytes.Clone(d.buf[off : off+d.need])
			off += d.need
			out = append(out, Entry{Header: d.header, Content: content})
			d.opts.logger.Debug("decoded", "name", d.header.Name, "size", d.header.Size, "offset", d.pos+off-d.need)
			d.skip = padding(d.header.Size, d.opts.aligned)
			d.header = Header{}
			d.state, d.need = stateHeader, d.skip+HeaderSize
		}
	}
	return out, nil
}

// release drops the first off bytes of the buffer. Emitted content is a copy,
// so the buffer is compacted in place.
func (d *Decoder) release(off *int64) {
	if *off == 0 {
		return
	}
	n := copy(d.buf, d.buf[*off:])
	d.buf = d.buf[:n]
	d.pos += *off
}

// Reader provides sequential access to the entries of an archive read from
// an io.Reader.
type Reader struct {
	r     io.Reader
	dec   *Decoder
	chunk []byte
	queue []Entry
	err   error
}

// NewReader creates a Reader reading from r. The magic is checked on the
// first call to Next.
func NewReader(r io.Reader, opts ...Option) *Reader {
	o := newOptions(opts)
	return &Reader{r: r, dec: newDecoder(o), chunk: make([]byte, o.chunkSize)}
}

// Next returns the next entry. It returns io.EOF once the archive ended
// cleanly.
func (ar *Reader) Next() (*Entry, error) {
	for {
		if len(ar.queue) > 0 {
			e := ar.queue[0]
			ar.queue[0] = Entry{}
			ar.queue = ar.queue[1:]
			return &e, nil
		}
		if ar.err != nil {
			return nil, ar.err
		}

		n, err := ar.r.Read(ar.chunk)
		if n > 0 {
			entries, ferr := ar.dec.Feed(ar.chunk[:n])
			ar.queue = append(ar.queue, entries...)
			if ferr != nil {
				ar.err = ferr
				continue
			}
		}
		switch {
		case err == io.EOF:
			ar.err = io.EOF
			if cerr := ar.dec.Close(); cerr != nil {
				ar.err = cerr
			}
		case err != nil:
			ar.err = err
		}
	}
}

// Entries iterates over the archive read from r. Iteration stops after the
// first error.
func Entries(r io.Reader, opts ...Option) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		ar := NewReader(r, opts...)
		for {
			e, err := ar.Next()
			if err == io.EOF {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}
