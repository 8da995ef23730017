package ar

import (
	"errors"
	"fmt"
	"io"
)

// Encoder writes entries to an io.Writer in archive form. Entries are
// written one after another; Encode returns only once the whole entry,
// content included, has been handed to the writer. The first error is
// sticky.
type Encoder struct {
	w      io.Writer
	closer io.Closer // set when the Encoder owns its destination
	opts   options
	magic  bool
	closed bool
	err    error
}

func NewEncoder(w io.Writer, opts ...Option) *Encoder {
	return &Encoder{w: w, opts: newOptions(opts)}
}

// Encode writes the header and content of entry. The magic is written in
// front of the first entry. A header that cannot be formatted leaves the
// output untouched.
func (e *Encoder) Encode(entry WriteEntry) error {
	if e.err != nil {
		return e.err
	}
	if e.closed {
		return errors.New("ar: encode after close")
	}
	if err := e.encode(entry); err != nil {
		e.err = err
		return err
	}
	return nil
}

func (e *Encoder) encode(entry WriteEntry) error {
	hdr := entry.Header
	var src Source
	switch c := entry.Content.(type) {
	case nil:
		hdr.Size = 0
	case Bytes:
		hdr.Size = int64(len(c))
	case Source:
		if c.r == nil || !c.sized {
			return fmt.Errorf("%w: %q", ErrMissingSize, hdr.Name)
		}
		hdr.Size = c.size
		src = c
	default:
		return fmt.Errorf("ar: unsupported content %T for %q", c, hdr.Name)
	}

	block, err := formatHeader(&hdr)
	if err != nil {
		return err
	}
	if !e.magic {
		block = append([]byte(Magic), block...)
	}
	if _, err := e.w.Write(block); err != nil {
		return fmt.Errorf("ar: write header %q: %w", hdr.Name, err)
	}
	e.magic = true

	if c, ok := entry.Content.(Bytes); ok {
		if _, err := e.w.Write(c); err != nil {
			return fmt.Errorf("ar: write content %q: %w", hdr.Name, err)
		}
	} else if src.r != nil {
		if err := copyExact(e.w, src.r, src.size); err != nil {
			return fmt.Errorf("ar: write content %q: %w", hdr.Name, err)
		}
	}

	if pad := padding(hdr.Size, e.opts.aligned); pad > 0 {
		if _, err := e.w.Write([]byte{padByte}); err != nil {
			return fmt.Errorf("ar: write padding %q: %w", hdr.Name, err)
		}
	}
	e.opts.logger.Debug("encoded", "name", hdr.Name, "size", hdr.Size)
	return nil
}

// copyExact copies exactly n bytes from src to dst and then checks that src
// has nothing left.
func copyExact(dst io.Writer, src io.Reader, n int64) error {
	written, err := io.CopyN(dst, src, n)
	if err == io.EOF {
		return fmt.Errorf("%w: got %d of %d bytes: %w", ErrContentSize, written, n, io.ErrUnexpectedEOF)
	}
	if err != nil {
		return err
	}
	var probe [1]byte
	for {
		m, err := src.Read(probe[:])
		if m > 0 {
			return fmt.Errorf("%w: more than %d bytes", ErrContentSize, n)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Close completes the archive. An Encoder that wrote no entry writes the
// magic alone so the output is a valid empty archive. The destination is
// closed only when the Encoder was created by CreateLocation.
func (e *Encoder) Close() error {
	if e.closed {
		return e.err
	}
	e.closed = true
	if e.err == nil && !e.magic {
		if _, err := io.WriteString(e.w, Magic); err != nil {
			e.err = fmt.Errorf("ar: write magic: %w", err)
		}
		e.magic = true
	}
	if e.closer != nil {
		if err := closeDestination(e.closer, e.err); err != nil && e.err == nil {
			e.err = err
		}
	}
	return e.err
}

// closeDestination aborts destinations that support it when the archive
// failed, so a partial upload is not committed.
func closeDestination(c io.Closer, cause error) error {
	if a, ok := c.(interface{ CloseWithError(error) error }); ok && cause != nil {
		return a.CloseWithError(cause)
	}
	return c.Close()
}
