// Package local serves archives from local files and the standard streams.
package local

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/islishude/ar/internal/locator"
)

// Store opens local archive locations. Nil streams default to os.Stdin and
// os.Stdout.
type Store struct {
	Stdin  io.Reader
	Stdout io.Writer
}

type Metadata struct {
	Size int64
}

// ReaderAtCloser is a random access archive source.
type ReaderAtCloser interface {
	io.ReaderAt
	io.Closer
}

// OpenReaderAt opens ref for positional reads. The standard input cannot
// seek, so it is read fully into memory first.
func (s *Store) OpenReaderAt(ref locator.Ref) (ReaderAtCloser, Metadata, error) {
	switch ref.Kind {
	case locator.KindLocal:
		f, err := os.Open(ref.Path)
		if err != nil {
			return nil, Metadata{}, err
		}
		st, err := f.Stat()
		if err != nil {
			_ = f.Close()
			return nil, Metadata{}, err
		}
		return f, Metadata{Size: st.Size()}, nil
	case locator.KindStdio:
		b, err := io.ReadAll(s.stdin())
		if err != nil {
			return nil, Metadata{}, fmt.Errorf("read stdin: %w", err)
		}
		return nopCloser{bytes.NewReader(b)}, Metadata{Size: int64(len(b))}, nil
	default:
		return nil, Metadata{}, fmt.Errorf("unsupported local archive ref kind %s", ref.Kind)
	}
}

// OpenWriter creates or truncates the archive at ref.
func (s *Store) OpenWriter(ref locator.Ref) (io.WriteCloser, error) {
	switch ref.Kind {
	case locator.KindLocal:
		return os.Create(ref.Path)
	case locator.KindStdio:
		return nopWriteCloser{w: s.stdout()}, nil
	default:
		return nil, fmt.Errorf("unsupported local archive ref kind %s", ref.Kind)
	}
}

func (s *Store) stdin() io.Reader {
	if s.Stdin == nil {
		return os.Stdin
	}
	return s.Stdin
}

func (s *Store) stdout() io.Writer {
	if s.Stdout == nil {
		return os.Stdout
	}
	return s.Stdout
}

type nopCloser struct{ io.ReaderAt }

func (nopCloser) Close() error { return nil }

type nopWriteCloser struct{ w io.Writer }

func (n nopWriteCloser) Write(p []byte) (int, error) { return n.w.Write(p) }
func (nopWriteCloser) Close() error                  { return nil }
