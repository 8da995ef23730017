package ar

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/islishude/ar/internal/locator"
	localstore "github.com/islishude/ar/internal/storage/local"
	"golang.org/x/sync/errgroup"
)

// Archive is an index of the members of an ar file. Only headers are read
// when the index is built; content is read on demand with positional reads,
// so concurrent reads need no locking. The index never changes after open.
type Archive struct {
	r       io.ReaderAt
	closer  io.Closer
	size    int64
	entries []IndexEntry
	opts    options
}

// Open opens and indexes the archive at path. The file stays open until
// Close. On error the file is closed before Open returns.
func Open(path string, opts ...Option) (*Archive, error) {
	return openLocal(&localstore.Store{}, locator.Ref{Kind: locator.KindLocal, Raw: path, Path: path}, opts)
}

func openLocal(s *localstore.Store, ref locator.Ref, opts []Option) (*Archive, error) {
	r, meta, err := s.OpenReaderAt(ref)
	if err != nil {
		return nil, err
	}
	if f, ok := r.(*os.File); ok {
		adviseRandom(f)
	}
	return indexSource(r, meta.Size, ref.Raw, opts)
}

type readerAtCloser interface {
	io.ReaderAt
	io.Closer
}

// indexSource indexes r and hands it to the returned Archive. r is closed
// when indexing fails.
func indexSource(r readerAtCloser, size int64, name string, opts []Option) (*Archive, error) {
	a, err := NewArchive(r, size, opts...)
	if err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	a.closer = r
	return a, nil
}

// NewArchive indexes the archive held by r, which is size bytes long. A
// negative size means unknown; indexing then stops at the first empty read.
// Closing the returned Archive does not close r.
func NewArchive(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	o := newOptions(opts)
	entries, err := index(r, size, o)
	if err != nil {
		return nil, err
	}
	return &Archive{r: r, size: size, entries: entries, opts: o}, nil
}

func index(r io.ReaderAt, size int64, o options) ([]IndexEntry, error) {
	block := make([]byte, HeaderSize)
	n, err := r.ReadAt(block[:MagicSize], 0)
	if n < MagicSize || string(block[:MagicSize]) != Magic {
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("ar: read magic: %w", err)
		}
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, block[:n])
	}

	var entries []IndexEntry
	pos := int64(MagicSize)
	for size < 0 || pos < size {
		n, err := r.ReadAt(block, pos)
		if n == 0 && err == io.EOF {
			break
		}
		if n < HeaderSize {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("ar: header at %d: %w", pos, err)
		}

		h, end, err := parseHeader(block)
		if err != nil {
			return nil, fmt.Errorf("ar: header at %d: %w", pos, err)
		}
		if !o.noEndCheck && string(end) != HeaderEnd {
			return nil, fmt.Errorf("%w: %q at %d", ErrBadHeaderEnd, end, pos+HeaderSize-EndSize)
		}
		pos += HeaderSize
		if size >= 0 && pos+h.Size > size {
			return nil, fmt.Errorf("ar: content of %q at %d: %w", h.Name, pos, io.ErrUnexpectedEOF)
		}

		entries = append(entries, IndexEntry{Header: h, Offset: pos})
		o.logger.Debug("indexed", "name", h.Name, "offset", pos, "size", h.Size)
		pos += h.Size + padding(h.Size, o.aligned)
	}
	return entries, nil
}

// Entries returns the indexed members in archive order.
func (a *Archive) Entries() []IndexEntry {
	return slices.Clone(a.entries)
}

// Lookup returns the first member called name.
func (a *Archive) Lookup(name string) (IndexEntry, bool) {
	i := slices.IndexFunc(a.entries, func(e IndexEntry) bool { return e.Name == name })
	if i < 0 {
		return IndexEntry{}, false
	}
	return a.entries[i], true
}

// ReadAt reads len(p) bytes of the content of e starting off bytes into it.
// Reads are bounded by the member: a short read at the end of the content
// returns io.EOF.
func (a *Archive) ReadAt(e IndexEntry, p []byte, off int64) (int, error) {
	return a.Section(e).ReadAt(p, off)
}

// ReadContent returns the whole content of e in a new buffer.
func (a *Archive) ReadContent(e IndexEntry) ([]byte, error) {
	buf := make([]byte, e.Size)
	if _, err := io.ReadFull(a.Section(e), buf); err != nil {
		return nil, fmt.Errorf("ar: read %q: %w", e.Name, err)
	}
	return buf, nil
}

// Section returns a reader over the content of e.
func (a *Archive) Section(e IndexEntry) *io.SectionReader {
	return io.NewSectionReader(a.r, e.Offset, e.Size)
}

// Load reads the content of the given members concurrently. With no
// arguments every member is loaded. Results follow the argument order.
func (a *Archive) Load(ctx context.Context, entries ...IndexEntry) ([][]byte, error) {
	if len(entries) == 0 {
		entries = a.entries
	}
	out := make([][]byte, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.concurrency)
	for i, e := range entries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := a.ReadContent(e)
			if err != nil {
				return err
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Size returns the length of the underlying source, or -1 when unknown.
func (a *Archive) Size() int64 { return a.size }

// Close releases the file opened by Open or OpenLocation. Reads must not be
// in flight.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
