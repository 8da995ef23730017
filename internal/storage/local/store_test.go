package local

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/islishude/ar/internal/locator"
)

func TestOpenReaderAtStdin(t *testing.T) {
	s := &Store{Stdin: strings.NewReader("!<arch>\n")}
	r, meta, err := s.OpenReaderAt(locator.Ref{Kind: locator.KindStdio})
	if err != nil {
		t.Fatalf("OpenReaderAt() error = %v", err)
	}
	defer r.Close() //nolint:errcheck
	if meta.Size != 8 {
		t.Fatalf("size = %d, want 8", meta.Size)
	}
	b := make([]byte, 3)
	if _, err := r.ReadAt(b, 2); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if string(b) != "arc" {
		t.Fatalf("ReadAt() = %q, want arc", b)
	}
}

func TestWriterRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.a")
	s := &Store{}
	w, err := s.OpenWriter(locator.Ref{Kind: locator.KindLocal, Path: path})
	if err != nil {
		t.Fatalf("OpenWriter() error = %v", err)
	}
	if _, err := io.WriteString(w, "payload"); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	r, meta, err := s.OpenReaderAt(locator.Ref{Kind: locator.KindLocal, Path: path})
	if err != nil {
		t.Fatalf("OpenReaderAt() error = %v", err)
	}
	defer r.Close() //nolint:errcheck
	if meta.Size != int64(len("payload")) {
		t.Fatalf("size = %d, want %d", meta.Size, len("payload"))
	}
}

func TestStdoutWriterDoesNotClose(t *testing.T) {
	var buf bytes.Buffer
	s := &Store{Stdout: &buf}
	w, err := s.OpenWriter(locator.Ref{Kind: locator.KindStdio})
	if err != nil {
		t.Fatalf("OpenWriter() error = %v", err)
	}
	_, _ = io.WriteString(w, "x")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.String() != "x" {
		t.Fatalf("stdout = %q", buf.String())
	}
}

func TestOpenReaderAtMissing(t *testing.T) {
	s := &Store{}
	_, _, err := s.OpenReaderAt(locator.Ref{Kind: locator.KindLocal, Path: filepath.Join(t.TempDir(), "nope.a")})
	if !os.IsNotExist(err) {
		t.Fatalf("OpenReaderAt() error = %v, want not exist", err)
	}
}
