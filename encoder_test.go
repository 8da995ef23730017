package ar

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

const testLogArchive = "!<arch>\n" +
	"test.log        " + "0           " + "0     " + "0     " + "644     " + "5         " + "`\n" +
	"test\n"

func TestEncodeTestLog(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(WriteEntry{
		Header:  Header{Name: "test.log", Mode: "644"},
		Content: Bytes("test\n"),
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.String() != testLogArchive {
		t.Fatalf("output = %q, want %q", buf.String(), testLogArchive)
	}
}

func TestEncodeMagicOnce(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, name := range []string{"a", "b", "c"} {
		if err := enc.Encode(WriteEntry{Header: Header{Name: name, Mode: "644"}, Content: Bytes(name)}); err != nil {
			t.Fatalf("Encode(%s) error = %v", name, err)
		}
	}
	if got := strings.Count(buf.String(), Magic); got != 1 {
		t.Fatalf("magic written %d times", got)
	}
	if want := MagicSize + 3*(HeaderSize+1); buf.Len() != want {
		t.Fatalf("output length = %d, want %d", buf.Len(), want)
	}
}

func TestEncodeBytesOverridesSize(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(WriteEntry{Header: Header{Name: "x", Size: 999}, Content: Bytes("abc")})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	h, _, err := parseHeader(buf.Bytes()[MagicSize:])
	if err != nil {
		t.Fatalf("parseHeader() error = %v", err)
	}
	if h.Size != 3 {
		t.Fatalf("size = %d, want 3", h.Size)
	}
}

func TestEncodeSource(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	src := SizedStream(iotest.OneByteReader(strings.NewReader("streamed")), 8)
	if err := enc.Encode(WriteEntry{Header: Header{Name: "s"}, Content: src}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !strings.HasSuffix(buf.String(), "`\nstreamed") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestEncodeMissingSize(t *testing.T) {
	cases := []struct {
		name string
		src  Source
	}{
		{name: "stream", src: Stream(strings.NewReader("x"))},
		{name: "zero value", src: Source{r: strings.NewReader("x")}},
		{name: "negative", src: SizedStream(strings.NewReader("x"), -5)},
		{name: "nil reader", src: SizedStream(nil, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			err := enc.Encode(WriteEntry{Header: Header{Name: "s"}, Content: tc.src})
			if !errors.Is(err, ErrMissingSize) {
				t.Fatalf("Encode() error = %v, want ErrMissingSize", err)
			}
			if buf.Len() != 0 {
				t.Fatalf("wrote %d bytes before failing", buf.Len())
			}
		})
	}
}

func TestSourceSize(t *testing.T) {
	if got := (Source{}).Size(); got != UnknownSize {
		t.Fatalf("Source{}.Size() = %d, want UnknownSize", got)
	}
	if got := Stream(strings.NewReader("")).Size(); got != UnknownSize {
		t.Fatalf("Stream().Size() = %d, want UnknownSize", got)
	}
	if got := SizedStream(strings.NewReader(""), 0).Size(); got != 0 {
		t.Fatalf("SizedStream(0).Size() = %d, want 0", got)
	}
}

func TestEncodeEmptySizedStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(WriteEntry{Header: Header{Name: "empty"}, Content: SizedStream(strings.NewReader(""), 0)}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if buf.Len() != MagicSize+HeaderSize {
		t.Fatalf("wrote %d bytes, want %d", buf.Len(), MagicSize+HeaderSize)
	}
}

func TestEncodeNegativeFieldWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(WriteEntry{Header: Header{Name: "n", OwnerID: Malformed}, Content: Bytes("x")})
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "uid" || !errors.Is(err, ErrNegativeField) {
		t.Fatalf("Encode() error = %v, want uid ErrNegativeField", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes for a rejected entry", buf.Len())
	}
}

func TestEncodeSourceSizeMismatch(t *testing.T) {
	cases := []struct {
		name    string
		data    string
		size    int64
		wantEOF bool
	}{
		{name: "short", data: "abc", size: 5, wantEOF: true},
		{name: "long", data: "abcdef", size: 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := NewEncoder(io.Discard)
			err := enc.Encode(WriteEntry{Header: Header{Name: "s"}, Content: SizedStream(strings.NewReader(tc.data), tc.size)})
			if !errors.Is(err, ErrContentSize) {
				t.Fatalf("Encode() error = %v, want ErrContentSize", err)
			}
			if errors.Is(err, io.ErrUnexpectedEOF) != tc.wantEOF {
				t.Fatalf("Encode() error = %v, unexpected EOF = %v", err, !tc.wantEOF)
			}
		})
	}
}

func TestEncodeSourceError(t *testing.T) {
	boom := errors.New("boom")
	enc := NewEncoder(io.Discard)
	err := enc.Encode(WriteEntry{Header: Header{Name: "s"}, Content: SizedStream(iotest.ErrReader(boom), 4)})
	if !errors.Is(err, boom) {
		t.Fatalf("Encode() error = %v, want %v", err, boom)
	}
}

func TestEncodeFieldTooLongWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	err := enc.Encode(WriteEntry{Header: Header{Name: "a-very-long-member-name.o"}, Content: Bytes("x")})
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "name" {
		t.Fatalf("Encode() error = %v, want name FieldError", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes for a rejected entry", buf.Len())
	}
}

func TestEncodeErrorIsSticky(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	first := enc.Encode(WriteEntry{Header: Header{OwnerID: 10000000}})
	if first == nil {
		t.Fatalf("expected error")
	}
	err := enc.Encode(WriteEntry{Header: Header{Name: "ok"}, Content: Bytes("ok")})
	if err != first {
		t.Fatalf("Encode() after failure = %v, want %v", err, first)
	}
	if err := enc.Close(); err != first {
		t.Fatalf("Close() = %v, want %v", err, first)
	}
	if buf.Len() != 0 {
		t.Fatalf("wrote %d bytes after failure", buf.Len())
	}
}

func TestEncodeEmptyArchive(t *testing.T) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.String() != Magic {
		t.Fatalf("output = %q, want magic", buf.String())
	}
}

func TestEncodeAlignment(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, WithAlignment())
	if err := enc.Encode(WriteEntry{Header: Header{Name: "odd"}, Content: Bytes("abc")}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := enc.Encode(WriteEntry{Header: Header{Name: "even"}, Content: Bytes("ab")}); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if want := MagicSize + HeaderSize + 4 + HeaderSize + 2; buf.Len() != want {
		t.Fatalf("output length = %d, want %d", buf.Len(), want)
	}
	if buf.Bytes()[MagicSize+HeaderSize+3] != '\n' {
		t.Fatalf("missing pad byte")
	}
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
	cause  error
}

func (c *closeRecorder) Close() error { c.closed = true; return nil }

func (c *closeRecorder) CloseWithError(err error) error {
	c.closed, c.cause = true, err
	return nil
}

func TestEncoderClosesOwnedDestination(t *testing.T) {
	dst := &closeRecorder{}
	enc := NewEncoder(dst)
	enc.closer = dst
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !dst.closed || dst.cause != nil {
		t.Fatalf("destination closed=%v cause=%v", dst.closed, dst.cause)
	}

	dst = &closeRecorder{}
	enc = NewEncoder(dst)
	enc.closer = dst
	_ = enc.Encode(WriteEntry{Header: Header{Name: "s"}, Content: Stream(strings.NewReader(""))})
	if err := enc.Close(); !errors.Is(err, ErrMissingSize) {
		t.Fatalf("Close() error = %v", err)
	}
	if !errors.Is(dst.cause, ErrMissingSize) {
		t.Fatalf("destination aborted with %v", dst.cause)
	}
}
