package ar

import (
	"context"
	"fmt"

	"github.com/islishude/ar/internal/locator"
	localstore "github.com/islishude/ar/internal/storage/local"
	s3store "github.com/islishude/ar/internal/storage/s3"
)

// OpenLocation indexes the archive at loc, which is a local path, "-" for
// standard input, an s3:// URI or an S3 object ARN. S3 archives are read
// with ranged requests bounded by ctx.
func OpenLocation(ctx context.Context, loc string, opts ...Option) (*Archive, error) {
	ref, err := locator.Parse(loc)
	if err != nil {
		return nil, err
	}
	switch ref.Kind {
	case locator.KindLocal, locator.KindStdio:
		return openLocal(&localstore.Store{}, ref, opts)
	case locator.KindS3:
		store, err := s3store.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
		r, meta, err := store.OpenReaderAt(ctx, ref)
		if err != nil {
			return nil, err
		}
		return indexSource(r, meta.Size, ref.Raw, opts)
	default:
		return nil, fmt.Errorf("unsupported archive source %q", ref.Raw)
	}
}

// CreateLocation returns an Encoder writing a new archive to loc. Closing
// the Encoder closes the destination; for S3 it completes the upload, or
// aborts it when encoding failed.
func CreateLocation(ctx context.Context, loc string, opts ...Option) (*Encoder, error) {
	ref, err := locator.Parse(loc)
	if err != nil {
		return nil, err
	}
	var e *Encoder
	switch ref.Kind {
	case locator.KindLocal, locator.KindStdio:
		w, err := (&localstore.Store{}).OpenWriter(ref)
		if err != nil {
			return nil, err
		}
		e = NewEncoder(w, opts...)
		e.closer = w
	case locator.KindS3:
		store, err := s3store.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("init s3: %w", err)
		}
		w, err := store.OpenWriter(ctx, ref, ref.Metadata)
		if err != nil {
			return nil, err
		}
		e = NewEncoder(w, opts...)
		e.closer = w
	default:
		return nil, fmt.Errorf("unsupported archive target %q", ref.Raw)
	}
	return e, nil
}
