// Package s3 serves archives stored as S3 objects. Reads are ranged GETs so
// an archive can be indexed and read without downloading it; writes stream
// through a multipart upload.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager"
	tmtypes "github.com/aws/aws-sdk-go-v2/feature/s3/transfermanager/types"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/islishude/ar/internal/locator"
)

// objectAPI is the part of the S3 client used for reads.
type objectAPI interface {
	HeadObject(ctx context.Context, in *awss3.HeadObjectInput, optFns ...func(*awss3.Options)) (*awss3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *awss3.GetObjectInput, optFns ...func(*awss3.Options)) (*awss3.GetObjectOutput, error)
}

type Store struct {
	api      objectAPI
	tm       *transfermanager.Client
	settings Settings
}

type Settings struct {
	PartSizeMB  int64
	Concurrency int
	SSE         string
	SSEKMSKeyID string
}

type Metadata struct {
	Size int64
	ETag string
}

// New builds a Store from the default AWS configuration chain. Upload
// tuning comes from GOAR_S3_* environment variables.
func New(ctx context.Context) (*Store, error) {
	var cfgOpts []func(*config.LoadOptions) error
	if retryMax, ok := intFromEnv("GOAR_S3_MAX_RETRIES"); ok {
		cfgOpts = append(cfgOpts, config.WithRetryMaxAttempts(retryMax))
	}
	cfg, err := config.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, err
	}

	client := awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		if strings.EqualFold(strings.TrimSpace(os.Getenv("GOAR_S3_USE_PATH_STYLE")), "true") {
			o.UsePathStyle = true
		}
	})
	return NewFromClient(client, settingsFromEnv()), nil
}

func NewFromClient(client *awss3.Client, settings Settings) *Store {
	if settings.PartSizeMB <= 0 {
		settings.PartSizeMB = 16
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 4
	}
	tm := transfermanager.New(client, func(o *transfermanager.Options) {
		o.PartSizeBytes = settings.PartSizeMB * 1024 * 1024
		o.Concurrency = settings.Concurrency
	})
	return &Store{api: client, tm: tm, settings: settings}
}

func settingsFromEnv() Settings {
	settings := Settings{
		SSE:         strings.ToLower(strings.TrimSpace(defaultString(os.Getenv("GOAR_S3_SSE"), "AES256"))),
		SSEKMSKeyID: strings.TrimSpace(os.Getenv("GOAR_S3_SSE_KMS_KEY_ID")),
	}
	if v, ok := int64FromEnv("GOAR_S3_PART_SIZE_MB"); ok && v > 0 {
		settings.PartSizeMB = v
	}
	if v, ok := intFromEnv("GOAR_S3_CONCURRENCY"); ok && v > 0 {
		settings.Concurrency = v
	}
	return settings
}

// OpenReaderAt returns a random access view of the object at ref. Every
// read is pinned to the ETag seen here, so a concurrent overwrite of the
// object fails the read instead of mixing two versions.
func (s *Store) OpenReaderAt(ctx context.Context, ref locator.Ref) (*ObjectReader, Metadata, error) {
	if ref.Kind != locator.KindS3 {
		return nil, Metadata{}, fmt.Errorf("ref %q is not s3", ref.Raw)
	}
	out, err := s.api.HeadObject(ctx, &awss3.HeadObjectInput{Bucket: aws.String(ref.Bucket), Key: aws.String(ref.Key)})
	if err != nil {
		return nil, Metadata{}, fmt.Errorf("head %s: %w", ref.Raw, err)
	}
	meta := Metadata{Size: aws.ToInt64(out.ContentLength), ETag: aws.ToString(out.ETag)}
	r := &ObjectReader{ctx: ctx, api: s.api, bucket: ref.Bucket, key: ref.Key, size: meta.Size, etag: meta.ETag}
	return r, meta, nil
}

// ObjectReader implements io.ReaderAt with one ranged GET per call. The
// context given to OpenReaderAt bounds every read.
type ObjectReader struct {
	ctx    context.Context
	api    objectAPI
	bucket string
	key    string
	size   int64
	etag   string
}

func (r *ObjectReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("s3: negative offset %d", off)
	}
	if off >= r.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := int64(len(p))
	if rest := r.size - off; want > rest {
		want = rest
	}

	in := &awss3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+want-1)),
	}
	if r.etag != "" {
		in.IfMatch = aws.String(r.etag)
	}
	out, err := r.api.GetObject(r.ctx, in)
	if err != nil {
		return 0, fmt.Errorf("s3: get %s/%s %s: %w", r.bucket, r.key, aws.ToString(in.Range), err)
	}
	defer out.Body.Close() //nolint:errcheck

	n, err := io.ReadFull(out.Body, p[:want])
	if err != nil {
		return n, err
	}
	if want < int64(len(p)) {
		return n, io.EOF
	}
	return n, nil
}

func (r *ObjectReader) Size() int64 { return r.size }

// Close is a no-op; each read releases its own response body.
func (r *ObjectReader) Close() error { return nil }

// OpenWriter starts a streaming upload to ref. Close completes the upload;
// CloseWithError aborts it.
func (s *Store) OpenWriter(ctx context.Context, ref locator.Ref, metadata map[string]string) (*UploadWriter, error) {
	if ref.Kind != locator.KindS3 {
		return nil, fmt.Errorf("ref %q is not s3", ref.Raw)
	}
	return newUploadWriter(func(body io.Reader) error {
		in := &transfermanager.UploadObjectInput{
			Bucket:      aws.String(ref.Bucket),
			Key:         aws.String(ref.Key),
			Body:        body,
			ContentType: aws.String(contentTypeForKey(ref.Key)),
			Metadata:    metadata,
		}
		s.applyEncryption(in)
		_, err := s.tm.UploadObject(ctx, in)
		return err
	}), nil
}

// newUploadWriter runs upload in the background, reading from the returned
// writer.
func newUploadWriter(upload func(body io.Reader) error) *UploadWriter {
	pr, pw := io.Pipe()
	errCh := make(chan error, 1)
	go func() {
		err := upload(pr)
		_ = pr.CloseWithError(err)
		errCh <- err
		close(errCh)
	}()
	return &UploadWriter{pw: pw, errCh: errCh}
}

func (s *Store) applyEncryption(in *transfermanager.UploadObjectInput) {
	switch s.settings.SSE {
	case "", "aes256", "sse-s3":
		in.ServerSideEncryption = tmtypes.ServerSideEncryptionAes256
	case "aws:kms", "sse-kms":
		in.ServerSideEncryption = tmtypes.ServerSideEncryptionAwsKms
		if s.settings.SSEKMSKeyID != "" {
			in.SSEKMSKeyID = aws.String(s.settings.SSEKMSKeyID)
		}
	case "none":
		return
	default:
		in.ServerSideEncryption = tmtypes.ServerSideEncryptionAes256
	}
}

type UploadWriter struct {
	pw    *io.PipeWriter
	errCh <-chan error
}

func (w *UploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

func (w *UploadWriter) Close() error {
	if err := w.pw.Close(); err != nil {
		return err
	}
	if err, ok := <-w.errCh; ok && err != nil {
		return err
	}
	return nil
}

// CloseWithError aborts the upload with cause and waits for it to stop.
// The upload's own error is returned unless it is just cause coming back,
// so a failed abort is not lost.
func (w *UploadWriter) CloseWithError(cause error) error {
	_ = w.pw.CloseWithError(cause)
	if err, ok := <-w.errCh; ok && err != nil && !errors.Is(err, cause) {
		return err
	}
	return nil
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".deb", ".udeb", ".ddeb":
		return "application/vnd.debian.binary-package"
	case ".a", ".ar", ".lib":
		return "application/x-archive"
	default:
		return "application/octet-stream"
	}
}

func intFromEnv(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	x, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return x, true
}

func int64FromEnv(key string) (int64, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	x, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return x, true
}

func defaultString(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
