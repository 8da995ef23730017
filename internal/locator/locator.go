// Package locator resolves archive location strings into local paths,
// standard streams or S3 objects.
package locator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	awsarn "github.com/aws/aws-sdk-go-v2/aws/arn"
)

type Kind string

const (
	KindLocal Kind = "local"
	KindStdio Kind = "stdio"
	KindS3    Kind = "s3"
)

// Ref is a parsed archive location. Metadata carries the query parameters of
// an s3:// URI and is attached to uploaded objects.
type Ref struct {
	Kind     Kind
	Raw      string
	Path     string
	Bucket   string
	Key      string
	Metadata map[string]string
}

// Parse classifies v. "-" is the standard stream, s3:// URIs and S3 ARNs are
// objects, anything else is a local path.
func Parse(v string) (Ref, error) {
	switch {
	case v == "":
		return Ref{}, fmt.Errorf("empty archive location")
	case v == "-":
		return Ref{Kind: KindStdio, Raw: v}, nil
	case strings.HasPrefix(v, "s3://"):
		return parseS3URI(v)
	case strings.HasPrefix(v, "arn:"):
		return parseS3ARN(v)
	default:
		return Ref{Kind: KindLocal, Raw: v, Path: v}, nil
	}
}

func parseS3URI(v string) (Ref, error) {
	u, err := url.Parse(v)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid s3 uri %q: %w", v, err)
	}
	key := strings.TrimPrefix(u.Path, "/")
	if u.Host == "" {
		return Ref{}, fmt.Errorf("s3 uri must include bucket: %q", v)
	}
	if key == "" {
		return Ref{}, fmt.Errorf("s3 uri must include object key: %q", v)
	}
	return Ref{Kind: KindS3, Raw: v, Bucket: u.Host, Key: key, Metadata: queryMetadata(u.Query())}, nil
}

func parseS3ARN(v string) (Ref, error) {
	a, err := awsarn.Parse(v)
	if err != nil {
		return Ref{}, fmt.Errorf("invalid arn: %w", err)
	}
	if a.Service != "s3" {
		return Ref{}, fmt.Errorf("unsupported arn service %q", a.Service)
	}

	// Access point objects are addressed through the access point ARN.
	if strings.HasPrefix(a.Resource, "accesspoint/") {
		ap, key, ok := strings.Cut(a.Resource, "/object/")
		if !ok || key == "" {
			return Ref{}, fmt.Errorf("unsupported accesspoint arn, expected /object/<key>")
		}
		bucket := fmt.Sprintf("arn:%s:%s:%s:%s:%s", a.Partition, a.Service, a.Region, a.AccountID, ap)
		return Ref{Kind: KindS3, Raw: v, Bucket: bucket, Key: key}, nil
	}

	resource := strings.TrimPrefix(a.Resource, ":::")
	resource = strings.TrimPrefix(resource, "bucket/")
	bucket, key, ok := strings.Cut(resource, "/")
	if !ok || bucket == "" || key == "" {
		return Ref{}, fmt.Errorf("unsupported s3 arn, expected object arn with bucket and key")
	}
	return Ref{Kind: KindS3, Raw: v, Bucket: bucket, Key: key}, nil
}

func queryMetadata(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(q))
	for _, k := range keys {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		out[key] = strings.Join(q[k], ",")
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
