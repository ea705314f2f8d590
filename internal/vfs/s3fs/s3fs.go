// Package s3fs resolves s3 locations: the host component is the bucket, the
// path is the object key. Keys are probed with HeadObject and, when that
// misses, with a delimiter listing so that "directories" (shared key
// prefixes) resolve too. Buckets are never anonymous: resolution without
// credentials fails with an authentication error before any request is made.
package s3fs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dualpane/navigator/internal/constants"
	"github.com/dualpane/navigator/internal/location"
	"github.com/dualpane/navigator/internal/vfs"
)

// API is the subset of the S3 client used here. Narrowed for tests.
type API interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, opts ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Resolver resolves s3 locations.
type Resolver struct {
	// newClient builds a client for the location's credentials. Overridable
	// in tests.
	newClient func(ctx context.Context, loc location.Location) (API, error)
}

// NewResolver creates an S3 resolver using location-embedded credentials
// (user as access key, password as secret key).
func NewResolver() *Resolver {
	return &Resolver{newClient: newClient}
}

func newClient(ctx context.Context, loc location.Location) (API, error) {
	creds := loc.Credentials()
	if creds.IsEmpty() {
		return nil, vfs.NewAuthError(loc, nil)
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(creds.User, creds.Password, ""),
		),
	}
	if region, ok := loc.Property("region"); ok {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint, ok := loc.Property("endpoint"); ok {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// SplitKey maps a location path to the object key and the derived prefix
// used for directory-style probing and listing.
func SplitKey(p string) (key, prefix string) {
	key = strings.Trim(p, "/")
	if key == "" || key == "." {
		return "", ""
	}
	return key, key + "/"
}

type kind int

const (
	kindMissing kind = iota
	kindObject
	kindPrefix // "directory": at least one object below key + "/"
	kindBucket
)

// Resolve implements vfs.Resolver.
func (r *Resolver) Resolve(ctx context.Context, loc location.Location) (vfs.Handle, error) {
	client, err := r.newClient(ctx, loc)
	if err != nil {
		return nil, err
	}

	h := &Handle{loc: loc, client: client, bucket: loc.Host()}
	h.key, h.prefix = SplitKey(loc.Path())

	if err := h.probe(ctx); err != nil {
		return nil, err
	}
	return h, nil
}

// Handle is a resolved bucket, object or key prefix.
type Handle struct {
	loc    location.Location
	client API
	bucket string
	key    string // "" for the bucket root
	prefix string
	kind   kind
	size   int64
}

func (h *Handle) probe(ctx context.Context) error {
	if h.key == "" {
		// Bucket root: a one-key listing doubles as an access check.
		_, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(h.bucket),
			MaxKeys: aws.Int32(1),
		})
		if err != nil {
			return h.classify(err)
		}
		h.kind = kindBucket
		return nil
	}

	head, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(h.key),
	})
	if err == nil {
		h.kind = kindObject
		h.size = aws.ToInt64(head.ContentLength)
		return nil
	}
	if classified := h.classify(err); classified != nil && !vfs.IsNotFound(classified) {
		return classified
	}

	// No such object; a non-empty listing under key + "/" makes it a prefix.
	list, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(h.bucket),
		Prefix:  aws.String(h.prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return h.classify(err)
	}
	if aws.ToInt32(list.KeyCount) > 0 {
		h.kind = kindPrefix
	} else {
		h.kind = kindMissing
	}
	return nil
}

// classify maps SDK errors to the navigation error taxonomy. Not-found maps
// to nil with kindMissing so the workable-ancestor walk can proceed.
func (h *Handle) classify(err error) error {
	var nf *s3types.NotFound
	var nk *s3types.NoSuchKey
	var nb *s3types.NoSuchBucket
	if errors.As(err, &nf) || errors.As(err, &nk) || errors.As(err, &nb) {
		h.kind = kindMissing
		return nil
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "StatusCode: 404") || strings.Contains(msg, "NotFound"):
		h.kind = kindMissing
		return nil
	case strings.Contains(msg, "StatusCode: 401") ||
		strings.Contains(msg, "StatusCode: 403") ||
		strings.Contains(msg, "InvalidAccessKeyId") ||
		strings.Contains(msg, "SignatureDoesNotMatch") ||
		strings.Contains(msg, "AccessDenied"):
		return vfs.NewAuthError(h.loc, err)
	}
	return fmt.Errorf("s3 %s: %w", h.loc.Redacted(), err)
}

// Location implements vfs.Handle.
func (h *Handle) Location() location.Location { return h.loc }

// Exists implements vfs.Handle using the probe result.
func (h *Handle) Exists(ctx context.Context) (bool, error) {
	return h.kind != kindMissing, nil
}

// IsDirectory implements vfs.Handle: buckets and key prefixes act as
// directories.
func (h *Handle) IsDirectory() bool {
	return h.kind == kindBucket || h.kind == kindPrefix
}

// IsBrowsable implements vfs.Handle.
func (h *Handle) IsBrowsable() bool { return h.IsDirectory() }

// CanRead implements vfs.Handle: access was already established by the
// probe.
func (h *Handle) CanRead(ctx context.Context) (bool, error) {
	return h.kind != kindMissing, nil
}

// CanonicalPath implements vfs.Handle: keys have no aliases.
func (h *Handle) CanonicalPath(ctx context.Context) (string, error) {
	return h.loc.Path(), nil
}

// Parent implements vfs.Handle without network I/O. Parents are assumed to
// be prefixes; the bucket root terminates the walk.
func (h *Handle) Parent() (vfs.Handle, bool) {
	parentLoc, ok := h.loc.Parent()
	if !ok {
		return nil, false
	}
	p := &Handle{loc: parentLoc, client: h.client, bucket: h.bucket}
	p.key, p.prefix = SplitKey(parentLoc.Path())
	if p.key == "" {
		p.kind = kindBucket
	} else {
		p.kind = kindPrefix
	}
	return p, true
}

// List implements vfs.Handle with a delimiter listing: common prefixes
// become directories, objects become files. Paginates until exhausted.
func (h *Handle) List(ctx context.Context) ([]vfs.Entry, error) {
	var out []vfs.Entry
	var token *string
	for {
		resp, err := h.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(h.bucket),
			Prefix:            aws.String(h.prefix),
			Delimiter:         aws.String("/"),
			MaxKeys:           aws.Int32(constants.S3ListPageSize),
			ContinuationToken: token,
		})
		if err != nil {
			if classified := h.classify(err); classified != nil {
				return nil, classified
			}
			return nil, fmt.Errorf("list s3://%s/%s: %w", h.bucket, h.prefix, vfs.ErrNotFound)
		}

		for _, cp := range resp.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), h.prefix), "/")
			if name == "" {
				continue
			}
			out = append(out, vfs.Entry{
				Name:      name,
				Location:  h.loc.WithPath("/" + h.prefix + name),
				Directory: true,
			})
		}
		for _, obj := range resp.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), h.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			out = append(out, vfs.Entry{
				Name:     name,
				Location: h.loc.WithPath("/" + h.prefix + name),
				Size:     aws.ToInt64(obj.Size),
			})
		}

		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
