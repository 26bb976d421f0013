// Package media stores uploaded files in S3-compatible object storage.
package media

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"clubhouse/api/internal/util"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Object describes a stored upload. URL is relative to the media host
// ("/<bucket>/<key>") and is resolved against the media base URL at render time.
type Object struct {
	Key         string
	URL         string
	Size        int64
	ContentType string
}

type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("media: endpoint is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("media: bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("media: create client: %w", err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket on first start.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("media: check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("media: create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put uploads r under a fresh key derived from filename.
func (s *Store) Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (Object, error) {
	key := ObjectKey(util.NewID("obj"), filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return Object{}, fmt.Errorf("media: put %s: %w", key, err)
	}
	return Object{
		Key:         key,
		URL:         ObjectURL(s.bucket, key),
		Size:        info.Size,
		ContentType: contentType,
	}, nil
}

// PresignedURL returns a time-limited download URL for key.
func (s *Store) PresignedURL(ctx context.Context, key string, ttl time.Duration) (*url.URL, error) {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return nil, fmt.Errorf("media: presign %s: %w", key, err)
	}
	return u, nil
}

// KeyFromURL reverses ObjectURL for objects in this store's bucket.
func (s *Store) KeyFromURL(objectURL string) (string, bool) {
	prefix := "/" + s.bucket + "/"
	if !strings.HasPrefix(objectURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(objectURL, prefix)
	return key, key != ""
}

// ObjectKey builds "<id>/<safe filename>".
func ObjectKey(id, filename string) string {
	return id + "/" + SafeFilename(filename)
}

func ObjectURL(bucket, key string) string {
	return "/" + bucket + "/" + key
}

// SafeFilename lowercases the base name and keeps letters, digits, '.', '-' and
// '_'. Other runs become a single hyphen.
func SafeFilename(name string) string {
	name = strings.ToLower(path.Base(strings.ReplaceAll(name, "\\", "/")))
	var b strings.Builder
	lastHyphen := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen && b.Len() > 0 {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-.")
	if out == "" {
		return "file"
	}
	return out
}
