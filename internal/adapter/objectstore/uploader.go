// Package objectstore uploads reference sets and exports to S3-compatible
// object storage.
package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/climate-index/internal/domain"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Options locates the bucket.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
	// Region skips the bucket location lookup when set.
	Region string
}

// Uploader stores objects under <prefix>/<run id>/ in one bucket.
// It implements pipeline.Sink.
type Uploader struct {
	client *minio.Client
	bucket string
	root   string
	logger *slog.Logger
}

// New connects to the endpoint and creates the bucket when it does not exist.
func New(ctx context.Context, opts Options, runID string, logger *slog.Logger) (*Uploader, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure:       opts.UseSSL,
		Region:       opts.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("object store client: %w", err)
	}

	found, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("access bucket %s: %w", opts.Bucket, err)
	}
	if !found {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		logger.Info("bucket created", "bucket", opts.Bucket)
	}
	return &Uploader{
		client: client,
		bucket: opts.Bucket,
		root:   path.Join(strings.Trim(opts.Prefix, "/"), runID),
		logger: logger,
	}, nil
}

// Key returns the object name of a path relative to the run root.
func (u *Uploader) Key(rel string) string {
	return path.Join(u.root, filepath.ToSlash(rel))
}

// WriteIndex uploads the region's records as <region>/ica.json.
func (u *Uploader) WriteIndex(ctx context.Context, region string, records []domain.ICARecord) error {
	return u.putJSON(ctx, path.Join(slug(region), "ica.json"), records)
}

// WriteComponents uploads the region's component series as <region>/components.json.
func (u *Uploader) WriteComponents(ctx context.Context, region string, series []domain.TimeSeries) error {
	return u.putJSON(ctx, path.Join(slug(region), "components.json"), series)
}

func (u *Uploader) putJSON(ctx context.Context, rel string, v any) error {
	b := new(bytes.Buffer)
	if err := json.NewEncoder(b).Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", rel, err)
	}
	key := u.Key(rel)
	info, err := u.client.PutObject(ctx, u.bucket, key, b, int64(b.Len()), minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	u.logger.Debug("object uploaded", "bucket", u.bucket, "key", key, "size", info.Size)
	return nil
}

// UploadFile uploads a local file under rel.
func (u *Uploader) UploadFile(ctx context.Context, rel, file string) error {
	key := u.Key(rel)
	if _, err := u.client.FPutObject(ctx, u.bucket, key, file, minio.PutObjectOptions{ContentType: contentType(file)}); err != nil {
		return fmt.Errorf("upload %s: %w", file, err)
	}
	u.logger.Debug("file uploaded", "bucket", u.bucket, "key", key)
	return nil
}

// UploadDir uploads every regular file below dir, keyed by its path
// relative to dir. It returns the number of files uploaded.
func (u *Uploader) UploadDir(ctx context.Context, dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if err := u.UploadFile(ctx, rel, p); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, err
	}
	u.logger.Info("directory uploaded", "dir", dir, "bucket", u.bucket, "files", n)
	return n, nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

func slug(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}
