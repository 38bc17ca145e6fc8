package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"stashkit/internal/stash"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

const (
	s3Prefix      = "stashes/"
	metaKey       = "Stash-Key"
	metaBranch    = "Stash-Branch"
	metaExpiresAt = "Expires-At"
	presignExpiry = time.Hour
)

// S3Store keeps one object per stash generation under
// "stashes/<name>/<id>", with the record fields in user metadata.
// The generation id is the upload time in nanoseconds, so ids stay
// monotonic without any coordination.
type S3Store struct {
	client     *minio.Client
	bucketName string
	region     string
	initOnce   sync.Once
	initErr    error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client:     client,
		bucketName: bucket,
		region:     region,
	}, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucketName)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

func (s *S3Store) Upload(ctx context.Context, name string, payload []byte, opts UploadOptions) (stash.Record, error) {
	if s == nil {
		return stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return stash.Record{}, fmt.Errorf("name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return stash.Record{}, fmt.Errorf("ensure bucket: %w", err)
	}
	if payload == nil {
		payload = []byte{}
	}

	if opts.Overwrite {
		if _, err := s.Delete(ctx, name); err != nil {
			return stash.Record{}, err
		}
	}

	now := time.Now()
	id := now.UnixNano()
	key := objectKey(name, id)
	meta := map[string]string{
		metaKey:       opts.Key,
		metaBranch:    opts.Branch,
		metaExpiresAt: opts.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType:  "application/gzip",
		UserMetadata: meta,
	})
	if err != nil {
		return stash.Record{}, err
	}

	rec := stash.Record{
		ID:        id,
		Name:      name,
		Key:       opts.Key,
		Branch:    opts.Branch,
		SizeBytes: int64(len(payload)),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: opts.ExpiresAt,
	}
	if u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, presignExpiry, nil); err == nil {
		rec.URL = u.String()
	}
	return rec, nil
}

func (s *S3Store) Download(ctx context.Context, name string, id int64) ([]byte, stash.Record, error) {
	if s == nil {
		return nil, stash.Record{}, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, stash.Record{}, fmt.Errorf("name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, stash.Record{}, fmt.Errorf("ensure bucket: %w", err)
	}

	key := objectKey(name, id)
	info, err := s.client.StatObject(ctx, s.bucketName, key, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, stash.Record{}, ErrNotFound
		}
		return nil, stash.Record{}, err
	}
	rec := s.recordFromInfo(ctx, name, id, info)
	if rec.Expired(time.Now()) {
		return nil, stash.Record{}, ErrNotFound
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, stash.Record{}, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if isNoSuchKey(err) {
			return nil, stash.Record{}, ErrNotFound
		}
		return nil, stash.Record{}, err
	}
	return data, rec, nil
}

func (s *S3Store) List(ctx context.Context, name string) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	now := time.Now()
	prefix := s3Prefix + name + "/"
	out := make([]stash.Record, 0, 8)
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		id, err := strconv.ParseInt(path.Base(obj.Key), 10, 64)
		if err != nil {
			continue
		}
		info, err := s.client.StatObject(ctx, s.bucketName, obj.Key, minio.StatObjectOptions{})
		if err != nil {
			if isNoSuchKey(err) {
				continue
			}
			return nil, err
		}
		rec := s.recordFromInfo(ctx, name, id, info)
		if rec.Expired(now) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *S3Store) Delete(ctx context.Context, name string) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("store is nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("name is required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return 0, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := s3Prefix + name + "/"
	removed := 0
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return removed, obj.Err
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (s *S3Store) Prune(ctx context.Context, now time.Time, keep func(stash.Record) bool) ([]stash.Record, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	var pruned []stash.Record
	for obj := range s.client.ListObjects(ctx, s.bucketName, minio.ListObjectsOptions{
		Prefix:    s3Prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return pruned, obj.Err
		}
		name, id, ok := splitObjectKey(obj.Key)
		if !ok {
			continue
		}
		info, err := s.client.StatObject(ctx, s.bucketName, obj.Key, minio.StatObjectOptions{})
		if err != nil {
			if isNoSuchKey(err) {
				continue
			}
			return pruned, err
		}
		rec := s.recordFromInfo(ctx, name, id, info)
		if !rec.Expired(now) {
			continue
		}
		if keep != nil && keep(rec) {
			continue
		}
		if err := s.client.RemoveObject(ctx, s.bucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return pruned, err
		}
		pruned = append(pruned, rec)
	}
	sort.Slice(pruned, func(i, j int) bool { return pruned[i].ID < pruned[j].ID })
	return pruned, nil
}

func (s *S3Store) recordFromInfo(ctx context.Context, name string, id int64, info minio.ObjectInfo) stash.Record {
	created := time.Unix(0, id)
	rec := stash.Record{
		ID:        id,
		Name:      name,
		Key:       userMeta(info, metaKey),
		Branch:    userMeta(info, metaBranch),
		SizeBytes: info.Size,
		CreatedAt: created,
		UpdatedAt: info.LastModified,
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = created
	}
	if raw := userMeta(info, metaExpiresAt); raw != "" {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.ExpiresAt = t
		}
	}
	if u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectKey(name, id), presignExpiry, nil); err == nil {
		rec.URL = u.String()
	}
	return rec
}

// userMeta reads a user metadata value regardless of whether the server
// reported it in UserMetadata or as an X-Amz-Meta header.
func userMeta(info minio.ObjectInfo, key string) string {
	for k, v := range info.UserMetadata {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return http.Header(info.Metadata).Get("X-Amz-Meta-" + key)
}

func objectKey(name string, id int64) string {
	return s3Prefix + name + "/" + strconv.FormatInt(id, 10)
}

func splitObjectKey(key string) (name string, id int64, ok bool) {
	rest := strings.TrimPrefix(key, s3Prefix)
	if rest == key {
		return "", 0, false
	}
	idx := strings.LastIndexByte(rest, '/')
	if idx <= 0 {
		return "", 0, false
	}
	id, err := strconv.ParseInt(rest[idx+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return rest[:idx], id, true
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
