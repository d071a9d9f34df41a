package storage

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3 struct {
	Client *minio.Client
	Bucket string
}

func NewS3(endpoint, region, bucket, accessKey, secretKey, sessionToken string, useSSL, forcePathStyle, insecure bool) (*S3, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:     resolveCredentials(accessKey, secretKey, sessionToken),
		Secure:    useSSL,
		Region:    region,
		Transport: transport,
		BucketLookup: func() minio.BucketLookupType {
			if forcePathStyle {
				return minio.BucketLookupPath
			}
			return minio.BucketLookupAuto
		}(),
	})
	if err != nil {
		return nil, err
	}
	return &S3{Client: client, Bucket: bucket}, nil
}

// resolveCredentials prefers static keys and otherwise walks the usual AWS
// sources (env, shared credentials file, instance role).
func resolveCredentials(accessKey, secretKey, sessionToken string) *credentials.Credentials {
	if accessKey != "" && secretKey != "" {
		return credentials.NewStaticV4(accessKey, secretKey, sessionToken)
	}
	return credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{},
	})
}

func (s *S3) Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error {
	_, err := s.Client.PutObject(ctx, s.Bucket, key, reader, size, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		UserMetadata: opts.Metadata,
	})
	return err
}

func (s *S3) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.Client.GetObject(ctx, s.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, mapErr(key, err)
	}
	// GetObject is lazy; Stat forces the request so a missing key surfaces here.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, mapErr(key, err)
	}
	return obj, nil
}

func (s *S3) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	stat, err := s.Client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return ObjectInfo{}, mapErr(key, err)
	}
	return ObjectInfo{Key: key, Size: stat.Size, Modified: stat.LastModified, ETag: stat.ETag, Metadata: stat.UserMetadata}, nil
}

func (s *S3) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	ch := s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})
	infos := []ObjectInfo{}
	for obj := range ch {
		if obj.Err != nil {
			return nil, obj.Err
		}
		infos = append(infos, ObjectInfo{Key: obj.Key, Size: obj.Size, Modified: obj.LastModified, ETag: obj.ETag})
	}
	return infos, nil
}

func (s *S3) ListDirs(ctx context.Context, prefix string) ([]string, error) {
	ch := s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false})
	dirs := []string{}
	for obj := range ch {
		if obj.Err != nil {
			return nil, obj.Err
		}
		// Non-recursive listings return common prefixes as keys ending in "/".
		if len(obj.Key) > len(prefix) && obj.Key[len(obj.Key)-1] == '/' {
			dirs = append(dirs, obj.Key)
		}
	}
	return dirs, nil
}

func (s *S3) Copy(ctx context.Context, srcKey, dstKey string) error {
	_, err := s.Client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.Bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.Bucket, Object: srcKey},
	)
	if err != nil {
		return mapErr(srcKey, err)
	}
	return nil
}

func (s *S3) Delete(ctx context.Context, key string) error {
	return s.Client.RemoveObject(ctx, s.Bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.Client.StatObject(ctx, s.Bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *S3) Location() string {
	return "s3://" + s.Bucket
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func mapErr(key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return err
}
