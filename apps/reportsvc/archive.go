package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var errArchiveFailed = errors.New("archive failed")

// reportArchive keeps a copy of every generated complaint PDF.
type reportArchive interface {
	Store(ctx context.Context, pdf []byte, generatedAt time.Time) (string, error)
}

type archiveOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type minioArchive struct {
	client *minio.Client
	bucket string
}

func newMinioArchive(opts archiveOptions) (*minioArchive, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return &minioArchive{client: client, bucket: opts.Bucket}, nil
}

func (m *minioArchive) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if !exists {
		return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
	}
	return nil
}

func (m *minioArchive) Store(ctx context.Context, pdf []byte, generatedAt time.Time) (string, error) {
	key := archiveObjectKey(generatedAt, uuid.NewString())
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(pdf), int64(len(pdf)), minio.PutObjectOptions{
		ContentType: pdfContentType,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", errArchiveFailed, err)
	}
	return key, nil
}

func archiveObjectKey(generatedAt time.Time, id string) string {
	return fmt.Sprintf("reports/%s/%s.pdf", generatedAt.UTC().Format("2006-01-02"), id)
}
