package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	qrCodePrefix      = "qrcodes"
	DefaultAttachPath = "attachments"
)

type MinioStore struct {
	client       *minio.Client
	bucket       string
	attachPrefix string
	publicURL    string
}

func NewMinioStore(endpoint, accessKey, secretKey string, useSSL bool, bucket string) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}

	return &MinioStore{client: client, bucket: bucket, attachPrefix: DefaultAttachPath}, nil
}

// WithPublicURL overrides the base used to build object URLs, for setups
// where the bucket is served behind a proxy or CDN.
func (m *MinioStore) WithPublicURL(base string) *MinioStore {
	m.publicURL = base
	return m
}

func (m *MinioStore) WithAttachmentPrefix(prefix string) *MinioStore {
	if prefix != "" {
		m.attachPrefix = prefix
	}
	return m
}

func (m *MinioStore) Client() *minio.Client {
	return m.client
}

func (m *MinioStore) Bucket() string {
	return m.bucket
}

func QRCodeObjectKey(documentID string) string {
	return path.Join(qrCodePrefix, documentID+".png")
}

func AttachmentObjectKey(prefix, documentID, filename string) string {
	return path.Join(prefix, documentID, path.Base(filename))
}

func (m *MinioStore) PutQRCode(ctx context.Context, documentID string, png []byte) (string, error) {
	objectKey := QRCodeObjectKey(documentID)
	if err := m.put(ctx, objectKey, png, "image/png"); err != nil {
		return "", err
	}
	return m.ObjectURL(objectKey), nil
}

func (m *MinioStore) PutAttachment(ctx context.Context, documentID, filename, contentType string, content []byte) (string, error) {
	objectKey := AttachmentObjectKey(m.attachPrefix, documentID, filename)
	if err := m.put(ctx, objectKey, content, contentType); err != nil {
		return "", err
	}
	return objectKey, nil
}

func (m *MinioStore) GetObject(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data := new(bytes.Buffer)
	if _, err := data.ReadFrom(obj); err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data.Bytes(), nil
}

func (m *MinioStore) ObjectURL(objectKey string) string {
	if m.publicURL != "" {
		u, err := url.Parse(m.publicURL)
		if err == nil {
			u.Path = path.Join("/", u.Path, m.bucket, objectKey)
			return u.String()
		}
	}
	u := *m.client.EndpointURL()
	u.Path = path.Join("/", m.bucket, objectKey)
	return u.String()
}

func (m *MinioStore) put(ctx context.Context, objectKey string, content []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.PutObject(ctx, m.bucket, objectKey, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	return err
}
