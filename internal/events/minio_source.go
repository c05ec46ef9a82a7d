package events

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/notification"
)

const objectCreatedEvent = "s3:ObjectCreated:*"

// AttachmentEvent is an uploaded object stored under
// <prefix>/<document id>/<filename>.
type AttachmentEvent struct {
	DocumentID string
	Filename   string
	ObjectKey  string
	EventName  string
}

type AttachmentEventSource interface {
	Run(ctx context.Context, handler func(context.Context, AttachmentEvent) error) error
}

type MinioAttachmentEventSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewMinioAttachmentEventSource(client *minio.Client, bucket string, prefix string) *MinioAttachmentEventSource {
	return &MinioAttachmentEventSource{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (s *MinioAttachmentEventSource) Run(ctx context.Context, handler func(context.Context, AttachmentEvent) error) error {
	notificationCh := s.client.ListenBucketNotification(ctx, s.bucket, s.prefix+"/", "", []string{objectCreatedEvent})
	for {
		select {
		case <-ctx.Done():
			return nil
		case info, ok := <-notificationCh:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream closed")
			}
			if info.Err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("minio notification stream error: %w", info.Err)
			}
			if err := s.dispatch(ctx, info.Records, handler); err != nil {
				return err
			}
		}
	}
}

// dispatch skips records whose key is not an attachment key.
func (s *MinioAttachmentEventSource) dispatch(ctx context.Context, records []notification.Event, handler func(context.Context, AttachmentEvent) error) error {
	for _, record := range records {
		objectKey, err := decodeObjectKey(record.S3.Object.Key)
		if err != nil {
			continue
		}
		documentID, filename, err := parseObjectKey(s.prefix, objectKey)
		if err != nil {
			continue
		}
		event := AttachmentEvent{
			DocumentID: documentID,
			Filename:   filename,
			ObjectKey:  objectKey,
			EventName:  record.EventName,
		}
		if err := handler(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

func decodeObjectKey(encoded string) (string, error) {
	decoded, err := url.QueryUnescape(encoded)
	if err != nil {
		return "", err
	}
	decoded = strings.TrimSpace(decoded)
	if decoded == "" {
		return "", fmt.Errorf("object key is empty")
	}
	return decoded, nil
}

func parseObjectKey(prefix, objectKey string) (string, string, error) {
	cleaned := strings.Trim(strings.ReplaceAll(objectKey, "\\", "/"), "/")
	if prefix != "" {
		if !strings.HasPrefix(cleaned, prefix+"/") {
			return "", "", fmt.Errorf("object key %q is outside %q", objectKey, prefix)
		}
		cleaned = strings.TrimPrefix(cleaned, prefix+"/")
	}
	parts := strings.SplitN(cleaned, "/", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("object key %q does not match document_id/filename", objectKey)
	}
	documentID := strings.TrimSpace(parts[0])
	filename := strings.TrimSpace(parts[1])
	if documentID == "" || filename == "" {
		return "", "", fmt.Errorf("object key %q missing document id or filename", objectKey)
	}
	return documentID, filename, nil
}
