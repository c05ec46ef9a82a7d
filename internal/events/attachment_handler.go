package events

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"docroute/internal/domain"
)

type ImageAttacher interface {
	AttachImage(ctx context.Context, documentID, imageURL string) error
}

// NewAttachmentHandler links each uploaded object to its document. Uploads
// for unknown documents are logged and dropped so one stray object does not
// stop the listener.
func NewAttachmentHandler(attacher ImageAttacher, objectURL func(objectKey string) string, logger *zap.Logger) func(context.Context, AttachmentEvent) error {
	return func(ctx context.Context, event AttachmentEvent) error {
		imageURL := objectURL(event.ObjectKey)
		err := attacher.AttachImage(ctx, event.DocumentID, imageURL)
		switch {
		case err == nil:
			logger.Info("image attached",
				zap.String("document_id", event.DocumentID),
				zap.String("object_key", event.ObjectKey),
			)
			return nil
		case errors.Is(err, domain.ErrDocumentNotFound):
			logger.Warn("attachment for unknown document",
				zap.String("document_id", event.DocumentID),
				zap.String("object_key", event.ObjectKey),
			)
			return nil
		default:
			return err
		}
	}
}
