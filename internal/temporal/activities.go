package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"docroute/internal/domain"
	"docroute/internal/qr"
)

const errTypeDocumentNotFound = "DocumentNotFound"

type ActivityStore interface {
	GetDocument(ctx context.Context, documentID string) (domain.Document, error)
	SetQRCode(ctx context.Context, documentID, qrCode string) error
	InsertAudit(ctx context.Context, documentID string, state domain.AuditState, detail any) error
}

type ArtifactStore interface {
	PutQRCode(ctx context.Context, documentID string, png []byte) (string, error)
}

type Activities struct {
	Store     ActivityStore
	Artifacts ArtifactStore
	Renderer  qr.Renderer
}

type RenderQRCodeInput struct {
	DocumentID string
}

type RenderQRCodeOutput struct {
	PNG []byte
	// ExistingQRCode is set when the document already carries a QR code;
	// the rest of the workflow then has nothing to do.
	ExistingQRCode string
}

type UploadQRCodeInput struct {
	DocumentID string
	PNG        []byte
}

type UploadQRCodeOutput struct {
	QRCode string
}

type RecordQRCodeInput struct {
	DocumentID string
	QRCode     string
}

func (a *Activities) RenderQRCodeActivity(ctx context.Context, input RenderQRCodeInput) (RenderQRCodeOutput, error) {
	doc, err := a.Store.GetDocument(ctx, input.DocumentID)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return RenderQRCodeOutput{}, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("document %s not found", input.DocumentID), errTypeDocumentNotFound, err)
		}
		return RenderQRCodeOutput{}, err
	}
	if doc.QRCode != "" {
		return RenderQRCodeOutput{ExistingQRCode: doc.QRCode}, nil
	}

	png, err := a.Renderer.Render(qr.Payload(doc.ID))
	if err != nil {
		return RenderQRCodeOutput{}, err
	}
	return RenderQRCodeOutput{PNG: png}, nil
}

func (a *Activities) UploadQRCodeActivity(ctx context.Context, input UploadQRCodeInput) (UploadQRCodeOutput, error) {
	if len(input.PNG) == 0 {
		return UploadQRCodeOutput{}, temporal.NewNonRetryableApplicationError("empty qr image", "InvalidInput", nil)
	}
	url, err := a.Artifacts.PutQRCode(ctx, input.DocumentID, input.PNG)
	if err != nil {
		return UploadQRCodeOutput{}, fmt.Errorf("upload qr code: %w", err)
	}
	return UploadQRCodeOutput{QRCode: url}, nil
}

func (a *Activities) RecordQRCodeActivity(ctx context.Context, input RecordQRCodeInput) error {
	if err := a.Store.SetQRCode(ctx, input.DocumentID, input.QRCode); err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("document %s not found", input.DocumentID), errTypeDocumentNotFound, err)
		}
		return err
	}
	return a.Store.InsertAudit(ctx, input.DocumentID, domain.AuditQRCodeStored, map[string]any{"qr_code": input.QRCode})
}
