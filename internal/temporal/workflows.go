package temporal

import (
	"go.temporal.io/sdk/workflow"
)

const DocumentIssuanceWorkflowName = "DocumentIssuanceWorkflow"

type IssuanceInput struct {
	DocumentID string
}

type IssuanceResult struct {
	DocumentID string
	QRCode     string
}

// DocumentIssuanceWorkflow renders the scan QR code of a freshly issued
// document, stores the image and records its URL on the document.
func DocumentIssuanceWorkflow(ctx workflow.Context, input IssuanceInput) (IssuanceResult, error) {
	logger := workflow.GetLogger(ctx)

	var rendered RenderQRCodeOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRenderQRCode), (*Activities).RenderQRCodeActivity, RenderQRCodeInput{
		DocumentID: input.DocumentID,
	}).Get(ctx, &rendered); err != nil {
		return IssuanceResult{}, err
	}
	if rendered.ExistingQRCode != "" {
		logger.Info("document already has a qr code", "document_id", input.DocumentID)
		return IssuanceResult{DocumentID: input.DocumentID, QRCode: rendered.ExistingQRCode}, nil
	}

	var uploaded UploadQRCodeOutput
	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyUploadQRCode), (*Activities).UploadQRCodeActivity, UploadQRCodeInput{
		DocumentID: input.DocumentID,
		PNG:        rendered.PNG,
	}).Get(ctx, &uploaded); err != nil {
		return IssuanceResult{}, err
	}

	if err := workflow.ExecuteActivity(mustActivityContext(ctx, ActivityPolicyRecordQRCode), (*Activities).RecordQRCodeActivity, RecordQRCodeInput{
		DocumentID: input.DocumentID,
		QRCode:     uploaded.QRCode,
	}).Get(ctx, nil); err != nil {
		return IssuanceResult{}, err
	}

	return IssuanceResult{DocumentID: input.DocumentID, QRCode: uploaded.QRCode}, nil
}
