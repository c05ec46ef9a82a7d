package temporal

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
)

// Issuer starts issuance workflows. Workflow ids are derived from the
// document id so a repeated start for the same document is harmless.
type Issuer struct {
	client    client.Client
	taskQueue string
	idPrefix  string
}

func NewIssuer(c client.Client, taskQueue, idPrefix string) *Issuer {
	return &Issuer{client: c, taskQueue: taskQueue, idPrefix: idPrefix}
}

func (i *Issuer) WorkflowID(documentID string) string {
	return fmt.Sprintf("%s-%s", i.idPrefix, documentID)
}

func (i *Issuer) StartIssuance(ctx context.Context, documentID string) (string, error) {
	workflowID := i.WorkflowID(documentID)
	_, err := i.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: i.taskQueue,
	}, DocumentIssuanceWorkflowName, IssuanceInput{DocumentID: documentID})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			return workflowID, nil
		}
		return "", fmt.Errorf("start issuance workflow %s: %w", workflowID, err)
	}
	return workflowID, nil
}
