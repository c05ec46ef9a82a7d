package temporal

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"docroute/internal/domain"
	"docroute/internal/qr"
	"docroute/internal/storage"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	renderIn  *RenderQRCodeInput
	uploadIn  *UploadQRCodeInput
	uploadOut *UploadQRCodeOutput
	recordIn  *RecordQRCodeInput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("DocumentIssuanceWorkflow blackbox happy path", func() {
	It("renders, uploads and records the qr code of an issued document", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()

		store := storage.NewMemoryStore()
		seq, err := domain.DefaultCatalog().SequenceFor(domain.DocTypePurchaseRequest)
		Expect(err).ToNot(HaveOccurred())
		documentID := "doc-happy-blackbox-1"
		Expect(store.CreateDocument(context.Background(), domain.NewDocument(documentID, domain.IssueRequest{
			Title:            "Office chairs",
			Amount:           45000,
			Type:             domain.DocTypePurchaseRequest,
			DepartmentOrigin: domain.DeptGSO,
		}, seq, testNow))).To(Succeed())

		artifacts := newFakeArtifacts()
		acts := &Activities{
			Store:     store,
			Artifacts: artifacts,
			Renderer:  qr.NewPNGRenderer(128),
		}

		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "RenderQRCodeActivity":
				var in RenderQRCodeInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.renderIn = &in
				trace.mu.Unlock()
			case "UploadQRCodeActivity":
				var in UploadQRCodeInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.uploadIn = &in
				trace.mu.Unlock()
			case "RecordQRCodeActivity":
				var in RecordQRCodeInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.recordIn = &in
				trace.mu.Unlock()
			}
		})

		env.SetOnActivityCompletedListener(func(info *activity.Info, result converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)

			if info.ActivityType.Name == "UploadQRCodeActivity" {
				var out UploadQRCodeOutput
				_ = result.Get(&out)
				trace.mu.Lock()
				trace.uploadOut = &out
				trace.mu.Unlock()
			}
		})

		env.RegisterWorkflow(DocumentIssuanceWorkflow)
		env.RegisterActivity(acts.RenderQRCodeActivity)
		env.RegisterActivity(acts.UploadQRCodeActivity)
		env.RegisterActivity(acts.RecordQRCodeActivity)

		By("triggering the workflow execution")
		env.ExecuteWorkflow(DocumentIssuanceWorkflow, IssuanceInput{DocumentID: documentID})

		By("validating workflow completes successfully")
		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).ToNot(HaveOccurred())

		var wfResult IssuanceResult
		Expect(env.GetWorkflowResult(&wfResult)).To(Succeed())
		Expect(wfResult.DocumentID).To(Equal(documentID))
		Expect(wfResult.QRCode).To(HaveSuffix(storage.QRCodeObjectKey(documentID)))

		By("validating each activity input and output")
		expectedOrder := []string{"RenderQRCodeActivity", "UploadQRCodeActivity", "RecordQRCodeActivity"}
		Expect(trace.startedOrder).To(Equal(expectedOrder))
		Expect(trace.completedOrder).To(Equal(expectedOrder))

		Expect(trace.renderIn).ToNot(BeNil())
		Expect(trace.renderIn.DocumentID).To(Equal(documentID))

		Expect(trace.uploadIn).ToNot(BeNil())
		Expect(trace.uploadIn.DocumentID).To(Equal(documentID))
		Expect(trace.uploadIn.PNG[:4]).To(Equal([]byte("\x89PNG")))

		Expect(trace.uploadOut).ToNot(BeNil())
		Expect(trace.recordIn).ToNot(BeNil())
		Expect(trace.recordIn.QRCode).To(Equal(trace.uploadOut.QRCode))

		By("validating persisted side effects")
		doc, err := store.GetDocument(context.Background(), documentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(doc.QRCode).To(Equal(wfResult.QRCode))
		Expect(doc.Status).To(Equal(domain.StatusCreated))
		Expect(doc.Version).To(Equal(int64(1)))

		artifacts.mu.Lock()
		png := artifacts.objects[storage.QRCodeObjectKey(documentID)]
		artifacts.mu.Unlock()
		Expect(png).To(Equal(trace.uploadIn.PNG))

		history, err := store.ListAudit(context.Background(), documentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(history).To(HaveLen(1))
		Expect(history[0].State).To(Equal(domain.AuditQRCodeStored))
	})
})
