//go:build system

package system_test

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"strings"
	"sync"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"docroute/internal/domain"
	"docroute/internal/qr"
	appTemporal "docroute/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		repoRoot, err := findRepoRoot()
		Expect(err).ToNot(HaveOccurred())

		By("verifying required docker compose services (including worker) are already running")
		Expect(requireComposeServicesRunning(repoRoot, cfg.RequiredComposeServices)).To(Succeed())

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(applyMigrations(repoRoot, cfg.PostgresDSN)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())
	})

	It("issues a purchase request, routes it through every department and archives it", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		By("issuing a document exactly like a clerk")
		issued, err := issueDocument(apiBaseURL, map[string]any{
			"title":            "Laptops for the budget office",
			"amount":           184500,
			"type":             domain.DocTypePurchaseRequest,
			"departmentOrigin": domain.DeptGSO,
		})
		Expect(err).ToNot(HaveOccurred())
		Expect(issued.Warning).To(BeEmpty())
		Expect(issued.WorkflowID).ToNot(BeEmpty())
		documentID := issued.Document.ID
		Expect(documentID).ToNot(BeEmpty())
		Expect(issued.Document.Status).To(Equal(domain.StatusCreated))
		Expect(*issued.Document.NextDepartment).To(Equal(domain.DeptMPDC))

		By("waiting for the issuance workflow to record the qr code")
		Eventually(func() string {
			doc, getErr := getDocument(apiBaseURL, documentID)
			Expect(getErr).ToNot(HaveOccurred())
			return doc.QRCode
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).ShouldNot(BeEmpty())

		png, contentType, err := getQRCode(apiBaseURL, documentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(contentType).To(Equal("image/png"))
		Expect(png[:4]).To(Equal([]byte("\x89PNG")))

		By("validating activity inputs and outputs from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		trace, err := collectActivityTrace(context.Background(), temporalClient, issued.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(trace.ScheduledOrder).To(Equal(cfg.ExpectedActivityOrder))
		Expect(trace.CompletedOrder).To(Equal(cfg.ExpectedActivityOrder))

		renderIn := trace.Inputs["RenderQRCodeActivity"].(appTemporal.RenderQRCodeInput)
		Expect(renderIn.DocumentID).To(Equal(documentID))
		uploadOut := trace.Outputs["UploadQRCodeActivity"].(appTemporal.UploadQRCodeOutput)
		recordIn := trace.Inputs["RecordQRCodeActivity"].(appTemporal.RecordQRCodeInput)
		Expect(recordIn.QRCode).To(Equal(uploadOut.QRCode))

		By("rejecting a department that is not next")
		_, status, err := scanDocument(apiBaseURL, documentID, domain.DeptMACCO)
		Expect(err).ToNot(HaveOccurred())
		Expect(status).To(Equal(http.StatusBadRequest))

		By("scanning at every department in order")
		seq := []domain.Department{domain.DeptMPDC, domain.DeptMBO, domain.DeptMACCO, domain.DeptMO}
		for i, dept := range seq {
			res, status, err := scanDocument(apiBaseURL, documentID, dept)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			if i < len(seq)-1 {
				Expect(res.Outcome).To(Equal(domain.OutcomeChecked))
				Expect(res.Document.Status).To(Equal(domain.StatusChecking))
				Expect(*res.Document.NextDepartment).To(Equal(seq[i+1]))
			} else {
				Expect(res.Outcome).To(Equal(domain.OutcomeSigned))
				Expect(res.Document.Status).To(Equal(domain.StatusSigned))
				Expect(res.Document.NextDepartment).To(BeNil())
			}
		}

		By("attaching a scanned image through object storage")
		image, err := qr.NewPNGRenderer(64).Render([]byte("signed copy"))
		Expect(err).ToNot(HaveOccurred())
		Expect(uploadImage(apiBaseURL, documentID, "signed.png", image)).To(Succeed())
		Eventually(func() string {
			doc, getErr := getDocument(apiBaseURL, documentID)
			Expect(getErr).ToNot(HaveOccurred())
			return doc.Image
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(HaveSuffix("signed.png"))

		By("archiving the signed document")
		archived, err := archiveDocument(apiBaseURL, documentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(archived.IsArchived).To(BeTrue())
		Expect(archived.CheckedDepartments).To(Equal(seq))

		By("verifying the audit trail in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()
		Expect(db.Ping()).To(Succeed())

		auditStates, err := fetchStringRows(db, `SELECT state FROM audit_log WHERE document_id = $1 ORDER BY id`, documentID)
		Expect(err).ToNot(HaveOccurred())
		Expect(auditStates).To(ContainElements(
			string(domain.AuditIssued),
			string(domain.AuditQRCodeStored),
			string(domain.AuditChecked),
			string(domain.AuditSigned),
			string(domain.AuditImageAttached),
			string(domain.AuditArchived),
		))
	})

	It("lets exactly one of two simultaneous check-ins by the same department through", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")

		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		const rounds = 5
		for round := 0; round < rounds; round++ {
			issued, err := issueDocument(apiBaseURL, map[string]any{
				"title":            "Printer toner",
				"amount":           4200,
				"type":             domain.DocTypePurchaseRequest,
				"departmentOrigin": domain.DeptGSO,
			})
			Expect(err).ToNot(HaveOccurred())
			documentID := issued.Document.ID

			type scanResult struct {
				status int
				err    error
			}
			results := make([]scanResult, 2)
			start := make(chan struct{})
			var wg sync.WaitGroup
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					<-start
					_, status, err := scanDocument(apiBaseURL, documentID, domain.DeptMPDC)
					results[i] = scanResult{status: status, err: err}
				}(i)
			}
			close(start)
			wg.Wait()

			statuses := make([]int, 0, len(results))
			for _, res := range results {
				Expect(res.err).ToNot(HaveOccurred())
				statuses = append(statuses, res.status)
			}
			Expect(statuses).To(ConsistOf(
				http.StatusOK,
				BeElementOf(http.StatusBadRequest, http.StatusConflict),
			))

			doc, err := getDocument(apiBaseURL, documentID)
			Expect(err).ToNot(HaveOccurred())
			Expect(doc.CheckedDepartments).To(Equal([]domain.Department{domain.DeptMPDC}))
			Expect(doc.Status).To(Equal(domain.StatusChecking))
			Expect(*doc.NextDepartment).To(Equal(domain.DeptMBO))

			checked, err := fetchStringRows(db, `SELECT state FROM audit_log WHERE document_id = $1 AND state = $2`,
				documentID, string(domain.AuditChecked))
			Expect(err).ToNot(HaveOccurred())
			Expect(checked).To(HaveLen(1))
		}
	})
})
