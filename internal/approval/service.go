package approval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docroute/internal/domain"
)

const defaultMaxAttempts = 3

// ErrIssuanceNotStarted is returned alongside a persisted document whose QR
// rendering could not be scheduled.
var ErrIssuanceNotStarted = errors.New("issuance workflow not started")

// DocumentStore is the persistence the routing service depends on.
// UpdateDocument must serialize the read, mutate and write of one document
// and report a lost race as domain.ErrStorageConflict.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc domain.Document) error
	GetDocument(ctx context.Context, documentID string) (domain.Document, error)
	ListDocuments(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error)
	UpdateDocument(ctx context.Context, documentID string, mutate func(*domain.Document) error) (domain.Document, error)
	SetDocumentImage(ctx context.Context, documentID, image string) error
	InsertAudit(ctx context.Context, documentID string, state domain.AuditState, detail any) error
	ListAudit(ctx context.Context, documentID string) ([]domain.AuditEntry, error)
}

// IssuanceStarter kicks off the asynchronous QR rendering for a new document.
type IssuanceStarter interface {
	StartIssuance(ctx context.Context, documentID string) (string, error)
}

type Service struct {
	store       DocumentStore
	catalog     *domain.Catalog
	issuer      IssuanceStarter
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
	newID       func() string
}

type Option func(*Service)

func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithIssuanceStarter(issuer IssuanceStarter) Option {
	return func(s *Service) { s.issuer = issuer }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(store DocumentStore, catalog *domain.Catalog, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:       store,
		catalog:     catalog,
		logger:      logger.With(zap.String("component", "approval")),
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

type IssueResult struct {
	Document   domain.Document
	WorkflowID string
}

// Issue creates a document positioned at the first department of its
// workflow and starts QR rendering for it.
func (s *Service) Issue(ctx context.Context, req domain.IssueRequest) (IssueResult, error) {
	seq, err := domain.ValidateIssue(req, s.catalog)
	if err != nil {
		return IssueResult{}, err
	}

	doc := domain.NewDocument(s.newID(), req, seq, s.now().UTC())
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return IssueResult{}, fmt.Errorf("create document: %w", err)
	}
	s.audit(ctx, doc.ID, domain.AuditIssued, map[string]any{
		"type":              doc.Type,
		"department_origin": doc.DepartmentOrigin,
		"next_department":   seq[0],
	})

	result := IssueResult{Document: doc}
	if s.issuer != nil {
		workflowID, err := s.issuer.StartIssuance(ctx, doc.ID)
		if err != nil {
			s.logger.Error("start issuance failed", zap.String("document_id", doc.ID), zap.Error(err))
			return result, fmt.Errorf("%w: %s: %v", ErrIssuanceNotStarted, doc.ID, err)
		}
		result.WorkflowID = workflowID
	}

	s.logger.Info("document issued",
		zap.String("document_id", doc.ID),
		zap.String("type", string(doc.Type)),
		zap.String("next_department", string(seq[0])),
	)
	return result, nil
}

type CheckInResult struct {
	Outcome  domain.Outcome
	Document domain.Document
	Attempts int
}

// CheckIn records presenting's check-in on the document. Only
// domain.ErrStorageConflict is retried, each time against a fresh read.
func (s *Service) CheckIn(ctx context.Context, documentID string, presenting domain.Department) (CheckInResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		var outcome domain.Outcome
		doc, err := s.store.UpdateDocument(ctx, documentID, func(d *domain.Document) error {
			seq, err := s.catalog.SequenceFor(d.Type)
			if err != nil {
				return err
			}
			outcome, err = domain.CheckIn(d, seq, presenting)
			return err
		})
		if err == nil {
			s.recordCheckIn(ctx, doc, presenting, outcome)
			return CheckInResult{Outcome: outcome, Document: doc, Attempts: attempt}, nil
		}
		if !errors.Is(err, domain.ErrStorageConflict) {
			s.logger.Debug("check-in rejected",
				zap.String("document_id", documentID),
				zap.String("department", string(presenting)),
				zap.Error(err),
			)
			return CheckInResult{Attempts: attempt}, err
		}
		lastErr = err
		s.logger.Warn("check-in lost a write race",
			zap.String("document_id", documentID),
			zap.String("department", string(presenting)),
			zap.Int("attempt", attempt),
		)
		if ctx.Err() != nil {
			return CheckInResult{Attempts: attempt}, ctx.Err()
		}
	}
	return CheckInResult{Attempts: s.maxAttempts}, fmt.Errorf("check-in retries exhausted: %w", lastErr)
}

func (s *Service) Cancel(ctx context.Context, documentID string) (domain.Document, error) {
	doc, err := s.store.UpdateDocument(ctx, documentID, domain.Cancel)
	if err != nil {
		return domain.Document{}, err
	}
	s.audit(ctx, documentID, domain.AuditCancelled, map[string]any{"status": doc.Status})
	s.logger.Info("document cancelled", zap.String("document_id", documentID))
	return doc, nil
}

func (s *Service) Archive(ctx context.Context, documentID string) (domain.Document, error) {
	doc, err := s.store.UpdateDocument(ctx, documentID, domain.Archive)
	if err != nil {
		return domain.Document{}, err
	}
	s.audit(ctx, documentID, domain.AuditArchived, nil)
	s.logger.Info("document archived", zap.String("document_id", documentID))
	return doc, nil
}

// AttachImage links an uploaded object to the document.
func (s *Service) AttachImage(ctx context.Context, documentID, imageURL string) error {
	if err := s.store.SetDocumentImage(ctx, documentID, imageURL); err != nil {
		return err
	}
	s.audit(ctx, documentID, domain.AuditImageAttached, map[string]any{"image": imageURL})
	return nil
}

func (s *Service) Get(ctx context.Context, documentID string) (domain.Document, error) {
	return s.store.GetDocument(ctx, documentID)
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	return s.store.ListDocuments(ctx, filter)
}

func (s *Service) History(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	if _, err := s.store.GetDocument(ctx, documentID); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, documentID)
}

func (s *Service) recordCheckIn(ctx context.Context, doc domain.Document, presenting domain.Department, outcome domain.Outcome) {
	state := domain.AuditChecked
	if outcome == domain.OutcomeSigned {
		state = domain.AuditSigned
	}
	detail := map[string]any{"department": presenting}
	if doc.NextDepartment != nil {
		detail["next_department"] = *doc.NextDepartment
	}
	s.audit(ctx, doc.ID, state, detail)
	s.logger.Info("document checked in",
		zap.String("document_id", doc.ID),
		zap.String("department", string(presenting)),
		zap.String("outcome", string(outcome)),
		zap.String("status", string(doc.Status)),
	)
}

// audit failures are logged, never surfaced: the state change is already committed.
func (s *Service) audit(ctx context.Context, documentID string, state domain.AuditState, detail any) {
	if err := s.store.InsertAudit(ctx, documentID, state, detail); err != nil {
		s.logger.Error("audit insert failed",
			zap.String("document_id", documentID),
			zap.String("state", string(state)),
			zap.Error(err),
		)
	}
}
