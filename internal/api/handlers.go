package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"docroute/internal/approval"
	"docroute/internal/config"
	"docroute/internal/domain"
	"docroute/internal/qr"
	"docroute/internal/storage"
)

type Handler struct {
	cfg       config.Config
	svc       *approval.Service
	readiness pinger
	artifacts attachmentStore
	logger    *zap.Logger
}

type pinger interface {
	Ping(ctx context.Context) error
}

type attachmentStore interface {
	PutAttachment(ctx context.Context, documentID, filename, contentType string, content []byte) (string, error)
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
}

type issueRequest struct {
	Title            string              `json:"title"`
	Amount           float64             `json:"amount"`
	Type             domain.DocumentType `json:"type"`
	DepartmentOrigin domain.Department   `json:"departmentOrigin"`
}

type issueResponse struct {
	Document   domain.Document `json:"document"`
	WorkflowID string          `json:"workflowId,omitempty"`
	Warning    string          `json:"warning,omitempty"`
}

// scanRequest identifies the document either by id or by the raw text a
// scanner decoded from its QR code.
type scanRequest struct {
	DocumentID           string            `json:"documentId"`
	QRPayload            string            `json:"qrPayload,omitempty"`
	PresentingDepartment domain.Department `json:"presentingDepartment"`
}

type scanResponse struct {
	Message  string          `json:"message"`
	Outcome  domain.Outcome  `json:"outcome"`
	Document domain.Document `json:"document"`
}

type catalogResponse struct {
	Types     []domain.DocumentType                       `json:"types"`
	Sequences map[domain.DocumentType][]domain.Department `json:"sequences"`
}

// NewHandler wires the HTTP surface. artifacts may be nil when no object
// store is configured; the image and QR endpoints then answer 503.
func NewHandler(cfg config.Config, svc *approval.Service, readiness pinger, artifacts attachmentStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		svc:       svc,
		readiness: readiness,
		artifacts: artifacts,
		logger:    logger.With(zap.String("component", "api")),
	}
}

func (h *Handler) IssueDocument(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}

	res, err := h.svc.Issue(ctx, domain.IssueRequest{
		Title:            req.Title,
		Amount:           req.Amount,
		Type:             req.Type,
		DepartmentOrigin: req.DepartmentOrigin,
	})
	if err != nil {
		if errors.Is(err, approval.ErrIssuanceNotStarted) {
			// The document exists; the QR code can be rendered later.
			writeJSON(w, http.StatusCreated, issueResponse{Document: res.Document, Warning: "qr code generation not started"})
			return
		}
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, issueResponse{Document: res.Document, WorkflowID: res.WorkflowID})
}

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter, err := parseListFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	docs, err := h.svc.List(ctx, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": docs})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := h.svc.Get(ctx, documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	entries, err := h.svc.History(ctx, documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if req.DocumentID == "" && req.QRPayload != "" {
		id, err := qr.ParsePayload([]byte(req.QRPayload))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid qrPayload"})
			return
		}
		req.DocumentID = id
	}
	if req.DocumentID == "" || req.PresentingDepartment == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "documentId and presentingDepartment are required"})
		return
	}

	res, err := h.svc.CheckIn(ctx, req.DocumentID, req.PresentingDepartment)
	if err != nil {
		h.writeError(w, err)
		return
	}

	message := fmt.Sprintf("Document checked by %s", req.PresentingDepartment)
	if res.Outcome == domain.OutcomeSigned {
		message = "Document signed"
	}
	writeJSON(w, http.StatusOK, scanResponse{Message: message, Outcome: res.Outcome, Document: res.Document})
}

func (h *Handler) CancelDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := h.svc.Cancel(ctx, documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Document cancelled", "document": doc})
}

func (h *Handler) ArchiveDocument(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := h.svc.Archive(ctx, documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Document archived", "document": doc})
}

// UploadImage stores the file in the object store. The bucket notification
// listener links it to the document once the object exists.
func (h *Handler) UploadImage(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	if h.artifacts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "object storage not configured"})
		return
	}
	if _, err := h.svc.Get(ctx, documentID); err != nil {
		h.writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(h.cfg.AllowedUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid multipart payload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file form field is required"})
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, h.cfg.AllowedUploadBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read file"})
		return
	}
	if int64(len(body)) > h.cfg.AllowedUploadBytes {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file exceeds size limit"})
		return
	}
	contentType, ok := detectImageType(body)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "file must be a png, jpeg, gif or webp image"})
		return
	}

	filename := attachmentFilename(header.Filename, contentType)
	objectKey, err := h.artifacts.PutAttachment(ctx, documentID, filename, contentType, body)
	if err != nil {
		h.logger.Error("upload attachment failed", zap.String("document_id", documentID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to upload file"})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"documentId": documentID,
		"objectKey":  objectKey,
	})
}

func (h *Handler) GetQRCode(w http.ResponseWriter, r *http.Request, documentID string) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if h.artifacts == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "object storage not configured"})
		return
	}
	doc, err := h.svc.Get(ctx, documentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if doc.QRCode == "" {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "qr code not generated yet"})
		return
	}

	png, err := h.artifacts.GetObject(ctx, storage.QRCodeObjectKey(documentID))
	if err != nil {
		h.logger.Error("fetch qr code failed", zap.String("document_id", documentID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "failed to fetch qr code"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, catalogResponse{
		Types:     h.svc.Catalog().Types(),
		Sequences: h.svc.Catalog().Sequences(),
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.readiness.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := domain.MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeJSON(w, status, map[string]any{"error": "internal error"})
		return
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func parseListFilter(r *http.Request) (domain.ListFilter, error) {
	q := r.URL.Query()
	var filter domain.ListFilter

	if v := q.Get("status"); v != "" {
		status := domain.DocumentStatus(v)
		if !status.Valid() {
			return filter, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidRequest, v)
		}
		filter.Status = status
	}
	if v := q.Get("type"); v != "" {
		filter.Type = domain.DocumentType(v)
	}
	if v := q.Get("nextDepartment"); v != "" {
		filter.NextDepartment = domain.Department(v)
	}
	if v := q.Get("archived"); v != "" {
		archived, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("%w: archived must be a boolean", domain.ErrInvalidRequest)
		}
		filter.Archived = &archived
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return filter, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrInvalidRequest)
		}
		filter.Limit = limit
	}
	return filter, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
