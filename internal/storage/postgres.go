package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"docroute/internal/domain"
)

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgNumericOutOfRange    = "22003"
)

const selectDocument = `
	SELECT id, title, amount, doc_type, department_origin, status, next_department,
	       checked_departments, is_archived, is_cancelled, COALESCE(qr_code, ''), COALESCE(image, ''),
	       version, created_at, updated_at
	FROM documents
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) CreateDocument(ctx context.Context, doc domain.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, title, amount, doc_type, department_origin, status, next_department,
		                       checked_departments, is_archived, is_cancelled, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, doc.ID, doc.Title, doc.Amount, doc.Type, doc.DepartmentOrigin, doc.Status, nullDepartment(doc.NextDepartment),
		pq.Array(departmentStrings(doc.CheckedDepartments)), doc.IsArchived, doc.IsCancelled, doc.Version,
		doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, documentID string) (domain.Document, error) {
	row := s.db.QueryRowContext(ctx, selectDocument+` WHERE id = $1`, documentID)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, classify(err)
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter domain.ListFilter) ([]domain.Document, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Type != "" {
		add("doc_type = $%d", filter.Type)
	}
	if filter.NextDepartment != "" {
		add("next_department = $%d", filter.NextDepartment)
	}
	if filter.Archived != nil {
		add("is_archived = $%d", *filter.Archived)
	}

	q := selectDocument
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	docs := make([]domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, classify(err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return docs, nil
}

// UpdateDocument runs mutate against a row-locked read of the document and
// writes the result back only if the version has not moved underneath it.
// A locked row or a version mismatch yields domain.ErrStorageConflict.
func (s *PostgresStore) UpdateDocument(ctx context.Context, documentID string, mutate func(*domain.Document) error) (domain.Document, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Document{}, classify(err)
	}
	defer func() { _ = tx.Rollback() }()

	doc, err := scanDocument(tx.QueryRowContext(ctx, selectDocument+` WHERE id = $1 FOR UPDATE NOWAIT`, documentID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, domain.ErrDocumentNotFound
		}
		return domain.Document{}, classify(err)
	}

	readVersion := doc.Version
	if err := mutate(&doc); err != nil {
		return domain.Document{}, err
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE documents
		SET status = $3,
		    next_department = $4,
		    checked_departments = $5,
		    is_archived = $6,
		    is_cancelled = $7,
		    version = version + 1,
		    updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at
	`, documentID, readVersion, doc.Status, nullDepartment(doc.NextDepartment),
		pq.Array(departmentStrings(doc.CheckedDepartments)), doc.IsArchived, doc.IsCancelled,
	).Scan(&doc.Version, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Document{}, fmt.Errorf("%w: document %s changed concurrently", domain.ErrStorageConflict, documentID)
		}
		return domain.Document{}, classify(err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Document{}, classify(err)
	}
	return doc, nil
}

// SetQRCode records the QR artifact once. Repeating the call with the same
// reference is a no-op so retried activities stay idempotent.
func (s *PostgresStore) SetQRCode(ctx context.Context, documentID, qrCode string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET qr_code = $2, updated_at = NOW()
		WHERE id = $1 AND (qr_code IS NULL OR qr_code = '' OR qr_code = $2)
	`, documentID, qrCode)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		if _, err := s.GetDocument(ctx, documentID); err != nil {
			return err
		}
		return fmt.Errorf("document %s already has a different qr code", documentID)
	}
	return nil
}

func (s *PostgresStore) SetDocumentImage(ctx context.Context, documentID, image string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE documents
		SET image = $2, updated_at = NOW()
		WHERE id = $1
	`, documentID, image)
	if err != nil {
		return classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (s *PostgresStore) InsertAudit(ctx context.Context, documentID string, state domain.AuditState, detail any) error {
	payload, err := auditPayload(detail)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (document_id, state, detail)
		VALUES ($1, $2, $3::jsonb)
	`, documentID, state, string(payload))
	if err != nil {
		return classify(err)
	}
	return nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, documentID string) ([]domain.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT document_id, state, detail, created_at
		FROM audit_log
		WHERE document_id = $1
		ORDER BY id ASC
	`, documentID)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var e domain.AuditEntry
		var detail []byte
		if err := rows.Scan(&e.DocumentID, &e.State, &detail, &e.CreatedAt); err != nil {
			return nil, classify(err)
		}
		e.Detail = detail
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (domain.Document, error) {
	var doc domain.Document
	var next sql.NullString
	var checked []string
	if err := row.Scan(
		&doc.ID,
		&doc.Title,
		&doc.Amount,
		&doc.Type,
		&doc.DepartmentOrigin,
		&doc.Status,
		&next,
		pq.Array(&checked),
		&doc.IsArchived,
		&doc.IsCancelled,
		&doc.QRCode,
		&doc.Image,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	); err != nil {
		return domain.Document{}, err
	}
	if next.Valid {
		dept := domain.Department(next.String)
		doc.NextDepartment = &dept
	}
	doc.CheckedDepartments = make([]domain.Department, 0, len(checked))
	for _, c := range checked {
		doc.CheckedDepartments = append(doc.CheckedDepartments, domain.Department(c))
	}
	return doc, nil
}

func nullDepartment(d *domain.Department) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*d), Valid: true}
}

func departmentStrings(depts []domain.Department) []string {
	out := make([]string, 0, len(depts))
	for _, d := range depts {
		out = append(out, string(d))
	}
	return out
}

func auditPayload(detail any) ([]byte, error) {
	switch v := detail.(type) {
	case nil:
		return []byte("{}"), nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

// classify folds driver errors into the storage error kinds callers branch on.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
			return fmt.Errorf("%w: %s", domain.ErrStorageConflict, pqErr.Message)
		case pgNumericOutOfRange:
			return fmt.Errorf("%w: %s", domain.ErrInvalidRequest, pqErr.Message)
		}
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}
