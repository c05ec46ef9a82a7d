package domain

import (
	"fmt"
	"strings"
)

// MaxAmount is the largest value the documents.amount column can hold.
const MaxAmount = 999_999_999_999.99

func Cancel(doc *Document) error {
	if doc.Status == StatusSigned {
		return ErrAlreadySigned
	}
	if doc.IsCancelled {
		return ErrAlreadyCancelled
	}
	doc.IsCancelled = true
	return nil
}

func Archive(doc *Document) error {
	if doc.Status != StatusSigned {
		return ErrNotSigned
	}
	if doc.IsArchived {
		return ErrAlreadyArchived
	}
	doc.IsArchived = true
	return nil
}

func ValidateIssue(req IssueRequest, catalog *Catalog) ([]Department, error) {
	if strings.TrimSpace(req.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRequest)
	}
	if req.Amount < 0 {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrInvalidRequest)
	}
	if !(req.Amount <= MaxAmount) {
		return nil, fmt.Errorf("%w: amount must not exceed %.2f", ErrInvalidRequest, MaxAmount)
	}
	if !req.DepartmentOrigin.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDepartment, req.DepartmentOrigin)
	}
	return catalog.SequenceFor(req.Type)
}
