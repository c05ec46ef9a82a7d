package domain

import (
	"encoding/json"
	"time"
)

type DocumentType string

const (
	DocTypeMemorandum      DocumentType = "MEMORANDUM"
	DocTypePurchaseRequest DocumentType = "PURCHASE_REQUEST"
	DocTypePayroll         DocumentType = "PAYROLL"
	DocTypeVoucherBilling  DocumentType = "VOUCHER_BILLING"
)

type Department string

const (
	DeptMO    Department = "MO"
	DeptMPDC  Department = "MPDC"
	DeptMBO   Department = "MBO"
	DeptMACCO Department = "MACCO"
	DeptMTO   Department = "MTO"
	DeptHRMO  Department = "HRMO"
	DeptGSO   Department = "GSO"
)

var knownDepartments = map[Department]struct{}{
	DeptMO:    {},
	DeptMPDC:  {},
	DeptMBO:   {},
	DeptMACCO: {},
	DeptMTO:   {},
	DeptHRMO:  {},
	DeptGSO:   {},
}

func (d Department) Valid() bool {
	_, ok := knownDepartments[d]
	return ok
}

type Document struct {
	ID                 string         `json:"id"`
	Title              string         `json:"title"`
	Amount             float64        `json:"amount"`
	Type               DocumentType   `json:"type"`
	DepartmentOrigin   Department     `json:"departmentOrigin"`
	Status             DocumentStatus `json:"status"`
	NextDepartment     *Department    `json:"nextDepartment"`
	CheckedDepartments []Department   `json:"checkedDepartments"`
	IsArchived         bool           `json:"isArchived"`
	IsCancelled        bool           `json:"isCancelled"`
	QRCode             string         `json:"qrCode,omitempty"`
	Image              string         `json:"image,omitempty"`
	Version            int64          `json:"version"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`
}

// Clone returns a deep copy so callers can evaluate mutations without
// touching the stored value.
func (d Document) Clone() Document {
	out := d
	if d.NextDepartment != nil {
		next := *d.NextDepartment
		out.NextDepartment = &next
	}
	if d.CheckedDepartments != nil {
		out.CheckedDepartments = make([]Department, len(d.CheckedDepartments))
		copy(out.CheckedDepartments, d.CheckedDepartments)
	}
	return out
}

func (d Document) HasChecked(dept Department) bool {
	for _, c := range d.CheckedDepartments {
		if c == dept {
			return true
		}
	}
	return false
}

type IssueRequest struct {
	Title            string       `json:"title"`
	Amount           float64      `json:"amount"`
	Type             DocumentType `json:"type"`
	DepartmentOrigin Department   `json:"departmentOrigin"`
}

type ListFilter struct {
	Status         DocumentStatus
	Type           DocumentType
	NextDepartment Department
	Archived       *bool
	Limit          int
}

// NewDocument builds the initial state of a freshly issued document.
func NewDocument(id string, req IssueRequest, seq []Department, now time.Time) Document {
	first := seq[0]
	return Document{
		ID:                 id,
		Title:              req.Title,
		Amount:             req.Amount,
		Type:               req.Type,
		DepartmentOrigin:   req.DepartmentOrigin,
		Status:             StatusCreated,
		NextDepartment:     &first,
		CheckedDepartments: []Department{},
		Version:            1,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

type AuditEntry struct {
	DocumentID string          `json:"documentId"`
	State      AuditState      `json:"state"`
	Detail     json.RawMessage `json:"detail"`
	CreatedAt  time.Time       `json:"createdAt"`
}
