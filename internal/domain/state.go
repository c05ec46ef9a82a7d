package domain

type DocumentStatus string

const (
	StatusCreated  DocumentStatus = "CREATED"
	StatusChecking DocumentStatus = "CHECKING"
	StatusSigned   DocumentStatus = "SIGNED"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusChecking, StatusSigned:
		return true
	}
	return false
}

type Outcome string

const (
	OutcomeChecked Outcome = "CHECKED"
	OutcomeSigned  Outcome = "SIGNED"
)

type AuditState string

const (
	AuditIssued        AuditState = "ISSUED"
	AuditQRCodeStored  AuditState = "QR_CODE_STORED"
	AuditChecked       AuditState = "CHECKED"
	AuditSigned        AuditState = "SIGNED"
	AuditCancelled     AuditState = "CANCELLED"
	AuditArchived      AuditState = "ARCHIVED"
	AuditImageAttached AuditState = "IMAGE_ATTACHED"
)
