package domain

import "fmt"

// CheckIn applies presenting's check-in to doc following seq. Preconditions
// are evaluated in a fixed order and the first failure wins; doc is left
// untouched when an error is returned.
func CheckIn(doc *Document, seq []Department, presenting Department) (Outcome, error) {
	if doc.IsCancelled {
		return "", ErrDocumentCancelled
	}
	if doc.IsArchived || doc.Status == StatusSigned {
		return "", ErrAlreadySigned
	}
	idx := indexOf(seq, presenting)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, presenting)
	}
	if doc.HasChecked(presenting) {
		return "", fmt.Errorf("%w: %s", ErrAlreadyChecked, presenting)
	}
	if doc.NextDepartment == nil || *doc.NextDepartment != presenting {
		return "", fmt.Errorf("%w: %s", ErrOutOfOrder, presenting)
	}

	doc.CheckedDepartments = append(doc.CheckedDepartments, presenting)

	// Position comes from the presenting department, not NextDepartment.
	if idx == len(seq)-1 {
		doc.Status = StatusSigned
		doc.NextDepartment = nil
		return OutcomeSigned, nil
	}

	next := seq[idx+1]
	doc.NextDepartment = &next
	if presenting == seq[0] {
		doc.Status = StatusChecking
	}
	return OutcomeChecked, nil
}

func indexOf(seq []Department, dept Department) int {
	for i, d := range seq {
		if d == dept {
			return i
		}
	}
	return -1
}
