package domain

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Catalog maps each document type to the ordered departments that must
// check it in. The last department's check-in signs the document.
type Catalog struct {
	sequences map[DocumentType][]Department
}

var defaultSequences = map[DocumentType][]Department{
	DocTypeMemorandum:      {DeptMO},
	DocTypePurchaseRequest: {DeptMPDC, DeptMBO, DeptMACCO, DeptMO},
	DocTypePayroll:         {DeptMPDC, DeptHRMO, DeptMBO, DeptMACCO, DeptMO, DeptMTO},
	DocTypeVoucherBilling:  {DeptMPDC, DeptMBO, DeptMACCO, DeptMO, DeptMTO},
}

func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultSequences)
	if err != nil {
		panic(err)
	}
	return c
}

func NewCatalog(sequences map[DocumentType][]Department) (*Catalog, error) {
	if len(sequences) == 0 {
		return nil, fmt.Errorf("catalog is empty")
	}
	out := make(map[DocumentType][]Department, len(sequences))
	for docType, seq := range sequences {
		if docType == "" {
			return nil, fmt.Errorf("catalog entry with empty document type")
		}
		if len(seq) == 0 {
			return nil, fmt.Errorf("catalog entry %s has no departments", docType)
		}
		seen := make(map[Department]struct{}, len(seq))
		for _, dept := range seq {
			if !dept.Valid() {
				return nil, fmt.Errorf("catalog entry %s: %w: %q", docType, ErrUnknownDepartment, dept)
			}
			if _, dup := seen[dept]; dup {
				return nil, fmt.Errorf("catalog entry %s lists %s more than once", docType, dept)
			}
			seen[dept] = struct{}{}
		}
		out[docType] = append([]Department(nil), seq...)
	}
	return &Catalog{sequences: out}, nil
}

type catalogFile struct {
	Sequences map[DocumentType][]Department `yaml:"sequences"`
}

// LoadCatalog reads a catalog from a YAML file of the form
//
//	sequences:
//	  MEMORANDUM: [MO]
//	  PAYROLL: [MPDC, HRMO, MBO]
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing catalog file: %w", err)
	}
	return NewCatalog(f.Sequences)
}

// SequenceFor returns a copy of the department sequence for docType.
func (c *Catalog) SequenceFor(docType DocumentType) ([]Department, error) {
	seq, ok := c.sequences[docType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDocumentType, docType)
	}
	return append([]Department(nil), seq...), nil
}

func (c *Catalog) Types() []DocumentType {
	types := make([]DocumentType, 0, len(c.sequences))
	for t := range c.sequences {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func (c *Catalog) Sequences() map[DocumentType][]Department {
	out := make(map[DocumentType][]Department, len(c.sequences))
	for t, seq := range c.sequences {
		out[t] = append([]Department(nil), seq...)
	}
	return out
}
