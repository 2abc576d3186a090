// Package model defines the claim ledger data types shared across the
// extraction, reconciliation, and reporting layers.
package model

import (
	"strconv"
	"strings"
)

// Category classifies an expense by coverage area.
type Category string

const (
	CategoryMedical  Category = "medical"
	CategoryDental   Category = "dental"
	CategoryVision   Category = "vision"
	CategoryPharmacy Category = "pharmacy"
	CategoryUnknown  Category = "unknown"
)

// ParseCategory maps a raw extracted string to a Category, defaulting to unknown.
func ParseCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategoryMedical, CategoryDental, CategoryVision, CategoryPharmacy:
		return Category(strings.ToLower(strings.TrimSpace(s)))
	default:
		return CategoryUnknown
	}
}

// DocumentType identifies the kind of source document a record came from.
type DocumentType string

const (
	DocReceipt      DocumentType = "receipt"
	DocEOB          DocumentType = "eob"
	DocStatement    DocumentType = "statement"
	DocClaim        DocumentType = "claim"
	DocPrescription DocumentType = "prescription"
	DocUnknown      DocumentType = "unknown"
)

// ParseDocumentType maps a raw extracted string to a DocumentType.
func ParseDocumentType(s string) DocumentType {
	switch DocumentType(strings.ToLower(strings.TrimSpace(s))) {
	case DocReceipt, DocEOB, DocStatement, DocClaim, DocPrescription:
		return DocumentType(strings.ToLower(strings.TrimSpace(s)))
	default:
		return DocUnknown
	}
}

// IsEOB reports whether the document type belongs to the payer-issued family.
// EOBs cross-match against provider statements and receipts, never against
// each other.
func (d DocumentType) IsEOB() bool {
	return d == DocEOB
}

// Authority is the tri-state countability flag. Empty means standalone:
// the record was never part of a link group and always counts toward totals.
type Authority string

const (
	AuthorityUnset Authority = ""
	AuthorityYes   Authority = "Yes"
	AuthorityNo    Authority = "No"
)

// LinkSet is an ordered set of record ids with duplicate suppression.
// Its wire form is a pipe-delimited integer list ("11|12").
type LinkSet []int

// ParseLinkSet parses the pipe-delimited wire form. Malformed segments are
// dropped rather than failing the row.
func ParseLinkSet(s string) LinkSet {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var ls LinkSet
	for _, part := range strings.Split(s, "|") {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		ls = ls.Append(id)
	}
	return ls
}

// Append adds an id preserving insertion order, suppressing duplicates.
func (ls LinkSet) Append(id int) LinkSet {
	if ls.Contains(id) {
		return ls
	}
	return append(ls, id)
}

// Contains reports membership.
func (ls LinkSet) Contains(id int) bool {
	for _, v := range ls {
		if v == id {
			return true
		}
	}
	return false
}

// String renders the pipe-delimited wire form.
func (ls LinkSet) String() string {
	if len(ls) == 0 {
		return ""
	}
	parts := make([]string, len(ls))
	for i, id := range ls {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, "|")
}

// ClaimRecord is one durable row in the claim ledger. Records are never
// deleted; superseded duplicates are annotated and demoted instead.
type ClaimRecord struct {
	ID                    int
	ServiceDate           string // ISO date, empty when the source document had none
	Provider              string // payer name for EOBs, rendering provider otherwise
	OriginalProvider      string // rendering provider on EOB-derived records
	Patient               string
	Category              Category
	BilledAmount          float64
	InsurancePaid         float64
	PatientResponsibility float64
	HSAEligible           bool
	DocumentType          DocumentType
	Confidence            float64
	Notes                 string
	Reimbursed            bool
	ReimbursementDate     string
	ReimbursementAmount   float64
	LinkedRecordIDs       LinkSet
	IsAuthoritative       Authority
	FilePath              string
	FileLink              string
}

// Countable reports whether the record participates in monetary aggregates.
// A record demoted to non-authoritative is excluded even when its link set
// is empty; demotion can precede link finalization.
func (r ClaimRecord) Countable() bool {
	return r.IsAuthoritative != AuthorityNo
}

// ServiceYear returns the year component of the service date, or 0 when the
// date is absent or malformed.
func (r ClaimRecord) ServiceYear() int {
	if len(r.ServiceDate) < 4 {
		return 0
	}
	year, err := strconv.Atoi(r.ServiceDate[:4])
	if err != nil {
		return 0
	}
	return year
}

// ProviderMatches reports a fuzzy provider match: either name contains the
// other, case-insensitive. Payer and provider renderings of the same entity
// rarely agree exactly ("Sutter" vs "Sutter Health").
func ProviderMatches(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
