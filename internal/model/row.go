package model

import (
	"strconv"
	"strings"
)

// Column names of the flat-table layout, in durable order. Boolean fields
// serialize as the literal strings "Yes"/"No"; the link set serializes as a
// pipe-delimited integer list. Schema evolution is additive: readers tolerate
// missing trailing columns, writers backfill the header.
const (
	ColID                    = "ID"
	ColServiceDate           = "Service Date"
	ColProvider              = "Provider"
	ColOriginalProvider      = "Original Provider"
	ColPatient               = "Patient"
	ColCategory              = "Category"
	ColBilledAmount          = "Billed Amount"
	ColInsurancePaid         = "Insurance Paid"
	ColPatientResponsibility = "Patient Responsibility"
	ColHSAEligible           = "HSA Eligible"
	ColDocumentType          = "Document Type"
	ColConfidence            = "Confidence"
	ColNotes                 = "Notes"
	ColReimbursed            = "Reimbursed"
	ColReimbursementDate     = "Reimbursement Date"
	ColReimbursementAmount   = "Reimbursement Amount"
	ColLinkedRecordIDs       = "Linked Record IDs"
	ColIsAuthoritative       = "Is Authoritative"
	ColFilePath              = "File Path"
	ColFileLink              = "File Link"
)

// Columns returns the canonical header row.
func Columns() []string {
	return []string{
		ColID,
		ColServiceDate,
		ColProvider,
		ColOriginalProvider,
		ColPatient,
		ColCategory,
		ColBilledAmount,
		ColInsurancePaid,
		ColPatientResponsibility,
		ColHSAEligible,
		ColDocumentType,
		ColConfidence,
		ColNotes,
		ColReimbursed,
		ColReimbursementDate,
		ColReimbursementAmount,
		ColLinkedRecordIDs,
		ColIsAuthoritative,
		ColFilePath,
		ColFileLink,
	}
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

func parseYesNo(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "yes")
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// FieldValue renders the named column of a record in wire form. Unknown
// column names yield the empty string.
func (r ClaimRecord) FieldValue(col string) string {
	switch col {
	case ColID:
		return strconv.Itoa(r.ID)
	case ColServiceDate:
		return r.ServiceDate
	case ColProvider:
		return r.Provider
	case ColOriginalProvider:
		return r.OriginalProvider
	case ColPatient:
		return r.Patient
	case ColCategory:
		return string(r.Category)
	case ColBilledAmount:
		return formatAmount(r.BilledAmount)
	case ColInsurancePaid:
		return formatAmount(r.InsurancePaid)
	case ColPatientResponsibility:
		return formatAmount(r.PatientResponsibility)
	case ColHSAEligible:
		return yesNo(r.HSAEligible)
	case ColDocumentType:
		return string(r.DocumentType)
	case ColConfidence:
		return strconv.FormatFloat(r.Confidence, 'f', 2, 64)
	case ColNotes:
		return r.Notes
	case ColReimbursed:
		return yesNo(r.Reimbursed)
	case ColReimbursementDate:
		return r.ReimbursementDate
	case ColReimbursementAmount:
		return formatAmount(r.ReimbursementAmount)
	case ColLinkedRecordIDs:
		return r.LinkedRecordIDs.String()
	case ColIsAuthoritative:
		return string(r.IsAuthoritative)
	case ColFilePath:
		return r.FilePath
	case ColFileLink:
		return r.FileLink
	}
	return ""
}

// MarshalRow renders the record as one row under the given header. Columns
// the record does not know are left empty, preserving foreign data layout.
func (r ClaimRecord) MarshalRow(header []string) []string {
	row := make([]string, len(header))
	for i, col := range header {
		row[i] = r.FieldValue(col)
	}
	return row
}

// UnmarshalRow parses a row located under the given header. Missing columns
// are treated as empty, never as an error.
func UnmarshalRow(header, row []string) ClaimRecord {
	get := func(col string) string {
		for i, h := range header {
			if h == col && i < len(row) {
				return row[i]
			}
		}
		return ""
	}

	id, _ := strconv.Atoi(strings.TrimSpace(get(ColID)))
	conf, _ := strconv.ParseFloat(strings.TrimSpace(get(ColConfidence)), 64)

	return ClaimRecord{
		ID:                    id,
		ServiceDate:           get(ColServiceDate),
		Provider:              get(ColProvider),
		OriginalProvider:      get(ColOriginalProvider),
		Patient:               get(ColPatient),
		Category:              ParseCategory(get(ColCategory)),
		BilledAmount:          ParseAmount(get(ColBilledAmount)),
		InsurancePaid:         ParseAmount(get(ColInsurancePaid)),
		PatientResponsibility: ParseAmount(get(ColPatientResponsibility)),
		HSAEligible:           parseYesNo(get(ColHSAEligible)),
		DocumentType:          ParseDocumentType(get(ColDocumentType)),
		Confidence:            conf,
		Notes:                 get(ColNotes),
		Reimbursed:            parseYesNo(get(ColReimbursed)),
		ReimbursementDate:     get(ColReimbursementDate),
		ReimbursementAmount:   ParseAmount(get(ColReimbursementAmount)),
		LinkedRecordIDs:       ParseLinkSet(get(ColLinkedRecordIDs)),
		IsAuthoritative:       Authority(strings.TrimSpace(get(ColIsAuthoritative))),
		FilePath:              get(ColFilePath),
		FileLink:              get(ColFileLink),
	}
}

// ApplyPatch applies a field patch keyed by column name. Unknown names are
// ignored for forward compatibility. The ID column is immutable and skipped.
func (r *ClaimRecord) ApplyPatch(patch map[string]string) {
	for col, val := range patch {
		switch col {
		case ColServiceDate:
			r.ServiceDate = val
		case ColProvider:
			r.Provider = val
		case ColOriginalProvider:
			r.OriginalProvider = val
		case ColPatient:
			r.Patient = val
		case ColCategory:
			r.Category = ParseCategory(val)
		case ColBilledAmount:
			r.BilledAmount = ParseAmount(val)
		case ColInsurancePaid:
			r.InsurancePaid = ParseAmount(val)
		case ColPatientResponsibility:
			r.PatientResponsibility = ParseAmount(val)
		case ColHSAEligible:
			r.HSAEligible = parseYesNo(val)
		case ColDocumentType:
			r.DocumentType = ParseDocumentType(val)
		case ColConfidence:
			conf, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err == nil {
				r.Confidence = conf
			}
		case ColNotes:
			r.Notes = val
		case ColReimbursed:
			r.Reimbursed = parseYesNo(val)
		case ColReimbursementDate:
			r.ReimbursementDate = val
		case ColReimbursementAmount:
			r.ReimbursementAmount = ParseAmount(val)
		case ColLinkedRecordIDs:
			r.LinkedRecordIDs = ParseLinkSet(val)
		case ColIsAuthoritative:
			r.IsAuthoritative = Authority(strings.TrimSpace(val))
		case ColFilePath:
			r.FilePath = val
		case ColFileLink:
			r.FileLink = val
		}
	}
}
