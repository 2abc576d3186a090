package model

// ExtractedClaim is one service line produced by an upstream extractor.
// A multi-line document (family EOB, claims-summary export) yields several.
// Claims are consumed once by the reconciliation engine and discarded.
type ExtractedClaim struct {
	ServiceDate           string `json:"service_date"`
	PatientName           string `json:"patient_name"`
	OriginalProvider      string `json:"original_provider"`
	ServiceType           string `json:"service_type"`
	BilledAmount          float64 `json:"billed_amount"`
	InsurancePaid         float64 `json:"insurance_paid"`
	PatientResponsibility float64 `json:"patient_responsibility"`
	ClaimNumber           string `json:"claim_number,omitempty"`
}

// DocumentExtraction is the normalized output of any extractor, whether a
// vision model or a deterministic export parser. Downstream components never
// see the upstream payload shape.
type DocumentExtraction struct {
	DocumentType  DocumentType     `json:"document_type"`
	Provider      string           `json:"provider"` // payer for EOBs, rendering provider otherwise
	Category      Category         `json:"category"`
	Confidence    float64          `json:"confidence_score"`
	Notes         string           `json:"notes"`
	StatementDate string           `json:"statement_date,omitempty"`
	HSAEligible   bool             `json:"hsa_eligible"`
	Claims        []ExtractedClaim `json:"claims"`
	SourcePath    string           `json:"source_path,omitempty"`
}

// PrimaryClaim returns the first claim, or a zero claim for an empty
// extraction. Single-receipt extractions carry exactly one claim.
func (d DocumentExtraction) PrimaryClaim() ExtractedClaim {
	if len(d.Claims) == 0 {
		return ExtractedClaim{}
	}
	return d.Claims[0]
}
