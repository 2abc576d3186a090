package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// FallbackConfidence marks an extraction that failed outright and needs
// manual review.
const FallbackConfidence = 0.1

var jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)

// ParsePayload turns raw model output into a DocumentExtraction. The parser
// is deliberately forgiving: fenced output, an array instead of an object,
// stringified amounts, and absent fields all degrade gracefully. A payload
// that cannot be parsed at all yields the fallback extraction rather than
// an error; the pipeline routes low-confidence results to manual review.
func ParsePayload(text, sourcePath string) model.DocumentExtraction {
	payload, ok := decodePayload(text)
	if !ok {
		zap.L().Warn("extract: unparseable payload", zap.String("source", sourcePath))
		return Fallback(sourcePath)
	}
	return buildExtraction(payload, sourcePath)
}

// Fallback is the extraction recorded when the model output was unusable.
func Fallback(sourcePath string) model.DocumentExtraction {
	return model.DocumentExtraction{
		DocumentType: model.DocUnknown,
		Provider:     "Unknown (Extraction Failed)",
		Category:     model.CategoryUnknown,
		Confidence:   FallbackConfidence,
		HSAEligible:  true,
		Notes:        fmt.Sprintf("Vision extraction failed - manual review required. Source: %s", sourcePath),
		SourcePath:   sourcePath,
		Claims: []model.ExtractedClaim{{
			PatientName: "Unknown",
			ServiceType: "Unknown (Needs Manual Review)",
		}},
	}
}

func decodePayload(text string) (map[string]any, bool) {
	text = stripFences(text)

	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		// Salvage the first object embedded in prose.
		m := jsonObjectRe.FindString(text)
		if m == "" {
			return nil, false
		}
		if err := json.Unmarshal([]byte(m), &parsed); err != nil {
			return nil, false
		}
	}

	// An array instead of an object: take the first element.
	if arr, ok := parsed.([]any); ok {
		if len(arr) == 0 {
			return nil, false
		}
		parsed = arr[0]
	}
	obj, ok := parsed.(map[string]any)
	return obj, ok
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func buildExtraction(payload map[string]any, sourcePath string) model.DocumentExtraction {
	docType := model.ParseDocumentType(stringFrom(payload["document_type"]))

	eligibleSubtotal := amountFrom(payload["eligible_subtotal"])
	receiptTax := amountFrom(payload["receipt_tax"])
	taxableAmount := amountFrom(payload["receipt_taxable_amount"])

	// Tax proration happens here, never in the model: the share of the
	// receipt tax attributable to eligible items at the receipt's own rate.
	taxOnEligible := 0.0
	taxRate := 0.0
	if eligibleSubtotal > 0 && taxableAmount > 0 && receiptTax > 0 {
		taxRate = receiptTax / taxableAmount
		taxOnEligible = roundCents(eligibleSubtotal * taxRate)
	}

	patientResp := amountFrom(payload["patient_responsibility"])
	billed := amountFrom(payload["billed_amount"])
	if (docType == model.DocReceipt || docType == model.DocPrescription) && eligibleSubtotal > 0 {
		patientResp = eligibleSubtotal + taxOnEligible
		billed = eligibleSubtotal
	} else {
		if patientResp == 0 {
			patientResp = eligibleSubtotal
		}
		if billed == 0 {
			billed = eligibleSubtotal
		}
	}

	notes := stringFrom(payload["notes"])
	if taxOnEligible > 0 {
		taxNote := fmt.Sprintf("Tax rate %.3f%%, tax on eligible items: $%.2f", taxRate*100, taxOnEligible)
		if notes != "" {
			notes = taxNote + ". " + notes
		} else {
			notes = taxNote
		}
	}

	confidence := amountFrom(payload["confidence_score"])
	if confidence == 0 {
		confidence = 0.5
	}

	ext := model.DocumentExtraction{
		DocumentType: docType,
		Provider:     stringOr(payload["provider_name"], "Unknown"),
		Category:     model.ParseCategory(stringFrom(payload["category"])),
		Confidence:   confidence,
		Notes:        notes,
		HSAEligible:  boolOr(payload["hsa_eligible"], true),
		SourcePath:   sourcePath,
	}

	ext.Claims = claimsFrom(payload)
	if len(ext.Claims) == 0 {
		ext.Claims = []model.ExtractedClaim{{
			ServiceDate:           model.ParseDate(stringFrom(payload["service_date"])),
			PatientName:           stringOr(payload["patient_name"], "Unknown"),
			ServiceType:           serviceTypeFrom(payload["service_type"]),
			BilledAmount:          billed,
			InsurancePaid:         amountFrom(payload["insurance_paid"]),
			PatientResponsibility: patientResp,
		}}
	}
	return ext
}

// claimsFrom reads the per-line claims array on multi-line documents.
func claimsFrom(payload map[string]any) []model.ExtractedClaim {
	arr, ok := payload["claims"].([]any)
	if !ok {
		return nil
	}
	var claims []model.ExtractedClaim
	for _, item := range arr {
		line, ok := item.(map[string]any)
		if !ok {
			continue
		}
		claims = append(claims, model.ExtractedClaim{
			ServiceDate:           model.ParseDate(stringFrom(line["service_date"])),
			PatientName:           stringOr(line["patient_name"], "Unknown"),
			OriginalProvider:      stringFrom(line["original_provider"]),
			ServiceType:           serviceTypeFrom(line["service_type"]),
			BilledAmount:          amountFrom(line["billed_amount"]),
			InsurancePaid:         amountFrom(line["insurance_paid"]),
			PatientResponsibility: amountFrom(line["patient_responsibility"]),
			ClaimNumber:           stringFrom(line["claim_number"]),
		})
	}
	return claims
}

// amountFrom coerces a payload value into a float. Models return amounts as
// numbers, strings with currency noise, or null.
func amountFrom(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		return model.ParseAmount(t)
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

// serviceTypeFrom handles the model returning a list of items instead of a
// single description.
func serviceTypeFrom(v any) string {
	if arr, ok := v.([]any); ok {
		parts := make([]string, 0, len(arr))
		for _, item := range arr {
			parts = append(parts, fmt.Sprintf("%v", item))
		}
		return strings.Join(parts, ", ")
	}
	s := stringFrom(v)
	if s == "" {
		return "Unknown Service"
	}
	return s
}

func stringFrom(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func stringOr(v any, fallback string) string {
	if s := stringFrom(v); s != "" {
		return s
	}
	return fallback
}

func boolOr(v any, fallback bool) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return fallback
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
