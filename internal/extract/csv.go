package extract

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// payerColumns maps payer claims-export headers onto canonical field keys.
var payerColumns = map[string]string{
	"claim number":        "claim",
	"claim #":             "claim",
	"claim id":            "claim",
	"service date":        "date",
	"date of service":     "date",
	"provider":            "provider",
	"provider name":       "provider",
	"rendering provider":  "provider",
	"patient":             "patient",
	"patient name":        "patient",
	"member":              "patient",
	"billed":              "billed",
	"billed amount":       "billed",
	"amount charged":      "billed",
	"plan paid":           "insurance_paid",
	"insurance paid":      "insurance_paid",
	"amount paid":         "insurance_paid",
	"your responsibility": "patient_resp",
	"member pays":         "patient_resp",
	"patient pays":        "patient_resp",
	"you owe":             "patient_resp",
}

// ParsePayerExport parses a payer claims-summary CSV into one extraction
// with a claim per line. Payer portals export in Windows-1252 with a BOM as
// often as in UTF-8, so the reader decodes through a tolerant transform.
// Deterministic source: confidence 1.
func ParsePayerExport(path, payer string, category model.Category) (model.DocumentExtraction, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.DocumentExtraction{}, eris.Wrapf(err, "extract: open payer export %s", path)
	}
	defer f.Close()

	decoder := unicode.BOMOverride(charmap.Windows1252.NewDecoder())
	r := csv.NewReader(transform.NewReader(f, decoder))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return model.DocumentExtraction{}, eris.Wrapf(err, "extract: read payer export %s", path)
	}
	if len(rows) < 2 {
		return model.DocumentExtraction{}, eris.Errorf("extract: payer export %s has no claim lines", path)
	}

	fields := map[string]int{}
	for i, name := range rows[0] {
		key, ok := payerColumns[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = i
		}
	}
	if _, ok := fields["patient_resp"]; !ok {
		return model.DocumentExtraction{}, eris.Errorf("extract: payer export %s missing a responsibility column", path)
	}

	ext := model.DocumentExtraction{
		DocumentType: model.DocEOB,
		Provider:     payer,
		Category:     category,
		Confidence:   1.0,
		HSAEligible:  true,
		SourcePath:   path,
	}
	for _, row := range rows[1:] {
		get := func(key string) string {
			idx, ok := fields[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}
		if isEmptyRow(row) {
			continue
		}
		ext.Claims = append(ext.Claims, model.ExtractedClaim{
			ServiceDate:           model.ParseDate(get("date")),
			PatientName:           get("patient"),
			OriginalProvider:      get("provider"),
			BilledAmount:          model.ParseAmount(get("billed")),
			InsurancePaid:         model.ParseAmount(get("insurance_paid")),
			PatientResponsibility: model.ParseAmount(get("patient_resp")),
			ClaimNumber:           get("claim"),
		})
	}
	if len(ext.Claims) == 0 {
		return model.DocumentExtraction{}, eris.Errorf("extract: payer export %s has no claim lines", path)
	}
	return ext, nil
}
