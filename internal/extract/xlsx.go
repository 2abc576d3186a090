package extract

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// pharmacyColumns maps the header names pharmacy portals use onto canonical
// field keys. Export layouts vary by portal; match is case-insensitive.
var pharmacyColumns = map[string]string{
	"date filled":    "date",
	"fill date":      "date",
	"date":           "date",
	"patient":        "patient",
	"member":         "patient",
	"patient name":   "patient",
	"drug name":      "drug",
	"medication":     "drug",
	"description":    "drug",
	"pharmacy":       "pharmacy",
	"pharmacy name":  "pharmacy",
	"patient pay":    "patient_pay",
	"you paid":       "patient_pay",
	"your cost":      "patient_pay",
	"amount paid":    "patient_pay",
	"insurance paid": "insurance_paid",
	"plan paid":      "insurance_paid",
	"billed":         "billed",
	"total price":    "billed",
	"rx number":      "rx",
	"rx #":           "rx",
}

// ParsePharmacyExport parses a pharmacy claim-history XLSX export into one
// extraction with a claim per fill line. Deterministic source: confidence 1.
func ParsePharmacyExport(path string) (model.DocumentExtraction, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return model.DocumentExtraction{}, eris.Wrapf(err, "extract: open pharmacy export %s", path)
	}
	if len(f.Sheets) == 0 {
		return model.DocumentExtraction{}, eris.Errorf("extract: pharmacy export %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) < 2 {
		return model.DocumentExtraction{}, eris.Errorf("extract: pharmacy export %s has no data rows", path)
	}

	fields := headerFields(rowStrings(sheet.Rows[0]))
	if _, ok := fields["patient_pay"]; !ok {
		return model.DocumentExtraction{}, eris.Errorf("extract: pharmacy export %s missing a patient-pay column", path)
	}

	ext := model.DocumentExtraction{
		DocumentType: model.DocPrescription,
		Provider:     "Pharmacy Export",
		Category:     model.CategoryPharmacy,
		Confidence:   1.0,
		HSAEligible:  true,
		SourcePath:   path,
	}

	for _, row := range sheet.Rows[1:] {
		cells := rowStrings(row)
		get := func(key string) string {
			idx, ok := fields[key]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}
		if isEmptyRow(cells) {
			continue
		}

		if pharmacy := get("pharmacy"); pharmacy != "" && ext.Provider == "Pharmacy Export" {
			ext.Provider = pharmacy
		}
		ext.Claims = append(ext.Claims, model.ExtractedClaim{
			ServiceDate:           model.ParseDate(get("date")),
			PatientName:           get("patient"),
			ServiceType:           get("drug"),
			BilledAmount:          model.ParseAmount(get("billed")),
			InsurancePaid:         model.ParseAmount(get("insurance_paid")),
			PatientResponsibility: model.ParseAmount(get("patient_pay")),
			ClaimNumber:           get("rx"),
		})
	}
	if len(ext.Claims) == 0 {
		return model.DocumentExtraction{}, eris.Errorf("extract: pharmacy export %s has no claim lines", path)
	}
	return ext, nil
}

func headerFields(header []string) map[string]int {
	fields := map[string]int{}
	for i, name := range header {
		key, ok := pharmacyColumns[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			continue
		}
		if _, seen := fields[key]; !seen {
			fields[key] = i
		}
	}
	return fields
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		cells[i] = cell.String()
	}
	return cells
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
