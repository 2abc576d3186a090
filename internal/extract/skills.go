package extract

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Skill carries provider-specific extraction guidance. Patterns are matched
// against the lowercased filename and any content hints; Prompt is appended
// to the base extraction prompt when the skill activates.
type Skill struct {
	Patterns []string `yaml:"patterns"`
	Prompt   string   `yaml:"prompt"`
}

// builtinSkills covers the providers this household actually sees. Users
// extend or override them with a YAML skills file.
var builtinSkills = map[string]Skill{
	"costco": {
		Patterns: []string{"costco", "store 423", "store423"},
		Prompt: `COSTCO RECEIPT RULES:
- Look for "F" marker in column after price - ONLY these items are FSA-eligible
- Format: "ITEM_NAME    PRICE A  F  Dept" means FSA-eligible
- Format: "ITEM_NAME    PRICE A     Dept" means NOT eligible (no F)
- Rows starting with "SC" are discounts - IGNORE them
- provider_name: "Costco"
- eligible_subtotal: sum ONLY items with F marker
- receipt_tax: the TAX amount shown
- receipt_taxable_amount: the "Taxable Amount" shown
- document_type: "receipt"
- category: "pharmacy"`,
	},
	"cvs": {
		Patterns: []string{"cvs"},
		Prompt: `CVS-SPECIFIC RULES:
- Look for FSA/HSA ELIGIBLE label on items
- Rx number indicates prescription (hsa_eligible=true)
- Include copay as patient_responsibility
- For OTC items, only include if marked FSA eligible
- category = "pharmacy"`,
	},
	"walgreens": {
		Patterns: []string{"walgreens", "walgreen"},
		Prompt: `WALGREENS-SPECIFIC RULES:
- Look for "FSA" or "HSA" markers next to eligible items
- Prescription copays are always HSA eligible
- For OTC items, only include if marked FSA/HSA eligible
- category = "pharmacy"`,
	},
	"amazon": {
		Patterns: []string{"amazon"},
		Prompt: `AMAZON ORDER RULES:
- patient_name: Extract from "Ship to:" name
- service_date: Use "Order placed" date (not delivery date)
- service_type: Product name from the order
- eligible_subtotal: Use "Grand Total" amount (this already includes tax)
- receipt_tax: 0 (tax is already in Grand Total)
- receipt_taxable_amount: 0 (not needed - Grand Total is final)
- If "FSA or HSA eligible: $X.XX" line exists, that IS the amount to use
- provider_name: "Amazon"
- category: "pharmacy"
- document_type: "receipt"`,
	},
	"express_scripts": {
		Patterns: []string{"express scripts", "express_scripts", "express-scripts", "expressscripts", "esrx"},
		Prompt: `EXPRESS SCRIPTS-SPECIFIC RULES:
- This is a pharmacy receipt/invoice from Express Scripts (PBM)
- Medications delivered by mail are HSA-eligible prescriptions
- Look for "Your Cost" or "You Pay" for patient_responsibility
- service_type should be the medication name(s)
- provider_name = "Express Scripts"
- category = "pharmacy"
- document_type = "prescription"
- hsa_eligible = true (prescriptions are always eligible)`,
	},
	"sutter": {
		Patterns: []string{"sutter", "pamf", "palo alto medical"},
		Prompt: `SUTTER HEALTH-SPECIFIC RULES:
- This is likely a hospital/medical bill or EOB
- Look for "Patient Responsibility" or "Amount Due" for patient_responsibility
- Look for "Insurance Payment" or "Plan Paid" for insurance_paid
- service_date is the "Date of Service"
- category = "medical"
- document_type is likely "statement" or "eob"`,
	},
	"aetna": {
		Patterns: []string{"aetna"},
		Prompt: `AETNA EOB-SPECIFIC RULES:
- This is a medical EOB from Aetna HDHP
- Look for "Member Responsibility" or "Your Responsibility" for patient_responsibility
- Look for "Plan Paid" or "Aetna Paid" for insurance_paid
- billed_amount is the "Charged" or "Billed" amount
- May have multiple service lines - list each one under "claims"
- category = "medical"
- document_type = "eob"`,
	},
	"delta_dental": {
		Patterns: []string{"delta dental", "deltadental"},
		Prompt: `DELTA DENTAL-SPECIFIC RULES:
- This is a dental EOB
- Look for "Patient Pays" for patient_responsibility
- Look for "Benefit Paid" for insurance_paid
- category = "dental"
- document_type = "eob"`,
	},
	"vsp": {
		Patterns: []string{"vsp", "vision service plan"},
		Prompt: `VSP VISION-SPECIFIC RULES:
- This is a vision EOB or receipt
- Look for "Your Cost" or "Member Pays" for patient_responsibility
- category = "vision"`,
	},
}

// LoadSkills returns the builtin skill set merged with overrides from the
// given YAML file. An empty path yields the builtins unchanged. Override
// entries replace builtins with the same key; new keys are added.
func LoadSkills(path string) (map[string]Skill, error) {
	skills := make(map[string]Skill, len(builtinSkills))
	for k, v := range builtinSkills {
		skills[k] = v
	}
	if path == "" {
		return skills, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "extract: read skills file %s", path)
	}
	var overrides map[string]Skill
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, eris.Wrapf(err, "extract: parse skills file %s", path)
	}
	for k, v := range overrides {
		skills[k] = v
	}
	zap.L().Info("extract: skills loaded",
		zap.String("file", path),
		zap.Int("overrides", len(overrides)),
		zap.Int("total", len(skills)),
	)
	return skills, nil
}

// DetectSkill picks the skill whose patterns appear in the filename or the
// content hints. Returns the skill key, or empty when nothing matches.
func DetectSkill(filename string, hints []string, skills map[string]Skill) string {
	text := strings.ToLower(filename)
	for _, h := range hints {
		text += " " + strings.ToLower(h)
	}

	keys := make([]string, 0, len(skills))
	for k := range skills {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		for _, pattern := range skills[key].Patterns {
			if strings.Contains(text, pattern) {
				return key
			}
		}
	}
	return ""
}
