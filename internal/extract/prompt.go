package extract

import (
	"fmt"
	"strings"
)

const promptTemplate = `You are a medical receipt/EOB data extractor. Analyze this document and extract structured information.

The family members are: %[1]s

Extract the following as a JSON object:
{
  "provider_name": "Name of healthcare provider, pharmacy, or retailer",
  "service_date": "YYYY-MM-DD format or null if unclear",
  "service_type": "Brief description of service or product",
  "patient_name": "MUST be one of: %[1]s - match based on recipient/patient name in document",
  "eligible_subtotal": 0.00,
  "receipt_tax": 0.00,
  "receipt_taxable_amount": 0.00,
  "insurance_paid": 0.00,
  "billed_amount": 0.00,
  "patient_responsibility": 0.00,
  "hsa_eligible": true,
  "category": "medical|dental|vision|pharmacy",
  "document_type": "receipt|eob|statement|claim|prescription",
  "confidence_score": 0.95,
  "notes": "Any uncertainties or important details",
  "claims": [
    {
      "service_date": "YYYY-MM-DD",
      "patient_name": "family member per line",
      "original_provider": "rendering provider for EOB lines",
      "service_type": "per-line description",
      "billed_amount": 0.00,
      "insurance_paid": 0.00,
      "patient_responsibility": 0.00
    }
  ]
}

CRITICAL - Recognize the store/provider from the document and apply these rules:

RETAIL STORES (Costco, CVS, Walgreens, Target, Walmart, Amazon):
- STRICT RULE: ONLY include items with a VISIBLE "F" or "*" eligibility marker
- Items WITHOUT the marker (household goods, supplements) must be EXCLUDED
- Rows starting with "SC" are discounts/coupons - IGNORE completely
- DO NOT CALCULATE - just extract these raw values:
  * eligible_subtotal = sum of ONLY the FSA/HSA marked item prices (pre-tax)
  * receipt_tax = the TAX amount shown on the receipt
  * receipt_taxable_amount = the taxable subtotal shown
- insurance_paid = 0 for retail purchases
- category = "pharmacy"
- If NO marked items found, set hsa_eligible=false and eligible_subtotal=0

HEALTHCARE EOBs (Sutter, Kaiser, Delta Dental, VSP, Anthem, Blue Cross):
- Look for "Patient Responsibility", "Member Pays", "Your Cost", "Amount Due"
- patient_responsibility = amount YOU owe after insurance
- insurance_paid = what the plan/insurance paid
- One "claims" entry per service line; a family EOB yields several
- category based on provider type (medical/dental/vision)

General Rules:
- patient_name MUST be exactly one of: %[1]s
- Match the patient/recipient in the document to the closest family member name
- If unclear, default to the first family member (%[2]s)
- Respond with ONLY the JSON object, no other text
%[3]s`

// BuildPrompt renders the extraction prompt for the given family, appending
// the active skill's guidance when one is set.
func BuildPrompt(family []string, skillKey string, skills map[string]Skill) string {
	members := strings.Join(family, ", ")
	primary := ""
	if len(family) > 0 {
		primary = family[0]
	}
	skillText := ""
	if skill, ok := skills[skillKey]; ok && skillKey != "" {
		skillText = "\n" + skill.Prompt
	}
	return fmt.Sprintf(promptTemplate, members, primary, skillText)
}
