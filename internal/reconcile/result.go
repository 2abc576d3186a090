package reconcile

// Outcome classifies what the engine did with one extracted claim.
type Outcome string

const (
	OutcomeAdded     Outcome = "added"      // inserted as a standalone record
	OutcomeLinked    Outcome = "linked"     // inserted and linked to a counterpart
	OutcomeDuplicate Outcome = "duplicate"  // suppressed, existing record annotated
	OutcomeSkipped   Outcome = "skipped"    // outside HSA eligibility window
	OutcomeError     Outcome = "error"      // claim failed, batch continued
)

// ClaimResult reports the disposition of one extracted claim.
type ClaimResult struct {
	Outcome  Outcome `json:"outcome"`
	RecordID int     `json:"record_id,omitempty"` // inserted or annotated record
	LinkedTo int     `json:"linked_to,omitempty"`
	Patient  string  `json:"patient,omitempty"`
	Err      string  `json:"error,omitempty"`
}

// BatchResult summarizes one document run through the engine.
type BatchResult struct {
	BatchID    string        `json:"batch_id"`
	SourcePath string        `json:"source_path,omitempty"`
	Claims     []ClaimResult `json:"claims"`
}

// Count returns how many claims ended with the given outcome.
func (r BatchResult) Count(o Outcome) int {
	n := 0
	for _, c := range r.Claims {
		if c.Outcome == o {
			n++
		}
	}
	return n
}
