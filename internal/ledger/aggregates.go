package ledger

import (
	"context"
	"math"
	"sort"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// YearSummary aggregates countable spending for one service year.
type YearSummary struct {
	Year         int
	Billed       float64
	Insurance    float64
	Total        float64
	Reimbursed   float64
	Unreimbursed float64
	Count        int
}

// OOPProgress reports a family's progress toward its out-of-pocket maximum
// for one year, with a per-patient breakdown.
type OOPProgress struct {
	Year      int
	Max       float64
	Total     float64
	Remaining float64
	Met       bool
	ByPatient map[string]float64
}

// PatientOOP is one row of the per-patient out-of-pocket breakdown.
type PatientOOP struct {
	Patient string
	Total   float64
}

// Breakdown returns the per-patient totals sorted descending by amount,
// name as the tiebreaker.
func (p *OOPProgress) Breakdown() []PatientOOP {
	out := make([]PatientOOP, 0, len(p.ByPatient))
	for patient, total := range p.ByPatient {
		out = append(out, PatientOOP{Patient: patient, Total: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Patient < out[j].Patient
	})
	return out
}

// VariancePair is a linked EOB/statement pair whose patient-responsibility
// amounts disagree beyond tolerance.
type VariancePair struct {
	EOB       model.ClaimRecord
	Statement model.ClaimRecord
	Variance  float64
}

// countable filters to records that participate in aggregates: anything not
// explicitly demoted counts, including records with the authority flag unset.
func countable(records []model.ClaimRecord) []model.ClaimRecord {
	out := make([]model.ClaimRecord, 0, len(records))
	for _, rec := range records {
		if rec.Countable() {
			out = append(out, rec)
		}
	}
	return out
}

// GetUnreimbursedTotal sums patient responsibility across countable,
// HSA-eligible records not yet reimbursed.
func (l *Ledger) GetUnreimbursedTotal(ctx context.Context) (float64, error) {
	records, err := l.backend.Records(ctx)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, rec := range countable(records) {
		if rec.HSAEligible && !rec.Reimbursed {
			total += rec.PatientResponsibility
		}
	}
	return total, nil
}

// GetSummaryByYear groups countable spending by service year, sorted
// ascending by year. Records without a parseable service year stay in the
// store but are left out of the grouping.
func (l *Ledger) GetSummaryByYear(ctx context.Context) ([]YearSummary, error) {
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}

	byYear := map[int]*YearSummary{}
	for _, rec := range countable(records) {
		year := rec.ServiceYear()
		if year == 0 {
			continue
		}
		s, ok := byYear[year]
		if !ok {
			s = &YearSummary{Year: year}
			byYear[year] = s
		}
		s.Billed += rec.BilledAmount
		s.Insurance += rec.InsurancePaid
		s.Total += rec.PatientResponsibility
		s.Count++
		if rec.Reimbursed {
			s.Reimbursed += rec.ReimbursementAmount
		} else {
			s.Unreimbursed += rec.PatientResponsibility
		}
	}

	summaries := make([]YearSummary, 0, len(byYear))
	for _, s := range byYear {
		summaries = append(summaries, *s)
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Year < summaries[j].Year })
	return summaries, nil
}

// GetOOPProgress computes out-of-pocket accumulation for one year against
// the configured family maximum. Countable, HSA-eligible spending counts
// toward the maximum regardless of reimbursement state.
func (l *Ledger) GetOOPProgress(ctx context.Context, year int, oopMax float64) (*OOPProgress, error) {
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}

	progress := &OOPProgress{
		Year:      year,
		Max:       oopMax,
		ByPatient: map[string]float64{},
	}
	for _, rec := range countable(records) {
		if rec.ServiceYear() != year || !rec.HSAEligible {
			continue
		}
		progress.Total += rec.PatientResponsibility
		progress.ByPatient[rec.Patient] += rec.PatientResponsibility
	}
	progress.Remaining = oopMax - progress.Total
	if progress.Remaining < 0 {
		progress.Remaining = 0
	}
	progress.Met = progress.Total >= oopMax
	return progress, nil
}

// UnmatchedStatements returns countable non-EOB records that have no links.
// Demoted-but-unlinked records are data anomalies and are excluded here the
// same way they are excluded from totals.
func (l *Ledger) UnmatchedStatements(ctx context.Context) ([]model.ClaimRecord, error) {
	return l.unmatched(ctx, func(rec model.ClaimRecord) bool {
		return !rec.DocumentType.IsEOB()
	})
}

// UnmatchedEOBs returns countable EOB records that have no links.
func (l *Ledger) UnmatchedEOBs(ctx context.Context) ([]model.ClaimRecord, error) {
	return l.unmatched(ctx, func(rec model.ClaimRecord) bool {
		return rec.DocumentType.IsEOB()
	})
}

func (l *Ledger) unmatched(ctx context.Context, accept func(model.ClaimRecord) bool) ([]model.ClaimRecord, error) {
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.ClaimRecord
	for _, rec := range countable(records) {
		if len(rec.LinkedRecordIDs) == 0 && accept(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Variances walks linked EOB/statement pairs and reports those whose
// patient-responsibility amounts disagree beyond tolerance. Each symmetric
// pair is reported once, from the EOB side.
func (l *Ledger) Variances(ctx context.Context) ([]VariancePair, error) {
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[int]model.ClaimRecord, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	var pairs []VariancePair
	for _, rec := range records {
		if !rec.DocumentType.IsEOB() {
			continue
		}
		for _, linked := range rec.LinkedRecordIDs {
			stmt, ok := byID[linked]
			if !ok || stmt.DocumentType.IsEOB() {
				continue
			}
			v := rec.PatientResponsibility - stmt.PatientResponsibility
			if math.Abs(v) <= AmountTolerance {
				continue
			}
			pairs = append(pairs, VariancePair{EOB: rec, Statement: stmt, Variance: v})
		}
	}
	return pairs, nil
}
