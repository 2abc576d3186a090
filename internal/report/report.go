package report

import (
	"context"

	"github.com/sells-group/hsa-ledger/internal/ledger"
	"github.com/sells-group/hsa-ledger/internal/model"
)

// Summary is the account-wide spending rollup returned by the summary
// command and the reporting server.
type Summary struct {
	ByYear            []ledger.YearSummary `json:"by_year"`
	TotalUnreimbursed float64              `json:"total_unreimbursed"`
}

// RecordRow is the display projection of one ledger record.
type RecordRow struct {
	ID       int     `json:"id"`
	Date     string  `json:"date"`
	Provider string  `json:"provider"`
	Patient  string  `json:"patient"`
	Amount   float64 `json:"amount"`
}

// VarianceRow is one linked pair whose amounts disagree.
type VarianceRow struct {
	EOBID           int     `json:"eob_id"`
	StatementID     int     `json:"statement_id"`
	Provider        string  `json:"provider"`
	EOBAmount       float64 `json:"eob_amount"`
	StatementAmount float64 `json:"statement_amount"`
	Variance        float64 `json:"variance"`
}

// Reconciliation is the per-year cross-matching report: out-of-pocket
// progress plus everything that still needs a human decision.
type Reconciliation struct {
	Year                int                 `json:"year"`
	OOP                 *ledger.OOPProgress `json:"oop_progress"`
	UnmatchedEOBs       []RecordRow         `json:"unmatched_eobs"`
	UnmatchedStatements []RecordRow         `json:"unmatched_statements"`
	Variances           []VarianceRow       `json:"variances"`
	Attention           int                 `json:"attention_count"`
}

// BuildSummary assembles the spending rollup from the ledger.
func BuildSummary(ctx context.Context, l *ledger.Ledger) (*Summary, error) {
	byYear, err := l.GetSummaryByYear(ctx)
	if err != nil {
		return nil, err
	}
	total, err := l.GetUnreimbursedTotal(ctx)
	if err != nil {
		return nil, err
	}
	return &Summary{ByYear: byYear, TotalUnreimbursed: total}, nil
}

// BuildReconciliation assembles the cross-matching report for one service
// year.
func BuildReconciliation(ctx context.Context, l *ledger.Ledger, year int, oopMax float64) (*Reconciliation, error) {
	oop, err := l.GetOOPProgress(ctx, year, oopMax)
	if err != nil {
		return nil, err
	}
	eobs, err := l.UnmatchedEOBs(ctx)
	if err != nil {
		return nil, err
	}
	stmts, err := l.UnmatchedStatements(ctx)
	if err != nil {
		return nil, err
	}
	variances, err := l.Variances(ctx)
	if err != nil {
		return nil, err
	}

	rep := &Reconciliation{Year: year, OOP: oop}
	for _, rec := range eobs {
		if rec.ServiceYear() != year {
			continue
		}
		rep.UnmatchedEOBs = append(rep.UnmatchedEOBs, recordRow(rec))
	}
	for _, rec := range stmts {
		if rec.ServiceYear() != year {
			continue
		}
		rep.UnmatchedStatements = append(rep.UnmatchedStatements, recordRow(rec))
	}
	for _, pair := range variances {
		if pair.EOB.ServiceYear() != year {
			continue
		}
		rep.Variances = append(rep.Variances, VarianceRow{
			EOBID:           pair.EOB.ID,
			StatementID:     pair.Statement.ID,
			Provider:        pair.EOB.Provider,
			EOBAmount:       pair.EOB.PatientResponsibility,
			StatementAmount: pair.Statement.PatientResponsibility,
			Variance:        pair.Variance,
		})
	}
	rep.Attention = len(rep.UnmatchedEOBs) + len(rep.UnmatchedStatements) + len(rep.Variances)
	return rep, nil
}

func recordRow(rec model.ClaimRecord) RecordRow {
	return RecordRow{
		ID:       rec.ID,
		Date:     rec.ServiceDate,
		Provider: rec.Provider,
		Patient:  rec.Patient,
		Amount:   rec.PatientResponsibility,
	}
}
