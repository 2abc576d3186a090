package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hsa-ledger/internal/model"
)

func TestLedger_GetUnreimbursedTotal_ExcludesNonAuthoritative(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Unset authority: counts.
	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter", "Alice", 100))
	require.NoError(t, err)

	// Demoted but unlinked: a data anomaly, still excluded.
	demoted := statementRecord("2024-03-02", "CVS", "Alice", 40)
	demoted.IsAuthoritative = model.AuthorityNo
	_, err = l.AddRecord(ctx, demoted)
	require.NoError(t, err)

	// Authoritative and linked: counts.
	auth := eobRecord("2024-03-03", "Aetna", "Sutter", "Alice", 60)
	auth.IsAuthoritative = model.AuthorityYes
	auth.LinkedRecordIDs = model.LinkSet{2}
	_, err = l.AddRecord(ctx, auth)
	require.NoError(t, err)

	total, err := l.GetUnreimbursedTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 160.0, total, 0.001)
}

func TestLedger_GetUnreimbursedTotal_SkipsReimbursedAndIneligible(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	paid := statementRecord("2024-03-01", "Sutter", "Alice", 100)
	paid.Reimbursed = true
	_, err := l.AddRecord(ctx, paid)
	require.NoError(t, err)

	ineligible := statementRecord("2024-03-02", "Spa Co", "Alice", 75)
	ineligible.HSAEligible = false
	_, err = l.AddRecord(ctx, ineligible)
	require.NoError(t, err)

	_, err = l.AddRecord(ctx, statementRecord("2024-03-03", "CVS", "Alice", 25))
	require.NoError(t, err)

	total, err := l.GetUnreimbursedTotal(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 25.0, total, 0.001)
}

func TestLedger_GetSummaryByYear(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2023-11-01", "Sutter", "Alice", 200))
	require.NoError(t, err)
	paid := statementRecord("2024-01-15", "CVS", "Bob", 50)
	paid.Reimbursed = true
	paid.ReimbursementAmount = 45
	_, err = l.AddRecord(ctx, paid)
	require.NoError(t, err)
	full := statementRecord("2024-02-20", "Sutter", "Alice", 150)
	full.BilledAmount = 400
	full.InsurancePaid = 250
	_, err = l.AddRecord(ctx, full)
	require.NoError(t, err)

	summaries, err := l.GetSummaryByYear(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, 2023, summaries[0].Year)
	assert.InDelta(t, 200.0, summaries[0].Total, 0.001)
	assert.Equal(t, 1, summaries[0].Count)

	assert.Equal(t, 2024, summaries[1].Year)
	assert.InDelta(t, 400.0, summaries[1].Billed, 0.001)
	assert.InDelta(t, 250.0, summaries[1].Insurance, 0.001)
	assert.InDelta(t, 200.0, summaries[1].Total, 0.001)
	assert.InDelta(t, 45.0, summaries[1].Reimbursed, 0.001, "reimbursed column sums the reimbursement amount")
	assert.InDelta(t, 150.0, summaries[1].Unreimbursed, 0.001)
	assert.Equal(t, 2, summaries[1].Count)
}

func TestLedger_GetSummaryByYear_CountabilityOnly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Not HSA-eligible, still countable: stays in its year group.
	ineligible := statementRecord("2024-05-01", "Spa Co", "Alice", 500)
	ineligible.HSAEligible = false
	_, err := l.AddRecord(ctx, ineligible)
	require.NoError(t, err)
	_, err = l.AddRecord(ctx, statementRecord("2024-06-01", "Sutter", "Alice", 10))
	require.NoError(t, err)
	// No parseable service date: left out of the grouping entirely.
	_, err = l.AddRecord(ctx, statementRecord("", "CVS", "Bob", 30))
	require.NoError(t, err)
	// Demoted: excluded everywhere.
	demoted := statementRecord("2024-07-01", "VSP", "Alice", 70)
	demoted.IsAuthoritative = model.AuthorityNo
	_, err = l.AddRecord(ctx, demoted)
	require.NoError(t, err)

	summaries, err := l.GetSummaryByYear(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 2024, summaries[0].Year)
	assert.InDelta(t, 510.0, summaries[0].Total, 0.001)
	assert.Equal(t, 2, summaries[0].Count)
}

func TestLedger_GetOOPProgress_PerPatientBreakdown(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter", "Alice", 1200))
	require.NoError(t, err)
	_, err = l.AddRecord(ctx, statementRecord("2024-04-01", "CVS", "Bob", 800))
	require.NoError(t, err)
	// Not HSA-eligible: does not accumulate toward the maximum.
	ineligible := statementRecord("2024-05-01", "Sutter", "Alice", 500)
	ineligible.HSAEligible = false
	_, err = l.AddRecord(ctx, ineligible)
	require.NoError(t, err)
	// Other year: excluded.
	_, err = l.AddRecord(ctx, statementRecord("2023-05-01", "Sutter", "Alice", 999))
	require.NoError(t, err)

	progress, err := l.GetOOPProgress(ctx, 2024, 3000)
	require.NoError(t, err)
	assert.InDelta(t, 2000.0, progress.Total, 0.001)
	assert.InDelta(t, 1000.0, progress.Remaining, 0.001)
	assert.False(t, progress.Met)
	assert.InDelta(t, 1200.0, progress.ByPatient["Alice"], 0.001)
	assert.InDelta(t, 800.0, progress.ByPatient["Bob"], 0.001)

	breakdown := progress.Breakdown()
	require.Len(t, breakdown, 2)
	assert.Equal(t, PatientOOP{Patient: "Alice", Total: 1200}, breakdown[0])
	assert.Equal(t, PatientOOP{Patient: "Bob", Total: 800}, breakdown[1])
}

func TestOOPProgress_Breakdown_SortedByAmountDescending(t *testing.T) {
	p := &OOPProgress{ByPatient: map[string]float64{
		"Alice": 100,
		"Bob":   950,
		"Carol": 400,
	}}
	breakdown := p.Breakdown()
	require.Len(t, breakdown, 3)
	assert.Equal(t, "Bob", breakdown[0].Patient)
	assert.Equal(t, "Carol", breakdown[1].Patient)
	assert.Equal(t, "Alice", breakdown[2].Patient)
}

func TestLedger_GetOOPProgress_MetClampsRemaining(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter", "Alice", 3500))
	require.NoError(t, err)

	progress, err := l.GetOOPProgress(ctx, 2024, 3000)
	require.NoError(t, err)
	assert.True(t, progress.Met)
	assert.Zero(t, progress.Remaining)
}

func TestLedger_Unmatched(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter", "Alice", 100))
	require.NoError(t, err)
	_, err = l.AddRecord(ctx, eobRecord("2024-03-05", "Aetna", "Sutter", "Alice", 60))
	require.NoError(t, err)

	// Linked pair: excluded from both lists.
	stmtID, err := l.AddRecord(ctx, statementRecord("2024-04-01", "CVS", "Bob", 30))
	require.NoError(t, err)
	eobID, err := l.AddRecord(ctx, eobRecord("2024-04-01", "Aetna", "CVS", "Bob", 30))
	require.NoError(t, err)
	ok, err := l.LinkRecords(ctx, eobID, stmtID)
	require.NoError(t, err)
	require.True(t, ok)

	// Demoted but unlinked: an anomaly, excluded.
	demoted := statementRecord("2024-05-01", "VSP", "Alice", 20)
	demoted.IsAuthoritative = model.AuthorityNo
	_, err = l.AddRecord(ctx, demoted)
	require.NoError(t, err)

	stmts, err := l.UnmatchedStatements(ctx)
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t, 1, stmts[0].ID)

	eobs, err := l.UnmatchedEOBs(ctx)
	require.NoError(t, err)
	require.Len(t, eobs, 1)
	assert.Equal(t, 2, eobs[0].ID)
}

func TestLedger_Variances_ReportedOncePerPair(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	stmtID, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter", "Alice", 185))
	require.NoError(t, err)
	eobID, err := l.AddRecord(ctx, eobRecord("2024-03-01", "Aetna", "Sutter", "Alice", 175))
	require.NoError(t, err)
	ok, err := l.LinkRecords(ctx, eobID, stmtID)
	require.NoError(t, err)
	require.True(t, ok)

	// Agreeing pair: no variance reported.
	stmt2, err := l.AddRecord(ctx, statementRecord("2024-04-01", "CVS", "Bob", 30))
	require.NoError(t, err)
	eob2, err := l.AddRecord(ctx, eobRecord("2024-04-01", "Aetna", "CVS", "Bob", 30))
	require.NoError(t, err)
	ok, err = l.LinkRecords(ctx, eob2, stmt2)
	require.NoError(t, err)
	require.True(t, ok)

	pairs, err := l.Variances(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, eobID, pairs[0].EOB.ID)
	assert.Equal(t, stmtID, pairs[0].Statement.ID)
	assert.InDelta(t, -10.0, pairs[0].Variance, 0.001)
}
