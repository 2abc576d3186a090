package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hsa-ledger/internal/model"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	backend := NewSheetBackend(filepath.Join(t.TempDir(), "claims.csv"))
	require.NoError(t, backend.Init(context.Background()))
	return New(backend)
}

func eobRecord(date, provider, renderer, patient string, amount float64) model.ClaimRecord {
	return model.ClaimRecord{
		ServiceDate:           date,
		Provider:              provider,
		OriginalProvider:      renderer,
		Patient:               patient,
		Category:              model.CategoryMedical,
		PatientResponsibility: amount,
		HSAEligible:           true,
		DocumentType:          model.DocEOB,
	}
}

func statementRecord(date, provider, patient string, amount float64) model.ClaimRecord {
	return model.ClaimRecord{
		ServiceDate:           date,
		Provider:              provider,
		Patient:               patient,
		Category:              model.CategoryMedical,
		PatientResponsibility: amount,
		HSAEligible:           true,
		DocumentType:          model.DocStatement,
	}
}

func TestLedger_AddRecord_AssignsSequentialIDs(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	id1, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 50))
	require.NoError(t, err)
	id2, err := l.AddRecord(ctx, statementRecord("2024-03-02", "CVS", "Alice", 25))
	require.NoError(t, err)

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)

	rec, err := l.GetRecord(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "CVS", rec.Provider)
}

func TestLedger_GetRecord_MissingReturnsNil(t *testing.T) {
	l := newTestLedger(t)

	rec, err := l.GetRecord(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLedger_LinkRecords_Bidirectional(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	stmtID, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 185))
	require.NoError(t, err)
	eobID, err := l.AddRecord(ctx, eobRecord("2024-03-01", "Aetna", "Sutter", "Alice", 185))
	require.NoError(t, err)

	ok, err := l.LinkRecords(ctx, eobID, stmtID)
	require.NoError(t, err)
	require.True(t, ok)

	eob, err := l.GetRecord(ctx, eobID)
	require.NoError(t, err)
	assert.True(t, eob.LinkedRecordIDs.Contains(stmtID))
	assert.Equal(t, model.AuthorityYes, eob.IsAuthoritative)
	assert.Contains(t, eob.Notes, "[Linked statement #1]")
	assert.NotContains(t, eob.Notes, "Variance")

	stmt, err := l.GetRecord(ctx, stmtID)
	require.NoError(t, err)
	assert.True(t, stmt.LinkedRecordIDs.Contains(eobID))
	assert.Equal(t, model.AuthorityNo, stmt.IsAuthoritative)
	assert.Contains(t, stmt.Notes, "[Superseded by EOB #2]")
}

func TestLedger_LinkRecords_VarianceAnnotation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	stmtID, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 185))
	require.NoError(t, err)
	eobID, err := l.AddRecord(ctx, eobRecord("2024-03-01", "Aetna", "Sutter", "Alice", 175))
	require.NoError(t, err)

	ok, err := l.LinkRecords(ctx, eobID, stmtID)
	require.NoError(t, err)
	require.True(t, ok)

	eob, err := l.GetRecord(ctx, eobID)
	require.NoError(t, err)
	assert.Contains(t, eob.Notes, "[Variance vs #1: $-10.00]")
}

func TestLedger_LinkRecords_Idempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	stmtID, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 185))
	require.NoError(t, err)
	eobID, err := l.AddRecord(ctx, eobRecord("2024-03-01", "Aetna", "Sutter", "Alice", 175))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		ok, err := l.LinkRecords(ctx, eobID, stmtID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	eob, err := l.GetRecord(ctx, eobID)
	require.NoError(t, err)
	assert.Equal(t, model.LinkSet{stmtID}, eob.LinkedRecordIDs)
	assert.Equal(t, 1, strings.Count(eob.Notes, "[Linked statement #1]"))
	assert.Equal(t, 1, strings.Count(eob.Notes, "[Variance vs #1: $-10.00]"))
}

// demotionFailBackend fails Update for one id, leaving a link half-applied.
type demotionFailBackend struct {
	Backend
	failID int
}

func (b *demotionFailBackend) Update(ctx context.Context, id int, patch map[string]string) (bool, error) {
	if id == b.failID {
		return false, errors.New("write failed")
	}
	return b.Backend.Update(ctx, id, patch)
}

func TestLedger_LinkRecords_DemotionFailureSurfaced(t *testing.T) {
	backend := NewSheetBackend(filepath.Join(t.TempDir(), "claims.csv"))
	require.NoError(t, backend.Init(context.Background()))
	ctx := context.Background()

	l := New(backend)
	stmtID, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 185))
	require.NoError(t, err)
	eobID, err := l.AddRecord(ctx, eobRecord("2024-03-01", "Aetna", "Sutter", "Alice", 185))
	require.NoError(t, err)

	l = New(&demotionFailBackend{Backend: backend, failID: stmtID})
	ok, err := l.LinkRecords(ctx, eobID, stmtID)
	assert.False(t, ok)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "demote statement")

	// The EOB side committed before the failure: the caller is told the
	// pair is half-linked rather than untouched.
	eob, err := New(backend).GetRecord(ctx, eobID)
	require.NoError(t, err)
	assert.True(t, eob.LinkedRecordIDs.Contains(stmtID))
	assert.Equal(t, model.AuthorityYes, eob.IsAuthoritative)

	stmt, err := New(backend).GetRecord(ctx, stmtID)
	require.NoError(t, err)
	assert.Empty(t, stmt.LinkedRecordIDs)
	assert.Equal(t, model.AuthorityUnset, stmt.IsAuthoritative)
}

func TestLedger_LinkRecords_MissingRecord(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 185))
	require.NoError(t, err)

	ok, err := l.LinkRecords(ctx, 42, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_FindDuplicates(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health Clinic", "Alice", 100))
	require.NoError(t, err)
	_, err = l.AddRecord(ctx, statementRecord("2024-03-02", "Sutter Health Clinic", "Alice", 100))
	require.NoError(t, err)

	dups, err := l.FindDuplicates(ctx, "Sutter", "2024-03-01", 100.005, 0.01)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, 1, dups[0].ID)
}

func TestLedger_FindDuplicates_EmptyDateMatchesNothing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("", "Sutter", "Alice", 100))
	require.NoError(t, err)

	dups, err := l.FindDuplicates(ctx, "Sutter", "", 100, 0.01)
	require.NoError(t, err)
	assert.Empty(t, dups)
}

func TestLedger_FindMatchingStatements_NewestFirst(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	_, err := l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 90))
	require.NoError(t, err)
	_, err = l.AddRecord(ctx, statementRecord("2024-03-01", "Sutter Health", "Alice", 110))
	require.NoError(t, err)
	// Already linked: must be skipped.
	linked := statementRecord("2024-03-01", "Sutter Health", "Alice", 120)
	linked.LinkedRecordIDs = model.LinkSet{7}
	_, err = l.AddRecord(ctx, linked)
	require.NoError(t, err)

	matches, err := l.FindMatchingStatements(ctx, "2024-03-01", "Alice", "Sutter")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 2, matches[0].ID)
	assert.Equal(t, 1, matches[1].ID)
}

func TestLedger_FindMatchingEOBs_ProviderFallback(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	// Rendering provider matches.
	_, err := l.AddRecord(ctx, eobRecord("2024-03-01", "Aetna", "Sutter Health", "Alice", 90))
	require.NoError(t, err)
	// Only the payer name matches.
	_, err = l.AddRecord(ctx, eobRecord("2024-03-01", "Sutter Select", "", "Alice", 50))
	require.NoError(t, err)
	// Neither matches.
	_, err = l.AddRecord(ctx, eobRecord("2024-03-01", "Delta Dental", "Smile Dental", "Alice", 40))
	require.NoError(t, err)

	matches, err := l.FindMatchingEOBs(ctx, "2024-03-01", "Alice", "Sutter")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, 2, matches[0].ID)
	assert.Equal(t, 1, matches[1].ID)
}
