package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/hsa-ledger/internal/model"
	"github.com/sells-group/hsa-ledger/internal/reconcile"
)

var testFamily = []string{"Alice Johnson", "Bob Johnson", "Carol Johnson"}

func writeInboxFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("document"), 0o644))
	return path
}

func okProcess(ext model.DocumentExtraction) ProcessFunc {
	return func(_ context.Context, path, _ string) (model.DocumentExtraction, reconcile.BatchResult, error) {
		return ext, reconcile.BatchResult{
			SourcePath: path,
			Claims:     []reconcile.ClaimResult{{Outcome: reconcile.OutcomeAdded, RecordID: 1}},
		}, nil
	}
}

func TestPatientHint(t *testing.T) {
	assert.Equal(t, "Alice Johnson", PatientHint("CVS_Alice_prescription.jpg", testFamily))
	assert.Equal(t, "Bob Johnson", PatientHint("eob bob johnson 2024.pdf", testFamily))
	assert.Equal(t, "", PatientHint("receipt.pdf", testFamily))
	assert.Equal(t, "", PatientHint("walgreens_march.pdf", nil))
}

func TestWatcher_PollProcessesAndArchives(t *testing.T) {
	dir := t.TempDir()
	writeInboxFile(t, dir, "costco_receipt.pdf")

	ext := model.DocumentExtraction{
		DocumentType: model.DocReceipt,
		Provider:     "Costco Pharmacy",
		Claims: []model.ExtractedClaim{{
			ServiceDate:           "2024-03-15",
			ServiceType:           "Prescription",
			PatientResponsibility: 42.50,
		}},
	}
	w := New(dir, testFamily, okProcess(ext))

	results, err := w.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Count(reconcile.OutcomeAdded))

	// Original file gone, archived under the canonical token.
	_, err = os.Stat(filepath.Join(dir, "costco_receipt.pdf"))
	assert.True(t, os.IsNotExist(err))
	archived := filepath.Join(dir, "processed", "2024-03-15_Costco_Pharmacy_Prescription_$42.50.pdf")
	_, err = os.Stat(archived)
	assert.NoError(t, err)
}

func TestWatcher_PollKeepsOriginalNameWithoutDate(t *testing.T) {
	dir := t.TempDir()
	writeInboxFile(t, dir, "scan.pdf")

	w := New(dir, testFamily, okProcess(model.DocumentExtraction{DocumentType: model.DocUnknown}))
	_, err := w.Poll(context.Background())
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "processed", "scan.pdf"))
	assert.NoError(t, err)
}

func TestWatcher_PollQuarantinesFailures(t *testing.T) {
	dir := t.TempDir()
	writeInboxFile(t, dir, "bad.pdf")
	writeInboxFile(t, dir, "good.pdf")

	calls := 0
	process := func(_ context.Context, path, _ string) (model.DocumentExtraction, reconcile.BatchResult, error) {
		calls++
		if filepath.Base(path) == "bad.pdf" {
			return model.DocumentExtraction{}, reconcile.BatchResult{}, assert.AnError
		}
		return model.DocumentExtraction{}, reconcile.BatchResult{SourcePath: path}, nil
	}
	w := New(dir, testFamily, process)

	results, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, 2, calls)

	_, err = os.Stat(filepath.Join(dir, "failed", "bad.pdf"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "processed", "good.pdf"))
	assert.NoError(t, err)
}

func TestWatcher_PollSkipsNonDocuments(t *testing.T) {
	dir := t.TempDir()
	writeInboxFile(t, dir, "notes.txt")
	writeInboxFile(t, dir, ".DS_Store")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "processed"), 0o755))

	called := false
	process := func(_ context.Context, _, _ string) (model.DocumentExtraction, reconcile.BatchResult, error) {
		called = true
		return model.DocumentExtraction{}, reconcile.BatchResult{}, nil
	}
	w := New(dir, testFamily, process)

	results, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)

	// Skipped files stay in place.
	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
}

func TestWatcher_PollMissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "nope"), testFamily, okProcess(model.DocumentExtraction{}))
	_, err := w.Poll(context.Background())
	assert.Error(t, err)
}

func TestWatcher_WatchBadSchedule(t *testing.T) {
	w := New(t.TempDir(), testFamily, okProcess(model.DocumentExtraction{}))
	err := w.Watch(context.Background(), "not a schedule")
	assert.Error(t, err)
}

func TestWatcher_WatchStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := New(t.TempDir(), testFamily, okProcess(model.DocumentExtraction{}))
	err := w.Watch(ctx, "@every 1h")
	assert.NoError(t, err)
}
