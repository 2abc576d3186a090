package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// AmountTolerance is the default tolerance for amount equality. Payer and
// provider renderings of the same charge can differ by rounding.
const AmountTolerance = 0.01

// Ledger wraps a Backend with the matching, linking, and aggregation logic
// of the claim collection.
type Ledger struct {
	backend Backend
}

// New creates a Ledger over the given backend.
func New(backend Backend) *Ledger {
	return &Ledger{backend: backend}
}

// Init initializes the backing store.
func (l *Ledger) Init(ctx context.Context) error {
	return l.backend.Init(ctx)
}

// Close releases the backing store.
func (l *Ledger) Close() error {
	return l.backend.Close()
}

// Records returns all records in insertion order.
func (l *Ledger) Records(ctx context.Context) ([]model.ClaimRecord, error) {
	return l.backend.Records(ctx)
}

// GetRecord returns the record with the given id, or nil when absent.
func (l *Ledger) GetRecord(ctx context.Context, id int) (*model.ClaimRecord, error) {
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}
	return nil, nil
}

// AddRecord appends a record and returns its assigned id.
func (l *Ledger) AddRecord(ctx context.Context, rec model.ClaimRecord) (int, error) {
	id, err := l.backend.Append(ctx, rec)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: add record")
	}
	zap.L().Info("ledger: record added",
		zap.Int("id", id),
		zap.String("provider", rec.Provider),
		zap.String("patient", rec.Patient),
		zap.Float64("patient_responsibility", rec.PatientResponsibility),
	)
	return id, nil
}

// UpdateRecord applies a field patch to the record with the given id.
// Returns false when the id does not exist.
func (l *Ledger) UpdateRecord(ctx context.Context, id int, patch map[string]string) (bool, error) {
	return l.backend.Update(ctx, id, patch)
}

// prependNote composes an annotation onto existing notes. New annotations
// prepend; prior content is never overwritten. Re-applying an annotation
// already present is a no-op, which keeps linking idempotent.
func prependNote(existing, note string) string {
	if note == "" || strings.Contains(existing, note) {
		return existing
	}
	if existing == "" {
		return note
	}
	return note + " " + existing
}

// AnnotateRecord prepends a note onto a record without touching any other
// field. Idempotent: a note already present is not added again. Returns
// false when the id does not exist.
func (l *Ledger) AnnotateRecord(ctx context.Context, id int, note string) (bool, error) {
	rec, err := l.GetRecord(ctx, id)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}
	merged := prependNote(rec.Notes, note)
	if merged == rec.Notes {
		return true, nil
	}
	return l.backend.Update(ctx, id, map[string]string{model.ColNotes: merged})
}

// LinkRecords links an EOB record to its statement counterpart: both link
// sets gain the other id, the EOB becomes authoritative, the statement is
// demoted, and a variance annotation lands on the EOB when the two
// patient-responsibility amounts disagree beyond tolerance. Idempotent.
func (l *Ledger) LinkRecords(ctx context.Context, eobID, stmtID int) (bool, error) {
	eob, err := l.GetRecord(ctx, eobID)
	if err != nil {
		return false, err
	}
	stmt, err := l.GetRecord(ctx, stmtID)
	if err != nil {
		return false, err
	}
	if eob == nil || stmt == nil {
		return false, nil
	}

	variance := eob.PatientResponsibility - stmt.PatientResponsibility

	eobNotes := prependNote(eob.Notes, fmt.Sprintf("[Linked statement #%d]", stmtID))
	if math.Abs(variance) > AmountTolerance {
		eobNotes = prependNote(eobNotes, fmt.Sprintf("[Variance vs #%d: $%+.2f]", stmtID, variance))
	}
	stmtNotes := prependNote(stmt.Notes, fmt.Sprintf("[Superseded by EOB #%d]", eobID))

	ok, err := l.backend.Update(ctx, eobID, map[string]string{
		model.ColLinkedRecordIDs: eob.LinkedRecordIDs.Append(stmtID).String(),
		model.ColIsAuthoritative: string(model.AuthorityYes),
		model.ColNotes:           eobNotes,
	})
	if err != nil || !ok {
		return false, eris.Wrapf(err, "ledger: link %d -> %d", eobID, stmtID)
	}

	ok, err = l.backend.Update(ctx, stmtID, map[string]string{
		model.ColLinkedRecordIDs: stmt.LinkedRecordIDs.Append(eobID).String(),
		model.ColIsAuthoritative: string(model.AuthorityNo),
		model.ColNotes:           stmtNotes,
	})
	if err != nil || !ok {
		// The EOB side already committed. The pair is half-linked until a
		// retry demotes the statement; callers must not treat this as a
		// clean failure.
		zap.L().Error("ledger: half-linked pair, statement not demoted",
			zap.Int("eob_id", eobID),
			zap.Int("statement_id", stmtID),
			zap.Error(err),
		)
		if err == nil {
			err = eris.Errorf("ledger: statement %d disappeared during link", stmtID)
		}
		return false, eris.Wrapf(err, "ledger: demote statement %d after linking eob %d", stmtID, eobID)
	}

	zap.L().Info("ledger: records linked",
		zap.Int("eob_id", eobID),
		zap.Int("statement_id", stmtID),
		zap.Float64("variance", variance),
	)
	return true, nil
}

// FindDuplicates searches for records matching the given provider (fuzzy),
// service date (exact), and patient-responsibility amount (within tolerance).
// The caller narrows by patient. An empty date matches nothing: dateless
// records carry too little signal to suppress an insert.
func (l *Ledger) FindDuplicates(ctx context.Context, provider, serviceDate string, amount, tolerance float64) ([]model.ClaimRecord, error) {
	if serviceDate == "" {
		return nil, nil
	}
	if tolerance <= 0 {
		tolerance = AmountTolerance
	}
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}

	var matches []model.ClaimRecord
	for _, rec := range records {
		if rec.ServiceDate != serviceDate {
			continue
		}
		if !model.ProviderMatches(provider, rec.Provider) {
			continue
		}
		if math.Abs(rec.PatientResponsibility-amount) > tolerance {
			continue
		}
		matches = append(matches, rec)
	}
	return matches, nil
}

// FindMatchingStatements returns unlinked non-EOB records matching the exact
// date and patient with a fuzzy provider match, newest id first. The provider
// pattern is the EOB's rendering provider, not the payer.
func (l *Ledger) FindMatchingStatements(ctx context.Context, serviceDate, patient, providerPattern string) ([]model.ClaimRecord, error) {
	return l.findCounterparts(ctx, serviceDate, patient, func(rec model.ClaimRecord) bool {
		return !rec.DocumentType.IsEOB() &&
			model.ProviderMatches(providerPattern, rec.Provider)
	})
}

// FindMatchingEOBs returns unlinked EOB records matching the exact date and
// patient with a fuzzy provider match against the EOB's rendering provider
// (falling back to the payer name), newest id first.
func (l *Ledger) FindMatchingEOBs(ctx context.Context, serviceDate, patient, providerPattern string) ([]model.ClaimRecord, error) {
	return l.findCounterparts(ctx, serviceDate, patient, func(rec model.ClaimRecord) bool {
		return rec.DocumentType.IsEOB() &&
			(model.ProviderMatches(providerPattern, rec.OriginalProvider) ||
				model.ProviderMatches(providerPattern, rec.Provider))
	})
}

func (l *Ledger) findCounterparts(ctx context.Context, serviceDate, patient string, accept func(model.ClaimRecord) bool) ([]model.ClaimRecord, error) {
	if serviceDate == "" {
		return nil, nil
	}
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}

	var matches []model.ClaimRecord
	for _, rec := range records {
		if len(rec.LinkedRecordIDs) > 0 {
			continue
		}
		if rec.ServiceDate != serviceDate || rec.Patient != patient {
			continue
		}
		if !accept(rec) {
			continue
		}
		matches = append(matches, rec)
	}
	// Most recent insertion wins ties deterministically.
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID > matches[j].ID })
	return matches, nil
}
