package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/hsa-ledger/internal/ledger"
	"github.com/sells-group/hsa-ledger/internal/model"
)

// Engine runs extracted documents through duplicate suppression, counterpart
// matching, and insertion into the ledger.
type Engine struct {
	ledger    *ledger.Ledger
	family    []string
	start     time.Time
	tolerance float64
}

// NewEngine creates an Engine. start bounds the HSA eligibility window;
// claims with a service date before it are skipped, claims with no date are
// let through so a human can triage them later.
func NewEngine(l *ledger.Ledger, family []string, start time.Time) *Engine {
	return &Engine{
		ledger:    l,
		family:    family,
		start:     start,
		tolerance: ledger.AmountTolerance,
	}
}

// ProcessDocument reconciles every claim in the extraction against the
// ledger. Claims are isolated: one failing claim is recorded as an error
// outcome and the rest of the batch proceeds.
func (e *Engine) ProcessDocument(ctx context.Context, ext model.DocumentExtraction) (BatchResult, error) {
	batch := BatchResult{
		BatchID:    uuid.New().String(),
		SourcePath: ext.SourcePath,
	}
	for _, claim := range ext.Claims {
		res, err := e.processClaim(ctx, ext, claim)
		if err != nil {
			zap.L().Warn("reconcile: claim failed",
				zap.String("batch_id", batch.BatchID),
				zap.String("service_date", claim.ServiceDate),
				zap.String("patient", claim.PatientName),
				zap.Error(err),
			)
			res = ClaimResult{Outcome: OutcomeError, Err: err.Error()}
		}
		batch.Claims = append(batch.Claims, res)
	}

	zap.L().Info("reconcile: batch complete",
		zap.String("batch_id", batch.BatchID),
		zap.String("source", ext.SourcePath),
		zap.Int("added", batch.Count(OutcomeAdded)),
		zap.Int("linked", batch.Count(OutcomeLinked)),
		zap.Int("duplicates", batch.Count(OutcomeDuplicate)),
		zap.Int("skipped", batch.Count(OutcomeSkipped)),
		zap.Int("errors", batch.Count(OutcomeError)),
	)
	return batch, nil
}

func (e *Engine) processClaim(ctx context.Context, ext model.DocumentExtraction, claim model.ExtractedClaim) (ClaimResult, error) {
	if e.beforeWindow(claim.ServiceDate) {
		return ClaimResult{Outcome: OutcomeSkipped}, nil
	}

	patient := NormalizePatient(claim.PatientName, e.family)

	// Duplicate suppression runs before counterpart matching: a resubmitted
	// document must never masquerade as new evidence for a link.
	dup, err := e.findDuplicate(ctx, ext, claim, patient)
	if err != nil {
		return ClaimResult{}, err
	}
	if dup != nil {
		note := fmt.Sprintf("[Supplementary evidence: %s]", evidenceSource(ext))
		if _, err := e.ledger.AnnotateRecord(ctx, dup.ID, note); err != nil {
			return ClaimResult{}, eris.Wrapf(err, "reconcile: annotate duplicate %d", dup.ID)
		}
		return ClaimResult{Outcome: OutcomeDuplicate, RecordID: dup.ID, Patient: patient}, nil
	}

	rec := model.ClaimRecord{
		ServiceDate:           claim.ServiceDate,
		Provider:              ext.Provider,
		OriginalProvider:      claim.OriginalProvider,
		Patient:               patient,
		Category:              ext.Category,
		BilledAmount:          claim.BilledAmount,
		InsurancePaid:         claim.InsurancePaid,
		PatientResponsibility: claim.PatientResponsibility,
		HSAEligible:           ext.HSAEligible,
		DocumentType:          ext.DocumentType,
		Confidence:            ext.Confidence,
		FilePath:              ext.SourcePath,
	}

	if ext.DocumentType.IsEOB() {
		return e.insertEOB(ctx, rec, claim)
	}
	return e.insertStatement(ctx, rec)
}

// insertEOB adds the EOB and links it to the best unlinked statement when
// one exists. A standalone EOB keeps its authority flag unset; it only
// becomes authoritative when a counterpart turns up.
func (e *Engine) insertEOB(ctx context.Context, rec model.ClaimRecord, claim model.ExtractedClaim) (ClaimResult, error) {
	pattern := claim.OriginalProvider
	if pattern == "" {
		pattern = rec.Provider
	}
	matches, err := e.ledger.FindMatchingStatements(ctx, rec.ServiceDate, rec.Patient, pattern)
	if err != nil {
		return ClaimResult{}, err
	}

	id, err := e.ledger.AddRecord(ctx, rec)
	if err != nil {
		return ClaimResult{}, err
	}
	if len(matches) == 0 {
		return ClaimResult{Outcome: OutcomeAdded, RecordID: id, Patient: rec.Patient}, nil
	}

	stmtID := matches[0].ID
	if _, err := e.ledger.LinkRecords(ctx, id, stmtID); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Outcome: OutcomeLinked, RecordID: id, LinkedTo: stmtID, Patient: rec.Patient}, nil
}

// insertStatement adds a statement or receipt, linking it under the best
// unlinked EOB when one exists.
func (e *Engine) insertStatement(ctx context.Context, rec model.ClaimRecord) (ClaimResult, error) {
	matches, err := e.ledger.FindMatchingEOBs(ctx, rec.ServiceDate, rec.Patient, rec.Provider)
	if err != nil {
		return ClaimResult{}, err
	}

	id, err := e.ledger.AddRecord(ctx, rec)
	if err != nil {
		return ClaimResult{}, err
	}
	if len(matches) == 0 {
		return ClaimResult{Outcome: OutcomeAdded, RecordID: id, Patient: rec.Patient}, nil
	}

	eobID := matches[0].ID
	if _, err := e.ledger.LinkRecords(ctx, eobID, id); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Outcome: OutcomeLinked, RecordID: id, LinkedTo: eobID, Patient: rec.Patient}, nil
}

// findDuplicate returns an existing record for the same provider, date,
// patient, and amount, or nil.
func (e *Engine) findDuplicate(ctx context.Context, ext model.DocumentExtraction, claim model.ExtractedClaim, patient string) (*model.ClaimRecord, error) {
	dups, err := e.ledger.FindDuplicates(ctx, ext.Provider, claim.ServiceDate, claim.PatientResponsibility, e.tolerance)
	if err != nil {
		return nil, err
	}
	for i := range dups {
		if dups[i].Patient == patient {
			return &dups[i], nil
		}
	}
	return nil, nil
}

// beforeWindow reports whether the service date falls before the HSA start.
// Undated and unparseable claims pass; exclusion needs positive evidence.
func (e *Engine) beforeWindow(serviceDate string) bool {
	if serviceDate == "" || e.start.IsZero() {
		return false
	}
	t, err := time.Parse("2006-01-02", serviceDate)
	if err != nil {
		return false
	}
	return t.Before(e.start)
}

func evidenceSource(ext model.DocumentExtraction) string {
	if ext.SourcePath != "" {
		return ext.SourcePath
	}
	return "duplicate submission"
}
