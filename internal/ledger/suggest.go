package ledger

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sells-group/hsa-ledger/internal/model"
)

// DefaultDateTolerance is the widest service-date gap, in days, considered
// when suggesting counterpart links.
const DefaultDateTolerance = 7

// Confidence tiers for suggested links.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// CandidateMatch pairs an unlinked record with a plausible counterpart.
type CandidateMatch struct {
	Record     model.ClaimRecord
	Candidate  model.ClaimRecord
	DayDiff    int
	Confidence string
}

// Stars renders the tier as a one-to-three star marker for display.
func (m CandidateMatch) Stars() string {
	switch m.Confidence {
	case ConfidenceHigh:
		return "***"
	case ConfidenceMedium:
		return "**"
	default:
		return "*"
	}
}

func confidenceFor(dayDiff int) string {
	switch {
	case dayDiff == 0:
		return ConfidenceHigh
	case dayDiff <= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func dayDiff(a, b string) (int, bool) {
	ta, err := time.Parse("2006-01-02", a)
	if err != nil {
		return 0, false
	}
	tb, err := time.Parse("2006-01-02", b)
	if err != nil {
		return 0, false
	}
	d := int(math.Abs(ta.Sub(tb).Hours()) / 24)
	return d, true
}

// RecordSuggestions proposes counterpart links for a single unlinked record:
// opposite document kind, same patient, service dates within the tolerance
// window, fuzzy provider match. Results are ordered best first (smallest day
// gap, then largest amount).
func (l *Ledger) RecordSuggestions(ctx context.Context, rec model.ClaimRecord, dateTolerance int) ([]CandidateMatch, error) {
	if dateTolerance <= 0 {
		dateTolerance = DefaultDateTolerance
	}
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}
	matches := suggestFor(rec, records, dateTolerance)
	sortCandidates(matches)
	return matches, nil
}

// SuggestionSet groups proposed counterpart links by the side they were
// generated from. The same pair can appear in both buckets, once from each
// direction.
type SuggestionSet struct {
	EOBs       []CandidateMatch `json:"eob_suggestions"`
	Statements []CandidateMatch `json:"statement_suggestions"`
}

// Empty reports whether no suggestions were produced on either side.
func (s *SuggestionSet) Empty() bool {
	return s == nil || len(s.EOBs)+len(s.Statements) == 0
}

// Suggestions proposes counterpart links for every unmatched record in the
// collection. Within each bucket, suggestions are grouped by source record
// in insertion order, best candidate first per record.
func (l *Ledger) Suggestions(ctx context.Context, dateTolerance int) (*SuggestionSet, error) {
	if dateTolerance <= 0 {
		dateTolerance = DefaultDateTolerance
	}
	records, err := l.backend.Records(ctx)
	if err != nil {
		return nil, err
	}

	set := &SuggestionSet{}
	for _, rec := range records {
		if len(rec.LinkedRecordIDs) > 0 || !rec.Countable() {
			continue
		}
		matches := suggestFor(rec, records, dateTolerance)
		if len(matches) == 0 {
			continue
		}
		sortCandidates(matches)
		if rec.DocumentType.IsEOB() {
			set.EOBs = append(set.EOBs, matches...)
		} else {
			set.Statements = append(set.Statements, matches...)
		}
	}
	return set, nil
}

func suggestFor(rec model.ClaimRecord, records []model.ClaimRecord, dateTolerance int) []CandidateMatch {
	if rec.ServiceDate == "" {
		return nil
	}
	wantEOB := !rec.DocumentType.IsEOB()

	var out []CandidateMatch
	for _, cand := range records {
		if cand.ID == rec.ID || cand.DocumentType.IsEOB() != wantEOB {
			continue
		}
		if len(cand.LinkedRecordIDs) > 0 || !cand.Countable() || cand.Patient != rec.Patient {
			continue
		}
		diff, ok := dayDiff(rec.ServiceDate, cand.ServiceDate)
		if !ok || diff > dateTolerance {
			continue
		}
		if !providerHint(rec, cand) {
			continue
		}
		out = append(out, CandidateMatch{
			Record:     rec,
			Candidate:  cand,
			DayDiff:    diff,
			Confidence: confidenceFor(diff),
		})
	}
	return out
}

// providerHint does the loose cross-kind provider comparison: an EOB's
// rendering provider against a statement's provider, with the payer name as
// fallback.
func providerHint(a, b model.ClaimRecord) bool {
	eob, stmt := a, b
	if !eob.DocumentType.IsEOB() {
		eob, stmt = b, a
	}
	return model.ProviderMatches(eob.OriginalProvider, stmt.Provider) ||
		model.ProviderMatches(eob.Provider, stmt.Provider)
}

func sortCandidates(matches []CandidateMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DayDiff != matches[j].DayDiff {
			return matches[i].DayDiff < matches[j].DayDiff
		}
		return matches[i].Candidate.PatientResponsibility > matches[j].Candidate.PatientResponsibility
	})
}
