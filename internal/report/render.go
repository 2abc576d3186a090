package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/hsa-ledger/internal/ledger"
)

// usd formats amounts with thousands grouping, matching statement
// conventions.
var usd = message.NewPrinter(language.AmericanEnglish)

func dollars(v float64) string {
	return usd.Sprintf("$%.2f", v)
}

// RenderSummary writes the spending rollup as an aligned table.
func RenderSummary(out io.Writer, s *Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tCOUNT\tBILLED\tINSURANCE\tTOTAL\tREIMBURSED\tUNREIMBURSED")
	_, _ = fmt.Fprintln(w, "----\t-----\t------\t---------\t-----\t----------\t------------")
	for _, y := range s.ByYear {
		_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
			y.Year, y.Count, dollars(y.Billed), dollars(y.Insurance),
			dollars(y.Total), dollars(y.Reimbursed), dollars(y.Unreimbursed))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "\nTotal unreimbursed: %s\n", dollars(s.TotalUnreimbursed))
}

// RenderReconciliation writes the per-year reconciliation report: the
// out-of-pocket progress bar, then each section that needs attention.
func RenderReconciliation(out io.Writer, r *Reconciliation) {
	renderOOP(out, r)

	renderRecordSection(out,
		fmt.Sprintf("Unmatched EOBs (%d)", len(r.UnmatchedEOBs)),
		"All EOBs have matching statements.",
		r.UnmatchedEOBs)
	renderRecordSection(out,
		fmt.Sprintf("Unmatched statements (%d)", len(r.UnmatchedStatements)),
		"All statements have matching EOBs.",
		r.UnmatchedStatements)

	if len(r.Variances) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo amount variances between linked pairs.")
	} else {
		_, _ = fmt.Fprintf(out, "\nAmount variances (%d)\n", len(r.Variances))
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "EOB\tSTMT\tPROVIDER\tEOB AMT\tSTMT AMT\tVARIANCE")
		for _, v := range r.Variances {
			_, _ = fmt.Fprintf(w, "#%d\t#%d\t%s\t%s\t%s\t%+.2f\n",
				v.EOBID, v.StatementID, v.Provider,
				dollars(v.EOBAmount), dollars(v.StatementAmount), v.Variance)
		}
		_ = w.Flush()
	}

	if r.Attention > 0 {
		_, _ = fmt.Fprintf(out, "\n%d records need attention.\n", r.Attention)
	}
}

func renderOOP(out io.Writer, r *Reconciliation) {
	oop := r.OOP
	pct := 0.0
	if oop.Max > 0 {
		pct = oop.Total / oop.Max * 100
	}
	const width = 40
	filled := int(width * min(pct, 100) / 100)

	_, _ = fmt.Fprintf(out, "%d out-of-pocket progress\n", r.Year)
	_, _ = fmt.Fprintf(out, "  [%s%s]  %s / %s (%.0f%%)\n",
		strings.Repeat("#", filled), strings.Repeat("-", width-filled),
		dollars(oop.Total), dollars(oop.Max), pct)
	_, _ = fmt.Fprintf(out, "  Remaining: %s\n", dollars(oop.Remaining))
	if oop.Met {
		_, _ = fmt.Fprintln(out, "  Out-of-pocket maximum met.")
	}
	if len(oop.ByPatient) > 0 {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, row := range oop.Breakdown() {
			_, _ = fmt.Fprintf(w, "  %s\t%s\n", row.Patient, dollars(row.Total))
		}
		_ = w.Flush()
	}
}

func renderRecordSection(out io.Writer, title, emptyMsg string, rows []RecordRow) {
	if len(rows) == 0 {
		_, _ = fmt.Fprintf(out, "\n%s\n", emptyMsg)
		return
	}
	_, _ = fmt.Fprintf(out, "\n%s\n", title)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tPROVIDER\tPATIENT\tAMOUNT")
	for _, row := range rows {
		_, _ = fmt.Fprintf(w, "#%d\t%s\t%s\t%s\t%s\n",
			row.ID, row.Date, row.Provider, row.Patient, dollars(row.Amount))
	}
	_ = w.Flush()
}

// RenderSuggestions writes candidate counterpart links, one section per
// side.
func RenderSuggestions(out io.Writer, set *ledger.SuggestionSet) {
	if set.Empty() {
		_, _ = fmt.Fprintln(out, "No link suggestions.")
		return
	}
	renderSuggestionSection(out, "EOBs missing statements", set.EOBs)
	renderSuggestionSection(out, "Statements missing EOBs", set.Statements)
	_, _ = fmt.Fprintln(out, "\nLink with: hsa-ledger link <eobID> <stmtID>")
}

func renderSuggestionSection(out io.Writer, title string, matches []ledger.CandidateMatch) {
	if len(matches) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "%s (%d)\n", title, len(matches))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIER\tRECORD\tCANDIDATE\tDAYS\tRECORD AMT\tCANDIDATE AMT")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%s\t#%d %s\t#%d %s\t%d\t%s\t%s\n",
			m.Stars(),
			m.Record.ID, m.Record.Provider,
			m.Candidate.ID, m.Candidate.Provider,
			m.DayDiff,
			dollars(m.Record.PatientResponsibility),
			dollars(m.Candidate.PatientResponsibility))
	}
	_ = w.Flush()
}
